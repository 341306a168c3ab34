package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"posreports/internal/core"
	ports "posreports/internal/sheets"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var spreadsheetURL = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// Client reads worksheets through the Sheets API with service account
// credentials. The underlying service is created on first use.
type Client struct {
	credentials []byte

	mu  sync.Mutex
	svc *gsheet.Service
}

var _ ports.RowSource = (*Client)(nil)

// New creates a client from an inline service account JSON document.
func New(credentialsJSON string) *Client {
	return &Client{credentials: []byte(strings.TrimSpace(credentialsJSON))}
}

// FetchRows returns every row of the first worksheet. Numbers come back as
// float64; dates are rendered as formatted strings.
func (c *Client) FetchRows(ctx context.Context, locator string) ([][]any, error) {
	id, err := SpreadsheetID(locator)
	if err != nil {
		return nil, err
	}
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	meta, err := svc.Spreadsheets.Get(id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("open spreadsheet %s: %w", id, err))
	}
	if len(meta.Sheets) == 0 || meta.Sheets[0].Properties == nil {
		return [][]any{}, nil
	}
	title := meta.Sheets[0].Properties.Title

	resp, err := svc.Spreadsheets.Values.Get(id, quoteSheetName(title)).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("read worksheet %q: %w", title, err))
	}

	slog.DebugContext(ctx, "Worksheet read", "spreadsheet_id", id, "worksheet", title, "rows", len(resp.Values))
	return resp.Values, nil
}

func (c *Client) service(ctx context.Context) (*gsheet.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.svc != nil {
		return c.svc, nil
	}
	if len(c.credentials) == 0 {
		return nil, fmt.Errorf("%w: GSPREAD_CREDENTIALS_JSON is not set", core.ErrCredentialMissing)
	}
	if !json.Valid(c.credentials) {
		return nil, fmt.Errorf("%w: credentials are not valid JSON", core.ErrCredentialInvalid)
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(c.credentials),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("%w: create sheets service: %v", core.ErrCredentialInvalid, err)
	}
	c.svc = svc
	return svc, nil
}

// SpreadsheetID extracts the spreadsheet id from a sheet URL. A locator that
// is not a URL is taken to be the id itself.
func SpreadsheetID(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", fmt.Errorf("%w: empty spreadsheet locator", core.ErrConfigurationMissing)
	}
	if m := spreadsheetURL.FindStringSubmatch(locator); m != nil {
		return m[1], nil
	}
	if strings.Contains(locator, "/") {
		return "", fmt.Errorf("%w: no spreadsheet id in %q", core.ErrRemoteNotFound, locator)
	}
	return locator, nil
}

func quoteSheetName(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// classify maps Sheets API failures onto the core sentinels.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", core.ErrRemoteNotFound, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", core.ErrCredentialInvalid, err)
		}
	}
	return fmt.Errorf("%w: %v", core.ErrRemoteTransient, err)
}
