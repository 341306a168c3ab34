package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"

	"posreports/internal/core"
)

func TestSpreadsheetID(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"https://docs.google.com/spreadsheets/d/1AbC-d_9/edit#gid=0", "1AbC-d_9", nil},
		{"1AbC-d_9", "1AbC-d_9", nil},
		{"  ", "", core.ErrConfigurationMissing},
		{"https://example.com/not-a-sheet", "", core.ErrRemoteNotFound},
	}
	for _, tc := range cases {
		got, err := SpreadsheetID(tc.in)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("SpreadsheetID(%q) error = %v, want %v", tc.in, err, tc.wantErr)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("SpreadsheetID(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestFetchRowsCredentialErrors(t *testing.T) {
	ctx := context.Background()

	if _, err := New("").FetchRows(ctx, "abc"); !errors.Is(err, core.ErrCredentialMissing) {
		t.Fatalf("expected ErrCredentialMissing, got %v", err)
	}
	if _, err := New("{not json").FetchRows(ctx, "abc"); !errors.Is(err, core.ErrCredentialInvalid) {
		t.Fatalf("expected ErrCredentialInvalid, got %v", err)
	}
	if _, err := New("{}").FetchRows(ctx, ""); !errors.Is(err, core.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{fmt.Errorf("open: %w", &googleapi.Error{Code: http.StatusNotFound}), core.ErrRemoteNotFound},
		{&googleapi.Error{Code: http.StatusUnauthorized}, core.ErrCredentialInvalid},
		{&googleapi.Error{Code: http.StatusServiceUnavailable}, core.ErrRemoteTransient},
		{context.DeadlineExceeded, core.ErrRemoteTransient},
	}
	for _, tc := range cases {
		if got := classify(tc.err); !errors.Is(got, tc.want) {
			t.Fatalf("classify(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestQuoteSheetName(t *testing.T) {
	if got := quoteSheetName("Sales 'Q1'"); got != "'Sales ''Q1'''" {
		t.Fatalf("quoteSheetName = %q", got)
	}
}
