package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"posreports/internal/core"
	ports "posreports/internal/sheets"
)

// Source is an in-memory RowSource keyed by locator. It backs local
// development and tests.
type Source struct {
	mu     sync.Mutex
	sheets map[string][][]any
	errs   map[string]error
	calls  map[string]int
}

var _ ports.RowSource = (*Source)(nil)

func New() *Source {
	return &Source{
		sheets: make(map[string][][]any),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

// NewFromFiles loads every "<name>.csv" file in dir as the sheet with locator
// "<name>". A missing directory yields an empty source.
func NewFromFiles(dir string) (*Source, error) {
	s := New()
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list seed files: %w", err)
	}
	for _, path := range matches {
		rows, err := readCSV(path)
		if err != nil {
			return nil, err
		}
		s.Put(strings.TrimSuffix(filepath.Base(path), ".csv"), rows)
	}
	return s, nil
}

// Put replaces the rows (header included) served for locator.
func (s *Source) Put(locator string, rows [][]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets[locator] = rows
	delete(s.errs, locator)
}

// Fail makes every fetch of locator return err until the next Put.
func (s *Source) Fail(locator string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[locator] = err
}

// Calls returns how many times locator was fetched.
func (s *Source) Calls(locator string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[locator]
}

func (s *Source) FetchRows(ctx context.Context, locator string) ([][]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrRemoteTransient, err)
	}
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return nil, fmt.Errorf("%w: empty spreadsheet locator", core.ErrConfigurationMissing)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[locator]++

	if err := s.errs[locator]; err != nil {
		return nil, err
	}
	rows, ok := s.sheets[locator]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrRemoteNotFound, locator)
	}
	out := make([][]any, len(rows))
	for i, row := range rows {
		out[i] = append([]any(nil), row...)
	}
	return out, nil
}

func readCSV(path string) ([][]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", filepath.Base(path), err)
	}
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row := make([]any, len(rec))
		for i, v := range rec {
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
