// Package reports computes invoice, sales and dashboard views over the rows
// of the point-of-sale spreadsheets. Every function is pure over its input:
// rows are never modified and no I/O happens here.
package reports

import (
	"time"

	"posreports/internal/core"
	"posreports/internal/dates"
)

// Engine bundles the date normalizer, display conventions and clock shared by
// every report.
type Engine struct {
	dates   *dates.Normalizer
	display core.Display
	now     func() time.Time
}

// NewEngine builds an Engine. A nil now uses time.Now in the normalizer's location.
func NewEngine(normalizer *dates.Normalizer, display core.Display, now func() time.Time) *Engine {
	if normalizer == nil {
		normalizer = dates.NewNormalizer(time.UTC)
	}
	if now == nil {
		loc := normalizer.Location()
		now = func() time.Time { return time.Now().In(loc) }
	}
	return &Engine{dates: normalizer, display: display, now: now}
}

// Display returns the presentation conventions in use.
func (e *Engine) Display() core.Display {
	return e.display
}

// Location is the time zone dates are interpreted in.
func (e *Engine) Location() *time.Location {
	return e.dates.Location()
}

func (e *Engine) rowTime(row core.Row, col int) (time.Time, bool) {
	return e.dates.Parse(row.Text(col))
}

// displayDate renders the date cell in display form, or returns the raw text
// when it cannot be parsed.
func (e *Engine) displayDate(row core.Row) (string, *time.Time) {
	raw := row.Text(core.ColDate)
	t, ok := e.dates.Parse(raw)
	if !ok {
		return raw, nil
	}
	return e.display.Timestamp(t), &t
}

// invoiceNumber returns the normalised invoice key, falling back to the cell text.
func invoiceNumber(row core.Row) string {
	if key := core.ParseInvoiceKey(row.Cell(core.ColInvoice)); key.OK {
		return key.Value
	}
	return row.Text(core.ColInvoice)
}

// civilDay collapses t to a comparable yyyymmdd integer in its own location.
func civilDay(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
