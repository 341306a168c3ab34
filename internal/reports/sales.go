package reports

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"posreports/internal/core"
)

const (
	PeriodAll      Period = "all"
	PeriodDay      Period = "day"
	PeriodWeek     Period = "week"
	PeriodTwoWeeks Period = "2weeks"
	PeriodMonth    Period = "month"
)

type Period string

var ErrInvalidPeriod = errors.New("invalid period")

var periodDays = map[Period]int{
	PeriodDay:      1,
	PeriodWeek:     7,
	PeriodTwoWeeks: 14,
	PeriodMonth:    30,
}

// ParsePeriod accepts all, day, week, 2weeks or month. Empty means all.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if p == "" || p == PeriodAll {
		return PeriodAll, nil
	}
	if _, ok := periodDays[p]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

// Start returns the earliest instant included in the window ending at now.
// The second result is false for the unbounded period.
func (p Period) Start(now time.Time) (time.Time, bool) {
	days, ok := periodDays[p]
	if !ok {
		return time.Time{}, false
	}
	return now.Add(-time.Duration(days) * 24 * time.Hour), true
}

// AnalyzeSales sums item quantities over the rows dated inside period and
// returns them sorted by quantity, largest first. Rows without a parseable
// date, item code or quantity are skipped.
func (e *Engine) AnalyzeSales(rows []core.Row, period Period) []core.ItemSummary {
	start, bounded := period.Start(e.now())

	byCode := make(map[string]*core.ItemSummary)
	var order []*core.ItemSummary

	for _, row := range rows {
		if !row.Has(core.SalesRowWidth) {
			continue
		}
		ts, ok := e.rowTime(row, core.SalesColDate)
		if !ok {
			continue
		}
		if bounded && ts.Before(start) {
			continue
		}
		code := row.Text(core.SalesColItemCode)
		if code == "" {
			continue
		}
		qty := core.ParseQuantity(row.Cell(core.SalesColQuantity))
		if !qty.OK {
			continue
		}

		it, ok := byCode[code]
		if !ok {
			it = &core.ItemSummary{
				ItemCode:    code,
				Description: row.Text(core.SalesColDescription),
			}
			byCode[code] = it
			order = append(order, it)
		}
		it.Quantity += qty.Value
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].Quantity > order[j].Quantity
	})

	out := make([]core.ItemSummary, 0, len(order))
	for _, it := range order {
		out = append(out, *it)
	}
	return out
}
