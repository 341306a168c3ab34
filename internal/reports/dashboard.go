package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"posreports/internal/core"
)

// BillingCycleDay is the day of the month a billing cycle starts on.
const BillingCycleDay = 26

// CycleStart returns midnight of the billing cycle start containing now: the
// 26th of this month from the 26th onwards, otherwise the 26th of the
// previous month.
func CycleStart(now time.Time) time.Time {
	year, month, day := now.Date()
	if day < BillingCycleDay {
		if month == time.January {
			year--
			month = time.December
		} else {
			month--
		}
	}
	return time.Date(year, month, BillingCycleDay, 0, 0, 0, 0, now.Location())
}

// Dashboard computes revenue for today, the current billing cycle and the
// whole sheet. Rows need a parseable amount and invoice number to count;
// rows without a parseable date only count towards lifetime totals.
func (e *Engine) Dashboard(rows []core.Row) core.DashboardStats {
	now := e.now()
	today := civilDay(now)
	start := CycleStart(now)
	startDay := civilDay(start)

	var (
		periodRevenue   decimal.Decimal
		todayRevenue    decimal.Decimal
		lifetimeRevenue decimal.Decimal
	)
	periodInvoices := make(map[string]struct{})
	lifetimeInvoices := make(map[string]struct{})

	for _, row := range rows {
		amount := core.ParseAmount(row.Cell(core.ColAmount))
		key := core.ParseInvoiceKey(row.Cell(core.ColInvoice))
		if !amount.OK || !key.OK {
			continue
		}
		lifetimeRevenue = lifetimeRevenue.Add(amount.Value)
		lifetimeInvoices[key.Value] = struct{}{}

		ts, ok := e.rowTime(row, core.ColDate)
		if !ok {
			continue
		}
		day := civilDay(ts)
		if day == today {
			todayRevenue = todayRevenue.Add(amount.Value)
		}
		if day >= startDay && day <= today {
			periodRevenue = periodRevenue.Add(amount.Value)
			periodInvoices[key.Value] = struct{}{}
		}
	}

	average := decimal.Zero
	if n := len(periodInvoices); n > 0 {
		average = periodRevenue.Div(decimal.NewFromInt(int64(n)))
	}

	return core.DashboardStats{
		PeriodStart:          start.Format(time.DateOnly),
		PeriodEnd:            now.Format(time.DateOnly),
		PeriodRevenue:        core.FormatMoney(periodRevenue),
		PeriodInvoiceCount:   len(periodInvoices),
		AverageInvoice:       core.FormatMoney(average),
		TodayRevenue:         core.FormatMoney(todayRevenue),
		LifetimeRevenue:      core.FormatMoney(lifetimeRevenue),
		LifetimeInvoiceCount: len(lifetimeInvoices),
	}
}
