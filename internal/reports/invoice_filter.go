package reports

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"posreports/internal/core"
)

var ErrInvalidCriteria = errors.New("invalid filter criteria")

// Criteria narrows the advanced invoice filter. Zero values disable a bound.
type Criteria struct {
	DateFrom      *time.Time
	DateTo        *time.Time
	PaymentMethod string
	AmountMin     *decimal.Decimal
	AmountMax     *decimal.Decimal
	CustomerName  string
	CashierName   string
}

// ParseCriteria builds Criteria from textual request parameters. Dates use
// YYYY-MM-DD and are interpreted in loc.
func ParseCriteria(params map[string]string, loc *time.Location) (Criteria, error) {
	if loc == nil {
		loc = time.UTC
	}
	var c Criteria
	var problems []string

	parseDate := func(name string) *time.Time {
		v := strings.TrimSpace(params[name])
		if v == "" {
			return nil
		}
		t, err := time.ParseInLocation(time.DateOnly, v, loc)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s must be YYYY-MM-DD", name))
			return nil
		}
		return &t
	}
	parseAmount := func(name string) *decimal.Decimal {
		v := strings.TrimSpace(params[name])
		if v == "" {
			return nil
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s must be a number", name))
			return nil
		}
		return &d
	}

	c.DateFrom = parseDate("date_from")
	c.DateTo = parseDate("date_to")
	c.AmountMin = parseAmount("amount_min")
	c.AmountMax = parseAmount("amount_max")
	c.PaymentMethod = strings.TrimSpace(params["payment_method"])
	c.CustomerName = strings.TrimSpace(params["customer_name"])
	c.CashierName = strings.TrimSpace(params["cashier_name"])

	if len(problems) > 0 {
		return Criteria{}, fmt.Errorf("%w: %s", ErrInvalidCriteria, strings.Join(problems, "; "))
	}
	return c, nil
}

func (c Criteria) hasDateBounds() bool {
	return c.DateFrom != nil || c.DateTo != nil
}

func (c Criteria) filtersPayment() bool {
	return c.PaymentMethod != "" && !strings.EqualFold(c.PaymentMethod, "all")
}

// FilterInvoices returns one record per row satisfying every criterion.
// Records are sorted newest first when every one of them has a date, and
// otherwise keep source order.
func (e *Engine) FilterInvoices(rows []core.Row, c Criteria) []core.InvoiceRecord {
	out := []core.InvoiceRecord{}
	allDated := true

	for _, row := range rows {
		if !row.Has(core.MainRowWidth) {
			continue
		}
		amount := core.ParseAmount(row.Cell(core.ColAmount))
		if !amount.OK {
			continue
		}

		ts, dated := e.rowTime(row, core.ColDate)
		if c.hasDateBounds() {
			if !dated {
				continue
			}
			day := civilDay(ts)
			if c.DateFrom != nil && day < civilDay(*c.DateFrom) {
				continue
			}
			if c.DateTo != nil && day > civilDay(*c.DateTo) {
				continue
			}
		}

		rawMethod := row.Text(core.ColPaymentMethod)
		method := e.display.PaymentMethod(rawMethod)
		if c.filtersPayment() && !strings.EqualFold(rawMethod, c.PaymentMethod) && !strings.EqualFold(method, c.PaymentMethod) {
			continue
		}
		if c.AmountMin != nil && amount.Value.LessThan(*c.AmountMin) {
			continue
		}
		if c.AmountMax != nil && amount.Value.GreaterThan(*c.AmountMax) {
			continue
		}

		customer := row.Text(core.ColCustomerName)
		cashier := row.Text(core.ColCashier)
		if !containsFold(customer, c.CustomerName) || !containsFold(cashier, c.CashierName) {
			continue
		}

		rec := core.InvoiceRecord{
			Number:        invoiceNumber(row),
			Date:          e.display.UnspecifiedDate,
			PaymentMethod: method,
			Cashier:       cashier,
			CustomerName:  e.display.OrUnregistered(customer),
			CustomerPhone: e.display.OrUnregistered(row.Text(core.ColCustomerPhone)),
			Amount:        core.FormatFixed(amount.Value),
		}
		if dated {
			stamp := ts
			rec.Date = e.display.Timestamp(stamp)
			rec.Timestamp = &stamp
		} else {
			allDated = false
		}
		out = append(out, rec)
	}

	if allDated {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Timestamp.After(*out[j].Timestamp)
		})
	}
	return out
}

func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
