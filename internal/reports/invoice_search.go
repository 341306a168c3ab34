package reports

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"posreports/internal/core"
)

const (
	SearchByInvoice SearchType = "invoice"
	SearchByPhone   SearchType = "phone"
)

type SearchType string

var ErrInvalidSearchType = errors.New("invalid search type")

// ParseSearchType accepts "invoice" or "phone". Empty means invoice.
func ParseSearchType(s string) (SearchType, error) {
	switch st := SearchType(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return SearchByInvoice, nil
	case SearchByInvoice, SearchByPhone:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSearchType, s)
}

func (st SearchType) column() int {
	if st == SearchByPhone {
		return core.ColCustomerPhone
	}
	return core.ColInvoice
}

type invoiceTotal struct {
	agg   core.InvoiceAggregate
	total decimal.Decimal
}

// SearchInvoices returns one aggregate per invoice with at least one row
// matching query in the searched column. Aggregates keep the order in which
// their invoice was first seen; totals sum every matching row's amount.
func (e *Engine) SearchInvoices(rows []core.Row, query string, st SearchType) []core.InvoiceAggregate {
	query = strings.TrimSpace(query)
	if query == "" {
		return []core.InvoiceAggregate{}
	}

	col := st.column()
	byKey := make(map[string]*invoiceTotal)
	var order []string

	for _, row := range rows {
		if len(row) <= col {
			continue
		}
		if !matchesQuery(row.Text(col), query, st) {
			continue
		}

		key := invoiceNumber(row)
		it, ok := byKey[key]
		if !ok {
			it = &invoiceTotal{agg: e.newAggregate(key, row)}
			byKey[key] = it
			order = append(order, key)
		}
		if amount := core.ParseAmount(row.Cell(core.ColAmount)); amount.OK {
			it.total = it.total.Add(amount.Value)
		}
	}

	out := make([]core.InvoiceAggregate, 0, len(order))
	for _, key := range order {
		it := byKey[key]
		it.agg.Total = core.FormatFixed(it.total)
		out = append(out, it.agg)
	}
	return out
}

// matchesQuery applies the match cascade: exact text, equality once a
// trailing ".0" is dropped, numeric equality, and for phone searches
// substring containment.
func matchesQuery(cell, query string, st SearchType) bool {
	if cell == "" {
		return false
	}
	if cell == query {
		return true
	}
	if strings.TrimSuffix(cell, ".0") == strings.TrimSuffix(query, ".0") {
		return true
	}
	if a, err := strconv.ParseFloat(cell, 64); err == nil {
		if b, err := strconv.ParseFloat(query, 64); err == nil && a == b {
			return true
		}
	}
	return st == SearchByPhone && strings.Contains(cell, query)
}

func (e *Engine) newAggregate(key string, row core.Row) core.InvoiceAggregate {
	d := e.display
	date, _ := e.displayDate(row)

	agg := core.InvoiceAggregate{
		Number:        key,
		Date:          date,
		PaymentMethod: d.Unavailable,
		Cashier:       d.Unavailable,
		CustomerName:  d.OrUnregistered(row.Text(core.ColCustomerName)),
		CustomerPhone: d.OrUnregistered(row.Text(core.ColCustomerPhone)),
		Items:         row.Text(core.ColItems),
		Discount:      "0",
		VAT:           "0",
		TaxID:         d.Unavailable,
	}
	if len(row) > core.ColPaymentMethod {
		agg.PaymentMethod = d.PaymentMethod(row.Text(core.ColPaymentMethod))
	}
	if len(row) > core.ColCashier {
		agg.Cashier = row.Text(core.ColCashier)
	}
	if len(row) > core.ColDiscount {
		agg.Discount = row.Text(core.ColDiscount)
	}
	if len(row) > core.ColVAT {
		agg.VAT = row.Text(core.ColVAT)
	}
	if len(row) > core.ColTaxID {
		agg.TaxID = row.Text(core.ColTaxID)
	}
	return agg
}
