package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	SheetMain  SheetType = "main"
	SheetSales SheetType = "sales"
)

// Column layout of a "main" (invoice) row.
const (
	ColDate = iota
	ColInvoice
	ColAmount
	ColPaymentMethod
	ColCashier
	ColCustomerName
	ColCustomerPhone
	ColItems
	ColDiscount
	ColVAT
	ColTaxID

	// MainRowWidth is the number of leading columns every complete invoice row carries.
	MainRowWidth = ColCustomerPhone + 1
)

// Column layout of a "sales" (line item) row.
const (
	SalesColDate = iota
	SalesColItemCode
	SalesColDescription
	SalesColQuantity

	SalesRowWidth = SalesColQuantity + 1
)

type (
	SheetType string

	// Row is one spreadsheet row as returned by the remote source. Cells are
	// untyped: strings, float64 numbers, or nil.
	Row []any

	Snapshot struct {
		SheetType  SheetType `json:"sheet_type"`
		CapturedAt time.Time `json:"captured_at"`
		Rows       []Row     `json:"rows"`
	}

	// InvoiceAggregate groups every row sharing an invoice key. Metadata comes
	// from the first row seen for the key.
	InvoiceAggregate struct {
		Number        string `json:"number"`
		Date          string `json:"date"`
		PaymentMethod string `json:"payment_method"`
		Cashier       string `json:"cashier"`
		CustomerName  string `json:"customer_name"`
		CustomerPhone string `json:"customer_phone"`
		Items         string `json:"items"`
		Discount      string `json:"discount"`
		VAT           string `json:"vat"`
		TaxID         string `json:"tax_id"`
		Total         string `json:"total"`
	}

	// InvoiceRecord is one row matched by the advanced filter.
	InvoiceRecord struct {
		Number        string     `json:"number"`
		Date          string     `json:"date"`
		Timestamp     *time.Time `json:"timestamp,omitempty"`
		PaymentMethod string     `json:"payment_method"`
		Cashier       string     `json:"cashier"`
		CustomerName  string     `json:"customer_name"`
		CustomerPhone string     `json:"customer_phone"`
		Amount        string     `json:"amount"`
	}

	ItemSummary struct {
		ItemCode    string  `json:"item_code"`
		Description string  `json:"description"`
		Quantity    float64 `json:"quantity"`
	}

	DashboardStats struct {
		PeriodStart          string `json:"period_start"`
		PeriodEnd            string `json:"period_end"`
		PeriodRevenue        string `json:"period_revenue"`
		PeriodInvoiceCount   int    `json:"period_invoice_count"`
		AverageInvoice       string `json:"average_invoice"`
		TodayRevenue         string `json:"today_revenue"`
		LifetimeRevenue      string `json:"lifetime_revenue"`
		LifetimeInvoiceCount int    `json:"lifetime_invoice_count"`
	}
)

var (
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrCredentialMissing    = errors.New("credential missing")
	ErrCredentialInvalid    = errors.New("credential invalid")
	ErrRemoteNotFound       = errors.New("remote spreadsheet not found")
	ErrRemoteTransient      = errors.New("remote spreadsheet unavailable")
	ErrStaleSnapshot        = errors.New("snapshot is not newer than the stored one")
	ErrInvalidSheetType     = errors.New("invalid sheet type")
)

// SheetTypes lists every known sheet type in refresh order.
func SheetTypes() []SheetType {
	return []SheetType{SheetMain, SheetSales}
}

func (s SheetType) IsValid() bool {
	switch s {
	case SheetMain, SheetSales:
		return true
	}
	return false
}

func (s SheetType) String() string {
	return string(s)
}

// ParseSheetType accepts a single sheet type name. Matching is case-insensitive.
func ParseSheetType(s string) (SheetType, error) {
	st := SheetType(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSheetType, s)
	}
	return st, nil
}

// ParseSheetSelection expands "all" (or an empty selection) to every sheet type.
func ParseSheetSelection(s string) ([]SheetType, error) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	if trimmed == "" || trimmed == "all" {
		return SheetTypes(), nil
	}
	st, err := ParseSheetType(trimmed)
	if err != nil {
		return nil, err
	}
	return []SheetType{st}, nil
}

// Cell returns the cell at index i, or nil when the row is too short.
func (r Row) Cell(i int) any {
	if i < 0 || i >= len(r) {
		return nil
	}
	return r[i]
}

// Has reports whether the row carries at least width cells.
func (r Row) Has(width int) bool {
	return len(r) >= width
}

// Text returns the trimmed text of the cell at index i.
func (r Row) Text(i int) string {
	return CellText(r.Cell(i))
}

func (s Snapshot) Validate() error {
	if !s.SheetType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidSheetType, s.SheetType)
	}
	if s.CapturedAt.IsZero() {
		return errors.New("snapshot capture time cannot be zero")
	}
	return nil
}
