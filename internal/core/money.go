package core

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// FormatFixed renders an amount with exactly two decimals and no grouping,
// e.g. "1250.50".
func FormatFixed(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatMoney renders an amount with thousands separators and two decimals,
// e.g. "1,250.50". Rounding is half away from zero.
func FormatMoney(d decimal.Decimal) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	whole := d.Truncate(0)
	frac := d.Sub(whole).Shift(2).IntPart()
	return fmt.Sprintf("%s%s.%02d", sign, humanize.Comma(whole.IntPart()), frac)
}
