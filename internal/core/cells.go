package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Parsed is the outcome of a try-parse on a single cell. OK is false when the
// cell could not be interpreted; callers decide whether that skips the row or
// only the field.
type Parsed[T any] struct {
	Value T
	OK    bool
}

func parsed[T any](v T) Parsed[T] {
	return Parsed[T]{Value: v, OK: true}
}

// CellText renders a cell as trimmed text. Whole-valued floats render without
// a fractional part ("1001"), others with the shortest exact representation.
func CellText(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(c)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(c), 'f', -1, 32)
	case int:
		return strconv.Itoa(c)
	case int64:
		return strconv.FormatInt(c, 10)
	case json.Number:
		return c.String()
	case bool:
		return strconv.FormatBool(c)
	default:
		return strings.TrimSpace(fmt.Sprint(c))
	}
}

// ParseNumber interprets a cell as a finite float.
func ParseNumber(v any) Parsed[float64] {
	var f float64
	switch c := v.(type) {
	case float64:
		f = c
	case float32:
		f = float64(c)
	case int:
		f = float64(c)
	case int64:
		f = float64(c)
	case json.Number:
		n, err := c.Float64()
		if err != nil {
			return Parsed[float64]{}
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return Parsed[float64]{}
		}
		f = n
	default:
		return Parsed[float64]{}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Parsed[float64]{}
	}
	return parsed(f)
}

// ParseAmount interprets a cell as a monetary amount. Text cells are read
// exactly; numeric cells go through their shortest decimal representation.
func ParseAmount(v any) Parsed[decimal.Decimal] {
	switch c := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(c))
		if err != nil {
			return Parsed[decimal.Decimal]{}
		}
		return parsed(d)
	case json.Number:
		d, err := decimal.NewFromString(c.String())
		if err != nil {
			return Parsed[decimal.Decimal]{}
		}
		return parsed(d)
	}
	n := ParseNumber(v)
	if !n.OK {
		return Parsed[decimal.Decimal]{}
	}
	return parsed(decimal.NewFromFloat(n.Value))
}

// ParseInvoiceKey normalises an invoice cell to its integer text, so that
// "1001", "1001.0" and 1001.0 all yield "1001". Fractions are truncated.
func ParseInvoiceKey(v any) Parsed[string] {
	n := ParseNumber(v)
	if !n.OK {
		return Parsed[string]{}
	}
	t := math.Trunc(n.Value)
	if t >= math.MaxInt64 || t < math.MinInt64 {
		return Parsed[string]{}
	}
	return parsed(strconv.FormatInt(int64(t), 10))
}

// ParseQuantity interprets a quantity cell, accepting a comma decimal separator.
func ParseQuantity(v any) Parsed[float64] {
	if s, ok := v.(string); ok {
		return ParseNumber(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	}
	return ParseNumber(v)
}
