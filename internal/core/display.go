package core

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Display holds the presentation conventions applied to report output. It is
// read-only after construction and safe to share between goroutines.
type Display struct {
	PaymentMethods  map[string]string
	MonthNames      map[time.Month]string
	Morning         string
	Evening         string
	Unavailable     string
	Unregistered    string
	UnspecifiedDate string
}

// DefaultDisplay returns the Arabic presentation used by the shop front.
func DefaultDisplay() Display {
	return Display{
		PaymentMethods: map[string]string{
			"udf4":  "VODAFONE",
			"udf19": "B-M",
			"udf2":  "CIB-H",
			"udf30": "INSTAPAY",
			"udf10": "VALU",
			"udf27": "FORSA",
			"udf29": "CONTACT",
			"udf20": "CIB POINTS",
			"udf26": "SOUHOOLA",
			"udf5":  "CARCIB",
			"cash":  "نقداً",
		},
		MonthNames: map[time.Month]string{
			time.January:   "يناير",
			time.February:  "فبراير",
			time.March:     "مارس",
			time.April:     "أبريل",
			time.May:       "مايو",
			time.June:      "يونيو",
			time.July:      "يوليو",
			time.August:    "أغسطس",
			time.September: "سبتمبر",
			time.October:   "أكتوبر",
			time.November:  "نوفمبر",
			time.December:  "ديسمبر",
		},
		Morning:         "صباحًا",
		Evening:         "مساءً",
		Unavailable:     "غير متوفر",
		Unregistered:    "غير مسجل",
		UnspecifiedDate: "تاريخ غير محدد",
	}
}

// PaymentMethod maps a raw payment code to its display name. Unknown codes
// are returned lower-cased with the first letter upper-cased.
func (d Display) PaymentMethod(raw string) string {
	code := strings.ToLower(strings.TrimSpace(raw))
	if name, ok := d.PaymentMethods[code]; ok {
		return name
	}
	return capitalize(code)
}

// Timestamp renders t as "DD <month> YYYY | hh:mm:ss <period>" on a 12-hour clock.
func (d Display) Timestamp(t time.Time) string {
	month, ok := d.MonthNames[t.Month()]
	if !ok {
		month = t.Format("Jan")
	}
	period := d.Morning
	if t.Hour() >= 12 {
		period = d.Evening
	}
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%02d %s %d | %02d:%02d:%02d %s",
		t.Day(), month, t.Year(), hour, t.Minute(), t.Second(), period)
}

// OrUnregistered returns s, or the unregistered placeholder when s is blank.
func (d Display) OrUnregistered(s string) string {
	if s == "" {
		return d.Unregistered
	}
	return s
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
