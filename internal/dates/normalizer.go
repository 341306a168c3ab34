// Package dates turns the free-form date cells found in the point-of-sale
// spreadsheets into time values.
//
// The registers export timestamps as "15-JUN-25 05.10.52 PM", optionally
// followed by a "+02:00" style offset. Anything else is handed to a fuzzy
// parser. Parsing never fails loudly: unparseable text is simply absent.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
)

var registerLayout = regexp.MustCompile(`(?i)^(\d{2})-([a-z]{3})-(\d{2})\s+(\d{2})\.(\d{2})\.(\d{2})\s+(AM|PM)$`)

// Normalizer parses date cells in a fixed location.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer returns a Normalizer interpreting zone-less text in loc.
// A nil loc means UTC.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

// Location returns the location zone-less text is interpreted in.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Parse converts text to a time. The second result is false when the text is
// blank or cannot be understood.
func (n *Normalizer) Parse(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	if i := strings.IndexByte(text, '+'); i >= 0 {
		text = strings.TrimSpace(text[:i])
		if text == "" {
			return time.Time{}, false
		}
	}

	if m := registerLayout.FindStringSubmatch(text); m != nil {
		return n.parseRegister(m)
	}

	parsed, ok := n.fuzzy(text)
	if !ok {
		return time.Time{}, false
	}
	return parsed.In(n.loc), true
}

// fuzzy tries the whole text first, then each date-looking word, then the
// text from its first digit, so labels around a date are ignored.
func (n *Normalizer) fuzzy(text string) (time.Time, bool) {
	if t, ok := n.parseEither(text); ok {
		return t, true
	}
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ",;()[]")
		if word == text || !dateLike(word) {
			continue
		}
		if t, ok := n.parseEither(word); ok {
			return t, true
		}
	}
	if i := strings.IndexFunc(text, unicode.IsDigit); i > 0 && dateLike(text[i:]) {
		return n.parseEither(text[i:])
	}
	return time.Time{}, false
}

// parseEither reads ambiguous numeric dates month first and falls back to day
// first, so 06/15/2025 and 15/06/2025 both resolve.
func (n *Normalizer) parseEither(text string) (t time.Time, ok bool) {
	// dateparse can panic on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			t, ok = time.Time{}, false
		}
	}()

	if t, err := dateparse.ParseIn(text, n.loc); err == nil {
		return t, true
	}
	if t, err := dateparse.ParseIn(text, n.loc, dateparse.PreferMonthFirst(false)); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// dateLike reports whether word has a digit and a date or time separator.
// Bare numbers are left alone so "Invoice 2025" does not become a date.
func dateLike(word string) bool {
	return strings.IndexFunc(word, unicode.IsDigit) >= 0 && strings.ContainsAny(word, "-/.:")
}

// parseRegister handles the register export layout. A match whose fields are
// out of range is absent; it is not retried with the fuzzy parser.
func (n *Normalizer) parseRegister(m []string) (time.Time, bool) {
	hour, err := strconv.Atoi(m[4])
	if err != nil {
		return time.Time{}, false
	}
	switch strings.ToUpper(m[7]) {
	case "PM":
		if hour != 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	}
	month := strings.ToUpper(m[2][:1]) + strings.ToLower(m[2][1:])
	value := fmt.Sprintf("%s-%s-%s %02d:%s:%s", m[1], month, m[3], hour, m[5], m[6])
	t, err := time.ParseInLocation("02-Jan-06 15:04:05", value, n.loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
