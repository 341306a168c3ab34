package dates

import (
	"testing"
	"time"
)

func TestParseRegisterLayout(t *testing.T) {
	n := NewNormalizer(time.UTC)
	cases := []struct {
		in   string
		want time.Time
	}{
		{"15-JUN-25 05.10.52 PM", time.Date(2025, time.June, 15, 17, 10, 52, 0, time.UTC)},
		{"15-jun-25 05.10.52 pm", time.Date(2025, time.June, 15, 17, 10, 52, 0, time.UTC)},
		{"01-JAN-25 12.00.00 AM", time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"01-JAN-25 12.30.00 PM", time.Date(2025, time.January, 1, 12, 30, 0, 0, time.UTC)},
		{"15-JUN-25 05.10.52 PM +02:00", time.Date(2025, time.June, 15, 17, 10, 52, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, ok := n.Parse(tc.in)
		if !ok {
			t.Fatalf("Parse(%q) returned absent", tc.in)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseAbsent(t *testing.T) {
	n := NewNormalizer(time.UTC)
	for _, in := range []string{
		"",
		"   ",
		"garbage",
		"+05:00",
		"31-FEB-25 05.10.52 PM",
		"15-XYZ-25 05.10.52 PM",
		"15-JUN-25 13.10.52 PM",
	} {
		if got, ok := n.Parse(in); ok {
			t.Fatalf("Parse(%q) = %v, want absent", in, got)
		}
	}
}

func TestParseFuzzyFallback(t *testing.T) {
	n := NewNormalizer(time.UTC)
	got, ok := n.Parse("2025-06-15 17:10:52")
	if !ok {
		t.Fatalf("expected ISO timestamp to parse")
	}
	want := time.Date(2025, time.June, 15, 17, 10, 52, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	for _, in := range []string{
		"2025-06-15",
		"15/06/2025",
		"06/15/2025",
		"Date: 2025-06-15",
		"sold on 15/06/2025 by cashier",
	} {
		got, ok = n.Parse(in)
		if !ok || got.Year() != 2025 || got.Month() != time.June || got.Day() != 15 {
			t.Fatalf("Parse(%q) = %v, %v", in, got, ok)
		}
	}

	if got, ok := n.Parse("03/04/2025"); !ok || got.Month() != time.March || got.Day() != 4 {
		t.Fatalf("ambiguous dates read month first, got %v, %v", got, ok)
	}
	if got, ok := n.Parse("Invoice 2025"); ok {
		t.Fatalf("bare number picked out of text: %v", got)
	}
}

func TestParseConvertsExplicitZonesToLocation(t *testing.T) {
	loc := time.FixedZone("EET", 2*60*60)
	n := NewNormalizer(loc)
	for _, in := range []string{"2025-06-14T22:30:00Z", "2025-06-14T17:30:00-05:00"} {
		got, ok := n.Parse(in)
		if !ok {
			t.Fatalf("Parse(%q) returned absent", in)
		}
		if got.Location() != loc || got.Day() != 15 || got.Hour() != 0 || got.Minute() != 30 {
			t.Fatalf("Parse(%q) = %v, want 2025-06-15 00:30 EET", in, got)
		}
	}
}

func TestParseUsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("EET", 2*60*60)
	n := NewNormalizer(loc)
	got, ok := n.Parse("15-JUN-25 05.10.52 PM")
	if !ok {
		t.Fatalf("expected parse")
	}
	if got.Location() != loc || got.Hour() != 17 {
		t.Fatalf("got %v in %v", got, got.Location())
	}
	if n.Location() != loc {
		t.Fatalf("Location() = %v", n.Location())
	}
}
