package transform

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// NormalizeText composes s to NFC, trims it and collapses whitespace runs to one space.
// Empty results are nil.
func NormalizeText(s string) *string {
	if v := clean(s); v != "" {
		return &v
	}
	return nil
}

func clean(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// NormalizeDate reduces a provider date to YYYY-MM-DD.
//
// A bare year becomes YYYY-01-01 and a year-month becomes YYYY-MM-01. Anything unparseable is nil.
func NormalizeDate(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)

	var out string
	switch {
	case v == "":
		return nil
	case len(v) == 4 && digits(v):
		out = v + "-01-01"
	case len(v) == 7 && v[4] == '-' && digits(v[:4]) && digits(v[5:]):
		t, err := time.Parse("2006-01", v)
		if err != nil {
			return nil
		}
		out = t.Format(time.DateOnly)
	default:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				out = t.Format(time.DateOnly)
				break
			}
		}
	}

	if out == "" {
		return nil
	}
	return &out
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
