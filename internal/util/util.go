// Package util provides shared utilities: date parsing and comparison for
// the mixed ISO-8601 forms that variable metadata carries, and error
// aggregation.
package util

import (
	"fmt"
	"strings"
	"time"
)

// ─── Date Parsing ─────────────────────────────────────────────────────────────

const dateLayout = "2006-01-02"

// dateLayouts lists the accepted input forms, tried in order. Variable
// metadata mixes plain dates with full RFC 3339 timestamps.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	dateLayout,
}

// ParseDate parses a YYYY-MM-DD string into a time.Time (UTC midnight).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseAnyDate parses a date or datetime string in any accepted ISO form.
func ParseAnyDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected ISO-8601", s)
}

// FormatDate formats a time.Time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// NowISO returns the current UTC time in RFC 3339 form. History timestamps
// use this so that lexicographic order is chronological order.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ─── Date Comparison ──────────────────────────────────────────────────────────

// DateBefore reports whether a is strictly earlier than b. Unparseable or
// empty inputs compare false, so comparisons against missing metadata never
// clamp anything.
func DateBefore(a, b string) bool {
	ta, err := ParseAnyDate(a)
	if err != nil {
		return false
	}
	tb, err := ParseAnyDate(b)
	if err != nil {
		return false
	}
	return ta.Before(tb)
}

// DateAfter reports whether a is strictly later than b, with the same
// missing-metadata behavior as DateBefore.
func DateAfter(a, b string) bool {
	ta, err := ParseAnyDate(a)
	if err != nil {
		return false
	}
	tb, err := ParseAnyDate(b)
	if err != nil {
		return false
	}
	return ta.After(tb)
}

// ─── Error Helpers ────────────────────────────────────────────────────────────

// MultiError collects multiple errors and presents them as one.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}
