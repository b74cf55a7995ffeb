package task

import (
	"errors"
	"strings"
	"time"
)

// CanonicalLayout is the text form every timestamp is normalised to,
// millisecond precision in UTC.
const CanonicalLayout = "2006-01-02T15:04:05.000Z07:00"

// Layouts accepted from backends. Fractional seconds are accepted by
// time.Parse after the seconds field even when the layout omits them.
var acceptedLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z07",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func ParseTimestamp(field, value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, &ParseError{Field: field, Value: value, Err: errors.New("empty timestamp")}
	}
	var lastErr error
	for _, layout := range acceptedLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, &ParseError{Field: field, Value: value, Err: lastErr}
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(CanonicalLayout)
}

// Canonical drops everything the canonical text form cannot carry.
func Canonical(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
