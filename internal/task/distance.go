package task

import (
	"fmt"
	"math"
	"time"
)

const (
	minutesInDay          = 1440
	minutesInAlmostTwoDay = 2520
	minutesInMonth        = 43200
	minutesInTwoMonths    = 86400
)

// FormatDistance renders the gap between a and b in words, the same
// buckets a person would use: "less than a minute", "about 2 hours",
// "3 days", "over 1 year". Order of the arguments does not matter.
func FormatDistance(a, b time.Time) string {
	if a.After(b) {
		a, b = b, a
	}
	seconds := math.Floor(b.Sub(a).Seconds())
	minutes := int(math.Round(seconds / 60))

	switch {
	case minutes < 2:
		if minutes == 0 {
			return "less than a minute"
		}
		return "1 minute"
	case minutes < 45:
		return fmt.Sprintf("%d minutes", minutes)
	case minutes < 90:
		return "about 1 hour"
	case minutes < minutesInDay:
		return plural("about %d hours", "about 1 hour", roundDiv(minutes, 60))
	case minutes < minutesInAlmostTwoDay:
		return "1 day"
	case minutes < minutesInMonth:
		return plural("%d days", "1 day", roundDiv(minutes, minutesInDay))
	case minutes < minutesInTwoMonths:
		return plural("about %d months", "about 1 month", roundDiv(minutes, minutesInMonth))
	}

	months := monthsBetween(a, b)
	if months < 12 {
		return plural("%d months", "1 month", roundDiv(minutes, minutesInMonth))
	}
	years := months / 12
	switch rem := months % 12; {
	case rem < 3:
		return plural("about %d years", "about 1 year", years)
	case rem < 9:
		return plural("over %d years", "over 1 year", years)
	default:
		return plural("almost %d years", "almost 1 year", years+1)
	}
}

// monthsBetween counts whole calendar months from a to b (a <= b).
func monthsBetween(a, b time.Time) int {
	a, b = a.UTC(), b.UTC()
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if months > 0 && b.AddDate(0, -months, 0).Before(a) {
		months--
	}
	return months
}

func roundDiv(n, d int) int {
	return int(math.Round(float64(n) / float64(d)))
}

func plural(many, one string, n int) string {
	if n == 1 {
		return one
	}
	return fmt.Sprintf(many, n)
}
