// Package timefmt formats report timestamps for display.
//
// Upstream timestamps arrive in several shapes: standard RFC 3339, RFC 3339
// with microsecond precision, and naive ISO timestamps without any offset.
// Everything here normalizes before parsing and degrades to a fixed string on
// bad input rather than failing.
package timefmt

import (
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"
)

// UnknownTime is returned for timestamps that cannot be parsed.
const UnknownTime = "Unknown time"

// naiveLayout parses ISO timestamps that carry no timezone offset.
// The upstream backend emits these in UTC.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Normalize truncates fractional seconds to millisecond precision,
// preserving any timezone offset suffix. Timestamps with three or fewer
// fractional digits pass through untouched.
func Normalize(ts string) string {
	dot := strings.IndexByte(ts, '.')
	if dot == -1 {
		return ts
	}

	rest := ts[dot+1:]
	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}

	if digits <= 3 {
		return ts
	}

	return ts[:dot+1] + rest[:3] + rest[digits:]
}

// Parse normalizes and parses a report timestamp. Naive timestamps (no
// offset, no Z) are interpreted as UTC.
func Parse(ts string) (time.Time, error) {
	normalized := Normalize(ts)

	if t, err := time.Parse(time.RFC3339, normalized); err == nil {
		return t, nil
	}

	if t, err := time.Parse(naiveLayout, normalized); err == nil {
		return t.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("unparseable timestamp %q", ts)
}

// Format renders a timestamp relative to now: "Just now" under a minute,
// then minutes, hours, and days, falling back to a date string after a week.
// Unparseable input yields UnknownTime and never panics.
func Format(ts string, now time.Time) string {
	t, err := Parse(ts)
	if err != nil {
		log.WithField("timestamp", ts).Debug("invalid timestamp")
		return UnknownTime
	}

	diff := now.Sub(t)
	mins := int(diff.Minutes())
	hours := int(diff.Hours())
	days := int(diff.Hours() / 24)

	switch {
	case mins < 1:
		return "Just now"
	case mins < 60:
		return fmt.Sprintf("%dm ago", mins)
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("1/2/2006")
	}
}

// FormatDetailed renders a timestamp as a full date and time for detail views.
func FormatDetailed(ts string) string {
	t, err := Parse(ts)
	if err != nil {
		return UnknownTime
	}
	return t.Format("Mon, Jan 2, 2006, 03:04 PM")
}
