package capxml

import (
	"fmt"
	"regexp"
	"time"
)

// timestampLayout is the CAP-mandated timestamp format: colon-separated
// UTC offset, no fractional seconds, no "Z" shorthand.
const timestampLayout = "2006-01-02T15:04:05-07:00"

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}[+-]\d{2}:\d{2}$`)

// parseTimestamp parses s under the fixed CAP format, rejecting anything
// that does not match the required shape even if time.Parse would
// otherwise accept a looser variant (e.g. fractional seconds or "Z").
func parseTimestamp(s string) (time.Time, error) {
	if !timestampPattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrBadTimestamp, s, err)
	}
	return t, nil
}

// FormatTimestamp renders t in the CAP-mandated format.
func FormatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}
