package domain

import (
	"fmt"
	"strings"
	"time"
)

var unzonedLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseServerTime reads the API's timestamps. Zoned values keep their
// offset; unzoned values (the server stores naive datetimes) are UTC.
func ParseServerTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	s = strings.Replace(s, " ", "T", 1)

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range unzonedLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// FormatServerTime renders t the way the API accepts it on input.
func FormatServerTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
