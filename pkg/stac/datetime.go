package stac

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
)

// ErrInvalidDatetime is returned when a value is not an ISO-8601 date or date-time.
var ErrInvalidDatetime = errors.New("stac: invalid datetime")

// ParseDatetime parses an ISO-8601 date or date-time such as "2020-01-01" or
// "2020-01-01T01:01:01.5+02:00". Values without a zone are taken as UTC.
// The result is always in UTC.
func ParseDatetime(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidDatetime)
	}
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDatetime, value, err)
	}
	// a run of digits without separators lands in the year field
	if t.Year() > 9999 {
		return time.Time{}, fmt.Errorf("%w: %q: year out of range", ErrInvalidDatetime, value)
	}
	return t.UTC(), nil
}

// FormatDatetime renders t in UTC with a "Z" suffix. Sub-second precision is
// kept to the microsecond when present.
func FormatDatetime(t time.Time) string {
	t = t.UTC().Truncate(time.Microsecond)
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02T15:04:05Z")
	}
	return t.Format("2006-01-02T15:04:05.000000Z")
}
