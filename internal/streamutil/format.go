package streamutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DisplayDateLayout = "02/01/2006"
	DisplayTimeLayout = "15:04"
	ClockLayout       = "15:04:05"
	DateLayout        = "2006-01-02"

	// MissingValue is rendered for counters the provider did not report.
	MissingValue = "—"
)

// Clock is a wall-clock time of day with second precision.
type Clock struct {
	Hour, Minute, Second int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// ParseClock accepts HH:mm or HH:mm:ss. Postgres TIME values with a
// fractional part are accepted and truncated.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Clock{}, fmt.Errorf("invalid time %q: want HH:mm[:ss]", s)
	}

	vals := [3]int{}
	limits := [3]int{23, 59, 59}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return Clock{}, fmt.Errorf("invalid time %q", s)
		}
		vals[i] = n
	}

	return Clock{Hour: vals[0], Minute: vals[1], Second: vals[2]}, nil
}

// ClockOf returns the wall-clock part of t.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// ParseDisplayDate parses DD/MM/YYYY in loc.
func ParseDisplayDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DisplayDateLayout, strings.TrimSpace(s), loc)
}

func FormatDate(t time.Time) string {
	return t.Format(DisplayDateLayout)
}

// FormatClock renders a stored HH:mm:ss value as HH:mm. Unparsable input is
// returned unchanged.
func FormatClock(s string) string {
	c, err := ParseClock(s)
	if err != nil {
		return s
	}
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// FormatViewers keeps "not reported" distinct from zero.
func FormatViewers(v *int64) string {
	if v == nil {
		return MissingValue
	}
	return strconv.FormatInt(*v, 10)
}
