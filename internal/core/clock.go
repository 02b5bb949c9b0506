package core

import "time"

// Clock is the reference clock for everything that compares dates or
// wall-clock times. All values it returns are in Location().
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type zoneClock struct {
	loc *time.Location
}

func NewClock(loc *time.Location) Clock {
	return zoneClock{loc: loc}
}

func (c zoneClock) Now() time.Time           { return time.Now().In(c.loc) }
func (c zoneClock) Location() *time.Location { return c.loc }

// Today truncates t to midnight of its calendar day in t's location.
func Today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// OnDate returns hour:min:sec on day's calendar date, in day's location.
func OnDate(day time.Time, hour, min, sec int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, min, sec, 0, day.Location())
}

// ISOWeekday maps time.Weekday onto 1=Monday..7=Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
