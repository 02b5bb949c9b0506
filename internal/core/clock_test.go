package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockUsesLocation(t *testing.T) {
	loc := time.FixedZone("ART", -3*60*60)
	c := NewClock(loc)

	assert.Equal(t, loc, c.Location())
	assert.Equal(t, loc, c.Now().Location())
}

func TestToday(t *testing.T) {
	loc := time.FixedZone("ART", -3*60*60)
	now := time.Date(2024, 5, 10, 23, 59, 30, 0, loc)

	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, loc), Today(now))
	assert.Equal(t, time.Date(2024, 5, 10, 9, 15, 0, 0, loc), OnDate(now, 9, 15, 0))
}

func TestISOWeekday(t *testing.T) {
	sunday := time.Date(2024, 5, 12, 12, 0, 0, 0, time.UTC)
	monday := sunday.AddDate(0, 0, 1)

	assert.Equal(t, 7, ISOWeekday(sunday))
	assert.Equal(t, 1, ISOWeekday(monday))
}
