package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekdays(t *testing.T) {
	w, err := ParseWeekdays("5, 1,3")
	require.NoError(t, err)
	assert.Equal(t, "1,3,5", w.String())

	monday := time.Date(2024, 5, 13, 10, 0, 0, 0, time.UTC)
	assert.True(t, w.Permits(monday))
	assert.False(t, w.Permits(monday.AddDate(0, 0, 1)))
	assert.True(t, Weekdays(nil).Permits(monday.AddDate(0, 0, 1)))

	_, err = ParseWeekdays("0,8")
	assert.Error(t, err)

	var scanned Weekdays
	require.NoError(t, scanned.Scan([]byte("2,4")))
	assert.Equal(t, Weekdays{2, 4}, scanned)
	require.NoError(t, scanned.Scan(nil))
	assert.Nil(t, scanned)
}

func TestWeekdays_ScanMalformed(t *testing.T) {
	monday := time.Date(2024, 5, 13, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		stored    string
		want      Weekdays
		malformed bool
		monday    bool
	}{
		{name: "out of range entry dropped", stored: "1,9", want: Weekdays{1}, monday: true},
		{name: "names only", stored: "Lunes,Martes", want: Weekdays{}, malformed: true},
		{name: "mixed", stored: "Lunes,3", want: Weekdays{3}},
		{name: "blank", stored: " ", want: nil, monday: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w Weekdays
			require.NoError(t, w.Scan([]byte(tt.stored)))
			assert.Equal(t, tt.want, w)
			assert.Equal(t, tt.malformed, w.Malformed())
			assert.Equal(t, tt.monday, w.Permits(monday))
		})
	}
}

func TestInDateRange(t *testing.T) {
	art := time.FixedZone("ART", -3*60*60)
	start := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC)
	cfg := &MonitoringConfig{StartDate: &start, EndDate: &end}

	assert.False(t, cfg.InDateRange(time.Date(2024, 5, 9, 23, 0, 0, 0, art)))
	assert.True(t, cfg.InDateRange(time.Date(2024, 5, 10, 0, 30, 0, 0, art)))
	assert.True(t, cfg.InDateRange(time.Date(2024, 5, 12, 23, 59, 0, 0, art)))
	assert.False(t, cfg.InDateRange(time.Date(2024, 5, 13, 0, 0, 0, 0, art)))

	open := &MonitoringConfig{StartDate: &start}
	assert.True(t, open.InDateRange(time.Date(2030, 1, 1, 0, 0, 0, 0, art)))
}
