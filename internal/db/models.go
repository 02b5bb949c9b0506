package db

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/leozw/stream-meter/internal/core"
)

type Stream struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	URL       string    `json:"url" db:"url"`
	ChannelID string    `json:"channel_id" db:"channel_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MonitoringConfig is keyed by its stream. Time-of-day columns are kept as
// the HH:mm:ss text Postgres returns for TIME.
type MonitoringConfig struct {
	StreamID        int64      `json:"stream_id" db:"stream_id"`
	StartDate       *time.Time `json:"start_date" db:"start_date"`
	EndDate         *time.Time `json:"end_date" db:"end_date"`
	ManualStartTime *string    `json:"manual_start_time" db:"manual_start_time"`
	ManualEndTime   *string    `json:"manual_end_time" db:"manual_end_time"`
	ActualStartTime *string    `json:"actual_start_time" db:"actual_start_time"`
	ActualEndTime   *string    `json:"actual_end_time" db:"actual_end_time"`
	IntervalMinutes int        `json:"interval_minutes" db:"interval_minutes"`
	Active          bool       `json:"active" db:"active"`
	Weekdays        Weekdays   `json:"weekdays" db:"weekdays"`
	UseStreamTimes  bool       `json:"use_stream_times" db:"use_stream_times"`
}

// Interval is the delay between two measurements inside the window.
func (c *MonitoringConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// InDateRange reports whether day falls inside [StartDate, EndDate]. Dates
// are compared as calendar days; an unset bound is open.
func (c *MonitoringConfig) InDateRange(day time.Time) bool {
	d := dateKey(day)
	if c.StartDate != nil && d < dateKey(*c.StartDate) {
		return false
	}
	if c.EndDate != nil && d > dateKey(*c.EndDate) {
		return false
	}
	return true
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// StreamWithConfig is one row of the stream/config join. Config is nil when
// the stream has no configuration row.
type StreamWithConfig struct {
	Stream
	Config *MonitoringConfig `json:"config"`
}

type Measurement struct {
	ID                 int64     `json:"id" db:"id"`
	StreamID           int64     `json:"stream_id" db:"stream_id"`
	MeasuredOn         time.Time `json:"measured_on" db:"measured_on"`
	MeasuredAt         string    `json:"measured_at" db:"measured_at"`
	ChannelSubscribers int64     `json:"channel_subscribers" db:"channel_subscribers"`
	ChannelVideos      int64     `json:"channel_videos" db:"channel_videos"`
	ChannelViews       int64     `json:"channel_views" db:"channel_views"`
	VideoViews         int64     `json:"video_views" db:"video_views"`
	VideoLikes         int64     `json:"video_likes" db:"video_likes"`
	VideoComments      int64     `json:"video_comments" db:"video_comments"`
	ConcurrentViewers  *int64    `json:"concurrent_viewers" db:"concurrent_viewers"`
}

// MeasurementRow is a measurement joined with its stream name, as listed by
// the reporting endpoints.
type MeasurementRow struct {
	Measurement
	StreamName string `json:"stream_name" db:"stream_name"`
}

type MeasurementFilter struct {
	StreamID int64
	From     *time.Time
	To       *time.Time
	HourFrom string
	HourTo   string
}

// Weekdays is a set of ISO weekdays (1=Monday..7=Sunday) stored as "1,3,5".
// A nil set permits every day. A non-nil empty set comes from a stored value
// with no usable entry and permits none.
type Weekdays []int

func ParseWeekdays(s string) (Weekdays, error) {
	var w Weekdays
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 7 {
			return nil, fmt.Errorf("invalid weekday %q", p)
		}
		w = append(w, n)
	}
	return w, nil
}

func (w Weekdays) String() string {
	sorted := append([]int(nil), w...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, d := range sorted {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// Malformed reports a stored value that had entries but none usable.
func (w Weekdays) Malformed() bool {
	return w != nil && len(w) == 0
}

// Permits reports whether t's weekday is allowed.
func (w Weekdays) Permits(t time.Time) bool {
	if w == nil {
		return true
	}
	wd := core.ISOWeekday(t)
	for _, d := range w {
		if d == wd {
			return true
		}
	}
	return false
}

func (w Weekdays) Value() (driver.Value, error) {
	if len(w) == 0 {
		return nil, nil
	}
	return w.String(), nil
}

func (w *Weekdays) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case nil:
		*w = nil
		return nil
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return fmt.Errorf("unsupported weekdays type %T", value)
	}

	*w = scanWeekdays(s)
	return nil
}

// scanWeekdays keeps the valid entries of a stored value and drops the rest,
// so one bad row cannot fail a whole listing.
func scanWeekdays(s string) Weekdays {
	var out Weekdays
	seen := false
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		seen = true
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 7 {
			continue
		}
		out = append(out, n)
	}
	if seen && out == nil {
		return Weekdays{}
	}
	return out
}
