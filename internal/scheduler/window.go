package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leozw/stream-meter/internal/core"
	"github.com/leozw/stream-meter/internal/db"
	"github.com/leozw/stream-meter/internal/streamutil"
	"github.com/leozw/stream-meter/internal/youtube"
)

// Window is the daily interval in which measurements are taken. Both ends
// are on the same calendar day and inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("%s-%s", w.Start.Format(streamutil.ClockLayout), w.End.Format(streamutil.ClockLayout))
}

type VideoProvider interface {
	VideoStats(ctx context.Context, videoID string) (*youtube.VideoStats, error)
}

// WindowResolver picks today's window from exactly one source: the manual
// times, or the provider's reported broadcast start and end.
type WindowResolver struct {
	provider VideoProvider
}

func NewWindowResolver(provider VideoProvider) *WindowResolver {
	return &WindowResolver{provider: provider}
}

// Resolve returns false when no window is available today. An error means
// the provider could not be asked.
func (r *WindowResolver) Resolve(ctx context.Context, stream *db.Stream, cfg *db.MonitoringConfig, now time.Time) (Window, bool, error) {
	if !cfg.UseStreamTimes {
		w, ok := ManualWindow(cfg, now)
		return w, ok, nil
	}

	video, err := r.provider.VideoStats(ctx, streamutil.ExtractVideoID(stream.URL))
	if errors.Is(err, youtube.ErrNotFound) {
		return Window{}, false, nil
	}
	if err != nil {
		return Window{}, false, fmt.Errorf("resolve stream window: %w", err)
	}

	if video.Live == nil || video.Live.ActualStart == nil || video.Live.ActualEnd == nil {
		return Window{}, false, nil
	}

	return Window{
		Start: onDay(now, video.Live.ActualStart.In(now.Location())),
		End:   onDay(now, video.Live.ActualEnd.In(now.Location())),
	}, true, nil
}

// ManualWindow builds the window from the configured HH:mm[:ss] times on
// now's calendar date.
func ManualWindow(cfg *db.MonitoringConfig, now time.Time) (Window, bool) {
	if cfg.ManualStartTime == nil || cfg.ManualEndTime == nil {
		return Window{}, false
	}

	start, err := streamutil.ParseClock(*cfg.ManualStartTime)
	if err != nil {
		return Window{}, false
	}
	end, err := streamutil.ParseClock(*cfg.ManualEndTime)
	if err != nil {
		return Window{}, false
	}

	return Window{
		Start: core.OnDate(now, start.Hour, start.Minute, start.Second),
		End:   core.OnDate(now, end.Hour, end.Minute, end.Second),
	}, true
}

func onDay(day, t time.Time) time.Time {
	c := streamutil.ClockOf(t)
	return core.OnDate(day, c.Hour, c.Minute, c.Second)
}
