package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leozw/stream-meter/internal/core"
	"github.com/leozw/stream-meter/internal/db"
	"github.com/leozw/stream-meter/internal/metrics"
	"go.uber.org/zap"
)

type Store interface {
	ListStreamsWithConfig(ctx context.Context) ([]*db.StreamWithConfig, error)
	GetStream(ctx context.Context, id int64) (*db.Stream, error)
	GetConfig(ctx context.Context, streamID int64) (*db.MonitoringConfig, error)
}

type Collector interface {
	Collect(ctx context.Context, stream *db.Stream, cfg *db.MonitoringConfig) (*db.Measurement, error)
}

// Delays chosen by a monitor between cycles.
type Delays struct {
	// OutOfRange applies outside the date range, on excluded weekdays and
	// when no window can be resolved.
	OutOfRange time.Duration
	// Poll applies outside the window or while the stream is inactive.
	Poll time.Duration
	// Error applies after a store or provider failure.
	Error time.Duration
}

// Monitor drives the measurements of one stream. Each cycle re-reads the
// stream's configuration and returns the delay until the next one, so two
// cycles of the same stream never overlap.
type Monitor struct {
	streamID  int64
	store     Store
	resolver  *WindowResolver
	collector Collector
	clock     core.Clock
	registry  *Registry
	metrics   *metrics.Collector
	delays    Delays
	logger    *zap.Logger
}

// Run loops until ctx is done or the stream's configuration disappears, then
// releases the stream's registry entry.
func (m *Monitor) Run(ctx context.Context) {
	defer func() {
		m.registry.Remove(m.streamID)
		m.metrics.SetMonitorsRunning(m.registry.Len())
		m.logger.Info("Monitor stopped")
	}()

	m.logger.Info("Monitor started")

	for {
		delay, stop := m.safeCycle(ctx)
		if stop {
			return
		}

		m.logger.Debug("Next cycle scheduled", zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (m *Monitor) safeCycle(ctx context.Context) (delay time.Duration, stop bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Monitor cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
			m.metrics.RecordCycle(metrics.OutcomeError)
			delay, stop = m.delays.Error, false
		}
	}()
	return m.cycle(ctx)
}

func (m *Monitor) cycle(ctx context.Context) (time.Duration, bool) {
	stream, cfg, err := m.load(ctx)
	if errors.Is(err, db.ErrNotFound) {
		m.logger.Warn("Stream or configuration no longer exists, stopping monitor")
		m.metrics.RecordCycle(metrics.OutcomeStopped)
		return 0, true
	}
	if err != nil {
		return m.fail("Failed to load stream configuration", err)
	}

	logger := m.logger.With(zap.String("stream_name", stream.Name))
	now := m.clock.Now()

	if !cfg.InDateRange(now) {
		logger.Info("Outside configured date range",
			zap.String("today", now.Format("2006-01-02")),
			zap.Timep("start_date", cfg.StartDate),
			zap.Timep("end_date", cfg.EndDate),
			zap.Duration("retry_in", m.delays.OutOfRange),
		)
		m.metrics.RecordCycle(metrics.OutcomeOutsideDates)
		return m.delays.OutOfRange, false
	}

	if cfg.Weekdays.Malformed() {
		logger.Warn("Stored weekdays have no valid entry, skipping measurement",
			zap.Duration("retry_in", m.delays.OutOfRange),
		)
		m.metrics.RecordCycle(metrics.OutcomeWeekday)
		return m.delays.OutOfRange, false
	}

	if !cfg.Weekdays.Permits(now) {
		logger.Info("Weekday not enabled for measurement",
			zap.Int("weekday", core.ISOWeekday(now)),
			zap.String("weekdays", cfg.Weekdays.String()),
			zap.Duration("retry_in", m.delays.OutOfRange),
		)
		m.metrics.RecordCycle(metrics.OutcomeWeekday)
		return m.delays.OutOfRange, false
	}

	window, ok, err := m.resolver.Resolve(ctx, stream, cfg, now)
	if err != nil {
		return m.fail("Failed to resolve measurement window", err)
	}
	if !ok {
		logger.Info("No measurement window available",
			zap.Bool("use_stream_times", cfg.UseStreamTimes),
			zap.Duration("retry_in", m.delays.OutOfRange),
		)
		m.metrics.RecordCycle(metrics.OutcomeNoWindow)
		return m.delays.OutOfRange, false
	}

	if !cfg.Active {
		logger.Info("Stream inactive, skipping measurement", zap.Duration("retry_in", m.delays.Poll))
		m.metrics.RecordCycle(metrics.OutcomeInactive)
		return m.delays.Poll, false
	}

	if !window.Contains(now) {
		logger.Info("Outside measurement window",
			zap.Stringer("window", window),
			zap.Time("now", now),
			zap.Duration("retry_in", m.delays.Poll),
		)
		m.metrics.RecordCycle(metrics.OutcomeOutsideHours)
		return m.delays.Poll, false
	}

	if _, err := m.collector.Collect(ctx, stream, cfg); err != nil {
		return m.fail("Measurement failed", err)
	}
	m.metrics.RecordCycle(metrics.OutcomeCollected)

	interval := cfg.Interval()
	if interval <= 0 {
		interval = m.delays.Poll
	}
	return interval, false
}

func (m *Monitor) load(ctx context.Context) (*db.Stream, *db.MonitoringConfig, error) {
	stream, err := m.store.GetStream(ctx, m.streamID)
	if err != nil {
		return nil, nil, fmt.Errorf("get stream: %w", err)
	}
	cfg, err := m.store.GetConfig(ctx, m.streamID)
	if err != nil {
		return nil, nil, fmt.Errorf("get config: %w", err)
	}
	return stream, cfg, nil
}

func (m *Monitor) fail(msg string, err error) (time.Duration, bool) {
	m.logger.Error(msg, zap.Error(err), zap.Duration("retry_in", m.delays.Error))
	m.metrics.RecordCycle(metrics.OutcomeError)
	return m.delays.Error, false
}

func newRunID() string {
	return uuid.New().String()
}
