package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/leozw/stream-meter/internal/config"
	"github.com/leozw/stream-meter/internal/core"
	"github.com/leozw/stream-meter/internal/metrics"
	"go.uber.org/zap"
)

// Supervisor keeps exactly one Monitor running per active stream.
type Supervisor struct {
	store     Store
	resolver  *WindowResolver
	collector Collector
	clock     core.Clock
	registry  *Registry
	metrics   *metrics.Collector
	logger    *zap.Logger
	interval  time.Duration
	delays    Delays
	wg        sync.WaitGroup
}

func NewSupervisor(store Store, resolver *WindowResolver, collector Collector, clock core.Clock, registry *Registry, metrics *metrics.Collector, logger *zap.Logger, cfg config.SchedulerConfig) *Supervisor {
	delays := Delays{
		OutOfRange: cfg.OutOfRangeDelay,
		Poll:       cfg.PollDelay,
		Error:      cfg.ErrorDelay,
	}
	if delays.Error <= 0 {
		delays.Error = delays.Poll
	}

	return &Supervisor{
		store:     store,
		resolver:  resolver,
		collector: collector,
		clock:     clock,
		registry:  registry,
		metrics:   metrics,
		logger:    logger,
		interval:  cfg.SupervisorInterval,
		delays:    delays,
	}
}

// Start scans immediately and then on every interval until ctx is done. It
// returns once every monitor it started has exited.
func (s *Supervisor) Start(ctx context.Context) {
	s.logger.Info("Starting supervisor",
		zap.Duration("interval", s.interval),
		zap.String("timezone", s.clock.Location().String()),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping supervisor", zap.Int("monitors_running", s.registry.Len()))
			s.wg.Wait()
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick starts a monitor for every active stream not already monitored and
// returns how many were started.
func (s *Supervisor) Tick(ctx context.Context) int {
	streams, err := s.store.ListStreamsWithConfig(ctx)
	s.metrics.RecordSupervisorTick(len(streams), err)
	if err != nil {
		s.logger.Error("Failed to list streams", zap.Error(err))
		return 0
	}

	started := 0
	for _, st := range streams {
		if st.Config == nil {
			s.logger.Warn("Stream has no monitoring configuration",
				zap.Int64("stream_id", st.ID),
				zap.String("stream_name", st.Name),
			)
			continue
		}
		if !st.Config.Active {
			continue
		}
		if !s.registry.TryAdd(st.ID) {
			continue
		}

		m := s.newMonitor(st.ID)
		m.logger.Info("Starting monitor", zap.String("stream_name", st.Name))

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			m.Run(ctx)
		}()
		started++
		s.metrics.RecordMonitorStarted()
	}

	s.metrics.SetMonitorsRunning(s.registry.Len())
	if started > 0 {
		s.logger.Info("Supervisor scan complete",
			zap.Int("streams", len(streams)),
			zap.Int("started", started),
			zap.Int("running", s.registry.Len()),
		)
	}
	return started
}

func (s *Supervisor) newMonitor(streamID int64) *Monitor {
	return &Monitor{
		streamID:  streamID,
		store:     s.store,
		resolver:  s.resolver,
		collector: s.collector,
		clock:     s.clock,
		registry:  s.registry,
		metrics:   s.metrics,
		delays:    s.delays,
		logger: s.logger.With(
			zap.Int64("stream_id", streamID),
			zap.String("run_id", newRunID()),
		),
	}
}
