package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/leozw/stream-meter/internal/db"
	"github.com/leozw/stream-meter/internal/metrics"
	"github.com/leozw/stream-meter/internal/youtube"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var art = time.FixedZone("ART", -3*60*60)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time           { return c.now }
func (c fixedClock) Location() *time.Location { return c.now.Location() }

type fakeStore struct {
	mu      sync.Mutex
	streams map[int64]*db.Stream
	configs map[int64]*db.MonitoringConfig
	listErr error
	getErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		streams: make(map[int64]*db.Stream),
		configs: make(map[int64]*db.MonitoringConfig),
	}
}

func (s *fakeStore) put(stream *db.Stream, cfg *db.MonitoringConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[stream.ID] = stream
	if cfg != nil {
		cfg.StreamID = stream.ID
		s.configs[stream.ID] = cfg
	}
}

func (s *fakeStore) update(id int64, fn func(cfg *db.MonitoringConfig)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.configs[id])
}

func (s *fakeStore) remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, id)
	delete(s.configs, id)
}

func (s *fakeStore) ListStreamsWithConfig(ctx context.Context) ([]*db.StreamWithConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*db.StreamWithConfig
	for id, st := range s.streams {
		row := &db.StreamWithConfig{Stream: *st}
		if cfg, ok := s.configs[id]; ok {
			c := *cfg
			row.Config = &c
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *fakeStore) GetStream(ctx context.Context, id int64) (*db.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	st, ok := s.streams[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := *st
	return &c, nil
}

func (s *fakeStore) GetConfig(ctx context.Context, streamID int64) (*db.MonitoringConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	cfg, ok := s.configs[streamID]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := *cfg
	return &c, nil
}

type fakeProvider struct {
	mu    sync.Mutex
	video *youtube.VideoStats
	err   error
	calls int
}

func (p *fakeProvider) VideoStats(ctx context.Context, videoID string) (*youtube.VideoStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.video, p.err
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeCollector struct {
	mu    sync.Mutex
	at    []int64
	err   error
	panic bool
}

func (c *fakeCollector) Collect(ctx context.Context, stream *db.Stream, cfg *db.MonitoringConfig) (*db.Measurement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panic {
		panic("boom")
	}
	if c.err != nil {
		return nil, c.err
	}
	c.at = append(c.at, stream.ID)
	return &db.Measurement{StreamID: stream.ID}, nil
}

func (c *fakeCollector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.at)
}

var testDelays = Delays{
	OutOfRange: 120 * time.Second,
	Poll:       30 * time.Second,
	Error:      30 * time.Second,
}

func strPtr(s string) *string { return &s }

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func testStream(id int64) *db.Stream {
	return &db.Stream{ID: id, Name: "Evening show", URL: "https://youtu.be/dQw4w9WgXcQ", ChannelID: "UC123"}
}

func manualConfig(start, end string, interval int) *db.MonitoringConfig {
	return &db.MonitoringConfig{
		ManualStartTime: strPtr(start),
		ManualEndTime:   strPtr(end),
		IntervalMinutes: interval,
		Active:          true,
	}
}

func newTestMonitor(id int64, store Store, provider VideoProvider, collector Collector, clock fixedClock) *Monitor {
	registry := NewRegistry()
	registry.TryAdd(id)
	return &Monitor{
		streamID:  id,
		store:     store,
		resolver:  NewWindowResolver(provider),
		collector: collector,
		clock:     clock,
		registry:  registry,
		metrics:   metrics.NewCollector(prometheus.NewRegistry()),
		delays:    testDelays,
		logger:    zap.NewNop(),
	}
}
