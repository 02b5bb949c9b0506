package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leozw/stream-meter/internal/db"
	"github.com/leozw/stream-meter/internal/metrics"
	"github.com/leozw/stream-meter/internal/youtube"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var art = time.FixedZone("ART", -3*60*60)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time           { return c.now }
func (c fixedClock) Location() *time.Location { return c.now.Location() }

type fakeProvider struct {
	channel    *youtube.ChannelStats
	channelErr error
	video      *youtube.VideoStats
	videoErr   error

	mu       sync.Mutex
	videoIDs []string
}

func (p *fakeProvider) ChannelStats(ctx context.Context, channelID string) (*youtube.ChannelStats, error) {
	return p.channel, p.channelErr
}

func (p *fakeProvider) VideoStats(ctx context.Context, videoID string) (*youtube.VideoStats, error) {
	p.mu.Lock()
	p.videoIDs = append(p.videoIDs, videoID)
	p.mu.Unlock()
	return p.video, p.videoErr
}

type fakeStore struct {
	measurements []*db.Measurement
	actualStart  *string
	actualEnd    *string
	updates      int
	insertErr    error
}

func (s *fakeStore) UpdateActualTimes(ctx context.Context, streamID int64, start, end *string) error {
	s.updates++
	s.actualStart, s.actualEnd = start, end
	return nil
}

func (s *fakeStore) InsertMeasurement(ctx context.Context, m *db.Measurement) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	m.ID = int64(len(s.measurements) + 1)
	s.measurements = append(s.measurements, m)
	return nil
}

func ptr(v int64) *int64 { return &v }

func newCollector(p Provider, s Store, now time.Time) *Collector {
	return New(p, s, fixedClock{now: now}, metrics.NewCollector(prometheus.NewRegistry()), zap.NewNop())
}

var testStream = &db.Stream{ID: 3, Name: "Evening show", URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", ChannelID: "UC123"}

func TestCollect_PersistsCounters(t *testing.T) {
	now := time.Date(2024, 5, 10, 10, 0, 5, 0, art)
	start := time.Date(2024, 5, 10, 12, 30, 0, 0, time.UTC)
	provider := &fakeProvider{
		channel: &youtube.ChannelStats{SubscriberCount: ptr(1000), VideoCount: ptr(20), ViewCount: ptr(50000)},
		video: &youtube.VideoStats{
			ViewCount: ptr(300), LikeCount: ptr(40), CommentCount: ptr(5),
			Live: &youtube.LiveDetails{ActualStart: &start, ConcurrentViewers: ptr(0)},
		},
	}
	store := &fakeStore{}

	m, err := newCollector(provider, store, now).Collect(context.Background(), testStream, &db.MonitoringConfig{})
	require.NoError(t, err)

	assert.Equal(t, []string{"dQw4w9WgXcQ"}, provider.videoIDs)
	require.Len(t, store.measurements, 1)
	assert.Same(t, m, store.measurements[0])
	assert.Equal(t, int64(3), m.StreamID)
	assert.Equal(t, "2024-05-10", m.MeasuredOn.Format("2006-01-02"))
	assert.Equal(t, "10:00:05", m.MeasuredAt)
	assert.Equal(t, int64(1000), m.ChannelSubscribers)
	assert.Equal(t, int64(50000), m.ChannelViews)
	assert.Equal(t, int64(300), m.VideoViews)
	require.NotNil(t, m.ConcurrentViewers)
	assert.Equal(t, int64(0), *m.ConcurrentViewers)

	// Observed start converted to the clock's zone; missing end stays NULL.
	assert.Equal(t, 1, store.updates)
	require.NotNil(t, store.actualStart)
	assert.Equal(t, "09:30:00", *store.actualStart)
	assert.Nil(t, store.actualEnd)
}

func TestCollect_MissingFieldsDefault(t *testing.T) {
	provider := &fakeProvider{
		channel: &youtube.ChannelStats{},
		video:   &youtube.VideoStats{ViewCount: ptr(7)},
	}
	store := &fakeStore{}

	m, err := newCollector(provider, store, time.Date(2024, 5, 10, 10, 0, 0, 0, art)).
		Collect(context.Background(), testStream, &db.MonitoringConfig{})
	require.NoError(t, err)

	assert.Equal(t, int64(0), m.ChannelSubscribers)
	assert.Equal(t, int64(0), m.VideoLikes)
	assert.Equal(t, int64(7), m.VideoViews)
	assert.Nil(t, m.ConcurrentViewers, "missing live viewers must stay distinguishable from zero")
	assert.Equal(t, 0, store.updates, "no live details means nothing to refresh")
}

func TestCollect_UnknownIdentifierStillPersists(t *testing.T) {
	provider := &fakeProvider{
		channelErr: youtube.ErrNotFound,
		videoErr:   youtube.ErrNotFound,
	}
	store := &fakeStore{}
	stream := &db.Stream{ID: 9, URL: "  not-a-youtube-url  ", ChannelID: "UCmissing"}

	m, err := newCollector(provider, store, time.Date(2024, 5, 10, 10, 0, 0, 0, art)).
		Collect(context.Background(), stream, &db.MonitoringConfig{})
	require.NoError(t, err)

	assert.Equal(t, []string{"not-a-youtube-url"}, provider.videoIDs)
	assert.Equal(t, int64(0), m.VideoViews)
	assert.Nil(t, m.ConcurrentViewers)
	assert.Len(t, store.measurements, 1)
}

func TestCollect_ProviderError(t *testing.T) {
	provider := &fakeProvider{
		channel:  &youtube.ChannelStats{},
		videoErr: &youtube.APIError{StatusCode: 403, Message: "quotaExceeded"},
	}
	store := &fakeStore{}

	_, err := newCollector(provider, store, time.Now()).Collect(context.Background(), testStream, &db.MonitoringConfig{})

	var apiErr *youtube.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Empty(t, store.measurements)
}

func TestCollect_StoreError(t *testing.T) {
	provider := &fakeProvider{channel: &youtube.ChannelStats{}, video: &youtube.VideoStats{}}
	store := &fakeStore{insertErr: errors.New("connection reset")}

	_, err := newCollector(provider, store, time.Now()).Collect(context.Background(), testStream, &db.MonitoringConfig{})
	assert.EqualError(t, err, "connection reset")
}
