package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leozw/stream-meter/internal/core"
	"github.com/leozw/stream-meter/internal/db"
	"github.com/leozw/stream-meter/internal/metrics"
	"github.com/leozw/stream-meter/internal/streamutil"
	"github.com/leozw/stream-meter/internal/youtube"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Provider interface {
	ChannelStats(ctx context.Context, channelID string) (*youtube.ChannelStats, error)
	VideoStats(ctx context.Context, videoID string) (*youtube.VideoStats, error)
}

type Store interface {
	UpdateActualTimes(ctx context.Context, streamID int64, start, end *string) error
	InsertMeasurement(ctx context.Context, m *db.Measurement) error
}

// Collector takes one measurement of one stream. It never retries; the
// caller's next cycle is the retry.
type Collector struct {
	provider Provider
	store    Store
	clock    core.Clock
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func New(provider Provider, store Store, clock core.Clock, metrics *metrics.Collector, logger *zap.Logger) *Collector {
	return &Collector{
		provider: provider,
		store:    store,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
	}
}

func (c *Collector) Collect(ctx context.Context, stream *db.Stream, cfg *db.MonitoringConfig) (*db.Measurement, error) {
	start := time.Now()
	m, err := c.collect(ctx, stream, cfg)
	c.metrics.RecordCollection(stream, time.Since(start), err)
	return m, err
}

func (c *Collector) collect(ctx context.Context, stream *db.Stream, cfg *db.MonitoringConfig) (*db.Measurement, error) {
	logger := c.logger.With(zap.Int64("stream_id", stream.ID), zap.String("stream_name", stream.Name))
	videoID := streamutil.ExtractVideoID(stream.URL)

	var (
		channel *youtube.ChannelStats
		video   *youtube.VideoStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		channel, err = c.provider.ChannelStats(gctx, stream.ChannelID)
		if errors.Is(err, youtube.ErrNotFound) {
			logger.Warn("Channel not found, recording zero totals", zap.String("channel_id", stream.ChannelID))
			channel, err = &youtube.ChannelStats{}, nil
		}
		if err != nil {
			return fmt.Errorf("channel stats: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		video, err = c.provider.VideoStats(gctx, videoID)
		if errors.Is(err, youtube.ErrNotFound) {
			logger.Warn("Video not found, recording zero totals", zap.String("video_id", videoID))
			video, err = &youtube.VideoStats{}, nil
		}
		if err != nil {
			return fmt.Errorf("video stats: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := c.clock.Now()
	loc := c.clock.Location()

	if live := video.Live; live != nil {
		startClock := wallClock(live.ActualStart, loc)
		endClock := wallClock(live.ActualEnd, loc)
		if err := c.store.UpdateActualTimes(ctx, stream.ID, startClock, endClock); err != nil {
			return nil, err
		}
		logger.Debug("Updated observed stream times",
			zap.Stringp("actual_start", startClock),
			zap.Stringp("actual_end", endClock),
		)
	}

	m := &db.Measurement{
		StreamID:           stream.ID,
		MeasuredOn:         core.Today(now),
		MeasuredAt:         now.Format(streamutil.ClockLayout),
		ChannelSubscribers: orZero(channel.SubscriberCount),
		ChannelVideos:      orZero(channel.VideoCount),
		ChannelViews:       orZero(channel.ViewCount),
		VideoViews:         orZero(video.ViewCount),
		VideoLikes:         orZero(video.LikeCount),
		VideoComments:      orZero(video.CommentCount),
	}
	if video.Live != nil {
		m.ConcurrentViewers = video.Live.ConcurrentViewers
	}

	if err := c.store.InsertMeasurement(ctx, m); err != nil {
		return nil, err
	}

	c.metrics.RecordMeasurement(stream, m, now)
	logger.Info("Measurement saved",
		zap.String("video_id", videoID),
		zap.Int64("measurement_id", m.ID),
		zap.Int64("video_views", m.VideoViews),
	)

	return m, nil
}

func orZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func wallClock(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	s := t.In(loc).Format(streamutil.ClockLayout)
	return &s
}
