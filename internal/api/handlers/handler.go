package handlers

import (
	"context"

	"github.com/leozw/stream-meter/internal/db"
	"github.com/leozw/stream-meter/internal/youtube"
	"go.uber.org/zap"
)

type Store interface {
	Ping(ctx context.Context) error
	ListStreamsWithConfig(ctx context.Context) ([]*db.StreamWithConfig, error)
	GetStreamWithConfig(ctx context.Context, id int64) (*db.StreamWithConfig, error)
	CreateStream(ctx context.Context, s *db.Stream, cfg *db.MonitoringConfig) error
	DeleteStream(ctx context.Context, id int64) error
	GetConfig(ctx context.Context, streamID int64) (*db.MonitoringConfig, error)
	UpdateConfig(ctx context.Context, cfg *db.MonitoringConfig) error
	ToggleActive(ctx context.Context, streamID int64) (bool, error)
	ListMeasurements(ctx context.Context, f db.MeasurementFilter) ([]*db.MeasurementRow, error)
}

type VideoLookup interface {
	VideoStats(ctx context.Context, videoID string) (*youtube.VideoStats, error)
}

type Handler struct {
	store  Store
	videos VideoLookup
	logger *zap.Logger
}

func NewHandler(store Store, videos VideoLookup, logger *zap.Logger) *Handler {
	return &Handler{
		store:  store,
		videos: videos,
		logger: logger,
	}
}
