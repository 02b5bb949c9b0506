package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/leozw/stream-meter/internal/db"
	"github.com/leozw/stream-meter/internal/streamutil"
	"go.uber.org/zap"
)

// ConfigRequest carries dates as YYYY-MM-DD and times as HH:mm[:ss].
type ConfigRequest struct {
	StartDate       *string `json:"start_date"`
	EndDate         *string `json:"end_date"`
	ManualStartTime *string `json:"manual_start_time"`
	ManualEndTime   *string `json:"manual_end_time"`
	IntervalMinutes int     `json:"interval_minutes" binding:"required,min=1,max=1440"`
	Active          *bool   `json:"active"`
	Weekdays        []int   `json:"weekdays" binding:"omitempty,dive,min=1,max=7"`
	UseStreamTimes  bool    `json:"use_stream_times"`
}

type CreateStreamRequest struct {
	Name      string        `json:"name" binding:"required,min=1,max=255"`
	URL       string        `json:"url" binding:"required"`
	ChannelID string        `json:"channel_id"`
	Config    ConfigRequest `json:"config"`
}

func (r *ConfigRequest) toConfig(streamID int64) (*db.MonitoringConfig, error) {
	cfg := &db.MonitoringConfig{
		StreamID:        streamID,
		IntervalMinutes: r.IntervalMinutes,
		Active:          true,
		UseStreamTimes:  r.UseStreamTimes,
	}
	if r.Active != nil {
		cfg.Active = *r.Active
	}
	if len(r.Weekdays) > 0 {
		cfg.Weekdays = db.Weekdays(r.Weekdays)
	}

	var err error
	if cfg.StartDate, err = parseDate(r.StartDate); err != nil {
		return nil, fmt.Errorf("start_date: %w", err)
	}
	if cfg.EndDate, err = parseDate(r.EndDate); err != nil {
		return nil, fmt.Errorf("end_date: %w", err)
	}
	if cfg.StartDate != nil && cfg.EndDate != nil && cfg.EndDate.Before(*cfg.StartDate) {
		return nil, errors.New("end_date must not be before start_date")
	}

	if cfg.ManualStartTime, err = normalizeClock(r.ManualStartTime); err != nil {
		return nil, fmt.Errorf("manual_start_time: %w", err)
	}
	if cfg.ManualEndTime, err = normalizeClock(r.ManualEndTime); err != nil {
		return nil, fmt.Errorf("manual_end_time: %w", err)
	}

	return cfg, nil
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(streamutil.DateLayout, *s)
	if err != nil {
		return nil, fmt.Errorf("want YYYY-MM-DD, got %q", *s)
	}
	return &t, nil
}

func normalizeClock(s *string) (*string, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	c, err := streamutil.ParseClock(*s)
	if err != nil {
		return nil, err
	}
	out := c.String()
	return &out, nil
}

func streamID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stream id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) ListStreams(c *gin.Context) {
	streams, err := h.store.ListStreamsWithConfig(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list streams", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"streams": streams})
}

func (h *Handler) GetStream(c *gin.Context) {
	id, ok := streamID(c)
	if !ok {
		return
	}

	stream, err := h.store.GetStreamWithConfig(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, "Failed to get stream", err)
		return
	}

	c.JSON(http.StatusOK, stream)
}

func (h *Handler) CreateStream(c *gin.Context) {
	var req CreateStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := req.Config.toConfig(0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stream := &db.Stream{Name: req.Name, URL: req.URL, ChannelID: req.ChannelID}
	if stream.ChannelID == "" {
		video, err := h.videos.VideoStats(c.Request.Context(), streamutil.ExtractVideoID(req.URL))
		if err != nil {
			h.logger.Warn("Could not resolve channel for stream", zap.String("url", req.URL), zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "channel_id is required when the video cannot be looked up"})
			return
		}
		stream.ChannelID = video.ChannelID
	}

	if err := h.store.CreateStream(c.Request.Context(), stream, cfg); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Stream already registered"})
			return
		}
		h.logger.Error("Failed to create stream", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create stream"})
		return
	}

	h.logger.Info("Stream created",
		zap.Int64("stream_id", stream.ID),
		zap.String("stream_name", stream.Name),
		zap.String("subject", c.GetString("subject")),
	)

	c.JSON(http.StatusCreated, db.StreamWithConfig{Stream: *stream, Config: cfg})
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	id, ok := streamID(c)
	if !ok {
		return
	}

	var req ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := req.toConfig(id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// An omitted flag keeps the stored one, so a paused stream stays paused.
	if req.Active == nil {
		current, err := h.store.GetConfig(c.Request.Context(), id)
		if err != nil {
			h.storeError(c, "Failed to load config", err)
			return
		}
		cfg.Active = current.Active
	}

	if err := h.store.UpdateConfig(c.Request.Context(), cfg); err != nil {
		h.storeError(c, "Failed to update config", err)
		return
	}

	h.logger.Info("Stream config updated",
		zap.Int64("stream_id", id),
		zap.Bool("active", cfg.Active),
		zap.String("subject", c.GetString("subject")),
	)
	c.JSON(http.StatusOK, cfg)
}

func (h *Handler) DeleteStream(c *gin.Context) {
	id, ok := streamID(c)
	if !ok {
		return
	}

	if err := h.store.DeleteStream(c.Request.Context(), id); err != nil {
		h.storeError(c, "Failed to delete stream", err)
		return
	}

	h.logger.Info("Stream deleted", zap.Int64("stream_id", id), zap.String("subject", c.GetString("subject")))
	c.Status(http.StatusNoContent)
}

func (h *Handler) ToggleActive(c *gin.Context) {
	id, ok := streamID(c)
	if !ok {
		return
	}

	active, err := h.store.ToggleActive(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, "Failed to toggle stream", err)
		return
	}

	h.logger.Info("Stream toggled",
		zap.Int64("stream_id", id),
		zap.Bool("active", active),
		zap.String("subject", c.GetString("subject")),
	)
	c.JSON(http.StatusOK, gin.H{"stream_id": id, "active": active, "changed_by": c.GetString("subject")})
}

func (h *Handler) storeError(c *gin.Context, msg string, err error) {
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stream not found"})
		return
	}
	h.logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
