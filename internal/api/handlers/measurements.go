package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/leozw/stream-meter/internal/db"
	"github.com/leozw/stream-meter/internal/streamutil"
	"go.uber.org/zap"
)

type MeasurementView struct {
	ID                 int64  `json:"id"`
	StreamID           int64  `json:"stream_id"`
	StreamName         string `json:"stream_name"`
	Date               string `json:"date"`
	Time               string `json:"time"`
	ChannelSubscribers int64  `json:"channel_subscribers"`
	ChannelVideos      int64  `json:"channel_videos"`
	ChannelViews       int64  `json:"channel_views"`
	VideoViews         int64  `json:"video_views"`
	VideoLikes         int64  `json:"video_likes"`
	VideoComments      int64  `json:"video_comments"`
	ConcurrentViewers  string `json:"concurrent_viewers"`
}

func newMeasurementView(r *db.MeasurementRow) MeasurementView {
	return MeasurementView{
		ID:                 r.ID,
		StreamID:           r.StreamID,
		StreamName:         r.StreamName,
		Date:               streamutil.FormatDate(r.MeasuredOn),
		Time:               streamutil.FormatClock(r.MeasuredAt),
		ChannelSubscribers: r.ChannelSubscribers,
		ChannelVideos:      r.ChannelVideos,
		ChannelViews:       r.ChannelViews,
		VideoViews:         r.VideoViews,
		VideoLikes:         r.VideoLikes,
		VideoComments:      r.VideoComments,
		ConcurrentViewers:  streamutil.FormatViewers(r.ConcurrentViewers),
	}
}

// ListMeasurements filters by stream, DD/MM/YYYY date range and HH:mm hour
// range. Every bound is inclusive.
func (h *Handler) ListMeasurements(c *gin.Context) {
	var f db.MeasurementFilter

	if s := c.Query("stream_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stream_id"})
			return
		}
		f.StreamID = id
	}

	var err error
	if f.From, err = queryDate(c, "from"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if s := c.Query("hour_from"); s != "" {
		clock, err := streamutil.ParseClock(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f.HourFrom = clock.String()
	}
	if s := c.Query("hour_to"); s != "" {
		clock, err := streamutil.ParseClock(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// HH:mm covers the whole minute.
		if len(s) <= len("15:04") {
			clock.Second = 59
		}
		f.HourTo = clock.String()
	}

	rows, err := h.store.ListMeasurements(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("Failed to list measurements", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	views := make([]MeasurementView, 0, len(rows))
	for _, r := range rows {
		views = append(views, newMeasurementView(r))
	}

	c.JSON(http.StatusOK, gin.H{"measurements": views, "total": len(views)})
}

// Series returns one metric of one stream over one day, for charting.
func (h *Handler) Series(c *gin.Context) {
	id, ok := streamID(c)
	if !ok {
		return
	}

	metric := c.DefaultQuery("metric", "video_views")
	pick, ok := seriesMetrics[metric]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown metric " + strconv.Quote(metric)})
		return
	}

	day, err := queryDate(c, "date")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if day == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
		return
	}

	rows, err := h.store.ListMeasurements(c.Request.Context(), db.MeasurementFilter{StreamID: id, From: day, To: day})
	if err != nil {
		h.logger.Error("Failed to load series", zap.Int64("stream_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	labels := make([]string, 0, len(rows))
	values := make([]*int64, 0, len(rows))
	for _, r := range rows {
		labels = append(labels, streamutil.FormatClock(r.MeasuredAt))
		values = append(values, pick(&r.Measurement))
	}

	c.JSON(http.StatusOK, gin.H{
		"stream_id": id,
		"date":      streamutil.FormatDate(*day),
		"metric":    metric,
		"labels":    labels,
		"values":    values,
	})
}

var seriesMetrics = map[string]func(m *db.Measurement) *int64{
	"video_views":        func(m *db.Measurement) *int64 { return &m.VideoViews },
	"video_likes":        func(m *db.Measurement) *int64 { return &m.VideoLikes },
	"video_comments":     func(m *db.Measurement) *int64 { return &m.VideoComments },
	"concurrent_viewers": func(m *db.Measurement) *int64 { return m.ConcurrentViewers },
}

func queryDate(c *gin.Context, key string) (*time.Time, error) {
	s := c.Query(key)
	if s == "" {
		return nil, nil
	}
	t, err := streamutil.ParseDisplayDate(s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%s: want DD/MM/YYYY, got %q", key, s)
	}
	return &t, nil
}
