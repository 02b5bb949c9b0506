package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/leozw/stream-meter/internal/streamutil"
	"github.com/leozw/stream-meter/internal/youtube"
	"go.uber.org/zap"
)

// LookupVideo suggests a stream name and channel for a video URL or id.
func (h *Handler) LookupVideo(c *gin.Context) {
	locator := c.Query("url")
	if locator == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	videoID := streamutil.ExtractVideoID(locator)
	video, err := h.videos.VideoStats(c.Request.Context(), videoID)
	if errors.Is(err, youtube.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
		return
	}
	if err != nil {
		h.logger.Error("Video lookup failed", zap.String("video_id", videoID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Video lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"video_id":   videoID,
		"name":       video.ChannelTitle + " - " + video.Title,
		"channel_id": video.ChannelID,
	})
}
