package youtube

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when the API answers successfully with no items,
// which is how it reports unknown or malformed ids.
var ErrNotFound = errors.New("youtube: resource not found")

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("youtube api returned %d: %s", e.StatusCode, e.Message)
}

// ChannelStats holds channel-level totals. A nil field was not reported.
type ChannelStats struct {
	SubscriberCount *int64
	VideoCount      *int64
	ViewCount       *int64
}

type VideoStats struct {
	Title        string
	ChannelID    string
	ChannelTitle string
	ViewCount    *int64
	LikeCount    *int64
	CommentCount *int64
	Live         *LiveDetails
}

// LiveDetails is only present for videos that are or were live broadcasts.
type LiveDetails struct {
	ActualStart       *time.Time
	ActualEnd         *time.Time
	ConcurrentViewers *int64
}

// Wire format of the Data API v3. Counts arrive as decimal strings.
type listResponse[T any] struct {
	Items []T `json:"items"`
}

type channelItem struct {
	ID         string `json:"id"`
	Statistics struct {
		SubscriberCount string `json:"subscriberCount"`
		VideoCount      string `json:"videoCount"`
		ViewCount       string `json:"viewCount"`
	} `json:"statistics"`
}

type videoItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Title        string `json:"title"`
		ChannelID    string `json:"channelId"`
		ChannelTitle string `json:"channelTitle"`
	} `json:"snippet"`
	Statistics struct {
		ViewCount    string `json:"viewCount"`
		LikeCount    string `json:"likeCount"`
		CommentCount string `json:"commentCount"`
	} `json:"statistics"`
	LiveStreamingDetails *struct {
		ActualStartTime   string `json:"actualStartTime"`
		ActualEndTime     string `json:"actualEndTime"`
		ConcurrentViewers string `json:"concurrentViewers"`
	} `json:"liveStreamingDetails"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
