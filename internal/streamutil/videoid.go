// Package streamutil holds the pure helpers shared by the collector and the
// HTTP handlers: locator parsing and display formatting.
package streamutil

import (
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(
	`(?:https?://)?(?:www\.|m\.)?(?:youtube\.com/(?:watch\?(?:.*&)?v=|embed/|v/|shorts/|live/)|youtu\.be/)([a-zA-Z0-9_-]{11})`,
)

// ExtractVideoID returns the 11 character video id found in locator. When no
// known URL shape matches it returns the trimmed locator unchanged, so a bare
// id passes through and an invalid one reaches the provider as-is.
func ExtractVideoID(locator string) string {
	if m := videoIDPattern.FindStringSubmatch(locator); m != nil {
		return m[1]
	}
	return strings.TrimSpace(locator)
}
