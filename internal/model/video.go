package model

import (
	"fmt"
	"strings"
	"time"
)

// VideoKey identifies one playable part of a video. A video with several
// parts (pages) has one key per part.
type VideoKey struct {
	ContentID string `json:"video_id"`
	PartID    string `json:"part_id"`
}

func (k VideoKey) String() string {
	return fmt.Sprintf("%s/%s", k.ContentID, k.PartID)
}

// ParseVideoKey is the inverse of VideoKey.String. The part is everything
// after the last slash.
func ParseVideoKey(s string) (VideoKey, bool) {
	i := strings.LastIndex(s, "/")
	if i <= 0 || i == len(s)-1 {
		return VideoKey{}, false
	}
	return VideoKey{ContentID: s[:i], PartID: s[i+1:]}, true
}

// Video is the persisted identity row, created lazily on first annotation.
type Video struct {
	ID        int64     `json:"id"`
	ContentID string    `json:"video_id"`
	PartID    string    `json:"part_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the (content, part) identity of the video.
func (v Video) Key() VideoKey {
	return VideoKey{ContentID: v.ContentID, PartID: v.PartID}
}
