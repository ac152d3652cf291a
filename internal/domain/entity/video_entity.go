package entity

import "time"

// VideoOwner is the public subset of the uploading user embedded in a video.
type VideoOwner struct {
	ID        string `json:"id"`
	Fullname  string `json:"fullname"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar"`
}

// Video is read from the videos relation; this service never writes it.
// Owner is nil when the owning account no longer exists.
type Video struct {
	ID          string      `json:"id"`
	VideoFile   string      `json:"videoFile"`
	Thumbnail   string      `json:"thumbnail"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Duration    float64     `json:"duration"`
	Views       int64       `json:"views"`
	IsPublished bool        `json:"isPublished"`
	Owner       *VideoOwner `json:"owner"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}
