package types

import "time"

// Video is the metadata record for a published video. The media files
// themselves live behind the upload collaborator; only URLs are stored.
type Video struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	VideoURL     string    `json:"video_url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Duration     float64   `json:"duration"`
	IsPublished  bool      `json:"is_published"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VideoOwner is the minimal owner projection embedded in watch-history
// entries. Deliberately tiny: name, handle, picture.
type VideoOwner struct {
	FullName  string `json:"full_name"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// WatchHistoryEntry is a watch-history video expanded with its owner.
// Owner is a single embedded object, not a list.
type WatchHistoryEntry struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	VideoURL     string     `json:"video_url"`
	ThumbnailURL string     `json:"thumbnail_url"`
	Duration     float64    `json:"duration"`
	CreatedAt    time.Time  `json:"created_at"`
	Owner        VideoOwner `json:"owner"`
}

// ChannelProfile is the public channel view with subscriber aggregates.
type ChannelProfile struct {
	ID                string  `json:"id"`
	Username          string  `json:"username"`
	FullName          string  `json:"full_name"`
	Email             string  `json:"email"`
	AvatarURL         string  `json:"avatar_url"`
	CoverImageURL     *string `json:"cover_image_url,omitempty"`
	SubscribersCount  int64   `json:"subscribers_count"`
	SubscribedToCount int64   `json:"subscribed_to_count"`
	IsSubscribed      bool    `json:"is_subscribed"`
}
