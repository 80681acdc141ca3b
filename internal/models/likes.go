package models

import "time"

// ImageLike records one user's like on an image.
type ImageLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ImageID   uint      `gorm:"not null;uniqueIndex:idx_image_like_pair" json:"image_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_image_like_pair;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// VideoLike records one user's like on a video.
type VideoLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	VideoID   uint      `gorm:"not null;uniqueIndex:idx_video_like_pair" json:"video_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_video_like_pair;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MusicLike records one user's like on a track.
type MusicLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MusicID   uint      `gorm:"not null;uniqueIndex:idx_music_like_pair" json:"music_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_music_like_pair;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LikeResult is the state after a like mutation.
type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}
