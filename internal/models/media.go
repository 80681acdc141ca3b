package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MediaKind names one of the three media catalogues.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaMusic MediaKind = "music"
)

// MediaKinds lists every kind in display order.
var MediaKinds = []MediaKind{MediaImage, MediaVideo, MediaMusic}

// ParseMediaKind accepts singular and plural spellings ("images", "video", "music").
func ParseMediaKind(raw string) (MediaKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "image", "images":
		return MediaImage, nil
	case "video", "videos":
		return MediaVideo, nil
	case "music", "song", "songs":
		return MediaMusic, nil
	default:
		return "", NewValidationError(fmt.Sprintf("Unknown media kind %q", raw))
	}
}

// Table is the table holding rows of this kind.
func (k MediaKind) Table() string {
	switch k {
	case MediaImage:
		return "images"
	case MediaVideo:
		return "videos"
	default:
		return "music"
	}
}

// LikeTable is the join table holding likes for this kind.
func (k MediaKind) LikeTable() string {
	return string(k) + "_likes"
}

// LikeColumn is the foreign key column of the like table.
func (k MediaKind) LikeColumn() string {
	return string(k) + "_id"
}

// Bucket is the storage bucket files of this kind live in.
func (k MediaKind) Bucket() string {
	return k.Table()
}

// Label is the human readable singular name.
func (k MediaKind) Label() string {
	switch k {
	case MediaImage:
		return "Image"
	case MediaVideo:
		return "Video"
	default:
		return "Music"
	}
}

// StoredFile addresses one object in file storage.
type StoredFile struct {
	Bucket string
	Path   string
}

// MediaItem is implemented by Image, Video and Music.
type MediaItem interface {
	Kind() MediaKind
	MediaID() uint
	OwnerID() uint
	Files() []StoredFile
	SearchFields() []string
	SetLiked(liked bool)
}

// Image is an uploaded or AI-generated picture.
type Image struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	Owner         *Profile  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"owner,omitempty"`
	Title         string    `gorm:"size:200;not null" json:"title"`
	Description   *string   `gorm:"type:text" json:"description"`
	ImageURL      string    `gorm:"not null" json:"image_url"`
	ThumbnailURL  string    `json:"thumbnail_url"`
	StoragePath   string    `json:"storage_path"`
	ThumbnailPath string    `json:"-"`
	Tags          []string  `gorm:"serializer:json" json:"tags"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	Prompt        *string   `gorm:"type:text" json:"prompt"`
	LikesCount    int       `gorm:"not null;default:0" json:"likes_count"`
	Liked         bool      `gorm:"-" json:"liked"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (i *Image) Kind() MediaKind { return MediaImage }
func (i *Image) MediaID() uint   { return i.ID }
func (i *Image) OwnerID() uint   { return i.UserID }
func (i *Image) SetLiked(v bool) { i.Liked = v }

func (i *Image) Files() []StoredFile {
	return collectFiles(MediaImage.Bucket(), i.StoragePath, i.ThumbnailPath)
}

func (i *Image) SearchFields() []string {
	fields := []string{i.Title, deref(i.Description)}
	return append(fields, i.Tags...)
}

// MarshalJSON embeds only the public part of the owner.
func (i Image) MarshalJSON() ([]byte, error) {
	type row Image
	return json.Marshal(struct {
		row
		Owner *PublicProfile `json:"owner,omitempty"`
	}{row(i), publicOf(i.Owner)})
}

// Video is an AI-generated clip saved by its owner.
type Video struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Owner       *Profile  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"owner,omitempty"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description *string   `gorm:"type:text" json:"description"`
	VideoURL    string    `gorm:"not null" json:"video_url"`
	StoragePath string    `json:"storage_path"`
	Prompt      *string   `gorm:"type:text" json:"prompt"`
	LikesCount  int       `gorm:"not null;default:0" json:"likes_count"`
	Liked       bool      `gorm:"-" json:"liked"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (v *Video) Kind() MediaKind        { return MediaVideo }
func (v *Video) MediaID() uint          { return v.ID }
func (v *Video) OwnerID() uint          { return v.UserID }
func (v *Video) SetLiked(liked bool)    { v.Liked = liked }
func (v *Video) Files() []StoredFile    { return collectFiles(MediaVideo.Bucket(), v.StoragePath) }
func (v *Video) SearchFields() []string { return []string{v.Title, deref(v.Description)} }

func (v Video) MarshalJSON() ([]byte, error) {
	type row Video
	return json.Marshal(struct {
		row
		Owner *PublicProfile `json:"owner,omitempty"`
	}{row(v), publicOf(v.Owner)})
}

// Music is a generated track with optional cover art.
type Music struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Owner       *Profile  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"owner,omitempty"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description *string   `gorm:"type:text" json:"description"`
	AudioURL    string    `gorm:"not null" json:"audio_url"`
	CoverURL    string    `json:"image_url"`
	StoragePath string    `json:"storage_path"`
	Prompt      *string   `gorm:"type:text" json:"prompt"`
	LikesCount  int       `gorm:"not null;default:0" json:"likes_count"`
	Liked       bool      `gorm:"-" json:"liked"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName keeps the singular table name the catalogue has always used.
func (Music) TableName() string { return "music" }

func (m *Music) Kind() MediaKind        { return MediaMusic }
func (m *Music) MediaID() uint          { return m.ID }
func (m *Music) OwnerID() uint          { return m.UserID }
func (m *Music) SetLiked(liked bool)    { m.Liked = liked }
func (m *Music) Files() []StoredFile    { return collectFiles(MediaMusic.Bucket(), m.StoragePath) }
func (m *Music) SearchFields() []string { return []string{m.Title, deref(m.Description)} }

func (m Music) MarshalJSON() ([]byte, error) {
	type row Music
	return json.Marshal(struct {
		row
		Owner *PublicProfile `json:"owner,omitempty"`
	}{row(m), publicOf(m.Owner)})
}

// NewMediaItem returns an empty row of the given kind for scanning.
func NewMediaItem(kind MediaKind) MediaItem {
	switch kind {
	case MediaImage:
		return &Image{}
	case MediaVideo:
		return &Video{}
	default:
		return &Music{}
	}
}

func collectFiles(bucket string, paths ...string) []StoredFile {
	files := make([]StoredFile, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		files = append(files, StoredFile{Bucket: bucket, Path: p})
	}
	return files
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
