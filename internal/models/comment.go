package models

import (
	"encoding/json"
	"time"
)

// ImageComment is a comment left on an image.
type ImageComment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ImageID   uint      `gorm:"not null;index" json:"image_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Author    *Profile  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// MarshalJSON embeds only the public part of the author.
func (c ImageComment) MarshalJSON() ([]byte, error) {
	type row ImageComment
	return json.Marshal(struct {
		row
		Author *PublicProfile `json:"author,omitempty"`
	}{row(c), publicOf(c.Author)})
}
