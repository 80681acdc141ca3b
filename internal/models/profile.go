// Package models contains data structures for the application's domain models.
package models

import "time"

// Profile is the account and public profile of one gallery user.
type Profile struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Email      string    `gorm:"uniqueIndex;not null" json:"email,omitempty"`
	Password   string    `gorm:"not null" json:"-"`
	Username   string    `gorm:"uniqueIndex;size:20;not null" json:"username"`
	FullName   string    `gorm:"size:100" json:"full_name"`
	AvatarURL  string    `json:"avatar_url"`
	AvatarPath string    `json:"-"`
	IsAdmin    bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PublicProfile is the subset of a profile that is safe to embed in other users' responses.
type PublicProfile struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// Public strips private fields.
func (p *Profile) Public() PublicProfile {
	return PublicProfile{
		ID:        p.ID,
		Username:  p.Username,
		FullName:  p.FullName,
		AvatarURL: p.AvatarURL,
	}
}

func publicOf(p *Profile) *PublicProfile {
	if p == nil {
		return nil
	}
	pub := p.Public()
	return &pub
}
