package models

import (
	"time"

	"gorm.io/gorm"
)

// PlatformUser is a local snapshot of angler profile data needed for
// leaderboards and archives. Owned solely by the competition service.
// Populated via sync worker from the booking platform's profile service.
type PlatformUser struct {
	ID              string     `gorm:"primaryKey" json:"id"`
	ExternalUserID  string     `gorm:"uniqueIndex;not null" json:"external_user_id"` // profile service UUID
	Username        string     `gorm:"index;not null" json:"username"`
	Email           string     `json:"email,omitempty"`
	AvatarURL       *string    `json:"avatar_url,omitempty"`
	HomePort        *string    `json:"home_port,omitempty"`
	CreatedAt       time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	LastSeen        *time.Time `json:"last_seen,omitempty"`
	IsBanned        bool       `json:"is_banned" gorm:"default:false"` // local competition ban

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
