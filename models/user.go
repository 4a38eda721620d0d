package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the identity-bearing aggregate. One row per external identity
// (OAuth subject or Telegram mini-app user id).
type User struct {
	ID           string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalID   string  `gorm:"uniqueIndex;not null" json:"external_id"`
	ReferralCode string  `gorm:"uniqueIndex;size:32;not null" json:"referral_code"`
	ReferredByID *string `gorm:"type:uuid;index" json:"referred_by_id,omitempty"` // set once, never cleared

	Points        float64 `gorm:"not null;default:0" json:"points"`
	Rank          int     `gorm:"not null;default:0" json:"rank"` // always CalculateRank(Points)
	ReferralCount int64   `gorm:"not null;default:0" json:"referral_count"`

	MaxReferralDepth int `gorm:"not null" json:"max_referral_depth"`

	// Canonical id of the external account proven by a follow check.
	// Unique across users; first write wins.
	VerifiedExternalHandle *string `gorm:"uniqueIndex" json:"verified_external_handle,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
