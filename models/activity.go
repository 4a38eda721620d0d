package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActivityType string

const (
	ActivityTypeReferral ActivityType = "REFERRAL"
	ActivityTypeTask     ActivityType = "TASK"
)

// Activity is a ledger entry. Rows are inserted by the reward engines and
// never updated or deleted.
type Activity struct {
	ID            string       `gorm:"primaryKey;type:uuid" json:"id"`
	BeneficiaryID string       `gorm:"type:uuid;index;not null" json:"beneficiary_id"`
	RewardedByID  *string      `gorm:"type:uuid;index" json:"rewarded_by_id,omitempty"`
	Type          ActivityType `gorm:"type:varchar(16);not null" json:"type"`
	ReferralCode  *string      `gorm:"size:32" json:"referral_code,omitempty"`
	TaskID        *string      `gorm:"type:uuid" json:"task_id,omitempty"`
	Points        float64      `gorm:"not null" json:"points"`
	CreatedAt     time.Time    `json:"created_at" gorm:"autoCreateTime;index"`
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// LedgerExport records one batch of ledger entries shipped to object storage.
type LedgerExport struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	ObjectKey string    `gorm:"not null" json:"object_key"`
	Through   time.Time `gorm:"index;not null" json:"through"` // created_at of the last exported entry
	ThroughID string    `gorm:"type:uuid;not null" json:"through_id"`
	Entries   int64     `gorm:"not null" json:"entries"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (e *LedgerExport) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
