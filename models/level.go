package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Level mirrors one rank band for readers that only see the database.
// The in-process rank table stays authoritative.
type Level struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"-"`
	LevelID   int       `gorm:"uniqueIndex;not null" json:"level_id"`
	Name      string    `gorm:"not null" json:"name"`
	Min       float64   `gorm:"not null" json:"min"`
	Max       *float64  `json:"max"` // nil for the open-ended top band
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (l *Level) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
