package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskKind is how often a task is offered. Completion is rewarded at most once
// per user regardless of kind.
type TaskKind string

const (
	TaskKindOneTime   TaskKind = "one_time"
	TaskKindRecurring TaskKind = "recurring"
)

func (k TaskKind) Valid() bool {
	switch k {
	case TaskKindOneTime, TaskKindRecurring:
		return true
	}
	return false
}

// RewardMethod selects the verification strategy used before a task pays out.
type RewardMethod string

const (
	RewardMethodExternalFollow RewardMethod = "external_follow"
)

func (m RewardMethod) Valid() bool {
	return m == RewardMethodExternalFollow
}

// Task is a completable unit in the registry.
type Task struct {
	ID                 string       `gorm:"primaryKey;type:uuid" json:"id"`
	Title              string       `gorm:"not null" json:"title"`
	Slug               string       `gorm:"index;not null" json:"slug"`
	Kind               TaskKind     `gorm:"type:varchar(16);not null" json:"kind"`
	RewardMethod       RewardMethod `gorm:"type:varchar(32);not null" json:"reward_method"`
	VerificationTarget string       `gorm:"uniqueIndex;not null" json:"verification_target"`
	Points             float64      `gorm:"not null" json:"points"`
	CreatedAt          time.Time    `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// TaskState is the per (user, task) lifecycle position. A missing row means
// the task has not been started.
type TaskState string

const (
	TaskStateNotStarted TaskState = "not_started" // never persisted
	TaskStateAchieved   TaskState = "achieved"
	TaskStateCompleted  TaskState = "completed"
)

// UserTask holds exactly one state per (user, task) pair.
type UserTask struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string     `gorm:"type:uuid;uniqueIndex:idx_user_task;not null" json:"user_id"`
	TaskID      string     `gorm:"type:uuid;uniqueIndex:idx_user_task;index;not null" json:"task_id"`
	State       TaskState  `gorm:"type:varchar(16);index;not null" json:"state"`
	AchievedAt  *time.Time `json:"achieved_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (ut *UserTask) BeforeCreate(tx *gorm.DB) error {
	if ut.ID == "" {
		ut.ID = uuid.NewString()
	}
	return nil
}
