package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"engagement-rewards-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const referralCodeAttempts = 3

// GenerateReferralCode returns 12 upper-case hex characters taken from a v4 uuid.
func GenerateReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// RankView is the current rank with the bounds of its band.
type RankView struct {
	ID   int      `json:"current_level"`
	Name string   `json:"name"`
	Min  float64  `json:"min"`
	Max  *float64 `json:"max"`
}

// UserSnapshot is everything the presentation layer renders for one user.
type UserSnapshot struct {
	ExternalID             string            `json:"user_id"`
	ReferralCode           string            `json:"referral_code"`
	ReferredBy             *string           `json:"referred_by,omitempty"`
	Points                 float64           `json:"points"`
	Rank                   RankView          `json:"level"`
	ReferralCount          int64             `json:"referral_count"`
	MaxReferralDepth       int               `json:"max_referral_depth"`
	VerifiedExternalHandle *string           `json:"verified_external_handle,omitempty"`
	AchievedTasks          []string          `json:"achieved_tasks"`
	CompletedTasks         []string          `json:"completed_tasks"`
	Activities             []LedgerEntryView `json:"activities"`
}

type UserService struct {
	DB               *gorm.DB
	Ranks            *RankTable
	Ledger           *LedgerService
	Referrals        *ReferralService
	MaxReferralDepth int
}

func NewUserService(db *gorm.DB, ranks *RankTable, ledger *LedgerService, referrals *ReferralService, maxReferralDepth int) *UserService {
	return &UserService{
		DB:               db,
		Ranks:            ranks,
		Ledger:           ledger,
		Referrals:        referrals,
		MaxReferralDepth: maxReferralDepth,
	}
}

// FindByExternalID loads a user by the identity provider's id.
func (s *UserService) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return findUserByExternalID(s.DB.WithContext(ctx), externalID)
}

func findUserByExternalID(db *gorm.DB, externalID string) (*models.User, error) {
	var user models.User
	if err := db.Where("external_id = ?", externalID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, persistenceError("find user", err)
	}
	return &user, nil
}

// InitiateOrFetchUser returns the user for externalID, creating it on first
// contact. Only a freshly created user is offered to the referral engine, so
// retried calls never propagate twice. created reports whether this call
// inserted the row.
func (s *UserService) InitiateOrFetchUser(ctx context.Context, externalID, referralCode string) (user *models.User, created bool, err error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, false, validationError("user id is required")
	}

	user, err = s.FindByExternalID(ctx, externalID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, created, err = s.create(ctx, externalID)
	if err != nil || !created {
		return user, false, err
	}
	log.Printf("👤 [USERS] Created user %s (code %s)", user.ExternalID, user.ReferralCode)

	if strings.TrimSpace(referralCode) != "" {
		if _, rerr := s.Referrals.RegisterIfNew(ctx, user, referralCode); rerr != nil {
			// Registration still succeeds; propagation is best effort.
			log.Printf("⚠️ [USERS] Referral propagation for %s stopped: %v", user.ExternalID, rerr)
		}
		if fresh, ferr := s.FindByExternalID(ctx, externalID); ferr == nil {
			user = fresh
		}
	}
	return user, true, nil
}

// create inserts a user row. A unique violation on external_id means another
// request won the race, and the winner's row is returned instead. A collision
// on referral_code is retried with a new code.
func (s *UserService) create(ctx context.Context, externalID string) (*models.User, bool, error) {
	db := s.DB.WithContext(ctx)
	var lastErr error
	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		user := models.User{
			ExternalID:       externalID,
			ReferralCode:     GenerateReferralCode(),
			MaxReferralDepth: s.MaxReferralDepth,
			Rank:             s.Ranks.CalculateRank(0),
		}
		err := db.Create(&user).Error
		if err == nil {
			return &user, true, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, persistenceError("create user", err)
		}
		existing, ferr := findUserByExternalID(db, externalID)
		if ferr == nil {
			return existing, false, nil
		}
		if !errors.Is(ferr, ErrUserNotFound) {
			return nil, false, ferr
		}
		lastErr = err
	}
	return nil, false, persistenceError("create user: referral code collisions", lastErr)
}

// GetReferralCode returns the referral code owned by externalID.
func (s *UserService) GetReferralCode(ctx context.Context, externalID string) (string, error) {
	user, err := s.FindByExternalID(ctx, externalID)
	if err != nil {
		return "", err
	}
	return user.ReferralCode, nil
}

// Snapshot assembles the produced facts for one user.
func (s *UserService) Snapshot(ctx context.Context, externalID string) (*UserSnapshot, error) {
	user, err := s.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return s.snapshotOf(ctx, user)
}

func (s *UserService) snapshotOf(ctx context.Context, user *models.User) (*UserSnapshot, error) {
	db := s.DB.WithContext(ctx)

	band := s.Ranks.Band(user.Points)
	snap := &UserSnapshot{
		ExternalID:             user.ExternalID,
		ReferralCode:           user.ReferralCode,
		Points:                 user.Points,
		Rank:                   RankView{ID: band.ID, Name: band.Name, Min: band.Min, Max: band.Max},
		ReferralCount:          user.ReferralCount,
		MaxReferralDepth:       user.MaxReferralDepth,
		VerifiedExternalHandle: user.VerifiedExternalHandle,
		AchievedTasks:          []string{},
		CompletedTasks:         []string{},
	}

	if user.ReferredByID != nil {
		var referrer models.User
		if err := db.Select("external_id").First(&referrer, "id = ?", *user.ReferredByID).Error; err == nil {
			snap.ReferredBy = &referrer.ExternalID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, persistenceError("find referrer", err)
		}
	}

	var rows []models.UserTask
	if err := db.Where("user_id = ?", user.ID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, persistenceError("list user tasks", err)
	}
	for _, r := range rows {
		switch r.State {
		case models.TaskStateAchieved:
			snap.AchievedTasks = append(snap.AchievedTasks, r.TaskID)
		case models.TaskStateCompleted:
			snap.CompletedTasks = append(snap.CompletedTasks, r.TaskID)
		}
	}

	activities, err := s.Ledger.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	snap.Activities = activities
	return snap, nil
}
