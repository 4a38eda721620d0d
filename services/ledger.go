package services

import (
	"context"
	"time"

	"engagement-rewards-system/models"

	"gorm.io/gorm"
)

// LedgerEntryView is a ledger entry as the presentation layer sees it.
type LedgerEntryView struct {
	ID                    string              `json:"id"`
	BeneficiaryExternalID string              `json:"beneficiary_external_id"`
	RewardedByExternalID  *string             `json:"rewarded_by_external_id,omitempty"`
	Type                  models.ActivityType `json:"type"`
	ReferralCode          *string             `json:"referral_code,omitempty"`
	TaskID                *string             `json:"task_id,omitempty"`
	Points                float64             `json:"points"`
	CreatedAt             time.Time           `json:"created_at"`
}

// LedgerService appends and reads reward events. It has no update or delete path.
type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// Append inserts entry using tx, which must be the caller's open transaction.
func (s *LedgerService) Append(tx *gorm.DB, entry *models.Activity) error {
	if entry.Points <= 0 {
		return validationError("ledger entry points must be positive, got %v", entry.Points)
	}
	if err := tx.Create(entry).Error; err != nil {
		return persistenceError("append ledger entry", err)
	}
	return nil
}

// ListForUser returns the entries credited to userID, newest first.
func (s *LedgerService) ListForUser(ctx context.Context, userID string) ([]LedgerEntryView, error) {
	var rows []LedgerEntryView
	err := s.DB.WithContext(ctx).
		Table("activities AS a").
		Select(`a.id, b.external_id AS beneficiary_external_id, r.external_id AS rewarded_by_external_id,
			a.type, a.referral_code, a.task_id, a.points, a.created_at`).
		Joins("JOIN users b ON b.id = a.beneficiary_id").
		Joins("LEFT JOIN users r ON r.id = a.rewarded_by_id").
		Where("a.beneficiary_id = ?", userID).
		Order("a.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, persistenceError("list ledger entries", err)
	}
	return rows, nil
}

// CountForUser returns how many entries userID has, optionally of one type.
func (s *LedgerService) CountForUser(ctx context.Context, userID string, typ models.ActivityType) (int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.Activity{}).Where("beneficiary_id = ?", userID)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, persistenceError("count ledger entries", err)
	}
	return n, nil
}

// SumForUser totals the points credited to userID.
func (s *LedgerService) SumForUser(ctx context.Context, userID string) (float64, error) {
	var sum float64
	err := s.DB.WithContext(ctx).Model(&models.Activity{}).
		Select("COALESCE(SUM(points), 0)").
		Where("beneficiary_id = ?", userID).
		Scan(&sum).Error
	if err != nil {
		return 0, persistenceError("sum ledger entries", err)
	}
	return sum, nil
}
