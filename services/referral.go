package services

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"

	"engagement-rewards-system/models"

	"gorm.io/gorm"
)

// Referral reward schedule. The direct referrer gets a flat bonus, every
// further ancestor gets ReferralBasePoints halved per hop.
const (
	DirectReferralPoints  = 25.0
	ReferralBasePoints    = 5.0
	ReferralDecay         = 0.5
	NewUserReferralPoints = 5.0
)

// ReferralPoints returns the reward for the ancestor at chain position level
// (0 = direct referrer).
func ReferralPoints(level int) float64 {
	if level <= 0 {
		return DirectReferralPoints
	}
	return ReferralBasePoints * math.Pow(ReferralDecay, float64(level))
}

type AncestorReward struct {
	UserID string  `json:"user_id"`
	Level  int     `json:"level"`
	Points float64 `json:"points"`
}

// ReferralResult describes what RegisterIfNew did. Applied is false for every
// no-op path; SkipReason says which.
type ReferralResult struct {
	Applied       bool             `json:"applied"`
	SkipReason    string           `json:"skip_reason,omitempty"`
	ReferrerID    string           `json:"referrer_id,omitempty"`
	Rewards       []AncestorReward `json:"rewards,omitempty"`
	NewUserPoints float64          `json:"new_user_points,omitempty"`
}

type ReferralService struct {
	DB     *gorm.DB
	Ranks  *RankTable
	Ledger *LedgerService
}

func NewReferralService(db *gorm.DB, ranks *RankTable, ledger *LedgerService) *ReferralService {
	return &ReferralService{DB: db, Ranks: ranks, Ledger: ledger}
}

// RegisterIfNew links newUser to the owner of referralCode and pays the
// referral chain. It must only be called for a user that was just created.
//
// The referred_by edge is claimed first with a conditional update, so a
// retried or concurrent call for the same user finds it set and does nothing.
// Each ancestor is credited in its own transaction; a store failure stops the
// walk and leaves earlier credits in place.
func (s *ReferralService) RegisterIfNew(ctx context.Context, newUser *models.User, referralCode string) (*ReferralResult, error) {
	code := strings.ToUpper(strings.TrimSpace(referralCode))
	if newUser == nil || code == "" {
		return &ReferralResult{SkipReason: "no referral code"}, nil
	}
	if newUser.ReferredByID != nil {
		return &ReferralResult{SkipReason: "already referred"}, nil
	}

	db := s.DB.WithContext(ctx)

	var referrer models.User
	if err := db.Where("referral_code = ?", code).First(&referrer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[REFERRAL] Unknown referral code %q for user %s", code, newUser.ExternalID)
			return &ReferralResult{SkipReason: "unknown referral code"}, nil
		}
		log.Printf("❌ [REFERRAL] Lookup of code %q failed: %v", code, err)
		return nil, persistenceError("find referrer", err)
	}
	if referrer.ID == newUser.ID {
		return &ReferralResult{SkipReason: "self referral"}, nil
	}

	claim := db.Model(&models.User{}).
		Where("id = ? AND referred_by_id IS NULL", newUser.ID).
		Update("referred_by_id", referrer.ID)
	if claim.Error != nil {
		log.Printf("❌ [REFERRAL] Claiming referrer for %s failed: %v", newUser.ExternalID, claim.Error)
		return nil, persistenceError("set referred_by", claim.Error)
	}
	if claim.RowsAffected == 0 {
		return &ReferralResult{SkipReason: "already referred"}, nil
	}
	referrerID := referrer.ID
	newUser.ReferredByID = &referrerID

	result := &ReferralResult{Applied: true, ReferrerID: referrer.ID}

	chain, err := s.ancestorChain(db, &referrer, newUser.ID)
	if err != nil {
		log.Printf("❌ [REFERRAL] Building chain for %s failed: %v", newUser.ExternalID, err)
		return result, err
	}

	for level, ancestor := range chain {
		reward := ReferralPoints(level)
		err := db.Transaction(func(tx *gorm.DB) error {
			if _, err := creditPoints(tx, s.Ranks, ancestor.ID, reward, map[string]interface{}{
				"referral_count": gorm.Expr("referral_count + 1"),
			}); err != nil {
				return err
			}
			return s.Ledger.Append(tx, &models.Activity{
				BeneficiaryID: ancestor.ID,
				RewardedByID:  &newUser.ID,
				Type:          models.ActivityTypeReferral,
				ReferralCode:  &referrer.ReferralCode,
				Points:        reward,
			})
		})
		if err != nil {
			log.Printf("❌ [REFERRAL] Crediting ancestor %s (level %d) failed, abandoning chain: %v", ancestor.ExternalID, level, err)
			return result, err
		}
		result.Rewards = append(result.Rewards, AncestorReward{UserID: ancestor.ID, Level: level, Points: reward})
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		updated, err := creditPoints(tx, s.Ranks, newUser.ID, NewUserReferralPoints, nil)
		if err != nil {
			return err
		}
		newUser.Points = updated.Points
		newUser.Rank = updated.Rank
		return s.Ledger.Append(tx, &models.Activity{
			BeneficiaryID: newUser.ID,
			RewardedByID:  &referrerID,
			Type:          models.ActivityTypeReferral,
			ReferralCode:  &referrer.ReferralCode,
			Points:        NewUserReferralPoints,
		})
	})
	if err != nil {
		log.Printf("❌ [REFERRAL] Crediting new user %s failed: %v", newUser.ExternalID, err)
		return result, err
	}
	result.NewUserPoints = NewUserReferralPoints

	log.Printf("🤝 [REFERRAL] %s joined via %s: %d ancestor(s) rewarded", newUser.ExternalID, code, len(result.Rewards))
	return result, nil
}

// ancestorChain walks referred_by links upward from referrer, one read per
// hop. The referrer's own MaxReferralDepth bounds the walk for the whole chain.
func (s *ReferralService) ancestorChain(db *gorm.DB, referrer *models.User, newUserID string) ([]models.User, error) {
	depth := referrer.MaxReferralDepth
	seen := map[string]bool{newUserID: true}

	var chain []models.User
	current := referrer
	for current != nil && len(chain) < depth {
		if seen[current.ID] {
			break
		}
		seen[current.ID] = true
		chain = append(chain, *current)

		if current.ReferredByID == nil {
			break
		}
		var ancestor models.User
		if err := db.First(&ancestor, "id = ?", *current.ReferredByID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return chain, persistenceError("find ancestor", err)
		}
		current = &ancestor
	}
	return chain, nil
}
