package services

import (
	"context"
	"errors"
	"log"
	"time"

	"engagement-rewards-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompletionResult is returned after a task pays out.
type CompletionResult struct {
	TaskID         string           `json:"task_id"`
	State          models.TaskState `json:"state"`
	PointsAwarded  float64          `json:"points_awarded"`
	Points         float64          `json:"points"`
	Rank           int              `json:"rank"`
	ExternalHandle string           `json:"external_handle"`
}

// TaskCompletionService drives the per (user, task) state machine:
// not started → achieved → completed. Completion pays task.Points exactly once.
type TaskCompletionService struct {
	DB            *gorm.DB
	Ranks         *RankTable
	Ledger        *LedgerService
	Resolver      HandleResolver
	Verifier      FollowVerifier
	OracleTimeout time.Duration
}

func NewTaskCompletionService(db *gorm.DB, ranks *RankTable, ledger *LedgerService, resolver HandleResolver, verifier FollowVerifier, oracleTimeout time.Duration) *TaskCompletionService {
	return &TaskCompletionService{
		DB:            db,
		Ranks:         ranks,
		Ledger:        ledger,
		Resolver:      resolver,
		Verifier:      verifier,
		OracleTimeout: oracleTimeout,
	}
}

// State returns the current state of task for user.
func (s *TaskCompletionService) State(ctx context.Context, userID, taskID string) (models.TaskState, error) {
	return taskState(s.DB.WithContext(ctx), userID, taskID)
}

func taskState(db *gorm.DB, userID, taskID string) (models.TaskState, error) {
	var row models.UserTask
	err := db.Where("user_id = ? AND task_id = ?", userID, taskID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.TaskStateNotStarted, nil
	}
	if err != nil {
		return "", persistenceError("read task state", err)
	}
	return row.State, nil
}

// insertAchieved creates the achieved row unless one exists in any state.
func insertAchieved(db *gorm.DB, userID, taskID string, now time.Time) error {
	row := models.UserTask{
		UserID:     userID,
		TaskID:     taskID,
		State:      models.TaskStateAchieved,
		AchievedAt: &now,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "task_id"}},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil {
		return persistenceError("record achieved task", err)
	}
	return nil
}

// MarkAchieved records that the user started the external action. Calling it
// again, or after completion, changes nothing and reports the current state.
func (s *TaskCompletionService) MarkAchieved(ctx context.Context, externalUserID, taskID string) (models.TaskState, error) {
	db := s.DB.WithContext(ctx)
	user, err := findUserByExternalID(db, externalUserID)
	if err != nil {
		return "", err
	}
	task, err := findTaskByID(db, taskID)
	if err != nil {
		return "", err
	}
	if err := insertAchieved(db, user.ID, task.ID, time.Now()); err != nil {
		return "", err
	}
	return taskState(db, user.ID, task.ID)
}

// VerifyAndComplete asks the oracle whether handle follows the task target and,
// if so, completes the task and credits its points in one transaction.
//
// Oracle failures and negative answers return ErrVerificationFailed and leave
// state untouched. A task already completed returns ErrAlreadyCompleted; the
// check is repeated as a conditional update inside the transaction, so two
// concurrent calls can never both pay.
func (s *TaskCompletionService) VerifyAndComplete(ctx context.Context, externalUserID, taskID, handle string) (*CompletionResult, error) {
	db := s.DB.WithContext(ctx)
	user, err := findUserByExternalID(db, externalUserID)
	if err != nil {
		return nil, err
	}
	task, err := findTaskByID(db, taskID)
	if err != nil {
		return nil, err
	}

	state, err := taskState(db, user.ID, task.ID)
	if err != nil {
		return nil, err
	}
	if state == models.TaskStateCompleted {
		return nil, ErrAlreadyCompleted
	}

	normalized, err := NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	actorID, err := resolveHandle(ctx, s.Resolver, s.OracleTimeout, normalized)
	if err != nil {
		if errors.Is(err, ErrHandleNotFound) {
			return nil, err
		}
		return nil, withCause(ErrVerificationFailed, err)
	}
	if user.VerifiedExternalHandle != nil && *user.VerifiedExternalHandle != actorID {
		return nil, ErrHandleMismatch
	}

	if err := s.verifyFollow(ctx, actorID, task.VerificationTarget); err != nil {
		log.Printf("[TASKS] Verification of task %s for %s failed: %v", task.ID, user.ExternalID, err)
		return nil, err
	}

	var result *CompletionResult
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := bindExternalHandle(tx, user, actorID); err != nil {
			return err
		}

		now := time.Now()
		if err := insertAchieved(tx, user.ID, task.ID, now); err != nil {
			return err
		}
		res := tx.Model(&models.UserTask{}).
			Where("user_id = ? AND task_id = ? AND state = ?", user.ID, task.ID, models.TaskStateAchieved).
			Updates(map[string]interface{}{
				"state":        models.TaskStateCompleted,
				"completed_at": now,
			})
		if res.Error != nil {
			return persistenceError("complete task", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyCompleted
		}

		updated, err := creditPoints(tx, s.Ranks, user.ID, task.Points, nil)
		if err != nil {
			return err
		}
		if err := s.Ledger.Append(tx, &models.Activity{
			BeneficiaryID: user.ID,
			Type:          models.ActivityTypeTask,
			TaskID:        &task.ID,
			Points:        task.Points,
		}); err != nil {
			return err
		}

		result = &CompletionResult{
			TaskID:         task.ID,
			State:          models.TaskStateCompleted,
			PointsAwarded:  task.Points,
			Points:         updated.Points,
			Rank:           updated.Rank,
			ExternalHandle: actorID,
		}
		return nil
	})
	if err != nil {
		if KindOf(err) == KindPersistence {
			log.Printf("❌ [TASKS] Completing task %s for %s failed: %v", task.ID, user.ExternalID, err)
		}
		return nil, err
	}

	log.Printf("🏆 [TASKS] %s completed task %s (+%v pts, total %v, rank %d)",
		user.ExternalID, task.ID, task.Points, result.Points, result.Rank)
	return result, nil
}

// verifyFollow maps every oracle outcome other than a positive answer,
// including timeouts, to ErrVerificationFailed.
func (s *TaskCompletionService) verifyFollow(ctx context.Context, actorID, targetID string) error {
	ctx, cancel := oracleContext(ctx, s.OracleTimeout)
	defer cancel()

	following, err := s.Verifier.IsFollowing(ctx, actorID, targetID)
	if err != nil {
		return withCause(ErrVerificationFailed, err)
	}
	if !following {
		return ErrVerificationFailed
	}
	return nil
}

// bindExternalHandle links actorID to user on first use. The unique index on
// verified_external_handle rejects a handle already held by someone else.
func bindExternalHandle(tx *gorm.DB, user *models.User, actorID string) error {
	if user.VerifiedExternalHandle != nil {
		return nil
	}

	var holders int64
	if err := tx.Model(&models.User{}).
		Where("verified_external_handle = ? AND id <> ?", actorID, user.ID).
		Count(&holders).Error; err != nil {
		return persistenceError("check handle owner", err)
	}
	if holders > 0 {
		return ErrHandleTaken
	}

	res := tx.Model(&models.User{}).
		Where("id = ? AND verified_external_handle IS NULL", user.ID).
		Update("verified_external_handle", actorID)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrHandleTaken
		}
		return persistenceError("bind external handle", res.Error)
	}
	if res.RowsAffected == 0 {
		// Bound concurrently; accept only if it is the same handle.
		var current models.User
		if err := tx.Select("verified_external_handle").First(&current, "id = ?", user.ID).Error; err != nil {
			return persistenceError("reload external handle", err)
		}
		if current.VerifiedExternalHandle == nil || *current.VerifiedExternalHandle != actorID {
			return ErrHandleMismatch
		}
	}
	return nil
}
