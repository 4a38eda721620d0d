// workers/verification_sweeper.go
package workers

import (
	"context"
	"errors"
	"log"
	"time"

	"engagement-rewards-system/models"
	"engagement-rewards-system/services"

	"gorm.io/gorm"
)

// Completer is the part of the task state machine the sweeper drives.
type Completer interface {
	VerifyAndComplete(ctx context.Context, externalUserID, taskID, handle string) (*services.CompletionResult, error)
}

// PendingVerification is an achieved task whose user already has a verified
// external handle, so it can be re-checked without the user present.
type PendingVerification struct {
	ExternalID             string
	TaskID                 string
	VerifiedExternalHandle string
}

// VerificationSweeper periodically retries the follow check for achieved
// tasks. Users who followed after leaving the page get credited without
// coming back.
type VerificationSweeper struct {
	DB        *gorm.DB
	Completer Completer
	Interval  time.Duration
	BatchSize int
}

func NewVerificationSweeper(db *gorm.DB, completer Completer, interval time.Duration, batchSize int) *VerificationSweeper {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &VerificationSweeper{DB: db, Completer: completer, Interval: interval, BatchSize: batchSize}
}

func (w *VerificationSweeper) Start(ctx context.Context) {
	log.Printf("🔁 Starting verification sweeper (every %s, batch %d)…", w.Interval, w.BatchSize)
	go w.run(ctx)
}

func (w *VerificationSweeper) run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				log.Printf("❌ [SWEEP] Sweep failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Verification sweeper stopped")
			return
		}
	}
}

// Pending lists up to BatchSize achieved tasks eligible for a retry, oldest first.
func (w *VerificationSweeper) Pending(ctx context.Context) ([]PendingVerification, error) {
	var rows []PendingVerification
	err := w.DB.WithContext(ctx).
		Table("user_tasks AS ut").
		Select("u.external_id, ut.task_id, u.verified_external_handle").
		Joins("JOIN users u ON u.id = ut.user_id").
		Where("ut.state = ? AND u.verified_external_handle IS NOT NULL", models.TaskStateAchieved).
		Order("ut.updated_at ASC").
		Limit(w.BatchSize).
		Scan(&rows).Error
	return rows, err
}

// Sweep runs one pass and returns how many tasks were completed.
func (w *VerificationSweeper) Sweep(ctx context.Context) (int, error) {
	pending, err := w.Pending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	completed := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			break
		}
		_, err := w.Completer.VerifyAndComplete(ctx, p.ExternalID, p.TaskID, p.VerifiedExternalHandle)
		switch {
		case err == nil:
			completed++
		case errors.Is(err, services.ErrVerificationFailed), errors.Is(err, services.ErrAlreadyCompleted):
			// still not following, or completed by the user meanwhile
		default:
			log.Printf("⚠️ [SWEEP] Task %s for %s: %v", p.TaskID, p.ExternalID, err)
		}
		_ = w.touch(ctx, p)
	}
	log.Printf("[SWEEP] Checked %d pending task(s), completed %d", len(pending), completed)
	return completed, nil
}

// touch bumps updated_at on still-achieved rows so the next pass starts with
// tasks that have waited longest.
func (w *VerificationSweeper) touch(ctx context.Context, p PendingVerification) error {
	err := w.DB.WithContext(ctx).Exec(`
		UPDATE user_tasks SET updated_at = ?
		WHERE task_id = ? AND state = ? AND user_id = (SELECT id FROM users WHERE external_id = ?)`,
		time.Now(), p.TaskID, models.TaskStateAchieved, p.ExternalID).Error
	if err != nil {
		log.Printf("⚠️ [SWEEP] Could not requeue task %s for %s: %v", p.TaskID, p.ExternalID, err)
	}
	return err
}
