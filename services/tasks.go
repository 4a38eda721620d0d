package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"engagement-rewards-system/models"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// TaskInput is the admin-editable part of a task.
type TaskInput struct {
	Title        string              `json:"title"`
	Kind         models.TaskKind     `json:"kind"`
	RewardMethod models.RewardMethod `json:"reward_method"`
	Points       float64             `json:"points"`
}

func (in TaskInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return validationError("title is required")
	}
	if !in.Kind.Valid() {
		return validationError("unknown task kind %q", in.Kind)
	}
	if !in.RewardMethod.Valid() {
		return validationError("unknown reward method %q", in.RewardMethod)
	}
	if in.Points <= 0 {
		return validationError("points must be positive, got %v", in.Points)
	}
	return nil
}

// TaskService is the task registry.
type TaskService struct {
	DB            *gorm.DB
	Resolver      HandleResolver
	OracleTimeout time.Duration
}

func NewTaskService(db *gorm.DB, resolver HandleResolver, oracleTimeout time.Duration) *TaskService {
	return &TaskService{DB: db, Resolver: resolver, OracleTimeout: oracleTimeout}
}

// ResolveVerificationTarget turns a task title (a handle or profile link) into
// the canonical external id the follow check targets.
func (s *TaskService) ResolveVerificationTarget(ctx context.Context, title string) (string, error) {
	handle, err := NormalizeHandle(title)
	if err != nil {
		return "", err
	}
	return resolveHandle(ctx, s.Resolver, s.OracleTimeout, handle)
}

// resolveHandle calls the resolver under a bounded timeout.
func resolveHandle(ctx context.Context, resolver HandleResolver, timeout time.Duration, handle string) (string, error) {
	ctx, cancel := oracleContext(ctx, timeout)
	defer cancel()

	id, err := resolver.ResolveHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, ErrHandleNotFound) {
			return "", err
		}
		return "", oracleError(CodeOracleUnavailable, "handle lookup failed", err)
	}
	return id, nil
}

func oracleContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *TaskService) CreateTask(ctx context.Context, in TaskInput) (*models.Task, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	target, err := s.ResolveVerificationTarget(ctx, in.Title)
	if err != nil {
		return nil, err
	}
	if err := s.ensureTargetFree(ctx, target, ""); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	task := &models.Task{
		Title:              title,
		Slug:               slug.Make(title),
		Kind:               in.Kind,
		RewardMethod:       in.RewardMethod,
		VerificationTarget: target,
		Points:             in.Points,
	}
	if err := s.DB.WithContext(ctx).Create(task).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateTarget
		}
		return nil, persistenceError("create task", err)
	}
	log.Printf("✅ [TASKS] Created task %s %q → target %s (%v pts)", task.ID, task.Title, task.VerificationTarget, task.Points)
	return task, nil
}

// UpdateTask replaces the editable fields. A changed title is resolved again
// and must still map to a target no other task uses.
func (s *TaskService) UpdateTask(ctx context.Context, id string, in TaskInput) (*models.Task, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title != task.Title {
		target, err := s.ResolveVerificationTarget(ctx, title)
		if err != nil {
			return nil, err
		}
		if err := s.ensureTargetFree(ctx, target, task.ID); err != nil {
			return nil, err
		}
		task.Title = title
		task.Slug = slug.Make(title)
		task.VerificationTarget = target
	}
	task.Kind = in.Kind
	task.RewardMethod = in.RewardMethod
	task.Points = in.Points

	if err := s.DB.WithContext(ctx).Save(task).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateTarget
		}
		return nil, persistenceError("update task", err)
	}
	log.Printf("✏️ [TASKS] Updated task %s", task.ID)
	return task, nil
}

// DeleteTask removes a task and every per-user state row for it. Ledger
// entries that reference the task are kept.
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&models.UserTask{}).Error; err != nil {
			return persistenceError("delete user tasks", err)
		}
		res := tx.Where("id = ?", id).Delete(&models.Task{})
		if res.Error != nil {
			return persistenceError("delete task", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrTaskNotFound
		}
		log.Printf("🗑️ [TASKS] Deleted task %s", id)
		return nil
	})
}

// ListTasks returns all tasks, newest first.
func (s *TaskService) ListTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, persistenceError("list tasks", err)
	}
	return tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return findTaskByID(s.DB.WithContext(ctx), id)
}

func findTaskByID(db *gorm.DB, id string) (*models.Task, error) {
	var task models.Task
	if err := db.First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, persistenceError("find task", err)
	}
	return &task, nil
}

// FindTaskByVerificationTarget returns the task targeting id, if any.
func (s *TaskService) FindTaskByVerificationTarget(ctx context.Context, target string) (*models.Task, error) {
	var task models.Task
	if err := s.DB.WithContext(ctx).Where("verification_target = ?", target).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, persistenceError("find task by target", err)
	}
	return &task, nil
}

func (s *TaskService) ensureTargetFree(ctx context.Context, target, exceptID string) error {
	existing, err := s.FindTaskByVerificationTarget(ctx, target)
	if errors.Is(err, ErrTaskNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != exceptID {
		return ErrDuplicateTarget
	}
	return nil
}
