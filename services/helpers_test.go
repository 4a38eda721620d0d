package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"engagement-rewards-system/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a migrated sqlite database in a temp dir. One connection
// keeps concurrent callers serialized the way row locks would.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

// fakeOracle resolves handles from a map and answers follow checks from a set.
type fakeOracle struct {
	mu          sync.Mutex
	ids         map[string]string
	follows     map[string]bool
	resolveErr  error
	followErr   error
	followDelay time.Duration
	followCalls int
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{ids: map[string]string{}, follows: map[string]bool{}}
}

func (f *fakeOracle) withHandle(handle, id string) *fakeOracle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids[ScreenName(handle)] = id
	return f
}

func (f *fakeOracle) setFollowing(actorID, targetID string, following bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.follows[actorID+"→"+targetID] = following
}

func (f *fakeOracle) ResolveHandle(ctx context.Context, handle string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	if IsExternalID(handle) {
		return handle, nil
	}
	id, ok := f.ids[ScreenName(handle)]
	if !ok {
		return "", ErrHandleNotFound
	}
	return id, nil
}

func (f *fakeOracle) IsFollowing(ctx context.Context, actorID, targetID string) (bool, error) {
	f.mu.Lock()
	f.followCalls++
	delay, err := f.followDelay, f.followErr
	following := f.follows[actorID+"→"+targetID]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if err != nil {
		return false, err
	}
	return following, nil
}

var errOracleDown = errors.New("oracle unreachable")

// fixture wires every service over one database and fake oracle.
type fixture struct {
	db         *gorm.DB
	oracle     *fakeOracle
	ranks      *RankTable
	ledger     *LedgerService
	referrals  *ReferralService
	users      *UserService
	tasks      *TaskService
	completion *TaskCompletionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	oracle := newFakeOracle()
	ranks := DefaultRankTable()
	ledger := NewLedgerService(db)
	referrals := NewReferralService(db, ranks, ledger)
	return &fixture{
		db:         db,
		oracle:     oracle,
		ranks:      ranks,
		ledger:     ledger,
		referrals:  referrals,
		users:      NewUserService(db, ranks, ledger, referrals, 5),
		tasks:      NewTaskService(db, oracle, time.Second),
		completion: NewTaskCompletionService(db, ranks, ledger, oracle, oracle, 200*time.Millisecond),
	}
}

// newUser registers externalID without a referral code.
func (f *fixture) newUser(t *testing.T, externalID string) *models.User {
	t.Helper()
	u, created, err := f.users.InitiateOrFetchUser(context.Background(), externalID, "")
	require.NoError(t, err)
	require.True(t, created)
	return u
}

// reload reads a user back from the store.
func (f *fixture) reload(t *testing.T, u *models.User) *models.User {
	t.Helper()
	var fresh models.User
	require.NoError(t, f.db.First(&fresh, "id = ?", u.ID).Error)
	return &fresh
}

func (f *fixture) setDepth(t *testing.T, u *models.User, depth int) {
	t.Helper()
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", u.ID).Update("max_referral_depth", depth).Error)
}

func (f *fixture) ledgerCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Activity{}).Count(&n).Error)
	return n
}

// newTask registers a follow task whose title resolves to targetID.
func (f *fixture) newTask(t *testing.T, title, targetID string, points float64) *models.Task {
	t.Helper()
	f.oracle.withHandle(normalized(t, title), targetID)
	task, err := f.tasks.CreateTask(context.Background(), TaskInput{
		Title:        title,
		Kind:         models.TaskKindOneTime,
		RewardMethod: models.RewardMethodExternalFollow,
		Points:       points,
	})
	require.NoError(t, err)
	return task
}

func normalized(t *testing.T, handle string) string {
	t.Helper()
	h, err := NormalizeHandle(handle)
	require.NoError(t, err)
	return h
}
