package services

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"engagement-rewards-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReferralCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9A-F]{12}$`)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code := GenerateReferralCode()
		assert.Regexp(t, pattern, code)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestInitiateOrFetchUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, created, err := f.users.InitiateOrFetchUser(ctx, "user-1", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "user-1", u.ExternalID)
	assert.Equal(t, 0.0, u.Points)
	assert.Equal(t, 0, u.Rank)
	assert.Equal(t, 5, u.MaxReferralDepth)
	assert.Len(t, u.ReferralCode, 12)

	again, created, err := f.users.InitiateOrFetchUser(ctx, "user-1", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, u.ReferralCode, again.ReferralCode)
}

func TestInitiateOrFetchUser_RejectsBlankID(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.users.InitiateOrFetchUser(context.Background(), "  ", "")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestInitiateOrFetchUser_ConcurrentCreatesOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, _, err := f.users.InitiateOrFetchUser(ctx, "same", "")
			errs[i] = err
			if err == nil {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	var n int64
	require.NoError(t, f.db.Model(&models.User{}).Where("external_id = ?", "same").Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestGetReferralCode(t *testing.T) {
	f := newFixture(t)
	u := f.newUser(t, "A")

	code, err := f.users.GetReferralCode(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, u.ReferralCode, code)

	_, err = f.users.GetReferralCode(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newUser(t, "A")
	_, _, err := f.users.InitiateOrFetchUser(ctx, "B", a.ReferralCode)
	require.NoError(t, err)

	snap, err := f.users.Snapshot(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, "B", snap.ExternalID)
	require.NotNil(t, snap.ReferredBy)
	assert.Equal(t, "A", *snap.ReferredBy)
	assert.Equal(t, 5.0, snap.Points)
	assert.Equal(t, 1, snap.Rank.ID)
	assert.Equal(t, "Disciple", snap.Rank.Name)
	assert.Empty(t, snap.AchievedTasks)
	assert.Empty(t, snap.CompletedTasks)
	require.Len(t, snap.Activities, 1)
	assert.Equal(t, "B", snap.Activities[0].BeneficiaryExternalID)
	require.NotNil(t, snap.Activities[0].RewardedByExternalID)
	assert.Equal(t, "A", *snap.Activities[0].RewardedByExternalID)

	snapA, err := f.users.Snapshot(ctx, "A")
	require.NoError(t, err)
	assert.Nil(t, snapA.ReferredBy)
	assert.Equal(t, int64(1), snapA.ReferralCount)
	assert.Equal(t, 25.0, snapA.Points)
}

func TestSnapshot_TaskStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.newUser(t, "A")
	t1 := f.newTask(t, "@first", "111", 10)
	t2 := f.newTask(t, "@second", "222", 20)
	f.oracle.withHandle("alice", "900")
	f.oracle.setFollowing("900", "222", true)

	_, err := f.completion.MarkAchieved(ctx, "A", t1.ID)
	require.NoError(t, err)
	_, err = f.completion.VerifyAndComplete(ctx, "A", t2.ID, "@alice")
	require.NoError(t, err)

	snap, err := f.users.Snapshot(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{t1.ID}, snap.AchievedTasks)
	assert.Equal(t, []string{t2.ID}, snap.CompletedTasks)
	require.NotNil(t, snap.VerifiedExternalHandle)
	assert.Equal(t, "900", *snap.VerifiedExternalHandle)
}

func TestLedger_SumMatchesPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newUser(t, "A")
	for _, id := range []string{"B", "C", "D"} {
		_, _, err := f.users.InitiateOrFetchUser(ctx, id, a.ReferralCode)
		require.NoError(t, err)
	}

	sum, err := f.ledger.SumForUser(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, f.reload(t, a).Points, sum)

	n, err := f.ledger.CountForUser(ctx, a.ID, models.ActivityTypeReferral)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	n, err = f.ledger.CountForUser(ctx, a.ID, models.ActivityTypeTask)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestLedger_AppendRejectsNonPositive(t *testing.T) {
	f := newFixture(t)
	a := f.newUser(t, "A")
	err := f.ledger.Append(f.db, &models.Activity{BeneficiaryID: a.ID, Type: models.ActivityTypeTask, Points: 0})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, int64(0), f.ledgerCount(t))
}
