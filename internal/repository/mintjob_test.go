package repository

import (
	"context"
	"testing"
	"time"

	"rwa-shop-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testStaleness = 10 * time.Minute

func TestMintJobRepository_Create_Idempotent(t *testing.T) {
	repo := NewMintJobRepository(newTestDB(t))
	ctx := context.Background()

	first, err := repo.Create(ctx, "ord_1", "0x1111111111111111111111111111111111111111", 42, 1)
	require.NoError(t, err)
	assert.Equal(t, model.MintJobQueued, first.Status)

	second, err := repo.Create(ctx, "ord_1", "0x1111111111111111111111111111111111111111", 42, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same order must map to the same job")

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[model.MintJobQueued])
}

func TestMintJobRepository_ClaimNext_Empty(t *testing.T) {
	repo := NewMintJobRepository(newTestDB(t))

	job, err := repo.ClaimNext(context.Background(), testStaleness)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestMintJobRepository_ClaimNext_FIFO(t *testing.T) {
	db := newTestDB(t)
	repo := NewMintJobRepository(db)
	ctx := context.Background()

	older, err := repo.Create(ctx, "ord_1", "0x1111111111111111111111111111111111111111", 1, 1)
	require.NoError(t, err)
	_, err = repo.Create(ctx, "ord_2", "0x2222222222222222222222222222222222222222", 2, 1)
	require.NoError(t, err)

	// Force distinct creation times.
	require.NoError(t, db.Model(&model.MintJob{}).
		Where("id = ?", older.ID).
		UpdateColumn("created_at", time.Now().Add(-time.Minute)).Error)

	got, err := repo.ClaimNext(ctx, testStaleness)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, older.ID, got.ID)
}

func TestMintJobRepository_ClaimNext_RespectsNextAttemptAt(t *testing.T) {
	db := newTestDB(t)
	repo := NewMintJobRepository(db)
	ctx := context.Background()

	job, err := repo.Create(ctx, "ord_1", "0x1111111111111111111111111111111111111111", 1, 1)
	require.NoError(t, err)

	// Backoff window still open: not claimable.
	require.NoError(t, db.Model(&model.MintJob{}).
		Where("id = ?", job.ID).
		UpdateColumn("next_attempt_at", time.Now().Add(time.Hour)).Error)

	got, err := repo.ClaimNext(ctx, testStaleness)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Window elapsed: claimable again.
	require.NoError(t, db.Model(&model.MintJob{}).
		Where("id = ?", job.ID).
		UpdateColumn("next_attempt_at", time.Now().Add(-time.Second)).Error)

	got, err = repo.ClaimNext(ctx, testStaleness)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
}

func TestMintJobRepository_ClaimNext_ReclaimsStaleProcessing(t *testing.T) {
	db := newTestDB(t)
	repo := NewMintJobRepository(db)
	ctx := context.Background()

	job, err := repo.Create(ctx, "ord_1", "0x1111111111111111111111111111111111111111", 1, 1)
	require.NoError(t, err)

	claimed, err := repo.Transition(ctx, nil, job.ID,
		[]string{model.MintJobQueued}, model.MintJobProcessing, nil)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	// Fresh processing jobs belong to their worker.
	got, err := repo.ClaimNext(ctx, testStaleness)
	require.NoError(t, err)
	assert.Nil(t, got)

	// A crashed worker leaves updated_at behind; past the staleness window
	// the job becomes claimable again.
	require.NoError(t, db.Model(&model.MintJob{}).
		Where("id = ?", job.ID).
		UpdateColumn("updated_at", time.Now().Add(-testStaleness-time.Minute)).Error)

	got, err = repo.ClaimNext(ctx, testStaleness)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, model.MintJobProcessing, got.Status)
}

func TestMintJobRepository_Transition_CAS(t *testing.T) {
	repo := NewMintJobRepository(newTestDB(t))
	ctx := context.Background()

	job, err := repo.Create(ctx, "ord_1", "0x1111111111111111111111111111111111111111", 1, 1)
	require.NoError(t, err)

	// Two claimants race queued -> processing; the second one must lose.
	winner, err := repo.Transition(ctx, nil, job.ID,
		[]string{model.MintJobQueued}, model.MintJobProcessing,
		map[string]interface{}{"attempts": gorm.Expr("attempts + 1")})
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, 1, winner.Attempts)

	loser, err := repo.Transition(ctx, nil, job.ID,
		[]string{model.MintJobQueued}, model.MintJobProcessing,
		map[string]interface{}{"attempts": gorm.Expr("attempts + 1")})
	require.NoError(t, err)
	assert.Nil(t, loser, "lost race must yield nil, not an error")
}

func TestMintJobRepository_Transition_Fields(t *testing.T) {
	repo := NewMintJobRepository(newTestDB(t))
	ctx := context.Background()

	job, err := repo.Create(ctx, "ord_1", "0x1111111111111111111111111111111111111111", 1, 1)
	require.NoError(t, err)

	processing, err := repo.Transition(ctx, nil, job.ID,
		[]string{model.MintJobQueued}, model.MintJobProcessing, nil)
	require.NoError(t, err)
	require.NotNil(t, processing)

	done, err := repo.Transition(ctx, nil, job.ID,
		[]string{model.MintJobProcessing}, model.MintJobSucceeded,
		map[string]interface{}{"tx_hash": "0xabc"})
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.Equal(t, model.MintJobSucceeded, done.Status)
	assert.Equal(t, "0xabc", done.TxHash)
}

func TestMintJobRepository_FailedJobsAreNeverClaimed(t *testing.T) {
	repo := NewMintJobRepository(newTestDB(t))
	ctx := context.Background()

	job, err := repo.Create(ctx, "ord_1", "0x1111111111111111111111111111111111111111", 1, 1)
	require.NoError(t, err)

	_, err = repo.Transition(ctx, nil, job.ID,
		[]string{model.MintJobQueued}, model.MintJobProcessing, nil)
	require.NoError(t, err)
	failed, err := repo.Transition(ctx, nil, job.ID,
		[]string{model.MintJobProcessing}, model.MintJobFailed,
		map[string]interface{}{"last_error": "rpc timeout"})
	require.NoError(t, err)
	require.NotNil(t, failed)

	got, err := repo.ClaimNext(ctx, testStaleness)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMintJobRepository_Stats(t *testing.T) {
	repo := NewMintJobRepository(newTestDB(t))
	ctx := context.Background()

	for _, orderID := range []string{"ord_1", "ord_2", "ord_3"} {
		_, err := repo.Create(ctx, orderID, "0x1111111111111111111111111111111111111111", 1, 1)
		require.NoError(t, err)
	}
	job, err := repo.ClaimNext(ctx, testStaleness)
	require.NoError(t, err)
	_, err = repo.Transition(ctx, nil, job.ID,
		[]string{model.MintJobQueued}, model.MintJobProcessing, nil)
	require.NoError(t, err)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats[model.MintJobQueued])
	assert.Equal(t, int64(1), stats[model.MintJobProcessing])
}
