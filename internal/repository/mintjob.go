package repository

import (
	"context"
	"errors"
	"time"

	"rwa-shop-backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MintJobRepository is the durable mint queue. Jobs are created once per
// order and every status change goes through Transition, a compare-and-swap
// on the current status, so any number of workers can run concurrently
// without a global lock.
type MintJobRepository interface {
	// Create enqueues a mint request for an order. If a job for the order
	// already exists the existing row is returned; enqueue is idempotent.
	Create(ctx context.Context, orderID, walletAddress string, tokenID, amount int64) (*model.MintJob, error)
	// ClaimNext returns the oldest job that is either queued and due, or
	// stuck in processing longer than staleness (abandoned by a crashed
	// worker). Returns nil when the queue is empty.
	ClaimNext(ctx context.Context, staleness time.Duration) (*model.MintJob, error)
	// Transition updates the job to newStatus only if its current status is
	// one of from. On a lost race it returns (nil, nil); the caller abandons
	// the claim. fields may carry extra column updates (tx hash, error,
	// attempts increment, next attempt time).
	Transition(ctx context.Context, tx *gorm.DB, jobID string, from []string, to string, fields map[string]interface{}) (*model.MintJob, error)
	// Stats counts jobs per status.
	Stats(ctx context.Context) (map[string]int64, error)
}

type mintJobRepoImpl struct {
	db *gorm.DB
}

func NewMintJobRepository(db *gorm.DB) MintJobRepository {
	return &mintJobRepoImpl{db: db}
}

func (r *mintJobRepoImpl) Create(ctx context.Context, orderID, walletAddress string, tokenID, amount int64) (*model.MintJob, error) {
	job := &model.MintJob{
		ID:            uuid.NewString(),
		OrderID:       orderID,
		WalletAddress: walletAddress,
		TokenID:       tokenID,
		Amount:        amount,
		Status:        model.MintJobQueued,
		NextAttemptAt: time.Now(),
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing model.MintJob
			if err := r.db.WithContext(ctx).
				Where("order_id = ?", orderID).
				First(&existing).Error; err != nil {
				return nil, err
			}
			return &existing, nil
		}
		return nil, err
	}
	return job, nil
}

func (r *mintJobRepoImpl) ClaimNext(ctx context.Context, staleness time.Duration) (*model.MintJob, error) {
	now := time.Now()

	var job model.MintJob
	err := r.db.WithContext(ctx).
		Where(
			"(status = ? AND next_attempt_at <= ?) OR (status = ? AND updated_at < ?)",
			model.MintJobQueued, now,
			model.MintJobProcessing, now.Add(-staleness),
		).
		Order("created_at ASC").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *mintJobRepoImpl) Transition(ctx context.Context, tx *gorm.DB, jobID string, from []string, to string, fields map[string]interface{}) (*model.MintJob, error) {
	db := r.db
	if tx != nil {
		db = tx
	}

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	result := db.WithContext(ctx).Model(&model.MintJob{}).
		Where("id = ? AND status IN ?", jobID, from).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Another worker changed the status first.
		return nil, nil
	}

	var job model.MintJob
	if err := db.WithContext(ctx).
		Where("id = ?", jobID).
		First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *mintJobRepoImpl) Stats(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&model.MintJob{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make(map[string]int64, len(rows))
	for _, row := range rows {
		stats[row.Status] = row.Count
	}
	return stats, nil
}
