package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"rwa-shop-backend/internal/client"
	"rwa-shop-backend/internal/config"
	"rwa-shop-backend/internal/model"
	"rwa-shop-backend/internal/repository"

	"gorm.io/gorm"
)

// MintWorker drains the mint queue: claim a job, push the mint through the
// relayer, record the outcome. Any number of instances may run in parallel;
// per-job mutual exclusion comes entirely from the queue's compare-and-swap
// transition, and jobs abandoned by a crashed worker are reclaimed through
// the staleness window in ClaimNext.
type MintWorker struct {
	db        *gorm.DB
	jobRepo   repository.MintJobRepository
	orderRepo repository.OrderRepository
	minter    client.MinterClient
	cfg       config.MintQueue
	timeout   time.Duration
}

func NewMintWorker(
	db *gorm.DB,
	jobRepo repository.MintJobRepository,
	orderRepo repository.OrderRepository,
	minter client.MinterClient,
	cfg config.MintQueue,
	mintTimeout time.Duration,
) *MintWorker {
	return &MintWorker{
		db:        db,
		jobRepo:   jobRepo,
		orderRepo: orderRepo,
		minter:    minter,
		cfg:       cfg,
		timeout:   mintTimeout,
	}
}

// Run polls until ctx is cancelled. A job attempt in flight is finished
// before returning, so graceful shutdown never strands a job in processing.
func (w *MintWorker) Run(ctx context.Context) {
	slog.Info("starting mint worker",
		"interval", w.cfg.WorkerInterval,
		"max_retries", w.cfg.MaxRetries,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("mint worker stopped")
			return
		default:
		}

		job, err := w.jobRepo.ClaimNext(ctx, w.cfg.StalenessThreshold)
		if err != nil {
			slog.Error("claim next mint job failed", "error", err)
			w.idle(ctx, 2*w.cfg.WorkerInterval)
			continue
		}
		if job == nil {
			w.idle(ctx, w.cfg.WorkerInterval)
			continue
		}

		w.processJob(ctx, job)

		// Occasional queue visibility, same as a metrics-less deployment
		// gets from the original queue.
		if rand.Float64() < 0.1 {
			if stats, err := w.jobRepo.Stats(ctx); err == nil && len(stats) > 0 {
				slog.Info("mint queue stats", "stats", stats)
			}
		}
	}
}

func (w *MintWorker) idle(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *MintWorker) processJob(ctx context.Context, job *model.MintJob) {
	// CAS into processing. from is the status we observed in ClaimNext:
	// queued normally, processing when reclaiming a stale job.
	claimed, err := w.jobRepo.Transition(ctx, nil, job.ID,
		[]string{job.Status}, model.MintJobProcessing,
		map[string]interface{}{"attempts": gorm.Expr("attempts + 1")})
	if err != nil {
		slog.Error("mark job processing failed", "job_id", job.ID, "error", err)
		return
	}
	if claimed == nil {
		slog.Info("mint job already taken by another worker", "job_id", job.ID)
		return
	}

	slog.Info("minting",
		"job_id", claimed.ID,
		"order_id", claimed.OrderID,
		"token_id", claimed.TokenID,
		"amount", claimed.Amount,
		"attempt", claimed.Attempts,
	)

	mintCtx, cancel := context.WithTimeout(ctx, w.timeout)
	txHash, err := w.minter.SubmitMint(mintCtx, claimed.WalletAddress, claimed.TokenID, claimed.Amount)
	cancel()
	if err != nil {
		w.handleFailure(ctx, claimed, err)
		return
	}

	if err := w.recordSuccess(ctx, claimed, txHash); err != nil {
		slog.Error("record mint success failed", "job_id", claimed.ID, "tx_hash", txHash, "error", err)
		return
	}
	slog.Info("mint succeeded", "job_id", claimed.ID, "order_id", claimed.OrderID, "tx_hash", txHash)
}

// recordSuccess is the only path that writes the order after payment
// processing: one transaction marks the job succeeded and stamps the order's
// mint hash.
func (w *MintWorker) recordSuccess(ctx context.Context, job *model.MintJob, txHash string) error {
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := w.jobRepo.Transition(ctx, tx, job.ID,
			[]string{model.MintJobProcessing}, model.MintJobSucceeded,
			map[string]interface{}{
				"tx_hash":    txHash,
				"last_error": "",
			})
		if err != nil {
			return err
		}
		if updated == nil {
			// Reclaimed mid-mint. The mint itself may have landed on-chain;
			// there is no idempotency token to dedupe it with, so all we
			// can do is surface it.
			return fmt.Errorf("job %s left processing before success was recorded", job.ID)
		}

		return w.orderRepo.SetMintHash(ctx, tx, job.OrderID, txHash)
	})
}

func (w *MintWorker) handleFailure(ctx context.Context, job *model.MintJob, mintErr error) {
	slog.Error("mint attempt failed",
		"job_id", job.ID,
		"order_id", job.OrderID,
		"attempt", job.Attempts,
		"error", mintErr,
	)

	if job.Attempts < w.cfg.MaxRetries {
		delay := w.retryDelay(job.Attempts)
		_, err := w.jobRepo.Transition(ctx, nil, job.ID,
			[]string{model.MintJobProcessing}, model.MintJobQueued,
			map[string]interface{}{
				"last_error":      mintErr.Error(),
				"next_attempt_at": time.Now().Add(delay),
			})
		if err != nil {
			slog.Error("requeue mint job failed", "job_id", job.ID, "error", err)
			return
		}
		slog.Info("mint job requeued",
			"job_id", job.ID,
			"retry_in", delay,
			"attempt", job.Attempts,
			"max_retries", w.cfg.MaxRetries,
		)
		return
	}

	_, err := w.jobRepo.Transition(ctx, nil, job.ID,
		[]string{model.MintJobProcessing}, model.MintJobFailed,
		map[string]interface{}{"last_error": mintErr.Error()})
	if err != nil {
		slog.Error("fail mint job failed", "job_id", job.ID, "error", err)
		return
	}
	slog.Error("mint job failed permanently, manual intervention required",
		"job_id", job.ID,
		"order_id", job.OrderID,
		"attempts", job.Attempts,
	)
}

// retryDelay computes min(2^attempts * base, cap) with +-10% jitter.
func (w *MintWorker) retryDelay(attempts int) time.Duration {
	delay := w.cfg.BaseRetryDelay << attempts
	if delay > w.cfg.CapRetryDelay || delay <= 0 {
		delay = w.cfg.CapRetryDelay
	}
	jitter := 1 + 0.1*(2*rand.Float64()-1)
	return time.Duration(float64(delay) * jitter)
}
