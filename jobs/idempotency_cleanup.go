package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// DefaultIdempotencyRetention is how long request keys are remembered.
const DefaultIdempotencyRetention = 7 * 24 * time.Hour

// KeyPurger deletes idempotency keys older than a retention window.
type KeyPurger interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// IdempotencyCleanupJob purges expired idempotency keys.
type IdempotencyCleanupJob struct {
	Store     KeyPurger
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   JobObserver
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload CleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	defer func() {
		if j.Metrics != nil {
			j.Metrics.ObserveJob(TaskIdempotencyCleanup, resultErr)
		}
	}()
	retention := payload.Retention
	if retention <= 0 {
		retention = j.Retention
	}
	if retention <= 0 {
		retention = DefaultIdempotencyRetention
	}
	removed, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		return err
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("purged idempotency keys", slog.Int64("removed", removed), slog.Duration("retention", retention))
	return nil
}
