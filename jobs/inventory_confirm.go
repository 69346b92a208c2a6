package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
)

// AutoConfirmer confirms expired lots of one owner.
type AutoConfirmer interface {
	AutoConfirm(ctx context.Context, ownerID string) (int, error)
}

// OwnerLister enumerates owners holding stock.
type OwnerLister interface {
	ListOwners(ctx context.Context) ([]string, error)
}

// JobObserver records job outcomes.
type JobObserver interface {
	ObserveJob(job string, err error)
}

// AutoConfirmJob runs purchase auto-confirmation across owners.
type AutoConfirmJob struct {
	Service     AutoConfirmer
	Owners      OwnerLister
	Logger      *slog.Logger
	Metrics     JobObserver
	Concurrency int
	clock       func() time.Time
}

// NewAutoConfirmJob wires dependencies for the auto-confirm handler.
func NewAutoConfirmJob(svc AutoConfirmer, owners OwnerLister, logger *slog.Logger, metrics JobObserver) *AutoConfirmJob {
	return &AutoConfirmJob{
		Service:     svc,
		Owners:      owners,
		Logger:      logger,
		Metrics:     metrics,
		Concurrency: 4,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskInventoryAutoConfirm tasks.
func (j *AutoConfirmJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Service == nil {
		return errors.New("auto-confirm: handler not configured")
	}
	var payload AutoConfirmPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	defer func() {
		if j.Metrics != nil {
			j.Metrics.ObserveJob(TaskInventoryAutoConfirm, resultErr)
		}
	}()

	logger := j.logger()
	start := j.now()
	owners := []string{payload.OwnerID}
	if payload.OwnerID == "" {
		if j.Owners == nil {
			return errors.New("auto-confirm: owner lister not configured")
		}
		list, err := j.Owners.ListOwners(ctx)
		if err != nil {
			logger.Error("list owners", slog.Any("error", err))
			return err
		}
		owners = list
	}
	if len(owners) == 0 {
		logger.Info("no owners to auto-confirm")
		return nil
	}

	var confirmed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, j.Concurrency))
	for _, ownerID := range owners {
		g.Go(func() error {
			n, err := j.Service.AutoConfirm(gctx, ownerID)
			if err != nil {
				logger.Error("auto-confirm owner", slog.String("owner", ownerID), slog.Any("error", err))
				return err
			}
			confirmed.Add(int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("completed auto-confirm",
		slog.Int("owners", len(owners)),
		slog.Int64("lots", confirmed.Load()),
		slog.Duration("duration", j.now().Sub(start)))
	return nil
}

func (j *AutoConfirmJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *AutoConfirmJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
