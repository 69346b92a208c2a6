package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInventoryAutoConfirm confirms lots whose partner return window has passed.
	TaskInventoryAutoConfirm = "inventory:auto-confirm"
	// TaskIdempotencyCleanup purges idempotency keys past their retention.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// AutoConfirmPayload selects the owner to process; empty means every owner.
type AutoConfirmPayload struct {
	OwnerID      string    `json:"owner_id,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for,omitzero"`
}

// NewAutoConfirmTask constructs an Asynq task for purchase auto-confirmation.
func NewAutoConfirmTask(payload AutoConfirmPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryAutoConfirm, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// CleanupPayload carries the retention window; zero uses the handler default.
type CleanupPayload struct {
	Retention time.Duration `json:"retention,omitempty"`
}

// NewIdempotencyCleanupTask constructs the retention purge task.
func NewIdempotencyCleanupTask(payload CleanupPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}
