package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-resale/internal/platform/httpx"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Handlers  []TaskHandler
	Cron      []CronRegistration
	// Location is the zone cron specs are evaluated in; UTC when nil.
	Location *time.Location
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		loc := cfg.Location
		if loc == nil {
			loc = time.UTC
		}
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: loc})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, err
			}
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	w.logger.Info("worker started", slog.Bool("scheduler", w.scheduler != nil))
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.logger.Info("worker stopping")
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// EnqueueAutoConfirm enqueues purchase auto-confirmation for one owner, or all
// owners when the payload names none.
func (c *Client) EnqueueAutoConfirm(ctx context.Context, payload AutoConfirmPayload) (*asynq.TaskInfo, error) {
	task, err := NewAutoConfirmTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// Enqueuer submits inventory jobs on demand.
type Enqueuer interface {
	EnqueueAutoConfirm(ctx context.Context, payload AutoConfirmPayload) (*asynq.TaskInfo, error)
}

// Handler exposes HTTP endpoints for job observability and manual runs.
type Handler struct {
	inspector *asynq.Inspector
	client    Enqueuer
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints.
func NewHandler(inspector *asynq.Inspector, client Enqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, client: client, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Post("/auto-confirm", h.enqueueAutoConfirm)
}

type queueHealth struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
	Active  int    `json:"active"`
	Retry   int    `json:"retry"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, queueHealth{Queue: QueueDefault})
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "queue inspector unavailable")
		return
	}
	httpx.JSON(w, http.StatusOK, queueHealth{
		Queue:   info.Queue,
		Pending: info.Pending,
		Active:  info.Active,
		Retry:   info.Retry,
	})
}

type autoConfirmRequest struct {
	OwnerID string `json:"owner_id"`
}

func (h *Handler) enqueueAutoConfirm(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "job client not configured")
		return
	}
	var req autoConfirmRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
			return
		}
	}
	info, err := h.client.EnqueueAutoConfirm(r.Context(), AutoConfirmPayload{OwnerID: req.OwnerID, ScheduledFor: time.Now().UTC()})
	if err != nil {
		h.logger.Error("enqueue auto-confirm", slog.String("owner", req.OwnerID), slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "enqueue failed")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": info.ID, "queue": info.Queue})
}
