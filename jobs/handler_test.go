package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubEnqueuer struct {
	payload AutoConfirmPayload
	err     error
}

func (s *stubEnqueuer) EnqueueAutoConfirm(ctx context.Context, payload AutoConfirmPayload) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.payload = payload
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

func newJobsRouter(client Enqueuer) http.Handler {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, client, nil).MountRoutes)
	return r
}

func TestHandlerHealthWithoutInspector(t *testing.T) {
	rec := httptest.NewRecorder()
	newJobsRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, QueueDefault, body.Queue)
}

func TestHandlerEnqueueAutoConfirm(t *testing.T) {
	client := &stubEnqueuer{}
	router := newJobsRouter(client)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/auto-confirm", strings.NewReader(`{"owner_id":"owner-9"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "owner-9", client.payload.OwnerID)
	require.False(t, client.payload.ScheduledFor.IsZero())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/auto-confirm", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Empty(t, client.payload.OwnerID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/auto-confirm", strings.NewReader(`{`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	client.err = errors.New("redis down")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/auto-confirm", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
