package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubConfirmer struct {
	mu     sync.Mutex
	seen   []string
	failOn string
}

func (s *stubConfirmer) AutoConfirm(ctx context.Context, ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, ownerID)
	if ownerID == s.failOn {
		return 0, errors.New("boom")
	}
	return 1, nil
}

type stubOwners []string

func (s stubOwners) ListOwners(ctx context.Context) ([]string, error) {
	return s, nil
}

type recordingJobs struct {
	errs []error
}

func (r *recordingJobs) ObserveJob(job string, err error) {
	r.errs = append(r.errs, err)
}

func TestAutoConfirmJobProcessesAllOwners(t *testing.T) {
	svc := &stubConfirmer{}
	metrics := &recordingJobs{}
	job := NewAutoConfirmJob(svc, stubOwners{"a", "b", "c"}, nil, metrics)

	task, err := NewAutoConfirmTask(AutoConfirmPayload{})
	require.NoError(t, err)
	require.Equal(t, TaskInventoryAutoConfirm, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))

	sort.Strings(svc.seen)
	require.Equal(t, []string{"a", "b", "c"}, svc.seen)
	require.Equal(t, []error{nil}, metrics.errs)
}

func TestAutoConfirmJobSingleOwnerAndFailure(t *testing.T) {
	svc := &stubConfirmer{failOn: "b"}
	metrics := &recordingJobs{}
	job := NewAutoConfirmJob(svc, nil, nil, metrics)

	task, err := NewAutoConfirmTask(AutoConfirmPayload{OwnerID: "a"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []string{"a"}, svc.seen)

	task, err = NewAutoConfirmTask(AutoConfirmPayload{OwnerID: "b"})
	require.NoError(t, err)
	require.EqualError(t, job.Handle(context.Background(), task), "boom")
	require.Len(t, metrics.errs, 2)
	require.Error(t, metrics.errs[1])

	err = job.Handle(context.Background(), asynq.NewTask(TaskInventoryAutoConfirm, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
