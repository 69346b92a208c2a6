package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubPurger struct {
	retention time.Duration
}

func (s *stubPurger) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	s.retention = retention
	return 3, nil
}

func TestIdempotencyCleanupRetention(t *testing.T) {
	store := &stubPurger{}
	metrics := &recordingJobs{}
	job := &IdempotencyCleanupJob{Store: store, Metrics: metrics}

	task, err := NewIdempotencyCleanupTask(CleanupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, DefaultIdempotencyRetention, store.retention)

	task, err = NewIdempotencyCleanupTask(CleanupPayload{Retention: time.Hour})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Hour, store.retention)
	require.Equal(t, []error{nil, nil}, metrics.errs)
}
