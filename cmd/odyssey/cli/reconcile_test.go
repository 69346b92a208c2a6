package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-resale/internal/inventory"
	"github.com/odyssey-erp/odyssey-resale/jobs"
)

type stubPoolReader struct {
	lots   []inventory.Lot
	events []inventory.Event
	err    error
}

func (s stubPoolReader) LoadLots(ctx context.Context, ownerID string) ([]inventory.Lot, error) {
	return s.lots, s.err
}

func (s stubPoolReader) LoadEvents(ctx context.Context, ownerID string) ([]inventory.Event, error) {
	return s.events, s.err
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 1, 0, 0, 0, time.UTC)
}

func cleanReader() stubPoolReader {
	return stubPoolReader{
		lots: []inventory.Lot{{ID: "L1", ProductID: "p", Size: "260", Qty: 1, PurchasePrice: 100}},
		events: []inventory.Event{
			{ID: "in1", Type: inventory.EventInbound, Date: day(1), ProductID: "p", Size: "260", Qty: 2, UnitPurchase: 100},
			{ID: "ex1", Type: inventory.EventExchange, Date: day(2), ProductID: "p", FromSize: "260", ToSize: "270", Qty: 1},
		},
	}
}

func TestReconcileCommandJSONSuccess(t *testing.T) {
	cli, err := NewReconcileCLI(cleanReader())
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.ReconcileCommand(context.Background(), ReconcileOptions{
		OwnerID:    "owner-1",
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Zero(t, exitCode)
	require.Empty(t, stderr.String())

	var summary ReconcileSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.True(t, summary.OK)
	require.Equal(t, 2, summary.PurchaseRows)
	require.Equal(t, 1, summary.Synthetic)
	require.Equal(t, 1, summary.OnHand)
	require.Empty(t, summary.Drifts)
}

func TestReconcileCommandReportsDrift(t *testing.T) {
	reader := cleanReader()
	reader.events = append(reader.events, inventory.Event{
		ID: "ret1", Type: inventory.EventReturn, Date: day(3), ProductID: "p", Size: "260", Qty: 3,
	})
	cli, err := NewReconcileCLI(reader)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	exitCode := cli.ReconcileCommand(context.Background(), ReconcileOptions{
		OwnerID:    "owner-1",
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     new(bytes.Buffer),
	})
	require.Equal(t, 10, exitCode)

	var summary ReconcileSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.False(t, summary.OK)
	require.Len(t, summary.Drifts, 1)
	require.Equal(t, "ret1", summary.Drifts[0].EventID)
	require.Equal(t, 1, summary.Drifts[0].Absorbed)
}

func TestReconcileCommandFlagsInvalidPool(t *testing.T) {
	reader := cleanReader()
	reader.lots[0].ConfirmedQty = 5
	cli, err := NewReconcileCLI(reader)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	exitCode := cli.ReconcileCommand(context.Background(), ReconcileOptions{OwnerID: "owner-1", Stdout: stdout})
	require.Equal(t, 10, exitCode)
	require.Contains(t, stdout.String(), "Pool violation")
}

func TestReconcileCommandErrors(t *testing.T) {
	cli, err := NewReconcileCLI(stubPoolReader{err: errors.New("db down")})
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	require.Equal(t, 1, cli.ReconcileCommand(context.Background(), ReconcileOptions{Stderr: stderr}))
	require.Contains(t, stderr.String(), "--owner is required")

	stderr.Reset()
	require.Equal(t, 1, cli.ReconcileCommand(context.Background(), ReconcileOptions{OwnerID: "o", Stderr: stderr}))
	require.Contains(t, stderr.String(), "db down")

	_, err = NewReconcileCLI(nil)
	require.Error(t, err)
}

func TestBuildTask(t *testing.T) {
	task, err := BuildTask(jobs.TaskInventoryAutoConfirm, "owner-1")
	require.NoError(t, err)
	require.Equal(t, jobs.TaskInventoryAutoConfirm, task.Type())

	var payload jobs.AutoConfirmPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, "owner-1", payload.OwnerID)

	task, err = BuildTask(jobs.TaskIdempotencyCleanup, "")
	require.NoError(t, err)
	require.Equal(t, jobs.TaskIdempotencyCleanup, task.Type())

	_, err = BuildTask("unknown", "")
	require.Error(t, err)
}
