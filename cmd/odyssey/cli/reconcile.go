package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/odyssey-erp/odyssey-resale/internal/inventory"
)

// PoolReader loads an owner's committed pool and IO log.
type PoolReader interface {
	LoadLots(ctx context.Context, ownerID string) ([]inventory.Lot, error)
	LoadEvents(ctx context.Context, ownerID string) ([]inventory.Event, error)
}

// ReconcileCLI checks stored pools against their purchase history.
type ReconcileCLI struct {
	reader PoolReader
}

// NewReconcileCLI constructs the reconcile command.
func NewReconcileCLI(reader PoolReader) (*ReconcileCLI, error) {
	if reader == nil {
		return nil, errors.New("reconcile cli: reader required")
	}
	return &ReconcileCLI{reader: reader}, nil
}

// ReconcileOptions defines available flags for the reconcile command.
type ReconcileOptions struct {
	OwnerID    string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// ReconcileSummary describes the JSON response for reconcile.
type ReconcileSummary struct {
	OK            bool              `json:"ok"`
	OwnerID       string            `json:"owner_id"`
	Lots          int               `json:"lots"`
	OnHand        int               `json:"on_hand"`
	PurchaseRows  int               `json:"purchase_rows"`
	Synthetic     int               `json:"synthetic_rows"`
	Drifts        []inventory.Drift `json:"drifts"`
	PoolViolation string            `json:"pool_violation,omitempty"`
}

// ReconcileCommand rebuilds purchase rows for an owner and reports drifts.
// Exit code 10 signals drift or an invalid pool.
func (c *ReconcileCLI) ReconcileCommand(ctx context.Context, opts ReconcileOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	owner := strings.TrimSpace(opts.OwnerID)
	if owner == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "reconcile: --owner is required")
		return 1
	}
	summary, err := c.reconcile(ctx, owner)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "reconcile: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "reconcile: encode json: %v\n", err)
			return 1
		}
	} else {
		renderReconcileHuman(opts.Stdout, summary)
	}
	if !summary.OK {
		return 10
	}
	return 0
}

func (c *ReconcileCLI) reconcile(ctx context.Context, owner string) (ReconcileSummary, error) {
	lots, err := c.reader.LoadLots(ctx, owner)
	if err != nil {
		return ReconcileSummary{}, fmt.Errorf("load lots: %w", err)
	}
	events, err := c.reader.LoadEvents(ctx, owner)
	if err != nil {
		return ReconcileSummary{}, fmt.Errorf("load events: %w", err)
	}
	rec, err := inventory.Reconstruct(events, inventory.DriftReport)
	if err != nil {
		return ReconcileSummary{}, err
	}
	summary := ReconcileSummary{
		OwnerID:      owner,
		Lots:         len(lots),
		PurchaseRows: len(rec.Rows),
		Drifts:       rec.Drifts,
	}
	if summary.Drifts == nil {
		summary.Drifts = []inventory.Drift{}
	}
	for _, l := range lots {
		summary.OnHand += l.Qty
	}
	for _, row := range rec.Rows {
		if row.Synthetic {
			summary.Synthetic++
		}
	}
	if err := inventory.ValidatePool(lots); err != nil {
		summary.PoolViolation = err.Error()
	}
	summary.OK = len(summary.Drifts) == 0 && summary.PoolViolation == ""
	return summary, nil
}

func renderReconcileHuman(out io.Writer, s ReconcileSummary) {
	_, _ = fmt.Fprintf(out, "Reconcile owner %s: %d lot(s), %d unit(s) on hand\n", s.OwnerID, s.Lots, s.OnHand)
	_, _ = fmt.Fprintf(out, "Purchase rows: %d (%d synthetic)\n", s.PurchaseRows, s.Synthetic)
	if s.PoolViolation != "" {
		_, _ = fmt.Fprintf(out, "Pool violation: %s\n", s.PoolViolation)
	}
	if len(s.Drifts) == 0 {
		_, _ = fmt.Fprintln(out, "No drift detected.")
		return
	}
	_, _ = fmt.Fprintf(out, "%d drift(s) detected:\n", len(s.Drifts))
	for _, d := range s.Drifts {
		_, _ = fmt.Fprintf(out, " - %s %s %s/%s requested %d absorbed %d\n", d.EventID, d.Type, d.ProductID, d.Size, d.Requested, d.Absorbed)
	}
}
