package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-resale/internal/inventory"
	"github.com/odyssey-erp/odyssey-resale/internal/partners"
)

// Source provides the inventory history the ledger is derived from.
type Source interface {
	PurchaseRows(ctx context.Context, ownerID string) (inventory.Reconstruction, error)
	Sales(ctx context.Context, ownerID string, from, to time.Time) ([]inventory.Sale, error)
}

// PartnerPort loads partner terms.
type PartnerPort interface {
	Directory(ctx context.Context, ownerID string) (partners.Directory, error)
}

// Book is a ledger period with its totals.
type Book struct {
	Entries []Entry           `json:"entries"`
	Summary Summary           `json:"summary"`
	Drifts  []inventory.Drift `json:"drifts,omitempty"`
}

// Service assembles ledger books.
type Service struct {
	source   Source
	partners PartnerPort
}

// NewService builds Service.
func NewService(source Source, partners PartnerPort) *Service {
	return &Service{source: source, partners: partners}
}

// Book returns entries and totals for local dates in [from, to]; empty bounds are open.
func (s *Service) Book(ctx context.Context, ownerID, from, to string) (Book, error) {
	for _, v := range []string{from, to} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(ymdLayout, v); err != nil {
			return Book{}, fmt.Errorf("%w: invalid date %q", inventory.ErrMalformedRequest, v)
		}
	}
	dir := partners.Directory{}
	if s.partners != nil {
		d, err := s.partners.Directory(ctx, ownerID)
		if err != nil {
			return Book{}, err
		}
		dir = d
	}
	rec, err := s.source.PurchaseRows(ctx, ownerID)
	if err != nil {
		return Book{}, err
	}
	sales, err := s.source.Sales(ctx, ownerID, time.Time{}, time.Time{})
	if err != nil {
		return Book{}, err
	}

	var entries []Entry
	for _, e := range append(PurchaseEntries(rec.Rows, dir), SaleEntries(sales, dir)...) {
		if InRange(e.Ymd, from, to) {
			entries = append(entries, e)
		}
	}
	Sort(entries)
	return Book{Entries: entries, Summary: Summarize(entries, from, to), Drifts: rec.Drifts}, nil
}
