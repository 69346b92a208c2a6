package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-resale/internal/fee"
	"github.com/odyssey-erp/odyssey-resale/internal/partners"
	"github.com/odyssey-erp/odyssey-resale/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, ownerID string, fn func(context.Context, TxRepository) error) error
	LoadLots(ctx context.Context, ownerID string) ([]Lot, error)
	LoadEvents(ctx context.Context, ownerID string) ([]Event, error)
	LoadProducts(ctx context.Context, ownerID string) ([]Product, error)
	ListSales(ctx context.Context, ownerID string, from, to time.Time) ([]Sale, error)
}

// SequenceSource hands out the creation sequence of new lots. Values must keep
// increasing across restarts.
type SequenceSource interface {
	Next(ctx context.Context, ownerID string) (int64, error)
}

// PartnerPort loads partner terms.
type PartnerPort interface {
	Directory(ctx context.Context, ownerID string) (partners.Directory, error)
}

// LockPort serialises mutations of one owner's lot pool.
type LockPort interface {
	Obtain(ctx context.Context, key string) (shared.Unlocker, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against replayed requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// StockCache memoises aggregated stock per owner.
type StockCache interface {
	Fetch(ctx context.Context, ownerID string, loader func(context.Context) ([]AggregateRow, error)) ([]AggregateRow, error)
	Invalidate(ctx context.Context, ownerID string) error
}

// Observer receives movement outcomes for metrics.
type Observer interface {
	ObserveMovement(kind string, err error)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	DriftPolicy DriftPolicy
	Clock       func() time.Time
}

// Deps bundles optional collaborators of Service.
type Deps struct {
	Partners    PartnerPort
	Locker      LockPort
	Audit       AuditPort
	Idempotency IdempotencyPort
	Cache       StockCache
	Observer    Observer
	Logger      *slog.Logger
}

// Service coordinates lot-pool mutations and reads for each owner.
type Service struct {
	repo   RepositoryPort
	seq    SequenceSource
	deps   Deps
	policy DriftPolicy
	now    func() time.Time
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, seq SequenceSource, cfg ServiceConfig, deps Deps) *Service {
	now := cfg.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	policy := cfg.DriftPolicy
	if policy == "" {
		policy = DriftIgnore
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, seq: seq, deps: deps, policy: policy, now: now, logger: logger}
}

// mutation is the result of a pure operation on the pool, committed as one unit.
// keepPool skips rewriting lots the operation did not touch.
type mutation struct {
	lots     []Lot
	keepPool bool
	events   []Event
	sales    []Sale
	settled  []Sale
}

func (s *Service) mutate(ctx context.Context, ownerID, kind, idemKey string, actorID int64, fn func(context.Context, []Lot) (mutation, error)) (err error) {
	if ownerID == "" {
		return ErrMalformedRequest
	}
	defer func() {
		if s.deps.Observer != nil {
			s.deps.Observer.ObserveMovement(kind, err)
		}
	}()

	key := ""
	if idemKey != "" && s.deps.Idempotency != nil {
		key = fmt.Sprintf("%s:%s:%s", kind, ownerID, idemKey)
		if err := s.deps.Idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
			return err
		}
	}

	if s.deps.Locker != nil {
		lock, err := s.deps.Locker.Obtain(ctx, shared.InventoryLockKey(ownerID))
		if err != nil {
			s.rollbackKey(ctx, key)
			return err
		}
		defer func() {
			if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
				s.logger.Warn("release inventory lock", slog.String("owner", ownerID), slog.Any("error", rerr))
			}
		}()
	}

	var committed mutation
	err = s.repo.WithTx(ctx, ownerID, func(ctx context.Context, tx TxRepository) error {
		lots, err := tx.LoadLotsForUpdate(ctx)
		if err != nil {
			return err
		}
		m, err := fn(ctx, tx, lots)
		if err != nil {
			return err
		}
		if m.keepPool {
			m.lots = lots
		} else {
			if err := ValidatePool(m.lots); err != nil {
				return err
			}
			m.lots = PruneEmpty(m.lots)
			if err := tx.CommitLots(ctx, m.lots); err != nil {
				return err
			}
		}
		if err := tx.AppendEvents(ctx, m.events); err != nil {
			return err
		}
		if len(m.sales) > 0 {
			if err := tx.InsertSales(ctx, m.sales); err != nil {
				return err
			}
		}
		if len(m.settled) > 0 {
			if err := tx.UpdateSales(ctx, m.settled); err != nil {
				return err
			}
		}
		committed = m
		return nil
	})
	if err != nil {
		s.rollbackKey(ctx, key)
		return err
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Invalidate(ctx, ownerID); err != nil {
			s.logger.Warn("invalidate stock cache", slog.String("owner", ownerID), slog.Any("error", err))
		}
	}
	if s.deps.Audit != nil {
		_ = s.deps.Audit.Record(ctx, shared.AuditLog{
			OwnerID:  ownerID,
			ActorID:  actorID,
			Action:   "inventory:" + kind,
			Entity:   "inventory_pool",
			EntityID: ownerID,
			Meta: map[string]any{
				"events": len(committed.events),
				"lots":   len(committed.lots),
			},
		})
	}
	return nil
}

func (s *Service) rollbackKey(ctx context.Context, key string) {
	if key == "" || s.deps.Idempotency == nil {
		return
	}
	if err := s.deps.Idempotency.Delete(ctx, key); err != nil {
		s.logger.Warn("delete idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

// RegisterInbound creates one lot per line and logs an inbound event for each.
func (s *Service) RegisterInbound(ctx context.Context, ownerID string, input InboundInput) ([]Lot, error) {
	if len(input.Lines) == 0 {
		return nil, ErrMalformedRequest
	}
	for _, line := range input.Lines {
		if line.ProductID == "" || line.Size == "" || line.Qty <= 0 {
			return nil, ErrMalformedRequest
		}
		if line.PurchasePrice < 0 {
			return nil, fmt.Errorf("%w: purchase price must be >= 0", ErrMalformedRequest)
		}
	}
	if input.ReceivedYmd != "" {
		if _, err := time.Parse(ymdLayout, input.ReceivedYmd); err != nil {
			return nil, fmt.Errorf("%w: received date %q", ErrMalformedRequest, input.ReceivedYmd)
		}
	}
	if input.ReceivedAt.IsZero() && input.ReceivedYmd != "" {
		input.ReceivedAt = stampOnDate(input.ReceivedYmd, s.now())
	}

	var created []Lot
	err := s.mutate(ctx, ownerID, "inbound", input.IdempotencyKey, input.ActorID, func(ctx context.Context, tx TxRepository, lots []Lot) (mutation, error) {
		now := s.now()
		next := cloneLots(lots)
		events := make([]Event, 0, len(input.Lines))
		fresh := make([]Lot, 0, len(input.Lines))
		for i, line := range input.Lines {
			seq, err := s.seq.Next(ctx, ownerID)
			if err != nil {
				return mutation{}, fmt.Errorf("inventory: next lot sequence: %w", err)
			}
			lot := NewLot(input, line, i, seq, now)
			next = append(next, lot)
			fresh = append(fresh, lot)
			events = append(events, Event{
				ID:           uuid.NewString(),
				Type:         EventInbound,
				Date:         lot.ReceivedAt,
				ProductID:    lot.ProductID,
				Size:         lot.Size,
				Qty:          lot.Qty,
				UnitPurchase: lot.PurchasePrice,
				PartnerID:    lot.PartnerID,
				PaymentID:    lot.PaymentID,
				LotID:        lot.ID,
				ReceivedAt:   lot.ReceivedAt,
			})
		}
		created = fresh
		return mutation{lots: next, events: events}, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// RegisterOutbound allocates every line FIFO against the committed pool. Any line
// that cannot be satisfied rejects the whole request and leaves the pool untouched.
func (s *Service) RegisterOutbound(ctx context.Context, ownerID string, input OutboundInput) ([]Sale, error) {
	if len(input.Lines) == 0 {
		return nil, ErrMalformedRequest
	}
	if input.Date.IsZero() && input.Ymd != "" {
		if _, err := time.Parse(ymdLayout, input.Ymd); err != nil {
			return nil, fmt.Errorf("%w: outbound date %q", ErrMalformedRequest, input.Ymd)
		}
		input.Date = stampOnDate(input.Ymd, s.now())
	}
	var sales []Sale
	err := s.mutate(ctx, ownerID, "outbound", input.IdempotencyKey, input.ActorID, func(ctx context.Context, tx TxRepository, lots []Lot) (mutation, error) {
		date := input.Date
		if date.IsZero() {
			date = s.now()
		}
		working := lots
		var (
			events []Event
			out    []Sale
		)
		for i, line := range input.Lines {
			if !input.Deferred && line.UnitPrice <= 0 {
				return mutation{}, fmt.Errorf("%w: line %d requires a sale price", ErrMalformedRequest, i+1)
			}
			res, err := Allocate(working, line.ProductID, line.Size, line.Qty)
			if err != nil {
				return mutation{}, fmt.Errorf("line %d (%s/%s): %w", i+1, line.ProductID, line.Size, err)
			}
			working = res.NextLots
			stamp := date.Add(time.Duration(i) * time.Millisecond)
			memo := ""
			if input.Deferred {
				memo = "deferred"
			}
			for j, a := range res.Allocations {
				events = append(events, Event{
					ID:           uuid.NewString(),
					Type:         EventOutbound,
					Date:         stamp.Add(time.Duration(j) * time.Millisecond),
					ProductID:    line.ProductID,
					Size:         line.Size,
					Qty:          a.Qty,
					UnitPurchase: a.PurchasePrice,
					PartnerID:    line.PartnerID,
					LotID:        a.LotID,
					Memo:         memo,
				})
			}
			out = append(out, Sale{
				ID:           uuid.NewString(),
				ProductID:    line.ProductID,
				Size:         line.Size,
				Qty:          line.Qty,
				UnitPrice:    line.UnitPrice,
				PartnerID:    line.PartnerID,
				Date:         stamp,
				Allocations:  res.Allocations,
				TotalCost:    res.TotalCost(),
				TotalRevenue: float64(line.Qty) * line.UnitPrice,
				Deferred:     input.Deferred,
			})
		}
		sales = out
		return mutation{lots: working, events: events, sales: out}, nil
	})
	if err != nil {
		return nil, err
	}
	return sales, nil
}

// SettleDeferred prices a deferred outbound. The sale enters the books on the
// settlement date; its allocations and cost basis stay as shipped.
func (s *Service) SettleDeferred(ctx context.Context, ownerID string, input SettleInput) (Sale, error) {
	if input.SaleID == "" || input.UnitPrice <= 0 {
		return Sale{}, fmt.Errorf("%w: sale id and a positive price are required", ErrMalformedRequest)
	}
	var settled Sale
	err := s.mutate(ctx, ownerID, "settle", input.IdempotencyKey, input.ActorID, func(ctx context.Context, tx TxRepository, lots []Lot) (mutation, error) {
		sale, err := tx.LoadSaleForUpdate(ctx, input.SaleID)
		if err != nil {
			return mutation{}, err
		}
		if !sale.Deferred {
			return mutation{}, fmt.Errorf("%w: %s", ErrSaleSettled, sale.ID)
		}
		now := s.now()
		sale.UnitPrice = input.UnitPrice
		sale.TotalRevenue = decimal.NewFromFloat(input.UnitPrice).Mul(decimal.NewFromInt(int64(sale.Qty))).InexactFloat64()
		sale.Deferred = false
		sale.Date = now
		sale.SettledAt = now
		settled = sale
		ev := Event{
			ID:        uuid.NewString(),
			Type:      EventSaleSettle,
			Date:      now,
			ProductID: sale.ProductID,
			Size:      sale.Size,
			Qty:       sale.Qty,
			PartnerID: sale.PartnerID,
			Memo:      "sale " + sale.ID,
		}
		return mutation{keepPool: true, events: []Event{ev}, settled: []Sale{sale}}, nil
	})
	if err != nil {
		return Sale{}, err
	}
	return settled, nil
}

// OutboundPreview is the expected result of an outbound line.
type OutboundPreview struct {
	Available   int          `json:"available"`
	Allocations []Allocation `json:"allocations"`
	Margin      fee.Preview  `json:"margin"`
}

// PreviewOutbound runs the allocation against the committed pool without saving it
// and computes the expected margin after partner fees.
func (s *Service) PreviewOutbound(ctx context.Context, ownerID string, line OutboundLine) (OutboundPreview, error) {
	lots, err := s.repo.LoadLots(ctx, ownerID)
	if err != nil {
		return OutboundPreview{}, err
	}
	preview := OutboundPreview{Available: AvailableQty(lots, line.ProductID, line.Size)}
	res, err := Allocate(lots, line.ProductID, line.Size, line.Qty)
	if err != nil {
		return preview, err
	}
	preview.Allocations = res.Allocations

	var cfg fee.Config
	if line.PartnerID != "" && s.deps.Partners != nil {
		dir, err := s.deps.Partners.Directory(ctx, ownerID)
		if err != nil {
			return preview, err
		}
		cfg = dir[line.PartnerID].Fee
	}
	preview.Margin = fee.Margin(cfg, line.Qty, decimal.NewFromFloat(line.UnitPrice), res.Cost())
	return preview, nil
}

// ReturnLot sends returnable units of a lot back to its purchase partner.
func (s *Service) ReturnLot(ctx context.Context, ownerID string, input ReturnInput) (Lot, error) {
	var updated Lot
	err := s.mutate(ctx, ownerID, "return", "", input.ActorID, func(ctx context.Context, tx TxRepository, lots []Lot) (mutation, error) {
		next, src, err := ReturnLot(lots, input.LotID, input.Qty)
		if err != nil {
			return mutation{}, err
		}
		updated, _, _ = FindLot(next, src.ID)
		return mutation{lots: next, events: []Event{lotEvent(EventReturn, src, input.Qty, s.now(), "return")}}, nil
	})
	return updated, err
}

// ExchangeLot moves returnable units of a lot into a new lot of another size that
// keeps the original purchase date.
func (s *Service) ExchangeLot(ctx context.Context, ownerID string, input ExchangeInput) (Lot, error) {
	var moved Lot
	err := s.mutate(ctx, ownerID, "exchange", "", input.ActorID, func(ctx context.Context, tx TxRepository, lots []Lot) (mutation, error) {
		if _, _, err := returnableLot(lots, input.LotID, input.Qty); err != nil {
			return mutation{}, err
		}
		seq, err := s.seq.Next(ctx, ownerID)
		if err != nil {
			return mutation{}, fmt.Errorf("inventory: next lot sequence: %w", err)
		}
		now := s.now()
		src, _, _ := FindLot(lots, input.LotID)
		next, created, err := ExchangeLot(lots, input.LotID, input.ToSize, input.Qty, seq, now)
		if err != nil {
			return mutation{}, err
		}
		moved = created
		ev := lotEvent(EventExchange, src, input.Qty, now, fmt.Sprintf("keeps purchase date %s", src.DisplayDate()))
		ev.Size = ""
		ev.FromSize = src.Size
		ev.ToSize = input.ToSize
		return mutation{lots: next, events: []Event{ev}}, nil
	})
	return moved, err
}

// ConfirmLot confirms purchase of returnable units of a lot.
func (s *Service) ConfirmLot(ctx context.Context, ownerID string, input ConfirmInput) (Lot, error) {
	var updated Lot
	err := s.mutate(ctx, ownerID, "confirm", "", input.ActorID, func(ctx context.Context, tx TxRepository, lots []Lot) (mutation, error) {
		next, src, err := ConfirmLot(lots, input.LotID, input.Qty)
		if err != nil {
			return mutation{}, err
		}
		updated, _, _ = FindLot(next, src.ID)
		return mutation{lots: next, events: []Event{lotEvent(EventPurchaseConfirm, src, input.Qty, s.now(), "partial confirm")}}, nil
	})
	return updated, err
}

// AutoConfirm confirms every lot whose partner return window has passed. It returns
// the number of lots confirmed.
func (s *Service) AutoConfirm(ctx context.Context, ownerID string) (int, error) {
	dir := partners.Directory{}
	if s.deps.Partners != nil {
		d, err := s.deps.Partners.Directory(ctx, ownerID)
		if err != nil {
			return 0, err
		}
		dir = d
	}
	count := 0
	err := s.mutate(ctx, ownerID, "auto-confirm", "", 0, func(ctx context.Context, tx TxRepository, lots []Lot) (mutation, error) {
		now := s.now()
		next, changed := AutoConfirmExpired(lots, dir.ReturnDays, now)
		events := make([]Event, 0, len(changed))
		for _, l := range changed {
			events = append(events, lotEvent(EventPurchaseConfirm, l, l.Returnable(), now, "return deadline passed"))
		}
		count = len(changed)
		return mutation{lots: next, events: events}, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func lotEvent(t EventType, src Lot, qty int, at time.Time, memo string) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         t,
		Date:         at,
		ProductID:    src.ProductID,
		Size:         src.Size,
		Qty:          qty,
		UnitPurchase: src.PurchasePrice,
		PartnerID:    src.PartnerID,
		PaymentID:    src.PaymentID,
		LotID:        src.ID,
		ReceivedAt:   src.ReceivedAt,
		Memo:         memo,
	}
}

// Stock returns the aggregated rollup of the owner's current pool.
func (s *Service) Stock(ctx context.Context, ownerID string) ([]AggregateRow, error) {
	if ownerID == "" {
		return nil, ErrMalformedRequest
	}
	load := func(ctx context.Context) ([]AggregateRow, error) {
		lots, err := s.repo.LoadLots(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		products, err := s.repo.LoadProducts(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		return ComputeAggregated(products, lots), nil
	}
	if s.deps.Cache == nil {
		return load(ctx)
	}
	return s.deps.Cache.Fetch(ctx, ownerID, load)
}

// Available reports the stocked quantity of a product size.
func (s *Service) Available(ctx context.Context, ownerID, productID, size string) (int, error) {
	lots, err := s.repo.LoadLots(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return AvailableQty(lots, productID, size), nil
}

// ReturnableLots lists lots that can still be returned, exchanged or confirmed.
func (s *Service) ReturnableLots(ctx context.Context, ownerID string) ([]Lot, error) {
	lots, err := s.repo.LoadLots(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	var out []Lot
	for _, l := range SortLots(lots) {
		if l.Returnable() > 0 {
			out = append(out, l)
		}
	}
	return out, nil
}

// PurchaseRows reconstructs effective purchase rows from the owner's event log.
func (s *Service) PurchaseRows(ctx context.Context, ownerID string) (Reconstruction, error) {
	events, err := s.repo.LoadEvents(ctx, ownerID)
	if err != nil {
		return Reconstruction{}, err
	}
	rec, err := Reconstruct(events, s.policy)
	if err != nil {
		return Reconstruction{}, err
	}
	for _, d := range rec.Drifts {
		s.logger.Warn("purchase history drift",
			slog.String("owner", ownerID),
			slog.String("event_id", d.EventID),
			slog.String("type", string(d.Type)),
			slog.Int("requested", d.Requested),
			slog.Int("absorbed", d.Absorbed),
		)
	}
	return rec, nil
}

// Events returns the owner's IO log, optionally filtered by type.
func (s *Service) Events(ctx context.Context, ownerID string, types ...EventType) ([]Event, error) {
	events, err := s.repo.LoadEvents(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return events, nil
	}
	var out []Event
	for _, ev := range events {
		for _, t := range types {
			if ev.Type == t {
				out = append(out, ev)
				break
			}
		}
	}
	return out, nil
}

// Sales lists committed sales in [from, to]; zero bounds are open.
func (s *Service) Sales(ctx context.Context, ownerID string, from, to time.Time) ([]Sale, error) {
	return s.repo.ListSales(ctx, ownerID, from, to)
}

// stampOnDate places the current wall-clock time on a chosen local date so lots
// backdated to the same day still order by entry time.
func stampOnDate(ymd string, now time.Time) time.Time {
	day, err := time.ParseInLocation(ymdLayout, strings.TrimSpace(ymd), Location())
	if err != nil {
		return now
	}
	local := now.In(Location())
	return time.Date(day.Year(), day.Month(), day.Day(), local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), Location()).UTC()
}
