package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-resale/internal/platform/db"
)

// Repository persists lot pools and IO logs in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	LoadLotsForUpdate(ctx context.Context) ([]Lot, error)
	CommitLots(ctx context.Context, lots []Lot) error
	AppendEvents(ctx context.Context, events []Event) error
	InsertSales(ctx context.Context, sales []Sale) error
	LoadSaleForUpdate(ctx context.Context, saleID string) (Sale, error)
	UpdateSales(ctx context.Context, sales []Sale) error
}

type txRepo struct {
	tx      pgx.Tx
	ownerID string
}

var errRepoNotInitialised = errors.New("inventory repository not initialised")

const lotColumns = `id, product_id, size, qty, purchase_price, received_at, received_ymd,
created_at, created_seq, confirmed_qty, partner_id, payment_id`

const saleColumns = `id, product_id, size, qty, unit_price, partner_id, sold_at,
allocations, total_cost, total_revenue, deferred, settled_at`

// lotOrder keeps pools in creation order so first-seen sizes and the comparator's
// index tie-break are stable across loads.
const lotOrder = `created_seq NULLS LAST, created_at NULLS LAST, id`

const (
	selectLotsSQL          = `SELECT ` + lotColumns + ` FROM inventory_lots WHERE owner_id=$1 ORDER BY ` + lotOrder
	selectLotsForUpdateSQL = selectLotsSQL + ` FOR UPDATE`
)

const eventColumns = `id, type, occurred_at, product_id, size, from_size, to_size, qty,
unit_purchase, partner_id, payment_id, lot_id, received_at, memo`

// WithTx executes the callback inside a read-committed transaction scoped to one
// owner. LoadLotsForUpdate takes the owner's advisory lock first, so every later
// statement sees the pool as committed by the previous writer.
func (r *Repository) WithTx(ctx context.Context, ownerID string, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errRepoNotInitialised
	}
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, ownerID: ownerID})
	})
}

// LoadLots returns the committed pool of an owner.
func (r *Repository) LoadLots(ctx context.Context, ownerID string) ([]Lot, error) {
	if r == nil || r.pool == nil {
		return nil, errRepoNotInitialised
	}
	rows, err := r.pool.Query(ctx, selectLotsSQL, ownerID)
	if err != nil {
		return nil, err
	}
	return collectLots(rows)
}

// LoadEvents returns the owner's IO log in append order.
func (r *Repository) LoadEvents(ctx context.Context, ownerID string) ([]Event, error) {
	if r == nil || r.pool == nil {
		return nil, errRepoNotInitialised
	}
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM inventory_events WHERE owner_id=$1 ORDER BY log_seq`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var (
			ev       Event
			typ      string
			received pgtype.Timestamptz
		)
		if err := rows.Scan(&ev.ID, &typ, &ev.Date, &ev.ProductID, &ev.Size, &ev.FromSize, &ev.ToSize, &ev.Qty,
			&ev.UnitPurchase, &ev.PartnerID, &ev.PaymentID, &ev.LotID, &received, &ev.Memo); err != nil {
			return nil, err
		}
		ev.Type = EventType(typ)
		if received.Valid {
			ev.ReceivedAt = received.Time
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// LoadProducts returns the owner's product catalog.
func (r *Repository) LoadProducts(ctx context.Context, ownerID string) ([]Product, error) {
	if r == nil || r.pool == nil {
		return nil, errRepoNotInitialised
	}
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, brand, category, sizes
FROM inventory_products WHERE owner_id=$1 ORDER BY code, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Brand, &p.Category, &p.Sizes); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListSales returns sales recorded in [from, to]; zero bounds are open.
func (r *Repository) ListSales(ctx context.Context, ownerID string, from, to time.Time) ([]Sale, error) {
	if r == nil || r.pool == nil {
		return nil, errRepoNotInitialised
	}
	rows, err := r.pool.Query(ctx, `SELECT `+saleColumns+`
FROM inventory_sales
WHERE owner_id=$1
  AND ($2::timestamptz IS NULL OR sold_at >= $2)
  AND ($3::timestamptz IS NULL OR sold_at <= $3)
ORDER BY sold_at, id`, ownerID, optionalTime(from), optionalTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSale(row pgx.Row) (Sale, error) {
	var (
		s       Sale
		raw     []byte
		settled pgtype.Timestamptz
	)
	if err := row.Scan(&s.ID, &s.ProductID, &s.Size, &s.Qty, &s.UnitPrice, &s.PartnerID, &s.Date,
		&raw, &s.TotalCost, &s.TotalRevenue, &s.Deferred, &settled); err != nil {
		return Sale{}, err
	}
	if settled.Valid {
		s.SettledAt = settled.Time
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.Allocations); err != nil {
			return Sale{}, fmt.Errorf("inventory: decode allocations of sale %s: %w", s.ID, err)
		}
	}
	return s, nil
}

// ListOwners returns every owner holding lots.
func (r *Repository) ListOwners(ctx context.Context) ([]string, error) {
	if r == nil || r.pool == nil {
		return nil, errRepoNotInitialised
	}
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT owner_id FROM inventory_lots ORDER BY owner_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (t *txRepo) LoadLotsForUpdate(ctx context.Context) ([]Lot, error) {
	// Serialises writers even while the owner's pool is still empty.
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "inventory:"+t.ownerID); err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, selectLotsForUpdateSQL, t.ownerID)
	if err != nil {
		return nil, err
	}
	return collectLots(rows)
}

// CommitLots replaces the owner's pool with lots.
func (t *txRepo) CommitLots(ctx context.Context, lots []Lot) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM inventory_lots WHERE owner_id=$1`, t.ownerID); err != nil {
		return err
	}
	if len(lots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range lots {
		batch.Queue(`INSERT INTO inventory_lots (owner_id, `+lotColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			t.ownerID, l.ID, l.ProductID, l.Size, l.Qty, l.PurchasePrice, optionalTime(l.ReceivedAt), l.ReceivedYmd,
			optionalTime(l.CreatedAt), l.CreatedSeq, l.ConfirmedQty, l.PartnerID, l.PaymentID)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *txRepo) AppendEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`INSERT INTO inventory_events (owner_id, `+eventColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			t.ownerID, ev.ID, string(ev.Type), ev.Date, ev.ProductID, ev.Size, ev.FromSize, ev.ToSize, ev.Qty,
			ev.UnitPurchase, ev.PartnerID, ev.PaymentID, ev.LotID, optionalTime(ev.ReceivedAt), ev.Memo)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *txRepo) InsertSales(ctx context.Context, sales []Sale) error {
	batch := &pgx.Batch{}
	for _, s := range sales {
		allocs, err := json.Marshal(s.Allocations)
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO inventory_sales (owner_id, id, product_id, size, qty, unit_price, partner_id, sold_at,
allocations, total_cost, total_revenue, deferred)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			t.ownerID, s.ID, s.ProductID, s.Size, s.Qty, s.UnitPrice, s.PartnerID, s.Date,
			allocs, s.TotalCost, s.TotalRevenue, s.Deferred)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *txRepo) LoadSaleForUpdate(ctx context.Context, saleID string) (Sale, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM inventory_sales WHERE owner_id=$1 AND id=$2 FOR UPDATE`, t.ownerID, saleID)
	s, err := scanSale(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	return s, err
}

// UpdateSales stores the priced fields of settled sales.
func (t *txRepo) UpdateSales(ctx context.Context, sales []Sale) error {
	batch := &pgx.Batch{}
	for _, s := range sales {
		batch.Queue(`UPDATE inventory_sales
SET unit_price=$3, total_revenue=$4, sold_at=$5, deferred=$6, settled_at=$7
WHERE owner_id=$1 AND id=$2`,
			t.ownerID, s.ID, s.UnitPrice, s.TotalRevenue, s.Date, s.Deferred, optionalTime(s.SettledAt))
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func collectLots(rows pgx.Rows) ([]Lot, error) {
	defer rows.Close()
	var out []Lot
	for rows.Next() {
		var (
			l                 Lot
			received, created pgtype.Timestamptz
		)
		if err := rows.Scan(&l.ID, &l.ProductID, &l.Size, &l.Qty, &l.PurchasePrice, &received, &l.ReceivedYmd,
			&created, &l.CreatedSeq, &l.ConfirmedQty, &l.PartnerID, &l.PaymentID); err != nil {
			return nil, err
		}
		if received.Valid {
			l.ReceivedAt = received.Time
		}
		if created.Valid {
			l.CreatedAt = created.Time
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func optionalTime(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}

// PGSequence is a per-owner lot sequence persisted in inventory_lot_seq.
type PGSequence struct {
	pool *pgxpool.Pool
}

// NewPGSequence constructs PGSequence.
func NewPGSequence(pool *pgxpool.Pool) *PGSequence {
	return &PGSequence{pool: pool}
}

// Next returns the next sequence value of the owner.
func (s *PGSequence) Next(ctx context.Context, ownerID string) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, errors.New("inventory sequence not initialised")
	}
	var next int64
	err := s.pool.QueryRow(ctx, `INSERT INTO inventory_lot_seq (owner_id, last_value) VALUES ($1, 1)
ON CONFLICT (owner_id) DO UPDATE SET last_value = inventory_lot_seq.last_value + 1
RETURNING last_value`, ownerID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("inventory: next sequence for %s: %w", ownerID, err)
	}
	return next, nil
}
