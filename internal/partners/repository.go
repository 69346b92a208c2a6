package partners

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads partner terms from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all partners of an owner.
func (r *Repository) List(ctx context.Context, ownerID string) ([]Partner, error) {
	if r == nil {
		return nil, errors.New("partners repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name, biz_name, tax_type, return_days, fee_config
FROM partners WHERE owner_id=$1 ORDER BY name, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get returns one partner.
func (r *Repository) Get(ctx context.Context, ownerID, id string) (Partner, error) {
	if r == nil {
		return Partner{}, errors.New("partners repository not initialised")
	}
	row := r.pool.QueryRow(ctx, `SELECT id, name, biz_name, tax_type, return_days, fee_config
FROM partners WHERE owner_id=$1 AND id=$2`, ownerID, id)
	p, err := scanPartner(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Partner{}, ErrPartnerNotFound
	}
	return p, err
}

// Directory loads all partners of an owner indexed by id.
func (r *Repository) Directory(ctx context.Context, ownerID string) (Directory, error) {
	list, err := r.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return NewDirectory(list), nil
}

func scanPartner(row pgx.Row) (Partner, error) {
	var (
		p       Partner
		taxType string
		feeRaw  []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.BizName, &taxType, &p.ReturnDays, &feeRaw); err != nil {
		return Partner{}, err
	}
	p.TaxType = TaxType(taxType)
	if len(feeRaw) > 0 {
		if err := json.Unmarshal(feeRaw, &p.Fee); err != nil {
			return Partner{}, fmt.Errorf("partners: decode fee config for %s: %w", p.ID, err)
		}
	}
	return p, nil
}
