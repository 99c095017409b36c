package sale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists sales in PostgreSQL. The full aggregate lives in a JSONB
// document; status columns are duplicated for filtering.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore over pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const (
	insertSaleSQL = `INSERT INTO sales (id, branch, payment_status, pickup_status, voided, document, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	selectSaleSQL = `SELECT document FROM sales WHERE id = $1`
	updateSaleSQL = `UPDATE sales
SET payment_status = $2, pickup_status = $3, voided = $4, document = $5, updated_at = $6
WHERE id = $1`
	listSalesSQL = `SELECT document, count(*) OVER () AS total
FROM sales
WHERE ($1::text = '' OR branch = $1::text)
  AND ($2::text = '' OR payment_status = $2::text)
  AND ($3::text = '' OR pickup_status = $3::text)
ORDER BY created_at DESC, id DESC
LIMIT $4 OFFSET $5`
)

func (p *PGStore) Create(ctx context.Context, s *Sale) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode sale: %w", err)
	}
	_, err = p.pool.Exec(ctx, insertSaleSQL,
		s.ID, s.Branch, string(s.PaymentStatus), string(s.PickupStatus), s.Voided, doc, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (p *PGStore) Get(ctx context.Context, id uuid.UUID) (*Sale, error) {
	var doc []byte
	if err := p.pool.QueryRow(ctx, selectSaleSQL, id).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load sale: %w", err)
	}
	var s Sale
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("decode sale %s: %w", id, err)
	}
	return &s, nil
}

func (p *PGStore) Update(ctx context.Context, s *Sale) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode sale: %w", err)
	}
	tag, err := p.pool.Exec(ctx, updateSaleSQL,
		s.ID, string(s.PaymentStatus), string(s.PickupStatus), s.Voided, doc, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PGStore) List(ctx context.Context, f ListFilter) ([]Sale, int64, error) {
	rows, err := p.pool.Query(ctx, listSalesSQL,
		f.Branch, string(f.PaymentStatus), string(f.PickupStatus), f.PerPage, f.offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	out := []Sale{}
	var total int64
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc, &total); err != nil {
			return nil, 0, fmt.Errorf("scan sale: %w", err)
		}
		var s Sale
		if err := json.Unmarshal(doc, &s); err != nil {
			return nil, 0, fmt.Errorf("decode sale: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list sales: %w", err)
	}
	return out, total, nil
}
