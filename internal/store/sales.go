package store

import (
	"context"
	"fmt"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"

	"go-sales-etl/internal/model"
)

var salesColumns = []string{"date", "product", "category", "quantity", "unit_price", "total", "customer_id", "region", "vendor"}

// SaleRow is a persisted sales record with its surrogate key.
type SaleRow struct {
	ID        int64                  `json:"id"`
	Record    model.NormalizedRecord `json:"record"`
	CreatedAt time.Time              `json:"created_at"`
}

// InsertSalesChunk writes one chunk of accepted records under a single
// transaction: the whole chunk commits or the whole chunk rolls back.
func (s *Store) InsertSalesChunk(ctx context.Context, records []model.NormalizedRecord) error {
	if len(records) == 0 {
		return nil
	}

	builder := s.builder.Insert("sales").Columns(salesColumns...)
	for _, r := range records {
		builder = builder.Values(
			r.Date.Format("2006-01-02"),
			r.Product,
			r.Category,
			r.Quantity,
			r.UnitPrice(),
			r.Total(),
			r.CustomerID,
			r.Region,
			r.Vendor,
		)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build sales insert: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sales tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert sales chunk: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sales chunk: %w", err)
	}
	return nil
}

// GetSale reads one record back by its surrogate key.
func (s *Store) GetSale(ctx context.Context, id int64) (*SaleRow, error) {
	query, args, err := s.builder.
		Select(append([]string{"id"}, append(append([]string{}, salesColumns...), "created_at")...)...).
		From("sales").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sale select: %w", err)
	}

	var row SaleRow
	var unitPrice, total float64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&row.ID,
		&row.Record.Date,
		&row.Record.Product,
		&row.Record.Category,
		&row.Record.Quantity,
		&unitPrice,
		&total,
		&row.Record.CustomerID,
		&row.Record.Region,
		&row.Record.Vendor,
		&row.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("select sale %d: %w", id, err)
	}
	row.Record.UnitPriceCents = int64(math.Round(unitPrice * 100))
	row.Record.TotalCents = int64(math.Round(total * 100))
	return &row, nil
}

// ListSales returns the most recently inserted records, newest first.
func (s *Store) ListSales(ctx context.Context, limit uint64) ([]SaleRow, error) {
	query, args, err := s.builder.
		Select(append([]string{"id"}, append(append([]string{}, salesColumns...), "created_at")...)...).
		From("sales").
		OrderBy("id DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sales select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	defer rows.Close()

	var result []SaleRow
	for rows.Next() {
		var row SaleRow
		var unitPrice, total float64
		if err := rows.Scan(
			&row.ID,
			&row.Record.Date,
			&row.Record.Product,
			&row.Record.Category,
			&row.Record.Quantity,
			&unitPrice,
			&total,
			&row.Record.CustomerID,
			&row.Record.Region,
			&row.Record.Vendor,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		row.Record.UnitPriceCents = int64(math.Round(unitPrice * 100))
		row.Record.TotalCents = int64(math.Round(total * 100))
		result = append(result, row)
	}
	return result, rows.Err()
}

// CountSales returns the number of persisted sales records, the post-load
// verification count surfaced by the API.
func (s *Store) CountSales(ctx context.Context) (int64, error) {
	var count int64
	query, args, err := s.builder.Select("COUNT(*)").From("sales").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sales count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sales: %w", err)
	}
	return count, nil
}
