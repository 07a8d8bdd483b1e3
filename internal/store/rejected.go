package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"go-sales-etl/internal/model"
)

// InsertRejectedChunk writes one chunk of quarantine entries under a single
// transaction. Entries are terminal once written; nothing retries them.
func (s *Store) InsertRejectedChunk(ctx context.Context, entries []model.RejectionEntry) error {
	if len(entries) == 0 {
		return nil
	}

	builder := s.builder.
		Insert("rejected_sales").
		Columns("execution_id", "raw_data", "rejection_reason", "rejected_at")
	for _, e := range entries {
		builder = builder.Values(e.ExecutionID, e.Raw, string(e.Reason), fmtTime(e.RejectedAt))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build rejection insert: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rejection tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert rejection chunk: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rejection chunk: %w", err)
	}
	return nil
}

// ListRejections returns the quarantine entries of one execution, in
// insertion order.
func (s *Store) ListRejections(ctx context.Context, executionID string) ([]model.RejectionEntry, error) {
	query, args, err := s.builder.
		Select("execution_id", "raw_data", "rejection_reason", "rejected_at").
		From("rejected_sales").
		Where(sq.Eq{"execution_id": executionID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build rejection select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select rejections: %w", err)
	}
	defer rows.Close()

	var entries []model.RejectionEntry
	for rows.Next() {
		var e model.RejectionEntry
		var reason string
		if err := rows.Scan(&e.ExecutionID, &e.Raw, &reason, &e.RejectedAt); err != nil {
			return nil, fmt.Errorf("scan rejection: %w", err)
		}
		e.Reason = model.RejectionReason(reason)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
