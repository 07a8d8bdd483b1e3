package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"go-sales-etl/internal/model"
)

// AppendStageEvent inserts one audit event. The log is append-only: events
// are never updated or deleted outside of retention cleanup.
func (s *Store) AppendStageEvent(ctx context.Context, event model.StageEvent) error {
	var completedAt interface{}
	if event.CompletedAt != nil {
		completedAt = fmtTime(*event.CompletedAt)
	}
	query, args, err := s.builder.
		Insert("execution_log").
		Columns("execution_id", "stage", "status", "records_processed", "records_rejected",
			"error_message", "started_at", "completed_at", "duration_seconds").
		Values(event.ExecutionID, string(event.Stage), string(event.Status),
			event.RecordsProcessed, event.RecordsRejected, event.ErrorMessage,
			fmtTime(event.StartedAt), completedAt, event.DurationSeconds).
		ToSql()
	if err != nil {
		return fmt.Errorf("build stage event insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append stage event: %w", err)
	}
	return nil
}

// ListStageEvents returns the audit events of one execution in append order.
func (s *Store) ListStageEvents(ctx context.Context, executionID string) ([]model.StageEvent, error) {
	query, args, err := s.builder.
		Select("id", "execution_id", "stage", "status", "records_processed", "records_rejected",
			"error_message", "started_at", "completed_at", "duration_seconds").
		From("execution_log").
		Where(sq.Eq{"execution_id": executionID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stage event select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select stage events: %w", err)
	}
	defer rows.Close()

	var events []model.StageEvent
	for rows.Next() {
		var ev model.StageEvent
		var stage, status string
		var errMsg sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(&ev.ID, &ev.ExecutionID, &stage, &status,
			&ev.RecordsProcessed, &ev.RecordsRejected, &errMsg,
			&ev.StartedAt, &completedAt, &ev.DurationSeconds); err != nil {
			return nil, fmt.Errorf("scan stage event: %w", err)
		}
		ev.Stage = model.Stage(stage)
		ev.Status = model.StageStatus(status)
		ev.ErrorMessage = errMsg.String
		if completedAt.Valid {
			t := completedAt.Time
			ev.CompletedAt = &t
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListExecutions returns recent execution runs, newest first, without their
// event details.
func (s *Store) ListExecutions(ctx context.Context, limit uint64) ([]model.ExecutionRun, error) {
	query, args, err := s.builder.
		Select("execution_id", "MIN(started_at) AS first_started").
		From("execution_log").
		GroupBy("execution_id").
		OrderBy("first_started DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build executions select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select executions: %w", err)
	}
	defer rows.Close()

	var runs []model.ExecutionRun
	for rows.Next() {
		var run model.ExecutionRun
		var started interface{}
		if err := rows.Scan(&run.ExecutionID, &started); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		run.StartedAt = coerceTime(started)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// coerceTime normalizes an aggregated timestamp column: drivers lose the
// declared type behind MIN() and may hand back raw text.
func coerceTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case []byte:
		parsed, _ := time.Parse(timeLayout, string(t))
		return parsed
	case string:
		parsed, _ := time.Parse(timeLayout, t)
		return parsed
	default:
		return time.Time{}
	}
}
