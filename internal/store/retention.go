package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// retentionTargets maps each table to the timestamp column cleanup cuts on.
var retentionTargets = []struct {
	table  string
	column string
}{
	{"sales", "created_at"},
	{"rejected_sales", "rejected_at"},
	{"execution_log", "started_at"},
}

// PurgeBefore deletes all rows older than the cutoff from the sales,
// quarantine and audit tables. Returns the total number of rows removed.
// This is scheduled maintenance, independent of any in-flight pipeline run.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, target := range retentionTargets {
		query, args, err := s.builder.
			Delete(target.table).
			Where(sq.Lt{target.column: fmtTime(cutoff)}).
			ToSql()
		if err != nil {
			return total, fmt.Errorf("build %s purge: %w", target.table, err)
		}
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", target.table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}
