package pipeline

import (
	"log/slog"
	"time"

	"go-sales-etl/internal/model"
)

// Transformer turns raw rows into normalized records or rejection entries.
// Every input row yields exactly one of the two; no row is silently dropped.
type Transformer struct {
	log *slog.Logger
	now func() time.Time
}

// NewTransformer builds a transformer logging through the given logger.
func NewTransformer(log *slog.Logger) *Transformer {
	return &Transformer{log: log, now: time.Now}
}

// Transform classifies every row. Rejections carry the verbatim source text
// and the execution id of this run.
func (t *Transformer) Transform(executionID string, rows []model.RawRow) ([]model.NormalizedRecord, []model.RejectionEntry) {
	accepted := make([]model.NormalizedRecord, 0, len(rows))
	var rejected []model.RejectionEntry

	for _, row := range rows {
		result := Classify(row)
		if result.Accepted() {
			accepted = append(accepted, *result.Record)
			continue
		}
		rejected = append(rejected, model.RejectionEntry{
			ExecutionID: executionID,
			Raw:         row.Raw,
			Reason:      result.Reason,
			RejectedAt:  t.now().UTC(),
		})
		t.log.Debug("row rejected",
			"execution_id", executionID,
			"line", row.LineNumber,
			"reason", string(result.Reason))
	}

	t.log.Info("transform finished",
		"execution_id", executionID,
		"processed", len(rows),
		"accepted", len(accepted),
		"rejected", len(rejected))
	return accepted, rejected
}
