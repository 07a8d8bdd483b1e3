package pipeline

import (
	"context"
	"time"

	"go-sales-etl/internal/model"
)

// AuditLog is the append-only sink for stage events.
type AuditLog interface {
	AppendStageEvent(ctx context.Context, event model.StageEvent) error
}

// StageHandle pairs a terminal event with its STARTED counterpart so the
// duration can be computed.
type StageHandle struct {
	ExecutionID string
	Stage       model.Stage
	StartedAt   time.Time
}

// Tracker records stage boundaries in the execution audit log. Every call
// appends one immutable event; nothing is ever updated, so a STARTED event
// without a terminal event marks a run that died mid-stage.
type Tracker struct {
	audit AuditLog
	now   func() time.Time
}

// NewTracker builds a tracker over the given audit sink.
func NewTracker(audit AuditLog) *Tracker {
	return &Tracker{audit: audit, now: time.Now}
}

// Begin appends the STARTED event for a stage and returns its handle.
func (t *Tracker) Begin(ctx context.Context, executionID string, stage model.Stage) (StageHandle, error) {
	started := t.now().UTC()
	err := t.audit.AppendStageEvent(ctx, model.StageEvent{
		ExecutionID: executionID,
		Stage:       stage,
		Status:      model.StatusStarted,
		StartedAt:   started,
	})
	return StageHandle{ExecutionID: executionID, Stage: stage, StartedAt: started}, err
}

// Complete appends the COMPLETED event with the stage's aggregate counts.
func (t *Tracker) Complete(ctx context.Context, h StageHandle, processed, rejected int64) error {
	done := t.now().UTC()
	return t.audit.AppendStageEvent(ctx, model.StageEvent{
		ExecutionID:      h.ExecutionID,
		Stage:            h.Stage,
		Status:           model.StatusCompleted,
		RecordsProcessed: processed,
		RecordsRejected:  rejected,
		StartedAt:        h.StartedAt,
		CompletedAt:      &done,
		DurationSeconds:  done.Sub(h.StartedAt).Seconds(),
	})
}

// Fail appends the FAILED event carrying the error message.
func (t *Tracker) Fail(ctx context.Context, h StageHandle, message string) error {
	done := t.now().UTC()
	return t.audit.AppendStageEvent(ctx, model.StageEvent{
		ExecutionID:     h.ExecutionID,
		Stage:           h.Stage,
		Status:          model.StatusFailed,
		ErrorMessage:    message,
		StartedAt:       h.StartedAt,
		CompletedAt:     &done,
		DurationSeconds: done.Sub(h.StartedAt).Seconds(),
	})
}
