package pipeline

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/google/uuid"

	"go-sales-etl/internal/model"
)

// Extractor produces the raw row sequence for one run.
type Extractor interface {
	Rows() iter.Seq2[model.RawRow, error]
}

// RecordTransformer classifies raw rows into accepted records and rejections.
type RecordTransformer interface {
	Transform(executionID string, rows []model.RawRow) ([]model.NormalizedRecord, []model.RejectionEntry)
}

// RecordLoader persists both outputs of the transform stage.
type RecordLoader interface {
	LoadAccepted(ctx context.Context, records []model.NormalizedRecord) (BatchResult, error)
	LoadRejected(ctx context.Context, entries []model.RejectionEntry) (BatchResult, error)
}

// StageTracker records stage boundaries in the audit log.
type StageTracker interface {
	Begin(ctx context.Context, executionID string, stage model.Stage) (StageHandle, error)
	Complete(ctx context.Context, h StageHandle, processed, rejected int64) error
	Fail(ctx context.Context, h StageHandle, message string) error
}

// RunSummary is the outcome of one pipeline invocation.
type RunSummary struct {
	ExecutionID string         `json:"execution_id"`
	State       model.RunState `json:"state"`
	Extracted   int64          `json:"extracted"`
	Accepted    int64          `json:"accepted"`
	Rejected    int64          `json:"rejected"`
	RowsLoaded  int64          `json:"rows_loaded"`
	FailedStage model.Stage    `json:"failed_stage,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Orchestrator sequences Extract -> Transform -> Load, owns the execution id
// and decides the overall run outcome. Stages run strictly one after
// another; no stage begins until the previous stage's boundary event is in
// the audit log. Rejections are expected and never fail a stage: a run where
// every row is quarantined still completes.
type Orchestrator struct {
	extractor   Extractor
	transformer RecordTransformer
	loader      RecordLoader
	tracker     StageTracker
	log         *slog.Logger

	state model.RunState
	newID func() string
}

// NewOrchestrator wires the three stage components and the tracker.
func NewOrchestrator(e Extractor, t RecordTransformer, l RecordLoader, tr StageTracker, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		extractor:   e,
		transformer: t,
		loader:      l,
		tracker:     tr,
		log:         log,
		state:       model.StateInit,
		newID:       uuid.NewString,
	}
}

// WithIDGenerator overrides execution id generation, e.g. to hand the id to
// a caller before the run starts.
func (o *Orchestrator) WithIDGenerator(gen func() string) *Orchestrator {
	o.newID = gen
	return o
}

// State returns the orchestrator's current state machine position.
func (o *Orchestrator) State() model.RunState {
	return o.state
}

// Run executes one full pipeline pass. The returned summary always carries
// the execution id; a non-nil error means the run is FAILED and names the
// failing stage.
func (o *Orchestrator) Run(ctx context.Context) (RunSummary, error) {
	executionID := o.newID()
	summary := RunSummary{ExecutionID: executionID, State: model.StateInit}
	o.state = model.StateInit
	o.log.Info("pipeline run starting", "execution_id", executionID)

	// EXTRACT
	o.state = model.StateExtracting
	handle, err := o.tracker.Begin(ctx, executionID, model.StageExtract)
	if err != nil {
		return o.fail(ctx, &summary, handle, fmt.Errorf("begin extract stage: %w", err))
	}
	var rows []model.RawRow
	var extractErr error
	for row, err := range o.extractor.Rows() {
		if err != nil {
			extractErr = err
			break
		}
		rows = append(rows, row)
	}
	if extractErr != nil {
		return o.fail(ctx, &summary, handle, extractErr)
	}
	summary.Extracted = int64(len(rows))
	if err := o.tracker.Complete(ctx, handle, summary.Extracted, 0); err != nil {
		return o.fail(ctx, &summary, handle, fmt.Errorf("record extract completion: %w", err))
	}

	// TRANSFORM
	o.state = model.StateTransforming
	handle, err = o.tracker.Begin(ctx, executionID, model.StageTransform)
	if err != nil {
		return o.fail(ctx, &summary, handle, fmt.Errorf("begin transform stage: %w", err))
	}
	accepted, rejected := o.transformer.Transform(executionID, rows)
	summary.Accepted = int64(len(accepted))
	summary.Rejected = int64(len(rejected))
	if err := o.tracker.Complete(ctx, handle, summary.Accepted+summary.Rejected, summary.Rejected); err != nil {
		return o.fail(ctx, &summary, handle, fmt.Errorf("record transform completion: %w", err))
	}

	// LOAD
	o.state = model.StateLoading
	handle, err = o.tracker.Begin(ctx, executionID, model.StageLoad)
	if err != nil {
		return o.fail(ctx, &summary, handle, fmt.Errorf("begin load stage: %w", err))
	}
	salesResult, err := o.loader.LoadAccepted(ctx, accepted)
	if err != nil {
		return o.fail(ctx, &summary, handle, fmt.Errorf("load accepted: %w", err))
	}
	quarantineResult, err := o.loader.LoadRejected(ctx, rejected)
	if err != nil {
		return o.fail(ctx, &summary, handle, fmt.Errorf("load rejected: %w", err))
	}
	summary.RowsLoaded = salesResult.RowsCommitted + quarantineResult.RowsCommitted
	if err := o.tracker.Complete(ctx, handle, summary.RowsLoaded, 0); err != nil {
		return o.fail(ctx, &summary, handle, fmt.Errorf("record load completion: %w", err))
	}

	o.state = model.StateCompleted
	summary.State = model.StateCompleted
	o.log.Info("pipeline run completed",
		"execution_id", executionID,
		"extracted", summary.Extracted,
		"accepted", summary.Accepted,
		"rejected", summary.Rejected,
		"rows_loaded", summary.RowsLoaded)
	return summary, nil
}

// fail records the stage failure, moves the machine to FAILED and skips all
// remaining stages.
func (o *Orchestrator) fail(ctx context.Context, summary *RunSummary, handle StageHandle, cause error) (RunSummary, error) {
	if trackErr := o.tracker.Fail(ctx, handle, cause.Error()); trackErr != nil {
		o.log.Error("failed to record stage failure",
			"execution_id", summary.ExecutionID,
			"stage", string(handle.Stage),
			"error", trackErr.Error())
	}
	o.state = model.StateFailed
	summary.State = model.StateFailed
	summary.FailedStage = handle.Stage
	summary.Error = cause.Error()
	o.log.Error("pipeline run failed",
		"execution_id", summary.ExecutionID,
		"stage", string(handle.Stage),
		"error", cause.Error())
	return *summary, fmt.Errorf("run %s failed at %s: %w", summary.ExecutionID, handle.Stage, cause)
}
