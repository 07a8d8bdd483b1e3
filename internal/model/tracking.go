package model

import "time"

// Stage is one phase of the pipeline with its own audit boundary.
type Stage string

const (
	StageExtract   Stage = "EXTRACT"
	StageTransform Stage = "TRANSFORM"
	StageLoad      Stage = "LOAD"
)

// StageStatus is the lifecycle state recorded for a stage event.
type StageStatus string

const (
	StatusStarted   StageStatus = "STARTED"
	StatusCompleted StageStatus = "COMPLETED"
	StatusFailed    StageStatus = "FAILED"
)

// RunState is the orchestrator's state machine position.
type RunState string

const (
	StateInit         RunState = "INIT"
	StateExtracting   RunState = "EXTRACTING"
	StateTransforming RunState = "TRANSFORMING"
	StateLoading      RunState = "LOADING"
	StateCompleted    RunState = "COMPLETED"
	StateFailed       RunState = "FAILED"
)

// StageEvent is one immutable row of the execution audit log. For a given
// (execution id, stage) there is at most one STARTED and one terminal event;
// a STARTED event with no terminal counterpart is the signature of a run that
// crashed mid-stage.
type StageEvent struct {
	ID               int64       `json:"id"`
	ExecutionID      string      `json:"execution_id"`
	Stage            Stage       `json:"stage"`
	Status           StageStatus `json:"status"`
	RecordsProcessed int64       `json:"records_processed"`
	RecordsRejected  int64       `json:"records_rejected"`
	ErrorMessage     string      `json:"error_message,omitempty"`
	StartedAt        time.Time   `json:"started_at"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
	DurationSeconds  float64     `json:"duration_seconds"`
}

// ExecutionRun groups the audit events of one pipeline invocation.
type ExecutionRun struct {
	ExecutionID string       `json:"execution_id"`
	StartedAt   time.Time    `json:"started_at"`
	Events      []StageEvent `json:"events,omitempty"`
}
