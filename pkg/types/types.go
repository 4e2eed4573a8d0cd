// Package types defines the public domain types for the Strata dataset
// versioning and lineage engine.
package types

import "time"

// Column describes one column of a datasource's recorded schema.
type Column struct {
	Name      string `yaml:"name" json:"name"`
	Dtype     string `yaml:"dtype" json:"dtype"`
	NullCount int    `yaml:"nullCount" json:"null_count"`
}

// DataSource is a named tabular entity. A root datasource is uploaded
// externally; a derived datasource is produced by exactly one preprocess.
type DataSource struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Schema           []Column  `json:"schema,omitempty"`
	ActiveSnapshotID string    `json:"active_snapshot_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Snapshot is one immutable, time-stamped version of a datasource's content.
// Size is derived from the blob store on demand and never persisted.
type Snapshot struct {
	ID           string    `json:"id"`
	DataSourceID string    `json:"datasource_id"`
	Path         string    `json:"path"`
	CreatedAt    time.Time `json:"created_at"`
}

// Step is one configured transformation step of a preprocess.
type Step struct {
	Op     Op                `yaml:"op" json:"op"`
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	Code   string            `yaml:"code,omitempty" json:"code,omitempty"`
}

// Preprocess is a named, ordered list of steps consuming one or two parent
// datasources and producing one child datasource.
type Preprocess struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Steps     []Step    `json:"steps"`
	ParentIDs []string  `json:"parent_ids"`
	ChildID   string    `json:"child_id"`
	CreatedAt time.Time `json:"created_at"`
}

// HasJoin reports whether the step list contains a join step.
func (p *Preprocess) HasJoin() bool {
	for _, s := range p.Steps {
		if s.Op == OpJoin {
			return true
		}
	}
	return false
}

// ExecutedPreprocess is the durable record of one concrete run of a
// preprocess against specific input snapshots.
type ExecutedPreprocess struct {
	ID               string       `json:"id"`
	PreprocessID     string       `json:"preprocess_id"`
	CreatedAt        time.Time    `json:"created_at"`
	InputSnapshotIDs []string     `json:"input_snapshots"`
	OutputSnapshotID string       `json:"output_snapshot"`
	Details          []StepDetail `json:"details"`
}

// ExecutionStatus is the lifecycle state of a training execution.
type ExecutionStatus string

const (
	ExecutionRunning ExecutionStatus = "running"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
)

// Training names a target datasource for the automation path. The model
// fitting itself lives behind an injected runner and is not part of this
// engine.
type Training struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	DataSourceID       string    `json:"datasource_id"`
	AutomationEnabled  bool      `json:"automation_enabled"`
	AutomationSchedule string    `json:"automation_schedule,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// TrainingExecution records one automation run: which materialized snapshot
// it used and whether it succeeded. Failures capture the error text instead
// of raising out of the scheduler loop.
type TrainingExecution struct {
	ID         string          `json:"id"`
	TrainingID string          `json:"training_id"`
	SnapshotID string          `json:"snapshot_id,omitempty"`
	Status     ExecutionStatus `json:"status"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// ExecuteRequest carries the caller-resolved inputs for one execution.
// For non-join preprocesses SnapshotID names the single input; for joins
// Snapshots maps parent datasource id to the snapshot to consume.
type ExecuteRequest struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	Snapshots  map[string]string `json:"snapshots,omitempty"`
}

// ColumnSummary is one row of a snapshot summary.
type ColumnSummary struct {
	Column     string  `json:"column"`
	Type       string  `json:"type"` // numeric, date, or categorical
	Missing    int     `json:"missing"`
	MissingPct float64 `json:"missing_pct"`
	Unique     int     `json:"unique"`
	Stats      string  `json:"stats"`
}
