// Package store defines the metadata store interface for Strata. The memory
// backend serves tests and single-process use; Postgres and DynamoDB
// backends serve durable deployments.
package store

import (
	"context"

	"github.com/strata-systems/strata/pkg/types"
)

// Store is the metadata backend. All records are append-only except the
// datasource schema and active-snapshot pointer and the training automation
// and execution status fields.
type Store interface {
	// Datasources
	CreateDataSource(ctx context.Context, ds types.DataSource) error
	GetDataSource(ctx context.Context, id string) (*types.DataSource, error)
	ListDataSources(ctx context.Context) ([]types.DataSource, error)
	UpdateSchema(ctx context.Context, dsID string, schema []types.Column) error
	SetActiveSnapshot(ctx context.Context, dsID, snapshotID string) error

	// Snapshots
	CreateSnapshot(ctx context.Context, snap types.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*types.Snapshot, error)
	ListSnapshots(ctx context.Context, dsID string) ([]types.Snapshot, error)

	// Preprocesses (parent links are stored with the record)
	CreatePreprocess(ctx context.Context, pp types.Preprocess) error
	GetPreprocess(ctx context.Context, id string) (*types.Preprocess, error)
	ListPreprocesses(ctx context.Context) ([]types.Preprocess, error)
	// PreprocessByChild returns the preprocess producing the given child
	// datasource, or a NotFound failure when the datasource is a root.
	PreprocessByChild(ctx context.Context, childID string) (*types.Preprocess, error)

	// Executions (input/output snapshot links are stored with the record)
	CreateExecution(ctx context.Context, exec types.ExecutedPreprocess) error
	GetExecution(ctx context.Context, id string) (*types.ExecutedPreprocess, error)
	ListExecutions(ctx context.Context, preprocessID string) ([]types.ExecutedPreprocess, error)
	// ExecutionByOutput returns the execution that produced the snapshot, or
	// NotFound when the snapshot is a root upload or a copy-on-write input.
	ExecutionByOutput(ctx context.Context, snapshotID string) (*types.ExecutedPreprocess, error)

	// Trainings (automation path)
	CreateTraining(ctx context.Context, tr types.Training) error
	GetTraining(ctx context.Context, id string) (*types.Training, error)
	ListAutomatedTrainings(ctx context.Context) ([]types.Training, error)
	SetAutomation(ctx context.Context, trainingID string, enabled bool, schedule string) error
	CreateTrainingExecution(ctx context.Context, exec types.TrainingExecution) error
	UpdateTrainingExecution(ctx context.Context, exec types.TrainingExecution) error
	ListTrainingExecutions(ctx context.Context, trainingID string) ([]types.TrainingExecution, error)

	// Lifecycle
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ping(ctx context.Context) error
}
