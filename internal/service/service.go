// Package service is the facade over the versioning engine: dataset
// ingest, preprocess definition and execution, materialization, lineage,
// and training automation.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/strata-systems/strata/internal/engine"
	"github.com/strata-systems/strata/internal/graph"
	"github.com/strata-systems/strata/internal/lineage"
	"github.com/strata-systems/strata/internal/materialize"
	"github.com/strata-systems/strata/internal/snapshot"
	"github.com/strata-systems/strata/internal/store"
	"github.com/strata-systems/strata/internal/table"
	"github.com/strata-systems/strata/internal/transform"
	"github.com/strata-systems/strata/pkg/types"
)

// Service wires the engine components behind one API surface.
type Service struct {
	store  store.Store
	snaps  *snapshot.Manager
	graph  *graph.Graph
	engine *engine.Engine
	mat    *materialize.Materializer
	tracer *lineage.Tracer
	reg    *transform.Registry
	runner Runner
	log    *slog.Logger
	now    func() time.Time
}

// Runner fits a model against a materialized snapshot. Model training
// itself lives outside this engine; the automation path only needs the
// capability.
type Runner interface {
	Run(ctx context.Context, tr types.Training, snapshotID string) error
}

// NopRunner satisfies Runner without doing any fitting. Used when the
// engine runs standalone.
type NopRunner struct{}

func (NopRunner) Run(context.Context, types.Training, string) error { return nil }

func New(st store.Store, snaps *snapshot.Manager, g *graph.Graph, eng *engine.Engine, mat *materialize.Materializer, tracer *lineage.Tracer, reg *transform.Registry, runner Runner, log *slog.Logger) *Service {
	if runner == nil {
		runner = NopRunner{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  st,
		snaps:  snaps,
		graph:  g,
		engine: eng,
		mat:    mat,
		tracer: tracer,
		reg:    reg,
		runner: runner,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// DefineDatasetUpload registers a new root datasource. Its schema is
// recorded on first upload.
func (s *Service) DefineDatasetUpload(ctx context.Context, name string) (*types.DataSource, error) {
	if name == "" {
		return nil, types.NewError(types.KindInvalidInput, "datasource name required")
	}
	ds := types.DataSource{
		ID:        ulid.Make().String(),
		Name:      name,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateDataSource(ctx, ds); err != nil {
		return nil, err
	}
	s.log.Info("datasource defined", "datasource_id", ds.ID, "name", name)
	return &ds, nil
}

// UploadSnapshot ingests CSV bytes as a new snapshot of a root datasource
// and makes it active. The first upload records the inferred schema; later
// uploads must match it exactly and fail with SchemaMismatch before
// anything is persisted.
func (s *Service) UploadSnapshot(ctx context.Context, dataSourceID string, data []byte) (*types.Snapshot, error) {
	ds, err := s.store.GetDataSource(ctx, dataSourceID)
	if err != nil {
		return nil, err
	}
	root, err := s.graph.IsRoot(ctx, dataSourceID)
	if err != nil {
		return nil, err
	}
	if !root {
		return nil, types.NewError(types.KindInvalidState,
			"datasource %s is derived; its snapshots come from executions", dataSourceID)
	}

	t, err := table.FromBytes(data)
	if err != nil {
		return nil, err
	}
	schema := t.InferSchema()
	if len(ds.Schema) > 0 && !table.SchemasEqual(ds.Schema, schema) {
		return nil, types.NewError(types.KindSchemaMismatch,
			"uploaded columns do not match recorded schema of datasource %s", dataSourceID)
	}

	snap, err := s.snaps.Create(ctx, dataSourceID, data, "upload")
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateSchema(ctx, dataSourceID, schema); err != nil {
		return nil, err
	}
	if err := s.store.SetActiveSnapshot(ctx, dataSourceID, snap.ID); err != nil {
		return nil, err
	}
	return snap, nil
}

// AppendRows creates a new active snapshot of a root datasource consisting
// of the current active content plus the given rows. Every row must carry
// exactly the schema's column names. Existing snapshots are untouched.
func (s *Service) AppendRows(ctx context.Context, dataSourceID string, rows []map[string]string) (*types.Snapshot, error) {
	ds, err := s.store.GetDataSource(ctx, dataSourceID)
	if err != nil {
		return nil, err
	}
	root, err := s.graph.IsRoot(ctx, dataSourceID)
	if err != nil {
		return nil, err
	}
	if !root {
		return nil, types.NewError(types.KindInvalidState,
			"cannot append rows to derived datasource %s", dataSourceID)
	}
	if ds.ActiveSnapshotID == "" {
		return nil, types.NewError(types.KindInvalidState,
			"datasource %s has no active snapshot to append to", dataSourceID)
	}

	data, err := s.snaps.Download(ctx, ds.ActiveSnapshotID)
	if err != nil {
		return nil, err
	}
	t, err := table.FromBytes(data)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != len(t.Columns) {
			return nil, types.NewError(types.KindInvalidInput,
				"row %d has %d values, schema has %d columns", i, len(row), len(t.Columns))
		}
		cells := make([]string, len(t.Columns))
		for j, col := range t.Columns {
			v, ok := row[col]
			if !ok {
				return nil, types.NewError(types.KindInvalidInput,
					"row %d missing column %q", i, col)
			}
			cells[j] = v
		}
		t.Rows = append(t.Rows, cells)
	}

	encoded, err := t.EncodeCSV()
	if err != nil {
		return nil, types.WrapError(types.KindStorageError, err, "encoding appended table")
	}
	snap, err := s.snaps.Create(ctx, dataSourceID, encoded, "append")
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateSchema(ctx, dataSourceID, t.InferSchema()); err != nil {
		return nil, err
	}
	if err := s.store.SetActiveSnapshot(ctx, dataSourceID, snap.ID); err != nil {
		return nil, err
	}
	return snap, nil
}

// SetActiveSnapshot repoints a datasource's active version to one of its
// existing snapshots.
func (s *Service) SetActiveSnapshot(ctx context.Context, dataSourceID, snapshotID string) error {
	snap, err := s.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return err
	}
	if snap.DataSourceID != dataSourceID {
		return types.NewError(types.KindInvalidInput,
			"snapshot %s belongs to datasource %s", snapshotID, snap.DataSourceID)
	}
	return s.store.SetActiveSnapshot(ctx, dataSourceID, snapshotID)
}

// SnapshotSummary computes per-column statistics of a snapshot's content.
func (s *Service) SnapshotSummary(ctx context.Context, snapshotID string) ([]types.ColumnSummary, error) {
	data, err := s.snaps.Download(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	t, err := table.FromBytes(data)
	if err != nil {
		return nil, err
	}
	return t.Summarize(), nil
}

// DownloadSnapshot returns the raw CSV bytes of a snapshot.
func (s *Service) DownloadSnapshot(ctx context.Context, snapshotID string) ([]byte, error) {
	return s.snaps.Download(ctx, snapshotID)
}

// SnapshotSize reports the stored size of a snapshot in bytes.
func (s *Service) SnapshotSize(ctx context.Context, snapshotID string) (int64, error) {
	return s.snaps.Size(ctx, snapshotID)
}

// DefinePreprocess validates the step list, creates the child datasource,
// and records the preprocess producing it. Unknown ops without custom code
// are rejected here, not at execution time.
func (s *Service) DefinePreprocess(ctx context.Context, name string, parentIDs []string, steps []types.Step) (*types.Preprocess, error) {
	if name == "" {
		return nil, types.NewError(types.KindInvalidInput, "preprocess name required")
	}
	if n := len(parentIDs); n < 1 || n > 2 {
		return nil, types.NewError(types.KindInvalidInput, "preprocess requires 1 or 2 parents, got %d", n)
	}
	for _, parentID := range parentIDs {
		if _, err := s.store.GetDataSource(ctx, parentID); err != nil {
			return nil, err
		}
	}
	if err := s.reg.ValidateSteps(steps, len(parentIDs)); err != nil {
		return nil, err
	}
	cyclic, err := s.graph.WouldCycle(ctx, parentIDs)
	if err != nil {
		return nil, err
	}
	if cyclic {
		return nil, types.NewError(types.KindInvalidState,
			"parent graph of preprocess %q contains a cycle", name)
	}

	child := types.DataSource{
		ID:        ulid.Make().String(),
		Name:      name,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateDataSource(ctx, child); err != nil {
		return nil, err
	}
	pp := types.Preprocess{
		ID:        ulid.Make().String(),
		Name:      name,
		Steps:     steps,
		ParentIDs: append([]string(nil), parentIDs...),
		ChildID:   child.ID,
		CreatedAt: s.now(),
	}
	if err := s.store.CreatePreprocess(ctx, pp); err != nil {
		return nil, err
	}
	s.log.Info("preprocess defined",
		"preprocess_id", pp.ID, "name", name, "parents", parentIDs, "child_id", child.ID)
	return &pp, nil
}

// Execute runs a preprocess against resolved inputs.
func (s *Service) Execute(ctx context.Context, preprocessID string, req types.ExecuteRequest) (*types.ExecutedPreprocess, error) {
	return s.engine.Execute(ctx, preprocessID, req)
}

// Preview applies a preprocess's steps without persisting anything,
// returning at most limit output rows.
func (s *Service) Preview(ctx context.Context, preprocessID string, req types.ExecuteRequest, limit int) (*table.Table, error) {
	return s.engine.Preview(ctx, preprocessID, req, limit)
}

// Materialize rebuilds the current snapshot of a derived datasource.
func (s *Service) Materialize(ctx context.Context, dataSourceID string) (string, error) {
	return s.mat.Materialize(ctx, dataSourceID)
}

// ReconstructSteps returns the flattened transformation history behind a
// snapshot, roots first.
func (s *Service) ReconstructSteps(ctx context.Context, snapshotID string) ([]types.StepDetail, error) {
	return s.tracer.ReconstructSteps(ctx, snapshotID)
}

// CollectRootSnapshots returns the active snapshots of every root
// ancestor of a datasource.
func (s *Service) CollectRootSnapshots(ctx context.Context, dataSourceID string) ([]string, error) {
	return s.tracer.RootSnapshots(ctx, dataSourceID)
}

func (s *Service) ListDataSources(ctx context.Context) ([]types.DataSource, error) {
	return s.store.ListDataSources(ctx)
}

func (s *Service) ListSnapshots(ctx context.Context, dataSourceID string) ([]types.Snapshot, error) {
	return s.store.ListSnapshots(ctx, dataSourceID)
}

func (s *Service) ListPreprocesses(ctx context.Context) ([]types.Preprocess, error) {
	return s.store.ListPreprocesses(ctx)
}

func (s *Service) ListExecutions(ctx context.Context, preprocessID string) ([]types.ExecutedPreprocess, error) {
	return s.store.ListExecutions(ctx, preprocessID)
}

func (s *Service) GetDataSource(ctx context.Context, id string) (*types.DataSource, error) {
	return s.store.GetDataSource(ctx, id)
}

func (s *Service) GetExecution(ctx context.Context, id string) (*types.ExecutedPreprocess, error) {
	return s.store.GetExecution(ctx, id)
}
