// Package engine executes preprocesses: it resolves input snapshots,
// applies the configured steps, and records the run durably.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/strata-systems/strata/internal/metrics"
	"github.com/strata-systems/strata/internal/snapshot"
	"github.com/strata-systems/strata/internal/store"
	"github.com/strata-systems/strata/internal/table"
	"github.com/strata-systems/strata/internal/transform"
	"github.com/strata-systems/strata/pkg/types"
)

// Engine runs preprocesses. Execution never mutates an input snapshot: an
// input that is currently the active snapshot of its datasource is copied
// first, and the copy is what the execution record references.
type Engine struct {
	store  store.Store
	snaps  *snapshot.Manager
	reg    *transform.Registry
	runner transform.CustomRunner
	log    *slog.Logger
	now    func() time.Time
}

func New(st store.Store, snaps *snapshot.Manager, reg *transform.Registry, runner transform.CustomRunner, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:  st,
		snaps:  snaps,
		reg:    reg,
		runner: runner,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Execute runs one preprocess against concrete input snapshots and returns
// the durable execution record. A single-parent preprocess requires an
// explicit input: req.SnapshotID or a req.Snapshots entry for the parent.
// Join parents resolve, in order: an explicit req.Snapshots entry, the
// parent's active snapshot, then the legacy left_snapshot_id/
// right_snapshot_id params on the join step.
func (e *Engine) Execute(ctx context.Context, preprocessID string, req types.ExecuteRequest) (*types.ExecutedPreprocess, error) {
	pp, err := e.store.GetPreprocess(ctx, preprocessID)
	if err != nil {
		return nil, err
	}
	if len(pp.ParentIDs) == 0 {
		return nil, types.NewError(types.KindInvalidState, "preprocess %s has no parent datasources", preprocessID)
	}

	inputs, err := e.resolveInputs(ctx, pp, req)
	if err != nil {
		metrics.ExecutionErrors.Add(1)
		return nil, err
	}

	// Copy-on-write applies to root inputs only. A derived input is an
	// execution output and must stay resolvable through ExecutionByOutput;
	// a root's consumed active snapshot gets a copy so the record never
	// references a pointer that can move.
	for i, snap := range inputs {
		if _, err := e.store.PreprocessByChild(ctx, snap.DataSourceID); err == nil {
			continue
		} else if !types.IsKind(err, types.KindNotFound) {
			metrics.ExecutionErrors.Add(1)
			return nil, err
		}
		dup, err := e.snaps.CopyIfActive(ctx, snap)
		if err != nil {
			metrics.ExecutionErrors.Add(1)
			return nil, err
		}
		inputs[i] = dup
	}

	tables := make([]*table.Table, len(inputs))
	for i, snap := range inputs {
		data, err := e.snaps.Download(ctx, snap.ID)
		if err != nil {
			metrics.ExecutionErrors.Add(1)
			return nil, err
		}
		t, err := table.FromBytes(data)
		if err != nil {
			metrics.ExecutionErrors.Add(1)
			return nil, err
		}
		tables[i] = t
	}

	cur, details, err := e.applySteps(ctx, pp, inputs, tables)
	if err != nil {
		metrics.ExecutionErrors.Add(1)
		return nil, err
	}

	if err := e.store.UpdateSchema(ctx, pp.ChildID, cur.InferSchema()); err != nil {
		return nil, err
	}

	encoded, err := cur.EncodeCSV()
	if err != nil {
		return nil, types.WrapError(types.KindTransformError, err, "encoding output of preprocess %s", preprocessID)
	}
	out, err := e.snaps.Create(ctx, pp.ChildID, encoded, "exec")
	if err != nil {
		return nil, err
	}
	if err := e.store.SetActiveSnapshot(ctx, pp.ChildID, out.ID); err != nil {
		return nil, err
	}

	exec := types.ExecutedPreprocess{
		ID:               ulid.Make().String(),
		PreprocessID:     pp.ID,
		CreatedAt:        e.now(),
		InputSnapshotIDs: snapshotIDs(inputs),
		OutputSnapshotID: out.ID,
		Details:          details,
	}
	if err := e.store.CreateExecution(ctx, exec); err != nil {
		return nil, err
	}

	metrics.ExecutionsTotal.Add(1)
	e.log.Info("preprocess executed",
		"preprocess_id", pp.ID,
		"execution_id", exec.ID,
		"inputs", exec.InputSnapshotIDs,
		"output", out.ID)
	return &exec, nil
}

// Preview resolves inputs and applies the step list exactly as Execute
// would, but persists nothing: no copy-on-write, no schema update, no
// output snapshot, no execution record. At most limit rows are returned
// (all rows when limit <= 0).
func (e *Engine) Preview(ctx context.Context, preprocessID string, req types.ExecuteRequest, limit int) (*table.Table, error) {
	pp, err := e.store.GetPreprocess(ctx, preprocessID)
	if err != nil {
		return nil, err
	}
	if len(pp.ParentIDs) == 0 {
		return nil, types.NewError(types.KindInvalidState, "preprocess %s has no parent datasources", preprocessID)
	}
	inputs, err := e.resolveInputs(ctx, pp, req)
	if err != nil {
		return nil, err
	}
	tables := make([]*table.Table, len(inputs))
	for i, snap := range inputs {
		data, err := e.snaps.Download(ctx, snap.ID)
		if err != nil {
			return nil, err
		}
		t, err := table.FromBytes(data)
		if err != nil {
			return nil, err
		}
		tables[i] = t
	}
	cur, _, err := e.applySteps(ctx, pp, inputs, tables)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(cur.Rows) > limit {
		cur.Rows = cur.Rows[:limit]
	}
	return cur, nil
}

// resolveInputs maps each parent datasource to the snapshot the execution
// will consume, preserving parent order.
func (e *Engine) resolveInputs(ctx context.Context, pp *types.Preprocess, req types.ExecuteRequest) ([]*types.Snapshot, error) {
	legacy := legacyJoinParams(pp)

	if !pp.HasJoin() {
		id := req.SnapshotID
		if id == "" {
			id = req.Snapshots[pp.ParentIDs[0]]
		}
		if id == "" {
			return nil, types.NewError(types.KindInvalidInput,
				"snapshot id required to execute single-parent preprocess %s", pp.ID)
		}
		snap, err := e.store.GetSnapshot(ctx, id)
		if err != nil {
			return nil, err
		}
		if snap.DataSourceID != pp.ParentIDs[0] {
			return nil, types.NewError(types.KindInvalidInput,
				"snapshot %s belongs to datasource %s, not parent %s", id, snap.DataSourceID, pp.ParentIDs[0])
		}
		return []*types.Snapshot{snap}, nil
	}

	inputs := make([]*types.Snapshot, 0, len(pp.ParentIDs))
	for i, parentID := range pp.ParentIDs {
		id := req.Snapshots[parentID]
		if id == "" {
			ds, err := e.store.GetDataSource(ctx, parentID)
			if err != nil {
				return nil, err
			}
			id = ds.ActiveSnapshotID
		}
		if id == "" && i < len(legacy) {
			id = legacy[i]
		}
		if id == "" {
			return nil, types.NewError(types.KindInvalidInput,
				"no snapshot resolvable for parent datasource %s", parentID)
		}
		snap, err := e.store.GetSnapshot(ctx, id)
		if err != nil {
			return nil, err
		}
		if snap.DataSourceID != parentID {
			return nil, types.NewError(types.KindInvalidInput,
				"snapshot %s belongs to datasource %s, not parent %s", id, snap.DataSourceID, parentID)
		}
		inputs = append(inputs, snap)
	}
	return inputs, nil
}

// legacyJoinParams returns [leftID, rightID] from the join step's params,
// empty strings when absent. Older callers pinned join inputs this way
// before per-datasource snapshot maps existed.
func legacyJoinParams(pp *types.Preprocess) []string {
	for _, s := range pp.Steps {
		if s.Op == types.OpJoin {
			return []string{s.Params["left_snapshot_id"], s.Params["right_snapshot_id"]}
		}
	}
	return nil
}

// applySteps folds the step list over the first input table. A join step
// combines the running table with the second input; steps after the join
// see the joined result.
func (e *Engine) applySteps(ctx context.Context, pp *types.Preprocess, inputs []*types.Snapshot, tables []*table.Table) (*table.Table, []types.StepDetail, error) {
	cur := tables[0]
	details := make([]types.StepDetail, 0, len(pp.Steps))

	for _, step := range pp.Steps {
		switch {
		case step.Op == types.OpJoin:
			if len(tables) < 2 {
				return nil, nil, types.NewError(types.KindInvalidInput, "join step requires two input snapshots")
			}
			joined, detail, err := e.runJoin(ctx, step, cur, tables[1], inputs)
			if err != nil {
				return nil, nil, err
			}
			cur = joined
			details = append(details, *detail)

		case step.Op.IsBuiltin():
			next, detail, err := e.reg.Apply(step.Op, cur, step.Params)
			if err != nil {
				return nil, nil, err
			}
			cur = next
			details = append(details, *detail)

		case step.Code != "":
			next, err := e.runner.RunStep(ctx, step.Code, cur, step.Params)
			if err != nil {
				return nil, nil, err
			}
			metrics.CustomStepsRun.Add(1)
			cur = next
			details = append(details, types.StepDetail{
				Op:     step.Op,
				Custom: &types.CustomDetail{CodeHash: transform.CodeHash(step.Code)},
			})

		default:
			return nil, nil, types.NewError(types.KindInvalidInput, "unknown op %q with no custom code", step.Op)
		}
	}
	return cur, details, nil
}

func (e *Engine) runJoin(ctx context.Context, step types.Step, left, right *table.Table, inputs []*types.Snapshot) (*table.Table, *types.StepDetail, error) {
	how := step.Params["how"]
	if how == "" {
		how = "inner"
	}
	detail := &types.StepDetail{
		Op: types.OpJoin,
		Join: &types.JoinDetail{
			LeftSnapshotID:  inputs[0].ID,
			RightSnapshotID: inputs[1].ID,
			How:             how,
		},
	}

	if how == "custom" {
		if step.Code == "" {
			return nil, nil, types.NewError(types.KindInvalidInput, "custom join requires code")
		}
		joined, err := e.runner.RunJoin(ctx, step.Code, left, right, step.Params)
		if err != nil {
			return nil, nil, err
		}
		metrics.CustomStepsRun.Add(1)
		return joined, detail, nil
	}

	joined, err := transform.Join(left, right, step.Params)
	if err != nil {
		return nil, nil, err
	}
	return joined, detail, nil
}

func snapshotIDs(snaps []*types.Snapshot) []string {
	ids := make([]string, len(snaps))
	for i, s := range snaps {
		ids[i] = s.ID
	}
	return ids
}
