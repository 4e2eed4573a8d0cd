// Package lineage reconstructs, from execution records alone, the exact
// transformation history behind a snapshot.
package lineage

import (
	"context"

	"github.com/strata-systems/strata/internal/graph"
	"github.com/strata-systems/strata/internal/store"
	"github.com/strata-systems/strata/pkg/types"
)

type Tracer struct {
	store store.Store
	graph *graph.Graph
}

func New(st store.Store, g *graph.Graph) *Tracer {
	return &Tracer{store: st, graph: g}
}

// ReconstructSteps returns every materialized step detail that produced
// the snapshot, in application order: a post-order walk over execution
// records, inputs fully expanded before the execution's own steps. Uploaded
// snapshots and copy-on-write inputs terminate a branch since nothing
// produced them.
func (t *Tracer) ReconstructSteps(ctx context.Context, snapshotID string) ([]types.StepDetail, error) {
	if _, err := t.store.GetSnapshot(ctx, snapshotID); err != nil {
		return nil, err
	}
	return t.reconstruct(ctx, snapshotID)
}

func (t *Tracer) reconstruct(ctx context.Context, snapshotID string) ([]types.StepDetail, error) {
	exec, err := t.store.ExecutionByOutput(ctx, snapshotID)
	if err != nil {
		if types.IsKind(err, types.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var details []types.StepDetail
	for _, inputID := range exec.InputSnapshotIDs {
		upstream, err := t.reconstruct(ctx, inputID)
		if err != nil {
			return nil, err
		}
		details = append(details, upstream...)
	}
	details = append(details, exec.Details...)
	return details, nil
}

// RootSnapshots returns the active snapshot id of every root ancestor of
// the datasource, in discovery order. Roots without an active snapshot are
// skipped rather than reported as errors.
func (t *Tracer) RootSnapshots(ctx context.Context, dataSourceID string) ([]string, error) {
	roots, err := t.graph.Roots(ctx, dataSourceID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, rootID := range roots {
		ds, err := t.store.GetDataSource(ctx, rootID)
		if err != nil {
			return nil, err
		}
		if ds.ActiveSnapshotID == "" {
			continue
		}
		ids = append(ids, ds.ActiveSnapshotID)
	}
	return ids, nil
}
