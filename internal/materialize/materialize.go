// Package materialize rebuilds a derived datasource from its root
// snapshots by re-executing the producing preprocess chain.
package materialize

import (
	"context"
	"log/slog"

	"github.com/strata-systems/strata/internal/engine"
	"github.com/strata-systems/strata/internal/graph"
	"github.com/strata-systems/strata/internal/metrics"
	"github.com/strata-systems/strata/internal/store"
	"github.com/strata-systems/strata/pkg/types"
)

type Materializer struct {
	store  store.Store
	graph  *graph.Graph
	engine *engine.Engine
	log    *slog.Logger
}

func New(st store.Store, g *graph.Graph, eng *engine.Engine, log *slog.Logger) *Materializer {
	if log == nil {
		log = slog.Default()
	}
	return &Materializer{store: st, graph: g, engine: eng, log: log}
}

// Materialize produces a fresh snapshot of the target datasource. Shared
// ancestors in a diamond-shaped graph execute exactly once: results are
// memoized per datasource for the duration of the call.
func (m *Materializer) Materialize(ctx context.Context, dataSourceID string) (string, error) {
	metrics.Materializations.Add(1)
	memo := make(map[string]string)
	id, err := m.materialize(ctx, dataSourceID, memo)
	if err != nil {
		return "", err
	}
	m.log.Info("materialized datasource", "datasource_id", dataSourceID, "snapshot_id", id)
	return id, nil
}

func (m *Materializer) materialize(ctx context.Context, dsID string, memo map[string]string) (string, error) {
	if id, ok := memo[dsID]; ok {
		metrics.MaterializeCacheHits.Add(1)
		return id, nil
	}

	pp, err := m.graph.Producer(ctx, dsID)
	if err != nil {
		return "", err
	}
	if pp == nil {
		ds, err := m.store.GetDataSource(ctx, dsID)
		if err != nil {
			return "", err
		}
		if ds.ActiveSnapshotID == "" {
			return "", types.NewError(types.KindInvalidState,
				"root datasource %s has no active snapshot", dsID)
		}
		memo[dsID] = ds.ActiveSnapshotID
		return ds.ActiveSnapshotID, nil
	}

	var req types.ExecuteRequest
	if pp.HasJoin() {
		req.Snapshots = make(map[string]string, len(pp.ParentIDs))
		for _, parentID := range pp.ParentIDs {
			snapID, err := m.materialize(ctx, parentID, memo)
			if err != nil {
				return "", err
			}
			req.Snapshots[parentID] = snapID
		}
	} else {
		snapID, err := m.materialize(ctx, pp.ParentIDs[0], memo)
		if err != nil {
			return "", err
		}
		req.SnapshotID = snapID
	}

	exec, err := m.engine.Execute(ctx, pp.ID, req)
	if err != nil {
		return "", err
	}
	memo[dsID] = exec.OutputSnapshotID
	return exec.OutputSnapshotID, nil
}
