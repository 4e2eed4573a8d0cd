// Package graph answers structural questions about the datasource DAG:
// which preprocess produces a datasource, which datasources feed it, and
// whether a proposed edge would introduce a cycle.
package graph

import (
	"context"

	"github.com/strata-systems/strata/internal/store"
	"github.com/strata-systems/strata/pkg/types"
)

type Graph struct {
	store store.Store
}

func New(st store.Store) *Graph {
	return &Graph{store: st}
}

// Producer returns the preprocess whose child is the given datasource, or
// nil when the datasource is a root.
func (g *Graph) Producer(ctx context.Context, dataSourceID string) (*types.Preprocess, error) {
	pp, err := g.store.PreprocessByChild(ctx, dataSourceID)
	if err != nil {
		if types.IsKind(err, types.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return pp, nil
}

// IsRoot reports whether no preprocess produces the datasource.
func (g *Graph) IsRoot(ctx context.Context, dataSourceID string) (bool, error) {
	pp, err := g.Producer(ctx, dataSourceID)
	if err != nil {
		return false, err
	}
	return pp == nil, nil
}

// WouldCycle reports whether a preprocess from parentIDs to a new child
// would close a cycle. Since the child datasource is freshly created per
// preprocess definition, a cycle can only pre-exist among the parents'
// ancestors; shared ancestors (diamonds) are fine, a node revisited on the
// current climb path is not.
func (g *Graph) WouldCycle(ctx context.Context, parentIDs []string) (bool, error) {
	done := make(map[string]bool)
	onPath := make(map[string]bool)
	var climb func(id string) (bool, error)
	climb = func(id string) (bool, error) {
		if onPath[id] {
			return true, nil
		}
		if done[id] {
			return false, nil
		}
		onPath[id] = true
		defer delete(onPath, id)
		pp, err := g.Producer(ctx, id)
		if err != nil {
			return false, err
		}
		if pp != nil {
			for _, parent := range pp.ParentIDs {
				cyclic, err := climb(parent)
				if err != nil || cyclic {
					return cyclic, err
				}
			}
		}
		done[id] = true
		return false, nil
	}
	for _, id := range parentIDs {
		cyclic, err := climb(id)
		if err != nil || cyclic {
			return cyclic, err
		}
	}
	return false, nil
}

// Roots walks upward from a datasource and returns every root ancestor in
// discovery order, deduplicated.
func (g *Graph) Roots(ctx context.Context, dataSourceID string) ([]string, error) {
	var roots []string
	seen := make(map[string]bool)
	stack := []string{dataSourceID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		pp, err := g.Producer(ctx, id)
		if err != nil {
			return nil, err
		}
		if pp == nil {
			roots = append(roots, id)
			continue
		}
		// Push in reverse so the left parent is visited first.
		for i := len(pp.ParentIDs) - 1; i >= 0; i-- {
			stack = append(stack, pp.ParentIDs[i])
		}
	}
	return roots, nil
}
