package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-systems/strata/internal/store/memory"
	"github.com/strata-systems/strata/pkg/types"
)

func setupChain(t *testing.T) (*Graph, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	// root -> a -> joined <- b (b is a second root)
	for _, id := range []string{"root", "a", "b", "joined"} {
		require.NoError(t, st.CreateDataSource(ctx, types.DataSource{ID: id}))
	}
	require.NoError(t, st.CreatePreprocess(ctx, types.Preprocess{
		ID: "pp-a", ParentIDs: []string{"root"}, ChildID: "a",
	}))
	require.NoError(t, st.CreatePreprocess(ctx, types.Preprocess{
		ID: "pp-j", ParentIDs: []string{"a", "b"}, ChildID: "joined",
	}))
	return New(st), st
}

func TestProducer(t *testing.T) {
	g, _ := setupChain(t)
	ctx := context.Background()

	pp, err := g.Producer(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, pp)
	assert.Equal(t, "pp-a", pp.ID)

	pp, err = g.Producer(ctx, "root")
	require.NoError(t, err)
	assert.Nil(t, pp)

	root, err := g.IsRoot(ctx, "root")
	require.NoError(t, err)
	assert.True(t, root)
	root, err = g.IsRoot(ctx, "joined")
	require.NoError(t, err)
	assert.False(t, root)
}

func TestRoots(t *testing.T) {
	g, _ := setupChain(t)

	roots, err := g.Roots(context.Background(), "joined")
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "b"}, roots)

	roots, err = g.Roots(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"root"}, roots)
}

func TestRoots_DiamondDeduplicates(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	// root feeds both left and right, which join into top.
	for _, id := range []string{"root", "left", "right", "top"} {
		require.NoError(t, st.CreateDataSource(ctx, types.DataSource{ID: id}))
	}
	require.NoError(t, st.CreatePreprocess(ctx, types.Preprocess{ID: "pl", ParentIDs: []string{"root"}, ChildID: "left"}))
	require.NoError(t, st.CreatePreprocess(ctx, types.Preprocess{ID: "pr", ParentIDs: []string{"root"}, ChildID: "right"}))
	require.NoError(t, st.CreatePreprocess(ctx, types.Preprocess{ID: "pt", ParentIDs: []string{"left", "right"}, ChildID: "top"}))
	g := New(st)

	roots, err := g.Roots(ctx, "top")
	require.NoError(t, err)
	assert.Equal(t, []string{"root"}, roots)

	// A diamond is not a cycle.
	cyclic, err := g.WouldCycle(ctx, []string{"left", "right"})
	require.NoError(t, err)
	assert.False(t, cyclic)
}

func TestWouldCycle_DetectsCorruptGraph(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	// x produces y and y produces x.
	require.NoError(t, st.CreatePreprocess(ctx, types.Preprocess{ID: "p1", ParentIDs: []string{"x"}, ChildID: "y"}))
	require.NoError(t, st.CreatePreprocess(ctx, types.Preprocess{ID: "p2", ParentIDs: []string{"y"}, ChildID: "x"}))
	g := New(st)

	cyclic, err := g.WouldCycle(ctx, []string{"x"})
	require.NoError(t, err)
	assert.True(t, cyclic)
}
