package snapshot_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-systems/strata/internal/lock"
	"github.com/strata-systems/strata/internal/snapshot"
	"github.com/strata-systems/strata/internal/store/memory"
	"github.com/strata-systems/strata/internal/testutil"
	"github.com/strata-systems/strata/pkg/types"
)

func newManager(t *testing.T) (*snapshot.Manager, *memory.Store, *testutil.MemBlob) {
	t.Helper()
	st := memory.New()
	blobs := testutil.NewMemBlob()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return snapshot.NewManager(st, blobs, lock.NewKeyedMutex(), log), st, blobs
}

func TestCreate(t *testing.T) {
	m, st, _ := newManager(t)
	ctx := context.Background()
	require.NoError(t, st.CreateDataSource(ctx, types.DataSource{ID: "ds1", Name: "events"}))

	data := []byte("x\n1\n")
	snap, err := m.Create(ctx, "ds1", data, "upload")
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "ds1", snap.DataSourceID)
	assert.True(t, strings.Contains(snap.Path, "upload"), "label belongs in the blob path")

	got, err := m.Download(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	size, err := m.Size(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)

	stored, err := st.GetSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.Path, stored.Path)
}

func TestCreate_BlobFailureLeavesNoRecord(t *testing.T) {
	m, st, blobs := newManager(t)
	ctx := context.Background()
	require.NoError(t, st.CreateDataSource(ctx, types.DataSource{ID: "ds1", Name: "events"}))

	blobs.Fail = true
	_, err := m.Create(ctx, "ds1", []byte("x\n1\n"), "upload")
	require.Error(t, err)

	snaps, err := st.ListSnapshots(ctx, "ds1")
	require.NoError(t, err)
	assert.Empty(t, snaps, "content write failure must not leave metadata behind")
}

func TestCopyIfActive(t *testing.T) {
	m, st, _ := newManager(t)
	ctx := context.Background()
	require.NoError(t, st.CreateDataSource(ctx, types.DataSource{ID: "ds1", Name: "events"}))

	data := []byte("x\n1\n")
	snap, err := m.Create(ctx, "ds1", data, "upload")
	require.NoError(t, err)

	// Not active yet: returned as-is.
	same, err := m.CopyIfActive(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, same.ID)

	require.NoError(t, st.SetActiveSnapshot(ctx, "ds1", snap.ID))

	dup, err := m.CopyIfActive(ctx, snap)
	require.NoError(t, err)
	assert.NotEqual(t, snap.ID, dup.ID)
	assert.Equal(t, "ds1", dup.DataSourceID)
	assert.True(t, strings.Contains(dup.Path, "input"))

	copied, err := m.Download(ctx, dup.ID)
	require.NoError(t, err)
	assert.Equal(t, data, copied)

	// The active pointer still names the original.
	ds, err := st.GetDataSource(ctx, "ds1")
	require.NoError(t, err)
	assert.Equal(t, snap.ID, ds.ActiveSnapshotID)
}
