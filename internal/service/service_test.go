package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-systems/strata/internal/testutil"
	"github.com/strata-systems/strata/pkg/types"
)

func TestUploadSnapshot_SchemaMismatchRejectedBeforePersist(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	ds, _ := env.Upload(t, "events", testutil.CSV("id,amount", "1,10.5"))

	before, err := env.Svc.ListSnapshots(ctx, ds.ID)
	require.NoError(t, err)

	// Different column set.
	_, err = env.Svc.UploadSnapshot(ctx, ds.ID, []byte(testutil.CSV("id,total", "1,10.5")))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindSchemaMismatch))

	// Same names, different dtype.
	_, err = env.Svc.UploadSnapshot(ctx, ds.ID, []byte(testutil.CSV("id,amount", "1,not-a-number")))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindSchemaMismatch))

	after, err := env.Svc.ListSnapshots(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after), "rejected uploads must not persist snapshots")

	// A matching upload becomes the new active snapshot.
	snap, err := env.Svc.UploadSnapshot(ctx, ds.ID, []byte(testutil.CSV("id,amount", "2,1.25")))
	require.NoError(t, err)
	ds, err = env.Svc.GetDataSource(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, ds.ActiveSnapshotID)
}

func TestUploadSnapshot_DerivedRejected(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	root, _ := env.Upload(t, "root", testutil.CSV("x", "1"))
	pp, err := env.Svc.DefinePreprocess(ctx, "noop", []string{root.ID}, []types.Step{
		{Op: types.OpDropColumns, Params: map[string]string{"columns": "none"}},
	})
	require.NoError(t, err)

	_, err = env.Svc.UploadSnapshot(ctx, pp.ChildID, []byte(testutil.CSV("x", "1")))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindInvalidState))
}

func TestAppendRows(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	ds, first := env.Upload(t, "events", testutil.CSV("id,name", "1,a"))

	snap, err := env.Svc.AppendRows(ctx, ds.ID, []map[string]string{
		{"id": "2", "name": "b"},
		{"id": "3", "name": ""},
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, snap.ID)

	// The original snapshot is untouched.
	orig, err := env.Svc.DownloadSnapshot(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, testutil.ParseCSV(t, orig).Rows, 1)

	data, err := env.Svc.DownloadSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	tab := testutil.ParseCSV(t, data)
	require.Len(t, tab.Rows, 3)
	assert.Equal(t, []string{"3", ""}, tab.Rows[2])

	ds, err = env.Svc.GetDataSource(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, ds.ActiveSnapshotID)

	// Rows must carry exactly the schema's columns.
	_, err = env.Svc.AppendRows(ctx, ds.ID, []map[string]string{{"id": "4"}})
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
	_, err = env.Svc.AppendRows(ctx, ds.ID, []map[string]string{{"id": "4", "name": "d", "extra": "x"}})
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}

func TestSetActiveSnapshot_Validates(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	ds, snap1 := env.Upload(t, "events", testutil.CSV("x", "1"))
	snap2, err := env.Svc.UploadSnapshot(ctx, ds.ID, []byte(testutil.CSV("x", "2")))
	require.NoError(t, err)

	// Roll back to the first upload.
	require.NoError(t, env.Svc.SetActiveSnapshot(ctx, ds.ID, snap1.ID))
	got, err := env.Svc.GetDataSource(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, snap1.ID, got.ActiveSnapshotID)
	assert.NotEqual(t, snap2.ID, got.ActiveSnapshotID)

	_, otherSnap := env.Upload(t, "other", testutil.CSV("y", "1"))
	err = env.Svc.SetActiveSnapshot(ctx, ds.ID, otherSnap.ID)
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}

func TestDefinePreprocess_Validation(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	ds, _ := env.Upload(t, "events", testutil.CSV("x", "1"))

	_, err := env.Svc.DefinePreprocess(ctx, "bad", []string{ds.ID}, []types.Step{{Op: "nope"}})
	assert.True(t, types.IsKind(err, types.KindInvalidInput))

	_, err = env.Svc.DefinePreprocess(ctx, "bad", []string{"missing"}, []types.Step{
		{Op: types.OpNormalizeText, Params: map[string]string{"column": "x"}},
	})
	assert.True(t, types.IsKind(err, types.KindNotFound))

	_, err = env.Svc.DefinePreprocess(ctx, "bad", nil, nil)
	assert.True(t, types.IsKind(err, types.KindInvalidInput))

	pp, err := env.Svc.DefinePreprocess(ctx, "ok", []string{ds.ID}, []types.Step{
		{Op: types.OpNormalizeText, Params: map[string]string{"column": "x"}},
	})
	require.NoError(t, err)

	// The child datasource exists and is derived.
	child, err := env.Svc.GetDataSource(ctx, pp.ChildID)
	require.NoError(t, err)
	assert.Equal(t, "ok", child.Name)
	root, err := env.Graph.IsRoot(ctx, child.ID)
	require.NoError(t, err)
	assert.False(t, root)
}

func TestSnapshotSummaryAndSize(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	_, snap := env.Upload(t, "events", testutil.CSV("amount,city", "1,ny", "2,sf"))

	sums, err := env.Svc.SnapshotSummary(ctx, snap.ID)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, "numeric", sums[0].Type)

	size, err := env.Svc.SnapshotSize(ctx, snap.ID)
	require.NoError(t, err)
	assert.Positive(t, size)
}

func TestTrainingAutomationRun(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	root, _ := env.Upload(t, "root", testutil.CSV("id,v", "1,10"))
	pp, err := env.Svc.DefinePreprocess(ctx, "clean", []string{root.ID}, []types.Step{
		{Op: types.OpRenameColumn, Params: map[string]string{"from": "v", "to": "value"}},
	})
	require.NoError(t, err)

	tr, err := env.Svc.CreateTraining(ctx, "daily", pp.ChildID)
	require.NoError(t, err)
	require.NoError(t, env.Svc.SetAutomation(ctx, tr.ID, true, "60"))

	auto, err := env.Svc.ListAutomatedTrainings(ctx)
	require.NoError(t, err)
	require.Len(t, auto, 1)

	exec, err := env.Svc.RunAutomationForTraining(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionSuccess, exec.Status)
	assert.NotEmpty(t, exec.SnapshotID)
	assert.Equal(t, []string{exec.SnapshotID}, env.Runner.Calls)

	history, err := env.Svc.ListTrainingExecutions(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, types.ExecutionSuccess, history[0].Status)
}

func TestTrainingAutomationRecordsFailure(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	root, _ := env.Upload(t, "root", testutil.CSV("x", "1"))
	tr, err := env.Svc.CreateTraining(ctx, "daily", root.ID)
	require.NoError(t, err)

	env.Runner.Err = errors.New("fit blew up")
	exec, err := env.Svc.RunAutomationForTraining(ctx, tr.ID)
	require.NoError(t, err, "runner failures land on the record, not the caller")
	assert.Equal(t, types.ExecutionFailed, exec.Status)
	assert.Contains(t, exec.Error, "fit blew up")

	// Enabling automation without a schedule is invalid.
	err = env.Svc.SetAutomation(ctx, tr.ID, true, "")
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}
