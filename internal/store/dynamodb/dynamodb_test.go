package dynamodb

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/strata-systems/strata/pkg/types"
)

// fakeDDB is an in-memory single-table fake good enough for the access
// patterns the store uses: PK/SK point reads and GSI1 queries.
type fakeDDB struct {
	mu    sync.Mutex
	items map[string]map[string]ddbtypes.AttributeValue
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{items: make(map[string]map[string]ddbtypes.AttributeValue)}
}

func itemStr(item map[string]ddbtypes.AttributeValue, name string) string {
	if av, ok := item[name].(*ddbtypes.AttributeValueMemberS); ok {
		return av.Value
	}
	return ""
}

func (f *fakeDDB) PutItem(_ context.Context, in *ddb.PutItemInput, _ ...func(*ddb.Options)) (*ddb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := itemStr(in.Item, "PK") + "|" + itemStr(in.Item, "SK")
	copied := make(map[string]ddbtypes.AttributeValue, len(in.Item))
	for k, v := range in.Item {
		copied[k] = v
	}
	f.items[key] = copied
	return &ddb.PutItemOutput{}, nil
}

func (f *fakeDDB) GetItem(_ context.Context, in *ddb.GetItemInput, _ ...func(*ddb.Options)) (*ddb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := itemStr(in.Key, "PK") + "|" + itemStr(in.Key, "SK")
	item, ok := f.items[key]
	if !ok {
		return &ddb.GetItemOutput{}, nil
	}
	return &ddb.GetItemOutput{Item: item}, nil
}

func (f *fakeDDB) UpdateItem(_ context.Context, _ *ddb.UpdateItemInput, _ ...func(*ddb.Options)) (*ddb.UpdateItemOutput, error) {
	return &ddb.UpdateItemOutput{}, nil
}

func (f *fakeDDB) Query(_ context.Context, in *ddb.QueryInput, _ ...func(*ddb.Options)) (*ddb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := ""
	if av, ok := in.ExpressionAttributeValues[":pk"].(*ddbtypes.AttributeValueMemberS); ok {
		want = av.Value
	}
	var matched []map[string]ddbtypes.AttributeValue
	for _, item := range f.items {
		if itemStr(item, "GSI1PK") == want {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return itemStr(matched[i], "GSI1SK") < itemStr(matched[j], "GSI1SK")
	})
	return &ddb.QueryOutput{Items: matched}, nil
}

func (f *fakeDDB) DescribeTable(_ context.Context, _ *ddb.DescribeTableInput, _ ...func(*ddb.Options)) (*ddb.DescribeTableOutput, error) {
	return &ddb.DescribeTableOutput{}, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewFromClient(newFakeDDB(), "strata-test")
}

func TestDataSourceRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Ping(ctx))

	ds := types.DataSource{ID: "ds1", Name: "events", CreatedAt: time.Now().UTC()}
	require.NoError(t, st.CreateDataSource(ctx, ds))

	got, err := st.GetDataSource(ctx, "ds1")
	require.NoError(t, err)
	assert.Equal(t, "events", got.Name)

	_, err = st.GetDataSource(ctx, "missing")
	assert.True(t, types.IsKind(err, types.KindNotFound))

	require.NoError(t, st.UpdateSchema(ctx, "ds1", []types.Column{{Name: "x", Dtype: types.DtypeInteger}}))
	require.NoError(t, st.SetActiveSnapshot(ctx, "ds1", "snap1"))

	got, err = st.GetDataSource(ctx, "ds1")
	require.NoError(t, err)
	assert.Equal(t, "snap1", got.ActiveSnapshotID)
	require.Len(t, got.Schema, 1)
	assert.Equal(t, "x", got.Schema[0].Name)

	all, err := st.ListDataSources(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSnapshotListingOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, st.CreateSnapshot(ctx, types.Snapshot{
			ID:           id,
			DataSourceID: "ds1",
			Path:         "ds1/" + id + ".csv",
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, st.CreateSnapshot(ctx, types.Snapshot{
		ID: "other", DataSourceID: "ds2", Path: "ds2/o.csv", CreatedAt: base,
	}))

	snaps, err := st.ListSnapshots(ctx, "ds1")
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, "s1", snaps[0].ID)
	assert.Equal(t, "s3", snaps[2].ID)
}

func TestPreprocessChildPointer(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	pp := types.Preprocess{
		ID:        "pp1",
		Name:      "clean",
		ParentIDs: []string{"ds1"},
		ChildID:   "ds2",
		Steps:     []types.Step{{Op: types.OpNormalizeText, Params: map[string]string{"column": "x"}}},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.CreatePreprocess(ctx, pp))

	got, err := st.PreprocessByChild(ctx, "ds2")
	require.NoError(t, err)
	assert.Equal(t, "pp1", got.ID)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, types.OpNormalizeText, got.Steps[0].Op)

	_, err = st.PreprocessByChild(ctx, "ds1")
	assert.True(t, types.IsKind(err, types.KindNotFound))
}

func TestExecutionOutputPointer(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	exec := types.ExecutedPreprocess{
		ID:               "ex1",
		PreprocessID:     "pp1",
		InputSnapshotIDs: []string{"in1"},
		OutputSnapshotID: "out1",
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, st.CreateExecution(ctx, exec))

	got, err := st.ExecutionByOutput(ctx, "out1")
	require.NoError(t, err)
	assert.Equal(t, "ex1", got.ID)

	_, err = st.ExecutionByOutput(ctx, "in1")
	assert.True(t, types.IsKind(err, types.KindNotFound))

	list, err := st.ListExecutions(ctx, "pp1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestTrainingAutomation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	tr := types.Training{ID: "tr1", Name: "daily", DataSourceID: "ds1", CreatedAt: time.Now().UTC()}
	require.NoError(t, st.CreateTraining(ctx, tr))

	auto, err := st.ListAutomatedTrainings(ctx)
	require.NoError(t, err)
	assert.Empty(t, auto)

	require.NoError(t, st.SetAutomation(ctx, "tr1", true, "3600"))
	auto, err = st.ListAutomatedTrainings(ctx)
	require.NoError(t, err)
	require.Len(t, auto, 1)
	assert.Equal(t, "3600", auto[0].AutomationSchedule)

	exec := types.TrainingExecution{
		ID: "te1", TrainingID: "tr1",
		Status: types.ExecutionRunning, StartedAt: time.Now().UTC(),
	}
	require.NoError(t, st.CreateTrainingExecution(ctx, exec))
	exec.Status = types.ExecutionSuccess
	require.NoError(t, st.UpdateTrainingExecution(ctx, exec))

	history, err := st.ListTrainingExecutions(ctx, "tr1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, types.ExecutionSuccess, history[0].Status)
}
