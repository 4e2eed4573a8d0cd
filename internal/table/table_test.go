package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-systems/strata/pkg/types"
)

func TestFromBytes_PadsShortRows(t *testing.T) {
	tab, err := FromBytes([]byte("a,b,c\n1,2,3\n4,5\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, tab.Columns)
	require.Len(t, tab.Rows, 2)
	assert.Equal(t, []string{"4", "5", ""}, tab.Rows[1])
}

func TestFromBytes_RejectsLongRows(t *testing.T) {
	_, err := FromBytes([]byte("a,b\n1,2,3\n"))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}

func TestFromBytes_Empty(t *testing.T) {
	_, err := FromBytes(nil)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}

func TestEncodeCSV_Deterministic(t *testing.T) {
	tab := &Table{
		Columns: []string{"name", "note"},
		Rows: [][]string{
			{"alice", "has, comma"},
			{"bob", ""},
		},
	}
	first, err := tab.EncodeCSV()
	require.NoError(t, err)
	second, err := tab.EncodeCSV()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	reparsed, err := FromBytes(first)
	require.NoError(t, err)
	assert.Equal(t, tab.Rows, reparsed.Rows)
}

func TestClone_Independent(t *testing.T) {
	tab := &Table{Columns: []string{"a"}, Rows: [][]string{{"1"}}}
	dup := tab.Clone()
	dup.Rows[0][0] = "2"
	dup.Columns[0] = "b"
	assert.Equal(t, "1", tab.Rows[0][0])
	assert.Equal(t, "a", tab.Columns[0])
}

func TestNumericColumn(t *testing.T) {
	tab, err := FromBytes([]byte("x\n1.5\n\n3\n"))
	require.NoError(t, err)
	vals, rows, err := tab.NumericColumn("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 3}, vals)
	assert.Equal(t, []int{0, 2}, rows)

	tab.Rows[0][0] = "oops"
	_, _, err = tab.NumericColumn("x")
	assert.True(t, types.IsKind(err, types.KindInvalidInput))

	_, _, err = tab.NumericColumn("missing")
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}

func TestInferSchema(t *testing.T) {
	tab, err := FromBytes([]byte(
		"id,amount,flag,day,ts,label\n" +
			"1,1.5,true,2024-01-02,2024-01-02 10:00:00,x\n" +
			"2,2,false,2024-01-03,2024-01-03 11:30:00,\n"))
	require.NoError(t, err)

	schema := tab.InferSchema()
	require.Len(t, schema, 6)
	assert.Equal(t, "integer", schema[0].Dtype)
	assert.Equal(t, "floating", schema[1].Dtype)
	assert.Equal(t, "boolean", schema[2].Dtype)
	assert.Equal(t, "date", schema[3].Dtype)
	assert.Equal(t, "datetime64", schema[4].Dtype)
	assert.Equal(t, "string", schema[5].Dtype)
	assert.Equal(t, 1, schema[5].NullCount)
	assert.Equal(t, 0, schema[0].NullCount)
}

func TestSchemasEqual_IgnoresNullCounts(t *testing.T) {
	a := []types.Column{{Name: "x", Dtype: "integer", NullCount: 0}}
	b := []types.Column{{Name: "x", Dtype: "integer", NullCount: 7}}
	assert.True(t, SchemasEqual(a, b))

	c := []types.Column{{Name: "x", Dtype: "floating"}}
	assert.False(t, SchemasEqual(a, c))
	assert.False(t, SchemasEqual(a, nil))
}

func TestSummarize(t *testing.T) {
	tab, err := FromBytes([]byte("amount,city\n1,ny\n2,ny\n3,\n"))
	require.NoError(t, err)

	sums := tab.Summarize()
	require.Len(t, sums, 2)

	assert.Equal(t, "amount", sums[0].Column)
	assert.Equal(t, "numeric", sums[0].Type)
	assert.Equal(t, 0, sums[0].Missing)
	assert.Equal(t, 3, sums[0].Unique)

	assert.Equal(t, "categorical", sums[1].Type)
	assert.Equal(t, 1, sums[1].Missing)
	assert.Equal(t, 33.3, sums[1].MissingPct)
}
