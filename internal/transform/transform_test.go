package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-systems/strata/internal/table"
	"github.com/strata-systems/strata/pkg/types"
)

func mustTable(t *testing.T, csv string) *table.Table {
	t.Helper()
	tab, err := table.FromBytes([]byte(csv))
	require.NoError(t, err)
	return tab
}

func TestRenameColumn(t *testing.T) {
	tab := mustTable(t, "a,b\n1,2\n")
	reg := NewRegistry()

	out, detail, err := reg.Apply(types.OpRenameColumn, tab, map[string]string{"from": "b", "to": "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, out.Columns)
	assert.Equal(t, []string{"a", "b"}, tab.Columns)
	require.NotNil(t, detail.Rename)
	assert.Equal(t, "b", detail.Rename.From)
	assert.Equal(t, "c", detail.Rename.To)

	_, _, err = reg.Apply(types.OpRenameColumn, tab, nil)
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}

func TestDropColumns_IgnoresUnknown(t *testing.T) {
	tab := mustTable(t, "a,b,c\n1,2,3\n")
	out, _, err := dropColumns(tab, map[string]string{"columns": "b,nope"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, out.Columns)
	assert.Equal(t, [][]string{{"1", "3"}}, out.Rows)
}

func TestFilterRows(t *testing.T) {
	tab := mustTable(t, "x\n1\n5\n\n10\n")

	out, _, err := filterRows(tab, map[string]string{"column": "x", "operator": ">", "value": "4"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"5"}, {"10"}}, out.Rows)

	// String comparison when the value is not numeric.
	tab = mustTable(t, "s\napple\nbanana\n")
	out, _, err = filterRows(tab, map[string]string{"column": "s", "operator": "==", "value": "apple"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"apple"}}, out.Rows)

	_, _, err = filterRows(tab, map[string]string{"column": "s", "operator": "~", "value": "x"})
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}

func TestFilterOutliers(t *testing.T) {
	tab := mustTable(t, "x,y\n1,a\n2,b\n3,c\n4,d\n100,e\n,f\n")

	// The null row drops along with the outlier.
	out, _, err := filterOutliers(tab, map[string]string{"column": "x", "method": "iqr"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "a"}, {"2", "b"}, {"3", "c"}, {"4", "d"}}, out.Rows)

	out, _, err = filterOutliers(tab, map[string]string{"column": "x", "method": "zscore", "threshold": "1.5"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "a"}, {"2", "b"}, {"3", "c"}, {"4", "d"}}, out.Rows)

	_, _, err = filterOutliers(tab, map[string]string{"column": "x", "method": "mad"})
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}

func TestFilterOutliers_AllNullColumn(t *testing.T) {
	tab := mustTable(t, "a,b\n1,\n2,\n")

	for _, method := range []string{"iqr", "zscore"} {
		out, _, err := filterOutliers(tab, map[string]string{"column": "b", "method": method})
		require.NoError(t, err, "method %s", method)
		assert.Empty(t, out.Rows, "method %s", method)
	}
}

func TestRemoveDuplicates(t *testing.T) {
	tab := mustTable(t, "k,v\na,1\na,2\nb,3\n")

	out, _, err := removeDuplicates(tab, map[string]string{"subset": "k"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "1"}, {"b", "3"}}, out.Rows)

	out, _, err = removeDuplicates(tab, map[string]string{"subset": "k", "keep": "last"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "2"}, {"b", "3"}}, out.Rows)

	out, _, err = removeDuplicates(tab, map[string]string{"subset": "k", "keep": "false"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"b", "3"}}, out.Rows)
}

func TestImputeMissing_MeanDetail(t *testing.T) {
	tab := mustTable(t, "x\n1\n\n3\n")

	out, detail, err := imputeMissing(tab, map[string]string{"column": "x", "strategy": "mean"})
	require.NoError(t, err)
	assert.Equal(t, "2", out.Rows[1][0])
	require.NotNil(t, detail.Impute)
	assert.Equal(t, "x", detail.Impute.Column)
	assert.Equal(t, "mean", detail.Impute.Strategy)
	assert.Equal(t, "2", detail.Impute.ImputedValue)
}

func TestImputeMissing_Strategies(t *testing.T) {
	tab := mustTable(t, "x\na\n\na\nb\n")
	out, detail, err := imputeMissing(tab, map[string]string{"column": "x", "strategy": "mode"})
	require.NoError(t, err)
	assert.Equal(t, "a", out.Rows[1][0])
	assert.Equal(t, "a", detail.Impute.ImputedValue)

	tab = mustTable(t, "x\n1\n\n3\n")
	out, _, err = imputeMissing(tab, map[string]string{"column": "x", "strategy": "constant", "fill_value": "9"})
	require.NoError(t, err)
	assert.Equal(t, "9", out.Rows[1][0])

	tab = mustTable(t, "x\n1\n\n3\n")
	out, _, err = imputeMissing(tab, map[string]string{"column": "x", "strategy": "ffill"})
	require.NoError(t, err)
	assert.Equal(t, "1", out.Rows[1][0])

	tab = mustTable(t, "x\n\n2\n")
	out, _, err = imputeMissing(tab, map[string]string{"column": "x", "strategy": "bfill"})
	require.NoError(t, err)
	assert.Equal(t, "2", out.Rows[0][0])

	_, _, err = imputeMissing(tab, map[string]string{"column": "x", "strategy": "magic"})
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}

func TestLabelEncode(t *testing.T) {
	tab := mustTable(t, "c\nred\nblue\n\ngreen\nred\n")

	out, detail, err := labelEncode(tab, map[string]string{"column": "c"})
	require.NoError(t, err)
	// Inferred categories are sorted: blue=0, green=1, red=2; null -> -1.
	assert.Equal(t, [][]string{{"2"}, {"0"}, {"-1"}, {"1"}, {"2"}}, out.Rows)
	require.NotNil(t, detail.Label)
	assert.Equal(t, map[string]int{"blue": 0, "green": 1, "red": 2}, detail.Label.Mapping)

	out, detail, err = labelEncode(tab, map[string]string{"column": "c", "categories": `["red","blue"]`})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"0"}, {"1"}, {"-1"}, {"-1"}, {"0"}}, out.Rows)
	assert.Equal(t, map[string]int{"red": 0, "blue": 1}, detail.Label.Mapping)
}

func TestOneHotEncode(t *testing.T) {
	tab := mustTable(t, "c,v\nred,1\nblue,2\n")

	out, detail, err := oneHotEncode(tab, map[string]string{
		"column": "c", "categories": `["red","green"]`, "drop_original": "true",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"v", "c_red", "c_green"}, out.Columns)
	assert.Equal(t, [][]string{{"1", "1", "0"}, {"2", "0", "0"}}, out.Rows)
	require.NotNil(t, detail.OneHot)
	assert.Equal(t, []string{"blue", "red"}, detail.OneHot.Categories)

	_, _, err = oneHotEncode(tab, map[string]string{"column": "c"})
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}

func TestScaleNumeric_MinMax(t *testing.T) {
	tab := mustTable(t, "x\n0\n5\n10\n")
	out, _, err := scaleNumeric(tab, map[string]string{"columns": "x", "method": "minmax"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"0"}, {"0.5"}, {"1"}}, out.Rows)
}

func TestScaleNumeric_Standard(t *testing.T) {
	tab := mustTable(t, "x\n1\n2\n3\n")
	out, _, err := scaleNumeric(tab, map[string]string{"columns": "x", "method": "standard"})
	require.NoError(t, err)
	// Population std of {1,2,3} around mean 2.
	assert.Equal(t, "0", out.Rows[1][0])
	assert.Equal(t, out.Rows[0][0], "-"+out.Rows[2][0])
}

func TestBinNumeric(t *testing.T) {
	tab := mustTable(t, "x\n1\n5\n10\n")
	out, _, err := binNumeric(tab, map[string]string{
		"column": "x", "bins": "[0,5,10]", "labels": `["low","high"]`,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"x", "x_binned"}, out.Columns)
	assert.Equal(t, "low", out.Rows[0][1])
	assert.Equal(t, "low", out.Rows[1][1])
	assert.Equal(t, "high", out.Rows[2][1])
}

func TestCapOutliers(t *testing.T) {
	tab := mustTable(t, "x\n1\n2\n3\n4\n100\n")
	out, _, err := capOutliers(tab, map[string]string{
		"column": "x", "lower_pct": "0.0", "upper_pct": "0.8",
	})
	require.NoError(t, err)
	// The extreme value is clamped down to the 0.8 quantile.
	assert.NotEqual(t, "100", out.Rows[4][0])
	assert.Equal(t, "1", out.Rows[0][0])
}

func TestExtractDatetime(t *testing.T) {
	tab := mustTable(t, "ts\n2024-03-04 10:30:00\nbogus\n")
	out, _, err := extractDatetime(tab, map[string]string{
		"column": "ts", "features": "year,month,weekday",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ts", "ts_year", "ts_month", "ts_weekday"}, out.Columns)
	// 2024-03-04 is a Monday.
	assert.Equal(t, []string{"2024-03-04 10:30:00", "2024", "3", "0"}, out.Rows[0])
	assert.Equal(t, []string{"bogus", "", "", ""}, out.Rows[1])
}

func TestNormalizeText(t *testing.T) {
	tab := mustTable(t, "s\n  Hello \n")
	out, _, err := normalizeText(tab, map[string]string{"column": "s"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Rows[0][0])
}

func TestJoin_Inner(t *testing.T) {
	left := mustTable(t, "id,a\n1,x\n2,y\n3,z\n")
	right := mustTable(t, "id,b\n2,m\n3,n\n4,o\n")

	out, err := Join(left, right, map[string]string{
		"left_keys": "id", "right_keys": "id", "how": "inner",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "a", "b"}, out.Columns)
	assert.Equal(t, [][]string{{"2", "y", "m"}, {"3", "z", "n"}}, out.Rows)
}

func TestJoin_OuterKeepsUnmatched(t *testing.T) {
	left := mustTable(t, "id,a\n1,x\n")
	right := mustTable(t, "id,b\n2,m\n")

	out, err := Join(left, right, map[string]string{
		"left_keys": "id", "right_keys": "id", "how": "outer",
	})
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, []string{"1", "x", ""}, out.Rows[0])
	// The unmatched right row carries its key into the collapsed column.
	assert.Equal(t, []string{"2", "", "m"}, out.Rows[1])
}

func TestJoin_SuffixesOverlappingColumns(t *testing.T) {
	left := mustTable(t, "id,v\n1,a\n")
	right := mustTable(t, "key,v\n1,b\n")

	out, err := Join(left, right, map[string]string{
		"left_keys": "id", "right_keys": "key", "how": "inner",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "v_x", "key", "v_y"}, out.Columns)
	assert.Equal(t, [][]string{{"1", "a", "1", "b"}}, out.Rows)
}

func TestJoin_MissingKey(t *testing.T) {
	left := mustTable(t, "id\n1\n")
	right := mustTable(t, "other\n1\n")

	_, err := Join(left, right, map[string]string{
		"left_keys": "id", "right_keys": "id", "how": "inner",
	})
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}

func TestValidateSteps(t *testing.T) {
	reg := NewRegistry()

	err := reg.ValidateSteps(nil, 1)
	assert.True(t, types.IsKind(err, types.KindInvalidInput))

	err = reg.ValidateSteps([]types.Step{{Op: "made_up"}}, 1)
	assert.True(t, types.IsKind(err, types.KindInvalidInput))

	// Unknown op with code goes to the custom path.
	err = reg.ValidateSteps([]types.Step{{Op: "made_up", Code: "transform()"}}, 1)
	assert.NoError(t, err)

	// Two parents require exactly one join.
	err = reg.ValidateSteps([]types.Step{{Op: types.OpDropColumns}}, 2)
	assert.True(t, types.IsKind(err, types.KindInvalidInput))

	join := types.Step{Op: types.OpJoin, Params: map[string]string{"left_keys": "id", "right_keys": "id"}}
	err = reg.ValidateSteps([]types.Step{join}, 2)
	assert.NoError(t, err)

	// A join with a single parent is invalid.
	err = reg.ValidateSteps([]types.Step{join}, 1)
	assert.True(t, types.IsKind(err, types.KindInvalidInput))

	// A join without keys is invalid.
	err = reg.ValidateSteps([]types.Step{{Op: types.OpJoin}}, 2)
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}
