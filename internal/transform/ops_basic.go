package transform

import (
	"strconv"
	"strings"

	"github.com/strata-systems/strata/internal/table"
	"github.com/strata-systems/strata/pkg/types"
)

// renameColumn: params {from, to}.
func renameColumn(t *table.Table, params map[string]string) (*table.Table, *types.StepDetail, error) {
	from, to := params["from"], params["to"]
	if from == "" || to == "" {
		return nil, nil, types.NewError(types.KindInvalidInput, "rename_column requires from and to")
	}
	out := t.Clone()
	if idx := out.ColumnIndex(from); idx >= 0 {
		out.Columns[idx] = to
	}
	return out, &types.StepDetail{
		Op:     types.OpRenameColumn,
		Rename: &types.RenameDetail{From: from, To: to},
	}, nil
}

// dropColumns: params {columns}. Unknown columns are ignored.
func dropColumns(t *table.Table, params map[string]string) (*table.Table, *types.StepDetail, error) {
	drop := map[string]bool{}
	for _, c := range parseList(params["columns"]) {
		drop[c] = true
	}
	out := &table.Table{}
	keep := make([]int, 0, len(t.Columns))
	for i, c := range t.Columns {
		if !drop[c] {
			keep = append(keep, i)
			out.Columns = append(out.Columns, c)
		}
	}
	out.Rows = make([][]string, len(t.Rows))
	for ri, row := range t.Rows {
		newRow := make([]string, len(keep))
		for j, i := range keep {
			newRow[j] = row[i]
		}
		out.Rows[ri] = newRow
	}
	return out, genericDetail(types.OpDropColumns, params), nil
}

// filterRows: params {column, operator, value}. Numeric comparison when both
// sides parse as floats, string comparison otherwise.
func filterRows(t *table.Table, params map[string]string) (*table.Table, *types.StepDetail, error) {
	idx, err := t.MustColumn(params["column"])
	if err != nil {
		return nil, nil, err
	}
	op := params["operator"]
	switch op {
	case ">", "<", ">=", "<=", "==", "!=":
	default:
		return nil, nil, types.NewError(types.KindInvalidInput, "filter_rows: unsupported operator %q", op)
	}
	val := params["value"]
	valNum, valIsNum := parseFloatOK(val)

	out := &table.Table{Columns: append([]string(nil), t.Columns...)}
	for _, row := range t.Rows {
		cell := row[idx]
		if table.IsNull(cell) {
			continue
		}
		var keep bool
		if cellNum, ok := parseFloatOK(cell); ok && valIsNum {
			keep = compareFloat(cellNum, valNum, op)
		} else {
			keep = compareString(cell, val, op)
		}
		if keep {
			out.Rows = append(out.Rows, append([]string(nil), row...))
		}
	}
	return out, genericDetail(types.OpFilterRows, params), nil
}

func parseFloatOK(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

func compareFloat(a, b float64, op string) bool {
	switch op {
	case ">":
		return a > b
	case "<":
		return a < b
	case ">=":
		return a >= b
	case "<=":
		return a <= b
	case "==":
		return a == b
	case "!=":
		return a != b
	}
	return false
}

func compareString(a, b, op string) bool {
	switch op {
	case ">":
		return a > b
	case "<":
		return a < b
	case ">=":
		return a >= b
	case "<=":
		return a <= b
	case "==":
		return a == b
	case "!=":
		return a != b
	}
	return false
}

// removeDuplicates: params {subset, keep}. keep is first, last, or false to
// drop every duplicated row.
func removeDuplicates(t *table.Table, params map[string]string) (*table.Table, *types.StepDetail, error) {
	subset := parseList(params["subset"])
	var idxs []int
	if len(subset) == 0 {
		for i := range t.Columns {
			idxs = append(idxs, i)
		}
	} else {
		for _, name := range subset {
			idx, err := t.MustColumn(name)
			if err != nil {
				return nil, nil, err
			}
			idxs = append(idxs, idx)
		}
	}
	keep := paramOr(params, "keep", "first")

	key := func(row []string) string {
		parts := make([]string, len(idxs))
		for j, i := range idxs {
			parts[j] = row[i]
		}
		return strings.Join(parts, "\x1f")
	}

	counts := map[string]int{}
	lastAt := map[string]int{}
	for ri, row := range t.Rows {
		k := key(row)
		counts[k]++
		lastAt[k] = ri
	}

	out := &table.Table{Columns: append([]string(nil), t.Columns...)}
	seen := map[string]bool{}
	for ri, row := range t.Rows {
		k := key(row)
		var take bool
		switch keep {
		case "last":
			take = lastAt[k] == ri
		case "false":
			take = counts[k] == 1
		default: // first
			take = !seen[k]
		}
		seen[k] = true
		if take {
			out.Rows = append(out.Rows, append([]string(nil), row...))
		}
	}
	return out, genericDetail(types.OpRemoveDuplicates, params), nil
}

// normalizeText: params {column, lowercase, strip}.
func normalizeText(t *table.Table, params map[string]string) (*table.Table, *types.StepDetail, error) {
	idx, err := t.MustColumn(params["column"])
	if err != nil {
		return nil, nil, err
	}
	lower := paramBool(params, "lowercase", true)
	strip := paramBool(params, "strip", true)

	out := t.Clone()
	for _, row := range out.Rows {
		s := row[idx]
		if lower {
			s = strings.ToLower(s)
		}
		if strip {
			s = strings.TrimSpace(s)
		}
		row[idx] = s
	}
	return out, genericDetail(types.OpNormalizeText, params), nil
}
