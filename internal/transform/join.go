package transform

import (
	"strings"

	"github.com/strata-systems/strata/internal/table"
	"github.com/strata-systems/strata/pkg/types"
)

// Join merges two tables. Params: how (inner|left|right|outer), left_keys,
// right_keys, suffixes ("_x,_y"). Row order is deterministic: left rows in
// order, each matched against right rows in order; unmatched right rows (for
// right and outer joins) follow in right order.
func Join(left, right *table.Table, params map[string]string) (*table.Table, error) {
	how := paramOr(params, "how", "inner")
	switch how {
	case "inner", "left", "right", "outer":
	default:
		return nil, types.NewError(types.KindInvalidInput, "join: unsupported how %q", how)
	}
	leftKeys := parseList(params["left_keys"])
	rightKeys := parseList(params["right_keys"])
	if len(leftKeys) == 0 || len(rightKeys) == 0 || len(leftKeys) != len(rightKeys) {
		return nil, types.NewError(types.KindInvalidInput, "join: left_keys and right_keys must be non-empty and equal length")
	}

	leftIdx, err := keyIndexes(left, leftKeys)
	if err != nil {
		return nil, err
	}
	rightIdx, err := keyIndexes(right, rightKeys)
	if err != nil {
		return nil, err
	}

	suffixes := strings.SplitN(paramOr(params, "suffixes", "_x,_y"), ",", 2)
	if len(suffixes) != 2 {
		suffixes = []string{"_x", "_y"}
	}

	// A right key column whose name equals its left counterpart collapses
	// into the single key column.
	collapsed := map[int]bool{}
	for i, rk := range rightKeys {
		if rk == leftKeys[i] {
			collapsed[rightIdx[i]] = true
		}
	}
	rightKeep := make([]int, 0, len(right.Columns))
	for i := range right.Columns {
		if !collapsed[i] {
			rightKeep = append(rightKeep, i)
		}
	}

	leftNames := map[string]bool{}
	for _, c := range left.Columns {
		leftNames[c] = true
	}
	rightNames := map[string]bool{}
	for _, i := range rightKeep {
		rightNames[right.Columns[i]] = true
	}

	out := &table.Table{}
	for _, c := range left.Columns {
		if rightNames[c] {
			out.Columns = append(out.Columns, c+suffixes[0])
		} else {
			out.Columns = append(out.Columns, c)
		}
	}
	for _, i := range rightKeep {
		c := right.Columns[i]
		if leftNames[c] {
			c += suffixes[1]
		}
		out.Columns = append(out.Columns, c)
	}

	joinKey := func(row []string, idxs []int) string {
		parts := make([]string, len(idxs))
		for j, i := range idxs {
			parts[j] = row[i]
		}
		return strings.Join(parts, "\x1f")
	}

	rightByKey := map[string][]int{}
	for ri, row := range right.Rows {
		rightByKey[joinKey(row, rightIdx)] = append(rightByKey[joinKey(row, rightIdx)], ri)
	}

	emit := func(lrow, rrow []string) {
		row := make([]string, 0, len(out.Columns))
		if lrow != nil {
			row = append(row, lrow...)
		} else {
			for range left.Columns {
				row = append(row, "")
			}
		}
		for _, i := range rightKeep {
			if rrow != nil {
				row = append(row, rrow[i])
			} else {
				row = append(row, "")
			}
		}
		// Unmatched right rows still carry their key values into collapsed
		// key columns.
		if lrow == nil && rrow != nil {
			for j, li := range leftIdx {
				if collapsed[rightIdx[j]] {
					row[li] = rrow[rightIdx[j]]
				}
			}
		}
		out.Rows = append(out.Rows, row)
	}

	matchedRight := map[int]bool{}
	for _, lrow := range left.Rows {
		matches := rightByKey[joinKey(lrow, leftIdx)]
		if len(matches) == 0 {
			if how == "left" || how == "outer" {
				emit(lrow, nil)
			}
			continue
		}
		for _, ri := range matches {
			matchedRight[ri] = true
			emit(lrow, right.Rows[ri])
		}
	}
	if how == "right" || how == "outer" {
		for ri, rrow := range right.Rows {
			if !matchedRight[ri] {
				emit(nil, rrow)
			}
		}
	}
	return out, nil
}

func keyIndexes(t *table.Table, keys []string) ([]int, error) {
	idxs := make([]int, len(keys))
	for i, k := range keys {
		idx := t.ColumnIndex(k)
		if idx < 0 {
			return nil, types.NewError(types.KindInvalidInput, "join: missing key %q", k)
		}
		idxs[i] = idx
	}
	return idxs, nil
}
