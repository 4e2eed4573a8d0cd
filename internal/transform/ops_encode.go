package transform

import (
	"sort"
	"strconv"
	"time"

	"github.com/strata-systems/strata/internal/table"
	"github.com/strata-systems/strata/pkg/types"
)

// imputeMissing: params {column ("" or __ALL__ for every column), strategy
// mean|median|mode|constant|ffill|bfill, fill_value}. The detail records the
// fill value actually used for the named column.
func imputeMissing(t *table.Table, params map[string]string) (*table.Table, *types.StepDetail, error) {
	strat := paramOr(params, "strategy", "mean")
	colParam := params["column"]

	var cols []string
	if colParam == "" || colParam == "__ALL__" {
		cols = append(cols, t.Columns...)
	} else {
		cols = parseList(colParam)
	}

	out := t.Clone()
	detailValue := ""
	for _, name := range cols {
		idx, err := out.MustColumn(name)
		if err != nil {
			return nil, nil, err
		}
		fill, err := fillValue(out, name, idx, strat, params)
		if err != nil {
			return nil, nil, err
		}
		switch strat {
		case "ffill":
			prev := ""
			for _, row := range out.Rows {
				if table.IsNull(row[idx]) {
					row[idx] = prev
				} else {
					prev = row[idx]
				}
			}
		case "bfill":
			next := ""
			for ri := len(out.Rows) - 1; ri >= 0; ri-- {
				if table.IsNull(out.Rows[ri][idx]) {
					out.Rows[ri][idx] = next
				} else {
					next = out.Rows[ri][idx]
				}
			}
		default:
			for _, row := range out.Rows {
				if table.IsNull(row[idx]) {
					row[idx] = fill
				}
			}
		}
		if detailValue == "" {
			detailValue = fill
		}
	}

	detailCol := colParam
	if len(cols) == 1 {
		detailCol = cols[0]
	}
	return out, &types.StepDetail{
		Op:     types.OpImputeMissing,
		Impute: &types.ImputeDetail{Column: detailCol, Strategy: strat, ImputedValue: detailValue},
	}, nil
}

func fillValue(t *table.Table, name string, idx int, strat string, params map[string]string) (string, error) {
	switch strat {
	case "mean", "median":
		vals, _, err := t.NumericColumn(name)
		if err != nil {
			return "", err
		}
		if len(vals) == 0 {
			return "", nil
		}
		if strat == "mean" {
			var sum float64
			for _, v := range vals {
				sum += v
			}
			return table.FormatFloat(sum / float64(len(vals))), nil
		}
		return table.FormatFloat(quantile(vals, 0.5)), nil
	case "mode":
		counts := map[string]int{}
		for _, row := range t.Rows {
			if !table.IsNull(row[idx]) {
				counts[row[idx]]++
			}
		}
		if len(counts) == 0 {
			return "", nil
		}
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		best, bestCount := keys[0], counts[keys[0]]
		for _, k := range keys[1:] {
			if counts[k] > bestCount {
				best, bestCount = k, counts[k]
			}
		}
		return best, nil
	case "constant":
		return params["fill_value"], nil
	case "ffill", "bfill":
		return "", nil
	}
	return "", types.NewError(types.KindInvalidInput, "impute_missing: unknown strategy %q", strat)
}

// labelEncode: params {column, categories (optional JSON list)}. With an
// explicit category list codes follow list order; otherwise categories are
// the sorted distinct non-null values. Nulls and unseen values encode as -1.
func labelEncode(t *table.Table, params map[string]string) (*table.Table, *types.StepDetail, error) {
	idx, err := t.MustColumn(params["column"])
	if err != nil {
		return nil, nil, err
	}

	cats := parseList(params["categories"])
	if len(cats) == 0 {
		seen := map[string]bool{}
		for _, row := range t.Rows {
			if !table.IsNull(row[idx]) {
				seen[row[idx]] = true
			}
		}
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)
	}

	mapping := make(map[string]int, len(cats))
	for code, cat := range cats {
		mapping[cat] = code
	}

	out := t.Clone()
	for _, row := range out.Rows {
		code, ok := mapping[row[idx]]
		if !ok {
			code = -1
		}
		row[idx] = strconv.Itoa(code)
	}
	return out, &types.StepDetail{
		Op:    types.OpLabelEncode,
		Label: &types.LabelDetail{Column: params["column"], Mapping: mapping},
	}, nil
}

// oneHotEncode: params {column, categories (JSON list), drop_original}.
// Emits one 0/1 column per requested category, in list order; categories in
// the data but not in the list are dropped. The detail records the sorted
// categories actually present.
func oneHotEncode(t *table.Table, params map[string]string) (*table.Table, *types.StepDetail, error) {
	col := params["column"]
	idx, err := t.MustColumn(col)
	if err != nil {
		return nil, nil, err
	}
	cats := parseList(params["categories"])
	if len(cats) == 0 {
		return nil, nil, types.NewError(types.KindInvalidInput,
			"one_hot_encode: categories must be a list of strings for %q", col)
	}

	present := map[string]bool{}
	for _, row := range t.Rows {
		if !table.IsNull(row[idx]) {
			present[row[idx]] = true
		}
	}
	presentList := make([]string, 0, len(present))
	for v := range present {
		presentList = append(presentList, v)
	}
	sort.Strings(presentList)

	out := t.Clone()
	for _, cat := range cats {
		out.Columns = append(out.Columns, col+"_"+cat)
	}
	for ri, row := range t.Rows {
		for _, cat := range cats {
			v := "0"
			if row[idx] == cat {
				v = "1"
			}
			out.Rows[ri] = append(out.Rows[ri], v)
		}
	}

	if paramBool(params, "drop_original", false) {
		dropped, _, err := dropColumns(out, map[string]string{"columns": col})
		if err != nil {
			return nil, nil, err
		}
		out = dropped
	}
	return out, &types.StepDetail{
		Op:     types.OpOneHotEncode,
		OneHot: &types.OneHotDetail{Column: col, Categories: presentList},
	}, nil
}

var datetimeLayouts = []string{"2006-01-02 15:04:05", "2006-01-02"}

// extractDatetime: params {column, features}. Adds "<column>_<feature>"
// columns for year, month, day, hour, weekday. Unparseable cells yield
// nulls.
func extractDatetime(t *table.Table, params map[string]string) (*table.Table, *types.StepDetail, error) {
	col := params["column"]
	idx, err := t.MustColumn(col)
	if err != nil {
		return nil, nil, err
	}
	features := parseList(params["features"])
	if len(features) == 0 {
		features = []string{"year", "month", "day"}
	}

	out := t.Clone()
	for _, f := range features {
		switch f {
		case "year", "month", "day", "hour", "weekday":
		default:
			return nil, nil, types.NewError(types.KindInvalidInput, "extract_datetime_features: unknown feature %q", f)
		}
		out.Columns = append(out.Columns, col+"_"+f)
	}
	for ri, row := range t.Rows {
		ts, ok := parseDatetime(row[idx])
		for _, f := range features {
			cell := ""
			if ok {
				cell = strconv.Itoa(datetimeFeature(ts, f))
			}
			out.Rows[ri] = append(out.Rows[ri], cell)
		}
	}
	return out, genericDetail(types.OpExtractDatetime, params), nil
}

func parseDatetime(s string) (time.Time, bool) {
	for _, layout := range datetimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func datetimeFeature(ts time.Time, f string) int {
	switch f {
	case "year":
		return ts.Year()
	case "month":
		return int(ts.Month())
	case "day":
		return ts.Day()
	case "hour":
		return ts.Hour()
	case "weekday":
		// Monday=0.
		return (int(ts.Weekday()) + 6) % 7
	}
	return 0
}
