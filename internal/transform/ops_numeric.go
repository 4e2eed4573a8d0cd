package transform

import (
	"math"
	"sort"

	"github.com/strata-systems/strata/internal/table"
	"github.com/strata-systems/strata/pkg/types"
)

// filterOutliers: params {column, method zscore|iqr, threshold}. Rows with
// a null in the scored column are dropped along with the outliers.
func filterOutliers(t *table.Table, params map[string]string) (*table.Table, *types.StepDetail, error) {
	vals, rows, err := t.NumericColumn(params["column"])
	if err != nil {
		return nil, nil, err
	}
	method := paramOr(params, "method", "zscore")
	thresh, err := paramFloat(params, "threshold", 3)
	if err != nil {
		return nil, nil, err
	}

	keep := map[int]bool{}
	switch method {
	case "zscore":
		mean, std := populationMeanStd(vals)
		for i, v := range vals {
			z := 0.0
			if std > 0 {
				z = math.Abs((v - mean) / std)
			}
			if z < thresh {
				keep[rows[i]] = true
			}
		}
	case "iqr":
		if len(vals) == 0 {
			break
		}
		q1 := quantile(vals, 0.25)
		q3 := quantile(vals, 0.75)
		iqr := q3 - q1
		lo, hi := q1-1.5*iqr, q3+1.5*iqr
		for i, v := range vals {
			if v >= lo && v <= hi {
				keep[rows[i]] = true
			}
		}
	default:
		return nil, nil, types.NewError(types.KindInvalidInput, "filter_outliers: unknown method %q", method)
	}

	out := &table.Table{Columns: append([]string(nil), t.Columns...)}
	for ri, row := range t.Rows {
		if keep[ri] {
			out.Rows = append(out.Rows, append([]string(nil), row...))
		}
	}
	return out, genericDetail(types.OpFilterOutliers, params), nil
}

// scaleNumeric: params {columns, method minmax|standard}. Standard scaling
// uses the population standard deviation.
func scaleNumeric(t *table.Table, params map[string]string) (*table.Table, *types.StepDetail, error) {
	cols := parseList(params["columns"])
	if len(cols) == 0 {
		return nil, nil, types.NewError(types.KindInvalidInput, "scale_numeric requires columns")
	}
	method := paramOr(params, "method", "standard")

	out := t.Clone()
	for _, name := range cols {
		vals, rows, err := out.NumericColumn(name)
		if err != nil {
			return nil, nil, err
		}
		if len(vals) == 0 {
			continue
		}
		idx := out.ColumnIndex(name)
		switch method {
		case "minmax":
			mn, mx := vals[0], vals[0]
			for _, v := range vals {
				mn = math.Min(mn, v)
				mx = math.Max(mx, v)
			}
			span := mx - mn
			for i, ri := range rows {
				scaled := 0.0
				if span > 0 {
					scaled = (vals[i] - mn) / span
				}
				out.Rows[ri][idx] = table.FormatFloat(scaled)
			}
		case "standard":
			mean, std := populationMeanStd(vals)
			for i, ri := range rows {
				scaled := 0.0
				if std > 0 {
					scaled = (vals[i] - mean) / std
				}
				out.Rows[ri][idx] = table.FormatFloat(scaled)
			}
		default:
			return nil, nil, types.NewError(types.KindInvalidInput, "scale_numeric: unknown method %q", method)
		}
	}
	return out, genericDetail(types.OpScaleNumeric, params), nil
}

// logTransform: params {columns, offset}; natural log of value plus offset.
func logTransform(t *table.Table, params map[string]string) (*table.Table, *types.StepDetail, error) {
	cols := parseList(params["columns"])
	if len(cols) == 0 {
		return nil, nil, types.NewError(types.KindInvalidInput, "log_transform requires columns")
	}
	offset, err := paramFloat(params, "offset", 1e-6)
	if err != nil {
		return nil, nil, err
	}
	out := t.Clone()
	for _, name := range cols {
		vals, rows, err := out.NumericColumn(name)
		if err != nil {
			return nil, nil, err
		}
		idx := out.ColumnIndex(name)
		for i, ri := range rows {
			out.Rows[ri][idx] = table.FormatFloat(math.Log(vals[i] + offset))
		}
	}
	return out, genericDetail(types.OpLogTransform, params), nil
}

// binNumeric: params {column, bins (count or JSON edge list), labels}.
// Adds a "<column>_binned" column; values outside the edges become null.
func binNumeric(t *table.Table, params map[string]string) (*table.Table, *types.StepDetail, error) {
	vals, rows, err := t.NumericColumn(params["column"])
	if err != nil {
		return nil, nil, err
	}
	col := params["column"]

	var edges []float64
	rawBins := params["bins"]
	if list := parseList(rawBins); len(list) > 1 {
		for _, s := range list {
			v, ok := parseFloatOK(s)
			if !ok {
				return nil, nil, types.NewError(types.KindInvalidInput, "bin_numeric: bad edge %q", s)
			}
			edges = append(edges, v)
		}
	} else {
		count, err := paramFloat(params, "bins", 0)
		if err != nil || count < 1 {
			return nil, nil, types.NewError(types.KindInvalidInput, "bin_numeric: bins must be a count or an edge list")
		}
		if len(vals) == 0 {
			return nil, nil, types.NewError(types.KindInvalidInput, "bin_numeric: column %q has no numeric values", col)
		}
		mn, mx := vals[0], vals[0]
		for _, v := range vals {
			mn = math.Min(mn, v)
			mx = math.Max(mx, v)
		}
		n := int(count)
		width := (mx - mn) / float64(n)
		for i := 0; i <= n; i++ {
			edges = append(edges, mn+width*float64(i))
		}
		// Lowest value lands in the first bin.
		edges[0] = math.Nextafter(edges[0], math.Inf(-1))
	}

	labels := parseList(params["labels"])
	if len(labels) > 0 && len(labels) != len(edges)-1 {
		labels = nil
	}
	binLabel := func(i int) string {
		if labels != nil {
			return labels[i]
		}
		return "(" + table.FormatFloat(edges[i]) + ", " + table.FormatFloat(edges[i+1]) + "]"
	}

	out := t.Clone()
	out.Columns = append(out.Columns, col+"_binned")
	binned := make([]string, len(t.Rows))
	for i, ri := range rows {
		v := vals[i]
		for b := 0; b < len(edges)-1; b++ {
			if v > edges[b] && v <= edges[b+1] {
				binned[ri] = binLabel(b)
				break
			}
		}
	}
	for ri := range out.Rows {
		out.Rows[ri] = append(out.Rows[ri], binned[ri])
	}
	return out, genericDetail(types.OpBinNumeric, params), nil
}

// capOutliers: params {column, method clip|winsorize, lower_pct, upper_pct}.
// Both methods clamp to the quantile fences.
func capOutliers(t *table.Table, params map[string]string) (*table.Table, *types.StepDetail, error) {
	vals, rows, err := t.NumericColumn(params["column"])
	if err != nil {
		return nil, nil, err
	}
	if len(vals) == 0 {
		return t.Clone(), genericDetail(types.OpCapOutliers, params), nil
	}
	loPct, err := paramFloat(params, "lower_pct", 0.01)
	if err != nil {
		return nil, nil, err
	}
	hiPct, err := paramFloat(params, "upper_pct", 0.99)
	if err != nil {
		return nil, nil, err
	}
	lo := quantile(vals, loPct)
	hi := quantile(vals, hiPct)

	out := t.Clone()
	idx := out.ColumnIndex(params["column"])
	for i, ri := range rows {
		v := vals[i]
		if v < lo {
			v = lo
		}
		if v > hi {
			v = hi
		}
		out.Rows[ri][idx] = table.FormatFloat(v)
	}
	return out, genericDetail(types.OpCapOutliers, params), nil
}

func populationMeanStd(vals []float64) (float64, float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	var sq float64
	for _, v := range vals {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(vals)))
}

// quantile computes the q-th quantile with linear interpolation between
// order statistics.
func quantile(vals []float64, q float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
