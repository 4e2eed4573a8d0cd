package table

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/strata-systems/strata/pkg/types"
)

// Summarize computes the per-column summary shown to users: a coarse type
// bucket, missing counts, distinct counts, and a one-line stats string.
func (t *Table) Summarize() []types.ColumnSummary {
	n := len(t.Rows)
	out := make([]types.ColumnSummary, 0, len(t.Columns))
	for i, name := range t.Columns {
		missing := 0
		uniq := map[string]int{}
		var numeric []float64
		allNumeric := true
		allDates := true
		for _, row := range t.Rows {
			cell := row[i]
			if IsNull(cell) {
				missing++
				continue
			}
			uniq[cell]++
			if v, err := strconv.ParseFloat(cell, 64); err == nil {
				numeric = append(numeric, v)
			} else {
				allNumeric = false
			}
			if !dateRe.MatchString(cell) && !datetimeRe.MatchString(cell) {
				allDates = false
			}
		}

		cs := types.ColumnSummary{
			Column:  name,
			Missing: missing,
			Unique:  len(uniq),
		}
		if n > 0 {
			cs.MissingPct = math.Round(float64(missing)/float64(n)*1000) / 10
		}

		switch {
		case allNumeric && len(numeric) > 0:
			cs.Type = "numeric"
			cs.Stats = numericStats(numeric)
		case allDates && len(uniq) > 0:
			cs.Type = "date"
			cs.Stats = dateStats(uniq)
		default:
			cs.Type = "categorical"
			cs.Stats = categoricalStats(uniq, n)
		}
		out = append(out, cs)
	}
	return out
}

func numericStats(vals []float64) string {
	mean, std := meanStd(vals)
	mn, mx := vals[0], vals[0]
	for _, v := range vals {
		mn = math.Min(mn, v)
		mx = math.Max(mx, v)
	}
	return fmt.Sprintf("%.2f±%.2f (range %.2f-%.2f)", mean, std, mn, mx)
}

func meanStd(vals []float64) (float64, float64) {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	if len(vals) < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range vals {
		sq += (v - mean) * (v - mean)
	}
	// Sample standard deviation.
	return mean, math.Sqrt(sq / float64(len(vals)-1))
}

func dateStats(uniq map[string]int) string {
	keys := make([]string, 0, len(uniq))
	for k := range uniq {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%s-%s", keys[0][:10], keys[len(keys)-1][:10])
}

func categoricalStats(uniq map[string]int, n int) string {
	if len(uniq) == 0 || n == 0 {
		return ""
	}
	top, topCount := "", -1
	keys := make([]string, 0, len(uniq))
	for k := range uniq {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if uniq[k] > topCount {
			top, topCount = k, uniq[k]
		}
	}
	return fmt.Sprintf("%s (%.1f%%)", top, float64(topCount)/float64(n)*100)
}
