package table

import (
	"regexp"
	"strconv"

	"github.com/strata-systems/strata/pkg/types"
)

var (
	datetimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// InferSchema derives the column schema: name, inferred dtype, null count.
// Datetime and date formats are checked first against every non-null value,
// then integer, floating and boolean; anything else is a string column.
func (t *Table) InferSchema() []types.Column {
	out := make([]types.Column, len(t.Columns))
	for i, name := range t.Columns {
		nulls := 0
		var vals []string
		for _, row := range t.Rows {
			if IsNull(row[i]) {
				nulls++
				continue
			}
			vals = append(vals, row[i])
		}
		out[i] = types.Column{Name: name, Dtype: inferDtype(vals), NullCount: nulls}
	}
	return out
}

func inferDtype(vals []string) string {
	if len(vals) == 0 {
		return types.DtypeString
	}
	if allMatch(vals, datetimeRe) {
		return types.DtypeDatetime
	}
	if allMatch(vals, dateRe) {
		return types.DtypeDate
	}
	integer, floating, boolean := true, true, true
	for _, v := range vals {
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			integer = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			floating = false
		}
		if v != "true" && v != "false" && v != "True" && v != "False" {
			boolean = false
		}
		if !integer && !floating && !boolean {
			return types.DtypeString
		}
	}
	switch {
	case integer:
		return types.DtypeInteger
	case floating:
		return types.DtypeFloating
	case boolean:
		return types.DtypeBoolean
	}
	return types.DtypeString
}

func allMatch(vals []string, re *regexp.Regexp) bool {
	for _, v := range vals {
		if !re.MatchString(v) {
			return false
		}
	}
	return true
}

// SchemasEqual compares two schemas on (name, dtype) pairs in order. Null
// counts vary per file and are ignored.
func SchemasEqual(a, b []types.Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Dtype != b[i].Dtype {
			return false
		}
	}
	return true
}
