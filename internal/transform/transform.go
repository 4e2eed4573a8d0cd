// Package transform implements the operation registry the execution engine
// dispatches into. Every builtin is a pure function of the input table and
// its parameters; custom steps run user code through a sandboxed subprocess
// runner behind a narrow contract.
package transform

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/strata-systems/strata/internal/table"
	"github.com/strata-systems/strata/pkg/types"
)

// BuiltinFunc applies one unary operation and reports what it actually did.
type BuiltinFunc func(t *table.Table, params map[string]string) (*table.Table, *types.StepDetail, error)

// Registry maps operations to their implementations. Unknown operation names
// are rejected when a preprocess is defined, not at execution time.
type Registry struct {
	builtins map[types.Op]BuiltinFunc
}

// NewRegistry creates a registry with every builtin operation installed.
func NewRegistry() *Registry {
	r := &Registry{builtins: make(map[types.Op]BuiltinFunc)}
	r.builtins[types.OpRenameColumn] = renameColumn
	r.builtins[types.OpDropColumns] = dropColumns
	r.builtins[types.OpFilterRows] = filterRows
	r.builtins[types.OpFilterOutliers] = filterOutliers
	r.builtins[types.OpImputeMissing] = imputeMissing
	r.builtins[types.OpLabelEncode] = labelEncode
	r.builtins[types.OpOneHotEncode] = oneHotEncode
	r.builtins[types.OpScaleNumeric] = scaleNumeric
	r.builtins[types.OpLogTransform] = logTransform
	r.builtins[types.OpExtractDatetime] = extractDatetime
	r.builtins[types.OpRemoveDuplicates] = removeDuplicates
	r.builtins[types.OpBinNumeric] = binNumeric
	r.builtins[types.OpNormalizeText] = normalizeText
	r.builtins[types.OpCapOutliers] = capOutliers
	return r
}

// Apply runs one unary builtin. Join steps go through Join; unknown ops with
// code go through the custom runner.
func (r *Registry) Apply(op types.Op, t *table.Table, params map[string]string) (*table.Table, *types.StepDetail, error) {
	fn, ok := r.builtins[op]
	if !ok {
		return nil, nil, types.NewError(types.KindTransformError, "unknown operation %q", op)
	}
	out, detail, err := fn(t, params)
	if err != nil {
		return nil, nil, err
	}
	return out, detail, nil
}

// Known reports whether the registry implements the op.
func (r *Registry) Known(op types.Op) bool {
	_, ok := r.builtins[op]
	return ok
}

// ValidateSteps checks a step list at definition time: every op must be a
// builtin, a join, or carry a code blob for the custom path. A join step
// must have resolvable keys; at most one join is allowed and only when the
// preprocess has two parents.
func (r *Registry) ValidateSteps(steps []types.Step, parentCount int) error {
	if len(steps) == 0 {
		return types.NewError(types.KindInvalidInput, "step list is empty")
	}
	joins := 0
	for i, s := range steps {
		switch {
		case s.Op == types.OpJoin:
			joins++
			how := paramOr(s.Params, "how", "inner")
			if how == "custom" {
				if s.Code == "" && s.Params["code"] == "" {
					return types.NewError(types.KindInvalidInput, "step %d: custom join without code", i)
				}
			} else if len(parseList(s.Params["left_keys"])) == 0 || len(parseList(s.Params["right_keys"])) == 0 {
				return types.NewError(types.KindInvalidInput, "step %d: join requires left_keys and right_keys", i)
			}
		case r.Known(s.Op):
			// ok
		case s.Code != "" || s.Params["code"] != "":
			// custom step
		default:
			return types.NewError(types.KindInvalidInput, "step %d: unknown operation %q and no code supplied", i, s.Op)
		}
	}
	if joins > 1 {
		return types.NewError(types.KindInvalidInput, "at most one join step is allowed")
	}
	if parentCount == 2 && joins != 1 {
		return types.NewError(types.KindInvalidInput, "two-parent preprocess requires exactly one join step")
	}
	if parentCount == 1 && joins != 0 {
		return types.NewError(types.KindInvalidInput, "join step requires two parent datasources")
	}
	return nil
}

// parseList decodes a parameter that may be a JSON array, a comma-separated
// list, or a single bare name.
func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out
		}
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func paramOr(params map[string]string, key, def string) string {
	if v, ok := params[key]; ok && v != "" {
		return v
	}
	return def
}

func paramFloat(params map[string]string, key string, def float64) (float64, error) {
	raw, ok := params[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, types.NewError(types.KindInvalidInput, "parameter %q is not numeric: %q", key, raw)
	}
	return v, nil
}

func paramBool(params map[string]string, key string, def bool) bool {
	raw, ok := params[key]
	if !ok || raw == "" {
		return def
	}
	return strings.EqualFold(raw, "true")
}

func genericDetail(op types.Op, params map[string]string) *types.StepDetail {
	echo := make(map[string]string, len(params))
	for k, v := range params {
		echo[k] = v
	}
	return &types.StepDetail{Op: op, Generic: &types.GenericDetail{Params: echo}}
}
