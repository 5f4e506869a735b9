package manifest

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// evalContext binds the per-realization variables.
func evalContext(iens int) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"iens": cty.NumberIntVal(int64(iens)),
		},
	}
}

// evalString evaluates an optional string expression. The boolean is false
// when the attribute was absent or null.
func evalString(expr hcl.Expression, evalCtx *hcl.EvalContext) (string, bool, error) {
	if expr == nil {
		return "", false, nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", false, diags
	}
	if val.IsNull() {
		return "", false, nil
	}
	val, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", false, fmt.Errorf("expected a string: %w", err)
	}
	if !val.IsKnown() || val.IsNull() {
		return "", false, fmt.Errorf("value is not known")
	}
	return val.AsString(), true, nil
}

// evalStrings evaluates an optional list expression whose elements convert
// to strings.
func evalStrings(expr hcl.Expression, evalCtx *hcl.EvalContext) ([]string, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	val, err := convert.Convert(val, cty.List(cty.String))
	if err != nil {
		return nil, fmt.Errorf("expected a list of strings: %w", err)
	}
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known")
	}

	out := make([]string, 0, val.LengthInt())
	for it := val.ElementIterator(); it.Next(); {
		_, v := it.Element()
		if v.IsNull() {
			return nil, fmt.Errorf("list element cannot be null")
		}
		out = append(out, v.AsString())
	}
	return out, nil
}
