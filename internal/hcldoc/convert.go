package hcldoc

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// stringMap evaluates an `env`-style attribute expression into a
// map[string]string. A missing attribute (nil or null expression) yields nil.
func stringMap(expr hcl.Expression) (map[string]string, error) {
	if expr == nil {
		return nil, nil
	}

	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluate expression: %s", diags.Error())
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("expected a map of strings, got %s", val.Type().FriendlyName())
	}

	result := make(map[string]string, val.LengthInt())
	for key, elem := range val.AsValueMap() {
		strVal, err := convert.Convert(elem, cty.String)
		if err != nil {
			return nil, fmt.Errorf("value for %q: %w", key, err)
		}
		if strVal.IsNull() {
			return nil, fmt.Errorf("value for %q is null", key)
		}
		result[key] = strVal.AsString()
	}
	return result, nil
}
