package pattern

import (
	"strconv"
	"strings"
)

// ValueMap is a dictionary event payload, the usual shape of control patterns
// such as {"s": "bd", "n": 3}.
type ValueMap map[string]any

// Merge returns a new map holding m's entries overridden by o's.
func (m ValueMap) Merge(o ValueMap) ValueMap {
	out := make(ValueMap, len(m)+len(o))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Rest is a placeholder value that carries only a duration. Outputs resolve
// it to its plain number before dispatch.
type Rest struct {
	Duration float64
}

// Resolve replaces Rest values (also inside a ValueMap) by their duration.
func Resolve(v any) any {
	switch x := v.(type) {
	case Rest:
		return x.Duration
	case *Rest:
		if x == nil {
			return 0.0
		}
		return x.Duration
	case ValueMap:
		out := make(ValueMap, len(x))
		for k, e := range x {
			out[k] = Resolve(e)
		}
		return out
	}
	return v
}

// ToFloat converts numeric values (and numeric strings) to float64.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint8:
		return float64(x), true
	case Time:
		return x.Float(), true
	case Rest:
		return x.Duration, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// ToTime converts numeric values to an exact Time where possible.
func ToTime(v any) (Time, bool) {
	switch x := v.(type) {
	case Time:
		return x, true
	case int:
		return T(int64(x)), true
	case int64:
		return T(x), true
	case int32:
		return T(int64(x)), true
	}
	f, ok := ToFloat(v)
	if !ok {
		return Time{}, false
	}
	return FromFloat(f), true
}

// Truthy is the boolean reading used by Struct and Mask.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != "" && x != "0" && x != "false" && x != "~"
	}
	if f, ok := ToFloat(v); ok {
		return f != 0
	}
	return true
}
