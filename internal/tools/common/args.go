package common

import (
	"fmt"
	"math"
)

// StringArg returns a string argument or def when it is absent or empty.
func StringArg(args map[string]any, name, def string) string {
	if v, ok := args[name].(string); ok && v != "" {
		return v
	}
	return def
}

// IntArg returns a positive integer argument. JSON numbers arrive as
// float64; fractional, non-positive or non-numeric values are rejected.
func IntArg(args map[string]any, name string, def int) (int, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return def, nil
	}

	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		return 0, fmt.Errorf("%s must be a number", name)
	}
	if f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return int(f), nil
}
