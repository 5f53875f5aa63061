package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// PropertySpec declares a property: its name, its default (which also fixes
// its type) and a one-line description.
type PropertySpec struct {
	Name    string `json:"name" yaml:"name"`
	Default any    `json:"default" yaml:"default"`
	Doc     string `json:"doc" yaml:"doc"`
}

// Type returns the Go type name of the property.
func (s PropertySpec) Type() string {
	switch s.Default.(type) {
	case time.Duration:
		return "duration"
	default:
		return fmt.Sprintf("%T", s.Default)
	}
}

// coerce converts v to the type of def. Strings are parsed so properties can
// come from command lines; the numeric types YAML and JSON decoders produce
// are narrowed.
func coerce(def, v any) (any, error) {
	switch def.(type) {
	case nil:
		return v, nil
	case string:
		switch v := v.(type) {
		case string:
			return v, nil
		case fmt.Stringer:
			return v.String(), nil
		}
	case bool:
		switch v := v.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(v)
		}
	case int:
		switch v := v.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case uint64:
			return int(v), nil
		case float64:
			if v == math.Trunc(v) {
				return int(v), nil
			}
		case string:
			return strconv.Atoi(v)
		}
	case float64:
		switch v := v.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case uint64:
			return float64(v), nil
		case string:
			return strconv.ParseFloat(v, 64)
		}
	case time.Duration:
		switch v := v.(type) {
		case time.Duration:
			return v, nil
		case string:
			return time.ParseDuration(v)
		case int:
			if v == 0 {
				return time.Duration(0), nil
			}
		case uint64:
			if v == 0 {
				return time.Duration(0), nil
			}
		}
	}
	return nil, fmt.Errorf("cannot use %v (%T) as %T", v, v, def)
}
