package common

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Float reads a numeric parameter. YAML decodes ints, JSON decodes float64 and
// env-sourced values arrive as strings, so all three are accepted.
func Float(params map[string]interface{}, key string, def float64) (float64, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s parameter %q: %w", key, v, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("invalid %s parameter type %T", key, raw)
}

// Int reads a numeric parameter and truncates it.
func Int(params map[string]interface{}, key string, def int) (int, error) {
	f, err := Float(params, key, float64(def))
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// Decimal reads a numeric parameter as a decimal.
func Decimal(params map[string]interface{}, key string, def float64) (decimal.Decimal, error) {
	f, err := Float(params, key, def)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(f), nil
}

// ParamReader collects the first parsing error so constructors stay linear.
type ParamReader struct {
	Params map[string]interface{}
	Err    error
}

func (r *ParamReader) Float(key string, def float64) float64 {
	v, err := Float(r.Params, key, def)
	if err != nil && r.Err == nil {
		r.Err = err
	}
	return v
}

func (r *ParamReader) Int(key string, def int) int {
	v, err := Int(r.Params, key, def)
	if err != nil && r.Err == nil {
		r.Err = err
	}
	return v
}

func (r *ParamReader) Decimal(key string, def float64) decimal.Decimal {
	v, err := Decimal(r.Params, key, def)
	if err != nil && r.Err == nil {
		r.Err = err
	}
	return v
}
