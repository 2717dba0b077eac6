package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/tanpawarit/quote-assistant/pkg/money"
)

// args wraps decoded tool-call arguments. Getters return (value, present, err);
// a present key with the wrong type is an error, an absent key is not.
type args map[string]any

func (a args) has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

func (a args) str(key string) (string, bool, error) {
	if !a.has(key) {
		return "", false, nil
	}
	s, ok := a[key].(string)
	if !ok {
		return "", true, fmt.Errorf("%s must be a string", key)
	}
	return strings.TrimSpace(s), true, nil
}

func (a args) requiredStr(key string) (string, error) {
	s, ok, err := a.str(key)
	if err != nil {
		return "", err
	}
	if !ok || s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

func (a args) number(key string) (float64, bool, error) {
	if !a.has(key) {
		return 0, false, nil
	}
	var (
		v   float64
		err error
	)
	switch raw := a[key].(type) {
	case float64:
		v = raw
	case float32:
		v = float64(raw)
	case int:
		v = float64(raw)
	case int64:
		v = float64(raw)
	case json.Number:
		v, err = raw.Float64()
	case string:
		v, err = evaluateQuantityExpression(raw)
	default:
		err = fmt.Errorf("unsupported type %T", raw)
	}
	if err != nil {
		return 0, true, fmt.Errorf("%s must be a number: %v", key, err)
	}
	if !money.IsFinite(v) {
		return 0, true, fmt.Errorf("%s must be a finite number", key)
	}
	return v, true, nil
}

func (a args) nonNegative(key string) (float64, bool, error) {
	v, ok, err := a.number(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	if v < 0 {
		return 0, true, fmt.Errorf("%s must be >= 0, got %v", key, v)
	}
	return v, true, nil
}

func (a args) requiredNonNegative(key string) (float64, error) {
	v, ok, err := a.nonNegative(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func (a args) integer(key string, min int) (int, bool, error) {
	v, ok, err := a.number(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	if v != math.Trunc(v) {
		return 0, true, fmt.Errorf("%s must be a whole number, got %v", key, v)
	}
	if v < float64(min) {
		return 0, true, fmt.Errorf("%s must be >= %d, got %v", key, min, v)
	}
	if v > math.MaxInt32 {
		return 0, true, fmt.Errorf("%s is too large", key)
	}
	return int(v), true, nil
}

func (a args) strList(key string) ([]string, bool, error) {
	if !a.has(key) {
		return nil, false, nil
	}
	switch raw := a[key].(type) {
	case []string:
		return cleanList(raw), true, nil
	case []any:
		out := make([]string, 0, len(raw))
		for i, item := range raw {
			s, ok := item.(string)
			if !ok {
				return nil, true, fmt.Errorf("%s[%d] must be a string", key, i)
			}
			out = append(out, s)
		}
		return cleanList(out), true, nil
	case string:
		return cleanList(strings.Split(raw, ",")), true, nil
	default:
		return nil, true, fmt.Errorf("%s must be a list of strings", key)
	}
}

func (a args) enum(key string, allowed ...string) (string, bool, error) {
	s, ok, err := a.str(key)
	if err != nil || !ok {
		return "", ok, err
	}
	s = strings.ToLower(s)
	for _, candidate := range allowed {
		if s == candidate {
			return s, true, nil
		}
	}
	return "", true, fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), s)
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
