// internal/executor/args.go
package executor

import (
	"sort"
	"strconv"
	"strings"
)

// Action arguments arrive as an untrusted loosely-typed bag decoded from the
// planner's tool call. Coercion is permissive at read time: numbers accept
// any numeric type or a numeric string, strings accept anything stringable.

func argNumber(args map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := args[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int32:
			return float64(n), true
		case int64:
			return float64(n), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func argString(args map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := args[key]
		if !ok {
			continue
		}
		if s, ok := stringify(v); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

func stringify(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case bool:
		return strconv.FormatBool(s), true
	}
	return "", false
}

// argStringMap reads a map-valued argument, stringifying every entry. Keys
// come back sorted so fills run in a deterministic sequence.
func argStringMap(args map[string]any, key string) ([]string, map[string]string, bool) {
	v, ok := args[key]
	if !ok {
		return nil, nil, false
	}

	out := map[string]string{}
	switch m := v.(type) {
	case map[string]string:
		for k, s := range m {
			out[k] = s
		}
	case map[string]any:
		for k, raw := range m {
			if s, ok := stringify(raw); ok {
				out[k] = s
			}
		}
	default:
		return nil, nil, false
	}
	if len(out) == 0 {
		return nil, nil, false
	}

	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, out, true
}
