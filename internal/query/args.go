package query

import "fmt"

func getStringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func getIntArg(args map[string]any, key string, defaultVal int) int {
	v, ok := args[key]
	if !ok {
		return defaultVal
	}
	f, ok := v.(float64) // JSON numbers decode as float64
	if !ok {
		return defaultVal
	}
	return int(f)
}

func getBoolArg(args map[string]any, key string) bool {
	v, ok := args[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// requireString fetches a required string argument, rejecting a missing or
// empty value.
func requireString(args map[string]any, key string) (string, *toolErr) {
	v := getStringArg(args, key)
	if v == "" {
		return "", invalidArgs(fmt.Sprintf("%q is required", key))
	}
	return v, nil
}

// clampDepth fetches max_depth, applying def when absent and rejecting
// values outside [min,max] as spec.md §4.5's per-tool depth bound.
func clampDepth(args map[string]any, def, min, max int) (int, *toolErr) {
	d := getIntArg(args, "max_depth", def)
	if d < min || d > max {
		return 0, invalidArgs(fmt.Sprintf("max_depth must be in [%d,%d], got %d", min, max, d))
	}
	return d, nil
}

// oneOf validates a string argument against an enumerated set, defaulting
// to def when absent.
func oneOf(args map[string]any, key, def string, allowed ...string) (string, *toolErr) {
	v := getStringArg(args, key)
	if v == "" {
		v = def
	}
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", invalidArgs(fmt.Sprintf("%q must be one of %v, got %q", key, allowed, v))
}
