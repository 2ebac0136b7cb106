package tools

import "strings"

// intArg reads an integer input, tolerating the float64 that JSON decoding
// produces. Returns fallback when absent or not numeric.
func intArg(input map[string]any, key string, fallback int) int {
	v, ok := input[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}

// stringArg reads a trimmed string input, returning fallback when absent.
func stringArg(input map[string]any, key, fallback string) string {
	v, ok := input[key]
	if !ok {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	if clean := strings.TrimSpace(s); clean != "" {
		return clean
	}
	return fallback
}

// boolArg reads a boolean input, returning fallback when absent.
func boolArg(input map[string]any, key string, fallback bool) bool {
	v, ok := input[key]
	if !ok {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}

// clampFirst bounds page sizes to the API's allowed range.
func clampFirst(n int) int {
	if n < 1 {
		return 1
	}
	if n > 50 {
		return 50
	}
	return n
}
