package utils

import "strings"

func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0)
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}

// ScopeList normalises a scope claim that may be a space separated string or a JSON array.
func ScopeList(v any) []string {
	switch scope := v.(type) {
	case string:
		return strings.Fields(scope)
	case []string:
		return scope
	case []any:
		return ToStringSlice(scope)
	}
	return nil
}
