package repository

import "sort"

// sortedKeys keeps statement order stable so transactions touch rows in the
// same order every time.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
