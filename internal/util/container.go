package util

import "sort"

func RemoveDuplicates[T comparable](slice []T) []T {
	seen := make(map[T]struct{})
	j := 0
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		slice[j] = v
		j++
	}
	return slice[:j]
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
