// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf // import "github.com/lxhq/hpctoolkit/libpf"

import "sort"

// Set is a convenience alias for a map with a `Void` key.
type Set[T comparable] map[T]Void

// Contains reports whether item is a member of the set.
func (s Set[T]) Contains(item T) bool {
	_, ok := s[item]
	return ok
}

// ToSlice converts the Set keys into a slice.
func (s Set[T]) ToSlice() []T {
	slice := make([]T, 0, len(s))
	for item := range s {
		slice = append(slice, item)
	}
	return slice
}

// SliceToSet creates a set from a slice, deduplicating it.
func SliceToSet[T comparable](s []T) Set[T] {
	set := make(map[T]Void, len(s))
	for _, item := range s {
		set[item] = Void{}
	}
	return set
}

// SortedKeys returns the members of a string set in lexical order.
func SortedKeys(s Set[string]) []string {
	keys := s.ToSlice()
	sort.Strings(keys)
	return keys
}
