// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bone

import (
	"errors"
	"fmt"
	"iter"
)

// ErrIncompleteMap is returned when converting a partial mapping into a Map.
var ErrIncompleteMap = errors.New("bone: map is missing kinds")

// Map holds exactly one value per bone kind. Index it directly with a Kind:
// m[bone.Hip].
type Map[T any] [NumKinds]T

// Fill returns a map with v for every kind.
func Fill[T any](v T) Map[T] {
	var m Map[T]
	for k := range m {
		m[k] = v
	}
	return m
}

// All yields (kind, value) pairs starting at Root.
func (m Map[T]) All() iter.Seq2[Kind, T] {
	return func(yield func(Kind, T) bool) {
		for k := range m {
			if !yield(Kind(k), m[k]) {
				return
			}
		}
	}
}

// Transform maps every value of m through f.
func Transform[T, U any](m Map[T], f func(Kind, T) U) Map[U] {
	var out Map[U]
	for k := range m {
		out[k] = f(Kind(k), m[k])
	}
	return out
}

// MapFromGo converts a Go map that must contain every kind.
func MapFromGo[T any](src map[Kind]T) (Map[T], error) {
	var m Map[T]
	var missing []string
	for k := range All() {
		v, ok := src[k]
		if !ok {
			missing = append(missing, k.String())
			continue
		}
		m[k] = v
	}
	if len(missing) > 0 {
		return m, fmt.Errorf("%w: %v", ErrIncompleteMap, missing)
	}
	return m, nil
}

// ToGo converts m into a Go map keyed by kind.
func (m Map[T]) ToGo() map[Kind]T {
	out := make(map[Kind]T, NumKinds)
	for k, v := range m.All() {
		out[k] = v
	}
	return out
}
