// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bone describes the fixed topology of the tracked body: the kinds of
// bones, how they connect and their orientation in the calibration pose.
package bone

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrUnknownKind is returned when a bone name cannot be parsed.
var ErrUnknownKind = errors.New("bone: unknown kind")

// Kind identifies a bone. Values are contiguous from 0 so a Kind can index
// an array; the numeric values themselves are not stable across versions.
type Kind uint8

const (
	Neck Kind = iota
	Chest
	Waist
	Hip
	ThighL
	ThighR
	AnkleL
	AnkleR
	FootL
	FootR

	UpperArmL
	UpperArmR
	ForearmL
	ForearmR
	WristL
	WristR

	// NumKinds is the number of bone kinds.
	NumKinds = int(WristR) + 1

	// Root is the root of the bone tree.
	Root = Neck
)

var names = [NumKinds]string{
	"Neck", "Chest", "Waist", "Hip",
	"ThighL", "ThighR", "AnkleL", "AnkleR", "FootL", "FootR",
	"UpperArmL", "UpperArmR", "ForearmL", "ForearmR", "WristL", "WristR",
}

var children = [NumKinds][]Kind{
	Neck:      {Chest, UpperArmL, UpperArmR},
	Chest:     {Waist},
	Waist:     {Hip},
	Hip:       {ThighL, ThighR},
	ThighL:    {AnkleL},
	ThighR:    {AnkleR},
	AnkleL:    {FootL},
	AnkleR:    {FootR},
	UpperArmL: {ForearmL},
	UpperArmR: {ForearmR},
	ForearmL:  {WristL},
	ForearmR:  {WristR},
}

var parents = func() [NumKinds]Kind {
	var p [NumKinds]Kind
	for k := range NumKinds {
		for _, c := range children[k] {
			p[c] = Kind(k)
		}
	}
	return p
}()

// footRotation turns the hanging down direction into forward.
var footRotation = mgl32.QuatRotate(math.Pi/2, Right)

// All yields every kind in ascending order, starting at Root.
func All() iter.Seq[Kind] {
	return func(yield func(Kind) bool) {
		for k := range NumKinds {
			if !yield(Kind(k)) {
				return
			}
		}
	}
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool { return int(k) < NumKinds }

// Parent returns the parent bone. ok is false for Root.
func (k Kind) Parent() (parent Kind, ok bool) {
	if k == Root || !k.Valid() {
		return 0, false
	}
	return parents[k], true
}

// Children returns the child bones. The slice is shared and must not be
// modified.
func (k Kind) Children() []Kind {
	if !k.Valid() {
		return nil
	}
	return children[k]
}

// CalibrationRotation is the global orientation of the bone in the
// calibration pose. Rotating Up by it gives the direction from the far end of
// the bone back to the end nearer the root; the bone itself extends along the
// rotated Down. Everything hangs down except the feet, which point forward.
func (k Kind) CalibrationRotation() mgl32.Quat {
	switch k {
	case FootL, FootR:
		return footRotation
	default:
		return mgl32.QuatIdent()
	}
}

// CalibrationRotationLocal is the calibration rotation relative to the
// parent's: parent⁻¹ · self. It is the identity for Root.
func (k Kind) CalibrationRotationLocal() mgl32.Quat {
	parent, ok := k.Parent()
	if !ok {
		return mgl32.QuatIdent()
	}
	return parent.CalibrationRotation().Inverse().Mul(k.CalibrationRotation())
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return names[k]
}

// ParseKind parses a bone name as produced by String. Matching ignores case.
func ParseKind(s string) (Kind, error) {
	for k := range NumKinds {
		if strings.EqualFold(names[k], s) {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText lets kinds be used as JSON object keys.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}
	return []byte(names[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
