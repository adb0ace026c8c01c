// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package skeleton

import "github.com/go-gl/mathgl/mgl32"

// GlobalPosition is a position in the world frame (meters).
type GlobalPosition mgl32.Vec3

// GlobalRotation is an orientation in the world frame.
type GlobalRotation mgl32.Quat

// LocalRotation is a rotation relative to a parent frame.
type LocalRotation mgl32.Quat

func (p GlobalPosition) Vec3() mgl32.Vec3 { return mgl32.Vec3(p) }

func (r GlobalRotation) Quat() mgl32.Quat { return mgl32.Quat(r) }

func (r LocalRotation) Quat() mgl32.Quat { return mgl32.Quat(r) }

// Compose applies a local rotation in the frame of r.
func (r GlobalRotation) Compose(l LocalRotation) GlobalRotation {
	return GlobalRotation(r.Quat().Mul(l.Quat()))
}

// IdentityGlobal is the identity world rotation.
func IdentityGlobal() GlobalRotation { return GlobalRotation(mgl32.QuatIdent()) }

// IdentityLocal is the identity relative rotation.
func IdentityLocal() LocalRotation { return LocalRotation(mgl32.QuatIdent()) }
