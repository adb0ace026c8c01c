// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bone

import "github.com/go-gl/mathgl/mgl32"

// Coordinate conventions of the skeleton: right-handed, +Y up, +X right and
// -Z forward (the OpenGL/SteamVR view direction).
var (
	Up      = mgl32.Vec3{0, 1, 0}
	Down    = mgl32.Vec3{0, -1, 0}
	Forward = mgl32.Vec3{0, 0, -1}
	Right   = mgl32.Vec3{1, 0, 0}
)
