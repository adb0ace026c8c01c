// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package skeleton

import (
	"fmt"

	"github.com/relabs-tech/body_tracker/internal/bone"
)

// EdgeIndex addresses an edge within one Skeleton.
type EdgeIndex int

const noEdge EdgeIndex = -1

// EdgeType tells what an edge represents.
type EdgeType uint8

const (
	// EdgeBone is a bone of the body.
	EdgeBone EdgeType = iota
	// EdgeInputTracker is the offset from a bone to a tracker feeding pose into
	// the skeleton.
	EdgeInputTracker
	// EdgeOutputTracker is the offset from a bone to a synthetic tracker whose
	// pose is computed by the solver.
	EdgeOutputTracker
)

func (t EdgeType) String() string {
	switch t {
	case EdgeBone:
		return "bone"
	case EdgeInputTracker:
		return "input_tracker"
	case EdgeOutputTracker:
		return "output_tracker"
	}
	return fmt.Sprintf("EdgeType(%d)", uint8(t))
}

// EdgeKind is the tagged variant Bone(kind) | InputTracker | OutputTracker.
// Bone is only meaningful when Type is EdgeBone.
type EdgeKind struct {
	Type EdgeType
	Bone bone.Kind
}

// BoneKind returns the edge kind of a bone.
func BoneKind(k bone.Kind) EdgeKind { return EdgeKind{Type: EdgeBone, Bone: k} }

func (k EdgeKind) String() string {
	if k.Type == EdgeBone {
		return "bone(" + k.Bone.String() + ")"
	}
	return k.Type.String()
}

// Edge connects a head node (towards the root) to a tail node. Only the
// solver writes the output rotation.
type Edge struct {
	kind       EdgeKind
	head, tail NodeIndex

	inputRot    GlobalRotation
	hasInputRot bool
	// calibRot maps the parent edge frame to this edge frame.
	calibRot  LocalRotation
	length    float32
	outputRot GlobalRotation
}

func newEdge(kind EdgeKind, length float32, head, tail NodeIndex) Edge {
	calib := IdentityLocal()
	if kind.Type == EdgeBone {
		calib = LocalRotation(kind.Bone.CalibrationRotationLocal())
	}
	return Edge{
		kind:      kind,
		head:      head,
		tail:      tail,
		calibRot:  calib,
		length:    length,
		outputRot: IdentityGlobal(),
	}
}

func (e *Edge) Kind() EdgeKind { return e.kind }

// Head returns the node nearer the root.
func (e *Edge) Head() NodeIndex { return e.head }

// Tail returns the node further from the root.
func (e *Edge) Tail() NodeIndex { return e.tail }

// SetInputRotation constrains the global rotation of this edge.
func (e *Edge) SetInputRotation(r GlobalRotation) {
	e.inputRot = r
	e.hasInputRot = true
}

// ClearInputRotation removes the rotation constraint. The solver then keeps
// the calibrated rotation relative to the parent edge.
func (e *Edge) ClearInputRotation() {
	e.inputRot = GlobalRotation{}
	e.hasInputRot = false
}

// InputRotation returns the rotation constraint, if any.
func (e *Edge) InputRotation() (GlobalRotation, bool) {
	return e.inputRot, e.hasInputRot
}

// OutputRotation returns the last solved rotation.
func (e *Edge) OutputRotation() GlobalRotation { return e.outputRot }

// CalibrationRotation returns the rotation relative to the parent edge in the
// calibration pose.
func (e *Edge) CalibrationRotation() LocalRotation { return e.calibRot }

// SetCalibrationRotation replaces the calibrated relative rotation.
func (e *Edge) SetCalibrationRotation(r LocalRotation) { e.calibRot = r }

func (e *Edge) Length() float32 { return e.length }

func (e *Edge) SetLength(l float32) { e.length = l }
