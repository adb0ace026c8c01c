// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package skeleton

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/relabs-tech/body_tracker/internal/bone"
)

// Quat is a rotation as [w, x, y, z].
type Quat [4]float32

// Vec is a position as [x, y, z] in meters.
type Vec [3]float32

func quatOf(r GlobalRotation) Quat {
	return Quat{r.W, r.V[0], r.V[1], r.V[2]}
}

// ToQuat converts back to a mathgl quaternion.
func (q Quat) ToQuat() mgl32.Quat {
	return mgl32.Quat{W: q[0], V: mgl32.Vec3{q[1], q[2], q[3]}}
}

// BonePose is the solved pose of one bone.
type BonePose struct {
	Rotation Quat    `json:"rotation"`
	Head     Vec     `json:"head"`
	Tail     Vec     `json:"tail"`
	Length   float32 `json:"length"`
	// Tracked is set when the rotation came from an input.
	Tracked bool `json:"tracked"`
}

// TrackerPose is the solved pose of a tracker edge.
type TrackerPose struct {
	Edge     EdgeIndex `json:"edge"`
	Type     string    `json:"type"`
	Bone     bone.Kind `json:"bone"`
	Rotation Quat      `json:"rotation"`
	Position Vec       `json:"position"`
}

// Frame is a snapshot of the solved skeleton, suitable for JSON output.
type Frame struct {
	Time     time.Time              `json:"time"`
	Bones    map[bone.Kind]BonePose `json:"bones"`
	Trackers []TrackerPose          `json:"trackers,omitempty"`
}

// Frame exports the outputs of the last Solve. The caller sets Time.
func (s *Skeleton) Frame() Frame {
	f := Frame{Bones: make(map[bone.Kind]BonePose, bone.NumKinds)}
	for k, e := range s.boneMap.All() {
		edge := s.edges[e]
		f.Bones[k] = BonePose{
			Rotation: quatOf(edge.outputRot),
			Head:     Vec(s.nodes[edge.head].outputPos),
			Tail:     Vec(s.nodes[edge.tail].outputPos),
			Length:   edge.length,
			Tracked:  edge.hasInputRot,
		}
	}
	for i := range s.edges {
		edge := s.edges[i]
		if edge.kind.Type == EdgeBone {
			continue
		}
		f.Trackers = append(f.Trackers, TrackerPose{
			Edge:     EdgeIndex(i),
			Type:     edge.kind.Type.String(),
			Bone:     edge.kind.Bone,
			Rotation: quatOf(edge.outputRot),
			Position: Vec(s.nodes[edge.tail].outputPos),
		})
	}
	return f
}
