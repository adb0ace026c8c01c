// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package skeleton

import (
	"errors"

	"github.com/relabs-tech/body_tracker/internal/bone"
)

// ErrNoRootNode is returned by Solve when no node has an input position. At
// least one joint (usually the head or the hip) must be anchored.
var ErrNoRootNode = errors.New("skeleton: no node has an input position")

// Solve computes the output rotation of every edge and the output position
// of every node.
//
// An edge with an input rotation uses it. Otherwise it keeps its calibrated
// rotation relative to the solved parent edge, the root bone falling back to
// its global calibration rotation.
//
// Positions spread breadth-first from every node with an input position, in
// node index order. Crossing an edge away from the root adds the edge vector,
// crossing it towards the root subtracts it. A node keeps the first position
// it is reached with, so anchored nodes always keep their inputs.
//
// On error nothing is modified.
func (s *Skeleton) Solve() error {
	var roots []NodeIndex
	for i := range s.nodes {
		if s.nodes[i].hasInputPos {
			roots = append(roots, NodeIndex(i))
		}
	}
	if len(roots) == 0 {
		return ErrNoRootNode
	}

	solved := make([]bool, len(s.edges))
	for i := range s.edges {
		s.solveRotation(EdgeIndex(i), solved)
	}

	discovered := make([]bool, len(s.nodes))
	for _, n := range roots {
		discovered[n] = true
		s.nodes[n].outputPos = s.nodes[n].inputPos
	}

	visited := make(map[EdgeIndex]struct{}, len(s.edges))
	queue := roots
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		pos := s.nodes[n].outputPos.Vec3()

		for _, e := range s.incidentEdges(n) {
			if _, ok := visited[e]; ok {
				continue
			}
			visited[e] = struct{}{}

			edge := s.edges[e]
			v := edge.outputRot.Quat().Rotate(bone.Down.Mul(edge.length))
			next, p := edge.tail, pos.Add(v)
			if edge.tail == n {
				next, p = edge.head, pos.Sub(v)
			}
			if discovered[next] {
				continue
			}
			discovered[next] = true
			s.nodes[next].outputPos = GlobalPosition(p)
			queue = append(queue, next)
		}
	}
	return nil
}

// solveRotation memoizes edge rotations in solved.
func (s *Skeleton) solveRotation(e EdgeIndex, solved []bool) GlobalRotation {
	edge := s.edges[e]
	if solved[e] {
		return edge.outputRot
	}
	switch parent := s.nodes[edge.head].parentEdge; {
	case edge.hasInputRot:
		edge.outputRot = edge.inputRot
	case parent != noEdge:
		edge.outputRot = s.solveRotation(parent, solved).Compose(edge.calibRot)
	default:
		edge.outputRot = GlobalRotation(edge.calibRot)
	}
	solved[e] = true
	return edge.outputRot
}

// incidentEdges lists the parent edge first, then children in insertion order.
func (s *Skeleton) incidentEdges(n NodeIndex) []EdgeIndex {
	node := s.nodes[n]
	out := make([]EdgeIndex, 0, len(node.childEdges)+1)
	if node.parentEdge != noEdge {
		out = append(out, node.parentEdge)
	}
	return append(out, node.childEdges...)
}
