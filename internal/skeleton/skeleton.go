// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package skeleton models the tracked body as a tree of joints (nodes) and
// bones or tracker offsets (edges), and solves the global pose of every part
// from the constraints fed into it.
//
// The tree is rooted at the head end of the Neck bone. Every edge points
// away from the root: its head node is nearer the root, its tail node
// further. Nodes and edges live in arenas owned by the Skeleton and are
// addressed by NodeIndex and EdgeIndex; the topology never changes after
// construction except for tracker edges appended as leaves. Node and Edge
// pointers handed out stay valid when trackers are attached.
//
// A Skeleton is not safe for concurrent use. Set inputs and call Solve from a
// single goroutine.
package skeleton

import (
	"errors"
	"fmt"

	"github.com/relabs-tech/body_tracker/internal/bone"
)

var (
	// ErrUnknownEdge is returned for an edge index outside the skeleton.
	ErrUnknownEdge = errors.New("skeleton: unknown edge")
	// ErrUnknownNode is returned for a node index outside the skeleton.
	ErrUnknownNode = errors.New("skeleton: unknown node")
	// ErrTrackerParent is returned when a tracker edge cannot be attached.
	ErrTrackerParent = errors.New("skeleton: trackers attach to bones only")
)

type Skeleton struct {
	nodes   []*Node
	edges   []*Edge
	boneMap bone.Map[EdgeIndex]
}

// New builds the bone tree with the given lengths (meters). The result has
// bone.NumKinds edges and one more node, and no inputs.
func New(lengths bone.Map[float32]) *Skeleton {
	s := &Skeleton{
		nodes: make([]*Node, 0, bone.NumKinds+1),
		edges: make([]*Edge, 0, bone.NumKinds),
	}

	root := s.addNode(noEdge)
	s.boneMap[bone.Root] = s.addChild(root, BoneKind(bone.Root), lengths[bone.Root])

	stack := []bone.Kind{bone.Root}
	for len(stack) > 0 {
		parent := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		head := s.edges[s.boneMap[parent]].tail
		for _, child := range parent.Children() {
			s.boneMap[child] = s.addChild(head, BoneKind(child), lengths[child])
		}
		stack = append(stack, parent.Children()...)
	}
	return s
}

func (s *Skeleton) addNode(parent EdgeIndex) NodeIndex {
	n := newNode(parent)
	s.nodes = append(s.nodes, &n)
	return NodeIndex(len(s.nodes) - 1)
}

// addChild appends an edge from head to a new tail node.
func (s *Skeleton) addChild(head NodeIndex, kind EdgeKind, length float32) EdgeIndex {
	e := EdgeIndex(len(s.edges))
	tail := s.addNode(e)
	edge := newEdge(kind, length, head, tail)
	s.edges = append(s.edges, &edge)
	s.nodes[head].childEdges = append(s.nodes[head].childEdges, e)
	return e
}

// AttachTracker adds a leaf tracker edge hanging off the tail joint of b.
// offset is the tracker frame relative to the bone frame.
func (s *Skeleton) AttachTracker(t EdgeType, b bone.Kind, length float32, offset LocalRotation) (EdgeIndex, error) {
	if t != EdgeInputTracker && t != EdgeOutputTracker {
		return noEdge, fmt.Errorf("%w: got %v", ErrTrackerParent, t)
	}
	if !b.Valid() {
		return noEdge, fmt.Errorf("%w: %d", bone.ErrUnknownKind, uint8(b))
	}
	head := s.edges[s.boneMap[b]].tail
	e := s.addChild(head, EdgeKind{Type: t, Bone: b}, length)
	s.edges[e].calibRot = offset
	return e, nil
}

// Bone returns the edge of a bone kind.
func (s *Skeleton) Bone(k bone.Kind) *Edge {
	return s.edges[s.boneMap[k]]
}

// BoneEdge returns the index of the edge of a bone kind.
func (s *Skeleton) BoneEdge(k bone.Kind) EdgeIndex { return s.boneMap[k] }

// BoneMap returns the edge index of every bone.
func (s *Skeleton) BoneMap() bone.Map[EdgeIndex] { return s.boneMap }

// Edge returns an edge by index.
func (s *Skeleton) Edge(i EdgeIndex) (*Edge, error) {
	if i < 0 || int(i) >= len(s.edges) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEdge, i)
	}
	return s.edges[i], nil
}

// Node returns a node by index.
func (s *Skeleton) Node(i NodeIndex) (*Node, error) {
	if i < 0 || int(i) >= len(s.nodes) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, i)
	}
	return s.nodes[i], nil
}

// RootNode is the head joint of the root bone.
func (s *Skeleton) RootNode() *Node {
	return s.nodes[s.edges[s.boneMap[bone.Root]].head]
}

// BoneHead returns the joint nearer the root of a bone.
func (s *Skeleton) BoneHead(k bone.Kind) *Node { return s.nodes[s.Bone(k).head] }

// BoneTail returns the joint further from the root of a bone.
func (s *Skeleton) BoneTail(k bone.Kind) *Node { return s.nodes[s.Bone(k).tail] }

func (s *Skeleton) NumNodes() int { return len(s.nodes) }

func (s *Skeleton) NumEdges() int { return len(s.edges) }

// Lengths returns the current bone lengths.
func (s *Skeleton) Lengths() bone.Map[float32] {
	return bone.Transform(s.boneMap, func(_ bone.Kind, e EdgeIndex) float32 {
		return s.edges[e].length
	})
}

// ClearInputs removes every rotation and position constraint.
func (s *Skeleton) ClearInputs() {
	for i := range s.edges {
		s.edges[i].ClearInputRotation()
	}
	for i := range s.nodes {
		s.nodes[i].ClearInputPosition()
	}
}
