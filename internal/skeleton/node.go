// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package skeleton

// NodeIndex addresses a joint within one Skeleton.
type NodeIndex int

// Node is a joint. Only the solver writes the output position.
type Node struct {
	parentEdge EdgeIndex
	childEdges []EdgeIndex

	inputPos    GlobalPosition
	hasInputPos bool
	outputPos   GlobalPosition
}

func newNode(parent EdgeIndex) Node {
	return Node{parentEdge: parent}
}

// ParentEdge returns the edge ending at this node. ok is false for the root.
func (n *Node) ParentEdge() (e EdgeIndex, ok bool) {
	return n.parentEdge, n.parentEdge != noEdge
}

// ChildEdges returns the edges starting at this node. The slice must not be
// modified.
func (n *Node) ChildEdges() []EdgeIndex { return n.childEdges }

// SetInputPosition constrains the position of this joint, typically from a
// positional tracker. Constrained nodes anchor the solve.
func (n *Node) SetInputPosition(p GlobalPosition) {
	n.inputPos = p
	n.hasInputPos = true
}

// ClearInputPosition removes the position constraint.
func (n *Node) ClearInputPosition() {
	n.inputPos = GlobalPosition{}
	n.hasInputPos = false
}

// InputPosition returns the position constraint, if any.
func (n *Node) InputPosition() (GlobalPosition, bool) {
	return n.inputPos, n.hasInputPos
}

// OutputPosition returns the last solved position.
func (n *Node) OutputPosition() GlobalPosition { return n.outputPos }
