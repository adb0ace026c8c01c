package skeleton

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/body_tracker/internal/bone"
)

func TestNew_Lengths(t *testing.T) {
	s := New(bone.Fill[float32](0.3))
	for k := range bone.All() {
		assert.Equal(t, float32(0.3), s.Bone(k).Length(), "%v", k)
	}

	lengths := bone.Fill[float32](0)
	lengths[bone.FootL] = 4
	s = New(lengths)
	assert.Equal(t, lengths, s.Lengths())
}

func TestNew_IsATree(t *testing.T) {
	s := New(bone.Fill[float32](1))
	require.Equal(t, bone.NumKinds+1, s.NumNodes())
	require.Equal(t, bone.NumKinds, s.NumEdges())

	seen := make(map[EdgeIndex]bool)
	for k, e := range s.BoneMap().All() {
		assert.False(t, seen[e], "edge %d used twice", e)
		seen[e] = true

		edge := s.Bone(k)
		assert.Equal(t, BoneKind(k), edge.Kind())

		head, err := s.Node(edge.Head())
		require.NoError(t, err)
		parentEdge, hasParent := head.ParentEdge()
		if parent, ok := k.Parent(); ok {
			require.True(t, hasParent, "%v", k)
			assert.Equal(t, s.BoneEdge(parent), parentEdge, "%v", k)
		} else {
			assert.False(t, hasParent)
			assert.Same(t, head, s.RootNode())
		}

		tail, err := s.Node(edge.Tail())
		require.NoError(t, err)
		assert.Len(t, tail.ChildEdges(), len(k.Children()))
	}
}

func TestEdgeAndNode_Bounds(t *testing.T) {
	s := New(bone.Fill[float32](1))
	_, err := s.Edge(EdgeIndex(bone.NumKinds))
	assert.ErrorIs(t, err, ErrUnknownEdge)
	_, err = s.Edge(-1)
	assert.ErrorIs(t, err, ErrUnknownEdge)
	_, err = s.Node(NodeIndex(bone.NumKinds + 1))
	assert.ErrorIs(t, err, ErrUnknownNode)

	e, err := s.Edge(s.BoneEdge(bone.Hip))
	require.NoError(t, err)
	assert.Same(t, s.Bone(bone.Hip), e)
}

func TestInputs(t *testing.T) {
	s := New(bone.Fill[float32](1))
	e := s.Bone(bone.ThighL)

	_, ok := e.InputRotation()
	assert.False(t, ok)
	r := GlobalRotation(mgl32.QuatRotate(0.5, mgl32.Vec3{1, 0, 0}))
	e.SetInputRotation(r)
	got, ok := e.InputRotation()
	assert.True(t, ok)
	assert.Equal(t, r, got)

	n := s.RootNode()
	n.SetInputPosition(GlobalPosition{1, 2, 3})
	p, ok := n.InputPosition()
	assert.True(t, ok)
	assert.Equal(t, GlobalPosition{1, 2, 3}, p)

	s.ClearInputs()
	_, ok = e.InputRotation()
	assert.False(t, ok)
	_, ok = n.InputPosition()
	assert.False(t, ok)
}

func TestAttachTracker(t *testing.T) {
	s := New(bone.Fill[float32](0.3))

	_, err := s.AttachTracker(EdgeBone, bone.WristL, 0.1, IdentityLocal())
	assert.ErrorIs(t, err, ErrTrackerParent)
	_, err = s.AttachTracker(EdgeInputTracker, bone.Kind(99), 0.1, IdentityLocal())
	assert.ErrorIs(t, err, bone.ErrUnknownKind)

	e, err := s.AttachTracker(EdgeInputTracker, bone.WristL, 0.1, IdentityLocal())
	require.NoError(t, err)
	assert.Equal(t, EdgeIndex(bone.NumKinds), e)
	assert.Equal(t, bone.NumKinds+2, s.NumNodes())

	edge, err := s.Edge(e)
	require.NoError(t, err)
	assert.Equal(t, EdgeKind{Type: EdgeInputTracker, Bone: bone.WristL}, edge.Kind())
	assert.Equal(t, s.Bone(bone.WristL).Tail(), edge.Head())
	assert.Equal(t, "input_tracker", edge.Kind().String())
	assert.Equal(t, "bone(Hip)", BoneKind(bone.Hip).String())
}

func TestAttachTracker_KeepsPointers(t *testing.T) {
	s := New(bone.Fill[float32](0.3))
	hip := s.Bone(bone.Hip)
	root := s.RootNode()
	wrist := s.BoneTail(bone.WristL)

	for range 8 {
		_, err := s.AttachTracker(EdgeInputTracker, bone.WristL, 0.1, IdentityLocal())
		require.NoError(t, err)
	}

	hip.SetLength(9)
	assert.Equal(t, float32(9), s.Bone(bone.Hip).Length())

	root.SetInputPosition(GlobalPosition{1, 2, 3})
	_, ok := s.RootNode().InputPosition()
	assert.True(t, ok)

	assert.Len(t, wrist.ChildEdges(), 8)
	assert.Same(t, wrist, s.BoneTail(bone.WristL))
}
