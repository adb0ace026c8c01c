package skeleton

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/body_tracker/internal/bone"
)

const boneLength = 0.3

func assertVec(t *testing.T, want mgl32.Vec3, got GlobalPosition, msgAndArgs ...interface{}) {
	t.Helper()
	g := got.Vec3()
	assert.InDeltaSlice(t, want[:], g[:], 1e-5, msgAndArgs...)
}

// expectedTail walks the calibration pose from the root to the tail of k.
func expectedTail(k bone.Kind, length float32) mgl32.Vec3 {
	var p mgl32.Vec3
	for cur, ok := k, true; ok; cur, ok = cur.Parent() {
		p = p.Add(cur.CalibrationRotation().Rotate(bone.Down).Mul(length))
	}
	return p
}

func TestSolve_NoRootNode(t *testing.T) {
	s := New(bone.Fill[float32](boneLength))
	s.Bone(bone.Hip).SetInputRotation(IdentityGlobal())

	err := s.Solve()
	assert.ErrorIs(t, err, ErrNoRootNode)
	assert.Equal(t, IdentityGlobal(), s.Bone(bone.Hip).OutputRotation())
	assert.Equal(t, GlobalPosition{}, s.BoneTail(bone.Hip).OutputPosition())
}

func TestSolve_CalibrationPose(t *testing.T) {
	s := New(bone.Fill[float32](boneLength))
	s.RootNode().SetInputPosition(GlobalPosition{})
	require.NoError(t, s.Solve())

	for k := range bone.All() {
		rot := s.Bone(k).OutputRotation().Quat()
		assert.True(t, rot.OrientationEqualThreshold(k.CalibrationRotation(), 1e-6), "%v", k)
		assertVec(t, expectedTail(k, boneLength), s.BoneTail(k).OutputPosition(), "%v", k)
	}

	assertVec(t, mgl32.Vec3{0, 0, 0}, s.RootNode().OutputPosition())
	assertVec(t, mgl32.Vec3{0, -1.2, 0}, s.BoneTail(bone.Hip).OutputPosition())
	assertVec(t, mgl32.Vec3{0, -1.8, -0.3}, s.BoneTail(bone.FootL).OutputPosition())
	assertVec(t, mgl32.Vec3{0, -1.2, 0}, s.BoneTail(bone.WristR).OutputPosition())
}

func TestSolve_Deterministic(t *testing.T) {
	s := New(bone.Fill[float32](boneLength))
	s.RootNode().SetInputPosition(GlobalPosition{0.1, 1.7, -0.2})
	s.Bone(bone.Chest).SetInputRotation(GlobalRotation(mgl32.QuatRotate(0.3, mgl32.Vec3{1, 0, 0})))
	s.Bone(bone.UpperArmR).SetInputRotation(GlobalRotation(mgl32.QuatRotate(1.1, mgl32.Vec3{0, 0, 1})))

	require.NoError(t, s.Solve())
	first := s.Frame()
	require.NoError(t, s.Solve())
	assert.Equal(t, first, s.Frame())
}

func TestSolve_InputRotationPropagates(t *testing.T) {
	s := New(bone.Fill[float32](boneLength))
	s.RootNode().SetInputPosition(GlobalPosition{})

	// Left leg raised sideways, pointing along +X.
	raise := mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 0, 1})
	s.Bone(bone.ThighL).SetInputRotation(GlobalRotation(raise))
	require.NoError(t, s.Solve())

	assert.Equal(t, GlobalRotation(raise), s.Bone(bone.ThighL).OutputRotation())
	assert.True(t, s.Bone(bone.AnkleL).OutputRotation().Quat().OrientationEqualThreshold(raise, 1e-6))

	hip := mgl32.Vec3{0, -1.2, 0}
	assertVec(t, hip.Add(mgl32.Vec3{0.3, 0, 0}), s.BoneTail(bone.ThighL).OutputPosition())
	assertVec(t, hip.Add(mgl32.Vec3{0.6, 0, 0}), s.BoneTail(bone.AnkleL).OutputPosition())

	// The foot keeps its calibrated offset to the ankle.
	wantFoot := raise.Mul(bone.FootL.CalibrationRotation())
	assert.True(t, s.Bone(bone.FootL).OutputRotation().Quat().OrientationEqualThreshold(wantFoot, 1e-6))

	// The other leg is unaffected.
	assertVec(t, mgl32.Vec3{0, -1.5, 0}, s.BoneTail(bone.ThighR).OutputPosition())
}

func TestSolve_AnchoredAtLeaf(t *testing.T) {
	s := New(bone.Fill[float32](boneLength))
	s.BoneTail(bone.FootL).SetInputPosition(GlobalPosition{1, 0, 0})
	require.NoError(t, s.Solve())

	assertVec(t, mgl32.Vec3{1, 0, 0}, s.BoneTail(bone.FootL).OutputPosition())
	assertVec(t, mgl32.Vec3{1, 1.8, 0.3}, s.RootNode().OutputPosition())
	assertVec(t, mgl32.Vec3{1, 0, 0.3}, s.BoneTail(bone.AnkleR).OutputPosition())
	assertVec(t, mgl32.Vec3{1, 0, 0}, s.BoneTail(bone.FootR).OutputPosition())
}

func TestSolve_MultipleAnchorsKeepInputs(t *testing.T) {
	s := New(bone.Fill[float32](boneLength))
	s.RootNode().SetInputPosition(GlobalPosition{})
	// Inconsistent with the bone lengths on purpose.
	s.BoneTail(bone.Hip).SetInputPosition(GlobalPosition{0, -1, 0})
	require.NoError(t, s.Solve())

	assertVec(t, mgl32.Vec3{0, 0, 0}, s.RootNode().OutputPosition())
	assertVec(t, mgl32.Vec3{0, -1, 0}, s.BoneTail(bone.Hip).OutputPosition())
	assertVec(t, mgl32.Vec3{0, -1.3, 0}, s.BoneTail(bone.ThighL).OutputPosition())
}

func TestSolve_Trackers(t *testing.T) {
	s := New(bone.Fill[float32](boneLength))
	out, err := s.AttachTracker(EdgeOutputTracker, bone.WristL, 0.1, IdentityLocal())
	require.NoError(t, err)
	in, err := s.AttachTracker(EdgeInputTracker, bone.Waist, 0.05, IdentityLocal())
	require.NoError(t, err)

	// A positional tracker on the waist anchors the skeleton.
	inEdge, _ := s.Edge(in)
	tracker, _ := s.Node(inEdge.Tail())
	tracker.SetInputPosition(GlobalPosition{0, 1, 0})
	require.NoError(t, s.Solve())

	waistTail := mgl32.Vec3{0, 1.05, 0}
	assertVec(t, waistTail, s.BoneTail(bone.Waist).OutputPosition())
	assertVec(t, waistTail.Add(mgl32.Vec3{0, 0.9, 0}), s.RootNode().OutputPosition())

	f := s.Frame()
	require.Len(t, f.Trackers, 2)
	assert.Equal(t, out, f.Trackers[0].Edge)
	assert.Equal(t, "output_tracker", f.Trackers[0].Type)
	assert.Equal(t, bone.WristL, f.Trackers[0].Bone)
	wrist := s.BoneTail(bone.WristL).OutputPosition().Vec3()
	assert.InDelta(t, wrist[1]-0.1, f.Trackers[0].Position[1], 1e-5)
}

func TestFrame(t *testing.T) {
	s := New(bone.Fill[float32](boneLength))
	s.RootNode().SetInputPosition(GlobalPosition{})
	s.Bone(bone.Neck).SetInputRotation(IdentityGlobal())
	require.NoError(t, s.Solve())

	f := s.Frame()
	require.Len(t, f.Bones, bone.NumKinds)
	assert.Empty(t, f.Trackers)

	neck := f.Bones[bone.Neck]
	assert.True(t, neck.Tracked)
	assert.False(t, f.Bones[bone.Hip].Tracked)
	assert.Equal(t, Quat{1, 0, 0, 0}, neck.Rotation)
	assert.Equal(t, Vec{0, 0, 0}, neck.Head)
	assert.InDelta(t, -0.3, neck.Tail[1], 1e-6)
	assert.Equal(t, float32(boneLength), neck.Length)
	assert.Equal(t, mgl32.QuatIdent(), neck.Rotation.ToQuat())
}
