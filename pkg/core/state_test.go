package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicState_UpdatePreservesUnsetFields(t *testing.T) {
	var s BasicState
	s.SetPosition(mgl64.Vec3{1, 2, 3})
	s.SetRotation(mgl64.QuatIdent())

	var other BasicState
	other.SetLinearVel(mgl64.Vec3{0, 0, 1})

	s.Update(other)

	assert.True(t, s.PosEnabled())
	assert.True(t, s.RotEnabled())
	assert.True(t, s.LinearVelEnabled)
	assert.False(t, s.AngularVelEnabled)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, s.Position)
	assert.Equal(t, mgl64.Vec3{0, 0, 1}, s.LinearVel)
}

func TestBasicState_UpdateOverwritesEnabledFields(t *testing.T) {
	s := NewBasicStateAt(1, 1, 1)
	s.Update(NewBasicStateAt(5, 6, 7))
	assert.Equal(t, mgl64.Vec3{5, 6, 7}, s.Position)
	assert.False(t, s.RotEnabled())
}

func TestWorldState_Diff(t *testing.T) {
	base := WorldState{
		SimTime: 1.5,
		Models: map[string]ModelState{
			"box": {Name: "box", Pose: IdentityPose(), LinearVel: mgl64.Vec3{1, 0, 0}},
		},
	}

	t.Run("equal", func(t *testing.T) {
		assert.True(t, base.Equal(base, 1e-3, true))
	})

	t.Run("pose within tolerance", func(t *testing.T) {
		other := cloneState(base)
		m := other.Models["box"]
		m.Pose.Position = mgl64.Vec3{0.0005, 0, 0}
		other.Models["box"] = m
		assert.True(t, base.Equal(other, 1e-3, true))
	})

	t.Run("pose outside tolerance", func(t *testing.T) {
		other := cloneState(base)
		m := other.Models["box"]
		m.Pose.Position = mgl64.Vec3{0.01, 0, 0}
		other.Models["box"] = m
		assert.Contains(t, base.Diff(other, 1e-3, false), "pose")
	})

	t.Run("dynamics ignored unless requested", func(t *testing.T) {
		other := cloneState(base)
		m := other.Models["box"]
		m.LinearVel = mgl64.Vec3{}
		other.Models["box"] = m
		assert.True(t, base.Equal(other, 1e-3, false))
		assert.False(t, base.Equal(other, 1e-3, true))
	})

	t.Run("missing model", func(t *testing.T) {
		other := cloneState(base)
		delete(other.Models, "box")
		other.Models["sphere"] = ModelState{Name: "sphere"}
		assert.Contains(t, base.Diff(other, 1e-3, false), "missing")
	})

	t.Run("sim time", func(t *testing.T) {
		other := cloneState(base)
		other.SimTime = 2
		assert.Contains(t, base.Diff(other, 1e-3, false), "sim time")
	})
}

func TestQuatApproxEqual_OppositeSign(t *testing.T) {
	q := mgl64.AnglesToQuat(0.3, 0.2, 0.1, mgl64.ZYX)
	neg := mgl64.Quat{W: -q.W, V: q.V.Mul(-1)}
	assert.True(t, QuatApproxEqual(q, neg, 1e-9))
}

func TestAABB_Transform(t *testing.T) {
	local := AABB{Min: mgl64.Vec3{-1, -2, -3}, Max: mgl64.Vec3{1, 2, 3}, InLocalFrame: true}

	moved := local.Transform(Pose{Position: mgl64.Vec3{10, 0, 0}, Rotation: mgl64.QuatIdent()})
	assert.False(t, moved.InLocalFrame)
	assert.True(t, VecApproxEqual(mgl64.Vec3{9, -2, -3}, moved.Min, 1e-9))
	assert.True(t, VecApproxEqual(mgl64.Vec3{11, 2, 3}, moved.Max, 1e-9))

	rotated := local.Transform(NewPose(0, 0, 0, 0, 0, math.Pi/2))
	assert.True(t, VecApproxEqual(mgl64.Vec3{-2, -1, -3}, rotated.Min, 1e-9))
	assert.True(t, VecApproxEqual(mgl64.Vec3{2, 1, 3}, rotated.Max, 1e-9))

	global := AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 1, 1}}
	assert.Equal(t, global, global.Transform(NewPose(5, 5, 5, 0, 0, 0)))
}

func TestAABB_SizeExpandEqual(t *testing.T) {
	b := AABB{Min: mgl64.Vec3{-1, -1, -1}, Max: mgl64.Vec3{1, 1, 1}}
	require.True(t, b.Valid())
	assert.Equal(t, mgl64.Vec3{2, 2, 2}, b.Size())
	assert.Equal(t, mgl64.Vec3{0, 0, 0}, b.Center())

	grown := b.Expand(mgl64.Vec3{0.5, 0.5, 0.5})
	assert.Equal(t, mgl64.Vec3{-1.5, -1.5, -1.5}, grown.Min)
	assert.True(t, b.Equal(AABB{Min: mgl64.Vec3{-1.0001, -1, -1}, Max: b.Max}, 1e-3))
	assert.False(t, b.Equal(AABB{Min: b.Min, Max: b.Max, InLocalFrame: true}, 1e-3))
	assert.False(t, EmptyAABB().Valid())
}

func TestContactInfo(t *testing.T) {
	c := ContactInfo{
		ModelA: "a",
		ModelB: "b",
		Points: []ContactPoint{{Depth: 0.1}, {Depth: -0.3}},
	}
	assert.True(t, c.Involves("b", "a"))
	assert.False(t, c.Involves("a", "c"))
	assert.InDelta(t, 0.3, c.MaxDepth(), 1e-12)
}

func cloneState(s WorldState) WorldState {
	out := s
	out.Models = make(map[string]ModelState, len(s.Models))
	for k, v := range s.Models {
		out.Models[k] = v
	}
	return out
}
