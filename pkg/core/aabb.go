// pkg/core/aabb.go
package core

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB is an axis-aligned bounding box. InLocalFrame is set when the extents
// are relative to the model frame and must be transformed before comparing
// boxes from different worlds.
type AABB struct {
	Min          mgl64.Vec3 `json:"min"`
	Max          mgl64.Vec3 `json:"max"`
	InLocalFrame bool       `json:"inLocalFrame"`
}

// EmptyAABB returns an inverted box that any point will grow.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: mgl64.Vec3{inf, inf, inf},
		Max: mgl64.Vec3{-inf, -inf, -inf},
	}
}

// Valid reports whether min <= max componentwise.
func (b AABB) Valid() bool {
	return b.Min.X() <= b.Max.X() && b.Min.Y() <= b.Max.Y() && b.Min.Z() <= b.Max.Z()
}

func (b AABB) Size() mgl64.Vec3 {
	return b.Max.Sub(b.Min)
}

func (b AABB) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Expand grows the box by v on each side.
func (b AABB) Expand(v mgl64.Vec3) AABB {
	return AABB{Min: b.Min.Sub(v), Max: b.Max.Add(v), InLocalFrame: b.InLocalFrame}
}

// AddPoint grows the box to contain p.
func (b *AABB) AddPoint(p mgl64.Vec3) {
	for i := 0; i < 3; i++ {
		b.Min[i] = math.Min(b.Min[i], p[i])
		b.Max[i] = math.Max(b.Max[i], p[i])
	}
}

// Union grows the box to contain o.
func (b *AABB) Union(o AABB) {
	b.AddPoint(o.Min)
	b.AddPoint(o.Max)
}

// Corners returns the eight corner points.
func (b AABB) Corners() [8]mgl64.Vec3 {
	var c [8]mgl64.Vec3
	for i := 0; i < 8; i++ {
		for axis := 0; axis < 3; axis++ {
			if i&(1<<axis) != 0 {
				c[i][axis] = b.Max[axis]
			} else {
				c[i][axis] = b.Min[axis]
			}
		}
	}
	return c
}

// Transform returns the world-frame box enclosing b placed at pose.
// Boxes already in the global frame are returned unchanged.
func (b AABB) Transform(pose Pose) AABB {
	if !b.InLocalFrame {
		return b
	}
	out := EmptyAABB()
	for _, c := range b.Corners() {
		out.AddPoint(pose.Apply(c))
	}
	return out
}

// Equal compares both corners within tol. Frames must match.
func (b AABB) Equal(o AABB, tol float64) bool {
	return b.InLocalFrame == o.InLocalFrame &&
		VecApproxEqual(b.Min, o.Min, tol) &&
		VecApproxEqual(b.Max, o.Max, tol)
}

func (b AABB) String() string {
	return fmt.Sprintf("[(%.4f, %.4f, %.4f) -- (%.4f, %.4f, %.4f)]",
		b.Min.X(), b.Min.Y(), b.Min.Z(), b.Max.X(), b.Max.Y(), b.Max.Z())
}
