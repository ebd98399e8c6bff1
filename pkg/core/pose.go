// pkg/core/pose.go
package core

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Pose is a position and orientation in the world frame.
type Pose struct {
	Position mgl64.Vec3 `json:"position" yaml:"position"`
	Rotation mgl64.Quat `json:"rotation" yaml:"rotation"`
}

// IdentityPose returns the origin pose with identity rotation.
func IdentityPose() Pose {
	return Pose{Rotation: mgl64.QuatIdent()}
}

// NewPose builds a pose from a position and roll/pitch/yaw angles in radians.
func NewPose(x, y, z, roll, pitch, yaw float64) Pose {
	return Pose{
		Position: mgl64.Vec3{x, y, z},
		Rotation: mgl64.AnglesToQuat(yaw, pitch, roll, mgl64.ZYX).Normalize(),
	}
}

// Apply transforms a point from the pose's local frame into the parent frame.
func (p Pose) Apply(v mgl64.Vec3) mgl64.Vec3 {
	return p.Rotation.Rotate(v).Add(p.Position)
}

// Compose returns the pose of child (expressed in p's frame) in p's parent frame.
func (p Pose) Compose(child Pose) Pose {
	return Pose{
		Position: p.Apply(child.Position),
		Rotation: p.Rotation.Mul(child.Rotation).Normalize(),
	}
}

// ApproxEqual reports whether both poses are within tol of each other.
// Rotations q and -q describe the same orientation and compare equal.
func (p Pose) ApproxEqual(o Pose, tol float64) bool {
	if !VecApproxEqual(p.Position, o.Position, tol) {
		return false
	}
	return QuatApproxEqual(p.Rotation, o.Rotation, tol)
}

func (p Pose) String() string {
	return fmt.Sprintf("pos=(%.4f, %.4f, %.4f) rot=(%.4f, %.4f, %.4f, %.4f)",
		p.Position.X(), p.Position.Y(), p.Position.Z(),
		p.Rotation.V.X(), p.Rotation.V.Y(), p.Rotation.V.Z(), p.Rotation.W)
}

// VecApproxEqual compares two vectors componentwise within tol.
func VecApproxEqual(a, b mgl64.Vec3, tol float64) bool {
	for i := 0; i < 3; i++ {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

// QuatApproxEqual compares two orientations within tol.
func QuatApproxEqual(a, b mgl64.Quat, tol float64) bool {
	same := math.Abs(a.W-b.W) <= tol && VecApproxEqual(a.V, b.V, tol)
	if same {
		return true
	}
	return math.Abs(a.W+b.W) <= tol && VecApproxEqual(a.V, b.V.Mul(-1), tol)
}
