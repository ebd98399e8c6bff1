package loader

import (
	"fmt"

	"github.com/OCAP2/collision-benchmark/internal/sdf"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

// Shape is a single primitive with a pose relative to its link.
type Shape struct {
	Pose     core.Pose
	geometry sdf.Geometry
}

// NewBox creates a box with the given edge lengths.
func NewBox(x, y, z float64) *Shape {
	return &Shape{
		Pose:     core.IdentityPose(),
		geometry: sdf.Geometry{Box: &sdf.Box{Size: sdf.Vector{x, y, z}}},
	}
}

// NewSphere creates a sphere.
func NewSphere(radius float64) *Shape {
	return &Shape{
		Pose:     core.IdentityPose(),
		geometry: sdf.Geometry{Sphere: &sdf.Sphere{Radius: radius}},
	}
}

// NewCylinder creates a cylinder along the local z axis.
func NewCylinder(radius, length float64) *Shape {
	return &Shape{
		Pose:     core.IdentityPose(),
		geometry: sdf.Geometry{Cylinder: &sdf.Cylinder{Radius: radius, Length: length}},
	}
}

// UnitShapes lists the names accepted by UnitShape.
var UnitShapes = []string{"sphere", "cylinder", "cube"}

// UnitShape returns the primitive of the given name with radius 1, length 2
// and edge length 2.
func UnitShape(name string) (*Shape, error) {
	switch name {
	case "sphere":
		return NewSphere(1), nil
	case "cylinder":
		return NewCylinder(1, 2), nil
	case "cube":
		return NewBox(2, 2, 2), nil
	default:
		return nil, fmt.Errorf("unknown shape %q, expected one of %v", name, UnitShapes)
	}
}

// Geometry returns the scene description of the primitive.
func (s *Shape) Geometry() sdf.Geometry {
	return s.geometry
}

// WithPose returns a copy of the shape placed at pose.
func (s *Shape) WithPose(pose core.Pose) *Shape {
	c := *s
	c.Pose = pose
	return &c
}
