// Package sdf reads and writes the declarative scene description used to
// load worlds and models: world -> model -> link -> {collision, visual}.
// The same tree is accepted as XML (SDF style) or YAML.
package sdf

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/OCAP2/collision-benchmark/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

// Version is written into every document produced by this package.
const Version = "1.6"

// Document is the root <sdf> element. It holds either a world or a model.
type Document struct {
	XMLName xml.Name `xml:"sdf" yaml:"-"`
	Version string   `xml:"version,attr" yaml:"version"`
	World   *World   `xml:"world,omitempty" yaml:"world,omitempty"`
	Model   *Model   `xml:"model,omitempty" yaml:"model,omitempty"`
}

// World is a complete scene with its physics settings.
type World struct {
	Name     string    `xml:"name,attr" yaml:"name"`
	Physics  *Physics  `xml:"physics,omitempty" yaml:"physics,omitempty"`
	Gravity  *Vector   `xml:"gravity,omitempty" yaml:"gravity,omitempty"`
	Models   []Model   `xml:"model" yaml:"models,omitempty"`
	Includes []Include `xml:"include" yaml:"includes,omitempty"`
}

// Physics selects and parameterizes the engine of a world.
type Physics struct {
	Name               string  `xml:"name,attr,omitempty" yaml:"name,omitempty"`
	Type               string  `xml:"type,attr" yaml:"type"`
	MaxStepSize        float64 `xml:"max_step_size,omitempty" yaml:"max_step_size,omitempty"`
	RealTimeUpdateRate float64 `xml:"real_time_update_rate,omitempty" yaml:"real_time_update_rate,omitempty"`
}

// Include pulls a model resource into a world.
type Include struct {
	URI  string `xml:"uri" yaml:"uri"`
	Name string `xml:"name,omitempty" yaml:"name,omitempty"`
	Pose *Pose  `xml:"pose,omitempty" yaml:"pose,omitempty"`
}

// Model is a named rigid body made of links.
type Model struct {
	Name   string `xml:"name,attr" yaml:"name"`
	Static bool   `xml:"static,omitempty" yaml:"static,omitempty"`
	Pose   *Pose  `xml:"pose,omitempty" yaml:"pose,omitempty"`
	Links  []Link `xml:"link" yaml:"links"`
}

type Link struct {
	Name       string      `xml:"name,attr" yaml:"name"`
	Pose       *Pose       `xml:"pose,omitempty" yaml:"pose,omitempty"`
	Collisions []Collision `xml:"collision" yaml:"collisions,omitempty"`
	Visuals    []Visual    `xml:"visual" yaml:"visuals,omitempty"`
}

type Collision struct {
	Name     string   `xml:"name,attr" yaml:"name"`
	Pose     *Pose    `xml:"pose,omitempty" yaml:"pose,omitempty"`
	Geometry Geometry `xml:"geometry" yaml:"geometry"`
}

type Visual struct {
	Name     string    `xml:"name,attr" yaml:"name"`
	Pose     *Pose     `xml:"pose,omitempty" yaml:"pose,omitempty"`
	Geometry Geometry  `xml:"geometry" yaml:"geometry"`
	Material *Material `xml:"material,omitempty" yaml:"material,omitempty"`
}

// Material colors are "r g b a" strings.
type Material struct {
	Ambient string `xml:"ambient,omitempty" yaml:"ambient,omitempty"`
	Diffuse string `xml:"diffuse,omitempty" yaml:"diffuse,omitempty"`
}

// Geometry holds exactly one primitive.
type Geometry struct {
	Box      *Box      `xml:"box,omitempty" yaml:"box,omitempty"`
	Sphere   *Sphere   `xml:"sphere,omitempty" yaml:"sphere,omitempty"`
	Cylinder *Cylinder `xml:"cylinder,omitempty" yaml:"cylinder,omitempty"`
}

type Box struct {
	Size Vector `xml:"size" yaml:"size"`
}

type Sphere struct {
	Radius float64 `xml:"radius" yaml:"radius"`
}

// Cylinder is aligned with the local z axis.
type Cylinder struct {
	Radius float64 `xml:"radius" yaml:"radius"`
	Length float64 `xml:"length" yaml:"length"`
}

// Validate checks that exactly one positive-sized primitive is set.
func (g Geometry) Validate() error {
	n := 0
	if g.Box != nil {
		n++
		s := g.Box.Size
		if s[0] <= 0 || s[1] <= 0 || s[2] <= 0 {
			return fmt.Errorf("box size must be positive, got %v", s)
		}
	}
	if g.Sphere != nil {
		n++
		if g.Sphere.Radius <= 0 {
			return fmt.Errorf("sphere radius must be positive, got %f", g.Sphere.Radius)
		}
	}
	if g.Cylinder != nil {
		n++
		if g.Cylinder.Radius <= 0 || g.Cylinder.Length <= 0 {
			return fmt.Errorf("cylinder radius and length must be positive, got %f, %f", g.Cylinder.Radius, g.Cylinder.Length)
		}
	}
	if n != 1 {
		return fmt.Errorf("geometry must contain exactly one primitive, found %d", n)
	}
	return nil
}

// Pose is "x y z roll pitch yaw" in meters and radians.
type Pose [6]float64

// NewPose converts a core pose to its text form.
func NewPose(p core.Pose) *Pose {
	yaw, pitch, roll := quatToEuler(p.Rotation)
	return &Pose{p.Position.X(), p.Position.Y(), p.Position.Z(), roll, pitch, yaw}
}

// Core returns the pose as a core pose. A nil pose is the identity.
func (p *Pose) Core() core.Pose {
	if p == nil {
		return core.IdentityPose()
	}
	return core.NewPose(p[0], p[1], p[2], p[3], p[4], p[5])
}

func (p Pose) MarshalText() ([]byte, error) {
	return []byte(formatFloats(p[:])), nil
}

func (p *Pose) UnmarshalText(text []byte) error {
	vals, err := parseFloats(string(text), 6)
	if err != nil {
		return fmt.Errorf("invalid pose %q: %w", text, err)
	}
	copy(p[:], vals)
	return nil
}

// Vector is "x y z".
type Vector [3]float64

func (v Vector) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{v[0], v[1], v[2]}
}

func (v Vector) MarshalText() ([]byte, error) {
	return []byte(formatFloats(v[:])), nil
}

func (v *Vector) UnmarshalText(text []byte) error {
	vals, err := parseFloats(string(text), 3)
	if err != nil {
		return fmt.Errorf("invalid vector %q: %w", text, err)
	}
	copy(v[:], vals)
	return nil
}

func formatFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

func parseFloats(s string, n int) ([]float64, error) {
	fields := strings.Fields(s)
	if len(fields) != n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
