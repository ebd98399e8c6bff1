package sdf

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/OCAP2/collision-benchmark/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boxWorldXML = `<?xml version="1.0"?>
<sdf version="1.6">
  <world name="default">
    <physics type="ode">
      <max_step_size>0.002</max_step_size>
    </physics>
    <gravity>0 0 -9.81</gravity>
    <model name="box">
      <static>true</static>
      <pose>1 2 3 0 0 0</pose>
      <link name="link">
        <collision name="collision">
          <geometry><box><size>1 2 3</size></box></geometry>
        </collision>
        <visual name="visual">
          <geometry><box><size>1 2 3</size></box></geometry>
        </visual>
      </link>
    </model>
  </world>
</sdf>`

const sphereModelYAML = `
version: "1.6"
model:
  name: ball
  pose: 0 0 1 0 0 0
  links:
    - name: link
      collisions:
        - name: collision
          geometry:
            sphere:
              radius: 0.5
`

func TestParse_XMLWorld(t *testing.T) {
	doc, err := Parse([]byte(boxWorldXML))
	require.NoError(t, err)

	w, err := doc.RequireWorld()
	require.NoError(t, err)
	assert.Equal(t, "default", w.Name)
	require.NotNil(t, w.Physics)
	assert.Equal(t, "ode", w.Physics.Type)
	assert.InDelta(t, 0.002, w.Physics.MaxStepSize, 1e-12)
	require.NotNil(t, w.Gravity)
	assert.Equal(t, Vector{0, 0, -9.81}, *w.Gravity)

	require.Len(t, w.Models, 1)
	m := w.Models[0]
	assert.Equal(t, "box", m.Name)
	assert.True(t, m.Static)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, m.Pose.Core().Position)
	require.Len(t, m.Links, 1)
	require.Len(t, m.Links[0].Collisions, 1)
	assert.Equal(t, Vector{1, 2, 3}, m.Links[0].Collisions[0].Geometry.Box.Size)

	_, err = doc.RequireModel()
	assert.ErrorIs(t, err, core.ErrLoadFailed)
}

func TestParse_YAMLModel(t *testing.T) {
	doc, err := Parse([]byte(sphereModelYAML))
	require.NoError(t, err)

	m, err := doc.RequireModel()
	require.NoError(t, err)
	assert.Equal(t, "ball", m.Name)
	assert.Equal(t, mgl64.Vec3{0, 0, 1}, m.Pose.Core().Position)
	assert.InDelta(t, 0.5, m.Links[0].Collisions[0].Geometry.Sphere.Radius, 1e-12)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", "   "},
		{"broken xml", "<sdf><world name='x'></sdf>"},
		{"no root element", `<sdf version="1.6"></sdf>`},
		{"bad pose", `<sdf><model name="m"><pose>1 2</pose></model></sdf>`},
		{"broken yaml", "model: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			assert.ErrorIs(t, err, core.ErrLoadFailed)
		})
	}
}

func TestMarshal_RoundTripBothFormats(t *testing.T) {
	doc, err := Parse([]byte(boxWorldXML))
	require.NoError(t, err)

	for _, format := range []Format{FormatXML, FormatYAML} {
		out, err := Marshal(doc, format)
		require.NoError(t, err)
		assert.Equal(t, format, DetectFormat(out))

		again, err := Parse(out)
		require.NoError(t, err)
		assert.Equal(t, doc.World, again.World)
	}
}

func TestFingerprint(t *testing.T) {
	a, err := Parse([]byte(boxWorldXML))
	require.NoError(t, err)
	b, err := Parse([]byte(boxWorldXML))
	require.NoError(t, err)

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)

	b.World.Models[0].Name = "other"
	fc, err := Fingerprint(b)
	require.NoError(t, err)
	assert.NotEqual(t, fa, fc)
}

func TestPose_CoreRoundTrip(t *testing.T) {
	in := core.NewPose(1, -2, 3, 0.1, -0.2, 0.3)
	p := NewPose(in)
	assert.InDelta(t, 0.1, p[3], 1e-9)
	assert.InDelta(t, -0.2, p[4], 1e-9)
	assert.InDelta(t, 0.3, p[5], 1e-9)
	assert.True(t, in.ApproxEqual(p.Core(), 1e-9))

	var nilPose *Pose
	assert.Equal(t, core.IdentityPose(), nilPose.Core())
}

func TestGeometry_Validate(t *testing.T) {
	assert.NoError(t, Geometry{Sphere: &Sphere{Radius: 1}}.Validate())
	assert.Error(t, Geometry{}.Validate())
	assert.Error(t, Geometry{Sphere: &Sphere{Radius: 1}, Box: &Box{Size: Vector{1, 1, 1}}}.Validate())
	assert.Error(t, Geometry{Box: &Box{Size: Vector{1, 0, 1}}}.Validate())
	assert.Error(t, Geometry{Cylinder: &Cylinder{Radius: 1, Length: math.Inf(-1)}}.Validate())
}

func TestFinder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ball"), 0755))
	modelPath := filepath.Join(dir, "ball", "model.sdf")
	require.NoError(t, os.WriteFile(modelPath, []byte(sphereModelYAML), 0644))
	worldPath := filepath.Join(dir, "empty.world")
	require.NoError(t, os.WriteFile(worldPath, []byte(boxWorldXML), 0644))

	f := NewFinder(dir)

	tests := []struct {
		resource string
		want     string
	}{
		{"model://ball", modelPath},
		{"ball", modelPath},
		{worldPath, worldPath},
		{"empty.world", worldPath},
	}
	for _, tt := range tests {
		t.Run(tt.resource, func(t *testing.T) {
			got, err := f.Find(tt.resource)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := f.Find("model://missing")
	assert.ErrorIs(t, err, core.ErrResourceNotFound)
	_, err = f.Find("")
	assert.ErrorIs(t, err, core.ErrResourceNotFound)
	_, _, err = f.Read("nope/none.world")
	assert.ErrorIs(t, err, core.ErrResourceNotFound)
}
