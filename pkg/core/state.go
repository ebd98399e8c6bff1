// pkg/core/state.go
package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// BasicState is the minimal engine-agnostic state of a model. Every field has
// an enabled flag; fields that are not enabled are never written to a world.
type BasicState struct {
	Position   mgl64.Vec3 `json:"position"`
	Rotation   mgl64.Quat `json:"rotation"`
	LinearVel  mgl64.Vec3 `json:"linearVel"`
	AngularVel mgl64.Vec3 `json:"angularVel"`

	PositionEnabled   bool `json:"positionEnabled"`
	RotationEnabled   bool `json:"rotationEnabled"`
	LinearVelEnabled  bool `json:"linearVelEnabled"`
	AngularVelEnabled bool `json:"angularVelEnabled"`
}

// NewBasicStateAt returns a state with only the position set.
func NewBasicStateAt(x, y, z float64) BasicState {
	var s BasicState
	s.SetPosition(mgl64.Vec3{x, y, z})
	return s
}

// SetPosition sets and enables the position.
func (s *BasicState) SetPosition(p mgl64.Vec3) {
	s.Position = p
	s.PositionEnabled = true
}

// SetRotation sets and enables the rotation.
func (s *BasicState) SetRotation(q mgl64.Quat) {
	s.Rotation = q
	s.RotationEnabled = true
}

// SetLinearVel sets and enables the linear velocity.
func (s *BasicState) SetLinearVel(v mgl64.Vec3) {
	s.LinearVel = v
	s.LinearVelEnabled = true
}

// SetAngularVel sets and enables the angular velocity.
func (s *BasicState) SetAngularVel(v mgl64.Vec3) {
	s.AngularVel = v
	s.AngularVelEnabled = true
}

func (s BasicState) PosEnabled() bool { return s.PositionEnabled }
func (s BasicState) RotEnabled() bool { return s.RotationEnabled }

// Update copies the enabled fields of other into s and leaves the rest untouched.
func (s *BasicState) Update(other BasicState) {
	if other.PositionEnabled {
		s.SetPosition(other.Position)
	}
	if other.RotationEnabled {
		s.SetRotation(other.Rotation)
	}
	if other.LinearVelEnabled {
		s.SetLinearVel(other.LinearVel)
	}
	if other.AngularVelEnabled {
		s.SetAngularVel(other.AngularVel)
	}
}

func (s BasicState) String() string {
	var parts []string
	if s.PositionEnabled {
		parts = append(parts, fmt.Sprintf("pos=%v", s.Position))
	}
	if s.RotationEnabled {
		parts = append(parts, fmt.Sprintf("rot=%v", s.Rotation))
	}
	if s.LinearVelEnabled {
		parts = append(parts, fmt.Sprintf("lin=%v", s.LinearVel))
	}
	if s.AngularVelEnabled {
		parts = append(parts, fmt.Sprintf("ang=%v", s.AngularVel))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// ModelState is the dynamic state of one model in a WorldState.
type ModelState struct {
	Name       string     `json:"name"`
	Pose       Pose       `json:"pose"`
	LinearVel  mgl64.Vec3 `json:"linearVel"`
	AngularVel mgl64.Vec3 `json:"angularVel"`
	Static     bool       `json:"static"`
}

// WorldState is a snapshot of one simulation instant. The manager never
// interprets it; only worlds read and write it.
type WorldState struct {
	Name       string                `json:"name"`
	SimTime    float64               `json:"simTime"`
	WallTime   float64               `json:"wallTime"`
	Iterations uint64                `json:"iterations"`
	Models     map[string]ModelState `json:"models"`
	// Insertions carries scene descriptions of models a receiving world may lack.
	Insertions []string `json:"insertions,omitempty"`
	// Deletions names models a receiving world must remove.
	Deletions []string `json:"deletions,omitempty"`
}

// ModelNames returns the sorted names of all models in the state.
func (w WorldState) ModelNames() []string {
	names := make([]string, 0, len(w.Models))
	for n := range w.Models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Equal reports whether both states match within tol. Velocities are only
// compared when checkDynamics is set.
func (w WorldState) Equal(o WorldState, tol float64, checkDynamics bool) bool {
	return w.Diff(o, tol, checkDynamics) == ""
}

// Diff returns a description of the first mismatch, or "" if the states match.
func (w WorldState) Diff(o WorldState, tol float64, checkDynamics bool) string {
	if d := w.SimTime - o.SimTime; d > tol || d < -tol {
		return fmt.Sprintf("sim time %f != %f", w.SimTime, o.SimTime)
	}
	if len(w.Models) != len(o.Models) {
		return fmt.Sprintf("model count %d != %d", len(w.Models), len(o.Models))
	}
	for _, name := range w.ModelNames() {
		a := w.Models[name]
		b, ok := o.Models[name]
		if !ok {
			return fmt.Sprintf("model %q missing", name)
		}
		if !a.Pose.ApproxEqual(b.Pose, tol) {
			return fmt.Sprintf("model %q pose %s != %s", name, a.Pose, b.Pose)
		}
		if !checkDynamics {
			continue
		}
		if !VecApproxEqual(a.LinearVel, b.LinearVel, tol) {
			return fmt.Sprintf("model %q linear velocity %v != %v", name, a.LinearVel, b.LinearVel)
		}
		if !VecApproxEqual(a.AngularVel, b.AngularVel, tol) {
			return fmt.Sprintf("model %q angular velocity %v != %v", name, a.AngularVel, b.AngularVel)
		}
	}
	return ""
}
