// Package physicstest provides a scriptable World for tests.
package physicstest

import (
	"errors"
	"fmt"
	"os"

	"github.com/OCAP2/collision-benchmark/internal/loader"
	"github.com/OCAP2/collision-benchmark/internal/physics"
	"github.com/OCAP2/collision-benchmark/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

// Fake is an in-memory World. Every model is a unit box centered on its
// position unless Extents sets another half size.
type Fake struct {
	WorldName  string
	EngineName string
	Kind       string

	// failure switches
	FailAdd      bool
	FailSetState bool
	FailSave     bool

	Extents map[string]mgl64.Vec3
	// Contacts overrides the default AABB overlap test.
	Contacts func(f *Fake) []core.ContactInfo

	States   map[string]core.BasicState
	Order    []string
	Steps    int
	Paused   bool
	Dynamics bool
	Closed   bool
	Saved    []string
	SimTime  float64

	// Applied records every state passed to SetWorldState.
	Applied []core.WorldState
}

var _ physics.World = (*Fake)(nil)

// New creates an empty fake world.
func New(name, engine string) *Fake {
	return &Fake{
		WorldName:  name,
		EngineName: engine,
		Kind:       "fake",
		Dynamics:   true,
		States:     make(map[string]core.BasicState),
		Extents:    make(map[string]mgl64.Vec3),
	}
}

func (f *Fake) Name() string      { return f.WorldName }
func (f *Fake) Engine() string    { return f.EngineName }
func (f *Fake) StateKind() string { return f.Kind }

func (f *Fake) LoadFromFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", core.ErrResourceNotFound, path)
	}
	return nil
}

func (f *Fake) LoadFromString(string) error { return nil }

func (f *Fake) add(name string) core.ModelLoadResult {
	if f.FailAdd {
		return core.ModelLoadResult{ModelID: name, Result: core.Failed, Err: core.ErrLoadFailed}
	}
	if _, ok := f.States[name]; ok {
		return core.ModelLoadResult{ModelID: name, Result: core.Failed, Err: core.ErrLoadFailed}
	}
	var s core.BasicState
	s.SetPosition(mgl64.Vec3{})
	s.SetRotation(mgl64.QuatIdent())
	f.States[name] = s
	f.Order = append(f.Order, name)
	return core.ModelLoadResult{ModelID: name, Result: core.Success}
}

func (f *Fake) AddModelFromShape(name string, _, _ *loader.Shape) core.ModelLoadResult {
	return f.add(name)
}

func (f *Fake) AddModelFromFile(_, name string) core.ModelLoadResult {
	return f.add(name)
}

func (f *Fake) AddModelFromString(_, name string) core.ModelLoadResult {
	return f.add(name)
}

func (f *Fake) ModelIDs() []string {
	return append([]string(nil), f.Order...)
}

func (f *Fake) SetWorldState(state core.WorldState, matchTime bool) error {
	if f.FailSetState {
		return errors.Join(core.ErrStateMismatch, errors.New("scripted failure"))
	}
	f.Applied = append(f.Applied, state)
	for _, name := range state.Deletions {
		f.remove(name)
	}
	for _, name := range state.ModelNames() {
		ms := state.Models[name]
		if _, ok := f.States[name]; !ok {
			f.add(name)
		}
		s := f.States[name]
		s.SetPosition(ms.Pose.Position)
		s.SetRotation(ms.Pose.Rotation)
		f.States[name] = s
	}
	if matchTime {
		f.SimTime = state.SimTime
	}
	return nil
}

func (f *Fake) remove(name string) {
	delete(f.States, name)
	for i, n := range f.Order {
		if n == name {
			f.Order = append(f.Order[:i], f.Order[i+1:]...)
			return
		}
	}
}

func (f *Fake) GetWorldState() core.WorldState {
	s := core.WorldState{
		Name:    f.WorldName,
		SimTime: f.SimTime,
		Models:  make(map[string]core.ModelState, len(f.States)),
	}
	for name, st := range f.States {
		s.Models[name] = core.ModelState{
			Name: name,
			Pose: core.Pose{Position: st.Position, Rotation: st.Rotation},
		}
	}
	return s
}

func (f *Fake) SetBasicModelState(id string, state core.BasicState) bool {
	s, ok := f.States[id]
	if !ok {
		return false
	}
	s.Update(state)
	f.States[id] = s
	return true
}

func (f *Fake) GetBasicModelState(id string) (core.BasicState, bool) {
	s, ok := f.States[id]
	return s, ok
}

func (f *Fake) GetAABB(id string) (core.AABB, bool) {
	s, ok := f.States[id]
	if !ok {
		return core.AABB{}, false
	}
	half, ok := f.Extents[id]
	if !ok {
		half = mgl64.Vec3{0.5, 0.5, 0.5}
	}
	return core.AABB{Min: s.Position.Sub(half), Max: s.Position.Add(half)}, true
}

func (f *Fake) Step(n int) {
	if f.Paused {
		return
	}
	f.Steps += n
	f.SimTime += 0.001 * float64(n)
}

// GetContacts reports one contact for every pair of overlapping or touching
// boxes. Depth is the smallest overlap along the axes.
func (f *Fake) GetContacts() []core.ContactInfo {
	if f.Contacts != nil {
		return f.Contacts(f)
	}
	var out []core.ContactInfo
	for i := 0; i < len(f.Order); i++ {
		for j := i + 1; j < len(f.Order); j++ {
			a, _ := f.GetAABB(f.Order[i])
			b, _ := f.GetAABB(f.Order[j])
			depth := 1e9
			for k := 0; k < 3; k++ {
				depth = min(depth, min(a.Max[k], b.Max[k])-max(a.Min[k], b.Min[k]))
			}
			if depth < -1e-9 {
				continue
			}
			out = append(out, core.ContactInfo{
				ModelA: f.Order[i],
				ModelB: f.Order[j],
				Points: []core.ContactPoint{{Depth: depth}},
			})
		}
	}
	return out
}

func (f *Fake) SetPaused(paused bool)           { f.Paused = paused }
func (f *Fake) IsPaused() bool                  { return f.Paused }
func (f *Fake) SetDynamicsEnabled(enabled bool) { f.Dynamics = enabled }
func (f *Fake) IsDynamicsEnabled() bool         { return f.Dynamics }

func (f *Fake) SaveToFile(path string) error {
	if f.FailSave {
		return errors.New("scripted save failure")
	}
	if err := os.WriteFile(path, []byte(f.WorldName), 0644); err != nil {
		return err
	}
	f.Saved = append(f.Saved, path)
	return nil
}

func (f *Fake) Close() error {
	f.Closed = true
	return nil
}
