package host

import (
	"fmt"
	"sync"
	"time"

	"github.com/OCAP2/collision-benchmark/internal/sdf"
	"github.com/OCAP2/collision-benchmark/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultStepSize is used when a world description sets no max step size.
const DefaultStepSize = 0.001

// World is one simulation instance bound to an engine profile.
type World struct {
	mu sync.RWMutex

	name    string
	profile Profile
	dirs    []mgl64.Vec3
	created time.Time

	bodies []*body
	index  map[string]int

	simTime    float64
	iterations uint64
	stepSize   float64
	gravity    mgl64.Vec3
	paused     bool
	physics    bool

	contacts []core.ContactInfo
}

func newWorld(name string, profile Profile, dirs []mgl64.Vec3) *World {
	return &World{
		name:     name,
		profile:  profile,
		dirs:     dirs,
		created:  time.Now(),
		index:    make(map[string]int),
		stepSize: DefaultStepSize,
		gravity:  mgl64.Vec3{0, 0, -9.81},
		physics:  true,
	}
}

func (w *World) Name() string {
	return w.name
}

// Engine returns the name of the engine profile.
func (w *World) Engine() string {
	return w.profile.Name
}

// Load replaces the content of the world by the given description. Includes
// must already be resolved.
func (w *World) Load(desc *sdf.World) error {
	bodies := make([]*body, 0, len(desc.Models))
	index := make(map[string]int, len(desc.Models))
	for i := range desc.Models {
		b, err := newBody(&desc.Models[i])
		if err != nil {
			return err
		}
		if _, ok := index[b.name]; ok {
			return fmt.Errorf("%w: %q", ErrModelExists, b.name)
		}
		index[b.name] = len(bodies)
		bodies = append(bodies, b)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.bodies = bodies
	w.index = index
	w.simTime = 0
	w.iterations = 0
	w.contacts = nil
	w.stepSize = DefaultStepSize
	if desc.Physics != nil && desc.Physics.MaxStepSize > 0 {
		w.stepSize = desc.Physics.MaxStepSize
	}
	if desc.Gravity != nil {
		w.gravity = desc.Gravity.Vec3()
	}
	return nil
}

// Insert adds a model. Model names are unique within a world.
func (w *World) Insert(m *sdf.Model) error {
	b, err := newBody(m)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.insertLocked(b)
}

func (w *World) insertLocked(b *body) error {
	if _, ok := w.index[b.name]; ok {
		return fmt.Errorf("%w: %q", ErrModelExists, b.name)
	}
	w.index[b.name] = len(w.bodies)
	w.bodies = append(w.bodies, b)
	return nil
}

// Remove deletes a model.
func (w *World) Remove(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.removeLocked(name)
}

func (w *World) removeLocked(name string) error {
	i, ok := w.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchModel, name)
	}
	w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
	w.index = make(map[string]int, len(w.bodies))
	for j, b := range w.bodies {
		w.index[b.name] = j
	}
	return nil
}

// ModelNames returns the models in insertion order.
func (w *World) ModelNames() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, len(w.bodies))
	for i, b := range w.bodies {
		names[i] = b.name
	}
	return names
}

func (w *World) body(name string) (*body, error) {
	i, ok := w.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchModel, name)
	}
	return w.bodies[i], nil
}

// SetModelState writes the enabled fields of s to the model.
func (w *World) SetModelState(name string, s core.BasicState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, err := w.body(name)
	if err != nil {
		return err
	}
	pose := b.pose
	if s.PositionEnabled {
		pose.Position = s.Position
	}
	if s.RotationEnabled {
		pose.Rotation = s.Rotation
	}
	b.setPose(pose)
	if s.LinearVelEnabled {
		b.linearVel = s.LinearVel
	}
	if s.AngularVelEnabled {
		b.angularVel = s.AngularVel
	}
	return nil
}

// ModelState returns the full state of a model with every field enabled.
func (w *World) ModelState(name string) (core.BasicState, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	b, err := w.body(name)
	if err != nil {
		return core.BasicState{}, err
	}
	var s core.BasicState
	s.SetPosition(b.pose.Position)
	s.SetRotation(b.pose.Rotation)
	s.SetLinearVel(b.linearVel)
	s.SetAngularVel(b.angularVel)
	return s, nil
}

// AABB returns the world frame bounds of a model's collision geometry.
func (w *World) AABB(name string) (core.AABB, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	b, err := w.body(name)
	if err != nil {
		return core.AABB{}, err
	}
	box := b.aabb()
	if !box.Valid() {
		return core.AABB{}, fmt.Errorf("%w: model %q has no collision geometry", ErrBadGeometry, name)
	}
	return box, nil
}

// Step advances the world n ticks unless paused. Bodies only move when
// physics is enabled. Contacts are recomputed every tick.
func (w *World) Step(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.paused {
		return
	}
	for i := 0; i < n; i++ {
		if w.physics {
			for _, b := range w.bodies {
				b.integrate(w.stepSize, w.gravity)
			}
		}
		w.simTime += w.stepSize
		w.iterations++
		w.contacts = w.profile.contacts(w.bodies, w.dirs)
	}
}

// Contacts returns the contacts of the last step. With force set they are
// recomputed for the current poses first.
func (w *World) Contacts(force bool) []core.ContactInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	if force {
		w.contacts = w.profile.contacts(w.bodies, w.dirs)
	}
	out := make([]core.ContactInfo, len(w.contacts))
	copy(out, w.contacts)
	return out
}

func (w *World) SetPaused(paused bool) {
	w.mu.Lock()
	w.paused = paused
	w.mu.Unlock()
}

func (w *World) Paused() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.paused
}

// SetPhysics enables or disables the integration of body motion.
func (w *World) SetPhysics(enabled bool) {
	w.mu.Lock()
	w.physics = enabled
	w.mu.Unlock()
}

func (w *World) Physics() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.physics
}

func (w *World) SimTime() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.simTime
}

func (w *World) Iterations() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.iterations
}

// State captures the world. Every model's description is carried as an
// insertion so that an empty world can be rebuilt from the state.
func (w *World) State() core.WorldState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s := core.WorldState{
		Name:       w.name,
		SimTime:    w.simTime,
		WallTime:   time.Since(w.created).Seconds(),
		Iterations: w.iterations,
		Models:     make(map[string]core.ModelState, len(w.bodies)),
		Insertions: make([]string, 0, len(w.bodies)),
	}
	for _, b := range w.bodies {
		s.Models[b.name] = core.ModelState{
			Name:       b.name,
			Pose:       b.pose,
			LinearVel:  b.linearVel,
			AngularVel: b.angularVel,
			Static:     b.static,
		}
		s.Insertions = append(s.Insertions, b.descText)
	}
	return s
}

// SetState applies deletions, then insertions of models the world lacks, then
// the poses and velocities of every model in s. The clock is only taken over
// when matchTime is set.
func (w *World) SetState(s core.WorldState, matchTime bool) error {
	inserts := make([]*body, 0, len(s.Insertions))
	for _, text := range s.Insertions {
		doc, err := sdf.Parse([]byte(text))
		if err != nil {
			return fmt.Errorf("%w: insertion: %v", ErrBadState, err)
		}
		m, err := doc.RequireModel()
		if err != nil {
			return fmt.Errorf("%w: insertion: %v", ErrBadState, err)
		}
		b, err := newBody(m)
		if err != nil {
			return fmt.Errorf("%w: insertion: %v", ErrBadState, err)
		}
		inserts = append(inserts, b)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkStateLocked(s, inserts); err != nil {
		return err
	}
	for _, name := range s.Deletions {
		if _, ok := w.index[name]; ok {
			_ = w.removeLocked(name)
		}
	}
	for _, b := range inserts {
		if _, ok := w.index[b.name]; !ok {
			_ = w.insertLocked(b)
		}
	}
	for _, name := range s.ModelNames() {
		ms := s.Models[name]
		b, err := w.body(name)
		if err != nil {
			return err
		}
		b.setPose(ms.Pose)
		b.linearVel = ms.LinearVel
		b.angularVel = ms.AngularVel
		b.static = ms.Static
	}
	if matchTime {
		w.simTime = s.SimTime
		w.iterations = s.Iterations
	}
	return nil
}

// checkStateLocked verifies that every model of s exists once deletions and
// insertions are applied. Nothing is changed when it fails.
func (w *World) checkStateLocked(s core.WorldState, inserts []*body) error {
	deleted := make(map[string]bool, len(s.Deletions))
	for _, name := range s.Deletions {
		deleted[name] = true
	}
	present := make(map[string]bool, len(w.index)+len(inserts))
	for name := range w.index {
		if !deleted[name] {
			present[name] = true
		}
	}
	for _, b := range inserts {
		present[b.name] = true
	}
	for _, name := range s.ModelNames() {
		if !present[name] {
			return fmt.Errorf("%w: %q", ErrNoSuchModel, name)
		}
	}
	return nil
}

// Describe returns the scene description of the world with current poses.
func (w *World) Describe() *sdf.World {
	w.mu.RLock()
	defer w.mu.RUnlock()
	g := sdf.Vector{w.gravity.X(), w.gravity.Y(), w.gravity.Z()}
	desc := &sdf.World{
		Name: w.name,
		Physics: &sdf.Physics{
			Type:        w.profile.Name,
			MaxStepSize: w.stepSize,
		},
		Gravity: &g,
		Models:  make([]sdf.Model, 0, len(w.bodies)),
	}
	for _, b := range w.bodies {
		desc.Models = append(desc.Models, b.describe())
	}
	return desc
}
