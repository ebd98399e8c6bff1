// Package manager fans operations out to an ordered set of worlds.
package manager

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/OCAP2/collision-benchmark/internal/loader"
	"github.com/OCAP2/collision-benchmark/internal/physics"
	"github.com/OCAP2/collision-benchmark/pkg/core"
	"github.com/cespare/xxhash/v2"
)

// Manager owns an ordered list of worlds. Broadcasts visit every world in
// order and never stop at a failing one. Reads go to the first world.
type Manager struct {
	worlds []physics.World
	logger *slog.Logger
}

// New creates a manager over worlds. A nil logger discards output.
func New(logger *slog.Logger, worlds ...physics.World) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		worlds: append([]physics.World(nil), worlds...),
		logger: logger,
	}
}

// AddWorld appends a world. The manager takes ownership.
func (m *Manager) AddWorld(w physics.World) {
	m.worlds = append(m.worlds, w)
}

func (m *Manager) NumWorlds() int {
	return len(m.worlds)
}

// World returns the world at index i or nil.
func (m *Manager) World(i int) physics.World {
	if i < 0 || i >= len(m.worlds) {
		return nil
	}
	return m.worlds[i]
}

// Worlds returns a copy of the world list.
func (m *Manager) Worlds() []physics.World {
	return append([]physics.World(nil), m.worlds...)
}

// WorldNames returns the world names in order.
func (m *Manager) WorldNames() []string {
	names := make([]string, len(m.worlds))
	for i, w := range m.worlds {
		names[i] = w.Name()
	}
	return names
}

// Engines returns the engine of every world in order.
func (m *Manager) Engines() []string {
	engines := make([]string, len(m.worlds))
	for i, w := range m.worlds {
		engines[i] = w.Engine()
	}
	return engines
}

func (m *Manager) AddModelFromShape(name string, collision, visual *loader.Shape) []core.ModelLoadResult {
	return m.addModel("shape", name, func(w physics.World) core.ModelLoadResult {
		return w.AddModelFromShape(name, collision, visual)
	})
}

func (m *Manager) AddModelFromFile(path, name string) []core.ModelLoadResult {
	return m.addModel(path, name, func(w physics.World) core.ModelLoadResult {
		return w.AddModelFromFile(path, name)
	})
}

func (m *Manager) AddModelFromString(text, name string) []core.ModelLoadResult {
	return m.addModel("string", name, func(w physics.World) core.ModelLoadResult {
		return w.AddModelFromString(text, name)
	})
}

func (m *Manager) addModel(source, name string, add func(physics.World) core.ModelLoadResult) []core.ModelLoadResult {
	results := make([]core.ModelLoadResult, len(m.worlds))
	for i, w := range m.worlds {
		results[i] = add(w)
		if !results[i].OK() {
			m.logger.Warn("Failed to add model",
				"world", w.Name(), "model", name, "source", source, "error", results[i].Err)
		}
	}
	return results
}

// CountLoaded returns how many results succeeded.
func CountLoaded(results []core.ModelLoadResult) int {
	n := 0
	for _, r := range results {
		if r.OK() {
			n++
		}
	}
	return n
}

// SetBasicModelState sets the state of a model in every world and returns
// how many worlds accepted it.
func (m *Manager) SetBasicModelState(id string, state core.BasicState) int {
	n := 0
	for _, w := range m.worlds {
		if w.SetBasicModelState(id, state) {
			n++
		}
	}
	if n != len(m.worlds) {
		m.logger.Warn("Model state not set in every world", "model", id, "set", n, "worlds", len(m.worlds))
	}
	return n
}

// GetBasicModelState reads from the first world.
func (m *Manager) GetBasicModelState(id string) (core.BasicState, bool) {
	if len(m.worlds) == 0 {
		return core.BasicState{}, false
	}
	return m.worlds[0].GetBasicModelState(id)
}

// GetAABB reads from the first world.
func (m *Manager) GetAABB(id string) (core.AABB, bool) {
	if len(m.worlds) == 0 {
		return core.AABB{}, false
	}
	return m.worlds[0].GetAABB(id)
}

// GetAABBs returns the bounding boxes of two models from the first world
// after checking that every world agrees on them within bbTol.
func (m *Manager) GetAABBs(model1, model2 string, bbTol float64) (core.AABB, core.AABB, error) {
	if len(m.worlds) == 0 {
		return core.AABB{}, core.AABB{}, fmt.Errorf("%w: no worlds", core.ErrSetupInconsistency)
	}
	var ref [2]core.AABB
	for i, w := range m.worlds {
		for j, id := range []string{model1, model2} {
			box, ok := w.GetAABB(id)
			if !ok {
				return core.AABB{}, core.AABB{}, fmt.Errorf("%w: world %q has no bounding box for %q",
					core.ErrSetupInconsistency, w.Name(), id)
			}
			if i == 0 {
				ref[j] = box
				continue
			}
			if !box.Equal(ref[j], bbTol) {
				return core.AABB{}, core.AABB{}, fmt.Errorf("%w: bounding box of %q in world %q is %s, expected %s",
					core.ErrSetupInconsistency, id, w.Name(), box, ref[j])
			}
		}
	}
	return ref[0], ref[1], nil
}

// SetPaused pauses or resumes every world and returns how many were updated.
func (m *Manager) SetPaused(paused bool) int {
	for _, w := range m.worlds {
		w.SetPaused(paused)
	}
	return len(m.worlds)
}

// SetDynamicsEnabled switches body integration in every world and returns
// how many were updated.
func (m *Manager) SetDynamicsEnabled(enabled bool) int {
	for _, w := range m.worlds {
		w.SetDynamicsEnabled(enabled)
	}
	return len(m.worlds)
}

// Update steps every world n times and returns how many were stepped.
func (m *Manager) Update(n int) int {
	for _, w := range m.worlds {
		w.Step(n)
	}
	return len(m.worlds)
}

// WorldCollision is the contact answer of one world for a model pair.
type WorldCollision struct {
	World    string
	Engine   string
	Contacts []core.ContactInfo
}

// Colliding reports whether the world reported any contact.
func (c WorldCollision) Colliding() bool {
	return len(c.Contacts) > 0
}

// CollisionState is the answer of all worlds for a model pair.
type CollisionState struct {
	Colliding    []string
	NotColliding []string
	// MaxDepth is the largest absolute contact depth over all colliding
	// worlds, 0 when no world collides.
	MaxDepth float64
	PerWorld []WorldCollision
}

// CollisionState queries the contacts between two models in every world.
func (m *Manager) CollisionState(model1, model2 string) CollisionState {
	st := CollisionState{PerWorld: make([]WorldCollision, 0, len(m.worlds))}
	maxDepth := math.Inf(-1)
	for _, w := range m.worlds {
		wc := WorldCollision{
			World:    w.Name(),
			Engine:   w.Engine(),
			Contacts: pairContacts(w.GetContacts(), model1, model2),
		}
		if wc.Colliding() {
			st.Colliding = append(st.Colliding, w.Name())
			for _, c := range wc.Contacts {
				maxDepth = math.Max(maxDepth, c.MaxDepth())
			}
		} else {
			st.NotColliding = append(st.NotColliding, w.Name())
		}
		st.PerWorld = append(st.PerWorld, wc)
	}
	if len(st.Colliding) > 0 {
		st.MaxDepth = maxDepth
	}
	return st
}

// ContactInfo returns the contacts between two models in world i.
func (m *Manager) ContactInfo(model1, model2 string, i int) []core.ContactInfo {
	w := m.World(i)
	if w == nil {
		return nil
	}
	return pairContacts(w.GetContacts(), model1, model2)
}

func pairContacts(all []core.ContactInfo, a, b string) []core.ContactInfo {
	var out []core.ContactInfo
	for _, c := range all {
		if c.Involves(a, b) {
			out = append(out, c)
		}
	}
	return out
}

// SaveAllWorlds writes every world to <dir>/<prefix><world>.<ext>. It
// returns the written paths and the number of worlds that failed.
func (m *Manager) SaveAllWorlds(dir, prefix, ext string) ([]string, int) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		m.logger.Error("Failed to create snapshot directory", "dir", dir, "error", err)
		return nil, len(m.worlds)
	}
	var paths []string
	failed := 0
	for _, w := range m.worlds {
		path := filepath.Join(dir, fmt.Sprintf("%s%s.%s", prefix, w.Name(), ext))
		if err := w.SaveToFile(path); err != nil {
			m.logger.Error("Failed to save world", "world", w.Name(), "path", path, "error", err)
			failed++
			continue
		}
		paths = append(paths, path)
	}
	return paths, failed
}

// SceneFingerprints hashes the model ids and bounding box sizes of every
// world. Worlds holding the same scene produce the same value.
func (m *Manager) SceneFingerprints() []uint64 {
	out := make([]uint64, len(m.worlds))
	for i, w := range m.worlds {
		d := xxhash.New()
		for _, id := range w.ModelIDs() {
			_, _ = d.WriteString(id)
			if box, ok := w.GetAABB(id); ok {
				s := box.Size()
				_, _ = fmt.Fprintf(d, "%.6f %.6f %.6f;", s.X(), s.Y(), s.Z())
			}
		}
		out[i] = d.Sum64()
	}
	return out
}

// Close closes every world.
func (m *Manager) Close() error {
	var errs []error
	for _, w := range m.worlds {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", w.Name(), err))
		}
	}
	m.worlds = nil
	return errors.Join(errs...)
}
