package physics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/OCAP2/collision-benchmark/internal/host"
	"github.com/OCAP2/collision-benchmark/internal/loader"
	"github.com/OCAP2/collision-benchmark/internal/sdf"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

// HostStateKind is the state format of host worlds.
const HostStateKind = "host"

// HostWorld adapts a simulation host world to World.
type HostWorld struct {
	host   *host.Host
	world  *host.World
	loader *loader.Loader
}

var _ World = (*HostWorld)(nil)

// Option configures a HostWorld.
type Option func(*HostWorld)

// WithLoader sets the loader used to resolve resources. Sharing one loader
// between worlds lets them share its file cache.
func WithLoader(l *loader.Loader) Option {
	return func(w *HostWorld) {
		w.loader = l
	}
}

// NewWorld creates an empty world of the given engine on h.
func NewWorld(h *host.Host, engine, name string, opts ...Option) (*HostWorld, error) {
	hw, err := h.NewWorld(engine, name)
	if err != nil {
		return nil, translate(err)
	}
	w := &HostWorld{host: h, world: hw}
	for _, opt := range opts {
		opt(w)
	}
	if w.loader == nil {
		w.loader = loader.New(nil)
	}
	return w, nil
}

func (w *HostWorld) Name() string      { return w.world.Name() }
func (w *HostWorld) Engine() string    { return w.world.Engine() }
func (w *HostWorld) StateKind() string { return HostStateKind }

// LoadFromFile replaces the scene by a world resource. The physics type of
// the file is replaced by the world's engine.
func (w *HostWorld) LoadFromFile(path string) error {
	desc, err := w.loader.WorldFromFile(path, "", nil)
	if err != nil {
		return err
	}
	return w.load(desc)
}

// LoadFromString replaces the scene by a world description. Includes are
// resolved through the loader.
func (w *HostWorld) LoadFromString(text string) error {
	desc, err := loader.WorldFromString(text, "", nil)
	if err != nil {
		return err
	}
	if err := w.loader.ResolveIncludes(desc); err != nil {
		return err
	}
	return w.load(desc)
}

func (w *HostWorld) load(desc *sdf.World) error {
	physics := sdf.Physics{Type: w.Engine()}
	if desc.Physics != nil {
		physics = *desc.Physics
		physics.Type = w.Engine()
	}
	desc.Physics = &physics
	if err := w.world.Load(desc); err != nil {
		return translate(err)
	}
	return nil
}

func (w *HostWorld) AddModelFromShape(name string, collision, visual *loader.Shape) core.ModelLoadResult {
	m, err := loader.ModelFromShape(name, collision, visual)
	if err != nil {
		return failed(name, err)
	}
	return w.insert(m)
}

func (w *HostWorld) AddModelFromFile(path, name string) core.ModelLoadResult {
	m, err := w.loader.ModelFromFile(path, name)
	if err != nil {
		return failed(name, err)
	}
	return w.insert(m)
}

func (w *HostWorld) AddModelFromString(text, name string) core.ModelLoadResult {
	m, err := loader.ModelFromString(text, name)
	if err != nil {
		return failed(name, err)
	}
	return w.insert(m)
}

func (w *HostWorld) insert(m *sdf.Model) core.ModelLoadResult {
	if err := w.world.Insert(m); err != nil {
		return failed(m.Name, translate(err))
	}
	return core.ModelLoadResult{ModelID: m.Name, Result: core.Success}
}

func failed(name string, err error) core.ModelLoadResult {
	return core.ModelLoadResult{ModelID: name, Result: core.Failed, Err: err}
}

func (w *HostWorld) ModelIDs() []string {
	return w.world.ModelNames()
}

func (w *HostWorld) SetWorldState(state core.WorldState, matchTime bool) error {
	if err := w.world.SetState(state, matchTime); err != nil {
		return translate(err)
	}
	return nil
}

func (w *HostWorld) GetWorldState() core.WorldState {
	return w.world.State()
}

func (w *HostWorld) SetBasicModelState(id string, state core.BasicState) bool {
	return w.world.SetModelState(id, state) == nil
}

func (w *HostWorld) GetBasicModelState(id string) (core.BasicState, bool) {
	s, err := w.world.ModelState(id)
	if err != nil {
		return core.BasicState{}, false
	}
	return s, true
}

func (w *HostWorld) GetAABB(id string) (core.AABB, bool) {
	box, err := w.world.AABB(id)
	if err != nil {
		return core.AABB{}, false
	}
	return box, true
}

func (w *HostWorld) Step(n int) {
	w.world.Step(n)
}

func (w *HostWorld) GetContacts() []core.ContactInfo {
	return w.world.Contacts(true)
}

func (w *HostWorld) SetPaused(paused bool) { w.world.SetPaused(paused) }
func (w *HostWorld) IsPaused() bool        { return w.world.Paused() }

func (w *HostWorld) SetDynamicsEnabled(enabled bool) { w.world.SetPhysics(enabled) }
func (w *HostWorld) IsDynamicsEnabled() bool         { return w.world.Physics() }

func (w *HostWorld) SaveToFile(path string) error {
	format := sdf.FormatXML
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = sdf.FormatYAML
	}
	data, err := sdf.Marshal(sdf.WorldDocument(w.world.Describe()), format)
	if err != nil {
		return fmt.Errorf("encode world %q: %w", w.Name(), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("save world %q: %w", w.Name(), err)
	}
	return nil
}

// Close releases the world name on the host.
func (w *HostWorld) Close() error {
	w.host.RemoveWorld(w.Name())
	return nil
}

// translate maps host errors onto the error taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, host.ErrUnknownEngine):
		return fmt.Errorf("%w: %v", core.ErrEngineUnavailable, err)
	case errors.Is(err, host.ErrNoSuchModel), errors.Is(err, host.ErrBadState):
		return fmt.Errorf("%w: %v", core.ErrStateMismatch, err)
	case errors.Is(err, host.ErrModelExists), errors.Is(err, host.ErrBadGeometry), errors.Is(err, host.ErrWorldExists):
		return fmt.Errorf("%w: %v", core.ErrLoadFailed, err)
	default:
		return err
	}
}
