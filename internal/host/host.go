// Package host is an in-process simulation host. It runs worlds under a set of
// engine profiles that differ in narrow-phase strategy and contact margin.
// Bodies move kinematically; there is no collision response.
package host

import (
	"fmt"
	"sync"
)

// Host owns worlds by unique name.
type Host struct {
	mu     sync.Mutex
	reg    *registry
	worlds map[string]*World
	seq    int
}

// New creates a host with the default engine profiles.
func New() *Host {
	return &Host{
		reg:    newRegistry(),
		worlds: make(map[string]*World),
	}
}

// Register adds or replaces an engine profile.
func (h *Host) Register(p Profile) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reg.add(p)
}

// Engines returns the sorted names of all registered profiles.
func (h *Host) Engines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reg.names()
}

// HasEngine reports whether a profile is registered.
func (h *Host) HasEngine(engine string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.reg.get(engine)
	return ok
}

// NewWorld creates an empty world. An empty name is replaced by
// <engine>_<n>.
func (h *Host) NewWorld(engine, name string) (*World, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.reg.get(engine)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
	}
	if name == "" {
		name = fmt.Sprintf("%s_%d", engine, h.seq)
	}
	if _, ok := h.worlds[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrWorldExists, name)
	}
	h.seq++

	w := newWorld(name, p, h.reg.dirs[p.Samples])
	h.worlds[name] = w
	return w, nil
}

// World returns a world by name.
func (h *Host) World(name string) (*World, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.worlds[name]
	return w, ok
}

// RemoveWorld releases a world name.
func (h *Host) RemoveWorld(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.worlds, name)
}

// NumWorlds returns the number of live worlds.
func (h *Host) NumWorlds() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.worlds)
}
