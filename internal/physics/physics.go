// Package physics defines the uniform interface the harness uses to drive a
// world of any engine, and its adapter over the simulation host.
package physics

import (
	"github.com/OCAP2/collision-benchmark/internal/loader"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

// World is one engine's world instance. Operations that can fail for a
// single model report it as data; everything else returns taxonomy errors
// from pkg/core.
type World interface {
	Name() string
	Engine() string
	// StateKind names the WorldState format the world reads and writes.
	// States only transfer between worlds of the same kind.
	StateKind() string

	// LoadFromFile and LoadFromString replace the whole scene.
	LoadFromFile(path string) error
	LoadFromString(text string) error

	// Model insertion. A non-empty name replaces the one in the description.
	AddModelFromShape(name string, collision, visual *loader.Shape) core.ModelLoadResult
	AddModelFromFile(path, name string) core.ModelLoadResult
	AddModelFromString(text, name string) core.ModelLoadResult
	ModelIDs() []string

	// SetWorldState applies a state obtained from GetWorldState of a world
	// of the same kind. The local clock is kept unless matchTime is set.
	SetWorldState(state core.WorldState, matchTime bool) error
	GetWorldState() core.WorldState

	SetBasicModelState(id string, state core.BasicState) bool
	GetBasicModelState(id string) (core.BasicState, bool)
	GetAABB(id string) (core.AABB, bool)

	Step(n int)
	// GetContacts computes the contacts of the current poses.
	GetContacts() []core.ContactInfo

	SetPaused(paused bool)
	IsPaused() bool
	SetDynamicsEnabled(enabled bool)
	IsDynamicsEnabled() bool

	// SaveToFile writes the scene with current poses. The encoding follows
	// the file extension.
	SaveToFile(path string) error
	Close() error
}
