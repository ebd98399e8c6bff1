package physics

import (
	"fmt"

	"github.com/OCAP2/collision-benchmark/internal/host"
	"github.com/OCAP2/collision-benchmark/internal/loader"
	"github.com/OCAP2/collision-benchmark/internal/sdf"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

// DefaultEngine is used for world files without a physics element.
const DefaultEngine = "ode"

// LoadWorlds creates one world per file, each with the engine named in its
// physics element. A non-empty engine overrides every file. The batch is
// aborted on the first failure and worlds created so far are closed.
func LoadWorlds(h *host.Host, ld *loader.Loader, files []core.Worldfile, engine string) ([]World, error) {
	var override *sdf.Physics
	if engine != "" {
		override = &sdf.Physics{Type: engine}
	}
	descs, err := ld.LoadWorlds(files, override)
	if err != nil {
		return nil, err
	}

	worlds := make([]World, 0, len(descs))
	closeAll := func() {
		for _, w := range worlds {
			_ = w.Close()
		}
	}
	for _, desc := range descs {
		eng := DefaultEngine
		if desc.Physics != nil && desc.Physics.Type != "" {
			eng = desc.Physics.Type
		}
		w, err := NewWorld(h, eng, desc.Name, WithLoader(ld))
		if err != nil {
			closeAll()
			return nil, err
		}
		worlds = append(worlds, w)
		if err := w.load(desc); err != nil {
			closeAll()
			return nil, err
		}
	}
	return worlds, nil
}

// NewEngineWorlds creates one empty world per engine, named
// "<engine>_<index>". Worlds created so far are closed on failure.
func NewEngineWorlds(h *host.Host, ld *loader.Loader, engines []string) ([]World, error) {
	worlds := make([]World, 0, len(engines))
	for i, eng := range engines {
		w, err := NewWorld(h, eng, fmt.Sprintf("%s_%d", eng, i), WithLoader(ld))
		if err != nil {
			for _, created := range worlds {
				_ = created.Close()
			}
			return nil, err
		}
		worlds = append(worlds, w)
	}
	return worlds, nil
}
