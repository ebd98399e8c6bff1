package app

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/OCAP2/collision-benchmark/internal/loader"
	"github.com/OCAP2/collision-benchmark/internal/manager"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

// LoadPair adds exactly two models to every world of mgr: unit shapes named
// "unit_<shape>_<i>" followed by model resources named "model<i>". It
// returns the model names in load order.
func LoadPair(mgr *manager.Manager, shapes, models []string) ([]string, error) {
	if n := len(shapes) + len(models); n != 2 {
		return nil, fmt.Errorf("have to specify exactly two shapes or models, got %d (shapes %v, models %v)", n, shapes, models)
	}

	names := make([]string, 0, 2)
	for i, id := range shapes {
		shape, err := loader.UnitShape(id)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("unit_%s_%d", id, i)
		if err := requireAll(mgr, name, mgr.AddModelFromShape(name, shape, nil)); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	for i, resource := range models {
		name := fmt.Sprintf("model%d", i)
		if err := requireAll(mgr, name, mgr.AddModelFromFile(resource, name)); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func requireAll(mgr *manager.Manager, name string, results []core.ModelLoadResult) error {
	if loaded := manager.CountLoaded(results); loaded != mgr.NumWorlds() {
		for _, r := range results {
			if r.Err != nil {
				return fmt.Errorf("model %s must be loaded in all worlds, got %d of %d: %w", name, loaded, mgr.NumWorlds(), r.Err)
			}
		}
		return fmt.Errorf("model %s must be loaded in all worlds, got %d of %d", name, loaded, mgr.NumWorlds())
	}
	return nil
}

// PlaceTouching moves both models to the origin, then moves model2 along
// axis until its box touches the box of model1. The boxes are returned as
// measured at the origin.
func PlaceTouching(mgr *manager.Manager, model1, model2 string, axis mgl64.Vec3) (core.AABB, core.AABB, error) {
	origin := core.NewBasicStateAt(0, 0, 0)
	origin.SetRotation(mgl64.QuatIdent())

	n := mgr.NumWorlds()
	if mgr.SetBasicModelState(model1, origin) != n || mgr.SetBasicModelState(model2, origin) != n {
		return core.AABB{}, core.AABB{}, fmt.Errorf("%w: could not set all model poses to origin", core.ErrSetupInconsistency)
	}

	aabb1, ok1 := mgr.GetAABB(model1)
	aabb2, ok2 := mgr.GetAABB(model2)
	if !ok1 || !ok2 {
		return core.AABB{}, core.AABB{}, fmt.Errorf("%w: could not get AABBs of models", core.ErrSetupInconsistency)
	}

	dist := aabb2.Min.Dot(axis) - aabb1.Max.Dot(axis)
	moved := core.NewBasicStateAt(0, 0, 0)
	moved.SetPosition(axis.Mul(-dist))
	if mgr.SetBasicModelState(model2, moved) != n {
		return core.AABB{}, core.AABB{}, fmt.Errorf("%w: could not move %s", core.ErrSetupInconsistency, model2)
	}
	return aabb1, aabb2, nil
}
