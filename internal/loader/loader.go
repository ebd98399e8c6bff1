// Package loader turns scene resources and primitive shapes into scene
// description trees ready to be inserted into a world.
package loader

import (
	"fmt"
	"strings"

	"github.com/OCAP2/collision-benchmark/internal/cache"
	"github.com/OCAP2/collision-benchmark/internal/sdf"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

// Loader resolves resources through a Finder and caches their contents by
// resolved path.
type Loader struct {
	finder *sdf.Finder
	cache  *cache.ResourceCache
}

// New creates a loader. A nil finder only resolves plain file paths.
func New(finder *sdf.Finder) *Loader {
	if finder == nil {
		finder = sdf.NewFinder()
	}
	return &Loader{
		finder: finder,
		cache:  cache.NewResourceCache(),
	}
}

// Finder returns the resource finder used by the loader.
func (l *Loader) Finder() *sdf.Finder {
	return l.finder
}

// CacheHits returns how many reads were served from the cache.
func (l *Loader) CacheHits() int {
	return l.cache.Hits()
}

// Read returns the contents of a resource.
func (l *Loader) Read(resource string) ([]byte, error) {
	path, err := l.finder.Find(resource)
	if err != nil {
		return nil, err
	}
	return l.cache.GetOrLoad(path, func() ([]byte, error) {
		_, data, err := l.finder.Read(path)
		return data, err
	})
}

// ModelFromShape builds a model with one link holding one collision and one
// visual element. A nil visual reuses the collision shape.
func ModelFromShape(name string, collision, visual *Shape) (*sdf.Model, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: model name is empty", core.ErrLoadFailed)
	}
	if collision == nil {
		return nil, fmt.Errorf("%w: model %q has no collision shape", core.ErrLoadFailed, name)
	}
	if visual == nil {
		visual = collision
	}
	if err := collision.Geometry().Validate(); err != nil {
		return nil, fmt.Errorf("%w: collision of %q: %v", core.ErrLoadFailed, name, err)
	}
	if err := visual.Geometry().Validate(); err != nil {
		return nil, fmt.Errorf("%w: visual of %q: %v", core.ErrLoadFailed, name, err)
	}

	return &sdf.Model{
		Name: name,
		Links: []sdf.Link{{
			Name: "link",
			Collisions: []sdf.Collision{{
				Name:     "collision",
				Pose:     sdf.NewPose(collision.Pose),
				Geometry: collision.Geometry(),
			}},
			Visuals: []sdf.Visual{{
				Name:     "visual",
				Pose:     sdf.NewPose(visual.Pose),
				Geometry: visual.Geometry(),
			}},
		}},
	}, nil
}

// ModelFromString parses a model description. A non-empty name replaces the
// name in the description.
func ModelFromString(text, name string) (*sdf.Model, error) {
	doc, err := sdf.Parse([]byte(text))
	if err != nil {
		return nil, err
	}
	m, err := doc.RequireModel()
	if err != nil {
		return nil, err
	}
	if name != "" {
		m.Name = name
	}
	if err := validateModel(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ModelFromFile resolves and parses a model resource. A non-empty name
// replaces the name in the description.
func (l *Loader) ModelFromFile(resource, name string) (*sdf.Model, error) {
	data, err := l.Read(resource)
	if err != nil {
		return nil, err
	}
	m, err := ModelFromString(string(data), name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", resource, err)
	}
	return m, nil
}

// WorldFromString parses a world description. A non-empty name replaces the
// world name. A non-nil physics element is inserted when the world has none
// and replaces it otherwise. Includes are left unresolved.
func WorldFromString(text, name string, physics *sdf.Physics) (*sdf.World, error) {
	doc, err := sdf.Parse([]byte(text))
	if err != nil {
		return nil, err
	}
	w, err := doc.RequireWorld()
	if err != nil {
		return nil, err
	}
	if name != "" {
		w.Name = name
	}
	if physics != nil {
		p := *physics
		w.Physics = &p
	}
	for i := range w.Models {
		if err := validateModel(&w.Models[i]); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// WorldFromFile resolves and parses a world resource and pulls in all of its
// includes.
func (l *Loader) WorldFromFile(resource, name string, physics *sdf.Physics) (*sdf.World, error) {
	data, err := l.Read(resource)
	if err != nil {
		return nil, err
	}
	w, err := WorldFromString(string(data), name, physics)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", resource, err)
	}
	if err := l.ResolveIncludes(w); err != nil {
		return nil, err
	}
	return w, nil
}

// ResolveIncludes replaces every include of w by the model it refers to.
// The include name and pose override the ones of the included model.
func (l *Loader) ResolveIncludes(w *sdf.World) error {
	for _, inc := range w.Includes {
		m, err := l.ModelFromFile(inc.URI, inc.Name)
		if err != nil {
			return fmt.Errorf("include %q: %w", inc.URI, err)
		}
		if inc.Pose != nil {
			p := *inc.Pose
			m.Pose = &p
		}
		w.Models = append(w.Models, *m)
	}
	w.Includes = nil

	seen := make(map[string]bool, len(w.Models))
	for _, m := range w.Models {
		if seen[m.Name] {
			return fmt.Errorf("%w: world %q has duplicate model %q", core.ErrLoadFailed, w.Name, m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}

// LoadWorlds loads every world file in order. The batch stops at the first
// failure and nothing is returned in that case. World names must be unique;
// an empty name keeps the one from the file.
func (l *Loader) LoadWorlds(files []core.Worldfile, physics *sdf.Physics) ([]*sdf.World, error) {
	worlds := make([]*sdf.World, 0, len(files))
	names := make(map[string]bool, len(files))
	for _, f := range files {
		w, err := l.WorldFromFile(f.Filename, f.Name, physics)
		if err != nil {
			return nil, err
		}
		if names[w.Name] {
			return nil, fmt.Errorf("%w: duplicate world name %q", core.ErrLoadFailed, w.Name)
		}
		names[w.Name] = true
		worlds = append(worlds, w)
	}
	return worlds, nil
}

func validateModel(m *sdf.Model) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: model without a name", core.ErrLoadFailed)
	}
	for _, link := range m.Links {
		for _, c := range link.Collisions {
			if err := c.Geometry.Validate(); err != nil {
				return fmt.Errorf("%w: model %q collision %q: %v", core.ErrLoadFailed, m.Name, c.Name, err)
			}
		}
	}
	return nil
}
