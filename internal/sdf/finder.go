package sdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/OCAP2/collision-benchmark/pkg/core"
)

const modelScheme = "model://"

// Finder resolves scene resources. A resource is a file path, a model://name
// URI or a bare model name looked up as <path>/<name>/model.sdf in the search
// paths.
type Finder struct {
	SearchPaths []string
}

// NewFinder creates a finder over the given search paths.
func NewFinder(paths ...string) *Finder {
	return &Finder{SearchPaths: paths}
}

// Find returns the path of the resource or ErrResourceNotFound.
func (f *Finder) Find(resource string) (string, error) {
	if resource == "" {
		return "", fmt.Errorf("%w: empty resource name", core.ErrResourceNotFound)
	}

	if name, ok := strings.CutPrefix(resource, modelScheme); ok {
		if p, ok := f.findModel(name); ok {
			return p, nil
		}
		return "", fmt.Errorf("%w: %s", core.ErrResourceNotFound, resource)
	}

	if isFile(resource) {
		return resource, nil
	}

	if !filepath.IsAbs(resource) {
		for _, dir := range f.searchPaths() {
			candidate := filepath.Join(dir, resource)
			if isFile(candidate) {
				return candidate, nil
			}
		}
	}

	if !strings.ContainsAny(resource, `/\`) {
		if p, ok := f.findModel(resource); ok {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w: %s", core.ErrResourceNotFound, resource)
}

// Read resolves and reads a resource.
func (f *Finder) Read(resource string) (string, []byte, error) {
	path, err := f.Find(resource)
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", core.ErrResourceNotFound, path, err)
	}
	return path, data, nil
}

func (f *Finder) findModel(name string) (string, bool) {
	for _, dir := range f.searchPaths() {
		for _, candidate := range []string{
			filepath.Join(dir, name, "model.sdf"),
			filepath.Join(dir, name+".sdf"),
			filepath.Join(dir, name+".yaml"),
		} {
			if isFile(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

func (f *Finder) searchPaths() []string {
	if f == nil {
		return nil
	}
	return f.SearchPaths
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
