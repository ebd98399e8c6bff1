package host

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// Narrow-phase strategies.
const (
	// StrategySAT tests feature axes of both shapes plus a dense direction set.
	StrategySAT = "sat"
	// StrategySampled tests a fixed set of sampled directions and the center axis only.
	StrategySampled = "sampled"
)

// Profile describes how an engine computes contacts.
type Profile struct {
	Name     string
	Strategy string
	// Margin is the distance below which separated shapes already report a
	// contact with negative depth.
	Margin float64
	// DepthResolution rounds reported depths when non-zero.
	DepthResolution float64
	// Samples is the number of sampled directions.
	Samples int
}

// DefaultProfiles returns the built-in engine profiles.
func DefaultProfiles() []Profile {
	return []Profile{
		{Name: "ode", Strategy: StrategySAT, Samples: 256},
		{Name: "bullet", Strategy: StrategySAT, Margin: 0.04, Samples: 256},
		{Name: "dart", Strategy: StrategySAT, DepthResolution: 1e-6, Samples: 256},
		{Name: "simbody", Strategy: StrategySampled, Samples: 96},
	}
}

type registry struct {
	profiles map[string]Profile
	dirs     map[int][]mgl64.Vec3
}

func newRegistry() *registry {
	r := &registry{
		profiles: make(map[string]Profile),
		dirs:     make(map[int][]mgl64.Vec3),
	}
	for _, p := range DefaultProfiles() {
		r.add(p)
	}
	return r
}

func (r *registry) add(p Profile) {
	r.profiles[p.Name] = p
	if _, ok := r.dirs[p.Samples]; !ok {
		r.dirs[p.Samples] = fibonacciDirections(p.Samples)
	}
}

func (r *registry) get(name string) (Profile, bool) {
	p, ok := r.profiles[name]
	return p, ok
}

func (r *registry) names() []string {
	out := make([]string, 0, len(r.profiles))
	for n := range r.profiles {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// fibonacciDirections spreads n unit vectors over the half sphere z >= 0.
// Opposite directions are redundant for interval overlap tests.
func fibonacciDirections(n int) []mgl64.Vec3 {
	if n <= 0 {
		return nil
	}
	golden := math.Pi * (3 - math.Sqrt(5))
	dirs := make([]mgl64.Vec3, n)
	for i := 0; i < n; i++ {
		z := 1 - (float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - z*z)
		phi := golden * float64(i)
		dirs[i] = mgl64.Vec3{r * math.Cos(phi), r * math.Sin(phi), z}
	}
	return dirs
}
