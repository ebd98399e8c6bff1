package host

import (
	"math"

	"github.com/OCAP2/collision-benchmark/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

// touchTol absorbs rounding when shapes exactly touch.
const touchTol = 1e-9

type pairResult struct {
	depth  float64
	normal mgl64.Vec3
	point  mgl64.Vec3
}

// collide computes the penetration of a and b along the least overlapping
// candidate axis. Negative depth is the gap along that axis.
func (p Profile) collide(a, b *collider, dirs []mgl64.Vec3) pairResult {
	axes := make([]mgl64.Vec3, 0, len(dirs)+16)
	if d := b.center().Sub(a.center()); d.Len() > eps {
		axes = append(axes, d)
	}
	if p.Strategy == StrategySAT {
		axes = append(axes, featureAxes(a, b)...)
	}
	axes = append(axes, dirs...)

	best := pairResult{depth: math.Inf(1)}
	for _, axis := range axes {
		l := axis.Len()
		if l < eps {
			continue
		}
		n := axis.Mul(1 / l)
		aMax := a.support(n).Dot(n)
		aMin := a.support(n.Mul(-1)).Dot(n)
		bMax := b.support(n).Dot(n)
		bMin := b.support(n.Mul(-1)).Dot(n)

		// penetration when b is pushed along +n or along -n
		forward := aMax - bMin
		backward := bMax - aMin
		depth, dir := forward, n
		if backward < forward {
			depth, dir = backward, n.Mul(-1)
		}
		if depth < best.depth {
			best.depth = depth
			best.normal = dir
		}
	}
	if math.IsInf(best.depth, 1) {
		// coincident spheres
		best = pairResult{depth: a.radius + b.radius, normal: mgl64.Vec3{0, 0, 1}}
	}

	pa := a.support(best.normal)
	pb := b.support(best.normal.Mul(-1))
	best.point = pa.Add(pb).Mul(0.5)

	if p.DepthResolution > 0 {
		best.depth = math.Round(best.depth/p.DepthResolution) * p.DepthResolution
	}
	return best
}

// inContact reports whether a pair result counts as a contact for the profile.
func (p Profile) inContact(r pairResult) bool {
	return r.depth >= -(p.Margin + touchTol)
}

func featureAxes(a, b *collider) []mgl64.Vec3 {
	var axes []mgl64.Vec3
	axes = append(axes, a.faceAxes()...)
	axes = append(axes, b.faceAxes()...)
	for _, ea := range a.edgeDirs() {
		for _, eb := range b.edgeDirs() {
			if c := ea.Cross(eb); c.Len() > 1e-9 {
				axes = append(axes, c)
			}
		}
	}
	// axes towards the nearest points cover curved surfaces
	axes = append(axes, a.center().Sub(b.closest(a.center())))
	axes = append(axes, b.center().Sub(a.closest(b.center())))
	for _, cyl := range []*collider{a, b} {
		if cyl.kind != kindCylinder {
			continue
		}
		other := b
		if cyl == b {
			other = a
		}
		ax := cyl.faceAxes()[0]
		d := other.center().Sub(cyl.center())
		radial := d.Sub(ax.Mul(d.Dot(ax)))
		axes = append(axes, radial)
		for _, e := range other.edgeDirs() {
			axes = append(axes, ax.Cross(e))
		}
	}
	return axes
}

// contacts runs the narrow phase over all body pairs. Static pairs never
// collide. One contact point is reported per pair, taken from the deepest
// collider pair.
func (p Profile) contacts(bodies []*body, dirs []mgl64.Vec3) []core.ContactInfo {
	var out []core.ContactInfo
	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			a, b := bodies[i], bodies[j]
			if a.static && b.static {
				continue
			}
			if !p.boundsClose(a, b) {
				continue
			}
			best, found := pairResult{depth: math.Inf(-1)}, false
			for ci := range a.colliders {
				for cj := range b.colliders {
					r := p.collide(&a.colliders[ci], &b.colliders[cj], dirs)
					if p.inContact(r) && r.depth > best.depth {
						best, found = r, true
					}
				}
			}
			if !found {
				continue
			}
			out = append(out, core.ContactInfo{
				ModelA: a.name,
				ModelB: b.name,
				Points: []core.ContactPoint{{
					Position: best.point,
					Normal:   best.normal,
					Depth:    best.depth,
				}},
			})
		}
	}
	return out
}

func (p Profile) boundsClose(a, b *body) bool {
	ba, bb := a.aabb(), b.aabb()
	if !ba.Valid() || !bb.Valid() {
		return false
	}
	gap := p.Margin + touchTol
	for i := 0; i < 3; i++ {
		if ba.Min[i] > bb.Max[i]+gap || bb.Min[i] > ba.Max[i]+gap {
			return false
		}
	}
	return true
}
