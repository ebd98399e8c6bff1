package host

import (
	"fmt"
	"math"

	"github.com/OCAP2/collision-benchmark/internal/sdf"
	"github.com/OCAP2/collision-benchmark/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

type shapeKind int

const (
	kindBox shapeKind = iota
	kindSphere
	kindCylinder
)

const eps = 1e-12

// collider is one convex collision primitive of a body.
type collider struct {
	kind shapeKind
	// half extents for boxes, (r, r, half length) for cylinders
	half   mgl64.Vec3
	radius float64
	local  core.Pose
	world  core.Pose
}

func newCollider(g sdf.Geometry, local core.Pose) (collider, error) {
	if err := g.Validate(); err != nil {
		return collider{}, fmt.Errorf("%w: %v", ErrBadGeometry, err)
	}
	c := collider{local: local, world: local}
	switch {
	case g.Box != nil:
		c.kind = kindBox
		c.half = g.Box.Size.Vec3().Mul(0.5)
	case g.Sphere != nil:
		c.kind = kindSphere
		c.radius = g.Sphere.Radius
		c.half = mgl64.Vec3{c.radius, c.radius, c.radius}
	case g.Cylinder != nil:
		c.kind = kindCylinder
		c.radius = g.Cylinder.Radius
		c.half = mgl64.Vec3{c.radius, c.radius, g.Cylinder.Length / 2}
	}
	return c, nil
}

func (c *collider) place(model core.Pose) {
	c.world = model.Compose(c.local)
}

func (c *collider) center() mgl64.Vec3 {
	return c.world.Position
}

func (c *collider) toLocal(v mgl64.Vec3) mgl64.Vec3 {
	return c.world.Rotation.Inverse().Rotate(v)
}

// support returns the point of the collider farthest along d.
func (c *collider) support(d mgl64.Vec3) mgl64.Vec3 {
	switch c.kind {
	case kindSphere:
		l := d.Len()
		if l < eps {
			return c.center()
		}
		return c.center().Add(d.Mul(c.radius / l))
	case kindCylinder:
		dl := c.toLocal(d)
		var p mgl64.Vec3
		rho := math.Hypot(dl.X(), dl.Y())
		if rho > eps {
			p[0] = c.radius * dl.X() / rho
			p[1] = c.radius * dl.Y() / rho
		}
		p[2] = signOf(dl.Z()) * c.half.Z()
		return c.world.Apply(p)
	default:
		dl := c.toLocal(d)
		p := mgl64.Vec3{
			signOf(dl.X()) * c.half.X(),
			signOf(dl.Y()) * c.half.Y(),
			signOf(dl.Z()) * c.half.Z(),
		}
		return c.world.Apply(p)
	}
}

// closest returns the point of the collider nearest to p.
func (c *collider) closest(p mgl64.Vec3) mgl64.Vec3 {
	switch c.kind {
	case kindSphere:
		d := p.Sub(c.center())
		l := d.Len()
		if l <= c.radius {
			return p
		}
		return c.center().Add(d.Mul(c.radius / l))
	case kindCylinder:
		pl := c.toLocal(p.Sub(c.center()))
		rho := math.Hypot(pl.X(), pl.Y())
		if rho > c.radius {
			pl[0] *= c.radius / rho
			pl[1] *= c.radius / rho
		}
		pl[2] = clamp(pl.Z(), -c.half.Z(), c.half.Z())
		return c.world.Apply(pl)
	default:
		pl := c.toLocal(p.Sub(c.center()))
		for i := 0; i < 3; i++ {
			pl[i] = clamp(pl[i], -c.half[i], c.half[i])
		}
		return c.world.Apply(pl)
	}
}

// faceAxes returns the flat face normals in the world frame.
func (c *collider) faceAxes() []mgl64.Vec3 {
	r := c.world.Rotation
	switch c.kind {
	case kindBox:
		return []mgl64.Vec3{r.Rotate(mgl64.Vec3{1, 0, 0}), r.Rotate(mgl64.Vec3{0, 1, 0}), r.Rotate(mgl64.Vec3{0, 0, 1})}
	case kindCylinder:
		return []mgl64.Vec3{r.Rotate(mgl64.Vec3{0, 0, 1})}
	default:
		return nil
	}
}

// edgeDirs returns the straight edge directions in the world frame.
func (c *collider) edgeDirs() []mgl64.Vec3 {
	return c.faceAxes()
}

func (c *collider) aabb() core.AABB {
	var b core.AABB
	for i := 0; i < 3; i++ {
		var d mgl64.Vec3
		d[i] = 1
		b.Max[i] = c.support(d)[i]
		d[i] = -1
		b.Min[i] = c.support(d)[i]
	}
	return b
}

// body is a model instance inside a world.
type body struct {
	name       string
	desc       sdf.Model
	descText   string
	pose       core.Pose
	linearVel  mgl64.Vec3
	angularVel mgl64.Vec3
	static     bool
	colliders  []collider
}

func newBody(m *sdf.Model) (*body, error) {
	if m.Name == "" {
		return nil, fmt.Errorf("%w: model without a name", ErrBadGeometry)
	}
	b := &body{
		name:   m.Name,
		desc:   *m,
		pose:   m.Pose.Core(),
		static: m.Static,
	}
	for _, link := range m.Links {
		linkPose := link.Pose.Core()
		for _, col := range link.Collisions {
			c, err := newCollider(col.Geometry, linkPose.Compose(col.Pose.Core()))
			if err != nil {
				return nil, fmt.Errorf("model %q collision %q: %w", m.Name, col.Name, err)
			}
			b.colliders = append(b.colliders, c)
		}
	}
	text, err := sdf.ModelString(&b.desc)
	if err != nil {
		return nil, fmt.Errorf("%w: describe model %q: %v", ErrBadGeometry, m.Name, err)
	}
	b.descText = text
	b.place()
	return b, nil
}

func (b *body) place() {
	for i := range b.colliders {
		b.colliders[i].place(b.pose)
	}
}

func (b *body) setPose(p core.Pose) {
	p.Rotation = p.Rotation.Normalize()
	b.pose = p
	b.place()
}

// aabb returns the world frame bounds of all colliders. It is invalid when
// the body has no collision geometry.
func (b *body) aabb() core.AABB {
	box := core.EmptyAABB()
	for i := range b.colliders {
		box.Union(b.colliders[i].aabb())
	}
	return box
}

// describe returns the scene description of the body at its current pose.
func (b *body) describe() sdf.Model {
	m := b.desc
	m.Pose = sdf.NewPose(b.pose)
	return m
}

func (b *body) integrate(dt float64, gravity mgl64.Vec3) {
	if b.static {
		return
	}
	b.linearVel = b.linearVel.Add(gravity.Mul(dt))
	pos := b.pose.Position.Add(b.linearVel.Mul(dt))

	rot := b.pose.Rotation
	if b.angularVel.Len() > eps {
		w := mgl64.Quat{W: 0, V: b.angularVel}
		dq := w.Mul(rot)
		rot = mgl64.Quat{W: rot.W + 0.5*dt*dq.W, V: rot.V.Add(dq.V.Mul(0.5 * dt))}
	}
	b.setPose(core.Pose{Position: pos, Rotation: rot})
}

func signOf(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
