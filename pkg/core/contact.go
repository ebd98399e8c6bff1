// pkg/core/contact.go
package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// ContactPoint is one point of a contact. Positive depth means overlap.
type ContactPoint struct {
	Position mgl64.Vec3 `json:"position"`
	Normal   mgl64.Vec3 `json:"normal"`
	Depth    float64    `json:"depth"`
}

// ContactInfo is one pairwise contact between two models.
type ContactInfo struct {
	ModelA string         `json:"modelA"`
	ModelB string         `json:"modelB"`
	Points []ContactPoint `json:"points"`
}

// Involves reports whether the contact is between a and b, in either order.
func (c ContactInfo) Involves(a, b string) bool {
	return (c.ModelA == a && c.ModelB == b) || (c.ModelA == b && c.ModelB == a)
}

// MaxDepth returns the largest absolute depth of all points.
func (c ContactInfo) MaxDepth() float64 {
	var d float64
	for _, p := range c.Points {
		d = math.Max(d, math.Abs(p.Depth))
	}
	return d
}

func (c ContactInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <-> %s:", c.ModelA, c.ModelB)
	for _, p := range c.Points {
		fmt.Fprintf(&b, " [pos=(%.4f, %.4f, %.4f) n=(%.3f, %.3f, %.3f) depth=%.6f]",
			p.Position.X(), p.Position.Y(), p.Position.Z(),
			p.Normal.X(), p.Normal.Y(), p.Normal.Z(), p.Depth)
	}
	return b.String()
}
