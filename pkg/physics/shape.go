// pkg/physics/shape.go
package physics

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Polygon construction errors
var (
	ErrTooFewVertices   = errors.New("polygon needs at least 3 vertices")
	ErrDegenerateEdge   = errors.New("polygon has a zero-length edge")
	ErrClockwiseWinding = errors.New("polygon vertices must be wound counter-clockwise")
	ErrNotConvex        = errors.New("polygon is not convex")
)

const geometryEpsilon = 1e-12

// Shape is the collision geometry attached to a body, expressed in body-local space.
// The set of shapes is closed: *Circle and *Polygon.
type Shape interface {
	// ContainsPoint tests a point given in body-local space
	ContainsPoint(local Vector2D) bool
	// MassData returns mass, centroid and inertia about the body origin for the given density
	MassData(density float64) MassData
	bounds(xf transform) AABB
	isShape()
}

// MassData holds the mass properties of a shape or body
type MassData struct {
	Mass    float64
	Center  Vector2D
	Inertia float64
}

// Circle is a disc with a radius and an offset from the body origin
type Circle struct {
	Radius float64
	Offset Vector2D
}

// NewCircle returns a circle centred on the body origin
func NewCircle(radius float64) *Circle {
	return &Circle{Radius: radius}
}

// ContainsPoint implements Shape
func (c *Circle) ContainsPoint(local Vector2D) bool {
	return local.Sub(c.Offset).LengthSquared() <= c.Radius*c.Radius
}

// MassData implements Shape
func (c *Circle) MassData(density float64) MassData {
	mass := density * math.Pi * c.Radius * c.Radius
	return MassData{
		Mass:    mass,
		Center:  c.Offset,
		Inertia: mass * (0.5*c.Radius*c.Radius + c.Offset.LengthSquared()),
	}
}

func (c *Circle) bounds(xf transform) AABB {
	center := xf.apply(c.Offset)
	r := Vector2D{X: c.Radius, Y: c.Radius}
	return AABB{Min: center.Sub(r), Max: center.Add(r)}
}

func (*Circle) isShape() {}

// Polygon is a convex polygon with counter-clockwise vertices in body-local space
type Polygon struct {
	Vertices []Vector2D
}

// NewPolygon copies and validates the vertex list. Winding must be counter-clockwise
// and the outline convex; collinear neighbours are tolerated.
func NewPolygon(vertices []Vector2D) (*Polygon, error) {
	n := len(vertices)
	if n < 3 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewVertices, n)
	}

	for i := 0; i < n; i++ {
		if vertices[(i+1)%n].Sub(vertices[i]).LengthSquared() < geometryEpsilon {
			return nil, fmt.Errorf("%w: edge %d", ErrDegenerateEdge, i)
		}
	}

	if signedArea(vertices) <= 0 {
		return nil, ErrClockwiseWinding
	}

	for i := 0; i < n; i++ {
		e1 := vertices[(i+1)%n].Sub(vertices[i])
		e2 := vertices[(i+2)%n].Sub(vertices[(i+1)%n])
		if e1.Cross(e2) < -geometryEpsilon {
			return nil, fmt.Errorf("%w: reflex vertex %d", ErrNotConvex, (i+1)%n)
		}
	}

	verts := make([]Vector2D, n)
	copy(verts, vertices)
	return &Polygon{Vertices: verts}, nil
}

// NewBox returns a w×h rectangle centred on the body origin
func NewBox(width, height float64) *Polygon {
	hw, hh := width/2, height/2
	return &Polygon{Vertices: []Vector2D{
		{X: -hw, Y: -hh},
		{X: hw, Y: -hh},
		{X: hw, Y: hh},
		{X: -hw, Y: hh},
	}}
}

// Normals returns the outward unit normal of each edge i -> i+1
func (p *Polygon) Normals() []Vector2D {
	n := len(p.Vertices)
	normals := make([]Vector2D, n)
	for i := 0; i < n; i++ {
		normals[i] = p.edgeNormal(i)
	}
	return normals
}

func (p *Polygon) edgeNormal(i int) Vector2D {
	n := len(p.Vertices)
	return p.Vertices[(i+1)%n].Sub(p.Vertices[i]).RotateCW90().Normalize()
}

// ContainsPoint implements Shape
func (p *Polygon) ContainsPoint(local Vector2D) bool {
	for i, v := range p.Vertices {
		if p.edgeNormal(i).Dot(local.Sub(v)) > 0 {
			return false
		}
	}
	return true
}

// MassData implements Shape. Inertia is taken about the body origin.
func (p *Polygon) MassData(density float64) MassData {
	var area, inertia float64
	var center Vector2D
	n := len(p.Vertices)
	for i := 0; i < n; i++ {
		e1 := p.Vertices[i]
		e2 := p.Vertices[(i+1)%n]
		d := e1.Cross(e2)
		triArea := 0.5 * d
		area += triArea
		center = center.Add(e1.Add(e2).Scale(triArea / 3))

		intx2 := e1.X*e1.X + e2.X*e1.X + e2.X*e2.X
		inty2 := e1.Y*e1.Y + e2.Y*e1.Y + e2.Y*e2.Y
		inertia += (0.25 / 3 * d) * (intx2 + inty2)
	}
	if area > 0 {
		center = center.Scale(1 / area)
	}
	return MassData{
		Mass:    density * area,
		Center:  center,
		Inertia: density * inertia,
	}
}

func (p *Polygon) bounds(xf transform) AABB {
	box := EmptyAABB()
	for _, v := range p.Vertices {
		box = box.Expand(xf.apply(v))
	}
	return box
}

func (*Polygon) isShape() {}

func signedArea(vertices []Vector2D) float64 {
	var area float64
	n := len(vertices)
	for i := 0; i < n; i++ {
		area += vertices[i].Cross(vertices[(i+1)%n])
	}
	return 0.5 * area
}

// transform is a rigid placement: rotate, then translate
type transform struct {
	p Vector2D
	q mgl64.Mat2
}

func newTransform(position Vector2D, angle float64) transform {
	return transform{p: position, q: mgl64.Rotate2D(angle)}
}

func (xf transform) apply(v Vector2D) Vector2D {
	return fromVec2(xf.q.Mul2x1(v.vec2())).Add(xf.p)
}

func (xf transform) applyInverse(v Vector2D) Vector2D {
	return fromVec2(xf.q.Transpose().Mul2x1(v.Sub(xf.p).vec2()))
}

func (xf transform) rotate(v Vector2D) Vector2D {
	return fromVec2(xf.q.Mul2x1(v.vec2()))
}
