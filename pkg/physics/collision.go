// pkg/physics/collision.go
package physics

import "math"

// featureFace marks a feature index that names an edge rather than a vertex
const featureFace uint16 = 0x8000

// FeatureID identifies a contact point by the geometric features that produced it,
// so the same touching corner or edge maps to the same contact on the next step.
type FeatureID struct {
	BodyA    BodyID `json:"bodyA"`
	BodyB    BodyID `json:"bodyB"`
	ShapeA   uint16 `json:"shapeA"`
	ShapeB   uint16 `json:"shapeB"`
	FeatureA uint16 `json:"featureA"`
	FeatureB uint16 `json:"featureB"`
	// Flip is set when body B supplied the reference face
	Flip bool `json:"flip"`
}

// manifoldPoint is one narrow-phase result with the normal pointing from A to B
type manifoldPoint struct {
	normal Vector2D
	point  Vector2D
	depth  float64
	id     FeatureID
}

// CollisionResult contains information about the deepest contact between two bodies
type CollisionResult struct {
	Collided     bool
	Normal       Vector2D
	Penetration  float64
	ContactPoint Vector2D
}

// CheckCollision runs the narrow phase on two bodies without touching the solver.
// Masks and the static rule are ignored.
func CheckCollision(a, b *Body) CollisionResult {
	var result CollisionResult
	for _, m := range collideBodies(a, b, 0) {
		if m.depth < 0 {
			continue
		}
		if !result.Collided || m.depth > result.Penetration {
			result = CollisionResult{
				Collided:     true,
				Normal:       m.normal,
				Penetration:  m.depth,
				ContactPoint: m.point,
			}
		}
	}
	return result
}

type bodyPair struct {
	a, b *Body
}

// broadPhase returns candidate pairs in arena order. Boxes are inflated by margin so
// speculative contacts are found before the shapes touch.
func broadPhase(bodies []*Body, margin float64) []bodyPair {
	boxes := make([]AABB, len(bodies))
	for i, b := range bodies {
		if b != nil {
			boxes[i] = b.AABB().Inflate(margin)
		}
	}

	var pairs []bodyPair
	for i := 0; i < len(bodies); i++ {
		if bodies[i] == nil {
			continue
		}
		for j := i + 1; j < len(bodies); j++ {
			if bodies[j] == nil {
				continue
			}
			if !canCollide(bodies[i], bodies[j]) {
				continue
			}
			if boxes[i].Overlaps(boxes[j]) {
				pairs = append(pairs, bodyPair{a: bodies[i], b: bodies[j]})
			}
		}
	}
	return pairs
}

// collideBodies runs the narrow phase over every shape pair of two bodies
func collideBodies(a, b *Body, slop float64) []manifoldPoint {
	xfA, xfB := a.transform(), b.transform()
	var out []manifoldPoint
	for i, sa := range a.Shapes {
		for j, sb := range b.Shapes {
			base := FeatureID{BodyA: a.id, BodyB: b.id, ShapeA: uint16(i), ShapeB: uint16(j)}
			out = append(out, collideShapes(sa, xfA, sb, xfB, slop, base)...)
		}
	}
	return out
}

func collideShapes(sa Shape, xfA transform, sb Shape, xfB transform, slop float64, base FeatureID) []manifoldPoint {
	switch a := sa.(type) {
	case *Circle:
		switch b := sb.(type) {
		case *Circle:
			return collideCircles(a, xfA, b, xfB, slop, base)
		case *Polygon:
			return collideCirclePolygon(a, xfA, b, xfB, slop, base, true)
		}
	case *Polygon:
		switch b := sb.(type) {
		case *Circle:
			return collideCirclePolygon(b, xfB, a, xfA, slop, base, false)
		case *Polygon:
			return collidePolygons(newWorldPolygon(a, xfA), newWorldPolygon(b, xfB), slop, base)
		}
	}
	return nil
}

func collideCircles(a *Circle, xfA transform, b *Circle, xfB transform, slop float64, base FeatureID) []manifoldPoint {
	cA := xfA.apply(a.Offset)
	cB := xfB.apply(b.Offset)
	d := cB.Sub(cA)
	separation := d.Length() - a.Radius - b.Radius
	if separation > slop {
		return nil
	}
	normal := d.Normalize()
	return []manifoldPoint{{
		normal: normal,
		point:  cA.Add(normal.Scale(a.Radius)),
		depth:  -separation,
		id:     base,
	}}
}

// collideCirclePolygon tests the polygon's face normals and the axis toward the vertex
// nearest the circle centre. circleIsA tells which side of the pair the circle is on.
func collideCirclePolygon(c *Circle, xfC transform, p *Polygon, xfP transform, slop float64, base FeatureID, circleIsA bool) []manifoldPoint {
	poly := newWorldPolygon(p, xfP)
	center := xfC.apply(c.Offset)

	// axis points from the polygon toward the circle
	bestSep := math.Inf(-1)
	var axis Vector2D
	var feature uint16
	for i, n := range poly.normals {
		sep := n.Dot(center.Sub(poly.vertices[i])) - c.Radius
		if sep > slop {
			return nil
		}
		if sep > bestSep {
			bestSep, axis, feature = sep, n, uint16(i)|featureFace
		}
	}

	nearest := 0
	nearestDist := math.Inf(1)
	for i, v := range poly.vertices {
		if d := center.Sub(v).LengthSquared(); d < nearestDist {
			nearest, nearestDist = i, d
		}
	}
	if nearestDist > geometryEpsilon {
		vAxis := center.Sub(poly.vertices[nearest]).Normalize()
		support := math.Inf(-1)
		for _, v := range poly.vertices {
			support = math.Max(support, vAxis.Dot(v))
		}
		sep := vAxis.Dot(center) - c.Radius - support
		if sep > slop {
			return nil
		}
		if sep > bestSep {
			bestSep, axis, feature = sep, vAxis, uint16(nearest)
		}
	}

	m := manifoldPoint{
		point: center.Sub(axis.Scale(c.Radius)),
		depth: -bestSep,
		id:    base,
	}
	if circleIsA {
		m.normal = axis.Negate()
		m.id.FeatureB = feature
	} else {
		m.normal = axis
		m.id.FeatureA = feature
	}
	return []manifoldPoint{m}
}

// worldPolygon caches a polygon's vertices and normals in world space
type worldPolygon struct {
	vertices []Vector2D
	normals  []Vector2D
}

func newWorldPolygon(p *Polygon, xf transform) worldPolygon {
	n := len(p.Vertices)
	wp := worldPolygon{
		vertices: make([]Vector2D, n),
		normals:  make([]Vector2D, n),
	}
	for i, v := range p.Vertices {
		wp.vertices[i] = xf.apply(v)
		wp.normals[i] = xf.rotate(p.edgeNormal(i))
	}
	return wp
}

// findMaxSeparation returns the face of p1 that separates it furthest from p2
func findMaxSeparation(p1, p2 worldPolygon) (int, float64) {
	bestIndex := 0
	bestSep := math.Inf(-1)
	for i, n := range p1.normals {
		v := p1.vertices[i]
		sep := math.Inf(1)
		for _, w := range p2.vertices {
			sep = math.Min(sep, n.Dot(w.Sub(v)))
		}
		if sep > bestSep {
			bestIndex, bestSep = i, sep
		}
	}
	return bestIndex, bestSep
}

type clipVertex struct {
	v        Vector2D
	refID    uint16
	incident uint16
}

// clipSegmentToLine keeps the part of the segment with normal·p <= offset
func clipSegmentToLine(in [2]clipVertex, normal Vector2D, offset float64, refVertex uint16, incidentEdge uint16) ([2]clipVertex, int) {
	var out [2]clipVertex
	count := 0

	d0 := normal.Dot(in[0].v) - offset
	d1 := normal.Dot(in[1].v) - offset

	if d0 <= 0 {
		out[count] = in[0]
		count++
	}
	if d1 <= 0 {
		out[count] = in[1]
		count++
	}

	if d0*d1 < 0 && count < 2 {
		t := d0 / (d0 - d1)
		out[count] = clipVertex{
			v:        in[0].v.Add(in[1].v.Sub(in[0].v).Scale(t)),
			refID:    refVertex,
			incident: incidentEdge | featureFace,
		}
		count++
	}
	return out, count
}

func collidePolygons(a, b worldPolygon, slop float64, base FeatureID) []manifoldPoint {
	edgeA, sepA := findMaxSeparation(a, b)
	if sepA > slop {
		return nil
	}
	edgeB, sepB := findMaxSeparation(b, a)
	if sepB > slop {
		return nil
	}

	ref, inc := a, b
	refEdge := edgeA
	flip := false
	if sepB > sepA+0.1*slop {
		ref, inc = b, a
		refEdge = edgeB
		flip = true
	}

	refNormal := ref.normals[refEdge]

	// incident edge is the one most anti-parallel to the reference normal
	incEdge := 0
	minDot := math.Inf(1)
	for i, n := range inc.normals {
		if d := refNormal.Dot(n); d < minDot {
			incEdge, minDot = i, d
		}
	}

	nRef, nInc := len(ref.vertices), len(inc.vertices)
	i1, i2 := refEdge, (refEdge+1)%nRef
	j1, j2 := incEdge, (incEdge+1)%nInc

	v1, v2 := ref.vertices[i1], ref.vertices[i2]
	tangent := v2.Sub(v1).Normalize()

	incident := [2]clipVertex{
		{v: inc.vertices[j1], refID: uint16(refEdge) | featureFace, incident: uint16(j1)},
		{v: inc.vertices[j2], refID: uint16(refEdge) | featureFace, incident: uint16(j2)},
	}

	clip1, n1 := clipSegmentToLine(incident, tangent.Negate(), -tangent.Dot(v1), uint16(i1), uint16(incEdge))
	if n1 < 2 {
		return nil
	}
	clip2, n2 := clipSegmentToLine(clip1, tangent, tangent.Dot(v2), uint16(i2), uint16(incEdge))
	if n2 < 2 {
		return nil
	}

	frontOffset := refNormal.Dot(v1)
	normal := refNormal
	if flip {
		normal = refNormal.Negate()
	}

	out := make([]manifoldPoint, 0, 2)
	for _, cv := range clip2 {
		separation := refNormal.Dot(cv.v) - frontOffset
		if separation > slop {
			continue
		}
		id := base
		id.Flip = flip
		if flip {
			id.FeatureA, id.FeatureB = cv.incident, cv.refID
		} else {
			id.FeatureA, id.FeatureB = cv.refID, cv.incident
		}
		out = append(out, manifoldPoint{
			normal: normal,
			// midway between the incident point and its projection on the reference face
			point: cv.v.Sub(refNormal.Scale(0.5 * separation)),
			depth: -separation,
			id:    id,
		})
	}
	return out
}
