package physics

import "math"

// AABB is an axis-aligned bounding box
type AABB struct {
	Min Vector2D `json:"min"`
	Max Vector2D `json:"max"`
}

// EmptyAABB returns an inverted box that any Expand call will overwrite
func EmptyAABB() AABB {
	return AABB{
		Min: Vector2D{X: math.Inf(1), Y: math.Inf(1)},
		Max: Vector2D{X: math.Inf(-1), Y: math.Inf(-1)},
	}
}

// NewAABBFromPoints returns the smallest box containing every point
func NewAABBFromPoints(points ...Vector2D) AABB {
	return EmptyAABB().Expand(points...)
}

// Overlaps reports whether two boxes intersect on both axes
func (b AABB) Overlaps(other AABB) bool {
	return b.Min.X <= other.Max.X && b.Max.X >= other.Min.X &&
		b.Min.Y <= other.Max.Y && b.Max.Y >= other.Min.Y
}

// Expand folds the points into the box
func (b AABB) Expand(points ...Vector2D) AABB {
	for _, p := range points {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
	}
	return b
}

// Union returns a box that covers both boxes
func (b AABB) Union(other AABB) AABB {
	return b.Expand(other.Min, other.Max)
}

// Contains reports whether the point lies inside or on the box
func (b AABB) Contains(point Vector2D) bool {
	return point.X >= b.Min.X && point.X <= b.Max.X &&
		point.Y >= b.Min.Y && point.Y <= b.Max.Y
}

// Center returns the midpoint of the box
func (b AABB) Center() Vector2D {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the width and height of the box
func (b AABB) Size() Vector2D {
	return b.Max.Sub(b.Min)
}

// Inflate grows the box by margin on every side
func (b AABB) Inflate(margin float64) AABB {
	d := Vector2D{X: margin, Y: margin}
	return AABB{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}
