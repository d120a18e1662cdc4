package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPolygon_Validation(t *testing.T) {
	tests := []struct {
		name     string
		vertices []Vector2D
		wantErr  error
	}{
		{
			name:     "ccw_triangle",
			vertices: []Vector2D{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}},
		},
		{
			name:     "too_few",
			vertices: []Vector2D{{X: 0, Y: 0}, {X: 1, Y: 0}},
			wantErr:  ErrTooFewVertices,
		},
		{
			name:     "clockwise",
			vertices: []Vector2D{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 0}},
			wantErr:  ErrClockwiseWinding,
		},
		{
			name:     "duplicate_vertex",
			vertices: []Vector2D{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}},
			wantErr:  ErrDegenerateEdge,
		},
		{
			name: "reflex_vertex",
			vertices: []Vector2D{
				{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 1, Y: 0.5}, {X: 0, Y: 2},
			},
			wantErr: ErrNotConvex,
		},
		{
			name:     "collinear_neighbours_allowed",
			vertices: []Vector2D{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 1, Y: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poly, err := NewPolygon(tt.vertices)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewPolygon() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewPolygon() unexpected error: %v", err)
			}
			if len(poly.Vertices) != len(tt.vertices) {
				t.Errorf("vertex count = %d, want %d", len(poly.Vertices), len(tt.vertices))
			}
		})
	}
}

func TestNewPolygon_CopiesInput(t *testing.T) {
	verts := []Vector2D{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	poly, err := NewPolygon(verts)
	require.NoError(t, err)

	verts[0] = Vector2D{X: 100, Y: 100}
	assert.Equal(t, Vector2D{}, poly.Vertices[0])
}

func TestPolygon_Normals(t *testing.T) {
	box := NewBox(2, 2)
	expected := []Vector2D{{X: 0, Y: -1}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0}}

	normals := box.Normals()
	require.Len(t, normals, 4)
	for i, n := range normals {
		assert.InDelta(t, expected[i].X, n.X, 1e-12, "normal %d", i)
		assert.InDelta(t, expected[i].Y, n.Y, 1e-12, "normal %d", i)
	}
}

func TestShape_ContainsPoint(t *testing.T) {
	box := NewBox(2, 1)
	circle := &Circle{Radius: 1, Offset: Vector2D{X: 2}}

	tests := []struct {
		name     string
		shape    Shape
		point    Vector2D
		expected bool
	}{
		{"box_center", box, Vector2D{}, true},
		{"box_edge", box, Vector2D{X: 1, Y: 0}, true},
		{"box_outside", box, Vector2D{X: 0, Y: 0.6}, false},
		{"circle_offset_center", circle, Vector2D{X: 2}, true},
		{"circle_origin_outside", circle, Vector2D{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.shape.ContainsPoint(tt.point); got != tt.expected {
				t.Errorf("ContainsPoint(%v) = %v, want %v", tt.point, got, tt.expected)
			}
		})
	}
}

func TestShape_MassData(t *testing.T) {
	t.Run("box", func(t *testing.T) {
		md := NewBox(2, 4).MassData(3)
		mass := 3.0 * 8
		assert.InDelta(t, mass, md.Mass, 1e-9)
		assert.InDelta(t, mass*(4+16)/12, md.Inertia, 1e-9)
		assert.InDelta(t, 0, md.Center.Length(), 1e-12)
	})

	t.Run("circle", func(t *testing.T) {
		md := NewCircle(0.5).MassData(2)
		mass := 2 * math.Pi * 0.25
		assert.InDelta(t, mass, md.Mass, 1e-12)
		assert.InDelta(t, mass*0.125, md.Inertia, 1e-12)
	})

	t.Run("offset_circle_uses_parallel_axis", func(t *testing.T) {
		c := &Circle{Radius: 1, Offset: Vector2D{X: 3}}
		md := c.MassData(1)
		assert.InDelta(t, math.Pi*(0.5+9), md.Inertia, 1e-9)
		assert.Equal(t, Vector2D{X: 3}, md.Center)
	})

	t.Run("triangle_centroid", func(t *testing.T) {
		poly, err := NewPolygon([]Vector2D{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 0, Y: 3}})
		require.NoError(t, err)
		md := poly.MassData(1)
		assert.InDelta(t, 4.5, md.Mass, 1e-12)
		assert.InDelta(t, 1, md.Center.X, 1e-12)
		assert.InDelta(t, 1, md.Center.Y, 1e-12)
	})
}

func TestAABB(t *testing.T) {
	a := NewAABBFromPoints(Vector2D{X: 0, Y: 0}, Vector2D{X: 2, Y: 1})
	b := AABB{Min: Vector2D{X: 2, Y: 1}, Max: Vector2D{X: 3, Y: 3}}
	c := AABB{Min: Vector2D{X: 2.1, Y: 0}, Max: Vector2D{X: 3, Y: 1}}

	assert.True(t, a.Overlaps(b), "touching corners overlap")
	assert.False(t, a.Overlaps(c))
	assert.True(t, a.Inflate(0.2).Overlaps(c))

	u := a.Union(b)
	assert.Equal(t, Vector2D{X: 0, Y: 0}, u.Min)
	assert.Equal(t, Vector2D{X: 3, Y: 3}, u.Max)
	assert.True(t, u.Contains(Vector2D{X: 1.5, Y: 2}))
	assert.False(t, u.Contains(Vector2D{X: -0.1, Y: 2}))
	assert.Equal(t, Vector2D{X: 1.5, Y: 1.5}, u.Center())
}

func TestBody_AABB(t *testing.T) {
	b := NewBody(Vector2D{X: 5, Y: 5}, 1, false, NewBox(2, 2))
	b.Rotation = math.Pi / 4

	box := b.AABB()
	half := math.Sqrt2
	assert.InDelta(t, 5-half, box.Min.X, 1e-9)
	assert.InDelta(t, 5+half, box.Max.Y, 1e-9)
}
