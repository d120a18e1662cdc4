// pkg/render/engo/renderer_test.go
package engo

import (
	"math"
	"testing"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo/common"

	"github.com/opd-ai/rigid2d/pkg/engine"
	"github.com/opd-ai/rigid2d/pkg/physics"
)

// fakeSource serves a fixed snapshot and counts Advance calls
type fakeSource struct {
	state    *engine.State
	advanced []float64
}

func (f *fakeSource) Advance(realDt float64) int {
	f.advanced = append(f.advanced, realDt)
	return 1
}

func (f *fakeSource) Snapshot() *engine.State {
	return f.state
}

func TestNewBodyEntity_Drawables(t *testing.T) {
	w := physics.NewWorld(physics.DefaultSettings())
	triangle, err := w.AddPolygon(physics.Vector2D{}, []physics.Vector2D{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 0, Y: 2}}, 1, false)
	if err != nil {
		t.Fatalf("AddPolygon failed: %v", err)
	}

	tests := []struct {
		name     string
		body     *physics.Body
		wantSize physics.Vector2D
		check    func(common.Drawable) bool
	}{
		{
			name:     "circle",
			body:     w.AddCircle(physics.Vector2D{}, 0.5, 1, false),
			wantSize: physics.Vector2D{X: 1, Y: 1},
			check:    func(d common.Drawable) bool { _, ok := d.(common.Circle); return ok },
		},
		{
			name:     "box",
			body:     w.AddBox(physics.Vector2D{}, 2, 1, 1, true),
			wantSize: physics.Vector2D{X: 2, Y: 1},
			check:    func(d common.Drawable) bool { _, ok := d.(common.Rectangle); return ok },
		},
		{
			name:     "capsule",
			body:     w.AddCapsule(physics.Vector2D{}, 2, 0.25, 1, false),
			wantSize: physics.Vector2D{X: 2, Y: 0.5},
			check:    func(d common.Drawable) bool { _, ok := d.(common.Rectangle); return ok },
		},
		{
			name:     "triangle",
			body:     triangle,
			wantSize: physics.Vector2D{X: 2, Y: 2},
			check: func(d common.Drawable) bool {
				tri, ok := d.(common.ComplexTriangles)
				return ok && len(tri.Points) == 3
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewBodyEntity(tt.name, tt.body)
			if !tt.check(e.Drawable) {
				t.Errorf("unexpected drawable %T", e.Drawable)
			}
			if !approx(e.size.X, tt.wantSize.X) || !approx(e.size.Y, tt.wantSize.Y) {
				t.Errorf("expected size %v, got %v", tt.wantSize, e.size)
			}
			wantColor := DynamicColor
			if tt.body.Static {
				wantColor = StaticColor
			}
			if e.Color != wantColor {
				t.Errorf("expected colour %v, got %v", wantColor, e.Color)
			}
		})
	}
}

func TestFanTriangles_NormalisesWithYDown(t *testing.T) {
	square := []physics.Vector2D{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	bounds := physics.NewAABBFromPoints(square...)

	points := fanTriangles(square, bounds)
	if len(points) != 6 {
		t.Fatalf("expected 2 triangles, got %d points", len(points))
	}
	// world (0,0) is the bottom-left corner, which is screen (0,1)
	if points[0].X != 0 || points[0].Y != 1 {
		t.Errorf("expected first point (0, 1), got %v", points[0])
	}
	// world (1,1) is the top-right corner, which is screen (1,0)
	if points[2].X != 1 || points[2].Y != 0 {
		t.Errorf("expected third point (1, 0), got %v", points[2])
	}
}

func TestBodySystem_UpdatePlacesEntities(t *testing.T) {
	box := physics.NewBody(physics.Vector2D{}, 1, false, physics.NewBox(2, 1))
	source := &fakeSource{state: &engine.State{Bodies: []engine.BodyState{
		{Name: "box", Position: physics.Vector2D{X: 1, Y: 2}, Touching: true},
	}}}

	bs := NewBodySystem(source, NewView(800, 600, 10))
	e := NewBodyEntity("box", box)
	bs.Add(e)

	world := &ecs.World{}
	world.AddSystem(bs)
	world.Update(1.0 / 60)

	if len(source.advanced) != 1 || !approx(source.advanced[0], 1.0/60) {
		t.Errorf("expected one Advance with dt 1/60, got %v", source.advanced)
	}
	if bs.Steps() != 1 {
		t.Errorf("expected 1 step, got %d", bs.Steps())
	}
	if e.Width != 20 || e.Height != 10 {
		t.Errorf("expected 20x10 pixels, got %vx%v", e.Width, e.Height)
	}
	// centre (410, 280) minus half extents
	if !approx(float64(e.Position.X), 400) || !approx(float64(e.Position.Y), 275) {
		t.Errorf("expected top-left at (400, 275), got %v", e.Position)
	}
	if e.Color != TouchingColor {
		t.Errorf("expected touching colour, got %v", e.Color)
	}
	if e.Hidden {
		t.Error("expected entity to be visible")
	}
}

func TestBodySystem_RotationIsClockwiseDegrees(t *testing.T) {
	box := physics.NewBody(physics.Vector2D{}, 1, false, physics.NewBox(1, 1))
	source := &fakeSource{state: &engine.State{Bodies: []engine.BodyState{
		{Name: "box", Rotation: math.Pi / 2},
	}}}
	bs := NewBodySystem(source, NewView(800, 600, 10))
	e := NewBodyEntity("box", box)
	bs.Add(e)

	bs.Update(0)

	if !approx(float64(e.Rotation), -90) {
		t.Errorf("expected rotation -90 degrees, got %v", e.Rotation)
	}
}

func TestBodySystem_HidesMissingAndNonFiniteBodies(t *testing.T) {
	source := &fakeSource{state: &engine.State{Bodies: []engine.BodyState{
		{Name: "broken", Position: physics.Vector2D{X: math.NaN()}},
	}}}
	bs := NewBodySystem(source, NewView(800, 600, 10))

	gone := NewBodyEntity("gone", physics.NewBody(physics.Vector2D{}, 1, false, physics.NewCircle(1)))
	broken := NewBodyEntity("broken", physics.NewBody(physics.Vector2D{}, 1, false, physics.NewCircle(1)))
	bs.Add(gone)
	bs.Add(broken)

	bs.Update(1.0 / 60)

	if !gone.Hidden {
		t.Error("expected entity without a body to be hidden")
	}
	if !broken.Hidden {
		t.Error("expected non-finite body to be hidden")
	}
}

func TestBodySystem_AddRemove(t *testing.T) {
	bs := NewBodySystem(&fakeSource{state: &engine.State{}}, NewView(800, 600, 10))
	a := NewBodyEntity("a", physics.NewBody(physics.Vector2D{}, 1, false, physics.NewCircle(1)))
	b := NewBodyEntity("b", physics.NewBody(physics.Vector2D{}, 1, false, physics.NewCircle(1)))

	bs.Add(a)
	bs.Add(b)
	bs.Add(a)
	if got := bs.Entities(); len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("expected [a b], got %v", got)
	}

	bs.Remove(a.BasicEntity)
	if got := bs.Entities(); len(got) != 1 || got[0] != b {
		t.Errorf("expected [b] after remove, got %v", got)
	}

	bs.Remove(ecs.NewBasic())
	if len(bs.Entities()) != 1 {
		t.Error("removing an unknown entity changed the system")
	}
}

func TestBodySystem_Follow(t *testing.T) {
	source := &fakeSource{state: &engine.State{Bodies: []engine.BodyState{
		{Name: "ball", Position: physics.Vector2D{X: 5, Y: 5}},
	}}}
	view := NewView(800, 600, 10)
	bs := NewBodySystem(source, view)

	bs.Follow("ball")
	bs.Update(1.0 / 60)
	if view.Position() != (physics.Vector2D{X: 5, Y: 5}) {
		t.Errorf("expected view on ball, got %v", view.Position())
	}

	bs.Follow("")
	source.state.Bodies[0].Position = physics.Vector2D{X: 9}
	bs.Update(1.0 / 60)
	if view.Position() != (physics.Vector2D{X: 5, Y: 5}) {
		t.Errorf("expected view to stay put after Follow(\"\"), got %v", view.Position())
	}
}
