// pkg/render/engo/camera_test.go
package engo

import (
	"math"
	"testing"

	"github.com/EngoEngine/engo"

	"github.com/opd-ai/rigid2d/pkg/physics"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-4
}

func TestNewView(t *testing.T) {
	v := NewView(800, 600, 10)

	if v.Zoom() != 1.0 {
		t.Errorf("Expected default zoom 1.0, got %f", v.Zoom())
	}
	if v.Scale() != 10 {
		t.Errorf("Expected scale 10, got %f", v.Scale())
	}
	if v.Position() != (physics.Vector2D{}) {
		t.Errorf("Expected view at origin, got %v", v.Position())
	}
}

func TestView_WorldToScreen(t *testing.T) {
	v := NewView(800, 600, 10)

	tests := []struct {
		name  string
		world physics.Vector2D
		want  engo.Point
	}{
		{"origin", physics.Vector2D{}, engo.Point{X: 400, Y: 300}},
		{"up is smaller screen y", physics.Vector2D{Y: 2}, engo.Point{X: 400, Y: 280}},
		{"right is larger screen x", physics.Vector2D{X: 3}, engo.Point{X: 430, Y: 300}},
		{"down and left", physics.Vector2D{X: -1, Y: -1}, engo.Point{X: 390, Y: 310}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.WorldToScreen(tt.world)
			if got != tt.want {
				t.Errorf("WorldToScreen(%v) = %v, want %v", tt.world, got, tt.want)
			}
			back := v.ScreenToWorld(got)
			if !approx(back.X, tt.world.X) || !approx(back.Y, tt.world.Y) {
				t.Errorf("ScreenToWorld(%v) = %v, want %v", got, back, tt.world)
			}
		})
	}
}

func TestView_SetTarget_ClearTarget(t *testing.T) {
	v := NewView(800, 600, 10)
	first := physics.Vector2D{X: 4, Y: 2}

	t.Run("FirstTargetIsImmediate", func(t *testing.T) {
		v.SetTarget(first)
		if v.Position() != first {
			t.Errorf("Expected view at %v, got %v", first, v.Position())
		}
	})

	t.Run("LaterTargetsEase", func(t *testing.T) {
		v.SetTarget(physics.Vector2D{X: 8, Y: 2})
		v.Update(0.25) // followSpeed 2 covers half the gap
		if !approx(v.Position().X, 6) || !approx(v.Position().Y, 2) {
			t.Errorf("Expected view at (6, 2), got %v", v.Position())
		}
	})

	t.Run("LargeStepDoesNotOvershoot", func(t *testing.T) {
		v.Update(5)
		if !approx(v.Position().X, 8) {
			t.Errorf("Expected view at target x 8, got %v", v.Position())
		}
	})

	t.Run("ClearTargetStopsFollowing", func(t *testing.T) {
		v.ClearTarget()
		v.SetFollowSpeed(2)
		before := v.Position()
		v.Update(1)
		if v.Position() != before {
			t.Errorf("Expected view to stay at %v, got %v", before, v.Position())
		}
	})
}

func TestView_WithoutSmoothing(t *testing.T) {
	v := NewView(800, 600, 10)
	v.EnableSmoothing(false)
	v.SetTarget(physics.Vector2D{X: 1})
	v.SetTarget(physics.Vector2D{X: 5})
	if v.Position().X != 5 {
		t.Errorf("Expected immediate move to x 5, got %v", v.Position())
	}

	v.CenterOn(physics.Vector2D{Y: -3})
	v.Update(1)
	if v.Position() != (physics.Vector2D{Y: -3}) {
		t.Errorf("Expected CenterOn to stop following, got %v", v.Position())
	}
}

func TestView_Zoom(t *testing.T) {
	v := NewView(800, 600, 10)

	tests := []struct {
		name     string
		input    float32
		expected float32
	}{
		{"within range", 2.0, 2.0},
		{"below minimum", 0.01, 0.1},
		{"above maximum", 5.0, 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v.SetZoom(tt.input)
			if v.Zoom() != tt.expected {
				t.Errorf("SetZoom(%f) gave %f, want %f", tt.input, v.Zoom(), tt.expected)
			}
		})
	}

	v.SetZoom(2)
	if v.Scale() != 20 {
		t.Errorf("Expected scale 20 at zoom 2, got %f", v.Scale())
	}

	v.SetZoomLimits(0.5, 1.5)
	if v.Zoom() != 1.5 {
		t.Errorf("Expected zoom clamped to new maximum 1.5, got %f", v.Zoom())
	}
}
