// pkg/render/engo/camera.go
package engo

import (
	"github.com/EngoEngine/engo"

	"github.com/opd-ai/rigid2d/pkg/physics"
)

// View maps world metres to screen pixels. World Y points up and screen Y points
// down. The view can follow a target position, easing toward it when smoothing is on.
type View struct {
	screenW, screenH float32
	pixelsPerMeter   float32

	target    physics.Vector2D
	targetSet bool

	zoom    float32
	minZoom float32
	maxZoom float32

	followSpeed float32
	smoothing   bool

	currentPos physics.Vector2D
}

// NewView creates a view of a screenW×screenH canvas centred on the world origin
func NewView(screenW, screenH, pixelsPerMeter float32) *View {
	return &View{
		screenW:        screenW,
		screenH:        screenH,
		pixelsPerMeter: pixelsPerMeter,
		zoom:           1.0,
		minZoom:        0.1,
		maxZoom:        3.0,
		followSpeed:    2.0,
		smoothing:      true,
	}
}

// Update eases the view toward its target
func (v *View) Update(dt float32) {
	if !v.targetSet {
		return
	}
	if !v.smoothing {
		v.currentPos = v.target
		return
	}
	step := float64(v.followSpeed * dt)
	if step > 1 {
		step = 1
	}
	v.currentPos = v.currentPos.Add(v.target.Sub(v.currentPos).Scale(step))
}

// SetTarget sets the position to follow. The first target is adopted immediately.
func (v *View) SetTarget(target physics.Vector2D) {
	first := !v.targetSet
	v.target = target
	v.targetSet = true
	if first || !v.smoothing {
		v.currentPos = target
	}
}

// ClearTarget stops following
func (v *View) ClearTarget() {
	v.targetSet = false
}

// CenterOn moves the view immediately and stops following
func (v *View) CenterOn(pos physics.Vector2D) {
	v.currentPos = pos
	v.targetSet = false
}

// SetZoom sets the zoom level within the zoom limits
func (v *View) SetZoom(zoom float32) {
	v.zoom = v.clampZoom(zoom)
}

// Zoom returns the current zoom level
func (v *View) Zoom() float32 {
	return v.zoom
}

func (v *View) clampZoom(zoom float32) float32 {
	if zoom < v.minZoom {
		return v.minZoom
	}
	if zoom > v.maxZoom {
		return v.maxZoom
	}
	return zoom
}

// SetZoomLimits sets the minimum and maximum zoom levels
func (v *View) SetZoomLimits(min, max float32) {
	v.minZoom = min
	v.maxZoom = max
	v.zoom = v.clampZoom(v.zoom)
}

// SetFollowSpeed sets the easing rate in 1/s
func (v *View) SetFollowSpeed(speed float32) {
	v.followSpeed = speed
}

// EnableSmoothing enables or disables easing toward the target
func (v *View) EnableSmoothing(enabled bool) {
	v.smoothing = enabled
}

// Position returns the world position at the centre of the screen
func (v *View) Position() physics.Vector2D {
	return v.currentPos
}

// Scale returns screen pixels per world metre at the current zoom
func (v *View) Scale() float32 {
	return v.pixelsPerMeter * v.zoom
}

// WorldToScreen converts a world position to a screen point
func (v *View) WorldToScreen(world physics.Vector2D) engo.Point {
	s := float64(v.Scale())
	return engo.Point{
		X: float32((world.X-v.currentPos.X)*s) + v.screenW/2,
		Y: v.screenH/2 - float32((world.Y-v.currentPos.Y)*s),
	}
}

// ScreenToWorld converts a screen point to a world position
func (v *View) ScreenToWorld(p engo.Point) physics.Vector2D {
	s := float64(v.Scale())
	return physics.Vector2D{
		X: float64(p.X-v.screenW/2)/s + v.currentPos.X,
		Y: float64(v.screenH/2-p.Y)/s + v.currentPos.Y,
	}
}
