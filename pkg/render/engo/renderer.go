// pkg/render/engo/renderer.go
package engo

import (
	"image/color"
	"math"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"

	"github.com/opd-ai/rigid2d/pkg/engine"
	"github.com/opd-ai/rigid2d/pkg/physics"
)

// Body colours
var (
	StaticColor   = color.RGBA{120, 120, 120, 255}
	DynamicColor  = color.RGBA{70, 130, 220, 255}
	TouchingColor = color.RGBA{235, 150, 50, 255}
)

// Source is the simulation a BodySystem drives and draws
type Source interface {
	Advance(realDt float64) int
	Snapshot() *engine.State
}

// BodyEntity is the ECS entity drawn for one simulation body
type BodyEntity struct {
	ecs.BasicEntity
	common.RenderComponent
	common.SpaceComponent

	Name string
	// centre of the drawn box relative to the body origin, in body-local metres
	localCenter physics.Vector2D
	// size of the drawn box in metres
	size physics.Vector2D
}

// NewBodyEntity builds an entity whose drawable matches the body's shapes: a circle,
// a convex polygon, or the bounding rectangle of a compound body such as a capsule.
func NewBodyEntity(name string, body *physics.Body) *BodyEntity {
	bounds := localBounds(body.Shapes)
	e := &BodyEntity{
		BasicEntity: ecs.NewBasic(),
		Name:        name,
		localCenter: bounds.Center(),
		size:        bounds.Size(),
	}
	e.RenderComponent = common.RenderComponent{
		Drawable: drawableFor(body.Shapes, bounds),
		Color:    DynamicColor,
		Scale:    engo.Point{X: 1, Y: 1},
	}
	if body.Static {
		e.RenderComponent.Color = StaticColor
	}
	return e
}

func localBounds(shapes []physics.Shape) physics.AABB {
	box := physics.EmptyAABB()
	for _, s := range shapes {
		switch shape := s.(type) {
		case *physics.Circle:
			r := physics.Vector2D{X: shape.Radius, Y: shape.Radius}
			box = box.Expand(shape.Offset.Sub(r), shape.Offset.Add(r))
		case *physics.Polygon:
			box = box.Expand(shape.Vertices...)
		}
	}
	return box
}

func drawableFor(shapes []physics.Shape, bounds physics.AABB) common.Drawable {
	if len(shapes) != 1 {
		return common.Rectangle{}
	}
	switch shape := shapes[0].(type) {
	case *physics.Circle:
		return common.Circle{}
	case *physics.Polygon:
		if isAxisAlignedBox(shape, bounds) {
			return common.Rectangle{}
		}
		return common.ComplexTriangles{Points: fanTriangles(shape.Vertices, bounds)}
	}
	return common.Rectangle{}
}

func isAxisAlignedBox(p *physics.Polygon, bounds physics.AABB) bool {
	if len(p.Vertices) != 4 {
		return false
	}
	for _, v := range p.Vertices {
		onX := v.X == bounds.Min.X || v.X == bounds.Max.X
		onY := v.Y == bounds.Min.Y || v.Y == bounds.Max.Y
		if !onX || !onY {
			return false
		}
	}
	return true
}

// fanTriangles triangulates a convex outline from its first vertex. Points are
// normalised to the bounding box with Y pointing down, as ComplexTriangles expects.
func fanTriangles(vertices []physics.Vector2D, bounds physics.AABB) []engo.Point {
	size := bounds.Size()
	norm := func(v physics.Vector2D) engo.Point {
		return engo.Point{
			X: float32((v.X - bounds.Min.X) / size.X),
			Y: float32((bounds.Max.Y - v.Y) / size.Y),
		}
	}
	points := make([]engo.Point, 0, 3*(len(vertices)-2))
	for i := 1; i+1 < len(vertices); i++ {
		points = append(points, norm(vertices[0]), norm(vertices[i]), norm(vertices[i+1]))
	}
	return points
}

// BodySystem advances a simulation each frame and moves its entities to match
type BodySystem struct {
	source   Source
	view     *View
	follow   string
	entities map[uint64]*BodyEntity
	order    []uint64
	steps    int
}

// NewBodySystem creates a system that draws source through view
func NewBodySystem(source Source, view *View) *BodySystem {
	return &BodySystem{
		source:   source,
		view:     view,
		entities: make(map[uint64]*BodyEntity),
	}
}

// Add registers an entity; it is sized from the current view scale
func (bs *BodySystem) Add(e *BodyEntity) {
	id := e.ID()
	if _, ok := bs.entities[id]; !ok {
		bs.order = append(bs.order, id)
	}
	bs.entities[id] = e
	bs.resize(e)
}

// Remove satisfies the ecs.System interface
func (bs *BodySystem) Remove(basic ecs.BasicEntity) {
	id := basic.ID()
	if _, ok := bs.entities[id]; !ok {
		return
	}
	delete(bs.entities, id)
	for i, v := range bs.order {
		if v == id {
			bs.order = append(bs.order[:i], bs.order[i+1:]...)
			break
		}
	}
}

// Follow makes the view track the named body. An empty name stops following.
func (bs *BodySystem) Follow(name string) {
	bs.follow = name
	if name == "" {
		bs.view.ClearTarget()
	}
}

// Steps returns the number of fixed steps taken by the last Update
func (bs *BodySystem) Steps() int {
	return bs.steps
}

// Entities returns the registered entities in insertion order
func (bs *BodySystem) Entities() []*BodyEntity {
	out := make([]*BodyEntity, 0, len(bs.order))
	for _, id := range bs.order {
		out = append(out, bs.entities[id])
	}
	return out
}

// Update advances the simulation by dt seconds and syncs every entity with the
// resulting snapshot. Entities whose body is gone or non-finite are hidden.
func (bs *BodySystem) Update(dt float32) {
	bs.steps = bs.source.Advance(float64(dt))
	state := bs.source.Snapshot()

	byName := make(map[string]engine.BodyState, len(state.Bodies))
	for _, b := range state.Bodies {
		byName[b.Name] = b
	}

	if target, ok := byName[bs.follow]; ok && bs.follow != "" && target.Position.IsFinite() {
		bs.view.SetTarget(target.Position)
	}
	bs.view.Update(dt)

	for _, id := range bs.order {
		e := bs.entities[id]
		b, ok := byName[e.Name]
		if !ok || !b.Position.IsFinite() || math.IsNaN(b.Rotation) || math.IsInf(b.Rotation, 0) {
			e.Hidden = true
			continue
		}
		e.Hidden = false
		bs.place(e, b)
	}
}

func (bs *BodySystem) resize(e *BodyEntity) {
	scale := bs.view.Scale()
	e.SpaceComponent.Width = float32(e.size.X) * scale
	e.SpaceComponent.Height = float32(e.size.Y) * scale
}

func (bs *BodySystem) place(e *BodyEntity, b engine.BodyState) {
	bs.resize(e)
	switch {
	case b.Static:
		e.Color = StaticColor
	case b.Touching:
		e.Color = TouchingColor
	default:
		e.Color = DynamicColor
	}
	// engo rotates clockwise in degrees on a Y-down screen
	e.SpaceComponent.Rotation = float32(-b.Rotation * 180 / math.Pi)
	center := b.Position.Add(e.localCenter.Rotate(b.Rotation))
	e.SpaceComponent.SetCenter(bs.view.WorldToScreen(center))
}
