// pkg/render/engo/scene.go
package engo

import (
	"image/color"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"

	"github.com/opd-ai/rigid2d/pkg/engine"
)

// SceneOptions controls how a simulation is framed on screen
type SceneOptions struct {
	Width          float32
	Height         float32
	PixelsPerMeter float32
	// Follow names a body for the view to track
	Follow string
}

// DefaultSceneOptions frames a 1024×640 window at 40 px per metre
func DefaultSceneOptions() SceneOptions {
	return SceneOptions{Width: 1024, Height: 640, PixelsPerMeter: 40}
}

// SimulationScene is an engo scene that steps a simulation on each frame and draws
// every body with engo's render system.
type SimulationScene struct {
	sim    *engine.Simulation
	opts   SceneOptions
	view   *View
	bodies *BodySystem
	scene  string
}

// NewSimulationScene creates a scene for sim
func NewSimulationScene(sim *engine.Simulation, opts SceneOptions) *SimulationScene {
	return &SimulationScene{
		sim:   sim,
		opts:  opts,
		scene: sim.Config.Scene.Name,
	}
}

// Type implements engo.Scene
func (s *SimulationScene) Type() string {
	return "rigid2d:" + s.scene
}

// Preload implements engo.Scene; shapes need no assets
func (s *SimulationScene) Preload() {}

// Setup implements engo.Scene
func (s *SimulationScene) Setup(u engo.Updater) {
	world, _ := u.(*ecs.World)
	if world == nil {
		return
	}
	common.SetBackground(color.White)

	renderSystem := &common.RenderSystem{}
	world.AddSystem(renderSystem)

	entities := s.Build()
	world.AddSystem(s.bodies)
	for _, e := range entities {
		renderSystem.Add(&e.BasicEntity, &e.RenderComponent, &e.SpaceComponent)
	}
	s.sim.Start()
}

// Build creates the view, the body system and one entity per live body. It does not
// touch any GPU state, so the result can be inspected without a window.
func (s *SimulationScene) Build() []*BodyEntity {
	s.view = NewView(s.opts.Width, s.opts.Height, s.opts.PixelsPerMeter)
	s.bodies = NewBodySystem(s.sim, s.view)
	s.bodies.Follow(s.opts.Follow)

	for _, name := range s.sim.BodyNames() {
		body, ok := s.sim.BodyByName(name)
		if !ok {
			continue
		}
		s.bodies.Add(NewBodyEntity(name, body))
	}
	return s.bodies.Entities()
}

// Bodies returns the body system created by Build
func (s *SimulationScene) Bodies() *BodySystem {
	return s.bodies
}

// View returns the view created by Build
func (s *SimulationScene) View() *View {
	return s.view
}

// Exit implements engo.Exiter
func (s *SimulationScene) Exit() {
	s.sim.Stop()
}
