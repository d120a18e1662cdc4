package config

import (
	"fmt"
	"sort"

	"github.com/opd-ai/rigid2d/pkg/physics"
)

// Collision layers used by the built-in scenes. Props collide with the world; pivots
// collide with nothing; jointed links collide with the world but not with each other.
const (
	LayerWorld uint32 = 1 << iota
	LayerPivot
	LayerLink
)

// SceneTemplate is a named, ready-made scene
type SceneTemplate struct {
	Name        string
	Description string
	Scene       SceneConfig
}

var sceneTemplates = map[string]func() SceneTemplate{
	"demo":           demoScene,
	"stack":          stackScene,
	"pendulum_chain": pendulumChainScene,
	"servo_arm":      servoArmScene,
}

// GetSceneTemplate returns a fresh copy of the named template, or nil if unknown
func GetSceneTemplate(name string) *SceneTemplate {
	build, ok := sceneTemplates[name]
	if !ok {
		return nil
	}
	t := build()
	return &t
}

// ListSceneTemplates maps template names to their descriptions
func ListSceneTemplates() map[string]string {
	out := make(map[string]string, len(sceneTemplates))
	for name, build := range sceneTemplates {
		out[name] = build().Description
	}
	return out
}

// SceneTemplateNames returns the template names in sorted order
func SceneTemplateNames() []string {
	names := make([]string, 0, len(sceneTemplates))
	for name := range sceneTemplates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplySceneTemplate replaces the scene of cfg with the named template
func ApplySceneTemplate(cfg *SimConfig, name string) error {
	t := GetSceneTemplate(name)
	if t == nil {
		return fmt.Errorf("unknown scene template %q", name)
	}
	cfg.Scene = t.Scene
	return nil
}

func ground(width float64) BodyConfig {
	return BodyConfig{
		Name:          "ground",
		Shape:         ShapeBox,
		Position:      physics.Vector2D{Y: -0.5},
		Width:         width,
		Height:        1,
		Density:       1,
		Static:        true,
		Friction:      0.6,
		CollisionMask: LayerWorld,
	}
}

func crate(name string, x, y float64) BodyConfig {
	return BodyConfig{
		Name:          name,
		Shape:         ShapeBox,
		Position:      physics.Vector2D{X: x, Y: y},
		Width:         1,
		Height:        1,
		Density:       1,
		Friction:      0.6,
		CollisionMask: LayerWorld,
	}
}

func pivot(name string, at physics.Vector2D) BodyConfig {
	return BodyConfig{
		Name:          name,
		Shape:         ShapeBox,
		Position:      at,
		Width:         0.2,
		Height:        0.2,
		Density:       1,
		Static:        true,
		CollisionMask: LayerPivot,
	}
}

func link(name string, at physics.Vector2D, length float64) BodyConfig {
	return BodyConfig{
		Name:          name,
		Shape:         ShapeCapsule,
		Position:      at,
		Length:        length,
		Radius:        0.1,
		Density:       1,
		Friction:      0.4,
		CollisionMask: LayerWorld | LayerLink,
		IgnoreMask:    LayerLink,
	}
}

func demoScene() SceneTemplate {
	return SceneTemplate{
		Name:        "demo",
		Description: "Ground, a stack of three crates, a bouncing ball and a limited pendulum",
		Scene: SceneConfig{
			Name: "demo",
			Bodies: []BodyConfig{
				ground(40),
				crate("crate0", 0, 0.5),
				crate("crate1", 0, 1.5),
				crate("crate2", 0, 2.5),
				{
					Name:          "ball",
					Shape:         ShapeCircle,
					Position:      physics.Vector2D{X: -4, Y: 4},
					Velocity:      physics.Vector2D{X: 2},
					Radius:        0.5,
					Density:       1,
					Friction:      0.6,
					Restitution:   0.4,
					CollisionMask: LayerWorld,
				},
				pivot("pivot", physics.Vector2D{X: 5, Y: 6}),
				link("pendulum_arm", physics.Vector2D{X: 6, Y: 6}, 2),
			},
			Joints: []JointConfig{
				{
					Name:   "pendulum",
					BodyA:  "pivot",
					BodyB:  "pendulum_arm",
					Anchor: physics.Vector2D{X: 5, Y: 6},
					Limits: &LimitConfig{Lower: -1.2, Upper: 1.2},
				},
			},
		},
	}
}

func stackScene() SceneTemplate {
	scene := SceneConfig{Name: "stack", Bodies: []BodyConfig{ground(20)}}
	for i := 0; i < 8; i++ {
		scene.Bodies = append(scene.Bodies, crate(fmt.Sprintf("crate%d", i), 0, 0.5+float64(i)))
	}
	return SceneTemplate{
		Name:        "stack",
		Description: "A column of eight crates resting on the ground",
		Scene:       scene,
	}
}

func pendulumChainScene() SceneTemplate {
	const links = 5
	origin := physics.Vector2D{X: 0, Y: 8}
	scene := SceneConfig{
		Name:   "pendulum_chain",
		Bodies: []BodyConfig{ground(30), pivot("pivot", origin)},
	}
	prev := "pivot"
	for i := 0; i < links; i++ {
		name := fmt.Sprintf("link%d", i)
		x := origin.X + float64(i)
		scene.Bodies = append(scene.Bodies, link(name, physics.Vector2D{X: x + 0.5, Y: origin.Y}, 1))
		scene.Joints = append(scene.Joints, JointConfig{
			Name:   fmt.Sprintf("hinge%d", i),
			BodyA:  prev,
			BodyB:  name,
			Anchor: physics.Vector2D{X: x, Y: origin.Y},
		})
		prev = name
	}
	return SceneTemplate{
		Name:        "pendulum_chain",
		Description: "Five capsule links hanging from a fixed pivot",
		Scene:       scene,
	}
}

func servoArmScene() SceneTemplate {
	base := physics.Vector2D{X: 0, Y: 1}
	return SceneTemplate{
		Name:        "servo_arm",
		Description: "A two-link arm whose shoulder and elbow are position-controlled servos",
		Scene: SceneConfig{
			Name: "servo_arm",
			Bodies: []BodyConfig{
				ground(20),
				pivot("base", base),
				link("upper_arm", physics.Vector2D{X: 1, Y: base.Y}, 2),
				link("forearm", physics.Vector2D{X: 3, Y: base.Y}, 2),
				crate("target", 6, 0.5),
			},
			Joints: []JointConfig{
				{
					Name:   "shoulder",
					BodyA:  "base",
					BodyB:  "upper_arm",
					Anchor: base,
					Limits: &LimitConfig{Lower: -0.5, Upper: 2.5},
					Motor: &MotorConfig{
						Mode: MotorModeServo, TargetAngle: 0.8, MaxForce: 200, Hertz: 3, DampingRatio: 0.9,
					},
				},
				{
					Name:   "elbow",
					BodyA:  "upper_arm",
					BodyB:  "forearm",
					Anchor: physics.Vector2D{X: 2, Y: base.Y},
					Limits: &LimitConfig{Lower: -2.5, Upper: 2.5},
					Motor: &MotorConfig{
						Mode: MotorModeServo, TargetAngle: -1.2, MaxForce: 100, Hertz: 3, DampingRatio: 0.9,
					},
				},
			},
		},
	}
}
