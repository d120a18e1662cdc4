// pkg/engine/simulation_test.go
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rigid2d/pkg/config"
	"github.com/opd-ai/rigid2d/pkg/event"
	"github.com/opd-ai/rigid2d/pkg/logging"
	"github.com/opd-ai/rigid2d/pkg/physics"
	"github.com/opd-ai/rigid2d/pkg/validation"
)

const frame = 1.0 / 60

func newTemplateSim(t *testing.T, template string) *Simulation {
	t.Helper()
	cfg := config.DefaultConfig()
	require.NoError(t, config.ApplySceneTemplate(cfg, template))
	sim, err := NewSimulation(cfg, nil)
	require.NoError(t, err)
	return sim
}

func TestNewSimulation_DemoScene(t *testing.T) {
	sim := newTemplateSim(t, "demo")

	assert.Equal(t, []string{"ball", "crate0", "crate1", "crate2", "ground", "pendulum_arm", "pivot"}, sim.BodyNames())

	ground, ok := sim.BodyByName("ground")
	require.True(t, ok)
	assert.True(t, ground.Static)
	assert.Equal(t, "ground", ground.UserData)
	assert.Equal(t, config.LayerWorld, ground.CollisionMask)

	ball, ok := sim.BodyByName("ball")
	require.True(t, ok)
	assert.Equal(t, physics.Vector2D{X: 2}, ball.Velocity)
	assert.Equal(t, 0.4, ball.Restitution)

	arm, ok := sim.BodyByName("pendulum_arm")
	require.True(t, ok)
	assert.Equal(t, config.LayerLink, arm.IgnoreMask)

	joint, ok := sim.JointByName("pendulum")
	require.True(t, ok)
	lower, upper, enabled := joint.Limits()
	assert.True(t, enabled)
	assert.Equal(t, -1.2, lower)
	assert.Equal(t, 1.2, upper)

	_, ok = sim.JointByName("missing")
	assert.False(t, ok)
}

func TestNewSimulation_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scene.Joints = append(cfg.Scene.Joints, config.JointConfig{Name: "broken", BodyA: "ground", BodyB: "nowhere"})
	cfg.Timing.MaxSubsteps = 0

	sim, err := NewSimulation(cfg, nil)
	require.Error(t, err)
	assert.Nil(t, sim)

	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors, 2)
}

func TestNewSimulation_BodyOptions(t *testing.T) {
	zero := 0.0
	cfg := config.DefaultConfig()
	cfg.Scene = config.SceneConfig{
		Name: "options",
		Bodies: []config.BodyConfig{
			{
				Name: "floater", Shape: config.ShapeCircle, Radius: 0.5, Density: 1,
				Position: physics.Vector2D{Y: 3}, GravityScale: &zero, AngularVelocity: 2,
				LinearDamping: 0.5, Friction: 0.1,
			},
			{
				Name: "wedge", Shape: config.ShapePolygon, Density: 1, Static: true,
				Position: physics.Vector2D{X: 5}, Rotation: 0.3,
				Vertices: []physics.Vector2D{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 0, Y: 3}},
				Velocity: physics.Vector2D{X: 9},
			},
		},
	}

	sim, err := NewSimulation(cfg, nil)
	require.NoError(t, err)

	floater, _ := sim.BodyByName("floater")
	assert.Equal(t, 0.0, floater.GravityScale)
	assert.Equal(t, physics.DefaultCollisionMask, floater.CollisionMask)

	wedge, _ := sim.BodyByName("wedge")
	assert.Equal(t, 0.3, wedge.Rotation)
	assert.Equal(t, physics.Vector2D{}, wedge.Velocity, "static bodies ignore configured velocity")
	assert.InDelta(t, 6, wedge.Position.X, 1e-9, "polygon origin moves to its centroid")
	assert.InDelta(t, 1, wedge.Position.Y, 1e-9)

	for i := 0; i < 60; i++ {
		sim.Advance(frame)
	}
	assert.InDelta(t, 3, floater.Position.Y, 1e-9, "zero gravity scale keeps the body in place")
}

func TestSimulation_AdvanceCountsTicks(t *testing.T) {
	sim := newTemplateSim(t, "stack")

	assert.Equal(t, 1, sim.Advance(frame))
	assert.Equal(t, 0, sim.Advance(frame/2))
	assert.Equal(t, 1, sim.Advance(frame/2))
	assert.Equal(t, uint64(2), sim.Tick())

	state := sim.Snapshot()
	assert.Equal(t, uint64(2), state.Tick)
	assert.InDelta(t, 2*frame, state.Time, 1e-12)
}

func TestSimulation_UpdateRequiresStart(t *testing.T) {
	sim := newTemplateSim(t, "stack")
	assert.Equal(t, 0, sim.Update())
	assert.False(t, sim.IsRunning())

	sim.Start()
	assert.True(t, sim.IsRunning())

	sim.mu.Lock()
	sim.lastUpdate = time.Now().Add(-10 * time.Second)
	sim.mu.Unlock()

	steps := sim.Update()
	assert.Equal(t, sim.Config.Timing.MaxSubsteps, steps, "a long stall is capped and then limited by the substep budget")

	sim.Stop()
	assert.False(t, sim.IsRunning())
}

func TestSimulation_LifecycleEvents(t *testing.T) {
	sim := newTemplateSim(t, "stack")

	var got []event.Type
	record := func(e event.Event) { got = append(got, e.GetType()) }
	sim.EventBus.Subscribe(event.SimulationStarted, record)
	sim.EventBus.Subscribe(event.SimulationStopped, record)

	sim.Start()
	sim.Stop()
	sim.Stop()

	assert.Equal(t, []event.Type{event.SimulationStarted, event.SimulationStopped}, got)
}

func TestSimulation_ContactEvents(t *testing.T) {
	sim := newTemplateSim(t, "stack")

	began := make(map[[2]string]int)
	sim.EventBus.Subscribe(event.ContactBegan, func(e event.Event) {
		ce := e.(*event.ContactEvent)
		began[[2]string{ce.BodyA, ce.BodyB}]++
	})

	sim.Advance(frame)

	assert.Equal(t, 1, began[[2]string{"ground", "crate0"}])
	assert.Equal(t, 1, began[[2]string{"crate0", "crate1"}])
	assert.Len(t, began, 8, "ground-crate0 plus seven crate-crate pairs")

	for i := 0; i < 30; i++ {
		sim.Advance(frame)
	}
	assert.Equal(t, 1, began[[2]string{"ground", "crate0"}], "a resting stack does not flicker")

	state := sim.Snapshot()
	crate, ok := state.Body("crate0")
	require.True(t, ok)
	assert.True(t, crate.Touching)
}

func TestSimulation_RemoveBody(t *testing.T) {
	sim := newTemplateSim(t, "demo")
	sim.Advance(frame)

	var ended []string
	var removed *event.BodyEvent
	sim.EventBus.Subscribe(event.ContactEnded, func(e event.Event) {
		ce := e.(*event.ContactEvent)
		ended = append(ended, ce.BodyA+"/"+ce.BodyB)
	})
	sim.EventBus.Subscribe(event.BodyRemoved, func(e event.Event) {
		removed = e.(*event.BodyEvent)
	})

	require.NoError(t, sim.RemoveBody("crate0"))
	assert.ElementsMatch(t, []string{"ground/crate0", "crate0/crate1"}, ended)
	require.NotNil(t, removed)
	assert.Equal(t, "crate0", removed.Body)

	_, ok := sim.BodyByName("crate0")
	assert.False(t, ok)
	_, ok = sim.Snapshot().Body("crate0")
	assert.False(t, ok)

	require.NoError(t, sim.RemoveBody("pendulum_arm"))
	_, ok = sim.JointByName("pendulum")
	assert.False(t, ok, "joints go with their bodies")
	assert.Empty(t, sim.Snapshot().Joints)

	err := sim.RemoveBody("crate0")
	assert.True(t, errors.Is(err, ErrUnknownName))

	sim.Advance(frame)
	assert.NoError(t, sim.CheckStability())
}

func TestSimulation_ServoArmReachesTarget(t *testing.T) {
	sim := newTemplateSim(t, "servo_arm")

	for i := 0; i < 240; i++ {
		sim.Advance(frame)
	}

	state := sim.Snapshot()
	require.Len(t, state.Joints, 2)
	assert.Equal(t, "shoulder", state.Joints[0].Name)
	assert.Equal(t, "servo", state.Joints[0].Motor)
	assert.InDelta(t, 0.8, state.Joints[0].RelativeAngle, 0.1)
	assert.InDelta(t, -1.2, state.Joints[1].RelativeAngle, 0.1)
	require.NotNil(t, state.Joints[0].Limits)
	assert.Equal(t, [2]float64{-0.5, 2.5}, *state.Joints[0].Limits)
}

func TestSimulation_WithWorldAndStability(t *testing.T) {
	sim := newTemplateSim(t, "demo")
	require.NoError(t, sim.CheckStability())

	err := sim.WithWorld(func(w *physics.World) error {
		for _, b := range w.QueryPoint(physics.Vector2D{X: -4, Y: 4}) {
			b.Velocity.X = math.NaN()
		}
		return nil
	})
	require.NoError(t, err)

	err = sim.CheckStability()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"ball"`)

	sentinel := errors.New("controller failed")
	assert.Equal(t, sentinel, sim.WithWorld(func(*physics.World) error { return sentinel }))
}

func TestSimulation_SnapshotJSON(t *testing.T) {
	sim := newTemplateSim(t, "demo")
	sim.Advance(frame)

	data, err := json.Marshal(sim.Snapshot())
	require.NoError(t, err)

	var decoded State
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "demo", decoded.Scene)
	assert.Len(t, decoded.Bodies, 7)
	require.Len(t, decoded.Joints, 1)
	assert.Equal(t, "pivot", decoded.Joints[0].BodyA)
	assert.Equal(t, "pendulum_arm", decoded.Joints[0].BodyB)
}

func TestSimulation_Run(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timing.FrameRate = 200

	var buf bytes.Buffer
	sim, err := NewSimulation(cfg, logging.NewLoggerWithWriter(&buf, slog.LevelInfo))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = sim.Run(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, sim.IsRunning())
	assert.Greater(t, sim.Tick(), uint64(0))

	logs := buf.String()
	assert.True(t, strings.Contains(logs, "simulation created"))
	assert.True(t, strings.Contains(logs, "simulation started"))
	assert.True(t, strings.Contains(logs, "simulation stopped"))
}

func TestState_Joint(t *testing.T) {
	sim := newTemplateSim(t, "demo")
	state := sim.Snapshot()

	js, ok := state.Joint("pendulum")
	require.True(t, ok)
	assert.Equal(t, "pendulum", js.Name)

	_, ok = state.Joint("missing")
	assert.False(t, ok)
}
