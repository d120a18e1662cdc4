// pkg/engine/simulation.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/opd-ai/rigid2d/pkg/config"
	"github.com/opd-ai/rigid2d/pkg/event"
	"github.com/opd-ai/rigid2d/pkg/logging"
	"github.com/opd-ai/rigid2d/pkg/physics"
	"github.com/opd-ai/rigid2d/pkg/validation"
)

// MaxFrameDelta caps the wall-clock delta fed to the world by Update
const MaxFrameDelta = 0.25

// ErrUnknownName is returned when a body or joint name is not part of the scene
var ErrUnknownName = errors.New("unknown name")

// Simulation owns a physics world built from a scene and drives it from wall-clock
// time. Every world access goes through the simulation mutex.
type Simulation struct {
	Config   *config.SimConfig
	EventBus *event.Bus

	world  *physics.World
	logger *logging.Logger

	mu         sync.Mutex
	running    bool
	tick       uint64
	elapsed    float64
	lastUpdate time.Time

	bodies     map[string]*physics.Body
	bodyNames  map[physics.BodyID]string
	joints     map[string]*physics.RevoluteJoint
	jointOrder []string
}

// NewSimulation validates cfg and builds its scene. A nil logger discards output.
func NewSimulation(cfg *config.SimConfig, logger *logging.Logger) (*Simulation, error) {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	if err := validation.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	settings, err := cfg.Physics.WorldSettings()
	if err != nil {
		return nil, logging.WrapError(err, "physics settings")
	}

	world := physics.NewWorld(settings)
	world.SetLogger(logger.With("component", "physics"))

	sim := &Simulation{
		Config:    cfg,
		EventBus:  event.NewEventBus(),
		world:     world,
		logger:    logger.With("component", "engine", "scene", cfg.Scene.Name),
		bodies:    make(map[string]*physics.Body, len(cfg.Scene.Bodies)),
		bodyNames: make(map[physics.BodyID]string, len(cfg.Scene.Bodies)),
		joints:    make(map[string]*physics.RevoluteJoint, len(cfg.Scene.Joints)),
	}

	for _, bc := range cfg.Scene.Bodies {
		if err := sim.addBody(bc); err != nil {
			return nil, logging.WrapError(err, "body %q", bc.Name)
		}
	}
	for _, jc := range cfg.Scene.Joints {
		if err := sim.addJoint(jc); err != nil {
			return nil, logging.WrapError(err, "joint %q", jc.Name)
		}
	}

	sim.logger.Info(context.Background(), "simulation created",
		"bodies", len(sim.bodies),
		"joints", len(sim.joints),
		"mode", settings.Mode.String(),
		"fixed_timestep", cfg.Timing.FixedTimestep)

	return sim, nil
}

func (s *Simulation) addBody(bc config.BodyConfig) error {
	var body *physics.Body
	switch bc.Shape {
	case config.ShapeBox:
		body = s.world.AddBox(bc.Position, bc.Width, bc.Height, bc.Density, bc.Static)
	case config.ShapeCircle:
		body = s.world.AddCircle(bc.Position, bc.Radius, bc.Density, bc.Static)
	case config.ShapeCapsule:
		body = s.world.AddCapsule(bc.Position, bc.Length, bc.Radius, bc.Density, bc.Static)
	case config.ShapePolygon:
		var err error
		body, err = s.world.AddPolygon(bc.Position, bc.Vertices, bc.Density, bc.Static)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown shape %q", bc.Shape)
	}

	body.Rotation = bc.Rotation
	body.Friction = bc.Friction
	body.Restitution = bc.Restitution
	body.LinearDamping = bc.LinearDamping
	body.AngularDamping = bc.AngularDamping
	if bc.GravityScale != nil {
		body.GravityScale = *bc.GravityScale
	}
	if bc.CollisionMask != 0 {
		body.CollisionMask = bc.CollisionMask
	}
	body.IgnoreMask = bc.IgnoreMask
	if !body.Static {
		body.Velocity = bc.Velocity
		body.AngularVelocity = bc.AngularVelocity
	}
	body.UserData = bc.Name

	s.bodies[bc.Name] = body
	s.bodyNames[body.ID()] = bc.Name
	return nil
}

func (s *Simulation) addJoint(jc config.JointConfig) error {
	a, okA := s.bodies[jc.BodyA]
	b, okB := s.bodies[jc.BodyB]
	if !okA || !okB {
		return fmt.Errorf("%w: joint references %q and %q", ErrUnknownName, jc.BodyA, jc.BodyB)
	}

	joint, err := s.world.AddRevoluteJoint(a, b, jc.Anchor)
	if err != nil {
		return err
	}
	if jc.Limits != nil {
		joint.EnableLimit(jc.Limits.Lower, jc.Limits.Upper)
	}
	if m := jc.Motor; m != nil {
		switch m.Mode {
		case config.MotorModeSpeed:
			joint.SetMotorSpeed(m.Speed, m.MaxForce)
		case config.MotorModeServo:
			joint.SetMotorTargetAngle(m.TargetAngle, m.MaxForce, m.Hertz, m.DampingRatio)
		default:
			return fmt.Errorf("unknown motor mode %q", m.Mode)
		}
	}

	s.joints[jc.Name] = joint
	s.jointOrder = append(s.jointOrder, jc.Name)
	return nil
}

// Start marks the simulation running and resets the wall clock
func (s *Simulation) Start() {
	s.mu.Lock()
	s.running = true
	s.lastUpdate = time.Now()
	tick := s.tick
	s.mu.Unlock()

	s.logger.Info(context.Background(), "simulation started", "tick", tick)
	s.EventBus.Publish(event.NewSimulationEvent(event.SimulationStarted, s, s.Config.Scene.Name, tick))
}

// Stop halts Update and Run
func (s *Simulation) Stop() {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	tick := s.tick
	s.mu.Unlock()

	if !wasRunning {
		return
	}
	s.logger.Info(context.Background(), "simulation stopped", "tick", tick)
	s.EventBus.Publish(event.NewSimulationEvent(event.SimulationStopped, s, s.Config.Scene.Name, tick))
}

// IsRunning reports whether Start has been called without a matching Stop
func (s *Simulation) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Update advances the world by the wall-clock time since the previous call, capped at
// MaxFrameDelta. It does nothing while stopped.
func (s *Simulation) Update() int {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return 0
	}
	delta := s.calculateDeltaTime()
	s.mu.Unlock()

	return s.Advance(delta)
}

func (s *Simulation) calculateDeltaTime() float64 {
	now := time.Now()
	deltaTime := now.Sub(s.lastUpdate).Seconds()
	s.lastUpdate = now

	if deltaTime > MaxFrameDelta {
		deltaTime = MaxFrameDelta
	}
	return deltaTime
}

// Advance feeds realDt seconds into the fixed-step accumulator and publishes the contact
// events produced. It returns the number of substeps run.
func (s *Simulation) Advance(realDt float64) int {
	s.mu.Lock()
	steps := s.world.Step(realDt, s.Config.Timing.FixedTimestep, s.Config.Timing.MaxSubsteps)
	s.tick += uint64(steps)
	s.elapsed += float64(steps) * s.Config.Timing.FixedTimestep
	events := s.contactEvents(s.world.ContactEvents())
	s.mu.Unlock()

	s.publish(events)
	return steps
}

// contactEvents resolves body names; the caller holds the mutex
func (s *Simulation) contactEvents(raw []physics.ContactEvent) []event.Event {
	out := make([]event.Event, 0, len(raw))
	for _, e := range raw {
		eventType := event.ContactBegan
		if e.Kind == physics.ContactEnd {
			eventType = event.ContactEnded
		}
		out = append(out, event.NewContactEvent(eventType, s,
			s.bodyNames[e.BodyA], s.bodyNames[e.BodyB], e.BodyA, e.BodyB))
	}
	return out
}

func (s *Simulation) publish(events []event.Event) {
	for _, e := range events {
		s.EventBus.Publish(e)
	}
}

// Run calls Update at the configured frame rate until ctx ends. The simulation is
// started if needed and stopped on return.
func (s *Simulation) Run(ctx context.Context) error {
	rate := s.Config.Timing.FrameRate
	if rate <= 0 {
		rate = 60
	}

	if !s.IsRunning() {
		s.Start()
	}
	defer s.Stop()

	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Update()
		}
	}
}

// RemoveBody deletes a named body with its joints and contacts
func (s *Simulation) RemoveBody(name string) error {
	s.mu.Lock()
	body, ok := s.bodies[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: body %q", ErrUnknownName, name)
	}

	id := body.ID()
	before := len(s.world.ContactEvents())
	if err := s.world.RemoveBody(id); err != nil {
		s.mu.Unlock()
		return err
	}
	ended := s.contactEvents(s.world.ContactEvents()[before:])

	for jointName, j := range s.joints {
		if j.BodyA() == body || j.BodyB() == body {
			delete(s.joints, jointName)
		}
	}
	order := s.jointOrder[:0]
	for _, jointName := range s.jointOrder {
		if _, ok := s.joints[jointName]; ok {
			order = append(order, jointName)
		}
	}
	s.jointOrder = order

	delete(s.bodies, name)
	delete(s.bodyNames, id)
	s.mu.Unlock()

	s.logger.Debug(context.Background(), "body removed", "body", name, "id", id.String())
	s.publish(ended)
	s.EventBus.Publish(event.NewBodyEvent(event.BodyRemoved, s, name, id))
	return nil
}

// BodyByName returns the named body. Reading or writing its fields outside WithWorld
// races with Update.
func (s *Simulation) BodyByName(name string) (*physics.Body, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bodies[name]
	return b, ok
}

// JointByName returns the named joint; see BodyByName for the locking rule
func (s *Simulation) JointByName(name string) (*physics.RevoluteJoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.joints[name]
	return j, ok
}

// WithWorld runs fn with exclusive access to the world. Controllers use it to set motor
// targets or apply impulses between frames.
func (s *Simulation) WithWorld(fn func(w *physics.World) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.world)
}

// Tick returns the number of fixed substeps run so far
func (s *Simulation) Tick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// CheckStability returns an error naming the first body whose state is not finite
func (s *Simulation) CheckStability() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.world.Bodies() {
		if !b.Position.IsFinite() || !b.Velocity.IsFinite() ||
			math.IsNaN(b.Rotation) || math.IsInf(b.Rotation, 0) ||
			math.IsNaN(b.AngularVelocity) || math.IsInf(b.AngularVelocity, 0) {
			return fmt.Errorf("body %q (%s) has non-finite state", s.bodyNames[b.ID()], b.ID())
		}
	}
	return nil
}

// Snapshot copies the current state for readers outside the simulation goroutine
func (s *Simulation) Snapshot() *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &State{
		Scene:  s.Config.Scene.Name,
		Tick:   s.tick,
		Time:   s.elapsed,
		Alpha:  s.world.Alpha(),
		Bodies: s.bodyStates(),
		Joints: s.jointStates(),
	}
}

func (s *Simulation) bodyStates() []BodyState {
	bodies := s.world.Bodies()
	states := make([]BodyState, 0, len(bodies))
	for _, b := range bodies {
		states = append(states, BodyState{
			Name:            s.bodyNames[b.ID()],
			ID:              b.ID(),
			Position:        b.Position,
			Rotation:        b.Rotation,
			Velocity:        b.Velocity,
			AngularVelocity: b.AngularVelocity,
			Static:          b.Static,
			Bounds:          b.AABB(),
			Touching:        s.world.IsTouching(b.ID()),
		})
	}
	return states
}

func (s *Simulation) jointStates() []JointState {
	states := make([]JointState, 0, len(s.jointOrder))
	for _, name := range s.jointOrder {
		j := s.joints[name]
		lower, upper, limited := j.Limits()
		state := JointState{
			Name:          name,
			BodyA:         s.bodyNames[j.BodyA().ID()],
			BodyB:         s.bodyNames[j.BodyB().ID()],
			Anchor:        j.AnchorB(),
			RelativeAngle: j.RelativeAngle(),
			Motor:         j.MotorMode().String(),
		}
		if limited {
			state.Limits = &[2]float64{lower, upper}
		}
		states = append(states, state)
	}
	return states
}

// BodyNames returns the names of the live bodies in sorted order
func (s *Simulation) BodyNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.bodies))
	for name := range s.bodies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// State is a point-in-time copy of the simulation
type State struct {
	Scene  string       `json:"scene"`
	Tick   uint64       `json:"tick"`
	Time   float64      `json:"time"`
	Alpha  float64      `json:"alpha"`
	Bodies []BodyState  `json:"bodies"`
	Joints []JointState `json:"joints,omitempty"`
}

// BodyState is a body's pose and velocity
type BodyState struct {
	Name            string           `json:"name"`
	ID              physics.BodyID   `json:"id"`
	Position        physics.Vector2D `json:"position"`
	Rotation        float64          `json:"rotation"`
	Velocity        physics.Vector2D `json:"velocity"`
	AngularVelocity float64          `json:"angularVelocity"`
	Static          bool             `json:"static,omitempty"`
	Bounds          physics.AABB     `json:"bounds"`
	Touching        bool             `json:"touching"`
}

// JointState is a joint's current angle and configuration
type JointState struct {
	Name          string           `json:"name"`
	BodyA         string           `json:"bodyA"`
	BodyB         string           `json:"bodyB"`
	Anchor        physics.Vector2D `json:"anchor"`
	RelativeAngle float64          `json:"relativeAngle"`
	Motor         string           `json:"motor"`
	Limits        *[2]float64      `json:"limits,omitempty"`
}

// Body returns the named body state, or false
func (st *State) Body(name string) (BodyState, bool) {
	for _, b := range st.Bodies {
		if b.Name == name {
			return b, true
		}
	}
	return BodyState{}, false
}

// Joint returns the named joint state, or false
func (st *State) Joint(name string) (JointState, bool) {
	for _, j := range st.Joints {
		if j.Name == name {
			return j, true
		}
	}
	return JointState{}, false
}
