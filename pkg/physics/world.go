// pkg/physics/world.go
package physics

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/opd-ai/rigid2d/pkg/logging"
)

// ErrBodyNotFound is returned for a handle whose body was removed or never existed
var ErrBodyNotFound = errors.New("body not found")

// ErrJointNotFound is returned when removing a joint the world does not own
var ErrJointNotFound = errors.New("joint not found")

// ContactEventKind tells whether a body pair started or stopped touching
type ContactEventKind int

const (
	ContactBegin ContactEventKind = iota
	ContactEnd
)

func (k ContactEventKind) String() string {
	if k == ContactEnd {
		return "end"
	}
	return "begin"
}

// ContactEvent reports a change in the touching state of a body pair
type ContactEvent struct {
	Kind  ContactEventKind
	BodyA BodyID
	BodyB BodyID
}

type pairKey struct {
	a, b BodyID
}

// World owns bodies, joints and contacts and advances them with a fixed timestep.
// A World is not safe for concurrent use.
type World struct {
	Settings Settings

	bodies      []*Body
	generations []uint32
	free        []uint32

	joints   []*RevoluteJoint
	contacts []*Contact

	touching    []pairKey
	touchingSet map[pairKey]struct{}
	events      []ContactEvent

	accumulator float64
	lastDt      float64

	logger *logging.Logger
}

// NewWorld creates an empty world
func NewWorld(settings Settings) *World {
	return &World{
		Settings:    settings,
		touchingSet: make(map[pairKey]struct{}),
		logger:      logging.NewDiscardLogger(),
	}
}

// SetLogger replaces the default discard logger
func (w *World) SetLogger(logger *logging.Logger) {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	w.logger = logger
}

// AddBody places b in the arena and returns its handle. Freed slots are reused with a
// bumped generation, so stale handles never resolve to the new body.
func (w *World) AddBody(b *Body) BodyID {
	var index uint32
	if n := len(w.free); n > 0 {
		index = w.free[n-1]
		w.free = w.free[:n-1]
		w.bodies[index] = b
	} else {
		index = uint32(len(w.bodies))
		w.bodies = append(w.bodies, b)
		w.generations = append(w.generations, 0)
	}
	b.id = BodyID{Index: index, Generation: w.generations[index]}
	return b.id
}

// Body resolves a handle
func (w *World) Body(id BodyID) (*Body, error) {
	if int(id.Index) >= len(w.bodies) || w.generations[id.Index] != id.Generation || w.bodies[id.Index] == nil {
		return nil, fmt.Errorf("%w: %s", ErrBodyNotFound, id)
	}
	return w.bodies[id.Index], nil
}

// Bodies returns the live bodies in arena order
func (w *World) Bodies() []*Body {
	out := make([]*Body, 0, len(w.bodies))
	for _, b := range w.bodies {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

// BodyCount returns the number of live bodies
func (w *World) BodyCount() int {
	return len(w.bodies) - len(w.free)
}

// RemoveBody drops the body along with every joint and contact that references it
func (w *World) RemoveBody(id BodyID) error {
	b, err := w.Body(id)
	if err != nil {
		return err
	}

	joints := w.joints[:0]
	for _, j := range w.joints {
		if j.bodyA != b && j.bodyB != b {
			joints = append(joints, j)
		}
	}
	clear(w.joints[len(joints):])
	w.joints = joints

	contacts := w.contacts[:0]
	for _, c := range w.contacts {
		if c.bodyA != b && c.bodyB != b {
			contacts = append(contacts, c)
		}
	}
	clear(w.contacts[len(contacts):])
	w.contacts = contacts

	touching := w.touching[:0]
	for _, p := range w.touching {
		if p.a == id || p.b == id {
			delete(w.touchingSet, p)
			w.events = append(w.events, ContactEvent{Kind: ContactEnd, BodyA: p.a, BodyB: p.b})
			continue
		}
		touching = append(touching, p)
	}
	w.touching = touching

	w.bodies[id.Index] = nil
	w.generations[id.Index]++
	w.free = append(w.free, id.Index)
	return nil
}

func (w *World) owns(b *Body) bool {
	if b == nil {
		return false
	}
	found, err := w.Body(b.id)
	return err == nil && found == b
}

// AddBox creates a w×h box body centred on pos
func (w *World) AddBox(pos Vector2D, width, height, density float64, static bool) *Body {
	b := NewBody(pos, density, static, NewBox(width, height))
	w.AddBody(b)
	return b
}

// AddCircle creates a circle body centred on pos
func (w *World) AddCircle(pos Vector2D, radius, density float64, static bool) *Body {
	b := NewBody(pos, density, static, NewCircle(radius))
	w.AddBody(b)
	return b
}

// AddCapsule creates a horizontal capsule whose overall length includes both caps.
// It is built from a box and two end circles, with mass and inertia computed for the
// exact capsule outline rather than the overlapping parts.
func (w *World) AddCapsule(pos Vector2D, length, radius, density float64, static bool) *Body {
	segment := math.Max(length-2*radius, 0)
	if segment == 0 {
		return w.AddCircle(pos, radius, density, static)
	}

	half := segment / 2
	b := NewBody(pos, density, static,
		NewBox(segment, 2*radius),
		&Circle{Radius: radius, Offset: Vector2D{X: -half}},
		&Circle{Radius: radius, Offset: Vector2D{X: half}},
	)

	boxMass := density * segment * 2 * radius
	circleMass := density * math.Pi * radius * radius
	inertia := boxMass*(segment*segment+4*radius*radius)/12 +
		circleMass*(radius*radius/2+segment*segment/4+segment*4*radius/(3*math.Pi))
	b.SetMass(boxMass+circleMass, inertia)

	w.AddBody(b)
	return b
}

// AddPolygon validates the outline and creates a body for it. The vertices are given
// relative to pos; the body origin is moved to the centroid so the body spins about its
// centre of mass while the outline stays where it was placed.
func (w *World) AddPolygon(pos Vector2D, vertices []Vector2D, density float64, static bool) (*Body, error) {
	poly, err := NewPolygon(vertices)
	if err != nil {
		return nil, err
	}
	centroid := poly.MassData(1).Center
	for i := range poly.Vertices {
		poly.Vertices[i] = poly.Vertices[i].Sub(centroid)
	}
	b := NewBody(pos.Add(centroid), density, static, poly)
	w.AddBody(b)
	return b, nil
}

// AddRevoluteJoint pins a and b together at a world-space anchor
func (w *World) AddRevoluteJoint(a, b *Body, anchor Vector2D) (*RevoluteJoint, error) {
	if !w.owns(a) || !w.owns(b) {
		return nil, fmt.Errorf("revolute joint: %w", ErrBodyNotFound)
	}
	if a == b {
		return nil, errors.New("revolute joint: bodies must differ")
	}
	j := newRevoluteJoint(a, b, anchor)
	w.joints = append(w.joints, j)
	return j, nil
}

// AddRevoluteJointWithLimits is AddRevoluteJoint followed by EnableLimit
func (w *World) AddRevoluteJointWithLimits(a, b *Body, anchor Vector2D, lower, upper float64) (*RevoluteJoint, error) {
	j, err := w.AddRevoluteJoint(a, b, anchor)
	if err != nil {
		return nil, err
	}
	j.EnableLimit(lower, upper)
	return j, nil
}

// RemoveJoint detaches a joint from the world
func (w *World) RemoveJoint(j *RevoluteJoint) error {
	for i, existing := range w.joints {
		if existing == j {
			w.joints = append(w.joints[:i], w.joints[i+1:]...)
			return nil
		}
	}
	return ErrJointNotFound
}

// Joints returns the joints in creation order
func (w *World) Joints() []*RevoluteJoint {
	out := make([]*RevoluteJoint, len(w.joints))
	copy(out, w.joints)
	return out
}

// Contacts returns the contacts generated by the last substep
func (w *World) Contacts() []*Contact {
	out := make([]*Contact, len(w.contacts))
	copy(out, w.contacts)
	return out
}

// Constraints returns joints followed by contacts, the order the solver visits them
func (w *World) Constraints() []Constraint {
	out := make([]Constraint, 0, len(w.joints)+len(w.contacts))
	for _, j := range w.joints {
		out = append(out, j)
	}
	for _, c := range w.contacts {
		out = append(out, c)
	}
	return out
}

// ContactsOf returns the contacts involving the body
func (w *World) ContactsOf(id BodyID) []*Contact {
	var out []*Contact
	for _, c := range w.contacts {
		if c.bodyA.id == id || c.bodyB.id == id {
			out = append(out, c)
		}
	}
	return out
}

// IsTouching reports whether the body had any contact in the last substep. Speculative
// contacts within the slop count as touching.
func (w *World) IsTouching(id BodyID) bool {
	for _, p := range w.touching {
		if p.a == id || p.b == id {
			return true
		}
	}
	return false
}

// ContactEvents returns the begin/end events produced since the last Step or StepFixed call
func (w *World) ContactEvents() []ContactEvent {
	out := make([]ContactEvent, len(w.events))
	copy(out, w.events)
	return out
}

// QueryPoint returns the bodies containing the world point, in arena order
func (w *World) QueryPoint(p Vector2D) []*Body {
	var out []*Body
	for _, b := range w.bodies {
		if b != nil && b.AABB().Contains(p) && b.ContainsPoint(p) {
			out = append(out, b)
		}
	}
	return out
}

// Alpha is the fraction of a fixed step left in the accumulator, for render interpolation
func (w *World) Alpha() float64 {
	if w.lastDt <= 0 {
		return 0
	}
	return w.accumulator / w.lastDt
}

// Step accumulates realDt and runs as many fixed substeps of dt as fit, at most
// maxSubsteps. Time beyond the budget is dropped. Returns the number of substeps run.
func (w *World) Step(realDt, dt float64, maxSubsteps int) int {
	w.events = w.events[:0]
	if dt <= 0 {
		return 0
	}
	if maxSubsteps < 1 {
		maxSubsteps = 1
	}

	w.lastDt = dt
	if realDt > 0 {
		w.accumulator += realDt
	}
	if budget := float64(maxSubsteps) * dt; w.accumulator > budget {
		w.logger.Debug(context.Background(), "physics step budget exceeded",
			"dropped_seconds", w.accumulator-budget,
			"max_substeps", maxSubsteps)
		w.accumulator = budget
	}

	// tolerate rounding left over from repeated subtraction
	threshold := dt * (1 - 1e-9)
	steps := 0
	for steps < maxSubsteps && w.accumulator >= threshold {
		w.step(dt)
		w.accumulator = math.Max(w.accumulator-dt, 0)
		steps++
	}
	return steps
}

// StepFixed runs exactly one substep of dt
func (w *World) StepFixed(dt float64) {
	w.events = w.events[:0]
	if dt <= 0 {
		return
	}
	w.lastDt = dt
	w.step(dt)
}

// step runs one substep: gravity, collision, biased velocity solve, integration, a relax
// solve without bias, restitution, then direct overlap correction.
func (w *World) step(dt float64) {
	settings := &w.Settings

	for _, b := range w.bodies {
		if b == nil || b.Static {
			continue
		}
		b.Velocity = b.Velocity.Add(settings.Gravity.Scale(b.GravityScale * dt))
		if b.LinearDamping > 0 {
			b.Velocity = b.Velocity.Scale(1 / (1 + dt*b.LinearDamping))
		}
		if b.AngularDamping > 0 {
			b.AngularVelocity *= 1 / (1 + dt*b.AngularDamping)
		}
	}

	w.collide()

	ctx := newStepContext(settings, dt)
	constraints := w.Constraints()
	for _, c := range constraints {
		c.prepare(ctx)
	}
	for _, c := range constraints {
		c.warmStart()
	}

	iterations := max(settings.Iterations, 1)
	for i := 0; i < iterations; i++ {
		for _, c := range constraints {
			c.solve(ctx, true)
		}
	}

	for _, b := range w.bodies {
		if b != nil {
			b.Step(dt)
		}
	}

	relax := max(settings.RelaxIterations, 1)
	for i := 0; i < relax; i++ {
		for _, c := range constraints {
			c.solve(ctx, false)
		}
	}

	for _, c := range w.contacts {
		c.applyRestitution(ctx)
	}

	for i := 0; i < settings.PositionIterations; i++ {
		for _, c := range w.contacts {
			c.solvePosition(ctx)
		}
	}
}

// collide rebuilds the contact list, carrying impulses over for matching feature IDs
func (w *World) collide() {
	slop := w.Settings.LinearSlop

	previous := make(map[FeatureID]*Contact, len(w.contacts))
	for _, c := range w.contacts {
		previous[c.feature] = c
	}

	contacts := make([]*Contact, 0, len(w.contacts))
	var touching []pairKey
	touchingSet := make(map[pairKey]struct{}, len(w.touchingSet))

	for _, pair := range broadPhase(w.bodies, slop) {
		points := collideBodies(pair.a, pair.b, slop)
		for _, m := range points {
			if c, ok := previous[m.id]; ok {
				c.refresh(m)
				contacts = append(contacts, c)
			} else {
				contacts = append(contacts, newContact(pair.a, pair.b, m))
			}
		}
		if len(points) > 0 {
			key := pairKey{a: pair.a.id, b: pair.b.id}
			touching = append(touching, key)
			touchingSet[key] = struct{}{}
			if _, was := w.touchingSet[key]; !was {
				w.events = append(w.events, ContactEvent{Kind: ContactBegin, BodyA: key.a, BodyB: key.b})
			}
		}
	}

	for _, key := range w.touching {
		if _, still := touchingSet[key]; !still {
			w.events = append(w.events, ContactEvent{Kind: ContactEnd, BodyA: key.a, BodyB: key.b})
		}
	}

	w.contacts = contacts
	w.touching = touching
	w.touchingSet = touchingSet
}
