// Package validation checks simulation configuration and scene descriptions before a world is built.
package validation

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/opd-ai/rigid2d/pkg/config"
	"github.com/opd-ai/rigid2d/pkg/physics"
)

// Limits applied to configuration input
const (
	MaxNameLen     = 64
	MaxBodies      = 10000
	MaxIterations  = 256
	MaxSubsteps    = 64
	MaxFrameRate   = 1000
	MinTimestep    = 1e-5
	MaxTimestep    = 0.1
	MaxBroadcastHz = 240
)

// Body and joint names are used as map keys and in snapshots, so keep them plain
var validNameChars = regexp.MustCompile(`^[a-zA-Z0-9_\-.]+$`)

// Error collects every problem found in one validation pass
type Error struct {
	Errors []error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid configuration (%d problems):\n%v", len(e.Errors), errors.Join(e.Errors...))
}

// Unwrap exposes the individual problems to errors.Is and errors.As
func (e *Error) Unwrap() []error {
	return e.Errors
}

// FieldError reports a bad value at a config path such as scene.bodies[2].radius
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

type collector struct {
	errs []error
}

func (c *collector) add(field, format string, args ...interface{}) {
	c.errs = append(c.errs, &FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *collector) wrap(field string, err error) {
	c.errs = append(c.errs, &FieldError{Field: field, Message: err.Error(), Err: err})
}

func (c *collector) result() error {
	if len(c.errs) == 0 {
		return nil
	}
	return &Error{Errors: c.errs}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ValidateName checks a body or joint name
func ValidateName(name string) error {
	if name == "" {
		return errors.New("name cannot be empty")
	}
	if len(name) > MaxNameLen {
		return fmt.Errorf("name too long: %d characters (max %d)", len(name), MaxNameLen)
	}
	if !utf8.ValidString(name) {
		return errors.New("name contains invalid UTF-8 characters")
	}
	if !validNameChars.MatchString(name) {
		return fmt.Errorf("name %q contains invalid characters (only letters, digits, '_', '-' and '.' allowed)", name)
	}
	return nil
}

// ValidateConfig checks every section of cfg and reports all problems together
func ValidateConfig(cfg *config.SimConfig) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	c := &collector{}
	validatePhysics(c, cfg.Physics)
	validateTiming(c, cfg.Timing)
	validateStream(c, cfg.Stream)
	validateScene(c, cfg.Scene)
	return c.result()
}

// ValidatePhysics checks solver settings
func ValidatePhysics(p config.PhysicsConfig) error {
	c := &collector{}
	validatePhysics(c, p)
	return c.result()
}

// ValidateScene checks bodies, joints and the references between them
func ValidateScene(scene config.SceneConfig) error {
	c := &collector{}
	validateScene(c, scene)
	return c.result()
}

func validatePhysics(c *collector, p config.PhysicsConfig) {
	if !p.Gravity.IsFinite() {
		c.add("physics.gravity", "must be finite")
	}
	if p.Iterations < 1 || p.Iterations > MaxIterations {
		c.add("physics.iterations", "must be between 1 and %d, got %d", MaxIterations, p.Iterations)
	}
	if p.RelaxIterations < 0 || p.RelaxIterations > MaxIterations {
		c.add("physics.relaxIterations", "must be between 0 and %d, got %d", MaxIterations, p.RelaxIterations)
	}
	if p.PositionIterations < 0 || p.PositionIterations > MaxIterations {
		c.add("physics.positionIterations", "must be between 0 and %d, got %d", MaxIterations, p.PositionIterations)
	}
	if _, err := physics.ParseConstraintMode(p.ConstraintMode); err != nil {
		c.wrap("physics.constraintMode", err)
	}

	nonNegative := map[string]float64{
		"physics.baumgarteFactor":      p.BaumgarteFactor,
		"physics.contactHertz":         p.ContactHertz,
		"physics.contactDampingRatio":  p.ContactDampingRatio,
		"physics.jointHertz":           p.JointHertz,
		"physics.jointDampingRatio":    p.JointDampingRatio,
		"physics.linearSlop":           p.LinearSlop,
		"physics.restitutionThreshold": p.RestitutionThreshold,
		"physics.maxContactPush":       p.MaxContactPush,
		"physics.positionCorrection":   p.PositionCorrection,
		"physics.maxLinearCorrection":  p.MaxLinearCorrection,
	}
	for _, field := range sortedKeys(nonNegative) {
		if v := nonNegative[field]; !finite(v) || v < 0 {
			c.add(field, "must be a non-negative number, got %v", v)
		}
	}
	if p.BaumgarteFactor > 1 {
		c.add("physics.baumgarteFactor", "must not exceed 1, got %v", p.BaumgarteFactor)
	}
	if p.PositionCorrection > 1 {
		c.add("physics.positionCorrection", "must not exceed 1, got %v", p.PositionCorrection)
	}
}

func validateTiming(c *collector, t config.TimingConfig) {
	if !finite(t.FixedTimestep) || t.FixedTimestep < MinTimestep || t.FixedTimestep > MaxTimestep {
		c.add("timing.fixedTimestep", "must be between %g and %g seconds, got %v", MinTimestep, MaxTimestep, t.FixedTimestep)
	}
	if t.MaxSubsteps < 1 || t.MaxSubsteps > MaxSubsteps {
		c.add("timing.maxSubsteps", "must be between 1 and %d, got %d", MaxSubsteps, t.MaxSubsteps)
	}
	if t.FrameRate < 1 || t.FrameRate > MaxFrameRate {
		c.add("timing.frameRate", "must be between 1 and %d, got %d", MaxFrameRate, t.FrameRate)
	}
}

func validateStream(c *collector, s config.StreamConfig) {
	if s.BroadcastRate < 0 || s.BroadcastRate > MaxBroadcastHz {
		c.add("stream.broadcastRate", "must be between 0 and %d, got %d", MaxBroadcastHz, s.BroadcastRate)
	}
}

func validateScene(c *collector, scene config.SceneConfig) {
	if len(scene.Bodies) > MaxBodies {
		c.add("scene.bodies", "too many bodies: %d (max %d)", len(scene.Bodies), MaxBodies)
	}

	bodies := make(map[string]bool, len(scene.Bodies))
	for i, body := range scene.Bodies {
		field := fmt.Sprintf("scene.bodies[%d]", i)
		if err := ValidateName(body.Name); err != nil {
			c.wrap(field+".name", err)
		} else if bodies[body.Name] {
			c.add(field+".name", "duplicate body name %q", body.Name)
		}
		bodies[body.Name] = true
		validateBody(c, field, body)
	}

	joints := make(map[string]bool, len(scene.Joints))
	for i, joint := range scene.Joints {
		field := fmt.Sprintf("scene.joints[%d]", i)
		if err := ValidateName(joint.Name); err != nil {
			c.wrap(field+".name", err)
		} else if joints[joint.Name] {
			c.add(field+".name", "duplicate joint name %q", joint.Name)
		}
		joints[joint.Name] = true
		validateJoint(c, field, joint, bodies)
	}
}

func validateBody(c *collector, field string, b config.BodyConfig) {
	if !b.Position.IsFinite() || !finite(b.Rotation) {
		c.add(field+".position", "position and rotation must be finite")
	}
	if !b.Velocity.IsFinite() || !finite(b.AngularVelocity) {
		c.add(field+".velocity", "velocities must be finite")
	}

	switch b.Shape {
	case config.ShapeBox:
		if !(b.Width > 0) || !(b.Height > 0) {
			c.add(field, "box needs positive width and height, got %vx%v", b.Width, b.Height)
		}
	case config.ShapeCircle:
		if !(b.Radius > 0) {
			c.add(field+".radius", "must be positive, got %v", b.Radius)
		}
	case config.ShapeCapsule:
		if !(b.Radius > 0) {
			c.add(field+".radius", "must be positive, got %v", b.Radius)
		}
		if !finite(b.Length) || b.Length < 0 {
			c.add(field+".length", "must be a non-negative number, got %v", b.Length)
		}
	case config.ShapePolygon:
		if _, err := physics.NewPolygon(b.Vertices); err != nil {
			c.wrap(field+".vertices", err)
		}
	default:
		c.add(field+".shape", "unknown shape %q", b.Shape)
	}

	if !b.Static && !(b.Density > 0) {
		c.add(field+".density", "dynamic bodies need a positive density, got %v", b.Density)
	}
	if !finite(b.Density) || b.Density < 0 {
		c.add(field+".density", "must be a non-negative number, got %v", b.Density)
	}
	if !finite(b.Friction) || b.Friction < 0 {
		c.add(field+".friction", "must be a non-negative number, got %v", b.Friction)
	}
	if !finite(b.Restitution) || b.Restitution < 0 || b.Restitution > 1 {
		c.add(field+".restitution", "must be between 0 and 1, got %v", b.Restitution)
	}
	if !finite(b.LinearDamping) || b.LinearDamping < 0 || !finite(b.AngularDamping) || b.AngularDamping < 0 {
		c.add(field, "damping must be non-negative")
	}
	if b.GravityScale != nil && !finite(*b.GravityScale) {
		c.add(field+".gravityScale", "must be finite")
	}
}

func validateJoint(c *collector, field string, j config.JointConfig, bodies map[string]bool) {
	for _, ref := range []struct{ field, name string }{{".bodyA", j.BodyA}, {".bodyB", j.BodyB}} {
		if !bodies[ref.name] {
			c.add(field+ref.field, "unknown body %q", ref.name)
		}
	}
	if j.BodyA == j.BodyB && j.BodyA != "" {
		c.add(field, "cannot join body %q to itself", j.BodyA)
	}
	if !j.Anchor.IsFinite() {
		c.add(field+".anchor", "must be finite")
	}

	if j.Limits != nil {
		if !finite(j.Limits.Lower) || !finite(j.Limits.Upper) || j.Limits.Lower > j.Limits.Upper {
			c.add(field+".limits", "need finite lower <= upper, got [%v, %v]", j.Limits.Lower, j.Limits.Upper)
		}
	}

	if m := j.Motor; m != nil {
		switch m.Mode {
		case config.MotorModeSpeed:
			if !finite(m.Speed) {
				c.add(field+".motor.speed", "must be finite")
			}
		case config.MotorModeServo:
			if !finite(m.TargetAngle) {
				c.add(field+".motor.targetAngle", "must be finite")
			}
			if !(m.Hertz > 0) || !finite(m.Hertz) {
				c.add(field+".motor.hertz", "servo needs a positive frequency, got %v", m.Hertz)
			}
			if !finite(m.DampingRatio) || m.DampingRatio < 0 {
				c.add(field+".motor.dampingRatio", "must be non-negative, got %v", m.DampingRatio)
			}
		default:
			c.add(field+".motor.mode", "unknown motor mode %q", m.Mode)
		}
		if !finite(m.MaxForce) || m.MaxForce < 0 {
			c.add(field+".motor.maxForce", "must be a non-negative number, got %v", m.MaxForce)
		}
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
