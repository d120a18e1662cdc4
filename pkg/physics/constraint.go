package physics

import "math"

// Constraint links two bodies. The set of constraints is closed: *RevoluteJoint and *Contact.
// A constraint holds references to its bodies and never owns them.
type Constraint interface {
	BodyA() *Body
	BodyB() *Body
	// prepare recomputes cached geometry (lever arms, effective masses) for this step
	prepare(step *stepContext)
	// warmStart re-applies the impulses accumulated in the previous step
	warmStart()
	// solve runs one velocity iteration. Without bias the rows only remove relative
	// velocity, which strips the push added by position correction.
	solve(step *stepContext, useBias bool)
}

// softness is the bias triple fed into every constraint row:
// impulse = -massScale * mass * (Cdot + biasRate*C) - impulseScale * accumulated
type softness struct {
	biasRate     float64
	massScale    float64
	impulseScale float64
}

// rigid solves a row exactly with no position feedback
var rigid = softness{massScale: 1}

func makeSoftness(hertz, dampingRatio, dt float64) softness {
	if hertz <= 0 || dt <= 0 {
		return softness{biasRate: 0, massScale: 1, impulseScale: 0}
	}
	omega := 2 * math.Pi * hertz
	a1 := 2*dampingRatio + dt*omega
	a2 := dt * omega * a1
	a3 := 1 / (1 + a2)
	return softness{
		biasRate:     omega / a1,
		massScale:    a2 * a3,
		impulseScale: a3,
	}
}

func makeBaumgarte(factor, dt float64) softness {
	if dt <= 0 {
		return softness{massScale: 1}
	}
	return softness{biasRate: factor / dt, massScale: 1, impulseScale: 0}
}

// stepContext carries per-substep solver state shared by all constraints
type stepContext struct {
	dt       float64
	invDt    float64
	settings *Settings

	contactSoft softness
	jointSoft   softness
	// limitSoft corrects a violated joint limit; it is stiff in both modes
	limitSoft softness
}

func newStepContext(settings *Settings, dt float64) *stepContext {
	step := &stepContext{dt: dt, settings: settings}
	if dt > 0 {
		step.invDt = 1 / dt
	}
	step.limitSoft = makeBaumgarte(settings.BaumgarteFactor, dt)
	switch settings.Mode {
	case Baumgarte:
		step.contactSoft = makeBaumgarte(settings.BaumgarteFactor, dt)
		step.jointSoft = step.contactSoft
	default:
		step.contactSoft = makeSoftness(settings.ContactHertz, settings.ContactDampingRatio, dt)
		step.jointSoft = makeSoftness(settings.JointHertz, settings.JointDampingRatio, dt)
	}
	return step
}

// applyPair applies equal and opposite impulses at the anchors: -P on A and +P on B
func applyPair(a, b *Body, impulse, pointA, pointB Vector2D) {
	a.ApplyImpulse(impulse.Negate(), pointA)
	b.ApplyImpulse(impulse, pointB)
}

// applyAngularPair applies an equal and opposite pure angular impulse
func applyAngularPair(a, b *Body, impulse float64) {
	a.ApplyAngularImpulse(-impulse)
	b.ApplyAngularImpulse(impulse)
}
