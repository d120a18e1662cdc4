// pkg/physics/revolute.go
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// singularEpsilon guards the 2x2 effective-mass inversion
const singularEpsilon = 1e-12

// MotorMode selects how a revolute joint's motor drives the joint
type MotorMode int

const (
	// MotorOff disables the motor row
	MotorOff MotorMode = iota
	// MotorSpeed drives the relative angular velocity toward a target speed
	MotorSpeed
	// MotorServo pulls the relative angle toward a target angle like a rotational spring
	MotorServo
)

func (m MotorMode) String() string {
	switch m {
	case MotorSpeed:
		return "speed"
	case MotorServo:
		return "servo"
	default:
		return "off"
	}
}

// RevoluteJoint pins two bodies together at a shared anchor and lets them rotate
// relative to each other, optionally within angle limits and driven by a motor.
type RevoluteJoint struct {
	bodyA *Body
	bodyB *Body

	localAnchorA   Vector2D
	localAnchorB   Vector2D
	referenceAngle float64

	limitEnabled bool
	lowerAngle   float64
	upperAngle   float64

	motorMode         MotorMode
	motorSpeed        float64
	maxMotorForce     float64
	targetAngle       float64
	motorHertz        float64
	motorDampingRatio float64

	// accumulated impulses, persisted across steps for warm starting
	impulse      Vector2D
	lowerImpulse float64
	upperImpulse float64
	motorImpulse float64

	// per-step cache
	rA         Vector2D
	rB         Vector2D
	k          mgl64.Mat2
	axialMass  float64
	servoMass  float64
	servoBias  float64
	servoGamma float64
}

func newRevoluteJoint(a, b *Body, worldAnchor Vector2D) *RevoluteJoint {
	return &RevoluteJoint{
		bodyA:          a,
		bodyB:          b,
		localAnchorA:   a.WorldToLocal(worldAnchor),
		localAnchorB:   b.WorldToLocal(worldAnchor),
		referenceAngle: b.Rotation - a.Rotation,
	}
}

// BodyA implements Constraint
func (j *RevoluteJoint) BodyA() *Body { return j.bodyA }

// BodyB implements Constraint
func (j *RevoluteJoint) BodyB() *Body { return j.bodyB }

// AnchorA returns the anchor on body A in world space
func (j *RevoluteJoint) AnchorA() Vector2D {
	return j.bodyA.LocalToWorld(j.localAnchorA)
}

// AnchorB returns the anchor on body B in world space
func (j *RevoluteJoint) AnchorB() Vector2D {
	return j.bodyB.LocalToWorld(j.localAnchorB)
}

// RelativeAngle is B's rotation relative to A, measured from the angle at creation
func (j *RevoluteJoint) RelativeAngle() float64 {
	return j.bodyB.Rotation - j.bodyA.Rotation - j.referenceAngle
}

// ReactionImpulse returns the accumulated point-constraint impulse applied to body B
func (j *RevoluteJoint) ReactionImpulse() Vector2D {
	return j.impulse
}

// MotorImpulse returns the accumulated motor impulse of the last step
func (j *RevoluteJoint) MotorImpulse() float64 {
	return j.motorImpulse
}

// EnableLimit restricts the relative angle to [lower, upper]
func (j *RevoluteJoint) EnableLimit(lower, upper float64) {
	if lower > upper {
		lower, upper = upper, lower
	}
	if !j.limitEnabled || lower != j.lowerAngle || upper != j.upperAngle {
		j.lowerImpulse = 0
		j.upperImpulse = 0
	}
	j.limitEnabled = true
	j.lowerAngle = lower
	j.upperAngle = upper
}

// DisableLimit removes the angle limits
func (j *RevoluteJoint) DisableLimit() {
	j.limitEnabled = false
	j.lowerImpulse = 0
	j.upperImpulse = 0
}

// Limits reports the configured bounds and whether they are active
func (j *RevoluteJoint) Limits() (lower, upper float64, enabled bool) {
	return j.lowerAngle, j.upperAngle, j.limitEnabled
}

// MotorMode returns the active motor mode
func (j *RevoluteJoint) MotorMode() MotorMode {
	return j.motorMode
}

// MotorTargetAngle returns the servo target after wrapping and clamping
func (j *RevoluteJoint) MotorTargetAngle() float64 {
	return j.targetAngle
}

// SetMotorSpeed switches the motor to constant-speed mode
func (j *RevoluteJoint) SetMotorSpeed(speed, maxForce float64) {
	if j.motorMode != MotorSpeed {
		j.motorImpulse = 0
	}
	j.motorMode = MotorSpeed
	j.motorSpeed = speed
	j.maxMotorForce = math.Abs(maxForce)
}

// SetMotorTargetAngle switches the motor to servo mode. The target is wrapped to the
// shortest path from the current relative angle and, when limits are on, clamped to
// whichever bound is angularly closer.
func (j *RevoluteJoint) SetMotorTargetAngle(target, maxForce, frequency, dampingRatio float64) {
	current := j.RelativeAngle()
	t := current + wrapAngle(target-current)

	if j.limitEnabled && (t < j.lowerAngle || t > j.upperAngle) {
		if math.Abs(wrapAngle(target-j.lowerAngle)) <= math.Abs(wrapAngle(target-j.upperAngle)) {
			t = j.lowerAngle
		} else {
			t = j.upperAngle
		}
	}

	if j.motorMode != MotorServo {
		j.motorImpulse = 0
	}
	j.motorMode = MotorServo
	j.targetAngle = t
	j.maxMotorForce = math.Abs(maxForce)
	j.motorHertz = frequency
	j.motorDampingRatio = dampingRatio
}

// DisableMotor turns the motor row off
func (j *RevoluteJoint) DisableMotor() {
	j.motorMode = MotorOff
	j.motorImpulse = 0
}

func (j *RevoluteJoint) prepare(step *stepContext) {
	a, b := j.bodyA, j.bodyB
	j.rA = a.LocalVectorToWorld(j.localAnchorA)
	j.rB = b.LocalVectorToWorld(j.localAnchorB)

	mA, mB := a.InvMass(), b.InvMass()
	iA, iB := a.InvInertia(), b.InvInertia()

	k11 := mA + mB + iA*j.rA.Y*j.rA.Y + iB*j.rB.Y*j.rB.Y
	k12 := -iA*j.rA.X*j.rA.Y - iB*j.rB.X*j.rB.Y
	k22 := mA + mB + iA*j.rA.X*j.rA.X + iB*j.rB.X*j.rB.X
	j.k = mgl64.Mat2{k11, k12, k12, k22}

	j.axialMass = 0
	if k := iA + iB; k > 0 {
		j.axialMass = 1 / k
	}

	j.servoMass, j.servoBias, j.servoGamma = 0, 0, 0
	if j.motorMode == MotorServo && j.axialMass > 0 && j.motorHertz > 0 {
		omega := 2 * math.Pi * j.motorHertz
		stiffness := j.axialMass * omega * omega
		damping := 2 * j.axialMass * j.motorDampingRatio * omega

		gamma := step.dt * (damping + step.dt*stiffness)
		if gamma > 0 {
			gamma = 1 / gamma
		}
		c := j.RelativeAngle() - j.targetAngle
		j.servoGamma = gamma
		j.servoBias = c * step.dt * stiffness * gamma
		j.servoMass = 1 / (iA + iB + gamma)
	}

	if j.motorMode == MotorOff {
		j.motorImpulse = 0
	}
	if !j.limitEnabled {
		j.lowerImpulse, j.upperImpulse = 0, 0
	}
}

func (j *RevoluteJoint) warmStart() {
	a, b := j.bodyA, j.bodyB
	axial := j.motorImpulse + j.lowerImpulse - j.upperImpulse
	applyPair(a, b, j.impulse, a.Position.Add(j.rA), b.Position.Add(j.rB))
	applyAngularPair(a, b, axial)
}

func (j *RevoluteJoint) solve(step *stepContext, useBias bool) {
	a, b := j.bodyA, j.bodyB

	if j.axialMass > 0 {
		switch j.motorMode {
		case MotorSpeed:
			cdot := b.AngularVelocity - a.AngularVelocity - j.motorSpeed
			j.applyMotorImpulse(-j.axialMass*cdot, step.dt)
		case MotorServo:
			if j.servoMass > 0 {
				cdot := b.AngularVelocity - a.AngularVelocity
				impulse := -j.servoMass * (cdot + j.servoBias + j.servoGamma*j.motorImpulse)
				j.applyMotorImpulse(impulse, step.dt)
			}
		}
	}

	j.solvePoint(step, useBias)

	// limits go last so no later row in the iteration can push the angle past a bound
	if j.limitEnabled && j.axialMass > 0 {
		angle := j.RelativeAngle()

		// lower bound
		{
			c := angle - j.lowerAngle
			bias, massScale, impulseScale := limitBias(c, step, useBias)
			cdot := b.AngularVelocity - a.AngularVelocity
			impulse := -j.axialMass*massScale*(cdot+bias) - impulseScale*j.lowerImpulse
			newImpulse := math.Max(j.lowerImpulse+impulse, 0)
			impulse = newImpulse - j.lowerImpulse
			j.lowerImpulse = newImpulse
			applyAngularPair(a, b, impulse)
		}

		// upper bound, with the sign of the row flipped
		{
			c := j.upperAngle - angle
			bias, massScale, impulseScale := limitBias(c, step, useBias)
			cdot := a.AngularVelocity - b.AngularVelocity
			impulse := -j.axialMass*massScale*(cdot+bias) - impulseScale*j.upperImpulse
			newImpulse := math.Max(j.upperImpulse+impulse, 0)
			impulse = newImpulse - j.upperImpulse
			j.upperImpulse = newImpulse
			applyAngularPair(a, b, -impulse)
		}
	}
}

func (j *RevoluteJoint) solvePoint(step *stepContext, useBias bool) {
	det := j.k.Det()
	if math.Abs(det) < singularEpsilon {
		return
	}
	a, b := j.bodyA, j.bodyB
	soft := rigid
	if useBias {
		soft = step.jointSoft
	}
	pA := a.Position.Add(j.rA)
	pB := b.Position.Add(j.rB)
	cdot := b.VelocityAt(pB).Sub(a.VelocityAt(pA))
	c := pB.Sub(pA)

	rhs := cdot.Add(c.Scale(soft.biasRate))
	solution := fromVec2(j.k.Inv().Mul2x1(rhs.vec2()))
	impulse := solution.Scale(-soft.massScale).Sub(j.impulse.Scale(soft.impulseScale))
	j.impulse = j.impulse.Add(impulse)
	applyPair(a, b, impulse, pA, pB)
}

func (j *RevoluteJoint) applyMotorImpulse(impulse, dt float64) {
	maxImpulse := j.maxMotorForce * dt
	old := j.motorImpulse
	j.motorImpulse = math.Max(-maxImpulse, math.Min(old+impulse, maxImpulse))
	applyAngularPair(j.bodyA, j.bodyB, j.motorImpulse-old)
}

// limitBias treats a bound that has not been reached yet speculatively, so the row only
// removes the approach speed that would cross it this step. A violated bound is pushed
// back stiffly whatever the world's bias mode.
func limitBias(c float64, step *stepContext, useBias bool) (bias, massScale, impulseScale float64) {
	if c > 0 {
		return c * step.invDt, 1, 0
	}
	soft := rigid
	if useBias {
		soft = step.limitSoft
	}
	return soft.biasRate * c, soft.massScale, soft.impulseScale
}

// wrapAngle maps an angle into [-pi, pi]
func wrapAngle(angle float64) float64 {
	return math.Remainder(angle, 2*math.Pi)
}
