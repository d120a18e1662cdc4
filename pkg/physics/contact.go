// pkg/physics/contact.go
package physics

import "math"

// Contact is a single contact point between two bodies with a normal row, a friction
// row and a restitution pass. Its normal always points from body A to body B.
type Contact struct {
	bodyA *Body
	bodyB *Body

	normal  Vector2D
	point   Vector2D
	depth   float64
	feature FeatureID

	friction    float64
	restitution float64

	normalImpulse  float64
	tangentImpulse float64
	reused         bool

	// per-step cache
	normalMass       float64
	tangentMass      float64
	relativeVelocity float64
	// the contact point pinned to each body, to track separation as the bodies move
	localA Vector2D
	localB Vector2D
}

func newContact(a, b *Body, m manifoldPoint) *Contact {
	return &Contact{
		bodyA:       a,
		bodyB:       b,
		normal:      m.normal,
		point:       m.point,
		depth:       m.depth,
		feature:     m.id,
		friction:    mixFriction(a.Friction, b.Friction),
		restitution: mixRestitution(a.Restitution, b.Restitution),
	}
}

// refresh moves a persisting contact to this frame's geometry and keeps its impulses
func (c *Contact) refresh(m manifoldPoint) {
	c.normal = m.normal
	c.point = m.point
	c.depth = m.depth
	c.friction = mixFriction(c.bodyA.Friction, c.bodyB.Friction)
	c.restitution = mixRestitution(c.bodyA.Restitution, c.bodyB.Restitution)
	c.reused = true
}

// BodyA implements Constraint
func (c *Contact) BodyA() *Body { return c.bodyA }

// BodyB implements Constraint
func (c *Contact) BodyB() *Body { return c.bodyB }

// Normal points from A to B
func (c *Contact) Normal() Vector2D { return c.normal }

// Point is the contact point in world space
func (c *Contact) Point() Vector2D { return c.point }

// Depth is the penetration depth at detection time; negative means a speculative gap
func (c *Contact) Depth() float64 { return c.depth }

// FeatureID identifies the contact across frames
func (c *Contact) FeatureID() FeatureID { return c.feature }

// NormalImpulse is the accumulated non-negative normal impulse
func (c *Contact) NormalImpulse() float64 { return c.normalImpulse }

// TangentImpulse is the accumulated friction impulse
func (c *Contact) TangentImpulse() float64 { return c.tangentImpulse }

// Reused reports whether the contact persisted from the previous step
func (c *Contact) Reused() bool { return c.reused }

// Friction is the combined friction coefficient
func (c *Contact) Friction() float64 { return c.friction }

// Restitution is the combined restitution coefficient
func (c *Contact) Restitution() float64 { return c.restitution }

func (c *Contact) tangent() Vector2D {
	return c.normal.RotateCW90()
}

func (c *Contact) relativeVelocityAt() Vector2D {
	return c.bodyB.VelocityAt(c.point).Sub(c.bodyA.VelocityAt(c.point))
}

func (c *Contact) prepare(step *stepContext) {
	a, b := c.bodyA, c.bodyB
	rA := c.point.Sub(a.Position)
	rB := c.point.Sub(b.Position)
	mA, mB := a.InvMass(), b.InvMass()
	iA, iB := a.InvInertia(), b.InvInertia()

	rnA := rA.Cross(c.normal)
	rnB := rB.Cross(c.normal)
	kNormal := mA + mB + iA*rnA*rnA + iB*rnB*rnB
	c.normalMass = 0
	if kNormal > 0 {
		c.normalMass = 1 / kNormal
	}

	t := c.tangent()
	rtA := rA.Cross(t)
	rtB := rB.Cross(t)
	kTangent := mA + mB + iA*rtA*rtA + iB*rtB*rtB
	c.tangentMass = 0
	if kTangent > 0 {
		c.tangentMass = 1 / kTangent
	}

	// approach speed before any impulse of this step, used by restitution
	c.relativeVelocity = c.relativeVelocityAt().Dot(c.normal)

	c.localA = a.WorldToLocal(c.point)
	c.localB = b.WorldToLocal(c.point)
}

// separation is the signed gap along the normal at the current body positions.
// It equals -Depth until the bodies move.
func (c *Contact) separation() float64 {
	d := c.bodyB.LocalToWorld(c.localB).Sub(c.bodyA.LocalToWorld(c.localA))
	return d.Dot(c.normal) - c.depth
}

func (c *Contact) warmStart() {
	p := c.normal.Scale(c.normalImpulse).Add(c.tangent().Scale(c.tangentImpulse))
	applyPair(c.bodyA, c.bodyB, p, c.point, c.point)
}

func (c *Contact) solve(step *stepContext, useBias bool) {
	a, b := c.bodyA, c.bodyB
	t := c.tangent()

	// friction
	{
		vt := c.relativeVelocityAt().Dot(t)
		impulse := -c.tangentMass * vt
		maxFriction := c.friction * c.normalImpulse
		newImpulse := math.Max(-maxFriction, math.Min(c.tangentImpulse+impulse, maxFriction))
		impulse = newImpulse - c.tangentImpulse
		c.tangentImpulse = newImpulse
		applyPair(a, b, t.Scale(impulse), c.point, c.point)
	}

	// normal
	{
		vn := c.relativeVelocityAt().Dot(c.normal)
		bias, massScale, impulseScale := c.normalBias(step, useBias)
		impulse := -c.normalMass*massScale*(vn+bias) - impulseScale*c.normalImpulse
		newImpulse := math.Max(c.normalImpulse+impulse, 0)
		impulse = newImpulse - c.normalImpulse
		c.normalImpulse = newImpulse
		applyPair(a, b, c.normal.Scale(impulse), c.point, c.point)
	}
}

// normalBias returns the velocity bias for the normal row. A speculative gap lets the
// bodies close it this step; overlap beyond the slop is pushed out with the bias mode.
func (c *Contact) normalBias(step *stepContext, useBias bool) (bias, massScale, impulseScale float64) {
	s := c.separation()
	if s > 0 {
		return s * step.invDt, 1, 0
	}
	if !useBias {
		return 0, rigid.massScale, rigid.impulseScale
	}
	soft := step.contactSoft
	err := math.Max(-s-step.settings.LinearSlop, 0)
	push := soft.biasRate * err
	if limit := step.settings.MaxContactPush; limit > 0 {
		push = math.Min(push, limit)
	}
	return -push, soft.massScale, soft.impulseScale
}

// applyRestitution runs once per step after the velocity iterations
func (c *Contact) applyRestitution(step *stepContext) {
	if c.restitution <= 0 || c.reused {
		return
	}
	if c.relativeVelocity > -step.settings.RestitutionThreshold {
		return
	}
	vn := c.relativeVelocityAt().Dot(c.normal)
	impulse := -c.normalMass * (vn + c.restitution*c.relativeVelocity)
	newImpulse := math.Max(c.normalImpulse+impulse, 0)
	impulse = newImpulse - c.normalImpulse
	c.normalImpulse = newImpulse
	applyPair(c.bodyA, c.bodyB, c.normal.Scale(impulse), c.point, c.point)
}

// solvePosition moves the bodies apart until the overlap is half the slop. It changes
// positions only, so no velocity is left behind once the pair has separated.
func (c *Contact) solvePosition(step *stepContext) {
	settings := step.settings
	a, b := c.bodyA, c.bodyB
	pA := a.LocalToWorld(c.localA)
	pB := b.LocalToWorld(c.localB)
	s := pB.Sub(pA).Dot(c.normal) - c.depth

	correction := math.Min(settings.PositionCorrection*(s+settings.LinearSlop/2), 0)
	if limit := settings.MaxLinearCorrection; limit > 0 {
		correction = math.Max(correction, -limit)
	}
	if correction == 0 {
		return
	}

	rA := pA.Sub(a.Position)
	rB := pB.Sub(b.Position)
	rnA := rA.Cross(c.normal)
	rnB := rB.Cross(c.normal)
	k := a.InvMass() + b.InvMass() + a.InvInertia()*rnA*rnA + b.InvInertia()*rnB*rnB
	if k <= 0 {
		return
	}
	p := c.normal.Scale(-correction / k)
	a.applyPositionImpulse(p.Negate(), rA)
	b.applyPositionImpulse(p, rB)
}
