// pkg/physics/body.go
package physics

import (
	"fmt"
	"math"
)

// DefaultCollisionMask lets a body interact with every other body
const DefaultCollisionMask uint32 = 0xFFFFFFFF

// BodyID is a generation-checked handle into the world's body arena.
// A handle stays invalid after its body is removed, even when the slot is reused.
type BodyID struct {
	Index      uint32 `json:"index"`
	Generation uint32 `json:"generation"`
}

func (id BodyID) String() string {
	return fmt.Sprintf("body#%d.%d", id.Index, id.Generation)
}

// Body is a rigid body. The body origin is its center of mass.
type Body struct {
	id BodyID

	Position        Vector2D
	Velocity        Vector2D
	Rotation        float64 // radians
	AngularVelocity float64

	Shapes []Shape
	Static bool

	// Mass and Inertia are +Inf for static bodies
	Mass    float64
	Inertia float64

	CollisionMask uint32
	IgnoreMask    uint32

	Friction    float64
	Restitution float64

	LinearDamping  float64
	AngularDamping float64
	GravityScale   float64

	UserData any
}

// NewBody creates a body whose mass properties are derived from its shapes and density.
// The body is not part of any world until passed to World.AddBody.
func NewBody(position Vector2D, density float64, static bool, shapes ...Shape) *Body {
	b := &Body{
		Position:      position,
		Shapes:        shapes,
		Static:        static,
		CollisionMask: DefaultCollisionMask,
		Friction:      0.6,
		GravityScale:  1,
	}

	var mass, inertia float64
	for _, s := range shapes {
		md := s.MassData(density)
		mass += md.Mass
		inertia += md.Inertia
	}
	b.SetMass(mass, inertia)
	return b
}

// ID returns the arena handle assigned when the body was added to a world
func (b *Body) ID() BodyID {
	return b.id
}

// SetMass overrides the mass properties. Non-positive mass on a dynamic body falls back
// to 1; non-positive inertia locks rotation.
func (b *Body) SetMass(mass, inertia float64) {
	if b.Static {
		b.Mass = math.Inf(1)
		b.Inertia = math.Inf(1)
		return
	}
	if mass <= 0 {
		mass = 1
	}
	if inertia <= 0 {
		inertia = math.Inf(1)
	}
	b.Mass = mass
	b.Inertia = inertia
}

// InvMass is zero for static bodies
func (b *Body) InvMass() float64 {
	if b.Static || math.IsInf(b.Mass, 1) || b.Mass <= 0 {
		return 0
	}
	return 1 / b.Mass
}

// InvInertia is zero for static bodies and bodies with locked rotation
func (b *Body) InvInertia() float64 {
	if b.Static || math.IsInf(b.Inertia, 1) || b.Inertia <= 0 {
		return 0
	}
	return 1 / b.Inertia
}

// Step integrates position and rotation from the current velocities
func (b *Body) Step(dt float64) {
	if b.Static {
		return
	}
	b.Position = b.Position.Add(b.Velocity.Scale(dt))
	b.Rotation += b.AngularVelocity * dt
}

// ApplyImpulse changes linear and angular velocity as if impulse were applied at worldPoint
func (b *Body) ApplyImpulse(impulse, worldPoint Vector2D) {
	if b.Static {
		return
	}
	r := worldPoint.Sub(b.Position)
	b.Velocity = b.Velocity.Add(impulse.Scale(b.InvMass()))
	b.AngularVelocity += r.Cross(impulse) * b.InvInertia()
}

// applyPositionImpulse shifts position and rotation the way ApplyImpulse shifts velocity
func (b *Body) applyPositionImpulse(impulse, r Vector2D) {
	if b.Static {
		return
	}
	b.Position = b.Position.Add(impulse.Scale(b.InvMass()))
	b.Rotation += r.Cross(impulse) * b.InvInertia()
}

// ApplyAngularImpulse changes angular velocity only
func (b *Body) ApplyAngularImpulse(impulse float64) {
	if b.Static {
		return
	}
	b.AngularVelocity += impulse * b.InvInertia()
}

// VelocityAt returns the velocity of the material point at worldPoint
func (b *Body) VelocityAt(worldPoint Vector2D) Vector2D {
	return b.Velocity.Add(CrossScalar(b.AngularVelocity, worldPoint.Sub(b.Position)))
}

// LocalToWorld rotates then translates a body-local point
func (b *Body) LocalToWorld(local Vector2D) Vector2D {
	return b.transform().apply(local)
}

// WorldToLocal is the inverse of LocalToWorld
func (b *Body) WorldToLocal(world Vector2D) Vector2D {
	return b.transform().applyInverse(world)
}

// LocalVectorToWorld rotates a body-local direction into world space
func (b *Body) LocalVectorToWorld(local Vector2D) Vector2D {
	return local.Rotate(b.Rotation)
}

// AABB returns the union of the world-space bounds of every shape
func (b *Body) AABB() AABB {
	if len(b.Shapes) == 0 {
		return AABB{Min: b.Position, Max: b.Position}
	}
	xf := b.transform()
	box := EmptyAABB()
	for _, s := range b.Shapes {
		box = box.Union(s.bounds(xf))
	}
	return box
}

// ContainsPoint reports whether any shape contains the world point
func (b *Body) ContainsPoint(world Vector2D) bool {
	local := b.WorldToLocal(world)
	for _, s := range b.Shapes {
		if s.ContainsPoint(local) {
			return true
		}
	}
	return false
}

func (b *Body) transform() transform {
	return newTransform(b.Position, b.Rotation)
}

// canCollide applies the static rule and the mask rules to a candidate pair
func canCollide(a, b *Body) bool {
	if a.Static && b.Static {
		return false
	}
	if a.CollisionMask&b.CollisionMask == 0 {
		return false
	}
	return a.IgnoreMask&b.CollisionMask == 0 && b.IgnoreMask&a.CollisionMask == 0
}

// mixFriction combines two friction coefficients with the geometric mean
func mixFriction(a, b float64) float64 {
	return math.Sqrt(a * b)
}

// mixRestitution combines two restitution coefficients with the geometric mean
func mixRestitution(a, b float64) float64 {
	return math.Sqrt(a * b)
}
