package physics

import (
	"fmt"
	"strings"
)

// ConstraintMode selects how position error is fed back into the velocity solver.
// It is a single world-wide switch shared by joints and contacts.
type ConstraintMode int

const (
	// Soft uses a mass-spring-damper parameterized by frequency and damping ratio
	Soft ConstraintMode = iota
	// Baumgarte feeds back position error × factor / dt
	Baumgarte
)

func (m ConstraintMode) String() string {
	switch m {
	case Soft:
		return "soft"
	case Baumgarte:
		return "baumgarte"
	default:
		return fmt.Sprintf("ConstraintMode(%d)", int(m))
	}
}

// ParseConstraintMode accepts "soft" or "baumgarte" in any case
func ParseConstraintMode(s string) (ConstraintMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "soft", "":
		return Soft, nil
	case "baumgarte":
		return Baumgarte, nil
	default:
		return Soft, fmt.Errorf("unknown constraint mode %q", s)
	}
}

// Settings controls the solver for a whole world
type Settings struct {
	Gravity    Vector2D
	Iterations int
	// RelaxIterations run after integration without bias to remove the push velocity
	RelaxIterations int
	Mode            ConstraintMode

	BaumgarteFactor float64

	ContactHertz        float64
	ContactDampingRatio float64
	JointHertz          float64
	JointDampingRatio   float64

	// LinearSlop is the tolerated penetration depth; it also widens SAT clipping
	LinearSlop float64
	// RestitutionThreshold is the approach speed below which contacts do not bounce
	RestitutionThreshold float64
	// MaxContactPush caps the separation speed injected by the contact bias
	MaxContactPush float64

	// PositionIterations of direct overlap correction run at the end of each step; 0 disables it
	PositionIterations int
	// PositionCorrection is the fraction of the overlap removed per position iteration
	PositionCorrection float64
	// MaxLinearCorrection caps the distance one position iteration may move a contact
	MaxLinearCorrection float64
}

// DefaultSettings returns Earth gravity and a soft solver tuned for meter-scale bodies
func DefaultSettings() Settings {
	return Settings{
		Gravity:              Vector2D{X: 0, Y: -9.81},
		Iterations:           8,
		RelaxIterations:      4,
		Mode:                 Soft,
		BaumgarteFactor:      0.2,
		ContactHertz:         30,
		ContactDampingRatio:  10,
		JointHertz:           60,
		JointDampingRatio:    2,
		LinearSlop:           0.005,
		RestitutionThreshold: 1,
		MaxContactPush:       3,
		PositionIterations:   3,
		PositionCorrection:   0.8,
		MaxLinearCorrection:  0.2,
	}
}
