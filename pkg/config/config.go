// pkg/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/rigid2d/pkg/physics"
)

// SimConfig contains everything needed to build and drive a simulation
type SimConfig struct {
	Physics PhysicsConfig `json:"physics" yaml:"physics" toml:"physics"`
	Timing  TimingConfig  `json:"timing" yaml:"timing" toml:"timing"`
	Stream  StreamConfig  `json:"stream" yaml:"stream" toml:"stream"`
	Scene   SceneConfig   `json:"scene" yaml:"scene" toml:"scene"`
}

// PhysicsConfig mirrors physics.Settings in a file-friendly form
type PhysicsConfig struct {
	Gravity              physics.Vector2D `json:"gravity" yaml:"gravity" toml:"gravity"`
	Iterations           int              `json:"iterations" yaml:"iterations" toml:"iterations"`
	RelaxIterations      int              `json:"relaxIterations" yaml:"relaxIterations" toml:"relaxIterations"`
	ConstraintMode       string           `json:"constraintMode" yaml:"constraintMode" toml:"constraintMode"`
	BaumgarteFactor      float64          `json:"baumgarteFactor" yaml:"baumgarteFactor" toml:"baumgarteFactor"`
	ContactHertz         float64          `json:"contactHertz" yaml:"contactHertz" toml:"contactHertz"`
	ContactDampingRatio  float64          `json:"contactDampingRatio" yaml:"contactDampingRatio" toml:"contactDampingRatio"`
	JointHertz           float64          `json:"jointHertz" yaml:"jointHertz" toml:"jointHertz"`
	JointDampingRatio    float64          `json:"jointDampingRatio" yaml:"jointDampingRatio" toml:"jointDampingRatio"`
	LinearSlop           float64          `json:"linearSlop" yaml:"linearSlop" toml:"linearSlop"`
	RestitutionThreshold float64          `json:"restitutionThreshold" yaml:"restitutionThreshold" toml:"restitutionThreshold"`
	MaxContactPush       float64          `json:"maxContactPush" yaml:"maxContactPush" toml:"maxContactPush"`
	PositionIterations   int              `json:"positionIterations" yaml:"positionIterations" toml:"positionIterations"`
	PositionCorrection   float64          `json:"positionCorrection" yaml:"positionCorrection" toml:"positionCorrection"`
	MaxLinearCorrection  float64          `json:"maxLinearCorrection" yaml:"maxLinearCorrection" toml:"maxLinearCorrection"`
}

// TimingConfig controls the fixed-step loop
type TimingConfig struct {
	FixedTimestep float64 `json:"fixedTimestep" yaml:"fixedTimestep" toml:"fixedTimestep"`
	MaxSubsteps   int     `json:"maxSubsteps" yaml:"maxSubsteps" toml:"maxSubsteps"`
	FrameRate     int     `json:"frameRate" yaml:"frameRate" toml:"frameRate"`
}

// StreamConfig controls the snapshot broadcaster
type StreamConfig struct {
	Addr          string `json:"addr" yaml:"addr" toml:"addr"`
	BroadcastRate int    `json:"broadcastRate" yaml:"broadcastRate" toml:"broadcastRate"`
}

// SceneConfig describes the bodies and joints of a world
type SceneConfig struct {
	Name   string        `json:"name" yaml:"name" toml:"name"`
	Bodies []BodyConfig  `json:"bodies" yaml:"bodies" toml:"bodies"`
	Joints []JointConfig `json:"joints,omitempty" yaml:"joints,omitempty" toml:"joints,omitempty"`
}

// Shape kinds accepted in BodyConfig.Shape
const (
	ShapeBox     = "box"
	ShapeCircle  = "circle"
	ShapeCapsule = "capsule"
	ShapePolygon = "polygon"
)

// BodyConfig describes one body. Which size fields apply depends on Shape:
// box uses Width/Height, circle uses Radius, capsule uses Length/Radius and polygon
// uses Vertices (counter-clockwise, relative to Position).
type BodyConfig struct {
	Name            string             `json:"name" yaml:"name" toml:"name"`
	Shape           string             `json:"shape" yaml:"shape" toml:"shape"`
	Position        physics.Vector2D   `json:"position" yaml:"position" toml:"position"`
	Rotation        float64            `json:"rotation,omitempty" yaml:"rotation,omitempty" toml:"rotation,omitempty"`
	Velocity        physics.Vector2D   `json:"velocity,omitempty" yaml:"velocity,omitempty" toml:"velocity,omitempty"`
	AngularVelocity float64            `json:"angularVelocity,omitempty" yaml:"angularVelocity,omitempty" toml:"angularVelocity,omitempty"`
	Width           float64            `json:"width,omitempty" yaml:"width,omitempty" toml:"width,omitempty"`
	Height          float64            `json:"height,omitempty" yaml:"height,omitempty" toml:"height,omitempty"`
	Radius          float64            `json:"radius,omitempty" yaml:"radius,omitempty" toml:"radius,omitempty"`
	Length          float64            `json:"length,omitempty" yaml:"length,omitempty" toml:"length,omitempty"`
	Vertices        []physics.Vector2D `json:"vertices,omitempty" yaml:"vertices,omitempty" toml:"vertices,omitempty"`
	Density         float64            `json:"density" yaml:"density" toml:"density"`
	Static          bool               `json:"static,omitempty" yaml:"static,omitempty" toml:"static,omitempty"`
	Friction        float64            `json:"friction" yaml:"friction" toml:"friction"`
	Restitution     float64            `json:"restitution,omitempty" yaml:"restitution,omitempty" toml:"restitution,omitempty"`
	LinearDamping   float64            `json:"linearDamping,omitempty" yaml:"linearDamping,omitempty" toml:"linearDamping,omitempty"`
	AngularDamping  float64            `json:"angularDamping,omitempty" yaml:"angularDamping,omitempty" toml:"angularDamping,omitempty"`
	// GravityScale defaults to 1 when omitted
	GravityScale *float64 `json:"gravityScale,omitempty" yaml:"gravityScale,omitempty" toml:"gravityScale,omitempty"`
	// CollisionMask 0 means physics.DefaultCollisionMask
	CollisionMask uint32 `json:"collisionMask,omitempty" yaml:"collisionMask,omitempty" toml:"collisionMask,omitempty"`
	IgnoreMask    uint32 `json:"ignoreMask,omitempty" yaml:"ignoreMask,omitempty" toml:"ignoreMask,omitempty"`
}

// JointConfig describes a revolute joint between two named bodies
type JointConfig struct {
	Name   string           `json:"name" yaml:"name" toml:"name"`
	BodyA  string           `json:"bodyA" yaml:"bodyA" toml:"bodyA"`
	BodyB  string           `json:"bodyB" yaml:"bodyB" toml:"bodyB"`
	Anchor physics.Vector2D `json:"anchor" yaml:"anchor" toml:"anchor"`
	Limits *LimitConfig     `json:"limits,omitempty" yaml:"limits,omitempty" toml:"limits,omitempty"`
	Motor  *MotorConfig     `json:"motor,omitempty" yaml:"motor,omitempty" toml:"motor,omitempty"`
}

// LimitConfig bounds the relative angle of a joint in radians
type LimitConfig struct {
	Lower float64 `json:"lower" yaml:"lower" toml:"lower"`
	Upper float64 `json:"upper" yaml:"upper" toml:"upper"`
}

// Motor modes accepted in MotorConfig.Mode
const (
	MotorModeSpeed = "speed"
	MotorModeServo = "servo"
)

// MotorConfig drives a joint at a constant speed or toward a target angle
type MotorConfig struct {
	Mode         string  `json:"mode" yaml:"mode" toml:"mode"`
	Speed        float64 `json:"speed,omitempty" yaml:"speed,omitempty" toml:"speed,omitempty"`
	TargetAngle  float64 `json:"targetAngle,omitempty" yaml:"targetAngle,omitempty" toml:"targetAngle,omitempty"`
	MaxForce     float64 `json:"maxForce" yaml:"maxForce" toml:"maxForce"`
	Hertz        float64 `json:"hertz,omitempty" yaml:"hertz,omitempty" toml:"hertz,omitempty"`
	DampingRatio float64 `json:"dampingRatio,omitempty" yaml:"dampingRatio,omitempty" toml:"dampingRatio,omitempty"`
}

// Format is a configuration file encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnknownFormat is returned for file extensions without a decoder
var ErrUnknownFormat = errors.New("unknown config format")

// FormatFromPath picks the encoding from the file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Unmarshal decodes data in the given format into a config
func Unmarshal(data []byte, format Format) (*SimConfig, error) {
	var config SimConfig
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &config)
	case FormatYAML:
		err = yaml.Unmarshal(data, &config)
	case FormatTOML:
		err = toml.Unmarshal(data, &config)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s config: %w", format, err)
	}
	return &config, nil
}

// Marshal encodes a config in the given format
func Marshal(config *SimConfig, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(config, "", "  ")
	case FormatYAML:
		return yaml.Marshal(config)
	case FormatTOML:
		return toml.Marshal(config)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// LoadConfig loads a configuration file, choosing the decoder from its extension
func LoadConfig(path string) (*SimConfig, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	return Unmarshal(data, format)
}

// SaveConfig writes a configuration file, choosing the encoder from its extension
func SaveConfig(config *SimConfig, path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	data, err := Marshal(config, format)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// WorldSettings converts the physics section into solver settings
func (p PhysicsConfig) WorldSettings() (physics.Settings, error) {
	mode, err := physics.ParseConstraintMode(p.ConstraintMode)
	if err != nil {
		return physics.Settings{}, err
	}
	return physics.Settings{
		Gravity:              p.Gravity,
		Iterations:           p.Iterations,
		RelaxIterations:      p.RelaxIterations,
		Mode:                 mode,
		BaumgarteFactor:      p.BaumgarteFactor,
		ContactHertz:         p.ContactHertz,
		ContactDampingRatio:  p.ContactDampingRatio,
		JointHertz:           p.JointHertz,
		JointDampingRatio:    p.JointDampingRatio,
		LinearSlop:           p.LinearSlop,
		RestitutionThreshold: p.RestitutionThreshold,
		MaxContactPush:       p.MaxContactPush,
		PositionIterations:   p.PositionIterations,
		PositionCorrection:   p.PositionCorrection,
		MaxLinearCorrection:  p.MaxLinearCorrection,
	}, nil
}

// PhysicsFromSettings is the inverse of PhysicsConfig.WorldSettings
func PhysicsFromSettings(s physics.Settings) PhysicsConfig {
	return PhysicsConfig{
		Gravity:              s.Gravity,
		Iterations:           s.Iterations,
		RelaxIterations:      s.RelaxIterations,
		ConstraintMode:       s.Mode.String(),
		BaumgarteFactor:      s.BaumgarteFactor,
		ContactHertz:         s.ContactHertz,
		ContactDampingRatio:  s.ContactDampingRatio,
		JointHertz:           s.JointHertz,
		JointDampingRatio:    s.JointDampingRatio,
		LinearSlop:           s.LinearSlop,
		RestitutionThreshold: s.RestitutionThreshold,
		MaxContactPush:       s.MaxContactPush,
		PositionIterations:   s.PositionIterations,
		PositionCorrection:   s.PositionCorrection,
		MaxLinearCorrection:  s.MaxLinearCorrection,
	}
}

// DefaultConfig returns the default solver settings, a 60 Hz loop and the demo scene
func DefaultConfig() *SimConfig {
	return &SimConfig{
		Physics: PhysicsFromSettings(physics.DefaultSettings()),
		Timing: TimingConfig{
			FixedTimestep: 1.0 / 60,
			MaxSubsteps:   5,
			FrameRate:     60,
		},
		Stream: StreamConfig{
			Addr:          ":8080",
			BroadcastRate: 30,
		},
		Scene: GetSceneTemplate("demo").Scene,
	}
}
