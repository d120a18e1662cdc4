package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/opd-ai/rigid2d/pkg/physics"
)

// Environment variables read by ApplyEnvironmentOverrides
const (
	EnvGravityX       = "RIGID2D_GRAVITY_X"
	EnvGravityY       = "RIGID2D_GRAVITY_Y"
	EnvIterations     = "RIGID2D_ITERATIONS"
	EnvConstraintMode = "RIGID2D_CONSTRAINT_MODE"
	EnvFixedTimestep  = "RIGID2D_FIXED_TIMESTEP"
	EnvMaxSubsteps    = "RIGID2D_MAX_SUBSTEPS"
	EnvFrameRate      = "RIGID2D_FRAME_RATE"
	EnvStreamAddr     = "RIGID2D_STREAM_ADDR"
)

// LoadConfigFromEnv returns the default configuration with environment overrides applied
func LoadConfigFromEnv() (*SimConfig, error) {
	cfg := DefaultConfig()
	if err := ApplyEnvironmentOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvironmentOverrides replaces config values with any RIGID2D_* variables that are
// set. Every malformed variable is reported; valid ones are still applied.
func ApplyEnvironmentOverrides(cfg *SimConfig) error {
	var errs []error

	parseFloat := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
				return
			}
			*dst = f
		}
	}
	parseInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
				return
			}
			*dst = n
		}
	}

	parseFloat(EnvGravityX, &cfg.Physics.Gravity.X)
	parseFloat(EnvGravityY, &cfg.Physics.Gravity.Y)
	parseInt(EnvIterations, &cfg.Physics.Iterations)
	parseFloat(EnvFixedTimestep, &cfg.Timing.FixedTimestep)
	parseInt(EnvMaxSubsteps, &cfg.Timing.MaxSubsteps)
	parseInt(EnvFrameRate, &cfg.Timing.FrameRate)

	if v, ok := os.LookupEnv(EnvConstraintMode); ok && v != "" {
		mode, err := physics.ParseConstraintMode(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", EnvConstraintMode, err))
		} else {
			cfg.Physics.ConstraintMode = mode.String()
		}
	}

	if v, ok := os.LookupEnv(EnvStreamAddr); ok && v != "" {
		cfg.Stream.Addr = v
	}

	return errors.Join(errs...)
}
