package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/zeusync/kinetic/internal/core/observability/log"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidBody   = errors.New("invalid body")
)

// Validate checks the values the simulator core deliberately does not guard.
// All problems are reported together.
func (c Config) Validate() error {
	var errs []error

	if !finite(c.World.Gravity.X, c.World.Gravity.Y) {
		errs = append(errs, errors.New("world.gravity must be finite"))
	}
	if b := c.World.Bounds; b != nil {
		if !finite(b.Min.X, b.Min.Y, b.Max.X, b.Max.Y) {
			errs = append(errs, errors.New("world.bounds must be finite"))
		} else if b.Min.X >= b.Max.X || b.Min.Y >= b.Max.Y {
			errs = append(errs, fmt.Errorf("world.bounds min %v must be below max %v", b.Min, b.Max))
		}
	}
	for i, b := range c.Bodies {
		if err := b.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("bodies[%d]: %w", i, err))
		}
	}

	if c.Runner.FPS <= 0 {
		errs = append(errs, fmt.Errorf("runner.fps must be positive, got %d", c.Runner.FPS))
	}
	if c.Runner.MaxStep <= 0 {
		errs = append(errs, fmt.Errorf("runner.max_step must be positive, got %s", c.Runner.MaxStep))
	}
	if c.Runner.CommandBuffer < 0 {
		errs = append(errs, fmt.Errorf("runner.command_buffer must not be negative, got %d", c.Runner.CommandBuffer))
	}
	if c.Server.Port < 0 || c.Server.Port > math.MaxUint16 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must not be negative, got %d", c.Server.RateLimit))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Encoding {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.encoding must be json or console, got %q", c.Log.Encoding))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func (b BodyConfig) Validate() error {
	var errs []error

	if !finite(b.Position.X, b.Position.Y, b.Velocity.X, b.Velocity.Y) {
		errs = append(errs, errors.New("position and velocity must be finite"))
	}
	if b.Mass != nil && !(*b.Mass > 0) {
		errs = append(errs, fmt.Errorf("mass must be positive, got %g", *b.Mass))
	}
	if b.Restitution != nil && !(*b.Restitution >= 0 && *b.Restitution <= 1) {
		errs = append(errs, fmt.Errorf("restitution must be within [0, 1], got %g", *b.Restitution))
	}
	if b.LinearDamping != nil && !(*b.LinearDamping >= 0) {
		errs = append(errs, fmt.Errorf("linear_damping must not be negative, got %g", *b.LinearDamping))
	}
	if s := b.Shape; s != nil {
		switch strings.ToLower(s.Type) {
		case "circle":
			if !(s.Radius > 0) {
				errs = append(errs, fmt.Errorf("circle radius must be positive, got %g", s.Radius))
			}
		case "rect", "rectangle", "box":
			if !(s.Size.X > 0 && s.Size.Y > 0) {
				errs = append(errs, fmt.Errorf("rect size must be positive, got %v", s.Size))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown shape type %q", s.Type))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidBody, errors.Join(errs...))
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
