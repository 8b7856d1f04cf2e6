package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/zeusync/kinetic/internal/core/systems/physics"
	"gopkg.in/yaml.v3"
)

// Config describes a scene and the host that drives it. It is read from YAML;
// JSON tags mirror the YAML ones so bodies can also arrive over HTTP.
type Config struct {
	World  WorldConfig  `json:"world" yaml:"world"`
	Bodies []BodyConfig `json:"bodies,omitempty" yaml:"bodies,omitempty"`
	Runner RunnerConfig `json:"runner" yaml:"runner"`
	Server ServerConfig `json:"server" yaml:"server"`
	Log    LogConfig    `json:"log" yaml:"log"`
}

type WorldConfig struct {
	Gravity physics.Vector2 `json:"gravity" yaml:"gravity"`
	Bounds  *physics.Bounds `json:"bounds,omitempty" yaml:"bounds,omitempty"`
}

// BodyConfig leaves optional fields nil so physics defaults apply.
type BodyConfig struct {
	Position      physics.Vector2 `json:"position" yaml:"position"`
	Velocity      physics.Vector2 `json:"velocity" yaml:"velocity"`
	Mass          *float64        `json:"mass,omitempty" yaml:"mass,omitempty"`
	Shape         *ShapeConfig    `json:"shape,omitempty" yaml:"shape,omitempty"`
	Restitution   *float64        `json:"restitution,omitempty" yaml:"restitution,omitempty"`
	LinearDamping *float64        `json:"linear_damping,omitempty" yaml:"linear_damping,omitempty"`
}

type ShapeConfig struct {
	Type   string          `json:"type" yaml:"type"`
	Radius float64         `json:"radius,omitempty" yaml:"radius,omitempty"`
	Size   physics.Vector2 `json:"size,omitempty" yaml:"size,omitempty"`
}

type RunnerConfig struct {
	FPS int `json:"fps" yaml:"fps"`
	// MaxStep caps the wall-clock delta handed to a single step.
	MaxStep       time.Duration `json:"max_step" yaml:"max_step"`
	CommandBuffer int           `json:"command_buffer" yaml:"command_buffer"`
}

type ServerConfig struct {
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	// Token, when set, is required by every endpoint that changes the world.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
	// RateLimit caps world-changing requests per client and RateWindow;
	// zero disables it.
	RateLimit  int           `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	RateWindow time.Duration `json:"rate_window,omitempty" yaml:"rate_window,omitempty"`
}

func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

type LogConfig struct {
	Level    string `json:"level" yaml:"level"`
	Encoding string `json:"encoding" yaml:"encoding"`
	// Output is a zap output path; empty means stderr.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
}

const (
	DefaultFPS           = 60
	DefaultMaxStep       = time.Second / 15
	DefaultCommandBuffer = 256
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 8080
	DefaultWriteTimeout  = 5 * time.Second
	DefaultRateWindow    = time.Second
)

// Default returns host defaults and an empty, unbounded world under
// physics.DefaultGravity.
func Default() Config {
	return Config{
		World: WorldConfig{Gravity: physics.DefaultGravity},
		Runner: RunnerConfig{
			FPS:           DefaultFPS,
			MaxStep:       DefaultMaxStep,
			CommandBuffer: DefaultCommandBuffer,
		},
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			WriteTimeout: DefaultWriteTimeout,
		},
		Log: LogConfig{Level: "info", Encoding: "json"},
	}
}

// Demo is a screen-space scene (y grows downwards) with one bouncing ball.
func Demo() Config {
	c := Default()
	c.World = WorldConfig{
		Gravity: physics.Vec2(0, 250),
		Bounds:  &physics.Bounds{Min: physics.Vec2(0, 0), Max: physics.Vec2(350, 650)},
	}
	c.Bodies = []BodyConfig{{
		Position:      physics.Vec2(150, 80),
		Mass:          ptr(1.0),
		Shape:         &ShapeConfig{Type: "circle", Radius: 20},
		Restitution:   ptr(0.8),
		LinearDamping: ptr(0.03),
	}}
	return c
}

// Load decodes YAML from r over Default and validates the result. Unknown
// keys are rejected. An empty document yields Default.
func Load(r io.Reader) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	c, err := Load(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// BuildWorld constructs a world holding every configured body in order.
func (c Config) BuildWorld(opts ...physics.WorldOption) *physics.World {
	if c.World.Bounds != nil {
		opts = append([]physics.WorldOption{physics.WithBounds(*c.World.Bounds)}, opts...)
	}
	w := physics.NewWorld(c.World.Gravity, opts...)
	for _, b := range c.Bodies {
		w.AddBody(b.Build())
	}
	return w
}

// Build converts the config to a body. Call Validate first; an unknown shape
// type falls back to the default circle.
func (b BodyConfig) Build() physics.Body {
	opts := []physics.BodyOption{
		physics.WithPosition(b.Position),
		physics.WithVelocity(b.Velocity),
	}
	if b.Mass != nil {
		opts = append(opts, physics.WithMass(*b.Mass))
	}
	if b.Shape != nil {
		if s, ok := b.Shape.shape(); ok {
			opts = append(opts, physics.WithShape(s))
		}
	}
	if b.Restitution != nil {
		opts = append(opts, physics.WithRestitution(*b.Restitution))
	}
	if b.LinearDamping != nil {
		opts = append(opts, physics.WithLinearDamping(*b.LinearDamping))
	}
	return physics.NewBody(opts...)
}

func (s ShapeConfig) shape() (physics.ColliderShape, bool) {
	switch strings.ToLower(s.Type) {
	case "circle":
		return physics.Circle(s.Radius), true
	case "rect", "rectangle", "box":
		return physics.Rect(s.Size), true
	default:
		return physics.ColliderShape{}, false
	}
}

func ptr[T any](v T) *T { return &v }
