package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/kinetic/internal/core/systems/physics"
)

const sceneYAML = `
world:
  gravity: {x: 0, y: 250}
  bounds:
    min: {x: 0, y: 0}
    max: {x: 350, y: 650}
bodies:
  - position: {x: 150, y: 80}
    mass: 1
    shape: {type: circle, radius: 20}
    restitution: 0.8
    linear_damping: 0.03
  - position: {x: 40, y: 40}
    velocity: {x: 10, y: 0}
    shape:
      type: rect
      size: {x: 30, y: 10}
runner:
  fps: 120
  max_step: 50ms
server:
  port: 9090
log:
  level: debug
  encoding: console
`

func TestLoad_Scene(t *testing.T) {
	c, err := Load(strings.NewReader(sceneYAML))
	require.NoError(t, err)

	assert.Equal(t, physics.Vec2(0, 250), c.World.Gravity)
	require.NotNil(t, c.World.Bounds)
	assert.Equal(t, physics.Vec2(350, 650), c.World.Bounds.Max)

	require.Len(t, c.Bodies, 2)
	assert.Equal(t, 0.8, *c.Bodies[0].Restitution)
	assert.Nil(t, c.Bodies[1].Mass)

	assert.Equal(t, 120, c.Runner.FPS)
	assert.Equal(t, 50*time.Millisecond, c.Runner.MaxStep)
	assert.Equal(t, DefaultCommandBuffer, c.Runner.CommandBuffer)
	assert.Equal(t, "127.0.0.1:9090", c.Server.Addr())
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoad_EmptyIsDefault(t *testing.T) {
	c, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := Load(strings.NewReader("world:\n  gravitee: {x: 1}\n"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"inverted bounds", "world:\n  bounds: {min: {x: 10, y: 0}, max: {x: 0, y: 10}}\n"},
		{"negative radius", "bodies:\n  - shape: {type: circle, radius: -1}\n"},
		{"zero rect", "bodies:\n  - shape: {type: rect, size: {x: 0, y: 1}}\n"},
		{"unknown shape", "bodies:\n  - shape: {type: hexagon}\n"},
		{"restitution", "bodies:\n  - restitution: 1.5\n"},
		{"damping", "bodies:\n  - linear_damping: -0.1\n"},
		{"mass", "bodies:\n  - mass: 0\n"},
		{"fps", "runner:\n  fps: 0\n"},
		{"log level", "log:\n  level: loud\n"},
		{"encoding", "log:\n  encoding: xml\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tc.yaml))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestBodyConfig_ValidateCollectsAll(t *testing.T) {
	err := BodyConfig{
		Mass:        ptr(-1.0),
		Restitution: ptr(2.0),
	}.Validate()
	require.ErrorIs(t, err, ErrInvalidBody)
	assert.Contains(t, err.Error(), "mass")
	assert.Contains(t, err.Error(), "restitution")
}

func TestBodyConfig_BuildDefaults(t *testing.T) {
	b := BodyConfig{Position: physics.Vec2(1, 2)}.Build()
	assert.Equal(t, physics.NewBody(physics.WithPosition(physics.Vec2(1, 2))), b)

	b = BodyConfig{Shape: &ShapeConfig{Type: "rect", Size: physics.Vec2(3, 4)}}.Build()
	assert.Equal(t, physics.Rect(physics.Vec2(3, 4)), b.Shape)
}

func TestBuildWorld(t *testing.T) {
	w := Demo().BuildWorld()
	require.Equal(t, 1, w.Len())

	bounds, ok := w.Bounds()
	require.True(t, ok)
	assert.Equal(t, 350.0, bounds.Width())

	b, _ := w.Body(0)
	assert.Equal(t, physics.Circle(20), b.Shape)
	assert.Equal(t, 0.8, b.Restitution)
	assert.Equal(t, 0.03, b.LinearDamping)
	assert.Equal(t, physics.Vec2(0, 250), w.Gravity)
}

func TestMarshalRoundTripDemo(t *testing.T) {
	data, err := Demo().Marshal()
	require.NoError(t, err)

	c, err := Load(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, Demo(), c)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sceneYAML), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, c.Bodies, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
