package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/kinetic/internal/config"
	"github.com/zeusync/kinetic/internal/core/events/bus"
	"github.com/zeusync/kinetic/internal/core/observability/log"
	"github.com/zeusync/kinetic/internal/core/systems/physics"
	"github.com/zeusync/kinetic/internal/runner"
	"github.com/zeusync/kinetic/internal/server"
)

// App is the simulation core of the process. Surfaces (server, view,
// watcher) are attached by the caller according to the run mode.
type App struct {
	Config config.Config
	Logger *log.Logger
	Bus    bus.EventBus
	Runner *runner.Runner
}

var CoreSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	bus.New,
	ProvideWorld,
	ProvideRunner,
	wire.Struct(new(App), "*"),
)

var ServerSet = wire.NewSet(
	ProvideServer,
	wire.Bind(new(server.Simulation), new(*runner.Runner)),
)

func ProvideLogger(cfg config.Config) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := log.Options{Level: level, Encoding: cfg.Log.Encoding}
	if cfg.Log.Output != "" {
		opts.OutputPaths = []string{cfg.Log.Output}
	}
	return log.NewWithOptions(opts)
}

func ProvideWorld(cfg config.Config) *physics.World {
	return cfg.BuildWorld()
}

func ProvideRunner(w *physics.World, cfg config.Config, b bus.EventBus, l log.Log) (*runner.Runner, error) {
	return runner.New(w, cfg.Runner, b, l)
}

func ProvideServer(cfg config.Config, sim server.Simulation, l log.Log) (*server.Server, error) {
	return server.New(cfg.Server, sim, l)
}
