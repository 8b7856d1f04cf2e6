//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/kinetic/internal/config"
	"github.com/zeusync/kinetic/internal/core/observability/log"
	"github.com/zeusync/kinetic/internal/server"
)

func InitializeApp(cfg config.Config) (*App, error) {
	wire.Build(CoreSet)
	return nil, nil
}

// InitializeServer attaches the HTTP surface to an app built by InitializeApp.
func InitializeServer(app *App) (*server.Server, error) {
	wire.Build(
		wire.FieldsOf(new(*App), "Config", "Logger", "Runner"),
		wire.Bind(new(log.Log), new(*log.Logger)),
		ServerSet,
	)
	return nil, nil
}
