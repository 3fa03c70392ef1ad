//go:build wireinject
// +build wireinject

package di

import (
	"promptliano-client/internal/config"

	"github.com/google/wire"
)

// InitializeContainer assembles the application graph for the given config.
func InitializeContainer(cfg *config.Config) (*Container, error) {
	wire.Build(
		provideLogger,
		provideCollector,
		provideTracing,
		provideRegistry,
		provideStore,
		provideEngine,
		provideClient,
		provideNotifier,
		provideHookSet,
		wire.Struct(new(Container), "*"),
	)
	return nil, nil
}
