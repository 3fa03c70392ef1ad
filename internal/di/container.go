package di

import (
	"context"

	"promptliano-client/internal/client"
	"promptliano-client/internal/config"
	"promptliano-client/internal/domain"
	"promptliano-client/internal/hooks"
	"promptliano-client/internal/invalidation"
	"promptliano-client/internal/observability"
	"promptliano-client/internal/querycache"

	"go.uber.org/zap"
)

// Container holds the assembled application graph. Construct one per
// process with InitializeContainer; isolated containers in tests are cheap.
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Collector *observability.Collector
	Tracing   *observability.TracerProvider
	Registry  *domain.Registry
	Store     *querycache.Store
	Engine    *invalidation.Engine
	Client    *client.Client
	Notifier  hooks.Notifier
	Hooks     *HookSet
}

// Shutdown flushes background work: pending cache refetches, buffered log
// entries and unexported trace spans.
func (c *Container) Shutdown(ctx context.Context) error {
	c.Store.Flush()
	_ = c.Logger.Sync()
	if c.Tracing != nil {
		return c.Tracing.Shutdown(ctx)
	}
	return nil
}
