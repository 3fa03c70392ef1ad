package di

import (
	"context"
	"testing"

	"promptliano-client/internal/config"
	"promptliano-client/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default(config.Development)
	cfg.Metrics.Enabled = false // avoid a registry per test
	return &cfg
}

func TestInitializeContainer_BuildsFullGraph(t *testing.T) {
	container, err := InitializeContainer(testConfig())
	require.NoError(t, err)
	defer container.Shutdown(context.Background())

	assert.NotNil(t, container.Store)
	assert.NotNil(t, container.Engine)
	assert.NotNil(t, container.Client)
	assert.NotNil(t, container.Hooks)
	assert.NotNil(t, container.Hooks.Tickets)
	assert.NotNil(t, container.Hooks.Files)
	assert.Equal(t, 9, container.Registry.Len())
}

func TestInitializeContainer_StrictValidationPassesOnDefaults(t *testing.T) {
	// The default relationship and rule tables reference only registered
	// entities, so strict startup validation succeeds.
	cfg := testConfig()
	cfg.Invalidation.StrictValidation = true

	container, err := InitializeContainer(cfg)
	require.NoError(t, err)
	defer container.Shutdown(context.Background())
}

func TestContainer_IsolatedInstances(t *testing.T) {
	a, err := InitializeContainer(testConfig())
	require.NoError(t, err)
	defer a.Shutdown(context.Background())
	b, err := InitializeContainer(testConfig())
	require.NoError(t, err)
	defer b.Shutdown(context.Background())

	a.Engine.InvalidateWithRelationships(domain.EntityTickets, domain.OpCreate, domain.ID{}, nil)

	assert.Equal(t, int64(1), a.Engine.Stats().Total)
	assert.Zero(t, b.Engine.Stats().Total, "containers share no state")
}

func TestProvideLogger_Formats(t *testing.T) {
	cfg := testConfig()
	cfg.Logging.Format = "console"
	logger, err := provideLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	cfg.Logging.Format = "json"
	cfg.Logging.Level = "warn"
	logger, err = provideLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
