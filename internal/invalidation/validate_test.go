package invalidation

import (
	"testing"

	"promptliano-client/internal/domain"
	"promptliano-client/internal/errors"
	"promptliano-client/internal/querycache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestValidateConfig_DefaultsAreClean(t *testing.T) {
	err := ValidateConfig(domain.DefaultRegistry(), DefaultTable(), DefaultRules())
	assert.NoError(t, err)
}

func TestValidateConfig_DanglingReferences(t *testing.T) {
	registry := domain.NewRegistry(domain.EntityTickets)
	table := NewTable(
		Relationship{Entity: domain.EntityTickets, Related: []domain.EntityType{"widgets"}, Strategy: StrategySmart},
		Relationship{Entity: "gadgets", Related: []domain.EntityType{domain.EntityTickets}, Strategy: StrategyImmediate},
	)
	rules := []Rule{
		{ID: "tickets.update", Entity: domain.EntityTickets, Operation: domain.OpUpdate,
			Targets: []Target{{Entity: "widgets", Scope: querycache.ScopeList, Strategy: TargetInvalidate}}},
		{ID: "bad.op", Entity: domain.EntityTickets, Operation: "upsert"},
	}

	err := ValidateConfig(registry, table, rules)

	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
	assert.Contains(t, err.Error(), `references unregistered entity "widgets"`)
	assert.Contains(t, err.Error(), `declared for unregistered entity "gadgets"`)
	assert.Contains(t, err.Error(), `targets unregistered entity "widgets"`)
	assert.Contains(t, err.Error(), `invalid operation "upsert"`)
}

func TestValidateOrWarn_StrictFails(t *testing.T) {
	registry := domain.NewRegistry(domain.EntityTickets)
	rules := []Rule{{ID: "r", Entity: "widgets", Operation: domain.OpUpdate}}

	err := ValidateOrWarn(registry, NewTable(), rules, true, zap.NewNop())

	assert.Error(t, err)
}

func TestValidateOrWarn_LenientLogsAndContinues(t *testing.T) {
	registry := domain.NewRegistry(domain.EntityTickets)
	rules := []Rule{{ID: "r", Entity: "widgets", Operation: domain.OpUpdate}}
	core, logs := observer.New(zap.WarnLevel)

	err := ValidateOrWarn(registry, NewTable(), rules, false, zap.New(core))

	assert.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "dangling references")
}
