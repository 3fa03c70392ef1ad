// Package di assembles the application object graph. Providers are plain
// constructors; the container owns lifecycle and shutdown ordering.
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
	"go.uber.org/zap/zapcore"
)

// provideLogger builds the zap logger per the logging config.
func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	var zapCfg zap.Config
	if cfg.Logging.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// provideCollector builds the metrics collector, or nil when disabled.
func provideCollector(cfg *config.Config) *observability.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return observability.NewCollector(cfg.Metrics.Namespace)
}

func provideTracing(cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, error) {
	return observability.InitTracing(context.Background(), observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "promptliano-client",
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	}, logger)
}

func provideRegistry() *domain.Registry {
	return domain.DefaultRegistry()
}

func provideStore(cfg *config.Config, logger *zap.Logger, collector *observability.Collector) *querycache.Store {
	opts := []querycache.Option{
		querycache.WithLogger(logger.Named("querycache")),
		querycache.WithDefaultStaleTime(cfg.Cache.DefaultStaleTime.Std()),
	}
	if collector != nil {
		opts = append(opts, querycache.WithMetrics(collector))
	}
	return querycache.NewStore(opts...)
}

// provideEngine builds the invalidation engine over the default relationship
// and rule tables, validating them per the configured strictness.
func provideEngine(cfg *config.Config, store *querycache.Store, registry *domain.Registry, logger *zap.Logger, collector *observability.Collector) (*invalidation.Engine, error) {
	table := invalidation.DefaultTable()
	rules := invalidation.DefaultRules()

	if err := invalidation.ValidateOrWarn(registry, table, rules, cfg.Invalidation.StrictValidation, logger); err != nil {
		return nil, err
	}

	opts := []invalidation.EngineOption{
		invalidation.WithRelationships(table),
		invalidation.WithRules(rules),
		invalidation.WithEngineLogger(logger.Named("invalidation")),
		invalidation.WithHistorySize(cfg.Invalidation.HistorySize),
	}
	if collector != nil {
		opts = append(opts, invalidation.WithEngineMetrics(collector))
	}
	return invalidation.NewEngine(store, registry, opts...), nil
}

func provideClient(cfg *config.Config, logger *zap.Logger, collector *observability.Collector) *client.Client {
	opts := []client.Option{
		client.WithLogger(logger.Named("client")),
		client.WithAPIKey(cfg.Client.APIKey),
	}
	if collector != nil {
		opts = append(opts, client.WithMetrics(collector))
	}
	if cfg.Client.BreakerEnabled {
		opts = append(opts, client.WithBreaker(client.DefaultBreakerConfig("promptliano-api")))
	}
	return client.New(cfg.Client.BaseURL, opts...)
}

func provideNotifier(logger *zap.Logger) hooks.Notifier {
	return hooks.NewZapNotifier(logger.Named("notifications"))
}

// HookSet holds the per-entity hook surfaces the application embeds.
type HookSet struct {
	Projects *hooks.Entity[domain.Project]
	Tickets  *hooks.Entity[domain.Ticket]
	Tasks    *hooks.Entity[domain.Task]
	Prompts  *hooks.Entity[domain.Prompt]
	Queues   *hooks.Entity[domain.Queue]
	Chats    *hooks.Entity[domain.Chat]
	Messages *hooks.Entity[domain.ChatMessage]
	Agents   *hooks.Entity[domain.Agent]
	Files    *hooks.Entity[domain.ProjectFile]
}

func provideHookSet(cfg *config.Config, c *client.Client, store *querycache.Store, engine *invalidation.Engine, notifier hooks.Notifier, logger *zap.Logger) *HookSet {
	deps := hooks.Deps{
		Store:    store,
		Engine:   engine,
		Notifier: notifier,
		Logger:   logger.Named("hooks"),
	}
	staleTime := cfg.Cache.DefaultStaleTime.Std()

	return &HookSet{
		Projects: hooks.NewEntity(deps, hooks.Config[domain.Project]{
			Entity: domain.EntityProjects, Resource: c.Projects(), StaleTime: staleTime,
			IDOf:  func(p domain.Project) domain.ID { return p.ID },
			Merge: mergeProject,
		}),
		Tickets: hooks.NewEntity(deps, hooks.Config[domain.Ticket]{
			Entity: domain.EntityTickets, Resource: c.Tickets(), StaleTime: staleTime,
			IDOf:  func(t domain.Ticket) domain.ID { return t.ID },
			Merge: mergeTicket,
		}),
		Tasks: hooks.NewEntity(deps, hooks.Config[domain.Task]{
			Entity: domain.EntityTasks, Resource: c.Tasks(), StaleTime: staleTime,
			IDOf:  func(t domain.Task) domain.ID { return t.ID },
			Merge: mergeTask,
		}),
		Prompts: hooks.NewEntity(deps, hooks.Config[domain.Prompt]{
			Entity: domain.EntityPrompts, Resource: c.Prompts(), StaleTime: staleTime,
			IDOf:  func(p domain.Prompt) domain.ID { return p.ID },
			Merge: mergePrompt,
		}),
		Queues: hooks.NewEntity(deps, hooks.Config[domain.Queue]{
			Entity: domain.EntityQueues, Resource: c.Queues(), StaleTime: staleTime,
			IDOf: func(q domain.Queue) domain.ID { return q.ID },
		}),
		Chats: hooks.NewEntity(deps, hooks.Config[domain.Chat]{
			Entity: domain.EntityChats, Resource: c.Chats(), StaleTime: staleTime,
			IDOf:  func(ch domain.Chat) domain.ID { return ch.ID },
			Merge: mergeChat,
		}),
		Messages: hooks.NewEntity(deps, hooks.Config[domain.ChatMessage]{
			Entity: domain.EntityMessages, Resource: c.Messages(), StaleTime: staleTime,
			IDOf: func(m domain.ChatMessage) domain.ID { return m.ID },
		}),
		Agents: hooks.NewEntity(deps, hooks.Config[domain.Agent]{
			Entity: domain.EntityAgents, Resource: c.Agents(), StaleTime: staleTime,
			IDOf: func(a domain.Agent) domain.ID { return a.ID },
		}),
		Files: hooks.NewEntity(deps, hooks.Config[domain.ProjectFile]{
			Entity: domain.EntityFiles, Resource: c.Files(), StaleTime: staleTime,
			IDOf: func(f domain.ProjectFile) domain.ID { return f.ID },
		}),
	}
}

// Merge functions fold a non-zero patch field into the cached copy. They
// mirror the partial-update request shapes.

func mergeProject(current, patch domain.Project) domain.Project {
	if patch.Name != "" {
		current.Name = patch.Name
	}
	if patch.Description != "" {
		current.Description = patch.Description
	}
	if patch.Path != "" {
		current.Path = patch.Path
	}
	return current
}

func mergeTicket(current, patch domain.Ticket) domain.Ticket {
	if patch.Title != "" {
		current.Title = patch.Title
	}
	if patch.Overview != "" {
		current.Overview = patch.Overview
	}
	if patch.Status != "" {
		current.Status = patch.Status
	}
	if patch.Priority != "" {
		current.Priority = patch.Priority
	}
	if !patch.QueueID.IsZero() {
		current.QueueID = patch.QueueID
	}
	return current
}

func mergeTask(current, patch domain.Task) domain.Task {
	if patch.Content != "" {
		current.Content = patch.Content
	}
	current.Done = patch.Done || current.Done
	if patch.OrderIndex != 0 {
		current.OrderIndex = patch.OrderIndex
	}
	return current
}

func mergePrompt(current, patch domain.Prompt) domain.Prompt {
	if patch.Name != "" {
		current.Name = patch.Name
	}
	if patch.Content != "" {
		current.Content = patch.Content
	}
	return current
}

func mergeChat(current, patch domain.Chat) domain.Chat {
	if patch.Title != "" {
		current.Title = patch.Title
	}
	return current
}
