// Command simulator drives the caching layer through a scripted workload
// against an in-process reference server and prints the resulting cache and
// invalidation statistics. Useful for eyeballing rule and relationship
// behavior after editing the default tables.
package main

import (
	"context"
	"net"
	"net/http"
	"os"

	"promptliano-client/internal/config"
	"promptliano-client/internal/di"
	"promptliano-client/internal/domain"
	"promptliano-client/internal/invalidation"
	"promptliano-client/internal/promptserver"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_DIR"))
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	// The workload runs against a throwaway in-process backend on an
	// ephemeral port.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		zap.NewExample().Fatal("failed to bind backend listener", zap.Error(err))
	}
	defer listener.Close()
	go func() { _ = http.Serve(listener, promptserver.New()) }()
	cfg.Client.BaseURL = "http://" + listener.Addr().String()
	cfg.Client.BreakerEnabled = false

	container, err := di.InitializeContainer(cfg)
	if err != nil {
		zap.NewExample().Fatal("failed to build container", zap.Error(err))
	}
	logger := container.Logger
	defer container.Shutdown(context.Background())

	if err := run(container, logger); err != nil {
		logger.Fatal("simulation failed", zap.Error(err))
	}

	stats := container.Engine.Stats()
	logger.Info("simulation complete",
		zap.Int64("invalidation_runs", stats.Total),
		zap.Float64("avg_targets", stats.AverageTargets),
		zap.Int("history_events", len(container.Engine.EventHistory())),
		zap.Any("cache", container.Store.Stats()),
	)
}

func run(c *di.Container, logger *zap.Logger) error {
	ctx := context.Background()

	project, err := c.Client.Projects().Create(ctx, domain.CreateProjectRequest{Name: "demo"})
	if err != nil {
		return err
	}
	logger.Info("seeded project", zap.String("id", project.ID.String()))

	// Warm the ticket list, then walk a ticket through its lifecycle.
	if _, err := c.Hooks.Tickets.List(ctx, nil); err != nil {
		return err
	}

	placeholder := domain.Ticket{
		ID: domain.NewPendingID(), ProjectID: project.ID,
		Title: "optimistic ticket", Status: domain.TicketStatusOpen,
	}
	ticket, err := c.Hooks.Tickets.Create(ctx,
		domain.CreateTicketRequest{ProjectID: project.ID, Title: "optimistic ticket"},
		placeholder,
	)
	if err != nil {
		return err
	}
	logger.Info("ticket confirmed", zap.String("id", ticket.ID.String()))

	status := domain.TicketStatusDone
	if _, err := c.Hooks.Tickets.Update(ctx, ticket.ID,
		domain.UpdateTicketRequest{Status: &status},
		domain.Ticket{Status: status},
		&invalidation.ChangePayload{Status: status, StatusChanged: true, Fields: []string{"status"}},
	); err != nil {
		return err
	}

	// A deep cascade for comparison against the rule-driven runs above.
	touched := c.Engine.SmartInvalidate(domain.EntityProjects, project.ID, invalidation.SmartOptions{
		IncludeRelated: true,
		MaxDepth:       2,
	})
	logger.Info("smart invalidation", zap.Int("entries_touched", touched))

	if err := c.Hooks.Tickets.Delete(ctx, ticket.ID); err != nil {
		return err
	}
	return nil
}
