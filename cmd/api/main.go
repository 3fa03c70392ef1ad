// Command api runs the in-memory Promptliano reference server together with
// the caching layer's diagnostics and metrics endpoints. It is the local
// development backend: the client, simulator and integration suites all point
// at it.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"promptliano-client/internal/config"
	"promptliano-client/internal/di"
	"promptliano-client/internal/diagnostics"
	"promptliano-client/internal/promptserver"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_DIR"))
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	container, err := di.InitializeContainer(cfg)
	if err != nil {
		zap.NewExample().Fatal("failed to build container", zap.Error(err))
	}
	logger := container.Logger

	api := promptserver.New(promptserver.WithLogger(logger.Named("promptserver")))
	diag := diagnostics.NewHandler(container.Store, container.Engine, logger.Named("diagnostics"))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/", api)
	r.Route("/diagnostics", diag.Routes)
	if container.Collector != nil {
		r.Handle("/metrics", container.Collector.Handler())
	}

	srv := &http.Server{Addr: cfg.Server.Address, Handler: r}

	go func() {
		logger.Info("server listening",
			zap.String("address", cfg.Server.Address),
			zap.String("environment", string(cfg.Environment)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Hot reload in development only.
	if cfg.IsDevelopment() {
		watcher, err := config.NewWatcher(os.Getenv("CONFIG_DIR"), cfg, logger.Named("config"))
		if err != nil {
			logger.Warn("config hot reload unavailable", zap.Error(err))
		} else {
			defer watcher.Close()
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("server shutdown incomplete", zap.Error(err))
	}
	if err := container.Shutdown(ctx); err != nil {
		logger.Warn("container shutdown incomplete", zap.Error(err))
	}
}
