// cmd/receptionist/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"restaurant-receptionist/internal/api"
	"restaurant-receptionist/internal/app"
	"restaurant-receptionist/internal/common/config"
	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/common/observability"
	"restaurant-receptionist/internal/receptionist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zapLog := logger.New("info", "console")
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer func() { _ = zapLog.Sync() }()
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := app.Connect(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("dependency setup failed", zap.Error(err))
	}
	defer deps.Close(zapLog)

	application, err := app.Build(ctx, cfg, deps, log)
	if err != nil {
		zapLog.Fatal("component setup failed", zap.Error(err))
	}

	go application.Sessions.Run(ctx, config.GetDuration(cfg.Session.SweepInterval))
	go application.RefreshFacts(ctx, config.GetDuration(cfg.Business.SnapshotTTL), log)
	stopWorkers := application.StartWorkers(cfg, deps, zapLog)

	engine := receptionist.New(application.Sessions, application.Cascade, application.Responder, log,
		receptionist.WithTurnTimeout(config.GetDuration(cfg.Server.TurnTimeout)),
		receptionist.WithObservability(obs),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(engine, log, deps.ReadinessChecks()...).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zapLog.Info("receptionist API listening",
			zap.Int("port", cfg.Server.Port),
			zap.Strings("cascade", application.Cascade.Stages()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("API server failed", zap.Error(err))
			cancel()
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		zapLog.Info("Shutdown signal received, draining turns...")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down API server", zap.Error(err))
	}

	cancel()
	stopWorkers()
	application.Sessions.Shutdown()
	if application.Pipeline != nil {
		application.Pipeline.Wait()
	}
	zapLog.Info("receptionist stopped")
}
