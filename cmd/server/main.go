package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shellpipe/internal/app"
	"shellpipe/internal/config"
	"shellpipe/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer a.Close()

	srv := server.New(a.Runner, a.Ledger, a.Metrics, a.Logger.Logger, cfg.Server.MaxBody)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		a.Logger.Info("shellpipe server listening",
			zap.String("addr", httpServer.Addr),
			zap.String("ledger", a.Ledger.Path()),
			zap.Duration("run_timeout", cfg.Runner.Timeout))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	a.Logger.Info("shutting down")

	// Shutdown waits for in-flight pipelines until the deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
