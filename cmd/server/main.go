// Command server runs the matcher as an HTTP-triggered function.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/sheikh-saqib/payments-reconciler/internal/app"
	"github.com/sheikh-saqib/payments-reconciler/internal/config"
	"github.com/sheikh-saqib/payments-reconciler/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(viper.New(), ".env")
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		app.ReportStartupFailure(ctx, cfg, logger, err)
		return err
	}
	defer a.Close()

	return server.Serve(ctx, cfg.HTTPAddr, server.NewRouter(a.Reconciler, a.Runs, logger), logger)
}
