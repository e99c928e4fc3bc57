package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sheikh-saqib/payments-reconciler/internal/app"
	"github.com/sheikh-saqib/payments-reconciler/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger (ANY /), /health and /runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			logger := app.NewLogger(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				app.ReportStartupFailure(ctx, cfg, logger, err)
				return err
			}
			defer a.Close()

			return server.Serve(ctx, cfg.HTTPAddr, server.NewRouter(a.Reconciler, a.Runs, logger), logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to PORT or HTTP_ADDR)")
	return cmd
}
