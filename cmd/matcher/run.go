package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/sheikh-saqib/payments-reconciler/internal/app"
)

var errRunFailed = errors.New("failed to run tripletex matcher job")

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg.LogLevel)

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				app.ReportStartupFailure(ctx, cfg, logger, err)
				return err
			}
			defer a.Close()

			outcome, err := a.Reconciler.Execute(ctx)
			if err != nil {
				return errors.Join(errRunFailed, err)
			}
			cmd.Printf("Successfully completed tripletex matcher job: %d recorded, %d failed\n",
				len(outcome.Recorded), len(outcome.Failures))
			return nil
		},
	}
}
