// Command matcher runs the bank-transfer reconciliation job.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sheikh-saqib/payments-reconciler/internal/config"
)

var envFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "matcher",
		Short: "Reconcile Tripletex bank-transfer postings against Chargebee invoices",
		Long: `matcher reads the last day of Tripletex ledger postings, resolves each
incoming payment's KID to a Chargebee invoice and records the payment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(newRunCmd(), newServeCmd(), newConfigCmd())
	return root
}

func loadConfig() (config.Config, error) {
	return config.Load(viper.New(), envFile)
}
