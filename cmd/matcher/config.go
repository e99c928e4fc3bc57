package main

import (
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show which settings are present, without their values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			for _, p := range cfg.Presence() {
				mark := "✗"
				if p.Set {
					mark = "✓"
				}
				cmd.Printf("- %s: %s\n", p.Key, mark)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return nil
		},
	}
}
