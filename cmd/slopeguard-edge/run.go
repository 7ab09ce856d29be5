package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ghalamif/SlopeGuard/pkg/slopeguard"
)

func newRunCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the edge runtime using the provided config",
		Example: `  slopeguard-edge run --config ./data/config.yaml
  SLOPEGUARD_SOURCE_KIND=fixture SLOPEGUARD_FIXTURE_PATH=./data/fixtures.yaml slopeguard-edge run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flow, err := slopeguard.Conf(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := flow.Run(ctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "Path to edge configuration file (empty for defaults)")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a config file without starting the runtime",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := slopeguard.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config %s looks good\n", cfgPath)
			fmt.Fprintf(out, "  site:    %s\n", cfg.Site.Name)
			fmt.Fprintf(out, "  source:  %s every %s\n", cfg.Source.Kind, cfg.Source.Interval)
			fmt.Fprintf(out, "  alerts:  %d rules, cooldown %s\n", len(cfg.Alerts.Rules), cfg.Alerts.Cooldown)
			fmt.Fprintf(out, "  api:     %s\n", cfg.HTTP.Addr)
			fmt.Fprintf(out, "  sinks:   timescale=%t influx=%t\n", cfg.Timescale.Enabled(), cfg.Influx.Enabled())
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "Path to configuration file to validate")
	return cmd
}
