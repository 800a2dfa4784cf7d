package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	"github.com/zatekoja/referralintake/pkg/config"
)

func main() {
	var cfg *config.Config
	var shutdownTelemetry func(context.Context) error

	rootCmd := &cobra.Command{
		Use:           "referral-intake",
		Short:         "Referral classification and rule evaluation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

			if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
				shutdown, err := observability.Setup(cmd.Context(), cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
				if err != nil {
					log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
				} else {
					shutdownTelemetry = shutdown
					log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
				}
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if shutdownTelemetry == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(ctx); err != nil {
				log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
			}
		},
	}

	current := func() *config.Config { return cfg }
	rootCmd.AddCommand(serveCmd(current))
	rootCmd.AddCommand(migrateCmd(current))
	rootCmd.AddCommand(processCmd(current))
	rootCmd.AddCommand(seedCmd(current))

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
