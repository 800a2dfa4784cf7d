package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/zatekoja/referralintake/internal/application/services"
	"github.com/zatekoja/referralintake/pkg/config"
)

func seedCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the starter taxonomy when the store is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, cfg(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			seed, err := services.DefaultTaxonomySeed()
			if err != nil {
				return err
			}

			report, err := a.taxonomy.Seed(ctx, seed)
			if err != nil {
				return err
			}
			log.Info().
				Bool("skipped", report.Skipped).
				Int("specialties", report.Specialties).
				Int("procedures", report.Procedures).
				Int("rules", report.Rules).
				Msg("Seed finished")
			return nil
		},
	}
}
