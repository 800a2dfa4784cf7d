package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zatekoja/referralintake/internal/application/services"
	"github.com/zatekoja/referralintake/pkg/config"
)

// Process modes map to the three HTTP entry points
const (
	modeFull     = "full"
	modeClassify = "classify"
	modeRules    = "rules"
)

func processCmd(cfg func() *config.Config) *cobra.Command {
	var caseID, mode string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run the orchestrator for one case and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout := cfg().Server.RequestTimeout; timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			a, err := newApp(ctx, cfg(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			var op func(context.Context, string) (*services.IntakeReport, error)
			switch mode {
			case modeFull:
				op = a.intake.ProcessCase
			case modeClassify:
				op = a.intake.ClassifyCase
			case modeRules:
				op = a.intake.ProcessRules
			default:
				return fmt.Errorf("unknown mode %q (want %s, %s or %s)", mode, modeFull, modeClassify, modeRules)
			}

			report, err := op(ctx, caseID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringVar(&caseID, "case-id", "", "Case to process")
	cmd.Flags().StringVar(&mode, "mode", modeFull, "full, classify or rules")
	_ = cmd.MarkFlagRequired("case-id")
	return cmd
}
