package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imagewatch/internal/daemon"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one monitoring scan now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			d, err := daemon.New(cfg, logger)
			if err != nil {
				return err
			}
			summary, err := d.TriggerScan(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Scan %s: %d candidates, %d fetched, %d matches, %d sites notified\n",
				summary.RunID, summary.Candidates, summary.Fetched, summary.Matches, summary.Notified)
			return nil
		},
	}
}
