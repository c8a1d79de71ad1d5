package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imagewatch/internal/daemon"
)

func newRecheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recheck",
		Short: "Re-verify stored matches against their live URLs",
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
			processed := d.RecheckNow(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Rechecked %d matches\n", processed)
			return nil
		},
	}
}
