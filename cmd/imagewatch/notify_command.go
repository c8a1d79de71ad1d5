package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imagewatch/internal/notify"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test message to the configured Discord webhook",
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

			if cfg.Notify.DiscordWebhook == "" {
				return fmt.Errorf("no Discord webhook configured; set notify.discord_webhook in the config file")
			}
			service := notify.NewService(cfg.Notify, logger)
			if err := service.TestNotification(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification delivered")
			return nil
		},
	}
}
