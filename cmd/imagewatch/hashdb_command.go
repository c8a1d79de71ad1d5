package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imagewatch/internal/fingerprint"
)

func newHashDBCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hashdb",
		Short: "Manage the reference image hash database",
	}
	cmd.AddCommand(newHashDBBuildCommand(ctx))
	cmd.AddCommand(newHashDBListCommand(ctx))
	return cmd
}

func newHashDBBuildCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "build <directory>",
		Short: "Hash every reference image in a directory and write the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			db, err := fingerprint.BuildFromDir(args[0], logger)
			if err != nil {
				return err
			}
			if len(db) == 0 {
				return fmt.Errorf("no decodable images found in %s", args[0])
			}
			if err := fingerprint.SaveDB(cfg.Paths.HashDB, db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Hashed %d reference images into %s\n", len(db), cfg.Paths.HashDB)
			return nil
		},
	}
}

func newHashDBListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the reference IDs in the hash database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			db, err := fingerprint.LoadDB(cfg.Paths.HashDB)
			if err != nil {
				return err
			}
			if len(db) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Hash database is empty")
				return nil
			}
			for _, id := range db.ReferenceIDs() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
