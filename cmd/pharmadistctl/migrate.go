package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pharmadist/pharmadist-erp/internal/app"
	"github.com/pharmadist/pharmadist-erp/internal/platform/db"
)

func newMigrateCommand() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list {
				names, err := db.Migrations()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			ctx := cmd.Context()
			pool, err := db.New(ctx, cfg.PGDSN, 2)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.RunMigrations(ctx, pool, app.NewLogger(cfg))
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list embedded migrations without connecting")

	return cmd
}
