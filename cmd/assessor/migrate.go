package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skillgrid/assessor/internal/platform/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := database.New(ctx, a.dbOptions())
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			before, err := database.Version(ctx, db.Pool)
			if err != nil {
				return err
			}
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (was %d)\n", database.SchemaVersion, before)
			return nil
		},
	}
}
