package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/sitehost/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the registry schema",
	Long: `Create the sites, users and role tables if they are missing, then
check that the existing tables match the expected schema.

serve does the same on start unless database.auto_migrate is false.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		db, err := openDatabase(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		slog.Info("database migration complete", "type", cfg.Database.Type,
			"sites", cfg.Database.Tables.Sites, "users", cfg.Database.Tables.Users, "roles", cfg.Database.Tables.Roles)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
