package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/prudhvinik1/seatkeeper/internal/database"
	"github.com/prudhvinik1/seatkeeper/internal/logging"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if databaseURL == "" {
				databaseURL = os.Getenv("DATABASE_URL")
			}
			if databaseURL == "" {
				return errors.New("--database-url or DATABASE_URL is required")
			}
			if err := logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")); err != nil {
				return err
			}

			pool, err := database.NewPostgresPool(cmd.Context(), databaseURL)
			if err != nil {
				return fmt.Errorf("failed to create postgres pool: %w", err)
			}
			defer pool.Close()

			applied, err := database.Migrate(cmd.Context(), pool)
			if err != nil {
				return err
			}

			if len(applied) == 0 {
				cmd.Println("Database is up to date.")
				return nil
			}
			cmd.Printf("Applied %d migration(s):\n", len(applied))
			for _, name := range applied {
				cmd.Printf("  - %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres connection string (defaults to DATABASE_URL)")
	return cmd
}
