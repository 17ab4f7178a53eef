package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/seuros/kohort/internal/database"
	"github.com/seuros/kohort/internal/models"
	"github.com/seuros/kohort/internal/records"
)

var errNoDatabase = errors.New("no database configured: set DATABASE_URL or pass --database-url")

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL schema",
	Long: `Apply embedded schema migrations, report the applied version, or seed
the database from the JSON files in the data directory.

Examples:
  kohort migrate up
  kohort migrate version
  kohort migrate seed --data-dir ./data`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errNoDatabase
		}
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return err
		}
		version, _, err := database.GetMigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Migrations applied (v%d)\n", version)
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the applied migration version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errNoDatabase
		}
		version, dirty, err := database.GetMigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		latest, err := database.LatestMigrationVersion()
		if err != nil {
			return err
		}
		fmt.Println(formatMigrationVersion(version, latest, dirty))
		return nil
	},
}

var migrateSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import the data directory's JSON files into PostgreSQL",
	Long: `Read customers.json, events.json and transactions.json from the data
directory and insert them. Existing rows are left untouched, so seeding twice
is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errNoDatabase
		}

		mem, err := records.LoadDir(cfg.DataDir)
		if err != nil {
			return err
		}
		ds, err := mem.Fetch(cmd.Context(), models.RangeAll, time.Now())
		if err != nil {
			return err
		}

		env, err := openEnvironment(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		inserted, err := env.repo.ImportDataset(cmd.Context(), ds)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Seeded %d rows from %s (%d customers, %d events, %d transactions read)\n",
			inserted, cfg.DataDir, len(ds.Customers), len(ds.Events), len(ds.Transactions))
		return nil
	},
}

func formatMigrationVersion(version, latest uint, dirty bool) string {
	switch {
	case dirty:
		return fmt.Sprintf("v%d (dirty, latest v%d)", version, latest)
	case version == 0:
		return fmt.Sprintf("no migrations applied (latest v%d)", latest)
	case version < latest:
		return fmt.Sprintf("v%d (%d pending, latest v%d)", version, latest-version, latest)
	default:
		return fmt.Sprintf("v%d (up to date)", version)
	}
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
	migrateCmd.AddCommand(migrateSeedCmd)
	RootCmd.AddCommand(migrateCmd)
}
