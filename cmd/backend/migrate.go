package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formbot-io/formbot/database"
)

var (
	migrationsPath string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration commands",
}

// withMigrationDB loads the config, opens the database, and hands the
// raw connection to fn. The connection is closed when fn returns.
func withMigrationDB(fn func(db *sql.DB) error) error {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.Connect(database.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	defer sqlDB.Close()

	return fn(sqlDB)
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrationDB(func(db *sql.DB) error {
			if err := database.RunMigrations(db, migrationsPath); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			fmt.Println("Migrations applied successfully")
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Rollback the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrationDB(func(db *sql.DB) error {
			if err := database.RollbackMigration(db, migrationsPath); err != nil {
				return fmt.Errorf("failed to rollback migration: %w", err)
			}
			fmt.Println("Migration rolled back successfully")
			return nil
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrationDB(func(db *sql.DB) error {
			version, dirty, err := database.MigrationVersion(db, migrationsPath)
			if err != nil {
				return fmt.Errorf("failed to read schema version: %w", err)
			}
			if dirty {
				fmt.Printf("Schema version: %d (dirty)\n", version)
				return nil
			}
			fmt.Printf("Schema version: %d\n", version)
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)

	migrateCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	migrateCmd.PersistentFlags().StringVarP(&migrationsPath, "path", "p", "database/migrations", "migrations directory path")

	rootCmd.AddCommand(migrateCmd)
}
