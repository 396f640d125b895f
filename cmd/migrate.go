/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"

	"github.com/lumenbank/apiserver/config"
	"github.com/lumenbank/apiserver/internal/db"
	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations against the postgres store",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations(true)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert all migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations(false)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

func runMigrations(up bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.StoreDriver != config.StorePostgres {
		return errors.New("migrations only apply to STORE_DRIVER=postgres")
	}

	logger := newLogger()
	direction := "up"
	if !up {
		direction = "down"
	}
	logger.Log("msg", "running migrations", "direction", direction, "host", cfg.Database.Host, "db", cfg.Database.DBName)
	if err := db.Migrate(cfg.Database, up); err != nil {
		return err
	}
	logger.Log("msg", "migrations complete", "direction", direction)
	return nil
}
