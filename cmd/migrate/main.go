package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/adonhq/assessment-backend/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply or roll back database schema migrations",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("path", "migrations", "Path to migration files")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := open(cmd)
				if err != nil {
					return err
				}
				defer m.Close()
				if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("up: %w", err)
				}
				fmt.Println("Migrated up successfully")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := open(cmd)
				if err != nil {
					return err
				}
				defer m.Close()
				if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("down: %w", err)
				}
				fmt.Println("Migrated down successfully")
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := open(cmd)
				if err != nil {
					return err
				}
				defer m.Close()
				version, dirty, err := m.Version()
				if err != nil {
					return fmt.Errorf("version: %w", err)
				}
				fmt.Printf("Version: %d, Dirty: %t\n", version, dirty)
				return nil
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				m, err := open(cmd)
				if err != nil {
					return err
				}
				defer m.Close()
				if err := m.Force(v); err != nil {
					return fmt.Errorf("force: %w", err)
				}
				fmt.Printf("Forced version to %d\n", v)
				return nil
			},
		},
	)

	return root
}

func open(cmd *cobra.Command) (*migrate.Migrate, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}

	dir, err := cmd.Flags().GetString("path")
	if err != nil {
		return nil, err
	}

	m, err := migrate.New("file://"+dir, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("initialize migrations: %w", err)
	}
	return m, nil
}
