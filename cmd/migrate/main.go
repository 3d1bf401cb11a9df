package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/geocoder89/tourhub/internal/config"
	"github.com/geocoder89/tourhub/internal/db"
	"github.com/geocoder89/tourhub/internal/observability"
	"github.com/spf13/cobra"
)

const programName = "tourhub-migrate"

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, observability.NewLogger(cfg.Env), nil
}

func upCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			return db.Migrate(cfg.DatabaseURL, log)
		},
	}
}

func downCommand() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if err := db.MigrateDown(cfg.DatabaseURL, steps); err != nil {
				return err
			}
			log.Info("rolled back migrations", "steps", steps)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			v, dirty, err := db.Version(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
			return nil
		},
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Manage the tourhub database schema",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(upCommand(), downCommand(), versionCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
