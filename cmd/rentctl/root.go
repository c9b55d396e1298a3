package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/segyhp/rent-ledger/internal/app"
	"github.com/segyhp/rent-ledger/internal/config"
	"github.com/segyhp/rent-ledger/internal/logger"
	"github.com/segyhp/rent-ledger/pkg/utils"
)

var (
	flagAsOf     string
	flagProperty string
	flagMigrate  bool
)

var rootCmd = &cobra.Command{
	Use:          "rentctl",
	Short:        "Operate the rent ledger",
	Long:         "Run billing jobs and inspect obligations and payments from the command line.",
	SilenceUsage: true,
}

// Execute is the entry point called from main
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagMigrate, "migrate", false, "Apply the schema before running the command")
}

// openApp loads configuration from the environment and wires the ledger
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagMigrate {
		cfg.Database.AutoMigrate = true
	}
	return app.New(ctx, cfg, logger.New(cfg.Logging))
}

// withApp runs fn with a wired app and closes it afterwards
func withApp(fn func(ctx context.Context, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func asOf() (time.Time, error) {
	if flagAsOf == "" {
		return utils.DateOnly(time.Now().UTC()), nil
	}
	return utils.ParseDate(flagAsOf)
}

func propertyFilter() (*uuid.UUID, error) {
	if flagProperty == "" {
		return nil, nil
	}
	id, err := uuid.Parse(flagProperty)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
