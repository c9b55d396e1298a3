package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/segyhp/rent-ledger/internal/app"
	"github.com/segyhp/rent-ledger/internal/domain"
	"github.com/segyhp/rent-ledger/pkg/utils"
)

// leaseImport is one entry of an import file: a lease and how to reach its tenants
type leaseImport struct {
	domain.Lease
	Contacts []domain.TenantContact `json:"contacts"`
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		flagMigrate = true
		return withApp(func(ctx context.Context, a *app.App) error {
			fmt.Println("schema applied")
			return nil
		})(cmd, args)
	},
}

var importCmd = &cobra.Command{
	Use:   "import-leases <file.json>",
	Short: "Load leases and tenant contacts from a JSON array",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var entries []leaseImport
		if err := json.Unmarshal(raw, &entries); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		return withApp(func(ctx context.Context, a *app.App) error {
			now := time.Now().UTC()
			for i := range entries {
				lease := &entries[i].Lease
				if lease.ID == uuid.Nil {
					lease.ID = uuid.New()
				}
				lease.CreatedAt, lease.UpdatedAt = now, now
				if err := a.Leases.Create(ctx, lease); err != nil {
					return fmt.Errorf("lease %d: %w", i, err)
				}
				for j := range entries[i].Contacts {
					if err := a.Contacts.Upsert(ctx, &entries[i].Contacts[j]); err != nil {
						return fmt.Errorf("lease %d contact %d: %w", i, j, err)
					}
				}
				fmt.Println(lease.ID)
			}
			return nil
		})(cmd, args)
	},
}

var terminateCmd = &cobra.Command{
	Use:   "terminate <lease-id> <YYYY-MM-DD>",
	Short: "End a lease early; no obligations are generated after the date",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		leaseID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid lease id: %w", err)
		}
		date, err := utils.ParseDate(args[1])
		if err != nil {
			return fmt.Errorf("invalid termination date: %w", err)
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			return a.Leases.Terminate(ctx, leaseID, date)
		})(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, importCmd, terminateCmd)
}
