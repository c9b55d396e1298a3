package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/segyhp/rent-ledger/internal/app"
)

var (
	flagLease  string
	flagMonths int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate missing obligations for one lease or every billable lease",
	RunE: withApp(func(ctx context.Context, a *app.App) error {
		if flagLease != "" {
			leaseID, err := uuid.Parse(flagLease)
			if err != nil {
				return fmt.Errorf("invalid --lease: %w", err)
			}
			result, err := a.Obligations.GenerateObligations(ctx, leaseID, flagMonths)
			if err != nil {
				return err
			}
			return printJSON(result)
		}

		results, err := a.Obligations.GenerateForActiveLeases(ctx, flagMonths)
		if printErr := printJSON(results); printErr != nil {
			return printErr
		}
		return err
	}),
}

var lateFeesCmd = &cobra.Command{
	Use:   "late-fees",
	Short: "Apply late fees to obligations past their grace period",
	RunE: withApp(func(ctx context.Context, a *app.App) error {
		date, err := asOf()
		if err != nil {
			return fmt.Errorf("invalid --as-of: %w", err)
		}
		report, err := a.LateFees.ApplyLateFees(ctx, date)
		if err != nil {
			return err
		}
		if len(report.Failures) > 0 {
			fmt.Fprintf(os.Stderr, "%d obligations failed\n", len(report.Failures))
		}
		return printJSON(report)
	}),
}

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Send due soon and past due reminders",
	RunE: withApp(func(ctx context.Context, a *app.App) error {
		date, err := asOf()
		if err != nil {
			return fmt.Errorf("invalid --as-of: %w", err)
		}
		report, err := a.Reminders.SendReminders(ctx, date)
		if err != nil {
			return err
		}
		return printJSON(report)
	}),
}

func init() {
	generateCmd.Flags().StringVar(&flagLease, "lease", "", "Lease id (default: every billable lease)")
	generateCmd.Flags().IntVar(&flagMonths, "months", 0, "Billing periods to cover, including the current one (default BILLING_MONTHS_AHEAD)")
	lateFeesCmd.Flags().StringVar(&flagAsOf, "as-of", "", "Run date YYYY-MM-DD (default today)")
	remindersCmd.Flags().StringVar(&flagAsOf, "as-of", "", "Run date YYYY-MM-DD (default today)")

	rootCmd.AddCommand(generateCmd, lateFeesCmd, remindersCmd)
}
