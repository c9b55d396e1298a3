package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/segyhp/rent-ledger/internal/app"
	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
	"github.com/segyhp/rent-ledger/pkg/utils"
)

var (
	flagPeriod    string
	flagReference string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Collection summary for one billing period",
	RunE: withApp(func(ctx context.Context, a *app.App) error {
		property, err := propertyFilter()
		if err != nil {
			return fmt.Errorf("invalid --property: %w", err)
		}
		period := flagPeriod
		if period == "" {
			period = time.Now().UTC().Format(utils.PeriodLayout)
		}
		summary, err := a.Reports.GetCollectionSummary(ctx, period, property)
		if err != nil {
			return err
		}
		return printJSON(summary)
	}),
}

var overdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "List obligations past their grace period with a balance",
	RunE: withApp(func(ctx context.Context, a *app.App) error {
		property, err := propertyFilter()
		if err != nil {
			return fmt.Errorf("invalid --property: %w", err)
		}
		overdue, err := a.Reports.ListOverdue(ctx, property)
		if err != nil {
			return err
		}
		return printJSON(overdue)
	}),
}

var staleCmd = &cobra.Command{
	Use:   "stale-intents",
	Short: "Report payment intents the processor never confirmed",
	RunE: withApp(func(ctx context.Context, a *app.App) error {
		stale, err := a.Reconciler.ReportStaleIntents(ctx)
		if err != nil {
			return err
		}
		return printJSON(stale)
	}),
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List payments flagged for manual review",
	RunE: withApp(func(ctx context.Context, a *app.App) error {
		flagged, err := a.Reconciler.ListNeedsReview(ctx)
		if err != nil {
			return err
		}
		return printJSON(flagged)
	}),
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the payment and every processor event recorded for a reference",
	RunE: withApp(func(ctx context.Context, a *app.App) error {
		events, err := a.Reconciler.ListEvents(ctx, flagReference)
		if err != nil {
			return err
		}
		payment, err := a.Reconciler.FindPayment(ctx, flagReference)
		if err != nil && apperrors.CodeOf(err) != apperrors.ErrCodeNotFound {
			return err
		}
		return printJSON(map[string]interface{}{
			"payment": payment,
			"events":  events,
		})
	}),
}

func init() {
	summaryCmd.Flags().StringVar(&flagPeriod, "period", "", "Billing period YYYY-MM (default this month)")
	summaryCmd.Flags().StringVar(&flagProperty, "property", "", "Restrict to one property id")
	overdueCmd.Flags().StringVar(&flagProperty, "property", "", "Restrict to one property id")

	eventsCmd.Flags().StringVar(&flagReference, "reference", "", "Processor reference")
	_ = eventsCmd.MarkFlagRequired("reference")

	rootCmd.AddCommand(summaryCmd, overdueCmd, staleCmd, reviewCmd, eventsCmd)
}
