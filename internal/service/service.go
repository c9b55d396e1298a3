// Package service holds the billing and reconciliation workflows: obligation
// generation, late fees, payment reconciliation, reporting and reminders.
package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/segyhp/rent-ledger/internal/metrics"
	"github.com/segyhp/rent-ledger/internal/notify"
	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
)

func workerLimit(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// escalate forwards ledger invariant violations to the operator. Other errors
// are left to the caller.
func escalate(ctx context.Context, alerter notify.Alerter, err error, fields logrus.Fields) bool {
	if !apperrors.Is(err, apperrors.ErrConsistency) {
		return false
	}
	metrics.ConsistencyErrorsTotal.Inc()
	if alerter != nil {
		alerter.Alert(ctx, "ledger consistency violation", err, fields)
	}
	return true
}
