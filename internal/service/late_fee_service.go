package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/segyhp/rent-ledger/internal/config"
	"github.com/segyhp/rent-ledger/internal/domain"
	"github.com/segyhp/rent-ledger/internal/metrics"
	"github.com/segyhp/rent-ledger/internal/notify"
	"github.com/segyhp/rent-ledger/internal/repository"
	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
	"github.com/segyhp/rent-ledger/pkg/utils"
)

// LateFeeService charges late fees on obligations past their grace period
type LateFeeService struct {
	obligationRepo repository.ObligationRepository
	ledger         repository.Ledger
	notifier       notify.Notifier
	alerter        notify.Alerter
	config         config.BusinessConfig
	logger         logrus.FieldLogger
}

func NewLateFeeService(
	obligationRepo repository.ObligationRepository,
	ledger repository.Ledger,
	notifier notify.Notifier,
	alerter notify.Alerter,
	cfg config.BusinessConfig,
	logger logrus.FieldLogger,
) *LateFeeService {
	return &LateFeeService{
		obligationRepo: obligationRepo,
		ledger:         ledger,
		notifier:       notifier,
		alerter:        alerter,
		config:         cfg,
		logger:         logger,
	}
}

// ApplyLateFees charges every eligible obligation as of asOf. Each obligation
// runs in its own transaction, so one failure never aborts the batch; failures
// are collected into the report. Running it again charges nothing twice.
func (s *LateFeeService) ApplyLateFees(ctx context.Context, asOf time.Time) (*domain.LateFeeReport, error) {
	asOf = utils.DateOnly(asOf)

	candidates, err := s.obligationRepo.ListLateFeeCandidates(ctx, asOf)
	if err != nil {
		return nil, apperrors.Classify(err)
	}

	report := &domain.LateFeeReport{
		AsOf:       asOf,
		Candidates: len(candidates),
		Failures:   []*domain.LateFeeFailure{},
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit(s.config.LateFeeWorkers))

	for _, candidate := range candidates {
		candidate := candidate
		if !candidate.LateFeeDue(asOf) {
			mu.Lock()
			report.Skipped++
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			updated, err := s.ledger.ApplyLateFee(gctx, candidate.ID, asOf)
			if err == nil {
				notify.Dispatch(ctx, s.notifier, s.logger, updated.TenantID, notify.TemplateLateFeeApplied, map[string]string{
					"due_date":           updated.DueDate.Format(utils.DateLayout),
					"late_fee":           updated.LateFee.StringFixed(2),
					"amount_outstanding": updated.AmountOutstanding.StringFixed(2),
				})
			}

			mu.Lock()
			defer mu.Unlock()

			log := s.logger.WithField("obligation_id", candidate.ID)
			switch {
			case err == nil:
				report.Updated++
				metrics.LateFeesAppliedTotal.Inc()
				log.WithField("late_fee", updated.LateFee.String()).Info("late fee applied")
			case apperrors.Is(err, apperrors.ErrInvalidState):
				// paid or charged by someone else since the scan
				report.Skipped++
			default:
				metrics.LateFeeFailuresTotal.Inc()
				report.Failures = append(report.Failures, &domain.LateFeeFailure{
					ObligationID: candidate.ID,
					Code:         apperrors.CodeOf(apperrors.Classify(err)),
					Error:        err.Error(),
				})
				fields := logrus.Fields{"obligation_id": candidate.ID, "as_of": asOf.Format(utils.DateLayout)}
				if !escalate(ctx, s.alerter, err, fields) {
					log.WithError(err).Error("late fee application failed")
				}
			}
			return nil
		})
	}

	_ = g.Wait()

	s.logger.WithFields(logrus.Fields{
		"as_of":      asOf.Format(utils.DateLayout),
		"candidates": report.Candidates,
		"updated":    report.Updated,
		"skipped":    report.Skipped,
		"failures":   len(report.Failures),
	}).Info("late fee batch finished")

	return report, nil
}
