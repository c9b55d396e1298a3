package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/segyhp/rent-ledger/internal/config"
	"github.com/segyhp/rent-ledger/internal/domain"
	"github.com/segyhp/rent-ledger/internal/metrics"
	"github.com/segyhp/rent-ledger/internal/notify"
	"github.com/segyhp/rent-ledger/internal/repository"
	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
	"github.com/segyhp/rent-ledger/pkg/utils"
)

// ReminderService tells tenants about rent coming due and rent left unpaid
type ReminderService struct {
	obligationRepo repository.ObligationRepository
	notifier       notify.Notifier
	config         config.BusinessConfig
	logger         logrus.FieldLogger
}

func NewReminderService(
	obligationRepo repository.ObligationRepository,
	notifier notify.Notifier,
	cfg config.BusinessConfig,
	logger logrus.FieldLogger,
) *ReminderService {
	return &ReminderService{
		obligationRepo: obligationRepo,
		notifier:       notifier,
		config:         cfg,
		logger:         logger,
	}
}

// SendReminders notifies tenants whose rent is due REMINDER_DAYS_BEFORE days
// after asOf, and those still owing REMINDER_DAYS_AFTER days past due.
// An obligation is reminded at most once per day. Delivery failures are
// logged and skipped.
func (s *ReminderService) SendReminders(ctx context.Context, asOf time.Time) (*domain.ReminderReport, error) {
	asOf = utils.DateOnly(asOf)
	report := &domain.ReminderReport{AsOf: asOf}

	upcoming, err := s.dueOn(ctx, asOf.AddDate(0, 0, s.config.ReminderDaysBefore))
	if err != nil {
		return nil, err
	}
	pastDue, err := s.dueOn(ctx, asOf.AddDate(0, 0, -s.config.ReminderDaysAfter))
	if err != nil {
		return nil, err
	}

	report.Upcoming = len(upcoming)
	report.PastDue = len(pastDue)

	for _, o := range upcoming {
		if s.remind(ctx, o, asOf, notify.TemplateRentDueSoon, "upcoming") {
			report.Notified++
		}
	}
	for _, o := range pastDue {
		if s.remind(ctx, o, asOf, notify.TemplateRentPastDue, "past_due") {
			report.Notified++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"as_of":    asOf.Format(utils.DateLayout),
		"upcoming": report.Upcoming,
		"past_due": report.PastDue,
		"notified": report.Notified,
	}).Info("rent reminders sent")

	return report, nil
}

func (s *ReminderService) dueOn(ctx context.Context, due time.Time) ([]*domain.RentObligation, error) {
	obligations, err := s.obligationRepo.ListByDueRange(ctx, due, due.AddDate(0, 0, 1), nil)
	if err != nil {
		return nil, apperrors.Classify(err)
	}

	owing := make([]*domain.RentObligation, 0, len(obligations))
	for _, o := range obligations {
		if o.Status != domain.ObligationStatusPaid && o.AmountOutstanding.IsPositive() {
			owing = append(owing, o)
		}
	}
	return owing, nil
}

func (s *ReminderService) remind(ctx context.Context, o *domain.RentObligation, asOf time.Time, tmpl, kind string) bool {
	if o.LastReminderAt != nil && utils.DateOnly(*o.LastReminderAt).Equal(asOf) {
		return false
	}

	sent := notify.Dispatch(ctx, s.notifier, s.logger, o.TenantID, tmpl, map[string]string{
		"due_date":           o.DueDate.Format(utils.DateLayout),
		"amount_outstanding": o.AmountOutstanding.StringFixed(2),
	})
	if !sent {
		return false
	}

	metrics.RemindersSentTotal.WithLabelValues(kind).Inc()
	if err := s.obligationRepo.RecordReminder(ctx, o.ID, asOf); err != nil {
		s.logger.WithError(err).WithField("obligation_id", o.ID).Warn("failed to record reminder")
	}
	return true
}
