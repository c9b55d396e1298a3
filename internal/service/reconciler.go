package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/rent-ledger/internal/config"
	"github.com/segyhp/rent-ledger/internal/domain"
	"github.com/segyhp/rent-ledger/internal/lock"
	"github.com/segyhp/rent-ledger/internal/metrics"
	"github.com/segyhp/rent-ledger/internal/notify"
	"github.com/segyhp/rent-ledger/internal/processor"
	"github.com/segyhp/rent-ledger/internal/repository"
	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
	"github.com/segyhp/rent-ledger/pkg/utils"
)

// Reconciler merges locally created payment intents and processor events
// into one payment and obligation state
type Reconciler struct {
	ledger      repository.Ledger
	paymentRepo repository.PaymentRepository
	gateway     processor.Gateway
	locker      lock.Locker
	notifier    notify.Notifier
	alerter     notify.Alerter
	config      config.BusinessConfig
	logger      logrus.FieldLogger
	now         func() time.Time
}

func NewReconciler(
	ledger repository.Ledger,
	paymentRepo repository.PaymentRepository,
	gateway processor.Gateway,
	locker lock.Locker,
	notifier notify.Notifier,
	alerter notify.Alerter,
	cfg config.BusinessConfig,
	logger logrus.FieldLogger,
) *Reconciler {
	return &Reconciler{
		ledger:      ledger,
		paymentRepo: paymentRepo,
		gateway:     gateway,
		locker:      locker,
		notifier:    notifier,
		alerter:     alerter,
		config:      cfg,
		logger:      logger,
		now:         time.Now,
	}
}

func referenceLockKey(ref string) string {
	return "payment-ref:" + ref
}

// RecordLocalPaymentIntent creates a pending attempt against an obligation.
// Balances are not touched until the processor reports success.
func (r *Reconciler) RecordLocalPaymentIntent(ctx context.Context, obligationID uuid.UUID, amount decimal.Decimal, method string) (*domain.PaymentAttempt, error) {
	if !amount.IsPositive() {
		return nil, apperrors.WrapValidation("payment amount must be greater than zero")
	}
	if !domain.ValidPaymentMethod(method) {
		return nil, apperrors.WrapValidation("unsupported payment method %q", method)
	}

	var attempt *domain.PaymentAttempt
	err := r.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := tx.LockObligation(ctx, obligationID)
		if err != nil {
			return err
		}
		if o.Status == domain.ObligationStatusPaid {
			return apperrors.WrapInvalidState("obligation %s is already paid", o.ID)
		}
		if amount.GreaterThan(o.AmountOutstanding) {
			return apperrors.WrapValidation("amount %s exceeds outstanding balance %s", amount.StringFixed(2), o.AmountOutstanding.StringFixed(2))
		}

		attempt = domain.NewLocalPaymentAttempt(o, amount, method, r.now().UTC())
		return tx.InsertPayment(ctx, attempt)
	})
	if err != nil {
		return nil, apperrors.Classify(err)
	}

	r.logger.WithFields(logrus.Fields{
		"payment_id":    attempt.ID,
		"obligation_id": obligationID,
		"amount":        amount.String(),
		"method":        method,
	}).Info("payment intent recorded")

	return attempt, nil
}

// CreatePaymentIntent records a local intent, opens it at the processor and
// binds the processor's reference to it. When the processor call fails the
// attempt stays pending and shows up in the stale intent report.
func (r *Reconciler) CreatePaymentIntent(ctx context.Context, obligationID uuid.UUID, amount decimal.Decimal, method string) (*domain.PaymentAttempt, error) {
	attempt, err := r.RecordLocalPaymentIntent(ctx, obligationID, amount, method)
	if err != nil {
		return nil, err
	}

	intent, err := r.gateway.CreatePaymentIntent(ctx, processor.IntentRequest{
		PaymentID:    attempt.ID,
		ObligationID: obligationID,
		TenantID:     *attempt.TenantID,
		Amount:       amount,
		Method:       method,
		Description:  fmt.Sprintf("Rent payment %s", attempt.ID),
	})
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"payment_id": attempt.ID,
			"processor":  r.gateway.Name(),
		}).Error("processor rejected payment intent")
		return nil, apperrors.Classify(err)
	}

	return r.AssignExternalReference(ctx, attempt.ID, intent.ExternalReference)
}

// AssignExternalReference binds a processor reference to a local attempt.
// Assigning the same reference again is a no-op.
func (r *Reconciler) AssignExternalReference(ctx context.Context, paymentID uuid.UUID, ref string) (*domain.PaymentAttempt, error) {
	if ref == "" {
		return nil, apperrors.WrapValidation("external reference is required")
	}

	release, err := r.locker.Acquire(ctx, referenceLockKey(ref))
	if err != nil {
		return nil, fmt.Errorf("lock reference %s: %w", ref, err)
	}
	defer release()

	var attempt *domain.PaymentAttempt
	err = r.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		p, err := tx.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := p.AssignReference(ref, r.now().UTC()); err != nil {
			return err
		}
		attempt = p
		return tx.SavePayment(ctx, p)
	})
	if errors.Is(err, repository.ErrDuplicateReference) {
		return nil, apperrors.WrapInvalidState("external reference %s already belongs to another payment", ref)
	}
	if err != nil {
		return nil, apperrors.Classify(err)
	}

	r.logger.WithFields(logrus.Fields{
		"payment_id":         paymentID,
		"external_reference": ref,
	}).Info("external reference assigned")

	return attempt, nil
}

// IngestProcessorEvent applies a verified processor event. Events for one
// reference are serialized; replays are recorded and change nothing.
func (r *Reconciler) IngestProcessorEvent(ctx context.Context, event *domain.ProcessorEvent) (*domain.ReconcileResult, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	release, err := r.locker.Acquire(ctx, referenceLockKey(event.ExternalReference))
	if err != nil {
		return nil, fmt.Errorf("lock reference %s: %w", event.ExternalReference, err)
	}
	defer release()

	result, err := r.ingest(ctx, event)
	if errors.Is(err, repository.ErrDuplicateReference) {
		// another writer stored the reference between our lookup and insert
		result, err = r.ingest(ctx, event)
	}

	log := r.logger.WithFields(logrus.Fields{
		"external_reference": event.ExternalReference,
		"event_kind":         event.Kind,
		"event_id":           event.EventID,
	})

	if err != nil {
		metrics.ProcessorEventsTotal.WithLabelValues(string(event.Kind), "error").Inc()
		if !escalate(ctx, r.alerter, err, logrus.Fields{
			"external_reference": event.ExternalReference,
			"event_kind":         event.Kind,
			"event_id":           event.EventID,
		}) {
			log.WithError(err).Warn("processor event rejected")
		}
		return nil, apperrors.Classify(err)
	}

	metrics.ProcessorEventsTotal.WithLabelValues(string(event.Kind), string(result.Outcome)).Inc()

	log = log.WithFields(logrus.Fields{"outcome": result.Outcome, "payment_id": result.Payment.ID})
	if result.Detail != "" {
		log = log.WithField("detail", result.Detail)
	}
	if result.Payment.NeedsReview {
		log.Warn("processor event needs review")
	} else {
		log.Info("processor event reconciled")
	}

	if result.Outcome == domain.OutcomeApplied {
		r.notifyTenant(ctx, event, result)
	}
	return result, nil
}

func (r *Reconciler) ingest(ctx context.Context, event *domain.ProcessorEvent) (*domain.ReconcileResult, error) {
	var result *domain.ReconcileResult

	err := r.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		now := r.now().UTC()

		p, err := r.findPayment(ctx, tx, event, now)
		if err != nil {
			return err
		}
		if p == nil {
			result, err = r.recordUnknown(ctx, tx, event, now)
			return err
		}

		result, err = r.transition(ctx, tx, p, event, now)
		if err != nil {
			return err
		}

		// a duplicate may still have just been bound to its reference
		if err := tx.SavePayment(ctx, p); err != nil {
			return err
		}
		return tx.InsertEvent(ctx, domain.NewPaymentEventRecord(event, &p.ID, result.Outcome, result.Detail, now))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// findPayment looks the reference up and, failing that, binds it to the local
// attempt named in the event metadata when that attempt has no reference yet.
// A webhook can beat the processor's synchronous reply.
func (r *Reconciler) findPayment(ctx context.Context, tx repository.LedgerTx, event *domain.ProcessorEvent, now time.Time) (*domain.PaymentAttempt, error) {
	p, err := tx.LockPaymentByReference(ctx, event.ExternalReference)
	if err == nil {
		return p, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	paymentID, parseErr := uuid.Parse(event.Metadata.PaymentID)
	if parseErr != nil {
		return nil, nil
	}

	p, err = tx.LockPayment(ctx, paymentID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.ExternalReference != nil {
		return nil, nil
	}
	if err := p.AssignReference(event.ExternalReference, now); err != nil {
		return nil, err
	}
	return p, nil
}

// recordUnknown stores an event for a payment we never created so nobody
// loses track of the money. Balances are not touched.
func (r *Reconciler) recordUnknown(ctx context.Context, tx repository.LedgerTx, event *domain.ProcessorEvent, now time.Time) (*domain.ReconcileResult, error) {
	ref := event.ExternalReference
	p := &domain.PaymentAttempt{
		ID:                uuid.New(),
		Amount:            event.Amount,
		AppliedAmount:     decimal.Zero,
		Method:            domain.PaymentMethodUnknown,
		Status:            event.Kind.PaymentStatus(),
		ExternalReference: &ref,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if tenantID, err := uuid.Parse(event.Metadata.TenantID); err == nil {
		p.TenantID = &tenantID
	}
	switch p.Status {
	case domain.PaymentStatusCompleted:
		p.CompletedAt = &now
	case domain.PaymentStatusRefunded:
		p.RefundedAt = &now
	}

	detail := fmt.Sprintf("%s event for unknown reference", event.Kind)
	p.FlagForReview(detail)

	if err := tx.InsertPayment(ctx, p); err != nil {
		return nil, err
	}
	if err := tx.InsertEvent(ctx, domain.NewPaymentEventRecord(event, &p.ID, domain.OutcomeUnknownReference, detail, now)); err != nil {
		return nil, err
	}

	return &domain.ReconcileResult{
		Outcome: domain.OutcomeUnknownReference,
		Payment: p,
		Applied: decimal.Zero,
		Detail:  detail,
	}, nil
}

func (r *Reconciler) transition(ctx context.Context, tx repository.LedgerTx, p *domain.PaymentAttempt, event *domain.ProcessorEvent, now time.Time) (*domain.ReconcileResult, error) {
	result := &domain.ReconcileResult{Payment: p, Applied: decimal.Zero}

	stale := func(detail string, review bool) (*domain.ReconcileResult, error) {
		result.Outcome = domain.OutcomeStale
		result.Detail = detail
		if review {
			p.FlagForReview(detail)
			p.UpdatedAt = now
		}
		return result, nil
	}
	duplicate := func() (*domain.ReconcileResult, error) {
		result.Outcome = domain.OutcomeDuplicate
		result.Detail = fmt.Sprintf("payment already %s", p.Status)
		return result, nil
	}

	switch event.Kind {
	case domain.EventSucceeded:
		switch p.Status {
		case domain.PaymentStatusCompleted:
			return duplicate()
		case domain.PaymentStatusRefunded:
			return stale("succeeded event after refund", true)
		}
		return r.complete(ctx, tx, p, event, now, result)

	case domain.EventFailed:
		switch p.Status {
		case domain.PaymentStatusFailed:
			return duplicate()
		case domain.PaymentStatusCompleted, domain.PaymentStatusRefunded:
			return stale(fmt.Sprintf("failed event for %s payment", p.Status), true)
		}
		if err := p.MarkFailed(now); err != nil {
			return nil, err
		}

	case domain.EventProcessing:
		switch p.Status {
		case domain.PaymentStatusProcessing:
			return duplicate()
		case domain.PaymentStatusPending:
			if err := p.MarkProcessing(now); err != nil {
				return nil, err
			}
		default:
			return stale(fmt.Sprintf("processing event for %s payment", p.Status), false)
		}

	case domain.EventRefunded:
		switch p.Status {
		case domain.PaymentStatusRefunded:
			return duplicate()
		case domain.PaymentStatusCompleted:
			return r.refund(ctx, tx, p, event, now, result)
		}
		return nil, apperrors.WrapInvalidState("payment %s is %s; only completed payments can be refunded", p.ID, p.Status)

	default:
		return nil, apperrors.WrapValidation("unknown event kind %q", event.Kind)
	}

	result.Outcome = domain.OutcomeApplied
	return result, nil
}

// complete credits the obligation with what the processor says it collected.
// Anything above the outstanding balance is held for review.
func (r *Reconciler) complete(ctx context.Context, tx repository.LedgerTx, p *domain.PaymentAttempt, event *domain.ProcessorEvent, now time.Time, result *domain.ReconcileResult) (*domain.ReconcileResult, error) {
	amount := event.Amount
	if !amount.Equal(p.Amount) {
		p.FlagForReview(fmt.Sprintf("processor amount %s differs from intent %s", amount.StringFixed(2), p.Amount.StringFixed(2)))
	}

	applied := decimal.Zero
	if p.ObligationID == nil {
		p.FlagForReview("no obligation to apply payment to")
	} else {
		o, credited, err := tx.ApplyPayment(ctx, *p.ObligationID, amount, now)
		if err != nil {
			return nil, err
		}
		applied = credited
		result.Obligation = o

		if excess := amount.Sub(applied); excess.IsPositive() {
			p.FlagForReview(fmt.Sprintf("overpayment of %s not applied", excess.StringFixed(2)))
		}
	}

	if err := p.MarkCompleted(applied, now); err != nil {
		return nil, err
	}

	result.Outcome = domain.OutcomeApplied
	result.Applied = applied
	return result, nil
}

// refund reverses what the payment credited, up to the refunded amount
func (r *Reconciler) refund(ctx context.Context, tx repository.LedgerTx, p *domain.PaymentAttempt, event *domain.ProcessorEvent, now time.Time, result *domain.ReconcileResult) (*domain.ReconcileResult, error) {
	reversed := decimal.Min(event.Amount, p.AppliedAmount)
	if reversed.LessThan(p.AppliedAmount) {
		p.FlagForReview(fmt.Sprintf("partial refund of %s against %s applied", event.Amount.StringFixed(2), p.AppliedAmount.StringFixed(2)))
	}

	if p.ObligationID != nil && reversed.IsPositive() {
		o, err := tx.ApplyRefund(ctx, *p.ObligationID, reversed, now)
		if err != nil {
			return nil, err
		}
		result.Obligation = o
	}

	if err := p.MarkRefunded(now); err != nil {
		return nil, err
	}

	result.Outcome = domain.OutcomeApplied
	result.Applied = reversed.Neg()
	return result, nil
}

func (r *Reconciler) notifyTenant(ctx context.Context, event *domain.ProcessorEvent, result *domain.ReconcileResult) {
	p := result.Payment
	if p.TenantID == nil {
		return
	}

	var tmpl string
	switch event.Kind {
	case domain.EventSucceeded:
		tmpl = notify.TemplatePaymentReceived
	case domain.EventFailed:
		tmpl = notify.TemplatePaymentFailed
	case domain.EventRefunded:
		tmpl = notify.TemplatePaymentRefunded
	default:
		return
	}

	params := map[string]string{
		"amount":    event.Amount.StringFixed(2),
		"reference": event.ExternalReference,
	}
	if o := result.Obligation; o != nil {
		params["due_date"] = o.DueDate.Format(utils.DateLayout)
		params["amount_outstanding"] = o.AmountOutstanding.StringFixed(2)
	}

	notify.Dispatch(ctx, r.notifier, r.logger, *p.TenantID, tmpl, params)
}

// ListStaleIntents returns pending attempts older than STALE_INTENT_TIMEOUT
func (r *Reconciler) ListStaleIntents(ctx context.Context) ([]*domain.PaymentAttempt, error) {
	now := r.now().UTC()
	attempts, err := r.paymentRepo.ListStale(ctx, now.Add(-r.config.StaleIntentTimeout))
	if err != nil {
		return nil, apperrors.Classify(err)
	}

	stale := make([]*domain.PaymentAttempt, 0, len(attempts))
	for _, p := range attempts {
		if p.IsStale(now, r.config.StaleIntentTimeout) {
			stale = append(stale, p)
		}
	}
	return stale, nil
}

// ReportStaleIntents logs and alerts on stale intents. They are never failed
// automatically; an operator decides.
func (r *Reconciler) ReportStaleIntents(ctx context.Context) ([]*domain.PaymentAttempt, error) {
	stale, err := r.ListStaleIntents(ctx)
	if err != nil {
		return nil, err
	}

	metrics.StaleIntentsGauge.Set(float64(len(stale)))
	if len(stale) == 0 {
		return stale, nil
	}

	for _, p := range stale {
		r.logger.WithFields(logrus.Fields{
			"payment_id":    p.ID,
			"obligation_id": p.ObligationID,
			"created_at":    p.CreatedAt,
			"amount":        p.Amount.String(),
		}).Warn("stale payment intent")
	}

	if r.alerter != nil {
		r.alerter.Alert(ctx, fmt.Sprintf("%d stale payment intents", len(stale)), nil, logrus.Fields{
			"older_than": r.config.StaleIntentTimeout.String(),
			"oldest":     stale[0].ID.String(),
		})
	}
	return stale, nil
}

// ListNeedsReview returns attempts waiting on an operator
func (r *Reconciler) ListNeedsReview(ctx context.Context) ([]*domain.PaymentAttempt, error) {
	attempts, err := r.paymentRepo.ListNeedsReview(ctx)
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	return attempts, nil
}

// ListPayments returns the attempts made against an obligation
func (r *Reconciler) ListPayments(ctx context.Context, obligationID uuid.UUID) ([]*domain.PaymentAttempt, error) {
	attempts, err := r.paymentRepo.ListByObligation(ctx, obligationID)
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	return attempts, nil
}

// GetPayment returns a payment attempt by id
func (r *Reconciler) GetPayment(ctx context.Context, id uuid.UUID) (*domain.PaymentAttempt, error) {
	p, err := r.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	return p, nil
}

// FindPayment returns the attempt bound to a processor reference
func (r *Reconciler) FindPayment(ctx context.Context, ref string) (*domain.PaymentAttempt, error) {
	if ref == "" {
		return nil, apperrors.WrapValidation("external reference is required")
	}
	p, err := r.paymentRepo.GetByReference(ctx, ref)
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	return p, nil
}

// ListEvents returns every processor event recorded for a reference in arrival
// order, including duplicates and events that matched no payment.
func (r *Reconciler) ListEvents(ctx context.Context, ref string) ([]*domain.PaymentEventRecord, error) {
	if ref == "" {
		return nil, apperrors.WrapValidation("external reference is required")
	}
	events, err := r.paymentRepo.ListEvents(ctx, ref)
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	return events, nil
}
