package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/rent-ledger/internal/domain"
	"github.com/segyhp/rent-ledger/internal/notify"
	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
)

func TestIngest_FullPaymentMarksObligationPaid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.firstObligation(t)
	h.intent(t, o.ID, 1200, "pi_full")

	result, err := h.reconciler.IngestProcessorEvent(ctx, event(domain.EventSucceeded, "pi_full", 1200))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, result.Outcome)
	assert.Equal(t, domain.PaymentStatusCompleted, result.Payment.Status)
	assert.NotNil(t, result.Payment.CompletedAt)
	assert.True(t, result.Applied.Equal(decimal.NewFromInt(1200)))

	stored := h.reload(t, o.ID)
	assert.Equal(t, "1200.00", stored.AmountPaid.StringFixed(2))
	assert.True(t, stored.AmountOutstanding.IsZero())
	assert.Equal(t, domain.ObligationStatusPaid, stored.Status)
	assert.NotNil(t, stored.PaidAt)

	assert.Equal(t, []string{notify.TemplatePaymentReceived}, h.notifier.templates())
}

func TestIngest_PartialPayment(t *testing.T) {
	h := newHarness(t)
	o := h.firstObligation(t)
	h.intent(t, o.ID, 600, "pi_half")

	_, err := h.reconciler.IngestProcessorEvent(context.Background(), event(domain.EventSucceeded, "pi_half", 600))
	require.NoError(t, err)

	stored := h.reload(t, o.ID)
	assert.Equal(t, domain.ObligationStatusPartial, stored.Status)
	assert.Equal(t, "600.00", stored.AmountOutstanding.StringFixed(2))
	assert.Nil(t, stored.PaidAt)
}

func TestIngest_ReplayedSuccessAppliesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.firstObligation(t)
	h.intent(t, o.ID, 600, "pi_replay")
	ev := event(domain.EventSucceeded, "pi_replay", 600)

	_, err := h.reconciler.IngestProcessorEvent(ctx, ev)
	require.NoError(t, err)

	h.advance(time.Minute)
	replay, err := h.reconciler.IngestProcessorEvent(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, replay.Outcome)

	stored := h.reload(t, o.ID)
	assert.Equal(t, "600.00", stored.AmountPaid.StringFixed(2))

	events, err := h.reconciler.ListEvents(ctx, "pi_replay")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, string(domain.OutcomeApplied), events[0].Outcome)
	assert.Equal(t, string(domain.OutcomeDuplicate), events[1].Outcome)
	assert.Less(t, events[0].Seq, events[1].Seq)
	assert.Equal(t, ev.EventID, events[1].ProviderEventID)

	// the duplicate does not notify the tenant again
	assert.Len(t, h.notifier.templates(), 1)
}

func TestIngest_ConcurrentReplaysApplyOnce(t *testing.T) {
	h := newHarness(t)
	o := h.firstObligation(t)
	h.intent(t, o.ID, 1200, "pi_race")
	ev := event(domain.EventSucceeded, "pi_race", 1200)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[domain.EventOutcome]int{}
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := h.reconciler.IngestProcessorEvent(context.Background(), ev)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			outcomes[result.Outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, outcomes[domain.OutcomeApplied])
	assert.Equal(t, 7, outcomes[domain.OutcomeDuplicate])
	assert.Equal(t, "1200.00", h.reload(t, o.ID).AmountPaid.StringFixed(2))
}

func TestIngest_RefundOfCompletedPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.firstObligation(t)
	h.intent(t, o.ID, 1200, "pi_refund")

	_, err := h.reconciler.IngestProcessorEvent(ctx, event(domain.EventSucceeded, "pi_refund", 1200))
	require.NoError(t, err)

	refund := event(domain.EventRefunded, "pi_refund", 1200)
	result, err := h.reconciler.IngestProcessorEvent(ctx, refund)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, result.Outcome)
	assert.Equal(t, domain.PaymentStatusRefunded, result.Payment.Status)
	assert.NotNil(t, result.Payment.RefundedAt)

	stored := h.reload(t, o.ID)
	assert.True(t, stored.AmountPaid.IsZero())
	assert.Equal(t, domain.ObligationStatusUnpaid, stored.Status)
	assert.Nil(t, stored.PaidAt)

	again, err := h.reconciler.IngestProcessorEvent(ctx, refund)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, again.Outcome)
	assert.True(t, h.reload(t, o.ID).AmountPaid.IsZero())

	assert.Equal(t, []string{notify.TemplatePaymentReceived, notify.TemplatePaymentRefunded}, h.notifier.templates())
}

func TestIngest_RefundOfPendingPaymentIsInvalid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.firstObligation(t)
	h.intent(t, o.ID, 1200, "pi_early_refund")

	_, err := h.reconciler.IngestProcessorEvent(ctx, event(domain.EventRefunded, "pi_early_refund", 1200))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))

	p, err := h.reconciler.FindPayment(ctx, "pi_early_refund")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, p.Status)

	events, err := h.reconciler.ListEvents(ctx, "pi_early_refund")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestIngest_UnknownReferenceIsKeptForReview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.firstObligation(t)
	ev := event(domain.EventSucceeded, "pi_ghost", 300)

	result, err := h.reconciler.IngestProcessorEvent(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnknownReference, result.Outcome)
	assert.Nil(t, result.Payment.ObligationID)
	assert.Equal(t, domain.PaymentStatusCompleted, result.Payment.Status)
	assert.Equal(t, domain.PaymentMethodUnknown, result.Payment.Method)
	assert.True(t, result.Payment.NeedsReview)

	review, err := h.reconciler.ListNeedsReview(ctx)
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, "pi_ghost", review[0].Reference())

	// balances are untouched
	assert.True(t, h.reload(t, o.ID).AmountPaid.IsZero())

	replay, err := h.reconciler.IngestProcessorEvent(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, replay.Outcome)
}

func TestIngest_EventBeforeReferenceAssignment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.firstObligation(t)

	p, err := h.reconciler.RecordLocalPaymentIntent(ctx, o.ID, decimal.NewFromInt(1200), domain.PaymentMethodACH)
	require.NoError(t, err)

	ev := event(domain.EventSucceeded, "pi_fast", 1200)
	ev.Metadata.PaymentID = p.ID.String()

	result, err := h.reconciler.IngestProcessorEvent(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, result.Outcome)
	assert.Equal(t, p.ID, result.Payment.ID)
	assert.Equal(t, domain.ObligationStatusPaid, h.reload(t, o.ID).Status)

	// the synchronous reply arrives afterwards
	assigned, err := h.reconciler.AssignExternalReference(ctx, p.ID, "pi_fast")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, assigned.Status)

	_, err = h.reconciler.AssignExternalReference(ctx, p.ID, "pi_other")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
}

func TestAssignExternalReference_TakenByAnotherPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.firstObligation(t)
	h.intent(t, o.ID, 100, "pi_taken")

	p, err := h.reconciler.RecordLocalPaymentIntent(ctx, o.ID, decimal.NewFromInt(100), domain.PaymentMethodCard)
	require.NoError(t, err)

	_, err = h.reconciler.AssignExternalReference(ctx, p.ID, "pi_taken")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
}

func TestIngest_LifecycleTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.firstObligation(t)
	h.intent(t, o.ID, 1200, "pi_flow")

	steps := []struct {
		kind    domain.EventKind
		outcome domain.EventOutcome
		status  string
	}{
		{domain.EventProcessing, domain.OutcomeApplied, domain.PaymentStatusProcessing},
		{domain.EventProcessing, domain.OutcomeDuplicate, domain.PaymentStatusProcessing},
		{domain.EventFailed, domain.OutcomeApplied, domain.PaymentStatusFailed},
		{domain.EventFailed, domain.OutcomeDuplicate, domain.PaymentStatusFailed},
		{domain.EventProcessing, domain.OutcomeStale, domain.PaymentStatusFailed},
		{domain.EventSucceeded, domain.OutcomeApplied, domain.PaymentStatusCompleted},
		{domain.EventFailed, domain.OutcomeStale, domain.PaymentStatusCompleted},
	}

	for _, step := range steps {
		result, err := h.reconciler.IngestProcessorEvent(ctx, event(step.kind, "pi_flow", 1200))
		require.NoError(t, err, "%s", step.kind)
		assert.Equal(t, step.outcome, result.Outcome, "%s", step.kind)
		assert.Equal(t, step.status, result.Payment.Status, "%s", step.kind)
	}

	p, err := h.reconciler.FindPayment(ctx, "pi_flow")
	require.NoError(t, err)
	assert.True(t, p.NeedsReview)
	assert.Contains(t, p.ReviewReason, "failed event for completed payment")
	assert.Equal(t, domain.ObligationStatusPaid, h.reload(t, o.ID).Status)
}

func TestIngest_OverpaymentIsHeldForReview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.firstObligation(t)
	h.intent(t, o.ID, 1200, "pi_over")

	result, err := h.reconciler.IngestProcessorEvent(ctx, event(domain.EventSucceeded, "pi_over", 1300))
	require.NoError(t, err)
	assert.Equal(t, "1200.00", result.Applied.StringFixed(2))
	assert.True(t, result.Payment.NeedsReview)
	assert.Contains(t, result.Payment.ReviewReason, "overpayment of 100.00")
	assert.Contains(t, result.Payment.ReviewReason, "differs from intent")

	stored := h.reload(t, o.ID)
	assert.Equal(t, domain.ObligationStatusPaid, stored.Status)
	assert.True(t, stored.AmountOutstanding.IsZero())

	// a refund only reverses what was credited
	_, err = h.reconciler.IngestProcessorEvent(ctx, event(domain.EventRefunded, "pi_over", 1300))
	require.NoError(t, err)
	assert.True(t, h.reload(t, o.ID).AmountPaid.IsZero())
}

func TestRecordLocalPaymentIntent_Rejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.firstObligation(t)

	_, err := h.reconciler.RecordLocalPaymentIntent(ctx, o.ID, decimal.NewFromInt(1500), domain.PaymentMethodCard)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = h.reconciler.RecordLocalPaymentIntent(ctx, o.ID, decimal.NewFromInt(100), "bitcoin")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = h.reconciler.RecordLocalPaymentIntent(ctx, o.ID, decimal.Zero, domain.PaymentMethodCard)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	h.intent(t, o.ID, 1200, "pi_settle")
	_, err = h.reconciler.IngestProcessorEvent(ctx, event(domain.EventSucceeded, "pi_settle", 1200))
	require.NoError(t, err)

	p, err := h.reconciler.RecordLocalPaymentIntent(ctx, o.ID, decimal.NewFromInt(100), domain.PaymentMethodCard)
	assert.Nil(t, p)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
}

func TestCreatePaymentIntent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.firstObligation(t)

	p, err := h.reconciler.CreatePaymentIntent(ctx, o.ID, decimal.NewFromInt(400), domain.PaymentMethodCard)
	require.NoError(t, err)
	assert.NotEmpty(t, p.Reference())
	assert.Equal(t, domain.PaymentStatusPending, p.Status)

	stored, err := h.reconciler.FindPayment(ctx, p.Reference())
	require.NoError(t, err)
	assert.Equal(t, p.ID, stored.ID)

	h.gateway.Err = errors.New("processor down")
	_, err = h.reconciler.CreatePaymentIntent(ctx, o.ID, decimal.NewFromInt(400), domain.PaymentMethodCard)
	assert.True(t, apperrors.Is(err, apperrors.ErrProcessor))

	attempts, err := h.reconciler.ListPayments(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 2)
}

func TestStaleIntentsAreReportedNotFailed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.firstObligation(t)

	p, err := h.reconciler.RecordLocalPaymentIntent(ctx, o.ID, decimal.NewFromInt(1200), domain.PaymentMethodCard)
	require.NoError(t, err)

	stale, err := h.reconciler.ListStaleIntents(ctx)
	require.NoError(t, err)
	assert.Empty(t, stale)

	h.advance(49 * time.Hour)

	stale, err = h.reconciler.ReportStaleIntents(ctx)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, p.ID, stale[0].ID)
	assert.Len(t, h.alerter.subjects, 1)

	stored, err := h.reconciler.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, stored.Status)
}

func TestPaymentLookups(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.reconciler.ListEvents(ctx, "")
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))

	_, err = h.reconciler.FindPayment(ctx, "pi_missing")
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))

	events, err := h.reconciler.ListEvents(ctx, "pi_missing")
	require.NoError(t, err)
	assert.Empty(t, events)

	// an event for an unknown reference is readable through its review payment
	result, err := h.reconciler.IngestProcessorEvent(ctx, event(domain.EventSucceeded, "pi_orphan", 100))
	require.NoError(t, err)

	p, err := h.reconciler.FindPayment(ctx, "pi_orphan")
	require.NoError(t, err)
	assert.Equal(t, result.Payment.ID, p.ID)
	assert.True(t, p.NeedsReview)

	events, err = h.reconciler.ListEvents(ctx, "pi_orphan")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(domain.OutcomeUnknownReference), events[0].Outcome)
	require.NotNil(t, events[0].PaymentID)
	assert.Equal(t, p.ID, *events[0].PaymentID)
}
