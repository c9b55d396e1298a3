package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/rent-ledger/internal/config"
	"github.com/segyhp/rent-ledger/internal/database/dbtest"
	"github.com/segyhp/rent-ledger/internal/domain"
	"github.com/segyhp/rent-ledger/internal/lock"
	"github.com/segyhp/rent-ledger/internal/processor"
	"github.com/segyhp/rent-ledger/internal/repository"
)

type sentNotification struct {
	tenantID uuid.UUID
	template string
	params   map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(ctx context.Context, tenantID uuid.UUID, tmpl string, params map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{tenantID, tmpl, params})
	return nil
}

func (n *recordingNotifier) templates() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.template)
	}
	return out
}

type recordingAlerter struct {
	mu       sync.Mutex
	subjects []string
}

func (a *recordingAlerter) Alert(ctx context.Context, subject string, err error, fields logrus.Fields) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subjects = append(a.subjects, subject)
}

// harness wires the services to an in-memory sqlite ledger
type harness struct {
	leases      repository.LeaseRepository
	obligations repository.ObligationRepository
	payments    repository.PaymentRepository
	ledger      repository.Ledger

	generator  *ObligationService
	lateFees   *LateFeeService
	reconciler *Reconciler
	gateway    *processor.MockGateway

	notifier *recordingNotifier
	alerter  *recordingAlerter

	mu  sync.Mutex
	now time.Time
}

func newHarness(t *testing.T) *harness {
	db := dbtest.New(t)
	logger, _ := test.NewNullLogger()

	cfg := config.BusinessConfig{
		MonthsAhead:        3,
		StaleIntentTimeout: 48 * time.Hour,
		LateFeeWorkers:     4,
		GenerationWorkers:  2,
	}

	h := &harness{
		leases:      repository.NewLeaseRepository(db),
		obligations: repository.NewObligationRepository(db),
		payments:    repository.NewPaymentRepository(db),
		ledger:      repository.NewLedger(db),
		gateway:     processor.NewMockGateway(),
		notifier:    &recordingNotifier{},
		alerter:     &recordingAlerter{},
		now:         day(2025, time.January, 1).Add(9 * time.Hour),
	}

	h.generator = NewObligationService(h.leases, h.obligations, cfg, logger)
	h.generator.now = h.clock
	h.lateFees = NewLateFeeService(h.obligations, h.ledger, h.notifier, h.alerter, cfg, logger)
	h.reconciler = NewReconciler(h.ledger, h.payments, h.gateway, lock.NewLocal(), h.notifier, h.alerter, cfg, logger)
	h.reconciler.now = h.clock
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

func (h *harness) lease(t *testing.T) *domain.Lease {
	lease := newLease(nil)
	lease.CreatedAt = h.clock()
	lease.UpdatedAt = h.clock()
	require.NoError(t, h.leases.Create(context.Background(), lease))
	return lease
}

// firstObligation generates a lease's obligations and returns January's
func (h *harness) firstObligation(t *testing.T) *domain.RentObligation {
	lease := h.lease(t)
	result, err := h.generator.GenerateObligations(context.Background(), lease.ID, 3)
	require.NoError(t, err)
	require.NotEmpty(t, result.Created)
	return result.Created[0]
}

func (h *harness) reload(t *testing.T, id uuid.UUID) *domain.RentObligation {
	o, err := h.obligations.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, o.CheckInvariants())
	return o
}

// intent records a local intent and gives it a processor reference
func (h *harness) intent(t *testing.T, obligationID uuid.UUID, amount int64, ref string) *domain.PaymentAttempt {
	ctx := context.Background()
	p, err := h.reconciler.RecordLocalPaymentIntent(ctx, obligationID, decimal.NewFromInt(amount), domain.PaymentMethodCard)
	require.NoError(t, err)
	p, err = h.reconciler.AssignExternalReference(ctx, p.ID, ref)
	require.NoError(t, err)
	return p
}

func event(kind domain.EventKind, ref string, amount int64) *domain.ProcessorEvent {
	return &domain.ProcessorEvent{
		EventID:           uuid.NewString(),
		Kind:              kind,
		ExternalReference: ref,
		Amount:            decimal.NewFromInt(amount),
		OccurredAt:        time.Now().UTC(),
	}
}
