package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/rent-ledger/internal/domain"
)

// ErrDuplicateReference is returned when an external reference is already taken
var ErrDuplicateReference = errors.New("external reference already recorded")

// LeaseRepository is the read side of the lease directory plus the writes
// lease-management tooling needs
type LeaseRepository interface {
	// Create stores a lease and its tenants
	Create(ctx context.Context, lease *domain.Lease) error

	// GetByID retrieves a lease with its tenant ids
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Lease, error)

	// ListBillable returns leases that still accrue rent in asOf's month or later
	ListBillable(ctx context.Context, asOf time.Time) ([]*domain.Lease, error)

	// Terminate ends a lease early
	Terminate(ctx context.Context, id uuid.UUID, terminationDate time.Time) error
}

// ObligationRepository defines read and insert operations for rent obligations.
// Balance changes go through Ledger.
type ObligationRepository interface {
	// InsertMissing inserts the obligations whose (lease_id, due_date) is not
	// taken yet, in one transaction, and returns the ones it inserted
	InsertMissing(ctx context.Context, obligations []*domain.RentObligation) ([]*domain.RentObligation, error)

	// GetByID retrieves an obligation
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RentObligation, error)

	// ListByLease returns a lease's obligations ordered by due date
	ListByLease(ctx context.Context, leaseID uuid.UUID) ([]*domain.RentObligation, error)

	// ListLateFeeCandidates returns unpaid or partial obligations without a
	// late fee that are due before asOf. Callers still check the grace period.
	ListLateFeeCandidates(ctx context.Context, asOf time.Time) ([]*domain.RentObligation, error)

	// ListUnsettled returns obligations with a balance due before asOf,
	// optionally for one property
	ListUnsettled(ctx context.Context, asOf time.Time, propertyID *uuid.UUID) ([]*domain.RentObligation, error)

	// ListByDueRange returns obligations due in [from, to), optionally for one property
	ListByDueRange(ctx context.Context, from, to time.Time, propertyID *uuid.UUID) ([]*domain.RentObligation, error)

	// RecordReminder counts a reminder sent for an obligation
	RecordReminder(ctx context.Context, id uuid.UUID, at time.Time) error
}

// PaymentRepository defines read operations for payment attempts and their audit trail
type PaymentRepository interface {
	// GetByID retrieves a payment attempt
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentAttempt, error)

	// GetByReference retrieves a payment attempt by processor reference
	GetByReference(ctx context.Context, ref string) (*domain.PaymentAttempt, error)

	// ListByObligation returns the attempts made against an obligation
	ListByObligation(ctx context.Context, obligationID uuid.UUID) ([]*domain.PaymentAttempt, error)

	// ListStale returns pending attempts created before cutoff
	ListStale(ctx context.Context, cutoff time.Time) ([]*domain.PaymentAttempt, error)

	// ListNeedsReview returns attempts flagged for manual review
	ListNeedsReview(ctx context.Context) ([]*domain.PaymentAttempt, error)

	// ListEvents returns the processor events recorded for a reference
	ListEvents(ctx context.Context, ref string) ([]*domain.PaymentEventRecord, error)
}

// Ledger runs balance changes inside one transaction with the touched rows locked
type Ledger interface {
	// WithinTx runs fn in a transaction, committing only if fn returns nil
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error

	// ApplyLateFee charges the obligation's late fee policy in its own transaction
	ApplyLateFee(ctx context.Context, obligationID uuid.UUID, asOf time.Time) (*domain.RentObligation, error)
}

// LedgerTx is the set of row-locked operations available inside a ledger transaction.
// Lock obligations after payments when a transaction needs both.
type LedgerTx interface {
	LockObligation(ctx context.Context, id uuid.UUID) (*domain.RentObligation, error)
	SaveObligation(ctx context.Context, obligation *domain.RentObligation) error

	LockPayment(ctx context.Context, id uuid.UUID) (*domain.PaymentAttempt, error)
	LockPaymentByReference(ctx context.Context, ref string) (*domain.PaymentAttempt, error)
	InsertPayment(ctx context.Context, payment *domain.PaymentAttempt) error
	SavePayment(ctx context.Context, payment *domain.PaymentAttempt) error

	InsertEvent(ctx context.Context, event *domain.PaymentEventRecord) error

	// ApplyPayment locks, credits and saves an obligation
	ApplyPayment(ctx context.Context, obligationID uuid.UUID, amount decimal.Decimal, at time.Time) (*domain.RentObligation, decimal.Decimal, error)

	// ApplyRefund locks, debits and saves an obligation
	ApplyRefund(ctx context.Context, obligationID uuid.UUID, amount decimal.Decimal, at time.Time) (*domain.RentObligation, error)
}

// ContactRepository looks up where to reach a tenant
type ContactRepository interface {
	// Upsert stores a tenant's name and email
	Upsert(ctx context.Context, contact *domain.TenantContact) error

	// GetByTenant retrieves a tenant's contact details
	GetByTenant(ctx context.Context, tenantID uuid.UUID) (*domain.TenantContact, error)
}
