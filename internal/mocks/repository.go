package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/rent-ledger/internal/domain"
)

type MockLeaseRepository struct {
	mock.Mock
}

func (m *MockLeaseRepository) Create(ctx context.Context, lease *domain.Lease) error {
	args := m.Called(ctx, lease)
	return args.Error(0)
}

func (m *MockLeaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lease, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lease), args.Error(1)
}

func (m *MockLeaseRepository) ListBillable(ctx context.Context, asOf time.Time) ([]*domain.Lease, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Lease), args.Error(1)
}

func (m *MockLeaseRepository) Terminate(ctx context.Context, id uuid.UUID, terminationDate time.Time) error {
	args := m.Called(ctx, id, terminationDate)
	return args.Error(0)
}

type MockObligationRepository struct {
	mock.Mock
}

func (m *MockObligationRepository) InsertMissing(ctx context.Context, obligations []*domain.RentObligation) ([]*domain.RentObligation, error) {
	args := m.Called(ctx, obligations)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RentObligation), args.Error(1)
}

func (m *MockObligationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.RentObligation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RentObligation), args.Error(1)
}

func (m *MockObligationRepository) ListByLease(ctx context.Context, leaseID uuid.UUID) ([]*domain.RentObligation, error) {
	args := m.Called(ctx, leaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RentObligation), args.Error(1)
}

func (m *MockObligationRepository) ListLateFeeCandidates(ctx context.Context, asOf time.Time) ([]*domain.RentObligation, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RentObligation), args.Error(1)
}

func (m *MockObligationRepository) ListUnsettled(ctx context.Context, asOf time.Time, propertyID *uuid.UUID) ([]*domain.RentObligation, error) {
	args := m.Called(ctx, asOf, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RentObligation), args.Error(1)
}

func (m *MockObligationRepository) ListByDueRange(ctx context.Context, from, to time.Time, propertyID *uuid.UUID) ([]*domain.RentObligation, error) {
	args := m.Called(ctx, from, to, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RentObligation), args.Error(1)
}

func (m *MockObligationRepository) RecordReminder(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentAttempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentAttempt), args.Error(1)
}

func (m *MockPaymentRepository) GetByReference(ctx context.Context, ref string) (*domain.PaymentAttempt, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentAttempt), args.Error(1)
}

func (m *MockPaymentRepository) ListByObligation(ctx context.Context, obligationID uuid.UUID) ([]*domain.PaymentAttempt, error) {
	args := m.Called(ctx, obligationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentAttempt), args.Error(1)
}

func (m *MockPaymentRepository) ListStale(ctx context.Context, cutoff time.Time) ([]*domain.PaymentAttempt, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentAttempt), args.Error(1)
}

func (m *MockPaymentRepository) ListNeedsReview(ctx context.Context) ([]*domain.PaymentAttempt, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentAttempt), args.Error(1)
}

func (m *MockPaymentRepository) ListEvents(ctx context.Context, ref string) ([]*domain.PaymentEventRecord, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentEventRecord), args.Error(1)
}
