package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/rent-ledger/internal/config"
	"github.com/segyhp/rent-ledger/internal/domain"
	"github.com/segyhp/rent-ledger/internal/mocks"
	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newLease(mutate func(*domain.Lease)) *domain.Lease {
	lease := &domain.Lease{
		ID:               uuid.New(),
		PropertyID:       uuid.New(),
		UnitID:           uuid.New(),
		PrimaryTenantID:  uuid.New(),
		StartDate:        day(2025, time.January, 1),
		EndDate:          day(2025, time.December, 31),
		MonthlyRent:      decimal.NewFromInt(1200),
		PaymentDueDay:    1,
		LateFeeAmount:    decimal.NewFromInt(50),
		LateFeeGraceDays: 5,
		Status:           domain.LeaseStatusActive,
	}
	if mutate != nil {
		mutate(lease)
	}
	return lease
}

func newObligationService(cfg config.BusinessConfig) (*ObligationService, *mocks.MockLeaseRepository, *mocks.MockObligationRepository) {
	logger, _ := test.NewNullLogger()
	leaseRepo := &mocks.MockLeaseRepository{}
	obligationRepo := &mocks.MockObligationRepository{}

	s := NewObligationService(leaseRepo, obligationRepo, cfg, logger)
	s.now = clock(day(2025, time.January, 1).Add(10 * time.Hour))
	return s, leaseRepo, obligationRepo
}

func dueDates(obligations []*domain.RentObligation) []time.Time {
	out := make([]time.Time, 0, len(obligations))
	for _, o := range obligations {
		out = append(out, o.DueDate)
	}
	return out
}

func TestPlanObligations_ThreeMonthsAhead(t *testing.T) {
	s, _, _ := newObligationService(config.BusinessConfig{})
	lease := newLease(nil)

	planned, err := s.PlanObligations(lease, 3, day(2025, time.January, 1))
	require.NoError(t, err)
	require.Len(t, planned, 3)

	assert.Equal(t, []time.Time{
		day(2025, time.January, 1),
		day(2025, time.February, 1),
		day(2025, time.March, 1),
	}, dueDates(planned))

	for _, o := range planned {
		assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(1200)))
		assert.True(t, o.AmountOutstanding.Equal(decimal.NewFromInt(1200)))
		assert.True(t, o.AmountPaid.IsZero())
		assert.Equal(t, domain.ObligationStatusUnpaid, o.Status)
		assert.False(t, o.LateFeeApplied)
		assert.Equal(t, lease.PrimaryTenantID, o.TenantID)
		assert.True(t, o.PolicyLateFee.Equal(decimal.NewFromInt(50)))
		assert.Equal(t, 5, o.PolicyGraceDays)
	}
	assert.Equal(t, day(2025, time.January, 31), planned[0].PeriodEnd)
}

func TestPlanObligations_Calendar(t *testing.T) {
	tests := []struct {
		name   string
		lease  *domain.Lease
		months int
		today  time.Time
		want   []time.Time
	}{
		{
			name:   "due day clamps to short months",
			lease:  newLease(func(l *domain.Lease) { l.PaymentDueDay = 31 }),
			months: 4,
			today:  day(2025, time.January, 1),
			want: []time.Time{
				day(2025, time.January, 31),
				day(2025, time.February, 28),
				day(2025, time.March, 31),
				day(2025, time.April, 30),
			},
		},
		{
			name: "stops at termination date",
			lease: newLease(func(l *domain.Lease) {
				terminated := day(2025, time.February, 15)
				l.TerminationDate = &terminated
				l.Status = domain.LeaseStatusTerminated
			}),
			months: 6,
			today:  day(2025, time.January, 1),
			want:   []time.Time{day(2025, time.January, 1), day(2025, time.February, 1)},
		},
		{
			name: "stops at end date",
			lease: newLease(func(l *domain.Lease) {
				l.EndDate = day(2025, time.February, 20)
				l.PaymentDueDay = 25
			}),
			months: 6,
			today:  day(2025, time.January, 1),
			want:   []time.Time{day(2025, time.January, 25)},
		},
		{
			name:   "window starts at today's month",
			lease:  newLease(nil),
			months: 2,
			today:  day(2025, time.June, 10),
			want:   []time.Time{day(2025, time.June, 1), day(2025, time.July, 1)},
		},
		{
			name:   "window starts at a future lease start",
			lease:  newLease(func(l *domain.Lease) { l.StartDate = day(2025, time.March, 1) }),
			months: 1,
			today:  day(2025, time.January, 1),
			want:   []time.Time{day(2025, time.March, 1)},
		},
		{
			name:   "first period due on a mid-month start date",
			lease:  newLease(func(l *domain.Lease) { l.StartDate = day(2025, time.January, 16) }),
			months: 2,
			today:  day(2025, time.January, 1),
			want:   []time.Time{day(2025, time.January, 16), day(2025, time.February, 1)},
		},
		{
			name:   "zero months",
			lease:  newLease(nil),
			months: 0,
			today:  day(2025, time.January, 1),
			want:   []time.Time{},
		},
	}

	s, _, _ := newObligationService(config.BusinessConfig{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planned, err := s.PlanObligations(tt.lease, tt.months, tt.today)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dueDates(planned))
		})
	}
}

func TestPlanObligations_Proration(t *testing.T) {
	s, _, _ := newObligationService(config.BusinessConfig{ProratePartialPeriods: true})
	lease := newLease(func(l *domain.Lease) {
		l.StartDate = day(2025, time.January, 16)
		l.EndDate = day(2025, time.February, 28)
	})

	planned, err := s.PlanObligations(lease, 3, day(2025, time.January, 1))
	require.NoError(t, err)
	require.Len(t, planned, 2)

	// 16 of 31 days
	assert.Equal(t, "619.35", planned[0].BaseAmount.StringFixed(2))
	assert.Equal(t, day(2025, time.January, 16), planned[0].PeriodStart)
	assert.True(t, planned[1].BaseAmount.Equal(decimal.NewFromInt(1200)))
}

func TestPlanObligations_Rejects(t *testing.T) {
	s, _, _ := newObligationService(config.BusinessConfig{})

	_, err := s.PlanObligations(newLease(func(l *domain.Lease) { l.MonthlyRent = decimal.Zero }), 3, day(2025, time.January, 1))
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = s.PlanObligations(newLease(func(l *domain.Lease) { l.Status = domain.LeaseStatusDraft }), 3, day(2025, time.January, 1))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))

	_, err = s.PlanObligations(newLease(nil), -1, day(2025, time.January, 1))
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestGenerateObligations_InsertsOnlyMissing(t *testing.T) {
	s, leaseRepo, obligationRepo := newObligationService(config.BusinessConfig{MonthsAhead: 3})
	lease := newLease(nil)

	leaseRepo.On("GetByID", mock.Anything, lease.ID).Return(lease, nil)
	matchThree := mock.MatchedBy(func(o []*domain.RentObligation) bool { return len(o) == 3 })

	inserted := []*domain.RentObligation{{}, {}, {}}
	obligationRepo.On("InsertMissing", mock.Anything, matchThree).Return(inserted, nil).Once()
	obligationRepo.On("InsertMissing", mock.Anything, matchThree).Return([]*domain.RentObligation{}, nil).Once()

	first, err := s.GenerateObligations(context.Background(), lease.ID, 3)
	require.NoError(t, err)
	assert.Len(t, first.Created, 3)
	assert.Equal(t, 0, first.Existing)

	// zero falls back to the configured window
	second, err := s.GenerateObligations(context.Background(), lease.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Equal(t, 3, second.Existing)

	leaseRepo.AssertExpectations(t)
	obligationRepo.AssertExpectations(t)
}

func TestGenerateObligations_LeaseNotFound(t *testing.T) {
	s, leaseRepo, obligationRepo := newObligationService(config.BusinessConfig{})
	id := uuid.New()

	leaseRepo.On("GetByID", mock.Anything, id).Return(nil, apperrors.WrapNotFound("lease", id.String()))

	_, err := s.GenerateObligations(context.Background(), id, 3)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	obligationRepo.AssertNotCalled(t, "InsertMissing", mock.Anything, mock.Anything)
}

func TestGenerateForActiveLeases_ContinuesPastFailures(t *testing.T) {
	s, leaseRepo, obligationRepo := newObligationService(config.BusinessConfig{MonthsAhead: 2, GenerationWorkers: 2})
	good := newLease(nil)
	bad := newLease(func(l *domain.Lease) { l.MonthlyRent = decimal.Zero })

	leaseRepo.On("ListBillable", mock.Anything, day(2025, time.January, 1)).Return([]*domain.Lease{good, bad}, nil)
	obligationRepo.On("InsertMissing", mock.Anything, mock.MatchedBy(func(o []*domain.RentObligation) bool {
		return len(o) == 2 && o[0].LeaseID == good.ID
	})).Return([]*domain.RentObligation{{}, {}}, nil)

	results, err := s.GenerateForActiveLeases(context.Background(), 0)
	assert.Error(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, good.ID, results[0].LeaseID)
	assert.Len(t, results[0].Created, 2)
}

func TestGenerateObligations_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lease := h.lease(t)

	first, err := h.generator.GenerateObligations(ctx, lease.ID, 3)
	require.NoError(t, err)
	assert.Len(t, first.Created, 3)

	second, err := h.generator.GenerateObligations(ctx, lease.ID, 3)
	require.NoError(t, err)
	assert.Empty(t, second.Created)

	stored, err := h.generator.ListObligations(ctx, lease.ID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, []time.Time{
		day(2025, time.January, 1),
		day(2025, time.February, 1),
		day(2025, time.March, 1),
	}, dueDates(stored))
}
