package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/segyhp/rent-ledger/internal/config"
	"github.com/segyhp/rent-ledger/internal/domain"
	"github.com/segyhp/rent-ledger/internal/metrics"
	"github.com/segyhp/rent-ledger/internal/repository"
	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
	"github.com/segyhp/rent-ledger/pkg/utils"
)

// ObligationService turns lease terms into rent obligations
type ObligationService struct {
	leaseRepo      repository.LeaseRepository
	obligationRepo repository.ObligationRepository
	config         config.BusinessConfig
	logger         logrus.FieldLogger
	now            func() time.Time
}

func NewObligationService(
	leaseRepo repository.LeaseRepository,
	obligationRepo repository.ObligationRepository,
	cfg config.BusinessConfig,
	logger logrus.FieldLogger,
) *ObligationService {
	return &ObligationService{
		leaseRepo:      leaseRepo,
		obligationRepo: obligationRepo,
		config:         cfg,
		logger:         logger,
		now:            time.Now,
	}
}

// PlanObligations lists the obligations that should exist for lease over the
// next monthsAhead periods, starting at the later of the lease start and
// today's month. Nothing is stored.
func (s *ObligationService) PlanObligations(lease *domain.Lease, monthsAhead int, today time.Time) ([]*domain.RentObligation, error) {
	if err := lease.Validate(); err != nil {
		return nil, err
	}
	if !lease.Billable() {
		return nil, apperrors.WrapInvalidState("lease %s is %s and cannot be billed", lease.ID, lease.Status)
	}
	if monthsAhead < 0 {
		return nil, apperrors.WrapValidation("months ahead cannot be negative")
	}

	start := utils.DateOnly(lease.StartDate)
	end := lease.BillingEndDate()
	windowStart := utils.MaxDate(utils.MonthStart(start), utils.MonthStart(today))
	now := s.now().UTC()

	obligations := make([]*domain.RentObligation, 0, monthsAhead)
	for i := 0; i < monthsAhead; i++ {
		month := utils.AddMonths(windowStart, i)

		// a lease starting after its due day owes the first period on its start date
		due := utils.MaxDate(utils.DueDateInMonth(month, lease.PaymentDueDay), start)
		if due.After(end) {
			break
		}

		periodStart := utils.MaxDate(month, start)
		periodEnd := utils.MinDate(utils.MonthEnd(month), end)

		base := lease.MonthlyRent
		if s.config.ProratePartialPeriods {
			base = utils.ProrateMonthly(lease.MonthlyRent, periodStart, periodEnd)
		}

		obligations = append(obligations, domain.NewRentObligation(lease, periodStart, periodEnd, due, base, now))
	}

	return obligations, nil
}

// GenerateObligations inserts the missing obligations for a lease. Running it
// again with the same window inserts nothing. monthsAhead of zero falls back
// to BILLING_MONTHS_AHEAD.
func (s *ObligationService) GenerateObligations(ctx context.Context, leaseID uuid.UUID, monthsAhead int) (*domain.GenerationResult, error) {
	lease, err := s.leaseRepo.GetByID(ctx, leaseID)
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	return s.generate(ctx, lease, monthsAhead)
}

func (s *ObligationService) generate(ctx context.Context, lease *domain.Lease, monthsAhead int) (*domain.GenerationResult, error) {
	if monthsAhead == 0 {
		monthsAhead = s.config.MonthsAhead
	}

	planned, err := s.PlanObligations(lease, monthsAhead, s.now().UTC())
	if err != nil {
		return nil, err
	}

	result := &domain.GenerationResult{LeaseID: lease.ID, Created: []*domain.RentObligation{}}
	if len(planned) == 0 {
		return result, nil
	}

	created, err := s.obligationRepo.InsertMissing(ctx, planned)
	if err != nil {
		return nil, apperrors.Classify(err)
	}

	result.Created = created
	result.Existing = len(planned) - len(created)
	metrics.ObligationsGeneratedTotal.Add(float64(len(created)))

	s.logger.WithFields(logrus.Fields{
		"lease_id": lease.ID,
		"created":  len(created),
		"existing": result.Existing,
	}).Info("obligations generated")

	return result, nil
}

// GenerateForActiveLeases runs generation for every billable lease, a few at a
// time. A failing lease is logged and does not stop the others.
func (s *ObligationService) GenerateForActiveLeases(ctx context.Context, monthsAhead int) ([]*domain.GenerationResult, error) {
	leases, err := s.leaseRepo.ListBillable(ctx, utils.DateOnly(s.now()))
	if err != nil {
		return nil, apperrors.Classify(err)
	}

	var (
		mu      sync.Mutex
		results = make([]*domain.GenerationResult, 0, len(leases))
		errs    []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit(s.config.GenerationWorkers))

	for _, lease := range leases {
		lease := lease
		g.Go(func() error {
			result, err := s.generate(gctx, lease, monthsAhead)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.WithError(err).WithField("lease_id", lease.ID).Error("obligation generation failed")
				errs = append(errs, err)
				return nil
			}
			results = append(results, result)
			return nil
		})
	}

	_ = g.Wait()
	return results, errors.Join(errs...)
}

func (s *ObligationService) GetObligation(ctx context.Context, id uuid.UUID) (*domain.RentObligation, error) {
	o, err := s.obligationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	return o, nil
}

// ListObligations returns a lease's obligations by due date
func (s *ObligationService) ListObligations(ctx context.Context, leaseID uuid.UUID) ([]*domain.RentObligation, error) {
	if _, err := s.leaseRepo.GetByID(ctx, leaseID); err != nil {
		return nil, apperrors.Classify(err)
	}

	obligations, err := s.obligationRepo.ListByLease(ctx, leaseID)
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	return obligations, nil
}
