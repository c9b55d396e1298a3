package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/rent-ledger/internal/domain"
	"github.com/segyhp/rent-ledger/internal/repository"
	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
	"github.com/segyhp/rent-ledger/pkg/utils"
)

// ReportService derives read-only collection views from the ledger
type ReportService struct {
	obligationRepo repository.ObligationRepository
	now            func() time.Time
}

func NewReportService(obligationRepo repository.ObligationRepository) *ReportService {
	return &ReportService{obligationRepo: obligationRepo, now: time.Now}
}

// GetCollectionSummary totals the obligations due in period (YYYY-MM), per
// property. Amounts are summed here, not in SQL: sqlite stores them as text.
func (s *ReportService) GetCollectionSummary(ctx context.Context, period string, propertyID *uuid.UUID) (*domain.CollectionSummary, error) {
	from, err := utils.ParsePeriod(period)
	if err != nil {
		return nil, apperrors.WrapValidation("period must be YYYY-MM, got %q", period)
	}

	obligations, err := s.obligationRepo.ListByDueRange(ctx, from, utils.AddMonths(from, 1), propertyID)
	if err != nil {
		return nil, apperrors.Classify(err)
	}

	key := from.Format(utils.PeriodLayout)
	byProperty := make(map[uuid.UUID]*domain.CollectionGroup)
	for _, o := range obligations {
		g, ok := byProperty[o.PropertyID]
		if !ok {
			g = &domain.CollectionGroup{
				Period:            key,
				PropertyID:        o.PropertyID,
				TotalAmount:       decimal.Zero,
				AmountPaid:        decimal.Zero,
				AmountOutstanding: decimal.Zero,
				LateFees:          decimal.Zero,
			}
			byProperty[o.PropertyID] = g
		}

		g.Obligations++
		g.TotalAmount = g.TotalAmount.Add(o.TotalAmount)
		g.AmountPaid = g.AmountPaid.Add(o.AmountPaid)
		g.AmountOutstanding = g.AmountOutstanding.Add(o.AmountOutstanding)
		g.LateFees = g.LateFees.Add(o.LateFee)

		switch o.Status {
		case domain.ObligationStatusPaid:
			g.Paid++
		case domain.ObligationStatusPartial:
			g.Partial++
		case domain.ObligationStatusUnpaid:
			g.Unpaid++
		case domain.ObligationStatusOverdue:
			g.Overdue++
		}
	}

	groups := make([]*domain.CollectionGroup, 0, len(byProperty))
	for _, g := range byProperty {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].PropertyID.String() < groups[j].PropertyID.String()
	})

	return domain.NewCollectionSummary(key, propertyID, groups), nil
}

// ListOverdue returns obligations with a balance past their grace period as
// of today, optionally for one property
func (s *ReportService) ListOverdue(ctx context.Context, propertyID *uuid.UUID) ([]*domain.RentObligation, error) {
	return s.ListOverdueAsOf(ctx, s.now(), propertyID)
}

func (s *ReportService) ListOverdueAsOf(ctx context.Context, asOf time.Time, propertyID *uuid.UUID) ([]*domain.RentObligation, error) {
	asOf = utils.DateOnly(asOf)

	unsettled, err := s.obligationRepo.ListUnsettled(ctx, asOf, propertyID)
	if err != nil {
		return nil, apperrors.Classify(err)
	}

	overdue := make([]*domain.RentObligation, 0, len(unsettled))
	for _, o := range unsettled {
		if o.IsOverdue(asOf) {
			overdue = append(overdue, o)
		}
	}
	return overdue, nil
}
