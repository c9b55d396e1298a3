package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CollectionGroup aggregates one period and property
type CollectionGroup struct {
	Period            string          `json:"period" db:"period"`
	PropertyID        uuid.UUID       `json:"property_id" db:"property_id"`
	Obligations       int             `json:"obligations" db:"obligations"`
	TotalAmount       decimal.Decimal `json:"total_amount" db:"total_amount"`
	AmountPaid        decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	AmountOutstanding decimal.Decimal `json:"amount_outstanding" db:"amount_outstanding"`
	LateFees          decimal.Decimal `json:"late_fees" db:"late_fees"`
	Paid              int             `json:"paid" db:"paid"`
	Partial           int             `json:"partial" db:"partial"`
	Unpaid            int             `json:"unpaid" db:"unpaid"`
	Overdue           int             `json:"overdue" db:"overdue"`
	CollectionRate    decimal.Decimal `json:"collection_rate" db:"-"`
}

// CollectionSummary is the collection report for a billing period
type CollectionSummary struct {
	Period            string             `json:"period"`
	PropertyID        *uuid.UUID         `json:"property_id,omitempty"`
	Groups            []*CollectionGroup `json:"groups"`
	TotalAmount       decimal.Decimal    `json:"total_amount"`
	AmountPaid        decimal.Decimal    `json:"amount_paid"`
	AmountOutstanding decimal.Decimal    `json:"amount_outstanding"`
	LateFees          decimal.Decimal    `json:"late_fees"`
	CollectionRate    decimal.Decimal    `json:"collection_rate"`
}

// CollectionRate is paid / total as a percentage with two decimals
func CollectionRate(paid, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return paid.Div(total).Mul(decimal.NewFromInt(100)).Round(2)
}

// NewCollectionSummary totals groups into a summary
func NewCollectionSummary(period string, propertyID *uuid.UUID, groups []*CollectionGroup) *CollectionSummary {
	s := &CollectionSummary{
		Period:            period,
		PropertyID:        propertyID,
		Groups:            groups,
		TotalAmount:       decimal.Zero,
		AmountPaid:        decimal.Zero,
		AmountOutstanding: decimal.Zero,
		LateFees:          decimal.Zero,
	}
	if s.Groups == nil {
		s.Groups = []*CollectionGroup{}
	}

	for _, g := range s.Groups {
		g.CollectionRate = CollectionRate(g.AmountPaid, g.TotalAmount)
		s.TotalAmount = s.TotalAmount.Add(g.TotalAmount)
		s.AmountPaid = s.AmountPaid.Add(g.AmountPaid)
		s.AmountOutstanding = s.AmountOutstanding.Add(g.AmountOutstanding)
		s.LateFees = s.LateFees.Add(g.LateFees)
	}
	s.CollectionRate = CollectionRate(s.AmountPaid, s.TotalAmount)
	return s
}

// LateFeeFailure is one obligation the batch could not charge
type LateFeeFailure struct {
	ObligationID uuid.UUID `json:"obligation_id"`
	Code         string    `json:"code"`
	Error        string    `json:"error"`
}

// LateFeeReport summarises one late fee run
type LateFeeReport struct {
	AsOf       time.Time         `json:"as_of"`
	Candidates int               `json:"candidates"`
	Updated    int               `json:"updated"`
	Skipped    int               `json:"skipped"`
	Failures   []*LateFeeFailure `json:"failures"`
}

// GenerationResult lists what one generation call inserted
type GenerationResult struct {
	LeaseID  uuid.UUID         `json:"lease_id"`
	Created  []*RentObligation `json:"created"`
	Existing int               `json:"existing"`
}

// ReminderReport summarises one reminder run
type ReminderReport struct {
	AsOf     time.Time `json:"as_of"`
	Upcoming int       `json:"upcoming"`
	PastDue  int       `json:"past_due"`
	Notified int       `json:"notified"`
}

type GenerateObligationsRequest struct {
	MonthsAhead int `json:"months_ahead" validate:"gte=0,lte=24"`
}

type RunLateFeesRequest struct {
	AsOf string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}
