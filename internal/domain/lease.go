package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
	"github.com/segyhp/rent-ledger/pkg/utils"
)

const (
	LeaseStatusDraft      = "draft"
	LeaseStatusActive     = "active"
	LeaseStatusTerminated = "terminated"
)

// Lease is the static contract a tenant signed for a unit
type Lease struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	PropertyID       uuid.UUID       `json:"property_id" db:"property_id"`
	UnitID           uuid.UUID       `json:"unit_id" db:"unit_id"`
	PrimaryTenantID  uuid.UUID       `json:"primary_tenant_id" db:"primary_tenant_id"`
	TenantIDs        []uuid.UUID     `json:"tenant_ids" db:"-"`
	StartDate        time.Time       `json:"start_date" db:"start_date"`
	EndDate          time.Time       `json:"end_date" db:"end_date"`
	TerminationDate  *time.Time      `json:"termination_date,omitempty" db:"termination_date"`
	MonthlyRent      decimal.Decimal `json:"monthly_rent" db:"monthly_rent"`
	PaymentDueDay    int             `json:"payment_due_day" db:"payment_due_day"`
	LateFeeAmount    decimal.Decimal `json:"late_fee_amount" db:"late_fee_amount"`
	LateFeeGraceDays int             `json:"late_fee_grace_days" db:"late_fee_grace_days"`
	Status           string          `json:"status" db:"status"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// Validate checks the financial terms needed for billing
func (l *Lease) Validate() error {
	if l.ID == uuid.Nil {
		return apperrors.WrapValidation("lease id is required")
	}
	if l.PrimaryTenantID == uuid.Nil {
		return apperrors.WrapValidation("lease %s has no tenant", l.ID)
	}
	if l.StartDate.IsZero() || l.EndDate.IsZero() {
		return apperrors.WrapValidation("lease %s is missing start or end date", l.ID)
	}
	if l.EndDate.Before(l.StartDate) {
		return apperrors.WrapValidation("lease %s ends before it starts", l.ID)
	}
	if !l.MonthlyRent.IsPositive() {
		return apperrors.WrapValidation("lease %s monthly rent must be greater than zero", l.ID)
	}
	if l.PaymentDueDay < 1 || l.PaymentDueDay > 31 {
		return apperrors.WrapValidation("lease %s payment due day %d out of range", l.ID, l.PaymentDueDay)
	}
	if l.LateFeeAmount.IsNegative() {
		return apperrors.WrapValidation("lease %s late fee cannot be negative", l.ID)
	}
	if l.LateFeeGraceDays < 0 {
		return apperrors.WrapValidation("lease %s grace days cannot be negative", l.ID)
	}

	switch l.Status {
	case LeaseStatusDraft, LeaseStatusActive, LeaseStatusTerminated:
	default:
		return apperrors.WrapValidation("lease %s has unknown status %q", l.ID, l.Status)
	}
	return nil
}

// BillingEndDate is the last day rent accrues: the end date, or the
// termination date when the lease was terminated early.
func (l *Lease) BillingEndDate() time.Time {
	end := utils.DateOnly(l.EndDate)
	if l.TerminationDate != nil {
		end = utils.MinDate(end, utils.DateOnly(*l.TerminationDate))
	}
	return end
}

// Billable reports whether obligations may be generated for the lease
func (l *Lease) Billable() bool {
	return l.Status == LeaseStatusActive || l.Status == LeaseStatusTerminated
}

// TenantContact is where notifications for a tenant are delivered
type TenantContact struct {
	TenantID uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Name     string    `json:"name" db:"name"`
	Email    string    `json:"email" db:"email"`
}
