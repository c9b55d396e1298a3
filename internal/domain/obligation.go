package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
	"github.com/segyhp/rent-ledger/pkg/utils"
)

const (
	ObligationStatusUnpaid  = "unpaid"
	ObligationStatusPartial = "partial"
	ObligationStatusPaid    = "paid"
	ObligationStatusOverdue = "overdue"
)

// RentObligation is one billing period's rent charge for a lease.
// Late fee policy, tenant and property are copied from the lease when the
// obligation is generated.
type RentObligation struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	LeaseID           uuid.UUID       `json:"lease_id" db:"lease_id"`
	TenantID          uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	PropertyID        uuid.UUID       `json:"property_id" db:"property_id"`
	UnitID            uuid.UUID       `json:"unit_id" db:"unit_id"`
	PeriodStart       time.Time       `json:"period_start" db:"period_start"`
	PeriodEnd         time.Time       `json:"period_end" db:"period_end"`
	DueDate           time.Time       `json:"due_date" db:"due_date"`
	BaseAmount        decimal.Decimal `json:"base_amount" db:"base_amount"`
	LateFee           decimal.Decimal `json:"late_fee" db:"late_fee"`
	TotalAmount       decimal.Decimal `json:"total_amount" db:"total_amount"`
	AmountPaid        decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	AmountOutstanding decimal.Decimal `json:"amount_outstanding" db:"amount_outstanding"`
	Status            string          `json:"status" db:"status"`
	LateFeeApplied    bool            `json:"late_fee_applied" db:"late_fee_applied"`
	PolicyLateFee     decimal.Decimal `json:"policy_late_fee" db:"policy_late_fee"`
	PolicyGraceDays   int             `json:"policy_grace_days" db:"policy_grace_days"`
	PaidAt            *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	RemindersSent     int             `json:"reminders_sent" db:"reminders_sent"`
	LastReminderAt    *time.Time      `json:"last_reminder_at,omitempty" db:"last_reminder_at"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// NewRentObligation builds an unpaid obligation for one period of a lease
func NewRentObligation(lease *Lease, periodStart, periodEnd, dueDate time.Time, base decimal.Decimal, now time.Time) *RentObligation {
	o := &RentObligation{
		ID:              uuid.New(),
		LeaseID:         lease.ID,
		TenantID:        lease.PrimaryTenantID,
		PropertyID:      lease.PropertyID,
		UnitID:          lease.UnitID,
		PeriodStart:     utils.DateOnly(periodStart),
		PeriodEnd:       utils.DateOnly(periodEnd),
		DueDate:         utils.DateOnly(dueDate),
		BaseAmount:      base,
		LateFee:         decimal.Zero,
		AmountPaid:      decimal.Zero,
		Status:          ObligationStatusUnpaid,
		PolicyLateFee:   lease.LateFeeAmount,
		PolicyGraceDays: lease.LateFeeGraceDays,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	o.recompute()
	return o
}

func (o *RentObligation) recompute() {
	o.TotalAmount = o.BaseAmount.Add(o.LateFee)
	o.AmountOutstanding = o.TotalAmount.Sub(o.AmountPaid)
}

// CheckInvariants verifies the stored balances agree with each other
func (o *RentObligation) CheckInvariants() error {
	if !o.TotalAmount.Equal(o.BaseAmount.Add(o.LateFee)) {
		return apperrors.WrapConsistency("obligation %s total %s != base %s + late fee %s",
			o.ID, o.TotalAmount, o.BaseAmount, o.LateFee)
	}
	if !o.AmountOutstanding.Equal(o.TotalAmount.Sub(o.AmountPaid)) {
		return apperrors.WrapConsistency("obligation %s outstanding %s != total %s - paid %s",
			o.ID, o.AmountOutstanding, o.TotalAmount, o.AmountPaid)
	}
	if o.AmountOutstanding.IsNegative() {
		return apperrors.WrapConsistency("obligation %s outstanding is negative (%s)", o.ID, o.AmountOutstanding)
	}
	if o.AmountPaid.IsNegative() {
		return apperrors.WrapConsistency("obligation %s amount paid is negative (%s)", o.ID, o.AmountPaid)
	}
	return nil
}

// ApplyPayment credits up to the outstanding balance and returns the amount
// actually applied. Anything above the balance is left to the caller.
func (o *RentObligation) ApplyPayment(amount decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, apperrors.WrapValidation("payment amount must be greater than zero")
	}
	if err := o.CheckInvariants(); err != nil {
		return decimal.Zero, err
	}

	applied := decimal.Min(amount, o.AmountOutstanding)
	if applied.IsZero() {
		return decimal.Zero, nil
	}

	o.AmountPaid = o.AmountPaid.Add(applied)
	o.recompute()

	if o.AmountOutstanding.Sign() <= 0 {
		o.Status = ObligationStatusPaid
		paidAt := at
		o.PaidAt = &paidAt
	} else {
		o.Status = ObligationStatusPartial
	}
	o.UpdatedAt = at

	return applied, o.CheckInvariants()
}

// ApplyRefund debits amount from what was paid and demotes the status
func (o *RentObligation) ApplyRefund(amount decimal.Decimal, at time.Time) error {
	if !amount.IsPositive() {
		return apperrors.WrapValidation("refund amount must be greater than zero")
	}
	if amount.GreaterThan(o.AmountPaid) {
		return apperrors.WrapConsistency("obligation %s refund %s exceeds amount paid %s",
			o.ID, amount, o.AmountPaid)
	}

	o.AmountPaid = o.AmountPaid.Sub(amount)
	o.recompute()

	switch {
	case o.AmountPaid.IsZero() && o.LateFeeApplied:
		o.Status = ObligationStatusOverdue
	case o.AmountPaid.IsZero():
		o.Status = ObligationStatusUnpaid
	case o.AmountOutstanding.IsPositive():
		o.Status = ObligationStatusPartial
	default:
		o.Status = ObligationStatusPaid
	}
	if o.Status != ObligationStatusPaid {
		o.PaidAt = nil
	}
	o.UpdatedAt = at

	return o.CheckInvariants()
}

// GraceEnds is the last day the obligation can be paid without a late fee
func (o *RentObligation) GraceEnds() time.Time {
	return utils.DateOnly(o.DueDate).AddDate(0, 0, o.PolicyGraceDays)
}

// LateFeeDue reports whether a late fee may be applied as of asOf
func (o *RentObligation) LateFeeDue(asOf time.Time) bool {
	if o.LateFeeApplied {
		return false
	}
	if o.Status != ObligationStatusUnpaid && o.Status != ObligationStatusPartial {
		return false
	}
	return o.GraceEnds().Before(utils.DateOnly(asOf))
}

// ApplyLateFee charges fee once. The late_fee_applied flag is the only
// guard against charging twice and is never cleared.
func (o *RentObligation) ApplyLateFee(fee decimal.Decimal, asOf time.Time) error {
	if fee.IsNegative() {
		return apperrors.WrapValidation("late fee cannot be negative")
	}
	if !o.LateFeeDue(asOf) {
		return apperrors.WrapInvalidState("obligation %s is not eligible for a late fee (status %s, applied %t)",
			o.ID, o.Status, o.LateFeeApplied)
	}

	o.LateFee = fee
	o.recompute()
	if o.AmountOutstanding.IsNegative() {
		return apperrors.WrapConsistency("obligation %s late fee %s leaves outstanding negative (%s)",
			o.ID, fee, o.AmountOutstanding)
	}

	o.LateFeeApplied = true
	if o.AmountPaid.IsZero() {
		o.Status = ObligationStatusOverdue
	}
	o.UpdatedAt = asOf

	return o.CheckInvariants()
}

// IsOverdue reports an outstanding balance past its grace period
func (o *RentObligation) IsOverdue(asOf time.Time) bool {
	if !o.AmountOutstanding.IsPositive() {
		return false
	}
	return o.Status == ObligationStatusOverdue || o.GraceEnds().Before(utils.DateOnly(asOf))
}
