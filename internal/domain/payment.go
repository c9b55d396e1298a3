package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
)

const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
)

const (
	PaymentMethodCard    = "card"
	PaymentMethodACH     = "ach"
	PaymentMethodCash    = "cash"
	PaymentMethodCheck   = "check"
	PaymentMethodUnknown = "unknown"
)

// ValidPaymentMethod reports whether a caller may record a payment with method
func ValidPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodCard, PaymentMethodACH, PaymentMethodCash, PaymentMethodCheck:
		return true
	}
	return false
}

// PaymentAttempt is one try at paying an obligation, created locally or first
// seen in a processor notification
type PaymentAttempt struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	ObligationID      *uuid.UUID      `json:"obligation_id,omitempty" db:"obligation_id"`
	TenantID          *uuid.UUID      `json:"tenant_id,omitempty" db:"tenant_id"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	AppliedAmount     decimal.Decimal `json:"applied_amount" db:"applied_amount"`
	Method            string          `json:"method" db:"method"`
	Status            string          `json:"status" db:"status"`
	ExternalReference *string         `json:"external_reference,omitempty" db:"external_reference"`
	NeedsReview       bool            `json:"needs_review" db:"needs_review"`
	ReviewReason      string          `json:"review_reason,omitempty" db:"review_reason"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	RefundedAt        *time.Time      `json:"refunded_at,omitempty" db:"refunded_at"`
}

// NewLocalPaymentAttempt creates a pending attempt against an obligation
func NewLocalPaymentAttempt(obligation *RentObligation, amount decimal.Decimal, method string, now time.Time) *PaymentAttempt {
	obligationID := obligation.ID
	tenantID := obligation.TenantID
	return &PaymentAttempt{
		ID:            uuid.New(),
		ObligationID:  &obligationID,
		TenantID:      &tenantID,
		Amount:        amount,
		AppliedAmount: decimal.Zero,
		Method:        method,
		Status:        PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Reference returns the external reference or an empty string
func (p *PaymentAttempt) Reference() string {
	if p.ExternalReference == nil {
		return ""
	}
	return *p.ExternalReference
}

// AssignReference binds the processor's id to a local attempt. Re-assigning
// the same reference is a no-op.
func (p *PaymentAttempt) AssignReference(ref string, now time.Time) error {
	if ref == "" {
		return apperrors.WrapValidation("external reference is required")
	}
	if p.ExternalReference != nil {
		if *p.ExternalReference == ref {
			return nil
		}
		return apperrors.WrapInvalidState("payment %s already has external reference %s", p.ID, *p.ExternalReference)
	}
	p.ExternalReference = &ref
	p.UpdatedAt = now
	return nil
}

// FlagForReview queues the attempt for manual review
func (p *PaymentAttempt) FlagForReview(reason string) {
	p.NeedsReview = true
	if p.ReviewReason == "" {
		p.ReviewReason = reason
		return
	}
	if !strings.Contains(p.ReviewReason, reason) {
		p.ReviewReason = p.ReviewReason + "; " + reason
	}
}

func (p *PaymentAttempt) MarkProcessing(now time.Time) error {
	if p.Status != PaymentStatusPending {
		return apperrors.WrapInvalidState("payment %s cannot move from %s to processing", p.ID, p.Status)
	}
	p.Status = PaymentStatusProcessing
	p.UpdatedAt = now
	return nil
}

// MarkCompleted records success; applied is the portion credited to the obligation
func (p *PaymentAttempt) MarkCompleted(applied decimal.Decimal, now time.Time) error {
	switch p.Status {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusFailed:
	default:
		return apperrors.WrapInvalidState("payment %s cannot move from %s to completed", p.ID, p.Status)
	}
	p.Status = PaymentStatusCompleted
	p.AppliedAmount = applied
	completedAt := now
	p.CompletedAt = &completedAt
	p.UpdatedAt = now
	return nil
}

func (p *PaymentAttempt) MarkFailed(now time.Time) error {
	switch p.Status {
	case PaymentStatusPending, PaymentStatusProcessing:
	default:
		return apperrors.WrapInvalidState("payment %s cannot move from %s to failed", p.ID, p.Status)
	}
	p.Status = PaymentStatusFailed
	p.UpdatedAt = now
	return nil
}

// MarkRefunded requires a completed payment
func (p *PaymentAttempt) MarkRefunded(now time.Time) error {
	if p.Status != PaymentStatusCompleted {
		return apperrors.WrapInvalidState("payment %s is %s; only completed payments can be refunded", p.ID, p.Status)
	}
	p.Status = PaymentStatusRefunded
	refundedAt := now
	p.RefundedAt = &refundedAt
	p.UpdatedAt = now
	return nil
}

// IsStale reports a pending attempt older than timeout
func (p *PaymentAttempt) IsStale(now time.Time, timeout time.Duration) bool {
	return p.Status == PaymentStatusPending && p.CreatedAt.Before(now.Add(-timeout))
}

// DTOs for requests and responses

type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,decimal_gt=0"`
	Method string          `json:"method" validate:"required,oneof=card ach cash check"`
	// Submit sends the intent to the payment processor after recording it
	Submit bool `json:"submit"`
}

type AssignReferenceRequest struct {
	ExternalReference string `json:"external_reference" validate:"required,max=255"`
}
