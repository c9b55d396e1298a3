package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
)

// EventKind is what the processor says happened to a payment
type EventKind string

const (
	EventSucceeded  EventKind = "succeeded"
	EventFailed     EventKind = "failed"
	EventProcessing EventKind = "processing"
	EventRefunded   EventKind = "refunded"
)

// ParseEventKind accepts both bare kinds and the "payment.<kind>" form
func ParseEventKind(s string) (EventKind, error) {
	const prefix = "payment."
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		s = s[len(prefix):]
	}
	switch k := EventKind(s); k {
	case EventSucceeded, EventFailed, EventProcessing, EventRefunded:
		return k, nil
	}
	return "", apperrors.WrapValidation("unknown event kind %q", s)
}

// PaymentStatus is the attempt status an event of this kind leads to
func (k EventKind) PaymentStatus() string {
	switch k {
	case EventSucceeded:
		return PaymentStatusCompleted
	case EventFailed:
		return PaymentStatusFailed
	case EventProcessing:
		return PaymentStatusProcessing
	case EventRefunded:
		return PaymentStatusRefunded
	}
	return ""
}

// EventOutcome is how the reconciler disposed of an event
type EventOutcome string

const (
	OutcomeApplied          EventOutcome = "applied"
	OutcomeDuplicate        EventOutcome = "duplicate"
	OutcomeUnknownReference EventOutcome = "unknown_reference"
	OutcomeStale            EventOutcome = "stale"
)

// EventMetadata is what we attached when creating the intent
type EventMetadata struct {
	PaymentID    string `json:"payment_id,omitempty"`
	ObligationID string `json:"obligation_id,omitempty"`
	TenantID     string `json:"tenant_id,omitempty"`
}

// ProcessorEvent is a verified, decoded processor notification
type ProcessorEvent struct {
	EventID           string          `json:"event_id"`
	Kind              EventKind       `json:"kind"`
	ExternalReference string          `json:"external_reference"`
	Amount            decimal.Decimal `json:"amount"`
	Metadata          EventMetadata   `json:"metadata"`
	OccurredAt        time.Time       `json:"occurred_at"`
}

func (e *ProcessorEvent) Validate() error {
	if e.ExternalReference == "" {
		return apperrors.WrapValidation("event has no external reference")
	}
	if _, err := ParseEventKind(string(e.Kind)); err != nil {
		return err
	}
	if !e.Amount.IsPositive() {
		return apperrors.WrapValidation("event %s amount must be greater than zero", e.ExternalReference)
	}
	return nil
}

// PaymentEventRecord is the audit row kept for every accepted event
type PaymentEventRecord struct {
	Seq               int64           `json:"seq" db:"seq"`
	ID                uuid.UUID       `json:"id" db:"id"`
	PaymentID         *uuid.UUID      `json:"payment_id,omitempty" db:"payment_id"`
	ExternalReference string          `json:"external_reference" db:"external_reference"`
	ProviderEventID   string          `json:"provider_event_id" db:"provider_event_id"`
	Kind              string          `json:"kind" db:"kind"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	Outcome           string          `json:"outcome" db:"outcome"`
	Detail            string          `json:"detail,omitempty" db:"detail"`
	ReceivedAt        time.Time       `json:"received_at" db:"received_at"`
}

// NewPaymentEventRecord builds the audit row for event
func NewPaymentEventRecord(event *ProcessorEvent, paymentID *uuid.UUID, outcome EventOutcome, detail string, now time.Time) *PaymentEventRecord {
	return &PaymentEventRecord{
		ID:                uuid.New(),
		PaymentID:         paymentID,
		ExternalReference: event.ExternalReference,
		ProviderEventID:   event.EventID,
		Kind:              string(event.Kind),
		Amount:            event.Amount,
		Outcome:           string(outcome),
		Detail:            detail,
		ReceivedAt:        now,
	}
}

// ReconcileResult is returned from event ingestion
type ReconcileResult struct {
	Outcome    EventOutcome    `json:"outcome"`
	Payment    *PaymentAttempt `json:"payment"`
	Obligation *RentObligation `json:"obligation,omitempty"`
	Applied    decimal.Decimal `json:"applied"`
	Detail     string          `json:"detail,omitempty"`
}
