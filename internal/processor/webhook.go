package processor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/segyhp/rent-ledger/internal/domain"
	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
)

// SignatureHeader carries hex(HMAC-SHA256(secret, body))
const SignatureHeader = "X-Processor-Signature"

// Verifier checks webhook signatures
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the signature the processor would send for body
func (v *Verifier) Sign(body []byte) string {
	h := hmac.New(sha256.New, v.secret)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify rejects a body whose signature is missing or does not match.
// An empty secret never verifies anything.
func (v *Verifier) Verify(body []byte, signature string) error {
	if len(v.secret) == 0 {
		return apperrors.WrapUnverifiedEvent("webhook secret is not configured")
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return apperrors.WrapUnverifiedEvent("missing signature")
	}
	if !hmac.Equal([]byte(v.Sign(body)), []byte(strings.ToLower(signature))) {
		return apperrors.WrapUnverifiedEvent("signature mismatch")
	}
	return nil
}

type webhookPayload struct {
	ID        string      `json:"id" validate:"required,max=255"`
	Type      string      `json:"type" validate:"required"`
	Data      webhookData `json:"data" validate:"required"`
	CreatedAt time.Time   `json:"created_at"`
}

type webhookData struct {
	Reference string               `json:"reference" validate:"required,max=255"`
	Amount    decimal.Decimal      `json:"amount"`
	Metadata  domain.EventMetadata `json:"metadata"`
}

var validate = validator.New()

// ParseEvent decodes a verified webhook body into a processor event
func ParseEvent(body []byte) (*domain.ProcessorEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.WrapValidation("malformed webhook body: %v", err)
	}
	if err := validate.Struct(payload); err != nil {
		return nil, apperrors.WrapValidation("invalid webhook body: %v", err)
	}

	kind, err := domain.ParseEventKind(payload.Type)
	if err != nil {
		return nil, err
	}

	event := &domain.ProcessorEvent{
		EventID:           payload.ID,
		Kind:              kind,
		ExternalReference: payload.Data.Reference,
		Amount:            payload.Data.Amount,
		Metadata:          payload.Data.Metadata,
		OccurredAt:        payload.CreatedAt.UTC(),
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}
