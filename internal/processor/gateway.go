package processor

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	razorpay "github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	appconfig "github.com/segyhp/rent-ledger/internal/config"
	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
)

// IntentRequest is what the processor needs to start collecting a payment
type IntentRequest struct {
	PaymentID    uuid.UUID
	ObligationID uuid.UUID
	TenantID     uuid.UUID
	Amount       decimal.Decimal
	Method       string
	Description  string
}

// Intent is the processor's answer to an intent request
type Intent struct {
	ExternalReference string
	Status            string
}

// Gateway creates payment intents at an external processor
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	Name() string
}

// NewGateway builds the gateway selected by PROCESSOR_PROVIDER
func NewGateway(cfg appconfig.ProcessorConfig, logger logrus.FieldLogger) (Gateway, error) {
	switch cfg.Name() {
	case "razorpay":
		return NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpaySecret, cfg.Currency, logger), nil
	case "mercadopago":
		return NewMercadoPagoGateway(cfg.MercadoPagoToken, cfg.PayerEmail, logger)
	case "mock", "":
		return NewMockGateway(), nil
	}
	return nil, fmt.Errorf("unknown payment processor %q", cfg.Provider)
}

func metadata(req IntentRequest) map[string]interface{} {
	return map[string]interface{}{
		"payment_id":    req.PaymentID.String(),
		"obligation_id": req.ObligationID.String(),
		"tenant_id":     req.TenantID.String(),
	}
}

// RazorpayGateway creates Razorpay orders; the order id is the external reference
type RazorpayGateway struct {
	client   *razorpay.Client
	currency string
	logger   logrus.FieldLogger
}

func NewRazorpayGateway(keyID, keySecret, currency string, logger logrus.FieldLogger) *RazorpayGateway {
	return &RazorpayGateway{
		client:   razorpay.NewClient(keyID, keySecret),
		currency: strings.ToUpper(currency),
		logger:   logger,
	}
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

func (g *RazorpayGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	// Razorpay takes the smallest currency unit
	minor := req.Amount.Shift(2).Round(0).IntPart()

	orderData := map[string]interface{}{
		"amount":   minor,
		"currency": g.currency,
		"receipt":  req.PaymentID.String(),
		"notes":    metadata(req),
	}

	order, err := g.client.Order.Create(orderData, nil)
	if err != nil {
		return nil, apperrors.WrapProcessorError(fmt.Errorf("razorpay create order: %w", err))
	}

	orderID, ok := order["id"].(string)
	if !ok || orderID == "" {
		return nil, apperrors.WrapProcessorError(fmt.Errorf("razorpay order response has no id"))
	}
	status, _ := order["status"].(string)

	g.logger.WithFields(logrus.Fields{
		"payment_id":         req.PaymentID,
		"external_reference": orderID,
	}).Info("razorpay order created")

	return &Intent{ExternalReference: orderID, Status: status}, nil
}

// MercadoPagoGateway creates Mercado Pago payments; the payment id is the external reference
type MercadoPagoGateway struct {
	client     payment.Client
	payerEmail string
	logger     logrus.FieldLogger
}

func NewMercadoPagoGateway(accessToken, payerEmail string, logger logrus.FieldLogger) (*MercadoPagoGateway, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("missing MERCADOPAGO_ACCESS_TOKEN")
	}

	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("mercado pago config: %w", err)
	}

	return &MercadoPagoGateway{
		client:     payment.NewClient(cfg),
		payerEmail: payerEmail,
		logger:     logger,
	}, nil
}

func (g *MercadoPagoGateway) Name() string { return "mercadopago" }

func (g *MercadoPagoGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	request := payment.Request{
		TransactionAmount: req.Amount.InexactFloat64(),
		Description:       req.Description,
		ExternalReference: req.PaymentID.String(),
		Metadata:          metadata(req),
		Payer: &payment.PayerRequest{
			Email: g.payerEmail,
		},
	}

	resp, err := g.client.Create(ctx, request)
	if err != nil {
		return nil, apperrors.WrapProcessorError(fmt.Errorf("mercado pago create payment: %w", err))
	}

	ref := fmt.Sprintf("%d", resp.ID)
	g.logger.WithFields(logrus.Fields{
		"payment_id":         req.PaymentID,
		"external_reference": ref,
		"provider_status":    resp.Status,
	}).Info("mercado pago payment created")

	return &Intent{ExternalReference: ref, Status: resp.Status}, nil
}

// MockGateway hands out sequential references without calling anybody
type MockGateway struct {
	seq atomic.Int64
	// Err, when set, is returned from every call
	Err error
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if g.Err != nil {
		return nil, apperrors.WrapProcessorError(g.Err)
	}
	n := g.seq.Add(1)
	return &Intent{
		ExternalReference: fmt.Sprintf("mock_%d_%d", time.Now().UTC().Unix(), n),
		Status:            "created",
	}, nil
}
