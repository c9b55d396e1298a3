package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/rent-ledger/internal/domain"
	"github.com/segyhp/rent-ledger/internal/service"
	"github.com/segyhp/rent-ledger/pkg/response"
)

type PaymentHandler struct {
	reconciler *service.Reconciler
	validator  *validator.Validate
	logger     logrus.FieldLogger
}

func NewPaymentHandler(reconciler *service.Reconciler, logger logrus.FieldLogger) *PaymentHandler {
	return &PaymentHandler{
		reconciler: reconciler,
		validator:  NewValidator(),
		logger:     logger,
	}
}

// Create records a payment intent against an obligation. With submit set the
// intent is also registered with the processor.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	obligationID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req domain.RecordPaymentRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	record := h.reconciler.RecordLocalPaymentIntent
	if req.Submit {
		record = h.reconciler.CreatePaymentIntent
	}

	payment, err := record(r.Context(), obligationID, req.Amount, req.Method)
	if err != nil {
		h.logger.WithError(err).WithField("obligation_id", obligationID).Error("Failed to create payment intent")
		response.FromError(w, err)
		return
	}

	response.Created(w, payment)
}

func (h *PaymentHandler) ListByObligation(w http.ResponseWriter, r *http.Request) {
	obligationID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	payments, err := h.reconciler.ListPayments(r.Context(), obligationID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, payments)
}

// AssignReference links a local intent to the processor's reference for it
func (h *PaymentHandler) AssignReference(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req domain.AssignReferenceRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	payment, err := h.reconciler.AssignExternalReference(r.Context(), paymentID, req.ExternalReference)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, payment)
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	payment, err := h.reconciler.GetPayment(r.Context(), paymentID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, payment)
}

// FindByReference looks up the attempt bound to ?reference=
func (h *PaymentHandler) FindByReference(w http.ResponseWriter, r *http.Request) {
	payment, err := h.reconciler.FindPayment(r.Context(), r.URL.Query().Get("reference"))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, payment)
}

// Events returns the audit trail for ?reference=, duplicates included
func (h *PaymentHandler) Events(w http.ResponseWriter, r *http.Request) {
	events, err := h.reconciler.ListEvents(r.Context(), r.URL.Query().Get("reference"))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, events)
}

func (h *PaymentHandler) Stale(w http.ResponseWriter, r *http.Request) {
	payments, err := h.reconciler.ListStaleIntents(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, payments)
}

func (h *PaymentHandler) NeedsReview(w http.ResponseWriter, r *http.Request) {
	payments, err := h.reconciler.ListNeedsReview(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, payments)
}
