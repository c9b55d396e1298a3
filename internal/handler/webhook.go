package handler

import (
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/segyhp/rent-ledger/internal/processor"
	"github.com/segyhp/rent-ledger/internal/service"
	"github.com/segyhp/rent-ledger/pkg/response"
)

const maxWebhookBody = 1 << 20

// WebhookHandler receives payment processor notifications. Any 2xx tells the
// processor to stop retrying, so only failures worth a retry get a 5xx.
type WebhookHandler struct {
	reconciler *service.Reconciler
	verifier   *processor.Verifier
	logger     logrus.FieldLogger
}

func NewWebhookHandler(reconciler *service.Reconciler, verifier *processor.Verifier, logger logrus.FieldLogger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		verifier:   verifier,
		logger:     logger,
	}
}

func (h *WebhookHandler) Processor(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "Unreadable webhook body", err)
		return
	}

	if err := h.verifier.Verify(body, r.Header.Get(processor.SignatureHeader)); err != nil {
		h.logger.WithError(err).WithField("remote_addr", r.RemoteAddr).Warn("Rejected unverified webhook")
		response.FromError(w, err)
		return
	}

	event, err := processor.ParseEvent(body)
	if err != nil {
		h.logger.WithError(err).Warn("Rejected malformed webhook")
		response.FromError(w, err)
		return
	}

	result, err := h.reconciler.IngestProcessorEvent(r.Context(), event)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, result)
}
