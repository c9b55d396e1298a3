package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/rent-ledger/internal/domain"
	"github.com/segyhp/rent-ledger/internal/service"
	"github.com/segyhp/rent-ledger/pkg/response"
)

// BillingHandler triggers the batch jobs the scheduler normally runs
type BillingHandler struct {
	lateFees  *service.LateFeeService
	reminders *service.ReminderService
	validator *validator.Validate
	logger    logrus.FieldLogger
}

func NewBillingHandler(lateFees *service.LateFeeService, reminders *service.ReminderService, logger logrus.FieldLogger) *BillingHandler {
	return &BillingHandler{
		lateFees:  lateFees,
		reminders: reminders,
		validator: NewValidator(),
		logger:    logger,
	}
}

// RunLateFees applies late fees as of the requested date, today by default
func (h *BillingHandler) RunLateFees(w http.ResponseWriter, r *http.Request) {
	var req domain.RunLateFeesRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}
	asOf, ok := asOfDate(w, req.AsOf)
	if !ok {
		return
	}

	report, err := h.lateFees.ApplyLateFees(r.Context(), asOf)
	if err != nil {
		h.logger.WithError(err).Error("Late fee run failed")
		response.FromError(w, err)
		return
	}

	response.Success(w, report)
}

func (h *BillingHandler) RunReminders(w http.ResponseWriter, r *http.Request) {
	var req domain.RunLateFeesRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}
	asOf, ok := asOfDate(w, req.AsOf)
	if !ok {
		return
	}

	report, err := h.reminders.SendReminders(r.Context(), asOf)
	if err != nil {
		h.logger.WithError(err).Error("Reminder run failed")
		response.FromError(w, err)
		return
	}

	response.Success(w, report)
}
