package handler

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/rent-ledger/internal/domain"
	"github.com/segyhp/rent-ledger/internal/service"
	"github.com/segyhp/rent-ledger/pkg/response"
	"github.com/segyhp/rent-ledger/pkg/utils"
)

type ObligationHandler struct {
	obligations *service.ObligationService
	reports     *service.ReportService
	validator   *validator.Validate
	logger      logrus.FieldLogger
}

func NewObligationHandler(obligations *service.ObligationService, reports *service.ReportService, logger logrus.FieldLogger) *ObligationHandler {
	return &ObligationHandler{
		obligations: obligations,
		reports:     reports,
		validator:   NewValidator(),
		logger:      logger,
	}
}

// Generate creates the missing obligations for one lease
func (h *ObligationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	leaseID, ok := pathUUID(w, r, "leaseId")
	if !ok {
		return
	}

	var req domain.GenerateObligationsRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	result, err := h.obligations.GenerateObligations(r.Context(), leaseID, req.MonthsAhead)
	if err != nil {
		h.logger.WithError(err).WithField("lease_id", leaseID).Error("Failed to generate obligations")
		response.FromError(w, err)
		return
	}

	response.Created(w, result)
}

// GenerateAll runs generation for every billable lease
func (h *ObligationHandler) GenerateAll(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateObligationsRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	results, err := h.obligations.GenerateForActiveLeases(r.Context(), req.MonthsAhead)
	if err != nil {
		h.logger.WithError(err).Warn("Generation finished with failures")
		if results == nil {
			response.FromError(w, err)
			return
		}
	}

	response.Success(w, results)
}

func (h *ObligationHandler) ListByLease(w http.ResponseWriter, r *http.Request) {
	leaseID, ok := pathUUID(w, r, "leaseId")
	if !ok {
		return
	}

	obligations, err := h.obligations.ListObligations(r.Context(), leaseID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, obligations)
}

func (h *ObligationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	obligation, err := h.obligations.GetObligation(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, obligation)
}

// Overdue lists obligations past their grace period with a balance
func (h *ObligationHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	propertyID, ok := queryUUID(w, r, "property_id")
	if !ok {
		return
	}

	obligations, err := h.reports.ListOverdue(r.Context(), propertyID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, obligations)
}

// CollectionSummary reports billed and collected amounts for one period
func (h *ObligationHandler) CollectionSummary(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = time.Now().UTC().Format(utils.PeriodLayout)
	}

	propertyID, ok := queryUUID(w, r, "property_id")
	if !ok {
		return
	}

	summary, err := h.reports.GetCollectionSummary(r.Context(), period, propertyID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, summary)
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		response.BadRequest(w, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID parses an optional uuid query parameter; absent means nil
func queryUUID(w http.ResponseWriter, r *http.Request, name string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.BadRequest(w, "Invalid "+name, err)
		return nil, false
	}
	return &id, true
}

// asOfDate parses an optional YYYY-MM-DD date, defaulting to today in UTC
func asOfDate(w http.ResponseWriter, raw string) (time.Time, bool) {
	if raw == "" {
		return utils.DateOnly(time.Now().UTC()), true
	}
	asOf, err := utils.ParseDate(raw)
	if err != nil {
		response.BadRequest(w, "Invalid as_of, expected YYYY-MM-DD", err)
		return time.Time{}, false
	}
	return asOf, true
}
