package handler

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/rent-ledger/internal/metrics"
	"github.com/segyhp/rent-ledger/pkg/response"
)

const idPattern = "{id:[0-9a-fA-F-]{36}}"

type Handlers struct {
	Health      *HealthHandler
	Obligations *ObligationHandler
	Payments    *PaymentHandler
	Billing     *BillingHandler
	Webhooks    *WebhookHandler
}

// NewRouter mounts every route under one router with request logging and metrics
func NewRouter(h Handlers, logger logrus.FieldLogger) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(logger))
	router.Use(metrics.Middleware)

	router.HandleFunc("/health", h.Health.Health).Methods("GET")
	router.HandleFunc("/health/ready", h.Health.Ready).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/leases/{leaseId}/obligations", h.Obligations.Generate).Methods("POST")
	api.HandleFunc("/leases/{leaseId}/obligations", h.Obligations.ListByLease).Methods("GET")

	api.HandleFunc("/obligations/generate", h.Obligations.GenerateAll).Methods("POST")
	api.HandleFunc("/obligations/overdue", h.Obligations.Overdue).Methods("GET")
	api.HandleFunc("/obligations/"+idPattern, h.Obligations.Get).Methods("GET")
	api.HandleFunc("/obligations/"+idPattern+"/payments", h.Payments.Create).Methods("POST")
	api.HandleFunc("/obligations/"+idPattern+"/payments", h.Payments.ListByObligation).Methods("GET")

	api.HandleFunc("/payments", h.Payments.FindByReference).Methods("GET")
	api.HandleFunc("/payments/events", h.Payments.Events).Methods("GET")
	api.HandleFunc("/payments/stale", h.Payments.Stale).Methods("GET")
	api.HandleFunc("/payments/review", h.Payments.NeedsReview).Methods("GET")
	api.HandleFunc("/payments/"+idPattern, h.Payments.Get).Methods("GET")
	api.HandleFunc("/payments/"+idPattern+"/reference", h.Payments.AssignReference).Methods("PUT")

	api.HandleFunc("/late-fees/run", h.Billing.RunLateFees).Methods("POST")
	api.HandleFunc("/reminders/run", h.Billing.RunReminders).Methods("POST")
	api.HandleFunc("/reports/collection", h.Obligations.CollectionSummary).Methods("GET")

	api.HandleFunc("/webhooks/processor", h.Webhooks.Processor).Methods("POST")

	return router
}
