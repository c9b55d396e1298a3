package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/rent-ledger/internal/config"
	"github.com/segyhp/rent-ledger/internal/handler"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: "0"},
		Database: config.DatabaseConfig{Driver: "sqlite", URL: ":memory:", AutoMigrate: true},
		Business: config.BusinessConfig{
			MonthsAhead:        3,
			StaleIntentTimeout: 48 * time.Hour,
			LateFeeWorkers:     1,
			GenerationWorkers:  1,
		},
		Processor: config.ProcessorConfig{Provider: "mock", WebhookSecret: "secret"},
		Health:    config.HealthConfig{Timeout: time.Second},
	}
}

func TestNew(t *testing.T) {
	logger, _ := test.NewNullLogger()

	a, err := New(context.Background(), testConfig(), logger)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Redis)
	assert.NotNil(t, a.Reconciler)
	assert.NotNil(t, a.Verifier)

	router := handler.NewRouter(a.Handlers(), logger)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestNew_UnknownProcessor(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig()
	cfg.Processor.Provider = "paypal"

	_, err := New(context.Background(), cfg, logger)
	assert.Error(t, err)
}
