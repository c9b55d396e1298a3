package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/segyhp/rent-ledger/pkg/response"
)

// HealthCheck is one named readiness dependency
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// DatabaseCheck pings db and confirms the ledger tables exist
func DatabaseCheck(db *sqlx.DB) HealthCheck {
	return HealthCheck{
		Name: "database",
		Check: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
			var n int
			return db.GetContext(ctx, &n, `SELECT COUNT(*) FROM rent_obligations WHERE 1 = 0`)
		},
	}
}

// RedisCheck pings the lock store
func RedisCheck(client *redis.Client) HealthCheck {
	return HealthCheck{
		Name: "redis",
		Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}

type HealthHandler struct {
	checks  []HealthCheck
	timeout time.Duration
}

// NewHealthHandler runs checks on every readiness request, all of them
// sharing one deadline.
func NewHealthHandler(timeout time.Duration, checks ...HealthCheck) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{
		checks:  checks,
		timeout: timeout,
	}
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Health reports that the process is serving
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Checks:    map[string]string{},
	})
}

// Ready runs every check concurrently and answers 503 if any fails
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := h.run(r.Context())
	if status.Status != "ok" {
		response.JSON(w, http.StatusServiceUnavailable, status)
		return
	}
	response.Success(w, status)
}

func (h *HealthHandler) run(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]string, len(h.checks)),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, c := range h.checks {
		c := c
		g.Go(func() error {
			result := "ok"
			if err := c.Check(ctx); err != nil {
				result = "failed: " + err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			status.Checks[c.Name] = result
			if result != "ok" {
				status.Status = "error"
			}
			return nil
		})
	}
	_ = g.Wait()

	return status
}
