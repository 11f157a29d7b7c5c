package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/casekit/case-engine/internal/config"
	"github.com/casekit/case-engine/internal/observability"
	"github.com/casekit/case-engine/internal/persistence"
)

// HealthHandler reports process and backing-store health.
type HealthHandler struct {
	cfg     config.AppConfig
	pg      *persistence.Postgres
	rdb     *persistence.Redis
	metrics *observability.Metrics
}

// NewHealthHandler constructs the handler. pg and rdb may be nil when the
// deployment runs without those backends.
func NewHealthHandler(cfg config.AppConfig, pg *persistence.Postgres, rdb *persistence.Redis, metrics *observability.Metrics) *HealthHandler {
	return &HealthHandler{cfg: cfg, pg: pg, rdb: rdb, metrics: metrics}
}

// Health handles GET /healthz.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	checks := fiber.Map{}
	healthy := true

	if h.pg != nil && h.pg.Pool != nil {
		if err := h.pg.Ping(c.UserContext()); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		} else {
			checks["postgres"] = "ok"
		}
	}
	if h.rdb != nil && h.rdb.Client != nil {
		if err := h.rdb.Ping(c.UserContext()); err != nil {
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	status := fiber.StatusOK
	state := "ok"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		state = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":  state,
		"name":    h.cfg.Name,
		"version": h.cfg.Version,
		"checks":  checks,
	})
}

// Metrics handles GET /metricsz with the in-memory counter snapshot.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(h.metrics.Snapshot())
}
