// Package http wires the fiber application: middleware ordering, route
// registration, and error translation.
package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/casekit/case-engine/internal/api/http/handlers"
	"github.com/casekit/case-engine/internal/auth"
	"github.com/casekit/case-engine/internal/config"
	"github.com/casekit/case-engine/internal/observability"
)

// RouterDependencies bundles everything route registration needs.
type RouterDependencies struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Cases   *handlers.CasesHandler
	Health  *handlers.HealthHandler
	Tokens  *auth.TokenManager
}

// NewApp builds the fiber application with all routes registered.
func NewApp(deps RouterDependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      deps.Config.App.Name,
		ErrorHandler: ErrorHandler(deps.Logger, deps.Metrics),
	})

	app.Use(observability.RequestLogger(deps.Logger, deps.Metrics))
	app.Use(RequestTimeout(deps.Config.App.RequestTimeout()))

	app.Get("/healthz", deps.Health.Health)
	app.Get("/metricsz", deps.Health.Metrics)

	v1 := app.Group("/v1", auth.Middleware(deps.Config.Auth, deps.Tokens))
	tickets := v1.Group("/tickets")
	tickets.Post("/open", deps.Cases.Open)
	tickets.Post("/activity", deps.Cases.Activity)
	tickets.Post("/resolve", deps.Cases.Resolve)
	tickets.Post("/close", deps.Cases.Close)
	tickets.Get("/open", deps.Cases.HasOpen)
	tickets.Get("/surface/:ref", deps.Cases.GetBySurface)
	tickets.Get("/surface/:ref/open", deps.Cases.IsOpenSurface)

	return app
}
