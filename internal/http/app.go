// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"lead_outreach_backend/internal/events"
	"lead_outreach_backend/platform/config"
	"lead_outreach_backend/platform/logger"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// main.go populates it and passes it to the router.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health is pinged by /api/health; nil reports healthy.
	Health   HealthChecker
	EventBus events.Bus
	Modules  []Module
}
