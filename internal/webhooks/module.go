// Package webhooks provides the inbound event router bounded context module.
package webhooks

import (
	"jobflow_backend/internal/events"
	"jobflow_backend/internal/fieldmap"
	apphttp "jobflow_backend/internal/http"
	"jobflow_backend/platform/logger"
)

// Module is the webhook router module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates and initializes the webhook router module.
func NewModule(platform PlatformAPI, fields fieldmap.Map, bus events.Bus, log *logger.Logger) *Module {
	service := NewService(platform, fields, bus, log)
	return &Module{handler: NewHandler(service)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhooks"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Webhooks.POST("/events", m.handler.HandleEvent)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
