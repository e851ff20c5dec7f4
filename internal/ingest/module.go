package ingest

import (
	"jobflow_backend/internal/events"
	"jobflow_backend/internal/fieldmap"
	apphttp "jobflow_backend/internal/http"
	"jobflow_backend/platform/logger"
	"jobflow_backend/platform/validator"
)

// Module is the parsed-record ingest module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates and initializes the ingest module.
func NewModule(platform PlatformAPI, fields fieldmap.Map, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	service := NewService(platform, fields, bus, val, log)
	return &Module{handler: NewHandler(service)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "ingest"
}

// RegisterRoutes mounts ingest routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Webhooks.POST("/parsed", m.handler.HandleParsedRecord)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
