package payments

import (
	"jobflow_backend/internal/events"
	"jobflow_backend/internal/fieldmap"
	apphttp "jobflow_backend/internal/http"
	"jobflow_backend/platform/logger"
)

// Module is the payment verification module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates and initializes the payment verification module.
func NewModule(verifier SessionVerifier, secrets SecretResolver, billing BillingStore, platform PlatformAPI, fields fieldmap.Map, bus events.Bus, log *logger.Logger) *Module {
	service := NewService(verifier, secrets, billing, platform, fields, bus, log)
	return &Module{handler: NewHandler(service)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "payments"
}

// RegisterRoutes mounts payment webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Webhooks.POST("/payments", m.handler.HandleProcessorEvent)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
