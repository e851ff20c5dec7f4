// Package reviews provides the review request bounded context module.
package reviews

import (
	"jobflow_backend/internal/fieldmap"
	apphttp "jobflow_backend/internal/http"
	"jobflow_backend/platform/config"
	"jobflow_backend/platform/logger"
)

// Module is the reviews bounded context module implementing http.Module.
type Module struct {
	service *Service
	handler *Handler
}

// NewModule creates and initializes the reviews module with its dependencies.
func NewModule(platform PlatformAPI, tenantLister TenantLister, fields fieldmap.Map, cfg config.ReviewSweepConfig, log *logger.Logger) *Module {
	service := NewService(platform, tenantLister, fields, cfg, log)
	handler := NewHandler(service, cfg.GetReviewSweepTimeout(), log)
	return &Module{service: service, handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "reviews"
}

// Service exposes the sweep service to the scheduler worker.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts the trigger route on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Jobs.POST("/review-sweep", m.handler.HandleRunSweep)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
