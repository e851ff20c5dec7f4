// Package webhooks routes pushed platform/ecosystem events to the matching
// reconciliation. Events arrive weakly correlated (a contact id and little
// else), so attribution runs through the priority-chain resolver.
package webhooks

import (
	"context"
	"strconv"

	"jobflow_backend/internal/attribution"
	"jobflow_backend/internal/crm"
	"jobflow_backend/internal/events"
	"jobflow_backend/internal/fieldmap"
	"jobflow_backend/platform/logger"
)

// Event type values recognized by the router.
const (
	TypeReviewReceived  = "ReviewReceived"
	TypeReview          = "Review"
	TypePaymentReceived = "PaymentReceived"
	TypeInvoicePaid     = "InvoicePaid"
)

// PlatformAPI is the slice of the platform client the router needs.
type PlatformAPI interface {
	SearchOpportunities(ctx context.Context, locationID string, search crm.OpportunitySearch) ([]crm.Opportunity, error)
	UpdateOpportunity(ctx context.Context, locationID, id string, update crm.OpportunityUpdate) error
}

// InboundEvent is the generic pushed event shape, typed by Type.
type InboundEvent struct {
	Type       string `json:"type" binding:"required"`
	LocationID string `json:"locationId"`
	ContactID  string `json:"contactId"`
	Rating     *int   `json:"rating,omitempty"`
	Source     string `json:"source,omitempty"`
	Amount     int64  `json:"amount,omitempty"`
}

// Result describes what the router did with an event. It is always a
// success from the sender's point of view.
type Result struct {
	Received bool   `json:"received"`
	Type     string `json:"type"`
	Action   string `json:"action"`
}

// Service applies reconciliations for routed events.
type Service struct {
	platform PlatformAPI
	fields   fieldmap.Map
	bus      events.Bus
	log      *logger.Logger
}

// NewService creates the webhook router service.
func NewService(platform PlatformAPI, fields fieldmap.Map, bus events.Bus, log *logger.Logger) *Service {
	return &Service{platform: platform, fields: fields, bus: bus, log: log}
}

// Process classifies the event by type and applies the matching
// reconciliation. It never returns an error: events the engine chooses not
// to act on are acknowledged, because the sender's retry policy is unknown.
func (s *Service) Process(ctx context.Context, evt InboundEvent) Result {
	switch evt.Type {
	case TypeReviewReceived, TypeReview:
		return Result{Received: true, Type: evt.Type, Action: s.reconcileReview(ctx, evt)}
	case TypePaymentReceived, TypeInvoicePaid:
		return Result{Received: true, Type: evt.Type, Action: s.reconcilePayment(ctx, evt)}
	default:
		s.log.Debug("webhook: unknown event type acknowledged", "type", evt.Type)
		return Result{Received: true, Type: evt.Type, Action: "ignored"}
	}
}

func (s *Service) reconcileReview(ctx context.Context, evt InboundEvent) string {
	log := s.log.WithLocationID(evt.LocationID)
	if evt.LocationID == "" || evt.ContactID == "" {
		log.Info("webhook: review event missing identifiers", "type", evt.Type)
		return "ignored_missing_identifiers"
	}

	target, ok := s.resolveTarget(ctx, evt, attribution.KindReview)
	if !ok {
		log.Info("webhook: review received with no matching opportunity", "contact", evt.ContactID)
		return "no_match"
	}

	fieldsUpdate := []crm.CustomField{
		// Sent with a recorded rating marks the review loop closed.
		crm.Field(s.fields.Fields.ReviewStatus, fieldmap.ReviewStatusSent),
	}
	if evt.Rating != nil {
		fieldsUpdate = append(fieldsUpdate, crm.Field(s.fields.Fields.ReviewRating, strconv.Itoa(*evt.Rating)))
	}
	if evt.Source != "" {
		fieldsUpdate = append(fieldsUpdate, crm.Field(s.fields.Fields.ReviewSource, evt.Source))
	}

	err := s.platform.UpdateOpportunity(ctx, evt.LocationID, target.ID, crm.OpportunityUpdate{
		CustomFields: fieldsUpdate,
	})
	if err != nil {
		log.Warn("webhook: review reconciliation write failed", "opportunity", target.ID, "error", err)
		return "write_failed"
	}

	log.Info("webhook: review reconciled", "opportunity", target.ID)
	return "review_recorded"
}

func (s *Service) reconcilePayment(ctx context.Context, evt InboundEvent) string {
	log := s.log.WithLocationID(evt.LocationID)
	if evt.LocationID == "" || evt.ContactID == "" {
		log.Info("webhook: payment event missing identifiers", "type", evt.Type)
		return "ignored_missing_identifiers"
	}

	target, ok := s.resolveTarget(ctx, evt, attribution.KindPayment)
	if !ok {
		// A payment must never vanish silently from the audit trail.
		log.Warn("webhook: payment could not be attributed", "contact", evt.ContactID, "amount", evt.Amount)
		s.bus.Publish(ctx, events.PaymentUnattributed{
			BaseEvent:  events.NewBaseEvent(),
			LocationID: evt.LocationID,
			ContactID:  evt.ContactID,
			Amount:     evt.Amount,
		})
		return "no_match"
	}

	err := s.platform.UpdateOpportunity(ctx, evt.LocationID, target.ID, crm.OpportunityUpdate{
		CustomFields: []crm.CustomField{
			crm.Field(s.fields.Fields.InvoiceStatus, fieldmap.PaymentStatusPaid),
		},
	})
	if err != nil {
		log.Warn("webhook: payment reconciliation write failed", "opportunity", target.ID, "error", err)
		return "write_failed"
	}

	log.Info("webhook: invoice marked paid", "opportunity", target.ID)
	return "invoice_paid"
}

func (s *Service) resolveTarget(ctx context.Context, evt InboundEvent, kind attribution.EventKind) (crm.Opportunity, bool) {
	candidates, err := s.platform.SearchOpportunities(ctx, evt.LocationID, crm.OpportunitySearch{
		PipelineID: s.fields.PipelineID,
		ContactID:  evt.ContactID,
	})
	if err != nil {
		s.log.WithLocationID(evt.LocationID).Warn("webhook: candidate search failed", "contact", evt.ContactID, "error", err)
		return crm.Opportunity{}, false
	}
	return attribution.Resolve(kind, candidates, s.fields.Fields.ReviewStatus)
}
