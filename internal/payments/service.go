// Package payments verifies processor checkout webhooks and reconciles the
// payment into local billing records and platform opportunity fields. The
// webhook payload is treated as a hint only: payment state is always
// re-fetched from the processor with the tenant's own secret.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"jobflow_backend/internal/crm"
	"jobflow_backend/internal/events"
	"jobflow_backend/internal/fieldmap"
	"jobflow_backend/internal/tenants"
	"jobflow_backend/platform/apperr"
	"jobflow_backend/platform/logger"
)

// SourceTag marks checkout sessions this engine issued. Sessions without it
// belong to some other integration and are acknowledged untouched.
const SourceTag = "jobflow"

// Payment types carried in session metadata.
const (
	PaymentTypeDeposit = "deposit"
	PaymentTypeInvoice = "invoice"
)

// SessionVerifier re-fetches a checkout session from the processor.
type SessionVerifier interface {
	RetrieveCheckoutSession(ctx context.Context, secret, sessionID string) (CheckoutSession, error)
}

// SecretResolver yields the tenant's payment-processor secret.
type SecretResolver interface {
	ProcessorSecret(ctx context.Context, locationID string) (string, error)
}

// BillingStore is the local record store slice the verifier needs.
type BillingStore interface {
	MarkPaid(ctx context.Context, sessionID, receiptURL string, paidAt time.Time) (bool, error)
}

// PlatformAPI is the slice of the platform client used for reconciliation.
type PlatformAPI interface {
	UpdateOpportunity(ctx context.Context, locationID, id string, update crm.OpportunityUpdate) error
	ListNotes(ctx context.Context, locationID, contactID string) ([]crm.Note, error)
	UpdateNote(ctx context.Context, locationID, contactID, noteID, body string) error
}

// ProcessorEvent is the inbound processor webhook envelope.
type ProcessorEvent struct {
	Type string `json:"type" binding:"required"`
	Data struct {
		Object SessionObject `json:"object"`
	} `json:"data"`
}

// SessionObject is the session snapshot inside the webhook. Only the id and
// metadata are used; everything else is re-fetched.
type SessionObject struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// Result describes what the verifier did with an event.
type Result struct {
	Received  bool   `json:"received"`
	Action    string `json:"action"`
	SessionID string `json:"sessionId,omitempty"`
}

// Service performs payment verification and reconciliation.
type Service struct {
	verifier SessionVerifier
	secrets  SecretResolver
	billing  BillingStore
	platform PlatformAPI
	fields   fieldmap.Map
	bus      events.Bus
	log      *logger.Logger

	now func() time.Time
}

// NewService creates the payment verification service.
func NewService(verifier SessionVerifier, secrets SecretResolver, billing BillingStore, platform PlatformAPI, fields fieldmap.Map, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		verifier: verifier,
		secrets:  secrets,
		billing:  billing,
		platform: platform,
		fields:   fields,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

type sessionMeta struct {
	locationID    string
	opportunityID string
	contactID     string
	paymentType   string
}

// HandleEvent verifies and applies one processor webhook. Unauthorized is
// returned when the tenant cannot authenticate the verification call or the
// processor does not confirm the payment; those must not be acknowledged as
// processed. Partial failures after the payment is confirmed are logged and
// still acknowledged, because the processor retrying cannot fix them.
func (s *Service) HandleEvent(ctx context.Context, evt ProcessorEvent) (Result, error) {
	if evt.Type != "checkout.session.completed" {
		s.log.Debug("payments: ignoring event type", "type", evt.Type)
		return Result{Received: true, Action: "ignored_event_type"}, nil
	}

	sessionID := evt.Data.Object.ID
	meta, ok := extractMeta(evt.Data.Object.Metadata)
	if !ok || sessionID == "" {
		s.log.Info("payments: event missing or foreign metadata", "session", sessionID)
		return Result{Received: true, Action: "ignored_invalid_metadata", SessionID: sessionID}, nil
	}

	log := s.log.WithLocationID(meta.locationID)

	secret, err := s.secrets.ProcessorSecret(ctx, meta.locationID)
	if errors.Is(err, tenants.ErrNoProcessorSecret) {
		log.Warn("payments: no processor secret configured", "session", sessionID)
		return Result{}, apperr.Unauthorized("no payment verification credentials for location")
	}
	if err != nil {
		log.Error("payments: secret resolution failed", "error", err)
		return Result{}, apperr.Internal("could not resolve verification credentials")
	}

	session, err := s.verifier.RetrieveCheckoutSession(ctx, secret, sessionID)
	if err != nil {
		log.Error("payments: session verification fetch failed", "session", sessionID, "error", err)
		return Result{}, apperr.Internal("payment verification unavailable")
	}
	if session.PaymentStatus != "paid" {
		log.Warn("payments: processor did not confirm payment", "session", sessionID, "status", session.PaymentStatus)
		return Result{}, apperr.Unauthorized("payment not confirmed by processor")
	}

	applied, err := s.billing.MarkPaid(ctx, sessionID, session.ReceiptURL(), s.now())
	if err != nil {
		// Confirmed by the processor but not recorded locally. The note and
		// opportunity writes below still run; the record catches up on retry.
		log.DatabaseError("mark billing record paid", err)
		applied = false
	}

	s.annotateQuoteNote(ctx, meta, sessionID, log)

	statusField := s.fields.Fields.InvoiceStatus
	if meta.paymentType == PaymentTypeDeposit {
		statusField = s.fields.Fields.DepositStatus
	}
	err = s.platform.UpdateOpportunity(ctx, meta.locationID, meta.opportunityID, crm.OpportunityUpdate{
		CustomFields: []crm.CustomField{
			crm.Field(statusField, fieldmap.PaymentStatusPaid),
		},
	})
	if err != nil {
		log.Warn("payments: opportunity status write failed", "opportunity", meta.opportunityID, "error", err)
	}

	s.bus.Publish(ctx, events.PaymentVerified{
		BaseEvent:     events.NewBaseEvent(),
		LocationID:    meta.locationID,
		OpportunityID: meta.opportunityID,
		SessionID:     sessionID,
		PaymentType:   meta.paymentType,
		FirstApply:    applied,
	})

	log.Info("payments: payment verified and recorded",
		"session", sessionID,
		"opportunity", meta.opportunityID,
		"type", meta.paymentType,
		"firstApply", applied)
	return Result{Received: true, Action: "payment_recorded", SessionID: sessionID}, nil
}

func extractMeta(metadata map[string]string) (sessionMeta, bool) {
	if metadata == nil || metadata["source"] != SourceTag {
		return sessionMeta{}, false
	}
	meta := sessionMeta{
		locationID:    metadata["locationId"],
		opportunityID: metadata["opportunityId"],
		contactID:     metadata["contactId"],
		paymentType:   metadata["paymentType"],
	}
	if meta.paymentType == "" {
		meta.paymentType = PaymentTypeInvoice
	}
	if meta.locationID == "" || meta.opportunityID == "" {
		return sessionMeta{}, false
	}
	return meta, true
}

// annotateQuoteNote flips the embedded payload of the quote/invoice note from
// sent to paid. The note was written when the checkout link was issued and
// carries a JSON payload after a free-text header. Best effort only.
func (s *Service) annotateQuoteNote(ctx context.Context, meta sessionMeta, sessionID string, log *logger.Logger) {
	if meta.contactID == "" {
		return
	}
	notes, err := s.platform.ListNotes(ctx, meta.locationID, meta.contactID)
	if err != nil {
		log.Warn("payments: note lookup failed", "contact", meta.contactID, "error", err)
		return
	}
	for _, note := range notes {
		if !strings.Contains(note.Body, sessionID) {
			continue
		}
		body, ok := rewriteNotePayload(note.Body, "paid", s.now())
		if !ok {
			log.Debug("payments: note payload unparsable, leaving as is", "note", note.ID)
			return
		}
		if err := s.platform.UpdateNote(ctx, meta.locationID, meta.contactID, note.ID, body); err != nil {
			log.Warn("payments: note update failed", "note", note.ID, "error", err)
		}
		return
	}
	log.Debug("payments: no note found for session", "session", sessionID)
}

// rewriteNotePayload updates the status field of the JSON payload embedded in
// a note body, preserving any free-text prefix before the payload.
func rewriteNotePayload(body, status string, paidAt time.Time) (string, bool) {
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return "", false
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(body[start:end+1]), &payload); err != nil {
		return "", false
	}
	payload["status"] = status
	payload["paidAt"] = paidAt.UTC().Format(time.RFC3339)

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", false
	}
	return body[:start] + string(raw) + body[end+1:], true
}
