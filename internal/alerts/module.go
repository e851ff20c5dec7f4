// Package alerts emails the operator about reconciliation failures that
// would otherwise only surface in logs: payments nobody could attribute and
// leads that resolved to no identity. It subscribes to domain events so the
// reconciliation handlers never depend on email delivery.
package alerts

import (
	"context"
	"fmt"

	"jobflow_backend/internal/events"
	"jobflow_backend/platform/logger"
)

// Module handles alert-related event subscriptions.
type Module struct {
	sender Sender
	log    *logger.Logger
}

// New creates the alerts module. A nil sender disables delivery; events are
// still logged.
func New(sender Sender, log *logger.Logger) *Module {
	return &Module{sender: sender, log: log}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "alerts" }

// RegisterHandlers subscribes to the domain events that warrant an operator
// alert.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.PaymentUnattributed{}.EventName(), m)
	bus.Subscribe(events.LeadIngestFailed{}.EventName(), m)
	m.log.Info("alerts module registered event handlers")
}

// Handle routes events to the matching alert.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.PaymentUnattributed:
		return m.handlePaymentUnattributed(ctx, e)
	case events.LeadIngestFailed:
		return m.handleLeadIngestFailed(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handlePaymentUnattributed(ctx context.Context, e events.PaymentUnattributed) error {
	subject := "Unattributed payment needs review"
	body := fmt.Sprintf(
		"A verified payment could not be matched to any opportunity.\n\n"+
			"Location: %s\nContact: %s\nSession: %s\nAmount (minor units): %d\nOccurred: %s\n\n"+
			"The payment is recorded in the platform but no pipeline record was updated.",
		e.LocationID, e.ContactID, e.SessionID, e.Amount, e.OccurredAt().Format("2006-01-02 15:04:05 MST"),
	)
	return m.deliver(ctx, e.EventName(), subject, body)
}

func (m *Module) handleLeadIngestFailed(ctx context.Context, e events.LeadIngestFailed) error {
	subject := "Lead lost: contact could not be resolved"
	body := fmt.Sprintf(
		"A parsed lead could not be turned into a contact and was not recorded.\n\n"+
			"Location: %s\nName: %s\nPhone: %s\nEmail: %s\nReason: %s\nOccurred: %s",
		e.LocationID, e.Name, e.Phone, e.Email, e.Reason, e.OccurredAt().Format("2006-01-02 15:04:05 MST"),
	)
	return m.deliver(ctx, e.EventName(), subject, body)
}

func (m *Module) deliver(ctx context.Context, eventName, subject, body string) error {
	if m.sender == nil {
		m.log.Info("alert delivery disabled, event logged only", "event", eventName, "subject", subject)
		return nil
	}
	if err := m.sender.Send(ctx, subject, body); err != nil {
		m.log.Error("alert email delivery failed", "event", eventName, "error", err)
		return err
	}
	m.log.Info("alert email sent", "event", eventName, "subject", subject)
	return nil
}
