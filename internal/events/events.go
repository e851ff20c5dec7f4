// Package events re-exports the platform event bus and defines the domain
// events exchanged between modules.
package events

import (
	platformevents "jobflow_backend/platform/events"
	"jobflow_backend/platform/logger"
)

// Bus is a type alias to the platform event bus interface.
type Bus = platformevents.Bus

// BaseEvent is a type alias to the platform base event.
type BaseEvent = platformevents.BaseEvent

// Event is a type alias to the platform event interface.
type Event = platformevents.Event

// Handler is a type alias to the platform handler interface.
type Handler = platformevents.Handler

// HandlerFunc is a type alias to the platform handler adapter.
type HandlerFunc = platformevents.HandlerFunc

// InMemoryBus is a type alias to the platform in-memory bus.
type InMemoryBus = platformevents.InMemoryBus

// NewBaseEvent creates a new base event with the current timestamp.
func NewBaseEvent() BaseEvent {
	return platformevents.NewBaseEvent()
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *platformevents.InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}

// PaymentUnattributed fires when a verified payment could not be matched to
// any opportunity. The payment stays in the audit trail via this event.
type PaymentUnattributed struct {
	BaseEvent
	LocationID string
	ContactID  string
	SessionID  string
	Amount     int64 // minor units; zero when the source event carried none
}

// EventName returns the event identifier.
func (PaymentUnattributed) EventName() string { return "payments.unattributed" }

// PaymentVerified fires after a processor webhook passed double verification
// and the local billing record was transitioned to paid.
type PaymentVerified struct {
	BaseEvent
	LocationID    string
	OpportunityID string
	SessionID     string
	PaymentType   string // deposit | invoice
	FirstApply    bool   // false on webhook retries for an already-paid session
}

// EventName returns the event identifier.
func (PaymentVerified) EventName() string { return "payments.verified" }

// LeadIngestFailed fires when a parsed lead could not be resolved to a
// contact. This is business-visible data loss and alerts the operator.
type LeadIngestFailed struct {
	BaseEvent
	LocationID string
	Name       string
	Phone      string
	Email      string
	Reason     string
}

// EventName returns the event identifier.
func (LeadIngestFailed) EventName() string { return "ingest.lead_failed" }
