package webhooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"jobflow_backend/internal/crm"
	"jobflow_backend/internal/events"
	"jobflow_backend/internal/fieldmap"
	"jobflow_backend/platform/logger"
)

type fakePlatform struct {
	candidates []crm.Opportunity
	searchErr  error
	updateErr  error
	updates    map[string][]crm.CustomField
}

func (f *fakePlatform) SearchOpportunities(_ context.Context, _ string, _ crm.OpportunitySearch) ([]crm.Opportunity, error) {
	return f.candidates, f.searchErr
}

func (f *fakePlatform) UpdateOpportunity(_ context.Context, _, id string, update crm.OpportunityUpdate) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.updates == nil {
		f.updates = make(map[string][]crm.CustomField)
	}
	f.updates[id] = append(f.updates[id], update.CustomFields...)
	return nil
}

type capturingBus struct {
	published []events.Event
}

func (b *capturingBus) Publish(_ context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func (b *capturingBus) PublishSync(_ context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

func (b *capturingBus) Subscribe(string, events.Handler) {}

func newWebhookService(platform *fakePlatform, bus events.Bus) *Service {
	return NewService(platform, fieldmap.Default(), bus, logger.New("test"))
}

func fieldValue(t *testing.T, fields []crm.CustomField, id string) string {
	t.Helper()
	v, _ := crm.ReadField(crm.Opportunity{CustomFields: fields}, id)
	return v
}

func TestProcessReviewReceivedClosesLoop(t *testing.T) {
	rating := 5
	platform := &fakePlatform{candidates: []crm.Opportunity{{
		ID:        "opp1",
		Status:    "won",
		CreatedAt: time.Now().Add(-24 * time.Hour),
	}}}
	svc := newWebhookService(platform, &capturingBus{})

	result := svc.Process(context.Background(), InboundEvent{
		Type:       TypeReviewReceived,
		LocationID: "loc1",
		ContactID:  "c1",
		Rating:     &rating,
		Source:     "google",
	})

	if !result.Received || result.Action != "review_recorded" {
		t.Fatalf("result = %+v", result)
	}

	fields := fieldmap.Default().Fields
	written := platform.updates["opp1"]
	if got := fieldValue(t, written, fields.ReviewStatus); got != fieldmap.ReviewStatusSent {
		t.Fatalf("review status = %q, want Sent", got)
	}
	if got := fieldValue(t, written, fields.ReviewRating); got != "5" {
		t.Fatalf("rating = %q, want 5", got)
	}
	if got := fieldValue(t, written, fields.ReviewSource); got != "google" {
		t.Fatalf("source = %q, want google", got)
	}
}

func TestProcessPaymentMarksInvoicePaid(t *testing.T) {
	platform := &fakePlatform{candidates: []crm.Opportunity{{
		ID:        "opp1",
		Status:    "open",
		CreatedAt: time.Now().Add(-time.Hour),
	}}}
	svc := newWebhookService(platform, &capturingBus{})

	result := svc.Process(context.Background(), InboundEvent{
		Type:       TypeInvoicePaid,
		LocationID: "loc1",
		ContactID:  "c1",
		Amount:     12500,
	})

	if result.Action != "invoice_paid" {
		t.Fatalf("action = %q", result.Action)
	}
	got := fieldValue(t, platform.updates["opp1"], fieldmap.Default().Fields.InvoiceStatus)
	if got != fieldmap.PaymentStatusPaid {
		t.Fatalf("invoice status = %q, want Paid", got)
	}
}

func TestProcessUnmatchedPaymentPublishesEvent(t *testing.T) {
	bus := &capturingBus{}
	svc := newWebhookService(&fakePlatform{}, bus)

	result := svc.Process(context.Background(), InboundEvent{
		Type:       TypePaymentReceived,
		LocationID: "loc1",
		ContactID:  "c1",
		Amount:     5000,
	})

	if result.Action != "no_match" {
		t.Fatalf("action = %q", result.Action)
	}
	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	evt, ok := bus.published[0].(events.PaymentUnattributed)
	if !ok {
		t.Fatalf("published event type %T", bus.published[0])
	}
	if evt.ContactID != "c1" || evt.Amount != 5000 {
		t.Fatalf("event = %+v", evt)
	}
}

func TestProcessUnknownTypeAcknowledged(t *testing.T) {
	svc := newWebhookService(&fakePlatform{}, &capturingBus{})

	result := svc.Process(context.Background(), InboundEvent{Type: "SomethingElse"})
	if !result.Received || result.Action != "ignored" {
		t.Fatalf("result = %+v", result)
	}
}

func TestProcessMissingIdentifiersIgnored(t *testing.T) {
	platform := &fakePlatform{}
	svc := newWebhookService(platform, &capturingBus{})

	result := svc.Process(context.Background(), InboundEvent{Type: TypeReview, LocationID: "loc1"})
	if result.Action != "ignored_missing_identifiers" {
		t.Fatalf("action = %q", result.Action)
	}
	if len(platform.updates) != 0 {
		t.Fatal("no writes expected without identifiers")
	}
}

func TestProcessWriteFailureStillAcknowledged(t *testing.T) {
	platform := &fakePlatform{
		candidates: []crm.Opportunity{{ID: "opp1", Status: "won", CreatedAt: time.Now()}},
		updateErr:  errors.New("platform down"),
	}
	svc := newWebhookService(platform, &capturingBus{})

	result := svc.Process(context.Background(), InboundEvent{
		Type:       TypeReview,
		LocationID: "loc1",
		ContactID:  "c1",
	})
	if !result.Received || result.Action != "write_failed" {
		t.Fatalf("result = %+v", result)
	}
}
