package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"jobflow_backend/internal/crm"
	"jobflow_backend/internal/events"
	"jobflow_backend/internal/fieldmap"
	"jobflow_backend/platform/logger"
	"jobflow_backend/platform/validator"
)

type fakeCRM struct {
	contacts      []crm.Contact
	searchErr     error
	createErr     error
	opportunities []crm.Opportunity
	created       []crm.ContactCreate
	createdOpps   []crm.OpportunityCreate
	notes         []string
}

func (f *fakeCRM) SearchContacts(_ context.Context, _, _ string) ([]crm.Contact, error) {
	return f.contacts, f.searchErr
}

func (f *fakeCRM) CreateContact(_ context.Context, _ string, create crm.ContactCreate) (crm.Contact, error) {
	if f.createErr != nil {
		return crm.Contact{}, f.createErr
	}
	f.created = append(f.created, create)
	return crm.Contact{
		ID:        "new-contact",
		FirstName: create.FirstName,
		LastName:  create.LastName,
		Email:     create.Email,
		Phone:     create.Phone,
		Tags:      create.Tags,
	}, nil
}

func (f *fakeCRM) SearchOpportunities(_ context.Context, _ string, _ crm.OpportunitySearch) ([]crm.Opportunity, error) {
	return f.opportunities, nil
}

func (f *fakeCRM) CreateOpportunity(_ context.Context, _ string, create crm.OpportunityCreate) (crm.Opportunity, error) {
	f.createdOpps = append(f.createdOpps, create)
	return crm.Opportunity{ID: "new-opp", ContactID: create.ContactID}, nil
}

func (f *fakeCRM) CreateNote(_ context.Context, _, _ string, body string) error {
	f.notes = append(f.notes, body)
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

func newIngestService(platform *fakeCRM, bus events.Bus) *Service {
	return NewService(platform, fieldmap.Default(), bus, validator.New(), logger.New("test"))
}

func TestIngestLeadWithPhoneOnly(t *testing.T) {
	platform := &fakeCRM{}
	svc := newIngestService(platform, &capturingBus{})

	longDescription := strings.Repeat("leaking boiler and radiator ", 4)
	result, err := svc.Ingest(context.Background(), "loc1", ParsedRecord{
		Type:        TypeLead,
		FirstName:   "Sam",
		LastName:    "Price",
		Phone:       "+447700900000",
		Description: longDescription,
		Provider:    "checkatrade",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != "lead_created" {
		t.Fatalf("action = %q", result.Action)
	}

	if len(platform.created) != 1 {
		t.Fatalf("created %d contacts, want 1", len(platform.created))
	}
	if platform.created[0].Phone != "+447700900000" {
		t.Fatalf("contact phone = %q", platform.created[0].Phone)
	}

	if len(platform.createdOpps) != 1 {
		t.Fatalf("created %d opportunities, want 1", len(platform.createdOpps))
	}
	opp := platform.createdOpps[0]
	if opp.PipelineStageID != fieldmap.Default().StageNewLead {
		t.Fatalf("stage = %q, want new-lead stage", opp.PipelineStageID)
	}
	if opp.Status != "open" {
		t.Fatalf("status = %q, want open", opp.Status)
	}

	jobType, _ := crm.ReadField(crm.Opportunity{CustomFields: opp.CustomFields}, fieldmap.Default().Fields.JobType)
	if len(jobType) != 50 {
		t.Fatalf("job type length = %d, want 50", len(jobType))
	}
	if !strings.HasPrefix(longDescription, jobType) {
		t.Fatalf("job type %q is not a prefix of the description", jobType)
	}

	if len(platform.notes) != 1 || !strings.Contains(platform.notes[0], longDescription) {
		t.Fatal("full description must land in a note")
	}
}

func TestIngestLeadReusesExistingContact(t *testing.T) {
	platform := &fakeCRM{contacts: []crm.Contact{{ID: "c1", Phone: "+447700900000"}}}
	svc := newIngestService(platform, &capturingBus{})

	result, err := svc.Ingest(context.Background(), "loc1", ParsedRecord{
		Type:  TypeLead,
		Phone: "+447700900000",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ContactID != "c1" {
		t.Fatalf("contact = %q, want existing c1", result.ContactID)
	}
	if len(platform.created) != 0 {
		t.Fatal("existing contact must not be recreated")
	}
}

func TestIngestLeadSkippedWithoutIdentity(t *testing.T) {
	platform := &fakeCRM{}
	svc := newIngestService(platform, &capturingBus{})

	result, err := svc.Ingest(context.Background(), "loc1", ParsedRecord{
		Type:        TypeLead,
		FirstName:   "Sam",
		Description: "fence repair",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.Action != "skipped_no_data" {
		t.Fatalf("result = %+v", result)
	}
	if len(platform.created) != 0 || len(platform.createdOpps) != 0 {
		t.Fatal("skipped record must cause no writes")
	}
}

func TestIngestLeadContactFailureSurfacesAndAlerts(t *testing.T) {
	platform := &fakeCRM{searchErr: errors.New("platform down")}
	bus := &capturingBus{}
	svc := newIngestService(platform, bus)

	_, err := svc.Ingest(context.Background(), "loc1", ParsedRecord{
		Type:  TypeLead,
		Phone: "+447700900000",
	})
	if err == nil {
		t.Fatal("identity resolution failure must surface as an error")
	}
	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	if _, ok := bus.published[0].(events.LeadIngestFailed); !ok {
		t.Fatalf("event type = %T", bus.published[0])
	}
}

func TestIngestReviewCreatesOrphanContact(t *testing.T) {
	platform := &fakeCRM{}
	svc := newIngestService(platform, &capturingBus{})

	rating := 5
	result, err := svc.Ingest(context.Background(), "loc1", ParsedRecord{
		Type:        TypeReview,
		FirstName:   "Jo",
		LastName:    "Bell",
		Description: "Great service, very tidy.",
		Provider:    "google",
		Rating:      &rating,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != "review_orphan_created" {
		t.Fatalf("action = %q", result.Action)
	}

	if len(platform.created) != 1 {
		t.Fatalf("created %d contacts, want 1", len(platform.created))
	}
	tags := platform.created[0].Tags
	if len(tags) != 1 || tags[0] != OrphanTag {
		t.Fatalf("tags = %v, want orphan tag", tags)
	}

	if len(platform.createdOpps) != 1 {
		t.Fatalf("created %d opportunities, want 1", len(platform.createdOpps))
	}
	opp := platform.createdOpps[0]
	if opp.PipelineStageID != fieldmap.Default().StageComplete || opp.Status != "won" {
		t.Fatalf("review-only opportunity = %+v, want complete stage, won", opp)
	}

	if len(platform.notes) != 1 || !strings.Contains(platform.notes[0], "5/5") {
		t.Fatalf("notes = %v", platform.notes)
	}
}

func TestIngestReviewAttachesToMostRecentOpportunity(t *testing.T) {
	platform := &fakeCRM{
		contacts: []crm.Contact{{ID: "c1", FirstName: "Jo", LastName: "Bell"}},
		opportunities: []crm.Opportunity{
			{ID: "older", CreatedAt: time.Now().Add(-48 * time.Hour)},
			{ID: "newer", CreatedAt: time.Now().Add(-2 * time.Hour)},
		},
	}
	svc := newIngestService(platform, &capturingBus{})

	result, err := svc.Ingest(context.Background(), "loc1", ParsedRecord{
		Type:      TypeReview,
		FirstName: "Jo",
		LastName:  "Bell",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != "review_attached" {
		t.Fatalf("action = %q", result.Action)
	}
	if result.OpportunityID != "newer" {
		t.Fatalf("opportunity = %q, want most recent", result.OpportunityID)
	}
	if len(platform.createdOpps) != 0 {
		t.Fatal("no new opportunity when one exists")
	}
}

func TestIngestRejectsInvalidRecord(t *testing.T) {
	svc := newIngestService(&fakeCRM{}, &capturingBus{})

	if _, err := svc.Ingest(context.Background(), "loc1", ParsedRecord{Type: "Booking"}); err == nil {
		t.Fatal("unknown type must be rejected")
	}
	if _, err := svc.Ingest(context.Background(), "loc1", ParsedRecord{Type: TypeLead, Email: "not-an-email"}); err == nil {
		t.Fatal("invalid email must be rejected")
	}
}

func TestBestNameMatchRanksByEditDistance(t *testing.T) {
	candidates := []crm.Contact{
		{ID: "far", FirstName: "Margaret", LastName: "Thorn"},
		{ID: "close", FirstName: "Jo", LastName: "Bel"},
	}

	best, ok := bestNameMatch("Jo Bell", candidates)
	if !ok || best.ID != "close" {
		t.Fatalf("best = %+v ok=%v", best, ok)
	}

	if _, ok := bestNameMatch("Completely Different", []crm.Contact{{FirstName: "Jo", LastName: "Bell"}}); ok {
		t.Fatal("distant names must not match")
	}
}
