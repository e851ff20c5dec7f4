package reviews

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"jobflow_backend/internal/crm"
	"jobflow_backend/internal/fieldmap"
	"jobflow_backend/internal/tenants"
	"jobflow_backend/platform/logger"
)

type sweepConfig struct {
	batchSize int
}

func (c sweepConfig) GetReviewSweepBatchSize() int         { return c.batchSize }
func (c sweepConfig) GetReviewSweepTimeout() time.Duration { return time.Minute }
func (c sweepConfig) GetReviewSweepInterval() time.Duration {
	return 15 * time.Minute
}
func (c sweepConfig) GetDefaultReviewURL() string { return "https://example.com/review" }

type fakePlatform struct {
	mu            sync.Mutex
	opportunities map[string]crm.Opportunity
	contacts      map[string]crm.Contact
	settings      crm.LocationSettings
	settingsErr   error
	failSendFor   map[string]bool
	sent          []crm.Message
	updated       map[string][]crm.CustomField
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		opportunities: make(map[string]crm.Opportunity),
		contacts:      make(map[string]crm.Contact),
		failSendFor:   make(map[string]bool),
		updated:       make(map[string][]crm.CustomField),
	}
}

func (f *fakePlatform) SearchOpportunities(_ context.Context, _ string, _ crm.OpportunitySearch) ([]crm.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]crm.Opportunity, 0, len(f.opportunities))
	for _, o := range f.opportunities {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakePlatform) GetOpportunity(_ context.Context, _, id string) (crm.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.opportunities[id]
	if !ok {
		return crm.Opportunity{}, errors.New("not found")
	}
	return o, nil
}

func (f *fakePlatform) UpdateOpportunity(_ context.Context, _, id string, update crm.OpportunityUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated[id] = append(f.updated[id], update.CustomFields...)
	return nil
}

func (f *fakePlatform) GetContact(_ context.Context, _, id string) (crm.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[id]
	if !ok {
		return crm.Contact{}, errors.New("contact not found")
	}
	return c, nil
}

func (f *fakePlatform) SendMessage(_ context.Context, _ string, msg crm.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSendFor[msg.ContactID] {
		return errors.New("send failed")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakePlatform) GetLocationSettings(_ context.Context, _ string) (crm.LocationSettings, error) {
	return f.settings, f.settingsErr
}

func (f *fakePlatform) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeTenants struct {
	conns []tenants.Connection
}

func (f fakeTenants) ListActive(_ context.Context) ([]tenants.Connection, error) {
	return f.conns, nil
}

func newSweepService(t *testing.T, platform *fakePlatform, lister TenantLister, batchSize int) *Service {
	t.Helper()
	svc := NewService(platform, lister, fieldmap.Default(), sweepConfig{batchSize: batchSize}, logger.New("test"))
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func scheduledOpp(id, contactID, schedule string) crm.Opportunity {
	fields := fieldmap.Default().Fields
	return crm.Opportunity{
		ID:        id,
		ContactID: contactID,
		Status:    "won",
		CustomFields: []crm.CustomField{
			crm.Field(fields.ReviewStatus, fieldmap.ReviewStatusScheduled),
			crm.Field(fields.ReviewSchedule, schedule),
			crm.Field(fields.ReviewChannel, fieldmap.ChannelSMS),
		},
	}
}

func activeConn(locationID string) tenants.Connection {
	return tenants.Connection{LocationID: locationID, AccessToken: "tok", IsActive: true}
}

func TestRunSweepSendsDueRequests(t *testing.T) {
	platform := newFakePlatform()
	platform.opportunities["opp1"] = scheduledOpp("opp1", "c1", "2026-03-01T09:00:00Z")
	platform.contacts["c1"] = crm.Contact{ID: "c1", FirstName: "Sam"}

	svc := newSweepService(t, platform, fakeTenants{conns: []tenants.Connection{activeConn("loc1")}}, 5)

	processed, err := svc.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}
	if platform.sentCount() != 1 {
		t.Fatalf("sent = %d, want 1", platform.sentCount())
	}

	status, _ := crm.ReadField(crm.Opportunity{CustomFields: platform.updated["opp1"]}, fieldmap.Default().Fields.ReviewStatus)
	if status != fieldmap.ReviewStatusSent {
		t.Fatalf("review status after sweep = %q, want Sent", status)
	}
}

func TestRunSweepSkipsNotYetDue(t *testing.T) {
	platform := newFakePlatform()
	platform.opportunities["opp1"] = scheduledOpp("opp1", "c1", "2026-03-02T09:00:00Z")
	platform.contacts["c1"] = crm.Contact{ID: "c1"}

	svc := newSweepService(t, platform, fakeTenants{conns: []tenants.Connection{activeConn("loc1")}}, 5)

	processed, err := svc.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 0 {
		t.Fatalf("processed = %d, want 0", processed)
	}
	if platform.sentCount() != 0 {
		t.Fatal("nothing should have been sent before the schedule time")
	}
}

func TestRunSweepSkipsWhenRefetchShowsHandled(t *testing.T) {
	platform := newFakePlatform()
	fields := fieldmap.Default().Fields

	// The bulk search sees Scheduled, but by re-fetch time another process
	// already flipped the status.
	handled := scheduledOpp("opp1", "c1", "2026-03-01T09:00:00Z")
	handled.CustomFields[0] = crm.Field(fields.ReviewStatus, fieldmap.ReviewStatusSent)
	platform.opportunities["opp1"] = handled
	platform.contacts["c1"] = crm.Contact{ID: "c1"}

	svc := newSweepService(t, platform, fakeTenants{conns: []tenants.Connection{activeConn("loc1")}}, 5)

	// sweepTenant filters on the searched snapshot; force the candidate path
	// by marking it Scheduled in search but Sent on re-fetch is already the
	// stored state, so processCandidate must bail out.
	if got := svc.processCandidate(context.Background(), activeConn("loc1"), "opp1", "url"); got {
		t.Fatal("handled opportunity must not be processed again")
	}
	if platform.sentCount() != 0 {
		t.Fatal("no message should be sent for an already-handled opportunity")
	}
}

func TestRunSweepSkipsMissingSchedule(t *testing.T) {
	platform := newFakePlatform()
	fields := fieldmap.Default().Fields
	platform.opportunities["opp1"] = crm.Opportunity{
		ID:        "opp1",
		ContactID: "c1",
		CustomFields: []crm.CustomField{
			crm.Field(fields.ReviewStatus, fieldmap.ReviewStatusScheduled),
		},
	}
	platform.contacts["c1"] = crm.Contact{ID: "c1"}

	svc := newSweepService(t, platform, fakeTenants{conns: []tenants.Connection{activeConn("loc1")}}, 5)

	processed, _ := svc.RunSweep(context.Background())
	if processed != 0 {
		t.Fatalf("processed = %d, want 0 for missing schedule", processed)
	}
}

func TestRunSweepBatchIsolation(t *testing.T) {
	platform := newFakePlatform()
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		platform.opportunities[id] = scheduledOpp(id, "contact-"+id, "2026-03-01T09:00:00Z")
		platform.contacts["contact-"+id] = crm.Contact{ID: "contact-" + id}
	}
	platform.failSendFor["contact-c"] = true

	svc := newSweepService(t, platform, fakeTenants{conns: []tenants.Connection{activeConn("loc1")}}, 3)

	processed, err := svc.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 6 {
		t.Fatalf("processed = %d, want 6 (one send failure)", processed)
	}
	if platform.sentCount() != 6 {
		t.Fatalf("sent = %d, want 6", platform.sentCount())
	}
	if len(platform.updated["c"]) != 0 {
		t.Fatal("failed send must not flip the review status")
	}
}

func TestRunSweepSkipsDisconnectedTenants(t *testing.T) {
	platform := newFakePlatform()
	platform.opportunities["opp1"] = scheduledOpp("opp1", "c1", "2026-03-01T09:00:00Z")
	platform.contacts["c1"] = crm.Contact{ID: "c1", FirstName: "Sam"}

	lister := fakeTenants{conns: []tenants.Connection{
		{LocationID: "disconnected", AccessToken: ""},
		activeConn("loc1"),
	}}
	svc := newSweepService(t, platform, lister, 5)

	processed, err := svc.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}
}

func TestResolveReviewURLFallbackChain(t *testing.T) {
	platform := newFakePlatform()
	svc := newSweepService(t, platform, fakeTenants{}, 5)

	platform.settings = crm.LocationSettings{ReviewURL: "https://tenant.example/review"}
	if got := svc.resolveReviewURL(context.Background(), activeConn("loc1")); got != "https://tenant.example/review" {
		t.Fatalf("got %q, want location settings URL", got)
	}

	platform.settings = crm.LocationSettings{}
	conn := activeConn("loc1")
	conn.ReviewURL = "https://conn.example/review"
	if got := svc.resolveReviewURL(context.Background(), conn); got != "https://conn.example/review" {
		t.Fatalf("got %q, want connection URL", got)
	}

	platform.settingsErr = errors.New("unavailable")
	if got := svc.resolveReviewURL(context.Background(), activeConn("loc1")); got != "https://example.com/review" {
		t.Fatalf("got %q, want configured default", got)
	}
}
