// Package ingest turns structured parse results into platform records. The
// parsing itself happens upstream; this package only resolves identities and
// writes contacts, opportunities and notes.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"jobflow_backend/internal/crm"
	"jobflow_backend/internal/events"
	"jobflow_backend/internal/fieldmap"
	"jobflow_backend/platform/apperr"
	"jobflow_backend/platform/logger"
	"jobflow_backend/platform/phone"
	"jobflow_backend/platform/validator"

	"github.com/agnivade/levenshtein"
)

// Parsed record types.
const (
	TypeLead   = "Lead"
	TypeReview = "Review"
)

// OrphanTag marks contacts created without phone or email so the operator
// can find and merge them later.
const OrphanTag = "orphan-review"

const jobTypeMaxLen = 50

// PlatformAPI is the slice of the platform client the ingestor needs.
type PlatformAPI interface {
	SearchContacts(ctx context.Context, locationID, query string) ([]crm.Contact, error)
	CreateContact(ctx context.Context, locationID string, create crm.ContactCreate) (crm.Contact, error)
	SearchOpportunities(ctx context.Context, locationID string, search crm.OpportunitySearch) ([]crm.Opportunity, error)
	CreateOpportunity(ctx context.Context, locationID string, create crm.OpportunityCreate) (crm.Opportunity, error)
	CreateNote(ctx context.Context, locationID, contactID, body string) error
}

// ParsedRecord is a structured parse result pushed by the upstream parser.
type ParsedRecord struct {
	Type        string `json:"type" binding:"required" validate:"required,oneof=Lead Review"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Phone       string `json:"phone"`
	Email       string `json:"email" validate:"omitempty,email"`
	Postcode    string `json:"postcode"`
	Description string `json:"description"`
	Provider    string `json:"provider"`
	Source      string `json:"source"`
	Rating      *int   `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
}

func (r ParsedRecord) fullName() string {
	return strings.TrimSpace(strings.TrimSpace(r.FirstName) + " " + strings.TrimSpace(r.LastName))
}

// Result reports what the ingestor created or attached to.
type Result struct {
	Success       bool   `json:"success"`
	Type          string `json:"type"`
	Action        string `json:"action"`
	ContactID     string `json:"contactId,omitempty"`
	OpportunityID string `json:"opportunityId,omitempty"`
}

// Service resolves parsed records into platform writes.
type Service struct {
	platform PlatformAPI
	fields   fieldmap.Map
	bus      events.Bus
	val      *validator.Validator
	log      *logger.Logger
}

// NewService creates the ingest service.
func NewService(platform PlatformAPI, fields fieldmap.Map, bus events.Bus, val *validator.Validator, log *logger.Logger) *Service {
	return &Service{platform: platform, fields: fields, bus: bus, val: val, log: log}
}

// Ingest applies one parsed record. Identity resolution failure is the one
// error path that surfaces to the caller: a lead that resolves to nothing is
// business-visible data loss, not something to swallow.
func (s *Service) Ingest(ctx context.Context, locationID string, rec ParsedRecord) (Result, error) {
	if err := s.val.Struct(rec); err != nil {
		return Result{}, apperr.Validation(err.Error())
	}

	switch rec.Type {
	case TypeReview:
		return s.ingestReview(ctx, locationID, rec)
	case TypeLead:
		return s.ingestLead(ctx, locationID, rec)
	default:
		return Result{}, apperr.BadRequest("unknown record type: " + rec.Type)
	}
}

func (s *Service) ingestLead(ctx context.Context, locationID string, rec ParsedRecord) (Result, error) {
	log := s.log.WithLocationID(locationID)

	normalizedPhone := phone.NormalizeE164(rec.Phone)
	email := strings.TrimSpace(rec.Email)
	if normalizedPhone == "" && email == "" {
		// Partial parses are expected; nothing to key an identity on.
		log.Info("ingest: lead skipped, no phone or email", "name", rec.fullName())
		return Result{Success: true, Type: TypeLead, Action: "skipped_no_data"}, nil
	}

	query := normalizedPhone
	if query == "" {
		query = email
	}
	contact, err := s.resolveContact(ctx, locationID, query, crm.ContactCreate{
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
		Email:     email,
		Phone:     normalizedPhone,
	})
	if err != nil {
		s.reportIngestFailure(ctx, locationID, rec, err)
		return Result{}, apperr.Internal("lead contact could not be resolved")
	}

	opp, err := s.platform.CreateOpportunity(ctx, locationID, crm.OpportunityCreate{
		Name:            opportunityName(rec),
		ContactID:       contact.ID,
		PipelineID:      s.fields.PipelineID,
		PipelineStageID: s.fields.StageNewLead,
		Status:          "open",
		CustomFields:    s.identitySnapshot(contact, rec),
	})
	if err != nil {
		log.Error("ingest: opportunity creation failed", "contact", contact.ID, "error", err)
		return Result{}, apperr.Internal("opportunity could not be created")
	}

	if rec.Description != "" {
		if err := s.platform.CreateNote(ctx, locationID, contact.ID, leadNote(rec)); err != nil {
			log.Warn("ingest: lead note write failed", "contact", contact.ID, "error", err)
		}
	}

	log.Info("ingest: lead recorded", "contact", contact.ID, "opportunity", opp.ID, "provider", rec.Provider)
	return Result{Success: true, Type: TypeLead, Action: "lead_created", ContactID: contact.ID, OpportunityID: opp.ID}, nil
}

func (s *Service) ingestReview(ctx context.Context, locationID string, rec ParsedRecord) (Result, error) {
	log := s.log.WithLocationID(locationID)

	contact, created, err := s.resolveReviewContact(ctx, locationID, rec)
	if err != nil {
		s.reportIngestFailure(ctx, locationID, rec, err)
		return Result{}, apperr.Internal("review contact could not be resolved")
	}

	target, err := s.resolveReviewOpportunity(ctx, locationID, contact, rec)
	if err != nil {
		log.Error("ingest: review opportunity resolution failed", "contact", contact.ID, "error", err)
		return Result{}, apperr.Internal("review opportunity could not be resolved")
	}

	if err := s.platform.CreateNote(ctx, locationID, contact.ID, reviewNote(rec)); err != nil {
		log.Warn("ingest: review note write failed", "contact", contact.ID, "error", err)
	}

	action := "review_attached"
	if created {
		action = "review_orphan_created"
	}
	log.Info("ingest: review recorded", "contact", contact.ID, "opportunity", target.ID, "orphan", created)
	return Result{Success: true, Type: TypeReview, Action: action, ContactID: contact.ID, OpportunityID: target.ID}, nil
}

// resolveContact searches by the given query and creates the contact when no
// match exists.
func (s *Service) resolveContact(ctx context.Context, locationID, query string, create crm.ContactCreate) (crm.Contact, error) {
	matches, err := s.platform.SearchContacts(ctx, locationID, query)
	if err != nil {
		return crm.Contact{}, fmt.Errorf("contact search: %w", err)
	}
	if len(matches) > 0 {
		return matches[0], nil
	}

	contact, err := s.platform.CreateContact(ctx, locationID, create)
	if err != nil {
		return crm.Contact{}, fmt.Errorf("contact create: %w", err)
	}
	return contact, nil
}

// resolveReviewContact finds the best name match for a review. Review
// notifications rarely carry phone or email, so the search is a loose name
// query ranked by edit distance. On a miss the contact is created as an
// orphan rather than dropping the review.
func (s *Service) resolveReviewContact(ctx context.Context, locationID string, rec ParsedRecord) (crm.Contact, bool, error) {
	name := rec.fullName()
	if name == "" {
		name = rec.Source
	}

	matches, err := s.platform.SearchContacts(ctx, locationID, name)
	if err != nil {
		return crm.Contact{}, false, fmt.Errorf("contact search: %w", err)
	}
	if best, ok := bestNameMatch(name, matches); ok {
		return best, false, nil
	}

	contact, err := s.platform.CreateContact(ctx, locationID, crm.ContactCreate{
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
		Tags:      []string{OrphanTag},
	})
	if err != nil {
		return crm.Contact{}, false, fmt.Errorf("orphan contact create: %w", err)
	}
	return contact, true, nil
}

// resolveReviewOpportunity picks the contact's most recent opportunity, or
// creates one directly in the complete stage so a review with no matching job
// still surfaces as a completed-job record.
func (s *Service) resolveReviewOpportunity(ctx context.Context, locationID string, contact crm.Contact, rec ParsedRecord) (crm.Opportunity, error) {
	opps, err := s.platform.SearchOpportunities(ctx, locationID, crm.OpportunitySearch{
		ContactID: contact.ID,
	})
	if err != nil {
		return crm.Opportunity{}, err
	}
	if len(opps) > 0 {
		sort.SliceStable(opps, func(i, j int) bool {
			return opps[i].CreatedAt.After(opps[j].CreatedAt)
		})
		return opps[0], nil
	}

	return s.platform.CreateOpportunity(ctx, locationID, crm.OpportunityCreate{
		Name:            opportunityName(rec),
		ContactID:       contact.ID,
		PipelineID:      s.fields.PipelineID,
		PipelineStageID: s.fields.StageComplete,
		Status:          "won",
	})
}

// identitySnapshot stamps contact identity and a short job type onto the
// opportunity so the pipeline board renders without a contact lookup.
func (s *Service) identitySnapshot(contact crm.Contact, rec ParsedRecord) []crm.CustomField {
	fields := []crm.CustomField{
		crm.Field(s.fields.Fields.FirstName, contact.FirstName),
		crm.Field(s.fields.Fields.LastName, contact.LastName),
	}
	if contact.Email != "" {
		fields = append(fields, crm.Field(s.fields.Fields.Email, contact.Email))
	}
	if contact.Phone != "" {
		fields = append(fields, crm.Field(s.fields.Fields.Phone, contact.Phone))
	}
	if rec.Description != "" {
		fields = append(fields, crm.Field(s.fields.Fields.JobType, truncate(rec.Description, jobTypeMaxLen)))
	}
	return fields
}

func (s *Service) reportIngestFailure(ctx context.Context, locationID string, rec ParsedRecord, cause error) {
	s.log.WithLocationID(locationID).Error("ingest: identity resolution failed",
		"type", rec.Type,
		"name", rec.fullName(),
		"error", cause)
	s.bus.Publish(ctx, events.LeadIngestFailed{
		BaseEvent:  events.NewBaseEvent(),
		LocationID: locationID,
		Name:       rec.fullName(),
		Phone:      rec.Phone,
		Email:      rec.Email,
		Reason:     cause.Error(),
	})
}

// bestNameMatch ranks candidates by edit distance against the query and
// accepts the closest one within a tolerance proportional to the name length.
func bestNameMatch(name string, candidates []crm.Contact) (crm.Contact, bool) {
	if name == "" || len(candidates) == 0 {
		return crm.Contact{}, false
	}

	normalized := strings.ToLower(name)
	maxDistance := len(normalized) / 3

	best := -1
	bestDistance := maxDistance + 1
	for i, c := range candidates {
		d := levenshtein.ComputeDistance(normalized, strings.ToLower(c.FullName()))
		if d < bestDistance {
			best = i
			bestDistance = d
		}
	}
	if best < 0 {
		return crm.Contact{}, false
	}
	return candidates[best], true
}

func opportunityName(rec ParsedRecord) string {
	name := rec.fullName()
	if name == "" {
		name = "Unknown"
	}
	if rec.Provider != "" {
		return name + " (" + rec.Provider + ")"
	}
	return name
}

func leadNote(rec ParsedRecord) string {
	var b strings.Builder
	b.WriteString("Lead enquiry")
	if rec.Provider != "" {
		b.WriteString(" via " + rec.Provider)
	}
	b.WriteString("\n\n")
	b.WriteString(rec.Description)
	if rec.Postcode != "" {
		b.WriteString("\n\nPostcode: " + rec.Postcode)
	}
	return b.String()
}

func reviewNote(rec ParsedRecord) string {
	var b strings.Builder
	b.WriteString("Review received")
	if rec.Provider != "" {
		b.WriteString(" via " + rec.Provider)
	}
	if rec.Rating != nil {
		b.WriteString(" (" + strconv.Itoa(*rec.Rating) + "/5)")
	}
	if rec.Description != "" {
		b.WriteString("\n\n" + rec.Description)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
