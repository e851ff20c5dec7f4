// Package reviews implements the scheduled review sweep: a per-tenant,
// time-driven scan that finds opportunities whose review request is due and
// sends it through the platform.
package reviews

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"jobflow_backend/internal/crm"
	"jobflow_backend/internal/fieldmap"
	"jobflow_backend/internal/tenants"
	"jobflow_backend/platform/config"
	"jobflow_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

// PlatformAPI is the slice of the platform client the sweep needs.
type PlatformAPI interface {
	SearchOpportunities(ctx context.Context, locationID string, search crm.OpportunitySearch) ([]crm.Opportunity, error)
	GetOpportunity(ctx context.Context, locationID, id string) (crm.Opportunity, error)
	UpdateOpportunity(ctx context.Context, locationID, id string, update crm.OpportunityUpdate) error
	GetContact(ctx context.Context, locationID, id string) (crm.Contact, error)
	SendMessage(ctx context.Context, locationID string, msg crm.Message) error
	GetLocationSettings(ctx context.Context, locationID string) (crm.LocationSettings, error)
}

// TenantLister lists tenants with an active platform connection.
type TenantLister interface {
	ListActive(ctx context.Context) ([]tenants.Connection, error)
}

// Service runs the review sweep.
type Service struct {
	platform         PlatformAPI
	tenants          TenantLister
	fields           fieldmap.Map
	batchSize        int
	defaultReviewURL string
	log              *logger.Logger
	now              func() time.Time
}

// NewService creates the sweep service.
func NewService(platform PlatformAPI, tenantLister TenantLister, fields fieldmap.Map, cfg config.ReviewSweepConfig, log *logger.Logger) *Service {
	batchSize := cfg.GetReviewSweepBatchSize()
	if batchSize < 1 {
		batchSize = 5
	}
	return &Service{
		platform:         platform,
		tenants:          tenantLister,
		fields:           fields,
		batchSize:        batchSize,
		defaultReviewURL: cfg.GetDefaultReviewURL(),
		log:              log,
		now:              time.Now,
	}
}

// RunSweep scans every connected tenant and sends due review requests.
// It returns the number of opportunities transitioned to Sent. Per-item and
// per-tenant failures are logged and never abort the sweep; a cancelled
// context stops between tenants and leaves the remainder to the next run.
func (s *Service) RunSweep(ctx context.Context) (int, error) {
	conns, err := s.tenants.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for i, conn := range conns {
		if ctx.Err() != nil {
			s.log.Warn("review sweep budget exhausted", "remaining_tenants", len(conns)-i)
			break
		}
		if conn.AccessToken == "" {
			// Disconnected tenant, expected.
			continue
		}
		total += s.sweepTenant(ctx, conn)
	}
	return total, nil
}

func (s *Service) sweepTenant(ctx context.Context, conn tenants.Connection) int {
	log := s.log.WithLocationID(conn.LocationID)

	opps, err := s.platform.SearchOpportunities(ctx, conn.LocationID, crm.OpportunitySearch{
		PipelineID: s.fields.PipelineID,
	})
	if errors.Is(err, crm.ErrNoToken) {
		return 0
	}
	if err != nil {
		log.Warn("review sweep: opportunity search failed", "error", err)
		return 0
	}

	var candidates []crm.Opportunity
	for _, opp := range opps {
		status, _ := crm.ReadField(opp, s.fields.Fields.ReviewStatus)
		if status == fieldmap.ReviewStatusScheduled {
			candidates = append(candidates, opp)
		}
	}
	if len(candidates) == 0 {
		return 0
	}

	reviewURL := s.resolveReviewURL(ctx, conn)

	// Batches run sequentially, items within a batch concurrently. The batch
	// size caps concurrent outbound calls so one tenant cannot trip the
	// platform's rate limits.
	var sent atomic.Int64
	for start := 0; start < len(candidates); start += s.batchSize {
		end := start + s.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		var g errgroup.Group
		for _, candidate := range candidates[start:end] {
			opp := candidate
			g.Go(func() error {
				if s.processCandidate(ctx, conn, opp.ID, reviewURL) {
					sent.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	if n := sent.Load(); n > 0 {
		log.Info("review sweep: requests sent", "count", n, "candidates", len(candidates))
	}
	return int(sent.Load())
}

// processCandidate re-fetches the opportunity, re-checks that the request is
// still Scheduled and due, then sends the message and flips the status. Any
// failure is logged and isolated to this item.
func (s *Service) processCandidate(ctx context.Context, conn tenants.Connection, oppID, reviewURL string) bool {
	log := s.log.WithLocationID(conn.LocationID)

	// Defense against staleness from the bulk search: another process may
	// already have handled this opportunity.
	opp, err := s.platform.GetOpportunity(ctx, conn.LocationID, oppID)
	if err != nil {
		log.Warn("review sweep: re-fetch failed", "opportunity", oppID, "error", err)
		return false
	}

	status, _ := crm.ReadField(opp, s.fields.Fields.ReviewStatus)
	if status != fieldmap.ReviewStatusScheduled {
		return false
	}
	schedule, ok := crm.ReadFieldTime(opp, s.fields.Fields.ReviewSchedule)
	if !ok {
		return false
	}
	if schedule.After(s.now()) {
		return false
	}

	contact, err := s.platform.GetContact(ctx, conn.LocationID, opp.ContactID)
	if err != nil {
		log.Warn("review sweep: contact fetch failed", "opportunity", oppID, "error", err)
		return false
	}

	channel, _ := crm.ReadField(opp, s.fields.Fields.ReviewChannel)
	jobType, _ := crm.ReadField(opp, s.fields.Fields.JobType)

	msg := ComposeReviewRequest(channel, contact.FirstName, jobType, reviewURL)
	msg.ContactID = opp.ContactID

	if err := s.platform.SendMessage(ctx, conn.LocationID, msg); err != nil {
		log.Warn("review sweep: send failed", "opportunity", oppID, "channel", msg.Channel, "error", err)
		return false
	}

	err = s.platform.UpdateOpportunity(ctx, conn.LocationID, oppID, crm.OpportunityUpdate{
		CustomFields: []crm.CustomField{
			crm.Field(s.fields.Fields.ReviewStatus, fieldmap.ReviewStatusSent),
		},
	})
	if err != nil {
		// The message went out; the status write is retried implicitly on the
		// next sweep, which re-reads the field before acting.
		log.Warn("review sweep: status update failed after send", "opportunity", oppID, "error", err)
		return false
	}

	return true
}

// resolveReviewURL reads the tenant's review link from location settings,
// falling back to the connection row and then the configured public URL.
func (s *Service) resolveReviewURL(ctx context.Context, conn tenants.Connection) string {
	settings, err := s.platform.GetLocationSettings(ctx, conn.LocationID)
	if err == nil && settings.ReviewURL != "" {
		return settings.ReviewURL
	}
	if conn.ReviewURL != "" {
		return conn.ReviewURL
	}
	return s.defaultReviewURL
}
