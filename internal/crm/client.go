// Package crm is the request layer for the external CRM platform that owns
// the canonical contact and opportunity records. All calls are authenticated
// per tenant with a rotating bearer token resolved through a TokenProvider;
// token acquisition and refresh live outside this engine.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"jobflow_backend/platform/config"
	"jobflow_backend/platform/logger"

	"golang.org/x/time/rate"
)

// ErrNoToken is returned by a TokenProvider when the tenant has no active
// platform connection. Callers treat this as "skip tenant", not a failure.
var ErrNoToken = errors.New("no access token for location")

// TokenProvider resolves the current bearer token for a tenant location.
type TokenProvider interface {
	AccessToken(ctx context.Context, locationID string) (string, error)
}

// APIError is a non-2xx response from the platform.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform returned %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a platform 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// DuplicateContactError is the platform's 400-with-merge-hint response to a
// contact write that collides with an existing record.
type DuplicateContactError struct {
	ExistingID string
}

func (e *DuplicateContactError) Error() string {
	return "contact already exists: " + e.ExistingID
}

// Client performs authenticated reads/writes against the platform REST API.
// Outbound calls are throttled per tenant as a guard against the platform's
// own rate limits.
type Client struct {
	baseURL    string
	apiVersion string
	tokens     TokenProvider
	http       *http.Client
	log        *logger.Logger

	limiterRate  rate.Limit
	limiterBurst int
	limiters     sync.Map // locationID -> *rate.Limiter
}

// NewClient creates a platform client.
func NewClient(cfg config.CRMConfig, tokens TokenProvider, log *logger.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.GetCRMBaseURL(), "/"),
		apiVersion:   cfg.GetCRMAPIVersion(),
		tokens:       tokens,
		http:         &http.Client{Timeout: 15 * time.Second},
		log:          log,
		limiterRate:  rate.Limit(cfg.GetCRMRateLimitRPS()),
		limiterBurst: cfg.GetCRMRateLimitBurst(),
	}
}

// SearchOpportunities lists opportunities for a location, optionally scoped
// to a pipeline and/or contact.
func (c *Client) SearchOpportunities(ctx context.Context, locationID string, search OpportunitySearch) ([]Opportunity, error) {
	q := url.Values{}
	q.Set("location_id", locationID)
	if search.PipelineID != "" {
		q.Set("pipeline_id", search.PipelineID)
	}
	if search.ContactID != "" {
		q.Set("contact_id", search.ContactID)
	}

	var out struct {
		Opportunities []Opportunity `json:"opportunities"`
	}
	if err := c.do(ctx, locationID, http.MethodGet, "/opportunities/search?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Opportunities, nil
}

// GetOpportunity fetches a single opportunity by id.
func (c *Client) GetOpportunity(ctx context.Context, locationID, id string) (Opportunity, error) {
	var out struct {
		Opportunity Opportunity `json:"opportunity"`
	}
	if err := c.do(ctx, locationID, http.MethodGet, "/opportunities/"+url.PathEscape(id), nil, &out); err != nil {
		return Opportunity{}, err
	}
	return out.Opportunity, nil
}

// UpdateOpportunity applies a partial update to one opportunity.
func (c *Client) UpdateOpportunity(ctx context.Context, locationID, id string, update OpportunityUpdate) error {
	return c.do(ctx, locationID, http.MethodPut, "/opportunities/"+url.PathEscape(id), update, nil)
}

// CreateOpportunity creates a new opportunity.
func (c *Client) CreateOpportunity(ctx context.Context, locationID string, create OpportunityCreate) (Opportunity, error) {
	body := struct {
		OpportunityCreate
		LocationID string `json:"locationId"`
	}{create, locationID}

	var out struct {
		Opportunity Opportunity `json:"opportunity"`
	}
	if err := c.do(ctx, locationID, http.MethodPost, "/opportunities/", body, &out); err != nil {
		return Opportunity{}, err
	}
	return out.Opportunity, nil
}

// SearchContacts searches contacts by free-text query (name, phone or email).
func (c *Client) SearchContacts(ctx context.Context, locationID, query string) ([]Contact, error) {
	q := url.Values{}
	q.Set("locationId", locationID)
	q.Set("query", query)

	var out struct {
		Contacts []Contact `json:"contacts"`
	}
	if err := c.do(ctx, locationID, http.MethodGet, "/contacts/?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Contacts, nil
}

// GetContact fetches a single contact by id.
func (c *Client) GetContact(ctx context.Context, locationID, id string) (Contact, error) {
	var out struct {
		Contact Contact `json:"contact"`
	}
	if err := c.do(ctx, locationID, http.MethodGet, "/contacts/"+url.PathEscape(id), nil, &out); err != nil {
		return Contact{}, err
	}
	return out.Contact, nil
}

// CreateContact creates a new contact.
func (c *Client) CreateContact(ctx context.Context, locationID string, create ContactCreate) (Contact, error) {
	body := struct {
		ContactCreate
		LocationID string `json:"locationId"`
	}{create, locationID}

	var out struct {
		Contact Contact `json:"contact"`
	}
	if err := c.do(ctx, locationID, http.MethodPost, "/contacts/", body, &out); err != nil {
		return Contact{}, err
	}
	return out.Contact, nil
}

// UpdateContact applies a partial update to one contact. A platform 400
// carrying a merge hint is surfaced as *DuplicateContactError.
func (c *Client) UpdateContact(ctx context.Context, locationID, id string, update ContactCreate) error {
	err := c.do(ctx, locationID, http.MethodPut, "/contacts/"+url.PathEscape(id), update, nil)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
		var hint struct {
			Meta struct {
				ContactID string `json:"contactId"`
			} `json:"meta"`
		}
		if jsonErr := json.Unmarshal([]byte(apiErr.Body), &hint); jsonErr == nil && hint.Meta.ContactID != "" {
			return &DuplicateContactError{ExistingID: hint.Meta.ContactID}
		}
	}
	return err
}

// SendMessage delivers an SMS or email to a contact through the platform.
func (c *Client) SendMessage(ctx context.Context, locationID string, msg Message) error {
	return c.do(ctx, locationID, http.MethodPost, "/conversations/messages", msg, nil)
}

// ListNotes lists the notes on a contact.
func (c *Client) ListNotes(ctx context.Context, locationID, contactID string) ([]Note, error) {
	var out struct {
		Notes []Note `json:"notes"`
	}
	if err := c.do(ctx, locationID, http.MethodGet, "/contacts/"+url.PathEscape(contactID)+"/notes", nil, &out); err != nil {
		return nil, err
	}
	return out.Notes, nil
}

// CreateNote appends a note to a contact.
func (c *Client) CreateNote(ctx context.Context, locationID, contactID, body string) error {
	payload := map[string]string{"body": body}
	return c.do(ctx, locationID, http.MethodPost, "/contacts/"+url.PathEscape(contactID)+"/notes", payload, nil)
}

// UpdateNote rewrites the body of an existing note.
func (c *Client) UpdateNote(ctx context.Context, locationID, contactID, noteID, body string) error {
	payload := map[string]string{"body": body}
	return c.do(ctx, locationID, http.MethodPut, "/contacts/"+url.PathEscape(contactID)+"/notes/"+url.PathEscape(noteID), payload, nil)
}

// GetLocationSettings reads the tenant's location settings.
func (c *Client) GetLocationSettings(ctx context.Context, locationID string) (LocationSettings, error) {
	var out struct {
		Location LocationSettings `json:"location"`
	}
	if err := c.do(ctx, locationID, http.MethodGet, "/locations/"+url.PathEscape(locationID), nil, &out); err != nil {
		return LocationSettings{}, err
	}
	return out.Location, nil
}

func (c *Client) do(ctx context.Context, locationID, method, path string, in, out interface{}) error {
	if err := c.limiter(locationID).Wait(ctx); err != nil {
		return err
	}

	token, err := c.tokens.AccessToken(ctx, locationID)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal platform payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if c.apiVersion != "" {
		req.Header.Set("Version", c.apiVersion)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("platform request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode platform response: %w", err)
		}
	}
	return nil
}

func (c *Client) limiter(locationID string) *rate.Limiter {
	if limiter, ok := c.limiters.Load(locationID); ok {
		return limiter.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(c.limiterRate, c.limiterBurst)
	actual, _ := c.limiters.LoadOrStore(locationID, limiter)
	return actual.(*rate.Limiter)
}
