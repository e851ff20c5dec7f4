package crm

import (
	"strconv"
	"time"
)

// Opportunity is the canonical pipeline record owned by the platform.
type Opportunity struct {
	ID              string        `json:"id"`
	Name            string        `json:"name,omitempty"`
	ContactID       string        `json:"contactId"`
	PipelineID      string        `json:"pipelineId,omitempty"`
	PipelineStageID string        `json:"pipelineStageId,omitempty"`
	Status          string        `json:"status"` // open | won | lost
	CreatedAt       time.Time     `json:"createdAt"`
	CustomFields    []CustomField `json:"customFields,omitempty"`
}

// CustomField is one custom-field entry on an opportunity. Depending on the
// platform endpoint the value arrives under "value" or "fieldValue"; read it
// through ReadField rather than touching either member directly.
type CustomField struct {
	ID         string      `json:"id"`
	Value      interface{} `json:"value,omitempty"`
	FieldValue interface{} `json:"fieldValue,omitempty"`
}

// Field builds a custom-field write entry.
func Field(id string, value interface{}) CustomField {
	return CustomField{ID: id, Value: value}
}

// ReadField returns the normalized string value of the custom field with the
// given id, or ok=false when the field is absent or empty.
func ReadField(o Opportunity, fieldID string) (string, bool) {
	if fieldID == "" {
		return "", false
	}
	for _, f := range o.CustomFields {
		if f.ID != fieldID {
			continue
		}
		if s, ok := stringify(f.Value); ok {
			return s, true
		}
		return stringify(f.FieldValue)
	}
	return "", false
}

// ReadFieldTime parses the custom field as a timestamp. RFC 3339 and unix
// epoch milliseconds are both accepted, matching the shapes the platform
// emits for date fields.
func ReadFieldTime(o Opportunity, fieldID string) (time.Time, bool) {
	raw, ok := ReadField(o, fieldID)
	if !ok {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if millis, err := strconv.ParseInt(raw, 10, 64); err == nil && millis > 0 {
		return time.UnixMilli(millis).UTC(), true
	}
	return time.Time{}, false
}

func stringify(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

// Contact is the customer identity record owned by the platform.
type Contact struct {
	ID        string   `json:"id"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	Email     string   `json:"email,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// FullName joins first and last name for display and matching.
func (c Contact) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// Note is a free-form annotation on a contact.
type Note struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"dateAdded,omitempty"`
}

// LocationSettings carries the per-tenant settings the engine reads.
type LocationSettings struct {
	ReviewURL    string `json:"reviewUrl,omitempty"`
	BusinessName string `json:"businessName,omitempty"`
}

// Message is an outbound SMS or email delivered through the platform.
type Message struct {
	ContactID string `json:"contactId"`
	Channel   string `json:"type"` // SMS | Email
	Body      string `json:"message"`
	Subject   string `json:"subject,omitempty"`
}

// OpportunitySearch scopes an opportunity search. Zero fields are omitted
// from the query.
type OpportunitySearch struct {
	PipelineID string
	ContactID  string
}

// OpportunityUpdate is a partial write against one opportunity. Nil/zero
// members are left untouched on the remote record.
type OpportunityUpdate struct {
	ContactID       string        `json:"contactId,omitempty"`
	PipelineStageID string        `json:"pipelineStageId,omitempty"`
	Status          string        `json:"status,omitempty"`
	CustomFields    []CustomField `json:"customFields,omitempty"`
}

// OpportunityCreate holds the fields for a new opportunity.
type OpportunityCreate struct {
	Name            string        `json:"name"`
	ContactID       string        `json:"contactId"`
	PipelineID      string        `json:"pipelineId"`
	PipelineStageID string        `json:"pipelineStageId"`
	Status          string        `json:"status"`
	CustomFields    []CustomField `json:"customFields,omitempty"`
}

// ContactCreate holds the fields for a new contact.
type ContactCreate struct {
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	Email     string   `json:"email,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}
