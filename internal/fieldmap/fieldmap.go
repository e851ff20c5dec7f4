// Package fieldmap holds the static mapping from semantic field names to the
// CRM platform's custom-field and pipeline-stage identifiers. Pure data; the
// identifiers are opaque tokens assigned by the platform per account.
package fieldmap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Review request lifecycle values stored in the review-status custom field.
const (
	ReviewStatusScheduled = "Scheduled"
	ReviewStatusSent      = "Sent"
	ReviewStatusReceived  = "Received"
)

// Payment status values stored in the deposit/invoice custom fields.
const (
	PaymentStatusSent = "Sent"
	PaymentStatusPaid = "Paid"
)

// Message channels for review requests.
const (
	ChannelSMS   = "SMS"
	ChannelEmail = "Email"
)

// Fields maps semantic names to platform custom-field identifiers.
type Fields struct {
	ReviewStatus   string `yaml:"reviewStatus"`
	ReviewSchedule string `yaml:"reviewSchedule"`
	ReviewRating   string `yaml:"reviewRating"`
	ReviewSource   string `yaml:"reviewSource"`
	ReviewChannel  string `yaml:"reviewChannel"`
	DepositStatus  string `yaml:"depositStatus"`
	InvoiceStatus  string `yaml:"invoiceStatus"`
	JobType        string `yaml:"jobType"`
	FirstName      string `yaml:"firstName"`
	LastName       string `yaml:"lastName"`
	Email          string `yaml:"email"`
	Phone          string `yaml:"phone"`
}

// Map is the full field/pipeline identifier map for the configured account.
type Map struct {
	PipelineID    string `yaml:"pipelineId"`
	StageNewLead  string `yaml:"stageNewLead"`
	StageComplete string `yaml:"stageComplete"`
	Fields        Fields `yaml:"fields"`
}

// Default returns the identifier map for the standard account template.
func Default() Map {
	return Map{
		PipelineID:    "uDe0rpEr1qCFSB7vUKJb",
		StageNewLead:  "7a9f2c31-0c44-4c3e-9d7b-2f1d8a64e050",
		StageComplete: "f3b81d02-5a67-4c19-8a3e-6c90d4b2a718",
		Fields: Fields{
			ReviewStatus:   "wXbPq4KsgCT0jLkZ2vRm",
			ReviewSchedule: "cN8dYf5xHqWjR1oUzAe3",
			ReviewRating:   "kV2tLm9pBsXcE4yGnQh7",
			ReviewSource:   "aJ6wRz3uMfTdP8iKbC5o",
			ReviewChannel:  "sD1gXv7nYqLhU0eWrT4m",
			DepositStatus:  "pF5kBc2jZxNtM9aQvE6r",
			InvoiceStatus:  "mH8yTw4qGdSfK3uLnP1z",
			JobType:        "rB3eNk6vCpXzJ7oFqY2d",
			FirstName:      "tQ9sMh1lWbVuA5xDgK8c",
			LastName:       "zL4cPj7fRnEoT2wSvB6g",
			Email:          "eW7vKd3mXsQyH1rJtN5b",
			Phone:          "yG2nFq8bLcZpU6kMwS3x",
		},
	}
}

// Load returns the default map overlaid with values from the YAML file at
// path. An empty path yields the defaults unchanged.
func Load(path string) (Map, error) {
	m := Default()
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Map{}, fmt.Errorf("read field map: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Map{}, fmt.Errorf("parse field map: %w", err)
	}
	if m.PipelineID == "" {
		return Map{}, fmt.Errorf("field map: pipelineId is required")
	}
	return m, nil
}
