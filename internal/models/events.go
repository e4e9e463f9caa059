// internal/models/events.go
package models

import (
	"encoding/json"
	"time"
)

// Detail types published to the data event bus.
const (
	DetailTypeLicenseIngest        = "license.ingest"
	DetailTypeLicenseIngestFailure = "license.ingest.failure"
	DetailTypePrivilegePurchase    = "privilege.purchase"
)

// EventEnvelope is one bus entry. Detail is the marshaled payload.
type EventEnvelope struct {
	Source     string          `json:"source"`
	DetailType string          `json:"detailType"`
	Detail     json.RawMessage `json:"detail"`
}

// NewEnvelope marshals detail into an envelope.
func NewEnvelope(source, detailType string, detail interface{}) (EventEnvelope, error) {
	raw, err := json.Marshal(detail)
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		Source:     source,
		DetailType: detailType,
		Detail:     raw,
	}, nil
}

type LicenseIngestDetail struct {
	EventTime    string `json:"eventTime"`
	Compact      string `json:"compact"`
	Jurisdiction string `json:"jurisdiction"`
	ProviderID   string `json:"providerId"`
	LicenseType  string `json:"licenseType"`
}

type LicenseIngestFailureDetail struct {
	EventTime    string   `json:"eventTime"`
	Compact      string   `json:"compact"`
	Jurisdiction string   `json:"jurisdiction"`
	Errors       []string `json:"errors"`
}

type PrivilegePurchaseDetail struct {
	EventTime            string `json:"eventTime"`
	Compact              string `json:"compact"`
	Jurisdiction         string `json:"jurisdiction"`
	ProviderID           string `json:"providerId"`
	LicenseJurisdiction  string `json:"licenseJurisdiction"`
	DateOfExpiration     string `json:"dateOfExpiration"`
	CompactTransactionID string `json:"compactTransactionId"`
}

// EventTime formats an event timestamp.
func EventTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
