// internal/models/license.go
package models

import "time"

// Record type discriminators stored on every provider-partition item.
const (
	RecordTypeProvider  = "provider"
	RecordTypeLicense   = "license"
	RecordTypePrivilege = "privilege"
)

// Jurisdiction-reported license statuses. Effective status is derived at
// read time from this value plus the expiration date; it is never stored.
const (
	JurisdictionStatusActive   = "active"
	JurisdictionStatusInactive = "inactive"
)

// DateLayout is the wire format for date-only fields. Dates in this layout
// order lexicographically, which the selection algorithm relies on.
const DateLayout = "2006-01-02"

// ParseDate parses a date-only field.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// LicenseSubmission is one validated license record as submitted by a
// jurisdiction. Key attributes and bookkeeping fields are added when the
// record is persisted.
type LicenseSubmission struct {
	ProviderID         string `json:"providerId"`
	Compact            string `json:"compact"`
	Jurisdiction       string `json:"jurisdiction"` // postal abbreviation, lowercase
	LicenseType        string `json:"licenseType"`
	LicenseNumber      string `json:"licenseNumber,omitempty"`
	GivenName          string `json:"givenName"`
	MiddleName         string `json:"middleName,omitempty"`
	FamilyName         string `json:"familyName"`
	DateOfBirth        string `json:"dateOfBirth,omitempty"`
	HomeAddressStreet1 string `json:"homeAddressStreet1,omitempty"`
	HomeAddressStreet2 string `json:"homeAddressStreet2,omitempty"`
	HomeAddressCity    string `json:"homeAddressCity,omitempty"`
	HomeAddressState   string `json:"homeAddressState,omitempty"`
	HomeAddressPostal  string `json:"homeAddressPostalCode,omitempty"`
	EmailAddress       string `json:"emailAddress,omitempty"`
	PhoneNumber        string `json:"phoneNumber,omitempty"`
	DateOfIssuance     string `json:"dateOfIssuance"`
	DateOfRenewal      string `json:"dateOfRenewal,omitempty"`
	DateOfExpiration   string `json:"dateOfExpiration"`
	JurisdictionStatus string `json:"jurisdictionStatus"` // "active" or "inactive"
}

// License is the persisted form of a submission. At most one exists per
// (providerId, jurisdiction, licenseType); a new submission for the same
// pair replaces the prior record wholesale.
type License struct {
	PK                 string `json:"-" dynamodbav:"pk"`
	SK                 string `json:"-" dynamodbav:"sk"`
	Type               string `json:"type" dynamodbav:"type"`
	ProviderID         string `json:"providerId" dynamodbav:"providerId"`
	Compact            string `json:"compact" dynamodbav:"compact"`
	Jurisdiction       string `json:"jurisdiction" dynamodbav:"jurisdiction"`
	LicenseType        string `json:"licenseType" dynamodbav:"licenseType"`
	LicenseNumber      string `json:"licenseNumber,omitempty" dynamodbav:"licenseNumber,omitempty"`
	GivenName          string `json:"givenName" dynamodbav:"givenName"`
	MiddleName         string `json:"middleName,omitempty" dynamodbav:"middleName,omitempty"`
	FamilyName         string `json:"familyName" dynamodbav:"familyName"`
	DateOfBirth        string `json:"dateOfBirth,omitempty" dynamodbav:"dateOfBirth,omitempty"`
	HomeAddressStreet1 string `json:"homeAddressStreet1,omitempty" dynamodbav:"homeAddressStreet1,omitempty"`
	HomeAddressStreet2 string `json:"homeAddressStreet2,omitempty" dynamodbav:"homeAddressStreet2,omitempty"`
	HomeAddressCity    string `json:"homeAddressCity,omitempty" dynamodbav:"homeAddressCity,omitempty"`
	HomeAddressState   string `json:"homeAddressState,omitempty" dynamodbav:"homeAddressState,omitempty"`
	HomeAddressPostal  string `json:"homeAddressPostalCode,omitempty" dynamodbav:"homeAddressPostalCode,omitempty"`
	EmailAddress       string `json:"emailAddress,omitempty" dynamodbav:"emailAddress,omitempty"`
	PhoneNumber        string `json:"phoneNumber,omitempty" dynamodbav:"phoneNumber,omitempty"`
	DateOfIssuance     string `json:"dateOfIssuance" dynamodbav:"dateOfIssuance"`
	DateOfRenewal      string `json:"dateOfRenewal,omitempty" dynamodbav:"dateOfRenewal,omitempty"`
	DateOfExpiration   string `json:"dateOfExpiration" dynamodbav:"dateOfExpiration"`
	JurisdictionStatus string `json:"jurisdictionStatus" dynamodbav:"jurisdictionStatus"`
	DateOfUpdate       string `json:"dateOfUpdate" dynamodbav:"dateOfUpdate"` // RFC3339
}

// ToLicense converts a submission to its persisted form. Partition keys are
// assigned by the data layer.
func (s LicenseSubmission) ToLicense(now time.Time) License {
	return License{
		Type:               RecordTypeLicense,
		ProviderID:         s.ProviderID,
		Compact:            s.Compact,
		Jurisdiction:       s.Jurisdiction,
		LicenseType:        s.LicenseType,
		LicenseNumber:      s.LicenseNumber,
		GivenName:          s.GivenName,
		MiddleName:         s.MiddleName,
		FamilyName:         s.FamilyName,
		DateOfBirth:        s.DateOfBirth,
		HomeAddressStreet1: s.HomeAddressStreet1,
		HomeAddressStreet2: s.HomeAddressStreet2,
		HomeAddressCity:    s.HomeAddressCity,
		HomeAddressState:   s.HomeAddressState,
		HomeAddressPostal:  s.HomeAddressPostal,
		EmailAddress:       s.EmailAddress,
		PhoneNumber:        s.PhoneNumber,
		DateOfIssuance:     s.DateOfIssuance,
		DateOfRenewal:      s.DateOfRenewal,
		DateOfExpiration:   s.DateOfExpiration,
		JurisdictionStatus: s.JurisdictionStatus,
		DateOfUpdate:       now.UTC().Format(time.RFC3339),
	}
}
