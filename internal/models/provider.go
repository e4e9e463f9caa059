// internal/models/provider.go
package models

// Provider is the canonical cross-jurisdiction summary for one person. Its
// licensure fields always mirror the canonical license chosen over the
// provider's current license set.
type Provider struct {
	PK                     string   `json:"-" dynamodbav:"pk"`
	SK                     string   `json:"-" dynamodbav:"sk"`
	Type                   string   `json:"type" dynamodbav:"type"`
	ProviderID             string   `json:"providerId" dynamodbav:"providerId"`
	Compact                string   `json:"compact" dynamodbav:"compact"`
	GivenName              string   `json:"givenName" dynamodbav:"givenName"`
	MiddleName             string   `json:"middleName,omitempty" dynamodbav:"middleName,omitempty"`
	FamilyName             string   `json:"familyName" dynamodbav:"familyName"`
	EmailAddress           string   `json:"emailAddress,omitempty" dynamodbav:"emailAddress,omitempty"`
	PhoneNumber            string   `json:"phoneNumber,omitempty" dynamodbav:"phoneNumber,omitempty"`
	LicenseJurisdiction    string   `json:"licenseJurisdiction" dynamodbav:"licenseJurisdiction"`
	LicenseType            string   `json:"licenseType" dynamodbav:"licenseType"`
	DateOfIssuance         string   `json:"dateOfIssuance" dynamodbav:"dateOfIssuance"`
	DateOfRenewal          string   `json:"dateOfRenewal,omitempty" dynamodbav:"dateOfRenewal,omitempty"`
	DateOfExpiration       string   `json:"dateOfExpiration" dynamodbav:"dateOfExpiration"`
	JurisdictionStatus     string   `json:"jurisdictionStatus" dynamodbav:"jurisdictionStatus"`
	PrivilegeJurisdictions []string `json:"privilegeJurisdictions,omitempty" dynamodbav:"privilegeJurisdictions,omitempty,stringset"`
	// Version increments on every provider write; the transactional writer
	// conditions on it to reject lost updates.
	Version      int64  `json:"version" dynamodbav:"version"`
	DateOfUpdate string `json:"dateOfUpdate" dynamodbav:"dateOfUpdate"` // RFC3339

	// Name index attributes, present on provider items only.
	NameIndexPK string `json:"-" dynamodbav:"nameIndexPK,omitempty"`
	NameIndexSK string `json:"-" dynamodbav:"nameIndexSK,omitempty"`
}

// HasPrivilegeIn reports membership without assuming the set is sorted.
func (p *Provider) HasPrivilegeIn(jurisdiction string) bool {
	for _, j := range p.PrivilegeJurisdictions {
		if j == jurisdiction {
			return true
		}
	}
	return false
}
