// internal/models/privilege.go
package models

// Privilege grants practice authority in one member jurisdiction, keyed by
// (providerId, compact, jurisdiction). A privilege must never exist without
// a causally prior purchase event.
type Privilege struct {
	PK                   string `json:"-" dynamodbav:"pk"`
	SK                   string `json:"-" dynamodbav:"sk"`
	Type                 string `json:"type" dynamodbav:"type"`
	ProviderID           string `json:"providerId" dynamodbav:"providerId"`
	Compact              string `json:"compact" dynamodbav:"compact"`
	Jurisdiction         string `json:"jurisdiction" dynamodbav:"jurisdiction"`
	LicenseJurisdiction  string `json:"licenseJurisdiction" dynamodbav:"licenseJurisdiction"` // home state backing the privilege
	DateOfIssuance       string `json:"dateOfIssuance" dynamodbav:"dateOfIssuance"`
	DateOfExpiration     string `json:"dateOfExpiration" dynamodbav:"dateOfExpiration"`
	CompactTransactionID string `json:"compactTransactionId" dynamodbav:"compactTransactionId"`
	DateOfUpdate         string `json:"dateOfUpdate" dynamodbav:"dateOfUpdate"` // RFC3339
}
