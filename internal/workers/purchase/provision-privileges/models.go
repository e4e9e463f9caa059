// internal/workers/purchase/provision-privileges/models.go
package provisionprivileges

type Input struct {
	Compact              string   `json:"compact"`
	ProviderID           string   `json:"providerId"`
	LicenseJurisdiction  string   `json:"licenseJurisdiction"`
	Jurisdictions        []string `json:"jurisdictions"`
	DateOfExpiration     string   `json:"dateOfExpiration"`
	CompactTransactionID string   `json:"compactTransactionId"`
}

type Output struct {
	ProvisionedCount         int      `json:"provisionedCount"`
	ProvisionedJurisdictions []string `json:"provisionedJurisdictions"`
	PublishFailures          int      `json:"publishFailures"`
	ProcessedAt              string   `json:"processedAt"` // ISO 8601
}
