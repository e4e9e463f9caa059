// pkg/compacts/schema.go
package compacts

type CompactRegistry struct {
	Version     string    `json:"version"`
	LastUpdated string    `json:"lastUpdated"`
	Compacts    []Compact `json:"compacts"`
}

type Compact struct {
	Abbreviation        string   `json:"abbreviation"`
	DisplayName         string   `json:"displayName"`
	Description         string   `json:"description"`
	LicenseTypes        []string `json:"licenseTypes"`
	MemberJurisdictions []string `json:"memberJurisdictions"`
}
