// internal/workers/data-access/get-provider/models.go
package getprovider

import "licensure-workers/internal/models"

type Input struct {
	Compact    string `json:"compact"`
	ProviderID string `json:"providerId"`
}

// LicenseDetail is one stored license plus the status derived from its
// jurisdiction status and expiration at read time.
type LicenseDetail struct {
	models.License
	Status string `json:"status"`
}

type Output struct {
	Provider   models.Provider    `json:"provider"`
	Licenses   []LicenseDetail    `json:"licenses"`
	Privileges []models.Privilege `json:"privileges,omitempty"`
	FromCache  bool               `json:"fromCache"`
}
