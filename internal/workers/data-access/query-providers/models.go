// internal/workers/data-access/query-providers/models.go
package queryproviders

import "licensure-workers/internal/models"

type Input struct {
	Compact      string `json:"compact"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	FamilyName   string `json:"familyName,omitempty"`
	GivenName    string `json:"givenName,omitempty"`
	PageSize     int    `json:"pageSize,omitempty"`
	Cursor       string `json:"cursor,omitempty"`
}

type Output struct {
	Providers []models.Provider `json:"providers"`
	Count     int               `json:"count"`
	// NextCursor resumes the listing after the last provider returned.
	// Absent when the listing is exhausted.
	NextCursor  string `json:"nextCursor,omitempty"`
	QueryTimeMs int64  `json:"queryTimeMs"`
}
