// internal/workers/ingest/license-ingest/models.go
package licenseingest

import "licensure-workers/internal/models"

type Input struct {
	Compact     string                     `json:"compact"`
	Submissions []models.LicenseSubmission `json:"submissions"`
}

// SubmissionFailure describes one rejected submission. Index refers to the
// submission's position in the input batch.
type SubmissionFailure struct {
	Index        int    `json:"index"`
	ProviderID   string `json:"providerId,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	LicenseType  string `json:"licenseType,omitempty"`
	ErrorCode    string `json:"errorCode"`
	Message      string `json:"message"`
}

type Output struct {
	IngestedCount   int                 `json:"ingestedCount"`
	FailedCount     int                 `json:"failedCount"`
	Failures        []SubmissionFailure `json:"failures,omitempty"`
	PublishFailures int                 `json:"publishFailures"`
	ProcessedAt     string              `json:"processedAt"` // ISO 8601
}
