// internal/workers/communication/send-purchase-confirmation/models.go
package sendpurchaseconfirmation

// Notification statuses
const (
	StatusSent     = "sent"
	StatusDisabled = "disabled"
)

type Input struct {
	Compact              string   `json:"compact"`
	ProviderID           string   `json:"providerId"`
	GivenName            string   `json:"givenName"`
	FamilyName           string   `json:"familyName"`
	EmailAddress         string   `json:"emailAddress"`
	PhoneNumber          string   `json:"phoneNumber,omitempty"`
	Jurisdictions        []string `json:"jurisdictions"`
	CompactTransactionID string   `json:"compactTransactionId"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"`
	EmailSent      bool   `json:"emailSent"`
	SMSSent        bool   `json:"smsSent"`
	SentAt         string `json:"sentAt"` // ISO 8601
}
