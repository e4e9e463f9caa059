// internal/providerdata/ingest.go
package providerdata

import (
	"context"
	goerrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"licensure-workers/internal/common/errors"
	"licensure-workers/internal/common/metrics"
	"licensure-workers/internal/models"
)

// IngestResult reports what one committed submission did to the partition.
type IngestResult struct {
	License models.License
	// Provider is the summary now in force: the freshly derived one when
	// the canonical license changed, otherwise the stored one.
	Provider         models.Provider
	CanonicalChanged bool
}

// IngestLicense commits one license submission atomically: the license
// record is always written, and the provider summary is rewritten in the
// same transaction only when the canonical selection over the merged
// license set differs from what is stored. The provider write is guarded
// by a version condition so a concurrent ingest for the same provider
// cancels the transaction instead of losing an update. Re-running the same
// submission derives the same writes, so every failure is safe to retry.
func (c *Client) IngestLicense(ctx context.Context, sub models.LicenseSubmission) (*IngestResult, error) {
	if err := requireSubmissionKeys(sub); err != nil {
		return nil, err
	}

	now := c.now()
	license := sub.ToLicense(now)
	license.PK = providerPK(license.Compact, license.ProviderID)
	license.SK = licenseSK(license.Compact, license.Jurisdiction, license.LicenseType)

	part, err := c.GetProviderPartition(ctx, sub.Compact, sub.ProviderID)
	if err != nil {
		return nil, err
	}

	merged := MergeSubmission(part.Licenses, license)
	canonical, err := SelectCanonical(merged, now, c.tz)
	if err != nil {
		return nil, err
	}

	derived := c.buildProviderSummary(part, canonical, now)
	writeProvider := part.Provider == nil || providerSummaryChanged(*part.Provider, derived)

	licenseItem, err := attributevalue.MarshalMap(license)
	if err != nil {
		return nil, fmt.Errorf("marshal license record: %w", err)
	}

	transactItems := []types.TransactWriteItem{
		{Put: &types.Put{TableName: aws.String(c.tableName), Item: licenseItem}},
	}

	if writeProvider {
		providerItem, err := attributevalue.MarshalMap(derived)
		if err != nil {
			return nil, fmt.Errorf("marshal provider record: %w", err)
		}

		expected := int64(0)
		if part.Provider != nil {
			expected = part.Provider.Version
		}
		transactItems = append(transactItems, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(c.tableName),
				Item:                providerItem,
				ConditionExpression: aws.String("attribute_not_exists(pk) OR #version = :expectedVersion"),
				ExpressionAttributeNames: map[string]string{
					"#version": "version",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":expectedVersion": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
				},
			},
		})
	}

	_, err = c.store.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: transactItems})
	if err != nil {
		return nil, classifyTransactError(sub.ProviderID, sub.Jurisdiction, err)
	}

	metrics.LicensesIngested.WithLabelValues(sub.Compact, strconv.FormatBool(writeProvider)).Inc()
	if c.log != nil {
		c.log.Info("License submission committed", map[string]interface{}{
			"providerId":       sub.ProviderID,
			"compact":          sub.Compact,
			"jurisdiction":     sub.Jurisdiction,
			"licenseType":      sub.LicenseType,
			"canonicalChanged": writeProvider,
		})
	}

	result := &IngestResult{License: license, CanonicalChanged: writeProvider}
	if writeProvider {
		result.Provider = derived
	} else {
		result.Provider = *part.Provider
	}
	return result, nil
}

func requireSubmissionKeys(sub models.LicenseSubmission) error {
	switch {
	case sub.ProviderID == "":
		return errors.NewMissingFieldError("providerId")
	case sub.Compact == "":
		return errors.NewMissingFieldError("compact")
	case sub.Jurisdiction == "":
		return errors.NewMissingFieldError("jurisdiction")
	case sub.LicenseType == "":
		return errors.NewMissingFieldError("licenseType")
	}
	return nil
}

// buildProviderSummary derives the provider item the canonical license
// implies, carrying forward the privilege set and bumping the version.
func (c *Client) buildProviderSummary(part *ProviderPartition, canonical models.License, now time.Time) models.Provider {
	summary := models.Provider{
		PK:                  providerPK(canonical.Compact, canonical.ProviderID),
		SK:                  providerSK(canonical.Compact),
		Type:                models.RecordTypeProvider,
		ProviderID:          canonical.ProviderID,
		Compact:             canonical.Compact,
		GivenName:           canonical.GivenName,
		MiddleName:          canonical.MiddleName,
		FamilyName:          canonical.FamilyName,
		EmailAddress:        canonical.EmailAddress,
		PhoneNumber:         canonical.PhoneNumber,
		LicenseJurisdiction: canonical.Jurisdiction,
		LicenseType:         canonical.LicenseType,
		DateOfIssuance:      canonical.DateOfIssuance,
		DateOfRenewal:       canonical.DateOfRenewal,
		DateOfExpiration:    canonical.DateOfExpiration,
		JurisdictionStatus:  canonical.JurisdictionStatus,
		Version:             1,
		DateOfUpdate:        now.UTC().Format(time.RFC3339),
		NameIndexPK:         nameIndexPK(canonical.Compact),
		NameIndexSK:         nameIndexSK(canonical.FamilyName, canonical.GivenName, canonical.ProviderID),
	}
	if part.Provider != nil {
		summary.PrivilegeJurisdictions = part.Provider.PrivilegeJurisdictions
		summary.Version = part.Provider.Version + 1
	}
	return summary
}

// providerSummaryChanged compares only the fields the canonical license
// dictates. Version and dateOfUpdate are bookkeeping, not content.
func providerSummaryChanged(stored, derived models.Provider) bool {
	return stored.LicenseJurisdiction != derived.LicenseJurisdiction ||
		stored.LicenseType != derived.LicenseType ||
		stored.DateOfIssuance != derived.DateOfIssuance ||
		stored.DateOfRenewal != derived.DateOfRenewal ||
		stored.DateOfExpiration != derived.DateOfExpiration ||
		stored.JurisdictionStatus != derived.JurisdictionStatus ||
		stored.GivenName != derived.GivenName ||
		stored.MiddleName != derived.MiddleName ||
		stored.FamilyName != derived.FamilyName ||
		stored.EmailAddress != derived.EmailAddress ||
		stored.PhoneNumber != derived.PhoneNumber
}

// classifyTransactError separates the version condition losing a race
// (consistency conflict, resolved by redelivery re-reading the partition)
// from plain store trouble.
func classifyTransactError(providerID, jurisdiction string, err error) error {
	var canceled *types.TransactionCanceledException
	if goerrors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return errors.NewVersionConflictError(providerID, err).
					WithMetadata("jurisdiction", jurisdiction)
			}
		}
	}
	return errors.NewTransactionFailedError(providerID, jurisdiction, err)
}
