// internal/providerdata/provisioner.go
package providerdata

import (
	"context"
	goerrors "errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"licensure-workers/internal/common/errors"
	"licensure-workers/internal/common/metrics"
	"licensure-workers/internal/models"
)

// The store caps one bulk write request at twenty-five items.
const bulkWritePageSize = 25

// Unprocessed-item retries per page before giving up.
const maxUnprocessedRetries = 4

// ProvisionInput identifies one purchase: which jurisdictions the provider
// bought privileges in, backed by which home-state license.
type ProvisionInput struct {
	Compact              string
	ProviderID           string
	LicenseJurisdiction  string
	Jurisdictions        []string
	DateOfExpiration     string
	CompactTransactionID string
}

// ProvisionPrivileges writes one privilege record per purchased
// jurisdiction as a best-effort bulk write, then merges the jurisdictions
// into the provider summary's privilege set. All records are constructed
// up front from the input alone, so when any write fails the same keys are
// deleted again in compensation; after an error none of the records
// remain. Compensation failures are logged, never raised, because the
// original cause is what the caller must see.
func (c *Client) ProvisionPrivileges(ctx context.Context, in ProvisionInput) error {
	if err := requireProvisionKeys(in); err != nil {
		return err
	}
	if len(in.Jurisdictions) == 0 {
		return nil
	}

	records := buildPrivilegeRecords(in, c.now())

	if err := c.putPrivileges(ctx, records); err != nil {
		c.compensatePrivileges(ctx, records)
		metrics.PrivilegeCompensations.WithLabelValues(in.Compact).Inc()
		return errors.NewProvisioningFailedError(in.ProviderID, in.CompactTransactionID, err).
			WithMetadata("compact", in.Compact)
	}

	if err := c.addPrivilegeJurisdictions(ctx, in, records); err != nil {
		c.compensatePrivileges(ctx, records)
		metrics.PrivilegeCompensations.WithLabelValues(in.Compact).Inc()
		if errors.IsCode(err, errors.ErrCodeProviderNotFound) {
			return err
		}
		return errors.NewProvisioningFailedError(in.ProviderID, in.CompactTransactionID, err).
			WithMetadata("compact", in.Compact)
	}

	metrics.PrivilegesProvisioned.WithLabelValues(in.Compact).Add(float64(len(records)))
	if c.log != nil {
		c.log.Info("Privileges provisioned", map[string]interface{}{
			"providerId":           in.ProviderID,
			"compact":              in.Compact,
			"jurisdictions":        len(records),
			"compactTransactionId": in.CompactTransactionID,
		})
	}
	return nil
}

func requireProvisionKeys(in ProvisionInput) error {
	switch {
	case in.Compact == "":
		return errors.NewMissingFieldError("compact")
	case in.ProviderID == "":
		return errors.NewMissingFieldError("providerId")
	case in.LicenseJurisdiction == "":
		return errors.NewMissingFieldError("licenseJurisdiction")
	case in.CompactTransactionID == "":
		return errors.NewMissingFieldError("compactTransactionId")
	}
	return nil
}

// buildPrivilegeRecords is a pure function of the input and one captured
// timestamp. Duplicate jurisdictions collapse to one record; the store
// rejects duplicate keys within a single bulk request.
func buildPrivilegeRecords(in ProvisionInput, now time.Time) []models.Privilege {
	seen := make(map[string]bool, len(in.Jurisdictions))
	records := make([]models.Privilege, 0, len(in.Jurisdictions))
	for _, jurisdiction := range in.Jurisdictions {
		if seen[jurisdiction] {
			continue
		}
		seen[jurisdiction] = true
		records = append(records, models.Privilege{
			PK:                   providerPK(in.Compact, in.ProviderID),
			SK:                   privilegeSK(in.Compact, jurisdiction),
			Type:                 models.RecordTypePrivilege,
			ProviderID:           in.ProviderID,
			Compact:              in.Compact,
			Jurisdiction:         jurisdiction,
			LicenseJurisdiction:  in.LicenseJurisdiction,
			DateOfIssuance:       now.UTC().Format(models.DateLayout),
			DateOfExpiration:     in.DateOfExpiration,
			CompactTransactionID: in.CompactTransactionID,
			DateOfUpdate:         now.UTC().Format(time.RFC3339),
		})
	}
	return records
}

// addPrivilegeJurisdictions merges the purchased jurisdictions into the
// provider summary's privilege set, which is what listings filter on. ADD
// on a string set is a union, so replays are harmless. The condition pins
// the update to an existing summary: privileges must not outlive a
// provider the compact cannot list.
func (c *Client) addPrivilegeJurisdictions(ctx context.Context, in ProvisionInput, records []models.Privilege) error {
	members := make([]string, 0, len(records))
	for _, record := range records {
		members = append(members, record.Jurisdiction)
	}

	_, err := c.store.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: providerPK(in.Compact, in.ProviderID)},
			"sk": &types.AttributeValueMemberS{Value: providerSK(in.Compact)},
		},
		UpdateExpression:    aws.String("ADD privilegeJurisdictions :jurisdictions"),
		ConditionExpression: aws.String("attribute_exists(pk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":jurisdictions": &types.AttributeValueMemberSS{Value: members},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if goerrors.As(err, &condFailed) {
			return errors.NewProviderNotFoundError(in.Compact, in.ProviderID)
		}
		return classifyStoreError("update privilege set", err)
	}
	return nil
}

func (c *Client) putPrivileges(ctx context.Context, records []models.Privilege) error {
	requests := make([]types.WriteRequest, 0, len(records))
	for _, record := range records {
		item, err := attributevalue.MarshalMap(record)
		if err != nil {
			return err
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	return c.bulkWrite(ctx, requests)
}

// compensatePrivileges deletes every record of the purchase. Deletes are
// unconditional, so re-running after a partial failure is safe. The
// caller's cancellation does not stop compensation: the whole point is to
// converge to zero records even when the deadline caused the failure.
func (c *Client) compensatePrivileges(ctx context.Context, records []models.Privilege) {
	requests := make([]types.WriteRequest, 0, len(records))
	for _, record := range records {
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{
				Key: map[string]types.AttributeValue{
					"pk": &types.AttributeValueMemberS{Value: record.PK},
					"sk": &types.AttributeValueMemberS{Value: record.SK},
				},
			},
		})
	}

	if err := c.bulkWrite(context.WithoutCancel(ctx), requests); err != nil {
		if c.log != nil {
			c.log.WithError(err).Error("Privilege compensation left records behind", map[string]interface{}{
				"records": len(records),
			})
		}
	}
}

// bulkWrite pages requests through the store's bulk primitive, re-driving
// unprocessed items with backoff until the page drains or the retry budget
// runs out.
func (c *Client) bulkWrite(ctx context.Context, requests []types.WriteRequest) error {
	for start := 0; start < len(requests); start += bulkWritePageSize {
		end := min(start+bulkWritePageSize, len(requests))
		remaining := requests[start:end]

		for attempt := 0; ; attempt++ {
			out, err := c.store.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{c.tableName: remaining},
			})
			if err != nil {
				return classifyStoreError("bulk write", err)
			}

			unprocessed := out.UnprocessedItems[c.tableName]
			if len(unprocessed) == 0 {
				break
			}
			if attempt >= maxUnprocessedRetries {
				return errors.NewStoreThrottledError(
					fmt.Errorf("store left %d items unprocessed after %d attempts", len(unprocessed), attempt+1))
			}

			select {
			case <-ctx.Done():
				return errors.NewDeadlineExceededError("bulk write", ctx.Err())
			case <-time.After(time.Duration(50<<attempt) * time.Millisecond):
			}
			remaining = unprocessed
		}
	}
	return nil
}
