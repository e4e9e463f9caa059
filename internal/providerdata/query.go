// internal/providerdata/query.go
package providerdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"licensure-workers/internal/common/errors"
	"licensure-workers/internal/common/metrics"
	"licensure-workers/internal/common/pagination"
	"licensure-workers/internal/models"
)

// ProviderQuery lists a compact's providers in name order. FamilyName and
// GivenName narrow the listing by prefix; Jurisdiction keeps only
// providers licensed in or holding a privilege for that jurisdiction.
type ProviderQuery struct {
	Compact      string
	Jurisdiction string
	FamilyName   string
	GivenName    string
	PageSize     int
	Cursor       string
}

// ProviderPage is one exact page of matching provider summaries.
type ProviderPage struct {
	Providers  []models.Provider
	NextCursor string
}

// QueryProviders pages through the name index. The jurisdiction filter
// cannot be expressed as a key condition, so it runs client-side behind
// the paginator, which keeps re-querying until the page is full or the
// compact's listing is exhausted.
func (c *Client) QueryProviders(ctx context.Context, q ProviderQuery) (*ProviderPage, error) {
	if q.Compact == "" {
		return nil, errors.NewMissingFieldError("compact")
	}
	if c.nameIndex == "" {
		return nil, fmt.Errorf("name index is not configured")
	}

	paginator := &pagination.Paginator{
		// Resuming a secondary-index query needs the index keys plus the
		// table keys.
		KeyAttributes: []string{"pk", "sk", "nameIndexPK", "nameIndexSK"},
		MaxQueryCalls: c.maxQueryCalls,
	}

	result, err := paginator.Page(ctx, c.nameQueryFn(q), q.Cursor, q.PageSize, jurisdictionMatcher(q.Jurisdiction))
	if err != nil {
		return nil, err
	}
	metrics.QueryStoreCalls.WithLabelValues(c.nameIndex).Observe(float64(result.StoreCalls))

	providers := make([]models.Provider, 0, len(result.Items))
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &providers); err != nil {
		return nil, fmt.Errorf("unmarshal provider items: %w", err)
	}

	return &ProviderPage{Providers: providers, NextCursor: result.NextCursor}, nil
}

func (c *Client) nameQueryFn(q ProviderQuery) pagination.QueryFn {
	keyCondition := "nameIndexPK = :namePK"
	values := map[string]types.AttributeValue{
		":namePK": &types.AttributeValueMemberS{Value: nameIndexPK(q.Compact)},
	}
	if q.FamilyName != "" {
		prefix := strings.ToLower(q.FamilyName)
		if q.GivenName != "" {
			prefix += "#" + strings.ToLower(q.GivenName)
		}
		keyCondition += " AND begins_with(nameIndexSK, :namePrefix)"
		values[":namePrefix"] = &types.AttributeValueMemberS{Value: prefix}
	}

	return func(ctx context.Context, startKey map[string]types.AttributeValue, limit int32) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
		out, err := c.store.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(c.tableName),
			IndexName:                 aws.String(c.nameIndex),
			KeyConditionExpression:    aws.String(keyCondition),
			ExpressionAttributeValues: values,
			Limit:                     aws.Int32(limit),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return out.Items, out.LastEvaluatedKey, nil
	}
}

// jurisdictionMatcher accepts providers whose canonical license lives in
// the jurisdiction or whose privilege set contains it. An empty
// jurisdiction disables the filter.
func jurisdictionMatcher(jurisdiction string) pagination.MatchFunc {
	if jurisdiction == "" {
		return nil
	}
	return func(item map[string]types.AttributeValue) bool {
		if attr, ok := item["licenseJurisdiction"].(*types.AttributeValueMemberS); ok && attr.Value == jurisdiction {
			return true
		}
		if attr, ok := item["privilegeJurisdictions"].(*types.AttributeValueMemberSS); ok {
			for _, member := range attr.Value {
				if member == jurisdiction {
					return true
				}
			}
		}
		return false
	}
}
