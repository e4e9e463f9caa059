// internal/providerdata/ingest_test.go
package providerdata

import (
	"context"
	goerrors "errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensure-workers/internal/common/errors"
	"licensure-workers/internal/common/logger"
	"licensure-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func submission(jurisdiction, licenseType, status, issued, expires string) models.LicenseSubmission {
	return models.LicenseSubmission{
		ProviderID:         "prov-001",
		Compact:            "aslp",
		Jurisdiction:       jurisdiction,
		LicenseType:        licenseType,
		GivenName:          "Jane",
		FamilyName:         "Doe",
		DateOfIssuance:     issued,
		DateOfExpiration:   expires,
		JurisdictionStatus: status,
	}
}

func itemString(item map[string]types.AttributeValue, name string) string {
	if attr, ok := item[name].(*types.AttributeValueMemberS); ok {
		return attr.Value
	}
	return ""
}

func itemNumber(item map[string]types.AttributeValue, name string) string {
	if attr, ok := item[name].(*types.AttributeValueMemberN); ok {
		return attr.Value
	}
	return ""
}

// ==========================
// Core Functionality Tests
// ==========================

func TestClient_IngestLicense_CreatesProviderOnFirstLicense(t *testing.T) {
	store := &fakeStore{}
	client := newTestClient(t, store)

	sub := submission("oh", "slp", models.JurisdictionStatusActive, "2023-06-01", "2026-06-01")
	result, err := client.IngestLicense(context.Background(), sub)
	require.NoError(t, err)

	require.Len(t, store.transactInputs, 1)
	items := store.transactInputs[0].TransactItems
	require.Len(t, items, 2)

	licensePut := items[0].Put
	require.NotNil(t, licensePut)
	assert.Equal(t, testTable, aws.ToString(licensePut.TableName))
	assert.Nil(t, licensePut.ConditionExpression)
	assert.Equal(t, "aslp#PROVIDER#prov-001", itemString(licensePut.Item, "pk"))
	assert.Equal(t, "aslp#LICENSE#oh#slp", itemString(licensePut.Item, "sk"))
	assert.Equal(t, "2024-07-01T12:00:00Z", itemString(licensePut.Item, "dateOfUpdate"))

	providerPut := items[1].Put
	require.NotNil(t, providerPut)
	assert.Equal(t, "attribute_not_exists(pk) OR #version = :expectedVersion", aws.ToString(providerPut.ConditionExpression))
	assert.Equal(t, "version", providerPut.ExpressionAttributeNames["#version"])
	expected := providerPut.ExpressionAttributeValues[":expectedVersion"]
	require.IsType(t, &types.AttributeValueMemberN{}, expected)
	assert.Equal(t, "0", expected.(*types.AttributeValueMemberN).Value)
	assert.Equal(t, "aslp#PROVIDER", itemString(providerPut.Item, "sk"))
	assert.Equal(t, models.RecordTypeProvider, itemString(providerPut.Item, "type"))
	assert.Equal(t, "oh", itemString(providerPut.Item, "licenseJurisdiction"))
	assert.Equal(t, "1", itemNumber(providerPut.Item, "version"))
	assert.Equal(t, "aslp#NAME", itemString(providerPut.Item, "nameIndexPK"))
	assert.Equal(t, "doe#jane#prov-001", itemString(providerPut.Item, "nameIndexSK"))

	assert.True(t, result.CanonicalChanged)
	assert.Equal(t, int64(1), result.Provider.Version)
	assert.Equal(t, "aslp#LICENSE#oh#slp", result.License.SK)
}

func TestClient_IngestLicense_RewritesProviderWhenCanonicalChanges(t *testing.T) {
	licenseA := storedLicense(candidate("oh", "slp", models.JurisdictionStatusActive, "2023-06-01", "2026-06-01"))
	provider := storedProviderFor(licenseA, 3, []string{"ky"})

	store := &fakeStore{
		queryOutputs: []*dynamodb.QueryOutput{
			partitionPage([]map[string]types.AttributeValue{
				mustMarshal(t, provider), mustMarshal(t, licenseA),
			}, nil),
		},
	}
	client := newTestClient(t, store)

	sub := submission("ne", "slp", models.JurisdictionStatusActive, "2024-01-01", "2026-06-01")
	result, err := client.IngestLicense(context.Background(), sub)
	require.NoError(t, err)

	require.Len(t, store.transactInputs, 1)
	items := store.transactInputs[0].TransactItems
	require.Len(t, items, 2)

	providerPut := items[1].Put
	require.NotNil(t, providerPut)
	assert.Equal(t, "ne", itemString(providerPut.Item, "licenseJurisdiction"))
	assert.Equal(t, "4", itemNumber(providerPut.Item, "version"))

	expected := providerPut.ExpressionAttributeValues[":expectedVersion"]
	require.IsType(t, &types.AttributeValueMemberN{}, expected)
	assert.Equal(t, "3", expected.(*types.AttributeValueMemberN).Value)

	// The privilege set rides along unchanged.
	privileges, ok := providerPut.Item["privilegeJurisdictions"].(*types.AttributeValueMemberSS)
	require.True(t, ok)
	assert.Equal(t, []string{"ky"}, privileges.Value)

	assert.True(t, result.CanonicalChanged)
	assert.Equal(t, []string{"ky"}, result.Provider.PrivilegeJurisdictions)
	assert.Equal(t, int64(4), result.Provider.Version)
}

func TestClient_IngestLicense_SkipsProviderWhenCanonicalUnchanged(t *testing.T) {
	licenseA := storedLicense(candidate("oh", "slp", models.JurisdictionStatusActive, "2023-06-01", "2026-06-01"))
	provider := storedProviderFor(licenseA, 3, nil)

	store := &fakeStore{
		queryOutputs: []*dynamodb.QueryOutput{
			partitionPage([]map[string]types.AttributeValue{
				mustMarshal(t, provider), mustMarshal(t, licenseA),
			}, nil),
		},
	}
	client := newTestClient(t, store)

	// An older, inactive license for another jurisdiction cannot displace
	// the active canonical license.
	sub := submission("ky", "slp", models.JurisdictionStatusInactive, "2022-01-01", "2023-01-01")
	result, err := client.IngestLicense(context.Background(), sub)
	require.NoError(t, err)

	require.Len(t, store.transactInputs, 1)
	items := store.transactInputs[0].TransactItems
	require.Len(t, items, 1)
	assert.Equal(t, "aslp#LICENSE#ky#slp", itemString(items[0].Put.Item, "sk"))

	assert.False(t, result.CanonicalChanged)
	assert.Equal(t, int64(3), result.Provider.Version)
	assert.Equal(t, "oh", result.Provider.LicenseJurisdiction)
}

func TestClient_IngestLicense_ReplacesSameJurisdictionLicense(t *testing.T) {
	licenseA := storedLicense(candidate("oh", "slp", models.JurisdictionStatusActive, "2023-06-01", "2025-01-01"))
	provider := storedProviderFor(licenseA, 1, nil)

	store := &fakeStore{
		queryOutputs: []*dynamodb.QueryOutput{
			partitionPage([]map[string]types.AttributeValue{
				mustMarshal(t, provider), mustMarshal(t, licenseA),
			}, nil),
		},
	}
	client := newTestClient(t, store)

	// Renewal: same (jurisdiction, licenseType), pushed-out expiration.
	sub := submission("oh", "slp", models.JurisdictionStatusActive, "2023-06-01", "2027-01-01")
	result, err := client.IngestLicense(context.Background(), sub)
	require.NoError(t, err)

	require.Len(t, store.transactInputs, 1)
	items := store.transactInputs[0].TransactItems
	require.Len(t, items, 2)

	// Same sort key: the put replaces the prior record wholesale.
	assert.Equal(t, "aslp#LICENSE#oh#slp", itemString(items[0].Put.Item, "sk"))
	assert.Equal(t, "2027-01-01", itemString(items[1].Put.Item, "dateOfExpiration"))
	assert.Equal(t, "2", itemNumber(items[1].Put.Item, "version"))
	assert.True(t, result.CanonicalChanged)
}

// ==========================
// Failure Classification Tests
// ==========================

func TestClient_IngestLicense_VersionConflict(t *testing.T) {
	store := &fakeStore{
		transactErrs: []error{&types.TransactionCanceledException{
			Message: aws.String("Transaction cancelled"),
			CancellationReasons: []types.CancellationReason{
				{Code: aws.String("None")},
				{Code: aws.String("ConditionalCheckFailed")},
			},
		}},
	}
	client := newTestClient(t, store)

	_, err := client.IngestLicense(context.Background(),
		submission("oh", "slp", models.JurisdictionStatusActive, "2023-06-01", "2026-06-01"))

	assert.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeProviderVersionConflict))
	assert.True(t, errors.IsKind(err, errors.KindConsistency))
	assert.True(t, errors.IsRetryable(err))

	std, ok := errors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, "prov-001", std.Metadata["providerId"])
	assert.Equal(t, "oh", std.Metadata["jurisdiction"])
}

func TestClient_IngestLicense_CancellationWithoutConditionFailure(t *testing.T) {
	store := &fakeStore{
		transactErrs: []error{&types.TransactionCanceledException{
			Message: aws.String("Transaction cancelled"),
			CancellationReasons: []types.CancellationReason{
				{Code: aws.String("TransactionConflict")},
			},
		}},
	}
	client := newTestClient(t, store)

	_, err := client.IngestLicense(context.Background(),
		submission("oh", "slp", models.JurisdictionStatusActive, "2023-06-01", "2026-06-01"))

	assert.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTransactionFailed))
	assert.True(t, errors.IsKind(err, errors.KindInfrastructure))
	assert.True(t, errors.IsRetryable(err))
}

func TestClient_IngestLicense_InfrastructureFailure(t *testing.T) {
	cause := goerrors.New("store down")
	store := &fakeStore{transactErrs: []error{cause}}
	client := newTestClient(t, store)

	_, err := client.IngestLicense(context.Background(),
		submission("oh", "slp", models.JurisdictionStatusActive, "2023-06-01", "2026-06-01"))

	assert.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTransactionFailed))
	assert.True(t, goerrors.Is(err, cause))
}

func TestClient_IngestLicense_PartitionReadFailure(t *testing.T) {
	store := &fakeStore{queryErrs: []error{goerrors.New("read blew up")}}
	client := newTestClient(t, store)

	_, err := client.IngestLicense(context.Background(),
		submission("oh", "slp", models.JurisdictionStatusActive, "2023-06-01", "2026-06-01"))

	assert.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStoreUnavailable))
	assert.Empty(t, store.transactInputs)
}

// ==========================
// Edge Cases
// ==========================

func TestClient_IngestLicense_MissingKeyFields(t *testing.T) {
	store := &fakeStore{}
	client := newTestClient(t, store)

	cases := []struct {
		name   string
		mutate func(*models.LicenseSubmission)
	}{
		{"no provider id", func(s *models.LicenseSubmission) { s.ProviderID = "" }},
		{"no compact", func(s *models.LicenseSubmission) { s.Compact = "" }},
		{"no jurisdiction", func(s *models.LicenseSubmission) { s.Jurisdiction = "" }},
		{"no license type", func(s *models.LicenseSubmission) { s.LicenseType = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := submission("oh", "slp", models.JurisdictionStatusActive, "2023-06-01", "2026-06-01")
			tc.mutate(&sub)

			_, err := client.IngestLicense(context.Background(), sub)
			assert.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeMissingField))
		})
	}
	assert.Empty(t, store.queryInputs)
}

// ==========================
// Benchmark Tests
// ==========================

func BenchmarkClient_IngestLicense(b *testing.B) {
	store := &fakeStore{}
	client, err := NewClient(store, ClientConfig{TableName: testTable, NameIndexName: testNameIndex}, logger.NewNoOpLogger())
	if err != nil {
		b.Fatal(err)
	}
	sub := submission("oh", "slp", models.JurisdictionStatusActive, "2023-06-01", "2026-06-01")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		client.IngestLicense(context.Background(), sub)
	}
}
