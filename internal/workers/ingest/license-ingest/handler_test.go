// internal/workers/ingest/license-ingest/handler_test.go
package licenseingest

import (
	"context"
	"database/sql"
	"encoding/json"
	goerrors "errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensure-workers/internal/common/errors"
	"licensure-workers/internal/common/events"
	"licensure-workers/internal/common/logger"
	"licensure-workers/internal/models"
	"licensure-workers/internal/providerdata"
	"licensure-workers/pkg/compacts"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeIngester struct {
	subs []models.LicenseSubmission
	errs map[int]error
}

func (f *fakeIngester) IngestLicense(ctx context.Context, sub models.LicenseSubmission) (*providerdata.IngestResult, error) {
	i := len(f.subs)
	f.subs = append(f.subs, sub)
	if err := f.errs[i]; err != nil {
		return nil, err
	}
	return &providerdata.IngestResult{
		License:          sub.ToLicense(time.Now()),
		CanonicalChanged: true,
	}, nil
}

type fakeBus struct {
	calls          []*eventbridge.PutEventsInput
	errOn          map[int]error
	failFirstEntry bool
}

func (f *fakeBus) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	i := len(f.calls)
	f.calls = append(f.calls, in)
	if err := f.errOn[i]; err != nil {
		return nil, err
	}

	out := &eventbridge.PutEventsOutput{
		Entries: make([]ebtypes.PutEventsResultEntry, len(in.Entries)),
	}
	if f.failFirstEntry && len(in.Entries) > 0 {
		out.Entries[0].ErrorCode = aws.String("ThrottlingException")
		out.Entries[0].ErrorMessage = aws.String("Rate exceeded")
		out.FailedEntryCount = 1
	}
	return out, nil
}

func (f *fakeBus) detailTypes() []string {
	var types []string
	for _, call := range f.calls {
		for _, entry := range call.Entries {
			types = append(types, aws.ToString(entry.DetailType))
		}
	}
	return types
}

func testRegistry() *compacts.CompactRegistry {
	return &compacts.CompactRegistry{
		Compacts: []compacts.Compact{{
			Abbreviation:        "aslp",
			DisplayName:         "Audiology and Speech-Language Pathology",
			LicenseTypes:        []string{"aud", "slp"},
			MemberJurisdictions: []string{"oh", "ky", "ne"},
		}},
	}
}

func newTestHandler(t *testing.T, data Ingester, bus events.PutEventsAPI, db *sql.DB) *Handler {
	t.Helper()
	cfg := &Config{
		Timeout:        30 * time.Second,
		EventBusName:   "license-data-events",
		EventSource:    "licensure.records",
		EventBatchSize: 10,
	}
	return NewHandler(cfg, data, testRegistry(), db, bus, logger.NewTestLogger(t))
}

func batchSubmission(providerID, jurisdiction, licenseType string) models.LicenseSubmission {
	return models.LicenseSubmission{
		ProviderID:         providerID,
		Compact:            "aslp",
		Jurisdiction:       jurisdiction,
		LicenseType:        licenseType,
		GivenName:          "Jane",
		FamilyName:         "Doe",
		DateOfIssuance:     "2023-06-01",
		DateOfExpiration:   "2026-06-01",
		JurisdictionStatus: models.JurisdictionStatusActive,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_IngestsBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO license_audit").WillReturnResult(sqlmock.NewResult(1, 1))
	}

	data := &fakeIngester{}
	bus := &fakeBus{}
	handler := newTestHandler(t, data, bus, db)

	output, err := handler.Execute(context.Background(), &Input{
		Compact: "aslp",
		Submissions: []models.LicenseSubmission{
			batchSubmission("prov-001", "oh", "slp"),
			batchSubmission("prov-002", "ky", "aud"),
			batchSubmission("prov-003", "ne", "slp"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, output.IngestedCount)
	assert.Equal(t, 0, output.FailedCount)
	assert.Empty(t, output.Failures)
	assert.Equal(t, 0, output.PublishFailures)
	assert.NotEmpty(t, output.ProcessedAt)

	require.Len(t, data.subs, 3)
	assert.Equal(t, "prov-002", data.subs[1].ProviderID)

	// One event per committed submission, flushed as a single batch.
	require.Len(t, bus.calls, 1)
	assert.Equal(t, []string{"license.ingest", "license.ingest", "license.ingest"}, bus.detailTypes())

	var detail models.LicenseIngestDetail
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(bus.calls[0].Entries[0].Detail)), &detail))
	assert.Equal(t, "prov-001", detail.ProviderID)
	assert.Equal(t, "oh", detail.Jurisdiction)
	assert.NotEmpty(t, detail.EventTime)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_DefaultsSubmissionCompact(t *testing.T) {
	data := &fakeIngester{}
	handler := newTestHandler(t, data, &fakeBus{}, nil)

	sub := batchSubmission("prov-001", "oh", "slp")
	sub.Compact = ""
	_, err := handler.Execute(context.Background(), &Input{Compact: "ASLP", Submissions: []models.LicenseSubmission{sub}})
	require.NoError(t, err)

	require.Len(t, data.subs, 1)
	assert.Equal(t, "aslp", data.subs[0].Compact)
}

func TestHandler_Execute_RecordsReferentialFailures(t *testing.T) {
	data := &fakeIngester{}
	bus := &fakeBus{}
	handler := newTestHandler(t, data, bus, nil)

	wrongCompact := batchSubmission("prov-004", "oh", "slp")
	wrongCompact.Compact = "octp"

	output, err := handler.Execute(context.Background(), &Input{
		Compact: "aslp",
		Submissions: []models.LicenseSubmission{
			batchSubmission("prov-001", "oh", "slp"),
			batchSubmission("prov-002", "tx", "slp"),
			batchSubmission("prov-003", "oh", "lpc"),
			wrongCompact,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, output.IngestedCount)
	assert.Equal(t, 3, output.FailedCount)
	require.Len(t, output.Failures, 3)

	assert.Equal(t, 1, output.Failures[0].Index)
	assert.Equal(t, "UNKNOWN_JURISDICTION", output.Failures[0].ErrorCode)
	assert.Equal(t, 2, output.Failures[1].Index)
	assert.Equal(t, "UNKNOWN_LICENSE_TYPE", output.Failures[1].ErrorCode)
	assert.Equal(t, 3, output.Failures[2].Index)
	assert.Equal(t, "UNKNOWN_COMPACT", output.Failures[2].ErrorCode)

	// Only the valid submission reached the store.
	require.Len(t, data.subs, 1)
	assert.Equal(t, "prov-001", data.subs[0].ProviderID)

	assert.Equal(t, []string{
		"license.ingest",
		"license.ingest.failure",
		"license.ingest.failure",
		"license.ingest.failure",
	}, bus.detailTypes())
}

func TestHandler_Execute_UnknownCompactFailsEverySubmission(t *testing.T) {
	data := &fakeIngester{}
	bus := &fakeBus{}
	handler := newTestHandler(t, data, bus, nil)

	output, err := handler.Execute(context.Background(), &Input{
		Compact: "dent",
		Submissions: []models.LicenseSubmission{
			batchSubmission("prov-001", "oh", "slp"),
			batchSubmission("prov-002", "ky", "aud"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, output.IngestedCount)
	assert.Equal(t, 2, output.FailedCount)
	for _, failure := range output.Failures {
		assert.Equal(t, "UNKNOWN_COMPACT", failure.ErrorCode)
	}
	assert.Empty(t, data.subs)
}

func TestHandler_Execute_InvalidSubmissionIsRecordedNotFatal(t *testing.T) {
	data := &fakeIngester{errs: map[int]error{0: errors.NewMissingFieldError("dateOfIssuance")}}
	handler := newTestHandler(t, data, &fakeBus{}, nil)

	output, err := handler.Execute(context.Background(), &Input{
		Compact: "aslp",
		Submissions: []models.LicenseSubmission{
			batchSubmission("prov-001", "oh", "slp"),
			batchSubmission("prov-002", "ky", "aud"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, output.IngestedCount)
	assert.Equal(t, 1, output.FailedCount)
	require.Len(t, output.Failures, 1)
	assert.Equal(t, 0, output.Failures[0].Index)
	assert.Equal(t, "MISSING_FIELD", output.Failures[0].ErrorCode)
	assert.Len(t, data.subs, 2)
}

// ==========================
// Failure Propagation Tests
// ==========================

func TestHandler_Execute_StoreFailureAbortsJob(t *testing.T) {
	cause := goerrors.New("store down")
	data := &fakeIngester{errs: map[int]error{1: errors.NewStoreUnavailableError("transact", cause)}}
	handler := newTestHandler(t, data, &fakeBus{}, nil)

	output, err := handler.Execute(context.Background(), &Input{
		Compact: "aslp",
		Submissions: []models.LicenseSubmission{
			batchSubmission("prov-001", "oh", "slp"),
			batchSubmission("prov-002", "ky", "aud"),
			batchSubmission("prov-003", "ne", "slp"),
		},
	})

	require.Error(t, err)
	assert.Nil(t, output)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStoreUnavailable))
	assert.True(t, errors.IsRetryable(err))
	// The third submission is never attempted; redelivery replays the batch.
	assert.Len(t, data.subs, 2)
}

func TestHandler_Execute_TransportFailureAbortsJob(t *testing.T) {
	cause := goerrors.New("bus down")
	bus := &fakeBus{errOn: map[int]error{0: cause}}
	handler := newTestHandler(t, &fakeIngester{}, bus, nil)
	handler.config.EventBatchSize = 2

	_, err := handler.Execute(context.Background(), &Input{
		Compact: "aslp",
		Submissions: []models.LicenseSubmission{
			batchSubmission("prov-001", "oh", "slp"),
			batchSubmission("prov-002", "ky", "aud"),
			batchSubmission("prov-003", "ne", "slp"),
		},
	})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEventPublishFailed))
	assert.True(t, goerrors.Is(err, cause))
}

func TestHandler_Execute_CountsPartialPublishFailures(t *testing.T) {
	bus := &fakeBus{failFirstEntry: true}
	handler := newTestHandler(t, &fakeIngester{}, bus, nil)

	output, err := handler.Execute(context.Background(), &Input{
		Compact: "aslp",
		Submissions: []models.LicenseSubmission{
			batchSubmission("prov-001", "oh", "slp"),
			batchSubmission("prov-002", "ky", "aud"),
		},
	})
	require.NoError(t, err)

	// Per-entry rejections do not fail the job; they are reported.
	assert.Equal(t, 2, output.IngestedCount)
	assert.Equal(t, 1, output.PublishFailures)
}

// ==========================
// Edge Cases
// ==========================

func TestHandler_Execute_MissingCompact(t *testing.T) {
	bus := &fakeBus{}
	handler := newTestHandler(t, &fakeIngester{}, bus, nil)

	_, err := handler.Execute(context.Background(), &Input{})
	assert.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMissingField))
	assert.Empty(t, bus.calls)
}

func TestHandler_Execute_EmptyBatch(t *testing.T) {
	bus := &fakeBus{}
	handler := newTestHandler(t, &fakeIngester{}, bus, nil)

	output, err := handler.Execute(context.Background(), &Input{Compact: "aslp"})
	require.NoError(t, err)

	assert.Equal(t, 0, output.IngestedCount)
	assert.Equal(t, 0, output.FailedCount)
	// Closing with nothing buffered must not touch the transport.
	assert.Empty(t, bus.calls)
}

func TestHandler_Execute_AuditFailureDoesNotFailJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("INSERT INTO license_audit").WillReturnError(goerrors.New("archive down"))

	handler := newTestHandler(t, &fakeIngester{}, &fakeBus{}, db)

	output, err := handler.Execute(context.Background(), &Input{
		Compact:     "aslp",
		Submissions: []models.LicenseSubmission{batchSubmission("prov-001", "oh", "slp")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, output.IngestedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Integration Test
// ==========================

func TestHandler_Execute_AuditRowShape(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO license_audit").
		WithArgs(sqlmock.AnyArg(), "aslp", "prov-001", "oh", "slp", "ingested", "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO license_audit").
		WithArgs(sqlmock.AnyArg(), "aslp", "prov-002", "tx", "slp", "rejected", "UNKNOWN_JURISDICTION", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	handler := newTestHandler(t, &fakeIngester{}, &fakeBus{}, db)

	_, err = handler.Execute(context.Background(), &Input{
		Compact: "aslp",
		Submissions: []models.LicenseSubmission{
			batchSubmission("prov-001", "oh", "slp"),
			batchSubmission("prov-002", "tx", "slp"),
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Benchmark Tests
// ==========================

func BenchmarkHandler_Execute(b *testing.B) {
	cfg := &Config{Timeout: time.Minute, EventBusName: "license-data-events", EventSource: "licensure.records", EventBatchSize: 10}
	handler := NewHandler(cfg, &fakeIngester{}, testRegistry(), nil, &fakeBus{}, logger.NewNoOpLogger())

	input := &Input{
		Compact:     "aslp",
		Submissions: []models.LicenseSubmission{batchSubmission("prov-001", "oh", "slp")},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := handler.Execute(context.Background(), input); err != nil {
			b.Fatal(err)
		}
	}
}
