// internal/workers/ingest/license-ingest/handler.go
package licenseingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"licensure-workers/internal/common/errors"
	"licensure-workers/internal/common/events"
	"licensure-workers/internal/common/logger"
	"licensure-workers/internal/common/metrics"
	"licensure-workers/internal/models"
	"licensure-workers/internal/providerdata"
	"licensure-workers/pkg/compacts"
)

const (
	TaskType = "license-ingest"
)

// Ingester commits one submission to the provider partition.
type Ingester interface {
	IngestLicense(ctx context.Context, sub models.LicenseSubmission) (*providerdata.IngestResult, error)
}

type Handler struct {
	config   *Config
	data     Ingester
	registry *compacts.CompactRegistry
	auditDB  *sql.DB
	bus      events.PutEventsAPI
	errors   *errors.ErrorHandler
	logger   logger.Logger
}

// NewHandler wires the ingest worker. auditDB may be nil, which disables
// the audit archive.
func NewHandler(config *Config, data Ingester, registry *compacts.CompactRegistry, auditDB *sql.DB, bus events.PutEventsAPI, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		data:     data,
		registry: registry,
		auditDB:  auditDB,
		bus:      bus,
		errors:   errors.NewErrorHandler(log),
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, errors.NewMalformedInputError(err))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

// execute processes the batch. Referential rejections and invalid
// submissions become recorded failures; store trouble aborts the job so
// redelivery replays the whole batch, which is safe because committed
// submissions re-derive the same writes.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Compact == "" {
		return nil, errors.NewMissingFieldError("compact")
	}

	writer, err := events.OpenBatchWriter(h.bus, h.config.EventBusName, h.config.EventSource, h.config.EventBatchSize, h.logger)
	if err != nil {
		return nil, err
	}
	defer writer.Close(ctx)

	compact, registered := h.registry.Get(input.Compact)

	output := &Output{}
	for i := range input.Submissions {
		sub := input.Submissions[i]
		if sub.Compact == "" {
			sub.Compact = strings.ToLower(input.Compact)
		}

		if reject := h.checkReferences(compact, registered, input.Compact, sub); reject != nil {
			if err := h.recordFailure(ctx, writer, output, i, sub, reject); err != nil {
				return nil, err
			}
			continue
		}

		result, err := h.data.IngestLicense(ctx, sub)
		if err != nil {
			if errors.IsKind(err, errors.KindInvalidRequest) {
				if err := h.recordFailure(ctx, writer, output, i, sub, err); err != nil {
					return nil, err
				}
				continue
			}
			return nil, err
		}

		output.IngestedCount++
		h.auditSubmission(ctx, sub, "ingested", "", "")
		if err := h.publishIngest(ctx, writer, sub); err != nil {
			return nil, err
		}

		h.logger.Debug("submission committed", map[string]interface{}{
			"providerId":       sub.ProviderID,
			"jurisdiction":     sub.Jurisdiction,
			"canonicalChanged": result.CanonicalChanged,
		})
	}

	if err := writer.Close(ctx); err != nil {
		return nil, err
	}

	output.PublishFailures = writer.FailedCount()
	output.ProcessedAt = time.Now().UTC().Format(time.RFC3339)

	h.logger.Info("batch processed", map[string]interface{}{
		"compact":         input.Compact,
		"ingested":        output.IngestedCount,
		"failed":          output.FailedCount,
		"publishFailures": output.PublishFailures,
	})
	return output, nil
}

// checkReferences validates a submission against the compact registry.
func (h *Handler) checkReferences(compact *compacts.Compact, registered bool, batchCompact string, sub models.LicenseSubmission) error {
	if !registered {
		return errors.NewUnknownCompactError(batchCompact)
	}
	if !strings.EqualFold(sub.Compact, compact.Abbreviation) {
		return errors.NewUnknownCompactError(sub.Compact)
	}
	if !compact.IsMemberJurisdiction(sub.Jurisdiction) {
		return errors.NewUnknownJurisdictionError(sub.Compact, sub.Jurisdiction)
	}
	if !compact.HasLicenseType(sub.LicenseType) {
		return errors.NewUnknownLicenseTypeError(sub.Compact, sub.LicenseType)
	}
	return nil
}

func (h *Handler) recordFailure(ctx context.Context, writer *events.BatchWriter, output *Output, index int, sub models.LicenseSubmission, cause error) error {
	code := "INTERNAL_ERROR"
	message := cause.Error()
	if std, ok := errors.AsStandard(cause); ok {
		code = string(std.Code)
		message = std.Message
		if std.Details != "" {
			message += " (" + std.Details + ")"
		}
	}

	output.FailedCount++
	output.Failures = append(output.Failures, SubmissionFailure{
		Index:        index,
		ProviderID:   sub.ProviderID,
		Jurisdiction: sub.Jurisdiction,
		LicenseType:  sub.LicenseType,
		ErrorCode:    code,
		Message:      message,
	})
	metrics.LicenseIngestFailures.WithLabelValues(sub.Compact, code).Inc()

	h.logger.Warn("submission rejected", map[string]interface{}{
		"index":        index,
		"providerId":   sub.ProviderID,
		"jurisdiction": sub.Jurisdiction,
		"errorCode":    code,
	})

	h.auditSubmission(ctx, sub, "rejected", code, message)

	env, err := models.NewEnvelope("", models.DetailTypeLicenseIngestFailure, models.LicenseIngestFailureDetail{
		EventTime:    models.EventTime(time.Now()),
		Compact:      sub.Compact,
		Jurisdiction: sub.Jurisdiction,
		Errors:       []string{message},
	})
	if err != nil {
		return err
	}
	return writer.Put(ctx, env)
}

func (h *Handler) publishIngest(ctx context.Context, writer *events.BatchWriter, sub models.LicenseSubmission) error {
	env, err := models.NewEnvelope("", models.DetailTypeLicenseIngest, models.LicenseIngestDetail{
		EventTime:    models.EventTime(time.Now()),
		Compact:      sub.Compact,
		Jurisdiction: sub.Jurisdiction,
		ProviderID:   sub.ProviderID,
		LicenseType:  sub.LicenseType,
	})
	if err != nil {
		return err
	}
	return writer.Put(ctx, env)
}

// auditSubmission writes one best-effort archive row. Failures are logged,
// never raised; the record store is the system of record.
func (h *Handler) auditSubmission(ctx context.Context, sub models.LicenseSubmission, outcome, errorCode, detail string) {
	if h.auditDB == nil {
		return
	}

	_, err := h.auditDB.ExecContext(ctx, `
		INSERT INTO license_audit (
			id, compact, provider_id, jurisdiction, license_type,
			outcome, error_code, detail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New().String(),
		sub.Compact,
		sub.ProviderID,
		sub.Jurisdiction,
		sub.LicenseType,
		outcome,
		errorCode,
		detail,
		time.Now().UTC(),
	)
	if err != nil {
		metrics.AuditWriteFailures.Inc()
		h.logger.Warn("audit archive insert failed", map[string]interface{}{
			"error":      err,
			"providerId": sub.ProviderID,
			"outcome":    outcome,
		})
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey": job.Key,
	})
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := "INTERNAL_ERROR"
	if std, ok := errors.AsStandard(err); ok {
		code = string(std.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

// Execute exposes the core path for workflow-level tests.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
