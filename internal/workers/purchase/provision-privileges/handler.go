// internal/workers/purchase/provision-privileges/handler.go
package provisionprivileges

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"licensure-workers/internal/common/errors"
	"licensure-workers/internal/common/events"
	"licensure-workers/internal/common/logger"
	"licensure-workers/internal/common/metrics"
	"licensure-workers/internal/models"
	"licensure-workers/internal/providerdata"
	"licensure-workers/pkg/compacts"
)

const (
	TaskType = "provision-privileges"
)

// Provisioner writes the privilege records for one purchase.
type Provisioner interface {
	ProvisionPrivileges(ctx context.Context, in providerdata.ProvisionInput) error
}

type Handler struct {
	config   *Config
	data     Provisioner
	registry *compacts.CompactRegistry
	bus      events.PutEventsAPI
	errors   *errors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, data Provisioner, registry *compacts.CompactRegistry, bus events.PutEventsAPI, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		data:     data,
		registry: registry,
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

// execute provisions one purchase. Unlike ingestion there is no
// per-item rejection path: the purchase is a single operation and any
// referential problem fails the whole job.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Compact == "" {
		return nil, errors.NewMissingFieldError("compact")
	}
	if len(input.Jurisdictions) == 0 {
		return nil, errors.NewMissingFieldError("jurisdictions")
	}
	if err := h.checkReferences(input); err != nil {
		return nil, err
	}

	writer, err := events.OpenBatchWriter(h.bus, h.config.EventBusName, h.config.EventSource, h.config.EventBatchSize, h.logger)
	if err != nil {
		return nil, err
	}
	defer writer.Close(ctx)

	// Keys are stored lowercase, and a case-variant duplicate is still
	// the same jurisdiction.
	jurisdictions := normalizeJurisdictions(input.Jurisdictions)

	err = h.data.ProvisionPrivileges(ctx, providerdata.ProvisionInput{
		Compact:              strings.ToLower(input.Compact),
		ProviderID:           input.ProviderID,
		LicenseJurisdiction:  strings.ToLower(input.LicenseJurisdiction),
		Jurisdictions:        jurisdictions,
		DateOfExpiration:     input.DateOfExpiration,
		CompactTransactionID: input.CompactTransactionID,
	})
	if err != nil {
		return nil, err
	}

	for _, jurisdiction := range jurisdictions {
		if err := h.publishPurchase(ctx, writer, input, jurisdiction); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(ctx); err != nil {
		return nil, err
	}

	output := &Output{
		ProvisionedCount:         len(jurisdictions),
		ProvisionedJurisdictions: jurisdictions,
		PublishFailures:          writer.FailedCount(),
		ProcessedAt:              time.Now().UTC().Format(time.RFC3339),
	}

	h.logger.Info("purchase processed", map[string]interface{}{
		"compact":              input.Compact,
		"providerId":           input.ProviderID,
		"provisioned":          output.ProvisionedCount,
		"publishFailures":      output.PublishFailures,
		"compactTransactionId": input.CompactTransactionID,
	})
	return output, nil
}

// checkReferences validates the purchase against the compact registry.
// The home-state license jurisdiction must be a member too, otherwise the
// privilege would be backed by a license the compact cannot see.
func (h *Handler) checkReferences(input *Input) error {
	compact, registered := h.registry.Get(input.Compact)
	if !registered {
		return errors.NewUnknownCompactError(input.Compact)
	}
	if !compact.IsMemberJurisdiction(input.LicenseJurisdiction) {
		return errors.NewUnknownJurisdictionError(input.Compact, input.LicenseJurisdiction)
	}
	for _, jurisdiction := range input.Jurisdictions {
		if !compact.IsMemberJurisdiction(jurisdiction) {
			return errors.NewUnknownJurisdictionError(input.Compact, jurisdiction)
		}
	}
	return nil
}

func (h *Handler) publishPurchase(ctx context.Context, writer *events.BatchWriter, input *Input, jurisdiction string) error {
	env, err := models.NewEnvelope("", models.DetailTypePrivilegePurchase, models.PrivilegePurchaseDetail{
		EventTime:            models.EventTime(time.Now()),
		Compact:              strings.ToLower(input.Compact),
		Jurisdiction:         jurisdiction,
		ProviderID:           input.ProviderID,
		LicenseJurisdiction:  strings.ToLower(input.LicenseJurisdiction),
		DateOfExpiration:     input.DateOfExpiration,
		CompactTransactionID: input.CompactTransactionID,
	})
	if err != nil {
		return err
	}
	return writer.Put(ctx, env)
}

func normalizeJurisdictions(jurisdictions []string) []string {
	seen := make(map[string]struct{}, len(jurisdictions))
	out := make([]string, 0, len(jurisdictions))
	for _, jurisdiction := range jurisdictions {
		jurisdiction = strings.ToLower(jurisdiction)
		if _, ok := seen[jurisdiction]; ok {
			continue
		}
		seen[jurisdiction] = struct{}{}
		out = append(out, jurisdiction)
	}
	return out
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
