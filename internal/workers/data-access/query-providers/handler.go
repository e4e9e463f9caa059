// internal/workers/data-access/query-providers/handler.go
package queryproviders

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"licensure-workers/internal/common/errors"
	"licensure-workers/internal/common/logger"
	"licensure-workers/internal/common/metrics"
	"licensure-workers/internal/providerdata"
)

const (
	TaskType = "query-providers"
)

// ProviderLister pages through a compact's provider listing.
type ProviderLister interface {
	QueryProviders(ctx context.Context, q providerdata.ProviderQuery) (*providerdata.ProviderPage, error)
}

type Handler struct {
	config *Config
	data   ProviderLister
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, data ProviderLister, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		data:   data,
		errors: errors.NewErrorHandler(log),
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Compact == "" {
		return nil, errors.NewMissingFieldError("compact")
	}

	pageSize := input.PageSize
	switch {
	case pageSize == 0:
		pageSize = h.config.DefaultPageSize
	case pageSize < 0 || pageSize > h.config.MaxPageSize:
		return nil, errors.NewInvalidPageSizeError(pageSize, h.config.MaxPageSize)
	}

	start := time.Now()
	page, err := h.data.QueryProviders(ctx, providerdata.ProviderQuery{
		Compact:      strings.ToLower(input.Compact),
		Jurisdiction: strings.ToLower(input.Jurisdiction),
		FamilyName:   input.FamilyName,
		GivenName:    input.GivenName,
		PageSize:     pageSize,
		Cursor:       input.Cursor,
	})
	if err != nil {
		return nil, err
	}

	output := &Output{
		Providers:   page.Providers,
		Count:       len(page.Providers),
		NextCursor:  page.NextCursor,
		QueryTimeMs: time.Since(start).Milliseconds(),
	}

	h.logger.Info("provider listing paged", map[string]interface{}{
		"compact":     input.Compact,
		"count":       output.Count,
		"hasMore":     output.NextCursor != "",
		"queryTimeMs": output.QueryTimeMs,
	})
	return output, nil
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
