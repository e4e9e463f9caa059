// internal/workers/data-access/get-provider/handler.go
package getprovider

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"

	"licensure-workers/internal/common/errors"
	"licensure-workers/internal/common/logger"
	"licensure-workers/internal/common/metrics"
	"licensure-workers/internal/models"
	"licensure-workers/internal/providerdata"
)

const (
	TaskType = "get-provider"
)

// PartitionReader loads everything stored for one provider.
type PartitionReader interface {
	GetProviderPartition(ctx context.Context, compact, providerID string) (*providerdata.ProviderPartition, error)
}

type Handler struct {
	config *Config
	data   PartitionReader
	cache  *redis.Client
	errors *errors.ErrorHandler
	logger logger.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewHandler wires the detail reader. cache may be nil, which disables
// the read-through cache.
func NewHandler(config *Config, data PartitionReader, cache *redis.Client, log logger.Logger) *Handler {
	loc := time.UTC
	if config.ReferenceTimezone != "" {
		parsed, err := time.LoadLocation(config.ReferenceTimezone)
		if err != nil {
			log.Warn("invalid reference timezone, deriving statuses in UTC", map[string]interface{}{
				"timezone": config.ReferenceTimezone,
				"error":    err,
			})
		} else {
			loc = parsed
		}
	}

	return &Handler{
		config: config,
		data:   data,
		cache:  cache,
		errors: errors.NewErrorHandler(log),
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
		loc:    loc,
		now:    time.Now,
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

// execute assembles the provider detail, read-through cached. Cache
// trouble never fails the job: the store is the system of record and a
// degraded cache only costs the extra partition query.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Compact == "" {
		return nil, errors.NewMissingFieldError("compact")
	}
	if input.ProviderID == "" {
		return nil, errors.NewMissingFieldError("providerId")
	}

	compact := strings.ToLower(input.Compact)
	cacheKey := providerCacheKey(compact, input.ProviderID)

	if cached := h.fromCache(ctx, cacheKey); cached != nil {
		cached.FromCache = true
		return cached, nil
	}

	part, err := h.data.GetProviderPartition(ctx, compact, input.ProviderID)
	if err != nil {
		return nil, err
	}
	if part.Provider == nil {
		return nil, errors.NewProviderNotFoundError(compact, input.ProviderID)
	}

	output := h.assemble(part)
	h.toCache(ctx, cacheKey, output)

	h.logger.Debug("provider detail assembled", map[string]interface{}{
		"compact":    compact,
		"providerId": input.ProviderID,
		"licenses":   len(output.Licenses),
		"privileges": len(output.Privileges),
	})
	return output, nil
}

func (h *Handler) assemble(part *providerdata.ProviderPartition) *Output {
	ref := h.now()
	licenses := make([]LicenseDetail, 0, len(part.Licenses))
	for _, l := range part.Licenses {
		status := models.JurisdictionStatusInactive
		if providerdata.LicenseActive(l, ref, h.loc) {
			status = models.JurisdictionStatusActive
		}
		licenses = append(licenses, LicenseDetail{License: l, Status: status})
	}

	return &Output{
		Provider:   *part.Provider,
		Licenses:   licenses,
		Privileges: part.Privileges,
	}
}

func providerCacheKey(compact, providerID string) string {
	return "provider:" + compact + ":" + providerID
}

func (h *Handler) fromCache(ctx context.Context, key string) *Output {
	if h.cache == nil {
		return nil
	}

	val, err := h.cache.Get(ctx, key).Result()
	if err != nil {
		if goerrors.Is(err, redis.Nil) {
			metrics.ProviderCacheRequests.WithLabelValues("miss").Inc()
			return nil
		}
		metrics.ProviderCacheRequests.WithLabelValues("error").Inc()
		h.logger.Warn("cache read failed, reading the store directly", map[string]interface{}{
			"error": err,
			"key":   key,
		})
		return nil
	}

	var output Output
	if err := json.Unmarshal([]byte(val), &output); err != nil {
		metrics.ProviderCacheRequests.WithLabelValues("error").Inc()
		h.logger.Warn("cache entry is corrupt, reading the store directly", map[string]interface{}{
			"error": err,
			"key":   key,
		})
		return nil
	}

	metrics.ProviderCacheRequests.WithLabelValues("hit").Inc()
	return &output
}

func (h *Handler) toCache(ctx context.Context, key string, output *Output) {
	if h.cache == nil || h.config.CacheTTL <= 0 {
		return
	}

	data, err := json.Marshal(output)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, key, data, h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("cache write failed", map[string]interface{}{
			"error": err,
			"key":   key,
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
