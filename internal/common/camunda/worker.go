// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"

	"licensure-workers/internal/common/config"
	"licensure-workers/internal/common/observability"
)

// JobHandlerFunc is the signature the Zeebe client delivers polled jobs to.
type JobHandlerFunc func(client worker.JobClient, job entities.Job)

// Runner opens job workers against one gateway connection and closes them
// together on shutdown, so in-flight jobs drain before the process exits.
type Runner struct {
	client  zbc.Client
	log     *zap.Logger
	obs     *observability.Observability
	workers []worker.JobWorker
}

// NewRunner accepts a nil obs; workers then run uninstrumented.
func NewRunner(client zbc.Client, log *zap.Logger, obs *observability.Observability) *Runner {
	return &Runner{client: client, log: log, obs: obs}
}

// Start opens a job worker for the task type unless it is disabled in
// configuration. The worker timeout is the job activation lease, in
// milliseconds like everything else in WorkerConfig.
func (r *Runner) Start(taskType string, wcfg config.WorkerConfig, handlerFunc JobHandlerFunc) {
	if !wcfg.Enabled {
		r.log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	handler := handlerFunc
	if r.obs != nil {
		handler = func(client worker.JobClient, job entities.Job) {
			start := time.Now()
			handlerFunc(client, job)
			r.obs.RecordJobHandled(context.Background(), taskType, time.Since(start))
		}
	}

	jobWorker := r.client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()
	r.workers = append(r.workers, jobWorker)

	r.log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}

// Close drains and closes every open worker.
func (r *Runner) Close() {
	for _, w := range r.workers {
		w.Close()
	}
	r.log.Info("job workers closed", zap.Int("count", len(r.workers)))
}
