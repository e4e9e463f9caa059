// internal/common/events/batch_writer.go
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"licensure-workers/internal/common/errors"
	"licensure-workers/internal/common/logger"
	"licensure-workers/internal/common/metrics"
	"licensure-workers/internal/models"
)

// The bus rejects requests carrying more than ten entries.
const maxBatchSize = 10

// PutEventsAPI is the slice of the bus client the writer needs.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// FailedEntry records one event the bus accepted the request for but
// refused to deliver. Index is the entry's arrival position within the
// session.
type FailedEntry struct {
	Index        int
	DetailType   string
	ErrorCode    string
	ErrorMessage string
}

type pendingEntry struct {
	index      int
	detailType string
	entry      types.PutEventsRequestEntry
}

// BatchWriter buffers events for one session and delivers them to the bus
// in arrival order, one request per full batch plus a final flush on
// Close. Entries the bus rejects individually are recorded, never
// retried; a failed request closes the session. Not safe for concurrent
// use: open one writer per job.
type BatchWriter struct {
	client    PutEventsAPI
	busName   string
	source    string
	batchSize int
	log       logger.Logger

	open          bool
	seq           int
	pending       []pendingEntry
	failedCount   int
	failedEntries []FailedEntry
}

// OpenBatchWriter starts a session against busName. Events carrying no
// source of their own are stamped with source. A non-positive batchSize
// selects the transport maximum.
func OpenBatchWriter(client PutEventsAPI, busName, source string, batchSize int, log logger.Logger) (*BatchWriter, error) {
	if client == nil {
		return nil, fmt.Errorf("event transport is required")
	}
	if busName == "" {
		return nil, fmt.Errorf("event bus name is required")
	}
	if batchSize > maxBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds the transport limit of %d", batchSize, maxBatchSize)
	}
	if batchSize <= 0 {
		batchSize = maxBatchSize
	}

	return &BatchWriter{
		client:    client,
		busName:   busName,
		source:    source,
		batchSize: batchSize,
		log:       log,
		open:      true,
		pending:   make([]pendingEntry, 0, batchSize),
	}, nil
}

// Put buffers one event and flushes synchronously when the buffer reaches
// the batch size. A flush failure closes the session and is returned to
// the caller.
func (w *BatchWriter) Put(ctx context.Context, env models.EventEnvelope) error {
	if !w.open {
		return errors.NewWriterNotOpenError()
	}
	if env.DetailType == "" {
		return errors.NewMissingFieldError("detailType")
	}

	source := env.Source
	if source == "" {
		source = w.source
	}

	w.pending = append(w.pending, pendingEntry{
		index:      w.seq,
		detailType: env.DetailType,
		entry: types.PutEventsRequestEntry{
			EventBusName: aws.String(w.busName),
			Source:       aws.String(source),
			DetailType:   aws.String(env.DetailType),
			Detail:       aws.String(string(env.Detail)),
			Time:         aws.Time(time.Now().UTC()),
		},
	})
	w.seq++

	if len(w.pending) >= w.batchSize {
		return w.flush(ctx)
	}
	return nil
}

// Close flushes whatever is buffered and ends the session. An empty
// buffer sends nothing. Closing an already closed writer is a no-op.
func (w *BatchWriter) Close(ctx context.Context) error {
	if !w.open {
		return nil
	}
	err := w.flush(ctx)
	w.open = false
	return err
}

// FailedCount reports how many entries the bus has rejected so far in
// this session.
func (w *BatchWriter) FailedCount() int {
	return w.failedCount
}

// FailedEntries reports the rejected entries in arrival order.
func (w *BatchWriter) FailedEntries() []FailedEntry {
	return w.failedEntries
}

func (w *BatchWriter) flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}

	entries := make([]types.PutEventsRequestEntry, 0, len(w.pending))
	for _, p := range w.pending {
		entries = append(entries, p.entry)
	}

	out, err := w.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		w.open = false
		for _, p := range w.pending {
			metrics.EventPublishFailures.WithLabelValues(p.detailType).Inc()
		}
		w.pending = w.pending[:0]
		return errors.NewEventPublishFailedError(err)
	}

	for i, p := range w.pending {
		var result *types.PutEventsResultEntry
		if i < len(out.Entries) {
			result = &out.Entries[i]
		}
		if result != nil && result.ErrorCode != nil {
			w.failedEntries = append(w.failedEntries, FailedEntry{
				Index:        p.index,
				DetailType:   p.detailType,
				ErrorCode:    aws.ToString(result.ErrorCode),
				ErrorMessage: aws.ToString(result.ErrorMessage),
			})
			metrics.EventPublishFailures.WithLabelValues(p.detailType).Inc()
		} else {
			metrics.EventsPublished.WithLabelValues(p.detailType).Inc()
		}
	}

	if out.FailedEntryCount > 0 {
		w.failedCount += int(out.FailedEntryCount)
		if w.log != nil {
			w.log.Warn("Event bus rejected entries from a batch", map[string]interface{}{
				"rejected":  out.FailedEntryCount,
				"batchSize": len(entries),
			})
		}
	}

	w.pending = w.pending[:0]
	return nil
}
