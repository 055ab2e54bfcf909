package redelivery

import (
	"context"
	"time"

	"github.com/rentfolio/propsync/internal/webhook"
	"github.com/rentfolio/propsync/pkg/logging"
)

type eventStore interface {
	GetByID(ctx context.Context, id string) (*webhook.EventRecord, error)
	FailedEvents(ctx context.Context, limit, offset int) ([]webhook.EventRecord, error)
}

type redeliverer interface {
	Redeliver(ctx context.Context, rec *webhook.EventRecord) (webhook.Result, error)
}

type messageQueue interface {
	Enqueue(ctx context.Context, msg Message, delay time.Duration) error
	Receive(ctx context.Context, maxMessages, waitSeconds int) ([]QueuedMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Worker drains the redelivery queue: each message names a parked
// webhook event that gets pushed back through the pipeline. Failures
// requeue with backoff until attempts run out; the row then stays
// dead-lettered for the operator queue.
type Worker struct {
	queue       messageQueue
	store       eventStore
	pipeline    redeliverer
	logger      *logging.Logger
	maxAttempts int
	baseDelay   time.Duration
	batchSize   int
	waitSeconds int
}

func NewWorker(queue messageQueue, store eventStore, pipeline redeliverer, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		queue:       queue,
		store:       store,
		pipeline:    pipeline,
		logger:      logger,
		maxAttempts: 5,
		baseDelay:   time.Minute,
		batchSize:   10,
		waitSeconds: 10,
	}
}

func (w *Worker) WithMaxAttempts(n int) *Worker {
	if n > 0 {
		w.maxAttempts = n
	}
	return w
}

func (w *Worker) WithBaseDelay(d time.Duration) *Worker {
	if d > 0 {
		w.baseDelay = d
	}
	return w
}

func (w *Worker) WithBatchSize(n int) *Worker {
	if n > 0 {
		w.batchSize = n
	}
	return w
}

// Run long-polls the queue until the context ends.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := w.Drain(ctx); err != nil {
			w.logger.Error("redelivery receive failed", "error", err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
}

// Drain receives one batch and processes it.
func (w *Worker) Drain(ctx context.Context) error {
	messages, err := w.queue.Receive(ctx, w.batchSize, w.waitSeconds)
	if err != nil {
		return err
	}
	for _, msg := range messages {
		w.handle(ctx, msg)
	}
	return nil
}

func (w *Worker) handle(ctx context.Context, msg QueuedMessage) {
	defer func() {
		if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
			w.logger.Warn("redelivery ack failed", "event_id", msg.EventID, "error", err)
		}
	}()

	if msg.EventID == "" {
		w.logger.Warn("dropping malformed redelivery message")
		return
	}

	rec, err := w.store.GetByID(ctx, msg.EventID)
	if err != nil {
		w.logger.Error("redelivery lookup failed", "event_id", msg.EventID, "error", err)
		w.requeue(ctx, msg)
		return
	}
	if rec == nil || rec.Processed {
		// Deleted or already converged; nothing to do.
		return
	}

	result, err := w.pipeline.Redeliver(ctx, rec)
	if err == nil && result.Success {
		w.logger.Info("redelivery succeeded", "event_id", msg.EventID, "event_name", rec.EventName)
		return
	}
	cause := result.Error
	if err != nil {
		cause = err.Error()
	}
	w.logger.Warn("redelivery attempt failed",
		"event_id", msg.EventID, "attempt", msg.Attempt, "error", cause)
	w.requeue(ctx, msg)
}

func (w *Worker) requeue(ctx context.Context, msg QueuedMessage) {
	next := msg.Attempt + 1
	if next >= w.maxAttempts {
		w.logger.Warn("redelivery attempts exhausted, leaving event parked", "event_id", msg.EventID)
		return
	}
	delay := w.baseDelay * time.Duration(1<<msg.Attempt)
	if err := w.queue.Enqueue(ctx, Message{EventID: msg.EventID, Attempt: next}, delay); err != nil {
		w.logger.Error("redelivery requeue failed", "event_id", msg.EventID, "error", err)
	}
}

// EnqueueBacklog schedules every currently parked event for redelivery.
// Used by the periodic sweep and the operator bulk-retry path.
func (w *Worker) EnqueueBacklog(ctx context.Context, limit int) (int, error) {
	records, err := w.store.FailedEvents(ctx, limit, 0)
	if err != nil {
		return 0, err
	}
	enqueued := 0
	for _, rec := range records {
		if rec.Status != webhook.StatusDeadLetter {
			continue
		}
		if err := w.queue.Enqueue(ctx, Message{EventID: rec.ID}, 0); err != nil {
			w.logger.Error("backlog enqueue failed", "event_id", rec.ID, "error", err)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}
