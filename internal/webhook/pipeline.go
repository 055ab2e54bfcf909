package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rentfolio/propsync/internal/alert"
	"github.com/rentfolio/propsync/internal/observability/metrics"
	"github.com/rentfolio/propsync/pkg/logging"
)

// Sentinel errors mapped to 400 responses by the HTTP layer.
var (
	ErrInvalidJSON = errors.New("webhook: invalid JSON payload")
	ErrNoEvents    = errors.New("webhook: no events found in payload")
)

// Result is the per-event outcome reported to the sender.
type Result struct {
	EventID    string `json:"eventId"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	Duplicate  bool   `json:"duplicate,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	DeadLetter bool   `json:"deadLetter,omitempty"`
	EventType  string `json:"eventType,omitempty"`
}

// Response is the batch summary. Processed counts every event in the
// payload, including duplicates and skips.
type Response struct {
	Success    bool     `json:"success"`
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

// eventProcessor runs the side effects of one routed event.
type eventProcessor interface {
	Process(ctx context.Context, normalized NormalizedEvent, raw Event) error
}

// Pipeline is the ingestion engine: normalize, validate, dedup, route,
// and process each event of a payload, persisting the terminal state of
// every event.
type Pipeline struct {
	store     *Store
	processor eventProcessor
	retry     *RetryExecutor
	metrics   *metrics.WebhookMetrics
	alerts    alert.Notifier
	logger    *logging.Logger
}

func NewPipeline(store *Store, processor eventProcessor, retry *RetryExecutor, m *metrics.WebhookMetrics, alerts alert.Notifier, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Default()
	}
	if alerts == nil {
		alerts = alert.NotifierOrNoop(nil)
	}
	return &Pipeline{store: store, processor: processor, retry: retry, metrics: m, alerts: alerts, logger: logger}
}

// Run ingests one webhook delivery. The returned error is non-nil only
// for payload-level failures (bad JSON, no events); per-event failures
// are reported inside the Response.
func (p *Pipeline) Run(ctx context.Context, body []byte, signature string) (*Response, error) {
	return p.runPayload(ctx, body, signature, KindUnknown)
}

// RunScoped ingests a delivery but only processes events of one kind.
// Out-of-scope events in the payload are reported as skipped without
// being stored; the delivery is expected again on the main endpoint.
func (p *Pipeline) RunScoped(ctx context.Context, body []byte, signature string, kind EventKind) (*Response, error) {
	return p.runPayload(ctx, body, signature, kind)
}

func (p *Pipeline) runPayload(ctx context.Context, body []byte, signature string, only EventKind) (*Response, error) {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, ErrInvalidJSON
	}

	events, ok := ExplodePayload(parsed)
	if !ok || len(events) == 0 {
		return nil, ErrNoEvents
	}

	resp := &Response{Success: true}
	var invalidDetails []map[string]any

	for _, raw := range events {
		if only != KindUnknown {
			eventType := RawEventName(raw)
			if kind, _ := ParseEventName(CanonicalEventName(eventType)); kind != only {
				resp.Results = append(resp.Results, Result{Success: true, Skipped: true, EventType: eventType})
				continue
			}
		}
		result, invalid := p.runEvent(ctx, raw, signature)
		resp.Results = append(resp.Results, result)
		if invalid {
			invalidDetails = append(invalidDetails, map[string]any{
				"eventType": result.EventType,
				"error":     result.Error,
			})
		}
	}

	if len(invalidDetails) > 0 {
		p.alerts.Notify(ctx, alert.Event{
			Summary:       "Buildium webhook payload validation failed",
			Severity:      "warning",
			CustomDetails: map[string]any{"failures": invalidDetails},
		})
	}

	resp.Processed = len(resp.Results)
	for _, r := range resp.Results {
		if r.Success {
			resp.Successful++
		}
	}
	resp.Failed = resp.Processed - resp.Successful

	if backlog, err := p.store.Backlog(ctx); err == nil {
		p.metrics.SetBacklog(backlog)
		p.logger.Info("webhook backlog depth", "backlog", backlog)
	} else {
		p.logger.Warn("backlog metric failed", "error", err)
	}

	return resp, nil
}

// runEvent ingests one event. The second return value marks a
// normalization/validation failure for the payload-level alert.
func (p *Pipeline) runEvent(ctx context.Context, raw Event, signature string) (Result, bool) {
	started := time.Now()
	eventType := RawEventName(raw)

	norm := Normalize(raw)
	var validationErrors []string
	if norm.OK {
		if v := Validate(raw); !v.OK {
			validationErrors = v.Errors
		}
	} else {
		validationErrors = norm.Errors
	}

	if len(validationErrors) > 0 {
		id, err := p.store.InsertInvalid(ctx, raw, validationErrors, signature)
		if err != nil {
			p.logger.Error("failed to dead-letter invalid event", "event_type", eventType, "error", err)
		}
		p.metrics.ObserveEvent(eventType, "invalid")
		return Result{
			EventID:    id,
			Success:    false,
			Error:      strings.Join(validationErrors, "; "),
			DeadLetter: true,
			EventType:  eventType,
		}, true
	}

	normalized := norm.Normalized
	insert, err := p.store.Insert(ctx, normalized, raw, signature)
	if err != nil {
		p.metrics.ObserveEvent(normalized.EventName, "store-error")
		return Result{EventID: normalized.WebhookID, Success: false, Error: err.Error(), EventType: normalized.EventName}, false
	}

	if insert.Outcome == OutcomeDuplicate {
		kind, _ := ParseEventName(normalized.EventName)
		// Bank transaction redeliveries that never completed reprocess;
		// every other duplicate is a successful no-op.
		reprocess := kind == KindBankAccountTransaction &&
			insert.Existing != nil && !insert.Existing.Processed
		if !reprocess {
			p.metrics.ObserveEvent(normalized.EventName, "duplicate")
			p.logger.Info("duplicate webhook delivery",
				"webhook_id", normalized.WebhookID, "event_name", normalized.EventName)
			return Result{EventID: insert.ID, Success: true, Duplicate: true, EventType: normalized.EventName}, false
		}
		p.logger.Info("reprocessing unfinished bank transaction delivery",
			"webhook_id", normalized.WebhookID, "event_name", normalized.EventName)
	}

	result := p.dispatch(ctx, insert.ID, normalized, raw)
	p.metrics.ObserveProcessing(normalized.EventName, time.Since(started).Seconds())
	return result, false
}

// Redeliver pushes a stored event back through dispatch, bypassing the
// dedup check so operators can retry any parked row. The event identity
// comes from the stored columns, not from re-normalizing the payload.
func (p *Pipeline) Redeliver(ctx context.Context, rec *EventRecord) (Result, error) {
	var raw Event
	if err := json.Unmarshal(rec.Payload, &raw); err != nil {
		return Result{}, ErrInvalidJSON
	}
	normalized := NormalizedEvent{
		WebhookID: rec.WebhookID,
		EventName: rec.EventName,
		CreatedAt: rec.EventCreatedAt,
		EntityID:  rec.EntityID,
	}

	started := time.Now()
	result := p.dispatch(ctx, rec.ID, normalized, raw)
	p.metrics.ObserveProcessing(normalized.EventName, time.Since(started).Seconds())
	return result, nil
}

func (p *Pipeline) dispatch(ctx context.Context, recordID string, normalized NormalizedEvent, raw Event) Result {
	switch Route(normalized.EventName) {
	case DecisionSkip:
		if err := p.store.MarkSkipped(ctx, recordID); err != nil {
			p.logger.Warn("failed to mark event skipped", "id", recordID, "error", err)
		}
		p.metrics.ObserveEvent(normalized.EventName, "skipped")
		return Result{EventID: recordID, Success: true, Skipped: true, EventType: normalized.EventName}

	case DecisionDeadLetter:
		if err := p.store.MarkDeadLetter(ctx, recordID, 0, "unsupported_event_type"); err != nil {
			p.logger.Warn("failed to dead-letter event", "id", recordID, "error", err)
		}
		p.metrics.ObserveEvent(normalized.EventName, "dead-letter")
		return Result{
			EventID:    recordID,
			Success:    false,
			Error:      "unsupported_event_type",
			DeadLetter: true,
			EventType:  normalized.EventName,
		}
	}

	attempts, err := p.retry.Execute(ctx, func(ctx context.Context) error {
		return p.processor.Process(ctx, normalized, raw)
	}, func(attempt int, attemptErr error) {
		p.metrics.ObserveRetry()
		if markErr := p.store.MarkRetrying(ctx, recordID, attempt, attemptErr.Error()); markErr != nil {
			p.logger.Warn("failed to mark event retrying", "id", recordID, "error", markErr)
		}
	})
	if err != nil {
		if markErr := p.store.MarkDeadLetter(ctx, recordID, attempts, err.Error()); markErr != nil {
			p.logger.Warn("failed to dead-letter event", "id", recordID, "error", markErr)
		}
		p.metrics.ObserveEvent(normalized.EventName, "dead-letter")
		return Result{
			EventID:    recordID,
			Success:    false,
			Error:      err.Error(),
			DeadLetter: true,
			EventType:  normalized.EventName,
		}
	}

	if err := p.store.MarkProcessed(ctx, recordID, attempts-1); err != nil {
		p.logger.Warn("failed to mark event processed", "id", recordID, "error", err)
	}
	p.metrics.ObserveEvent(normalized.EventName, "processed")
	return Result{EventID: recordID, Success: true, EventType: normalized.EventName}
}
