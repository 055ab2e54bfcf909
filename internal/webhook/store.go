package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rentfolio/propsync/pkg/logging"
)

// Querier is the subset of pgxpool.Pool the store needs, kept small so
// tests can substitute pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Event lifecycle statuses.
const (
	StatusReceived   = "received"
	StatusProcessed  = "processed"
	StatusSkipped    = "skipped"
	StatusRetrying   = "retrying"
	StatusDeadLetter = "dead-letter"
	StatusInvalid    = "invalid"
)

// EventRecord is one row of webhook_events.
type EventRecord struct {
	ID             string
	WebhookID      string
	EventName      string
	EventCreatedAt time.Time
	EntityID       string
	Payload        []byte
	Processed      bool
	Status         string
	RetryCount     int
	ErrorMessage   string
	ReceivedAt     time.Time
}

// InsertOutcome classifies what Insert did.
type InsertOutcome string

const (
	OutcomeInserted  InsertOutcome = "inserted"
	OutcomeDuplicate InsertOutcome = "duplicate"
)

// InsertResult carries the stored row id, plus the existing row's state
// when the event was a redelivery.
type InsertResult struct {
	Outcome  InsertOutcome
	ID       string
	Existing *EventRecord
}

// Store persists webhook events and enforces the delivery dedup key
// (webhook_id, event_name, event_created_at).
type Store struct {
	pool   Querier
	logger *logging.Logger
}

func NewStore(pool Querier, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// Insert records a normalized event. A unique-key conflict means the event
// was already delivered; the existing row is returned so the caller can
// decide whether the duplicate still needs work.
func (s *Store) Insert(ctx context.Context, normalized NormalizedEvent, raw Event, signature string) (InsertResult, error) {
	payload, err := json.Marshal(raw)
	if err != nil {
		return InsertResult{}, fmt.Errorf("webhook: marshal payload: %w", err)
	}

	var id string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO webhook_events (webhook_id, event_name, event_created_at, entity_id, payload, signature, processed, status)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (webhook_id, event_name, event_created_at) DO NOTHING
		RETURNING id::text`,
		normalized.WebhookID, normalized.EventName, normalized.CreatedAt,
		normalized.EntityID, payload, nullable(signature), StatusReceived,
	).Scan(&id)
	if err == nil {
		return InsertResult{Outcome: OutcomeInserted, ID: id}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return InsertResult{}, fmt.Errorf("webhook: insert event: %w", err)
	}

	existing, err := s.getByDedupKey(ctx, normalized)
	if err != nil {
		return InsertResult{}, fmt.Errorf("webhook: fetch duplicate event: %w", err)
	}
	return InsertResult{Outcome: OutcomeDuplicate, ID: existing.ID, Existing: existing}, nil
}

// InsertInvalid dead-letters an event that failed normalization. The row
// gets a surrogate id so the dedup key stays total.
func (s *Store) InsertInvalid(ctx context.Context, raw Event, normErrors []string, signature string) (string, error) {
	payload, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("webhook: marshal invalid payload: %w", err)
	}

	surrogate := "invalid-" + uuid.NewString()
	now := time.Now().UTC()
	var id string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO webhook_events (webhook_id, event_name, event_created_at, entity_id, payload, signature, processed, processed_at, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $8, $9)
		ON CONFLICT (webhook_id, event_name, event_created_at) DO NOTHING
		RETURNING id::text`,
		surrogate, RawEventName(raw), now, surrogate, payload, nullable(signature),
		now, StatusInvalid, strings.Join(normErrors, "; "),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("webhook: insert invalid event: %w", err)
	}
	return id, nil
}

func (s *Store) getByDedupKey(ctx context.Context, normalized NormalizedEvent) (*EventRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id::text, webhook_id, event_name, event_created_at, entity_id, processed, status, retry_count, COALESCE(error_message, '')
		FROM webhook_events
		WHERE webhook_id = $1 AND event_name = $2 AND event_created_at = $3`,
		normalized.WebhookID, normalized.EventName, normalized.CreatedAt,
	)
	var rec EventRecord
	if err := row.Scan(&rec.ID, &rec.WebhookID, &rec.EventName, &rec.EventCreatedAt,
		&rec.EntityID, &rec.Processed, &rec.Status, &rec.RetryCount, &rec.ErrorMessage); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByID loads one event row, payload included, for redelivery.
func (s *Store) GetByID(ctx context.Context, id string) (*EventRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id::text, webhook_id, event_name, event_created_at, entity_id, payload, processed, status, retry_count, COALESCE(error_message, ''), received_at
		FROM webhook_events
		WHERE id = $1`, id)
	var rec EventRecord
	if err := row.Scan(&rec.ID, &rec.WebhookID, &rec.EventName, &rec.EventCreatedAt, &rec.EntityID,
		&rec.Payload, &rec.Processed, &rec.Status, &rec.RetryCount, &rec.ErrorMessage, &rec.ReceivedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("webhook: get event: %w", err)
	}
	return &rec, nil
}

// MarkProcessed finalizes a successful event. retryCount is the number of
// failed attempts that preceded the success.
func (s *Store) MarkProcessed(ctx context.Context, id string, retryCount int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE webhook_events
		SET processed = TRUE, processed_at = NOW(), status = $2, retry_count = $3, error_message = NULL
		WHERE id = $1`, id, StatusProcessed, retryCount)
	if err != nil {
		return fmt.Errorf("webhook: mark processed: %w", err)
	}
	return nil
}

// MarkRetrying records a failed attempt that still has retries left.
func (s *Store) MarkRetrying(ctx context.Context, id string, retryCount int, cause string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE webhook_events
		SET status = $2, retry_count = $3, error_message = $4
		WHERE id = $1`, id, StatusRetrying, retryCount, cause)
	if err != nil {
		return fmt.Errorf("webhook: mark retrying: %w", err)
	}
	return nil
}

// MarkDeadLetter parks an event after retry exhaustion or a non-retryable
// failure. The row stays unprocessed so it shows up in the backlog and the
// operator retry queue.
func (s *Store) MarkDeadLetter(ctx context.Context, id string, retryCount int, cause string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE webhook_events
		SET processed = FALSE, status = $2, retry_count = $3, error_message = $4
		WHERE id = $1`, id, StatusDeadLetter, retryCount, cause)
	if err != nil {
		return fmt.Errorf("webhook: mark dead-letter: %w", err)
	}
	return nil
}

// MarkSkipped acknowledges a recognized event the pipeline intentionally
// does not handle.
func (s *Store) MarkSkipped(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE webhook_events
		SET processed = TRUE, processed_at = NOW(), status = $2, retry_count = 0, error_message = NULL
		WHERE id = $1`, id, StatusSkipped)
	if err != nil {
		return fmt.Errorf("webhook: mark skipped: %w", err)
	}
	return nil
}

// Backlog counts events still awaiting successful processing.
func (s *Store) Backlog(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM webhook_events WHERE processed = FALSE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("webhook: count backlog: %w", err)
	}
	return count, nil
}

// FailedEvents lists dead-letter and retrying rows, newest first, for the
// operator retry queue.
func (s *Store) FailedEvents(ctx context.Context, limit, offset int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, webhook_id, event_name, event_created_at, entity_id, payload, processed, status, retry_count, COALESCE(error_message, ''), received_at
		FROM webhook_events
		WHERE status IN ($1, $2)
		ORDER BY received_at DESC
		LIMIT $3 OFFSET $4`,
		StatusDeadLetter, StatusRetrying, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("webhook: list failed events: %w", err)
	}
	defer rows.Close()

	var records []EventRecord
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(&rec.ID, &rec.WebhookID, &rec.EventName, &rec.EventCreatedAt, &rec.EntityID,
			&rec.Payload, &rec.Processed, &rec.Status, &rec.RetryCount, &rec.ErrorMessage, &rec.ReceivedAt); err != nil {
			return nil, fmt.Errorf("webhook: scan failed event: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("webhook: iterate failed events: %w", err)
	}
	return records, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
