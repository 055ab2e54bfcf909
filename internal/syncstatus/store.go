package syncstatus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rentfolio/propsync/pkg/logging"
)

// Sync states. Only sync attempts move a record; the ingestion path never
// writes here directly.
const (
	StatusPending  = "pending"
	StatusSyncing  = "syncing"
	StatusSynced   = "synced"
	StatusFailed   = "failed"
	StatusConflict = "conflict"
)

// Record is the last known synchronization state for one local entity.
type Record struct {
	EntityType   string    `json:"entityType"`
	EntityID     string    `json:"entityId"`
	BuildiumID   int64     `json:"buildiumId,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	LastSyncedAt time.Time `json:"lastSyncedAt,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists per-entity sync state, upserting on (entity_type,
// entity_id).
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

func (s *Store) Update(ctx context.Context, entityType, entityID string, buildiumID int64, status, errorMessage string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_status (entity_type, entity_id, buildium_id, sync_status, error_message, last_synced_at, updated_at)
		VALUES ($1, $2, NULLIF($3, 0), $4, NULLIF($5, ''), CASE WHEN $4 = 'synced' THEN NOW() END, NOW())
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			buildium_id = COALESCE(EXCLUDED.buildium_id, sync_status.buildium_id),
			sync_status = EXCLUDED.sync_status,
			error_message = EXCLUDED.error_message,
			last_synced_at = COALESCE(EXCLUDED.last_synced_at, sync_status.last_synced_at),
			updated_at = NOW()`,
		entityType, entityID, buildiumID, status, errorMessage)
	if err != nil {
		return fmt.Errorf("syncstatus: update %s/%s: %w", entityType, entityID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, entityType, entityID string) (*Record, error) {
	var rec Record
	var lastSynced *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT entity_type, entity_id::text, COALESCE(buildium_id, 0), sync_status,
		       COALESCE(error_message, ''), last_synced_at, updated_at
		FROM sync_status
		WHERE entity_type = $1 AND entity_id = $2`,
		entityType, entityID,
	).Scan(&rec.EntityType, &rec.EntityID, &rec.BuildiumID, &rec.Status,
		&rec.ErrorMessage, &lastSynced, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("syncstatus: get %s/%s: %w", entityType, entityID, err)
	}
	if lastSynced != nil {
		rec.LastSyncedAt = *lastSynced
	}
	return &rec, nil
}

// Failed lists entities stuck in the failed state, optionally filtered by
// entity type. This feeds the operator retry queue.
func (s *Store) Failed(ctx context.Context, entityType string) ([]Record, error) {
	query := `
		SELECT entity_type, entity_id::text, COALESCE(buildium_id, 0), sync_status,
		       COALESCE(error_message, ''), last_synced_at, updated_at
		FROM sync_status
		WHERE sync_status = 'failed'`
	args := []any{}
	if entityType != "" {
		query += ` AND entity_type = $1`
		args = append(args, entityType)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("syncstatus: list failed syncs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var lastSynced *time.Time
		if err := rows.Scan(&rec.EntityType, &rec.EntityID, &rec.BuildiumID, &rec.Status,
			&rec.ErrorMessage, &lastSynced, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("syncstatus: scan failed sync: %w", err)
		}
		if lastSynced != nil {
			rec.LastSyncedAt = *lastSynced
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
