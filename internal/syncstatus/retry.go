package syncstatus

import (
	"context"
	"fmt"

	"github.com/rentfolio/propsync/pkg/logging"
)

// RetryFunc re-runs the sync for one failed entity.
type RetryFunc func(ctx context.Context, rec Record) error

// RetryResult summarizes one sweep over the failed queue.
type RetryResult struct {
	Retried int      `json:"retried"`
	Errors  []string `json:"errors,omitempty"`
}

// Retryer sweeps failed sync records and re-runs them through registered
// per-entity-type handlers. Unknown entity types are reported, not fatal.
type Retryer struct {
	store    *Store
	handlers map[string]RetryFunc
	logger   *logging.Logger
}

func NewRetryer(store *Store, logger *logging.Logger) *Retryer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Retryer{store: store, handlers: make(map[string]RetryFunc), logger: logger}
}

func (r *Retryer) Register(entityType string, fn RetryFunc) {
	r.handlers[entityType] = fn
}

// RetryFailed re-attempts every failed sync, optionally for one entity
// type. Individual failures are collected; the sweep always finishes.
func (r *Retryer) RetryFailed(ctx context.Context, entityType string) (*RetryResult, error) {
	failed, err := r.store.Failed(ctx, entityType)
	if err != nil {
		return nil, err
	}

	result := &RetryResult{}
	for _, rec := range failed {
		handler, ok := r.handlers[rec.EntityType]
		if !ok {
			result.Errors = append(result.Errors,
				fmt.Sprintf("no retry handler for entity type %s", rec.EntityType))
			continue
		}
		if err := r.store.Update(ctx, rec.EntityType, rec.EntityID, rec.BuildiumID, StatusSyncing, ""); err != nil {
			r.logger.Warn("failed to mark sync record syncing", "entity_type", rec.EntityType, "entity_id", rec.EntityID, "error", err)
		}
		if err := handler(ctx, rec); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("retry %s/%s: %v", rec.EntityType, rec.EntityID, err))
			if updateErr := r.store.Update(ctx, rec.EntityType, rec.EntityID, rec.BuildiumID, StatusFailed, err.Error()); updateErr != nil {
				r.logger.Warn("failed to restore failed sync state", "entity_type", rec.EntityType, "entity_id", rec.EntityID, "error", updateErr)
			}
			continue
		}
		if err := r.store.Update(ctx, rec.EntityType, rec.EntityID, rec.BuildiumID, StatusSynced, ""); err != nil {
			r.logger.Warn("failed to mark sync record synced", "entity_type", rec.EntityType, "entity_id", rec.EntityID, "error", err)
		}
		result.Retried++
	}
	return result, nil
}
