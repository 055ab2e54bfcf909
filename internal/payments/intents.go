package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rentfolio/propsync/pkg/logging"
)

// Intent states. A failed remote call leaves the intent in created so the
// caller may legitimately retry under the same key; submitted is terminal.
const (
	StateCreated   = "created"
	StateSubmitted = "submitted"
)

// Intent is one money-moving attempt under an idempotency key. The
// (org_id, idempotency_key) pair is unique: a second caller with the same
// key gets the first caller's result back instead of a second submission.
type Intent struct {
	ID                   string
	OrgID                string
	IdempotencyKey       string
	Amount               float64
	State                string
	GatewayTransactionID string
	LocalTransactionID   string
}

// Submitted reports whether the intent already carries a completed
// submission that must be reused rather than repeated.
func (i *Intent) Submitted() bool {
	return i.State == StateSubmitted && (i.GatewayTransactionID != "" || i.LocalTransactionID != "")
}

type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IntentStore persists payment intents. Write contention on the key is
// resolved through the unique constraint, not locks: the loser of an
// insert race re-reads the winner's row.
type IntentStore struct {
	pool   Querier
	logger *logging.Logger
}

func NewIntentStore(pool Querier, logger *logging.Logger) *IntentStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &IntentStore{pool: pool, logger: logger}
}

// Begin finds or creates the intent for a key. The second return value is
// true when an already-submitted intent was found: the caller must return
// its original result without touching the remote system.
func (s *IntentStore) Begin(ctx context.Context, orgID, idempotencyKey string, amount float64) (*Intent, bool, error) {
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	existing, err := s.Get(ctx, orgID, idempotencyKey)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, existing.Submitted(), nil
	}

	intent := &Intent{
		OrgID:          orgID,
		IdempotencyKey: idempotencyKey,
		Amount:         amount,
		State:          StateCreated,
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO payment_intents (org_id, idempotency_key, amount, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (org_id, idempotency_key) DO NOTHING
		RETURNING id::text`,
		orgID, idempotencyKey, amount, StateCreated,
	).Scan(&intent.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the insert race; the winner's row decides.
		winner, err := s.Get(ctx, orgID, idempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if winner == nil {
			return nil, false, fmt.Errorf("payments: intent vanished for key %s", idempotencyKey)
		}
		return winner, winner.Submitted(), nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("payments: insert intent: %w", err)
	}
	return intent, false, nil
}

func (s *IntentStore) Get(ctx context.Context, orgID, idempotencyKey string) (*Intent, error) {
	var intent Intent
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, org_id::text, idempotency_key, amount, state,
		       COALESCE(gateway_transaction_id, ''), COALESCE(local_transaction_id::text, '')
		FROM payment_intents
		WHERE org_id = $1 AND idempotency_key = $2`,
		orgID, idempotencyKey,
	).Scan(&intent.ID, &intent.OrgID, &intent.IdempotencyKey, &intent.Amount,
		&intent.State, &intent.GatewayTransactionID, &intent.LocalTransactionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("payments: get intent: %w", err)
	}
	return &intent, nil
}

// MarkSubmitted transitions created -> submitted and records the remote
// and local transaction ids. The state guard makes the transition
// idempotent under concurrent completion.
func (s *IntentStore) MarkSubmitted(ctx context.Context, intentID, gatewayTransactionID, localTransactionID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE payment_intents
		SET state = $2,
		    gateway_transaction_id = NULLIF($3, ''),
		    local_transaction_id = NULLIF($4, '')::uuid,
		    updated_at = NOW()
		WHERE id = $1 AND state = $5`,
		intentID, StateSubmitted, gatewayTransactionID, localTransactionID, StateCreated)
	if err != nil {
		return fmt.Errorf("payments: mark intent submitted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Warn("intent already submitted, transition skipped", "intent_id", intentID)
	}
	return nil
}
