package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/rentfolio/propsync/internal/buildium"
	"github.com/rentfolio/propsync/pkg/logging"
)

// remoteAccounts is the slice of the Buildium client the resolver needs.
type remoteAccounts interface {
	GetGLAccount(ctx context.Context, id int64) (*buildium.GLAccount, error)
}

const glCacheTTL = 15 * time.Minute

// GLAccountResolver maps remote GL account ids to local row ids, creating
// local rows on demand from the remote chart of accounts. Concurrent
// creates race on the unique buildium_gl_account_id constraint; the loser
// re-reads the winner's row.
type GLAccountResolver struct {
	pool   Querier
	remote remoteAccounts
	cache  *redis.Client
	logger *logging.Logger

	mu    sync.RWMutex
	local map[int64]string
}

func NewGLAccountResolver(pool Querier, remote remoteAccounts, cache *redis.Client, logger *logging.Logger) *GLAccountResolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &GLAccountResolver{
		pool:   pool,
		remote: remote,
		cache:  cache,
		logger: logger,
		local:  make(map[int64]string),
	}
}

// Resolve returns the local gl_accounts row id for a remote account id,
// fetching and inserting the account when it is not yet known locally.
// Queries run against q when given (inside a caller's transaction),
// otherwise against the resolver's pool.
func (r *GLAccountResolver) Resolve(ctx context.Context, q Querier, buildiumGLAccountID int64) (string, error) {
	if buildiumGLAccountID == 0 {
		return "", nil
	}
	if q == nil {
		q = r.pool
	}

	if id := r.cachedID(ctx, buildiumGLAccountID); id != "" {
		return id, nil
	}

	var id string
	err := q.QueryRow(ctx,
		`SELECT id::text FROM gl_accounts WHERE buildium_gl_account_id = $1`,
		buildiumGLAccountID,
	).Scan(&id)
	if err == nil {
		r.remember(ctx, buildiumGLAccountID, id)
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("ledger: lookup gl account: %w", err)
	}

	remote, err := r.remote.GetGLAccount(ctx, buildiumGLAccountID)
	if err != nil {
		return "", fmt.Errorf("ledger: fetch remote gl account %d: %w", buildiumGLAccountID, err)
	}

	err = q.QueryRow(ctx, `
		INSERT INTO gl_accounts (
			buildium_gl_account_id, account_number, name, description, type, sub_type,
			is_default_gl_account, default_account_name, is_contra_account, is_bank_account,
			cash_flow_classification, exclude_from_cash_balances, is_active,
			buildium_parent_gl_account_id, is_credit_card_account
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (buildium_gl_account_id) DO NOTHING
		RETURNING id::text`,
		remote.ID, remote.AccountNumber, remote.Name, remote.Description, remote.Type,
		remote.SubType, remote.IsDefaultGLAccount, remote.DefaultAccountName,
		remote.IsContraAccount, remote.IsBankAccount, remote.CashFlowClassification,
		remote.ExcludeFromCashBalances, remote.IsActive, remote.ParentGLAccountID,
		remote.IsCreditCardAccount,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the create race; the row exists now.
		err = q.QueryRow(ctx,
			`SELECT id::text FROM gl_accounts WHERE buildium_gl_account_id = $1`,
			buildiumGLAccountID,
		).Scan(&id)
	}
	if err != nil {
		return "", fmt.Errorf("ledger: insert gl account %d: %w", buildiumGLAccountID, err)
	}

	r.remember(ctx, buildiumGLAccountID, id)
	return id, nil
}

// IsBankAccount reports whether a resolved local GL account is flagged as
// a bank account.
func (r *GLAccountResolver) IsBankAccount(ctx context.Context, q Querier, glAccountID string) (bool, error) {
	if q == nil {
		q = r.pool
	}
	var isBank bool
	err := q.QueryRow(ctx,
		`SELECT is_bank_account FROM gl_accounts WHERE id = $1`, glAccountID,
	).Scan(&isBank)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger: check bank account flag: %w", err)
	}
	return isBank, nil
}

// IsIncomeAccount reports whether a resolved local GL account is typed
// as income. Income lines keep their own account on tenant inflows.
func (r *GLAccountResolver) IsIncomeAccount(ctx context.Context, q Querier, glAccountID string) (bool, error) {
	if q == nil {
		q = r.pool
	}
	var accountType string
	err := q.QueryRow(ctx,
		`SELECT COALESCE(type, '') FROM gl_accounts WHERE id = $1`, glAccountID,
	).Scan(&accountType)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger: check account type: %w", err)
	}
	return strings.EqualFold(accountType, "income"), nil
}

func (r *GLAccountResolver) cachedID(ctx context.Context, buildiumID int64) string {
	r.mu.RLock()
	id, ok := r.local[buildiumID]
	r.mu.RUnlock()
	if ok {
		return id
	}
	if r.cache == nil {
		return ""
	}
	id, err := r.cache.Get(ctx, glCacheKey(buildiumID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("gl account cache read failed", "error", err)
		}
		return ""
	}
	r.mu.Lock()
	r.local[buildiumID] = id
	r.mu.Unlock()
	return id
}

func (r *GLAccountResolver) remember(ctx context.Context, buildiumID int64, id string) {
	r.mu.Lock()
	r.local[buildiumID] = id
	r.mu.Unlock()
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, glCacheKey(buildiumID), id, glCacheTTL).Err(); err != nil {
		r.logger.Warn("gl account cache write failed", "error", err)
	}
}

func glCacheKey(buildiumID int64) string {
	return "glaccount:" + strconv.FormatInt(buildiumID, 10)
}
