package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rentfolio/propsync/pkg/logging"
)

// LeaseRef carries the local lease row and its property/unit context.
type LeaseRef struct {
	ID                 string
	OrgID              string
	PropertyID         string
	UnitID             string
	BuildiumPropertyID int64
	BuildiumUnitID     int64
}

// PropertyRef is the slice of a property row the ledger engine needs.
type PropertyRef struct {
	ID                     string
	OrgID                  string
	OperatingBankGLAccount string
	DepositTrustGLAccount  string
}

// Refs resolves remote Buildium ids to local rows. Every lookup treats a
// missing row as absent, not as an error; org resolution decides whether
// absence is fatal.
type Refs struct {
	pool   Querier
	logger *logging.Logger
}

func NewRefs(pool Querier, logger *logging.Logger) *Refs {
	if logger == nil {
		logger = logging.Default()
	}
	return &Refs{pool: pool, logger: logger}
}

func (r *Refs) querier(q Querier) Querier {
	if q != nil {
		return q
	}
	return r.pool
}

func (r *Refs) Lease(ctx context.Context, q Querier, buildiumLeaseID int64) (*LeaseRef, error) {
	if buildiumLeaseID == 0 {
		return nil, nil
	}
	var ref LeaseRef
	err := r.querier(q).QueryRow(ctx, `
		SELECT id::text, COALESCE(org_id::text, ''), COALESCE(property_id::text, ''), COALESCE(unit_id::text, ''),
		       COALESCE(buildium_property_id, 0), COALESCE(buildium_unit_id, 0)
		FROM leases WHERE buildium_lease_id = $1`, buildiumLeaseID,
	).Scan(&ref.ID, &ref.OrgID, &ref.PropertyID, &ref.UnitID, &ref.BuildiumPropertyID, &ref.BuildiumUnitID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: lookup lease %d: %w", buildiumLeaseID, err)
	}
	return &ref, nil
}

func (r *Refs) PropertyID(ctx context.Context, q Querier, buildiumPropertyID int64) (string, error) {
	if buildiumPropertyID == 0 {
		return "", nil
	}
	var id string
	err := r.querier(q).QueryRow(ctx,
		`SELECT id::text FROM properties WHERE buildium_property_id = $1`, buildiumPropertyID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("ledger: lookup property %d: %w", buildiumPropertyID, err)
	}
	return id, nil
}

func (r *Refs) Property(ctx context.Context, q Querier, propertyID string) (*PropertyRef, error) {
	if propertyID == "" {
		return nil, nil
	}
	var ref PropertyRef
	err := r.querier(q).QueryRow(ctx, `
		SELECT id::text, COALESCE(org_id::text, ''),
		       COALESCE(operating_bank_gl_account_id::text, ''), COALESCE(deposit_trust_gl_account_id::text, '')
		FROM properties WHERE id = $1`, propertyID,
	).Scan(&ref.ID, &ref.OrgID, &ref.OperatingBankGLAccount, &ref.DepositTrustGLAccount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: load property %s: %w", propertyID, err)
	}
	return &ref, nil
}

func (r *Refs) UnitID(ctx context.Context, q Querier, buildiumUnitID int64) (string, error) {
	if buildiumUnitID == 0 {
		return "", nil
	}
	var id string
	err := r.querier(q).QueryRow(ctx,
		`SELECT id::text FROM units WHERE buildium_unit_id = $1`, buildiumUnitID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("ledger: lookup unit %d: %w", buildiumUnitID, err)
	}
	return id, nil
}

func (r *Refs) OrgIDFromAccount(ctx context.Context, q Querier, buildiumAccountID int64) (string, error) {
	if buildiumAccountID == 0 {
		return "", nil
	}
	var id string
	err := r.querier(q).QueryRow(ctx,
		`SELECT id::text FROM organizations WHERE buildium_org_id = $1`, buildiumAccountID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("ledger: lookup org for account %d: %w", buildiumAccountID, err)
	}
	return id, nil
}

func (r *Refs) GLAccountOrgID(ctx context.Context, q Querier, glAccountID string) (string, error) {
	if glAccountID == "" {
		return "", nil
	}
	var orgID string
	err := r.querier(q).QueryRow(ctx,
		`SELECT COALESCE(org_id::text, '') FROM gl_accounts WHERE id = $1`, glAccountID,
	).Scan(&orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("ledger: lookup gl account org: %w", err)
	}
	return orgID, nil
}

// UndepositedFundsAccount finds the org's undeposited-funds clearing
// account, falling back to a global match by default account name, then
// by name.
func (r *Refs) UndepositedFundsAccount(ctx context.Context, q Querier, orgID string) (string, error) {
	lookups := []struct {
		column string
		scoped bool
	}{
		{"default_account_name", true},
		{"name", true},
		{"default_account_name", false},
		{"name", false},
	}
	for _, lookup := range lookups {
		if lookup.scoped && orgID == "" {
			continue
		}
		query := fmt.Sprintf(
			`SELECT id::text FROM gl_accounts WHERE %s ILIKE '%%undeposited funds%%'`, lookup.column)
		args := []any{}
		if lookup.scoped {
			query += ` AND org_id = $1`
			args = append(args, orgID)
		}
		query += ` LIMIT 1`

		var id string
		err := r.querier(q).QueryRow(ctx, query, args...).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("ledger: lookup undeposited funds account: %w", err)
		}
	}
	return "", nil
}

// AccountsReceivable finds the A/R offset account used to balance tenant
// inflows.
func (r *Refs) AccountsReceivable(ctx context.Context, q Querier) (string, error) {
	var id string
	err := r.querier(q).QueryRow(ctx,
		`SELECT id::text FROM gl_accounts WHERE name ILIKE 'Accounts Receivable' LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("ledger: lookup accounts receivable: %w", err)
	}
	return id, nil
}

// AccountsPayable finds the org's A/P offset account used to balance
// outflows.
func (r *Refs) AccountsPayable(ctx context.Context, q Querier, orgID string) (string, error) {
	if orgID == "" {
		return "", nil
	}
	var id string
	err := r.querier(q).QueryRow(ctx, `
		SELECT id::text FROM gl_accounts
		WHERE org_id = $1 AND (name ILIKE 'Accounts Payable' OR default_account_name ILIKE '%accounts payable%')
		LIMIT 1`, orgID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("ledger: lookup accounts payable: %w", err)
	}
	return id, nil
}
