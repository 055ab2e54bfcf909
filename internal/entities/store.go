package entities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rentfolio/propsync/internal/buildium"
	"github.com/rentfolio/propsync/pkg/logging"
)

type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store mirrors remote entities (properties, owners, leases, bank and GL
// accounts) into local rows. Upserts key on the remote id so replays
// converge instead of duplicating.
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

// UpsertProperty writes the remote property, flattening its address.
// Returns the local row id and whether the row was created.
func (s *Store) UpsertProperty(ctx context.Context, property *buildium.Property, orgID string) (string, bool, error) {
	addr := property.Address
	if addr == nil {
		addr = &buildium.Address{}
	}

	var id string
	var inserted bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO properties (
			buildium_property_id, org_id, name, rental_type, rental_sub_type,
			operating_bank_account_id, is_active,
			address_line1, address_line2, city, state, postal_code, country
		) VALUES ($1, NULLIF($2, '')::uuid, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, 0), $7,
			NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, ''))
		ON CONFLICT (buildium_property_id) DO UPDATE SET
			org_id = COALESCE(EXCLUDED.org_id, properties.org_id),
			name = EXCLUDED.name,
			rental_type = EXCLUDED.rental_type,
			rental_sub_type = EXCLUDED.rental_sub_type,
			operating_bank_account_id = EXCLUDED.operating_bank_account_id,
			is_active = EXCLUDED.is_active,
			address_line1 = EXCLUDED.address_line1,
			address_line2 = EXCLUDED.address_line2,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			postal_code = EXCLUDED.postal_code,
			country = EXCLUDED.country,
			updated_at = NOW()
		RETURNING id::text, (xmax = 0)`,
		property.ID, orgID, property.Name, property.RentalType, property.RentalSubType,
		derefInt64(property.OperatingBankAccountID), property.IsActive,
		addr.AddressLine1, addr.AddressLine2, addr.City, addr.State, addr.PostalCode, addr.Country,
	).Scan(&id, &inserted)
	if err != nil {
		return "", false, fmt.Errorf("entities: upsert property %d: %w", property.ID, err)
	}
	return id, inserted, nil
}

// UpsertOwner writes the remote rental owner. Display name prefers the
// company, then the person's name.
func (s *Store) UpsertOwner(ctx context.Context, owner *buildium.Owner, orgID string) (string, bool, error) {
	displayName := strings.TrimSpace(owner.CompanyName)
	if displayName == "" {
		displayName = strings.TrimSpace(owner.FirstName + " " + owner.LastName)
	}

	var id string
	var inserted bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO owners (
			buildium_owner_id, org_id, display_name, first_name, last_name, company_name, email, is_active
		) VALUES ($1, NULLIF($2, '')::uuid, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)
		ON CONFLICT (buildium_owner_id) DO UPDATE SET
			org_id = COALESCE(EXCLUDED.org_id, owners.org_id),
			display_name = EXCLUDED.display_name,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			company_name = EXCLUDED.company_name,
			email = EXCLUDED.email,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
		RETURNING id::text, (xmax = 0)`,
		owner.ID, orgID, displayName, owner.FirstName, owner.LastName,
		owner.CompanyName, owner.Email, owner.IsActive,
	).Scan(&id, &inserted)
	if err != nil {
		return "", false, fmt.Errorf("entities: upsert owner %d: %w", owner.ID, err)
	}
	return id, inserted, nil
}

// UpsertLease writes the remote lease, resolving its property and unit to
// local rows when they already exist.
func (s *Store) UpsertLease(ctx context.Context, lease *buildium.Lease, orgID string) (string, bool, error) {
	var id string
	var inserted bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO leases (
			buildium_lease_id, org_id, buildium_property_id, buildium_unit_id,
			property_id, unit_id, lease_status, lease_from_date, lease_to_date
		) VALUES ($1, NULLIF($2, '')::uuid, NULLIF($3, 0), NULLIF($4, 0),
			(SELECT id FROM properties WHERE buildium_property_id = $3),
			(SELECT id FROM units WHERE buildium_unit_id = $4),
			NULLIF($5, ''), NULLIF($6, '')::date, NULLIF($7, '')::date)
		ON CONFLICT (buildium_lease_id) DO UPDATE SET
			org_id = COALESCE(EXCLUDED.org_id, leases.org_id),
			buildium_property_id = EXCLUDED.buildium_property_id,
			buildium_unit_id = EXCLUDED.buildium_unit_id,
			property_id = COALESCE(EXCLUDED.property_id, leases.property_id),
			unit_id = COALESCE(EXCLUDED.unit_id, leases.unit_id),
			lease_status = EXCLUDED.lease_status,
			lease_from_date = EXCLUDED.lease_from_date,
			lease_to_date = EXCLUDED.lease_to_date,
			updated_at = NOW()
		RETURNING id::text, (xmax = 0)`,
		lease.ID, orgID, lease.PropertyID, lease.UnitID,
		lease.LeaseStatus, lease.LeaseFromDate, lease.LeaseToDate,
	).Scan(&id, &inserted)
	if err != nil {
		return "", false, fmt.Errorf("entities: upsert lease %d: %w", lease.ID, err)
	}
	return id, inserted, nil
}

// UpsertGLAccount writes the remote chart-of-accounts entry.
func (s *Store) UpsertGLAccount(ctx context.Context, account *buildium.GLAccount, orgID string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO gl_accounts (
			buildium_gl_account_id, org_id, account_number, name, description, type, sub_type,
			is_default_gl_account, default_account_name, is_contra_account, is_bank_account,
			cash_flow_classification, exclude_from_cash_balances, is_active,
			buildium_parent_gl_account_id, is_credit_card_account
		) VALUES ($1, NULLIF($2, '')::uuid, NULLIF($3, ''), $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''),
			$8, NULLIF($9, ''), $10, $11, NULLIF($12, ''), $13, $14, $15, $16)
		ON CONFLICT (buildium_gl_account_id) DO UPDATE SET
			org_id = COALESCE(EXCLUDED.org_id, gl_accounts.org_id),
			account_number = EXCLUDED.account_number,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			type = EXCLUDED.type,
			sub_type = EXCLUDED.sub_type,
			is_default_gl_account = EXCLUDED.is_default_gl_account,
			default_account_name = EXCLUDED.default_account_name,
			is_contra_account = EXCLUDED.is_contra_account,
			is_bank_account = EXCLUDED.is_bank_account,
			cash_flow_classification = EXCLUDED.cash_flow_classification,
			exclude_from_cash_balances = EXCLUDED.exclude_from_cash_balances,
			is_active = EXCLUDED.is_active,
			buildium_parent_gl_account_id = EXCLUDED.buildium_parent_gl_account_id,
			is_credit_card_account = EXCLUDED.is_credit_card_account,
			updated_at = NOW()
		RETURNING id::text`,
		account.ID, orgID, account.AccountNumber, account.Name, account.Description,
		account.Type, account.SubType, account.IsDefaultGLAccount, account.DefaultAccountName,
		account.IsContraAccount, account.IsBankAccount, account.CashFlowClassification,
		account.ExcludeFromCashBalances, account.IsActive, account.ParentGLAccountID,
		account.IsCreditCardAccount,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("entities: upsert gl account %d: %w", account.ID, err)
	}
	return id, nil
}

// UpsertBankAccount ensures the GL row backing a remote bank account and
// refreshes its bank metadata.
func (s *Store) UpsertBankAccount(ctx context.Context, bankAccount *buildium.BankAccount, orgID string) (string, error) {
	glRemoteID := bankAccount.ID
	if bankAccount.GLAccount != nil && bankAccount.GLAccount.ID != 0 {
		glRemoteID = bankAccount.GLAccount.ID
	}

	name := bankAccount.Name
	if name == "" {
		name = "Bank Account"
	}

	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO gl_accounts (
			buildium_gl_account_id, org_id, name, description, type, is_bank_account, is_active,
			bank_account_type, bank_account_number, bank_routing_number, bank_balance
		) VALUES ($1, NULLIF($2, '')::uuid, $3, NULLIF($4, ''), 'Asset', TRUE, $5,
			NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9)
		ON CONFLICT (buildium_gl_account_id) DO UPDATE SET
			org_id = COALESCE(EXCLUDED.org_id, gl_accounts.org_id),
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			is_bank_account = TRUE,
			is_active = EXCLUDED.is_active,
			bank_account_type = EXCLUDED.bank_account_type,
			bank_account_number = EXCLUDED.bank_account_number,
			bank_routing_number = EXCLUDED.bank_routing_number,
			bank_balance = EXCLUDED.bank_balance,
			updated_at = NOW()
		RETURNING id::text`,
		glRemoteID, orgID, name, bankAccount.Description, bankAccount.IsActive,
		normalizeBankAccountType(bankAccount.BankAccountType),
		bankAccount.AccountNumber, bankAccount.RoutingNumber, bankAccount.Balance,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("entities: upsert bank account %d: %w", bankAccount.ID, err)
	}
	return id, nil
}

// DeleteBankAccount removes the GL row for a deleted remote bank account.
// An unknown account is a no-op.
func (s *Store) DeleteBankAccount(ctx context.Context, buildiumBankAccountID int64, orgID string) error {
	query := `DELETE FROM gl_accounts WHERE buildium_gl_account_id = $1`
	args := []any{buildiumBankAccountID}
	if orgID != "" {
		query += ` AND org_id = $2`
		args = append(args, orgID)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("entities: delete bank account %d: %w", buildiumBankAccountID, err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Warn("bank account delete for unknown account, skipping",
			"buildium_bank_account_id", buildiumBankAccountID)
	}
	return nil
}

// OrgIDForAccount maps the remote account id on a webhook event to the
// local organization. Missing mappings are absent, not errors.
func (s *Store) OrgIDForAccount(ctx context.Context, buildiumAccountID int64) (string, error) {
	if buildiumAccountID == 0 {
		return "", nil
	}
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id::text FROM organizations WHERE buildium_org_id = $1`, buildiumAccountID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("entities: lookup org for account %d: %w", buildiumAccountID, err)
	}
	return id, nil
}

var bankAccountTypes = map[string]string{
	"checking":               "checking",
	"savings":                "savings",
	"money_market":           "money_market",
	"moneymarket":            "money_market",
	"certificate_of_deposit": "certificate_of_deposit",
	"certificateofdeposit":   "certificate_of_deposit",
}

func normalizeBankAccountType(value string) string {
	key := strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(value)), "_"))
	return bankAccountTypes[key]
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
