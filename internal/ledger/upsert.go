package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rentfolio/propsync/internal/buildium"
	"github.com/rentfolio/propsync/pkg/logging"
)

// Engine synchronizes remote transactions into the local double-entry
// ledger. Each upsert runs in one database transaction: header upsert,
// full line replacement, then the balance check. Any violation rolls the
// whole event back.
type Engine struct {
	pool     TxBeginner
	resolver *GLAccountResolver
	refs     *Refs
	logger   *logging.Logger
}

func NewEngine(pool TxBeginner, resolver *GLAccountResolver, refs *Refs, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{pool: pool, resolver: resolver, refs: refs, logger: logger}
}

// flowKind classifies a transaction for offset-line balancing.
type flowKind int

const (
	flowNeutral flowKind = iota
	flowInflow           // tenant payment, deposit application: cash debits
	flowOutflow          // bill payment, owner draw: cash credits
)

func classifyFlow(transactionType string, hasLease bool) flowKind {
	lower := strings.ToLower(transactionType)
	switch {
	case strings.Contains(lower, "billpayment"), strings.Contains(lower, "owner"):
		return flowOutflow
	case lower == "payment" && !hasLease:
		// A payment with no lease context is a vendor payment.
		return flowOutflow
	case lower == "payment", lower == "applydeposit":
		return flowInflow
	default:
		return flowNeutral
	}
}

// isBillLike matches the non-cash transaction types whose journals carry
// only expense debits, leaving the accounts payable credit implied.
func isBillLike(transactionType string) bool {
	lower := strings.ToLower(transactionType)
	return strings.Contains(lower, "bill") || strings.Contains(lower, "charge")
}

// UpsertLeaseTransaction writes a lease transaction header and replaces
// its lines. Returns the local transaction id.
func (e *Engine) UpsertLeaseTransaction(ctx context.Context, leaseTx *buildium.LeaseTransaction, buildiumAccountID int64) (string, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("ledger: begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := e.upsertLeaseTransactionTx(ctx, tx, leaseTx, buildiumAccountID)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("ledger: commit upsert: %w", err)
	}
	return id, nil
}

func (e *Engine) upsertLeaseTransactionTx(ctx context.Context, tx pgx.Tx, leaseTx *buildium.LeaseTransaction, buildiumAccountID int64) (string, error) {
	leaseRef, err := e.refs.Lease(ctx, tx, leaseTx.LeaseID)
	if err != nil {
		return "", err
	}

	orgID, propertyRef, err := e.resolveOrg(ctx, tx, leaseRef, buildiumAccountID)
	if err != nil {
		return "", err
	}

	header := TransactionHeader{
		BuildiumTransactionID: leaseTx.ID,
		OrgID:                 orgID,
		BuildiumLeaseID:       leaseTx.LeaseID,
		Date:                  parseRemoteDate(leaseTx.Date),
		TransactionType:       orDefault(leaseTx.TransactionType, "Lease"),
		TotalAmount:           leaseTx.TotalAmount,
		CheckNumber:           leaseTx.CheckNumber,
		Memo:                  leaseTx.Journal.Memo,
	}
	if leaseRef != nil {
		header.LeaseID = leaseRef.ID
		header.PropertyID = leaseRef.PropertyID
		header.UnitID = leaseRef.UnitID
	}
	if leaseTx.PayeeTenantID != nil {
		header.PayeeTenantID = *leaseTx.PayeeTenantID
	}

	transactionID, err := e.upsertHeader(ctx, tx, header)
	if err != nil {
		return "", err
	}

	flow := classifyFlow(header.TransactionType, leaseTx.LeaseID != 0 || (leaseRef != nil && leaseRef.ID != ""))
	lines, debits, credits, err := e.buildLines(ctx, tx, leaseTx, header, leaseRef, propertyRef, flow, orgID)
	if err != nil {
		return "", err
	}

	if err := e.replaceLines(ctx, tx, transactionID, header, lines); err != nil {
		return "", err
	}
	if err := CheckBalanced(debits, credits); err != nil {
		return "", err
	}
	return transactionID, nil
}

func (e *Engine) resolveOrg(ctx context.Context, tx pgx.Tx, leaseRef *LeaseRef, buildiumAccountID int64) (string, *PropertyRef, error) {
	orgFromAccount, err := e.refs.OrgIDFromAccount(ctx, tx, buildiumAccountID)
	if err != nil {
		return "", nil, err
	}

	var propertyRef *PropertyRef
	if leaseRef != nil && leaseRef.PropertyID != "" {
		propertyRef, err = e.refs.Property(ctx, tx, leaseRef.PropertyID)
		if err != nil {
			return "", nil, err
		}
	}

	orgID := orgFromAccount
	if orgID == "" && propertyRef != nil {
		orgID = propertyRef.OrgID
	}
	if orgID == "" && leaseRef != nil {
		orgID = leaseRef.OrgID
	}
	if orgID == "" {
		return "", nil, errors.New("ledger: unable to resolve org for transaction")
	}
	return orgID, propertyRef, nil
}

func (e *Engine) upsertHeader(ctx context.Context, tx pgx.Tx, header TransactionHeader) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO transactions (
			buildium_transaction_id, org_id, lease_id, buildium_lease_id, property_id, unit_id,
			date, transaction_type, total_amount, check_number, memo, payee_tenant_id, bank_gl_account_id
		) VALUES ($1, $2, NULLIF($3, '')::uuid, NULLIF($4, 0), NULLIF($5, '')::uuid, NULLIF($6, '')::uuid,
			$7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, 0), NULLIF($13, '')::uuid)
		ON CONFLICT (buildium_transaction_id) DO UPDATE SET
			org_id = EXCLUDED.org_id,
			lease_id = EXCLUDED.lease_id,
			buildium_lease_id = EXCLUDED.buildium_lease_id,
			property_id = EXCLUDED.property_id,
			unit_id = EXCLUDED.unit_id,
			date = EXCLUDED.date,
			transaction_type = EXCLUDED.transaction_type,
			total_amount = EXCLUDED.total_amount,
			check_number = EXCLUDED.check_number,
			memo = EXCLUDED.memo,
			payee_tenant_id = EXCLUDED.payee_tenant_id,
			bank_gl_account_id = EXCLUDED.bank_gl_account_id,
			updated_at = NOW()
		RETURNING id::text`,
		header.BuildiumTransactionID, header.OrgID, header.LeaseID, header.BuildiumLeaseID,
		header.PropertyID, header.UnitID, header.Date, header.TransactionType,
		header.TotalAmount, header.CheckNumber, header.Memo, header.PayeeTenantID,
		header.BankGLAccountID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("ledger: upsert transaction header: %w", err)
	}
	return id, nil
}

// buildLines maps the remote journal into local lines and balances the
// cash side: inflows debit the bank (or undeposited funds), outflows
// credit it with the offset moved to accounts payable.
func (e *Engine) buildLines(ctx context.Context, tx pgx.Tx, leaseTx *buildium.LeaseTransaction, header TransactionHeader, leaseRef *LeaseRef, propertyRef *PropertyRef, flow flowKind, orgID string) ([]TransactionLine, float64, float64, error) {
	var (
		debits, credits float64
		lines           []TransactionLine
		sawBankLine     bool
	)

	accountsPayable := ""
	accountsReceivable := ""
	switch flow {
	case flowOutflow:
		var err error
		accountsPayable, err = e.refs.AccountsPayable(ctx, tx, orgID)
		if err != nil {
			return nil, 0, 0, err
		}
	case flowInflow:
		var err error
		accountsReceivable, err = e.refs.AccountsReceivable(ctx, tx)
		if err != nil {
			return nil, 0, 0, err
		}
	}

	for _, line := range leaseTx.Journal.Lines {
		amount := math.Abs(line.Amount)
		posting := ResolvePostingType(line.PostingType, line.Amount)

		glID, err := e.resolver.Resolve(ctx, tx, line.AccountID())
		if err != nil {
			return nil, 0, 0, err
		}
		if glID == "" {
			return nil, 0, 0, fmt.Errorf("ledger: gl account not found for line, remote id %d", line.AccountID())
		}

		isBank, err := e.resolver.IsBankAccount(ctx, tx, glID)
		if err != nil {
			return nil, 0, 0, err
		}
		if isBank {
			sawBankLine = true
		}

		switch flow {
		case flowInflow:
			if isBank {
				posting = Debit
			} else {
				posting = Credit
				// Income and charge lines stay on their own account; every
				// other non-bank offset moves to accounts receivable.
				if accountsReceivable != "" {
					income, err := e.resolver.IsIncomeAccount(ctx, tx, glID)
					if err != nil {
						return nil, 0, 0, err
					}
					if !income {
						glID = accountsReceivable
					}
				}
			}
		case flowOutflow:
			if isBank {
				posting = Credit
			} else {
				posting = Debit
				if accountsPayable != "" {
					glID = accountsPayable
				}
			}
		}

		built := TransactionLine{
			GLAccountID:     glID,
			Amount:          amount,
			PostingType:     posting,
			Memo:            line.Memo,
			BuildiumLeaseID: leaseTx.LeaseID,
		}
		if leaseRef != nil {
			built.LeaseID = leaseRef.ID
			built.PropertyID = leaseRef.PropertyID
			built.UnitID = leaseRef.UnitID
			built.BuildiumPropertyID = leaseRef.BuildiumPropertyID
			built.BuildiumUnitID = leaseRef.BuildiumUnitID
		}
		lines = append(lines, built)

		if posting == Debit {
			debits += amount
		} else {
			credits += amount
		}
	}

	// Cash-moving transactions with no bank line get one synthesized
	// against undeposited funds (or the property's operating account).
	if flow != flowNeutral && !sawBankLine {
		needed := credits
		bankPosting := Debit
		if flow == flowOutflow {
			needed = debits
			bankPosting = Credit
		}
		if needed > 0 {
			bankGL, err := e.offsetBankAccount(ctx, tx, propertyRef, orgID)
			if err != nil {
				return nil, 0, 0, err
			}
			if bankGL != "" {
				built := TransactionLine{
					GLAccountID:     bankGL,
					Amount:          needed,
					PostingType:     bankPosting,
					Memo:            header.Memo,
					BuildiumLeaseID: leaseTx.LeaseID,
				}
				if leaseRef != nil {
					built.LeaseID = leaseRef.ID
					built.PropertyID = leaseRef.PropertyID
					built.UnitID = leaseRef.UnitID
					built.BuildiumPropertyID = leaseRef.BuildiumPropertyID
					built.BuildiumUnitID = leaseRef.BuildiumUnitID
				}
				lines = append(lines, built)
				if bankPosting == Debit {
					debits += needed
				} else {
					credits += needed
				}
			}
		}
	}

	// Bills and charges arrive as expense debits only; the accounts
	// payable credit that balances them is implied by the remote model.
	if flow == flowNeutral && isBillLike(header.TransactionType) && debits > credits {
		apID, err := e.refs.AccountsPayable(ctx, tx, orgID)
		if err != nil {
			return nil, 0, 0, err
		}
		if apID != "" {
			shortfall := debits - credits
			built := TransactionLine{
				GLAccountID:     apID,
				Amount:          shortfall,
				PostingType:     Credit,
				Memo:            header.Memo,
				BuildiumLeaseID: leaseTx.LeaseID,
			}
			if leaseRef != nil {
				built.LeaseID = leaseRef.ID
				built.PropertyID = leaseRef.PropertyID
				built.UnitID = leaseRef.UnitID
				built.BuildiumPropertyID = leaseRef.BuildiumPropertyID
				built.BuildiumUnitID = leaseRef.BuildiumUnitID
			}
			lines = append(lines, built)
			credits += shortfall
		}
	}

	return lines, debits, credits, nil
}

func (e *Engine) offsetBankAccount(ctx context.Context, tx pgx.Tx, propertyRef *PropertyRef, orgID string) (string, error) {
	undeposited, err := e.refs.UndepositedFundsAccount(ctx, tx, orgID)
	if err != nil {
		return "", err
	}
	if undeposited != "" {
		return undeposited, nil
	}
	if propertyRef != nil {
		if propertyRef.OperatingBankGLAccount != "" {
			return propertyRef.OperatingBankGLAccount, nil
		}
		if propertyRef.DepositTrustGLAccount != "" {
			return propertyRef.DepositTrustGLAccount, nil
		}
	}
	return "", nil
}

// replaceLines deletes every line under the header and inserts the new
// set. Lines are never merged: the remote journal is the source of truth.
func (e *Engine) replaceLines(ctx context.Context, tx pgx.Tx, transactionID string, header TransactionHeader, lines []TransactionLine) error {
	if _, err := tx.Exec(ctx,
		`DELETE FROM transaction_lines WHERE transaction_id = $1`, transactionID); err != nil {
		return fmt.Errorf("ledger: delete transaction lines: %w", err)
	}
	for _, line := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO transaction_lines (
				transaction_id, gl_account_id, amount, posting_type, memo, date,
				buildium_property_id, buildium_unit_id, buildium_lease_id,
				lease_id, property_id, unit_id
			) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, 0), NULLIF($8, 0), NULLIF($9, 0),
				NULLIF($10, '')::uuid, NULLIF($11, '')::uuid, NULLIF($12, '')::uuid)`,
			transactionID, line.GLAccountID, line.Amount, string(line.PostingType), line.Memo,
			header.Date, line.BuildiumPropertyID, line.BuildiumUnitID, line.BuildiumLeaseID,
			line.LeaseID, line.PropertyID, line.UnitID,
		); err != nil {
			return fmt.Errorf("ledger: insert transaction line: %w", err)
		}
	}
	return nil
}

// DeleteTransaction removes a transaction and its lines for a deleted
// remote event. Unknown ids are a no-op.
func (e *Engine) DeleteTransaction(ctx context.Context, buildiumTransactionID int64) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ledger: begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	err = tx.QueryRow(ctx,
		`SELECT id::text FROM transactions WHERE buildium_transaction_id = $1`, buildiumTransactionID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		e.logger.Warn("delete for unknown transaction, skipping", "buildium_transaction_id", buildiumTransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("ledger: find transaction for delete: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM transaction_lines WHERE transaction_id = $1`, id); err != nil {
		return fmt.Errorf("ledger: delete lines: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("ledger: delete transaction: %w", err)
	}
	return tx.Commit(ctx)
}

// UpsertBankTransaction writes a bank ledger transaction. Deposits become
// per-split debit(bank)/credit(undeposited funds) pairs; anything else
// maps its GL journal with sign-derived posting types.
func (e *Engine) UpsertBankTransaction(ctx context.Context, bankAccount *buildium.BankAccount, bankTx *buildium.BankTransaction, buildiumAccountID int64) (string, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("ledger: begin bank upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	bankGLRemoteID := int64(0)
	if bankAccount != nil && bankAccount.GLAccount != nil {
		bankGLRemoteID = bankAccount.GLAccount.ID
	}
	bankGLID, err := e.resolver.Resolve(ctx, tx, bankGLRemoteID)
	if err != nil {
		return "", err
	}

	orgID, err := e.refs.OrgIDFromAccount(ctx, tx, buildiumAccountID)
	if err != nil {
		return "", err
	}
	if orgID == "" && bankGLID != "" {
		orgID, err = e.refs.GLAccountOrgID(ctx, tx, bankGLID)
		if err != nil {
			return "", err
		}
	}
	if orgID == "" {
		return "", errors.New("ledger: unable to resolve org for bank transaction")
	}

	header := TransactionHeader{
		BuildiumTransactionID: bankTx.ID,
		OrgID:                 orgID,
		Date:                  parseRemoteDate(bankTx.EntryDate),
		TransactionType:       orDefault(bankTx.TransactionType, "Bank"),
		TotalAmount:           bankTx.TotalAmount,
		CheckNumber:           bankTx.CheckNumber,
		Memo:                  bankTx.Memo,
		BankGLAccountID:       bankGLID,
	}
	transactionID, err := e.upsertHeader(ctx, tx, header)
	if err != nil {
		return "", err
	}

	var lines []TransactionLine
	var debits, credits float64

	splits := bankTx.PaymentTransactions
	if len(splits) == 0 && bankTx.DepositDetails != nil {
		splits = bankTx.DepositDetails.PaymentTransactions
	}

	if strings.EqualFold(bankTx.TransactionType, "Deposit") && len(splits) > 0 && bankGLID != "" {
		undeposited, err := e.refs.UndepositedFundsAccount(ctx, tx, orgID)
		if err != nil {
			return "", err
		}
		for _, split := range splits {
			amount := math.Abs(split.Amount)
			if amount == 0 {
				continue
			}
			lines = append(lines, TransactionLine{
				GLAccountID: bankGLID,
				Amount:      amount,
				PostingType: Debit,
				Memo:        bankTx.Memo,
			})
			debits += amount
			creditGL := undeposited
			if creditGL == "" {
				creditGL = bankGLID
			}
			lines = append(lines, TransactionLine{
				GLAccountID: creditGL,
				Amount:      amount,
				PostingType: Credit,
				Memo:        bankTx.Memo,
			})
			credits += amount
		}
	} else if bankTx.Journal != nil {
		for _, line := range bankTx.Journal.Lines {
			amount := math.Abs(line.Amount)
			// Sign decides direction on bank journals: non-negative
			// amounts post as debits.
			posting := Credit
			if line.Amount >= 0 {
				posting = Debit
			}
			if line.PostingType != "" {
				posting = ResolvePostingType(line.PostingType, line.Amount)
			}

			glID, err := e.resolver.Resolve(ctx, tx, line.AccountID())
			if err != nil {
				return "", err
			}
			if glID == "" {
				return "", fmt.Errorf("ledger: gl account not found for bank line, remote id %d", line.AccountID())
			}
			lines = append(lines, TransactionLine{
				GLAccountID: glID,
				Amount:      amount,
				PostingType: posting,
				Memo:        line.Memo,
			})
			if posting == Debit {
				debits += amount
			} else {
				credits += amount
			}
		}
	}

	if err := e.replaceLines(ctx, tx, transactionID, header, lines); err != nil {
		return "", err
	}
	if err := CheckBalanced(debits, credits); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("ledger: commit bank upsert: %w", err)
	}
	return transactionID, nil
}

var remoteDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseRemoteDate(value string) time.Time {
	for _, layout := range remoteDateLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC()
		}
	}
	return time.Now().UTC()
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
