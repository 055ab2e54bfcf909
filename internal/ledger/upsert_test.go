package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"

	"github.com/rentfolio/propsync/internal/buildium"
)

func int64ptr(v int64) *int64 { return &v }

func TestEngineUpsertLeaseTransactionPayment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	resolver := NewGLAccountResolver(mock, nil, nil, nil)
	engine := NewEngine(mock, resolver, NewRefs(mock, nil), nil)

	leaseTx := &buildium.LeaseTransaction{
		ID:              9001,
		Date:            "2026-05-01",
		TransactionType: "Payment",
		TotalAmount:     1200,
		LeaseID:         555,
		Journal: buildium.Journal{
			Memo: "May rent",
			Lines: []buildium.JournalLine{
				{GLAccountID: int64ptr(10), Amount: 1200, PostingType: "Debit"},
				{GLAccountID: int64ptr(20), Amount: 1200, PostingType: "Credit"},
			},
		},
	}

	date := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM leases WHERE buildium_lease_id").
		WithArgs(int64(555)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "org_id", "property_id", "unit_id", "buildium_property_id", "buildium_unit_id"}).
			AddRow("lease-1", "org-1", "prop-1", "unit-1", int64(77), int64(78)))
	mock.ExpectQuery("FROM organizations WHERE buildium_org_id").
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("org-1"))
	mock.ExpectQuery("FROM properties WHERE id").
		WithArgs("prop-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "org_id", "operating", "trust"}).
			AddRow("prop-1", "org-1", "gl-operating", ""))
	mock.ExpectQuery("INSERT INTO transactions").
		WithArgs(int64(9001), "org-1", "lease-1", int64(555), "prop-1", "unit-1",
			date, "Payment", float64(1200), "", "May rent", int64(0), "").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("txn-1"))

	mock.ExpectQuery("name ILIKE 'Accounts Receivable'").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("gl-ar"))

	// Bank side of the payment.
	mock.ExpectQuery("FROM gl_accounts WHERE buildium_gl_account_id").
		WithArgs(int64(10)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("gl-bank"))
	mock.ExpectQuery("SELECT is_bank_account FROM gl_accounts").
		WithArgs("gl-bank").
		WillReturnRows(pgxmock.NewRows([]string{"is_bank_account"}).AddRow(true))
	// Income side.
	mock.ExpectQuery("FROM gl_accounts WHERE buildium_gl_account_id").
		WithArgs(int64(20)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("gl-rent"))
	mock.ExpectQuery("SELECT is_bank_account FROM gl_accounts").
		WithArgs("gl-rent").
		WillReturnRows(pgxmock.NewRows([]string{"is_bank_account"}).AddRow(false))
	// Income lines keep their own account instead of moving to A/R.
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("gl-rent").
		WillReturnRows(pgxmock.NewRows([]string{"type"}).AddRow("Income"))

	mock.ExpectExec("DELETE FROM transaction_lines").
		WithArgs("txn-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO transaction_lines").
		WithArgs("txn-1", "gl-bank", float64(1200), "Debit", "", date,
			int64(77), int64(78), int64(555), "lease-1", "prop-1", "unit-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO transaction_lines").
		WithArgs("txn-1", "gl-rent", float64(1200), "Credit", "", date,
			int64(77), int64(78), int64(555), "lease-1", "prop-1", "unit-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	id, err := engine.UpsertLeaseTransaction(context.Background(), leaseTx, 99)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if id != "txn-1" {
		t.Fatalf("expected transaction id txn-1, got %q", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEngineUpsertInjectsBankLineForCashlessPayment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	resolver := NewGLAccountResolver(mock, nil, nil, nil)
	engine := NewEngine(mock, resolver, NewRefs(mock, nil), nil)

	// Payment whose journal only touches income: the engine must add the
	// balancing debit against undeposited funds.
	leaseTx := &buildium.LeaseTransaction{
		ID:              9002,
		Date:            "2026-05-02",
		TransactionType: "Payment",
		TotalAmount:     800,
		LeaseID:         555,
		Journal: buildium.Journal{
			Lines: []buildium.JournalLine{
				{GLAccountID: int64ptr(20), Amount: 800, PostingType: "Credit"},
			},
		},
	}

	date := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM leases WHERE buildium_lease_id").
		WithArgs(int64(555)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "org_id", "property_id", "unit_id", "buildium_property_id", "buildium_unit_id"}).
			AddRow("lease-1", "org-1", "prop-1", "unit-1", int64(77), int64(78)))
	mock.ExpectQuery("FROM organizations WHERE buildium_org_id").
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("org-1"))
	mock.ExpectQuery("FROM properties WHERE id").
		WithArgs("prop-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "org_id", "operating", "trust"}).
			AddRow("prop-1", "org-1", "gl-operating", ""))
	mock.ExpectQuery("INSERT INTO transactions").
		WithArgs(int64(9002), "org-1", "lease-1", int64(555), "prop-1", "unit-1",
			date, "Payment", float64(800), "", "", int64(0), "").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("txn-2"))

	// No A/R account configured: the income line stays put.
	mock.ExpectQuery("name ILIKE 'Accounts Receivable'").
		WillReturnError(pgx.ErrNoRows)

	mock.ExpectQuery("FROM gl_accounts WHERE buildium_gl_account_id").
		WithArgs(int64(20)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("gl-rent"))
	mock.ExpectQuery("SELECT is_bank_account FROM gl_accounts").
		WithArgs("gl-rent").
		WillReturnRows(pgxmock.NewRows([]string{"is_bank_account"}).AddRow(false))

	// Undeposited funds lookup: scoped default-account-name hit.
	mock.ExpectQuery("FROM gl_accounts WHERE default_account_name ILIKE").
		WithArgs("org-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("gl-undeposited"))

	mock.ExpectExec("DELETE FROM transaction_lines").
		WithArgs("txn-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO transaction_lines").
		WithArgs("txn-2", "gl-rent", float64(800), "Credit", "", date,
			int64(77), int64(78), int64(555), "lease-1", "prop-1", "unit-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO transaction_lines").
		WithArgs("txn-2", "gl-undeposited", float64(800), "Debit", "", date,
			int64(77), int64(78), int64(555), "lease-1", "prop-1", "unit-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if _, err := engine.UpsertLeaseTransaction(context.Background(), leaseTx, 99); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEngineUpsertUnbalancedRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	resolver := NewGLAccountResolver(mock, nil, nil, nil)
	engine := NewEngine(mock, resolver, NewRefs(mock, nil), nil)

	leaseTx := &buildium.LeaseTransaction{
		ID:              9003,
		Date:            "2026-05-03",
		TransactionType: "Charge",
		TotalAmount:     100,
		LeaseID:         555,
		Journal: buildium.Journal{
			Lines: []buildium.JournalLine{
				{GLAccountID: int64ptr(10), Amount: 100, PostingType: "Debit"},
				{GLAccountID: int64ptr(20), Amount: 90, PostingType: "Credit"},
			},
		},
	}

	date := time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM leases WHERE buildium_lease_id").
		WithArgs(int64(555)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "org_id", "property_id", "unit_id", "buildium_property_id", "buildium_unit_id"}).
			AddRow("lease-1", "org-1", "prop-1", "unit-1", int64(77), int64(78)))
	mock.ExpectQuery("FROM organizations WHERE buildium_org_id").
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("org-1"))
	mock.ExpectQuery("FROM properties WHERE id").
		WithArgs("prop-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "org_id", "operating", "trust"}).
			AddRow("prop-1", "org-1", "", ""))
	mock.ExpectQuery("INSERT INTO transactions").
		WithArgs(int64(9003), "org-1", "lease-1", int64(555), "prop-1", "unit-1",
			date, "Charge", float64(100), "", "", int64(0), "").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("txn-3"))

	mock.ExpectQuery("FROM gl_accounts WHERE buildium_gl_account_id").
		WithArgs(int64(10)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("gl-a"))
	mock.ExpectQuery("SELECT is_bank_account FROM gl_accounts").
		WithArgs("gl-a").
		WillReturnRows(pgxmock.NewRows([]string{"is_bank_account"}).AddRow(false))
	mock.ExpectQuery("FROM gl_accounts WHERE buildium_gl_account_id").
		WithArgs(int64(20)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("gl-b"))
	mock.ExpectQuery("SELECT is_bank_account FROM gl_accounts").
		WithArgs("gl-b").
		WillReturnRows(pgxmock.NewRows([]string{"is_bank_account"}).AddRow(false))

	// No A/P account to absorb the shortfall: the imbalance stands.
	mock.ExpectQuery("name ILIKE 'Accounts Payable'").
		WithArgs("org-1").
		WillReturnError(pgx.ErrNoRows)

	mock.ExpectExec("DELETE FROM transaction_lines").
		WithArgs("txn-3").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO transaction_lines").
		WithArgs("txn-3", "gl-a", float64(100), "Debit", "", date,
			int64(77), int64(78), int64(555), "lease-1", "prop-1", "unit-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO transaction_lines").
		WithArgs("txn-3", "gl-b", float64(90), "Credit", "", date,
			int64(77), int64(78), int64(555), "lease-1", "prop-1", "unit-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectRollback()

	_, err = engine.UpsertLeaseTransaction(context.Background(), leaseTx, 99)
	if err == nil {
		t.Fatal("expected integrity violation")
	}
	var integrity *IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEngineUpsertRemapsInflowOffsetToReceivable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	resolver := NewGLAccountResolver(mock, nil, nil, nil)
	engine := NewEngine(mock, resolver, NewRefs(mock, nil), nil)

	// A tenant payment offset against a non-income account: the offset
	// line moves to accounts receivable.
	leaseTx := &buildium.LeaseTransaction{
		ID:              9004,
		Date:            "2026-05-05",
		TransactionType: "Payment",
		TotalAmount:     1200,
		LeaseID:         555,
		Journal: buildium.Journal{
			Lines: []buildium.JournalLine{
				{GLAccountID: int64ptr(10), Amount: 1200, PostingType: "Debit"},
				{GLAccountID: int64ptr(21), Amount: 1200, PostingType: "Credit"},
			},
		},
	}

	date := time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM leases WHERE buildium_lease_id").
		WithArgs(int64(555)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "org_id", "property_id", "unit_id", "buildium_property_id", "buildium_unit_id"}).
			AddRow("lease-1", "org-1", "prop-1", "unit-1", int64(77), int64(78)))
	mock.ExpectQuery("FROM organizations WHERE buildium_org_id").
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("org-1"))
	mock.ExpectQuery("FROM properties WHERE id").
		WithArgs("prop-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "org_id", "operating", "trust"}).
			AddRow("prop-1", "org-1", "gl-operating", ""))
	mock.ExpectQuery("INSERT INTO transactions").
		WithArgs(int64(9004), "org-1", "lease-1", int64(555), "prop-1", "unit-1",
			date, "Payment", float64(1200), "", "", int64(0), "").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("txn-4"))

	mock.ExpectQuery("name ILIKE 'Accounts Receivable'").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("gl-ar"))

	mock.ExpectQuery("FROM gl_accounts WHERE buildium_gl_account_id").
		WithArgs(int64(10)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("gl-bank"))
	mock.ExpectQuery("SELECT is_bank_account FROM gl_accounts").
		WithArgs("gl-bank").
		WillReturnRows(pgxmock.NewRows([]string{"is_bank_account"}).AddRow(true))
	mock.ExpectQuery("FROM gl_accounts WHERE buildium_gl_account_id").
		WithArgs(int64(21)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("gl-sec"))
	mock.ExpectQuery("SELECT is_bank_account FROM gl_accounts").
		WithArgs("gl-sec").
		WillReturnRows(pgxmock.NewRows([]string{"is_bank_account"}).AddRow(false))
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("gl-sec").
		WillReturnRows(pgxmock.NewRows([]string{"type"}).AddRow("Liability"))

	mock.ExpectExec("DELETE FROM transaction_lines").
		WithArgs("txn-4").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO transaction_lines").
		WithArgs("txn-4", "gl-bank", float64(1200), "Debit", "", date,
			int64(77), int64(78), int64(555), "lease-1", "prop-1", "unit-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO transaction_lines").
		WithArgs("txn-4", "gl-ar", float64(1200), "Credit", "", date,
			int64(77), int64(78), int64(555), "lease-1", "prop-1", "unit-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if _, err := engine.UpsertLeaseTransaction(context.Background(), leaseTx, 99); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEngineUpsertBalancesBillWithPayable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	resolver := NewGLAccountResolver(mock, nil, nil, nil)
	engine := NewEngine(mock, resolver, NewRefs(mock, nil), nil)

	// A bill journal carries only the expense debit; the balancing A/P
	// credit is synthesized.
	leaseTx := &buildium.LeaseTransaction{
		ID:              9005,
		Date:            "2026-05-06",
		TransactionType: "Bill",
		TotalAmount:     250,
		LeaseID:         555,
		Journal: buildium.Journal{
			Lines: []buildium.JournalLine{
				{GLAccountID: int64ptr(40), Amount: 250, PostingType: "Debit"},
			},
		},
	}

	date := time.Date(2026, 5, 6, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM leases WHERE buildium_lease_id").
		WithArgs(int64(555)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "org_id", "property_id", "unit_id", "buildium_property_id", "buildium_unit_id"}).
			AddRow("lease-1", "org-1", "prop-1", "unit-1", int64(77), int64(78)))
	mock.ExpectQuery("FROM organizations WHERE buildium_org_id").
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("org-1"))
	mock.ExpectQuery("FROM properties WHERE id").
		WithArgs("prop-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "org_id", "operating", "trust"}).
			AddRow("prop-1", "org-1", "", ""))
	mock.ExpectQuery("INSERT INTO transactions").
		WithArgs(int64(9005), "org-1", "lease-1", int64(555), "prop-1", "unit-1",
			date, "Bill", float64(250), "", "", int64(0), "").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("txn-5"))

	mock.ExpectQuery("FROM gl_accounts WHERE buildium_gl_account_id").
		WithArgs(int64(40)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("gl-expense"))
	mock.ExpectQuery("SELECT is_bank_account FROM gl_accounts").
		WithArgs("gl-expense").
		WillReturnRows(pgxmock.NewRows([]string{"is_bank_account"}).AddRow(false))

	mock.ExpectQuery("name ILIKE 'Accounts Payable'").
		WithArgs("org-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("gl-ap"))

	mock.ExpectExec("DELETE FROM transaction_lines").
		WithArgs("txn-5").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO transaction_lines").
		WithArgs("txn-5", "gl-expense", float64(250), "Debit", "", date,
			int64(77), int64(78), int64(555), "lease-1", "prop-1", "unit-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO transaction_lines").
		WithArgs("txn-5", "gl-ap", float64(250), "Credit", "", date,
			int64(77), int64(78), int64(555), "lease-1", "prop-1", "unit-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if _, err := engine.UpsertLeaseTransaction(context.Background(), leaseTx, 99); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEngineDeleteTransactionUnknownIsNoop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	engine := NewEngine(mock, NewGLAccountResolver(mock, nil, nil, nil), NewRefs(mock, nil), nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id::text FROM transactions WHERE buildium_transaction_id").
		WithArgs(int64(4040)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	if err := engine.DeleteTransaction(context.Background(), 4040); err != nil {
		t.Fatalf("unknown delete should be a no-op, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEngineUpsertBankDeposit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	resolver := NewGLAccountResolver(mock, nil, nil, nil)
	engine := NewEngine(mock, resolver, NewRefs(mock, nil), nil)

	bankAccount := &buildium.BankAccount{
		ID:        300,
		Name:      "Operating",
		GLAccount: &buildium.GLAccountRef{ID: 30},
	}
	bankTx := &buildium.BankTransaction{
		ID:              7001,
		EntryDate:       "2026-05-04",
		TransactionType: "Deposit",
		TotalAmount:     500,
		DepositDetails: &buildium.DepositDetails{
			PaymentTransactions: []buildium.PaymentTransaction{
				{ID: 1, Amount: 300},
				{ID: 2, Amount: 200},
			},
		},
	}

	date := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM gl_accounts WHERE buildium_gl_account_id").
		WithArgs(int64(30)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("gl-bank"))
	mock.ExpectQuery("FROM organizations WHERE buildium_org_id").
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("org-1"))
	mock.ExpectQuery("INSERT INTO transactions").
		WithArgs(int64(7001), "org-1", "", int64(0), "", "",
			date, "Deposit", float64(500), "", "", int64(0), "gl-bank").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("txn-7"))

	mock.ExpectQuery("FROM gl_accounts WHERE default_account_name ILIKE").
		WithArgs("org-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("gl-undeposited"))

	mock.ExpectExec("DELETE FROM transaction_lines").
		WithArgs("txn-7").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO transaction_lines").
		WithArgs("txn-7", "gl-bank", float64(300), "Debit", "", date,
			int64(0), int64(0), int64(0), "", "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO transaction_lines").
		WithArgs("txn-7", "gl-undeposited", float64(300), "Credit", "", date,
			int64(0), int64(0), int64(0), "", "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO transaction_lines").
		WithArgs("txn-7", "gl-bank", float64(200), "Debit", "", date,
			int64(0), int64(0), int64(0), "", "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO transaction_lines").
		WithArgs("txn-7", "gl-undeposited", float64(200), "Credit", "", date,
			int64(0), int64(0), int64(0), "", "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	id, err := engine.UpsertBankTransaction(context.Background(), bankAccount, bankTx, 99)
	if err != nil {
		t.Fatalf("bank upsert failed: %v", err)
	}
	if id != "txn-7" {
		t.Fatalf("expected transaction id txn-7, got %q", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
