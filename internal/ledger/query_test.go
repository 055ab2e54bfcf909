package ledger

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
)

func TestReaderListForLease(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	date := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id::text, buildium_transaction_id").
		WithArgs(int64(555), 50).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "buildium_transaction_id", "org_id", "buildium_lease_id",
			"date", "transaction_type", "total_amount", "memo",
		}).AddRow("tx-1", int64(9001), "org-1", int64(555), date, "Charge", 1200.0, "April rent"))
	mock.ExpectQuery("SELECT gl_account_id::text, amount, posting_type").
		WithArgs("tx-1").
		WillReturnRows(pgxmock.NewRows([]string{"gl_account_id", "amount", "posting_type", "memo"}).
			AddRow("gl-ar", 1200.0, "Debit", "").
			AddRow("gl-rent", 1200.0, "Credit", ""))

	reader := NewReader(mock, nil)
	views, err := reader.ListForLease(context.Background(), 555, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected one transaction, got %d", len(views))
	}
	if views[0].BuildiumTransactionID != 9001 || views[0].TotalAmount != 1200.0 {
		t.Fatalf("unexpected transaction: %+v", views[0])
	}
	if len(views[0].Lines) != 2 {
		t.Fatalf("expected two lines, got %d", len(views[0].Lines))
	}
	if views[0].Lines[0].PostingType != "Debit" || views[0].Lines[1].PostingType != "Credit" {
		t.Fatalf("unexpected posting types: %+v", views[0].Lines)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReaderClampsLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT id::text, buildium_transaction_id").
		WithArgs(int64(7), 50).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "buildium_transaction_id", "org_id", "buildium_lease_id",
			"date", "transaction_type", "total_amount", "memo",
		}))

	reader := NewReader(mock, nil)
	views, err := reader.ListForLease(context.Background(), 7, 100000)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("expected no transactions, got %d", len(views))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
