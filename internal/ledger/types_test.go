package ledger

import (
	"errors"
	"testing"
	"time"
)

func TestResolvePostingType(t *testing.T) {
	cases := []struct {
		raw    string
		amount float64
		want   PostingType
	}{
		{"Debit", 10, Debit},
		{"debit", 10, Debit},
		{"dr", 10, Debit},
		{"Credit", 10, Credit},
		{"cr", -10, Credit},
		{"DebitEntry", 10, Debit},
		{"", -5, Debit},
		{"", 5, Credit},
		{"", 0, Credit},
		{"garbage", -1, Debit},
	}
	for _, tc := range cases {
		if got := ResolvePostingType(tc.raw, tc.amount); got != tc.want {
			t.Errorf("ResolvePostingType(%q, %g) = %s, want %s", tc.raw, tc.amount, got, tc.want)
		}
	}
}

func TestCheckBalanced(t *testing.T) {
	if err := CheckBalanced(100, 100); err != nil {
		t.Fatalf("balanced totals rejected: %v", err)
	}
	if err := CheckBalanced(100, 100.00005); err != nil {
		t.Fatalf("totals within epsilon rejected: %v", err)
	}
	// Single-sided postings pass; only a disagreement between two live
	// sides violates the invariant.
	if err := CheckBalanced(100, 0); err != nil {
		t.Fatalf("single-sided debit rejected: %v", err)
	}
	if err := CheckBalanced(0, 50); err != nil {
		t.Fatalf("single-sided credit rejected: %v", err)
	}

	err := CheckBalanced(100, 90)
	if err == nil {
		t.Fatal("expected integrity violation for 100 vs 90")
	}
	var integrity *IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected IntegrityError, got %T", err)
	}
	if !integrity.Permanent() {
		t.Fatal("integrity violations must be permanent")
	}
}

func TestClassifyFlow(t *testing.T) {
	if got := classifyFlow("Payment", true); got != flowInflow {
		t.Fatalf("lease payment should be inflow, got %v", got)
	}
	if got := classifyFlow("Payment", false); got != flowOutflow {
		t.Fatalf("payment without lease context should be outflow, got %v", got)
	}
	if got := classifyFlow("ApplyDeposit", true); got != flowInflow {
		t.Fatalf("deposit application should be inflow, got %v", got)
	}
	if got := classifyFlow("BillPayment", false); got != flowOutflow {
		t.Fatalf("bill payment should be outflow, got %v", got)
	}
	if got := classifyFlow("OwnerDraw", true); got != flowOutflow {
		t.Fatalf("owner draw should be outflow, got %v", got)
	}
	if got := classifyFlow("Charge", true); got != flowNeutral {
		t.Fatalf("charge should be neutral, got %v", got)
	}
}

func TestParseRemoteDate(t *testing.T) {
	got := parseRemoteDate("2026-05-01")
	want := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("date-only parse = %v, want %v", got, want)
	}
	got = parseRemoteDate("2026-05-01T09:30:00Z")
	want = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("RFC3339 parse = %v, want %v", got, want)
	}
	if parseRemoteDate("not a date").IsZero() {
		t.Fatal("unparseable dates should fall back to now, not zero")
	}
}
