package webhook

import "testing"

func TestParseEventName(t *testing.T) {
	tests := []struct {
		in   string
		kind EventKind
		verb EventVerb
	}{
		{"Property.Created", KindProperty, VerbCreated},
		{"Lease.Updated", KindLease, VerbUpdated},
		{"LeaseTransaction.Deleted", KindLeaseTransaction, VerbDeleted},
		{"leaseTransactionCreated", KindLeaseTransaction, VerbCreated},
		{"Lease.MoveOut.Created", KindMoveOut, VerbCreated},
		{"Bill.Payment.Updated", KindBillPayment, VerbUpdated},
		{"BankAccount.Transaction.Created", KindBankAccountTransaction, VerbCreated},
		{"rentalPropertyDeleted", KindRental, VerbDeleted},
		{"LeaseTransaction.Voided", KindUnknown, VerbUnknown},
		{"Szechuan.Created", KindUnknown, VerbCreated},
		{"unknown", KindUnknown, VerbUnknown},
		{"", KindUnknown, VerbUnknown},
	}
	for _, tc := range tests {
		kind, verb := ParseEventName(tc.in)
		if kind != tc.kind || verb != tc.verb {
			t.Errorf("ParseEventName(%q) = (%v, %v), want (%v, %v)", tc.in, kind, verb, tc.kind, tc.verb)
		}
	}
}

func TestRoute(t *testing.T) {
	tests := []struct {
		in   string
		want Decision
	}{
		{"Property.Created", DecisionProcess},
		{"Owner.Updated", DecisionProcess},
		{"Lease.Created", DecisionProcess},
		{"LeaseTransaction.Created", DecisionProcess},
		{"GLAccount.Updated", DecisionProcess},
		{"Bill.Payment.Created", DecisionProcess},
		{"BankAccount.Created", DecisionProcess},
		{"BankAccount.Transaction.Updated", DecisionProcess},
		{"Task.Created", DecisionSkip},
		{"Vendor.Created", DecisionSkip},
		{"WorkOrder.Updated", DecisionSkip},
		{"Lease.MoveOut.Created", DecisionSkip},
		{"Szechuan.Created", DecisionDeadLetter},
		{"LeaseTransaction.Voided", DecisionDeadLetter},
		{"", DecisionDeadLetter},
	}
	for _, tc := range tests {
		if got := Route(tc.in); got != tc.want {
			t.Errorf("Route(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
