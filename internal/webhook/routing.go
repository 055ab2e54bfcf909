package webhook

import "strings"

// EventKind is the closed set of event families the pipeline understands.
// Dispatch goes through this enum, never through raw name strings, so an
// unmapped family cannot silently fall into a handler.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindProperty
	KindOwner
	KindRentalOwner
	KindLease
	KindLeaseTransaction
	KindLeaseTenant
	KindMoveOut
	KindBill
	KindBillPayment
	KindGLAccount
	KindRental
	KindRentalUnit
	KindTask
	KindTaskCategory
	KindTaskHistory
	KindVendor
	KindVendorCategory
	KindVendorTransaction
	KindWorkOrder
	KindBankAccount
	KindBankAccountTransaction
)

func (k EventKind) String() string {
	switch k {
	case KindProperty:
		return "Property"
	case KindOwner:
		return "Owner"
	case KindRentalOwner:
		return "RentalOwner"
	case KindLease:
		return "Lease"
	case KindLeaseTransaction:
		return "LeaseTransaction"
	case KindLeaseTenant:
		return "LeaseTenant"
	case KindMoveOut:
		return "Lease.MoveOut"
	case KindBill:
		return "Bill"
	case KindBillPayment:
		return "Bill.Payment"
	case KindGLAccount:
		return "GLAccount"
	case KindRental:
		return "Rental"
	case KindRentalUnit:
		return "RentalUnit"
	case KindTask:
		return "Task"
	case KindTaskCategory:
		return "TaskCategory"
	case KindTaskHistory:
		return "Task.History"
	case KindVendor:
		return "Vendor"
	case KindVendorCategory:
		return "VendorCategory"
	case KindVendorTransaction:
		return "Vendor.Transaction"
	case KindWorkOrder:
		return "WorkOrder"
	case KindBankAccount:
		return "BankAccount"
	case KindBankAccountTransaction:
		return "BankAccount.Transaction"
	default:
		return "Unknown"
	}
}

// EventVerb is the action suffix of an event name.
type EventVerb int

const (
	VerbUnknown EventVerb = iota
	VerbCreated
	VerbUpdated
	VerbDeleted
)

func (v EventVerb) String() string {
	switch v {
	case VerbCreated:
		return "Created"
	case VerbUpdated:
		return "Updated"
	case VerbDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

var kindsByFamily = map[string]EventKind{
	"Property":                KindProperty,
	"Owner":                   KindOwner,
	"RentalOwner":             KindRentalOwner,
	"Lease":                   KindLease,
	"LeaseTransaction":        KindLeaseTransaction,
	"LeaseTenant":             KindLeaseTenant,
	"Lease.MoveOut":           KindMoveOut,
	"Bill":                    KindBill,
	"Bill.Payment":            KindBillPayment,
	"GLAccount":               KindGLAccount,
	"Rental":                  KindRental,
	"RentalUnit":              KindRentalUnit,
	"Task":                    KindTask,
	"TaskCategory":            KindTaskCategory,
	"Task.History":            KindTaskHistory,
	"Vendor":                  KindVendor,
	"VendorCategory":          KindVendorCategory,
	"Vendor.Transaction":      KindVendorTransaction,
	"WorkOrder":               KindWorkOrder,
	"BankAccount":             KindBankAccount,
	"BankAccount.Transaction": KindBankAccountTransaction,
}

// ParseEventName splits a canonical event name into its family and verb.
// Returns KindUnknown for anything outside the supported registry.
func ParseEventName(eventName string) (EventKind, EventVerb) {
	canonical := CanonicalEventName(eventName)
	idx := strings.LastIndex(canonical, ".")
	if idx <= 0 {
		return KindUnknown, VerbUnknown
	}
	family, suffix := canonical[:idx], canonical[idx+1:]

	var verb EventVerb
	switch suffix {
	case "Created":
		verb = VerbCreated
	case "Updated":
		verb = VerbUpdated
	case "Deleted":
		verb = VerbDeleted
	default:
		return KindUnknown, VerbUnknown
	}

	kind, ok := kindsByFamily[family]
	if !ok {
		return KindUnknown, verb
	}
	return kind, verb
}

// Decision is the routing outcome for one event.
type Decision string

const (
	DecisionProcess    Decision = "process"
	DecisionSkip       Decision = "skip"
	DecisionDeadLetter Decision = "dead-letter"
)

// processableKinds are the families with synchronization handlers. The
// remaining recognized families are acknowledged and skipped; anything
// unrecognized dead-letters.
var processableKinds = map[EventKind]bool{
	KindProperty:               true,
	KindRental:                 true,
	KindOwner:                  true,
	KindRentalOwner:            true,
	KindLease:                  true,
	KindLeaseTransaction:       true,
	KindBillPayment:            true,
	KindGLAccount:              true,
	KindBankAccount:            true,
	KindBankAccountTransaction: true,
}

// Route decides what the pipeline does with an event name.
func Route(eventName string) Decision {
	kind, verb := ParseEventName(eventName)
	if kind == KindUnknown || verb == VerbUnknown {
		return DecisionDeadLetter
	}
	if processableKinds[kind] {
		return DecisionProcess
	}
	return DecisionSkip
}
