package webhook

import "strings"

// Supported event names by family. Every family carries the full
// Created/Updated/Deleted triple.
var (
	generalEventNames = []string{
		"Property.Created", "Property.Updated", "Property.Deleted",
		"Owner.Created", "Owner.Updated", "Owner.Deleted",
	}
	leaseEventNames            = eventTriple("Lease")
	leaseTransactionEventNames = eventTriple("LeaseTransaction")
	leaseTenantEventNames      = eventTriple("LeaseTenant")
	moveOutEventNames          = eventTriple("Lease.MoveOut")
	billPaymentEventNames      = eventTriple("Bill.Payment")
	billEventNames             = eventTriple("Bill")
	glAccountEventNames        = eventTriple("GLAccount")
	rentalOwnerEventNames      = eventTriple("RentalOwner")
	rentalPropertyEventNames   = eventTriple("Rental")
	rentalUnitEventNames       = eventTriple("RentalUnit")
	taskCategoryEventNames     = eventTriple("TaskCategory")
	taskHistoryEventNames      = eventTriple("Task.History")
	taskEventNames             = eventTriple("Task")
	vendorCategoryEventNames   = eventTriple("VendorCategory")
	vendorTxnEventNames        = eventTriple("Vendor.Transaction")
	vendorEventNames           = eventTriple("Vendor")
	workOrderEventNames        = eventTriple("WorkOrder")
	bankAccountEventNames      = eventTriple("BankAccount")
	bankAccountTxnEventNames   = eventTriple("BankAccount.Transaction")
)

func eventTriple(family string) []string {
	return []string{family + ".Created", family + ".Updated", family + ".Deleted"}
}

// SupportedEventNames lists every event name the validator recognizes.
func SupportedEventNames() []string {
	var names []string
	for _, group := range [][]string{
		generalEventNames, leaseEventNames, leaseTransactionEventNames,
		leaseTenantEventNames, moveOutEventNames, billPaymentEventNames,
		billEventNames, glAccountEventNames, rentalOwnerEventNames,
		rentalPropertyEventNames, rentalUnitEventNames, taskCategoryEventNames,
		taskHistoryEventNames, taskEventNames, vendorCategoryEventNames,
		vendorTxnEventNames, vendorEventNames, workOrderEventNames,
		bankAccountEventNames, bankAccountTxnEventNames,
	} {
		names = append(names, group...)
	}
	return names
}

// aliasKey collapses punctuation and case so "Lease.Transaction.Created",
// "leaseTransactionCreated" and "LeaseTransaction.Created" all key alike.
func aliasKey(name string) string {
	name = strings.ReplaceAll(name, ".", "")
	name = strings.ReplaceAll(name, " ", "")
	return strings.ToLower(name)
}

// legacy camelCase and condensed spellings still seen in old deliveries
var legacyEventNameAliases = map[string]string{
	"leasetenantmoveout":       "Lease.MoveOut.Created",
	"moveoutcreated":           "Lease.MoveOut.Created",
	"moveoutupdated":           "Lease.MoveOut.Updated",
	"moveoutdeleted":           "Lease.MoveOut.Deleted",
	"rentalpropertycreated":    "Rental.Created",
	"rentalpropertyupdated":    "Rental.Updated",
	"rentalpropertydeleted":    "Rental.Deleted",
	"bill.paymentcreated":      "Bill.Payment.Created",
	"bill.paymentupdated":      "Bill.Payment.Updated",
	"bill.paymentdeleted":      "Bill.Payment.Deleted",
	"rentalownercreated":       "RentalOwner.Created",
	"rentalownerupdated":       "RentalOwner.Updated",
	"rentalownerdeleted":       "RentalOwner.Deleted",
	"vendortransactioncreated": "Vendor.Transaction.Created",
	"vendortransactionupdated": "Vendor.Transaction.Updated",
	"vendortransactiondeleted": "Vendor.Transaction.Deleted",
}

var eventNameAliases = buildEventNameAliases()

func buildEventNameAliases() map[string]string {
	aliases := make(map[string]string)
	for _, name := range SupportedEventNames() {
		aliases[aliasKey(name)] = name
	}
	for key, name := range legacyEventNameAliases {
		aliases[key] = name
	}
	return aliases
}

// CanonicalEventName maps any recognized spelling to its canonical form.
// Unrecognized names pass through trimmed so they stay visible in
// dead-letter rows.
func CanonicalEventName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "unknown"
	}
	if canonical, ok := eventNameAliases[aliasKey(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// ValidationResult reports schema validation for one event.
type ValidationResult struct {
	OK        bool
	Errors    []string
	EventName string
}

type fieldRequirement struct {
	label     string
	paths     []string
	when      func(event Event, eventName string) bool
	validator func(value any) bool
	message   string
}

type validationSpec struct {
	group      string
	eventNames []string
	match      func(eventName string) bool
	required   []fieldRequirement
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

// Spec order matters: the first matching group wins, so narrower families
// must come before the broad substring matches that would swallow them.
var validationSpecs = []validationSpec{
	{
		group:      "lease-transaction",
		eventNames: leaseTransactionEventNames,
		match:      func(name string) bool { return containsFold(name, "leasetransaction") },
		required: []fieldRequirement{
			{label: "TransactionId/EntityId", paths: []string{"TransactionId", "EntityId", "Data.TransactionId"}},
			{label: "LeaseId", paths: []string{"LeaseId", "Data.LeaseId"}},
		},
	},
	{
		group:      "lease-tenant",
		eventNames: leaseTenantEventNames,
		match:      func(name string) bool { return containsFold(name, "leasetenant") },
		required: []fieldRequirement{
			{label: "TenantId", paths: []string{"TenantId", "EntityId", "Data.TenantId"}},
			{
				label: "LeaseId",
				paths: []string{"LeaseId", "Data.LeaseId"},
				when:  func(_ Event, eventName string) bool { return containsFold(eventName, "moveout") },
			},
		},
	},
	{
		group:      "lease-moveout",
		eventNames: moveOutEventNames,
		match:      func(name string) bool { return containsFold(name, "moveout") },
		required: []fieldRequirement{
			{label: "LeaseId", paths: []string{"LeaseId", "Data.LeaseId"}},
			{label: "TenantId", paths: []string{"TenantId", "EntityId", "Data.TenantId"}},
		},
	},
	{
		group:      "lease",
		eventNames: leaseEventNames,
		match: func(name string) bool {
			return containsFold(name, "lease") &&
				!containsFold(name, "leasetransaction") &&
				!containsFold(name, "leasetenant") &&
				!containsFold(name, "moveout")
		},
		required: []fieldRequirement{
			{label: "LeaseId", paths: []string{"LeaseId", "EntityId", "Data.LeaseId"}},
		},
	},
	{
		group:      "bill-payment",
		eventNames: billPaymentEventNames,
		match:      func(name string) bool { return containsFold(name, "bill.payment") },
		required: []fieldRequirement{
			{label: "PaymentId", paths: []string{"PaymentId", "Data.PaymentId", "Id", "EventId"}},
			{
				label: "BillIds",
				paths: []string{"BillIds", "Data.BillIds"},
				validator: func(value any) bool {
					list, ok := value.([]any)
					return ok && len(list) > 0
				},
				message: "missing BillIds (non-empty array)",
			},
		},
	},
	{
		group:      "bill",
		eventNames: billEventNames,
		match: func(name string) bool {
			return containsFold(name, "bill") && !containsFold(name, "payment")
		},
		required: []fieldRequirement{
			{label: "BillId", paths: []string{"BillId", "EntityId", "Data.BillId"}},
		},
	},
	{
		group:      "gl-account",
		eventNames: glAccountEventNames,
		match:      func(name string) bool { return containsFold(name, "glaccount") },
		required: []fieldRequirement{
			{label: "GLAccountId", paths: []string{"GLAccountId", "EntityId", "Data.GLAccountId"}},
		},
	},
	{
		group:      "rental-owner",
		eventNames: rentalOwnerEventNames,
		match:      func(name string) bool { return containsFold(name, "rentalowner") },
		required: []fieldRequirement{
			{label: "RentalOwnerId", paths: []string{"RentalOwnerId", "EntityId", "Data.RentalOwnerId"}},
		},
	},
	{
		group:      "rental-unit",
		eventNames: rentalUnitEventNames,
		match:      func(name string) bool { return containsFold(name, "rentalunit") },
		required: []fieldRequirement{
			{label: "UnitId", paths: []string{"UnitId", "EntityId", "Data.UnitId"}},
		},
	},
	{
		group:      "rental-property",
		eventNames: rentalPropertyEventNames,
		match: func(name string) bool {
			return containsFold(name, "rental") &&
				!containsFold(name, "owner") && !containsFold(name, "unit")
		},
		required: []fieldRequirement{
			{label: "PropertyId", paths: []string{"PropertyId", "EntityId", "Data.PropertyId"}},
		},
	},
	{
		group:      "task-category",
		eventNames: taskCategoryEventNames,
		match:      func(name string) bool { return containsFold(name, "taskcategory") },
		required: []fieldRequirement{
			{label: "TaskCategoryId", paths: []string{"TaskCategoryId", "EntityId", "Data.TaskCategoryId"}},
		},
	},
	{
		group:      "task-history",
		eventNames: taskHistoryEventNames,
		match:      func(name string) bool { return containsFold(name, "task.history") },
		required: []fieldRequirement{
			{label: "TaskId", paths: []string{"TaskId", "EntityId", "Data.TaskId"}},
		},
	},
	{
		group:      "task",
		eventNames: taskEventNames,
		match: func(name string) bool {
			return strings.HasPrefix(strings.ToLower(name), "task.") && !containsFold(name, "task.history")
		},
		required: []fieldRequirement{
			{label: "TaskId", paths: []string{"TaskId", "EntityId", "Data.TaskId"}},
		},
	},
	{
		group:      "vendor-category",
		eventNames: vendorCategoryEventNames,
		match:      func(name string) bool { return containsFold(name, "vendorcategory") },
		required: []fieldRequirement{
			{label: "VendorCategoryId", paths: []string{"VendorCategoryId", "EntityId", "Data.VendorCategoryId"}},
		},
	},
	{
		group:      "vendor-transaction",
		eventNames: vendorTxnEventNames,
		match:      func(name string) bool { return containsFold(name, "vendor.transaction") },
		required: []fieldRequirement{
			{label: "VendorId", paths: []string{"VendorId", "EntityId", "Data.VendorId"}},
		},
	},
	{
		group:      "vendor",
		eventNames: vendorEventNames,
		match: func(name string) bool {
			return strings.HasPrefix(strings.ToLower(name), "vendor.") &&
				!containsFold(name, "vendorcategory") && !containsFold(name, "vendor.transaction")
		},
		required: []fieldRequirement{
			{label: "VendorId", paths: []string{"VendorId", "EntityId", "Data.VendorId"}},
		},
	},
	{
		group:      "work-order",
		eventNames: workOrderEventNames,
		match:      func(name string) bool { return containsFold(name, "workorder") },
		required: []fieldRequirement{
			{label: "WorkOrderId", paths: []string{"WorkOrderId", "EntityId", "Data.WorkOrderId"}},
		},
	},
	{
		group:      "bank-account",
		eventNames: bankAccountEventNames,
		match:      func(name string) bool { return containsFold(name, "bankaccount") },
		required: []fieldRequirement{
			{label: "BankAccountId", paths: []string{"BankAccountId", "EntityId", "Data.BankAccountId"}},
		},
	},
	{
		group:      "bank-account-transaction",
		eventNames: bankAccountTxnEventNames,
		match:      func(name string) bool { return containsFold(name, "bankaccount.transaction") },
		required: []fieldRequirement{
			{label: "BankAccountId", paths: []string{"BankAccountId", "EntityId", "Data.BankAccountId"}},
			{label: "TransactionId", paths: []string{"TransactionId", "EntityId", "Data.TransactionId"}},
		},
	},
	{
		group:      "property",
		eventNames: generalEventNames,
		required: []fieldRequirement{
			{label: "EntityId", paths: []string{"EntityId"}},
		},
	},
}

func (s validationSpec) matches(eventName string) bool {
	for _, name := range s.eventNames {
		if name == eventName {
			return true
		}
	}
	return s.match != nil && s.match(eventName)
}

func valueAtPath(event Event, path string) any {
	var current any = map[string]any(event)
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[key]
		if !ok {
			return nil
		}
	}
	return current
}

func hasValue(value any) bool {
	if value == nil {
		return false
	}
	if s, ok := value.(string); ok {
		return s != ""
	}
	return true
}

// Validate checks the required-field contract for an event's family.
// Unknown family is itself a validation failure.
func Validate(event Event) ValidationResult {
	var errs []string

	eventName := extractEventName(event)
	if eventName == "" {
		eventName = "unknown"
	}

	if extractPrimaryID(event) == "" {
		errs = append(errs, "missing event identifier (Id/EventId/TransactionId/LeaseId/EntityId)")
	}
	if _, ok := extractTimestamp(event); !ok {
		errs = append(errs, "missing or invalid EventDate/EventDateTime")
	}

	spec, found := findSpec(eventName)
	if !found {
		errs = append(errs, "unsupported EventName")
	} else {
		for _, req := range spec.required {
			if req.when != nil && !req.when(event, eventName) {
				continue
			}
			satisfied := false
			for _, path := range req.paths {
				value := valueAtPath(event, path)
				if req.validator != nil {
					if req.validator(value) {
						satisfied = true
						break
					}
					continue
				}
				if hasValue(value) {
					satisfied = true
					break
				}
			}
			if !satisfied {
				msg := req.message
				if msg == "" {
					msg = "missing " + req.label
				}
				errs = append(errs, msg)
			}
		}
	}

	return ValidationResult{OK: len(errs) == 0, Errors: errs, EventName: eventName}
}

func findSpec(eventName string) (validationSpec, bool) {
	for _, spec := range validationSpecs {
		if spec.matches(eventName) {
			return spec, true
		}
	}
	return validationSpec{}, false
}
