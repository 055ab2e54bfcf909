package webhook

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rentfolio/propsync/internal/buildium"
	"github.com/rentfolio/propsync/internal/observability/metrics"
	"github.com/rentfolio/propsync/pkg/logging"
)

// remoteAPI is the slice of the Buildium client the processor hydrates
// events from. Webhook payloads carry ids only; the data comes from here.
type remoteAPI interface {
	GetProperty(ctx context.Context, id int64) (*buildium.Property, error)
	GetOwner(ctx context.Context, id int64) (*buildium.Owner, error)
	GetLease(ctx context.Context, id int64) (*buildium.Lease, error)
	GetLeaseTransaction(ctx context.Context, leaseID, id int64) (*buildium.LeaseTransaction, error)
	GetGLAccount(ctx context.Context, id int64) (*buildium.GLAccount, error)
	GetGeneralLedgerTransaction(ctx context.Context, id int64) (*buildium.BankTransaction, error)
	GetBankAccount(ctx context.Context, id int64) (*buildium.BankAccount, error)
	GetBankDeposit(ctx context.Context, bankAccountID, depositID int64) (*buildium.BankTransaction, error)
	GetBankTransaction(ctx context.Context, bankAccountID, transactionID int64) (*buildium.BankTransaction, error)
}

// entitySyncer mirrors fetched entities into local rows.
type entitySyncer interface {
	UpsertProperty(ctx context.Context, property *buildium.Property, orgID string) (string, bool, error)
	UpsertOwner(ctx context.Context, owner *buildium.Owner, orgID string) (string, bool, error)
	UpsertLease(ctx context.Context, lease *buildium.Lease, orgID string) (string, bool, error)
	UpsertGLAccount(ctx context.Context, account *buildium.GLAccount, orgID string) (string, error)
	UpsertBankAccount(ctx context.Context, bankAccount *buildium.BankAccount, orgID string) (string, error)
	DeleteBankAccount(ctx context.Context, buildiumBankAccountID int64, orgID string) error
	OrgIDForAccount(ctx context.Context, buildiumAccountID int64) (string, error)
}

// ledgerEngine writes financial transactions into the double-entry
// ledger.
type ledgerEngine interface {
	UpsertLeaseTransaction(ctx context.Context, leaseTx *buildium.LeaseTransaction, buildiumAccountID int64) (string, error)
	UpsertBankTransaction(ctx context.Context, bankAccount *buildium.BankAccount, bankTx *buildium.BankTransaction, buildiumAccountID int64) (string, error)
	DeleteTransaction(ctx context.Context, buildiumTransactionID int64) error
}

// statusRecorder tracks per-entity sync outcomes for the operator retry
// queue.
type statusRecorder interface {
	Update(ctx context.Context, entityType, entityID string, buildiumID int64, status, errorMessage string) error
}

// Processor executes the side effects of one routed event: fetch the
// current entity state from the remote API and converge local rows to it.
type Processor struct {
	remote   remoteAPI
	entities entitySyncer
	ledger   ledgerEngine
	status   statusRecorder
	metrics  *metrics.WebhookMetrics
	logger   *logging.Logger
}

func NewProcessor(remote remoteAPI, entities entitySyncer, ledgerEngine ledgerEngine, status statusRecorder, logger *logging.Logger) *Processor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Processor{remote: remote, entities: entities, ledger: ledgerEngine, status: status, logger: logger}
}

func (p *Processor) WithMetrics(m *metrics.WebhookMetrics) *Processor {
	p.metrics = m
	return p
}

// Process runs the handler for the event's kind. Events that route to
// DecisionProcess but carry a transaction type the system does not act on
// return nil, matching the skip semantics of recognized events.
func (p *Processor) Process(ctx context.Context, normalized NormalizedEvent, raw Event) error {
	kind, verb := ParseEventName(normalized.EventName)
	switch kind {
	case KindProperty, KindRental:
		return p.processProperty(ctx, normalized, raw)
	case KindOwner, KindRentalOwner:
		return p.processOwner(ctx, normalized, raw)
	case KindLease:
		return p.processLease(ctx, normalized, raw)
	case KindGLAccount:
		return p.processGLAccount(ctx, normalized, raw)
	case KindLeaseTransaction:
		return p.processLeaseTransaction(ctx, normalized, raw, verb)
	case KindBillPayment:
		return p.processBillPayment(ctx, normalized, raw, verb)
	case KindBankAccount:
		return p.processBankAccount(ctx, normalized, raw, verb)
	case KindBankAccountTransaction:
		return p.processBankTransaction(ctx, normalized, raw, verb)
	default:
		p.logger.Info("no handler for event kind, treating as no-op",
			"event_name", normalized.EventName, "kind", kind.String())
		return nil
	}
}

func (p *Processor) processProperty(ctx context.Context, normalized NormalizedEvent, raw Event) error {
	entityID, err := requireID(normalized, "property")
	if err != nil {
		return err
	}
	orgID := p.orgForEvent(ctx, raw)

	property, err := p.remote.GetProperty(ctx, entityID)
	if err != nil {
		return p.recordFailure(ctx, "property", normalized.EntityID, entityID, err)
	}
	id, created, err := p.entities.UpsertProperty(ctx, property, orgID)
	if err != nil {
		return p.recordFailure(ctx, "property", normalized.EntityID, entityID, err)
	}
	p.recordSynced(ctx, "property", id, entityID)
	p.logger.Info("property synced from webhook", "property_id", id, "created", created)
	return nil
}

func (p *Processor) processOwner(ctx context.Context, normalized NormalizedEvent, raw Event) error {
	entityID, err := requireID(normalized, "owner")
	if err != nil {
		return err
	}
	orgID := p.orgForEvent(ctx, raw)

	owner, err := p.remote.GetOwner(ctx, entityID)
	if err != nil {
		return p.recordFailure(ctx, "owner", normalized.EntityID, entityID, err)
	}
	id, created, err := p.entities.UpsertOwner(ctx, owner, orgID)
	if err != nil {
		return p.recordFailure(ctx, "owner", normalized.EntityID, entityID, err)
	}
	p.recordSynced(ctx, "owner", id, entityID)
	p.logger.Info("owner synced from webhook", "owner_id", id, "created", created)
	return nil
}

func (p *Processor) processLease(ctx context.Context, normalized NormalizedEvent, raw Event) error {
	leaseID := fieldInt64(raw, "LeaseId", "EntityId")
	if leaseID == 0 {
		var err error
		leaseID, err = requireID(normalized, "lease")
		if err != nil {
			return err
		}
	}
	orgID := p.orgForEvent(ctx, raw)

	lease, err := p.remote.GetLease(ctx, leaseID)
	if err != nil {
		return p.recordFailure(ctx, "lease", normalized.EntityID, leaseID, err)
	}
	id, created, err := p.entities.UpsertLease(ctx, lease, orgID)
	if err != nil {
		return p.recordFailure(ctx, "lease", normalized.EntityID, leaseID, err)
	}
	p.recordSynced(ctx, "lease", id, leaseID)
	p.logger.Info("lease synced from webhook", "lease_id", id, "created", created)
	return nil
}

func (p *Processor) processGLAccount(ctx context.Context, normalized NormalizedEvent, raw Event) error {
	accountID := fieldInt64(raw, "GLAccountId", "EntityId")
	if accountID == 0 {
		var err error
		accountID, err = requireID(normalized, "gl account")
		if err != nil {
			return err
		}
	}
	orgID := p.orgForEvent(ctx, raw)

	account, err := p.remote.GetGLAccount(ctx, accountID)
	if err != nil {
		return p.recordFailure(ctx, "gl_account", normalized.EntityID, accountID, err)
	}
	id, err := p.entities.UpsertGLAccount(ctx, account, orgID)
	if err != nil {
		return p.recordFailure(ctx, "gl_account", normalized.EntityID, accountID, err)
	}
	p.recordSynced(ctx, "gl_account", id, accountID)
	return nil
}

func (p *Processor) processLeaseTransaction(ctx context.Context, normalized NormalizedEvent, raw Event, verb EventVerb) error {
	transactionID := fieldInt64(raw, "TransactionId", "Id")
	if transactionID == 0 {
		return fmt.Errorf("webhook: missing TransactionId for lease transaction event")
	}

	if verb == VerbDeleted {
		return p.ledger.DeleteTransaction(ctx, transactionID)
	}

	leaseID := fieldInt64(raw, "LeaseId")
	if leaseID == 0 {
		return fmt.Errorf("webhook: missing LeaseId for lease transaction event")
	}
	accountID := fieldInt64(raw, "AccountId")

	leaseTx, err := p.remote.GetLeaseTransaction(ctx, leaseID, transactionID)
	if err != nil {
		return p.recordFailure(ctx, "lease_transaction", normalized.EntityID, transactionID, err)
	}
	id, err := p.ledger.UpsertLeaseTransaction(ctx, leaseTx, accountID)
	if err != nil {
		p.metrics.ObserveLedgerUpsert("lease_transaction", "error")
		return p.recordFailure(ctx, "lease_transaction", normalized.EntityID, transactionID, err)
	}
	p.metrics.ObserveLedgerUpsert("lease_transaction", "ok")
	p.recordSynced(ctx, "lease_transaction", id, transactionID)
	return nil
}

func (p *Processor) processBillPayment(ctx context.Context, normalized NormalizedEvent, raw Event, verb EventVerb) error {
	transactionID := fieldInt64(raw, "TransactionId", "PaymentId", "Id")
	if transactionID == 0 {
		return fmt.Errorf("webhook: missing TransactionId for bill payment event")
	}
	if verb == VerbDeleted {
		return p.ledger.DeleteTransaction(ctx, transactionID)
	}
	accountID := fieldInt64(raw, "AccountId")

	glTx, err := p.remote.GetGeneralLedgerTransaction(ctx, transactionID)
	if err != nil {
		return p.recordFailure(ctx, "bill_payment", normalized.EntityID, transactionID, err)
	}
	id, err := p.ledger.UpsertBankTransaction(ctx, nil, glTx, accountID)
	if err != nil {
		p.metrics.ObserveLedgerUpsert("bill_payment", "error")
		return p.recordFailure(ctx, "bill_payment", normalized.EntityID, transactionID, err)
	}
	p.metrics.ObserveLedgerUpsert("bill_payment", "ok")
	p.recordSynced(ctx, "bill_payment", id, transactionID)
	return nil
}

func (p *Processor) processBankAccount(ctx context.Context, normalized NormalizedEvent, raw Event, verb EventVerb) error {
	bankAccountID := fieldInt64(raw, "BankAccountId", "EntityId")
	if bankAccountID == 0 {
		return fmt.Errorf("webhook: missing BankAccountId on bank account event")
	}
	orgID := p.orgForEvent(ctx, raw)

	if verb == VerbDeleted {
		return p.entities.DeleteBankAccount(ctx, bankAccountID, orgID)
	}

	bankAccount, err := p.remote.GetBankAccount(ctx, bankAccountID)
	if err != nil {
		return p.recordFailure(ctx, "bank_account", normalized.EntityID, bankAccountID, err)
	}
	id, err := p.entities.UpsertBankAccount(ctx, bankAccount, orgID)
	if err != nil {
		return p.recordFailure(ctx, "bank_account", normalized.EntityID, bankAccountID, err)
	}
	p.recordSynced(ctx, "bank_account", id, bankAccountID)
	return nil
}

func (p *Processor) processBankTransaction(ctx context.Context, normalized NormalizedEvent, raw Event, verb EventVerb) error {
	bankAccountID := fieldInt64(raw, "BankAccountId", "EntityId")
	transactionID := fieldInt64(raw, "TransactionId")
	if bankAccountID == 0 || transactionID == 0 {
		return fmt.Errorf("webhook: missing BankAccountId or TransactionId on bank transaction event")
	}

	if verb == VerbDeleted {
		return p.ledger.DeleteTransaction(ctx, transactionID)
	}

	transactionType := strings.ToLower(fieldString(raw, "TransactionType"))
	if transactionType == "" {
		transactionType = "deposit"
	}
	isTransfer := transactionType == "other" || transactionType == "transfer"
	if transactionType != "deposit" && !isTransfer {
		// Other bank transaction types arrive through their own event
		// families.
		p.logger.Info("skipping unsupported bank transaction type",
			"bank_account_id", bankAccountID, "transaction_id", transactionID,
			"transaction_type", transactionType)
		return nil
	}

	accountID := fieldInt64(raw, "AccountId")

	bankAccount, err := p.remote.GetBankAccount(ctx, bankAccountID)
	if err != nil {
		return p.recordFailure(ctx, "bank_transaction", normalized.EntityID, transactionID, err)
	}

	var bankTx *buildium.BankTransaction
	switch {
	case isTransfer:
		bankTx, err = p.remote.GetGeneralLedgerTransaction(ctx, transactionID)
	case verb == VerbUpdated:
		// Deposits may live behind either endpoint on updates.
		bankTx, err = p.remote.GetBankDeposit(ctx, bankAccountID, transactionID)
		if err != nil {
			bankTx, err = p.remote.GetBankTransaction(ctx, bankAccountID, transactionID)
		}
	default:
		bankTx, err = p.remote.GetBankDeposit(ctx, bankAccountID, transactionID)
	}
	if err != nil {
		return p.recordFailure(ctx, "bank_transaction", normalized.EntityID, transactionID, err)
	}

	id, err := p.ledger.UpsertBankTransaction(ctx, bankAccount, bankTx, accountID)
	if err != nil {
		p.metrics.ObserveLedgerUpsert("bank_transaction", "error")
		return p.recordFailure(ctx, "bank_transaction", normalized.EntityID, transactionID, err)
	}
	p.metrics.ObserveLedgerUpsert("bank_transaction", "ok")
	p.recordSynced(ctx, "bank_transaction", id, transactionID)
	return nil
}

func (p *Processor) orgForEvent(ctx context.Context, raw Event) string {
	accountID := fieldInt64(raw, "AccountId")
	if accountID == 0 {
		return ""
	}
	orgID, err := p.entities.OrgIDForAccount(ctx, accountID)
	if err != nil {
		p.logger.Warn("org lookup for event failed", "buildium_account_id", accountID, "error", err)
		return ""
	}
	return orgID
}

func (p *Processor) recordSynced(ctx context.Context, entityType, entityID string, buildiumID int64) {
	if p.status == nil || entityID == "" {
		return
	}
	if err := p.status.Update(ctx, entityType, entityID, buildiumID, "synced", ""); err != nil {
		p.logger.Warn("sync status update failed", "entity_type", entityType, "entity_id", entityID, "error", err)
	}
}

// recordFailure marks the sync failed and returns the original error so
// the retry loop sees it.
func (p *Processor) recordFailure(ctx context.Context, entityType, entityID string, buildiumID int64, cause error) error {
	if p.status != nil && entityID != "" {
		if err := p.status.Update(ctx, entityType, entityID, buildiumID, "failed", cause.Error()); err != nil {
			p.logger.Warn("sync status update failed", "entity_type", entityType, "entity_id", entityID, "error", err)
		}
	}
	return cause
}

func requireID(normalized NormalizedEvent, label string) (int64, error) {
	id, err := strconv.ParseInt(normalized.EntityID, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("webhook: missing EntityId for %s event", label)
	}
	return id, nil
}

// fieldInt64 reads the first present numeric field, checking the top
// level then the Data envelope for each key.
func fieldInt64(event Event, keys ...string) int64 {
	for _, key := range keys {
		if v, ok := event[key]; ok {
			if n := toInt64(v); n != 0 {
				return n
			}
		}
		if v := dataField(event, key); v != nil {
			if n := toInt64(v); n != 0 {
				return n
			}
		}
	}
	return 0
}

func fieldString(event Event, keys ...string) string {
	for _, key := range keys {
		if v, ok := event[key].(string); ok && v != "" {
			return v
		}
		if v, ok := dataField(event, key).(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func toInt64(value any) int64 {
	switch v := value.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
