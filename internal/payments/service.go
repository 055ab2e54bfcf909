package payments

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rentfolio/propsync/internal/buildium"
	"github.com/rentfolio/propsync/internal/ledger"
	"github.com/rentfolio/propsync/pkg/logging"
)

// remoteGateway is the slice of the Buildium client the service submits
// through.
type remoteGateway interface {
	CreateLeasePayment(ctx context.Context, leaseID int64, req buildium.LeasePaymentRequest) (*buildium.LeasePayment, error)
	GetLeaseTransaction(ctx context.Context, leaseID, id int64) (*buildium.LeaseTransaction, error)
}

// ledgerWriter mirrors the local transaction into the double-entry ledger
// after a successful remote submission.
type ledgerWriter interface {
	UpsertLeaseTransaction(ctx context.Context, leaseTx *buildium.LeaseTransaction, buildiumAccountID int64) (string, error)
}

// Result is the outcome of a payment submission. Reused marks a replayed
// idempotency key: the fields carry the original submission, not a new one.
type Result struct {
	IntentID             string  `json:"intentId"`
	LocalTransactionID   string  `json:"localTransactionId,omitempty"`
	GatewayTransactionID string  `json:"gatewayTransactionId,omitempty"`
	Amount               float64 `json:"amount"`
	Reused               bool    `json:"reused"`
}

// Service guards payment submissions with the intent ledger so a retried
// request never double-charges.
type Service struct {
	intents *IntentStore
	remote  remoteGateway
	ledger  ledgerWriter
	logger  *logging.Logger
}

func NewService(intents *IntentStore, remote remoteGateway, ledgerEngine ledgerWriter, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{intents: intents, remote: remote, ledger: ledgerEngine, logger: logger}
}

// SubmitLeasePayment creates a payment on the remote lease ledger under
// an idempotency key. A key that already submitted returns the original
// result with Reused set; a key whose earlier attempt failed retries from
// its created intent. The remote call happens at most once per key.
func (s *Service) SubmitLeasePayment(ctx context.Context, orgID string, buildiumLeaseID int64, idempotencyKey string, req buildium.LeasePaymentRequest) (*Result, error) {
	intent, reused, err := s.intents.Begin(ctx, orgID, idempotencyKey, req.Amount)
	if err != nil {
		return nil, err
	}
	if reused {
		s.logger.Info("payment intent reused, skipping remote submission",
			"intent_id", intent.ID, "idempotency_key", intent.IdempotencyKey)
		return &Result{
			IntentID:             intent.ID,
			LocalTransactionID:   intent.LocalTransactionID,
			GatewayTransactionID: intent.GatewayTransactionID,
			Amount:               intent.Amount,
			Reused:               true,
		}, nil
	}

	// A failure from here on leaves the intent in created; the same key
	// may retry.
	payment, err := s.remote.CreateLeasePayment(ctx, buildiumLeaseID, req)
	if err != nil {
		return nil, fmt.Errorf("payments: submit lease payment: %w", err)
	}

	localID := s.mirrorTransaction(ctx, buildiumLeaseID, payment.ID)

	gatewayID := strconv.FormatInt(payment.ID, 10)
	if err := s.intents.MarkSubmitted(ctx, intent.ID, gatewayID, localID); err != nil {
		return nil, err
	}

	return &Result{
		IntentID:             intent.ID,
		LocalTransactionID:   localID,
		GatewayTransactionID: gatewayID,
		Amount:               req.Amount,
		Reused:               false,
	}, nil
}

// mirrorTransaction pulls the created transaction back and writes it into
// the local ledger. Mirror failures are logged, not fatal: the webhook for
// the new transaction converges the ledger anyway.
func (s *Service) mirrorTransaction(ctx context.Context, buildiumLeaseID, transactionID int64) string {
	leaseTx, err := s.remote.GetLeaseTransaction(ctx, buildiumLeaseID, transactionID)
	if err != nil {
		s.logger.Warn("payment created remotely but readback failed, ledger will converge via webhook",
			"buildium_transaction_id", transactionID, "error", err)
		return ""
	}
	localID, err := s.ledger.UpsertLeaseTransaction(ctx, leaseTx, 0)
	if err != nil {
		s.logger.Warn("payment created remotely but local mirror failed, ledger will converge via webhook",
			"buildium_transaction_id", transactionID, "error", err)
		return ""
	}
	return localID
}

var _ ledgerWriter = (*ledger.Engine)(nil)
