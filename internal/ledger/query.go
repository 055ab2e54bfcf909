package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rentfolio/propsync/pkg/logging"
)

// TransactionView is a ledger transaction with its lines, as served to
// API consumers.
type TransactionView struct {
	ID                    string     `json:"id"`
	BuildiumTransactionID int64      `json:"buildium_transaction_id"`
	OrgID                 string     `json:"org_id,omitempty"`
	BuildiumLeaseID       int64      `json:"buildium_lease_id,omitempty"`
	Date                  time.Time  `json:"date"`
	TransactionType       string     `json:"transaction_type"`
	TotalAmount           float64    `json:"total_amount"`
	Memo                  string     `json:"memo,omitempty"`
	Lines                 []LineView `json:"lines"`
}

// LineView is one posting of a transaction.
type LineView struct {
	GLAccountID string  `json:"gl_account_id"`
	Amount      float64 `json:"amount"`
	PostingType string  `json:"posting_type"`
	Memo        string  `json:"memo,omitempty"`
}

// Reader serves read-only ledger queries.
type Reader struct {
	pool   Querier
	logger *logging.Logger
}

func NewReader(pool Querier, logger *logging.Logger) *Reader {
	if logger == nil {
		logger = logging.Default()
	}
	return &Reader{pool: pool, logger: logger}
}

// ListForLease returns the ledger transactions of one Buildium lease,
// newest first, lines included.
func (r *Reader) ListForLease(ctx context.Context, buildiumLeaseID int64, limit int) ([]TransactionView, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, buildium_transaction_id, COALESCE(org_id::text, ''), COALESCE(buildium_lease_id, 0),
		       date, transaction_type, total_amount, COALESCE(memo, '')
		FROM transactions
		WHERE buildium_lease_id = $1
		ORDER BY date DESC, buildium_transaction_id DESC
		LIMIT $2`, buildiumLeaseID, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list lease transactions: %w", err)
	}
	defer rows.Close()

	var views []TransactionView
	for rows.Next() {
		var v TransactionView
		if err := rows.Scan(&v.ID, &v.BuildiumTransactionID, &v.OrgID, &v.BuildiumLeaseID,
			&v.Date, &v.TransactionType, &v.TotalAmount, &v.Memo); err != nil {
			return nil, fmt.Errorf("ledger: scan transaction: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate transactions: %w", err)
	}

	for i := range views {
		lines, err := r.linesFor(ctx, views[i].ID)
		if err != nil {
			return nil, err
		}
		views[i].Lines = lines
	}
	return views, nil
}

func (r *Reader) linesFor(ctx context.Context, transactionID string) ([]LineView, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT gl_account_id::text, amount, posting_type, COALESCE(memo, '')
		FROM transaction_lines
		WHERE transaction_id = $1
		ORDER BY posting_type, gl_account_id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list transaction lines: %w", err)
	}
	defer rows.Close()

	var lines []LineView
	for rows.Next() {
		var l LineView
		if err := rows.Scan(&l.GLAccountID, &l.Amount, &l.PostingType, &l.Memo); err != nil {
			return nil, fmt.Errorf("ledger: scan transaction line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate transaction lines: %w", err)
	}
	return lines, nil
}
