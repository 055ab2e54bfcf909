package ledger

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the query surface shared by pgxpool.Pool and pgx.Tx, so the
// same store code runs inside and outside transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner additionally opens transactions; satisfied by pgxpool.Pool
// and pgxmock.
type TxBeginner interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostingType is the side of a double-entry line.
type PostingType string

const (
	Debit  PostingType = "Debit"
	Credit PostingType = "Credit"
)

// ResolvePostingType normalizes the remote posting-type spellings. Empty
// or unrecognized values fall back to the amount's sign: negative posts as
// a debit.
func ResolvePostingType(raw string, amount float64) PostingType {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case normalized == "dr" || strings.Contains(normalized, "debit"):
		return Debit
	case normalized == "cr" || strings.Contains(normalized, "credit"):
		return Credit
	case amount < 0:
		return Debit
	default:
		return Credit
	}
}

// balanceEpsilon absorbs float rounding when comparing debit and credit
// totals.
const balanceEpsilon = 0.0001

// IntegrityError is a double-entry violation. It is permanent: retrying
// the same payload can never rebalance the books.
type IntegrityError struct {
	Debits  float64
	Credits float64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger: double-entry integrity violation: debits (%g) != credits (%g)", e.Debits, e.Credits)
}

func (e *IntegrityError) Permanent() bool { return true }

// CheckBalanced validates the double-entry invariant. Single-sided
// postings (either total zero) are allowed; the check fires only when
// both sides carry amounts that disagree.
func CheckBalanced(debits, credits float64) error {
	if debits > 0 && credits > 0 && math.Abs(debits-credits) > balanceEpsilon {
		return &IntegrityError{Debits: debits, Credits: credits}
	}
	return nil
}

// TransactionHeader is the local accounting transaction row.
type TransactionHeader struct {
	ID                    string
	BuildiumTransactionID int64
	OrgID                 string
	LeaseID               string
	BuildiumLeaseID       int64
	PropertyID            string
	UnitID                string
	Date                  time.Time
	TransactionType       string
	TotalAmount           float64
	CheckNumber           string
	Memo                  string
	PayeeTenantID         int64
	BankGLAccountID       string
}

// TransactionLine is one side of a posting under a header. Amounts are
// stored as absolute values; direction lives in PostingType.
type TransactionLine struct {
	GLAccountID        string
	Amount             float64
	PostingType        PostingType
	Memo               string
	BuildiumPropertyID int64
	BuildiumUnitID     int64
	BuildiumLeaseID    int64
	LeaseID            string
	PropertyID         string
	UnitID             string
}
