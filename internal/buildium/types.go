package buildium

import "encoding/json"

// GLAccount is the remote chart-of-accounts entry.
type GLAccount struct {
	ID                      int64  `json:"Id"`
	AccountNumber           string `json:"AccountNumber"`
	Name                    string `json:"Name"`
	Description             string `json:"Description"`
	Type                    string `json:"Type"`
	SubType                 string `json:"SubType"`
	IsDefaultGLAccount      bool   `json:"IsDefaultGLAccount"`
	DefaultAccountName      string `json:"DefaultAccountName"`
	IsContraAccount         bool   `json:"IsContraAccount"`
	IsBankAccount           bool   `json:"IsBankAccount"`
	CashFlowClassification  string `json:"CashFlowClassification"`
	ExcludeFromCashBalances bool   `json:"ExcludeFromCashBalances"`
	IsActive                bool   `json:"IsActive"`
	ParentGLAccountID       *int64 `json:"ParentGLAccountId"`
	IsCreditCardAccount     bool   `json:"IsCreditCardAccount"`
}

// JournalLine is one side of a remote double-entry posting. PostingType is
// free-form upstream; resolution happens locally.
type JournalLine struct {
	GLAccount   *GLAccountRef `json:"GLAccount"`
	GLAccountID *int64        `json:"GLAccountId"`
	Amount      float64       `json:"Amount"`
	PostingType string        `json:"PostingType"`
	Memo        string        `json:"Memo"`
}

// GLAccountRef is the nested account reference journal lines carry.
type GLAccountRef struct {
	ID int64 `json:"Id"`
}

func (l JournalLine) AccountID() int64 {
	if l.GLAccount != nil && l.GLAccount.ID != 0 {
		return l.GLAccount.ID
	}
	if l.GLAccountID != nil {
		return *l.GLAccountID
	}
	return 0
}

// Journal groups the lines of one remote transaction.
type Journal struct {
	Memo  string        `json:"Memo"`
	Lines []JournalLine `json:"Lines"`
}

// LeaseTransaction is a financial transaction on a lease ledger.
type LeaseTransaction struct {
	ID              int64   `json:"Id"`
	Date            string  `json:"Date"`
	TransactionType string  `json:"TransactionType"`
	TotalAmount     float64 `json:"TotalAmount"`
	LeaseID         int64   `json:"LeaseId"`
	PayeeTenantID   *int64  `json:"PayeeTenantId"`
	CheckNumber     string  `json:"CheckNumber"`
	Journal         Journal `json:"Journal"`
}

// Property is the remote rental property shape, address flattened to the
// fields the sync needs.
type Property struct {
	ID                     int64    `json:"Id"`
	Name                   string   `json:"Name"`
	RentalType             string   `json:"RentalType"`
	RentalSubType          string   `json:"RentalSubType"`
	OperatingBankAccountID *int64   `json:"OperatingBankAccountId"`
	IsActive               bool     `json:"IsActive"`
	Address                *Address `json:"Address"`
}

type Address struct {
	AddressLine1 string `json:"AddressLine1"`
	AddressLine2 string `json:"AddressLine2"`
	City         string `json:"City"`
	State        string `json:"State"`
	PostalCode   string `json:"PostalCode"`
	Country      string `json:"Country"`
}

// Owner is a rental owner record.
type Owner struct {
	ID          int64   `json:"Id"`
	FirstName   string  `json:"FirstName"`
	LastName    string  `json:"LastName"`
	CompanyName string  `json:"CompanyName"`
	Email       string  `json:"Email"`
	PropertyIDs []int64 `json:"PropertyIds"`
	IsActive    bool    `json:"IsActive"`
}

// Lease is the remote lease record.
type Lease struct {
	ID            int64  `json:"Id"`
	PropertyID    int64  `json:"PropertyId"`
	UnitID        int64  `json:"UnitId"`
	LeaseStatus   string `json:"LeaseStatus"`
	LeaseFromDate string `json:"LeaseFromDate"`
	LeaseToDate   string `json:"LeaseToDate"`
}

// BankAccount is the remote bank account, including its backing GL
// account reference.
type BankAccount struct {
	ID              int64         `json:"Id"`
	Name            string        `json:"Name"`
	Description     string        `json:"Description"`
	BankAccountType string        `json:"BankAccountType"`
	AccountNumber   string        `json:"AccountNumber"`
	RoutingNumber   string        `json:"RoutingNumber"`
	GLAccount       *GLAccountRef `json:"GLAccount"`
	Balance         float64       `json:"Balance"`
	IsActive        bool          `json:"IsActive"`
}

// PaymentTransaction is one payment rolled into a bank deposit.
type PaymentTransaction struct {
	ID               int64         `json:"Id"`
	Amount           float64       `json:"Amount"`
	AccountingEntity *EntityRef    `json:"AccountingEntity"`
	GLAccount        *GLAccountRef `json:"GLAccount"`
}

type EntityRef struct {
	ID   int64  `json:"Id"`
	Type string `json:"AccountingEntityType"`
}

// DepositDetails carries the payment splits and the undeposited-funds
// account of a deposit transaction.
type DepositDetails struct {
	BankGLAccountID     *int64               `json:"BankGLAccountId"`
	PaymentTransactions []PaymentTransaction `json:"PaymentTransactions"`
}

// BankTransaction is a transaction on a bank account ledger. Deposits and
// transfers hydrate different branches, so both are optional.
type BankTransaction struct {
	ID                  int64                `json:"Id"`
	EntryDate           string               `json:"EntryDate"`
	TransactionType     string               `json:"TransactionType"`
	TotalAmount         float64              `json:"TotalAmount"`
	CheckNumber         string               `json:"CheckNumber"`
	Memo                string               `json:"Memo"`
	Journal             *Journal             `json:"Journal"`
	DepositDetails      *DepositDetails      `json:"DepositDetails"`
	PaymentTransactions []PaymentTransaction `json:"PaymentTransactions"`
	Raw                 json.RawMessage      `json:"-"`
}

// LeasePaymentRequest is the outbound payment submission body.
type LeasePaymentRequest struct {
	Date          string        `json:"Date"`
	Amount        float64       `json:"Amount"`
	PaymentMethod string        `json:"PaymentMethod"`
	Memo          string        `json:"Memo,omitempty"`
	Lines         []PaymentLine `json:"Lines,omitempty"`
}

type PaymentLine struct {
	GLAccountID int64   `json:"GLAccountId"`
	Amount      float64 `json:"Amount"`
}

// LeasePayment is the remote response to a payment submission.
type LeasePayment struct {
	ID          int64   `json:"Id"`
	Date        string  `json:"Date"`
	TotalAmount float64 `json:"TotalAmount"`
}
