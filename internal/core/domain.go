package core

import (
	"errors"
	"strings"
	"time"
)

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCredit     AccountType = "credit"
	AccountCash       AccountType = "cash"
	AccountInvestment AccountType = "investment"
	AccountLoan       AccountType = "loan"
	AccountOther      AccountType = "other"
)

const (
	TypeExpense  TransactionType = "expense"
	TypeIncome   TransactionType = "income"
	TypeTransfer TransactionType = "transfer"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

type (
	AccountType     string
	TransactionType string
	Frequency       string

	// User is the application-level user record. Credentials live
	// alongside it; sessions are issued as JWTs by the auth package.
	User struct {
		ID           string
		Email        string
		DisplayName  string
		Currency     string // ISO-4217 code
		PasswordHash string
		CreatedAt    time.Time
	}

	// Account is a user-owned bucket of money. Balance carries the sign
	// stored by the upstream writer; aggregation applies the credit
	// convention on top (see TotalBalance).
	Account struct {
		ID         string
		UserID     string
		Name       string
		Type       AccountType
		Balance    Money
		Currency   string
		IsArchived bool
		CreatedAt  time.Time
	}

	// Category may reference a parent category of the same user.
	Category struct {
		ID        string
		UserID    string
		Name      string
		ParentID  string // empty = top-level
		Color     string // hex
		IsSystem  bool
		CreatedAt time.Time
	}

	// Transaction records one spend, income or transfer. Amount is signed:
	// positive = inflow, negative = outflow by convention, but Type is
	// authoritative when the two disagree.
	Transaction struct {
		ID                  string
		UserID              string
		AccountID           string
		CategoryID          string // empty = uncategorized
		Amount              Money
		Currency            string
		Date                int64 // epoch milliseconds
		Payee               string
		Note                string
		Tags                []string
		Type                TransactionType
		TransferToAccountID string // set when Type == transfer
		AttachmentID        string
		CreatedAt           time.Time
	}

	// Budget is the planned amount for one category in one (year, month)
	// pair. Month is zero-based (0 = January) to match the stored records.
	Budget struct {
		ID         string
		UserID     string
		CategoryID string
		Year       int
		Month      int // 0-11
		Amount     Money
	}

	// RecurringRule drives the recurring worker: "rent every 1st of
	// month", "subscription every 30 days", and so on.
	RecurringRule struct {
		ID          string
		UserID      string
		AccountID   string
		CategoryID  string
		Amount      Money
		Currency    string
		Payee       string
		Note        string
		StartDate   int64 // epoch ms
		EndDate     int64 // epoch ms, 0 = open-ended
		Frequency   Frequency
		Interval    int // every N periods
		NextDueDate int64
	}

	// Attachment holds file metadata only; the bytes live in external
	// object storage referenced by URL.
	Attachment struct {
		ID           string
		UserID       string
		Filename     string
		ByteSize     int64
		URL          string
		UploadStatus string // pending | done
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidTxType      = errors.New("invalid transaction type")
	ErrInvalidCurrency    = errors.New("invalid currency code")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrEmptyName          = errors.New("empty name")
	ErrMissingAccount     = errors.New("missing account id")
	ErrMissingTransferTo  = errors.New("transfer requires destination account")
)

// ValidAccountType reports whether t is one of the supported account types.
func ValidAccountType(t AccountType) bool {
	switch t {
	case AccountChecking, AccountSavings, AccountCredit, AccountCash,
		AccountInvestment, AccountLoan, AccountOther:
		return true
	}
	return false
}

// ValidTransactionType reports whether t is expense, income or transfer.
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TypeExpense, TypeIncome, TypeTransfer:
		return true
	}
	return false
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if !ValidAccountType(a.Type) {
		return ErrInvalidAccountType
	}
	if !validCurrency(a.Currency) {
		return ErrInvalidCurrency
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.AccountID == "" {
		return ErrMissingAccount
	}
	if t.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if t.Date <= 0 {
		return ErrInvalidDate
	}
	if !ValidTransactionType(t.Type) {
		return ErrInvalidTxType
	}
	if t.Type == TypeTransfer && t.TransferToAccountID == "" {
		return ErrMissingTransferTo
	}
	if !validCurrency(t.Currency) {
		return ErrInvalidCurrency
	}
	if len(t.Payee) > 200 {
		return errors.New("payee too long (max 200 characters)")
	}
	return nil
}

func (b Budget) Validate() error {
	if b.CategoryID == "" {
		return errors.New("missing category id")
	}
	if b.Month < 0 || b.Month > 11 {
		return ErrInvalidMonth
	}
	if b.Year < 1970 || b.Year > 9999 {
		return errors.New("year out of range")
	}
	if b.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (r RecurringRule) Validate() error {
	if r.AccountID == "" {
		return ErrMissingAccount
	}
	if r.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if r.StartDate <= 0 {
		return ErrInvalidDate
	}
	if r.EndDate != 0 && r.EndDate < r.StartDate {
		return errors.New("end date before start date")
	}
	switch r.Frequency {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return ErrInvalidFrequency
	}
	if r.Interval < 1 {
		return errors.New("interval must be at least 1")
	}
	if !validCurrency(r.Currency) {
		return ErrInvalidCurrency
	}
	return nil
}
