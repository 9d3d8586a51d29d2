package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AccountType enumerates the five bookkeeping elements.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// Valid reports whether the account type is one of the five elements.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// DebitNormal reports whether the type increases on the debit side.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// NormalSide returns the direction that increases balances of this type.
func (t AccountType) NormalSide() Direction {
	if t.DebitNormal() {
		return DirectionDebit
	}
	return DirectionCredit
}

// Category enumerates chart-of-accounts categories for church bookkeeping.
type Category string

const (
	CategoryCash               Category = "cash"
	CategoryBankDeposit        Category = "bank_deposit"
	CategoryFixedDeposit       Category = "fixed_deposit"
	CategoryAccountsReceivable Category = "accounts_receivable"

	CategoryAccountsPayable  Category = "accounts_payable"
	CategoryDepositsReceived Category = "deposits_received"
	CategoryBorrowings       Category = "borrowings"

	CategoryCapital         Category = "capital"
	CategoryRetainedSurplus Category = "retained_surplus"

	CategoryTitheOffering    Category = "tithe_offering"
	CategoryThankOffering    Category = "thank_offering"
	CategorySpecialOffering  Category = "special_offering"
	CategoryBuildingOffering Category = "building_offering"
	CategoryInterestIncome   Category = "interest_income"
	CategoryOtherRevenue     Category = "other_revenue"

	CategoryPersonnelExpense     Category = "personnel_expense"
	CategoryUtilityExpense       Category = "utility_expense"
	CategoryCommunicationExpense Category = "communication_expense"
	CategorySuppliesExpense      Category = "supplies_expense"
	CategoryWorshipExpense       Category = "worship_expense"
	CategoryEducationExpense     Category = "education_expense"
	CategoryMissionExpense       Category = "mission_expense"
	CategoryMaintenanceExpense   Category = "maintenance_expense"
	CategoryOtherExpense         Category = "other_expense"
)

// categoryTypes is the closed mapping from category to its owning type.
// Every category appears exactly once; nothing outside this table is legal.
var categoryTypes = map[Category]AccountType{
	CategoryCash:               AccountTypeAsset,
	CategoryBankDeposit:        AccountTypeAsset,
	CategoryFixedDeposit:       AccountTypeAsset,
	CategoryAccountsReceivable: AccountTypeAsset,

	CategoryAccountsPayable:  AccountTypeLiability,
	CategoryDepositsReceived: AccountTypeLiability,
	CategoryBorrowings:       AccountTypeLiability,

	CategoryCapital:         AccountTypeEquity,
	CategoryRetainedSurplus: AccountTypeEquity,

	CategoryTitheOffering:    AccountTypeRevenue,
	CategoryThankOffering:    AccountTypeRevenue,
	CategorySpecialOffering:  AccountTypeRevenue,
	CategoryBuildingOffering: AccountTypeRevenue,
	CategoryInterestIncome:   AccountTypeRevenue,
	CategoryOtherRevenue:     AccountTypeRevenue,

	CategoryPersonnelExpense:     AccountTypeExpense,
	CategoryUtilityExpense:       AccountTypeExpense,
	CategoryCommunicationExpense: AccountTypeExpense,
	CategorySuppliesExpense:      AccountTypeExpense,
	CategoryWorshipExpense:       AccountTypeExpense,
	CategoryEducationExpense:     AccountTypeExpense,
	CategoryMissionExpense:       AccountTypeExpense,
	CategoryMaintenanceExpense:   AccountTypeExpense,
	CategoryOtherExpense:         AccountTypeExpense,
}

// Type returns the account type owning this category.
func (c Category) Type() (AccountType, bool) {
	t, ok := categoryTypes[c]
	return t, ok
}

// Valid reports whether the category is a member of the closed set.
func (c Category) Valid() bool {
	_, ok := categoryTypes[c]
	return ok
}

// Categories returns every legal category, ordered by type then name.
func Categories() []Category {
	out := make([]Category, 0, len(categoryTypes))
	for c := range categoryTypes {
		out = append(out, c)
	}
	return out
}

// Direction marks a posting as a debit or credit.
type Direction string

const (
	DirectionDebit  Direction = "DEBIT"
	DirectionCredit Direction = "CREDIT"
)

// Valid reports whether the direction is debit or credit.
func (d Direction) Valid() bool {
	return d == DirectionDebit || d == DirectionCredit
}

// Opposite flips debit to credit and back.
func (d Direction) Opposite() Direction {
	if d == DirectionDebit {
		return DirectionCredit
	}
	return DirectionDebit
}

// Account models a chart of accounts node. Code and Type are immutable
// after registration; removal is deactivation only.
type Account struct {
	ID           uuid.UUID
	Code         string
	Name         string
	Type         AccountType
	Category     Category
	Description  string
	IsActive     bool
	DisplayOrder int32
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Posting is one debit or credit line within a committed transaction.
// Amount is in integer minor currency units and always positive.
type Posting struct {
	ID            int64
	TransactionID uuid.UUID
	AccountID     uuid.UUID
	Amount        int64
	Direction     Direction
}

// Transaction is an immutable committed unit of postings. Seq is assigned
// at commit from the ledger sequence and never reused.
type Transaction struct {
	ID          uuid.UUID
	Date        time.Time
	Description string
	Seq         int64
	CommittedAt time.Time
	ReversalOf  *uuid.UUID
	Postings    []Posting
}

// DraftPosting is one line of a not-yet-committed transaction.
type DraftPosting struct {
	AccountID uuid.UUID
	Amount    int64
	Direction Direction
}

// Draft is a mutable transaction candidate. It carries no identity or
// sequence until the engine commits it.
type Draft struct {
	Date        time.Time
	Description string
	Postings    []DraftPosting
}

var (
	// ErrDuplicateCode indicates the account code is already registered.
	ErrDuplicateCode = errors.New("ledger: account code already registered")
	// ErrInvalidCategoryForType indicates the category does not belong to the account type.
	ErrInvalidCategoryForType = errors.New("ledger: category not legal for account type")
	// ErrAccountNotFound indicates an unknown account id on a registry operation.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrUnknownAccount indicates a posting references an unregistered account.
	ErrUnknownAccount = errors.New("ledger: posting references unknown account")
	// ErrInactiveAccount indicates a posting references a deactivated account.
	ErrInactiveAccount = errors.New("ledger: posting references inactive account")
	// ErrInvalidAmount indicates a posting amount is not strictly positive.
	ErrInvalidAmount = errors.New("ledger: posting amount must be a positive integer")
	// ErrInvalidDirection indicates a posting direction outside DEBIT/CREDIT.
	ErrInvalidDirection = errors.New("ledger: posting direction must be debit or credit")
	// ErrNoPostings indicates an empty draft.
	ErrNoPostings = errors.New("ledger: transaction requires at least one posting")
	// ErrUnbalancedTransaction indicates debits != credits.
	ErrUnbalancedTransaction = errors.New("ledger: debits and credits must balance")
	// ErrTransactionNotFound indicates an unknown transaction id.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	// ErrAlreadyReversed indicates a reversal already references the transaction.
	ErrAlreadyReversed = errors.New("ledger: transaction already reversed")
	// ErrLedgerHalted indicates commits are suspended pending reconciliation.
	ErrLedgerHalted = errors.New("ledger: commits halted pending reconciliation")
	// ErrTrialBalanceMismatch indicates a broken conservation invariant.
	ErrTrialBalanceMismatch = errors.New("ledger: trial balance out of balance")
	// ErrTxConflict indicates a serialization conflict; the identical
	// operation is safe to retry.
	ErrTxConflict = errors.New("ledger: transaction serialization conflict")
)
