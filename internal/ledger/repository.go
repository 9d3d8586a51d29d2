package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gracebooks/gracebooks/internal/audit"
)

// AccountFilter narrows registry listings.
type AccountFilter struct {
	Type       AccountType
	Category   Category
	ActiveOnly bool
}

// Activity holds raw debit and credit totals for one account.
type Activity struct {
	Debits  int64
	Credits int64
}

// TrialBalanceRow carries per-account activity plus the type needed to
// place the balance on its normal side.
type TrialBalanceRow struct {
	AccountID uuid.UUID
	Code      string
	Name      string
	Type      AccountType
	Debits    int64
	Credits   int64
}

// Repository exposes consistent reads plus transactional write access.
// Reads may run concurrently with commits; they observe only committed
// state.
type Repository interface {
	GetAccount(ctx context.Context, id uuid.UUID) (Account, error)
	GetAccountByCode(ctx context.Context, code string) (Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error)
	ListTransactions(ctx context.Context) ([]Transaction, error)
	// LatestSeq returns the highest committed ledger sequence, 0 when empty.
	LatestSeq(ctx context.Context) (int64, error)
	// AccountActivity sums committed postings for the account up to asOf
	// (transaction occurrence date, inclusive); nil means no bound.
	AccountActivity(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (Activity, error)
	TrialBalanceRows(ctx context.Context, asOf *time.Time) ([]TrialBalanceRow, error)
	// WithTx runs fn inside one serializable storage transaction. A nil
	// return commits; any error rolls back every write made through the
	// TxRepository. Serialization conflicts surface as ErrTxConflict.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes writes available inside a storage transaction.
type TxRepository interface {
	InsertAccount(ctx context.Context, account Account) error
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (Account, error)
	UpdateAccount(ctx context.Context, account Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (Account, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error)
	// HasReversal reports whether a committed transaction already
	// references the given transaction as its original.
	HasReversal(ctx context.Context, originalID uuid.UUID) (bool, error)
	// NextSeq advances and returns the single ledger sequence counter.
	// Assignment is gap-free: a rolled back transaction releases its
	// number because the counter row itself rolls back.
	NextSeq(ctx context.Context) (int64, error)
	InsertTransaction(ctx context.Context, txn Transaction) error
	InsertPostings(ctx context.Context, transactionID uuid.UUID, postings []Posting) error
	AppendAudit(ctx context.Context, entry audit.Entry) error
}
