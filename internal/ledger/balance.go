package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// TrialBalanceLine is one account's balance on its normal side.
type TrialBalanceLine struct {
	AccountID uuid.UUID
	Code      string
	Name      string
	Type      AccountType
	Balance   int64
}

// TrialBalance aggregates normal-side balances across the ledger. For any
// valid ledger state TotalDebitNormal equals TotalCreditNormal.
type TrialBalance struct {
	AsOf              *time.Time
	Seq               int64
	TotalDebitNormal  int64
	TotalCreditNormal int64
	Lines             []TrialBalanceLine
}

// BalanceReader derives balances from committed postings. Balances are
// never stored authoritatively; the cache is an optimization verified
// against the latest commit sequence before use.
type BalanceReader struct {
	repo   Repository
	cache  *BalanceCache
	logger *slog.Logger
}

// NewBalanceReader constructs the reader. cache may be nil.
func NewBalanceReader(repo Repository, cache *BalanceCache, logger *slog.Logger) *BalanceReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &BalanceReader{repo: repo, cache: cache, logger: logger}
}

// Balance sums committed postings for the account up to asOf (nil means
// now), expressed on the account's normal side.
func (b *BalanceReader) Balance(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (int64, error) {
	account, err := b.repo.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if asOf == nil && b.cache != nil {
		if balance, seq, ok := b.cacheGet(ctx, accountID); ok {
			latest, err := b.repo.LatestSeq(ctx)
			if err == nil && latest == seq {
				return balance, nil
			}
		}
	}
	// Reading the sequence before the sum means a commit racing this read
	// can only make the cached marker stale, forcing a recompute later.
	seq, err := b.repo.LatestSeq(ctx)
	if err != nil {
		return 0, err
	}
	activity, err := b.repo.AccountActivity(ctx, accountID, asOf)
	if err != nil {
		return 0, err
	}
	balance := normalSideBalance(account.Type, activity.Debits, activity.Credits)
	if asOf == nil && b.cache != nil {
		if err := b.cache.Put(ctx, accountID, balance, seq); err != nil {
			b.logger.Warn("balance cache put failed", slog.Any("error", err))
		}
	}
	return balance, nil
}

// TrialBalance computes normal-side totals across all accounts. Unequal
// totals indicate an engine defect and surface as ErrTrialBalanceMismatch,
// never as a validation error.
func (b *BalanceReader) TrialBalance(ctx context.Context, asOf *time.Time) (TrialBalance, error) {
	seq, err := b.repo.LatestSeq(ctx)
	if err != nil {
		return TrialBalance{}, err
	}
	rows, err := b.repo.TrialBalanceRows(ctx, asOf)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := TrialBalance{AsOf: asOf, Seq: seq}
	for _, row := range rows {
		balance := normalSideBalance(row.Type, row.Debits, row.Credits)
		tb.Lines = append(tb.Lines, TrialBalanceLine{
			AccountID: row.AccountID,
			Code:      row.Code,
			Name:      row.Name,
			Type:      row.Type,
			Balance:   balance,
		})
		if row.Type.DebitNormal() {
			tb.TotalDebitNormal += balance
		} else {
			tb.TotalCreditNormal += balance
		}
	}
	if tb.TotalDebitNormal != tb.TotalCreditNormal {
		return tb, fmt.Errorf("%w: debit-normal %d, credit-normal %d at seq %d",
			ErrTrialBalanceMismatch, tb.TotalDebitNormal, tb.TotalCreditNormal, tb.Seq)
	}
	return tb, nil
}

func (b *BalanceReader) cacheGet(ctx context.Context, accountID uuid.UUID) (int64, int64, bool) {
	balance, seq, ok, err := b.cache.Get(ctx, accountID)
	if err != nil {
		b.logger.Warn("balance cache get failed", slog.Any("error", err))
		return 0, 0, false
	}
	return balance, seq, ok
}

func normalSideBalance(t AccountType, debits, credits int64) int64 {
	if t.DebitNormal() {
		return debits - credits
	}
	return credits - debits
}
