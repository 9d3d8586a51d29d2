package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gracebooks/gracebooks/internal/audit"
)

// commitRetries bounds automatic retries of serialization conflicts.
const commitRetries = 3

// Engine owns the commit path: it validates drafts, assigns the ledger
// sequence, and writes transaction, postings, and audit entry as one
// atomic unit. One commit is in flight at a time per ledger instance.
type Engine struct {
	repo   Repository
	cache  *BalanceCache
	logger *slog.Logger
	now    func() time.Time
	newID  func() uuid.UUID
	halted atomic.Bool
}

// NewEngine constructs the engine. cache may be nil.
func NewEngine(repo Repository, cache *BalanceCache, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{repo: repo, cache: cache, logger: logger, now: time.Now, newID: uuid.New}
}

// WithNow overrides the clock for testing.
func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Halt suspends further commits until Resume. Reads stay available.
func (e *Engine) Halt(reason string) {
	if e.halted.CompareAndSwap(false, true) {
		e.logger.Error("ledger halted", slog.String("reason", reason))
	}
}

// Resume re-enables commits after operator reconciliation.
func (e *Engine) Resume() {
	if e.halted.CompareAndSwap(true, false) {
		e.logger.Info("ledger resumed")
	}
}

// Halted reports whether commits are suspended.
func (e *Engine) Halted() bool {
	return e.halted.Load()
}

// Post validates the draft and commits it as an immutable transaction.
// Validation failures return synchronously with no side effects; a
// serialization conflict retries the identical draft a bounded number of
// times before surfacing ErrTxConflict.
func (e *Engine) Post(ctx context.Context, draft Draft) (Transaction, error) {
	if e.Halted() {
		return Transaction{}, ErrLedgerHalted
	}
	if len(draft.Postings) == 0 {
		return Transaction{}, ErrNoPostings
	}
	var committed Transaction
	err := e.withRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		txn, err := e.commitDraft(ctx, tx, draft, nil)
		if err != nil {
			return err
		}
		committed = txn
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	e.invalidateBalances(ctx)
	e.logger.Info("transaction committed",
		slog.String("transaction_id", committed.ID.String()),
		slog.Int64("seq", committed.Seq),
		slog.Int("postings", len(committed.Postings)))
	return committed, nil
}

// Reverse synthesizes and commits a transaction offsetting the original.
// At most one reversal per original; the original record is untouched.
func (e *Engine) Reverse(ctx context.Context, transactionID uuid.UUID) (Transaction, error) {
	if e.Halted() {
		return Transaction{}, ErrLedgerHalted
	}
	var committed Transaction
	err := e.withRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		reversed, err := tx.HasReversal(ctx, transactionID)
		if err != nil {
			return err
		}
		if reversed {
			return ErrAlreadyReversed
		}
		draft := Draft{
			Date:        original.Date,
			Description: reversalDescription(original),
			Postings:    flipPostings(original.Postings),
		}
		txn, err := e.commitDraft(ctx, tx, draft, &original.ID)
		if err != nil {
			return err
		}
		committed = txn
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	e.invalidateBalances(ctx)
	e.logger.Info("transaction reversed",
		slog.String("original_id", transactionID.String()),
		slog.String("reversal_id", committed.ID.String()),
		slog.Int64("seq", committed.Seq))
	return committed, nil
}

// commitDraft validates the draft against committed state and
// writes transaction, postings, and audit entry through the open storage
// transaction. Accounts must be active at commit time, so the checks run
// inside the transaction even for reversals.
func (e *Engine) commitDraft(ctx context.Context, tx TxRepository, draft Draft, reversalOf *uuid.UUID) (Transaction, error) {
	if len(draft.Postings) == 0 {
		return Transaction{}, ErrNoPostings
	}
	var debits, credits int64
	for _, p := range draft.Postings {
		if !p.Direction.Valid() {
			return Transaction{}, ErrInvalidDirection
		}
		account, err := tx.GetAccount(ctx, p.AccountID)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return Transaction{}, fmt.Errorf("%w: %s", ErrUnknownAccount, p.AccountID)
			}
			return Transaction{}, err
		}
		if !account.IsActive {
			return Transaction{}, fmt.Errorf("%w: %s", ErrInactiveAccount, account.Code)
		}
		if p.Direction == DirectionDebit {
			debits += p.Amount
		} else {
			credits += p.Amount
		}
	}
	if debits != credits {
		return Transaction{}, ErrUnbalancedTransaction
	}
	for _, p := range draft.Postings {
		if p.Amount <= 0 {
			return Transaction{}, ErrInvalidAmount
		}
	}

	seq, err := tx.NextSeq(ctx)
	if err != nil {
		return Transaction{}, err
	}
	now := e.now()
	txn := Transaction{
		ID:          e.newID(),
		Date:        draft.Date,
		Description: draft.Description,
		Seq:         seq,
		CommittedAt: now,
		ReversalOf:  reversalOf,
	}
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return Transaction{}, err
	}
	postings := make([]Posting, 0, len(draft.Postings))
	for _, p := range draft.Postings {
		postings = append(postings, Posting{
			TransactionID: txn.ID,
			AccountID:     p.AccountID,
			Amount:        p.Amount,
			Direction:     p.Direction,
		})
	}
	if err := tx.InsertPostings(ctx, txn.ID, postings); err != nil {
		return Transaction{}, err
	}
	txn.Postings = postings
	entry, err := transactionEntry(txn, now)
	if err != nil {
		return Transaction{}, err
	}
	if err := tx.AppendAudit(ctx, entry); err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

// GetTransaction returns a committed transaction with its postings.
func (e *Engine) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	return e.repo.GetTransaction(ctx, id)
}

// ListTransactions returns all committed transactions in sequence order.
func (e *Engine) ListTransactions(ctx context.Context) ([]Transaction, error) {
	return e.repo.ListTransactions(ctx)
}

func (e *Engine) withRetry(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	var err error
	for attempt := 0; attempt < commitRetries; attempt++ {
		err = e.repo.WithTx(ctx, fn)
		if !errors.Is(err, ErrTxConflict) {
			return err
		}
		e.logger.Warn("commit conflict, retrying", slog.Int("attempt", attempt+1))
	}
	return err
}

func (e *Engine) invalidateBalances(ctx context.Context) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Bump(ctx); err != nil {
		e.logger.Warn("balance cache bump failed", slog.Any("error", err))
	}
}

func flipPostings(postings []Posting) []DraftPosting {
	out := make([]DraftPosting, 0, len(postings))
	for _, p := range postings {
		out = append(out, DraftPosting{
			AccountID: p.AccountID,
			Amount:    p.Amount,
			Direction: p.Direction.Opposite(),
		})
	}
	return out
}

func reversalDescription(original Transaction) string {
	if original.Description == "" {
		return fmt.Sprintf("Reversal of %d", original.Seq)
	}
	return fmt.Sprintf("Reversal of %d: %s", original.Seq, original.Description)
}

func transactionEntry(txn Transaction, at time.Time) (audit.Entry, error) {
	record := audit.TransactionRecord{
		ID:          txn.ID.String(),
		Date:        txn.Date,
		Description: txn.Description,
		Seq:         txn.Seq,
	}
	if txn.ReversalOf != nil {
		record.ReversalOf = txn.ReversalOf.String()
	}
	for _, p := range txn.Postings {
		record.Postings = append(record.Postings, audit.PostingRecord{
			AccountID: p.AccountID.String(),
			Amount:    p.Amount,
			Direction: string(p.Direction),
		})
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return audit.Entry{}, err
	}
	return audit.Entry{
		Seq:        txn.Seq,
		Kind:       audit.KindTransactionCommitted,
		EntityID:   txn.ID.String(),
		Payload:    payload,
		RecordedAt: at,
	}, nil
}
