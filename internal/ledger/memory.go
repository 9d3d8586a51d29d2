package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gracebooks/gracebooks/internal/audit"
)

// MemoryRepository is a mutex-guarded Repository used by tests and local
// development. WithTx stages every write and applies it only on success,
// so a failed commit leaves no partial state, matching the transactional
// guarantee of the Postgres repository.
type MemoryRepository struct {
	mu            sync.RWMutex
	accounts      map[uuid.UUID]Account
	codes         map[string]uuid.UUID
	transactions  map[uuid.UUID]Transaction
	txnOrder      []uuid.UUID
	entries       []audit.Entry
	lastSeq       int64
	nextPostingID int64
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:     make(map[uuid.UUID]Account),
		codes:        make(map[string]uuid.UUID),
		transactions: make(map[uuid.UUID]Transaction),
	}
}

func (r *MemoryRepository) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (r *MemoryRepository) GetAccountByCode(ctx context.Context, code string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.codes[code]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return r.accounts[id], nil
}

func typeRank(t AccountType) int {
	switch t {
	case AccountTypeAsset:
		return 0
	case AccountTypeLiability:
		return 1
	case AccountTypeEquity:
		return 2
	case AccountTypeRevenue:
		return 3
	case AccountTypeExpense:
		return 4
	}
	return 5
}

func (r *MemoryRepository) ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Account
	for _, account := range r.accounts {
		if filter.Type != "" && account.Type != filter.Type {
			continue
		}
		if filter.Category != "" && account.Category != filter.Category {
			continue
		}
		if filter.ActiveOnly && !account.IsActive {
			continue
		}
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return typeRank(out[i].Type) < typeRank(out[j].Type)
		}
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (r *MemoryRepository) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getTransactionLocked(id)
}

func (r *MemoryRepository) getTransactionLocked(id uuid.UUID) (Transaction, error) {
	txn, ok := r.transactions[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return cloneTransaction(txn), nil
}

func (r *MemoryRepository) ListTransactions(ctx context.Context) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Transaction, 0, len(r.txnOrder))
	for _, id := range r.txnOrder {
		out = append(out, cloneTransaction(r.transactions[id]))
	}
	return out, nil
}

func (r *MemoryRepository) LatestSeq(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSeq, nil
}

func (r *MemoryRepository) AccountActivity(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var activity Activity
	for _, id := range r.txnOrder {
		txn := r.transactions[id]
		if asOf != nil && txn.Date.After(*asOf) {
			continue
		}
		for _, p := range txn.Postings {
			if p.AccountID != accountID {
				continue
			}
			if p.Direction == DirectionDebit {
				activity.Debits += p.Amount
			} else {
				activity.Credits += p.Amount
			}
		}
	}
	return activity, nil
}

func (r *MemoryRepository) TrialBalanceRows(ctx context.Context, asOf *time.Time) ([]TrialBalanceRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows := make(map[uuid.UUID]*TrialBalanceRow, len(r.accounts))
	for id, account := range r.accounts {
		rows[id] = &TrialBalanceRow{
			AccountID: id,
			Code:      account.Code,
			Name:      account.Name,
			Type:      account.Type,
		}
	}
	for _, id := range r.txnOrder {
		txn := r.transactions[id]
		if asOf != nil && txn.Date.After(*asOf) {
			continue
		}
		for _, p := range txn.Postings {
			row, ok := rows[p.AccountID]
			if !ok {
				continue
			}
			if p.Direction == DirectionDebit {
				row.Debits += p.Amount
			} else {
				row.Credits += p.Amount
			}
		}
	}
	out := make([]TrialBalanceRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// WithTx serializes commits under the repository lock. fn runs against a
// staging view; staged writes apply only when fn returns nil.
func (r *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{
		repo:     r,
		accounts: make(map[uuid.UUID]Account),
		codes:    make(map[string]uuid.UUID),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.apply()
	return nil
}

// memoryTx overlays staged writes on top of the committed state.
type memoryTx struct {
	repo          *MemoryRepository
	accounts      map[uuid.UUID]Account
	codes         map[string]uuid.UUID
	transactions  []Transaction
	entries       []audit.Entry
	seq           int64
	seqAdvanced   bool
	postingIDNext int64
}

func (tx *memoryTx) lookupAccount(id uuid.UUID) (Account, bool) {
	if account, ok := tx.accounts[id]; ok {
		return account, true
	}
	account, ok := tx.repo.accounts[id]
	return account, ok
}

func (tx *memoryTx) InsertAccount(ctx context.Context, account Account) error {
	if _, ok := tx.codes[account.Code]; ok {
		return ErrDuplicateCode
	}
	if _, ok := tx.repo.codes[account.Code]; ok {
		return ErrDuplicateCode
	}
	tx.accounts[account.ID] = account
	tx.codes[account.Code] = account.ID
	return nil
}

func (tx *memoryTx) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (Account, error) {
	account, ok := tx.lookupAccount(id)
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (tx *memoryTx) UpdateAccount(ctx context.Context, account Account) error {
	if _, ok := tx.lookupAccount(account.ID); !ok {
		return ErrAccountNotFound
	}
	tx.accounts[account.ID] = account
	return nil
}

func (tx *memoryTx) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	return tx.GetAccountForUpdate(ctx, id)
}

func (tx *memoryTx) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	for _, txn := range tx.transactions {
		if txn.ID == id {
			return cloneTransaction(txn), nil
		}
	}
	return tx.repo.getTransactionLocked(id)
}

func (tx *memoryTx) HasReversal(ctx context.Context, originalID uuid.UUID) (bool, error) {
	for _, txn := range tx.transactions {
		if txn.ReversalOf != nil && *txn.ReversalOf == originalID {
			return true, nil
		}
	}
	for _, txn := range tx.repo.transactions {
		if txn.ReversalOf != nil && *txn.ReversalOf == originalID {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) NextSeq(ctx context.Context) (int64, error) {
	if !tx.seqAdvanced {
		tx.seq = tx.repo.lastSeq
		tx.seqAdvanced = true
	}
	tx.seq++
	return tx.seq, nil
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, txn Transaction) error {
	tx.transactions = append(tx.transactions, cloneTransaction(txn))
	return nil
}

func (tx *memoryTx) InsertPostings(ctx context.Context, transactionID uuid.UUID, postings []Posting) error {
	for i := range tx.transactions {
		if tx.transactions[i].ID != transactionID {
			continue
		}
		for _, p := range postings {
			tx.postingIDNext++
			p.ID = tx.repo.nextPostingID + tx.postingIDNext
			p.TransactionID = transactionID
			tx.transactions[i].Postings = append(tx.transactions[i].Postings, p)
		}
		return nil
	}
	return ErrTransactionNotFound
}

func (tx *memoryTx) AppendAudit(ctx context.Context, entry audit.Entry) error {
	tx.entries = append(tx.entries, entry)
	return nil
}

func (tx *memoryTx) apply() {
	for id, account := range tx.accounts {
		tx.repo.accounts[id] = account
	}
	for code, id := range tx.codes {
		tx.repo.codes[code] = id
	}
	for _, txn := range tx.transactions {
		tx.repo.transactions[txn.ID] = txn
		tx.repo.txnOrder = append(tx.repo.txnOrder, txn.ID)
	}
	tx.repo.entries = append(tx.repo.entries, tx.entries...)
	if tx.seqAdvanced {
		tx.repo.lastSeq = tx.seq
	}
	tx.repo.nextPostingID += tx.postingIDNext
}

// Replay implements audit.Log over the staged-and-committed trail.
func (r *MemoryRepository) Replay(ctx context.Context, from int64, fn func(audit.Entry) error) error {
	r.mu.RLock()
	entries := make([]audit.Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Seq > from {
			entries = append(entries, e)
		}
	}
	r.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	for _, e := range entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func cloneTransaction(txn Transaction) Transaction {
	out := txn
	if txn.ReversalOf != nil {
		ref := *txn.ReversalOf
		out.ReversalOf = &ref
	}
	out.Postings = append([]Posting(nil), txn.Postings...)
	return out
}
