package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gracebooks/gracebooks/internal/audit"
)

// PGRepository persists ledger entities in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `id, code, name, account_type, category, COALESCE(description, ''), is_active, display_order, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Category, &a.Description, &a.IsActive, &a.DisplayOrder, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *PGRepository) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

func (r *PGRepository) GetAccountByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
}

func (r *PGRepository) ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE ($1 = '' OR account_type = $1)
  AND ($2 = '' OR category = $2)
  AND (NOT $3 OR is_active)
ORDER BY CASE account_type
  WHEN 'asset' THEN 0 WHEN 'liability' THEN 1 WHEN 'equity' THEN 2
  WHEN 'revenue' THEN 3 ELSE 4 END, display_order, code`,
		string(filter.Type), string(filter.Category), filter.ActiveOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

const transactionColumns = `id, entry_date, description, seq, committed_at, reversal_of`

func (r *PGRepository) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	txn, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id=$1`, id))
	if err != nil {
		return Transaction{}, err
	}
	postings, err := queryPostings(ctx, r.pool, id)
	if err != nil {
		return Transaction{}, err
	}
	txn.Postings = postings
	return txn, nil
}

func (r *PGRepository) ListTransactions(ctx context.Context) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txns []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range txns {
		postings, err := queryPostings(ctx, r.pool, txns[i].ID)
		if err != nil {
			return nil, err
		}
		txns[i].Postings = postings
	}
	return txns, nil
}

func (r *PGRepository) LatestSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := r.pool.QueryRow(ctx, `SELECT last_seq FROM ledger_sequence`).Scan(&seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return seq, nil
}

func (r *PGRepository) AccountActivity(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (Activity, error) {
	var activity Activity
	err := r.pool.QueryRow(ctx, `SELECT
  COALESCE(SUM(p.amount) FILTER (WHERE p.direction = 'DEBIT'), 0),
  COALESCE(SUM(p.amount) FILTER (WHERE p.direction = 'CREDIT'), 0)
FROM postings p
JOIN transactions t ON t.id = p.transaction_id
WHERE p.account_id = $1 AND ($2::date IS NULL OR t.entry_date <= $2)`, accountID, asOfArg(asOf)).
		Scan(&activity.Debits, &activity.Credits)
	if err != nil {
		return Activity{}, err
	}
	return activity, nil
}

func (r *PGRepository) TrialBalanceRows(ctx context.Context, asOf *time.Time) ([]TrialBalanceRow, error) {
	// The date cut must sit inside the postings join: as an outer-join
	// condition on transactions alone it would only nullify t's columns
	// while the posting row still feeds the sums.
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.code, a.name, a.account_type,
  COALESCE(SUM(p.amount) FILTER (WHERE p.direction = 'DEBIT'), 0),
  COALESCE(SUM(p.amount) FILTER (WHERE p.direction = 'CREDIT'), 0)
FROM accounts a
LEFT JOIN (postings p
  JOIN transactions t ON t.id = p.transaction_id AND ($1::date IS NULL OR t.entry_date <= $1)
) ON p.account_id = a.id
GROUP BY a.id, a.code, a.name, a.account_type
ORDER BY a.code`, asOfArg(asOf))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TrialBalanceRow
	for rows.Next() {
		var row TrialBalanceRow
		if err := rows.Scan(&row.AccountID, &row.Code, &row.Name, &row.Type, &row.Debits, &row.Credits); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// WithTx executes fn within a serializable transaction. Serialization
// conflicts surface as ErrTxConflict so the engine can retry.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	wrapper := &pgTx{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return mapConflict(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapConflict(err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (r *pgTx) InsertAccount(ctx context.Context, a Account) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO accounts (id, code, name, account_type, category, description, is_active, display_order, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8,$9,$10)`,
		a.ID, a.Code, a.Name, a.Type, a.Category, a.Description, a.IsActive, a.DisplayOrder, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCode
		}
		return err
	}
	return nil
}

func (r *pgTx) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 FOR UPDATE`, id))
}

func (r *pgTx) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

func (r *pgTx) UpdateAccount(ctx context.Context, a Account) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET name=$2, category=$3, description=NULLIF($4,''), is_active=$5, display_order=$6, updated_at=$7 WHERE id=$1`,
		a.ID, a.Name, a.Category, a.Description, a.IsActive, a.DisplayOrder, a.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *pgTx) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	txn, err := scanTransaction(r.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id=$1`, id))
	if err != nil {
		return Transaction{}, err
	}
	postings, err := queryPostings(ctx, r.tx, id)
	if err != nil {
		return Transaction{}, err
	}
	txn.Postings = postings
	return txn, nil
}

func (r *pgTx) HasReversal(ctx context.Context, originalID uuid.UUID) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM transactions WHERE reversal_of=$1)`, originalID).Scan(&exists)
	return exists, err
}

func (r *pgTx) NextSeq(ctx context.Context) (int64, error) {
	// Single-row counter advanced under the row lock: gap-free because a
	// rollback also rolls back the increment.
	var seq int64
	err := r.tx.QueryRow(ctx, `UPDATE ledger_sequence SET last_seq = last_seq + 1 WHERE id RETURNING last_seq`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (r *pgTx) InsertTransaction(ctx context.Context, txn Transaction) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO transactions (id, entry_date, description, seq, committed_at, reversal_of)
VALUES ($1,$2,$3,$4,$5,$6)`, txn.ID, txn.Date, txn.Description, txn.Seq, txn.CommittedAt, txn.ReversalOf)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "uq_transactions_reversal_of" {
			return ErrAlreadyReversed
		}
		return err
	}
	return nil
}

func (r *pgTx) InsertPostings(ctx context.Context, transactionID uuid.UUID, postings []Posting) error {
	for _, p := range postings {
		if _, err := r.tx.Exec(ctx, `INSERT INTO postings (transaction_id, account_id, amount, direction)
VALUES ($1,$2,$3,$4)`, transactionID, p.AccountID, p.Amount, p.Direction); err != nil {
			return err
		}
	}
	return nil
}

func (r *pgTx) AppendAudit(ctx context.Context, entry audit.Entry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO audit_entries (seq, kind, entity_id, payload, recorded_at)
VALUES ($1,$2,$3,$4,$5)`, entry.Seq, entry.Kind, entry.EntityID, entry.Payload, entry.RecordedAt)
	return err
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryPostings(ctx context.Context, q rowQuerier, transactionID uuid.UUID) ([]Posting, error) {
	rows, err := q.Query(ctx, `SELECT id, transaction_id, account_id, amount, direction
FROM postings WHERE transaction_id=$1 ORDER BY id`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var postings []Posting
	for rows.Next() {
		var p Posting
		if err := rows.Scan(&p.ID, &p.TransactionID, &p.AccountID, &p.Amount, &p.Direction); err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var txn Transaction
	err := row.Scan(&txn.ID, &txn.Date, &txn.Description, &txn.Seq, &txn.CommittedAt, &txn.ReversalOf)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	return txn, nil
}

func asOfArg(asOf *time.Time) any {
	if asOf == nil {
		return nil
	}
	return *asOf
}

func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return ErrTxConflict
		}
	}
	return err
}
