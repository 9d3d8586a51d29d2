package audit

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGLog reads the audit trail from PostgreSQL. Appending happens inside
// the ledger repository's storage transaction, never through this type.
type PGLog struct {
	pool *pgxpool.Pool
}

// NewPGLog constructs PGLog.
func NewPGLog(pool *pgxpool.Pool) *PGLog {
	return &PGLog{pool: pool}
}

func (l *PGLog) Replay(ctx context.Context, from int64, fn func(Entry) error) error {
	rows, err := l.pool.Query(ctx, `SELECT seq, kind, entity_id, payload, recorded_at
FROM audit_entries WHERE seq > $1 ORDER BY seq`, from)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.Kind, &e.EntityID, &e.Payload, &e.RecordedAt); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (l *PGLog) LatestSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := l.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM audit_entries`).Scan(&seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return seq, nil
}
