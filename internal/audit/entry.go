// Package audit defines the append-only ledger audit trail: one entry per
// committed transaction and per account mutation, keyed by a strictly
// increasing, gap-free sequence. The trail is the source of truth from
// which balances are reconstructed after a crash.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Kind classifies an audit entry.
type Kind string

const (
	KindTransactionCommitted Kind = "transaction.committed"
	KindAccountRegistered    Kind = "account.registered"
	KindAccountUpdated       Kind = "account.updated"
	KindAccountDeactivated   Kind = "account.deactivated"
)

// Entry is one immutable record in the audit trail.
type Entry struct {
	Seq        int64
	Kind       Kind
	EntityID   string
	Payload    json.RawMessage
	RecordedAt time.Time
}

// Log reads the committed audit trail. Appending happens inside the
// ledger's storage transaction so an entry and the state it describes are
// one atomic unit; readers only ever observe committed entries.
type Log interface {
	// Replay streams entries with Seq > from in ascending order. It is
	// finite and restartable from any checkpoint.
	Replay(ctx context.Context, from int64, fn func(Entry) error) error
	// LatestSeq returns the highest committed sequence number, 0 when empty.
	LatestSeq(ctx context.Context) (int64, error)
}

// PostingRecord is the posting shape stored in transaction payloads.
type PostingRecord struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
	Direction string `json:"direction"`
}

// TransactionRecord is the payload stored for KindTransactionCommitted.
type TransactionRecord struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Seq         int64           `json:"seq"`
	ReversalOf  string          `json:"reversal_of,omitempty"`
	Postings    []PostingRecord `json:"postings"`
}

// AccountRecord is the payload stored for account mutation entries.
type AccountRecord struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	AccountType  string `json:"account_type"`
	Category     string `json:"category"`
	IsActive     bool   `json:"is_active"`
	DisplayOrder int32  `json:"display_order"`
}

var (
	// ErrSequenceGap indicates a missing sequence number in the trail.
	ErrSequenceGap = errors.New("audit: sequence gap detected")
	// ErrSequenceDuplicate indicates two entries share a sequence number.
	ErrSequenceDuplicate = errors.New("audit: duplicate sequence number")
)
