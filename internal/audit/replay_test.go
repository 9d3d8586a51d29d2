package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceLog is a Log over an in-memory slice of entries.
type sliceLog struct {
	entries []Entry
}

func (l sliceLog) Replay(ctx context.Context, from int64, fn func(Entry) error) error {
	for _, e := range l.entries {
		if e.Seq <= from {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (l sliceLog) LatestSeq(ctx context.Context) (int64, error) {
	if len(l.entries) == 0 {
		return 0, nil
	}
	return l.entries[len(l.entries)-1].Seq, nil
}

func accountEntry(t *testing.T, seq int64, record AccountRecord) Entry {
	t.Helper()
	payload, err := json.Marshal(record)
	require.NoError(t, err)
	return Entry{
		Seq:        seq,
		Kind:       KindAccountRegistered,
		EntityID:   record.ID,
		Payload:    payload,
		RecordedAt: time.Now(),
	}
}

func transactionEntry(t *testing.T, seq int64, record TransactionRecord) Entry {
	t.Helper()
	record.Seq = seq
	payload, err := json.Marshal(record)
	require.NoError(t, err)
	return Entry{
		Seq:        seq,
		Kind:       KindTransactionCommitted,
		EntityID:   record.ID,
		Payload:    payload,
		RecordedAt: time.Now(),
	}
}

func TestRebuildReproducesBalances(t *testing.T) {
	cash := AccountRecord{ID: "acc-cash", Code: "1101", AccountType: "asset", Category: "cash", IsActive: true}
	tithe := AccountRecord{ID: "acc-tithe", Code: "4101", AccountType: "revenue", Category: "tithe_offering", IsActive: true}

	log := sliceLog{entries: []Entry{
		accountEntry(t, 1, cash),
		accountEntry(t, 2, tithe),
		transactionEntry(t, 3, TransactionRecord{
			ID: "txn-1",
			Postings: []PostingRecord{
				{AccountID: "acc-cash", Amount: 50_000, Direction: "DEBIT"},
				{AccountID: "acc-tithe", Amount: 50_000, Direction: "CREDIT"},
			},
		}),
		transactionEntry(t, 4, TransactionRecord{
			ID: "txn-2", ReversalOf: "txn-1",
			Postings: []PostingRecord{
				{AccountID: "acc-cash", Amount: 10_000, Direction: "CREDIT"},
				{AccountID: "acc-tithe", Amount: 10_000, Direction: "DEBIT"},
			},
		}),
	}}

	snap, err := Rebuild(context.Background(), log, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), snap.LastSeq)
	assert.Len(t, snap.Accounts, 2)

	cashBalance, ok := snap.NormalBalance("acc-cash")
	require.True(t, ok)
	assert.Equal(t, int64(40_000), cashBalance)

	titheBalance, ok := snap.NormalBalance("acc-tithe")
	require.True(t, ok)
	assert.Equal(t, int64(40_000), titheBalance)

	debitNormal, creditNormal := snap.TrialBalance()
	assert.Equal(t, debitNormal, creditNormal)
}

func TestRebuildFromCheckpoint(t *testing.T) {
	cash := AccountRecord{ID: "acc-cash", Code: "1101", AccountType: "asset", Category: "cash", IsActive: true}
	log := sliceLog{entries: []Entry{
		accountEntry(t, 1, cash),
		transactionEntry(t, 2, TransactionRecord{
			ID: "txn-1",
			Postings: []PostingRecord{
				{AccountID: "acc-cash", Amount: 100, Direction: "DEBIT"},
				{AccountID: "acc-other", Amount: 100, Direction: "CREDIT"},
			},
		}),
	}}

	snap, err := Rebuild(context.Background(), log, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.LastSeq)
	assert.Empty(t, snap.Accounts, "entries at or before the checkpoint are skipped")
	assert.Equal(t, Activity{Debits: 100}, snap.Balances["acc-cash"])
}

func TestRebuildDetectsSequenceGap(t *testing.T) {
	cash := AccountRecord{ID: "acc-cash", Code: "1101", AccountType: "asset", Category: "cash", IsActive: true}
	log := sliceLog{entries: []Entry{
		accountEntry(t, 1, cash),
		accountEntry(t, 3, AccountRecord{ID: "acc-x", Code: "1102", AccountType: "asset", Category: "cash"}),
	}}

	_, err := Rebuild(context.Background(), log, 0)
	assert.ErrorIs(t, err, ErrSequenceGap)
}

func TestRebuildDetectsDuplicateSequence(t *testing.T) {
	cash := AccountRecord{ID: "acc-cash", Code: "1101", AccountType: "asset", Category: "cash", IsActive: true}
	log := sliceLog{entries: []Entry{
		accountEntry(t, 1, cash),
		accountEntry(t, 1, cash),
	}}

	_, err := Rebuild(context.Background(), log, 0)
	assert.ErrorIs(t, err, ErrSequenceDuplicate)
}

func TestRebuildLatestAccountRecordWins(t *testing.T) {
	registered := AccountRecord{ID: "acc-cash", Code: "1101", Name: "Cash", AccountType: "asset", Category: "cash", IsActive: true}
	deactivated := registered
	deactivated.IsActive = false

	log := sliceLog{entries: []Entry{
		accountEntry(t, 1, registered),
		{
			Seq:        2,
			Kind:       KindAccountDeactivated,
			EntityID:   deactivated.ID,
			Payload:    mustMarshal(t, deactivated),
			RecordedAt: time.Now(),
		},
	}}

	snap, err := Rebuild(context.Background(), log, 0)
	require.NoError(t, err)
	assert.False(t, snap.Accounts["acc-cash"].IsActive)
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	return payload
}
