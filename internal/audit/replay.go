package audit

import (
	"context"
	"encoding/json"
	"fmt"
)

// Activity accumulates raw debit and credit totals for one account.
type Activity struct {
	Debits  int64
	Credits int64
}

// Snapshot is ledger state reconstructed purely from the audit trail,
// with no reliance on any other persisted aggregate.
type Snapshot struct {
	Accounts map[string]AccountRecord
	Balances map[string]Activity
	LastSeq  int64
}

// Rebuild replays the trail from the given checkpoint into a snapshot.
// Replaying from 0 also verifies the sequence is contiguous; a gap or
// duplicate is a broken invariant, not a recoverable condition.
func Rebuild(ctx context.Context, log Log, from int64) (*Snapshot, error) {
	snap := &Snapshot{
		Accounts: make(map[string]AccountRecord),
		Balances: make(map[string]Activity),
		LastSeq:  from,
	}
	err := log.Replay(ctx, from, func(e Entry) error {
		switch {
		case e.Seq == snap.LastSeq:
			return fmt.Errorf("%w: seq %d", ErrSequenceDuplicate, e.Seq)
		case e.Seq != snap.LastSeq+1:
			return fmt.Errorf("%w: jumped from %d to %d", ErrSequenceGap, snap.LastSeq, e.Seq)
		}
		snap.LastSeq = e.Seq
		switch e.Kind {
		case KindTransactionCommitted:
			var record TransactionRecord
			if err := json.Unmarshal(e.Payload, &record); err != nil {
				return fmt.Errorf("audit: decode transaction payload at seq %d: %w", e.Seq, err)
			}
			for _, p := range record.Postings {
				activity := snap.Balances[p.AccountID]
				if p.Direction == "DEBIT" {
					activity.Debits += p.Amount
				} else {
					activity.Credits += p.Amount
				}
				snap.Balances[p.AccountID] = activity
			}
		case KindAccountRegistered, KindAccountUpdated, KindAccountDeactivated:
			var record AccountRecord
			if err := json.Unmarshal(e.Payload, &record); err != nil {
				return fmt.Errorf("audit: decode account payload at seq %d: %w", e.Seq, err)
			}
			snap.Accounts[record.ID] = record
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// NormalBalance expresses a reconstructed balance on the account's normal
// side: debit-normal for asset and expense, credit-normal otherwise.
func (s *Snapshot) NormalBalance(accountID string) (int64, bool) {
	record, ok := s.Accounts[accountID]
	if !ok {
		return 0, false
	}
	activity := s.Balances[accountID]
	if record.AccountType == "asset" || record.AccountType == "expense" {
		return activity.Debits - activity.Credits, true
	}
	return activity.Credits - activity.Debits, true
}

// TrialBalance returns debit-normal and credit-normal totals across the
// snapshot. Equal totals are a structural invariant of a valid trail.
func (s *Snapshot) TrialBalance() (debitNormal, creditNormal int64) {
	for id := range s.Accounts {
		balance, _ := s.NormalBalance(id)
		record := s.Accounts[id]
		if record.AccountType == "asset" || record.AccountType == "expense" {
			debitNormal += balance
		} else {
			creditNormal += balance
		}
	}
	return debitNormal, creditNormal
}
