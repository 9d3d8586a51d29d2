package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/gracebooks/gracebooks/internal/audit"
	"github.com/gracebooks/gracebooks/internal/ledger"
)

// Halter is the slice of the posting engine the integrity check needs:
// the ability to stop accepting writes when the books are provably wrong.
type Halter interface {
	Halt(reason string)
}

// IntegrityChecker replays the audit trail from the beginning and checks
// it against the stored ledger. Any divergence halts posting rather than
// letting a corrupted ledger keep accumulating entries.
type IntegrityChecker struct {
	repo   ledger.Repository
	trail  audit.Log
	halter Halter
	logger *slog.Logger
}

// NewIntegrityChecker constructs an IntegrityChecker.
func NewIntegrityChecker(repo ledger.Repository, trail audit.Log, halter Halter, logger *slog.Logger) *IntegrityChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntegrityChecker{repo: repo, trail: trail, halter: halter, logger: logger}
}

// Run performs a full integrity pass: sequence contiguity, trail trial
// balance, and per-account agreement between the trail and the stored
// postings. The first violation halts the ledger and fails the job.
func (c *IntegrityChecker) Run(ctx context.Context) error {
	snap, err := audit.Rebuild(ctx, c.trail, 0)
	if err != nil {
		if errors.Is(err, audit.ErrSequenceGap) || errors.Is(err, audit.ErrSequenceDuplicate) {
			return c.fail(err.Error())
		}
		return err
	}

	latest, err := c.repo.LatestSeq(ctx)
	if err != nil {
		return err
	}
	if snap.LastSeq != latest {
		return c.fail(fmt.Sprintf("audit trail ends at seq %d but ledger is at seq %d", snap.LastSeq, latest))
	}

	if debit, credit := snap.TrialBalance(); debit != credit {
		return c.fail(fmt.Sprintf("replayed trial balance out of balance: debit-normal %d, credit-normal %d", debit, credit))
	}

	for id, replayed := range snap.Balances {
		accountID, err := uuid.Parse(id)
		if err != nil {
			return c.fail(fmt.Sprintf("audit trail references malformed account id %q", id))
		}
		stored, err := c.repo.AccountActivity(ctx, accountID, nil)
		if err != nil {
			return err
		}
		if stored.Debits != replayed.Debits || stored.Credits != replayed.Credits {
			return c.fail(fmt.Sprintf(
				"account %s diverges from audit trail: stored %d/%d, replayed %d/%d",
				id, stored.Debits, stored.Credits, replayed.Debits, replayed.Credits))
		}
	}

	c.logger.Info("ledger integrity check passed",
		slog.Int64("last_seq", snap.LastSeq),
		slog.Int("accounts", len(snap.Accounts)))
	return nil
}

func (c *IntegrityChecker) fail(reason string) error {
	c.logger.Error("ledger integrity violation", slog.String("reason", reason))
	if c.halter != nil {
		c.halter.Halt(reason)
	}
	return fmt.Errorf("jobs: ledger integrity: %s", reason)
}

// HandleTask adapts the checker to the Asynq handler signature.
func (c *IntegrityChecker) HandleTask(ctx context.Context, _ *asynq.Task) error {
	return c.Run(ctx)
}
