package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gracebooks/gracebooks/internal/audit"
	"github.com/gracebooks/gracebooks/internal/ledger"
)

func seedLedger(t *testing.T) (*ledger.MemoryRepository, *ledger.Engine) {
	t.Helper()
	repo := ledger.NewMemoryRepository()
	registry := ledger.NewRegistry(repo, nil)
	engine := ledger.NewEngine(repo, nil, nil)
	ctx := context.Background()

	cash, err := registry.Register(ctx, ledger.RegisterInput{
		Code: "1101", Name: "Cash", Type: ledger.AccountTypeAsset, Category: ledger.CategoryCash,
	})
	require.NoError(t, err)
	tithe, err := registry.Register(ctx, ledger.RegisterInput{
		Code: "4101", Name: "Tithes", Type: ledger.AccountTypeRevenue, Category: ledger.CategoryTitheOffering,
	})
	require.NoError(t, err)

	date, err := time.Parse("2006-01-02", "2026-03-01")
	require.NoError(t, err)
	_, err = engine.Post(ctx, ledger.Draft{
		Date: date,
		Postings: []ledger.DraftPosting{
			{AccountID: cash.ID, Amount: 50_000, Direction: ledger.DirectionDebit},
			{AccountID: tithe.ID, Amount: 50_000, Direction: ledger.DirectionCredit},
		},
	})
	require.NoError(t, err)
	return repo, engine
}

func TestIntegrityCheckPassesOnHealthyLedger(t *testing.T) {
	repo, engine := seedLedger(t)
	checker := NewIntegrityChecker(repo, repo, engine, nil)

	require.NoError(t, checker.Run(context.Background()))
	assert.False(t, engine.Halted())
}

// gapLog drops one entry from the underlying trail, simulating loss.
type gapLog struct {
	audit.Log
	drop int64
}

func (l gapLog) Replay(ctx context.Context, from int64, fn func(audit.Entry) error) error {
	return l.Log.Replay(ctx, from, func(e audit.Entry) error {
		if e.Seq == l.drop {
			return nil
		}
		return fn(e)
	})
}

func TestIntegrityCheckHaltsOnSequenceGap(t *testing.T) {
	repo, engine := seedLedger(t)
	checker := NewIntegrityChecker(repo, gapLog{Log: repo, drop: 2}, engine, nil)

	err := checker.Run(context.Background())
	require.Error(t, err)
	assert.True(t, engine.Halted())
}

// truncatedLog hides the tail of the trail, so the replayed sequence ends
// before the ledger's latest commit.
type truncatedLog struct {
	audit.Log
	max int64
}

func (l truncatedLog) Replay(ctx context.Context, from int64, fn func(audit.Entry) error) error {
	return l.Log.Replay(ctx, from, func(e audit.Entry) error {
		if e.Seq > l.max {
			return nil
		}
		return fn(e)
	})
}

func TestIntegrityCheckHaltsOnMissingTail(t *testing.T) {
	repo, engine := seedLedger(t)
	checker := NewIntegrityChecker(repo, truncatedLog{Log: repo, max: 2}, engine, nil)

	err := checker.Run(context.Background())
	require.Error(t, err)
	assert.True(t, engine.Halted())
}
