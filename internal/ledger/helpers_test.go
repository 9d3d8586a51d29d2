package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return d
}

// testLedger bundles the services most tests need, backed by the
// in-memory repository.
type testLedger struct {
	repo     *MemoryRepository
	registry *Registry
	engine   *Engine
	reader   *BalanceReader
}

func newTestLedger(t *testing.T) *testLedger {
	t.Helper()
	repo := NewMemoryRepository()
	logger := testLogger()
	return &testLedger{
		repo:     repo,
		registry: NewRegistry(repo, logger),
		engine:   NewEngine(repo, nil, logger),
		reader:   NewBalanceReader(repo, nil, logger),
	}
}

func (l *testLedger) mustRegister(t *testing.T, code, name string, accountType AccountType, category Category) Account {
	t.Helper()
	account, err := l.registry.Register(context.Background(), RegisterInput{
		Code:     code,
		Name:     name,
		Type:     accountType,
		Category: category,
	})
	require.NoError(t, err)
	return account
}

func (l *testLedger) mustPost(t *testing.T, date string, description string, postings ...DraftPosting) Transaction {
	t.Helper()
	txn, err := l.engine.Post(context.Background(), Draft{
		Date:        mustDate(t, date),
		Description: description,
		Postings:    postings,
	})
	require.NoError(t, err)
	return txn
}

func debit(account Account, amount int64) DraftPosting {
	return DraftPosting{AccountID: account.ID, Amount: amount, Direction: DirectionDebit}
}

func credit(account Account, amount int64) DraftPosting {
	return DraftPosting{AccountID: account.ID, Amount: amount, Direction: DirectionCredit}
}
