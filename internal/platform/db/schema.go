package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is the ledger DDL, applied idempotently at startup. The accounts
// shape (unique code, constrained type and category, soft-delete flag,
// display ordering, type indexes) is the persisted contract the registry
// exposes; transactions, postings, audit_entries, and the single-row
// ledger_sequence counter back the engine and the audit trail.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id UUID PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    account_type TEXT NOT NULL CHECK (account_type IN ('asset','liability','equity','revenue','expense')),
    category TEXT NOT NULL CHECK (category IN (
        'cash','bank_deposit','fixed_deposit','accounts_receivable',
        'accounts_payable','deposits_received','borrowings',
        'capital','retained_surplus',
        'tithe_offering','thank_offering','special_offering','building_offering','interest_income','other_revenue',
        'personnel_expense','utility_expense','communication_expense','supplies_expense','worship_expense',
        'education_expense','mission_expense','maintenance_expense','other_expense'
    )),
    description TEXT,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    display_order INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_accounts_account_type ON accounts (account_type);
CREATE INDEX IF NOT EXISTS idx_accounts_type_display_order ON accounts (account_type, display_order);

CREATE TABLE IF NOT EXISTS transactions (
    id UUID PRIMARY KEY,
    entry_date DATE NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    seq BIGINT NOT NULL UNIQUE,
    committed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    reversal_of UUID REFERENCES transactions (id),
    CONSTRAINT uq_transactions_reversal_of UNIQUE (reversal_of)
);

CREATE TABLE IF NOT EXISTS postings (
    id BIGSERIAL PRIMARY KEY,
    transaction_id UUID NOT NULL REFERENCES transactions (id),
    account_id UUID NOT NULL REFERENCES accounts (id),
    amount BIGINT NOT NULL CHECK (amount > 0),
    direction TEXT NOT NULL CHECK (direction IN ('DEBIT','CREDIT'))
);

CREATE INDEX IF NOT EXISTS idx_postings_account ON postings (account_id);
CREATE INDEX IF NOT EXISTS idx_postings_transaction ON postings (transaction_id);

CREATE TABLE IF NOT EXISTS audit_entries (
    seq BIGINT PRIMARY KEY,
    kind TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    payload JSONB NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ledger_sequence (
    id BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
    last_seq BIGINT NOT NULL DEFAULT 0
);

INSERT INTO ledger_sequence (id, last_seq) VALUES (TRUE, 0) ON CONFLICT (id) DO NOTHING;
`

// Migrate applies the embedded schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("platform/db: migrate: %w", err)
	}
	return nil
}
