package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gracebooks/gracebooks/internal/audit"
)

// RegisterInput groups fields required to register an account.
type RegisterInput struct {
	Code         string
	Name         string
	Type         AccountType
	Category     Category
	Description  string
	DisplayOrder int32
}

// UpdateInput carries optional registry mutations. Code and Type have no
// field here: both are immutable after registration, so an illegal update
// is unrepresentable at this layer and rejected at the transport layer.
type UpdateInput struct {
	Name         *string
	Category     *Category
	Description  *string
	DisplayOrder *int32
	IsActive     *bool
}

// Registry owns chart-of-accounts identity and structural validity.
type Registry struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
	newID  func() uuid.UUID
}

// NewRegistry constructs the registry service.
func NewRegistry(repo Repository, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{repo: repo, logger: logger, now: time.Now, newID: uuid.New}
}

// WithNow overrides the clock for testing.
func (r *Registry) WithNow(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// Register validates and stores a new active account. The category must
// belong to the closed subset legal for the requested type.
func (r *Registry) Register(ctx context.Context, in RegisterInput) (Account, error) {
	owner, ok := in.Category.Type()
	if !ok || owner != in.Type {
		return Account{}, ErrInvalidCategoryForType
	}
	now := r.now()
	account := Account{
		ID:           r.newID(),
		Code:         in.Code,
		Name:         in.Name,
		Type:         in.Type,
		Category:     in.Category,
		Description:  in.Description,
		IsActive:     true,
		DisplayOrder: in.DisplayOrder,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertAccount(ctx, account); err != nil {
			return err
		}
		return appendAccountEntry(ctx, tx, audit.KindAccountRegistered, account, now)
	})
	if err != nil {
		return Account{}, err
	}
	r.logger.Info("account registered",
		slog.String("account_id", account.ID.String()),
		slog.String("code", account.Code),
		slog.String("type", string(account.Type)),
		slog.String("category", string(account.Category)))
	return account, nil
}

// Update mutates name, category, description, display order, or active
// flag. A category change re-validates against the immutable type.
func (r *Registry) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (Account, error) {
	var updated Account
	now := r.now()
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccountForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if in.Category != nil {
			owner, ok := in.Category.Type()
			if !ok || owner != account.Type {
				return ErrInvalidCategoryForType
			}
			account.Category = *in.Category
		}
		if in.Name != nil {
			account.Name = *in.Name
		}
		if in.Description != nil {
			account.Description = *in.Description
		}
		if in.DisplayOrder != nil {
			account.DisplayOrder = *in.DisplayOrder
		}
		if in.IsActive != nil {
			account.IsActive = *in.IsActive
		}
		account.UpdatedAt = now
		if err := tx.UpdateAccount(ctx, account); err != nil {
			return err
		}
		updated = account
		return appendAccountEntry(ctx, tx, audit.KindAccountUpdated, account, now)
	})
	if err != nil {
		return Account{}, err
	}
	return updated, nil
}

// Deactivate sets the active flag to false. Historical postings stay
// queryable; the engine rejects new postings to the account.
func (r *Registry) Deactivate(ctx context.Context, id uuid.UUID) error {
	now := r.now()
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccountForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !account.IsActive {
			return nil
		}
		account.IsActive = false
		account.UpdatedAt = now
		if err := tx.UpdateAccount(ctx, account); err != nil {
			return err
		}
		return appendAccountEntry(ctx, tx, audit.KindAccountDeactivated, account, now)
	})
	if err != nil {
		return err
	}
	r.logger.Info("account deactivated", slog.String("account_id", id.String()))
	return nil
}

// Get returns an account by id.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	return r.repo.GetAccount(ctx, id)
}

// GetByCode returns an account by its unique code.
func (r *Registry) GetByCode(ctx context.Context, code string) (Account, error) {
	return r.repo.GetAccountByCode(ctx, code)
}

// List returns accounts matching the filter, ordered by type, display
// order, then code.
func (r *Registry) List(ctx context.Context, filter AccountFilter) ([]Account, error) {
	return r.repo.ListAccounts(ctx, filter)
}

func appendAccountEntry(ctx context.Context, tx TxRepository, kind audit.Kind, account Account, at time.Time) error {
	seq, err := tx.NextSeq(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(audit.AccountRecord{
		ID:           account.ID.String(),
		Code:         account.Code,
		Name:         account.Name,
		AccountType:  string(account.Type),
		Category:     string(account.Category),
		IsActive:     account.IsActive,
		DisplayOrder: account.DisplayOrder,
	})
	if err != nil {
		return err
	}
	return tx.AppendAudit(ctx, audit.Entry{
		Seq:        seq,
		Kind:       kind,
		EntityID:   account.ID.String(),
		Payload:    payload,
		RecordedAt: at,
	})
}
