package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	return NewRegistry(repo, testLogger()), repo
}

func TestRegisterAccount(t *testing.T) {
	registry, repo := newTestRegistry(t)

	account, err := registry.Register(context.Background(), RegisterInput{
		Code:     "1101",
		Name:     "Main Checking",
		Type:     AccountTypeAsset,
		Category: CategoryBankDeposit,
	})
	require.NoError(t, err)
	assert.True(t, account.IsActive)
	assert.NotEqual(t, account.ID.String(), "00000000-0000-0000-0000-000000000000")

	got, err := registry.GetByCode(context.Background(), "1101")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)

	// Registration consumed one audit sequence number.
	seq, err := repo.LatestSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
}

func TestRegisterRejectsDuplicateCode(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := registry.Register(ctx, RegisterInput{
		Code: "1101", Name: "Checking", Type: AccountTypeAsset, Category: CategoryBankDeposit,
	})
	require.NoError(t, err)

	_, err = registry.Register(ctx, RegisterInput{
		Code: "1101", Name: "Another", Type: AccountTypeAsset, Category: CategoryCash,
	})
	assert.ErrorIs(t, err, ErrDuplicateCode)
}

func TestRegisterRejectsCategoryOutsideType(t *testing.T) {
	registry, repo := newTestRegistry(t)

	_, err := registry.Register(context.Background(), RegisterInput{
		Code: "4101", Name: "Tithes", Type: AccountTypeAsset, Category: CategoryTitheOffering,
	})
	assert.ErrorIs(t, err, ErrInvalidCategoryForType)

	_, err = registry.Register(context.Background(), RegisterInput{
		Code: "4102", Name: "Unknown", Type: AccountTypeRevenue, Category: Category("donation"),
	})
	assert.ErrorIs(t, err, ErrInvalidCategoryForType)

	seq, err := repo.LatestSeq(context.Background())
	require.NoError(t, err)
	assert.Zero(t, seq, "rejected registrations must not consume sequence numbers")
}

func TestUpdateRevalidatesCategoryAgainstType(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	account, err := registry.Register(ctx, RegisterInput{
		Code: "5101", Name: "Salaries", Type: AccountTypeExpense, Category: CategoryPersonnelExpense,
	})
	require.NoError(t, err)

	wrong := CategoryTitheOffering
	_, err = registry.Update(ctx, account.ID, UpdateInput{Category: &wrong})
	assert.ErrorIs(t, err, ErrInvalidCategoryForType)

	right := CategoryUtilityExpense
	name := "Utilities"
	updated, err := registry.Update(ctx, account.ID, UpdateInput{Category: &right, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, CategoryUtilityExpense, updated.Category)
	assert.Equal(t, "Utilities", updated.Name)
	assert.Equal(t, "5101", updated.Code, "code is immutable")
	assert.Equal(t, AccountTypeExpense, updated.Type, "type is immutable")
}

func TestDeactivateIsIdempotent(t *testing.T) {
	registry, repo := newTestRegistry(t)
	ctx := context.Background()

	account, err := registry.Register(ctx, RegisterInput{
		Code: "1102", Name: "Petty Cash", Type: AccountTypeAsset, Category: CategoryCash,
	})
	require.NoError(t, err)

	require.NoError(t, registry.Deactivate(ctx, account.ID))
	got, err := registry.Get(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	seqAfterFirst, err := repo.LatestSeq(ctx)
	require.NoError(t, err)

	require.NoError(t, registry.Deactivate(ctx, account.ID))
	seqAfterSecond, err := repo.LatestSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, seqAfterFirst, seqAfterSecond, "repeated deactivation records nothing")
}

func TestListAccountsOrderAndFilter(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	inputs := []RegisterInput{
		{Code: "5101", Name: "Salaries", Type: AccountTypeExpense, Category: CategoryPersonnelExpense},
		{Code: "1102", Name: "Savings", Type: AccountTypeAsset, Category: CategoryBankDeposit, DisplayOrder: 2},
		{Code: "1101", Name: "Checking", Type: AccountTypeAsset, Category: CategoryBankDeposit, DisplayOrder: 1},
		{Code: "4101", Name: "Tithes", Type: AccountTypeRevenue, Category: CategoryTitheOffering},
	}
	for _, in := range inputs {
		_, err := registry.Register(ctx, in)
		require.NoError(t, err)
	}

	all, err := registry.List(ctx, AccountFilter{})
	require.NoError(t, err)
	codes := make([]string, 0, len(all))
	for _, a := range all {
		codes = append(codes, a.Code)
	}
	assert.Equal(t, []string{"1101", "1102", "4101", "5101"}, codes)

	assets, err := registry.List(ctx, AccountFilter{Type: AccountTypeAsset})
	require.NoError(t, err)
	require.Len(t, assets, 2)

	account, err := registry.GetByCode(ctx, "5101")
	require.NoError(t, err)
	require.NoError(t, registry.Deactivate(ctx, account.ID))

	active, err := registry.List(ctx, AccountFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 3)
}

func TestGetUnknownAccount(t *testing.T) {
	registry, _ := newTestRegistry(t)
	_, err := registry.GetByCode(context.Background(), "9999")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
