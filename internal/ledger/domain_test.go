package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountTypeNormalSide(t *testing.T) {
	cases := []struct {
		accountType AccountType
		debitNormal bool
	}{
		{AccountTypeAsset, true},
		{AccountTypeExpense, true},
		{AccountTypeLiability, false},
		{AccountTypeEquity, false},
		{AccountTypeRevenue, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.debitNormal, tc.accountType.DebitNormal(), "type %s", tc.accountType)
		if tc.debitNormal {
			assert.Equal(t, DirectionDebit, tc.accountType.NormalSide())
		} else {
			assert.Equal(t, DirectionCredit, tc.accountType.NormalSide())
		}
	}
	assert.False(t, AccountType("fund").Valid())
}

func TestCategoryTypeMapping(t *testing.T) {
	cases := map[Category]AccountType{
		CategoryCash:               AccountTypeAsset,
		CategoryBankDeposit:        AccountTypeAsset,
		CategoryFixedDeposit:       AccountTypeAsset,
		CategoryAccountsReceivable: AccountTypeAsset,

		CategoryAccountsPayable:  AccountTypeLiability,
		CategoryDepositsReceived: AccountTypeLiability,
		CategoryBorrowings:       AccountTypeLiability,

		CategoryCapital:         AccountTypeEquity,
		CategoryRetainedSurplus: AccountTypeEquity,

		CategoryTitheOffering:    AccountTypeRevenue,
		CategoryThankOffering:    AccountTypeRevenue,
		CategorySpecialOffering:  AccountTypeRevenue,
		CategoryBuildingOffering: AccountTypeRevenue,
		CategoryInterestIncome:   AccountTypeRevenue,
		CategoryOtherRevenue:     AccountTypeRevenue,

		CategoryPersonnelExpense:     AccountTypeExpense,
		CategoryUtilityExpense:       AccountTypeExpense,
		CategoryCommunicationExpense: AccountTypeExpense,
		CategorySuppliesExpense:      AccountTypeExpense,
		CategoryWorshipExpense:       AccountTypeExpense,
		CategoryEducationExpense:     AccountTypeExpense,
		CategoryMissionExpense:       AccountTypeExpense,
		CategoryMaintenanceExpense:   AccountTypeExpense,
		CategoryOtherExpense:         AccountTypeExpense,
	}
	require.Len(t, Categories(), len(cases), "every category must be covered")
	for category, want := range cases {
		got, ok := category.Type()
		require.True(t, ok, "category %s", category)
		assert.Equal(t, want, got, "category %s", category)
	}
}

func TestCategoryUnknownIsInvalid(t *testing.T) {
	_, ok := Category("petty_cash").Type()
	assert.False(t, ok)
	assert.False(t, Category("").Valid())
}

func TestDirectionOpposite(t *testing.T) {
	assert.Equal(t, DirectionCredit, DirectionDebit.Opposite())
	assert.Equal(t, DirectionDebit, DirectionCredit.Opposite())
	assert.False(t, Direction("debit").Valid())
}
