package rails

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/anchor-deposits-processor/pkg/anchor"
)

func Test_ParseRailsType(t *testing.T) {
	railsType, err := ParseRailsType("AUTO_FUNDED")
	require.NoError(t, err)
	assert.Equal(t, RailsTypeAutoFunded, railsType)

	railsType, err = ParseRailsType("none")
	require.NoError(t, err)
	assert.Equal(t, RailsTypeNone, railsType)

	_, err = ParseRailsType("BANK")
	require.EqualError(t, err, `invalid rails type "BANK"`)
}

func Test_GetRails(t *testing.T) {
	railsImpl, err := GetRails(RailsTypeAutoFunded)
	require.NoError(t, err)
	assert.IsType(t, &AutoFundedRails{}, railsImpl)

	railsImpl, err = GetRails(RailsTypeNone)
	require.NoError(t, err)
	assert.IsType(t, &NoneRails{}, railsImpl)

	_, err = GetRails(RailsType("BANK"))
	require.EqualError(t, err, `unknown rails type: "BANK"`)
}

func Test_AutoFundedRails_PollPendingDeposits(t *testing.T) {
	railsImpl := &AutoFundedRails{}

	candidates := []anchor.Deposit{
		{ID: "tx-1", AmountIn: decimal.NewNullDecimal(decimal.RequireFromString("100"))},
		{ID: "tx-2"}, // no amount yet, stays pending
		{ID: "tx-3", AmountIn: decimal.NewNullDecimal(decimal.RequireFromString("5"))},
	}

	funded, err := railsImpl.PollPendingDeposits(context.Background(), candidates)
	require.NoError(t, err)
	require.Len(t, funded, 2)
	assert.Equal(t, "tx-1", funded[0].ID)
	assert.Equal(t, "tx-3", funded[1].ID)
}

func Test_NoneRails_PollPendingDeposits(t *testing.T) {
	railsImpl := &NoneRails{}

	funded, err := railsImpl.PollPendingDeposits(context.Background(), []anchor.Deposit{{ID: "tx-1"}})
	require.NoError(t, err)
	assert.Empty(t, funded)
}
