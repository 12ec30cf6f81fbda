package custody

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/anchor-deposits-processor/pkg/anchor"
)

func Test_NewCachingService(t *testing.T) {
	wrapped := &anchor.MockCustody{}

	_, err := NewCachingService(nil, time.Minute, 10)
	require.EqualError(t, err, "wrapped custody cannot be nil")

	_, err = NewCachingService(wrapped, time.Minute, 0)
	require.EqualError(t, err, "maxEntries must be greater than zero")

	_, err = NewCachingService(wrapped, 0, 10)
	require.EqualError(t, err, "ttl must be greater than zero")

	service, err := NewCachingService(wrapped, time.Minute, 10)
	require.NoError(t, err)
	require.NotNil(t, service)
}

func Test_CachingService_GetDistributionAccount(t *testing.T) {
	ctx := context.Background()
	const distributionAccount = "GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ"
	asset := usdcAsset()

	t.Run("🎉 caches the resolved account", func(t *testing.T) {
		wrapped := &anchor.MockCustody{}
		wrapped.
			On("GetDistributionAccount", ctx, asset).
			Return(distributionAccount, nil).
			Once()
		service, err := NewCachingService(wrapped, time.Minute, 10)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			account, getErr := service.GetDistributionAccount(ctx, asset)
			require.NoError(t, getErr)
			assert.Equal(t, distributionAccount, account)
		}
		wrapped.AssertExpectations(t)
	})

	t.Run("caches per asset", func(t *testing.T) {
		otherAsset := anchor.Asset{Code: "EURC", Issuer: "GCBIRB7Q5T53H4L6P5QSI3O6LPD5MBWGM5GHE7A5NY4XT5OT4VCOEZFX"}
		otherAccount := "GCBIRB7Q5T53H4L6P5QSI3O6LPD5MBWGM5GHE7A5NY4XT5OT4VCOEZFX"

		wrapped := &anchor.MockCustody{}
		wrapped.
			On("GetDistributionAccount", ctx, asset).
			Return(distributionAccount, nil).
			Once()
		wrapped.
			On("GetDistributionAccount", ctx, otherAsset).
			Return(otherAccount, nil).
			Once()
		service, err := NewCachingService(wrapped, time.Minute, 10)
		require.NoError(t, err)

		account, err := service.GetDistributionAccount(ctx, asset)
		require.NoError(t, err)
		assert.Equal(t, distributionAccount, account)

		account, err = service.GetDistributionAccount(ctx, otherAsset)
		require.NoError(t, err)
		assert.Equal(t, otherAccount, account)

		account, err = service.GetDistributionAccount(ctx, asset)
		require.NoError(t, err)
		assert.Equal(t, distributionAccount, account)
		wrapped.AssertExpectations(t)
	})

	t.Run("does not cache errors", func(t *testing.T) {
		wrapped := &anchor.MockCustody{}
		wrapped.
			On("GetDistributionAccount", ctx, asset).
			Return("", anchor.ErrDistributionAccountUnavailable).
			Once()
		wrapped.
			On("GetDistributionAccount", ctx, asset).
			Return(distributionAccount, nil).
			Once()
		service, err := NewCachingService(wrapped, time.Minute, 10)
		require.NoError(t, err)

		_, err = service.GetDistributionAccount(ctx, asset)
		require.ErrorIs(t, err, anchor.ErrDistributionAccountUnavailable)

		account, err := service.GetDistributionAccount(ctx, asset)
		require.NoError(t, err)
		assert.Equal(t, distributionAccount, account)
		wrapped.AssertExpectations(t)
	})
}

func Test_CachingService_delegatesCapabilities(t *testing.T) {
	wrapped := &anchor.MockCustody{}
	wrapped.On("AccountCreationSupported").Return(true).Once()
	wrapped.On("ClaimableBalancesSupported").Return(false).Once()

	service, err := NewCachingService(wrapped, time.Minute, 10)
	require.NoError(t, err)

	assert.True(t, service.AccountCreationSupported())
	assert.False(t, service.ClaimableBalancesSupported())
	wrapped.AssertExpectations(t)
}
