package horizonx

import (
	"encoding/hex"
	"testing"

	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ClaimableBalanceIDFromResult(t *testing.T) {
	t.Run("returns an error for an invalid result XDR", func(t *testing.T) {
		_, err := ClaimableBalanceIDFromResult("not-xdr")
		require.ErrorContains(t, err, "unmarshalling transaction result")
	})

	t.Run("returns an error when no claimable balance was created", func(t *testing.T) {
		txResult := xdr.TransactionResult{
			Result: xdr.TransactionResultResult{
				Code: xdr.TransactionResultCodeTxSuccess,
				Results: &[]xdr.OperationResult{
					{
						Code: xdr.OperationResultCodeOpInner,
						Tr: &xdr.OperationResultTr{
							Type: xdr.OperationTypePayment,
							PaymentResult: &xdr.PaymentResult{
								Code: xdr.PaymentResultCodePaymentSuccess,
							},
						},
					},
				},
			},
		}
		resultXDR, err := xdr.MarshalBase64(txResult)
		require.NoError(t, err)

		_, err = ClaimableBalanceIDFromResult(resultXDR)
		require.ErrorContains(t, err, "no create claimable balance operation in transaction result")
	})

	t.Run("🎉 extracts the balance ID", func(t *testing.T) {
		balanceIDHash := xdr.Hash{0xab, 0xcd, 0xef}
		balanceID := xdr.ClaimableBalanceId{
			Type: xdr.ClaimableBalanceIdTypeClaimableBalanceIdTypeV0,
			V0:   &balanceIDHash,
		}

		txResult := xdr.TransactionResult{
			Result: xdr.TransactionResultResult{
				Code: xdr.TransactionResultCodeTxSuccess,
				Results: &[]xdr.OperationResult{
					{
						Code: xdr.OperationResultCodeOpInner,
						Tr: &xdr.OperationResultTr{
							Type: xdr.OperationTypeCreateClaimableBalance,
							CreateClaimableBalanceResult: &xdr.CreateClaimableBalanceResult{
								Code:      xdr.CreateClaimableBalanceResultCodeCreateClaimableBalanceSuccess,
								BalanceId: &balanceID,
							},
						},
					},
				},
			},
		}
		resultXDR, err := xdr.MarshalBase64(txResult)
		require.NoError(t, err)

		got, err := ClaimableBalanceIDFromResult(resultXDR)
		require.NoError(t, err)
		assert.Equal(t, "00000000"+hex.EncodeToString(balanceIDHash[:]), got)
	})
}
