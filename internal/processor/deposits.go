package processor

import (
	"github.com/stellar/anchor-deposits-processor/internal/data"
	"github.com/stellar/anchor-deposits-processor/pkg/anchor"
)

// depositFromTransaction maps a stored row onto the DTO handed to the collaborators.
func depositFromTransaction(tx data.Transaction) anchor.Deposit {
	return anchor.Deposit{
		ID:   tx.ID,
		Kind: string(tx.Kind),
		Asset: anchor.Asset{
			Code:                tx.AssetCode,
			Issuer:              tx.AssetIssuer,
			SignificantDecimals: tx.AssetSignificantDecimals,
		},
		ToAddress:                 tx.ToAddress,
		AmountIn:                  tx.AmountIn,
		AmountFee:                 tx.AmountFee,
		AmountOut:                 tx.AmountOut,
		Quoted:                    tx.IsQuoted(),
		ClaimableBalanceSupported: tx.ClaimableBalanceSupported,
		PendingSignatures:         tx.PendingSignatures,
		EnvelopeXDR:               tx.EnvelopeXDR,
	}
}
