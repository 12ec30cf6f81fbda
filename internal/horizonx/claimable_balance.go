package horizonx

import (
	"fmt"

	"github.com/stellar/go/xdr"
)

// ClaimableBalanceIDFromResult extracts the claimable balance ID created by the first
// CreateClaimableBalance operation in the given transaction result XDR. The result is the
// authoritative source for the ID and avoids an extra Horizon round-trip.
func ClaimableBalanceIDFromResult(resultXDR string) (string, error) {
	var txResult xdr.TransactionResult
	if err := xdr.SafeUnmarshalBase64(resultXDR, &txResult); err != nil {
		return "", fmt.Errorf("unmarshalling transaction result: %w", err)
	}

	opResults, ok := txResult.OperationResults()
	if !ok {
		return "", fmt.Errorf("transaction result carries no operation results")
	}

	for _, opResult := range opResults {
		tr, ok := opResult.GetTr()
		if !ok {
			continue
		}
		cbResult, ok := tr.GetCreateClaimableBalanceResult()
		if !ok {
			continue
		}
		balanceID, ok := cbResult.GetBalanceId()
		if !ok {
			return "", fmt.Errorf("create claimable balance result carries no balance ID")
		}

		hexID, err := xdr.MarshalHex(balanceID)
		if err != nil {
			return "", fmt.Errorf("encoding balance ID: %w", err)
		}
		return hexID, nil
	}

	return "", fmt.Errorf("no create claimable balance operation in transaction result")
}
