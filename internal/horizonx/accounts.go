package horizonx

import (
	"fmt"

	"github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
)

// BaseAccount resolves the G-address that backs the given destination. Muxed (M-)
// addresses are collapsed onto their underlying account, since account existence and
// trustlines live at the base-account level.
func BaseAccount(address string) (string, error) {
	if strkey.IsValidEd25519PublicKey(address) {
		return address, nil
	}

	if strkey.IsValidMuxedAccountEd25519PublicKey(address) {
		muxed, err := xdr.AddressToMuxedAccount(address)
		if err != nil {
			return "", fmt.Errorf("decoding muxed address %q: %w", address, err)
		}
		return muxed.ToAccountId().Address(), nil
	}

	return "", fmt.Errorf("address %q is not a valid ed25519 public key or muxed account", address)
}

// HasTrustline reports whether the account holds a trustline for the given issued asset.
// Native-asset deposits never need one.
func HasTrustline(account horizon.Account, assetCode, assetIssuer string) bool {
	if assetCode == "native" || (assetCode == "XLM" && assetIssuer == "") {
		return true
	}

	for _, balance := range account.Balances {
		if balance.Asset.Code == assetCode && balance.Asset.Issuer == assetIssuer {
			return true
		}
	}
	return false
}
