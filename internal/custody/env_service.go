// Package custody implements the anchor.Custody contract. The EnvService holds a single
// distribution seed taken from the environment and builds, signs and submits the Stellar
// transactions itself; the processor never touches the key material.
package custody

import (
	"context"
	"fmt"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"

	"github.com/stellar/anchor-deposits-processor/internal/horizonx"
	"github.com/stellar/anchor-deposits-processor/pkg/anchor"
)

const defaultStartingBalance = "1"

type EnvServiceOptions struct {
	NetworkPassphrase string
	DistributionSeed  string
	HorizonClient     horizonclient.ClientInterface
	MaxBaseFee        int64
	// DestinationStartingBalance is the XLM amount used to fund destination accounts the
	// service creates. Defaults to 1 XLM.
	DestinationStartingBalance string
	// ClaimableBalances enables falling back to claimable balances for destinations
	// without a trustline.
	ClaimableBalances bool
}

func (opts *EnvServiceOptions) Validate() error {
	if opts.NetworkPassphrase == "" {
		return fmt.Errorf("network passphrase cannot be empty")
	}
	if !strkey.IsValidEd25519SecretSeed(opts.DistributionSeed) {
		return fmt.Errorf("distribution seed is not a valid Ed25519 secret")
	}
	if opts.HorizonClient == nil {
		return fmt.Errorf("horizon client cannot be nil")
	}
	if opts.MaxBaseFee < txnbuild.MinBaseFee {
		return fmt.Errorf("max base fee must be at least %d", txnbuild.MinBaseFee)
	}
	return nil
}

// EnvService is the in-process custody backed by a single distribution account.
type EnvService struct {
	networkPassphrase   string
	distributionAccount string
	distributionKP      *keypair.Full
	horizonClient       horizonclient.ClientInterface
	maxBaseFee          int64
	startingBalance     string
	claimableBalances   bool
}

func NewEnvService(opts EnvServiceOptions) (*EnvService, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("validating options: %w", err)
	}

	distributionKP, err := keypair.ParseFull(opts.DistributionSeed)
	if err != nil {
		return nil, fmt.Errorf("parsing distribution seed: %w", err)
	}

	startingBalance := opts.DestinationStartingBalance
	if startingBalance == "" {
		startingBalance = defaultStartingBalance
	}

	return &EnvService{
		networkPassphrase:   opts.NetworkPassphrase,
		distributionAccount: distributionKP.Address(),
		distributionKP:      distributionKP,
		horizonClient:       opts.HorizonClient,
		maxBaseFee:          opts.MaxBaseFee,
		startingBalance:     startingBalance,
		claimableBalances:   opts.ClaimableBalances,
	}, nil
}

var _ anchor.Custody = (*EnvService)(nil)

func (s *EnvService) String() string {
	return fmt.Sprintf("EnvService{distributionAccount: %s, networkPassphrase: %s}", s.distributionAccount, s.networkPassphrase)
}

// GetDistributionAccount returns the single distribution account, regardless of asset.
func (s *EnvService) GetDistributionAccount(ctx context.Context, asset anchor.Asset) (string, error) {
	return s.distributionAccount, nil
}

func (s *EnvService) AccountCreationSupported() bool {
	return true
}

func (s *EnvService) ClaimableBalancesSupported() bool {
	return s.claimableBalances
}

// CreateDestinationAccount funds the deposit's destination account with the configured
// starting balance and returns the Stellar transaction hash.
func (s *EnvService) CreateDestinationAccount(ctx context.Context, deposit anchor.Deposit) (string, error) {
	destination, err := horizonx.BaseAccount(deposit.ToAddress)
	if err != nil {
		return "", anchor.NewSubmissionFailedError("resolving destination account", err)
	}

	op := &txnbuild.CreateAccount{
		Destination: destination,
		Amount:      s.startingBalance,
	}
	return s.buildSignAndSubmit(ctx, op)
}

// SubmitDepositTransaction submits the deposit on-chain. Destinations holding a trustline
// receive a payment; the rest receive a claimable balance they can claim once trust is
// established. A pre-built fully-signed envelope is replayed as-is.
func (s *EnvService) SubmitDepositTransaction(ctx context.Context, deposit anchor.Deposit, hasTrustline bool) (string, error) {
	if deposit.EnvelopeXDR != "" {
		if deposit.PendingSignatures {
			return "", anchor.NewSubmissionBlockedError("envelope is still waiting for signatures", nil)
		}
		return s.submitEnvelope(ctx, deposit.EnvelopeXDR)
	}

	asset, err := buildAsset(deposit.Asset)
	if err != nil {
		return "", anchor.NewSubmissionFailedError("building asset", err)
	}

	amount, err := depositAmount(deposit)
	if err != nil {
		return "", anchor.NewSubmissionFailedError("computing deposit amount", err)
	}

	var op txnbuild.Operation
	if hasTrustline {
		op = &txnbuild.Payment{
			Destination: deposit.ToAddress,
			Asset:       asset,
			Amount:      amount,
		}
	} else {
		if !s.claimableBalances {
			return "", anchor.NewSubmissionFailedError("destination has no trustline and claimable balances are disabled", nil)
		}

		destination, destErr := horizonx.BaseAccount(deposit.ToAddress)
		if destErr != nil {
			return "", anchor.NewSubmissionFailedError("resolving destination account", destErr)
		}

		// The distribution account is a claimant too, so undeliverable funds can be
		// clawed back by the anchor.
		op = &txnbuild.CreateClaimableBalance{
			Asset:  asset,
			Amount: amount,
			Destinations: []txnbuild.Claimant{
				txnbuild.NewClaimant(destination, nil),
				txnbuild.NewClaimant(s.distributionAccount, nil),
			},
		}
	}

	return s.buildSignAndSubmit(ctx, op)
}

func (s *EnvService) buildSignAndSubmit(ctx context.Context, ops ...txnbuild.Operation) (string, error) {
	sourceAccount, err := s.horizonClient.AccountDetail(horizonclient.AccountRequest{AccountID: s.distributionAccount})
	if err != nil {
		return "", s.wrapSubmissionError(fmt.Errorf("getting distribution account detail: %w", horizonx.WrapError(err)))
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &sourceAccount,
		IncrementSequenceNum: true,
		Operations:           ops,
		BaseFee:              s.maxBaseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(300)},
	})
	if err != nil {
		return "", anchor.NewSubmissionFailedError("building transaction", err)
	}

	signedTx, err := tx.Sign(s.networkPassphrase, s.distributionKP)
	if err != nil {
		return "", anchor.NewSubmissionFailedError("signing transaction", err)
	}

	return s.submit(signedTx)
}

// submitEnvelope replays a fully-signed envelope without touching it.
func (s *EnvService) submitEnvelope(ctx context.Context, envelopeXDR string) (string, error) {
	genericTx, err := txnbuild.TransactionFromXDR(envelopeXDR)
	if err != nil {
		return "", anchor.NewSubmissionFailedError("parsing envelope XDR", err)
	}

	tx, ok := genericTx.Transaction()
	if !ok {
		return "", anchor.NewSubmissionFailedError("envelope XDR is not a simple transaction", nil)
	}

	return s.submit(tx)
}

func (s *EnvService) submit(tx *txnbuild.Transaction) (string, error) {
	resp, err := s.horizonClient.SubmitTransactionWithOptions(tx, horizonclient.SubmitTxOpts{SkipMemoRequiredCheck: true})
	if err != nil {
		return "", s.wrapSubmissionError(err)
	}

	return resp.Hash, nil
}

// wrapSubmissionError maps a Horizon failure onto the custody error contract: transient
// failures become ErrSubmissionPending, source-account and signature problems block the
// deposit for operator review, everything else fails it terminally.
func (s *EnvService) wrapSubmissionError(err error) error {
	hErr := horizonx.WrapError(err)

	switch {
	case hErr.IsTransient():
		return fmt.Errorf("%w: %v", anchor.ErrSubmissionPending, hErr)
	case hErr.IsSourceAccountNotReady() || hErr.IsBadAuthentication():
		return anchor.NewSubmissionBlockedError("distribution account is not ready", hErr)
	default:
		return anchor.NewSubmissionFailedError("horizon rejected the transaction", hErr)
	}
}

func buildAsset(asset anchor.Asset) (txnbuild.Asset, error) {
	if asset.Code == "native" || (asset.Code == "XLM" && asset.Issuer == "") {
		return txnbuild.NativeAsset{}, nil
	}
	if !strkey.IsValidEd25519PublicKey(asset.Issuer) {
		return nil, fmt.Errorf("asset issuer %q is not a valid ed25519 public key", asset.Issuer)
	}
	return txnbuild.CreditAsset{Code: asset.Code, Issuer: asset.Issuer}, nil
}

// depositAmount settles on the on-chain amount: the priced amount_out when present,
// otherwise amount_in minus the fee, truncated to the asset's significant decimals.
func depositAmount(deposit anchor.Deposit) (string, error) {
	if deposit.AmountOut.Valid {
		if !deposit.AmountOut.Decimal.IsPositive() {
			return "", fmt.Errorf("amount_out must be positive, got %s", deposit.AmountOut.Decimal)
		}
		return deposit.AmountOut.Decimal.StringFixed(deposit.Asset.SignificantDecimals), nil
	}

	if !deposit.AmountIn.Valid {
		return "", fmt.Errorf("deposit %s has no amount_in", deposit.ID)
	}

	amount := deposit.AmountIn.Decimal
	if deposit.AmountFee.Valid {
		amount = amount.Sub(deposit.AmountFee.Decimal)
	}
	amount = amount.RoundDown(deposit.Asset.SignificantDecimals)

	if !amount.IsPositive() {
		return "", fmt.Errorf("deposit %s amount is not positive after fees: %s", deposit.ID, amount)
	}

	return amount.StringFixed(deposit.Asset.SignificantDecimals), nil
}
