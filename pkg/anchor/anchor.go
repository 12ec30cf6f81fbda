// Package anchor holds the contracts the pending-deposits processor consumes from the
// anchor's pluggable collaborators: the off-chain Rails, the Custody service that holds
// keys and produces signed Stellar transactions, the optional post-deposit hook, and the
// fee function used for non-quoted deposits.
package anchor

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotImplemented is a legal response from optional collaborator hooks.
var ErrNotImplemented = errors.New("not implemented")

// ErrDistributionAccountUnavailable is returned by Custody.GetDistributionAccount when the
// custody service does not expose a per-asset distribution account. The processor then
// submits without a source-account lock and trusts Custody to serialize internally.
var ErrDistributionAccountUnavailable = errors.New("distribution account is not available")

// ErrSubmissionPending is returned by Custody submission methods when the network did not
// confirm nor reject the transaction (e.g. a Horizon timeout). The submitter retries
// immediately.
var ErrSubmissionPending = errors.New("transaction submission is still pending")

// SubmissionBlockedError is a non-transient submission failure that requires operator
// intervention before the deposit can be retried.
type SubmissionBlockedError struct {
	Reason string
	Err    error
}

func (e *SubmissionBlockedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transaction submission is blocked: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transaction submission is blocked: %s", e.Reason)
}

func (e *SubmissionBlockedError) Unwrap() error {
	return e.Err
}

func NewSubmissionBlockedError(reason string, err error) *SubmissionBlockedError {
	return &SubmissionBlockedError{Reason: reason, Err: err}
}

// SubmissionFailedError is a terminal submission failure. The deposit is marked as error
// and never retried.
type SubmissionFailedError struct {
	Reason string
	Err    error
}

func (e *SubmissionFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transaction submission failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transaction submission failed: %s", e.Reason)
}

func (e *SubmissionFailedError) Unwrap() error {
	return e.Err
}

func NewSubmissionFailedError(reason string, err error) *SubmissionFailedError {
	return &SubmissionFailedError{Reason: reason, Err: err}
}

// Asset identifies the issued Stellar asset of a deposit.
type Asset struct {
	Code                string
	Issuer              string
	SignificantDecimals int32
}

// Deposit is the DTO exchanged with the collaborators. It carries a snapshot of the
// deposit-transaction row; the processor re-reads the authoritative row from the store
// after every collaborator call.
type Deposit struct {
	ID        string
	Kind      string
	Asset     Asset
	ToAddress string

	AmountIn  decimal.NullDecimal
	AmountFee decimal.NullDecimal
	AmountOut decimal.NullDecimal
	// Quoted is true when the deposit is backed by a priced exchange quote. Quoted
	// deposits must have AmountFee and AmountOut pre-populated by the rails.
	Quoted bool

	ClaimableBalanceSupported bool
	PendingSignatures         bool
	EnvelopeXDR               string
}

// Rails is the anchor's off-chain funds-movement collaborator (bank, card processor...).
// PollPendingDeposits receives the deposits the processor considers candidates and returns
// the subset whose off-chain funds have arrived, with amounts filled in.
//
//go:generate mockery --name=Rails --case=underscore --structname=MockRails
type Rails interface {
	PollPendingDeposits(ctx context.Context, candidates []Deposit) ([]Deposit, error)
}

// Custody holds the distribution keys and produces signed Stellar transactions. The
// processor never sees distribution seeds.
//
//go:generate mockery --name=Custody --case=underscore --structname=MockCustody
type Custody interface {
	// GetDistributionAccount returns the distribution account used as the payment source
	// for the given asset, or ErrDistributionAccountUnavailable.
	GetDistributionAccount(ctx context.Context, asset Asset) (string, error)
	// CreateDestinationAccount funds the deposit's destination account and returns the
	// Stellar transaction hash.
	CreateDestinationAccount(ctx context.Context, deposit Deposit) (string, error)
	// SubmitDepositTransaction submits the deposit payment (or claimable balance, when the
	// destination has no trustline) and returns the Stellar transaction hash. It may
	// return ErrSubmissionPending, *SubmissionBlockedError or *SubmissionFailedError.
	SubmitDepositTransaction(ctx context.Context, deposit Deposit, hasTrustline bool) (string, error)
	AccountCreationSupported() bool
	ClaimableBalancesSupported() bool
}

// DepositHandler is the optional post-deposit hook, invoked after a deposit completes.
// Returning ErrNotImplemented is legal; other errors are logged and never fatal.
//
//go:generate mockery --name=DepositHandler --case=underscore --structname=MockDepositHandler
type DepositHandler interface {
	AfterDeposit(ctx context.Context, deposit Deposit) error
}

// FeeParams is the input of the fee function registered for non-quoted deposits.
type FeeParams struct {
	Asset     Asset
	AmountIn  decimal.Decimal
	ToAddress string
}

// FeeFunc computes the anchor fee for a non-quoted deposit that arrived without one. An
// error makes the processor fall back to a zero fee.
type FeeFunc func(ctx context.Context, params FeeParams) (decimal.Decimal, error)
