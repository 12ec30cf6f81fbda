// Package rails holds the built-in off-chain rails implementations. Production anchors
// plug their own banking integration behind anchor.Rails; these two exist for testnet
// pipelines and for running the processor without an off-chain leg.
package rails

import (
	"context"
	"fmt"
	"strings"

	"github.com/stellar/anchor-deposits-processor/pkg/anchor"
)

type RailsType string

const (
	// RailsTypeAutoFunded treats every candidate deposit as funded as soon as it is seen.
	// Useful on testnet, where there is no real off-chain leg.
	RailsTypeAutoFunded RailsType = "AUTO_FUNDED"
	// RailsTypeNone never reports deposits as funded. Funding is expected to be recorded
	// out of band.
	RailsTypeNone RailsType = "NONE"
)

func ParseRailsType(railsTypeStr string) (RailsType, error) {
	railsTypeStrUpper := strings.ToUpper(railsTypeStr)
	rType := RailsType(railsTypeStrUpper)

	switch rType {
	case RailsTypeAutoFunded, RailsTypeNone:
		return rType, nil
	default:
		return "", fmt.Errorf("invalid rails type %q", railsTypeStrUpper)
	}
}

// GetRails returns the built-in rails implementation for the given type.
func GetRails(railsType RailsType) (anchor.Rails, error) {
	switch railsType {
	case RailsTypeAutoFunded:
		return &AutoFundedRails{}, nil
	case RailsTypeNone:
		return &NoneRails{}, nil
	default:
		return nil, fmt.Errorf("unknown rails type: %q", railsType)
	}
}

// AutoFundedRails reports every candidate as funded, keeping whatever amounts the row
// already carries.
type AutoFundedRails struct{}

func (r *AutoFundedRails) PollPendingDeposits(ctx context.Context, candidates []anchor.Deposit) ([]anchor.Deposit, error) {
	funded := make([]anchor.Deposit, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.AmountIn.Valid {
			funded = append(funded, candidate)
		}
	}
	return funded, nil
}

var _ anchor.Rails = (*AutoFundedRails)(nil)

// NoneRails reports no deposits as funded.
type NoneRails struct{}

func (r *NoneRails) PollPendingDeposits(ctx context.Context, candidates []anchor.Deposit) ([]anchor.Deposit, error) {
	return nil, nil
}

var _ anchor.Rails = (*NoneRails)(nil)
