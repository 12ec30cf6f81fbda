package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/support/log"

	"github.com/stellar/anchor-deposits-processor/internal/data"
	"github.com/stellar/anchor-deposits-processor/internal/monitor"
	"github.com/stellar/anchor-deposits-processor/pkg/anchor"
)

// railsPollerTask asks the off-chain rails which candidate deposits received their
// funds, persists the reported amounts and routes the funded rows into the pipeline.
type railsPollerTask struct {
	txModel        *data.TransactionModel
	rails          anchor.Rails
	feeFunc        anchor.FeeFunc
	checker        *accountChecker
	monitorService monitor.MonitorServiceInterface
	interval       time.Duration
}

func newRailsPollerTask(txModel *data.TransactionModel, railsImpl anchor.Rails, feeFunc anchor.FeeFunc, checker *accountChecker, monitorService monitor.MonitorServiceInterface, interval time.Duration) *railsPollerTask {
	return &railsPollerTask{
		txModel:        txModel,
		rails:          railsImpl,
		feeFunc:        feeFunc,
		checker:        checker,
		monitorService: monitorService,
		interval:       interval,
	}
}

func (t *railsPollerTask) Name() string {
	return "rails_poller"
}

func (t *railsPollerTask) Interval() time.Duration {
	return t.interval
}

func (t *railsPollerTask) Execute(ctx context.Context) error {
	candidates, err := t.txModel.GetPendingDeposits(ctx)
	if err != nil {
		return fmt.Errorf("loading pending deposits: %w", err)
	}
	if len(candidates) == 0 {
		return nil
	}

	deposits := make([]anchor.Deposit, 0, len(candidates))
	for _, tx := range candidates {
		deposits = append(deposits, depositFromTransaction(*tx))
		_ = t.monitorService.MonitorCounters(monitor.PendingDepositsPolledTag, map[string]string{"asset_code": tx.AssetCode})
	}

	funded, err := t.rails.PollPendingDeposits(ctx, deposits)
	if err != nil {
		return fmt.Errorf("polling rails for pending deposits: %w", err)
	}

	for _, deposit := range funded {
		// each row carries its own error boundary so one bad deposit cannot stall the rest
		if err := t.processFundedDeposit(ctx, deposit); err != nil {
			log.Ctx(ctx).Errorf("processing funded deposit %s: %v", deposit.ID, err)
		}
	}

	return nil
}

// processFundedDeposit validates the rails' answer against the authoritative row, fills
// in the fee for non-quoted deposits and hands the row to the account checker.
func (t *railsPollerTask) processFundedDeposit(ctx context.Context, deposit anchor.Deposit) error {
	// the rails' snapshot may be stale; re-read the row before mutating anything
	tx, err := t.txModel.Get(ctx, t.txModel.DBConnectionPool, deposit.ID)
	if err != nil {
		return fmt.Errorf("re-reading transaction %s: %w", deposit.ID, err)
	}

	if tx.SubmissionStatus != data.SubmissionStatusNone {
		log.Ctx(ctx).Debugf("Skipping deposit %s, already routed (%s/%s)", tx.ID, tx.Status, tx.SubmissionStatus)
		return nil
	}

	if kindErr := tx.Kind.Validate(); kindErr != nil {
		return t.checker.failRow(ctx, tx, fmt.Sprintf("rails returned a non-deposit row: %v", kindErr))
	}

	if !deposit.AmountIn.Valid || !deposit.AmountIn.Decimal.IsPositive() {
		return t.checker.failRow(ctx, tx, "rails reported the deposit as funded without a positive amount_in")
	}

	amountFee := deposit.AmountFee
	amountOut := deposit.AmountOut
	if tx.IsQuoted() {
		// quoted deposits are priced up front and must arrive fully resolved
		if !amountFee.Valid || !amountOut.Valid {
			return t.checker.failRow(ctx, tx, "quoted deposit is missing amount_fee or amount_out")
		}
	} else if !amountFee.Valid {
		amountFee = decimal.NewNullDecimal(t.computeFee(ctx, *tx, deposit.AmountIn.Decimal))
	}

	updatedTx, err := t.txModel.UpdateAmounts(ctx, t.txModel.DBConnectionPool, tx.ID, deposit.AmountIn, amountFee, amountOut)
	if err != nil {
		return fmt.Errorf("persisting amounts of transaction %s: %w", tx.ID, err)
	}

	// When custody cannot create destination accounts, every funded row parks for the
	// user first; the pending-funding checker re-checks the account from there.
	if !t.checker.custody.AccountCreationSupported() {
		return t.checker.parkForFunding(ctx, updatedTx)
	}

	return t.checker.checkAndRoute(ctx, updatedTx)
}

// computeFee consults the registered fee function; a missing or failing fee function
// falls back to a zero fee.
func (t *railsPollerTask) computeFee(ctx context.Context, tx data.Transaction, amountIn decimal.Decimal) decimal.Decimal {
	if t.feeFunc == nil {
		return decimal.Zero
	}

	fee, err := t.feeFunc(ctx, anchor.FeeParams{
		Asset: anchor.Asset{
			Code:                tx.AssetCode,
			Issuer:              tx.AssetIssuer,
			SignificantDecimals: tx.AssetSignificantDecimals,
		},
		AmountIn:  amountIn,
		ToAddress: tx.ToAddress,
	})
	if err != nil {
		log.Ctx(ctx).Warnf("fee function failed for transaction %s, falling back to zero fee: %v", tx.ID, err)
		return decimal.Zero
	}
	return fee
}

var _ Task = (*railsPollerTask)(nil)
