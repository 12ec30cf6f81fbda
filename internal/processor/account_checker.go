package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/support/log"

	"github.com/stellar/anchor-deposits-processor/internal/data"
	"github.com/stellar/anchor-deposits-processor/internal/horizonx"
	"github.com/stellar/anchor-deposits-processor/internal/webhooks"
	"github.com/stellar/anchor-deposits-processor/pkg/anchor"
)

// accountChecker routes a funded deposit based on the state of its destination account
// and the custody capabilities.
type accountChecker struct {
	txModel       *data.TransactionModel
	horizonClient horizonclient.ClientInterface
	custody       anchor.Custody
	queue         *submissionQueue
	notifier      *webhooks.Notifier
}

// checkAndRoute inspects the destination account and moves the transaction to its next
// state: queued for submission, parked for trust, or parked for funding. Transient
// Horizon failures leave the row untouched and surface as an error.
func (c *accountChecker) checkAndRoute(ctx context.Context, tx *data.Transaction) error {
	baseAccount, err := horizonx.BaseAccount(tx.ToAddress)
	if err != nil {
		return c.failRow(ctx, tx, fmt.Sprintf("invalid destination address: %v", err))
	}

	account, err := c.horizonClient.AccountDetail(horizonclient.AccountRequest{AccountID: baseAccount})
	if err != nil {
		hErr := horizonx.WrapError(err)
		if !hErr.IsNotFound() {
			return fmt.Errorf("getting account %s detail: %w", baseAccount, hErr)
		}
		return c.routeMissingAccount(ctx, tx)
	}

	hasTrustline := horizonx.HasTrustline(account, tx.AssetCode, tx.AssetIssuer)
	if !hasTrustline && !c.claimableBalanceUsable(*tx) {
		return c.parkForTrust(ctx, tx)
	}

	return c.markReadyAndEnqueue(ctx, tx)
}

// routeMissingAccount handles a destination that does not exist yet. When custody can
// create accounts the deposit proceeds to submission and the submitter funds the account
// first; otherwise the row parks until the user funds it.
func (c *accountChecker) routeMissingAccount(ctx context.Context, tx *data.Transaction) error {
	if c.custody.AccountCreationSupported() {
		return c.markReadyAndEnqueue(ctx, tx)
	}
	return c.parkForFunding(ctx, tx)
}

// parkForFunding parks the row until the user funds the destination account.
func (c *accountChecker) parkForFunding(ctx context.Context, tx *data.Transaction) error {
	if tx.SubmissionStatus == data.SubmissionStatusPendingFunding {
		// already parked, nothing to do until the account shows up
		return nil
	}

	updatedTx, err := c.txModel.MarkAsPendingFunding(ctx, c.txModel.DBConnectionPool, *tx)
	if err != nil {
		return fmt.Errorf("marking transaction %s as pending funding: %w", tx.ID, err)
	}
	c.notifier.NotifyStatusChange(ctx, *updatedTx)
	return nil
}

func (c *accountChecker) parkForTrust(ctx context.Context, tx *data.Transaction) error {
	updatedTx, err := c.txModel.MarkAsPendingTrust(ctx, c.txModel.DBConnectionPool, *tx)
	if err != nil {
		return fmt.Errorf("marking transaction %s as pending trust: %w", tx.ID, err)
	}
	c.notifier.NotifyStatusChange(ctx, *updatedTx)
	return nil
}

func (c *accountChecker) markReadyAndEnqueue(ctx context.Context, tx *data.Transaction) error {
	updatedTx, err := c.txModel.MarkAsReady(ctx, c.txModel.DBConnectionPool, *tx)
	if err != nil {
		return fmt.Errorf("marking transaction %s as ready: %w", tx.ID, err)
	}

	if err = c.queue.Enqueue(ctx, updatedTx.ID); err != nil {
		return err
	}
	c.notifier.NotifyStatusChange(ctx, *updatedTx)
	return nil
}

func (c *accountChecker) failRow(ctx context.Context, tx *data.Transaction, message string) error {
	updatedTx, err := c.txModel.MarkAsError(ctx, c.txModel.DBConnectionPool, *tx, message)
	if err != nil {
		return fmt.Errorf("marking transaction %s as error: %w", tx.ID, err)
	}
	c.notifier.NotifyStatusChange(ctx, *updatedTx)
	return nil
}

// claimableBalanceUsable requires both the deposit to allow claimable balances and the
// custody to support creating them.
func (c *accountChecker) claimableBalanceUsable(tx data.Transaction) bool {
	return tx.ClaimableBalanceSupported && c.custody.ClaimableBalancesSupported()
}

// pendingFundingTask periodically re-checks the deposits parked because their
// destination account did not exist and custody cannot create it.
type pendingFundingTask struct {
	checker  *accountChecker
	interval time.Duration
}

func newPendingFundingTask(checker *accountChecker, interval time.Duration) *pendingFundingTask {
	return &pendingFundingTask{checker: checker, interval: interval}
}

func (t *pendingFundingTask) Name() string {
	return "pending_funding_checker"
}

func (t *pendingFundingTask) Interval() time.Duration {
	return t.interval
}

func (t *pendingFundingTask) Execute(ctx context.Context) error {
	transactions, err := t.checker.txModel.GetPendingFunding(ctx)
	if err != nil {
		return fmt.Errorf("loading pending funding transactions: %w", err)
	}

	for _, tx := range transactions {
		if err := t.checker.checkAndRoute(ctx, tx); err != nil {
			log.Ctx(ctx).Errorf("checking pending funding transaction %s: %v", tx.ID, err)
		}
	}

	return nil
}

var _ Task = (*pendingFundingTask)(nil)
