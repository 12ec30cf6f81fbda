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
)

// trustlineCheckerTask re-checks deposits parked in pending_trust and releases the ones
// whose destination account established the asset trustline.
type trustlineCheckerTask struct {
	txModel       *data.TransactionModel
	horizonClient horizonclient.ClientInterface
	queue         *submissionQueue
	notifier      *webhooks.Notifier
	interval      time.Duration
}

func newTrustlineCheckerTask(txModel *data.TransactionModel, horizonClient horizonclient.ClientInterface, queue *submissionQueue, notifier *webhooks.Notifier, interval time.Duration) *trustlineCheckerTask {
	return &trustlineCheckerTask{
		txModel:       txModel,
		horizonClient: horizonClient,
		queue:         queue,
		notifier:      notifier,
		interval:      interval,
	}
}

func (t *trustlineCheckerTask) Name() string {
	return "trustline_checker"
}

func (t *trustlineCheckerTask) Interval() time.Duration {
	return t.interval
}

func (t *trustlineCheckerTask) Execute(ctx context.Context) error {
	transactions, err := t.txModel.GetPendingTrust(ctx)
	if err != nil {
		return fmt.Errorf("loading pending trust transactions: %w", err)
	}

	for _, tx := range transactions {
		if err := t.checkTransaction(ctx, tx); err != nil {
			log.Ctx(ctx).Errorf("checking trustline for transaction %s: %v", tx.ID, err)
		}
	}

	return nil
}

func (t *trustlineCheckerTask) checkTransaction(ctx context.Context, tx *data.Transaction) error {
	baseAccount, err := horizonx.BaseAccount(tx.ToAddress)
	if err != nil {
		return fmt.Errorf("resolving destination of transaction %s: %w", tx.ID, err)
	}

	account, err := t.horizonClient.AccountDetail(horizonclient.AccountRequest{AccountID: baseAccount})
	if err != nil {
		hErr := horizonx.WrapError(err)
		if hErr.IsNotFound() {
			// account disappeared (merged); keep waiting, operators can fail the row
			log.Ctx(ctx).Warnf("destination account %s of transaction %s no longer exists", baseAccount, tx.ID)
			return nil
		}
		return fmt.Errorf("getting account %s detail: %w", baseAccount, hErr)
	}

	if !horizonx.HasTrustline(account, tx.AssetCode, tx.AssetIssuer) {
		return nil
	}

	// a pre-trustline envelope (e.g. a claimable balance) is stale now that a direct
	// payment is possible
	if tx.EnvelopeXDR != "" || tx.StellarTransactionID != "" {
		if tx, err = t.txModel.ClearSubmissionArtifacts(ctx, t.txModel.DBConnectionPool, tx.ID); err != nil {
			return fmt.Errorf("clearing submission artifacts of transaction %s: %w", tx.ID, err)
		}
	}

	updatedTx, err := t.txModel.MarkAsReady(ctx, t.txModel.DBConnectionPool, *tx)
	if err != nil {
		return fmt.Errorf("marking transaction %s as ready: %w", tx.ID, err)
	}

	if err = t.queue.Enqueue(ctx, updatedTx.ID); err != nil {
		return err
	}
	t.notifier.NotifyStatusChange(ctx, *updatedTx)
	return nil
}

var _ Task = (*trustlineCheckerTask)(nil)
