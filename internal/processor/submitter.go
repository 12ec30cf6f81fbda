package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/support/log"
	"github.com/stellar/go/txnbuild"

	"github.com/stellar/anchor-deposits-processor/internal/crashtracker"
	"github.com/stellar/anchor-deposits-processor/internal/data"
	"github.com/stellar/anchor-deposits-processor/internal/horizonx"
	"github.com/stellar/anchor-deposits-processor/internal/monitor"
	"github.com/stellar/anchor-deposits-processor/internal/utils"
	"github.com/stellar/anchor-deposits-processor/internal/webhooks"
	"github.com/stellar/anchor-deposits-processor/pkg/anchor"
)

// submissionRetryDelay separates retries of a deposit whose outcome is still pending.
const submissionRetryDelay = 5 * time.Second

// submitter is the single consumer of the submission queue. One deposit is processed at
// a time end to end; concurrency control across accounts happens through the lock
// registry so a future fan-out does not change the locking story.
type submitter struct {
	txModel            *data.TransactionModel
	queue              *submissionQueue
	locks              *lockRegistry
	custody            anchor.Custody
	depositHandler     anchor.DepositHandler
	horizonClient      horizonclient.ClientInterface
	notifier           *webhooks.Notifier
	monitorService     monitor.MonitorServiceInterface
	crashTrackerClient crashtracker.CrashTrackerClient
}

// Run consumes the queue until the context ends.
func (s *submitter) Run(ctx context.Context) {
	defer s.crashTrackerClient.FlushEvents(2 * time.Second)
	defer s.crashTrackerClient.Recover()

	for {
		txID, err := s.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Ctx(ctx).Errorf("dequeuing transaction: %v", err)
			}
			return
		}

		// a fresh job ID correlates every log line of this submission attempt chain
		jobCtx := log.Set(ctx, log.Ctx(ctx).WithFields(log.F{"job_id": uuid.NewString(), "transaction_id": txID}))
		s.processTransaction(jobCtx, txID)
	}
}

func (s *submitter) processTransaction(ctx context.Context, txID string) {
	tx, err := s.txModel.Get(ctx, s.txModel.DBConnectionPool, txID)
	if err != nil {
		s.crashTrackerClient.LogAndReportErrors(ctx, err, "loading queued transaction")
		return
	}

	switch tx.SubmissionStatus {
	case data.SubmissionStatusReady, data.SubmissionStatusProcessing, data.SubmissionStatusPending:
		// fall through to the submission loop
	case data.SubmissionStatusCompleted, data.SubmissionStatusFailed:
		// terminal rows can linger in the in-memory queue after a rehydrate race
		log.Ctx(ctx).Debugf("Skipping transaction %s, already terminal (%s)", tx.ID, tx.SubmissionStatus)
		return
	default:
		// a row in any other state reaching the submitter is a programming error
		stateErr := fmt.Errorf("transaction %s reached the submitter in unexpected state %s/%s", tx.ID, tx.Status, tx.SubmissionStatus)
		s.crashTrackerClient.LogAndReportErrors(ctx, stateErr, "unexpected pre-flight submission state")
		s.failTransaction(ctx, tx, fmt.Sprintf("%s: %s", utils.GetTypeName(stateErr), stateErr.Error()))
		return
	}

	for {
		done, retryDelay := s.attemptSubmission(ctx, tx.ID)
		if done {
			return
		}

		// a zero delay means the outcome is already persisted as pending and the next
		// attempt should start right away
		if retryDelay == 0 {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

// attemptSubmission runs one full pass over the deposit: mark processing, prepare the
// destination account, submit through custody and settle the outcome. It returns
// done=false when the outcome is still pending and the caller should retry after
// retryDelay; a zero retryDelay asks for an immediate retry.
func (s *submitter) attemptSubmission(ctx context.Context, txID string) (done bool, retryDelay time.Duration) {
	tx, err := s.txModel.Get(ctx, s.txModel.DBConnectionPool, txID)
	if err != nil {
		s.crashTrackerClient.LogAndReportErrors(ctx, err, "re-loading transaction before submission")
		return true, 0
	}

	tx, err = s.txModel.MarkAsProcessing(ctx, s.txModel.DBConnectionPool, *tx)
	if err != nil {
		s.crashTrackerClient.LogAndReportErrors(ctx, err, "marking transaction as processing")
		return true, 0
	}
	s.notifier.NotifyStatusChange(ctx, *tx)

	deposit := depositFromTransaction(*tx)

	// Serialize on the distribution account when custody exposes one; custody backends
	// without one serialize submissions internally.
	distributionAccount, err := s.custody.GetDistributionAccount(ctx, deposit.Asset)
	if err != nil && !errors.Is(err, anchor.ErrDistributionAccountUnavailable) {
		log.Ctx(ctx).Warnf("getting distribution account: %v", err)
		s.markAsPending(ctx, tx)
		return false, submissionRetryDelay
	}
	if distributionAccount != "" {
		lock := s.locks.SourceAccounts.forAccount(distributionAccount)
		lock.Lock()
		defer lock.Unlock()
	}

	baseAccount, err := horizonx.BaseAccount(tx.ToAddress)
	if err != nil {
		s.failTransaction(ctx, tx, fmt.Sprintf("invalid destination address: %v", err))
		return true, 0
	}

	destLock := s.locks.DestinationAccounts.forAccount(baseAccount)
	destLock.Lock()
	defer destLock.Unlock()

	account, accountErr := s.horizonClient.AccountDetail(horizonclient.AccountRequest{AccountID: baseAccount})
	if accountErr != nil {
		hErr := horizonx.WrapError(accountErr)
		if !hErr.IsNotFound() {
			log.Ctx(ctx).Warnf("getting destination account detail: %v", hErr)
			s.markAsPending(ctx, tx)
			return false, submissionRetryDelay
		}
		return s.createDestinationAccount(ctx, tx, deposit)
	}

	hasTrustline := horizonx.HasTrustline(account, tx.AssetCode, tx.AssetIssuer)
	if !hasTrustline && !s.claimableBalanceUsable(*tx) {
		s.parkForTrust(ctx, tx)
		return true, 0
	}

	tx, err = s.dropStaleEnvelope(ctx, tx)
	if err != nil {
		s.crashTrackerClient.LogAndReportErrors(ctx, err, "dropping stale envelope")
		return true, 0
	}
	deposit = depositFromTransaction(*tx)

	hash, err := s.custody.SubmitDepositTransaction(ctx, deposit, hasTrustline)
	if err != nil {
		return s.settleSubmissionError(ctx, tx, err)
	}

	return s.confirmDeposit(ctx, tx, hash, hasTrustline)
}

// createDestinationAccount asks custody to fund the missing destination account, then
// re-routes the deposit.
func (s *submitter) createDestinationAccount(ctx context.Context, tx *data.Transaction, deposit anchor.Deposit) (done bool, retryDelay time.Duration) {
	if !s.custody.AccountCreationSupported() {
		s.failTransaction(ctx, tx, "destination account does not exist and the custody service cannot create it")
		return true, 0
	}

	log.Ctx(ctx).Infof("Creating destination account for transaction %s", tx.ID)
	hash, err := s.custody.CreateDestinationAccount(ctx, deposit)
	if err != nil {
		return s.settleSubmissionError(ctx, tx, err)
	}

	resp, err := s.horizonClient.TransactionDetail(hash)
	if err != nil {
		log.Ctx(ctx).Warnf("confirming account creation transaction %s: %v", hash, horizonx.WrapError(err))
		s.markAsPending(ctx, tx)
		return false, submissionRetryDelay
	}
	if !resp.Successful {
		s.failTransaction(ctx, tx, resp.ResultXdr)
		return true, 0
	}

	// The fresh account has no trustline yet. With claimable balances available the
	// deposit goes right back through the queue and lands as a claimable balance;
	// otherwise it waits for the user to add the trustline.
	if s.claimableBalanceUsable(*tx) {
		updatedTx, markErr := s.txModel.MarkAsReady(ctx, s.txModel.DBConnectionPool, *tx)
		if markErr != nil {
			s.crashTrackerClient.LogAndReportErrors(ctx, markErr, "re-queuing transaction after account creation")
			return true, 0
		}
		// The submitter is the queue's only consumer, so a blocking enqueue on a full
		// queue would deadlock. The row stays claimed, the next start rehydrates it.
		if err = s.queue.TryEnqueue(updatedTx.ID); err != nil {
			log.Ctx(ctx).Warnf("re-enqueuing transaction %s after account creation: %v", updatedTx.ID, err)
		}
		s.notifier.NotifyStatusChange(ctx, *updatedTx)
		return true, 0
	}

	s.parkForTrust(ctx, tx)
	return true, 0
}

// dropStaleEnvelope discards a pre-built envelope that still wants to create the
// destination account, which exists by now. Submitting it would fail with a tx error.
func (s *submitter) dropStaleEnvelope(ctx context.Context, tx *data.Transaction) (*data.Transaction, error) {
	if tx.EnvelopeXDR == "" {
		return tx, nil
	}

	genericTx, err := txnbuild.TransactionFromXDR(tx.EnvelopeXDR)
	if err != nil {
		return nil, fmt.Errorf("parsing stored envelope of transaction %s: %w", tx.ID, err)
	}
	envelopeTx, ok := genericTx.Transaction()
	if !ok {
		return tx, nil
	}

	for _, op := range envelopeTx.Operations() {
		if _, isCreateAccount := op.(*txnbuild.CreateAccount); isCreateAccount {
			log.Ctx(ctx).Infof("Discarding stale create-account envelope of transaction %s", tx.ID)
			updatedTx, clearErr := s.txModel.ClearEnvelopeXDR(ctx, s.txModel.DBConnectionPool, tx.ID)
			if clearErr != nil {
				return nil, fmt.Errorf("clearing stale envelope of transaction %s: %w", tx.ID, clearErr)
			}
			return updatedTx, nil
		}
	}

	return tx, nil
}

// settleSubmissionError maps a custody submission error onto the state machine. It
// returns done=false when the deposit should be retried.
func (s *submitter) settleSubmissionError(ctx context.Context, tx *data.Transaction, err error) (done bool, retryDelay time.Duration) {
	var blockedErr *anchor.SubmissionBlockedError
	var failedErr *anchor.SubmissionFailedError

	switch {
	case errors.Is(err, anchor.ErrSubmissionPending):
		// the outcome is unknown, not the submission infrastructure: retry right away
		log.Ctx(ctx).Warnf("submission outcome pending for transaction %s: %v", tx.ID, err)
		s.markAsPending(ctx, tx)
		s.reportSubmission(*tx, "pending")
		return false, 0

	case errors.As(err, &blockedErr):
		updatedTx, markErr := s.txModel.MarkAsBlocked(ctx, s.txModel.DBConnectionPool, *tx, blockedErr.Error())
		if markErr != nil {
			s.crashTrackerClient.LogAndReportErrors(ctx, markErr, "marking transaction as blocked")
			return true, 0
		}
		s.crashTrackerClient.LogAndReportErrors(ctx, blockedErr, fmt.Sprintf("transaction %s blocked, operator intervention required", tx.ID))
		s.notifier.NotifyStatusChange(ctx, *updatedTx)
		s.reportSubmission(*tx, "blocked")
		return true, 0

	case errors.As(err, &failedErr):
		s.failTransaction(ctx, tx, failedErr.Error())
		s.reportSubmission(*tx, "failed")
		return true, 0

	default:
		// unexpected error type from the custody collaborator
		s.failTransaction(ctx, tx, fmt.Sprintf("%s: %s", utils.GetTypeName(err), err.Error()))
		s.reportSubmission(*tx, "failed")
		return true, 0
	}
}

// confirmDeposit fetches the confirmed transaction, extracts the claimable balance ID
// when one was created, settles the final amounts and completes the row.
func (s *submitter) confirmDeposit(ctx context.Context, tx *data.Transaction, hash string, hasTrustline bool) (done bool, retryDelay time.Duration) {
	resp, err := s.horizonClient.TransactionDetail(hash)
	if err != nil {
		log.Ctx(ctx).Warnf("confirming deposit transaction %s: %v", hash, horizonx.WrapError(err))
		s.markAsPending(ctx, tx)
		return false, submissionRetryDelay
	}

	if !resp.Successful {
		s.failTransaction(ctx, tx, resp.ResultXdr)
		s.reportSubmission(*tx, "failed")
		return true, 0
	}

	if !hasTrustline && s.claimableBalanceUsable(*tx) {
		balanceID, cbErr := horizonx.ClaimableBalanceIDFromResult(resp.ResultXdr)
		if cbErr != nil {
			log.Ctx(ctx).Errorf("extracting claimable balance ID of transaction %s: %v", tx.ID, cbErr)
		} else if tx, cbErr = s.txModel.UpdateClaimableBalanceID(ctx, s.txModel.DBConnectionPool, tx.ID, balanceID); cbErr != nil {
			s.crashTrackerClient.LogAndReportErrors(ctx, cbErr, "persisting claimable balance ID")
			return true, 0
		}
	}

	tx, err = s.settleAmounts(ctx, tx)
	if err != nil {
		s.crashTrackerClient.LogAndReportErrors(ctx, err, "settling amounts")
		return true, 0
	}

	updatedTx, err := s.txModel.MarkAsCompleted(ctx, s.txModel.DBConnectionPool, *tx, hash, resp.PT)
	if err != nil {
		s.crashTrackerClient.LogAndReportErrors(ctx, err, "marking transaction as completed")
		return true, 0
	}
	log.Ctx(ctx).Infof("Transaction %s completed with Stellar transaction %s", updatedTx.ID, hash)
	s.notifier.NotifyStatusChange(ctx, *updatedTx)
	s.reportSubmission(*updatedTx, "ok")

	if err = s.depositHandler.AfterDeposit(ctx, depositFromTransaction(*updatedTx)); err != nil && !errors.Is(err, anchor.ErrNotImplemented) {
		log.Ctx(ctx).Errorf("after-deposit hook failed for transaction %s: %v", updatedTx.ID, err)
	}

	return true, 0
}

// settleAmounts fills amount_out for non-quoted deposits, mirroring what custody put on
// chain: amount_in minus the fee, truncated to the asset's significant decimals.
func (s *submitter) settleAmounts(ctx context.Context, tx *data.Transaction) (*data.Transaction, error) {
	if tx.IsQuoted() || tx.AmountOut.Valid || !tx.AmountIn.Valid {
		return tx, nil
	}

	amountOut := tx.AmountIn.Decimal
	if tx.AmountFee.Valid {
		amountOut = amountOut.Sub(tx.AmountFee.Decimal)
	}
	amountOut = amountOut.RoundDown(tx.AssetSignificantDecimals)

	updatedTx, err := s.txModel.UpdateAmounts(ctx, s.txModel.DBConnectionPool, tx.ID, tx.AmountIn, tx.AmountFee, decimal.NewNullDecimal(amountOut))
	if err != nil {
		return nil, fmt.Errorf("persisting amount_out of transaction %s: %w", tx.ID, err)
	}
	return updatedTx, nil
}

func (s *submitter) markAsPending(ctx context.Context, tx *data.Transaction) {
	updatedTx, err := s.txModel.MarkAsPending(ctx, s.txModel.DBConnectionPool, *tx)
	if err != nil {
		s.crashTrackerClient.LogAndReportErrors(ctx, err, "marking transaction as pending")
		return
	}
	s.notifier.NotifyStatusChange(ctx, *updatedTx)
}

func (s *submitter) parkForTrust(ctx context.Context, tx *data.Transaction) {
	updatedTx, err := s.txModel.MarkAsPendingTrust(ctx, s.txModel.DBConnectionPool, *tx)
	if err != nil {
		s.crashTrackerClient.LogAndReportErrors(ctx, err, "marking transaction as pending trust")
		return
	}
	s.notifier.NotifyStatusChange(ctx, *updatedTx)
}

func (s *submitter) failTransaction(ctx context.Context, tx *data.Transaction, message string) {
	updatedTx, err := s.txModel.MarkAsError(ctx, s.txModel.DBConnectionPool, *tx, message)
	if err != nil {
		s.crashTrackerClient.LogAndReportErrors(ctx, err, "marking transaction as error")
		return
	}
	log.Ctx(ctx).Errorf("Transaction %s failed: %s", tx.ID, message)
	s.notifier.NotifyStatusChange(ctx, *updatedTx)
}

func (s *submitter) claimableBalanceUsable(tx data.Transaction) bool {
	return tx.ClaimableBalanceSupported && s.custody.ClaimableBalancesSupported()
}

func (s *submitter) reportSubmission(tx data.Transaction, outcome string) {
	labels := monitor.SubmissionLabels{AssetCode: tx.AssetCode, Outcome: outcome}
	_ = s.monitorService.MonitorCounters(monitor.DepositSubmissionsTag, labels.ToMap())
}
