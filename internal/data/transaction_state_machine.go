package data

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// TransactionStatus is the SEP-facing status of a deposit transaction.
type TransactionStatus string

const (
	// TransactionStatusPendingUserTransferStart indicates the deposit is waiting for the user
	// to send off-chain funds to the anchor.
	TransactionStatusPendingUserTransferStart TransactionStatus = "pending_user_transfer_start"
	// TransactionStatusPendingExternal indicates the off-chain transfer is in flight on an
	// external network.
	TransactionStatusPendingExternal TransactionStatus = "pending_external"
	// TransactionStatusPendingUser indicates the deposit needs user action before it can
	// proceed (e.g. the custody service cannot create the destination account).
	TransactionStatusPendingUser TransactionStatus = "pending_user"
	// TransactionStatusPendingAnchor indicates the deposit is being processed by the anchor.
	TransactionStatusPendingAnchor TransactionStatus = "pending_anchor"
	// TransactionStatusPendingTrust indicates the destination account is missing a trustline
	// for the deposited asset.
	TransactionStatusPendingTrust TransactionStatus = "pending_trust"
	// TransactionStatusCompleted indicates the on-chain payment was confirmed.
	TransactionStatusCompleted TransactionStatus = "completed"
	// TransactionStatusError indicates the deposit failed terminally.
	TransactionStatusError TransactionStatus = "error"
)

func (status TransactionStatus) All() []TransactionStatus {
	return []TransactionStatus{
		TransactionStatusPendingUserTransferStart,
		TransactionStatusPendingExternal,
		TransactionStatusPendingUser,
		TransactionStatusPendingAnchor,
		TransactionStatusPendingTrust,
		TransactionStatusCompleted,
		TransactionStatusError,
	}
}

func (status TransactionStatus) Validate() error {
	if slices.Contains(TransactionStatus("").All(), status) {
		return nil
	}
	return fmt.Errorf("invalid transaction status: %s", status)
}

// SubmissionStatus is the processor-internal status that tracks where a deposit stands in
// the submission pipeline. It is empty until the processor picks the row up.
type SubmissionStatus string

const (
	// SubmissionStatusNone marks rows the processor has not routed yet.
	SubmissionStatusNone SubmissionStatus = ""
	// SubmissionStatusPendingFunding marks funded deposits whose destination account does
	// not exist and cannot be created by the custody service.
	SubmissionStatusPendingFunding SubmissionStatus = "pending_funding"
	// SubmissionStatusReady marks deposits queued for submission.
	SubmissionStatusReady SubmissionStatus = "ready"
	// SubmissionStatusProcessing marks deposits the submitter is actively working on.
	SubmissionStatusProcessing SubmissionStatus = "processing"
	// SubmissionStatusPending marks deposits whose submission outcome is unknown (e.g. a
	// Horizon timeout); they are retried.
	SubmissionStatusPending SubmissionStatus = "pending"
	// SubmissionStatusPendingTrust marks deposits parked until the destination account
	// establishes a trustline.
	SubmissionStatusPendingTrust SubmissionStatus = "pending_trust"
	// SubmissionStatusBlocked marks deposits that need operator intervention.
	SubmissionStatusBlocked SubmissionStatus = "blocked"
	// SubmissionStatusUnblocked marks deposits released by an operator, awaiting pickup.
	SubmissionStatusUnblocked SubmissionStatus = "unblocked"
	// SubmissionStatusFailed marks terminally failed deposits.
	SubmissionStatusFailed SubmissionStatus = "failed"
	// SubmissionStatusCompleted marks successfully submitted deposits.
	SubmissionStatusCompleted SubmissionStatus = "completed"
)

func (status SubmissionStatus) All() []SubmissionStatus {
	return []SubmissionStatus{
		SubmissionStatusNone,
		SubmissionStatusPendingFunding,
		SubmissionStatusReady,
		SubmissionStatusProcessing,
		SubmissionStatusPending,
		SubmissionStatusPendingTrust,
		SubmissionStatusBlocked,
		SubmissionStatusUnblocked,
		SubmissionStatusFailed,
		SubmissionStatusCompleted,
	}
}

func (status SubmissionStatus) Validate() error {
	if slices.Contains(SubmissionStatus("").All(), status) {
		return nil
	}
	return fmt.Errorf("invalid submission status: %s", status)
}

// TransactionState is the composite (status, submission status) pair the state machine
// operates on. Both fields always move together through a single guarded update.
type TransactionState struct {
	Status           TransactionStatus
	SubmissionStatus SubmissionStatus
}

// State flattens the pair into a single state-machine node.
func (ts TransactionState) State() State {
	return State(fmt.Sprintf("%s/%s", ts.Status, ts.SubmissionStatus))
}

// CanTransitionTo verifies if the transition is allowed.
func (ts TransactionState) CanTransitionTo(target TransactionState) error {
	return transactionStateMachineWithInitialState(ts).TransitionTo(target.State())
}

func newState(status TransactionStatus, submissionStatus SubmissionStatus) TransactionState {
	return TransactionState{Status: status, SubmissionStatus: submissionStatus}
}

// transactionStateMachineWithInitialState returns the state machine for deposit
// transactions, initialized with the given composite state.
func transactionStateMachineWithInitialState(initialState TransactionState) *StateMachine {
	var (
		// Entry states: rows created by the SEP layer before the processor touches them.
		awaitingTransfer = newState(TransactionStatusPendingUserTransferStart, SubmissionStatusNone)
		externalTransfer = newState(TransactionStatusPendingExternal, SubmissionStatusNone)
		// Rows parked by a multisig flow: already pending_anchor but not yet routed.
		anchorUnrouted = newState(TransactionStatusPendingAnchor, SubmissionStatusNone)

		pendingFunding = newState(TransactionStatusPendingUser, SubmissionStatusPendingFunding)
		ready          = newState(TransactionStatusPendingAnchor, SubmissionStatusReady)
		processing     = newState(TransactionStatusPendingAnchor, SubmissionStatusProcessing)
		pending        = newState(TransactionStatusPendingAnchor, SubmissionStatusPending)
		pendingTrust   = newState(TransactionStatusPendingTrust, SubmissionStatusPendingTrust)
		blocked        = newState(TransactionStatusPendingAnchor, SubmissionStatusBlocked)
		unblocked      = newState(TransactionStatusPendingAnchor, SubmissionStatusUnblocked)
		completed      = newState(TransactionStatusCompleted, SubmissionStatusCompleted)
		failed         = newState(TransactionStatusError, SubmissionStatusFailed)
	)

	transitions := []StateTransition{
		// The rails confirm off-chain funds arrived, and the deposit is routed based on the
		// destination account state and the custody capabilities.
		{From: awaitingTransfer.State(), To: pendingFunding.State()},
		{From: awaitingTransfer.State(), To: ready.State()},
		{From: awaitingTransfer.State(), To: pendingTrust.State()},
		{From: awaitingTransfer.State(), To: failed.State()},
		{From: externalTransfer.State(), To: pendingFunding.State()},
		{From: externalTransfer.State(), To: ready.State()},
		{From: externalTransfer.State(), To: pendingTrust.State()},
		{From: externalTransfer.State(), To: failed.State()},
		{From: anchorUnrouted.State(), To: ready.State()},
		{From: anchorUnrouted.State(), To: failed.State()},

		// The destination account shows up on the network.
		{From: pendingFunding.State(), To: ready.State()},
		{From: pendingFunding.State(), To: pendingTrust.State()},
		{From: pendingFunding.State(), To: failed.State()},

		// The submitter dequeues the deposit.
		{From: ready.State(), To: processing.State()},
		{From: ready.State(), To: failed.State()},

		// Submission attempt outcomes. processing->processing covers retries inside a single
		// submitter pass (e.g. after an account-creation step).
		{From: processing.State(), To: processing.State()},
		{From: processing.State(), To: pending.State()},
		{From: processing.State(), To: blocked.State()},
		{From: processing.State(), To: ready.State()},
		{From: processing.State(), To: pendingTrust.State()},
		{From: processing.State(), To: completed.State()},
		{From: processing.State(), To: failed.State()},

		// A pending (unknown outcome) submission is retried.
		{From: pending.State(), To: processing.State()},
		{From: pending.State(), To: failed.State()},

		// Only an operator releases a blocked deposit.
		{From: blocked.State(), To: unblocked.State()},
		{From: unblocked.State(), To: ready.State()},
		{From: unblocked.State(), To: failed.State()},

		// The trustline checker found the asset trustline.
		{From: pendingTrust.State(), To: ready.State()},
		{From: pendingTrust.State(), To: failed.State()},
	}

	return NewStateMachine(initialState.State(), transitions)
}
