package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_TransactionState_State(t *testing.T) {
	ts := TransactionState{Status: TransactionStatusPendingAnchor, SubmissionStatus: SubmissionStatusReady}
	assert.Equal(t, State("pending_anchor/ready"), ts.State())

	ts = TransactionState{Status: TransactionStatusPendingUserTransferStart, SubmissionStatus: SubmissionStatusNone}
	assert.Equal(t, State("pending_user_transfer_start/"), ts.State())
}

func Test_TransactionState_CanTransitionTo(t *testing.T) {
	testCases := []struct {
		from    TransactionState
		to      TransactionState
		allowed bool
	}{
		// routing a funded deposit
		{newState(TransactionStatusPendingUserTransferStart, SubmissionStatusNone), newState(TransactionStatusPendingAnchor, SubmissionStatusReady), true},
		{newState(TransactionStatusPendingUserTransferStart, SubmissionStatusNone), newState(TransactionStatusPendingUser, SubmissionStatusPendingFunding), true},
		{newState(TransactionStatusPendingUserTransferStart, SubmissionStatusNone), newState(TransactionStatusPendingTrust, SubmissionStatusPendingTrust), true},
		{newState(TransactionStatusPendingUserTransferStart, SubmissionStatusNone), newState(TransactionStatusError, SubmissionStatusFailed), true},
		{newState(TransactionStatusPendingExternal, SubmissionStatusNone), newState(TransactionStatusPendingAnchor, SubmissionStatusReady), true},
		{newState(TransactionStatusPendingAnchor, SubmissionStatusNone), newState(TransactionStatusPendingAnchor, SubmissionStatusReady), true},

		// submission lifecycle
		{newState(TransactionStatusPendingAnchor, SubmissionStatusReady), newState(TransactionStatusPendingAnchor, SubmissionStatusProcessing), true},
		{newState(TransactionStatusPendingAnchor, SubmissionStatusProcessing), newState(TransactionStatusPendingAnchor, SubmissionStatusProcessing), true},
		{newState(TransactionStatusPendingAnchor, SubmissionStatusProcessing), newState(TransactionStatusPendingAnchor, SubmissionStatusPending), true},
		{newState(TransactionStatusPendingAnchor, SubmissionStatusProcessing), newState(TransactionStatusCompleted, SubmissionStatusCompleted), true},
		{newState(TransactionStatusPendingAnchor, SubmissionStatusProcessing), newState(TransactionStatusPendingTrust, SubmissionStatusPendingTrust), true},
		{newState(TransactionStatusPendingAnchor, SubmissionStatusPending), newState(TransactionStatusPendingAnchor, SubmissionStatusProcessing), true},

		// operator intervention
		{newState(TransactionStatusPendingAnchor, SubmissionStatusProcessing), newState(TransactionStatusPendingAnchor, SubmissionStatusBlocked), true},
		{newState(TransactionStatusPendingAnchor, SubmissionStatusBlocked), newState(TransactionStatusPendingAnchor, SubmissionStatusUnblocked), true},
		{newState(TransactionStatusPendingAnchor, SubmissionStatusUnblocked), newState(TransactionStatusPendingAnchor, SubmissionStatusReady), true},

		// parked rows rejoining the pipeline
		{newState(TransactionStatusPendingTrust, SubmissionStatusPendingTrust), newState(TransactionStatusPendingAnchor, SubmissionStatusReady), true},
		{newState(TransactionStatusPendingUser, SubmissionStatusPendingFunding), newState(TransactionStatusPendingAnchor, SubmissionStatusReady), true},
		{newState(TransactionStatusPendingUser, SubmissionStatusPendingFunding), newState(TransactionStatusPendingTrust, SubmissionStatusPendingTrust), true},

		// disallowed moves
		{newState(TransactionStatusPendingUserTransferStart, SubmissionStatusNone), newState(TransactionStatusCompleted, SubmissionStatusCompleted), false},
		{newState(TransactionStatusPendingAnchor, SubmissionStatusReady), newState(TransactionStatusCompleted, SubmissionStatusCompleted), false},
		{newState(TransactionStatusPendingAnchor, SubmissionStatusBlocked), newState(TransactionStatusPendingAnchor, SubmissionStatusReady), false},
		{newState(TransactionStatusCompleted, SubmissionStatusCompleted), newState(TransactionStatusPendingAnchor, SubmissionStatusReady), false},
		{newState(TransactionStatusError, SubmissionStatusFailed), newState(TransactionStatusPendingAnchor, SubmissionStatusReady), false},
		{newState(TransactionStatusPendingAnchor, SubmissionStatusPending), newState(TransactionStatusPendingAnchor, SubmissionStatusReady), false},
	}

	for _, tc := range testCases {
		name := string(tc.from.State()) + "->" + string(tc.to.State())
		t.Run(name, func(t *testing.T) {
			err := tc.from.CanTransitionTo(tc.to)
			if tc.allowed {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.ErrorContains(t, err, "cannot transition from")
			}
		})
	}
}

func Test_TransactionStatus_Validate(t *testing.T) {
	for _, status := range TransactionStatus("").All() {
		require.NoError(t, status.Validate())
	}
	require.EqualError(t, TransactionStatus("FOO").Validate(), "invalid transaction status: FOO")
}

func Test_SubmissionStatus_Validate(t *testing.T) {
	for _, status := range SubmissionStatus("").All() {
		require.NoError(t, status.Validate())
	}
	require.EqualError(t, SubmissionStatus("FOO").Validate(), "invalid submission status: FOO")
}
