package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stellar/anchor-deposits-processor/db"
	"github.com/stellar/anchor-deposits-processor/internal/utils"
)

// CreateTransactionFixture inserts a deposit transaction row bypassing the model's state
// machine, so tests can start from any composite state.
func CreateTransactionFixture(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter, tx Transaction) *Transaction {
	t.Helper()

	if tx.Kind == "" {
		tx.Kind = TransactionKindDeposit
	}
	if tx.Status == "" {
		tx.Status = TransactionStatusPendingUserTransferStart
	}
	if tx.AssetCode == "" {
		tx.AssetCode = "USDC"
	}
	if tx.AssetIssuer == "" {
		tx.AssetIssuer = "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN"
	}
	if tx.AssetSignificantDecimals == 0 {
		tx.AssetSignificantDecimals = 7
	}
	if tx.ToAddress == "" {
		tx.ToAddress = "GCBIRB7Q5T53H4L6P5QSI3O6LPD5MBWGM5GHE7A5NY4XT5OT4VCOEZFX"
	}

	var queuedAt interface{}
	if tx.QueuedAt != nil {
		queuedAt = *tx.QueuedAt
	}

	const query = `
		INSERT INTO deposit_transactions
			(kind, asset_code, asset_issuer, asset_significant_decimals, quote_id, to_address, amount_in, amount_fee, amount_out, status, submission_status, status_message, pending_signatures, envelope_xdr, claimable_balance_supported, claimable_balance_id, stellar_transaction_id, queue, queued_at, callback_url)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING
			` + transactionColumnNames

	var insertedTx Transaction
	err := sqlExec.GetContext(ctx, &insertedTx, query,
		tx.Kind,
		tx.AssetCode,
		tx.AssetIssuer,
		tx.AssetSignificantDecimals,
		utils.SQLNullString(tx.QuoteID),
		tx.ToAddress,
		tx.AmountIn,
		tx.AmountFee,
		tx.AmountOut,
		tx.Status,
		utils.SQLNullString(string(tx.SubmissionStatus)),
		utils.SQLNullString(tx.StatusMessage),
		tx.PendingSignatures,
		utils.SQLNullString(tx.EnvelopeXDR),
		tx.ClaimableBalanceSupported,
		utils.SQLNullString(tx.ClaimableBalanceID),
		utils.SQLNullString(tx.StellarTransactionID),
		utils.SQLNullString(tx.Queue),
		queuedAt,
		utils.SQLNullString(tx.CallbackURL),
	)
	require.NoError(t, err)

	return &insertedTx
}

// DeleteAllTransactionFixtures deletes all deposit transaction rows.
func DeleteAllTransactionFixtures(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter) {
	t.Helper()

	_, err := sqlExec.ExecContext(ctx, "DELETE FROM deposit_transactions")
	require.NoError(t, err)
}

// CreateHeartbeatFixture inserts a heartbeat row with the given age.
func CreateHeartbeatFixture(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter, name string, lastHeartbeat time.Time) *Heartbeat {
	t.Helper()

	var heartbeat Heartbeat
	const query = `
		INSERT INTO processor_heartbeats
			(name, last_heartbeat)
		VALUES
			($1, $2)
		RETURNING name, last_heartbeat
	`
	err := sqlExec.GetContext(ctx, &heartbeat, query, name, lastHeartbeat)
	require.NoError(t, err)

	return &heartbeat
}

// DeleteAllHeartbeatFixtures deletes all heartbeat rows.
func DeleteAllHeartbeatFixtures(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter) {
	t.Helper()

	_, err := sqlExec.ExecContext(ctx, "DELETE FROM processor_heartbeats")
	require.NoError(t, err)
}
