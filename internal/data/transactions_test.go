package data

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/anchor-deposits-processor/db"
	"github.com/stellar/anchor-deposits-processor/db/dbtest"
)

func Test_TransactionModel_Insert(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()
	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	ctx := context.Background()
	txModel := NewTransactionModel(dbConnectionPool)

	t.Run("returns an error for an invalid asset code", func(t *testing.T) {
		_, err := txModel.Insert(ctx, Transaction{
			Kind:      TransactionKindDeposit,
			AssetCode: "THISCODEISWAYTOOLONG",
			ToAddress: "GCBIRB7Q5T53H4L6P5QSI3O6LPD5MBWGM5GHE7A5NY4XT5OT4VCOEZFX",
		})
		require.ErrorContains(t, err, "asset code must have between 1 and 12 characters")
	})

	t.Run("returns an error for a missing asset issuer", func(t *testing.T) {
		_, err := txModel.Insert(ctx, Transaction{
			Kind:      TransactionKindDeposit,
			AssetCode: "USDC",
			ToAddress: "GCBIRB7Q5T53H4L6P5QSI3O6LPD5MBWGM5GHE7A5NY4XT5OT4VCOEZFX",
		})
		require.ErrorContains(t, err, "asset issuer is required")
	})

	t.Run("returns an error for an invalid destination", func(t *testing.T) {
		_, err := txModel.Insert(ctx, Transaction{
			Kind:        TransactionKindDeposit,
			AssetCode:   "USDC",
			AssetIssuer: "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN",
			ToAddress:   "not-an-address",
		})
		require.ErrorContains(t, err, "is not a valid ed25519 public key or muxed account")
	})

	t.Run("returns an error for a deposit-exchange without a quote", func(t *testing.T) {
		_, err := txModel.Insert(ctx, Transaction{
			Kind:        TransactionKindDepositExchange,
			AssetCode:   "USDC",
			AssetIssuer: "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN",
			ToAddress:   "GCBIRB7Q5T53H4L6P5QSI3O6LPD5MBWGM5GHE7A5NY4XT5OT4VCOEZFX",
		})
		require.ErrorContains(t, err, "quote ID is required")
	})

	t.Run("🎉 successfully inserts a deposit with default status", func(t *testing.T) {
		defer DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)

		insertedTx, err := txModel.Insert(ctx, Transaction{
			Kind:                      TransactionKindDeposit,
			AssetCode:                 "USDC",
			AssetIssuer:               "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN",
			AssetSignificantDecimals:  7,
			ToAddress:                 "GCBIRB7Q5T53H4L6P5QSI3O6LPD5MBWGM5GHE7A5NY4XT5OT4VCOEZFX",
			ClaimableBalanceSupported: true,
			CallbackURL:               "https://example.com/callbacks",
		})
		require.NoError(t, err)

		assert.NotEmpty(t, insertedTx.ID)
		assert.Equal(t, TransactionStatusPendingUserTransferStart, insertedTx.Status)
		assert.Equal(t, SubmissionStatusNone, insertedTx.SubmissionStatus)
		assert.True(t, insertedTx.ClaimableBalanceSupported)
		assert.Equal(t, "https://example.com/callbacks", insertedTx.CallbackURL)
		assert.NotNil(t, insertedTx.CreatedAt)
		assert.Nil(t, insertedTx.QueuedAt)
	})
}

func Test_TransactionModel_Get(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()
	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	ctx := context.Background()
	txModel := NewTransactionModel(dbConnectionPool)

	t.Run("returns ErrRecordNotFound for a missing row", func(t *testing.T) {
		_, err := txModel.Get(ctx, dbConnectionPool, "aa521309-5f76-4e02-b948-5bb08b1a4411")
		require.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("🎉 successfully gets a row", func(t *testing.T) {
		defer DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)
		fixture := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{})

		gotTx, err := txModel.Get(ctx, dbConnectionPool, fixture.ID)
		require.NoError(t, err)
		assert.Equal(t, fixture.ID, gotTx.ID)
		assert.Equal(t, "USDC", gotTx.AssetCode)
	})
}

func Test_TransactionModel_GetPendingDeposits(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()
	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	ctx := context.Background()
	txModel := NewTransactionModel(dbConnectionPool)
	defer DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)

	awaiting := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
		Status: TransactionStatusPendingUserTransferStart,
	})
	external := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
		Status: TransactionStatusPendingExternal,
	})
	// already routed, must not come back
	CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
		Status:           TransactionStatusPendingAnchor,
		SubmissionStatus: SubmissionStatusReady,
		Queue:            SubmitTransactionQueueName,
	})
	CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
		Status:           TransactionStatusError,
		SubmissionStatus: SubmissionStatusFailed,
	})

	pendingDeposits, err := txModel.GetPendingDeposits(ctx)
	require.NoError(t, err)

	require.Len(t, pendingDeposits, 2)
	gotIDs := []string{pendingDeposits[0].ID, pendingDeposits[1].ID}
	assert.ElementsMatch(t, []string{awaiting.ID, external.ID}, gotIDs)
}

func Test_TransactionModel_GetQueuedForResubmission(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()
	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	ctx := context.Background()
	txModel := NewTransactionModel(dbConnectionPool)
	defer DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)

	now := time.Now()
	second := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
		Status:           TransactionStatusPendingAnchor,
		SubmissionStatus: SubmissionStatusProcessing,
		Queue:            SubmitTransactionQueueName,
		QueuedAt:         timePtr(now.Add(-1 * time.Minute)),
	})
	first := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
		Status:           TransactionStatusPendingAnchor,
		SubmissionStatus: SubmissionStatusReady,
		Queue:            SubmitTransactionQueueName,
		QueuedAt:         timePtr(now.Add(-2 * time.Minute)),
	})
	third := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
		Status:           TransactionStatusPendingAnchor,
		SubmissionStatus: SubmissionStatusPending,
		Queue:            SubmitTransactionQueueName,
		QueuedAt:         timePtr(now.Add(-30 * time.Second)),
	})
	// not claimed by the queue, must not come back
	CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
		Status:           TransactionStatusPendingAnchor,
		SubmissionStatus: SubmissionStatusBlocked,
	})
	CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
		Status: TransactionStatusPendingUserTransferStart,
	})

	queuedTxs, err := txModel.GetQueuedForResubmission(ctx, SubmitTransactionQueueName)
	require.NoError(t, err)

	require.Len(t, queuedTxs, 3)
	assert.Equal(t, first.ID, queuedTxs[0].ID)
	assert.Equal(t, second.ID, queuedTxs[1].ID)
	assert.Equal(t, third.ID, queuedTxs[2].ID)
}

func Test_TransactionModel_GetUnblockedOrSigned(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()
	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	ctx := context.Background()
	txModel := NewTransactionModel(dbConnectionPool)
	defer DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)

	unblocked := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
		Status:           TransactionStatusPendingAnchor,
		SubmissionStatus: SubmissionStatusUnblocked,
	})
	signed := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
		Status:            TransactionStatusPendingAnchor,
		PendingSignatures: false,
		EnvelopeXDR:       "AAAAAgAAAAA=",
	})
	// still collecting signatures, must not come back
	CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
		Status:            TransactionStatusPendingAnchor,
		PendingSignatures: true,
		EnvelopeXDR:       "AAAAAgAAAAA=",
	})
	// already claimed by the queue, must not come back
	CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
		Status:           TransactionStatusPendingAnchor,
		SubmissionStatus: SubmissionStatusReady,
		Queue:            SubmitTransactionQueueName,
		QueuedAt:         timePtr(time.Now()),
	})

	transactions, err := txModel.GetUnblockedOrSigned(ctx)
	require.NoError(t, err)

	require.Len(t, transactions, 2)
	gotIDs := []string{transactions[0].ID, transactions[1].ID}
	assert.ElementsMatch(t, []string{unblocked.ID, signed.ID}, gotIDs)
}

func Test_TransactionModel_kindScoping(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()
	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	ctx := context.Background()
	txModel := NewTransactionModel(dbConnectionPool)

	t.Run("the schema rejects kinds the processor does not own", func(t *testing.T) {
		_, insertErr := dbConnectionPool.ExecContext(ctx, `
			INSERT INTO deposit_transactions (kind, asset_code, asset_issuer, to_address)
			VALUES ('withdrawal', 'USDC', $1, $2)`,
			"GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN",
			"GCBIRB7Q5T53H4L6P5QSI3O6LPD5MBWGM5GHE7A5NY4XT5OT4VCOEZFX",
		)
		require.ErrorContains(t, insertErr, "deposit_transactions_kind_check")
	})

	t.Run("queries skip rows of other kinds sharing the table", func(t *testing.T) {
		_, execErr := dbConnectionPool.ExecContext(ctx, "ALTER TABLE deposit_transactions DROP CONSTRAINT deposit_transactions_kind_check")
		require.NoError(t, execErr)
		defer func() {
			_, addErr := dbConnectionPool.ExecContext(ctx, "ALTER TABLE deposit_transactions ADD CONSTRAINT deposit_transactions_kind_check CHECK (kind IN ('deposit', 'deposit-exchange'))")
			require.NoError(t, addErr)
		}()
		defer DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)

		deposit := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
			Status: TransactionStatusPendingUserTransferStart,
		})
		queuedDeposit := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
			Status:           TransactionStatusPendingAnchor,
			SubmissionStatus: SubmissionStatusReady,
			Queue:            SubmitTransactionQueueName,
			QueuedAt:         timePtr(time.Now()),
		})
		// withdrawal rows in every shape the queries look for
		CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
			Kind:   TransactionKind("withdrawal"),
			Status: TransactionStatusPendingUserTransferStart,
		})
		CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
			Kind:             TransactionKind("withdrawal"),
			Status:           TransactionStatusPendingAnchor,
			SubmissionStatus: SubmissionStatusReady,
			Queue:            SubmitTransactionQueueName,
			QueuedAt:         timePtr(time.Now()),
		})
		CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
			Kind:             TransactionKind("withdrawal"),
			Status:           TransactionStatusPendingTrust,
			SubmissionStatus: SubmissionStatusPendingTrust,
		})
		CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
			Kind:             TransactionKind("withdrawal"),
			Status:           TransactionStatusPendingAnchor,
			SubmissionStatus: SubmissionStatusUnblocked,
		})

		pendingDeposits, listErr := txModel.GetPendingDeposits(ctx)
		require.NoError(t, listErr)
		require.Len(t, pendingDeposits, 1)
		assert.Equal(t, deposit.ID, pendingDeposits[0].ID)

		queuedTxs, listErr := txModel.GetQueuedForResubmission(ctx, SubmitTransactionQueueName)
		require.NoError(t, listErr)
		require.Len(t, queuedTxs, 1)
		assert.Equal(t, queuedDeposit.ID, queuedTxs[0].ID)

		pendingTrust, listErr := txModel.GetPendingTrust(ctx)
		require.NoError(t, listErr)
		assert.Empty(t, pendingTrust)

		unblocked, listErr := txModel.GetUnblockedOrSigned(ctx)
		require.NoError(t, listErr)
		assert.Empty(t, unblocked)
	})
}

func Test_TransactionModel_MarkAsReady(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()
	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	ctx := context.Background()
	txModel := NewTransactionModel(dbConnectionPool)

	t.Run("returns an error for a disallowed transition", func(t *testing.T) {
		defer DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)
		fixture := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
			Status:           TransactionStatusCompleted,
			SubmissionStatus: SubmissionStatusCompleted,
		})

		_, err := txModel.MarkAsReady(ctx, dbConnectionPool, *fixture)
		require.ErrorContains(t, err, "cannot transition from completed/completed to pending_anchor/ready")
	})

	t.Run("🎉 successfully claims the row for the queue", func(t *testing.T) {
		defer DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)
		fixture := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{})

		updatedTx, err := txModel.MarkAsReady(ctx, dbConnectionPool, *fixture)
		require.NoError(t, err)

		assert.Equal(t, TransactionStatusPendingAnchor, updatedTx.Status)
		assert.Equal(t, SubmissionStatusReady, updatedTx.SubmissionStatus)
		assert.Equal(t, SubmitTransactionQueueName, updatedTx.Queue)
		require.NotNil(t, updatedTx.QueuedAt)
	})

	t.Run("🎉 preserves queued_at across re-queues", func(t *testing.T) {
		defer DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)
		fixture := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{})

		readyTx, err := txModel.MarkAsReady(ctx, dbConnectionPool, *fixture)
		require.NoError(t, err)
		originalQueuedAt := *readyTx.QueuedAt

		processingTx, err := txModel.MarkAsProcessing(ctx, dbConnectionPool, *readyTx)
		require.NoError(t, err)

		requeuedTx, err := txModel.MarkAsReady(ctx, dbConnectionPool, *processingTx)
		require.NoError(t, err)
		require.NotNil(t, requeuedTx.QueuedAt)
		assert.True(t, originalQueuedAt.Equal(*requeuedTx.QueuedAt))
	})
}

func Test_TransactionModel_MarkAsPendingTrust(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()
	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	ctx := context.Background()
	txModel := NewTransactionModel(dbConnectionPool)
	defer DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)

	fixture := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
		Status:           TransactionStatusPendingAnchor,
		SubmissionStatus: SubmissionStatusProcessing,
		Queue:            SubmitTransactionQueueName,
		QueuedAt:         timePtr(time.Now()),
	})

	updatedTx, err := txModel.MarkAsPendingTrust(ctx, dbConnectionPool, *fixture)
	require.NoError(t, err)

	assert.Equal(t, TransactionStatusPendingTrust, updatedTx.Status)
	assert.Equal(t, SubmissionStatusPendingTrust, updatedTx.SubmissionStatus)
	assert.Empty(t, updatedTx.Queue)
	assert.Nil(t, updatedTx.QueuedAt)
}

func Test_TransactionModel_MarkAsBlocked(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()
	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	ctx := context.Background()
	txModel := NewTransactionModel(dbConnectionPool)
	defer DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)

	fixture := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
		Status:           TransactionStatusPendingAnchor,
		SubmissionStatus: SubmissionStatusProcessing,
		Queue:            SubmitTransactionQueueName,
		QueuedAt:         timePtr(time.Now()),
	})

	blockedTx, err := txModel.MarkAsBlocked(ctx, dbConnectionPool, *fixture, "distribution account is not ready")
	require.NoError(t, err)

	assert.Equal(t, TransactionStatusPendingAnchor, blockedTx.Status)
	assert.Equal(t, SubmissionStatusBlocked, blockedTx.SubmissionStatus)
	assert.Equal(t, "distribution account is not ready", blockedTx.StatusMessage)
	assert.Empty(t, blockedTx.Queue)
	assert.Nil(t, blockedTx.QueuedAt)

	unblockedTx, err := txModel.MarkAsUnblocked(ctx, dbConnectionPool, *blockedTx)
	require.NoError(t, err)
	assert.Equal(t, SubmissionStatusUnblocked, unblockedTx.SubmissionStatus)
}

func Test_TransactionModel_MarkAsError(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()
	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	ctx := context.Background()
	txModel := NewTransactionModel(dbConnectionPool)
	defer DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)

	fixture := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
		Status:           TransactionStatusPendingAnchor,
		SubmissionStatus: SubmissionStatusProcessing,
		Queue:            SubmitTransactionQueueName,
		QueuedAt:         timePtr(time.Now()),
	})

	failedTx, err := txModel.MarkAsError(ctx, dbConnectionPool, *fixture, "tx_failed: op_underfunded")
	require.NoError(t, err)

	assert.Equal(t, TransactionStatusError, failedTx.Status)
	assert.Equal(t, SubmissionStatusFailed, failedTx.SubmissionStatus)
	assert.Equal(t, "tx_failed: op_underfunded", failedTx.StatusMessage)
	assert.NotNil(t, failedTx.CompletedAt)
	assert.Empty(t, failedTx.Queue)
	assert.Nil(t, failedTx.QueuedAt)
}

func Test_TransactionModel_MarkAsCompleted(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()
	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	ctx := context.Background()
	txModel := NewTransactionModel(dbConnectionPool)

	const stellarTransactionID = "26d9fca399a4172c588f34c7c5c7f1dcef9d3a7bb0c291d7faf8fc788000a4bc"

	t.Run("returns an error for an invalid hash", func(t *testing.T) {
		defer DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)
		fixture := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
			Status:           TransactionStatusPendingAnchor,
			SubmissionStatus: SubmissionStatusProcessing,
		})

		_, err := txModel.MarkAsCompleted(ctx, dbConnectionPool, *fixture, "short-hash", "123")
		require.ErrorContains(t, err, `invalid stellar transaction ID "short-hash"`)
	})

	t.Run("🎉 successfully completes the row", func(t *testing.T) {
		defer DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)
		fixture := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
			Status:           TransactionStatusPendingAnchor,
			SubmissionStatus: SubmissionStatusProcessing,
			Queue:            SubmitTransactionQueueName,
			QueuedAt:         timePtr(time.Now()),
		})

		completedTx, err := txModel.MarkAsCompleted(ctx, dbConnectionPool, *fixture, stellarTransactionID, "26148125623714817-1")
		require.NoError(t, err)

		assert.Equal(t, TransactionStatusCompleted, completedTx.Status)
		assert.Equal(t, SubmissionStatusCompleted, completedTx.SubmissionStatus)
		assert.Equal(t, stellarTransactionID, completedTx.StellarTransactionID)
		assert.NotNil(t, completedTx.CompletedAt)
		assert.Empty(t, completedTx.Queue)
		assert.Nil(t, completedTx.QueuedAt)
	})
}

func Test_TransactionModel_UpdateAmounts(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()
	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	ctx := context.Background()
	txModel := NewTransactionModel(dbConnectionPool)
	defer DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)

	fixture := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{})

	amountIn := decimal.NewNullDecimal(decimal.RequireFromString("100.50"))
	amountFee := decimal.NewNullDecimal(decimal.RequireFromString("0.5"))
	amountOut := decimal.NewNullDecimal(decimal.RequireFromString("100"))

	updatedTx, err := txModel.UpdateAmounts(ctx, dbConnectionPool, fixture.ID, amountIn, amountFee, amountOut)
	require.NoError(t, err)

	assert.True(t, updatedTx.AmountIn.Valid)
	assert.True(t, updatedTx.AmountIn.Decimal.Equal(decimal.RequireFromString("100.50")))
	assert.True(t, updatedTx.AmountFee.Decimal.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, updatedTx.AmountOut.Decimal.Equal(decimal.RequireFromString("100")))
}

func Test_TransactionModel_ClearSubmissionArtifacts(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()
	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	ctx := context.Background()
	txModel := NewTransactionModel(dbConnectionPool)
	defer DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)

	fixture := CreateTransactionFixture(t, ctx, dbConnectionPool, Transaction{
		Status:               TransactionStatusPendingTrust,
		SubmissionStatus:     SubmissionStatusPendingTrust,
		EnvelopeXDR:          "AAAAAgAAAAA=",
		StellarTransactionID: "26d9fca399a4172c588f34c7c5c7f1dcef9d3a7bb0c291d7faf8fc788000a4bc",
	})

	updatedTx, err := txModel.ClearSubmissionArtifacts(ctx, dbConnectionPool, fixture.ID)
	require.NoError(t, err)

	assert.Empty(t, updatedTx.EnvelopeXDR)
	assert.Empty(t, updatedTx.StellarTransactionID)
}

func timePtr(value time.Time) *time.Time {
	return &value
}
