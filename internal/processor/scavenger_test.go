package processor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/anchor-deposits-processor/db"
	"github.com/stellar/anchor-deposits-processor/db/dbtest"
	"github.com/stellar/anchor-deposits-processor/internal/data"
	"github.com/stellar/anchor-deposits-processor/internal/webhooks"
)

func Test_scavengerTask_Execute(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()
	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	ctx := context.Background()
	models, err := data.NewModels(dbConnectionPool)
	require.NoError(t, err)

	queue, err := newSubmissionQueue(10, models.Transactions, nil)
	require.NoError(t, err)
	scavenger := newScavengerTask(models.Transactions, queue, newTestNotifier(t), time.Second)

	t.Run("no-op without unblocked or signed rows", func(t *testing.T) {
		require.NoError(t, scavenger.Execute(ctx))

		cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, dequeueErr := queue.Dequeue(cancelCtx)
		require.ErrorIs(t, dequeueErr, context.DeadlineExceeded)
	})

	t.Run("🎉 re-queues unblocked and fully-signed rows", func(t *testing.T) {
		defer data.DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)

		unblockedTx := data.CreateTransactionFixture(t, ctx, dbConnectionPool, data.Transaction{
			Status:           data.TransactionStatusPendingAnchor,
			SubmissionStatus: data.SubmissionStatusUnblocked,
		})
		signedTx := data.CreateTransactionFixture(t, ctx, dbConnectionPool, data.Transaction{
			Status:            data.TransactionStatusPendingAnchor,
			EnvelopeXDR:       "AAAAAgAAAAA=",
			PendingSignatures: false,
		})
		// still collecting signatures, must stay parked
		data.CreateTransactionFixture(t, ctx, dbConnectionPool, data.Transaction{
			Status:            data.TransactionStatusPendingAnchor,
			EnvelopeXDR:       "AAAAAgAAAAA=",
			PendingSignatures: true,
		})

		require.NoError(t, scavenger.Execute(ctx))

		gotIDs := map[string]bool{}
		for i := 0; i < 2; i++ {
			txID, dequeueErr := queue.Dequeue(ctx)
			require.NoError(t, dequeueErr)
			gotIDs[txID] = true
		}
		assert.True(t, gotIDs[unblockedTx.ID])
		assert.True(t, gotIDs[signedTx.ID])

		cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, dequeueErr := queue.Dequeue(cancelCtx)
		require.ErrorIs(t, dequeueErr, context.DeadlineExceeded)

		updatedTx, getErr := models.Transactions.Get(ctx, dbConnectionPool, unblockedTx.ID)
		require.NoError(t, getErr)
		assert.Equal(t, data.SubmissionStatusReady, updatedTx.SubmissionStatus)
	})

	t.Run("🎉 posts a status callback for every re-queued row", func(t *testing.T) {
		defer data.DeleteAllTransactionFixtures(t, ctx, dbConnectionPool)

		statuses := make(chan string, 2)
		callbackServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload webhooks.StatusPayload
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			statuses <- payload.Status
			w.WriteHeader(http.StatusOK)
		}))
		defer callbackServer.Close()

		data.CreateTransactionFixture(t, ctx, dbConnectionPool, data.Transaction{
			Status:           data.TransactionStatusPendingAnchor,
			SubmissionStatus: data.SubmissionStatusUnblocked,
			CallbackURL:      callbackServer.URL,
		})

		require.NoError(t, scavenger.Execute(ctx))

		select {
		case status := <-statuses:
			assert.Equal(t, string(data.TransactionStatusPendingAnchor), status)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for the status callback")
		}
	})
}
