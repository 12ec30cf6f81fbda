package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/stellar/go/support/log"

	"github.com/stellar/anchor-deposits-processor/internal/data"
	"github.com/stellar/anchor-deposits-processor/internal/webhooks"
)

// scavengerTask picks up pending_anchor rows that became submittable out of band:
// deposits an operator unblocked, and multisig deposits whose envelope collected all its
// signatures.
type scavengerTask struct {
	txModel  *data.TransactionModel
	queue    *submissionQueue
	notifier *webhooks.Notifier
	interval time.Duration
}

func newScavengerTask(txModel *data.TransactionModel, queue *submissionQueue, notifier *webhooks.Notifier, interval time.Duration) *scavengerTask {
	return &scavengerTask{txModel: txModel, queue: queue, notifier: notifier, interval: interval}
}

func (t *scavengerTask) Name() string {
	return "unblocked_scavenger"
}

func (t *scavengerTask) Interval() time.Duration {
	return t.interval
}

func (t *scavengerTask) Execute(ctx context.Context) error {
	transactions, err := t.txModel.GetUnblockedOrSigned(ctx)
	if err != nil {
		return fmt.Errorf("loading unblocked or signed transactions: %w", err)
	}

	for _, tx := range transactions {
		updatedTx, markErr := t.txModel.MarkAsReady(ctx, t.txModel.DBConnectionPool, *tx)
		if markErr != nil {
			log.Ctx(ctx).Errorf("re-queuing transaction %s: %v", tx.ID, markErr)
			continue
		}
		if err = t.queue.Enqueue(ctx, updatedTx.ID); err != nil {
			return err
		}
		t.notifier.NotifyStatusChange(ctx, *updatedTx)
	}

	return nil
}

var _ Task = (*scavengerTask)(nil)
