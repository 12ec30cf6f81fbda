package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/stellar/go/support/log"

	"github.com/stellar/anchor-deposits-processor/internal/data"
	"github.com/stellar/anchor-deposits-processor/internal/monitor"
)

var ErrQueueFull = errors.New("submission queue is full")

// submissionQueue is the in-memory FIFO of transaction IDs between the routing tasks and
// the submitter. The database remains the source of truth: on restart the queue is
// rehydrated from the rows still claimed by the submission queue, in original claim
// order.
type submissionQueue struct {
	ch             chan string
	txModel        *data.TransactionModel
	monitorService monitor.MonitorServiceInterface
}

func newSubmissionQueue(size int, txModel *data.TransactionModel, monitorService monitor.MonitorServiceInterface) (*submissionQueue, error) {
	if size <= 0 {
		return nil, fmt.Errorf("queue size must be greater than zero")
	}
	if txModel == nil {
		return nil, fmt.Errorf("transaction model cannot be nil")
	}

	return &submissionQueue{
		ch:             make(chan string, size),
		txModel:        txModel,
		monitorService: monitorService,
	}, nil
}

// Enqueue adds the transaction ID to the queue, blocking when the queue is full until
// there is room or the context ends.
func (q *submissionQueue) Enqueue(ctx context.Context, txID string) error {
	select {
	case q.ch <- txID:
		q.reportDepth()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueuing transaction %s: %w", txID, ctx.Err())
	}
}

// TryEnqueue adds the transaction ID without blocking. It returns ErrQueueFull when
// there is no room; callers that also consume the queue use this instead of Enqueue,
// leaving the row claimed in the database so the next start rehydrates it.
func (q *submissionQueue) TryEnqueue(txID string) error {
	select {
	case q.ch <- txID:
		q.reportDepth()
		return nil
	default:
		return fmt.Errorf("enqueuing transaction %s: %w", txID, ErrQueueFull)
	}
}

// Dequeue blocks until an ID is available or the context ends.
func (q *submissionQueue) Dequeue(ctx context.Context) (string, error) {
	select {
	case txID := <-q.ch:
		q.reportDepth()
		return txID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Rehydrate re-enqueues the rows that were claimed for submission when the previous
// instance stopped.
func (q *submissionQueue) Rehydrate(ctx context.Context) error {
	transactions, err := q.txModel.GetQueuedForResubmission(ctx, data.SubmitTransactionQueueName)
	if err != nil {
		return fmt.Errorf("loading queued transactions: %w", err)
	}

	for _, tx := range transactions {
		if err = q.Enqueue(ctx, tx.ID); err != nil {
			return err
		}
	}

	if len(transactions) > 0 {
		log.Ctx(ctx).Infof("Rehydrated submission queue with %d transaction(s)", len(transactions))
	}

	return nil
}

func (q *submissionQueue) reportDepth() {
	if q.monitorService == nil {
		return
	}
	_ = q.monitorService.SetGauge(float64(len(q.ch)), monitor.SubmissionQueueDepthTag)
}
