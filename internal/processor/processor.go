// Package processor implements the pending-deposits pipeline: polling the off-chain
// rails for funded deposits, preparing the destination accounts and driving the
// submissions through the custody service, one instance at a time.
package processor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/support/log"

	"github.com/stellar/anchor-deposits-processor/internal/crashtracker"
	"github.com/stellar/anchor-deposits-processor/internal/data"
	"github.com/stellar/anchor-deposits-processor/internal/monitor"
	"github.com/stellar/anchor-deposits-processor/internal/webhooks"
	"github.com/stellar/anchor-deposits-processor/pkg/anchor"
)

// serviceName names the heartbeat row that enforces the single-instance guarantee.
const serviceName = "pending-deposits-processor"

const (
	defaultPollingInterval = 10 * time.Second
	defaultQueueSize       = 1000
)

type Options struct {
	Models             *data.Models
	HorizonClient      horizonclient.ClientInterface
	Custody            anchor.Custody
	Rails              anchor.Rails
	DepositHandler     anchor.DepositHandler
	FeeFunc            anchor.FeeFunc
	Notifier           *webhooks.Notifier
	MonitorService     monitor.MonitorServiceInterface
	CrashTrackerClient crashtracker.CrashTrackerClient

	// PollingInterval paces the periodic tasks. Zero means the default of 10s.
	PollingInterval time.Duration
	// QueueSize caps the in-memory submission queue. Zero means the default of 1000.
	QueueSize int
}

func (opts *Options) validate() error {
	if opts.Models == nil {
		return fmt.Errorf("models cannot be nil")
	}
	if opts.HorizonClient == nil {
		return fmt.Errorf("horizon client cannot be nil")
	}
	if opts.Custody == nil {
		return fmt.Errorf("custody service cannot be nil")
	}
	if opts.Rails == nil {
		return fmt.Errorf("rails cannot be nil")
	}
	if opts.Notifier == nil {
		return fmt.Errorf("notifier cannot be nil")
	}
	if opts.MonitorService == nil {
		return fmt.Errorf("monitor service cannot be nil")
	}
	if opts.CrashTrackerClient == nil {
		return fmt.Errorf("crash tracker client cannot be nil")
	}
	if opts.PollingInterval < 0 {
		return fmt.Errorf("polling interval cannot be negative")
	}
	if opts.QueueSize < 0 {
		return fmt.Errorf("queue size cannot be negative")
	}
	return nil
}

// Processor owns the whole pipeline. Run blocks until the context ends or a shutdown
// signal arrives.
type Processor struct {
	heartbeat          *heartbeatLock
	queue              *submissionQueue
	taskRunner         *taskRunner
	submitter          *submitter
	crashTrackerClient crashtracker.CrashTrackerClient
}

func NewProcessor(opts Options) (*Processor, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("validating processor options: %w", err)
	}

	interval := opts.PollingInterval
	if interval == 0 {
		interval = defaultPollingInterval
	}
	queueSize := opts.QueueSize
	if queueSize == 0 {
		queueSize = defaultQueueSize
	}

	queue, err := newSubmissionQueue(queueSize, opts.Models.Transactions, opts.MonitorService)
	if err != nil {
		return nil, fmt.Errorf("creating submission queue: %w", err)
	}

	checker := &accountChecker{
		txModel:       opts.Models.Transactions,
		horizonClient: opts.HorizonClient,
		custody:       opts.Custody,
		queue:         queue,
		notifier:      opts.Notifier,
	}

	tasks := []Task{
		newRailsPollerTask(opts.Models.Transactions, opts.Rails, opts.FeeFunc, checker, opts.MonitorService, interval),
		newTrustlineCheckerTask(opts.Models.Transactions, opts.HorizonClient, queue, opts.Notifier, interval),
		newScavengerTask(opts.Models.Transactions, queue, opts.Notifier, interval),
	}
	if !opts.Custody.AccountCreationSupported() {
		// only needed when deposits can park waiting for the user to fund the account
		tasks = append(tasks, newPendingFundingTask(checker, interval))
	}

	depositHandler := opts.DepositHandler
	if depositHandler == nil {
		depositHandler = noopDepositHandler{}
	}

	return &Processor{
		heartbeat:  newHeartbeatLock(serviceName, opts.Models.Heartbeats, opts.MonitorService),
		queue:      queue,
		taskRunner: newTaskRunner(opts.CrashTrackerClient, tasks...),
		submitter: &submitter{
			txModel:            opts.Models.Transactions,
			queue:              queue,
			locks:              newLockRegistry(),
			custody:            opts.Custody,
			depositHandler:     depositHandler,
			horizonClient:      opts.HorizonClient,
			notifier:           opts.Notifier,
			monitorService:     opts.MonitorService,
			crashTrackerClient: opts.CrashTrackerClient.Clone(),
		},
		crashTrackerClient: opts.CrashTrackerClient,
	}, nil
}

// Run acquires the heartbeat lock, rehydrates the submission queue and keeps the tasks
// and the submitter running until the context ends or a shutdown signal arrives.
func (p *Processor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	defer p.crashTrackerClient.FlushEvents(2 * time.Second)
	defer p.crashTrackerClient.Recover()

	if err := p.heartbeat.Acquire(ctx); err != nil {
		return err
	}
	// the run context is already canceled by the time shutdown gets here
	defer p.heartbeat.Release(context.Background())

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(signalChan)
	go func() {
		select {
		case sig := <-signalChan:
			log.Ctx(ctx).Infof("Received signal %v, shutting down...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Ctx(ctx).Info("Starting pending deposits processor...")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.heartbeat.RunRefresher(ctx)
	}()
	go func() {
		defer wg.Done()
		p.submitter.Run(ctx)
	}()

	// The submitter is already draining, so a backlog larger than the queue capacity
	// makes Rehydrate wait for room instead of deadlocking startup. A signal still
	// cancels the blocked enqueue.
	if err := p.queue.Rehydrate(ctx); err != nil {
		cancel()
		wg.Wait()
		return fmt.Errorf("rehydrating submission queue: %w", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.taskRunner.Run(ctx)
	}()
	wg.Wait()

	log.Ctx(ctx).Info("Pending deposits processor stopped")
	return nil
}

// noopDepositHandler stands in when the anchor registers no post-deposit hook.
type noopDepositHandler struct{}

func (noopDepositHandler) AfterDeposit(context.Context, anchor.Deposit) error {
	return anchor.ErrNotImplemented
}
