package processor

import (
	"context"
	"sync"
	"time"

	"github.com/stellar/go/support/log"

	"github.com/stellar/anchor-deposits-processor/internal/crashtracker"
)

// Task is a periodic unit of work in the deposits pipeline.
type Task interface {
	Execute(ctx context.Context) error
	Name() string
	Interval() time.Duration
}

// taskWorkerCount is the number of workers that consume the task queue.
const taskWorkerCount = 3

// taskRunner fires every task on its own ticker and funnels executions through a small
// worker pool. A task that takes longer than its interval is not enqueued again until
// the running execution finishes.
type taskRunner struct {
	tasks              []Task
	taskQueue          chan Task
	crashTrackerClient crashtracker.CrashTrackerClient
	// enqueuedTasks tracks queued task names so a slow task is not stacked up.
	enqueuedTasks sync.Map
}

func newTaskRunner(crashTrackerClient crashtracker.CrashTrackerClient, tasks ...Task) *taskRunner {
	return &taskRunner{
		tasks:              tasks,
		taskQueue:          make(chan Task),
		crashTrackerClient: crashTrackerClient,
	}
}

// Run starts the workers and the per-task tickers, then blocks until the context ends.
func (r *taskRunner) Run(ctx context.Context) {
	if len(r.tasks) == 0 {
		log.Ctx(ctx).Info("No tasks to run")
		return
	}
	log.Ctx(ctx).Infof("Starting task runner with %d workers...", taskWorkerCount)

	var wg sync.WaitGroup
	for i := 1; i <= taskWorkerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			r.worker(ctx, workerID, r.crashTrackerClient.Clone())
		}(i)
	}

	for _, task := range r.tasks {
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			ticker := time.NewTicker(task.Interval())
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					taskName := task.Name()
					if _, alreadyEnqueued := r.enqueuedTasks.LoadOrStore(taskName, true); !alreadyEnqueued {
						log.Ctx(ctx).Debugf("Enqueuing task: %s", taskName)
						select {
						case r.taskQueue <- task:
						case <-ctx.Done():
							r.enqueuedTasks.Delete(taskName)
							return
						}
					} else {
						log.Ctx(ctx).Debugf("Skipping task %s, already in queue", taskName)
					}
				case <-ctx.Done():
					return
				}
			}
		}(task)
	}

	wg.Wait()
}

// worker consumes the task queue. Panics inside a task are reported through the crash
// tracker and do not take the worker down.
func (r *taskRunner) worker(ctx context.Context, workerID int, crashTrackerClient crashtracker.CrashTrackerClient) {
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Ctx(ctx).Errorf("Worker %d recovered from panic: %v", workerID, recovered)
			crashTrackerClient.LogAndReportMessages(ctx, "task worker panic watcher triggered")
			r.worker(ctx, workerID, crashTrackerClient)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-r.taskQueue:
			log.Ctx(ctx).Debugf("Worker %d processing task: %s", workerID, task.Name())
			if err := task.Execute(ctx); err != nil {
				crashTrackerClient.LogAndReportErrors(ctx, err, "executing task "+task.Name())
			}
			r.enqueuedTasks.Delete(task.Name())
		}
	}
}
