package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/stellar/go/support/log"

	"github.com/stellar/anchor-deposits-processor/internal/data"
	"github.com/stellar/anchor-deposits-processor/internal/monitor"
)

// heartbeatInterval is how often the lock holder refreshes its heartbeat row.
const heartbeatInterval = 5 * time.Second

// minStaleThreshold is the floor for considering another instance dead.
const minStaleThreshold = 30 * time.Second

// staleThreshold returns how old a heartbeat must be before it can be taken over.
func staleThreshold() time.Duration {
	threshold := 5 * heartbeatInterval
	if threshold < minStaleThreshold {
		threshold = minStaleThreshold
	}
	return threshold
}

// heartbeatLock enforces the single-instance guarantee through the processor_heartbeats
// row. Acquire blocks until the lock is claimed; the refresher then keeps it fresh until
// shutdown.
type heartbeatLock struct {
	name           string
	model          *data.HeartbeatModel
	monitorService monitor.MonitorServiceInterface

	lastRefresh time.Time
}

func newHeartbeatLock(name string, model *data.HeartbeatModel, monitorService monitor.MonitorServiceInterface) *heartbeatLock {
	return &heartbeatLock{
		name:           name,
		model:          model,
		monitorService: monitorService,
	}
}

// Acquire blocks until the heartbeat row is claimed or the context ends. Another live
// instance holding the lock keeps this one waiting, retrying at the heartbeat interval.
func (l *heartbeatLock) Acquire(ctx context.Context) error {
	err := retry.Do(
		func() error {
			acquired, acquireErr := l.model.AcquireOrTakeOver(ctx, l.name, staleThreshold())
			if acquireErr != nil {
				return acquireErr
			}
			if !acquired {
				return fmt.Errorf("another instance %q is alive", l.name)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(0), // retry until the context ends
		retry.Delay(heartbeatInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			log.Ctx(ctx).Debugf("waiting for heartbeat lock (attempt %d): %v", attempt+1, err)
		}),
	)
	if err != nil {
		return fmt.Errorf("acquiring heartbeat lock %q: %w", l.name, err)
	}

	l.lastRefresh = time.Now()
	log.Ctx(ctx).Infof("Acquired heartbeat lock %q", l.name)
	return nil
}

// RunRefresher keeps the heartbeat fresh until the context ends. Refresh failures are
// logged and retried on the next tick; the row going missing means the lock was lost.
func (l *heartbeatLock) RunRefresher(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.model.Refresh(ctx, l.name); err != nil {
				log.Ctx(ctx).Errorf("refreshing heartbeat %q: %v", l.name, err)
			} else {
				l.lastRefresh = time.Now()
			}

			if l.monitorService != nil {
				_ = l.monitorService.SetGauge(time.Since(l.lastRefresh).Seconds(), monitor.HeartbeatAgeSecondsTag)
			}
		}
	}
}

// Release drops the heartbeat row so the next instance starts immediately. Called with a
// fresh context because the run context is already canceled during shutdown.
func (l *heartbeatLock) Release(ctx context.Context) {
	if err := l.model.Release(ctx, l.name); err != nil {
		log.Ctx(ctx).Errorf("releasing heartbeat %q: %v", l.name, err)
		return
	}
	log.Ctx(ctx).Infof("Released heartbeat lock %q", l.name)
}
