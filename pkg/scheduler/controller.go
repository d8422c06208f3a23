package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/raykavin/tonpairs/pkg/logger"
)

// Status represents the current state of the controller
type Status string

// Available controller statuses
const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// DefaultInterval is the trading period used when none is configured
const DefaultInterval = time.Minute

// Controller runs a Scheduler tick on a fixed period
type Controller struct {
	scheduler *Scheduler
	interval  time.Duration
	log       logger.Logger

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
	ticks  sync.WaitGroup
}

// NewController creates a stopped controller
func NewController(scheduler *Scheduler, interval time.Duration, log logger.Logger) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Controller{
		scheduler: scheduler,
		interval:  interval,
		log:       log,
		status:    StatusStopped,
	}
}

// Status returns the current controller status
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Start begins the periodic dispatch. Each tick runs in its own goroutine so
// a slow tick never delays the next one.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusRunning {
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	c.status = StatusRunning

	go func() {
		defer close(c.done)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.ticks.Add(1)
				go func() {
					defer c.ticks.Done()
					c.tick(ctx)
				}()
			case <-ctx.Done():
				return
			}
		}
	}()

	c.log.Infof("Trading started, interval %s.", c.interval)
}

func (c *Controller) tick(ctx context.Context) {
	start := time.Now()
	report := c.scheduler.Tick(ctx)

	c.log.WithFields(logger.Fields{
		"users":      report.Users,
		"dispatched": report.Dispatched,
		"failed":     report.Failed,
		"skipped":    report.Skipped,
		"elapsed":    time.Since(start).String(),
	}).Debug("tick finished")
}

// Stop halts the ticker, cancels pending pacing waits and waits for the
// running dispatches to finish
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.status != StatusRunning {
		c.mu.Unlock()
		return
	}
	c.status = StatusStopped
	c.cancel()
	done := c.done
	c.mu.Unlock()

	<-done
	c.ticks.Wait()
	c.log.Info("Trading stopped.")
}
