// Package watchdog supervises long-running protocol operations: it warns
// when a session has been idle past a configurable threshold and forces
// a disconnect after repeated consecutive timeouts (spec §5).
package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/edlflash/edlctl/internal/logger"
)

const consecutiveTimeoutsBeforeDisconnect = 3

// Disconnector is the session-level hook the watchdog calls once too many
// consecutive timeouts have been observed. Implementations should tear
// down the transport and mark the session unusable.
type Disconnector interface {
	ForceDisconnect(reason string)
}

// Watchdog monitors a session's activity and timeout history, running a
// background timer goroutine per spec §5's "idle period" warning and
// "three consecutive timeouts" auto-disconnect rule.
type Watchdog struct {
	idlePeriod   time.Duration
	disconnector Disconnector

	mu               sync.Mutex
	lastActivity     time.Time
	consecutiveFails int

	shutdown chan struct{}
	wg       sync.WaitGroup
}

// New constructs a Watchdog. idlePeriod is the configurable quiet window
// after which an idle warning is logged; a zero or negative idlePeriod
// disables idle warnings entirely (the timeout counter still operates).
func New(idlePeriod time.Duration, disconnector Disconnector) *Watchdog {
	return &Watchdog{
		idlePeriod:   idlePeriod,
		disconnector: disconnector,
		lastActivity: zeroTime(),
		shutdown:     make(chan struct{}),
	}
}

// zeroTime exists only so New doesn't call time.Now() at package-init
// time in a way that would vary run to run; Start establishes the real
// baseline.
func zeroTime() time.Time { return time.Time{} }

// Start launches the idle-monitoring goroutine. Stop must be called to
// release it; it also exits when ctx is cancelled.
func (w *Watchdog) Start(ctx context.Context) {
	w.mu.Lock()
	w.lastActivity = time.Now()
	w.mu.Unlock()

	if w.idlePeriod <= 0 {
		return
	}

	w.wg.Add(1)
	go w.monitorIdle(ctx)
}

// Stop releases the monitoring goroutine, if one was started.
func (w *Watchdog) Stop() {
	select {
	case <-w.shutdown:
		// already stopped
	default:
		close(w.shutdown)
	}
	w.wg.Wait()
}

// Touch records activity, resetting the idle clock. Call this from any
// successful wire exchange.
func (w *Watchdog) Touch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastActivity = time.Now()
}

// RecordTimeout records one timed-out operation. After
// consecutiveTimeoutsBeforeDisconnect in a row, it invokes the
// Disconnector and resets its own counter (spec §5).
func (w *Watchdog) RecordTimeout() {
	w.mu.Lock()
	w.consecutiveFails++
	fails := w.consecutiveFails
	w.mu.Unlock()

	if fails >= consecutiveTimeoutsBeforeDisconnect {
		w.mu.Lock()
		w.consecutiveFails = 0
		w.mu.Unlock()
		logger.Warn("watchdog: consecutive timeouts exceeded threshold, forcing disconnect",
			"count", fails)
		if w.disconnector != nil {
			w.disconnector.ForceDisconnect("three consecutive operation timeouts")
		}
	}
}

// RecordSuccess clears the consecutive-timeout counter after an
// operation that did not time out.
func (w *Watchdog) RecordSuccess() {
	w.mu.Lock()
	w.consecutiveFails = 0
	w.mu.Unlock()
}

func (w *Watchdog) monitorIdle(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.idlePeriod / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case <-ticker.C:
			w.checkIdle()
		}
	}
}

func (w *Watchdog) checkIdle() {
	w.mu.Lock()
	idleFor := time.Since(w.lastActivity)
	w.mu.Unlock()

	if idleFor >= w.idlePeriod {
		logger.Warn("watchdog: session idle past configured threshold",
			"idle_for", idleFor, "threshold", w.idlePeriod)
	}
}
