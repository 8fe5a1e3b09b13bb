package chronoq

import (
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Logger is a minimal logging interface compatible with logrus.Logger,
// grounded on the teacher's scheduler/scheduler.go Logger contract
// (Infof/Warnf/Errorf), generalized only by dropping its mailgrid-specific
// doc comment. The logging package's logrus wrapper satisfies this
// structurally; nothing in this package imports logrus directly.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// SchedulerThreadConfig carries the tunables named in spec.md §4.5/§5.
type SchedulerThreadConfig struct {
	IdleWaitTime     time.Duration // default 30s
	MaxBatchSize     int           // default 1
	BatchTimeWindow  time.Duration // default 0
	MisfireThreshold time.Duration // default 60s; not read by the scheduler thread, the store owns enforcement
}

func (c SchedulerThreadConfig) withDefaults() SchedulerThreadConfig {
	if c.IdleWaitTime <= 0 {
		c.IdleWaitTime = 30 * time.Second
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 1
	}
	if c.MisfireThreshold <= 0 {
		c.MisfireThreshold = 60 * time.Second
	}
	return c
}

// schedulerThread is the single dedicated goroutine driving time and
// dispatch, per spec.md §4.5. It holds no trigger data itself — only the
// signal monitor (signaled, signaledNextFireTime, paused, halted) described
// there. Grounded on the teacher's dispatchLoop goroutine in
// scheduler/scheduler.go (a ticker-driven `for { select }` against a `quit`
// channel), generalized from a fixed-interval ticker into the
// acquire/wait/fire state machine spec.md §4.5 requires, with the
// "significantly earlier" wake check added on top.
type schedulerThread struct {
	store   JobStore
	pool    WorkerPool
	bus     ListenerBus
	factory JobFactory
	sched   *Scheduler
	log     Logger
	cfg     SchedulerThreadConfig

	wakeThreshold time.Duration

	mu                   sync.Mutex
	cond                 *sync.Cond
	paused               bool
	halted               bool
	signaled             bool
	signaledNextFireTime time.Time

	doneCh chan struct{}
}

func newSchedulerThread(store JobStore, pool WorkerPool, bus ListenerBus, factory JobFactory, sched *Scheduler, log Logger, cfg SchedulerThreadConfig) *schedulerThread {
	if log == nil {
		log = noopLogger{}
	}
	t := &schedulerThread{
		store:         store,
		pool:          pool,
		bus:           bus,
		factory:       factory,
		sched:         sched,
		log:           log,
		cfg:           cfg.withDefaults(),
		wakeThreshold: misfireWakeThreshold(store),
		doneCh:        make(chan struct{}),
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// run is the main loop; call it in its own goroutine. It returns once
// halt() has been called and the loop notices.
func (t *schedulerThread) run() {
	defer close(t.doneCh)
	for {
		t.mu.Lock()
		for t.paused && !t.halted {
			t.waitOnMonitor(time.Second)
		}
		if t.halted {
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()

		availableWorkers := t.pool.BlockForAvailableThreads()

		t.mu.Lock()
		t.signaled = false
		t.signaledNextFireTime = time.Time{}
		t.mu.Unlock()

		now := time.Now()
		batch, err := t.store.AcquireNextTriggers(now.Add(t.cfg.IdleWaitTime), min(availableWorkers, t.cfg.MaxBatchSize), t.cfg.BatchTimeWindow)
		if err != nil {
			t.logError("acquire next triggers failed", err)
			t.sleepIdle()
			continue
		}

		t.store.ScanForMisfires()

		if len(batch) == 0 {
			t.sleepIdle()
			continue
		}

		if t.haltedNow() {
			t.releaseBatch(batch)
			return
		}

		if !t.waitUntilDue(batch) {
			// a significantly earlier signal arrived; release and restart.
			t.releaseBatch(batch)
			continue
		}
		if t.haltedNow() {
			t.releaseBatch(batch)
			return
		}

		t.fireBatch(batch)
	}
}

// waitUntilDue blocks until batch[0]'s fire time (batch is already sorted by
// AcquireNextTriggers), polling in small steps so a signal waking the
// monitor early can be noticed promptly. Returns false if the wait was cut
// short by a significantly-earlier signal (spec.md §4.5 step 6).
func (t *schedulerThread) waitUntilDue(batch []Trigger) bool {
	triggerTime := batch[0].GetNextFireTime()
	for {
		remaining := time.Until(triggerTime)
		if remaining <= 2*time.Millisecond || t.haltedNow() {
			return true
		}

		t.mu.Lock()
		if t.signaled && t.isCandidateEarlierLocked(triggerTime) {
			t.mu.Unlock()
			return false
		}
		wait := remaining
		if wait > 50*time.Millisecond {
			wait = 50 * time.Millisecond
		}
		t.waitOnMonitorLocked(wait)
		signaled := t.signaled
		earlier := signaled && t.isCandidateEarlierLocked(triggerTime)
		t.mu.Unlock()
		if earlier {
			return false
		}
	}
}

// isCandidateEarlierLocked implements "significantly earlier": the
// signaled candidate is strictly before triggerTime and the delta is at
// least the store's wake threshold, or the candidate is unknown (zero
// time), per spec.md §4.5. Caller must hold t.mu.
func (t *schedulerThread) isCandidateEarlierLocked(triggerTime time.Time) bool {
	candidate := t.signaledNextFireTime
	if candidate.IsZero() {
		return true
	}
	if !candidate.Before(triggerTime) {
		return false
	}
	return triggerTime.Sub(candidate) >= t.wakeThreshold
}

// fireBatch orders the store to fire every acquired trigger and dispatches
// a JobRunShell per resulting bundle, per spec.md §4.5 step 7.
func (t *schedulerThread) fireBatch(batch []Trigger) {
	bundles, err := t.store.TriggersFired(batch)
	if err != nil {
		t.logError("triggers fired failed", err)
		t.releaseBatch(batch)
		return
	}
	for i, bundle := range bundles {
		if bundle == nil {
			t.store.ReleaseAcquiredTrigger(batch[i])
			continue
		}
		shell := newJobRunShell(t.sched, t.store, t.bus, t.factory, bundle, t.sched.baseContext())
		shell.begin()
		if !t.pool.RunInThread(shell) {
			t.log.Warnf("worker pool rejected job %s, marking all triggers of job as errored", bundle.JobDetail.Key)
			t.store.TriggeredJobComplete(bundle.Trigger, bundle.JobDetail, InstructionSetAllJobTriggersError)
		}
	}
}

func (t *schedulerThread) releaseBatch(batch []Trigger) {
	for _, trig := range batch {
		t.store.ReleaseAcquiredTrigger(trig)
	}
}

// sleepIdle waits randomizedIdleWaitTime (±20%) on the monitor, per
// spec.md §4.5 step 8, unless a signal arrives first.
func (t *schedulerThread) sleepIdle() {
	jitter := 0.8 + 0.4*rand.Float64()
	wait := time.Duration(float64(t.cfg.IdleWaitTime) * jitter)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.signaled || t.halted {
		return
	}
	t.waitOnMonitorLocked(wait)
}

func (t *schedulerThread) waitOnMonitor(d time.Duration) {
	t.mu.Lock()
	t.waitOnMonitorLocked(d)
	t.mu.Unlock()
}

// waitOnMonitorLocked blocks for at most d, or until signal()/halt() wakes
// the condition variable. Caller must hold t.mu; it is released while
// waiting and re-acquired before returning.
func (t *schedulerThread) waitOnMonitorLocked(d time.Duration) {
	timer := time.AfterFunc(d, func() {
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	})
	defer timer.Stop()
	t.cond.Wait()
}

func (t *schedulerThread) haltedNow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.halted
}

// signal implements SchedulerSignaler.SignalSchedulingChange: it wakes the
// monitor and records the candidate new next-fire-time so waitUntilDue can
// decide whether it is "significantly earlier".
func (t *schedulerThread) signal(candidateNewNextFireTime time.Time) {
	t.mu.Lock()
	t.signaled = true
	t.signaledNextFireTime = candidateNewNextFireTime
	t.cond.Broadcast()
	t.mu.Unlock()
}

func (t *schedulerThread) pause() {
	t.mu.Lock()
	t.paused = true
	t.cond.Broadcast()
	t.mu.Unlock()
}

func (t *schedulerThread) resume() {
	t.mu.Lock()
	t.paused = false
	t.cond.Broadcast()
	t.mu.Unlock()
}

// halt stops the loop. If the thread is currently blocked in
// waitOnMonitorLocked, the broadcast wakes it; run() notices t.halted on
// its next lock acquisition.
func (t *schedulerThread) halt() {
	t.mu.Lock()
	t.halted = true
	t.cond.Broadcast()
	t.mu.Unlock()
	<-t.doneCh
}

func (t *schedulerThread) logError(msg string, err error) {
	t.log.Errorf("%s: %v", msg, err)
	t.bus.NotifySchedulerError(msg, err)
}

// sortTriggersByAcquisitionOrder sorts by the ordering rule (nextFireTime
// asc, priority desc, name+group asc) named in spec.md §4.2. It is
// unexported, so stores in other packages (store/ramstore) carry their own
// copy of the same sort.
func sortTriggersByAcquisitionOrder(triggers []Trigger) {
	sort.Slice(triggers, func(i, j int) bool {
		a, b := triggers[i], triggers[j]
		if !a.GetNextFireTime().Equal(b.GetNextFireTime()) {
			return a.GetNextFireTime().Before(b.GetNextFireTime())
		}
		if a.Priority() != b.Priority() {
			return a.Priority() > b.Priority()
		}
		ak, bk := a.Key(), b.Key()
		if ak.Name != bk.Name {
			return ak.Name < bk.Name
		}
		return ak.Group < bk.Group
	})
}
