package chronoq

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type schedulerState int

const (
	stateNotStarted schedulerState = iota
	stateRunning
	stateStandby
	stateShutdown
)

// SchedulerConfig carries the construction-time options named in
// SPEC_FULL.md §2 (threadPool.size, batchTimeWindow, maxBatchSize,
// idleWaitTime, misfireThreshold, ...). Zero values take the documented
// defaults.
type SchedulerConfig struct {
	InstanceName string
	WorkerPool   WorkerPool
	Logger       Logger
	Thread       SchedulerThreadConfig
	JobFactory   JobFactory

	// InterruptJobsOnShutdown, if true, calls Interrupt on every
	// in-flight interruptible job when Shutdown is called, before
	// waiting (if waitForJobsToComplete) for them to return.
	InterruptJobsOnShutdown bool
}

// Scheduler is the user-facing facade named in spec.md §4.8, grounded on
// the teacher's SchedulerManager lifecycle (scheduler/manager.go:
// start/stop/RunDaemon over a context, guarded by one mutex) generalized
// from mailgrid's single implicit job type into the full CRUD surface over
// an arbitrary JobStore. It also implements SchedulerSignaler so the store
// can call back into it without holding a handle to the whole facade type
// (see signaler.go).
type Scheduler struct {
	name    string
	store   JobStore
	pool    WorkerPool
	bus     ListenerBus
	log     Logger
	factory JobFactory

	interruptOnShutdown bool

	mu     sync.Mutex
	state  schedulerState
	thread *schedulerThread
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	delayedTimer *time.Timer

	shellsMu sync.Mutex
	shells   map[string]*JobRunShell
}

// NewScheduler wires a Scheduler around an already-constructed store,
// worker pool, and listener bus. Callers own the listener bus's
// registration surface directly (they constructed it as a
// *listener.Manager); Scheduler only ever dispatches through the narrower
// ListenerBus view, which resolves the would-be root<->listener import
// cycle described in DESIGN.md.
func NewScheduler(store JobStore, bus ListenerBus, cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.WorkerPool == nil {
		return nil, NewConfigurationError("SchedulerConfig.WorkerPool is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.JobFactory == nil {
		cfg.JobFactory = SimpleJobFactory{}
	}
	name := cfg.InstanceName
	if name == "" {
		name = "chronoq"
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		name:                name,
		store:               store,
		pool:                cfg.WorkerPool,
		bus:                 bus,
		log:                 cfg.Logger,
		factory:             cfg.JobFactory,
		interruptOnShutdown: cfg.InterruptJobsOnShutdown,
		ctx:                 ctx,
		cancel:              cancel,
		shells:              make(map[string]*JobRunShell),
	}
	s.thread = newSchedulerThread(store, cfg.WorkerPool, bus, cfg.JobFactory, s, cfg.Logger, cfg.Thread)
	if err := store.Initialize(s); err != nil {
		return nil, WrapJobPersistenceError(err, "initialize store")
	}
	return s, nil
}

func (s *Scheduler) baseContext() context.Context { return s.ctx }

func (s *Scheduler) registerShell(id string, sh *JobRunShell) {
	s.shellsMu.Lock()
	s.shells[id] = sh
	s.shellsMu.Unlock()
}

func (s *Scheduler) unregisterShell(id string) {
	s.shellsMu.Lock()
	delete(s.shells, id)
	s.shellsMu.Unlock()
}

// --- lifecycle ---

// Start begins firing triggers. Returns a scheduler error if already shut
// down.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateShutdown {
		return NewSchedulerError("scheduler %s has been shut down; cannot start again", s.name)
	}
	if s.delayedTimer != nil {
		s.delayedTimer.Stop()
		s.delayedTimer = nil
	}
	if s.state == stateRunning {
		return nil
	}
	wasStandby := s.state == stateStandby
	s.state = stateRunning
	if err := s.store.SchedulerStarted(); err != nil {
		return WrapJobPersistenceError(err, "scheduler started")
	}
	if wasStandby {
		s.thread.resume()
		s.store.SchedulerResumed()
		return nil
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.thread.run()
	}()
	return nil
}

// StartDelayed schedules an asynchronous Start after the given delay.
func (s *Scheduler) StartDelayed(delay time.Duration) error {
	s.mu.Lock()
	if s.state == stateShutdown {
		s.mu.Unlock()
		return NewSchedulerError("scheduler %s has been shut down; cannot start again", s.name)
	}
	s.delayedTimer = time.AfterFunc(delay, func() {
		_ = s.Start()
	})
	s.mu.Unlock()
	return nil
}

// Standby pauses the scheduler thread without discarding any state; Start
// resumes it. The store is notified either way.
func (s *Scheduler) Standby() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateRunning {
		return nil
	}
	s.state = stateStandby
	s.thread.pause()
	s.store.SchedulerPaused()
	return nil
}

func (s *Scheduler) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateRunning || s.state == stateStandby
}

func (s *Scheduler) IsShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateShutdown
}

func (s *Scheduler) IsInStandbyMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateStandby
}

// Shutdown halts the scheduler thread and the worker pool. If
// waitForJobsToComplete, blocks until in-flight jobs return. If the
// scheduler was configured with InterruptJobsOnShutdown, every in-flight
// interruptible job is asked to interrupt first.
func (s *Scheduler) Shutdown(waitForJobsToComplete bool) error {
	s.mu.Lock()
	if s.state == stateShutdown {
		s.mu.Unlock()
		return nil
	}
	if s.delayedTimer != nil {
		s.delayedTimer.Stop()
		s.delayedTimer = nil
	}
	thread := s.thread
	s.state = stateShutdown
	s.mu.Unlock()

	if s.interruptOnShutdown {
		s.shellsMu.Lock()
		for _, sh := range s.shells {
			_ = sh.Interrupt()
		}
		s.shellsMu.Unlock()
	}

	s.cancel()
	thread.halt()
	s.wg.Wait()
	s.pool.Shutdown(waitForJobsToComplete)
	s.store.Shutdown()
	s.bus.NotifySchedulerShutdown()
	return nil
}

// --- job/trigger CRUD ---

// ScheduleJob stores job and trigger together, replacing any stored job or
// trigger with the same key, and returns the trigger's computed first fire
// time.
func (s *Scheduler) ScheduleJob(job *JobDetail, trigger Trigger) (time.Time, error) {
	if job == nil || trigger == nil {
		return time.Time{}, NewSchedulerError("job and trigger must not be nil")
	}
	if err := s.failIfShutdown(); err != nil {
		return time.Time{}, err
	}

	cal, err := s.lookupCalendar(trigger.CalendarName())
	if err != nil {
		return time.Time{}, err
	}
	first := trigger.ComputeFirstFireTime(cal)
	if first.IsZero() {
		return time.Time{}, NewSchedulerError("trigger %s has no fire times after its start time", trigger.Key())
	}

	if err := s.store.StoreJobAndTrigger(job, trigger); err != nil {
		return time.Time{}, WrapJobPersistenceError(err, "schedule job "+job.Key.String())
	}
	s.notifySchedulingChange(trigger.GetNextFireTime())
	s.bus.NotifyJobScheduled(trigger)
	return first, nil
}

// ScheduleTrigger adds a trigger for a job already stored in the JobStore.
func (s *Scheduler) ScheduleTrigger(trigger Trigger) (time.Time, error) {
	if trigger == nil {
		return time.Time{}, NewSchedulerError("trigger must not be nil")
	}
	if err := s.failIfShutdown(); err != nil {
		return time.Time{}, err
	}
	cal, err := s.lookupCalendar(trigger.CalendarName())
	if err != nil {
		return time.Time{}, err
	}
	first := trigger.ComputeFirstFireTime(cal)
	if first.IsZero() {
		return time.Time{}, NewSchedulerError("trigger %s has no fire times after its start time", trigger.Key())
	}
	if err := s.store.StoreTrigger(trigger, false); err != nil {
		return time.Time{}, WrapJobPersistenceError(err, "schedule trigger "+trigger.Key().String())
	}
	s.notifySchedulingChange(trigger.GetNextFireTime())
	s.bus.NotifyJobScheduled(trigger)
	return first, nil
}

// UnscheduleJob removes a single trigger.
func (s *Scheduler) UnscheduleJob(key TriggerKey) (bool, error) {
	if err := s.failIfShutdown(); err != nil {
		return false, err
	}
	ok, err := s.store.RemoveTrigger(key)
	if err != nil {
		return false, WrapJobPersistenceError(err, "unschedule "+key.String())
	}
	if ok {
		s.notifySchedulingChange(time.Time{})
		s.bus.NotifyJobUnscheduled(key)
	}
	return ok, nil
}

// RescheduleJob swaps an existing trigger's definition, preserving the
// trigger's key only if newTrigger shares it. Returns the zero time if the
// named trigger did not exist.
func (s *Scheduler) RescheduleJob(key TriggerKey, newTrigger Trigger) (time.Time, error) {
	if newTrigger == nil {
		return time.Time{}, NewSchedulerError("newTrigger must not be nil")
	}
	if err := s.failIfShutdown(); err != nil {
		return time.Time{}, err
	}
	cal, err := s.lookupCalendar(newTrigger.CalendarName())
	if err != nil {
		return time.Time{}, err
	}
	first := newTrigger.ComputeFirstFireTime(cal)
	if first.IsZero() {
		return time.Time{}, NewSchedulerError("trigger %s has no fire times after its start time", newTrigger.Key())
	}
	ok, err := s.store.ReplaceTrigger(key, newTrigger)
	if err != nil {
		return time.Time{}, WrapJobPersistenceError(err, "reschedule "+key.String())
	}
	if !ok {
		return time.Time{}, nil
	}
	s.notifySchedulingChange(newTrigger.GetNextFireTime())
	s.bus.NotifyJobScheduled(newTrigger)
	return first, nil
}

// AddJob stores job without any trigger. allowNonDurableWithoutTrigger lets
// a non-durable job be stored transiently (e.g. immediately before adding
// its first trigger in a separate call).
func (s *Scheduler) AddJob(job *JobDetail, replaceExisting, allowNonDurableWithoutTrigger bool) error {
	if job == nil {
		return NewSchedulerError("job must not be nil")
	}
	if err := s.failIfShutdown(); err != nil {
		return err
	}
	if err := s.store.StoreJob(job, replaceExisting, allowNonDurableWithoutTrigger); err != nil {
		return WrapJobPersistenceError(err, "add job "+job.Key.String())
	}
	return nil
}

// DeleteJob removes a job and all its triggers.
func (s *Scheduler) DeleteJob(key JobKey) (bool, error) {
	if err := s.failIfShutdown(); err != nil {
		return false, err
	}
	ok, err := s.store.RemoveJob(key)
	if err != nil {
		return false, WrapJobPersistenceError(err, "delete job "+key.String())
	}
	if ok {
		s.notifySchedulingChange(time.Time{})
		s.bus.NotifyJobDeleted(key)
	}
	return ok, nil
}

// TriggerJob fires job once, immediately, via an ephemeral non-durable
// trigger with a randomized name, per spec.md §4.8. On a name collision it
// regenerates the name and retries.
func (s *Scheduler) TriggerJob(key JobKey, data JobDataMap) error {
	if err := s.failIfShutdown(); err != nil {
		return err
	}
	exists, err := s.store.CheckExistsJob(key)
	if err != nil {
		return WrapJobPersistenceError(err, "check job "+key.String())
	}
	if !exists {
		return NewSchedulerError("job %s does not exist", key)
	}

	for attempt := 0; attempt < 5; attempt++ {
		tKey := NewTriggerKeyWithGroup(manualTriggerName(), key.Group)
		already, err := s.store.CheckExistsTrigger(tKey)
		if err != nil {
			return WrapJobPersistenceError(err, "check trigger "+tKey.String())
		}
		if already {
			continue
		}
		trig := newManualFireTrigger(tKey, key, data)
		if err := s.store.StoreTrigger(trig, false); err != nil {
			if IsObjectAlreadyExists(err) {
				continue
			}
			return WrapJobPersistenceError(err, "trigger job "+key.String())
		}
		s.notifySchedulingChange(trig.GetNextFireTime())
		return nil
	}
	return NewSchedulerError("could not generate a unique name for a manual fire of job %s", key)
}

func manualTriggerName() string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 20)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return "MT_" + string(b)
}

// --- pause / resume ---

func (s *Scheduler) PauseJob(key JobKey) error         { return s.store.PauseJob(key) }
func (s *Scheduler) PauseTrigger(key TriggerKey) error { return s.store.PauseTrigger(key) }
func (s *Scheduler) PauseJobs(m GroupMatcher) ([]string, error)     { return s.store.PauseJobs(m) }
func (s *Scheduler) PauseTriggers(m GroupMatcher) ([]string, error) { return s.store.PauseTriggers(m) }
func (s *Scheduler) PauseAll() error                                { return s.store.PauseAll() }

func (s *Scheduler) ResumeJob(key JobKey) error {
	if err := s.store.ResumeJob(key); err != nil {
		return err
	}
	s.notifySchedulingChange(time.Time{})
	return nil
}

func (s *Scheduler) ResumeTrigger(key TriggerKey) error {
	if err := s.store.ResumeTrigger(key); err != nil {
		return err
	}
	s.notifySchedulingChange(time.Time{})
	return nil
}

func (s *Scheduler) ResumeJobs(m GroupMatcher) ([]string, error) {
	groups, err := s.store.ResumeJobs(m)
	if err == nil {
		s.notifySchedulingChange(time.Time{})
	}
	return groups, err
}

func (s *Scheduler) ResumeTriggers(m GroupMatcher) ([]string, error) {
	groups, err := s.store.ResumeTriggers(m)
	if err == nil {
		s.notifySchedulingChange(time.Time{})
	}
	return groups, err
}

func (s *Scheduler) ResumeAll() error {
	if err := s.store.ResumeAll(); err != nil {
		return err
	}
	s.notifySchedulingChange(time.Time{})
	return nil
}

// --- lookups ---

func (s *Scheduler) GetJobDetail(key JobKey) (*JobDetail, error)       { return s.store.RetrieveJob(key) }
func (s *Scheduler) GetTrigger(key TriggerKey) (Trigger, error)        { return s.store.RetrieveTrigger(key) }
func (s *Scheduler) CheckExistsJob(key JobKey) (bool, error)           { return s.store.CheckExistsJob(key) }
func (s *Scheduler) CheckExistsTrigger(key TriggerKey) (bool, error)   { return s.store.CheckExistsTrigger(key) }
func (s *Scheduler) GetTriggerState(key TriggerKey) (TriggerState, error) {
	return s.store.GetTriggerState(key)
}
func (s *Scheduler) GetJobKeys(m GroupMatcher) ([]JobKey, error)         { return s.store.GetJobKeys(m) }
func (s *Scheduler) GetTriggerKeys(m GroupMatcher) ([]TriggerKey, error) { return s.store.GetTriggerKeys(m) }
func (s *Scheduler) GetTriggersOfJob(key JobKey) ([]Trigger, error)      { return s.store.GetTriggersForJob(key) }

func (s *Scheduler) AddCalendar(name string, cal Calendar, replaceExisting, updateTriggers bool) error {
	return s.store.StoreCalendar(name, cal, replaceExisting, updateTriggers)
}
func (s *Scheduler) DeleteCalendar(name string) (bool, error) { return s.store.RemoveCalendar(name) }
func (s *Scheduler) GetCalendar(name string) (Calendar, error) { return s.store.RetrieveCalendar(name) }

func (s *Scheduler) lookupCalendar(name string) (Calendar, error) {
	if name == "" {
		return nil, nil
	}
	cal, err := s.store.RetrieveCalendar(name)
	if err != nil {
		return nil, WrapJobPersistenceError(err, "retrieve calendar "+name)
	}
	return cal, nil
}

// --- interrupt ---

// Interrupt asks every currently-executing instance of job to interrupt.
// Returns whether at least one instance was found and successfully asked.
func (s *Scheduler) Interrupt(key JobKey) (bool, error) {
	s.shellsMu.Lock()
	defer s.shellsMu.Unlock()
	interrupted := false
	for _, sh := range s.shells {
		if sh.JobKey() != key {
			continue
		}
		if err := sh.Interrupt(); err == nil {
			interrupted = true
		}
	}
	return interrupted, nil
}

// InterruptFireInstance asks one specific in-flight fire to interrupt.
func (s *Scheduler) InterruptFireInstance(fireInstanceID string) (bool, error) {
	s.shellsMu.Lock()
	sh, ok := s.shells[fireInstanceID]
	s.shellsMu.Unlock()
	if !ok {
		return false, nil
	}
	if err := sh.Interrupt(); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *Scheduler) failIfShutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateShutdown {
		return NewSchedulerError("scheduler %s has been shut down", s.name)
	}
	return nil
}

func (s *Scheduler) notifySchedulingChange(candidate time.Time) {
	s.thread.signal(candidate)
}

// --- SchedulerSignaler ---

func (s *Scheduler) SignalSchedulingChange(candidateNewNextFireTime time.Time) {
	s.thread.signal(candidateNewNextFireTime)
}

func (s *Scheduler) NotifyTriggerListenersMisfired(t Trigger) {
	s.bus.NotifyTriggerMisfired(t)
}

func (s *Scheduler) NotifySchedulerListenersFinalized(t Trigger) {
	s.bus.NotifyTriggerFinalized(t)
}

func (s *Scheduler) NotifySchedulerListenersJobDeleted(key JobKey) {
	s.bus.NotifyJobDeleted(key)
}

func (s *Scheduler) NotifySchedulerListenersError(msg string, cause error) {
	s.log.Errorf("%s: %v", msg, cause)
	s.bus.NotifySchedulerError(msg, cause)
}
