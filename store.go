package chronoq

import "time"

// JobStore is the authoritative collection of jobs, triggers, and calendars
// named in spec.md §4.2. All operations are blocking and safe to call
// concurrently from user threads, the scheduler thread, and worker threads.
//
// Two implementations ship with this repository: store/ramstore (in-memory,
// the default) and store/boltstore (durable, backed by bbolt). Both satisfy
// this interface so the scheduler thread and facade never know which one
// they're driving.
type JobStore interface {
	// Initialize wires the store to the signaler it must call back into.
	Initialize(signaler SchedulerSignaler) error
	SchedulerStarted() error
	SchedulerPaused()
	SchedulerResumed()
	Shutdown()

	// StoreJobAndTrigger atomically stores a job and one trigger for it.
	StoreJobAndTrigger(job *JobDetail, trigger Trigger) error
	// StoreJob stores a job definition. If !replaceExisting and the job
	// already exists, returns an ObjectAlreadyExistsError. If the job has no
	// triggers referencing it yet, storage succeeds only if job.Durable or
	// allowNonDurableWithoutTrigger is true.
	StoreJob(job *JobDetail, replaceExisting bool, allowNonDurableWithoutTrigger bool) error
	// StoreTrigger stores a trigger. If !replaceExisting and it already
	// exists, returns an ObjectAlreadyExistsError.
	StoreTrigger(trigger Trigger, replaceExisting bool) error

	RemoveJob(key JobKey) (bool, error)
	RemoveTrigger(key TriggerKey) (bool, error)
	// ReplaceTrigger atomically swaps a trigger's definition, only if
	// newTrigger.JobKey() equals the existing trigger's job key.
	ReplaceTrigger(key TriggerKey, newTrigger Trigger) (bool, error)

	RetrieveJob(key JobKey) (*JobDetail, error)
	RetrieveTrigger(key TriggerKey) (Trigger, error)
	CheckExistsJob(key JobKey) (bool, error)
	CheckExistsTrigger(key TriggerKey) (bool, error)
	ClearAllSchedulingData() error

	StoreCalendar(name string, cal Calendar, replaceExisting, updateTriggers bool) error
	RetrieveCalendar(name string) (Calendar, error)
	RemoveCalendar(name string) (bool, error)

	GetJobKeys(matcher GroupMatcher) ([]JobKey, error)
	GetTriggerKeys(matcher GroupMatcher) ([]TriggerKey, error)
	GetTriggersForJob(key JobKey) ([]Trigger, error)

	PauseTrigger(key TriggerKey) error
	PauseTriggers(matcher GroupMatcher) ([]string, error)
	PauseJob(key JobKey) error
	PauseJobs(matcher GroupMatcher) ([]string, error)
	ResumeTrigger(key TriggerKey) error
	ResumeTriggers(matcher GroupMatcher) ([]string, error)
	ResumeJob(key JobKey) error
	ResumeJobs(matcher GroupMatcher) ([]string, error)
	PauseAll() error
	ResumeAll() error

	GetTriggerState(key TriggerKey) (TriggerState, error)

	// AcquireNextTriggers returns an ordered batch (see spec.md §4.2) of
	// triggers due no later than noLaterThan+timeWindow, moving them to
	// ACQUIRED.
	AcquireNextTriggers(noLaterThan time.Time, maxCount int, timeWindow time.Duration) ([]Trigger, error)
	// ScanForMisfires applies each NORMAL trigger's misfire
	// instruction if its next fire time is older than now minus the
	// store's configured misfire threshold, independent of acquisition.
	// The scheduler thread calls this once per idle-wait cycle per
	// spec.md §4.5; stores also apply misfire handling lazily inside
	// AcquireNextTriggers so the externally observable behavior matches
	// regardless of when this is called.
	ScanForMisfires()
	// ReleaseAcquiredTrigger returns an ACQUIRED trigger to NORMAL/PAUSED.
	ReleaseAcquiredTrigger(t Trigger)
	// TriggersFired advances each ACQUIRED trigger into "executing" and
	// returns a bundle per trigger (nil bundle entries mean: release and
	// skip, the trigger vanished/paused/exhausted concurrently).
	TriggersFired(triggers []Trigger) ([]*TriggerFiredBundle, error)
	// TriggeredJobComplete applies the post-execution instruction.
	TriggeredJobComplete(t Trigger, jd *JobDetail, instruction CompletionInstruction)

	// CurrentlyExecutingJobs returns the fire-instance ids presently
	// dispatched to workers. Scheduler.Interrupt does not use it; it keeps
	// its own map of running shells.
	CurrentlyExecutingJobs() []string
}

// persistentStore is an optional capability a JobStore implementation may
// report, used by the scheduler thread to pick the "significantly earlier"
// wake threshold named in spec.md §4.5 (70ms for persistent stores, 7ms for
// in-memory). A store that does not implement this is treated as
// in-memory.
type persistentStore interface {
	IsPersistent() bool
}

func misfireWakeThreshold(store JobStore) time.Duration {
	if p, ok := store.(persistentStore); ok && p.IsPersistent() {
		return 70 * time.Millisecond
	}
	return 7 * time.Millisecond
}
