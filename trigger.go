package chronoq

import "time"

// CompletionInstruction is the verdict a Trigger's ExecutionComplete returns
// telling the store what to do with the trigger after a fire finishes.
type CompletionInstruction int

const (
	// InstructionNoop leaves the trigger's schedule untouched; it simply
	// returns to NORMAL (or COMPLETE, if it has no further fire time).
	InstructionNoop CompletionInstruction = iota
	// InstructionReExecuteJob re-runs the same fire immediately, without
	// advancing the trigger's schedule or touching the store.
	InstructionReExecuteJob
	// InstructionSetTriggerComplete moves the trigger to COMPLETE.
	InstructionSetTriggerComplete
	// InstructionDeleteTrigger removes the trigger (and its job, if the job
	// is non-durable and this was its last trigger).
	InstructionDeleteTrigger
	// InstructionSetTriggerError moves the trigger to ERROR.
	InstructionSetTriggerError
	// InstructionSetAllJobTriggersComplete moves every trigger of the job to
	// COMPLETE.
	InstructionSetAllJobTriggersComplete
	// InstructionSetAllJobTriggersError moves every trigger of the job to
	// ERROR.
	InstructionSetAllJobTriggersError
)

func (i CompletionInstruction) String() string {
	switch i {
	case InstructionNoop:
		return "NOOP"
	case InstructionReExecuteJob:
		return "RE_EXECUTE_JOB"
	case InstructionSetTriggerComplete:
		return "SET_TRIGGER_COMPLETE"
	case InstructionDeleteTrigger:
		return "DELETE_TRIGGER"
	case InstructionSetTriggerError:
		return "SET_TRIGGER_ERROR"
	case InstructionSetAllJobTriggersComplete:
		return "SET_ALL_JOB_TRIGGERS_COMPLETE"
	case InstructionSetAllJobTriggersError:
		return "SET_ALL_JOB_TRIGGERS_ERROR"
	default:
		return "UNKNOWN"
	}
}

// MisfireInstruction is a trigger-defined policy for recovering from a
// misfire (a fire time noticed to be in the past by more than the
// configured threshold).
type MisfireInstruction int

const (
	// MisfireIgnore bypasses misfire handling entirely for this trigger.
	MisfireIgnore MisfireInstruction = iota
	// MisfireFireNow reschedules the missed fire to happen immediately.
	MisfireFireNow
	// MisfireRescheduleNowWithExistingCount reschedules to now, preserving
	// whatever repeat/fire count the trigger had accumulated.
	MisfireRescheduleNowWithExistingCount
	// MisfireRescheduleNowWithRemainingCount reschedules to now, dropping
	// the count of fires that were missed (only the remaining count is
	// preserved going forward).
	MisfireRescheduleNowWithRemainingCount
	// MisfireDoNothing leaves the trigger alone; it waits for its next
	// regularly computed fire time.
	MisfireDoNothing
	// MisfireSetAllTriggersError sets every trigger of the trigger's job
	// into ERROR.
	MisfireSetAllTriggersError
)

// TriggerState is the finite state a stored trigger occupies.
type TriggerState int

const (
	TriggerStateNone TriggerState = iota
	TriggerStateNormal
	TriggerStatePaused
	TriggerStateBlocked
	TriggerStatePausedBlocked
	TriggerStateAcquired
	TriggerStateComplete
	TriggerStateError
)

func (s TriggerState) String() string {
	switch s {
	case TriggerStateNone:
		return "NONE"
	case TriggerStateNormal:
		return "NORMAL"
	case TriggerStatePaused:
		return "PAUSED"
	case TriggerStateBlocked:
		return "BLOCKED"
	case TriggerStatePausedBlocked:
		return "PAUSED_AND_BLOCKED"
	case TriggerStateAcquired:
		return "ACQUIRED"
	case TriggerStateComplete:
		return "COMPLETE"
	case TriggerStateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// JobExecutionResult carries the outcome of a single job body invocation
// into Trigger.ExecutionComplete, mirroring the (context, exception) pair
// of spec.md §4.7 step 8.
type JobExecutionResult struct {
	Err       error
	StartTime time.Time
	EndTime   time.Time
}

// Trigger is the pluggable recurrence-rule contract named in spec.md §6.
// Implementations must be safe for the acquisition/firing machinery to call
// concurrently with the facade's pause/resume operations, which in this
// repository is achieved by always calling through the owning JobStore's
// mutex (see store/ramstore and store/boltstore) rather than by requiring
// Trigger implementations to be internally thread-safe.
type Trigger interface {
	Key() TriggerKey
	JobKey() JobKey
	Description() string

	Priority() int
	SetPriority(p int)

	StartTime() time.Time
	EndTime() time.Time
	CalendarName() string
	MisfireInstruction() MisfireInstruction

	// GetNextFireTime returns the currently computed next fire time, or the
	// zero time if the trigger is terminal (COMPLETE).
	GetNextFireTime() time.Time
	SetNextFireTime(t time.Time)
	GetPreviousFireTime() time.Time
	SetPreviousFireTime(t time.Time)
	// GetFinalFireTime returns the last instant this trigger could ever
	// fire at, or the zero time if it fires indefinitely.
	GetFinalFireTime() time.Time

	// ComputeFirstFireTime computes and stores (via SetNextFireTime) the
	// trigger's first fire time, honoring cal if non-nil. Returns the zero
	// time if no valid first fire time exists.
	ComputeFirstFireTime(cal Calendar) time.Time

	// GetFireTimeAfter returns the next fire time strictly after `after`,
	// honoring cal, WITHOUT mutating the trigger's stored next-fire-time.
	// Pure function over the trigger's configured fields.
	GetFireTimeAfter(after time.Time, cal Calendar) time.Time

	// MayFireAgain reports whether GetNextFireTime() (or a future
	// TriggerFired) could ever produce a non-zero fire time.
	MayFireAgain() bool

	// UpdateAfterMisfire applies this trigger's MisfireInstruction,
	// mutating its next-fire-time bookkeeping. cal may be nil.
	UpdateAfterMisfire(cal Calendar)

	// UpdateWithNewCalendar recomputes next-fire-time bookkeeping after the
	// named calendar has been replaced, skipping fire times closer than
	// misfireThreshold to now to avoid spurious immediate misfires.
	UpdateWithNewCalendar(cal Calendar, misfireThreshold time.Duration)

	// TriggerFired advances internal fire-time bookkeeping (previous fire
	// time becomes the current next-fire-time; next-fire-time advances via
	// GetFireTimeAfter). Called once per fire by the store inside
	// TriggersFired.
	TriggerFired(cal Calendar)

	// ExecutionComplete computes the CompletionInstruction for a finished
	// fire. result is nil when the fire was vetoed before the job ran.
	ExecutionComplete(ctx *JobExecutionContext, result *JobExecutionResult) CompletionInstruction

	// Data returns the trigger-local data map merged over the job's data
	// map when building a JobExecutionContext.
	Data() JobDataMap

	// Clone returns a deep-enough copy suitable for handing to a store.
	Clone() Trigger
}

// TriggerFiredBundle is produced by JobStore.TriggersFired for each
// successfully-acquired trigger, carrying everything JobRunShell needs to
// build a JobExecutionContext.
type TriggerFiredBundle struct {
	JobDetail         *JobDetail
	Trigger           Trigger
	Calendar          Calendar
	Recovering        bool
	FireInstanceID    string
	FireTime          time.Time
	ScheduledFireTime time.Time
	PreviousFireTime  time.Time
	NextFireTime      time.Time
}
