package chronoq

import (
	"context"
	"time"
)

// JobDataMap carries arbitrary string-keyed parameters between a JobDetail,
// its Triggers, and the Job instance executed for a given fire.
type JobDataMap map[string]any

// NewJobDataMap returns an empty JobDataMap.
func NewJobDataMap() JobDataMap { return make(JobDataMap) }

// GetString returns the value at key as a string, if present and typed.
func (m JobDataMap) GetString(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt returns the value at key as an int, if present and typed.
func (m JobDataMap) GetInt(key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	i, ok := v.(int)
	return i, ok
}

// GetBool returns the value at key as a bool, if present and typed.
func (m JobDataMap) GetBool(key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// GetDuration returns the value at key as a time.Duration, if present and typed.
func (m JobDataMap) GetDuration(key string) (time.Duration, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	d, ok := v.(time.Duration)
	return d, ok
}

// Clone returns a shallow copy of the map.
func (m JobDataMap) Clone() JobDataMap {
	out := make(JobDataMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge returns a new map containing m's entries overridden by other's.
// Used to combine a JobDetail's data map with its firing Trigger's data map,
// with the trigger's values taking precedence.
func (m JobDataMap) Merge(other JobDataMap) JobDataMap {
	out := m.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// JobExecutionContext is created by the JobRunShell for each fire and
// destroyed after the completion-listener dispatch. It carries everything
// the job body and the trigger's ExecutionComplete need to see a fire.
type JobExecutionContext struct {
	Scheduler         *Scheduler
	Trigger           Trigger
	JobDetail         *JobDetail
	Calendar          Calendar
	FireTime          time.Time
	ScheduledFireTime time.Time
	PreviousFireTime  time.Time
	NextFireTime      time.Time
	RefireCount       int
	Recovering        bool
	FireInstanceID    string

	JobRunTime time.Duration
	Result     any

	data JobDataMap

	ctx    context.Context
	cancel context.CancelFunc
}

func newJobExecutionContext(parent context.Context, sched *Scheduler, bundle *TriggerFiredBundle) *JobExecutionContext {
	ctx, cancel := context.WithCancel(parent)
	return &JobExecutionContext{
		Scheduler:         sched,
		Trigger:           bundle.Trigger,
		JobDetail:         bundle.JobDetail,
		Calendar:          bundle.Calendar,
		FireTime:          bundle.FireTime,
		ScheduledFireTime: bundle.ScheduledFireTime,
		PreviousFireTime:  bundle.PreviousFireTime,
		NextFireTime:      bundle.NextFireTime,
		Recovering:        bundle.Recovering,
		FireInstanceID:    bundle.FireInstanceID,
		data:              bundle.JobDetail.JobDataMap.Merge(bundle.Trigger.Data()),
		ctx:               ctx,
		cancel:            cancel,
	}
}

// NewTestJobExecutionContext builds a JobExecutionContext outside of a real
// fire cycle, for Job implementations in other packages to exercise
// Execute in their own unit tests. jobData is merged under the given
// trigger data the same way a real fire merges JobDetail.JobDataMap with
// Trigger.Data().
func NewTestJobExecutionContext(parent context.Context, jobDetail *JobDetail, triggerData JobDataMap, fireTime time.Time) *JobExecutionContext {
	ctx, cancel := context.WithCancel(parent)
	return &JobExecutionContext{
		JobDetail:      jobDetail,
		FireTime:       fireTime,
		FireInstanceID: "test-" + jobDetail.Key.String(),
		data:           jobDetail.JobDataMap.Merge(triggerData),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Context returns the context.Context bound to this fire. Canceled on
// Interrupt().
func (c *JobExecutionContext) Context() context.Context { return c.ctx }

// JobDataMap returns the merged data map (JobDetail overridden by Trigger)
// visible to the job body for this fire.
func (c *JobExecutionContext) JobDataMap() JobDataMap { return c.data }

// MergedJobDataMap is an alias for JobDataMap kept for readability at call sites.
func (c *JobExecutionContext) MergedJobDataMap() JobDataMap { return c.data }

func (c *JobExecutionContext) interrupt() { c.cancel() }

// Job is the user-supplied unit of work. Implementations must be safe to
// invoke concurrently across distinct JobExecutionContexts unless the
// owning JobDetail sets ConcurrentExecutionDisallowed.
type Job interface {
	Execute(ctx *JobExecutionContext) error
}

// InterruptableJob is a Job capability allowing cooperative cancellation
// via the Scheduler facade's Interrupt methods.
type InterruptableJob interface {
	Job
	Interrupt() error
}

// JobDetail is the immutable identity plus instantiation recipe for a Job.
type JobDetail struct {
	Key         JobKey
	Description string

	// JobType is a user-facing capability identifier (akin to a Java class
	// name); NewJob is the actual instantiation recipe the job factory
	// invokes. A persistent store may use JobType to find the recipe again
	// when it reloads a job (store/boltstore does).
	JobType string
	NewJob  func() Job

	JobDataMap JobDataMap

	Durable                       bool
	Recoverable                   bool
	ConcurrentExecutionDisallowed bool
	PersistJobDataAfterExecution  bool
}

// NewJobDetail builds a JobDetail with an empty data map and all flags false.
func NewJobDetail(key JobKey, jobType string, newJob func() Job) *JobDetail {
	return &JobDetail{
		Key:        key,
		JobType:    jobType,
		NewJob:     newJob,
		JobDataMap: NewJobDataMap(),
	}
}

// WithDescription sets the human-readable description and returns the receiver.
func (jd *JobDetail) WithDescription(d string) *JobDetail { jd.Description = d; return jd }

// WithDurable marks the job as allowed to exist without any trigger.
func (jd *JobDetail) WithDurable(v bool) *JobDetail { jd.Durable = v; return jd }

// WithRecoverable sets the job's Recoverable flag. The stores in this
// repository keep (and store/boltstore persists) the flag, but none of them
// re-fires a job after abnormal scheduler termination.
func (jd *JobDetail) WithRecoverable(v bool) *JobDetail { jd.Recoverable = v; return jd }

// WithConcurrentExecutionDisallowed serializes fires of this job's triggers.
func (jd *JobDetail) WithConcurrentExecutionDisallowed(v bool) *JobDetail {
	jd.ConcurrentExecutionDisallowed = v
	return jd
}

// WithPersistJobDataAfterExecution causes the store to persist mutations the
// job body makes to its JobExecutionContext's data map back onto the
// JobDetail after each fire.
func (jd *JobDetail) WithPersistJobDataAfterExecution(v bool) *JobDetail {
	jd.PersistJobDataAfterExecution = v
	return jd
}

// WithJobData sets the job's data map, replacing any existing one.
func (jd *JobDetail) WithJobData(data JobDataMap) *JobDetail { jd.JobDataMap = data; return jd }

// Clone returns a deep-enough copy (data map copied, NewJob recipe shared).
func (jd *JobDetail) Clone() *JobDetail {
	c := *jd
	c.JobDataMap = jd.JobDataMap.Clone()
	return &c
}

// SimpleJobFactory adapts a JobDetail's NewJob recipe into a job factory,
// injecting no additional properties. Grounded on the teacher's pattern of
// constructing a handler closure once and reusing it per fire
// (scheduler.JobHandler in scheduler/scheduler.go), generalized into a
// factory per spec.md §6's "Job factory contract".
type SimpleJobFactory struct{}

// NewJob instantiates a Job from the bundle's JobDetail recipe.
func (SimpleJobFactory) NewJob(bundle *TriggerFiredBundle, _ *Scheduler) (Job, error) {
	if bundle.JobDetail.NewJob == nil {
		return nil, NewSchedulerError("job detail %s has no instantiation recipe", bundle.JobDetail.Key)
	}
	return bundle.JobDetail.NewJob(), nil
}

// JobFactory instantiates a Job instance for a fire. Implementations may
// inject JobDataMap values into the returned instance (e.g. via a property
// setter convention); SimpleJobFactory does not.
type JobFactory interface {
	NewJob(bundle *TriggerFiredBundle, sched *Scheduler) (Job, error)
}
