package chronoq

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// JobRunShell is the per-fire envelope a WorkerPool runs: it owns exactly
// one TriggerFiredBundle from listener notification through job execution
// to store completion, per spec.md §4.7. Grounded on the teacher's
// executeJobWithMetrics/handleJobFailure/handleJobSuccess trio
// (scheduler/optimized_scheduler.go), generalized from "run a handler
// closure and write back job.Status" into the full
// listener-veto/execute/completion-instruction pipeline.
type JobRunShell struct {
	sched    *Scheduler
	store    JobStore
	bus      ListenerBus
	factory  JobFactory
	bundle   *TriggerFiredBundle
	parentCtx context.Context

	mu      sync.Mutex
	current *JobExecutionContext
	job     Job
}

// newJobRunShell builds a shell for one fire, ready for Run().
func newJobRunShell(sched *Scheduler, store JobStore, bus ListenerBus, factory JobFactory, bundle *TriggerFiredBundle, parentCtx context.Context) *JobRunShell {
	return &JobRunShell{sched: sched, store: store, bus: bus, factory: factory, bundle: bundle, parentCtx: parentCtx}
}

// begin is the extensible no-op hook named in spec.md §4.7 step 1.
func (sh *JobRunShell) begin() {}

// Run implements Runnable; WorkerPool.RunInThread invokes this on a worker
// goroutine.
func (sh *JobRunShell) Run() {
	sh.begin()
	sh.sched.registerShell(sh.bundle.FireInstanceID, sh)
	defer sh.sched.unregisterShell(sh.bundle.FireInstanceID)
	refireCount := 0

	for {
		ctx := newJobExecutionContext(sh.parentCtx, sh.sched, sh.bundle)
		ctx.RefireCount = refireCount
		sh.setCurrent(ctx)

		vetoed := sh.bus.NotifyTriggerFired(sh.bundle.Trigger, ctx)
		if vetoed {
			sh.bus.NotifyJobExecutionVetoed(ctx)
			instruction := sh.bundle.Trigger.ExecutionComplete(ctx, nil)
			sh.store.TriggeredJobComplete(sh.bundle.Trigger, sh.bundle.JobDetail, instruction)
			if sh.bundle.Trigger.GetNextFireTime().IsZero() {
				sh.bus.NotifyTriggerFinalized(sh.bundle.Trigger)
			}
			sh.clearCurrent()
			return
		}

		sh.bus.NotifyJobToBeExecuted(ctx)

		job, err := sh.factory.NewJob(sh.bundle, sh.sched)
		if err != nil {
			sh.bus.NotifySchedulerError("job instantiation failed for "+sh.bundle.JobDetail.Key.String(), err)
			sh.clearCurrent()
			return
		}
		sh.setJob(job)

		start := time.Now()
		execErr := sh.safeExecute(job, ctx)
		end := time.Now()
		ctx.JobRunTime = end.Sub(start)

		sh.bus.NotifyJobWasExecuted(ctx, execErr)

		result := &JobExecutionResult{Err: execErr, StartTime: start, EndTime: end}
		instruction := sh.bundle.Trigger.ExecutionComplete(ctx, result)
		sh.bus.NotifyTriggerComplete(sh.bundle.Trigger, ctx, instruction)

		if instruction == InstructionReExecuteJob {
			refireCount++
			sh.clearCurrent()
			continue
		}

		sh.store.TriggeredJobComplete(sh.bundle.Trigger, sh.bundle.JobDetail, instruction)
		if sh.bundle.Trigger.GetNextFireTime().IsZero() {
			sh.bus.NotifyTriggerFinalized(sh.bundle.Trigger)
		}
		sh.clearCurrent()
		return
	}
}

// safeExecute recovers a job body panic into a JobExecutionError, matching
// the teacher's resilience.Execute wrapping of handler(job) in
// executeJobWithMetrics.
func (sh *JobRunShell) safeExecute(job Job, ctx *JobExecutionContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = NewJobExecutionError(e)
			} else {
				err = NewJobExecutionError(fmt.Errorf("job panicked: %v", r))
			}
		}
	}()
	return job.Execute(ctx)
}

func (sh *JobRunShell) setCurrent(ctx *JobExecutionContext) {
	sh.mu.Lock()
	sh.current = ctx
	sh.mu.Unlock()
}

func (sh *JobRunShell) clearCurrent() {
	sh.mu.Lock()
	sh.current = nil
	sh.job = nil
	sh.mu.Unlock()
}

func (sh *JobRunShell) setJob(job Job) {
	sh.mu.Lock()
	sh.job = job
	sh.mu.Unlock()
}

// Interrupt cancels the in-flight JobExecutionContext's Context, and, if the
// running job body implements InterruptableJob, also asks it to interrupt
// cooperatively. Returns ErrUnableToInterruptJob if neither applies.
func (sh *JobRunShell) Interrupt() error {
	sh.mu.Lock()
	ctx := sh.current
	job := sh.job
	sh.mu.Unlock()
	if ctx == nil {
		return ErrUnableToInterruptJob(sh.bundle.FireInstanceID)
	}
	ctx.interrupt()
	if ij, ok := job.(InterruptableJob); ok {
		return ij.Interrupt()
	}
	return nil
}

// FireInstanceID identifies which fire this shell is running.
func (sh *JobRunShell) FireInstanceID() string { return sh.bundle.FireInstanceID }

// JobKey identifies which job this shell's fire belongs to, for
// Scheduler.Interrupt(jobKey) lookups.
func (sh *JobRunShell) JobKey() JobKey { return sh.bundle.JobDetail.Key }
