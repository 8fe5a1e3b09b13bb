// Package listener implements the job/trigger/scheduler listener contracts
// and matcher-based dispatch named in spec.md §4.9. No direct teacher
// precedent exists for this capability-interface-plus-matcher shape; it is
// grounded on the capability-interface style of
// other_examples/15466a9f_GoCodeAlone-modular__modules-scheduler-interfaces.go.go
// (small, orthogonal interfaces a caller composes rather than a class
// hierarchy) and on spec.md §4.9/§9's explicit listener design note.
package listener

import "github.com/arjunv/chronoq"

// JobListener observes a job's lifecycle around each fire.
type JobListener interface {
	Name() string
	JobToBeExecuted(ctx *chronoq.JobExecutionContext)
	JobExecutionVetoed(ctx *chronoq.JobExecutionContext)
	JobWasExecuted(ctx *chronoq.JobExecutionContext, err error)
}

// TriggerListener observes a trigger's lifecycle around each fire and may
// veto execution before the job body runs.
type TriggerListener interface {
	Name() string
	TriggerFired(t chronoq.Trigger, ctx *chronoq.JobExecutionContext)
	VetoJobExecution(t chronoq.Trigger, ctx *chronoq.JobExecutionContext) bool
	TriggerMisfired(t chronoq.Trigger)
	TriggerComplete(t chronoq.Trigger, ctx *chronoq.JobExecutionContext, instruction chronoq.CompletionInstruction)
}

// SchedulerListener observes scheduler-wide events unrelated to any single
// fire: scheduling changes, deletions, errors, shutdown.
type SchedulerListener interface {
	JobScheduled(trigger chronoq.Trigger)
	JobUnscheduled(key chronoq.TriggerKey)
	JobDeleted(key chronoq.JobKey)
	TriggerFinalized(trigger chronoq.Trigger)
	SchedulerError(msg string, cause error)
	SchedulerShutdown()
}
