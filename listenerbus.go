package chronoq

// ListenerBus is the narrow view of the listener package's Manager that
// JobRunShell, SchedulerThread, and the store need, declared here (rather
// than importing package listener) so the root package and listener can
// both depend on these shared types without an import cycle — listener.Manager
// satisfies this interface structurally.
type ListenerBus interface {
	NotifyJobToBeExecuted(ctx *JobExecutionContext)
	NotifyJobExecutionVetoed(ctx *JobExecutionContext)
	NotifyJobWasExecuted(ctx *JobExecutionContext, err error)

	// NotifyTriggerFired reports the fire to trigger listeners and returns
	// whether any of them vetoed execution.
	NotifyTriggerFired(t Trigger, ctx *JobExecutionContext) bool
	NotifyTriggerMisfired(t Trigger)
	NotifyTriggerComplete(t Trigger, ctx *JobExecutionContext, instruction CompletionInstruction)

	NotifyJobScheduled(t Trigger)
	NotifyJobUnscheduled(key TriggerKey)
	NotifyJobDeleted(key JobKey)
	NotifyTriggerFinalized(t Trigger)
	NotifySchedulerError(msg string, cause error)
	NotifySchedulerShutdown()
}
