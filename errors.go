package chronoq

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds named in spec.md §7. Each is a distinct Go type so callers can
// discriminate with errors.As; NewSchedulerError, WrapJobPersistenceError and
// NewConfigurationError wrap with pkg/errors to attach a stack trace at the
// point of origin, matching the teacher's database/boltdb.go idiom of
// errors.Wrap at every store boundary. The other constructors return the
// bare typed value.

// SchedulerError signals a general scheduler invariant violation.
type SchedulerError struct{ msg string }

func (e *SchedulerError) Error() string { return e.msg }

// NewSchedulerError builds a SchedulerError with a formatted message.
func NewSchedulerError(format string, args ...any) error {
	return errors.WithStack(&SchedulerError{msg: fmt.Sprintf(format, args...)})
}

// JobPersistenceError signals the store could not read or write.
type JobPersistenceError struct{ msg string }

func (e *JobPersistenceError) Error() string { return e.msg }

// WrapJobPersistenceError wraps a lower-level store error.
func WrapJobPersistenceError(err error, context string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(&JobPersistenceError{msg: context + ": " + err.Error()}, context)
}

// ObjectAlreadyExistsError is returned from store mutations lacking `replace`.
type ObjectAlreadyExistsError struct{ msg string }

func (e *ObjectAlreadyExistsError) Error() string { return e.msg }

// ErrObjectAlreadyExists constructs the sentinel for a given key description.
func ErrObjectAlreadyExists(what string) error {
	return &ObjectAlreadyExistsError{msg: what + " already exists"}
}

// IsObjectAlreadyExists reports whether err is (or wraps) ObjectAlreadyExistsError.
func IsObjectAlreadyExists(err error) bool {
	var target *ObjectAlreadyExistsError
	return errors.As(err, &target)
}

// JobExecutionError wraps a failure raised by a user job body, or any panic
// recovered from one.
type JobExecutionError struct {
	msg           string
	UnscheduleFiringTrigger bool
	UnscheduleAllTriggers   bool
	cause                   error
}

func (e *JobExecutionError) Error() string { return e.msg }
func (e *JobExecutionError) Unwrap() error { return e.cause }

// NewJobExecutionError wraps an arbitrary job failure.
func NewJobExecutionError(cause error) *JobExecutionError {
	return &JobExecutionError{msg: "job execution failed: " + cause.Error(), cause: cause}
}

// UnableToInterruptJobError is raised when a non-interruptible job is asked
// to interrupt.
type UnableToInterruptJobError struct{ msg string }

func (e *UnableToInterruptJobError) Error() string { return e.msg }

// ErrUnableToInterruptJob builds the sentinel for a given fire-instance id.
func ErrUnableToInterruptJob(fireInstanceID string) error {
	return &UnableToInterruptJobError{msg: fmt.Sprintf("job instance %s is not interruptible", fireInstanceID)}
}

// ConfigurationError is raised during factory/scheduler setup; fatal to
// scheduler construction.
type ConfigurationError struct{ msg string }

func (e *ConfigurationError) Error() string { return e.msg }

// NewConfigurationError builds a ConfigurationError with a formatted message.
func NewConfigurationError(format string, args ...any) error {
	return errors.WithStack(&ConfigurationError{msg: fmt.Sprintf(format, args...)})
}

// Sentinel not-found errors used across store implementations.
var (
	ErrJobNotFound      = errors.New("job not found")
	ErrTriggerNotFound  = errors.New("trigger not found")
	ErrCalendarNotFound = errors.New("calendar not found")
	ErrSchedulerStopped = errors.New("scheduler has been shut down")
	ErrNilArgument      = errors.New("argument must not be nil")
)
