package executor

import (
	"errors"
	"fmt"

	"github.com/serverledge-faas/offloading/internal/task"
)

var HandlerPanicErr = errors.New("task handler panicked")

// RemoteDispatchError is a failed remote attempt. It always triggers exactly one
// local retry and only surfaces on the Result of a fallback execution.
type RemoteDispatchError struct {
	Task  task.ID
	Cause error
}

func (e *RemoteDispatchError) Error() string {
	return fmt.Sprintf("remote dispatch of %s failed: %v", e.Task, e.Cause)
}

func (e *RemoteDispatchError) Unwrap() error {
	return e.Cause
}

// TaskExecutionError is returned when no execution could be completed.
type TaskExecutionError struct {
	Task  task.ID
	RanOn RanOn
	Cause error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("execution of %s (%s) failed: %v", e.Task, e.RanOn, e.Cause)
}

func (e *TaskExecutionError) Unwrap() error {
	return e.Cause
}
