package task

import (
	"errors"
	"fmt"
)

var (
	ErrComputeFailed = errors.New("compute failed")
	ErrUnsafeTaskID  = errors.New("task id escapes staging root")
)

// StepError records which pipeline step failed a task.
type StepError struct {
	Step   Step
	TaskID string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("task %s: %s: %v", e.TaskID, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// IsFatal reports whether err must stop the whole run rather than just the
// current task.
func IsFatal(err error) bool { return errors.Is(err, ErrComputeFailed) }
