package worker

import "errors"

// Sentinel errors for dependency pool operations
var (
	// ErrDuplicateTask indicates two tasks share a key
	ErrDuplicateTask = errors.New("duplicate task key")

	// ErrUnknownDependency indicates a task depends on a key that is not in the batch
	ErrUnknownDependency = errors.New("unknown task dependency")

	// ErrDependencyCycle indicates the dependency graph is not acyclic
	ErrDependencyCycle = errors.New("task dependency cycle")

	// ErrNilTask indicates a task without a Run function
	ErrNilTask = errors.New("task function cannot be nil")

	// ErrTaskPanic indicates a task panicked while running
	ErrTaskPanic = errors.New("task panicked")
)

// HaltError marks a task failure that must stop the whole run.
type HaltError struct {
	Err error
}

func (e *HaltError) Error() string { return "halt: " + e.Err.Error() }

func (e *HaltError) Unwrap() error { return e.Err }

// Halt wraps err so that returning it from a task cancels the run.
// Tasks already running finish; tasks not yet started are skipped.
func Halt(err error) error {
	if err == nil {
		return nil
	}
	return &HaltError{Err: err}
}

// IsHalt reports whether err was produced by Halt.
func IsHalt(err error) bool {
	var he *HaltError
	return errors.As(err, &he)
}
