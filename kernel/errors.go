package kernel

import "github.com/pkg/errors"

var (
	// ErrNoProcess is the cause of every failure that the system-call
	// surface reports as NoProc.
	ErrNoProcess = errors.New("no such process")

	ErrTableFull  = errors.Wrap(ErrNoProcess, "process table exhausted")
	ErrInvalidPid = errors.Wrap(ErrNoProcess, "pid out of range")
	ErrNotChild   = errors.Wrap(ErrNoProcess, "not a child of the caller")
	ErrNoChildren = errors.Wrap(ErrNoProcess, "caller has no children")

	ErrNoThread      = errors.New("not running on a process thread")
	ErrNoTask        = errors.New("thread requires a task")
	ErrUnknownFile   = errors.New("unknown file")
	ErrFileTableFull = errors.New("file table exhausted")
	ErrBootstrap     = errors.New("process table failed to bootstrap")
	ErrInitRunning   = errors.New("init process already started")
	ErrInvalidConfig = errors.New("invalid kernel configuration")
)

// IsNoProcess reports whether err is one of the failures reported as
// NoProc across the system-call boundary.
func IsNoProcess(err error) bool {
	return errors.Cause(err) == ErrNoProcess
}
