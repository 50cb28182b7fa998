// Package abi holds the numeric values visible across the system-call
// boundary.
package abi

const (
	// NoProc is returned in place of a PID when no process qualifies.
	NoProc int32 = -1

	// NoFile is returned in place of a file id when none could be bound.
	NoFile int32 = -1
)

// Errno values are returned negated.
const (
	EPERM  = 1
	ENOENT = 2
	ESRCH  = 3
	EINTR  = 4
	EBADF  = 9
	ECHILD = 10
	EAGAIN = 11
	EFAULT = 14
	EINVAL = 22
	EMFILE = 24
	ENOSYS = 38
)
