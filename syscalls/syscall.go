package syscalls

import (
	"context"

	"github.com/evanphx/tinykern/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

type SysArgs struct {
	Index int32
	Args  SyscallRequest
}

// SyscallRequest carries the register arguments of a call plus the
// values that cannot travel in a register: the task of Exec and
// CreateThread, the data buffer of Exec, Read and Write, and an optional
// out slot for WaitChild's status and Pipe's write end.
type SyscallRequest struct {
	R0, R1, R2, R3 int32

	Task kernel.TaskFunc
	Buf  []byte
	Out  *int32
}

const (
	SysExec         = 1
	SysExit         = 2
	SysWaitChild    = 3
	SysGetPid       = 4
	SysGetPPid      = 5
	SysCreateThread = 6
	SysThreadExit   = 7
	SysRead         = 8
	SysWrite        = 9
	SysClose        = 10
	SysDup2         = 11
	SysPipe         = 12
	SysOpenInfo     = 13
	SysThreadSelf   = 14
)

var Syscalls [64]func(context.Context, hclog.Logger, *kernel.Kernel, SysArgs) int32
