package syscalls

import (
	"context"

	"github.com/evanphx/tinykern/abi"
	"github.com/evanphx/tinykern/kernel"
	"github.com/evanphx/tinykern/log"
)

type Invoker struct {
	Kernel *kernel.Kernel
}

// InvokeSyscall runs the call on behalf of the thread bound to ctx, or of
// the idle process when ctx carries none.
func (i *Invoker) InvokeSyscall(ctx context.Context, args SysArgs) int32 {
	if args.Index < 0 || int(args.Index) >= len(Syscalls) {
		return -abi.ENOSYS
	}

	if f := Syscalls[args.Index]; f != nil {
		return f(ctx, log.L, i.Kernel, args)
	}

	log.L.Debug("unknown-syscall", "index", args.Index)

	return -abi.ENOSYS
}

// Syscall is a shorthand for InvokeSyscall with only register arguments.
func (i *Invoker) Syscall(ctx context.Context, index int32, req SyscallRequest) int32 {
	return i.InvokeSyscall(ctx, SysArgs{Index: index, Args: req})
}
