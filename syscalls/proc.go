package syscalls

import (
	"context"

	"github.com/evanphx/tinykern/abi"
	"github.com/evanphx/tinykern/kernel"
	"github.com/evanphx/tinykern/log"
	hclog "github.com/hashicorp/go-hclog"
)

func sysExec(ctx context.Context, l hclog.Logger, k *kernel.Kernel, args SysArgs) int32 {
	var (
		argl = args.Args.R0
		buf  = args.Args.Buf
	)

	if argl < 0 || (buf != nil && int(argl) > len(buf)) {
		return abi.NoProc
	}

	var execArgs []byte
	if buf != nil {
		execArgs = buf[:argl]
	}

	pid, err := k.Exec(ctx, args.Args.Task, execArgs)
	if err != nil {
		if !kernel.IsNoProcess(err) {
			l.Error("unable to exec process", "error", err)
		}

		return abi.NoProc
	}

	return int32(pid)
}

func sysGetPid(ctx context.Context, l hclog.Logger, k *kernel.Kernel, args SysArgs) int32 {
	return int32(k.GetPid(ctx))
}

func sysGetPPid(ctx context.Context, l hclog.Logger, k *kernel.Kernel, args SysArgs) int32 {
	return int32(k.GetParentPid(ctx))
}

func sysExit(ctx context.Context, l hclog.Logger, k *kernel.Kernel, args SysArgs) int32 {
	k.Exit(ctx, int(args.Args.R0))

	// Only reached when ctx carries no process thread.
	return -abi.EPERM
}

func sysWaitChild(ctx context.Context, l hclog.Logger, k *kernel.Kernel, args SysArgs) int32 {
	var (
		target = kernel.Pid(args.Args.R0)
		out    = args.Args.Out
	)

	pid, status, err := k.WaitChild(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return -abi.EINTR
		}

		log.L.Trace("wait-no-child", "target", target, "error", err)
		return abi.NoProc
	}

	if out != nil {
		*out = int32(status)
	}

	log.L.Trace("wait-found-child", "pid", pid, "status", status)
	return int32(pid)
}

func sysCreateThread(ctx context.Context, l hclog.Logger, k *kernel.Kernel, args SysArgs) int32 {
	var (
		argl = args.Args.R0
		buf  = args.Args.Buf
	)

	if argl < 0 || (buf != nil && int(argl) > len(buf)) {
		return -abi.EFAULT
	}

	if buf != nil {
		buf = buf[:argl]
	}

	t, err := k.CreateThread(ctx, args.Args.Task, buf)
	if err != nil {
		l.Debug("unable to create thread", "error", err)
		return -abi.EINVAL
	}

	return int32(t.Tid())
}

func sysThreadSelf(ctx context.Context, l hclog.Logger, k *kernel.Kernel, args SysArgs) int32 {
	t, ok := k.ThreadSelf(ctx)
	if !ok {
		return -abi.EPERM
	}

	return int32(t.Tid())
}

func sysThreadExit(ctx context.Context, l hclog.Logger, k *kernel.Kernel, args SysArgs) int32 {
	k.ThreadExit(ctx, int(args.Args.R0))
	return -abi.EPERM
}

func init() {
	Syscalls[SysExec] = sysExec
	Syscalls[SysExit] = sysExit
	Syscalls[SysWaitChild] = sysWaitChild
	Syscalls[SysGetPid] = sysGetPid
	Syscalls[SysGetPPid] = sysGetPPid
	Syscalls[SysCreateThread] = sysCreateThread
	Syscalls[SysThreadExit] = sysThreadExit
	Syscalls[SysThreadSelf] = sysThreadSelf
}
