package syscalls

import (
	"context"
	"testing"

	"github.com/evanphx/tinykern/abi"
	"github.com/evanphx/tinykern/kernel"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

func newInvoker(t *testing.T, maxProc int) *Invoker {
	cfg := kernel.DefaultConfig()
	cfg.MaxProc = maxProc

	k, err := kernel.NewKernel(cfg)
	require.NoError(t, err)

	return &Invoker{Kernel: k}
}

func TestSyscalls(t *testing.T) {
	n := neko.Modern(t)

	n.It("reports unknown calls", func(t *testing.T) {
		inv := newInvoker(t, 4)

		ctx := context.Background()

		require.Equal(t, int32(-abi.ENOSYS), inv.Syscall(ctx, 63, SyscallRequest{}))
		require.Equal(t, int32(-abi.ENOSYS), inv.Syscall(ctx, 4096, SyscallRequest{}))
		require.Equal(t, int32(-abi.ENOSYS), inv.Syscall(ctx, -1, SyscallRequest{}))
	})

	n.It("execs and waits with sentinel results", func(t *testing.T) {
		inv := newInvoker(t, 4)

		ctx := context.Background()

		require.Equal(t, int32(0), inv.Syscall(ctx, SysGetPid, SyscallRequest{}))
		require.Equal(t, abi.NoProc, inv.Syscall(ctx, SysGetPPid, SyscallRequest{}))

		require.Equal(t, int32(1), inv.Syscall(ctx, SysExec, SyscallRequest{}))

		require.Equal(t, abi.NoProc, inv.Syscall(ctx, SysWaitChild, SyscallRequest{R0: abi.NoProc}))

		type ids struct{ pid, ppid int32 }
		seen := make(chan ids, 1)

		task := func(ctx context.Context, args []byte) int {
			seen <- ids{
				inv.Syscall(ctx, SysGetPid, SyscallRequest{}),
				inv.Syscall(ctx, SysGetPPid, SyscallRequest{}),
			}
			return len(args)
		}

		pid := inv.Syscall(ctx, SysExec, SyscallRequest{R0: 3, Task: task, Buf: []byte("abcdef")})
		require.Equal(t, int32(2), pid)

		got := <-seen
		require.Equal(t, ids{2, 0}, got)

		var status int32
		require.Equal(t, pid, inv.Syscall(ctx, SysWaitChild, SyscallRequest{R0: pid, Out: &status}))
		require.Equal(t, int32(3), status)

		require.Equal(t, abi.NoProc, inv.Syscall(ctx, SysWaitChild, SyscallRequest{R0: 1}))
		require.Equal(t, abi.NoProc, inv.Syscall(ctx, SysWaitChild, SyscallRequest{R0: 40}))
	})

	n.It("identifies threads by tid", func(t *testing.T) {
		inv := newInvoker(t, 4)

		ctx := context.Background()

		require.Equal(t, int32(-abi.EPERM), inv.Syscall(ctx, SysThreadSelf, SyscallRequest{}))
		require.Equal(t, int32(1), inv.Syscall(ctx, SysExec, SyscallRequest{}))

		type tids struct{ main, created, reported int32 }
		seen := make(chan tids, 1)

		task := func(ctx context.Context, args []byte) int {
			reported := make(chan int32, 1)

			worker := func(ctx context.Context, args []byte) int {
				reported <- inv.Syscall(ctx, SysThreadSelf, SyscallRequest{})
				return 0
			}

			main := inv.Syscall(ctx, SysThreadSelf, SyscallRequest{})
			created := inv.Syscall(ctx, SysCreateThread, SyscallRequest{Task: worker})

			seen <- tids{main, created, <-reported}
			return 0
		}

		pid := inv.Syscall(ctx, SysExec, SyscallRequest{Task: task})
		require.True(t, pid > 0)

		got := <-seen
		require.True(t, got.main > 0)
		require.NotEqual(t, got.main, got.created)
		require.Equal(t, got.created, got.reported)

		require.Equal(t, pid, inv.Syscall(ctx, SysWaitChild, SyscallRequest{R0: pid}))
	})

	n.It("returns NoProc when the table is full", func(t *testing.T) {
		inv := newInvoker(t, 3)

		ctx := context.Background()

		require.Equal(t, int32(1), inv.Syscall(ctx, SysExec, SyscallRequest{}))
		require.Equal(t, int32(2), inv.Syscall(ctx, SysExec, SyscallRequest{}))
		require.Equal(t, abi.NoProc, inv.Syscall(ctx, SysExec, SyscallRequest{}))
	})

	n.It("rejects an argument length beyond the buffer", func(t *testing.T) {
		inv := newInvoker(t, 4)

		pid := inv.Syscall(context.Background(), SysExec, SyscallRequest{R0: 9, Buf: []byte("ab")})
		require.Equal(t, abi.NoProc, pid)
	})

	n.It("refuses exit outside a process thread", func(t *testing.T) {
		inv := newInvoker(t, 4)

		require.Equal(t, int32(-abi.EPERM), inv.Syscall(context.Background(), SysExit, SyscallRequest{R0: 1}))
	})

	n.It("streams the process table until it returns zero", func(t *testing.T) {
		inv := newInvoker(t, 8)

		ctx := context.Background()

		require.Equal(t, int32(1), inv.Syscall(ctx, SysExec, SyscallRequest{}))

		fid := inv.Syscall(ctx, SysOpenInfo, SyscallRequest{})
		require.Equal(t, int32(0), fid)

		buf := make([]byte, kernel.ProcInfoSize)

		var pids []kernel.Pid

		for {
			n := inv.Syscall(ctx, SysRead, SyscallRequest{R0: fid, Buf: buf})
			require.True(t, n >= 0)

			if n == 0 {
				break
			}

			info, err := kernel.DecodeProcInfo(buf[:n])
			require.NoError(t, err)
			pids = append(pids, info.Pid)
		}

		require.Equal(t, []kernel.Pid{0, 1}, pids)
		require.Equal(t, int32(0), inv.Syscall(ctx, SysRead, SyscallRequest{R0: fid, Buf: buf}))

		short := make([]byte, 4)
		require.Equal(t, int32(-abi.EINVAL), inv.Syscall(ctx, SysRead, SyscallRequest{R0: fid, Buf: short}))

		require.Equal(t, int32(0), inv.Syscall(ctx, SysClose, SyscallRequest{R0: fid}))
		require.Equal(t, int32(-abi.EBADF), inv.Syscall(ctx, SysClose, SyscallRequest{R0: fid}))
	})

	n.It("connects a pipe and duplicates its ends", func(t *testing.T) {
		inv := newInvoker(t, 8)

		ctx := context.Background()

		var wfd int32
		rfd := inv.Syscall(ctx, SysPipe, SyscallRequest{Out: &wfd})
		require.Equal(t, int32(0), rfd)
		require.Equal(t, int32(1), wfd)

		require.Equal(t, int32(5), inv.Syscall(ctx, SysDup2, SyscallRequest{R0: wfd, R1: 5}))
		require.Equal(t, int32(0), inv.Syscall(ctx, SysClose, SyscallRequest{R0: wfd}))

		go inv.Syscall(ctx, SysWrite, SyscallRequest{R0: 5, Buf: []byte("ping")})

		buf := make([]byte, 4)
		require.Equal(t, int32(4), inv.Syscall(ctx, SysRead, SyscallRequest{R0: rfd, Buf: buf}))
		require.Equal(t, "ping", string(buf))

		require.Equal(t, int32(-abi.EFAULT), inv.Syscall(ctx, SysPipe, SyscallRequest{}))
		require.Equal(t, int32(-abi.EBADF), inv.Syscall(ctx, SysWrite, SyscallRequest{R0: 9, Buf: buf}))
	})

	n.Meow()
}
