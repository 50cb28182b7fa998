package syscalls

import (
	"context"
	"io"

	"github.com/evanphx/tinykern/abi"
	"github.com/evanphx/tinykern/kernel"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

func fileErrno(l hclog.Logger, err error, fid int32) int32 {
	switch errors.Cause(err) {
	case kernel.ErrUnknownFile:
		return -abi.EBADF
	case kernel.ErrFileTableFull:
		return -abi.EMFILE
	case io.ErrShortBuffer:
		return -abi.EINVAL
	case io.ErrClosedPipe:
		return -abi.EBADF
	}

	l.Error("error on fid", "error", err, "fid", fid)
	return -abi.EFAULT
}

func sysRead(ctx context.Context, l hclog.Logger, k *kernel.Kernel, args SysArgs) int32 {
	var (
		fid = args.Args.R0
	)

	n, err := k.Read(ctx, kernel.Fid(fid), args.Args.Buf)
	if err != nil {
		if err == io.EOF {
			return int32(n)
		}

		return fileErrno(l, err, fid)
	}

	return int32(n)
}

func sysWrite(ctx context.Context, l hclog.Logger, k *kernel.Kernel, args SysArgs) int32 {
	var (
		fid = args.Args.R0
	)

	n, err := k.Write(ctx, kernel.Fid(fid), args.Args.Buf)
	if err != nil {
		return fileErrno(l, err, fid)
	}

	return int32(n)
}

func sysClose(ctx context.Context, l hclog.Logger, k *kernel.Kernel, args SysArgs) int32 {
	var (
		fid = args.Args.R0
	)

	if err := k.Close(ctx, kernel.Fid(fid)); err != nil {
		return fileErrno(l, err, fid)
	}

	return 0
}

func sysDup2(ctx context.Context, l hclog.Logger, k *kernel.Kernel, args SysArgs) int32 {
	var (
		from = args.Args.R0
		to   = args.Args.R1
	)

	if err := k.Dup2(ctx, kernel.Fid(from), kernel.Fid(to)); err != nil {
		return fileErrno(l, err, from)
	}

	return to
}

// sysPipe returns the read end and stores the write end in Out.
func sysPipe(ctx context.Context, l hclog.Logger, k *kernel.Kernel, args SysArgs) int32 {
	if args.Args.Out == nil {
		return -abi.EFAULT
	}

	rfd, wfd, err := k.Pipe(ctx)
	if err != nil {
		return fileErrno(l, err, -1)
	}

	*args.Args.Out = int32(wfd)

	return int32(rfd)
}

func sysOpenInfo(ctx context.Context, l hclog.Logger, k *kernel.Kernel, args SysArgs) int32 {
	fid, err := k.OpenInfo(ctx)
	if err != nil {
		l.Debug("unable to open procinfo", "error", err)
		return abi.NoFile
	}

	return int32(fid)
}

func init() {
	Syscalls[SysRead] = sysRead
	Syscalls[SysWrite] = sysWrite
	Syscalls[SysClose] = sysClose
	Syscalls[SysDup2] = sysDup2
	Syscalls[SysPipe] = sysPipe
	Syscalls[SysOpenInfo] = sysOpenInfo
}
