package kernel

import (
	"bytes"
	"context"
	"testing"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

var errCloseFailed = errors.New("close failed")

type failingCloser struct{}

func (failingCloser) Read(b []byte) (int, error) {
	return 0, nil
}

func (failingCloser) Close() error {
	return errCloseFailed
}

func TestFiles(t *testing.T) {
	n := neko.Modern(t)

	n.It("carries data from a child through an inherited pipe", func(t *testing.T) {
		k := testKernel(t, 8)

		ctx := context.Background()

		_, err := k.Exec(ctx, nil, nil)
		require.NoError(t, err)

		rfd, wfd, err := k.Pipe(ctx)
		require.NoError(t, err)

		writer := func(ctx context.Context, args []byte) int {
			if _, err := k.Write(ctx, wfd, []byte("hi")); err != nil {
				return 1
			}
			return 0
		}

		pid, err := k.Exec(ctx, writer, nil)
		require.NoError(t, err)

		buf := make([]byte, 2)
		n, err := k.Read(ctx, rfd, buf)
		require.NoError(t, err)
		require.Equal(t, "hi", string(buf[:n]))

		_, status, err := k.WaitChild(ctx, pid)
		require.NoError(t, err)
		require.Equal(t, 0, status)

		wf, ok := k.File(ctx, wfd)
		require.True(t, ok)
		require.Equal(t, 1, wf.Refs())

		rf, ok := k.File(ctx, rfd)
		require.True(t, ok)
		require.Equal(t, 1, rf.Refs())
	})

	n.It("releases handles when a process exits", func(t *testing.T) {
		k := testKernel(t, 8)

		ctx := context.Background()

		_, err := k.Exec(ctx, nil, nil)
		require.NoError(t, err)

		f := NewFile(nopReader(), nil)
		_, err = k.Install(ctx, f)
		require.NoError(t, err)

		release := make(chan struct{})

		pid, err := k.Exec(ctx, blocking(release, 0), nil)
		require.NoError(t, err)
		require.Equal(t, 2, f.Refs())

		close(release)
		waitState(t, k, pid, Zombie)

		require.Equal(t, 1, f.Refs())

		k.mu.Lock()
		for _, h := range k.table[pid].proc.files {
			require.Nil(t, h)
		}
		k.mu.Unlock()

		_, _, err = k.WaitChild(ctx, pid)
		require.NoError(t, err)
	})

	n.It("rejects unknown fids", func(t *testing.T) {
		k := testKernel(t, 8)

		ctx := context.Background()

		require.ErrorIs(t, k.Close(ctx, 3), ErrUnknownFile)
		require.ErrorIs(t, k.Close(ctx, -1), ErrUnknownFile)

		_, err := k.Read(ctx, 0, make([]byte, 1))
		require.ErrorIs(t, err, ErrUnknownFile)

		fid, err := k.OpenInfo(ctx)
		require.NoError(t, err)

		_, err = k.Write(ctx, fid, []byte("x"))
		require.ErrorIs(t, err, ErrUnknownFile)
	})

	n.It("duplicates a handle onto another fid", func(t *testing.T) {
		k := testKernel(t, 8)

		ctx := context.Background()

		a := NewFile(nopReader(), nil)
		b := NewFile(nopReader(), nil)

		fa, err := k.Install(ctx, a)
		require.NoError(t, err)

		fb, err := k.Install(ctx, b)
		require.NoError(t, err)

		require.NoError(t, k.Dup2(ctx, fa, fb))

		got, ok := k.File(ctx, fb)
		require.True(t, ok)
		require.Same(t, a, got)
		require.Equal(t, 2, a.Refs())
		require.Equal(t, 0, b.Refs())
	})

	n.It("logs a failed close of the replaced handle and still dups", func(t *testing.T) {
		var logs bytes.Buffer

		logger := hclog.New(&hclog.LoggerOptions{
			Output: &logs,
			Level:  hclog.Warn,
		})

		k := testKernel(t, 8, WithLogger(logger))

		ctx := context.Background()

		a := NewFile(nopReader(), nil)
		b := NewFile(failingCloser{}, nil)

		fa, err := k.Install(ctx, a)
		require.NoError(t, err)

		fb, err := k.Install(ctx, b)
		require.NoError(t, err)

		require.NoError(t, k.Dup2(ctx, fa, fb))

		got, ok := k.File(ctx, fb)
		require.True(t, ok)
		require.Same(t, a, got)
		require.Equal(t, 0, b.Refs())

		require.Contains(t, logs.String(), "error closing file replaced by dup2")
		require.Contains(t, logs.String(), errCloseFailed.Error())
	})

	n.It("fails when the handle table is full", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxProc = 4
		cfg.MaxFileID = 2

		k, err := NewKernel(cfg)
		require.NoError(t, err)

		ctx := context.Background()

		_, _, err = k.Pipe(ctx)
		require.NoError(t, err)

		_, err = k.OpenInfo(ctx)
		require.ErrorIs(t, err, ErrFileTableFull)
	})

	n.Meow()
}
