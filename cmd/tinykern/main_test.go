package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/evanphx/tinykern/kernel"
	clog "github.com/evanphx/tinykern/log"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

func TestTree(t *testing.T) {
	n := neko.Modern(t)

	n.It("runs the tree and reports every leaf", func(t *testing.T) {
		var out bytes.Buffer

		cfg := kernel.DefaultConfig()
		cfg.MaxProc = 32

		o := &options{fanout: 2, depth: 2, hold: 100 * time.Millisecond}

		require.NoError(t, runTree(context.Background(), &out, cfg, o))

		text := out.String()
		require.Equal(t, 4, strings.Count(text, "leaf pid="))
		require.Contains(t, text, "PID")
		require.Contains(t, text, "demo).node")
		require.Regexp(t, `\d+ of 32 slots in use`, text)
	})

	n.It("keeps draining the pipe when output fails", func(t *testing.T) {
		var logs bytes.Buffer

		k, err := kernel.NewKernel(kernel.DefaultConfig())
		require.NoError(t, err)

		d := &demo{
			k:      k,
			L:      hclog.New(&hclog.LoggerOptions{Output: &logs}),
			outFid: 9,
		}

		ctx := context.Background()

		rfd, wfd, err := k.Pipe(ctx)
		require.NoError(t, err)

		go func() {
			k.Write(ctx, wfd, []byte("leaf pid=2\n"))
			k.Write(ctx, wfd, []byte("leaf pid=3\n"))
			k.Close(ctx, wfd)
		}()

		require.Equal(t, 0, d.collect(ctx, rfd))
		require.Equal(t, 2, strings.Count(logs.String(), "collector write failed"))
	})

	n.It("turns on debug logging from the flag", func(t *testing.T) {
		defer clog.L.SetLevel(hclog.Info)

		clog.L.SetLevel(hclog.Info)

		cmd := newRootCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--debug"}))
		require.NoError(t, cmd.PersistentPreRunE(cmd, nil))

		require.True(t, clog.L.IsDebug())
	})

	n.It("takes the table size from flags over the config", func(t *testing.T) {
		cmd := newRootCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--max-proc", "12"}))

		var o options
		o.maxProc = 12

		cfg, err := loadConfig(cmd, &o)
		require.NoError(t, err)
		require.Equal(t, 12, cfg.MaxProc)
	})

	n.Meow()
}
