package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/evanphx/tinykern/kernel"
	clog "github.com/evanphx/tinykern/log"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

type closeProtect struct {
	io.Writer
}

func (closeProtect) Close() error {
	return nil
}

// lockedWriter serializes the table printer and the collector thread.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.w.Write(b)
}

// demo is the program run as init: it builds a tree of processes whose
// leaves report through a pipe inherited from init.
type demo struct {
	k   *kernel.Kernel
	L   hclog.Logger
	out io.Writer
	o   *options

	outFid kernel.Fid
	wfd    kernel.Fid
}

func runTree(ctx context.Context, out io.Writer, cfg kernel.Config, o *options) error {
	k, err := kernel.NewKernel(cfg)
	if err != nil {
		return errors.Wrap(err, "booting kernel")
	}

	d := &demo{
		k:   k,
		L:   clog.Named("demo"),
		out: &lockedWriter{w: out},
		o:   o,
	}

	status, err := k.Run(ctx, d.init, nil)
	if err != nil {
		return err
	}

	k.Wait()

	d.L.Info("init exited", "status", status, "processes", k.ProcessCount(), "capacity", k.Capacity())

	return k.Check()
}

func (d *demo) init(ctx context.Context, args []byte) int {
	var err error

	d.outFid, err = d.k.Install(ctx, kernel.NewFile(nil, closeProtect{d.out}))
	if err != nil {
		d.L.Error("unable to install output", "error", err)
		return 1
	}

	rfd, wfd, err := d.k.Pipe(ctx)
	if err != nil {
		d.L.Error("unable to create pipe", "error", err)
		return 1
	}

	d.wfd = wfd

	_, err = d.k.CreateThread(ctx, func(ctx context.Context, args []byte) int {
		return d.collect(ctx, rfd)
	}, nil)
	if err != nil {
		d.L.Error("unable to start collector", "error", err)
		return 1
	}

	d.spawn(ctx, d.o.depth)

	// The collector sees EOF once the last writer is gone.
	d.k.Close(ctx, wfd)

	if err := d.printTable(ctx); err != nil {
		d.L.Error("unable to print process table", "error", err)
	}

	reaped := 0
	for {
		pid, status, err := d.k.WaitChild(ctx, kernel.NoProc)
		if err != nil {
			break
		}

		d.L.Debug("reaped", "pid", pid, "status", status)
		reaped++
	}

	d.L.Info("tree finished", "reaped", reaped)

	return 0
}

func (d *demo) spawn(ctx context.Context, depth int) {
	if depth <= 0 {
		return
	}

	for i := 0; i < d.o.fanout; i++ {
		_, err := d.k.Exec(ctx, d.node, []byte(strconv.Itoa(depth-1)))
		if err != nil {
			d.L.Warn("unable to spawn", "depth", depth, "error", err)
			return
		}
	}
}

func (d *demo) node(ctx context.Context, args []byte) int {
	depth, err := strconv.Atoi(string(args))
	if err != nil {
		return 1
	}

	pid := d.k.GetPid(ctx)

	if depth > 0 {
		d.spawn(ctx, depth)

		for {
			if _, _, err := d.k.WaitChild(ctx, kernel.NoProc); err != nil {
				break
			}
		}

		return 0
	}

	time.Sleep(d.o.hold)

	line := fmt.Sprintf("leaf pid=%d ppid=%d\n", pid, d.k.GetParentPid(ctx))

	if _, err := d.k.Write(ctx, d.wfd, []byte(line)); err != nil {
		d.L.Warn("leaf write failed", "pid", pid, "error", err)
		return 2
	}

	return int(pid) % 8
}

func (d *demo) collect(ctx context.Context, rfd kernel.Fid) int {
	buf := make([]byte, 512)

	for {
		n, err := d.k.Read(ctx, rfd, buf)
		// Keep draining after a failed write so leaves never block on
		// the pipe.
		if n > 0 {
			if _, werr := d.k.Write(ctx, d.outFid, buf[:n]); werr != nil {
				d.L.Error("collector write failed", "error", werr)
			}
		}

		if err == io.EOF {
			return 0
		}

		if err != nil {
			d.L.Error("collector read failed", "error", err)
			return 1
		}
	}
}

func (d *demo) printTable(ctx context.Context) error {
	fid, err := d.k.OpenInfo(ctx)
	if err != nil {
		return err
	}

	defer d.k.Close(ctx, fid)

	w := tabwriter.NewWriter(d.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PID\tPPID\tSTATE\tTHREADS\tTASK\tARGS")

	buf := make([]byte, kernel.ProcInfoSize)
	used := 0

	for {
		n, err := d.k.Read(ctx, fid, buf)
		if err == io.EOF {
			break
		}

		if err != nil {
			return err
		}

		info, err := kernel.DecodeProcInfo(buf[:n])
		if err != nil {
			return err
		}

		used++

		if d.o.dump {
			spew.Fdump(d.out, info)
		}

		state := kernel.Alive
		if !info.Alive {
			state = kernel.Zombie
		}

		ppid := "-"
		if info.PPid != kernel.NoProc {
			ppid = strconv.Itoa(int(info.PPid))
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%q\n",
			info.Pid, ppid, state, info.ThreadCount, kernel.TaskName(info.MainTask), info.Args)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	_, err = fmt.Fprintf(d.out, "%d of %d slots in use\n", used, d.k.Capacity())
	return err
}
