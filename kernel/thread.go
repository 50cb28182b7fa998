package kernel

import (
	"context"
	"runtime"

	"github.com/evanphx/tinykern/pkg/ilist"
	"github.com/pkg/errors"
)

// Thread is the control record binding one schedulable goroutine to the
// process it runs in.
type Thread struct {
	// Links the thread into its process's thread list.
	ilist.Entry

	k    *Kernel
	proc *Process
	tid  Tid

	task TaskFunc
	args []byte
	main bool

	exited bool
}

// Tid identifies a thread for the lifetime of the kernel. Tids are never
// reused.
type Tid int32

// Tid returns the kernel-wide id of the thread.
func (t *Thread) Tid() Tid {
	return t.tid
}

// Pid returns the pid of the owning process.
func (t *Thread) Pid() Pid {
	return t.proc.pid
}

type threadkey struct{}

func GetThread(ctx context.Context) (*Thread, bool) {
	if v := ctx.Value(threadkey{}); v != nil {
		return v.(*Thread), true
	}

	return nil, false
}

func SetThread(ctx context.Context, t *Thread) context.Context {
	return context.WithValue(ctx, threadkey{}, t)
}

// Scheduler makes threads runnable. Wakeup must arrange for run to be
// called exactly once on a goroutine of its own.
type Scheduler interface {
	Wakeup(t *Thread, run func())
}

// GoScheduler hands every thread to the Go runtime.
type GoScheduler struct{}

func (GoScheduler) Wakeup(t *Thread, run func()) {
	go run()
}

// spawnThread must be called with k.mu held. The thread is linked into
// p but not yet runnable.
func (k *Kernel) spawnThread(p *Process, task TaskFunc, args []byte, main bool) *Thread {
	k.nextTid++

	t := &Thread{
		k:    k,
		proc: p,
		tid:  k.nextTid,
		task: task,
		args: args,
		main: main,
	}

	p.threads.PushBack(t)
	p.threadCount++

	return t
}

// wakeup must be the last step of any operation that creates a thread:
// once scheduled, the thread may run before the creator returns.
func (k *Kernel) wakeup(t *Thread, entry func(ctx context.Context, t *Thread)) {
	ctx := SetThread(k.ctx, t)

	k.running.Add(1)
	k.sched.Wakeup(t, func() {
		defer k.running.Done()
		entry(ctx, t)
	})
}

func (k *Kernel) startMainThread(ctx context.Context, t *Thread) {
	k.mu.Lock()
	call := t.proc.task
	args := t.proc.args
	k.mu.Unlock()

	exitval := call(ctx, args)
	k.Exit(ctx, exitval)
}

func (k *Kernel) startThread(ctx context.Context, t *Thread) {
	exitval := t.task(ctx, t.args)
	k.ThreadExit(ctx, exitval)
}

// CreateThread starts an additional thread in the caller's process.
func (k *Kernel) CreateThread(ctx context.Context, task TaskFunc, args []byte) (*Thread, error) {
	if task == nil {
		return nil, ErrNoTask
	}

	t, ok := k.thread(ctx)
	if !ok {
		return nil, errors.Wrap(ErrNoThread, "create thread")
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	var owned []byte
	if args != nil {
		owned = make([]byte, len(args))
		copy(owned, args)
	}

	nt := k.spawnThread(t.proc, task, owned, false)

	k.L.Trace("thread-create", "pid", t.proc.pid, "tid", nt.tid, "threads", t.proc.threadCount)

	k.wakeup(nt, k.startThread)

	return nt, nil
}

// ThreadSelf returns the thread bound to ctx.
func (k *Kernel) ThreadSelf(ctx context.Context) (*Thread, bool) {
	return k.thread(ctx)
}

func (k *Kernel) thread(ctx context.Context) (*Thread, bool) {
	t, ok := GetThread(ctx)
	if !ok || t.k != k {
		return nil, false
	}

	return t, true
}

// ThreadExit ends the calling thread. When it is the last thread of its
// process the process becomes a zombie. ThreadExit does not return when
// called on a process thread; anywhere else it logs and returns.
func (k *Kernel) ThreadExit(ctx context.Context, exitval int) {
	t, ok := k.thread(ctx)
	if !ok {
		k.L.Error("thread exit outside of a process thread", "status", exitval)
		return
	}

	k.mu.Lock()
	k.exitThread(t, exitval)
	k.mu.Unlock()

	runtime.Goexit()
}

// exitThread must be called with k.mu held.
func (k *Kernel) exitThread(t *Thread, exitval int) {
	if t.exited {
		return
	}

	p := t.proc

	t.exited = true

	p.threads.Remove(t)
	p.threadCount--

	k.L.Trace("thread-exit", "pid", p.pid, "tid", t.tid, "status", exitval, "threads", p.threadCount)

	if p.threadCount == 0 {
		k.processExited(p)
	}
}
