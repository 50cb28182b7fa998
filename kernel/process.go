package kernel

import (
	"context"

	"github.com/evanphx/tinykern/pkg/ilist"
	"github.com/evanphx/tinykern/pkg/waiter"
)

// Pid identifies a process and is also the index of its slot in the
// process table.
type Pid int32

const (
	NoProc  Pid = -1
	IdlePid Pid = 0
	InitPid Pid = 1
)

type ProcessState int

const (
	Free   ProcessState = 0
	Alive  ProcessState = 1
	Zombie ProcessState = 2
)

func (s ProcessState) String() string {
	switch s {
	case Free:
		return "free"
	case Alive:
		return "alive"
	case Zombie:
		return "zombie"
	default:
		return "unknown"
	}
}

const (
	_ waiter.EventType = 1 << iota
	ChildExited
)

// TaskFunc is the body of a thread. Its return value becomes the exit
// status of the thread, and of the process for a main thread.
type TaskFunc func(ctx context.Context, args []byte) int

// procRef names a process by slot and generation. A stale ref stops
// resolving once the slot is released, even if the pid is reused.
type procRef struct {
	pid Pid
	gen uint64
}

var noParent = procRef{pid: NoProc}

type Process struct {
	// Links the process into exactly one of its parent's children or
	// exited lists. Protected by the kernel mutex.
	ilist.Entry

	pid    Pid
	gen    uint64
	state  ProcessState
	parent procRef

	children ilist.List
	exited   ilist.List

	files []*File

	threadCount int
	mainThread  *Thread
	threads     ilist.List

	task TaskFunc
	args []byte

	exitVal   int
	childExit waiter.Waiter
}

func (p *Process) Pid() Pid {
	return p.pid
}

func (p *Process) ref() procRef {
	return procRef{pid: p.pid, gen: p.gen}
}

// slot is either occupied (proc != nil) or a link in the free chain.
type slot struct {
	proc     *Process
	nextFree Pid
}

// StateHook observes every process state transition. It runs with the
// kernel mutex held and must not call back into the kernel.
type StateHook func(pid Pid, from, to ProcessState)

func (k *Kernel) initializeProcesses() {
	k.table = make([]slot, k.cfg.MaxProc)

	for i := range k.table {
		k.table[i].nextFree = Pid(i + 1)
	}

	k.table[len(k.table)-1].nextFree = NoProc
	k.freeHead = 0
	k.processCount = 0
}

// acquire must be called with k.mu held.
func (k *Kernel) acquire() *Process {
	if k.freeHead == NoProc {
		return nil
	}

	pid := k.freeHead
	s := &k.table[pid]

	k.freeHead = s.nextFree
	s.nextFree = NoProc

	k.gen++

	p := &Process{
		pid:    pid,
		gen:    k.gen,
		state:  Free,
		parent: noParent,
		files:  make([]*File, k.cfg.MaxFileID),
	}

	s.proc = p
	k.processCount++

	k.transition(p, Alive)

	return p
}

// release must be called with k.mu held.
func (k *Kernel) release(p *Process) {
	k.transition(p, Free)

	s := &k.table[p.pid]
	s.proc = nil
	s.nextFree = k.freeHead

	k.freeHead = p.pid
	k.processCount--

	p.args = nil
	p.task = nil
	p.mainThread = nil
}

func (k *Kernel) transition(p *Process, to ProcessState) {
	from := p.state
	p.state = to

	k.L.Trace("process-state", "pid", p.pid, "from", from, "to", to)

	if k.stateHook != nil {
		k.stateHook(p.pid, from, to)
	}
}

func (k *Kernel) lookup(pid Pid) *Process {
	if pid < 0 || int(pid) >= len(k.table) {
		return nil
	}

	return k.table[pid].proc
}

func (k *Kernel) resolve(ref procRef) *Process {
	p := k.lookup(ref.pid)
	if p == nil || p.gen != ref.gen {
		return nil
	}

	return p
}

// current returns the process the caller runs in. A context without a
// thread of this kernel speaks for the idle process.
func (k *Kernel) current(ctx context.Context) *Process {
	if t, ok := GetThread(ctx); ok && t.k == k {
		return t.proc
	}

	return k.table[IdlePid].proc
}

func (k *Kernel) GetPid(ctx context.Context) Pid {
	k.mu.Lock()
	defer k.mu.Unlock()

	p := k.current(ctx)
	if p == nil {
		return NoProc
	}

	return p.pid
}

// GetParentPid returns NoProc for the parentless idle and init
// processes.
func (k *Kernel) GetParentPid(ctx context.Context) Pid {
	k.mu.Lock()
	defer k.mu.Unlock()

	p := k.current(ctx)
	if p == nil {
		return NoProc
	}

	if parent := k.resolve(p.parent); parent != nil {
		return parent.pid
	}

	return NoProc
}

// ProcessCount returns the number of occupied slots.
func (k *Kernel) ProcessCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.processCount
}

func (k *Kernel) Capacity() int {
	return len(k.table)
}

// State returns the state of the slot for pid.
func (k *Kernel) State(pid Pid) ProcessState {
	k.mu.Lock()
	defer k.mu.Unlock()

	if p := k.lookup(pid); p != nil {
		return p.state
	}

	return Free
}
