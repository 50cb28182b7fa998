package kernel

import (
	"context"
)

// Exit records status and ends the calling thread. A zero status keeps
// any non-zero status recorded earlier. The init process first reaps
// every child it has, including orphans handed to it. Exit does not
// return when called on a process thread.
func (k *Kernel) Exit(ctx context.Context, status int) {
	t, ok := k.thread(ctx)
	if !ok {
		k.L.Error("exit outside of a process thread", "status", status)
		return
	}

	k.mu.Lock()

	curproc := t.proc

	if status != 0 {
		curproc.exitVal = status
	}

	k.L.Trace("process-exit", "pid", curproc.pid, "status", status)

	if curproc.pid == InitPid {
		for {
			if _, _, err := k.waitAnyChild(ctx, curproc); err != nil {
				break
			}
		}
	}

	k.mu.Unlock()

	k.ThreadExit(ctx, status)
}

// processExited moves p from Alive to Zombie once its last thread is
// gone. Must be called with k.mu held.
func (k *Kernel) processExited(p *Process) {
	for i, f := range p.files {
		if f == nil {
			continue
		}

		p.files[i] = nil

		if err := f.Close(); err != nil {
			k.L.Warn("error closing file of exiting process", "pid", p.pid, "fid", i, "error", err)
		}
	}

	k.reparent(p)

	k.transition(p, Zombie)

	if parent := k.resolve(p.parent); parent != nil {
		parent.children.Remove(p)
		parent.exited.PushBack(p)
		parent.childExit.Notify(ChildExited)

		k.L.Trace("process-zombie", "pid", p.pid, "ppid", parent.pid, "status", p.exitVal)
		return
	}

	// Parentless processes are awaited by whoever booted the kernel.
	if idle := k.table[IdlePid].proc; idle != nil && idle != p {
		idle.childExit.Notify(ChildExited)
	}

	k.L.Trace("process-zombie", "pid", p.pid, "status", p.exitVal)
}

// reparent hands the children of p to init, or to idle once init is
// gone. Zombie children keep their arrival order behind the reaper's own.
func (k *Kernel) reparent(p *Process) {
	if p.children.Empty() && p.exited.Empty() {
		return
	}

	reaper := k.table[InitPid].proc
	if reaper == nil || reaper == p || reaper.state != Alive {
		reaper = k.table[IdlePid].proc
	}

	if reaper == nil || reaper == p {
		k.L.Error("no reaper for orphaned processes", "pid", p.pid)
		return
	}

	for !p.children.Empty() {
		child := p.children.Front().(*Process)
		p.children.Remove(child)

		child.parent = reaper.ref()
		reaper.children.PushFront(child)
	}

	if p.exited.Empty() {
		return
	}

	for it := p.exited.Front(); it != nil; it = it.Next() {
		it.(*Process).parent = reaper.ref()
	}

	reaper.exited.PushBackList(&p.exited)
	reaper.childExit.Notify(ChildExited)

	k.L.Trace("process-reparent", "pid", p.pid, "reaper", reaper.pid)
}
