package kernel

import (
	"context"

	"github.com/pkg/errors"
)

// Exec creates a process running task with a private copy of args and
// returns its pid. A nil task reserves a slot with no threads. Processes
// other than idle and init become children of the caller and inherit
// every open file of the caller at the same fid.
//
// Whoever takes slot 1 is init, whatever the caller. Once Run has reaped
// init, the next Exec to land on slot 1 creates another parentless
// process that no WaitChild can reap.
func (k *Kernel) Exec(ctx context.Context, task TaskFunc, args []byte) (Pid, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	newproc, err := k.exec(k.current(ctx), task, args)
	if err != nil {
		return NoProc, err
	}

	return newproc.pid, nil
}

// exec must be called with k.mu held.
func (k *Kernel) exec(curproc *Process, task TaskFunc, args []byte) (*Process, error) {
	newproc := k.acquire()
	if newproc == nil {
		k.L.Warn("process table exhausted", "capacity", len(k.table))
		return nil, errors.Wrapf(ErrTableFull, "capacity %d", len(k.table))
	}

	// Idle and init are parentless.
	if newproc.pid > InitPid && curproc != nil {
		newproc.parent = curproc.ref()
		curproc.children.PushFront(newproc)

		for i, f := range curproc.files {
			if f != nil {
				f.incRef()
				newproc.files[i] = f
			}
		}
	}

	newproc.task = task

	if args != nil {
		newproc.args = make([]byte, len(args))
		copy(newproc.args, args)
	}

	k.L.Trace("process-exec", "pid", newproc.pid, "ppid", newproc.parent.pid, "argl", len(args))

	if task != nil {
		t := k.spawnThread(newproc, task, newproc.args, true)
		newproc.mainThread = t

		k.wakeup(t, k.startMainThread)
	}

	return newproc, nil
}
