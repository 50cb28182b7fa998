package kernel

import (
	"context"

	"github.com/pkg/errors"
)

// WaitChild reaps a zombie child of the caller and returns its pid and
// exit status. With cpid == NoProc any child qualifies and zombies are
// reaped in the order they exited; otherwise cpid must name a child of
// the caller. Failures return NoProc with an error whose cause is
// ErrNoProcess, except for a done ctx which returns ctx's error.
func (k *Kernel) WaitChild(ctx context.Context, cpid Pid) (Pid, int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	parent := k.current(ctx)
	if parent == nil {
		return NoProc, 0, errors.Wrap(ErrNoChildren, "no calling process")
	}

	if cpid != NoProc {
		return k.waitSpecificChild(ctx, parent, cpid)
	}

	return k.waitAnyChild(ctx, parent)
}

// waitSpecificChild must be called with k.mu held.
func (k *Kernel) waitSpecificChild(ctx context.Context, parent *Process, cpid Pid) (Pid, int, error) {
	if cpid < 0 || int(cpid) >= len(k.table) {
		return NoProc, 0, errors.Wrapf(ErrInvalidPid, "pid %d", cpid)
	}

	child := k.lookup(cpid)
	if child == nil || child.parent != parent.ref() {
		return NoProc, 0, errors.Wrapf(ErrNotChild, "pid %d, caller %d", cpid, parent.pid)
	}

	for child.state == Alive {
		k.L.Trace("process-waiting-child", "pid", parent.pid, "child", cpid)

		if err := parent.childExit.Wait(ctx, &k.mu, ChildExited); err != nil {
			return NoProc, 0, err
		}

		// Another thread of the parent may have reaped it meanwhile.
		if k.lookup(cpid) != child || child.parent != parent.ref() {
			return NoProc, 0, errors.Wrapf(ErrNotChild, "pid %d reaped concurrently", cpid)
		}
	}

	return cpid, k.cleanupZombie(child), nil
}

// waitAnyChild must be called with k.mu held.
func (k *Kernel) waitAnyChild(ctx context.Context, parent *Process) (Pid, int, error) {
	for {
		if parent.children.Empty() && parent.exited.Empty() {
			return NoProc, 0, errors.Wrapf(ErrNoChildren, "pid %d", parent.pid)
		}

		if !parent.exited.Empty() {
			break
		}

		k.L.Trace("process-waiting-any", "pid", parent.pid, "children", parent.children.Len())

		if err := parent.childExit.Wait(ctx, &k.mu, ChildExited); err != nil {
			return NoProc, 0, err
		}
	}

	child := parent.exited.Front().(*Process)
	cpid := child.pid

	return cpid, k.cleanupZombie(child), nil
}

// cleanupZombie unlinks a zombie from its parent and frees its slot,
// returning its exit value. Must be called with k.mu held.
func (k *Kernel) cleanupZombie(p *Process) int {
	status := p.exitVal

	if parent := k.resolve(p.parent); parent != nil {
		parent.exited.Remove(p)
	}

	k.L.Trace("process-reap", "pid", p.pid, "status", status)

	k.release(p)

	return status
}
