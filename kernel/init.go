package kernel

import (
	"context"

	"github.com/pkg/errors"
)

// Run execs init as PID 1, waits for it to finish and reaps it. Init
// reaps every orphan before it exits, so on return the table holds only
// the idle process and whatever the caller started from outside init.
func (k *Kernel) Run(ctx context.Context, init TaskFunc, args []byte) (int, error) {
	if init == nil {
		return 0, ErrNoTask
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.freeHead != InitPid {
		return 0, errors.Wrapf(ErrInitRunning, "next free pid is %d", k.freeHead)
	}

	proc, err := k.exec(nil, init, args)
	if err != nil {
		return 0, err
	}

	idle := k.table[IdlePid].proc

	for proc.state == Alive {
		if err := idle.childExit.Wait(ctx, &k.mu, ChildExited); err != nil {
			return 0, errors.Wrap(err, "waiting for init")
		}
	}

	status := k.cleanupZombie(proc)

	k.L.Debug("init-exited", "status", status, "processes", k.processCount)

	return status, nil
}
