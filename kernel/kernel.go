package kernel

import (
	"context"
	"sync"

	"github.com/evanphx/tinykern/log"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// Kernel owns the process table. Every table mutation happens with mu
// held; the only operations that sleep are the wait paths, which drop mu
// for the duration of the sleep.
type Kernel struct {
	L   hclog.Logger
	cfg Config

	mu           sync.Mutex
	table        []slot
	freeHead     Pid
	processCount int
	gen          uint64
	nextTid      Tid

	sched     Scheduler
	stateHook StateHook

	// Base context of every spawned thread.
	ctx     context.Context
	running sync.WaitGroup
}

type Option func(k *Kernel)

func WithLogger(l hclog.Logger) Option {
	return func(k *Kernel) {
		k.L = l
	}
}

func WithScheduler(s Scheduler) Option {
	return func(k *Kernel) {
		k.sched = s
	}
}

func WithStateHook(h StateHook) Option {
	return func(k *Kernel) {
		k.stateHook = h
	}
}

// NewKernel builds the process table and execs the idle process. A
// table that cannot hand PID 0 to the idle process is unusable and
// reported as ErrBootstrap.
func NewKernel(cfg Config, opts ...Option) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	k := &Kernel{
		L:     log.Named("kernel"),
		cfg:   cfg,
		sched: GoScheduler{},
		ctx:   context.Background(),
	}

	for _, opt := range opts {
		opt(k)
	}

	k.initializeProcesses()

	pid, err := k.Exec(context.Background(), nil, nil)
	if err != nil {
		return nil, errors.Wrap(ErrBootstrap, err.Error())
	}

	if pid != IdlePid {
		return nil, errors.Wrapf(ErrBootstrap, "idle process has pid %d", pid)
	}

	if err := k.Check(); err != nil {
		return nil, errors.Wrap(ErrBootstrap, err.Error())
	}

	k.L.Debug("kernel-booted", "max-proc", cfg.MaxProc, "max-fileid", cfg.MaxFileID)

	return k, nil
}

func (k *Kernel) Config() Config {
	return k.cfg
}

// Wait blocks until every thread spawned by the kernel has returned.
func (k *Kernel) Wait() {
	k.running.Wait()
}
