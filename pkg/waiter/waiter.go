// Package waiter lets goroutines register interest in events and sleep
// until one is posted. Wait gives condition-variable semantics on top of
// any sync.Locker: the lock is dropped for the sleep and retaken before
// Wait returns, so callers re-test their condition in a loop.
package waiter

import (
	"context"
	"sync"

	"github.com/evanphx/tinykern/log"
	"github.com/evanphx/tinykern/pkg/ilist"
)

type EventType uint64

type Waiter struct {
	mu sync.RWMutex

	count   int
	waiters ilist.List
}

type Event struct {
	ilist.Entry

	Mask     EventType
	Context  interface{}
	Callback func(e *Event)
}

func (w *Waiter) Register(e *Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.count++

	w.waiters.PushBack(e)
}

func triggerChan(e *Event) {
	c := e.Context.(chan struct{})

	select {
	case c <- struct{}{}:
	default:
	}
}

func (w *Waiter) RegisterChannel(mask EventType, c chan struct{}) *Event {
	e := &Event{
		Callback: triggerChan,
		Context:  c,
		Mask:     mask,
	}

	w.Register(e)

	return e
}

func (w *Waiter) Unregister(e *Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.count--

	w.waiters.Remove(e)
}

// Waiting returns the number of registered events.
func (w *Waiter) Waiting() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.count
}

func (w *Waiter) Notify(mask EventType) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	log.L.Trace("waiters-notify", "count", w.count)

	for it := w.waiters.Front(); it != nil; it = it.Next() {
		e := it.(*Event)
		if mask&e.Mask != 0 {
			e.Callback(e)
		}
	}
}

// Wait must be called with l held. It registers for mask, releases l,
// sleeps until a matching Notify or until ctx is done, and reacquires l.
// Notifiers are expected to hold l, which rules out lost wakeups. A nil
// return does not promise the caller's condition holds.
func (w *Waiter) Wait(ctx context.Context, l sync.Locker, mask EventType) error {
	c := make(chan struct{}, 1)
	ev := w.RegisterChannel(mask, c)

	l.Unlock()

	var err error

	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-c:
	}

	l.Lock()
	w.Unregister(ev)

	return err
}
