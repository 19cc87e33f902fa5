// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package fence implements monotonic timeline fences with OS event
// notification, the synchronization primitive between the transfer queue
// and the code that consumes its results.
//
// A Fence carries a uint64 value that only increases. Signal advances it,
// SetEventOnCompletion arranges for an Event to be set once the value
// reaches a target, and Wait blocks with a context and a bound. A transfer
// that fails calls Fail so that waiters observe the error instead of
// blocking forever.
package fence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/dstex"
)

// ErrNonMonotonic is returned by Signal when the new value is lower than
// the completed value.
var ErrNonMonotonic = errors.New("fence: value must not decrease")

type waiter struct {
	target uint64
	ev     *Event
}

// Fence is a monotonic timeline fence. It is safe for concurrent use.
type Fence struct {
	mu      sync.Mutex
	label   string
	value   uint64
	err     error
	waiters []waiter
	changed chan struct{}
}

// New creates a fence with the given initial completed value.
func New(label string, initial uint64) *Fence {
	return &Fence{label: label, value: initial, changed: make(chan struct{})}
}

// Label returns the debug label.
func (f *Fence) Label() string { return f.label }

// Completed returns the last signaled value.
func (f *Fence) Completed() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Err returns the error recorded by Fail, or nil.
func (f *Fence) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Signal sets the completed value to v and wakes every waiter whose target
// is now reached. Signaling the current value again is a no-op.
func (f *Fence) Signal(v uint64) error {
	f.mu.Lock()
	if v < f.value {
		cur := f.value
		f.mu.Unlock()
		return dstex.Wrap("Fence.Signal", dstex.KindValidation,
			fmt.Errorf("%w: %d < %d", ErrNonMonotonic, v, cur))
	}
	if v == f.value {
		f.mu.Unlock()
		return nil
	}
	f.value = v
	ready := f.takeReadyLocked(func(w waiter) bool { return w.target <= v })
	f.broadcastLocked()
	f.mu.Unlock()

	dstex.Logger().Debug("fence: signaled", "fence", f.label, "value", v)
	setAll(ready)
	return nil
}

// Fail records err as the reason the fence will not reach its pending
// values and wakes every waiter. Only the first failure is kept.
func (f *Fence) Fail(err error) {
	if err == nil {
		return
	}
	f.mu.Lock()
	if f.err != nil {
		f.mu.Unlock()
		return
	}
	f.err = err
	ready := f.takeReadyLocked(func(waiter) bool { return true })
	f.broadcastLocked()
	f.mu.Unlock()

	dstex.Logger().Warn("fence: failed", "fence", f.label, "err", err)
	setAll(ready)
}

// SetEventOnCompletion arranges for ev to be set when the completed value
// reaches v, or when the fence fails. If either has already happened the
// event is set immediately.
func (f *Fence) SetEventOnCompletion(v uint64, ev *Event) error {
	if ev == nil {
		return dstex.Errorf("Fence.SetEventOnCompletion", dstex.KindValidation, "nil event")
	}
	f.mu.Lock()
	if f.value >= v || f.err != nil {
		f.mu.Unlock()
		return ev.Set()
	}
	f.waiters = append(f.waiters, waiter{target: v, ev: ev})
	f.mu.Unlock()
	return nil
}

// Wait blocks until the completed value reaches target, the fence fails,
// ctx is done, or timeout elapses. A timeout <= 0 waits without a bound.
func (f *Fence) Wait(ctx context.Context, target uint64, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		f.mu.Lock()
		cur, ferr, changed := f.value, f.err, f.changed
		f.mu.Unlock()

		if cur >= target {
			return nil
		}
		if ferr != nil {
			return dstex.Wrap("Fence.Wait", dstex.KindOther, ferr)
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return dstex.Wrap("Fence.Wait", dstex.KindOther, ctx.Err())
		case <-expired:
			return dstex.Wrap("Fence.Wait", dstex.KindTimeout,
				fmt.Errorf("%w: %s waiting for %d, completed %d", dstex.ErrTimeout, f.label, target, cur))
		}
	}
}

func (f *Fence) takeReadyLocked(match func(waiter) bool) []*Event {
	var ready []*Event
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		if match(w) {
			ready = append(ready, w.ev)
		} else {
			kept = append(kept, w)
		}
	}
	f.waiters = kept
	return ready
}

func (f *Fence) broadcastLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}

func setAll(events []*Event) {
	for _, ev := range events {
		if err := ev.Set(); err != nil {
			dstex.Logger().Warn("fence: event set failed", "err", err)
		}
	}
}
