// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !linux

package fence

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/dstex"
)

// Event is an auto-reset event. A successful Wait consumes the signal.
type Event struct {
	mu     sync.Mutex
	ch     chan struct{}
	closed bool
}

// NewEvent creates an unsignaled event.
func NewEvent() (*Event, error) {
	return &Event{ch: make(chan struct{}, 1)}, nil
}

// Set signals the event.
func (e *Event) Set() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return dstex.Wrap("Event.Set", dstex.KindOS, dstex.ErrClosed)
	}
	select {
	case e.ch <- struct{}{}:
	default:
	}
	return nil
}

// Wait blocks until the event is set or timeout elapses. A timeout < 0
// waits without a bound.
func (e *Event) Wait(timeout time.Duration) error {
	e.mu.Lock()
	closed, ch := e.closed, e.ch
	e.mu.Unlock()
	if closed {
		return dstex.Wrap("Event.Wait", dstex.KindOS, dstex.ErrClosed)
	}
	if timeout < 0 {
		<-ch
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		return dstex.Wrap("Event.Wait", dstex.KindTimeout, fmt.Errorf("%w after %v", dstex.ErrTimeout, timeout))
	}
}

// Close releases the event. Closing twice returns dstex.ErrClosed.
func (e *Event) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return dstex.Wrap("Event.Close", dstex.KindOS, dstex.ErrClosed)
	}
	e.closed = true
	return nil
}
