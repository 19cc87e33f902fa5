// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build linux

package fence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/gogpu/dstex"
)

// Event is an auto-reset OS event backed by an eventfd. A successful Wait
// consumes the signal.
type Event struct {
	mu     sync.RWMutex
	fd     int
	closed bool
}

// NewEvent creates an unsignaled event.
func NewEvent() (*Event, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, dstex.Wrap("fence.NewEvent", dstex.KindOS, err)
	}
	return &Event{fd: fd}, nil
}

// Set signals the event.
func (e *Event) Set() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return dstex.Wrap("Event.Set", dstex.KindOS, dstex.ErrClosed)
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(e.fd, buf[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		return dstex.Wrap("Event.Set", dstex.KindOS, err)
	}
	return nil
}

// Wait blocks until the event is set or timeout elapses. A timeout < 0
// waits without a bound.
func (e *Event) Wait(timeout time.Duration) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return dstex.Wrap("Event.Wait", dstex.KindOS, dstex.ErrClosed)
	}
	deadline := time.Now().Add(timeout)
	for {
		ms := -1
		if timeout >= 0 {
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			ms = int(remaining.Milliseconds())
		}
		fds := []unix.PollFd{{Fd: int32(e.fd), Events: unix.POLLIN}} //nolint:gosec // G115: fd fits int32
		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return dstex.Wrap("Event.Wait", dstex.KindOS, err)
		}
		if n == 0 {
			return dstex.Wrap("Event.Wait", dstex.KindTimeout, fmt.Errorf("%w after %v", dstex.ErrTimeout, timeout))
		}
		var buf [8]byte
		if _, err := unix.Read(e.fd, buf[:]); err != nil {
			if errors.Is(err, unix.EAGAIN) {
				continue
			}
			return dstex.Wrap("Event.Wait", dstex.KindOS, err)
		}
		return nil
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
	return dstex.Wrap("Event.Close", dstex.KindOS, unix.Close(e.fd))
}
