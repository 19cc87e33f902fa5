// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package shm provides OS-level shareable memory handles.
//
// A Handle names a kernel memory object (a memfd on Linux, a pagefile-backed
// file mapping on Windows) that can be duplicated, passed to another API or
// process, and mapped independently by each holder. A Mapping stays valid
// after every Handle to its object has been closed; the kernel keeps the
// memory alive until the last mapping is removed.
package shm

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/gogpu/dstex"
)

// Handle errors.
var (
	// ErrInvalidSize is returned when creating or mapping a zero-sized object.
	ErrInvalidSize = errors.New("shm: invalid size")
)

// MaxNameLen is the longest object name passed to the OS, in bytes.
// Longer names are truncated; Handle.Name still reports the full name.
// memfd_create rejects names over 249 bytes.
const MaxNameLen = 200

// Handle is an OS shareable handle to a memory object.
//
// Handle is safe for concurrent use. Closing a Handle does not affect
// mappings created from it or handles duplicated from it.
type Handle struct {
	mu     sync.Mutex
	raw    uintptr
	size   int64
	name   string
	closed bool
}

// Create creates a new shareable memory object of the given size and
// returns the first handle to it. The memory is committed and zero-filled.
func Create(name string, size int64) (*Handle, error) {
	if size <= 0 {
		return nil, dstex.Wrap("shm.Create", dstex.KindValidation, fmt.Errorf("%w: %d", ErrInvalidSize, size))
	}
	raw, err := createRaw(objectName(name), size)
	if err != nil {
		return nil, dstex.Wrap("shm.Create", dstex.KindHandle, err)
	}
	dstex.Logger().Debug("shm: object created", "name", name, "size", size)
	return &Handle{raw: raw, size: size, name: name}, nil
}

// objectName returns name cut to MaxNameLen bytes on a rune boundary.
func objectName(name string) string {
	if len(name) <= MaxNameLen {
		return name
	}
	n := MaxNameLen
	for n > 0 && !utf8.RuneStart(name[n]) {
		n--
	}
	return name[:n]
}

// Size returns the size of the memory object in bytes.
func (h *Handle) Size() int64 { return h.size }

// Name returns the debug name given at creation.
func (h *Handle) Name() string { return h.name }

// Raw returns the platform handle value (file descriptor or HANDLE).
// It returns 0 once the handle has been closed.
func (h *Handle) Raw() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0
	}
	return h.raw
}

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Duplicate returns a new, independently closable handle to the same object.
func (h *Handle) Duplicate() (*Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, dstex.Wrap("shm.Duplicate", dstex.KindHandle, dstex.ErrClosed)
	}
	raw, err := dupRaw(h.raw)
	if err != nil {
		return nil, dstex.Wrap("shm.Duplicate", dstex.KindHandle, err)
	}
	return &Handle{raw: raw, size: h.size, name: h.name}, nil
}

// Close releases the handle. Closing an already closed handle returns
// dstex.ErrClosed.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return dstex.Wrap("shm.Close", dstex.KindHandle, dstex.ErrClosed)
	}
	h.closed = true
	if err := closeRaw(h.raw); err != nil {
		return dstex.Wrap("shm.Close", dstex.KindHandle, err)
	}
	return nil
}

// Mapping is a read-write view of a memory object.
type Mapping struct {
	data     []byte
	token    uintptr
	unmapped atomic.Bool
}

// Map maps the whole memory object referenced by h into the address space.
func Map(h *Handle) (*Mapping, error) {
	raw := h.Raw()
	if raw == 0 && h.Closed() {
		return nil, dstex.Wrap("shm.Map", dstex.KindHandle, dstex.ErrClosed)
	}
	data, token, err := mapRaw(raw, h.size)
	if err != nil {
		return nil, dstex.Wrap("shm.Map", dstex.KindHandle, err)
	}
	return &Mapping{data: data, token: token}, nil
}

// Bytes returns the mapped memory. The slice must not be used after Unmap.
func (m *Mapping) Bytes() []byte {
	if m.unmapped.Load() {
		return nil
	}
	return m.data
}

// Len returns the mapped length in bytes.
func (m *Mapping) Len() int { return len(m.data) }

// Unmap removes the mapping. Unmapping twice returns dstex.ErrClosed.
func (m *Mapping) Unmap() error {
	if !m.unmapped.CompareAndSwap(false, true) {
		return dstex.Wrap("shm.Unmap", dstex.KindHandle, dstex.ErrClosed)
	}
	data := m.data
	m.data = nil
	if err := unmapRaw(data, m.token); err != nil {
		return dstex.Wrap("shm.Unmap", dstex.KindHandle, err)
	}
	return nil
}
