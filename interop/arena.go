// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package interop

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/dstex"
	"github.com/gogpu/dstex/shm"
)

// Arena tracks live allocations so that each is freed exactly once.
// It is safe for concurrent use.
type Arena struct {
	mu    sync.Mutex
	next  uint64
	live  map[uint64]*Allocation
	bytes int64
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{live: make(map[uint64]*Allocation)}
}

// Live returns the number of allocations not yet freed.
func (a *Arena) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Bytes returns the total size of live allocations.
func (a *Arena) Bytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bytes
}

// allocate commits size bytes of shareable memory and maps it for the
// producer.
func (a *Arena) allocate(name string, size int64) (*Allocation, error) {
	h, err := shm.Create(name, size)
	if err != nil {
		return nil, err
	}
	m, err := shm.Map(h)
	if err != nil {
		_ = h.Close()
		return nil, err
	}

	a.mu.Lock()
	a.next++
	al := &Allocation{id: a.next, arena: a, handle: h, mapping: m, size: size}
	a.live[al.id] = al
	a.bytes += size
	a.mu.Unlock()
	return al, nil
}

// Allocation is a physical memory allocation owned by a Producer.
// After export and import it is co-referenced by a producer Resource and
// a consumer Memory.
type Allocation struct {
	id      uint64
	arena   *Arena
	handle  *shm.Handle
	mapping *shm.Mapping
	size    int64

	mu    sync.Mutex
	refs  int
	freed bool
}

// ID returns the arena-unique allocation id.
func (al *Allocation) ID() uint64 { return al.id }

// Size returns the allocation size in bytes.
func (al *Allocation) Size() int64 { return al.size }

// Refs returns the number of imported Memory objects referencing the allocation.
func (al *Allocation) Refs() int {
	al.mu.Lock()
	defer al.mu.Unlock()
	return al.refs
}

func (al *Allocation) acquire() error {
	al.mu.Lock()
	defer al.mu.Unlock()
	if al.freed {
		return fmt.Errorf("allocation %d: %w", al.id, dstex.ErrClosed)
	}
	al.refs++
	return nil
}

func (al *Allocation) release() {
	al.mu.Lock()
	defer al.mu.Unlock()
	if al.refs > 0 {
		al.refs--
	}
}

func (al *Allocation) bytes() []byte {
	return al.mapping.Bytes()
}

// free unmaps and closes the producer side of the allocation.
func (al *Allocation) free() error {
	al.mu.Lock()
	if al.freed {
		al.mu.Unlock()
		return fmt.Errorf("allocation %d: %w", al.id, dstex.ErrClosed)
	}
	if al.refs > 0 {
		refs := al.refs
		al.mu.Unlock()
		return fmt.Errorf("%w: allocation %d has %d imports", ErrAllocationInUse, al.id, refs)
	}
	al.freed = true
	al.mu.Unlock()

	a := al.arena
	a.mu.Lock()
	delete(a.live, al.id)
	a.bytes -= al.size
	a.mu.Unlock()

	return errors.Join(al.mapping.Unmap(), al.handle.Close())
}
