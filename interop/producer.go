// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package interop

import (
	"fmt"
	"sync"

	"github.com/gogpu/dstex"
	"github.com/gogpu/dstex/fence"
	"github.com/gogpu/dstex/shm"
)

// Producer allocates texture memory and exports it for other APIs.
type Producer struct {
	opts  options
	arena *Arena
}

// NewProducer creates a producer.
func NewProducer(opts ...Option) *Producer {
	o := applyOptions(opts)
	arena := o.arena
	if arena == nil {
		arena = NewArena()
	}
	return &Producer{opts: o, arena: arena}
}

// Arena returns the arena that tracks the producer's allocations.
func (p *Producer) Arena() *Arena { return p.arena }

// Resource is a producer-side texture backed by committed memory.
type Resource struct {
	desc     dstex.TextureDesc
	rowPitch uint32
	alloc    *Allocation

	mu        sync.Mutex
	destroyed bool
}

// Desc returns the creation descriptor.
func (r *Resource) Desc() dstex.TextureDesc { return r.desc }

// RowPitch returns the byte distance between rows in the allocation.
func (r *Resource) RowPitch() uint32 { return r.rowPitch }

// Allocation returns the backing allocation.
func (r *Resource) Allocation() *Allocation { return r.alloc }

// Bytes returns the producer's view of the texture memory, RowPitch bytes
// per row. It returns nil after the resource is destroyed.
func (r *Resource) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return nil
	}
	return r.alloc.bytes()
}

// CreateTexture creates a texture with committed memory. Rows are laid
// out according to desc.Tiling.
func (p *Producer) CreateTexture(desc dstex.TextureDesc) (*Resource, error) {
	const op = "Producer.CreateTexture"
	if err := desc.Validate(); err != nil {
		return nil, dstex.Wrap(op, dstex.KindValidation, err)
	}
	size := int64(desc.Size()) //nolint:gosec // G115: bounded by uint32 extent * pitch
	name := p.opts.name
	if desc.Label != "" {
		name += ":" + desc.Label
	}
	alloc, err := p.arena.allocate(name, size)
	if err != nil {
		return nil, dstex.Wrap(op, dstex.KindGPU, err)
	}
	dstex.Logger().Debug("interop: texture created",
		"label", desc.Label, "extent", desc.Extent, "format", desc.Format,
		"pitch", desc.RowPitch(), "size", size)
	return &Resource{desc: desc, rowPitch: desc.RowPitch(), alloc: alloc}, nil
}

// CreateSharedTexture creates a texture that can be exported. The format
// must exist in both APIs and desc.Usage must include dstex.UsageShared.
func (p *Producer) CreateSharedTexture(desc dstex.TextureDesc) (*Resource, error) {
	const op = "Producer.CreateSharedTexture"
	if !desc.Usage.Has(dstex.UsageShared) {
		return nil, dstex.Wrap(op, dstex.KindValidation, ErrNotShareable)
	}
	if !desc.Format.Shareable() {
		return nil, dstex.Wrap(op, dstex.KindValidation,
			fmt.Errorf("%w: %v cannot be shared", dstex.ErrUnsupportedFormat, desc.Format))
	}
	res, err := p.CreateTexture(desc)
	if err != nil {
		return nil, dstex.Wrap(op, dstex.KindOther, err)
	}
	return res, nil
}

// SharedHandle is an exported OS handle together with the layout the
// importer needs to interpret it.
type SharedHandle struct {
	handle   *shm.Handle
	alloc    *Allocation
	desc     dstex.TextureDesc
	rowPitch uint32
}

// Desc returns the exported texture's descriptor.
func (h *SharedHandle) Desc() dstex.TextureDesc { return h.desc }

// RowPitch returns the exported row pitch.
func (h *SharedHandle) RowPitch() uint32 { return h.rowPitch }

// Size returns the exported allocation size.
func (h *SharedHandle) Size() int64 { return h.handle.Size() }

// Raw returns the platform handle value, or 0 once closed.
func (h *SharedHandle) Raw() uintptr { return h.handle.Raw() }

// Closed reports whether the OS handle has been closed.
func (h *SharedHandle) Closed() bool { return h.handle.Closed() }

// Close releases the OS handle. Objects imported from it stay valid.
func (h *SharedHandle) Close() error {
	return dstex.Wrap("SharedHandle.Close", dstex.KindHandle, h.handle.Close())
}

// ExportHandle returns a new OS handle to the resource's memory. The
// caller owns the handle and should close it once imported.
func (p *Producer) ExportHandle(res *Resource) (*SharedHandle, error) {
	const op = "Producer.ExportHandle"
	if !res.desc.Usage.Has(dstex.UsageShared) {
		return nil, dstex.Wrap(op, dstex.KindValidation, ErrNotShareable)
	}
	res.mu.Lock()
	destroyed := res.destroyed
	res.mu.Unlock()
	if destroyed {
		return nil, dstex.Wrap(op, dstex.KindHandle, dstex.ErrClosed)
	}
	dup, err := res.alloc.handle.Duplicate()
	if err != nil {
		return nil, dstex.Wrap(op, dstex.KindHandle, err)
	}
	dstex.Logger().Debug("interop: handle exported", "label", res.desc.Label, "alloc", res.alloc.id)
	return &SharedHandle{handle: dup, alloc: res.alloc, desc: res.desc, rowPitch: res.rowPitch}, nil
}

// CreateFence creates a transfer fence on the producer timeline.
func (p *Producer) CreateFence(label string, initial uint64) *fence.Fence {
	return fence.New(label, initial)
}

// DestroyResource frees the resource's allocation. It fails with
// ErrAllocationInUse while an imported Memory still references it.
func (p *Producer) DestroyResource(res *Resource) error {
	const op = "Producer.DestroyResource"
	res.mu.Lock()
	defer res.mu.Unlock()
	if res.destroyed {
		return dstex.Wrap(op, dstex.KindValidation, dstex.ErrClosed)
	}
	if err := res.alloc.free(); err != nil {
		return dstex.Wrap(op, dstex.KindValidation, err)
	}
	res.destroyed = true
	return nil
}
