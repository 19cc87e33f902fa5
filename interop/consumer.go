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

// Consumer imports memory exported by a Producer and binds it to images.
type Consumer struct {
	opts options
}

// NewConsumer creates a consumer.
func NewConsumer(opts ...Option) *Consumer {
	return &Consumer{opts: applyOptions(opts)}
}

// ImageDesc describes a consumer image. External must be set for images
// that will be bound to imported memory.
type ImageDesc struct {
	dstex.TextureDesc
	External bool
}

// Image is a consumer-side texture. It has no storage until memory is bound.
type Image struct {
	desc ImageDesc

	mu        sync.Mutex
	memory    *Memory
	destroyed bool
}

// Desc returns the creation descriptor.
func (img *Image) Desc() ImageDesc { return img.desc }

// Memory returns the bound memory, or nil.
func (img *Image) Memory() *Memory {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.memory
}

// Bytes returns the consumer's view of the image memory with its row
// pitch, or nil when unbound.
func (img *Image) Bytes() []byte {
	mem := img.Memory()
	if mem == nil {
		return nil
	}
	return mem.Bytes()
}

// Pixels returns a tightly packed copy of the image texels.
func (img *Image) Pixels() []byte {
	mem := img.Memory()
	if mem == nil {
		return nil
	}
	return packRows(mem.Bytes(), img.desc.TextureDesc, mem.rowPitch)
}

// Memory is imported memory. It keeps the producer allocation referenced
// until freed.
type Memory struct {
	mapping  *shm.Mapping
	alloc    *Allocation
	desc     dstex.TextureDesc
	rowPitch uint32
	size     int64

	mu    sync.Mutex
	freed bool
}

// Size returns the imported size in bytes.
func (m *Memory) Size() int64 { return m.size }

// RowPitch returns the row pitch the memory was exported with.
func (m *Memory) RowPitch() uint32 { return m.rowPitch }

// Bytes returns the consumer mapping, or nil after FreeMemory.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.freed {
		return nil
	}
	return m.mapping.Bytes()
}

// ImageView is a sampled view of a bound image.
type ImageView struct {
	image *Image
	label string
}

// Image returns the viewed image.
func (v *ImageView) Image() *Image { return v.image }

// Label returns the debug label.
func (v *ImageView) Label() string { return v.label }

// CreateImage creates an image without storage.
func (c *Consumer) CreateImage(desc ImageDesc) (*Image, error) {
	if err := desc.Validate(); err != nil {
		return nil, dstex.Wrap("Consumer.CreateImage", dstex.KindValidation, err)
	}
	return &Image{desc: desc}, nil
}

// ImportMemory maps the memory referenced by h. The handle can be closed
// as soon as ImportMemory returns.
func (c *Consumer) ImportMemory(h *SharedHandle) (*Memory, error) {
	const op = "Consumer.ImportMemory"
	if h == nil {
		return nil, dstex.Errorf(op, dstex.KindValidation, "nil handle")
	}
	if err := h.alloc.acquire(); err != nil {
		return nil, dstex.Wrap(op, dstex.KindHandle, err)
	}
	m, err := shm.Map(h.handle)
	if err != nil {
		h.alloc.release()
		return nil, dstex.Wrap(op, dstex.KindHandle, err)
	}
	dstex.Logger().Debug("interop: memory imported", "consumer", c.opts.name, "alloc", h.alloc.id, "size", h.Size())
	return &Memory{mapping: m, alloc: h.alloc, desc: h.desc, rowPitch: h.rowPitch, size: h.Size()}, nil
}

// BindImageMemory attaches mem to img at offset. Dedicated imports bind at
// offset 0 only, and the image must match the exported layout.
func (c *Consumer) BindImageMemory(img *Image, mem *Memory, offset uint64) error {
	const op = "Consumer.BindImageMemory"
	if offset != 0 {
		return dstex.Wrap(op, dstex.KindValidation, fmt.Errorf("%w: got %d", ErrBindOffset, offset))
	}
	if !img.desc.External {
		return dstex.Wrap(op, dstex.KindValidation, ErrNotExternal)
	}
	if err := CheckCompatible(mem.desc, img.desc); err != nil {
		return dstex.Wrap(op, dstex.KindValidation, err)
	}
	if need := int64(img.desc.Size()); need > mem.size { //nolint:gosec // G115: bounded by uint32 extent * pitch
		return dstex.Wrap(op, dstex.KindValidation,
			fmt.Errorf("%w: image needs %d bytes, memory has %d", ErrIncompatible, need, mem.size))
	}

	img.mu.Lock()
	defer img.mu.Unlock()
	if img.destroyed {
		return dstex.Wrap(op, dstex.KindValidation, dstex.ErrClosed)
	}
	if img.memory != nil {
		return dstex.Wrap(op, dstex.KindValidation, ErrAlreadyBound)
	}
	img.memory = mem
	return nil
}

// CreateImageView creates a view of a bound image.
func (c *Consumer) CreateImageView(img *Image) (*ImageView, error) {
	if img.Memory() == nil {
		return nil, dstex.Wrap("Consumer.CreateImageView", dstex.KindValidation, ErrNotBound)
	}
	return &ImageView{image: img, label: img.desc.Label}, nil
}

// DestroyImageView releases a view. Views hold no resources of their own.
func (c *Consumer) DestroyImageView(v *ImageView) {
	v.image = nil
}

// DestroyImage destroys an image. Bound memory is not freed.
func (c *Consumer) DestroyImage(img *Image) error {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.destroyed {
		return dstex.Wrap("Consumer.DestroyImage", dstex.KindValidation, dstex.ErrClosed)
	}
	img.destroyed = true
	img.memory = nil
	return nil
}

// FreeMemory unmaps imported memory and drops its reference on the
// producer allocation.
func (c *Consumer) FreeMemory(mem *Memory) error {
	const op = "Consumer.FreeMemory"
	mem.mu.Lock()
	defer mem.mu.Unlock()
	if mem.freed {
		return dstex.Wrap(op, dstex.KindValidation, dstex.ErrClosed)
	}
	mem.freed = true
	err := mem.mapping.Unmap()
	mem.alloc.release()
	return dstex.Wrap(op, dstex.KindHandle, err)
}

// CheckCompatible reports whether an image can be bound to memory
// exported for the producer descriptor.
func CheckCompatible(producer dstex.TextureDesc, image ImageDesc) error {
	var errs []error
	if producer.Format != image.Format {
		errs = append(errs, fmt.Errorf("format %v != %v", image.Format, producer.Format))
	}
	if producer.Extent != image.Extent {
		errs = append(errs, fmt.Errorf("extent %v != %v", image.Extent, producer.Extent))
	}
	if producer.Tiling != image.Tiling {
		errs = append(errs, fmt.Errorf("tiling %v != %v", image.Tiling, producer.Tiling))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrIncompatible, errors.Join(errs...))
}

func packRows(src []byte, desc dstex.TextureDesc, pitch uint32) []byte {
	row := int(desc.Width) * desc.Format.BytesPerPixel()
	out := make([]byte, 0, row*int(desc.Height))
	for y := 0; y < int(desc.Height); y++ {
		off := y * int(pitch)
		out = append(out, src[off:off+row]...)
	}
	return out
}
