// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package interop

import (
	"errors"
	"sync"

	"github.com/gogpu/dstex"
)

// SharedTexture is a producer resource and the consumer image bound to the
// same allocation.
type SharedTexture struct {
	Resource *Resource
	Image    *Image
	Memory   *Memory
	View     *ImageView
	State    *TextureState

	producer *Producer
	consumer *Consumer

	closeOnce sync.Once
	closeErr  error
}

// Desc returns the texture descriptor.
func (st *SharedTexture) Desc() dstex.TextureDesc { return st.Resource.Desc() }

// RowPitch returns the shared row pitch.
func (st *SharedTexture) RowPitch() uint32 { return st.Resource.RowPitch() }

// Bytes returns the producer's view of the memory. Transfers write here.
func (st *SharedTexture) Bytes() []byte { return st.Resource.Bytes() }

// Pixels returns a packed copy of the texels as seen by the consumer.
func (st *SharedTexture) Pixels() []byte { return st.Image.Pixels() }

// Share creates a shareable texture on p, exports it, and imports and
// binds it on c. The export handle is closed before Share returns.
func Share(p *Producer, c *Consumer, desc dstex.TextureDesc) (*SharedTexture, error) {
	const op = "interop.Share"
	desc.Usage |= dstex.UsageShared

	res, err := p.CreateSharedTexture(desc)
	if err != nil {
		return nil, dstex.Wrap(op, dstex.KindOther, err)
	}
	st := &SharedTexture{Resource: res, producer: p, consumer: c}

	h, err := p.ExportHandle(res)
	if err != nil {
		return nil, st.abort(op, err)
	}

	st.Image, err = c.CreateImage(ImageDesc{TextureDesc: desc, External: true})
	if err == nil {
		err = CheckCompatible(h.Desc(), st.Image.Desc())
	}
	if err == nil {
		st.Memory, err = c.ImportMemory(h)
	}
	// The allocation is referenced by the imported memory from here on.
	if cerr := h.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return nil, st.abort(op, err)
	}

	if err := c.BindImageMemory(st.Image, st.Memory, 0); err != nil {
		return nil, st.abort(op, err)
	}
	if st.View, err = c.CreateImageView(st.Image); err != nil {
		return nil, st.abort(op, err)
	}
	st.State = &TextureState{}

	dstex.Logger().Info("interop: texture shared",
		"label", desc.Label, "extent", desc.Extent, "format", desc.Format, "pitch", res.RowPitch())
	return st, nil
}

func (st *SharedTexture) abort(op string, err error) error {
	if cerr := st.Close(); cerr != nil {
		dstex.Logger().Warn("interop: cleanup after failed share", "err", cerr)
	}
	return dstex.Wrap(op, dstex.KindOther, err)
}

// Close destroys the view, the image, the imported memory and finally the
// producer resource, in that order. It is safe to call more than once.
func (st *SharedTexture) Close() error {
	st.closeOnce.Do(func() {
		var errs []error
		if st.View != nil {
			st.consumer.DestroyImageView(st.View)
		}
		if st.Image != nil {
			errs = append(errs, st.consumer.DestroyImage(st.Image))
		}
		if st.Memory != nil {
			errs = append(errs, st.consumer.FreeMemory(st.Memory))
		}
		if st.Resource != nil {
			errs = append(errs, st.producer.DestroyResource(st.Resource))
		}
		st.closeErr = errors.Join(errs...)
	})
	return st.closeErr
}
