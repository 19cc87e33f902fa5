// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/dstex"
	"github.com/gogpu/dstex/interop"
)

// Texture is a sampled 2D texture on a Device.
type Texture struct {
	dev   *Device
	desc  dstex.TextureDesc
	tex   hal.Texture
	view  hal.TextureView
	state *interop.TextureState
}

// CreateTexture creates a sampled texture that can be written by Upload.
// state tracks the initial layout transition; nil creates a fresh one.
func (d *Device) CreateTexture(desc dstex.TextureDesc, state *interop.TextureState) (*Texture, error) {
	const op = "Device.CreateTexture"
	if err := desc.Validate(); err != nil {
		return nil, dstex.Wrap(op, dstex.KindValidation, err)
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format.GPUFormat(),
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, dstex.Wrap(op, dstex.KindGPU, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         desc.Label + "_view",
		Format:        desc.Format.GPUFormat(),
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, dstex.Wrap(op, dstex.KindGPU, err)
	}
	if state == nil {
		state = &interop.TextureState{}
	}
	return &Texture{dev: d, desc: desc, tex: tex, view: view, state: state}, nil
}

// Desc returns the texture descriptor.
func (t *Texture) Desc() dstex.TextureDesc { return t.desc }

// State returns the layout state shared with the source texture.
func (t *Texture) State() *interop.TextureState { return t.state }

// Upload writes texel rows with the given pitch to the texture. The write
// is ordered before the next queue submission.
func (t *Texture) Upload(data []byte, rowPitch uint32) error {
	const op = "Texture.Upload"
	if need := uint64(rowPitch) * uint64(t.desc.Height); uint64(len(data)) < need {
		return dstex.Wrap(op, dstex.KindValidation,
			fmt.Errorf("%w: %d bytes, need %d", dstex.ErrSizeMismatch, len(data), need))
	}
	t.dev.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: rowPitch, RowsPerImage: t.desc.Height},
		&hal.Extent3D{Width: t.desc.Width, Height: t.desc.Height, DepthOrArrayLayers: 1},
	)
	dstex.Logger().Debug("gpu: texture uploaded", "label", t.desc.Label, "bytes", len(data), "pitch", rowPitch)
	return nil
}

// UploadShared copies the consumer image of st into the texture. It must
// be called after the transfer fence has completed.
func (t *Texture) UploadShared(st *interop.SharedTexture) error {
	if st.Desc().Extent != t.desc.Extent || st.Desc().Format != t.desc.Format {
		return dstex.Wrap("Texture.UploadShared", dstex.KindValidation,
			fmt.Errorf("%w: %v %v into %v %v", interop.ErrIncompatible,
				st.Desc().Extent, st.Desc().Format, t.desc.Extent, t.desc.Format))
	}
	return t.Upload(st.Image.Bytes(), st.RowPitch())
}

// Destroy releases the view and the texture.
func (t *Texture) Destroy() {
	if t.view != nil {
		t.dev.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		t.dev.device.DestroyTexture(t.tex)
		t.tex = nil
	}
}
