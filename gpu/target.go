// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/dstex"
)

// Target is a color attachment. It is either an offscreen texture owned by
// the target or a borrowed surface view.
type Target struct {
	dev    *Device
	extent dstex.Extent
	format dstex.Format
	tex    hal.Texture
	view   hal.TextureView

	// borrowed views belong to the surface and are never destroyed here.
	borrowed bool
}

// CreateTarget creates a render target that can be read back.
func (d *Device) CreateTarget(extent dstex.Extent, format dstex.Format) (*Target, error) {
	const op = "Device.CreateTarget"
	if err := extent.Validate(); err != nil {
		return nil, dstex.Wrap(op, dstex.KindValidation, err)
	}
	if !format.Shareable() {
		return nil, dstex.Wrap(op, dstex.KindValidation, fmt.Errorf("%w: %v", dstex.ErrUnsupportedFormat, format))
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "dstex_target",
		Size:          hal.Extent3D{Width: extent.Width, Height: extent.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format.GPUFormat(),
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, dstex.Wrap(op, dstex.KindGPU, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "dstex_target_view",
		Format:        format.GPUFormat(),
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, dstex.Wrap(op, dstex.KindGPU, err)
	}
	return &Target{dev: d, extent: extent, format: format, tex: tex, view: view}, nil
}

// SurfaceTarget wraps a view owned by a window surface, such as the one a
// gogpu draw context hands out for the current frame. view is a
// hal.TextureView or has a HalTextureView method, like *wgpu.TextureView.
// The caller keeps ownership: Destroy does not release it, and ReadPixels
// is unavailable.
func (d *Device) SurfaceTarget(view any, extent dstex.Extent, format dstex.Format) (*Target, error) {
	const op = "Device.SurfaceTarget"
	var hv hal.TextureView
	switch v := view.(type) {
	case hal.TextureView:
		hv = v
	case interface{ HalTextureView() hal.TextureView }:
		hv = v.HalTextureView()
	}
	if hv == nil {
		return nil, dstex.Errorf(op, dstex.KindGPU, "surface view %T is not hal.TextureView", view)
	}
	if err := extent.Validate(); err != nil {
		return nil, dstex.Wrap(op, dstex.KindValidation, err)
	}
	if !format.Shareable() {
		return nil, dstex.Wrap(op, dstex.KindValidation, fmt.Errorf("%w: %v", dstex.ErrUnsupportedFormat, format))
	}
	return &Target{dev: d, extent: extent, format: format, view: hv, borrowed: true}, nil
}

// Borrowed reports whether the target wraps a surface view.
func (t *Target) Borrowed() bool { return t.borrowed }

// Extent returns the target size.
func (t *Target) Extent() dstex.Extent { return t.extent }

// Format returns the target format.
func (t *Target) Format() dstex.Format { return t.format }

// ReadPixels copies the target to CPU memory as tightly packed rows.
func (t *Target) ReadPixels(timeout time.Duration) ([]byte, error) {
	const op = "Target.ReadPixels"
	if t.borrowed || t.tex == nil {
		return nil, dstex.Errorf(op, dstex.KindValidation, "target has no readable texture")
	}
	d := t.dev
	w, h := t.extent.Width, t.extent.Height
	bytesPerRow := w * uint32(t.format.BytesPerPixel()) //nolint:gosec // G115: BytesPerPixel <= 4
	alignedBytesPerRow := dstex.AlignUp(bytesPerRow, dstex.PitchAlignment)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "dstex_readback",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, dstex.Wrap(op, dstex.KindGPU, err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "dstex_readback"})
	if err != nil {
		return nil, dstex.Wrap(op, dstex.KindGPU, err)
	}
	if err := encoder.BeginEncoding("dstex_readback"); err != nil {
		return nil, dstex.Wrap(op, dstex.KindGPU, err)
	}
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(t.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, dstex.Wrap(op, dstex.KindGPU, err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	if err := d.submitAndWait(op, cmdBuf, timeout); err != nil {
		return nil, err
	}

	readback := make([]byte, stagingSize)
	if err := d.queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, dstex.Wrap(op, dstex.KindGPU, err)
	}
	if alignedBytesPerRow == bytesPerRow {
		return readback, nil
	}
	tight := make([]byte, uint64(bytesPerRow)*uint64(h))
	for row := uint32(0); row < h; row++ {
		srcOff := int(row) * int(alignedBytesPerRow)
		dstOff := int(row) * int(bytesPerRow)
		copy(tight[dstOff:dstOff+int(bytesPerRow)], readback[srcOff:srcOff+int(bytesPerRow)])
	}
	return tight, nil
}

// Destroy releases the target. A borrowed view is only dropped.
func (t *Target) Destroy() {
	if t.borrowed {
		t.view = nil
		return
	}
	if t.view != nil {
		t.dev.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		t.dev.device.DestroyTexture(t.tex)
		t.tex = nil
	}
}

// submitAndWait submits one command buffer on a temporary fence and waits
// for it with a bound.
func (d *Device) submitAndWait(op string, cmdBuf hal.CommandBuffer, timeout time.Duration) error {
	fence, err := d.device.CreateFence()
	if err != nil {
		return dstex.Wrap(op, dstex.KindGPU, fmt.Errorf("create fence: %w", err))
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return dstex.Wrap(op, dstex.KindGPU, fmt.Errorf("submit: %w", err))
	}
	return waitFence(op, d.device, fence, 1, timeout)
}

func waitFence(op string, device hal.Device, fence hal.Fence, value uint64, timeout time.Duration) error {
	ok, err := device.Wait(fence, value, timeout)
	if err != nil {
		return dstex.Wrap(op, dstex.KindGPU, fmt.Errorf("wait for GPU: %w", err))
	}
	if !ok {
		return dstex.Wrap(op, dstex.KindTimeout, fmt.Errorf("%w: GPU fence value %d after %v", dstex.ErrTimeout, value, timeout))
	}
	return nil
}
