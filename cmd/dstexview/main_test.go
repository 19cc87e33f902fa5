// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/dstex"
	"github.com/gogpu/dstex/config"
	"github.com/gogpu/dstex/gpu"
	"github.com/gogpu/dstex/loader"
)

func TestToRGBA(t *testing.T) {
	pix := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if got := toRGBA(pix, dstex.FormatRGBA8Unorm); &got[0] != &pix[0] {
		t.Error("RGBA input should be returned as is")
	}
	got := toRGBA(pix, dstex.FormatBGRA8Unorm)
	if want := []byte{3, 2, 1, 4, 7, 6, 5, 8}; !bytes.Equal(got, want) {
		t.Errorf("toRGBA = %v, want %v", got, want)
	}
	if pix[0] != 1 {
		t.Error("BGRA input was modified")
	}
}

// halProvider exposes a device the way a window's GPU context does.
type halProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (p halProvider) HalDevice() hal.Device { return p.device }
func (p halProvider) HalQueue() hal.Queue   { return p.queue }

func loadAsset(t *testing.T, w, h uint32) (config.Config, *loader.Result) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "asset.raw")
	if err := os.WriteFile(path, make([]byte, w*h*4), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg := config.Default().WithAsset(path).WithExtent(w, h).
		WithShaders(filepath.Join(t.TempDir(), "missing.vert.spv"), filepath.Join(t.TempDir(), "missing.frag.spv"))
	res, err := loader.Load(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { _ = res.Close() })
	return cfg, res
}

// surfaceView creates a render attachment standing in for a swapchain image.
func surfaceView(t *testing.T, device hal.Device, w, h uint32) hal.TextureView {
	t.Helper()
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "surface",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	t.Cleanup(func() { device.DestroyTexture(tex) })
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "surface_view",
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		t.Fatalf("CreateTextureView: %v", err)
	}
	t.Cleanup(func() { device.DestroyTextureView(view) })
	return view
}

func TestSurfaceRenderer(t *testing.T) {
	d, err := gpu.OpenNoop()
	if err != nil {
		t.Fatalf("OpenNoop: %v", err)
	}
	t.Cleanup(d.Close)
	device, queue := d.HAL()

	cfg, res := loadAsset(t, 32, 16)
	cfg.FrameTimeout = config.Duration(time.Second)
	s, err := newSurfaceRenderer(halProvider{device: device, queue: queue}, gputypes.TextureFormatBGRA8Unorm, cfg, res)
	if err != nil {
		t.Fatalf("newSurfaceRenderer: %v", err)
	}
	defer s.destroy()

	view := surfaceView(t, device, 320, 200)
	for i := range 3 {
		if err := s.render(view, 320, 200); err != nil {
			t.Fatalf("render %d: %v", i, err)
		}
	}
	stats := s.renderer.Stats()
	if stats.Frames != 3 || stats.Transitions != 1 {
		t.Errorf("Stats = %+v, want 3 frames and 1 transition", stats)
	}
	if !res.State().Initialized() {
		t.Error("shared texture state not marked initialized after the first frame")
	}
	if err := s.render(struct{}{}, 320, 200); err == nil {
		t.Error("render accepted a value that is not a surface view")
	}
}

func TestSurfaceRendererRejects(t *testing.T) {
	d, err := gpu.OpenNoop()
	if err != nil {
		t.Fatalf("OpenNoop: %v", err)
	}
	t.Cleanup(d.Close)
	device, queue := d.HAL()
	cfg, res := loadAsset(t, 8, 8)

	_, err = newSurfaceRenderer(halProvider{device: device, queue: queue}, gputypes.TextureFormatBGRA8UnormSrgb, cfg, res)
	if !errors.Is(err, dstex.ErrUnsupportedFormat) {
		t.Errorf("sRGB surface: err = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := newSurfaceRenderer(struct{}{}, gputypes.TextureFormatBGRA8Unorm, cfg, res); err == nil {
		t.Error("newSurfaceRenderer accepted a provider without HAL access")
	}
	if res.State().Initialized() {
		t.Error("a failed setup must not consume the initial transition")
	}
}
