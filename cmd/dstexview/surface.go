// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/dstex"
	"github.com/gogpu/dstex/config"
	"github.com/gogpu/dstex/gpu"
	"github.com/gogpu/dstex/loader"
	"github.com/gogpu/dstex/shader"
)

// surfaceRenderer draws the loaded texture into the window surface with the
// shader pair, on the window's own device.
type surfaceRenderer struct {
	dev      *gpu.Device
	tex      *gpu.Texture
	renderer *gpu.Renderer
	format   dstex.Format
}

// newSurfaceRenderer borrows the provider's device, loads the shader pair
// and uploads res. surface is the window's surface format.
func newSurfaceRenderer(provider any, surface gputypes.TextureFormat, cfg config.Config, res *loader.Result) (*surfaceRenderer, error) {
	const op = "dstexview.newSurfaceRenderer"
	format := dstex.FormatFromGPU(surface)
	if !format.Shareable() {
		return nil, dstex.Wrap(op, dstex.KindGPU, fmt.Errorf("%w: surface format %v", dstex.ErrUnsupportedFormat, surface))
	}
	dev, err := gpu.FromProvider(provider)
	if err != nil {
		return nil, err
	}
	pair, err := shader.Load(cfg.VertexShader, cfg.FragmentShader)
	if err != nil {
		return nil, err
	}

	s := &surfaceRenderer{dev: dev, format: format}
	s.tex, err = dev.CreateTexture(res.Desc, res.State())
	if err != nil {
		return nil, err
	}
	if err := res.Upload(s.tex); err != nil {
		s.destroy()
		return nil, err
	}
	s.renderer, err = gpu.NewRenderer(dev, pair, format, gpu.WithFrameTimeout(cfg.FrameTimeout.Std()))
	if err != nil {
		s.destroy()
		return nil, err
	}
	dstex.Logger().Info("dstexview: surface renderer ready",
		"format", format, "shaders", pair.Origin, "extent", res.Desc.Extent)
	return s, nil
}

// render draws one frame into view, the surface image of the current frame.
func (s *surfaceRenderer) render(view any, width, height uint32) error {
	target, err := s.dev.SurfaceTarget(view, dstex.Extent{Width: width, Height: height}, s.format)
	if err != nil {
		return err
	}
	defer target.Destroy()
	return s.renderer.RenderFrame(target, s.tex)
}

func (s *surfaceRenderer) destroy() {
	if s.renderer != nil {
		s.renderer.Destroy()
		s.renderer = nil
	}
	if s.tex != nil {
		s.tex.Destroy()
		s.tex = nil
	}
	s.dev.Close()
}
