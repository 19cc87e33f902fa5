// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/dstex"
	"github.com/gogpu/dstex/shader"
)

// ClearColor is the background behind the textured draw (cornflower blue).
var ClearColor = gputypes.Color{R: 100.0 / 255.0, G: 149.0 / 255.0, B: 237.0 / 255.0, A: 1}

// fullScreenVertices is the vertex count of the full-screen triangle.
const fullScreenVertices = 3

// RendererOption configures a Renderer.
type RendererOption func(*rendererOptions)

type rendererOptions struct {
	frameTimeout time.Duration
	clear        gputypes.Color
}

// WithFrameTimeout bounds the per-frame fence wait. The default is 5s.
func WithFrameTimeout(d time.Duration) RendererOption {
	return func(o *rendererOptions) {
		if d > 0 {
			o.frameTimeout = d
		}
	}
}

// WithClearColor sets the render pass clear color.
func WithClearColor(c gputypes.Color) RendererOption {
	return func(o *rendererOptions) {
		o.clear = c
	}
}

// FrameStats reports renderer activity.
type FrameStats struct {
	Frames      uint64
	Transitions uint64
	FenceValue  uint64
}

// Renderer draws a sampled texture over a render target.
type Renderer struct {
	dev    *Device
	opts   rendererOptions
	format dstex.Format

	vsModule   hal.ShaderModule
	fsModule   hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	sampler    hal.Sampler
	fence      hal.Fence

	stats FrameStats
}

// NewRenderer builds the pipeline for the shader pair. The fragment stage
// reads a filtering sampler at binding 0 and a 2D float texture at
// binding 1 of group 0, and writes to a target of the given format.
func NewRenderer(d *Device, pair shader.Pair, format dstex.Format, opts ...RendererOption) (*Renderer, error) {
	o := rendererOptions{frameTimeout: 5 * time.Second, clear: ClearColor}
	for _, opt := range opts {
		opt(&o)
	}
	r := &Renderer{dev: d, opts: o, format: format}
	if err := r.createPipeline(pair); err != nil {
		r.Destroy()
		return nil, dstex.Wrap("gpu.NewRenderer", dstex.KindGPU, err)
	}
	return r, nil
}

func (r *Renderer) createPipeline(pair shader.Pair) error {
	device := r.dev.device
	var err error
	r.vsModule, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  pair.Vertex.Label,
		Source: hal.ShaderSource{SPIRV: pair.Vertex.SPIRV},
	})
	if err != nil {
		return fmt.Errorf("create vertex module: %w", err)
	}
	if pair.Origin == shader.OriginBuiltin {
		r.fsModule = r.vsModule
	} else {
		r.fsModule, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  pair.Fragment.Label,
			Source: hal.ShaderSource{SPIRV: pair.Fragment.SPIRV},
		})
		if err != nil {
			return fmt.Errorf("create fragment module: %w", err)
		}
	}

	r.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "dstex_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}

	r.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "dstex_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{r.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}

	r.pipeline, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "dstex_pipeline",
		Layout: r.pipeLayout,
		Vertex: hal.VertexState{
			Module:     r.vsModule,
			EntryPoint: pair.Vertex.EntryPoint,
		},
		Fragment: &hal.FragmentState{
			Module:     r.fsModule,
			EntryPoint: pair.Fragment.EntryPoint,
			Targets: []gputypes.ColorTargetState{
				{Format: r.format.GPUFormat(), WriteMask: gputypes.ColorWriteMaskAll},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return fmt.Errorf("create render pipeline: %w", err)
	}

	// Linear filtering, clamped addressing.
	r.sampler, err = device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "dstex_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("create sampler: %w", err)
	}

	r.fence, err = device.CreateFence()
	if err != nil {
		return fmt.Errorf("create frame fence: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the frame counters.
func (r *Renderer) Stats() FrameStats { return r.stats }

// RenderFrame clears target, draws tex over it, submits, and waits for the
// frame's fence value. The first frame that uses tex records its initial
// transition to a sampled layout.
func (r *Renderer) RenderFrame(target *Target, tex *Texture) error {
	const op = "Renderer.RenderFrame"
	if target.format != r.format {
		return dstex.Wrap(op, dstex.KindValidation,
			fmt.Errorf("%w: target %v, pipeline %v", dstex.ErrUnsupportedFormat, target.format, r.format))
	}
	device := r.dev.device

	// The bind group lives for one frame; there is no descriptor pool.
	bindGroup, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "dstex_frame_bind",
		Layout: r.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.SamplerBinding{Sampler: r.sampler.NativeHandle()}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: tex.view.NativeHandle()}},
		},
	})
	if err != nil {
		return dstex.Wrap(op, dstex.KindGPU, fmt.Errorf("create bind group: %w", err))
	}
	defer device.DestroyBindGroup(bindGroup)

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "dstex_frame"})
	if err != nil {
		return dstex.Wrap(op, dstex.KindGPU, fmt.Errorf("create command encoder: %w", err))
	}
	if err := encoder.BeginEncoding("dstex_frame"); err != nil {
		return dstex.Wrap(op, dstex.KindGPU, fmt.Errorf("begin encoding: %w", err))
	}

	if tex.state.BeginUse() {
		encoder.TransitionTextures([]hal.TextureBarrier{{
			Texture: tex.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageCopyDst,
				NewUsage: gputypes.TextureUsageTextureBinding,
			},
		}})
		r.stats.Transitions++
		dstex.Logger().Debug("gpu: initial texture transition", "label", tex.desc.Label)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "dstex_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target.view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: r.opts.clear,
		}},
	})
	rp.SetPipeline(r.pipeline)
	rp.SetBindGroup(0, bindGroup, nil)
	rp.Draw(fullScreenVertices, 1, 0, 0)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return dstex.Wrap(op, dstex.KindGPU, fmt.Errorf("end encoding: %w", err))
	}
	defer device.FreeCommandBuffer(cmdBuf)

	value := r.stats.FenceValue + 1
	if err := r.dev.queue.Submit([]hal.CommandBuffer{cmdBuf}, r.fence, value); err != nil {
		return dstex.Wrap(op, dstex.KindGPU, fmt.Errorf("submit: %w", err))
	}
	if err := waitFence(op, device, r.fence, value, r.opts.frameTimeout); err != nil {
		return err
	}
	r.stats.FenceValue = value
	r.stats.Frames++
	return nil
}

// Destroy releases every pipeline object.
func (r *Renderer) Destroy() {
	device := r.dev.device
	if r.fence != nil {
		device.DestroyFence(r.fence)
		r.fence = nil
	}
	if r.sampler != nil {
		device.DestroySampler(r.sampler)
		r.sampler = nil
	}
	if r.pipeline != nil {
		device.DestroyRenderPipeline(r.pipeline)
		r.pipeline = nil
	}
	if r.pipeLayout != nil {
		device.DestroyPipelineLayout(r.pipeLayout)
		r.pipeLayout = nil
	}
	if r.bindLayout != nil {
		device.DestroyBindGroupLayout(r.bindLayout)
		r.bindLayout = nil
	}
	if r.fsModule != nil && r.fsModule != r.vsModule {
		device.DestroyShaderModule(r.fsModule)
	}
	r.fsModule = nil
	if r.vsModule != nil {
		device.DestroyShaderModule(r.vsModule)
		r.vsModule = nil
	}
}
