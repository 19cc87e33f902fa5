// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gpu displays the streamed texture with the wgpu HAL.
//
// A Device wraps a HAL device and queue opened on Vulkan, taken from a
// gogpu window, or created on the noop backend for tests. Texture holds
// the sampled copy of the shared texture, Renderer records one full-screen
// textured draw per frame, and Target is an offscreen color attachment
// that can be read back.
//
// Frames are serialized: RenderFrame submits with a new value on the
// renderer's fence and waits for it before returning, so at most one
// frame is in flight and per-frame resources can be released right away.
package gpu
