// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package dstex streams a texture from disk straight into GPU-accessible
// memory that is shared between two graphics APIs, then displays it.
//
// # Overview
//
// The heart of dstex is a cross-API handshake:
//
//	Producer.CreateSharedTexture -> Producer.ExportHandle -> Consumer.CreateImage
//	  -> Consumer.ImportMemory -> handle.Close -> Consumer.BindImageMemory
//	  -> storage.Queue.EnqueueRequest + EnqueueSignal + Submit -> fence.Wait
//
// After the fence wait returns without error the consumer image holds the
// file contents and can be sampled by the render loop for the rest of the
// program.
//
// # Packages
//
//   - dstex: formats, extents, regions, normalized errors and logging
//   - shm: OS shareable memory handles and mappings
//   - fence: monotonic transfer fences and OS wait events
//   - interop: producer and consumer APIs, arena-tracked allocations
//   - storage: asynchronous file-to-texture transfer queue
//   - dds: DDS header parsing and encoding
//   - shader: SPIR-V shader pairs, WGSL compilation via naga
//   - gpu: HAL device, texture upload and the per-frame renderer
//   - loader: the setup sequence used by the commands
//   - config: program configuration
//
// # Commands
//
//   - cmd/dstexview: streams the asset and shows it in a window
//   - cmd/dstexbench: the same setup with headless offscreen frames
//   - cmd/ddsconv: converts images into DDS or raw texture assets
//
// # Errors
//
// Every failure is normalized to *Error, whose message reads
// "<op> failed: <cause>". Sentinel errors such as ErrShortRead and
// ErrRegionOutOfBounds are matched with errors.Is.
//
// # Logging
//
// dstex is silent by default. Call SetLogger to route diagnostics to a
// slog.Logger.
package dstex

// Version is the current version of the module.
const Version = "0.1.0"
