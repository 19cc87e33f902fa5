// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package interop implements the cross-API memory sharing handshake.
//
// A Producer allocates texture memory that is committed at creation and
// exports it as an OS shareable handle. A Consumer creates an image flagged
// for external memory, imports the handle into a Memory object and binds
// it to the image. The handle may be closed as soon as ImportMemory
// returns; the binding keeps the allocation alive.
//
// Share runs the whole sequence for one texture:
//
//	p := interop.NewProducer()
//	c := interop.NewConsumer()
//	st, err := interop.Share(p, c, dstex.TextureDesc{
//		Extent: dstex.Extent{Width: 2048, Height: 2048},
//		Format: dstex.FormatRGBA8Unorm,
//		Usage:  dstex.UsageSampled | dstex.UsageCopyDst | dstex.UsageShared,
//	})
//	if err != nil {
//		return err
//	}
//	defer st.Close()
//
// Allocations are tracked by an Arena and freed exactly once by the
// producer, after every consumer object referencing them is destroyed.
package interop

import "errors"

// Handshake errors.
var (
	// ErrNotShareable is returned when exporting a resource that was not
	// created with dstex.UsageShared.
	ErrNotShareable = errors.New("interop: resource not created for sharing")

	// ErrNotExternal is returned when binding imported memory to an image
	// created without the external memory flag.
	ErrNotExternal = errors.New("interop: image not created for external memory")

	// ErrIncompatible is returned when image and imported memory disagree
	// on format, extent or tiling.
	ErrIncompatible = errors.New("interop: image incompatible with memory")

	// ErrBindOffset is returned for a non-zero bind offset on a dedicated import.
	ErrBindOffset = errors.New("interop: dedicated import requires offset 0")

	// ErrAlreadyBound is returned when binding an image twice.
	ErrAlreadyBound = errors.New("interop: image already bound")

	// ErrNotBound is returned when creating a view of an unbound image.
	ErrNotBound = errors.New("interop: image has no memory bound")

	// ErrAllocationInUse is returned when the producer frees an allocation
	// that an imported Memory still references.
	ErrAllocationInUse = errors.New("interop: allocation still referenced")
)
