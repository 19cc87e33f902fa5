// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package dstex

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// PitchAlignment is the row pitch alignment, in bytes, of texture memory
// allocated by the producer. It matches the copy pitch alignment required
// by WebGPU and DX12.
const PitchAlignment = 256

// MaxDimension is the largest supported texture width or height. It is the
// DX12 and Vulkan 2D limit; row pitch and allocation size of any valid
// texture fit in uint32 and int64 respectively.
const MaxDimension = 16384

// Format represents the pixel format of a texture.
type Format uint8

const (
	// FormatUnknown is the zero value and is never valid.
	FormatUnknown Format = iota

	// FormatRGBA8Unorm is RGBA with 8 bits per channel.
	FormatRGBA8Unorm

	// FormatBGRA8Unorm is BGRA with 8 bits per channel.
	FormatBGRA8Unorm

	// FormatR8Unorm is a single 8-bit channel. It is not shareable.
	FormatR8Unorm
)

// String returns a human-readable name for the format.
func (f Format) String() string {
	switch f {
	case FormatRGBA8Unorm:
		return "RGBA8Unorm"
	case FormatBGRA8Unorm:
		return "BGRA8Unorm"
	case FormatR8Unorm:
		return "R8Unorm"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(f))
	}
}

// BytesPerPixel returns the number of bytes per texel, or 0 for unknown formats.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGBA8Unorm, FormatBGRA8Unorm:
		return 4
	case FormatR8Unorm:
		return 1
	default:
		return 0
	}
}

// Shareable reports whether the format exists in both the producer and the
// consumer API and may therefore back a cross-API import.
func (f Format) Shareable() bool {
	switch f {
	case FormatRGBA8Unorm, FormatBGRA8Unorm:
		return true
	default:
		return false
	}
}

// GPUFormat converts to the WebGPU texture format used by the HAL.
func (f Format) GPUFormat() gputypes.TextureFormat {
	switch f {
	case FormatBGRA8Unorm:
		return gputypes.TextureFormatBGRA8Unorm
	case FormatR8Unorm:
		return gputypes.TextureFormatR8Unorm
	default:
		return gputypes.TextureFormatRGBA8Unorm
	}
}

// FormatFromGPU converts a WebGPU texture format. It returns FormatUnknown
// for formats without a counterpart.
func FormatFromGPU(f gputypes.TextureFormat) Format {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm:
		return FormatRGBA8Unorm
	case gputypes.TextureFormatBGRA8Unorm:
		return FormatBGRA8Unorm
	case gputypes.TextureFormatR8Unorm:
		return FormatR8Unorm
	default:
		return FormatUnknown
	}
}

// Extent is the size of a 2D texture in texels.
type Extent struct {
	Width  uint32
	Height uint32
}

// Validate returns ErrInvalidExtent if either dimension is zero or larger
// than MaxDimension.
func (e Extent) Validate() error {
	if e.Width == 0 || e.Height == 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidExtent, e.Width, e.Height)
	}
	if e.Width > MaxDimension || e.Height > MaxDimension {
		return fmt.Errorf("%w: %dx%d exceeds %d", ErrInvalidExtent, e.Width, e.Height, MaxDimension)
	}
	return nil
}

// String returns "WxH".
func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// Usage is a set of texture usage flags.
type Usage uint32

const (
	// UsageSampled allows the texture to be bound for shader reads.
	UsageSampled Usage = 1 << iota

	// UsageCopyDst allows the texture to be a transfer destination.
	UsageCopyDst

	// UsageShared declares cross-API sharing intent. It must be present
	// at creation time; it cannot be added afterwards.
	UsageShared
)

// Has reports whether all flags in u2 are set in u.
func (u Usage) Has(u2 Usage) bool { return u&u2 == u2 }

// Tiling is the memory layout of texture rows.
type Tiling uint8

const (
	// TilingOptimal is the driver-chosen layout. For shared allocations
	// this is linear rows at PitchAlignment.
	TilingOptimal Tiling = iota

	// TilingLinear is tightly packed rows.
	TilingLinear
)

// String returns a human-readable name for the tiling.
func (t Tiling) String() string {
	if t == TilingLinear {
		return "linear"
	}
	return "optimal"
}

// TextureDesc describes a 2D texture with one mip level and one layer.
type TextureDesc struct {
	Extent
	Format Format
	Usage  Usage
	Tiling Tiling
	Label  string
}

// Validate checks the extent and that the format is known.
func (d TextureDesc) Validate() error {
	if err := d.Extent.Validate(); err != nil {
		return err
	}
	if d.Format.BytesPerPixel() == 0 {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, d.Format)
	}
	return nil
}

// RowPitch returns the number of bytes between the starts of two rows.
// The result is only meaningful for descriptors that pass Validate.
func (d TextureDesc) RowPitch() uint32 {
	return uint32(d.rowPitch()) //nolint:gosec // G115: bounded by MaxDimension for valid descriptors
}

func (d TextureDesc) rowPitch() uint64 {
	row := uint64(d.Width) * uint64(d.Format.BytesPerPixel()) //nolint:gosec // G115: BytesPerPixel <= 4
	if d.Tiling == TilingLinear {
		return row
	}
	return (row + PitchAlignment - 1) &^ (PitchAlignment - 1)
}

// Size returns the allocation size in bytes.
func (d TextureDesc) Size() uint64 {
	return d.rowPitch() * uint64(d.Height)
}

// PackedSize returns the size of the texel data without row padding.
func (d TextureDesc) PackedSize() uint64 {
	return uint64(d.Width) * uint64(d.Height) * uint64(d.Format.BytesPerPixel()) //nolint:gosec // G115: BytesPerPixel <= 4
}

// AlignUp rounds v up to a multiple of align, which must be a power of two.
func AlignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}
