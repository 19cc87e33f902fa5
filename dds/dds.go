// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package dds reads and writes DirectDraw Surface headers for uncompressed
// single-mip 2D textures.
//
// Only the formats that dstex can stream are recognized: RGBA8, BGRA8 and
// R8, either through the legacy pixel-format masks or a DX10 extension
// header. Pixel data must follow the header tightly packed.
package dds

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/gogpu/dstex"
)

// Magic is the four-byte file signature.
const Magic = "DDS "

const (
	headerSize      = 124
	pixelFormatSize = 32
	dx10Size        = 20

	flagCaps        = 0x1
	flagHeight      = 0x2
	flagWidth       = 0x4
	flagPitch       = 0x8
	flagPixelFormat = 0x1000

	pfAlphaPixels = 0x1
	pfFourCC      = 0x4
	pfRGB         = 0x40
	pfLuminance   = 0x20000

	capsTexture = 0x1000

	dimensionTexture2D = 3
)

// DXGI format codes used in DX10 headers.
const (
	dxgiR8G8B8A8Unorm = 28
	dxgiR8Unorm       = 61
	dxgiB8G8R8A8Unorm = 87
)

var fourCCDX10 = [4]byte{'D', 'X', '1', '0'}

// Errors.
var (
	// ErrNotDDS is returned when the input does not start with Magic.
	ErrNotDDS = errors.New("dds: not a DDS file")

	// ErrMalformed is returned for inconsistent header fields.
	ErrMalformed = errors.New("dds: malformed header")

	// ErrUnsupported is returned for compressed, volume, array or
	// multi-mip files and for unknown pixel formats.
	ErrUnsupported = errors.New("dds: unsupported layout")
)

type pixelFormat struct {
	Size        uint32
	Flags       uint32
	FourCC      [4]byte
	RGBBitCount uint32
	RMask       uint32
	GMask       uint32
	BMask       uint32
	AMask       uint32
}

type header struct {
	Size              uint32
	Flags             uint32
	Height            uint32
	Width             uint32
	PitchOrLinearSize uint32
	Depth             uint32
	MipMapCount       uint32
	Reserved1         [11]uint32
	PixelFormat       pixelFormat
	Caps              uint32
	Caps2             uint32
	Caps3             uint32
	Caps4             uint32
	Reserved2         uint32
}

type headerDX10 struct {
	DXGIFormat        uint32
	ResourceDimension uint32
	MiscFlag          uint32
	ArraySize         uint32
	MiscFlags2        uint32
}

// Header is the decoded description of a DDS file.
type Header struct {
	Width  uint32
	Height uint32
	Format dstex.Format

	// DataOffset is the byte offset of the first texel.
	DataOffset int64

	// DX10 reports whether the file carries the DX10 extension header.
	DX10 bool
}

// Extent returns the texture extent.
func (h Header) Extent() dstex.Extent {
	return dstex.Extent{Width: h.Width, Height: h.Height}
}

// DataSize returns the size of the tightly packed pixel data.
func (h Header) DataSize() int64 {
	return int64(h.Width) * int64(h.Height) * int64(h.Format.BytesPerPixel())
}

// IsDDS reports whether prefix starts with the DDS signature.
func IsDDS(prefix []byte) bool {
	return bytes.HasPrefix(prefix, []byte(Magic))
}

// ReadHeader decodes the header at the start of r.
func ReadHeader(r io.Reader) (Header, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return Header{}, fmt.Errorf("%w: %w", ErrNotDDS, err)
	}
	if string(magic[:]) != Magic {
		return Header{}, ErrNotDDS
	}

	var hdr header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return Header{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if hdr.Size != headerSize || hdr.PixelFormat.Size != pixelFormatSize {
		return Header{}, fmt.Errorf("%w: header size %d, pixel format size %d",
			ErrMalformed, hdr.Size, hdr.PixelFormat.Size)
	}
	if hdr.Width == 0 || hdr.Height == 0 {
		return Header{}, fmt.Errorf("%w: %dx%d", ErrMalformed, hdr.Width, hdr.Height)
	}
	if hdr.MipMapCount > 1 || hdr.Depth > 1 {
		return Header{}, fmt.Errorf("%w: %d mips, depth %d", ErrUnsupported, hdr.MipMapCount, hdr.Depth)
	}

	out := Header{Width: hdr.Width, Height: hdr.Height, DataOffset: int64(len(Magic) + headerSize)}
	pf := hdr.PixelFormat
	if pf.Flags&pfFourCC != 0 {
		if pf.FourCC != fourCCDX10 {
			return Header{}, fmt.Errorf("%w: fourCC %q", ErrUnsupported, pf.FourCC[:])
		}
		var ext headerDX10
		if err := binary.Read(r, binary.LittleEndian, &ext); err != nil {
			return Header{}, fmt.Errorf("%w: dx10: %w", ErrMalformed, err)
		}
		if ext.ResourceDimension != dimensionTexture2D || ext.ArraySize > 1 {
			return Header{}, fmt.Errorf("%w: dimension %d, array size %d",
				ErrUnsupported, ext.ResourceDimension, ext.ArraySize)
		}
		out.DX10 = true
		out.DataOffset += dx10Size
		out.Format = fromDXGI(ext.DXGIFormat)
	} else {
		out.Format = fromMasks(pf)
	}
	if out.Format == dstex.FormatUnknown {
		return Header{}, fmt.Errorf("%w: pixel format %+v", ErrUnsupported, pf)
	}
	return out, nil
}

// Encode writes a DX10 DDS file holding pix, which must be tightly packed
// rows of the given extent and format.
func Encode(w io.Writer, e dstex.Extent, f dstex.Format, pix []byte) error {
	if err := e.Validate(); err != nil {
		return err
	}
	dxgi := toDXGI(f)
	if dxgi == 0 {
		return fmt.Errorf("%w: %v", dstex.ErrUnsupportedFormat, f)
	}
	pitch := e.Width * uint32(f.BytesPerPixel()) //nolint:gosec // G115: BytesPerPixel <= 4
	if want := int(pitch) * int(e.Height); len(pix) != want {
		return fmt.Errorf("%w: %d pixel bytes, want %d", dstex.ErrSizeMismatch, len(pix), want)
	}

	hdr := header{
		Size:              headerSize,
		Flags:             flagCaps | flagHeight | flagWidth | flagPitch | flagPixelFormat,
		Height:            e.Height,
		Width:             e.Width,
		PitchOrLinearSize: pitch,
		MipMapCount:       1,
		PixelFormat:       pixelFormat{Size: pixelFormatSize, Flags: pfFourCC, FourCC: fourCCDX10},
		Caps:              capsTexture,
	}
	ext := headerDX10{DXGIFormat: dxgi, ResourceDimension: dimensionTexture2D, ArraySize: 1}

	if _, err := io.WriteString(w, Magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, &ext); err != nil {
		return err
	}
	_, err := w.Write(pix)
	return err
}

func fromDXGI(code uint32) dstex.Format {
	switch code {
	case dxgiR8G8B8A8Unorm:
		return dstex.FormatRGBA8Unorm
	case dxgiB8G8R8A8Unorm:
		return dstex.FormatBGRA8Unorm
	case dxgiR8Unorm:
		return dstex.FormatR8Unorm
	default:
		return dstex.FormatUnknown
	}
}

func toDXGI(f dstex.Format) uint32 {
	switch f {
	case dstex.FormatRGBA8Unorm:
		return dxgiR8G8B8A8Unorm
	case dstex.FormatBGRA8Unorm:
		return dxgiB8G8R8A8Unorm
	case dstex.FormatR8Unorm:
		return dxgiR8Unorm
	default:
		return 0
	}
}

func fromMasks(pf pixelFormat) dstex.Format {
	switch {
	case pf.Flags&pfRGB != 0 && pf.RGBBitCount == 32:
		if pf.Flags&pfAlphaPixels == 0 {
			return dstex.FormatUnknown
		}
		switch {
		case pf.RMask == 0x000000ff && pf.GMask == 0x0000ff00 && pf.BMask == 0x00ff0000 && pf.AMask == 0xff000000:
			return dstex.FormatRGBA8Unorm
		case pf.RMask == 0x00ff0000 && pf.GMask == 0x0000ff00 && pf.BMask == 0x000000ff && pf.AMask == 0xff000000:
			return dstex.FormatBGRA8Unorm
		}
	case pf.Flags&pfLuminance != 0 && pf.RGBBitCount == 8 && pf.RMask == 0xff:
		return dstex.FormatR8Unorm
	}
	return dstex.FormatUnknown
}
