// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package storage

import (
	"fmt"
	"io"

	"github.com/gogpu/dstex"
)

// Texture is a transfer destination. Bytes returns the destination memory
// with RowPitch bytes per row.
type Texture interface {
	Desc() dstex.TextureDesc
	RowPitch() uint32
	Bytes() []byte
}

// Source is a byte range of a file. File is usually a *File from
// Factory.OpenFile.
type Source struct {
	File   io.ReaderAt
	Offset int64
	Size   uint64
}

// Destination is a texel box inside a texture.
type Destination struct {
	Texture Texture
	Region  dstex.Region
}

// Request copies Source into Destination. Source bytes are tightly packed
// rows of the region.
type Request struct {
	Name             string
	Source           Source
	Destination      Destination
	UncompressedSize uint64
}

// NewTextureRequest builds a request that fills region of tex from file
// starting at offset. The region is checked against the texture extent
// immediately.
func NewTextureRequest(name string, file io.ReaderAt, offset int64, tex Texture, region dstex.Region) (Request, error) {
	if tex == nil {
		return Request{}, dstex.Errorf("storage.NewTextureRequest", dstex.KindValidation, "nil texture")
	}
	size := region.Bytes(tex.Desc().Format)
	req := Request{
		Name:             name,
		Source:           Source{File: file, Offset: offset, Size: size},
		Destination:      Destination{Texture: tex, Region: region},
		UncompressedSize: size,
	}
	if err := req.Validate(); err != nil {
		return Request{}, dstex.Wrap("storage.NewTextureRequest", dstex.KindValidation, err)
	}
	return req, nil
}

// Validate checks the request without touching the file.
func (r *Request) Validate() error {
	const op = "Request.Validate"
	if r.Source.File == nil {
		return dstex.Errorf(op, dstex.KindValidation, "%s: nil source file", r.Name)
	}
	if r.Source.Offset < 0 {
		return dstex.Errorf(op, dstex.KindValidation, "%s: negative offset %d", r.Name, r.Source.Offset)
	}
	if r.Destination.Texture == nil {
		return dstex.Errorf(op, dstex.KindValidation, "%s: nil destination", r.Name)
	}
	desc := r.Destination.Texture.Desc()
	if err := desc.Validate(); err != nil {
		return dstex.Wrap(op, dstex.KindValidation, fmt.Errorf("%s: destination: %w", r.Name, err))
	}
	if err := r.Destination.Region.Within(desc.Extent); err != nil {
		return dstex.Wrap(op, dstex.KindValidation, fmt.Errorf("%s: %w", r.Name, err))
	}
	want := r.Destination.Region.Bytes(desc.Format)
	if r.Source.Size != want || r.UncompressedSize != want {
		return dstex.Wrap(op, dstex.KindValidation,
			fmt.Errorf("%w: %s: source %d, uncompressed %d, region %d bytes",
				dstex.ErrSizeMismatch, r.Name, r.Source.Size, r.UncompressedSize, want))
	}
	return nil
}
