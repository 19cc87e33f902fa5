// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package dstex

import "fmt"

// Region is a half-open box of texels: [Left, Right) x [Top, Bottom) x [Front, Back).
// 2D textures use Front = 0 and Back = 1.
type Region struct {
	Left, Top, Front    uint32
	Right, Bottom, Back uint32
}

// FullRegion returns the region covering the whole extent.
func FullRegion(e Extent) Region {
	return Region{Right: e.Width, Bottom: e.Height, Back: 1}
}

// Width returns the number of texel columns in the region.
func (r Region) Width() uint32 {
	if r.Right <= r.Left {
		return 0
	}
	return r.Right - r.Left
}

// Height returns the number of texel rows in the region.
func (r Region) Height() uint32 {
	if r.Bottom <= r.Top {
		return 0
	}
	return r.Bottom - r.Top
}

// Depth returns the number of slices in the region.
func (r Region) Depth() uint32 {
	if r.Back <= r.Front {
		return 0
	}
	return r.Back - r.Front
}

// Empty reports whether the region contains no texels.
func (r Region) Empty() bool {
	return r.Width() == 0 || r.Height() == 0 || r.Depth() == 0
}

// Bytes returns the packed size of the region's texels in format f.
func (r Region) Bytes(f Format) uint64 {
	return uint64(r.Width()) * uint64(r.Height()) * uint64(r.Depth()) * uint64(f.BytesPerPixel()) //nolint:gosec // G115: BytesPerPixel <= 4
}

// Within returns nil if r is non-empty and lies inside a 2D texture of extent e.
func (r Region) Within(e Extent) error {
	if r.Empty() {
		return fmt.Errorf("%w: %v", ErrEmptyRegion, r)
	}
	if r.Right > e.Width || r.Bottom > e.Height || r.Front != 0 || r.Back != 1 {
		return fmt.Errorf("%w: %v exceeds %v", ErrRegionOutOfBounds, r, e)
	}
	return nil
}

// String returns the region as "[l,t,f - r,b,k)".
func (r Region) String() string {
	return fmt.Sprintf("[%d,%d,%d - %d,%d,%d)", r.Left, r.Top, r.Front, r.Right, r.Bottom, r.Back)
}
