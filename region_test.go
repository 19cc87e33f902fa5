// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package dstex

import (
	"errors"
	"testing"
)

func TestRegionWithin(t *testing.T) {
	e := Extent{Width: 2048, Height: 2048}
	tests := []struct {
		name    string
		region  Region
		wantErr error
	}{
		{"full", FullRegion(e), nil},
		{"sub", Region{Left: 16, Top: 16, Right: 32, Bottom: 48, Back: 1}, nil},
		{"right edge", Region{Right: 2049, Bottom: 2048, Back: 1}, ErrRegionOutOfBounds},
		{"bottom edge", Region{Right: 2048, Bottom: 4096, Back: 1}, ErrRegionOutOfBounds},
		{"depth", Region{Right: 16, Bottom: 16, Back: 2}, ErrRegionOutOfBounds},
		{"empty", Region{Left: 8, Right: 8, Bottom: 16, Back: 1}, ErrEmptyRegion},
		{"inverted", Region{Left: 9, Right: 8, Bottom: 16, Back: 1}, ErrEmptyRegion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.region.Within(e)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Within() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegionBytes(t *testing.T) {
	r := FullRegion(Extent{Width: 2048, Height: 2048})
	if got, want := r.Bytes(FormatRGBA8Unorm), uint64(2048*2048*4); got != want {
		t.Errorf("Bytes() = %d, want %d", got, want)
	}
	sub := Region{Left: 2, Top: 1, Right: 6, Bottom: 4, Back: 1}
	if got := sub.Bytes(FormatR8Unorm); got != 12 {
		t.Errorf("Bytes() = %d, want 12", got)
	}
}
