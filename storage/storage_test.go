// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/dstex"
	"github.com/gogpu/dstex/fence"
	"github.com/gogpu/dstex/interop"
)

type memTexture struct {
	desc dstex.TextureDesc
	data []byte
}

func newMemTexture(w, h uint32, tiling dstex.Tiling) *memTexture {
	desc := dstex.TextureDesc{
		Extent: dstex.Extent{Width: w, Height: h},
		Format: dstex.FormatRGBA8Unorm,
		Tiling: tiling,
	}
	return &memTexture{desc: desc, data: make([]byte, desc.Size())}
}

func (m *memTexture) Desc() dstex.TextureDesc { return m.desc }
func (m *memTexture) RowPitch() uint32        { return m.desc.RowPitch() }
func (m *memTexture) Bytes() []byte           { return m.data }

func writeFile(t *testing.T, name string, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*31 + i>>8)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path, data
}

func openQueue(t *testing.T, fa *Factory) *Queue {
	t.Helper()
	q, err := fa.CreateQueue(QueueDesc{Name: t.Name()})
	if err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestEndToEndSharedTexture(t *testing.T) {
	const size = 2048
	path, src := writeFile(t, "example.dds", size*size*4)

	p := interop.NewProducer()
	c := interop.NewConsumer()
	st, err := interop.Share(p, c, dstex.TextureDesc{
		Extent: dstex.Extent{Width: size, Height: size},
		Format: dstex.FormatRGBA8Unorm,
		Usage:  dstex.UsageSampled | dstex.UsageCopyDst,
		Label:  "e2e",
	})
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	defer st.Close()

	fa := NewFactory()
	defer fa.Close()
	file, err := fa.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer file.Close()
	info, err := file.Info()
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Size != int64(len(src)) {
		t.Fatalf("Info.Size = %d, want %d", info.Size, len(src))
	}

	q := openQueue(t, fa)
	req, err := NewTextureRequest("example", file, 0, st, dstex.FullRegion(st.Desc().Extent))
	if err != nil {
		t.Fatalf("NewTextureRequest: %v", err)
	}
	if req.UncompressedSize != uint64(info.Size) {
		t.Fatalf("UncompressedSize = %d, want file size %d", req.UncompressedSize, info.Size)
	}

	f := p.CreateFence("transfer", 0)
	ev, err := fence.NewEvent()
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	defer ev.Close()

	if err := q.EnqueueRequest(req); err != nil {
		t.Fatalf("EnqueueRequest: %v", err)
	}
	if err := q.EnqueueSignal(f, 1); err != nil {
		t.Fatalf("EnqueueSignal: %v", err)
	}
	if err := q.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := f.SetEventOnCompletion(1, ev); err != nil {
		t.Fatalf("SetEventOnCompletion: %v", err)
	}
	if f.Completed() < 1 {
		if err := ev.Wait(10 * time.Second); err != nil {
			t.Fatalf("event Wait: %v", err)
		}
	}
	if err := f.Err(); err != nil {
		t.Fatalf("fence failed: %v", err)
	}
	if f.Completed() != 1 {
		t.Fatalf("Completed() = %d, want 1", f.Completed())
	}

	if sha256.Sum256(st.Pixels()) != sha256.Sum256(src) {
		t.Error("consumer image checksum differs from source file")
	}
	if rec := q.RetrieveErrorRecord(); rec.FailureCount != 0 {
		t.Errorf("FailureCount = %d, want 0", rec.FailureCount)
	}
	stats := q.Stats()
	if stats.Requests != 1 || stats.Signals != 1 || stats.Bytes != uint64(len(src)) {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestShortReadFailsFence(t *testing.T) {
	tex := newMemTexture(64, 64, dstex.TilingOptimal)
	path, _ := writeFile(t, "short.bin", 64*64*4-100)

	fa := NewFactory()
	defer fa.Close()
	file, err := fa.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer file.Close()
	q := openQueue(t, fa)

	req, err := NewTextureRequest("short", file, 0, tex, dstex.FullRegion(tex.desc.Extent))
	if err != nil {
		t.Fatalf("NewTextureRequest: %v", err)
	}
	f := fence.New("short", 0)
	_ = q.EnqueueRequest(req)
	_ = q.EnqueueSignal(f, 1)
	if err := q.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	err = f.Wait(context.Background(), 1, 5*time.Second)
	if !errors.Is(err, dstex.ErrShortRead) {
		t.Fatalf("Wait error = %v, want ErrShortRead", err)
	}
	if dstex.KindOf(err) != dstex.KindIO {
		t.Errorf("KindOf = %v, want io", dstex.KindOf(err))
	}
	if f.Completed() != 0 {
		t.Errorf("Completed() = %d, fence must not reach target", f.Completed())
	}
	rec := q.RetrieveErrorRecord()
	if rec.FailureCount != 1 || rec.FirstFailure == nil || rec.FirstFailure.Request != "short" {
		t.Fatalf("ErrorRecord = %+v", rec)
	}
	if !errors.Is(rec.FirstFailure.Err, dstex.ErrShortRead) {
		t.Errorf("FirstFailure.Err = %v, want ErrShortRead", rec.FirstFailure.Err)
	}
}

func TestRegionOutOfBoundsAtConstruction(t *testing.T) {
	tex := newMemTexture(16, 16, dstex.TilingLinear)
	path, _ := writeFile(t, "oob.bin", 16*16*4)
	fa := NewFactory()
	file, err := fa.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer file.Close()

	tests := []struct {
		name   string
		region dstex.Region
		want   error
	}{
		{"right past width", dstex.Region{Right: 17, Bottom: 16, Back: 1}, dstex.ErrRegionOutOfBounds},
		{"bottom past height", dstex.Region{Right: 16, Bottom: 32, Back: 1}, dstex.ErrRegionOutOfBounds},
		{"depth past 1", dstex.Region{Right: 16, Bottom: 16, Back: 2}, dstex.ErrRegionOutOfBounds},
		{"empty", dstex.Region{Left: 4, Right: 4, Bottom: 16, Back: 1}, dstex.ErrEmptyRegion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTextureRequest(tt.name, file, 0, tex, tt.region)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if dstex.KindOf(err) != dstex.KindValidation {
				t.Errorf("KindOf = %v, want validation", dstex.KindOf(err))
			}
		})
	}

	q := openQueue(t, fa)
	bad := Request{
		Name:             "manual",
		Source:           Source{File: file, Size: 4},
		Destination:      Destination{Texture: tex, Region: dstex.Region{Left: 16, Right: 17, Bottom: 1, Back: 1}},
		UncompressedSize: 4,
	}
	if err := q.EnqueueRequest(bad); !errors.Is(err, dstex.ErrRegionOutOfBounds) {
		t.Errorf("EnqueueRequest = %v, want ErrRegionOutOfBounds", err)
	}
	mismatch := Request{
		Name:             "mismatch",
		Source:           Source{File: file, Size: 10},
		Destination:      Destination{Texture: tex, Region: dstex.FullRegion(tex.desc.Extent)},
		UncompressedSize: 10,
	}
	if err := q.EnqueueRequest(mismatch); !errors.Is(err, dstex.ErrSizeMismatch) {
		t.Errorf("EnqueueRequest = %v, want ErrSizeMismatch", err)
	}
}

func TestSubRegionWithPitch(t *testing.T) {
	tex := newMemTexture(100, 8, dstex.TilingOptimal)
	region := dstex.Region{Left: 10, Top: 2, Right: 20, Bottom: 5, Back: 1}
	path, src := writeFile(t, "sub.bin", int(region.Bytes(dstex.FormatRGBA8Unorm)))

	fa := NewFactory()
	defer fa.Close()
	file, err := fa.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer file.Close()
	q := openQueue(t, fa)

	req, err := NewTextureRequest("sub", file, 0, tex, region)
	if err != nil {
		t.Fatalf("NewTextureRequest: %v", err)
	}
	f := fence.New("sub", 0)
	_ = q.EnqueueRequest(req)
	_ = q.EnqueueSignal(f, 1)
	_ = q.Submit()
	if err := f.Wait(context.Background(), 1, 5*time.Second); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	pitch := int(tex.RowPitch())
	row := 10 * 4
	for y := 0; y < 3; y++ {
		off := (2+y)*pitch + 10*4
		if !bytes.Equal(tex.data[off:off+row], src[y*row:(y+1)*row]) {
			t.Errorf("row %d mismatch", y)
		}
	}
	if tex.data[0] != 0 || tex.data[(2*pitch)+10*4-1] != 0 {
		t.Error("bytes outside the region were written")
	}
}

func TestBatchOrdering(t *testing.T) {
	const n = 8
	fa := NewFactory()
	defer fa.Close()
	q := openQueue(t, fa)

	var texs []*memTexture
	var srcs [][]byte
	f := fence.New("order", 0)
	for i := range n {
		tex := newMemTexture(32, 32, dstex.TilingLinear)
		path, src := writeFile(t, "part.bin", 32*32*4)
		file, err := fa.OpenFile(path)
		if err != nil {
			t.Fatalf("OpenFile: %v", err)
		}
		defer file.Close()
		req, err := NewTextureRequest("part", file, 0, tex, dstex.FullRegion(tex.desc.Extent))
		if err != nil {
			t.Fatalf("NewTextureRequest: %v", err)
		}
		if err := q.EnqueueRequest(req); err != nil {
			t.Fatalf("EnqueueRequest: %v", err)
		}
		if err := q.EnqueueSignal(f, uint64(i+1)); err != nil {
			t.Fatalf("EnqueueSignal: %v", err)
		}
		texs = append(texs, tex)
		srcs = append(srcs, src)
	}
	if err := q.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	for i := range n {
		if err := f.Wait(context.Background(), uint64(i+1), 5*time.Second); err != nil {
			t.Fatalf("Wait(%d): %v", i+1, err)
		}
		if !bytes.Equal(texs[i].data, srcs[i]) {
			t.Errorf("request %d incomplete when its signal fired", i)
		}
	}
}

func TestQueueCapacityAndClose(t *testing.T) {
	fa := NewFactory(WithDefaultCapacity(2))
	q, err := fa.CreateQueue(QueueDesc{Name: "tiny"})
	if err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}
	if q.Desc().Capacity != 2 || q.Desc().Priority != PriorityNormal {
		t.Errorf("Desc = %+v", q.Desc())
	}

	a, b, c := fence.New("a", 0), fence.New("b", 0), fence.New("c", 0)
	if err := q.EnqueueSignal(a, 1); err != nil {
		t.Fatalf("EnqueueSignal a: %v", err)
	}
	if err := q.EnqueueSignal(b, 1); err != nil {
		t.Fatalf("EnqueueSignal b: %v", err)
	}
	if err := q.EnqueueSignal(c, 1); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("third EnqueueSignal = %v, want ErrQueueFull", err)
	}

	if err := fa.Close(); err != nil {
		t.Fatalf("factory Close: %v", err)
	}
	if !errors.Is(a.Err(), dstex.ErrClosed) || !errors.Is(b.Err(), dstex.ErrClosed) {
		t.Errorf("unsubmitted fences should fail with ErrClosed: %v, %v", a.Err(), b.Err())
	}
	if err := q.EnqueueSignal(c, 1); !errors.Is(err, dstex.ErrClosed) {
		t.Errorf("EnqueueSignal after Close = %v, want ErrClosed", err)
	}
	if _, err := fa.CreateQueue(QueueDesc{}); !errors.Is(err, dstex.ErrClosed) {
		t.Errorf("CreateQueue after Close = %v, want ErrClosed", err)
	}
	if _, err := fa.CreateQueue(QueueDesc{Capacity: MaxQueueCapacity + 1}); err == nil {
		t.Error("CreateQueue should reject capacity above MaxQueueCapacity")
	}
}

func TestPriorityString(t *testing.T) {
	tests := []struct {
		p    Priority
		want string
	}{
		{PriorityDefault, "default"},
		{PriorityLow, "low"},
		{PriorityNormal, "normal"},
		{PriorityHigh, "high"},
		{PriorityRealtime, "realtime"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestOversizedExtentRejected(t *testing.T) {
	desc := dstex.TextureDesc{
		Extent: dstex.Extent{Width: 1<<30 + 64, Height: 1},
		Format: dstex.FormatRGBA8Unorm,
		Usage:  dstex.UsageSampled | dstex.UsageCopyDst,
	}
	if _, err := interop.Share(interop.NewProducer(), interop.NewConsumer(), desc); !errors.Is(err, dstex.ErrInvalidExtent) {
		t.Fatalf("Share error = %v, want ErrInvalidExtent", err)
	}

	path, _ := writeFile(t, "huge.bin", 1024)
	fa := NewFactory()
	defer fa.Close()
	file, err := fa.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer file.Close()

	tex := &memTexture{desc: desc, data: make([]byte, 256)}
	_, err = NewTextureRequest("huge", file, 0, tex, dstex.FullRegion(desc.Extent))
	if !errors.Is(err, dstex.ErrInvalidExtent) {
		t.Fatalf("NewTextureRequest error = %v, want ErrInvalidExtent", err)
	}
	if dstex.KindOf(err) != dstex.KindValidation {
		t.Errorf("KindOf = %v, want validation", dstex.KindOf(err))
	}
}

func TestShortDestinationFailsFence(t *testing.T) {
	tex := newMemTexture(16, 16, dstex.TilingLinear)
	tex.data = tex.data[:16*4*8]
	path, _ := writeFile(t, "rows.bin", 16*16*4)

	fa := NewFactory()
	defer fa.Close()
	file, err := fa.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer file.Close()
	q := openQueue(t, fa)

	req, err := NewTextureRequest("rows", file, 0, tex, dstex.FullRegion(tex.desc.Extent))
	if err != nil {
		t.Fatalf("NewTextureRequest: %v", err)
	}
	f := fence.New("rows", 0)
	_ = q.EnqueueRequest(req)
	_ = q.EnqueueSignal(f, 1)
	if err := q.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := f.Wait(context.Background(), 1, 5*time.Second); !errors.Is(err, dstex.ErrRegionOutOfBounds) {
		t.Fatalf("Wait error = %v, want ErrRegionOutOfBounds", err)
	}
	if f.Completed() != 0 {
		t.Errorf("Completed() = %d, fence must not reach target", f.Completed())
	}
}
