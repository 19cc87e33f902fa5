// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package loader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/dstex"
	"github.com/gogpu/dstex/config"
	"github.com/gogpu/dstex/dds"
	"github.com/gogpu/dstex/fence"
	"github.com/gogpu/dstex/gpu"
	"github.com/gogpu/dstex/interop"
)

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + i>>9)
	}
	return data
}

func writeAsset(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func writeDDS(t *testing.T, e dstex.Extent, f dstex.Format, pix []byte) string {
	t.Helper()
	var buf bytes.Buffer
	if err := dds.Encode(&buf, e, f, pix); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return writeAsset(t, "asset.dds", buf.Bytes())
}

func testConfig(path string, w, h uint32) config.Config {
	return config.Default().
		WithAsset(path).
		WithExtent(w, h).
		WithTransferTimeout(5 * time.Second)
}

func TestLoadRawShared(t *testing.T) {
	const w, h = 100, 37
	src := pattern(w * h * 4)
	path := writeAsset(t, "asset.raw", src)

	arena := interop.NewArena()
	res, err := Load(context.Background(), testConfig(path, w, h), WithArena(arena))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Mode != ModeShared || res.Shared == nil {
		t.Fatalf("mode = %v, shared = %v", res.Mode, res.Shared)
	}
	if res.Header != nil {
		t.Errorf("raw asset produced header %+v", res.Header)
	}
	if res.Bytes != uint64(len(src)) {
		t.Errorf("Bytes = %d, want %d", res.Bytes, len(src))
	}
	if !bytes.Equal(res.Pixels(), src) {
		t.Error("consumer pixels differ from the source file")
	}
	if arena.Live() != 1 {
		t.Errorf("arena live = %d, want 1", arena.Live())
	}
	if err := res.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if arena.Live() != 0 {
		t.Errorf("arena live after Close = %d, want 0", arena.Live())
	}
}

func TestLoadDDSShared(t *testing.T) {
	e := dstex.Extent{Width: 64, Height: 48}
	src := pattern(int(e.Width * e.Height * 4))
	path := writeDDS(t, e, dstex.FormatBGRA8Unorm, src)

	cfg := testConfig(path, e.Width, e.Height).WithFormat(dstex.FormatBGRA8Unorm)
	res, err := Load(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer res.Close()
	if res.Header == nil || res.Header.Extent() != e {
		t.Fatalf("Header = %+v", res.Header)
	}
	if !bytes.Equal(res.Pixels(), src) {
		t.Error("pixels differ from the DDS payload")
	}
	if res.State() == nil || res.State().Initialized() {
		t.Error("state should exist and not be initialized before first use")
	}
}

func TestLoadDimensionMismatch(t *testing.T) {
	e := dstex.Extent{Width: 32, Height: 32}
	path := writeDDS(t, e, dstex.FormatRGBA8Unorm, pattern(32*32*4))

	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"extent", testConfig(path, 64, 32)},
		{"format", testConfig(path, 32, 32).WithFormat(dstex.FormatBGRA8Unorm)},
		{"staged extent", testConfig(path, 32, 16).WithStaged(true)},
		{"raw too large", testConfig(writeAsset(t, "big.raw", pattern(16*16*4+1)), 16, 16)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), tt.cfg)
			if !errors.Is(err, dstex.ErrDimensionMismatch) {
				t.Fatalf("err = %v, want ErrDimensionMismatch", err)
			}
			if k := dstex.KindOf(err); k != dstex.KindValidation {
				t.Errorf("kind = %v, want validation", k)
			}
		})
	}
}

func TestLoadTruncated(t *testing.T) {
	const w, h = 64, 64
	path := writeAsset(t, "short.raw", pattern(w*h*4-100))

	for _, staged := range []bool{false, true} {
		arena := interop.NewArena()
		_, err := Load(context.Background(), testConfig(path, w, h).WithStaged(staged), WithArena(arena))
		if !errors.Is(err, dstex.ErrShortRead) {
			t.Fatalf("staged=%v: err = %v, want ErrShortRead", staged, err)
		}
		if arena.Live() != 0 {
			t.Errorf("staged=%v: arena live = %d after failed load", staged, arena.Live())
		}
	}
}

func TestLoadMissingAsset(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing.dds"), 8, 8)
	_, err := Load(context.Background(), cfg)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
	if k := dstex.KindOf(err); k != dstex.KindIO {
		t.Errorf("kind = %v, want io", k)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	_, err := Load(context.Background(), config.Default().WithExtent(0, 16))
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("err = %v, want config.ErrInvalid", err)
	}
}

func TestLoadCancelledContext(t *testing.T) {
	const w, h = 16, 16
	path := writeAsset(t, "asset.raw", pattern(w*h*4))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The transfer may already be complete when the wait starts.
	res, err := Load(ctx, testConfig(path, w, h))
	switch {
	case err == nil:
		_ = res.Close()
	case !errors.Is(err, context.Canceled):
		t.Fatalf("err = %v, want nil or context.Canceled", err)
	}
}

// stalledReader blocks every read until release is closed.
type stalledReader struct {
	r       io.ReaderAt
	release chan struct{}
}

func (s stalledReader) ReadAt(p []byte, off int64) (int, error) {
	<-s.release
	return s.r.ReadAt(p, off)
}

func TestLoadStalledTransfer(t *testing.T) {
	const w, h = 16, 16
	path := writeAsset(t, "asset.raw", pattern(w*h*4))
	release := make(chan struct{})
	stall := func(o *options) {
		o.source = func(r io.ReaderAt) io.ReaderAt { return stalledReader{r: r, release: release} }
	}

	arena := interop.NewArena()
	cfg := testConfig(path, w, h).WithTransferTimeout(100 * time.Millisecond)
	start := time.Now()
	_, err := Load(context.Background(), cfg, WithArena(arena), stall)
	elapsed := time.Since(start)
	if !errors.Is(err, dstex.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Load returned after %v with the transfer still running", elapsed)
	}
	if arena.Live() != 1 {
		t.Errorf("arena live = %d while the worker holds the texture, want 1", arena.Live())
	}

	close(release)
	deadline := time.Now().Add(5 * time.Second)
	for arena.Live() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("shared texture not released after the transfer drained")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWaitTransfer(t *testing.T) {
	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	short, cancelShort := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancelShort()
	cancelled, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	tests := []struct {
		name    string
		ctx     context.Context
		timeout time.Duration
		want    []error
	}{
		{"timeout", context.Background(), 60 * time.Millisecond, []error{dstex.ErrTimeout}},
		{"expired deadline", expired, 10 * time.Second, []error{context.DeadlineExceeded}},
		{"context deadline", short, 10 * time.Second, []error{dstex.ErrTimeout, context.DeadlineExceeded}},
		{"cancelled while waiting", cancelled, 10 * time.Second, []error{context.Canceled}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := fence.NewEvent()
			if err != nil {
				t.Fatalf("NewEvent: %v", err)
			}
			defer ev.Close()
			f := fence.New("never", 0)

			start := time.Now()
			err = waitTransfer(tt.ctx, f, ev, 1, tt.timeout)
			if elapsed := time.Since(start); elapsed > 2*time.Second {
				t.Errorf("waitTransfer took %v", elapsed)
			}
			for _, want := range tt.want {
				if errors.Is(err, want) {
					return
				}
			}
			t.Errorf("err = %v, want one of %v", err, tt.want)
		})
	}
}

func TestWaitTransferCompletes(t *testing.T) {
	ev, err := fence.NewEvent()
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	defer ev.Close()

	f := fence.New("signalled", 0)
	time.AfterFunc(20*time.Millisecond, func() { _ = f.Signal(1) })
	if err := waitTransfer(context.Background(), f, ev, 1, 5*time.Second); err != nil {
		t.Errorf("signalled fence: %v", err)
	}

	failed := fence.New("failed", 0)
	boom := errors.New("boom")
	time.AfterFunc(20*time.Millisecond, func() { failed.Fail(boom) })
	if err := waitTransfer(context.Background(), failed, ev, 1, 5*time.Second); !errors.Is(err, boom) {
		t.Errorf("failed fence: err = %v, want boom", err)
	}
}

func TestLoadStaged(t *testing.T) {
	e := dstex.Extent{Width: 40, Height: 10}
	src := pattern(int(e.Width * e.Height * 4))
	path := writeDDS(t, e, dstex.FormatRGBA8Unorm, src)

	res, err := Load(context.Background(), testConfig(path, e.Width, e.Height).WithStaged(true))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Mode != ModeStaged || res.Shared != nil {
		t.Fatalf("mode = %v, shared = %v", res.Mode, res.Shared)
	}
	if res.Desc.Tiling != dstex.TilingLinear {
		t.Errorf("tiling = %v, want linear", res.Desc.Tiling)
	}
	if !bytes.Equal(res.Pixels(), src) {
		t.Error("staged pixels differ from the DDS payload")
	}
	if err := res.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestResultUpload(t *testing.T) {
	d, err := gpu.OpenNoop()
	if err != nil {
		t.Fatalf("OpenNoop: %v", err)
	}
	defer d.Close()

	e := dstex.Extent{Width: 20, Height: 20}
	path := writeAsset(t, "asset.raw", pattern(int(e.Width*e.Height*4)))

	for _, staged := range []bool{false, true} {
		res, err := Load(context.Background(), testConfig(path, e.Width, e.Height).WithStaged(staged))
		if err != nil {
			t.Fatalf("staged=%v: Load: %v", staged, err)
		}
		tex, err := d.CreateTexture(res.Desc, res.State())
		if err != nil {
			t.Fatalf("CreateTexture: %v", err)
		}
		if err := res.Upload(tex); err != nil {
			t.Errorf("staged=%v: Upload: %v", staged, err)
		}
		tex.Destroy()
		_ = res.Close()
	}
}

func TestModeString(t *testing.T) {
	if ModeShared.String() != "shared" || ModeStaged.String() != "staged" {
		t.Errorf("got %q, %q", ModeShared, ModeStaged)
	}
}
