// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package loader runs the texture streaming setup sequence.
//
// In ModeShared, Load creates a shared texture (producer side), imports it
// on the consumer side, streams the asset straight into the shared memory
// through a storage queue and waits on the transfer fence with a bound.
// ModeStaged reads the asset into a private buffer instead; the caller
// uploads it through the GPU queue.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gogpu/dstex"
	"github.com/gogpu/dstex/config"
	"github.com/gogpu/dstex/dds"
	"github.com/gogpu/dstex/fence"
	"github.com/gogpu/dstex/gpu"
	"github.com/gogpu/dstex/interop"
	"github.com/gogpu/dstex/storage"
)

// Mode selects the upload path.
type Mode uint8

// Upload paths.
const (
	// ModeShared streams the file into memory shared between producer and consumer.
	ModeShared Mode = iota

	// ModeStaged reads the file into a CPU buffer for a queue upload.
	ModeStaged
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeStaged {
		return "staged"
	}
	return "shared"
}

// Option configures Load.
type Option func(*options)

type options struct {
	arena *interop.Arena

	// source wraps the asset reader; tests use it to stall transfers.
	source func(io.ReaderAt) io.ReaderAt
}

// WithArena makes the producer allocate from a.
func WithArena(a *interop.Arena) Option {
	return func(o *options) {
		o.arena = a
	}
}

// Result is a loaded texture.
type Result struct {
	Mode Mode
	Desc dstex.TextureDesc

	// Header is the asset's DDS header, or nil for raw assets.
	Header *dds.Header

	// Shared is the streamed texture in ModeShared.
	Shared *interop.SharedTexture

	// Staged holds the packed texels in ModeStaged.
	Staged []byte

	Bytes   uint64
	Elapsed time.Duration
}

// State returns the layout state of the texture.
func (r *Result) State() *interop.TextureState {
	if r.Shared != nil {
		return r.Shared.State
	}
	return nil
}

// Pixels returns a packed copy of the texels.
func (r *Result) Pixels() []byte {
	if r.Shared != nil {
		return r.Shared.Pixels()
	}
	return r.Staged
}

// Upload writes the texels into tex.
func (r *Result) Upload(tex *gpu.Texture) error {
	if r.Shared != nil {
		return tex.UploadShared(r.Shared)
	}
	return tex.Upload(r.Staged, r.Desc.RowPitch())
}

// Close releases the shared texture.
func (r *Result) Close() error {
	if r.Shared != nil {
		return r.Shared.Close()
	}
	return nil
}

// Load streams cfg.Asset into a texture of the configured size and format.
func Load(ctx context.Context, cfg config.Config, opts ...Option) (*Result, error) {
	const op = "loader.Load"
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, dstex.Wrap(op, dstex.KindValidation, err)
	}
	desc, err := cfg.Texture()
	if err != nil {
		return nil, dstex.Wrap(op, dstex.KindValidation, err)
	}

	start := time.Now()
	var res *Result
	if cfg.Staged {
		desc.Tiling = dstex.TilingLinear
		res, err = loadStaged(cfg.Asset, desc)
	} else {
		res, err = loadShared(ctx, cfg, desc, o)
	}
	if err != nil {
		return nil, dstex.Wrap(op, dstex.KindOther, err)
	}
	res.Elapsed = time.Since(start)
	dstex.Logger().Info("loader: texture loaded",
		"asset", cfg.Asset, "mode", res.Mode, "extent", desc.Extent, "bytes", res.Bytes, "elapsed", res.Elapsed)
	return res, nil
}

// sourceLayout returns the offset of the texel data in the asset and the
// DDS header if there is one.
func sourceLayout(r io.ReaderAt, size int64, desc dstex.TextureDesc) (int64, *dds.Header, error) {
	var magic [4]byte
	n, err := r.ReadAt(magic[:], 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, nil, err
	}
	if !dds.IsDDS(magic[:n]) {
		if size > int64(desc.PackedSize()) { //nolint:gosec // G115: packed size fits int64
			return 0, nil, fmt.Errorf("%w: raw asset has %d bytes, %v %v needs %d",
				dstex.ErrDimensionMismatch, size, desc.Extent, desc.Format, desc.PackedSize())
		}
		return 0, nil, nil
	}
	hdr, err := dds.ReadHeader(io.NewSectionReader(r, 0, size))
	if err != nil {
		return 0, nil, err
	}
	if hdr.Extent() != desc.Extent || hdr.Format != desc.Format {
		return 0, nil, fmt.Errorf("%w: asset is %v %v, configured %v %v",
			dstex.ErrDimensionMismatch, hdr.Extent(), hdr.Format, desc.Extent, desc.Format)
	}
	return hdr.DataOffset, &hdr, nil
}

// releaser runs cleanups in reverse registration order.
type releaser []func()

func (r *releaser) add(name string, fn func() error) {
	*r = append(*r, func() {
		if err := fn(); err != nil {
			dstex.Logger().Warn("loader: "+name+" close", "err", err)
		}
	})
}

func (r releaser) run() {
	for i := len(r) - 1; i >= 0; i-- {
		r[i]()
	}
}

func loadShared(ctx context.Context, cfg config.Config, desc dstex.TextureDesc, o options) (result *Result, err error) {
	producer := interop.NewProducer(interop.WithArena(o.arena), interop.WithName("dstex"))
	consumer := interop.NewConsumer(interop.WithName("dstex"))

	st, err := interop.Share(producer, consumer, desc)
	if err != nil {
		return nil, err
	}

	// The shared texture is released last: a queue worker may still be
	// writing into it until the factory has drained.
	var rel releaser
	rel.add("shared texture", st.Close)
	submitted := false
	defer func() {
		switch {
		case err == nil:
			rel = rel[1:]
			rel.run()
		case submitted:
			dstex.Logger().Warn("loader: transfer abandoned, releasing in background", "asset", cfg.Asset, "err", err)
			go rel.run()
		default:
			rel.run()
		}
	}()

	event, err := fence.NewEvent()
	if err != nil {
		return nil, err
	}
	rel.add("event", event.Close)

	factory := storage.NewFactory(storage.WithDefaultCapacity(cfg.QueueCapacity))
	rel.add("storage factory", factory.Close)
	file, err := factory.OpenFile(cfg.Asset)
	if err != nil {
		return nil, err
	}
	rel.add("file", file.Close)
	info, err := file.Info()
	if err != nil {
		return nil, err
	}
	offset, hdr, err := sourceLayout(file, info.Size, desc)
	if err != nil {
		return nil, err
	}

	queue, err := factory.CreateQueue(storage.QueueDesc{Name: "dstex", Capacity: cfg.QueueCapacity, Priority: storage.PriorityNormal})
	if err != nil {
		return nil, err
	}
	var src io.ReaderAt = file
	if o.source != nil {
		src = o.source(file)
	}
	req, err := storage.NewTextureRequest(cfg.Asset, src, offset, st, dstex.FullRegion(desc.Extent))
	if err != nil {
		return nil, err
	}

	transfer := producer.CreateFence("transfer", 0)
	if err := queue.EnqueueRequest(req); err != nil {
		return nil, err
	}
	if err := queue.EnqueueSignal(transfer, 1); err != nil {
		return nil, err
	}
	if err := queue.Submit(); err != nil {
		return nil, err
	}
	submitted = true

	if err := waitTransfer(ctx, transfer, event, 1, cfg.TransferTimeout.Std()); err != nil {
		return nil, err
	}
	if rec := queue.RetrieveErrorRecord(); rec.FailureCount > 0 && rec.FirstFailure != nil {
		return nil, fmt.Errorf("transfer %s: %w", rec.FirstFailure.Request, rec.FirstFailure.Err)
	}

	return &Result{
		Mode:   ModeShared,
		Desc:   desc,
		Header: hdr,
		Shared: st,
		Bytes:  req.UncompressedSize,
	}, nil
}

// waitSlice bounds a single event wait so cancellation is seen promptly.
const waitSlice = 50 * time.Millisecond

// waitTransfer registers event on the fence, skips the wait if the value
// is already reached, and otherwise blocks for at most timeout or until
// ctx is done. Errors recorded on the fence take precedence over the
// fence value.
func waitTransfer(ctx context.Context, f *fence.Fence, ev *fence.Event, target uint64, timeout time.Duration) error {
	if err := f.SetEventOnCompletion(target, ev); err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	for f.Completed() < target && f.Err() == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w: transfer fence at %d, want %d", dstex.ErrTimeout, f.Completed(), target)
		}
		if err := ev.Wait(min(remaining, waitSlice)); err != nil && !errors.Is(err, dstex.ErrTimeout) {
			return err
		}
	}
	return f.Err()
}

func loadStaged(path string, desc dstex.TextureDesc) (*Result, error) {
	f, err := os.Open(path) //nolint:gosec // G304: configured asset path
	if err != nil {
		return nil, dstex.Wrap("loader.loadStaged", dstex.KindIO, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, dstex.Wrap("loader.loadStaged", dstex.KindIO, err)
	}
	offset, hdr, err := sourceLayout(f, st.Size(), desc)
	if err != nil {
		return nil, err
	}
	data := make([]byte, desc.PackedSize())
	n, err := f.ReadAt(data, offset)
	if n < len(data) {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s: read %d of %d bytes", dstex.ErrShortRead, path, n, len(data))
		}
		return nil, dstex.Wrap("loader.loadStaged", dstex.KindIO, err)
	}
	return &Result{Mode: ModeStaged, Desc: desc, Header: hdr, Staged: data, Bytes: uint64(len(data))}, nil
}
