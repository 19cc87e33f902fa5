// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Command dstexbench runs the streaming setup and a number of offscreen
// frames without a window, and reports timings.
//
// Usage:
//
//	dstexbench [-config dstex.toml] [-frames 60] [-noop] [-out frame.dds]
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gogpu/dstex"
	"github.com/gogpu/dstex/config"
	"github.com/gogpu/dstex/dds"
	"github.com/gogpu/dstex/gpu"
	"github.com/gogpu/dstex/loader"
	"github.com/gogpu/dstex/shader"
)

func main() {
	var (
		cfgPath = flag.String("config", config.DefaultFile, "settings file (optional)")
		frames  = flag.Int("frames", 60, "number of frames to render")
		noop    = flag.Bool("noop", false, "use the noop GPU backend")
		staged  = flag.Bool("staged", false, "upload through a CPU staging buffer")
		out     = flag.String("out", "", "write the last frame to this DDS file")
	)
	flag.Parse()

	if err := run(*cfgPath, *frames, *noop, *staged, *out); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run(cfgPath string, frames int, noop, staged bool, out string) error {
	cfg, err := config.LoadOptional(cfgPath)
	if err != nil {
		return err
	}
	if staged {
		cfg = cfg.WithStaged(true)
	}
	dstex.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := loader.Load(ctx, cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	dev, err := openDevice(noop)
	if err != nil {
		return err
	}
	defer dev.Close()

	pair, err := shader.Load(cfg.VertexShader, cfg.FragmentShader)
	if err != nil {
		return err
	}

	tex, err := dev.CreateTexture(res.Desc, res.State())
	if err != nil {
		return err
	}
	defer tex.Destroy()
	if err := res.Upload(tex); err != nil {
		return err
	}

	extent := dstex.Extent{Width: uint32(cfg.WindowWidth), Height: uint32(cfg.WindowHeight)} //nolint:gosec // G115: validated positive
	target, err := dev.CreateTarget(extent, dstex.FormatRGBA8Unorm)
	if err != nil {
		return err
	}
	defer target.Destroy()

	renderer, err := gpu.NewRenderer(dev, pair, target.Format(), gpu.WithFrameTimeout(cfg.FrameTimeout.Std()))
	if err != nil {
		return err
	}
	defer renderer.Destroy()

	start := time.Now()
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := renderer.RenderFrame(target, tex); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	if out != "" {
		if err := writeFrame(out, target, cfg.FrameTimeout.Std()); err != nil {
			return err
		}
	}

	st := renderer.Stats()
	perFrame := time.Duration(0)
	if st.Frames > 0 {
		perFrame = elapsed / time.Duration(st.Frames) //nolint:gosec // G115: frame count fits int64
	}
	fmt.Printf("device=%s mode=%s shaders=%s load=%v bytes=%d frames=%d transitions=%d frame=%v\n",
		dev.Name(), res.Mode, pair.Origin, res.Elapsed, res.Bytes, st.Frames, st.Transitions, perFrame)
	return nil
}

func openDevice(noop bool) (*gpu.Device, error) {
	if noop {
		return gpu.OpenNoop()
	}
	dev, err := gpu.Open()
	if err != nil {
		dstex.Logger().Warn("dstexbench: falling back to noop backend", "err", err)
		return gpu.OpenNoop()
	}
	return dev, nil
}

func writeFrame(path string, target *gpu.Target, timeout time.Duration) (err error) {
	pix, err := target.ReadPixels(timeout)
	if err != nil {
		return err
	}
	f, err := os.Create(path) //nolint:gosec // G304: path supplied on the command line
	if err != nil {
		return dstex.Wrap("dstexbench.writeFrame", dstex.KindIO, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = dstex.Wrap("dstexbench.writeFrame", dstex.KindIO, cerr)
		}
	}()
	w := bufio.NewWriter(f)
	if err := dds.Encode(w, target.Extent(), target.Format(), pix); err != nil {
		return dstex.Wrap("dstexbench.writeFrame", dstex.KindIO, err)
	}
	return dstex.Wrap("dstexbench.writeFrame", dstex.KindIO, w.Flush())
}
