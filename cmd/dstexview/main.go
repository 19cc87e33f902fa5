// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Command dstexview streams a texture asset straight into shared texture
// memory and draws it into a window through the shader pair, on the
// window's own GPU device.
//
// Settings come from an optional dstex.toml in the working directory. On
// failure one line is printed to standard output and the exit code is 1.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gogpu/gogpu"
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/dstex"
	"github.com/gogpu/dstex/config"
	"github.com/gogpu/dstex/loader"
)

func main() {
	if err := run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadOptional(config.DefaultFile)
	if err != nil {
		return err
	}
	dstex.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := loader.Load(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := res.Close(); cerr != nil {
			dstex.Logger().Warn("dstexview: release shared texture", "err", cerr)
		}
	}()

	app := gogpu.NewApp(gogpu.DefaultConfig().
		WithTitle(cfg.Title).
		WithSize(cfg.WindowWidth, cfg.WindowHeight))

	v := &viewer{app: app, cfg: cfg, res: res}
	app.OnDraw(v.draw)
	app.OnClose(v.release)

	if err := app.Run(); err != nil {
		return dstex.Wrap("gogpu.App.Run", dstex.KindOS, err)
	}
	return v.err
}

// viewer renders the texture through the shader pipeline into the surface
// view. If the window cannot hand out HAL objects it falls back to a
// texture drawer upload.
type viewer struct {
	app *gogpu.App
	cfg config.Config
	res *loader.Result

	surface  *surfaceRenderer
	fallback bool
	tex      gpucontext.Texture

	frames uint64
	err    error
}

func (v *viewer) draw(dc *gogpu.Context) {
	if v.err != nil {
		return
	}
	if v.surface == nil && !v.fallback {
		provider := v.app.GPUContextProvider()
		if provider == nil {
			return
		}
		s, err := newSurfaceRenderer(provider, provider.SurfaceFormat(), v.cfg, v.res)
		if err != nil {
			dstex.Logger().Warn("dstexview: surface rendering unavailable, using texture drawer",
				"backend", dc.Backend(), "err", err)
			v.fallback = true
		} else {
			v.surface = s
		}
	}
	if v.fallback {
		v.drawFallback(dc)
		return
	}

	sv := dc.SurfaceView()
	if sv == nil {
		return
	}
	w, h := dc.SurfaceSize()
	if w == 0 || h == 0 {
		return
	}
	if err := v.surface.render(sv, w, h); err != nil {
		v.fail(err)
		return
	}
	v.frames++
}

func (v *viewer) drawFallback(dc *gogpu.Context) {
	drawer := dc.AsTextureDrawer()
	if v.tex == nil {
		if err := v.createTexture(drawer); err != nil {
			v.fail(err)
			return
		}
	}
	if state := v.res.State(); state != nil && state.BeginUse() {
		dstex.Logger().Debug("dstexview: texture first use", "backend", dc.Backend())
	}
	if err := drawer.DrawTexture(v.tex, 0, 0); err != nil {
		v.fail(dstex.Wrap("dstexview.draw", dstex.KindGPU, err))
		return
	}
	v.frames++
}

func (v *viewer) createTexture(drawer gpucontext.TextureDrawer) error {
	const op = "dstexview.createTexture"
	creator := drawer.TextureCreator()
	if creator == nil {
		return dstex.Errorf(op, dstex.KindGPU, "draw context has no texture creator")
	}
	w, h := int(v.res.Desc.Width), int(v.res.Desc.Height)
	t, err := creator.NewTextureFromRGBA(w, h, toRGBA(v.res.Pixels(), v.res.Desc.Format))
	if err != nil {
		return dstex.Wrap(op, dstex.KindGPU, err)
	}
	tex, ok := any(t).(gpucontext.Texture)
	if !ok {
		return dstex.Errorf(op, dstex.KindGPU, "texture creator returned %T", t)
	}
	v.tex = tex
	dstex.Logger().Info("dstexview: texture created", "width", w, "height", h)
	return nil
}

func (v *viewer) fail(err error) {
	if v.err == nil {
		v.err = err
	}
	v.app.Quit()
}

func (v *viewer) release() {
	if v.surface != nil {
		v.surface.destroy()
		v.surface = nil
	}
	if d, ok := any(v.tex).(interface{ Destroy() }); ok {
		d.Destroy()
	}
	v.tex = nil
	dstex.Logger().Info("dstexview: closed", "frames", v.frames)
}

// toRGBA returns pix in RGBA channel order. BGRA input is swizzled in a copy.
func toRGBA(pix []byte, f dstex.Format) []byte {
	if f != dstex.FormatBGRA8Unorm {
		return pix
	}
	out := make([]byte, len(pix))
	for i := 0; i+3 < len(pix); i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = pix[i+2], pix[i+1], pix[i], pix[i+3]
	}
	return out
}
