// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Command ddsconv converts an image into a texture asset of the configured
// size: a DX10 DDS file, or bare texel rows with -raw.
//
// Supported inputs are PNG, JPEG, GIF, BMP, TIFF and WebP.
//
// Usage:
//
//	ddsconv [-width 2048] [-height 2048] [-format rgba8] [-raw] input.png example.dds
package main

import (
	"bufio"
	"flag"
	"fmt"
	"image"
	"os"

	// Register decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/dstex"
	"github.com/gogpu/dstex/config"
	"github.com/gogpu/dstex/dds"
)

func main() {
	def := config.Default()
	var (
		width  = flag.Uint("width", uint(def.Width), "texture width")
		height = flag.Uint("height", uint(def.Height), "texture height")
		format = flag.String("format", def.Format, "texture format: rgba8 or bgra8")
		raw    = flag.Bool("raw", false, "write bare texel rows without a DDS header")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: ddsconv [flags] input output\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := def.WithExtent(uint32(*width), uint32(*height)) //nolint:gosec // G115: checked by Validate
	cfg.Format = *format
	if err := convert(cfg, flag.Arg(0), flag.Arg(1), *raw); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func convert(cfg config.Config, in, out string, raw bool) error {
	const op = "ddsconv"
	desc, err := cfg.Texture()
	if err != nil {
		return dstex.Wrap(op, dstex.KindValidation, err)
	}
	if err := desc.Validate(); err != nil {
		return dstex.Wrap(op, dstex.KindValidation, err)
	}

	src, err := decode(in)
	if err != nil {
		return err
	}
	pix := texels(src, desc.Extent, desc.Format)

	f, err := os.Create(out) //nolint:gosec // G304: path supplied on the command line
	if err != nil {
		return dstex.Wrap(op, dstex.KindIO, err)
	}
	w := bufio.NewWriter(f)
	if raw {
		_, err = w.Write(pix)
	} else {
		err = dds.Encode(w, desc.Extent, desc.Format, pix)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return dstex.Wrap(op, dstex.KindIO, err)
	}
	dstex.Logger().Info("ddsconv: wrote asset", "path", out, "extent", desc.Extent, "format", desc.Format, "raw", raw)
	return nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path supplied on the command line
	if err != nil {
		return nil, dstex.Wrap("ddsconv.decode", dstex.KindIO, err)
	}
	defer f.Close()
	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, dstex.Wrap("ddsconv.decode", dstex.KindIO, fmt.Errorf("%s: %w", path, err))
	}
	return img, nil
}

// texels scales src to e with Catmull-Rom filtering and returns tightly
// packed, non-premultiplied rows in format f.
func texels(src image.Image, e dstex.Extent, f dstex.Format) []byte {
	dst := image.NewNRGBA(image.Rect(0, 0, int(e.Width), int(e.Height)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	if f == dstex.FormatBGRA8Unorm {
		p := dst.Pix
		for i := 0; i+3 < len(p); i += 4 {
			p[i], p[i+2] = p[i+2], p[i]
		}
	}
	return dst.Pix
}
