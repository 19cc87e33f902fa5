// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/dstex"
)

func TestDefault(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Default().Validate: %v", err)
	}
	desc, err := c.Texture()
	if err != nil {
		t.Fatalf("Texture: %v", err)
	}
	if desc.Width != 2048 || desc.Height != 2048 || desc.Format != dstex.FormatRGBA8Unorm {
		t.Errorf("Texture = %+v, want 2048x2048 RGBA8", desc)
	}
	if !desc.Usage.Has(dstex.UsageShared | dstex.UsageCopyDst | dstex.UsageSampled) {
		t.Errorf("Usage = %b, missing flags", desc.Usage)
	}
	if c.Asset != "example.dds" || c.VertexShader != "example.vert.spv" || c.FragmentShader != "example.frag.spv" {
		t.Errorf("inputs = %q %q %q", c.Asset, c.VertexShader, c.FragmentShader)
	}
}

func TestWithSetters(t *testing.T) {
	c := Default().
		WithAsset("a.dds").
		WithExtent(64, 32).
		WithFormat(dstex.FormatBGRA8Unorm).
		WithShaders("v.spv", "f.spv").
		WithStaged(true).
		WithTitle("t").
		WithWindowSize(320, 240).
		WithTransferTimeout(time.Second).
		WithLogLevel(slog.LevelDebug)

	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	f, err := c.TextureFormat()
	if err != nil || f != dstex.FormatBGRA8Unorm {
		t.Errorf("TextureFormat = %v, %v", f, err)
	}
	if c.Asset != "a.dds" || c.Width != 64 || c.Height != 32 || !c.Staged || c.Title != "t" ||
		c.WindowWidth != 320 || c.TransferTimeout.Std() != time.Second || c.LogLevel != slog.LevelDebug {
		t.Errorf("config = %+v", c)
	}
	if Default().Asset != "example.dds" {
		t.Error("setters must not modify the receiver's source")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		c    Config
	}{
		{"empty asset", Default().WithAsset("")},
		{"zero extent", Default().WithExtent(0, 16)},
		{"extent above max", Default().WithExtent(1073741888, 1)},
		{"bad format", func() Config { c := Default(); c.Format = "rgba16f"; return c }()},
		{"bad window", Default().WithWindowSize(0, 10)},
		{"zero timeout", Default().WithTransferTimeout(0)},
		{"queue capacity", func() Config { c := Default(); c.QueueCapacity = 0; return c }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate = %v, want ErrInvalid", err)
			}
			if dstex.KindOf(err) != dstex.KindValidation {
				t.Errorf("KindOf = %v, want validation", dstex.KindOf(err))
			}
		})
	}
}

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTOML(t, `
asset = "stone.dds"
width = 1024
height = 512
format = "bgra8"
staged = true
transfer_timeout = "2s"
log_level = "debug"
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Asset != "stone.dds" || c.Width != 1024 || c.Height != 512 || c.Format != "bgra8" || !c.Staged {
		t.Errorf("Load = %+v", c)
	}
	if c.TransferTimeout.Std() != 2*time.Second {
		t.Errorf("TransferTimeout = %v, want 2s", c.TransferTimeout.Std())
	}
	if c.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", c.LogLevel)
	}
	if c.VertexShader != "example.vert.spv" || c.WindowWidth != 1600 {
		t.Error("unset keys should keep their defaults")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"unknown key", `asest = "typo.dds"`, ErrInvalid},
		{"invalid value", `width = 0`, ErrInvalid},
		{"width wraps row pitch", `width = 1073741888`, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeTOML(t, tt.body)); !errors.Is(err, tt.want) {
				t.Errorf("Load = %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := Load(writeTOML(t, `transfer_timeout = "soon"`)); err == nil {
		t.Error("Load accepted an unparsable duration")
	}
	if _, err := Load(writeTOML(t, `width = [`)); err == nil {
		t.Error("Load accepted malformed TOML")
	}
}

func TestLoadOptional(t *testing.T) {
	c, err := LoadOptional(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadOptional(missing): %v", err)
	}
	if c != Default() {
		t.Error("LoadOptional(missing) should return Default()")
	}
	c, err = LoadOptional(writeTOML(t, `title = "custom"`))
	if err != nil || c.Title != "custom" {
		t.Errorf("LoadOptional = %+v, %v", c, err)
	}
}
