// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package config holds the settings of the texture streaming demo.
//
// Defaults reproduce the fixed inputs of the demo: a 2048x2048 RGBA8
// asset named example.dds next to the example.vert.spv/example.frag.spv
// shader pair. An optional TOML file can override any field:
//
//	asset = "textures/stone.dds"
//	width = 1024
//	height = 1024
//	transfer_timeout = "2s"
//	log_level = "debug"
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/dstex"
	"github.com/gogpu/dstex/shader"
	"github.com/gogpu/dstex/storage"
)

// DefaultFile is the optional configuration file looked up in the
// working directory by the commands.
const DefaultFile = "dstex.toml"

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid")

// Duration is a time.Duration read from a TOML string such as "5s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds the demo settings.
type Config struct {
	// Asset is the texture file streamed into the shared texture.
	Asset string `toml:"asset"`

	// Width and Height are the texture dimensions. A DDS asset must match them.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`

	// Format is the texture format name: "rgba8" or "bgra8".
	Format string `toml:"format"`

	// VertexShader and FragmentShader are the SPIR-V pair paths.
	VertexShader   string `toml:"vertex_shader"`
	FragmentShader string `toml:"fragment_shader"`

	// Staged selects the CPU-staged upload path instead of the shared
	// memory path.
	Staged bool `toml:"staged"`

	Title        string `toml:"title"`
	WindowWidth  int    `toml:"window_width"`
	WindowHeight int    `toml:"window_height"`

	// TransferTimeout bounds the wait for the file transfer fence.
	TransferTimeout Duration `toml:"transfer_timeout"`

	// FrameTimeout bounds the per-frame GPU fence wait.
	FrameTimeout Duration `toml:"frame_timeout"`

	// QueueCapacity is the storage queue capacity.
	QueueCapacity int `toml:"queue_capacity"`

	// LogLevel is the slog level for diagnostics on stderr.
	LogLevel slog.Level `toml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Asset:           "example.dds",
		Width:           2048,
		Height:          2048,
		Format:          "rgba8",
		VertexShader:    shader.DefaultVertexPath,
		FragmentShader:  shader.DefaultFragmentPath,
		Title:           "dstex",
		WindowWidth:     1600,
		WindowHeight:    900,
		TransferTimeout: Duration(10 * time.Second),
		FrameTimeout:    Duration(5 * time.Second),
		QueueCapacity:   storage.MaxQueueCapacity,
		LogLevel:        slog.LevelWarn,
	}
}

// WithAsset returns a copy with the asset path set.
func (c Config) WithAsset(path string) Config {
	c.Asset = path
	return c
}

// WithExtent returns a copy with the texture dimensions set.
func (c Config) WithExtent(width, height uint32) Config {
	c.Width, c.Height = width, height
	return c
}

// WithFormat returns a copy with the texture format set.
func (c Config) WithFormat(f dstex.Format) Config {
	c.Format = formatName(f)
	return c
}

// WithShaders returns a copy with the SPIR-V pair paths set.
func (c Config) WithShaders(vert, frag string) Config {
	c.VertexShader, c.FragmentShader = vert, frag
	return c
}

// WithStaged returns a copy selecting the CPU-staged upload path.
func (c Config) WithStaged(staged bool) Config {
	c.Staged = staged
	return c
}

// WithTitle returns a copy with the window title set.
func (c Config) WithTitle(title string) Config {
	c.Title = title
	return c
}

// WithWindowSize returns a copy with the window size set.
func (c Config) WithWindowSize(width, height int) Config {
	c.WindowWidth, c.WindowHeight = width, height
	return c
}

// WithTransferTimeout returns a copy with the transfer wait bound set.
func (c Config) WithTransferTimeout(d time.Duration) Config {
	c.TransferTimeout = Duration(d)
	return c
}

// WithLogLevel returns a copy with the log level set.
func (c Config) WithLogLevel(l slog.Level) Config {
	c.LogLevel = l
	return c
}

// TextureFormat resolves the Format name.
func (c Config) TextureFormat() (dstex.Format, error) {
	switch strings.ToLower(c.Format) {
	case "rgba8", "rgba8unorm":
		return dstex.FormatRGBA8Unorm, nil
	case "bgra8", "bgra8unorm":
		return dstex.FormatBGRA8Unorm, nil
	default:
		return dstex.FormatUnknown, fmt.Errorf("%w: %q", dstex.ErrUnsupportedFormat, c.Format)
	}
}

// Texture returns the descriptor of the streamed texture.
func (c Config) Texture() (dstex.TextureDesc, error) {
	f, err := c.TextureFormat()
	if err != nil {
		return dstex.TextureDesc{}, err
	}
	return dstex.TextureDesc{
		Extent: dstex.Extent{Width: c.Width, Height: c.Height},
		Format: f,
		Usage:  dstex.UsageSampled | dstex.UsageCopyDst | dstex.UsageShared,
		Label:  c.Asset,
	}, nil
}

// Validate checks the settings for consistency.
func (c Config) Validate() error {
	var errs []error
	if c.Asset == "" {
		errs = append(errs, errors.New("asset path is empty"))
	}
	desc, err := c.Texture()
	if err != nil {
		errs = append(errs, err)
	} else if err := desc.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d", c.WindowWidth, c.WindowHeight))
	}
	if c.TransferTimeout <= 0 || c.FrameTimeout <= 0 {
		errs = append(errs, fmt.Errorf("timeouts must be positive: transfer %v, frame %v",
			c.TransferTimeout.Std(), c.FrameTimeout.Std()))
	}
	if c.QueueCapacity < 1 || c.QueueCapacity > storage.MaxQueueCapacity {
		errs = append(errs, fmt.Errorf("queue capacity %d outside [1, %d]", c.QueueCapacity, storage.MaxQueueCapacity))
	}
	if len(errs) > 0 {
		return dstex.Wrap("config.Validate", dstex.KindValidation, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...)))
	}
	return nil
}

// Load overlays the TOML file at path on Default. Unknown keys are an
// error so that typos do not go unnoticed.
func Load(path string) (Config, error) {
	c := Default()
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return Config{}, dstex.Wrap("config.Load", dstex.KindIO, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, dstex.Wrap("config.Load", dstex.KindValidation,
			fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", ")))
	}
	if err := c.Validate(); err != nil {
		return Config{}, dstex.Wrap("config.Load", dstex.KindValidation, err)
	}
	return c, nil
}

// LoadOptional loads path if it exists and returns Default otherwise.
func LoadOptional(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

func formatName(f dstex.Format) string {
	switch f {
	case dstex.FormatBGRA8Unorm:
		return "bgra8"
	case dstex.FormatRGBA8Unorm:
		return "rgba8"
	default:
		return f.String()
	}
}
