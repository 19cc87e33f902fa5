// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package shader loads the vertex/fragment shader pair used to display
// the streamed texture.
//
// Precompiled SPIR-V files are preferred. When they are absent the
// built-in WGSL blit shader is compiled to SPIR-V with naga.
package shader

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gogpu/naga"

	"github.com/gogpu/dstex"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic = 0x07230203

// Default file names, relative to the working directory.
const (
	DefaultVertexPath   = "example.vert.spv"
	DefaultFragmentPath = "example.frag.spv"
)

//go:embed shaders/blit.wgsl
var blitSource string

// ErrInvalidSPIRV is returned for files that are not SPIR-V modules.
var ErrInvalidSPIRV = errors.New("shader: invalid SPIR-V")

// Stage is a programmable pipeline stage.
type Stage uint8

// Pipeline stages.
const (
	StageVertex Stage = iota
	StageFragment
)

// String returns the stage name.
func (s Stage) String() string {
	if s == StageFragment {
		return "fragment"
	}
	return "vertex"
}

// Origin records where a Pair came from.
type Origin uint8

// Pair origins.
const (
	OriginFiles Origin = iota
	OriginBuiltin
)

// String returns the origin name.
func (o Origin) String() string {
	if o == OriginBuiltin {
		return "builtin"
	}
	return "files"
}

// Module is one compiled shader stage.
type Module struct {
	Label      string
	Stage      Stage
	EntryPoint string
	SPIRV      []uint32
}

// Pair is a vertex and fragment module.
type Pair struct {
	Vertex   Module
	Fragment Module
	Origin   Origin
}

// Words converts little-endian SPIR-V bytes to words, checking the size
// and the magic number.
func Words(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("%w: size %d is not a positive multiple of 4", ErrInvalidSPIRV, len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != SPIRVMagic {
		return nil, fmt.Errorf("%w: magic %#08x", ErrInvalidSPIRV, words[0])
	}
	return words, nil
}

// LoadSPIRV reads a SPIR-V module whose entry point is "main".
func LoadSPIRV(path string, stage Stage) (Module, error) {
	code, err := os.ReadFile(path) //nolint:gosec // G304: path supplied by the caller
	if err != nil {
		return Module{}, dstex.Wrap("shader.LoadSPIRV", dstex.KindIO, err)
	}
	words, err := Words(code)
	if err != nil {
		return Module{}, dstex.Wrap("shader.LoadSPIRV", dstex.KindValidation, fmt.Errorf("%s: %w", path, err))
	}
	return Module{Label: path, Stage: stage, EntryPoint: "main", SPIRV: words}, nil
}

// LoadPair reads a vertex and a fragment SPIR-V module.
func LoadPair(vertPath, fragPath string) (Pair, error) {
	vs, err := LoadSPIRV(vertPath, StageVertex)
	if err != nil {
		return Pair{}, err
	}
	frag, err := LoadSPIRV(fragPath, StageFragment)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Vertex: vs, Fragment: frag, Origin: OriginFiles}, nil
}

// CompileWGSL compiles WGSL source to SPIR-V words.
func CompileWGSL(src string) ([]uint32, error) {
	code, err := naga.Compile(src)
	if err != nil {
		return nil, dstex.Wrap("shader.CompileWGSL", dstex.KindGPU, err)
	}
	words, err := Words(code)
	if err != nil {
		return nil, dstex.Wrap("shader.CompileWGSL", dstex.KindGPU, err)
	}
	return words, nil
}

// BlitSource returns the built-in WGSL blit shader.
func BlitSource() string { return blitSource }

// Blit compiles the built-in full-screen blit shader. Both stages share
// one module with entry points vs_main and fs_main.
func Blit() (Pair, error) {
	words, err := CompileWGSL(blitSource)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		Vertex:   Module{Label: "blit", Stage: StageVertex, EntryPoint: "vs_main", SPIRV: words},
		Fragment: Module{Label: "blit", Stage: StageFragment, EntryPoint: "fs_main", SPIRV: words},
		Origin:   OriginBuiltin,
	}, nil
}

// Load reads the SPIR-V pair, falling back to Blit when either file does
// not exist. Any other failure is returned.
func Load(vertPath, fragPath string) (Pair, error) {
	pair, err := LoadPair(vertPath, fragPath)
	if err == nil {
		return pair, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return Pair{}, err
	}
	dstex.Logger().Info("shader: SPIR-V pair not found, using built-in blit", "vertex", vertPath, "fragment", fragPath)
	return Blit()
}
