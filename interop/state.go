// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package interop

import "sync/atomic"

// TextureState tracks per-texture layout state for the render loop.
// An imported image starts in an undefined layout and needs exactly one
// transition before its first use in a frame.
type TextureState struct {
	initialized atomic.Bool
	transitions atomic.Uint32
}

// BeginUse reports whether the caller must record the initial transition.
// It returns true exactly once per TextureState.
func (s *TextureState) BeginUse() bool {
	if s.initialized.CompareAndSwap(false, true) {
		s.transitions.Add(1)
		return true
	}
	return false
}

// Initialized reports whether the initial transition has been recorded.
func (s *TextureState) Initialized() bool { return s.initialized.Load() }

// Transitions returns the number of initial transitions recorded (0 or 1).
func (s *TextureState) Transitions() uint32 { return s.transitions.Load() }
