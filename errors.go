// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package dstex

import (
	"errors"
	"fmt"
	"syscall"
)

// Validation and protocol errors shared by all dstex packages.
var (
	// ErrInvalidExtent is returned when a width or height is zero.
	ErrInvalidExtent = errors.New("dstex: invalid extent")

	// ErrUnsupportedFormat is returned for formats that cannot be shared
	// between the producer and consumer APIs.
	ErrUnsupportedFormat = errors.New("dstex: unsupported format")

	// ErrRegionOutOfBounds is returned when a destination region does not
	// lie inside the destination texture.
	ErrRegionOutOfBounds = errors.New("dstex: region out of bounds")

	// ErrEmptyRegion is returned for regions with zero width, height or depth.
	ErrEmptyRegion = errors.New("dstex: empty region")

	// ErrShortRead is returned when a transfer source ends before the
	// declared number of bytes has been read.
	ErrShortRead = errors.New("dstex: short read")

	// ErrSizeMismatch is returned when a declared transfer size does not
	// match the destination region size.
	ErrSizeMismatch = errors.New("dstex: size mismatch")

	// ErrDimensionMismatch is returned when an asset's dimensions differ
	// from the configured texture dimensions.
	ErrDimensionMismatch = errors.New("dstex: dimension mismatch")

	// ErrTimeout is returned when a bounded wait expires.
	ErrTimeout = errors.New("dstex: wait timed out")

	// ErrClosed is returned when operating on a released object.
	ErrClosed = errors.New("dstex: object closed")
)

// Kind classifies the origin of an Error.
type Kind uint8

const (
	// KindOther is an unclassified failure.
	KindOther Kind = iota

	// KindOS is a windowing or operating system failure.
	KindOS

	// KindGPU is a failure reported by a graphics API.
	KindGPU

	// KindHandle is a failure exporting, importing or closing a shareable handle.
	KindHandle

	// KindIO is a file or transfer failure.
	KindIO

	// KindValidation is a caller error detected before any work was issued.
	KindValidation

	// KindTimeout is an expired bounded wait.
	KindTimeout
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindOS:
		return "os"
	case KindGPU:
		return "gpu"
	case KindHandle:
		return "handle"
	case KindIO:
		return "io"
	case KindValidation:
		return "validation"
	case KindTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// Error is the single error representation every failure is normalized to.
// The message has the form "<op> failed: <cause>".
type Error struct {
	// Op names the failing operation, e.g. "Producer.ExportHandle".
	Op string

	// Kind classifies the failure.
	Kind Kind

	// Code is the raw result code (errno, HRESULT, API result) or 0.
	Code int64

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		if e.Code != 0 {
			return fmt.Sprintf("%s failed: code %d", e.Op, e.Code)
		}
		return e.Op + " failed"
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Wrap normalizes err into an *Error for op. Nil stays nil. An *Error
// passed in keeps its kind and code and only gains the outer op when the
// op differs.
func Wrap(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) && de.Op == op {
		return err
	}
	if kind == KindOther {
		kind = classify(err)
	}
	e := &Error{Op: op, Kind: kind, Err: err}
	var errno syscall.Errno
	switch {
	case errors.As(err, &de):
		e.Code = de.Code
	case errors.As(err, &errno):
		e.Code = int64(errno)
	}
	return e
}

// Errorf is shorthand for Wrap(op, kind, fmt.Errorf(format, args...)).
func Errorf(op string, kind Kind, format string, args ...any) error {
	return Wrap(op, kind, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindOther if there is none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindOther
}

func classify(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrShortRead):
		return KindIO
	case errors.Is(err, ErrInvalidExtent), errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrRegionOutOfBounds), errors.Is(err, ErrEmptyRegion),
		errors.Is(err, ErrSizeMismatch), errors.Is(err, ErrDimensionMismatch):
		return KindValidation
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return KindOS
	}
	return KindOther
}
