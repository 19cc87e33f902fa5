// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package storage

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gogpu/dstex"
)

// MaxQueueCapacity is the largest number of entries a queue holds.
const MaxQueueCapacity = 8192

// Option configures a Factory.
type Option func(*factoryOptions)

type factoryOptions struct {
	capacity int
	priority Priority
}

// WithDefaultCapacity sets the capacity used for queues created with
// Capacity 0. Values outside [1, MaxQueueCapacity] are clamped.
func WithDefaultCapacity(n int) Option {
	return func(o *factoryOptions) {
		o.capacity = clampCapacity(n)
	}
}

// WithDefaultPriority sets the priority used for queues created with
// PriorityDefault.
func WithDefaultPriority(p Priority) Option {
	return func(o *factoryOptions) {
		o.priority = p
	}
}

// Factory opens files and creates queues.
type Factory struct {
	opts factoryOptions

	mu     sync.Mutex
	queues []*Queue
	closed bool
}

// NewFactory creates a storage factory.
func NewFactory(opts ...Option) *Factory {
	o := factoryOptions{capacity: MaxQueueCapacity, priority: PriorityNormal}
	for _, opt := range opts {
		opt(&o)
	}
	return &Factory{opts: o}
}

// FileInfo describes an open file.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// File is a file opened for transfers.
type File struct {
	path string
	f    *os.File

	mu     sync.Mutex
	closed bool
}

// OpenFile opens path for reading by transfer requests.
func (fa *Factory) OpenFile(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path supplied by the caller
	if err != nil {
		return nil, dstex.Wrap("Factory.OpenFile", dstex.KindIO, err)
	}
	return &File{path: path, f: f}, nil
}

// Path returns the path the file was opened with.
func (f *File) Path() string { return f.path }

// Info returns the file's current size and modification time.
func (f *File) Info() (FileInfo, error) {
	st, err := f.f.Stat()
	if err != nil {
		return FileInfo{}, dstex.Wrap("File.Info", dstex.KindIO, err)
	}
	return FileInfo{Path: f.path, Size: st.Size(), ModTime: st.ModTime()}, nil
}

// ReadAt reads from the underlying file.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return 0, dstex.ErrClosed
	}
	return f.f.ReadAt(p, off)
}

// Close closes the file. Requests already executed are unaffected.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return dstex.Wrap("File.Close", dstex.KindIO, dstex.ErrClosed)
	}
	f.closed = true
	return dstex.Wrap("File.Close", dstex.KindIO, f.f.Close())
}

// CreateQueue creates a queue and starts its worker.
func (fa *Factory) CreateQueue(desc QueueDesc) (*Queue, error) {
	const op = "Factory.CreateQueue"
	if desc.Capacity < 0 || desc.Capacity > MaxQueueCapacity {
		return nil, dstex.Errorf(op, dstex.KindValidation,
			"capacity %d outside [0, %d]", desc.Capacity, MaxQueueCapacity)
	}
	if desc.Capacity == 0 {
		desc.Capacity = fa.opts.capacity
	}
	if desc.Priority == PriorityDefault {
		desc.Priority = fa.opts.priority
	}

	fa.mu.Lock()
	defer fa.mu.Unlock()
	if fa.closed {
		return nil, dstex.Wrap(op, dstex.KindValidation, dstex.ErrClosed)
	}
	q := newQueue(desc)
	fa.queues = append(fa.queues, q)
	dstex.Logger().Debug("storage: queue created",
		"name", desc.Name, "capacity", desc.Capacity, "priority", desc.Priority)
	return q, nil
}

// Close closes every queue created by the factory.
func (fa *Factory) Close() error {
	fa.mu.Lock()
	queues := fa.queues
	fa.queues = nil
	fa.closed = true
	fa.mu.Unlock()

	var errs []error
	for _, q := range queues {
		if err := q.Close(); err != nil && !errors.Is(err, dstex.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("storage: factory close: %w", err)
	}
	return nil
}

func clampCapacity(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxQueueCapacity:
		return MaxQueueCapacity
	default:
		return n
	}
}
