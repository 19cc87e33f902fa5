// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package storage

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gogpu/dstex"
	"github.com/gogpu/dstex/fence"
)

// ErrQueueFull is returned when an enqueue would exceed the queue capacity.
var ErrQueueFull = errors.New("storage: queue full")

// Priority is a queue scheduling hint.
type Priority int8

// Queue priorities.
const (
	PriorityDefault Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityRealtime
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityRealtime:
		return "realtime"
	default:
		return "default"
	}
}

// QueueDesc configures a queue.
type QueueDesc struct {
	Name     string
	Capacity int
	Priority Priority
}

// Stats are cumulative queue counters.
type Stats struct {
	Submits   uint64
	Requests  uint64
	Bytes     uint64
	Signals   uint64
	Failures  uint64
	Cancelled uint64
}

// Failure describes a failed entry.
type Failure struct {
	Request string
	Err     error
}

// ErrorRecord summarizes the failures observed by a queue.
type ErrorRecord struct {
	FailureCount uint32
	FirstFailure *Failure
}

type entry struct {
	req   *Request
	fence *fence.Fence
	value uint64
}

// Queue executes transfer requests and fence signals in enqueue order.
type Queue struct {
	desc QueueDesc

	mu       sync.Mutex
	pending  []entry
	batches  [][]entry
	inflight int
	closed   bool
	stats    Stats
	record   ErrorRecord

	wake chan struct{}
	done chan struct{}
}

func newQueue(desc QueueDesc) *Queue {
	q := &Queue{
		desc: desc,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

// Desc returns the queue configuration.
func (q *Queue) Desc() QueueDesc { return q.desc }

// EnqueueRequest validates req and appends it to the pending batch.
func (q *Queue) EnqueueRequest(req Request) error {
	const op = "Queue.EnqueueRequest"
	if err := req.Validate(); err != nil {
		return dstex.Wrap(op, dstex.KindValidation, err)
	}
	return dstex.Wrap(op, dstex.KindValidation, q.enqueue(entry{req: &req}))
}

// EnqueueSignal appends a signal of f to value. It fires after every
// entry enqueued before it has executed.
func (q *Queue) EnqueueSignal(f *fence.Fence, value uint64) error {
	if f == nil {
		return dstex.Errorf("Queue.EnqueueSignal", dstex.KindValidation, "nil fence")
	}
	return dstex.Wrap("Queue.EnqueueSignal", dstex.KindValidation, q.enqueue(entry{fence: f, value: value}))
}

func (q *Queue) enqueue(e entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return dstex.ErrClosed
	}
	if q.inflight+len(q.pending) >= q.desc.Capacity {
		return fmt.Errorf("%w: %d entries", ErrQueueFull, q.desc.Capacity)
	}
	q.pending = append(q.pending, e)
	return nil
}

// Submit hands the pending entries to the worker as one batch and returns
// without waiting. Submitting an empty batch is a no-op.
func (q *Queue) Submit() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return dstex.Wrap("Queue.Submit", dstex.KindValidation, dstex.ErrClosed)
	}
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return nil
	}
	batch := q.pending
	q.pending = nil
	q.batches = append(q.batches, batch)
	q.inflight += len(batch)
	q.stats.Submits++
	q.mu.Unlock()

	dstex.Logger().Debug("storage: batch submitted", "queue", q.desc.Name, "entries", len(batch))
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// RetrieveErrorRecord returns the failure count and the first failure.
func (q *Queue) RetrieveErrorRecord() ErrorRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec := q.record
	if rec.FirstFailure != nil {
		f := *rec.FirstFailure
		rec.FirstFailure = &f
	}
	return rec
}

// Close runs every submitted batch to completion and stops the worker.
// Fences waiting on entries that were enqueued but never submitted fail
// with dstex.ErrClosed.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return dstex.Wrap("Queue.Close", dstex.KindValidation, dstex.ErrClosed)
	}
	q.closed = true
	dropped := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, e := range dropped {
		if e.fence != nil {
			e.fence.Fail(fmt.Errorf("storage: queue %q closed before submit: %w", q.desc.Name, dstex.ErrClosed))
		}
	}
	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.done
	dstex.Logger().Debug("storage: queue closed", "queue", q.desc.Name)
	return nil
}

func (q *Queue) run() {
	defer close(q.done)
	for range q.wake {
		for {
			q.mu.Lock()
			if len(q.batches) == 0 {
				closed := q.closed
				q.mu.Unlock()
				if closed {
					return
				}
				break
			}
			batch := q.batches[0]
			q.batches = q.batches[1:]
			q.mu.Unlock()

			q.execute(batch)
		}
	}
}

func (q *Queue) execute(batch []entry) {
	var failed error
	for _, e := range batch {
		switch {
		case e.req != nil && failed != nil:
			q.finish(func(s *Stats) { s.Cancelled++ })
		case e.req != nil:
			n, err := transfer(e.req)
			if err != nil {
				failed = dstex.Wrap("Queue.transfer", dstex.KindIO, err)
				q.fail(e.req.Name, failed)
				continue
			}
			q.finish(func(s *Stats) {
				s.Requests++
				s.Bytes += n
			})
			dstex.Logger().Debug("storage: request complete", "queue", q.desc.Name, "request", e.req.Name, "bytes", n)
		case failed != nil:
			e.fence.Fail(failed)
			q.finish(func(s *Stats) { s.Cancelled++ })
		default:
			if err := e.fence.Signal(e.value); err != nil {
				q.fail(e.fence.Label(), err)
				continue
			}
			q.finish(func(s *Stats) { s.Signals++ })
		}
	}
}

func (q *Queue) finish(update func(*Stats)) {
	q.mu.Lock()
	q.inflight--
	update(&q.stats)
	q.mu.Unlock()
}

func (q *Queue) fail(name string, err error) {
	q.mu.Lock()
	q.inflight--
	q.stats.Failures++
	q.record.FailureCount++
	if q.record.FirstFailure == nil {
		q.record.FirstFailure = &Failure{Request: name, Err: err}
	}
	q.mu.Unlock()
	dstex.Logger().Warn("storage: entry failed", "queue", q.desc.Name, "entry", name, "err", err)
}

// transfer reads the request's source into its destination region. Rows
// are read directly into destination memory.
func transfer(req *Request) (uint64, error) {
	tex := req.Destination.Texture
	desc := tex.Desc()
	dst := tex.Bytes()
	if dst == nil {
		return 0, fmt.Errorf("%s: destination: %w", req.Name, dstex.ErrClosed)
	}
	r := req.Destination.Region
	bpp := uint64(desc.Format.BytesPerPixel()) //nolint:gosec // G115: BytesPerPixel <= 4
	pitch := uint64(tex.RowPitch())
	row := uint64(r.Width()) * bpp

	src := req.Source.Offset
	var total uint64
	readRows := func(dstOff, n uint64) error {
		if dstOff+n > uint64(len(dst)) {
			return fmt.Errorf("%w: %s: bytes [%d, %d) of a %d-byte destination",
				dstex.ErrRegionOutOfBounds, req.Name, dstOff, dstOff+n, len(dst))
		}
		got, err := req.Source.File.ReadAt(dst[dstOff:dstOff+n], src)
		total += uint64(got) //nolint:gosec // G115: got >= 0
		src += int64(got)
		if uint64(got) < n { //nolint:gosec // G115: got >= 0
			if err == nil || errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: %s: read %d of %d bytes", dstex.ErrShortRead, req.Name, total, req.Source.Size)
			}
			return fmt.Errorf("%s: %w", req.Name, err)
		}
		return nil
	}

	start := uint64(r.Top)*pitch + uint64(r.Left)*bpp
	if row == pitch {
		err := readRows(start, row*uint64(r.Height()))
		return total, err
	}
	for y := uint64(0); y < uint64(r.Height()); y++ {
		if err := readRows(start+y*pitch, row); err != nil {
			return total, err
		}
	}
	return total, nil
}
