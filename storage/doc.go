// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package storage implements an asynchronous file-to-texture transfer queue.
//
// Requests read a byte range of a file straight into texture memory with
// no intermediate staging copy. Requests and fence signals are enqueued
// in order and handed to a worker goroutine as one batch by Submit; within
// a queue entries execute strictly in enqueue order, so a signal never
// fires before the transfers enqueued ahead of it complete.
//
// When a transfer fails, the queue records the failure (see
// Queue.RetrieveErrorRecord) and fails every later fence signal of the
// batch instead of signaling it, so waiters wake with the transfer error
// and never observe partial data as complete.
package storage
