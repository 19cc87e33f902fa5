// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !linux && !windows

package shm

import (
	"errors"
	"sync"
)

// Platforms without a handle-based shared memory primitive get an
// in-process handle table. Handles are only meaningful inside this process.
var table = struct {
	sync.Mutex
	next uintptr
	objs map[uintptr][]byte
}{next: 1, objs: make(map[uintptr][]byte)}

var errBadHandle = errors.New("shm: bad handle")

func createRaw(_ string, size int64) (uintptr, error) {
	table.Lock()
	defer table.Unlock()
	id := table.next
	table.next++
	table.objs[id] = make([]byte, size)
	return id, nil
}

func dupRaw(raw uintptr) (uintptr, error) {
	table.Lock()
	defer table.Unlock()
	data, ok := table.objs[raw]
	if !ok {
		return 0, errBadHandle
	}
	id := table.next
	table.next++
	table.objs[id] = data
	return id, nil
}

func closeRaw(raw uintptr) error {
	table.Lock()
	defer table.Unlock()
	if _, ok := table.objs[raw]; !ok {
		return errBadHandle
	}
	delete(table.objs, raw)
	return nil
}

func mapRaw(raw uintptr, _ int64) ([]byte, uintptr, error) {
	table.Lock()
	defer table.Unlock()
	data, ok := table.objs[raw]
	if !ok {
		return nil, 0, errBadHandle
	}
	return data, 0, nil
}

func unmapRaw([]byte, uintptr) error { return nil }
