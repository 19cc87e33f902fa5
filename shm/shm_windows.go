// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build windows

package shm

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

func createRaw(_ string, size int64) (uintptr, error) {
	//nolint:gosec // G115: size > 0 checked by Create
	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE,
		uint32(uint64(size)>>32), uint32(uint64(size)), nil)
	if err != nil {
		return 0, err
	}
	return uintptr(h), nil
}

func dupRaw(raw uintptr) (uintptr, error) {
	var out windows.Handle
	self := windows.CurrentProcess()
	if err := windows.DuplicateHandle(self, windows.Handle(raw), self, &out, 0, false, windows.DUPLICATE_SAME_ACCESS); err != nil {
		return 0, err
	}
	return uintptr(out), nil
}

func closeRaw(raw uintptr) error {
	return windows.CloseHandle(windows.Handle(raw))
}

func mapRaw(raw uintptr, size int64) ([]byte, uintptr, error) {
	addr, err := windows.MapViewOfFile(windows.Handle(raw), windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		return nil, 0, err
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
	return data, addr, nil
}

func unmapRaw(_ []byte, addr uintptr) error {
	return windows.UnmapViewOfFile(addr)
}
