// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build linux

package shm

import (
	"golang.org/x/sys/unix"
)

func createRaw(name string, size int64) (uintptr, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return 0, err
	}
	if err := unix.Ftruncate(fd, size); err != nil {
		_ = unix.Close(fd)
		return 0, err
	}
	return uintptr(fd), nil
}

func dupRaw(raw uintptr) (uintptr, error) {
	fd, err := unix.FcntlInt(raw, unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}
	return uintptr(fd), nil
}

func closeRaw(raw uintptr) error {
	return unix.Close(int(raw))
}

func mapRaw(raw uintptr, size int64) ([]byte, uintptr, error) {
	data, err := unix.Mmap(int(raw), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, 0, err
	}
	return data, 0, nil
}

func unmapRaw(data []byte, _ uintptr) error {
	return unix.Munmap(data)
}
