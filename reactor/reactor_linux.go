//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux eventfd(2)-backed interrupt line.

package reactor

import (
	"encoding/binary"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// eventfdLine latches through the eventfd counter; a read drains it.
type eventfdLine struct {
	fd     int
	closed atomic.Bool
}

// NewLine constructs a new platform-specific Line for Linux.
func NewLine() (Line, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &eventfdLine{fd: fd}, nil
}

// Raise adds one to the eventfd counter.
func (l *eventfdLine) Raise() error {
	if l.closed.Load() {
		return ErrClosed
	}
	return l.post()
}

func (l *eventfdLine) post() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(l.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

// Wait blocks in read(2) until the counter is non-zero and resets it.
func (l *eventfdLine) Wait() error {
	var buf [8]byte
	for {
		if l.closed.Load() {
			return ErrClosed
		}
		_, err := unix.Read(l.fd, buf[:])
		switch err {
		case nil:
			if l.closed.Load() {
				return ErrClosed
			}
			return nil
		case unix.EINTR:
			continue
		case unix.EBADF:
			return ErrClosed
		default:
			return err
		}
	}
}

// Close wakes any reader and closes the eventfd.
func (l *eventfdLine) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = l.post()
	return unix.Close(l.fd)
}
