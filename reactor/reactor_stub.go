//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Channel-backed interrupt line for platforms without eventfd.

package reactor

import "sync"

type chanLine struct {
	latch     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewLine returns a portable Line.
func NewLine() (Line, error) {
	return &chanLine{
		latch: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}, nil
}

func (l *chanLine) Raise() error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case l.latch <- struct{}{}:
	default:
	}
	return nil
}

func (l *chanLine) Wait() error {
	select {
	case <-l.latch:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

func (l *chanLine) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}
