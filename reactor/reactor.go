// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral interrupt line the kernel parks a waiting process on.

package reactor

import "errors"

// ErrClosed is returned by a Line after Close.
var ErrClosed = errors.New("reactor: line closed")

// Line is a level-latched interrupt line. Raise latches the line; Wait
// blocks until it is latched and clears it. A Raise that happens before
// Wait is never lost, and any number of Raise calls between two Waits
// collapse into one wakeup.
type Line interface {
	// Raise latches the line from any goroutine.
	Raise() error

	// Wait blocks until the line is latched, then clears it.
	Wait() error

	// Close releases the line and wakes a blocked Wait with ErrClosed.
	Close() error
}
