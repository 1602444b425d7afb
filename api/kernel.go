// File: api/kernel.go
// Author: momentics <momentics@gmail.com>
//
// Kernel-side contracts: capsule drivers and the upcall scheduling hook they
// are handed at install time.

package api

import "github.com/momentics/tockrt/abi"

// Trapper executes a trap against the process register file.
type Trapper = abi.Trapper

// Well-known driver numbers.
const (
	DriverAlarm   uintptr = 0x0
	DriverConsole uintptr = 0x1
	DriverLED     uintptr = 0x2
	DriverButton  uintptr = 0x3
	DriverGPIO    uintptr = 0x4
)

// Driver is a kernel capsule reachable through command.
type Driver interface {
	// Command performs operation op and returns the result word.
	Command(op, arg1, arg2 uintptr) ReturnCode
}

// Notifier queues an upcall for whatever handler is subscribed at
// (driver, slot). It reports false when nothing is subscribed or the
// mailbox is full.
type Notifier interface {
	Schedule(driver, slot, a1, a2, a3 uintptr) bool
}

// Attacher is implemented by drivers that raise upcalls.
type Attacher interface {
	Attach(driver uintptr, n Notifier)
}

// SlotChecker is implemented by drivers that restrict subscribe slots.
type SlotChecker interface {
	ValidSlot(slot uintptr) bool
}

// Halter is implemented by kernels that accept a termination request.
type Halter interface {
	Halt()
}
