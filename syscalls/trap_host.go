//go:build !(tinygo && arm)

// File: syscalls/trap_host.go
// Author: momentics <momentics@gmail.com>
//
// Host backend: traps go to an installed abi.Trapper through the register
// frame of the single simulated hardware thread.

package syscalls

import (
	"runtime"

	"github.com/momentics/tockrt/abi"
	"github.com/momentics/tockrt/api"
)

var host struct {
	tr    abi.Trapper
	frame abi.Frame
}

var upcallEntry = abi.Link(dispatch)

// Use installs tr as the kernel and starts a fresh process image: the
// register file is zeroed and every subscription is forgotten. It returns
// the previous kernel.
func Use(tr abi.Trapper) abi.Trapper {
	prev := host.tr
	host.tr = tr
	host.frame = abi.Frame{}
	upcalls.reset()
	return prev
}

// Registers exposes the register file the traps are issued from.
func Registers() *abi.Frame { return &host.frame }

func kernel() abi.Trapper {
	if host.tr == nil {
		panic(api.ErrNoKernel)
	}
	return host.tr
}

func command(driver, op, arg1, arg2 uintptr) uintptr {
	return abi.Invoke(kernel(), &host.frame, abi.Command, driver, op, arg1, arg2)
}

func subscribe(driver, slot, entry, data uintptr) uintptr {
	return abi.Invoke(kernel(), &host.frame, abi.Subscribe, driver, slot, entry, data)
}

func yield() {
	abi.Invoke(kernel(), &host.frame, abi.Yield, abi.YieldWait)
}

func halt() {
	if h, ok := host.tr.(api.Halter); ok {
		h.Halt()
	}
	runtime.Goexit()
}
