// File: syscalls/syscalls.go
// Author: momentics <momentics@gmail.com>
//
// Trap encoder, callback registrar and suspension primitive.

package syscalls

import "github.com/momentics/tockrt/api"

// Command asks driver to perform operation op. The result word is returned
// exactly as the kernel left it in r0; use api.Code to interpret it.
func Command(driver, op, arg1, arg2 uintptr) uintptr {
	return command(driver, op, arg1, arg2)
}

// Subscribe makes cb the handler for upcalls at (driver, slot), replacing
// any earlier handler once the kernel accepts it. data is handed back to cb
// unchanged on every upcall and is kept reachable by the process until the
// subscription is superseded or removed. A nil cb unsubscribes.
func Subscribe[T any](driver, slot uintptr, cb func(a1, a2, a3 uintptr, data *T), data *T) uintptr {
	if cb == nil {
		return Unsubscribe(driver, slot)
	}
	return register(driver, slot, func(a1, a2, a3 uintptr) { cb(a1, a2, a3, data) })
}

// SubscribeFunc is Subscribe for handlers that carry no data.
func SubscribeFunc(driver, slot uintptr, cb func(a1, a2, a3 uintptr)) uintptr {
	if cb == nil {
		return Unsubscribe(driver, slot)
	}
	return register(driver, slot, cb)
}

func register(driver, slot uintptr, fn handler) uintptr {
	h := upcalls.allocate(fn)
	rc := subscribe(driver, slot, upcallEntry, h)
	if !api.Code(rc).IsSuccess() {
		upcalls.release(h)
		return rc
	}
	upcalls.bind(driver, slot, h)
	return rc
}

// Unsubscribe passes a null callback for (driver, slot).
func Unsubscribe(driver, slot uintptr) uintptr {
	rc := subscribe(driver, slot, 0, 0)
	if api.Code(rc).IsSuccess() {
		upcalls.unbind(driver, slot)
	}
	return rc
}

// Yield blocks until the kernel has run at least one upcall, then returns.
// There is no timeout; arm an alarm to bound the wait.
func Yield() {
	yield()
}

// YieldFor yields until cond reports true. cond is checked before the
// first yield.
func YieldFor(cond func() bool) {
	for !cond() {
		yield()
	}
}

// Halt terminates the process. It does not return.
func Halt() {
	halt()
}
