//go:build tinygo && arm

// File: syscalls/upcall_tinygo_arm.go
// Author: momentics <momentics@gmail.com>

package syscalls

import "C"

// tockrt_upcall is the address handed to the kernel by every subscribe. It
// runs on the stack of the goroutine parked in yield.
//
//export tockrt_upcall
func tockrt_upcall(a1, a2, a3, data uintptr) {
	dispatch(a1, a2, a3, data)
}
