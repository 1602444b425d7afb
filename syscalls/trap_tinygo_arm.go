//go:build tinygo && arm

// File: syscalls/trap_tinygo_arm.go
// Author: momentics <momentics@gmail.com>
//
// Cortex-M backend. Each wrapper declares exactly the register contract of
// the matching abi.CallSpec: inputs pinned to r0-r3, r0 read back, every
// other input register marked clobbered. yield clobbers the whole AAPCS
// caller-saved set because the kernel resumes the process in the upcall with
// lr pointing back at the instruction after svc.

package syscalls

/*
#include <stdint.h>

void tockrt_upcall(uintptr_t a1, uintptr_t a2, uintptr_t a3, uintptr_t data);

static inline uintptr_t tockrt_command(uintptr_t driver, uintptr_t op, uintptr_t arg1, uintptr_t arg2) {
	register uintptr_t r0 __asm__("r0") = driver;
	register uintptr_t r1 __asm__("r1") = op;
	register uintptr_t r2 __asm__("r2") = arg1;
	register uintptr_t r3 __asm__("r3") = arg2;
	__asm__ volatile("svc 2" : "+r"(r0), "+r"(r1), "+r"(r2), "+r"(r3) : : "memory");
	return r0;
}

static inline uintptr_t tockrt_subscribe(uintptr_t driver, uintptr_t slot, uintptr_t entry, uintptr_t data) {
	register uintptr_t r0 __asm__("r0") = driver;
	register uintptr_t r1 __asm__("r1") = slot;
	register uintptr_t r2 __asm__("r2") = entry;
	register uintptr_t r3 __asm__("r3") = data;
	__asm__ volatile("svc 1" : "+r"(r0), "+r"(r1), "+r"(r2), "+r"(r3) : : "memory");
	return r0;
}

static inline void tockrt_yield(void) {
	register uintptr_t r0 __asm__("r0") = 1;
	__asm__ volatile("svc 0" : "+r"(r0) : : "memory", "r1", "r2", "r3", "r12", "lr");
}

static inline void tockrt_halt(void) {
	__asm__ volatile("udf #0");
	__builtin_unreachable();
}

static inline uintptr_t tockrt_upcall_entry(void) {
	return (uintptr_t)&tockrt_upcall;
}
*/
import "C"

var upcallEntry = uintptr(C.tockrt_upcall_entry())

func command(driver, op, arg1, arg2 uintptr) uintptr {
	return uintptr(C.tockrt_command(C.uintptr_t(driver), C.uintptr_t(op), C.uintptr_t(arg1), C.uintptr_t(arg2)))
}

func subscribe(driver, slot, entry, data uintptr) uintptr {
	return uintptr(C.tockrt_subscribe(C.uintptr_t(driver), C.uintptr_t(slot), C.uintptr_t(entry), C.uintptr_t(data)))
}

func yield() {
	C.tockrt_yield()
}

func halt() {
	C.tockrt_halt()
	for {
	}
}
