// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package syscalls is the process side of the kernel trap interface:
// command, subscribe and yield.
//
// The process has exactly one thread of control. Upcalls registered with
// Subscribe only ever run inside Yield, so state shared between an upcall
// and the main flow needs no locking: accesses strictly alternate.
//
// On TinyGo/ARM the traps are real svc instructions. Everywhere else the
// package drives an abi.Trapper, normally a fake.Kernel, through an explicit
// register frame; install one with Use before issuing traps.
package syscalls
