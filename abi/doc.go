// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package abi declares the register-level contract between a process and the
// kernel: trap numbers, which registers each trap reads and writes, and which
// it leaves clobbered. Backends derive their inline assembly or simulated
// register traffic from these declarations.
package abi
