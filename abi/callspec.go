// File: abi/callspec.go
// Author: momentics <momentics@gmail.com>
//
// Declared register contract of every supervisor call the process issues.
// Backends (cgo inline assembly on target, the register frame on host) are
// derived from these declarations and must not widen or narrow them.

package abi

import (
	"fmt"
)

// Trap is the immediate operand of the svc instruction.
type Trap uint8

const (
	TrapYield     Trap = 0
	TrapSubscribe Trap = 1
	TrapCommand   Trap = 2
)

func (t Trap) String() string {
	switch t {
	case TrapYield:
		return "yield"
	case TrapSubscribe:
		return "subscribe"
	case TrapCommand:
		return "command"
	}
	return fmt.Sprintf("svc %d", uint8(t))
}

// YieldWait is the r0 mode of a yield that blocks until an upcall runs.
const YieldWait uintptr = 1

// CallSpec declares which registers a trap reads, which it writes back as
// results and which hold garbage afterwards.
type CallSpec struct {
	Name     string
	Trap     Trap
	Inputs   []Reg
	Outputs  RegSet
	Clobbers RegSet
	// Suspends marks a trap during which the kernel may run an upcall on
	// the interrupted stack.
	Suspends bool
}

var (
	Command = CallSpec{
		Name:     "command",
		Trap:     TrapCommand,
		Inputs:   []Reg{R0, R1, R2, R3},
		Outputs:  Set(R0),
		Clobbers: Set(R1, R2, R3),
	}

	Subscribe = CallSpec{
		Name:     "subscribe",
		Trap:     TrapSubscribe,
		Inputs:   []Reg{R0, R1, R2, R3},
		Outputs:  Set(R0),
		Clobbers: Set(R1, R2, R3),
	}

	// Yield clobbers lr because the kernel redirects the exception return
	// through the upcall, and the rest of the caller-saved set because the
	// upcall is an ordinary function.
	Yield = CallSpec{
		Name:     "yield",
		Trap:     TrapYield,
		Inputs:   []Reg{R0},
		Clobbers: CallerSaved,
		Suspends: true,
	}
)

// Specs lists every trap the process issues.
func Specs() []CallSpec { return []CallSpec{Command, Subscribe, Yield} }

// Invalidated is every register the caller must treat as dead after the
// trap returns, outputs included.
func (s CallSpec) Invalidated() RegSet { return s.Outputs | s.Clobbers }

// Preserved is every register the caller may rely on across the trap.
func (s CallSpec) Preserved() RegSet { return AllRegs &^ s.Invalidated() }

// Validate checks the declaration against the AAPCS.
func (s CallSpec) Validate() error {
	var in RegSet
	for _, r := range s.Inputs {
		if in.Has(r) {
			return fmt.Errorf("abi: %s: input %s listed twice", s.Name, r)
		}
		in |= 1 << r
	}
	if !CallerSaved.Contains(in | s.Outputs | s.Clobbers) {
		return fmt.Errorf("abi: %s: touches callee-saved %s",
			s.Name, (in|s.Outputs|s.Clobbers)&^CallerSaved)
	}
	if s.Outputs&s.Clobbers != 0 {
		return fmt.Errorf("abi: %s: %s both output and clobbered", s.Name, s.Outputs&s.Clobbers)
	}
	if missing := in &^ s.Invalidated(); missing != 0 {
		return fmt.Errorf("abi: %s: inputs %s not declared clobbered", s.Name, missing)
	}
	if s.Suspends {
		if missing := CallerSaved &^ s.Invalidated(); missing != 0 {
			return fmt.Errorf("abi: %s: suspending trap leaves %s assumed live", s.Name, missing)
		}
	}
	return nil
}

// Trapper executes one trap instruction against the register file.
type Trapper interface {
	Trap(t Trap, f *Frame)
}

// Invoke loads args into the spec's input registers, traps, and returns r0
// when the spec declares it as output. Any register not declared preserved
// is never read back.
func Invoke(tr Trapper, f *Frame, s CallSpec, args ...uintptr) uintptr {
	if len(args) != len(s.Inputs) {
		panic(fmt.Sprintf("abi: %s takes %d arguments, got %d", s.Name, len(s.Inputs), len(args)))
	}
	for i, r := range s.Inputs {
		f[r] = args[i]
	}
	tr.Trap(s.Trap, f)
	if s.Outputs.Has(R0) {
		return f[R0]
	}
	return 0
}
