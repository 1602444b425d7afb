// File: abi/regs.go
// Author: momentics <momentics@gmail.com>
//
// ARMv7-M core registers as seen at a supervisor-call boundary.

package abi

import (
	"fmt"
	"math/bits"
	"strings"
)

// Reg names one core register.
type Reg uint8

const (
	R0 Reg = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	SP
	LR
	PC

	NumRegs = int(PC) + 1
)

var regNames = [NumRegs]string{
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
	"r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc",
}

func (r Reg) String() string {
	if int(r) < NumRegs {
		return regNames[r]
	}
	return fmt.Sprintf("reg(%d)", uint8(r))
}

// RegSet is a bitset of registers.
type RegSet uint16

// Set builds a RegSet from individual registers.
func Set(regs ...Reg) RegSet {
	var s RegSet
	for _, r := range regs {
		s |= 1 << r
	}
	return s
}

// AAPCS register classes. r9 is treated as callee-saved, the runtime never
// designates it as a platform register.
var (
	CallerSaved = Set(R0, R1, R2, R3, R12, LR)
	CalleeSaved = Set(R4, R5, R6, R7, R8, R9, R10, R11, SP)
	AllRegs     = RegSet(1<<NumRegs - 1)
)

func (s RegSet) Has(r Reg) bool        { return s&(1<<r) != 0 }
func (s RegSet) Union(o RegSet) RegSet { return s | o }
func (s RegSet) Minus(o RegSet) RegSet { return s &^ o }
func (s RegSet) Len() int              { return bits.OnesCount16(uint16(s)) }

// Contains reports whether every register of o is also in s.
func (s RegSet) Contains(o RegSet) bool { return o&^s == 0 }

// Regs lists the members in register order.
func (s RegSet) Regs() []Reg {
	out := make([]Reg, 0, s.Len())
	for r := Reg(0); int(r) < NumRegs; r++ {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RegSet) String() string {
	names := make([]string, 0, s.Len())
	for _, r := range s.Regs() {
		names = append(names, r.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Frame is the register file of the single hardware thread.
type Frame [NumRegs]uintptr

// Fill writes v into every register of s.
func (f *Frame) Fill(s RegSet, v uintptr) {
	for _, r := range s.Regs() {
		f[r] = v
	}
}

// Diff returns the registers whose values differ between f and o.
func (f *Frame) Diff(o *Frame) RegSet {
	var s RegSet
	for r := Reg(0); int(r) < NumRegs; r++ {
		if f[r] != o[r] {
			s |= 1 << r
		}
	}
	return s
}
