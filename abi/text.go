// File: abi/text.go
// Author: momentics <momentics@gmail.com>
//
// Host stand-in for the text segment: upcall entry points get stable code
// addresses that travel through registers like real function pointers.

package abi

import "sync"

// Upcall is the fixed four-word upcall signature: three event words and the
// opaque data word handed to subscribe.
type Upcall func(a1, a2, a3, data uintptr)

// TextBase is the address of the first linked entry point. Addresses are
// 4-byte aligned with the Thumb bit set, so 0 is never a valid entry.
const TextBase uintptr = 0x0004_0001

var text struct {
	mu  sync.RWMutex
	fns []Upcall
}

// Link places fn in the text segment and returns its address. Linked code
// lives for the rest of the process.
func Link(fn Upcall) uintptr {
	text.mu.Lock()
	defer text.mu.Unlock()
	text.fns = append(text.fns, fn)
	return TextBase + uintptr(len(text.fns)-1)*4
}

// Resolve maps a code address back to the linked entry point.
func Resolve(addr uintptr) (Upcall, bool) {
	if addr < TextBase || (addr-TextBase)%4 != 0 {
		return nil, false
	}
	i := int((addr - TextBase) / 4)
	text.mu.RLock()
	defer text.mu.RUnlock()
	if i >= len(text.fns) {
		return nil, false
	}
	return text.fns[i], true
}
