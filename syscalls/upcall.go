// File: syscalls/upcall.go
// Author: momentics <momentics@gmail.com>
//
// Process-side upcall table. The kernel holds only a handle into it: the low
// 16 bits are a slot index plus one, the high bits a generation, so a handle
// retired by resubscribe or unsubscribe never dispatches again even if the
// kernel still delivers an upcall queued for it.

package syscalls

type handler func(a1, a2, a3 uintptr)

type slotEntry struct {
	gen uint16
	fn  handler
}

type subKey struct{ driver, slot uintptr }

type upcallTable struct {
	entries []slotEntry
	free    []int
	live    map[subKey]uintptr
}

var upcalls = upcallTable{live: make(map[subKey]uintptr)}

const maxUpcalls = 1<<16 - 1

func splitHandle(h uintptr) (int, uint16) {
	return int(h&0xffff) - 1, uint16(h >> 16)
}

func (t *upcallTable) allocate(fn handler) uintptr {
	var i int
	if n := len(t.free); n > 0 {
		i = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		if len(t.entries) == maxUpcalls {
			panic("syscalls: upcall table full")
		}
		t.entries = append(t.entries, slotEntry{})
		i = len(t.entries) - 1
	}
	e := &t.entries[i]
	e.gen++
	e.fn = fn
	return uintptr(e.gen)<<16 | uintptr(i+1)
}

func (t *upcallTable) release(h uintptr) {
	i, gen := splitHandle(h)
	if i < 0 || i >= len(t.entries) || t.entries[i].gen != gen || t.entries[i].fn == nil {
		return
	}
	t.entries[i].fn = nil
	t.free = append(t.free, i)
}

func (t *upcallTable) bind(driver, slot, h uintptr) {
	key := subKey{driver, slot}
	if old, ok := t.live[key]; ok {
		t.release(old)
	}
	t.live[key] = h
}

func (t *upcallTable) unbind(driver, slot uintptr) {
	key := subKey{driver, slot}
	if old, ok := t.live[key]; ok {
		t.release(old)
		delete(t.live, key)
	}
}

func (t *upcallTable) reset() {
	t.entries = nil
	t.free = nil
	t.live = make(map[subKey]uintptr)
}

func (t *upcallTable) lookup(h uintptr) handler {
	i, gen := splitHandle(h)
	if i < 0 || i >= len(t.entries) || t.entries[i].gen != gen {
		return nil
	}
	return t.entries[i].fn
}

// dispatch is the single upcall entry point the kernel jumps to.
func dispatch(a1, a2, a3, data uintptr) {
	if fn := upcalls.lookup(data); fn != nil {
		fn(a1, a2, a3)
	}
}
