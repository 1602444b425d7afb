// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/momentics/tockrt/api"
)

// GPIO driver operations.
const (
	GPIOCount            uintptr = 0
	GPIOEnableOutput     uintptr = 1
	GPIOSet              uintptr = 2
	GPIOClear            uintptr = 3
	GPIOToggle           uintptr = 4
	GPIOEnableInput      uintptr = 5
	GPIORead             uintptr = 6
	GPIOEnableInterrupt  uintptr = 7
	GPIODisableInterrupt uintptr = 8
	GPIODisable          uintptr = 9
)

// Input pull configuration, the arg2 of GPIOEnableInput.
const (
	PullNone uintptr = 0
	PullUp   uintptr = 1
	PullDown uintptr = 2
)

// Interrupt edge selection, the arg2 of GPIOEnableInterrupt.
const (
	EitherEdge  uintptr = 0
	RisingEdge  uintptr = 1
	FallingEdge uintptr = 2
)

type pinDir uint8

const (
	pinOff pinDir = iota
	pinIn
	pinOut
)

type pin struct {
	dir   pinDir
	level bool
	irq   bool
	edge  uintptr
}

// GPIO is a bank of simulated pins. Slot 0 upcalls carry (pin, level, 0).
type GPIO struct {
	log hclog.Logger

	mu       sync.Mutex
	pins     []pin
	watchers []func(pin int, level bool)
	driver   uintptr
	notifier api.Notifier
}

// NewGPIO returns a bank of n disabled pins.
func NewGPIO(n int, log hclog.Logger) *GPIO {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &GPIO{log: log, pins: make([]pin, n)}
}

// Attach implements api.Attacher.
func (g *GPIO) Attach(driver uintptr, n api.Notifier) {
	g.mu.Lock()
	g.driver, g.notifier = driver, n
	g.mu.Unlock()
}

// ValidSlot implements api.SlotChecker.
func (g *GPIO) ValidSlot(slot uintptr) bool { return slot == 0 }

// Watch registers fn to observe every output level change.
func (g *GPIO) Watch(fn func(pin int, level bool)) {
	g.mu.Lock()
	g.watchers = append(g.watchers, fn)
	g.mu.Unlock()
}

// Command implements api.Driver.
func (g *GPIO) Command(op, arg1, arg2 uintptr) api.ReturnCode {
	if op == GPIOCount {
		g.mu.Lock()
		defer g.mu.Unlock()
		return api.ReturnCode(len(g.pins))
	}
	if op > GPIODisable {
		return api.ENoSupport
	}

	g.mu.Lock()
	if arg1 >= uintptr(len(g.pins)) {
		g.mu.Unlock()
		return api.EInval
	}
	p := &g.pins[arg1]
	before := p.level
	rc := api.Success
	switch op {
	case GPIOEnableOutput:
		p.dir, p.irq = pinOut, false
	case GPIOSet:
		p.level = true
	case GPIOClear:
		p.level = false
	case GPIOToggle:
		p.level = !p.level
	case GPIOEnableInput:
		if arg2 > PullDown {
			rc = api.EInval
			break
		}
		p.dir = pinIn
		p.level = arg2 == PullUp
	case GPIORead:
		if p.level {
			rc = 1
		}
	case GPIOEnableInterrupt:
		if arg2 > FallingEdge {
			rc = api.EInval
			break
		}
		if p.dir != pinIn {
			p.dir = pinIn
		}
		p.irq, p.edge = true, arg2
	case GPIODisableInterrupt:
		p.irq = false
	case GPIODisable:
		*p = pin{}
	}
	changed := p.dir == pinOut && p.level != before
	level := p.level
	watchers := g.watchers
	g.mu.Unlock()

	if changed {
		for _, fn := range watchers {
			fn(int(arg1), level)
		}
	}
	return rc
}

// Level reports the current level of pin n.
func (g *GPIO) Level(n int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pins[n].level
}

// Drive applies an external signal to input pin n and raises an upcall if
// the pin's interrupt edge matches.
func (g *GPIO) Drive(n int, level bool) error {
	g.mu.Lock()
	if n < 0 || n >= len(g.pins) {
		g.mu.Unlock()
		return fmt.Errorf("fake: gpio pin %d out of range", n)
	}
	p := &g.pins[n]
	if p.dir != pinIn {
		g.mu.Unlock()
		return fmt.Errorf("fake: gpio pin %d is not an input", n)
	}
	before := p.level
	p.level = level
	fire := p.irq && before != level &&
		(p.edge == EitherEdge || (p.edge == RisingEdge) == level)
	driver, notifier := g.driver, g.notifier
	g.mu.Unlock()

	if !fire {
		return nil
	}
	if notifier == nil {
		g.log.Debug("gpio edge with no kernel attached", "pin", n)
		return nil
	}
	var v uintptr
	if level {
		v = 1
	}
	notifier.Schedule(driver, 0, uintptr(n), v, 0)
	return nil
}
