// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/momentics/tockrt/api"
)

// Alarm driver operations.
const (
	AlarmExists      uintptr = 0
	AlarmFrequency   uintptr = 1
	AlarmNow         uintptr = 2
	AlarmStop        uintptr = 3
	AlarmSetRelative uintptr = 4
	AlarmSetAbsolute uintptr = 5
)

// Alarm is a single-channel 32-bit tick alarm backed by the host clock.
// Slot 0 upcalls carry (now, expiration, 0).
type Alarm struct {
	log   hclog.Logger
	freq  uint32
	start time.Time

	mu         sync.Mutex
	timer      *time.Timer
	armed      bool
	expiration uint32
	driver     uintptr
	notifier   api.Notifier
}

// NewAlarm returns an alarm ticking at freq Hz.
func NewAlarm(freq uint32, log hclog.Logger) *Alarm {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Alarm{log: log, freq: freq, start: time.Now()}
}

// Attach implements api.Attacher.
func (a *Alarm) Attach(driver uintptr, n api.Notifier) {
	a.mu.Lock()
	a.driver, a.notifier = driver, n
	a.mu.Unlock()
}

// ValidSlot implements api.SlotChecker.
func (a *Alarm) ValidSlot(slot uintptr) bool { return slot == 0 }

// Now is the wrapping tick counter.
func (a *Alarm) Now() uint32 {
	return uint32(uint64(time.Since(a.start)) * uint64(a.freq) / uint64(time.Second))
}

func (a *Alarm) ticksToDuration(ticks uint32) time.Duration {
	return time.Duration(uint64(ticks) * uint64(time.Second) / uint64(a.freq))
}

// Command implements api.Driver.
func (a *Alarm) Command(op, arg1, arg2 uintptr) api.ReturnCode {
	switch op {
	case AlarmExists:
		return api.Success
	case AlarmFrequency:
		return api.ReturnCode(a.freq)
	case AlarmNow:
		return api.ReturnCode(a.Now())
	case AlarmStop:
		return a.stop()
	case AlarmSetRelative:
		now := a.Now()
		return a.arm(now, now+uint32(arg1))
	case AlarmSetAbsolute:
		return a.arm(a.Now(), uint32(arg1))
	}
	return api.ENoSupport
}

func (a *Alarm) stop() api.ReturnCode {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.armed {
		return api.EAlready
	}
	a.timer.Stop()
	a.armed = false
	return api.Success
}

func (a *Alarm) arm(now, expiration uint32) api.ReturnCode {
	dt := expiration - now
	if dt > 1<<31 {
		// Already in the past: fire on the next tick.
		dt = 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.armed = true
	a.expiration = expiration
	a.timer = time.AfterFunc(a.ticksToDuration(dt), func() { a.fire(expiration) })
	a.log.Trace("armed", "now", now, "expiration", expiration)
	return api.ReturnCode(expiration)
}

func (a *Alarm) fire(expiration uint32) {
	a.mu.Lock()
	if !a.armed || a.expiration != expiration {
		a.mu.Unlock()
		return
	}
	a.armed = false
	n, driver := a.notifier, a.driver
	a.mu.Unlock()

	if n == nil {
		a.log.Debug("alarm fired with no kernel attached")
		return
	}
	n.Schedule(driver, 0, uintptr(a.Now()), uintptr(expiration), 0)
}

// Close stops a pending alarm.
func (a *Alarm) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.armed = false
	return nil
}
