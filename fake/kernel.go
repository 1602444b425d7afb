// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"

	"github.com/eapache/queue"
	"github.com/hashicorp/go-hclog"

	"github.com/momentics/tockrt/abi"
	"github.com/momentics/tockrt/api"
	"github.com/momentics/tockrt/control"
	"github.com/momentics/tockrt/reactor"
)

// Scribble is what the kernel leaves in registers it does not preserve.
const Scribble uintptr = 0xdeadbeef

// TrapRecord is the register file as the kernel saw it on trap entry.
type TrapRecord struct {
	Trap  abi.Trap
	Frame abi.Frame
}

type subKey struct{ driver, slot uintptr }

type subscription struct {
	entry uintptr
	data  uintptr
}

type upcall struct {
	key        subKey
	entry      uintptr
	data       uintptr
	a1, a2, a3 uintptr
}

// Kernel simulates the privileged side of the trap interface for a single
// process. Interrupt sources may call Schedule from any goroutine; upcalls
// only run on the process goroutine while it is inside yield.
type Kernel struct {
	log     hclog.Logger
	cfg     *control.ConfigStore
	metrics *control.MetricsRegistry
	probes  *control.DebugProbes
	line    reactor.Line

	mu         sync.Mutex
	drivers    map[uintptr]api.Driver
	subs       map[subKey]subscription
	pending    *queue.Queue // of upcall
	trace      []TrapRecord
	queueDepth int
	traceDepth int
	halted     bool
}

// Option customizes kernel construction.
type Option func(*Kernel)

// WithLogger sets the kernel logger; drivers built by the caller should get
// a Named child of it.
func WithLogger(l hclog.Logger) Option {
	return func(k *Kernel) { k.log = l }
}

// WithConfig overrides DefaultKernelConfig.
func WithConfig(cfg control.KernelConfig) Option {
	return func(k *Kernel) { k.cfg = control.NewConfigStore(cfg) }
}

// WithDriver installs d at construction time.
func WithDriver(id uintptr, d api.Driver) Option {
	return func(k *Kernel) { k.drivers[id] = d }
}

// NewKernel builds a kernel with no process state.
func NewKernel(opts ...Option) (*Kernel, error) {
	k := &Kernel{
		log:     hclog.NewNullLogger(),
		cfg:     control.NewConfigStore(control.DefaultKernelConfig()),
		metrics: control.NewMetricsRegistry(),
		probes:  control.NewDebugProbes(),
		drivers: make(map[uintptr]api.Driver),
		subs:    make(map[subKey]subscription),
		pending: queue.New(),
	}
	for _, opt := range opts {
		opt(k)
	}
	cfg := k.cfg.Get()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	line, err := reactor.NewLine()
	if err != nil {
		return nil, fmt.Errorf("fake: interrupt line: %w", err)
	}
	k.line = line
	k.apply(cfg)
	k.cfg.OnReload(k.apply)

	for id, d := range k.drivers {
		k.attach(id, d)
	}
	k.probes.RegisterProbe("pending", func() any { return k.Pending() })
	k.probes.RegisterProbe("subscriptions", func() any {
		k.mu.Lock()
		defer k.mu.Unlock()
		return len(k.subs)
	})
	k.probes.RegisterProbe("drivers", func() any {
		k.mu.Lock()
		defer k.mu.Unlock()
		ids := make([]uintptr, 0, len(k.drivers))
		for id := range k.drivers {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return ids
	})
	return k, nil
}

func (k *Kernel) apply(cfg control.KernelConfig) {
	k.mu.Lock()
	k.queueDepth = cfg.QueueDepth
	k.traceDepth = cfg.TraceDepth
	if over := len(k.trace) - k.traceDepth; over > 0 {
		k.trace = append(k.trace[:0:0], k.trace[over:]...)
	}
	k.mu.Unlock()
	k.log.SetLevel(hclog.LevelFromString(cfg.LogLevel))
}

func (k *Kernel) attach(id uintptr, d api.Driver) {
	if a, ok := d.(api.Attacher); ok {
		a.Attach(id, k)
	}
}

// Install registers d as driver id, replacing any previous driver.
func (k *Kernel) Install(id uintptr, d api.Driver) {
	k.mu.Lock()
	k.drivers[id] = d
	k.mu.Unlock()
	k.attach(id, d)
	k.log.Debug("driver installed", "driver", id)
}

// Config exposes the live configuration store.
func (k *Kernel) Config() *control.ConfigStore { return k.cfg }

// Metrics exposes the trap and upcall counters.
func (k *Kernel) Metrics() *control.MetricsRegistry { return k.metrics }

// Probes exposes kernel state probes.
func (k *Kernel) Probes() *control.DebugProbes { return k.probes }

// Trap implements abi.Trapper.
func (k *Kernel) Trap(t abi.Trap, f *abi.Frame) {
	k.record(t, f)
	switch t {
	case abi.TrapCommand:
		k.metrics.Inc(control.MetricCommand)
		rc := k.command(f[abi.R0], f[abi.R1], f[abi.R2], f[abi.R3])
		k.complete(f, rc)
	case abi.TrapSubscribe:
		k.metrics.Inc(control.MetricSubscribe)
		rc := k.subscribe(f[abi.R0], f[abi.R1], f[abi.R2], f[abi.R3])
		k.complete(f, rc)
	case abi.TrapYield:
		k.metrics.Inc(control.MetricYield)
		k.yield(f)
	default:
		k.log.Error("unknown trap", "svc", uint8(t))
		k.complete(f, api.ENoSupport)
	}
}

func (k *Kernel) complete(f *abi.Frame, rc api.ReturnCode) {
	f[abi.R0] = rc.Word()
	f[abi.R1], f[abi.R2], f[abi.R3] = Scribble, Scribble, Scribble
}

func (k *Kernel) record(t abi.Trap, f *abi.Frame) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.traceDepth == 0 {
		return
	}
	if len(k.trace) == k.traceDepth {
		copy(k.trace, k.trace[1:])
		k.trace = k.trace[:len(k.trace)-1]
	}
	k.trace = append(k.trace, TrapRecord{Trap: t, Frame: *f})
}

// Trace returns the recorded trap entries, oldest first.
func (k *Kernel) Trace() []TrapRecord {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]TrapRecord(nil), k.trace...)
}

// ResetTrace drops recorded trap entries.
func (k *Kernel) ResetTrace() {
	k.mu.Lock()
	k.trace = k.trace[:0]
	k.mu.Unlock()
}

func (k *Kernel) command(driver, op, a1, a2 uintptr) api.ReturnCode {
	k.mu.Lock()
	d, ok := k.drivers[driver]
	k.mu.Unlock()
	if !ok {
		k.log.Debug("command to missing driver", "driver", driver, "op", op)
		return api.ENoDevice
	}
	rc := d.Command(op, a1, a2)
	k.log.Trace("command", "driver", driver, "op", op, "arg1", a1, "arg2", a2, "rc", rc)
	return rc
}

func (k *Kernel) subscribe(driver, slot, entry, data uintptr) api.ReturnCode {
	k.mu.Lock()
	defer k.mu.Unlock()
	d, ok := k.drivers[driver]
	if !ok {
		k.log.Debug("subscribe to missing driver", "driver", driver, "slot", slot)
		return api.ENoDevice
	}
	if sc, ok := d.(api.SlotChecker); ok && !sc.ValidSlot(slot) {
		return api.ENoSupport
	}
	key := subKey{driver, slot}
	if _, had := k.subs[key]; had {
		if n := k.purge(key); n > 0 {
			k.log.Debug("superseded upcalls discarded", "driver", driver, "slot", slot, "count", n)
		}
	}
	if entry == 0 {
		delete(k.subs, key)
		k.log.Trace("unsubscribe", "driver", driver, "slot", slot)
		return api.Success
	}
	k.subs[key] = subscription{entry: entry, data: data}
	k.log.Trace("subscribe", "driver", driver, "slot", slot, "entry", entry, "data", data)
	return api.Success
}

// purge drops queued upcalls for key. Caller holds k.mu.
func (k *Kernel) purge(key subKey) int {
	n := k.pending.Length()
	dropped := 0
	for i := 0; i < n; i++ {
		u := k.pending.Remove().(upcall)
		if u.key == key {
			dropped++
			continue
		}
		k.pending.Add(u)
	}
	return dropped
}

// Schedule implements api.Notifier.
func (k *Kernel) Schedule(driver, slot, a1, a2, a3 uintptr) bool {
	key := subKey{driver, slot}
	k.mu.Lock()
	s, ok := k.subs[key]
	if !ok {
		k.mu.Unlock()
		k.metrics.Inc(control.MetricDropped)
		k.log.Trace("upcall without subscriber", "driver", driver, "slot", slot)
		return false
	}
	if k.pending.Length() >= k.queueDepth {
		k.mu.Unlock()
		k.metrics.Inc(control.MetricDropped)
		k.log.Warn("upcall mailbox full", "driver", driver, "slot", slot, "depth", k.queueDepth)
		return false
	}
	k.pending.Add(upcall{key: key, entry: s.entry, data: s.data, a1: a1, a2: a2, a3: a3})
	k.mu.Unlock()

	if err := k.line.Raise(); err != nil {
		k.log.Debug("interrupt line", "error", err)
	}
	return true
}

// Pending reports the number of queued upcalls.
func (k *Kernel) Pending() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.pending.Length()
}

// Subscribed reports the registration at (driver, slot).
func (k *Kernel) Subscribed(driver, slot uintptr) (entry, data uintptr, ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s, ok := k.subs[subKey{driver, slot}]
	return s.entry, s.data, ok
}

func (k *Kernel) next() (upcall, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.pending.Length() == 0 {
		return upcall{}, false
	}
	return k.pending.Remove().(upcall), true
}

// yield parks the process until an upcall is queued, then runs exactly one.
func (k *Kernel) yield(f *abi.Frame) {
	for {
		if u, ok := k.next(); ok {
			k.deliver(f, u)
			return
		}
		if err := k.line.Wait(); err != nil {
			k.log.Debug("kernel stopped while process waits", "error", err)
			k.terminate()
		}
	}
}

// deliver performs the exception-return rewrite: the resume address moves
// to lr, pc points at the upcall, and the upcall returns through lr.
func (k *Kernel) deliver(f *abi.Frame, u upcall) {
	fn, ok := abi.Resolve(u.entry)
	if !ok {
		k.log.Error("upcall entry outside text", "entry", fmt.Sprintf("%#x", u.entry),
			"driver", u.key.driver, "slot", u.key.slot)
		k.terminate()
		return
	}
	f[abi.LR] = f[abi.PC]
	f[abi.PC] = u.entry
	f[abi.R0], f[abi.R1], f[abi.R2], f[abi.R3] = u.a1, u.a2, u.a3, u.data
	f[abi.R12] = Scribble
	k.metrics.Inc(control.MetricDelivered)
	k.log.Trace("upcall", "driver", u.key.driver, "slot", u.key.slot, "a1", u.a1, "a2", u.a2, "a3", u.a3)

	fn(u.a1, u.a2, u.a3, u.data)
	f[abi.PC] = f[abi.LR]
}

// Halt implements api.Halter.
func (k *Kernel) Halt() {
	k.mu.Lock()
	already := k.halted
	k.halted = true
	k.mu.Unlock()
	if !already {
		k.log.Info("process halted")
	}
}

// Halted reports whether the process has terminated.
func (k *Kernel) Halted() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.halted
}

// terminate ends the process goroutine; it never returns.
func (k *Kernel) terminate() {
	k.Halt()
	runtime.Goexit()
}

// Close stops drivers and releases a process parked in yield, which then
// terminates instead of returning.
func (k *Kernel) Close() error {
	k.mu.Lock()
	drivers := make([]api.Driver, 0, len(k.drivers))
	for _, d := range k.drivers {
		drivers = append(drivers, d)
	}
	k.mu.Unlock()
	for _, d := range drivers {
		if c, ok := d.(io.Closer); ok {
			c.Close()
		}
	}
	return k.line.Close()
}
