package syscalls

import (
	"errors"
	"testing"
	"time"

	"github.com/momentics/tockrt/abi"
	"github.com/momentics/tockrt/api"
	"github.com/momentics/tockrt/control"
	"github.com/momentics/tockrt/fake"
)

const buttonPin = 1

type echoDriver struct{ calls int }

func (d *echoDriver) Command(op, a1, a2 uintptr) api.ReturnCode {
	d.calls++
	return api.ReturnCode(op*100 + a1*10 + a2)
}

type process struct {
	k     *fake.Kernel
	alarm *fake.Alarm
	gpio  *fake.GPIO
	echo  *echoDriver
}

func boot(t *testing.T) *process {
	t.Helper()
	p := &process{
		alarm: fake.NewAlarm(1000, nil),
		gpio:  fake.NewGPIO(4, nil),
		echo:  &echoDriver{},
	}
	k, err := fake.NewKernel(
		fake.WithDriver(api.DriverAlarm, p.alarm),
		fake.WithDriver(api.DriverGPIO, p.gpio),
		fake.WithDriver(0x90, p.echo),
	)
	if err != nil {
		t.Fatal(err)
	}
	p.k = k
	Use(k)
	t.Cleanup(func() {
		Use(nil)
		k.Close()
	})
	return p
}

// expectBlocked fails the test if done is closed within d.
func expectBlocked(t *testing.T, done <-chan struct{}, d time.Duration) {
	t.Helper()
	select {
	case <-done:
		t.Fatal("yield returned without an upcall")
	case <-time.After(d):
	}
}

func expectDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("yield did not return")
	}
}

func TestCommandRegisterPlacement(t *testing.T) {
	p := boot(t)
	tuples := [][4]uintptr{
		{0x90, 0, 0, 0},
		{0x90, 1, 2, 3},
		{0x90, 9, 9, 9},
		{0x90, 4, 0, 7},
	}
	for _, tu := range tuples {
		p.k.ResetTrace()
		got := Command(tu[0], tu[1], tu[2], tu[3])
		want := tu[1]*100 + tu[2]*10 + tu[3]
		if got != want {
			t.Errorf("%v: result %d, want %d", tu, got, want)
		}
		tr := p.k.Trace()
		if len(tr) != 1 || tr[0].Trap != abi.TrapCommand {
			t.Fatalf("%v: trace %+v", tu, tr)
		}
		for i, r := range []abi.Reg{abi.R0, abi.R1, abi.R2, abi.R3} {
			if tr[0].Frame[r] != tu[i] {
				t.Errorf("%v: %s = %d at trap", tu, r, tr[0].Frame[r])
			}
		}
		regs := Registers()
		if regs[abi.R0] != want || regs[abi.R1] != fake.Scribble {
			t.Errorf("%v: r0=%d r1=%#x after trap", tu, regs[abi.R0], regs[abi.R1])
		}
	}
}

func TestCommandInvalidDriver(t *testing.T) {
	p := boot(t)
	before := p.k.Metrics().GetSnapshot()

	rc := Command(0xFFFF, 1, 2, 3)
	if api.Code(rc) != api.ENoDevice {
		t.Fatalf("result %s, want ENODEVICE", api.Code(rc))
	}
	if !errors.Is(api.Code(rc).Err(), api.ENoDevice.Err()) {
		t.Fatal("error mapping")
	}
	if p.echo.calls != 0 || p.k.Pending() != 0 {
		t.Fatal("invalid driver reached a driver")
	}
	for pin := 0; pin < 4; pin++ {
		if p.gpio.Level(pin) {
			t.Fatalf("pin %d changed", pin)
		}
	}
	after := p.k.Metrics().GetSnapshot()
	if after[control.MetricDelivered] != before[control.MetricDelivered] ||
		after[control.MetricCommand] != before[control.MetricCommand]+1 {
		t.Fatalf("metrics %v -> %v", before, after)
	}
}

func TestSubscribeRegisterPlacement(t *testing.T) {
	p := boot(t)
	var data int
	rc := Subscribe(api.DriverGPIO, 0, func(_, _, _ uintptr, _ *int) {}, &data)
	if api.Code(rc) != api.Success {
		t.Fatalf("subscribe %s", api.Code(rc))
	}
	tr := p.k.Trace()
	f := tr[len(tr)-1].Frame
	if tr[len(tr)-1].Trap != abi.TrapSubscribe || f[abi.R0] != api.DriverGPIO || f[abi.R1] != 0 ||
		f[abi.R2] != upcallEntry || f[abi.R3] == 0 {
		t.Fatalf("frame at trap %v", f)
	}
	entry, handle, ok := p.k.Subscribed(api.DriverGPIO, 0)
	if !ok || entry != upcallEntry || handle != f[abi.R3] {
		t.Fatalf("kernel holds %#x/%#x", entry, handle)
	}
}

func TestSubscribeFailureLeavesNoHandler(t *testing.T) {
	boot(t)
	rc := SubscribeFunc(0xFFFF, 0, func(_, _, _ uintptr) { t.Fatal("ran") })
	if api.Code(rc) != api.ENoDevice {
		t.Fatalf("subscribe %s", api.Code(rc))
	}
	rc = SubscribeFunc(api.DriverAlarm, 7, func(_, _, _ uintptr) { t.Fatal("ran") })
	if api.Code(rc) != api.ENoSupport {
		t.Fatalf("subscribe %s", api.Code(rc))
	}
	if len(upcalls.live) != 0 || len(upcalls.free) != len(upcalls.entries) {
		t.Fatalf("table leaked: live %d free %d entries %d",
			len(upcalls.live), len(upcalls.free), len(upcalls.entries))
	}
}

func TestSupersedeReplacesHandler(t *testing.T) {
	p := boot(t)
	type ctx struct{ name string }
	P, Q := &ctx{"P"}, &ctx{"Q"}
	var fired []string

	F := func(_, _, _ uintptr, d *ctx) { fired = append(fired, "F/"+d.name) }
	G := func(_, _, _ uintptr, d *ctx) { fired = append(fired, "G/"+d.name) }

	p.gpio.Command(fake.GPIOEnableInput, buttonPin, fake.PullNone)
	p.gpio.Command(fake.GPIOEnableInterrupt, buttonPin, fake.EitherEdge)

	Subscribe(api.DriverGPIO, 0, F, P)
	p.gpio.Drive(buttonPin, true) // queued for F, must never reach it
	_, oldHandle, _ := p.k.Subscribed(api.DriverGPIO, 0)

	Subscribe(api.DriverGPIO, 0, G, Q)
	p.gpio.Drive(buttonPin, false)
	Yield()

	// A kernel that still delivered the stale registration must not reach F.
	dispatch(0, 0, 0, oldHandle)

	if len(fired) != 1 || fired[0] != "G/Q" {
		t.Fatalf("fired %v", fired)
	}
}

func TestRetiredHandleNotReusedBySlot(t *testing.T) {
	boot(t)
	var n int
	SubscribeFunc(api.DriverGPIO, 0, func(_, _, _ uintptr) { n++ })
	old := upcalls.live[subKey{api.DriverGPIO, 0}]
	Unsubscribe(api.DriverGPIO, 0)
	SubscribeFunc(api.DriverAlarm, 0, func(_, _, _ uintptr) { n += 100 })
	cur := upcalls.live[subKey{api.DriverAlarm, 0}]

	oi, _ := splitHandle(old)
	ci, _ := splitHandle(cur)
	if oi != ci {
		t.Fatalf("slot not recycled: %d vs %d", oi, ci)
	}
	dispatch(0, 0, 0, old)
	if n != 0 {
		t.Fatal("retired handle dispatched to the new occupant")
	}
	dispatch(0, 0, 0, cur)
	if n != 100 {
		t.Fatalf("n = %d", n)
	}
}

func TestUnsubscribe(t *testing.T) {
	p := boot(t)
	SubscribeFunc(api.DriverGPIO, 0, func(_, _, _ uintptr) { t.Fatal("ran") })
	if rc := Unsubscribe(api.DriverGPIO, 0); api.Code(rc) != api.Success {
		t.Fatalf("unsubscribe %s", api.Code(rc))
	}
	if _, _, ok := p.k.Subscribed(api.DriverGPIO, 0); ok {
		t.Fatal("kernel still subscribed")
	}
	if p.k.Schedule(api.DriverGPIO, 0, 0, 0, 0) {
		t.Fatal("upcall accepted after unsubscribe")
	}
	tr := p.k.Trace()
	f := tr[len(tr)-1].Frame
	if f[abi.R2] != 0 || f[abi.R3] != 0 {
		t.Fatalf("null subscribe frame %v", f)
	}
}

func TestSubscribeNilCallbackUnsubscribes(t *testing.T) {
	p := boot(t)
	SubscribeFunc(api.DriverGPIO, 0, func(_, _, _ uintptr) {})
	Subscribe[int](api.DriverGPIO, 0, nil, nil)
	if _, _, ok := p.k.Subscribed(api.DriverGPIO, 0); ok {
		t.Fatal("nil callback left a subscription")
	}
}

func TestYieldDoesNotReturnWithoutUpcall(t *testing.T) {
	p := boot(t)
	ran := false
	SubscribeFunc(api.DriverGPIO, 0, func(_, _, _ uintptr) { ran = true })

	done := make(chan struct{})
	go func() {
		Yield()
		close(done)
	}()
	expectBlocked(t, done, 100*time.Millisecond)

	// An event nobody subscribed to does not wake the process either.
	p.k.Schedule(api.DriverAlarm, 0, 0, 0, 0)
	expectBlocked(t, done, 50*time.Millisecond)

	p.k.Schedule(api.DriverGPIO, 0, 0, 0, 0)
	expectDone(t, done)
	if !ran {
		t.Fatal("yield returned before the upcall ran")
	}
}

func TestYieldClobberSentinels(t *testing.T) {
	p := boot(t)
	SubscribeFunc(api.DriverGPIO, 0, func(_, _, _ uintptr) {
		// The upcall is ordinary code: it traps again and trashes r0-r3.
		Command(0x90, 1, 1, 1)
	})
	p.k.Schedule(api.DriverGPIO, 0, 11, 22, 33)

	regs := Registers()
	for r := abi.Reg(0); int(r) < abi.NumRegs; r++ {
		regs[r] = 0xa0a0_0000 + uintptr(r)
	}
	sentinel := *regs

	Yield()

	changed := sentinel.Diff(regs)
	if !abi.Yield.Invalidated().Contains(changed) {
		t.Fatalf("upcall changed %s, yield only declares %s", changed, abi.Yield.Invalidated())
	}
	for _, r := range abi.Yield.Preserved().Regs() {
		if regs[r] != sentinel[r] {
			t.Errorf("%s not preserved: %#x", r, regs[r])
		}
	}
	if !changed.Has(abi.LR) || !changed.Has(abi.R12) {
		t.Fatalf("upcall path left lr/r12 intact (%s); test did not exercise the hazard", changed)
	}
}

func TestPeriodicAlarmCounts(t *testing.T) {
	p := boot(t)
	type state struct {
		ticks  int
		others [4]int
	}
	st := &state{others: [4]int{1, 2, 3, 4}}

	rc := Subscribe(api.DriverAlarm, 0, func(now, exp, _ uintptr, s *state) {
		s.ticks++
		Command(api.DriverAlarm, fake.AlarmSetRelative, 5, 0)
	}, st)
	if api.Code(rc) != api.Success {
		t.Fatalf("subscribe %s", api.Code(rc))
	}
	Command(api.DriverAlarm, fake.AlarmSetRelative, 5, 0)

	done := make(chan struct{})
	go func() {
		Yield()
		Yield()
		Yield()
		close(done)
	}()
	expectDone(t, done)

	if st.ticks < 3 {
		t.Fatalf("ticks %d", st.ticks)
	}
	if st.others != [4]int{1, 2, 3, 4} {
		t.Fatalf("state corrupted: %v", st.others)
	}
	if got := p.k.Metrics().Get(control.MetricDelivered); got < 3 {
		t.Fatalf("delivered %d", got)
	}
	p.alarm.Close()
}

func TestYieldForButton(t *testing.T) {
	p := boot(t)
	p.gpio.Command(fake.GPIOEnableInput, buttonPin, fake.PullUp)
	p.gpio.Command(fake.GPIOEnableInterrupt, buttonPin, fake.FallingEdge)

	pressed := false
	SubscribeFunc(api.DriverGPIO, 0, func(pin, level, _ uintptr) {
		if pin == buttonPin && level == 0 {
			pressed = true
		}
	})

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.gpio.Drive(buttonPin, false)
	}()

	done := make(chan struct{})
	go func() {
		YieldFor(func() bool { return pressed })
		close(done)
	}()
	expectDone(t, done)
}

func TestYieldForSatisfiedDoesNotTrap(t *testing.T) {
	p := boot(t)
	YieldFor(func() bool { return true })
	if p.k.Metrics().Get(control.MetricYield) != 0 {
		t.Fatal("yield trapped although condition held")
	}
}

func TestHaltTerminates(t *testing.T) {
	p := boot(t)
	returned := make(chan bool, 1)
	go func() {
		defer func() { returned <- false }()
		Halt()
		returned <- true
	}()
	if <-returned {
		t.Fatal("Halt returned")
	}
	if !p.k.Halted() {
		t.Fatal("kernel not told about halt")
	}
}

func TestNoKernelPanics(t *testing.T) {
	Use(nil)
	defer func() {
		if r := recover(); r != api.ErrNoKernel {
			t.Fatalf("recovered %v", r)
		}
	}()
	Command(0, 0, 0, 0)
}
