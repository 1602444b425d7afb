package fake

import (
	"sync"
	"testing"
	"time"

	"github.com/momentics/tockrt/api"
)

type upcallRecord struct{ driver, slot, a1, a2, a3 uintptr }

type recordingNotifier struct {
	mu  sync.Mutex
	got []upcallRecord
	ch  chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ch: make(chan struct{}, 16)}
}

func (n *recordingNotifier) Schedule(driver, slot, a1, a2, a3 uintptr) bool {
	n.mu.Lock()
	n.got = append(n.got, upcallRecord{driver, slot, a1, a2, a3})
	n.mu.Unlock()
	n.ch <- struct{}{}
	return true
}

func (n *recordingNotifier) records() []upcallRecord {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]upcallRecord(nil), n.got...)
}

func TestAlarmCommands(t *testing.T) {
	a := NewAlarm(1000, nil)
	defer a.Close()
	if rc := a.Command(AlarmExists, 0, 0); rc != api.Success {
		t.Fatalf("exists %s", rc)
	}
	if rc := a.Command(AlarmFrequency, 0, 0); rc != 1000 {
		t.Fatalf("frequency %s", rc)
	}
	if rc := a.Command(AlarmStop, 0, 0); rc != api.EAlready {
		t.Fatalf("stop idle %s", rc)
	}
	if rc := a.Command(42, 0, 0); rc != api.ENoSupport {
		t.Fatalf("unknown op %s", rc)
	}
	t1 := a.Command(AlarmNow, 0, 0)
	time.Sleep(5 * time.Millisecond)
	if t2 := a.Command(AlarmNow, 0, 0); t2 <= t1 {
		t.Fatalf("clock did not advance: %d then %d", t1, t2)
	}
}

func TestAlarmFiresOnce(t *testing.T) {
	a := NewAlarm(1000, nil)
	defer a.Close()
	n := newRecordingNotifier()
	a.Attach(api.DriverAlarm, n)

	exp := a.Command(AlarmSetRelative, 10, 0)
	select {
	case <-n.ch:
	case <-time.After(time.Second):
		t.Fatal("alarm did not fire")
	}
	rec := n.records()
	if len(rec) != 1 || rec[0].slot != 0 || rec[0].a2 != uintptr(exp) {
		t.Fatalf("upcalls %+v, expiration %d", rec, exp)
	}
	if rc := a.Command(AlarmStop, 0, 0); rc != api.EAlready {
		t.Fatalf("alarm still armed: %s", rc)
	}
}

func TestAlarmStopCancels(t *testing.T) {
	a := NewAlarm(1000, nil)
	n := newRecordingNotifier()
	a.Attach(api.DriverAlarm, n)
	a.Command(AlarmSetRelative, 20, 0)
	if rc := a.Command(AlarmStop, 0, 0); rc != api.Success {
		t.Fatalf("stop %s", rc)
	}
	select {
	case <-n.ch:
		t.Fatal("stopped alarm fired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestAlarmAbsoluteInPastFiresImmediately(t *testing.T) {
	a := NewAlarm(1000, nil)
	defer a.Close()
	n := newRecordingNotifier()
	a.Attach(api.DriverAlarm, n)
	time.Sleep(3 * time.Millisecond)
	a.Command(AlarmSetAbsolute, 0, 0)
	select {
	case <-n.ch:
	case <-time.After(time.Second):
		t.Fatal("past alarm did not fire")
	}
}

func TestGPIOOutput(t *testing.T) {
	g := NewGPIO(4, nil)
	var changes []bool
	g.Watch(func(pin int, level bool) {
		if pin == 2 {
			changes = append(changes, level)
		}
	})
	if rc := g.Command(GPIOCount, 0, 0); rc != 4 {
		t.Fatalf("count %s", rc)
	}
	g.Command(GPIOEnableOutput, 2, 0)
	g.Command(GPIOSet, 2, 0)
	g.Command(GPIOToggle, 2, 0)
	g.Command(GPIOToggle, 2, 0)
	if !g.Level(2) || g.Command(GPIORead, 2, 0) != 1 {
		t.Fatal("pin 2 should be high")
	}
	if len(changes) != 3 {
		t.Fatalf("changes %v", changes)
	}
}

func TestGPIOErrors(t *testing.T) {
	g := NewGPIO(2, nil)
	if rc := g.Command(GPIOSet, 5, 0); rc != api.EInval {
		t.Fatalf("bad pin %s", rc)
	}
	if rc := g.Command(GPIOEnableInput, 0, 9); rc != api.EInval {
		t.Fatalf("bad pull %s", rc)
	}
	if rc := g.Command(GPIOEnableInterrupt, 0, 9); rc != api.EInval {
		t.Fatalf("bad edge %s", rc)
	}
	if rc := g.Command(99, 0, 0); rc != api.ENoSupport {
		t.Fatalf("bad op %s", rc)
	}
	if err := g.Drive(0, true); err == nil {
		t.Fatal("drove a disabled pin")
	}
	if err := g.Drive(7, true); err == nil {
		t.Fatal("drove a missing pin")
	}
}

func TestGPIOInterruptEdges(t *testing.T) {
	g := NewGPIO(2, nil)
	n := newRecordingNotifier()
	g.Attach(api.DriverGPIO, n)

	g.Command(GPIOEnableInput, 1, PullUp)
	if g.Command(GPIORead, 1, 0) != 1 {
		t.Fatal("pull-up should read high")
	}
	g.Command(GPIOEnableInterrupt, 1, FallingEdge)
	g.Drive(1, true)  // no change
	g.Drive(1, false) // falling
	g.Drive(1, true)  // rising, filtered

	rec := n.records()
	if len(rec) != 1 || rec[0] != (upcallRecord{api.DriverGPIO, 0, 1, 0, 0}) {
		t.Fatalf("upcalls %+v", rec)
	}

	g.Command(GPIODisableInterrupt, 1, 0)
	g.Drive(1, false)
	if len(n.records()) != 1 {
		t.Fatal("disabled interrupt fired")
	}
}
