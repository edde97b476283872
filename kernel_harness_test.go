package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakePort is a Port implementation for tests: it performs the same
// initial hand-off and idle loop as the hosted ports, but ticks are
// driven explicitly by the test via tick() rather than a real timer, so
// tests are deterministic instead of racing a wall-clock signal.
type fakePort struct {
	started chan struct{}
}

func newFakePort() *fakePort { return &fakePort{started: make(chan struct{})} }

func (p *fakePort) Start(k *Kernel) {
	idle := k.idle
	idle.runStart = time.Now()
	idle.runGate <- struct{}{}
	close(p.started)
	select {}
}

func (p *fakePort) Idle(k *Kernel, self *Thread) {
	<-k.waitNextTick()
	k.Sleep(self, 0)
}

// newTestKernel builds and starts a Kernel on a fakePort, ready for
// ThreadInit calls.
func newTestKernel(t *testing.T) (*Kernel, *fakePort) {
	t.Helper()
	port := newFakePort()
	k := New(port)
	_, err := k.Init(make([]uint32, 64))
	require.NoError(t, err)
	go k.Run()
	<-port.started
	return k, port
}

// spawn registers a new thread running body(self) and auto-suiciding
// with a nil exit value when body returns.
func spawn(t *testing.T, k *Kernel, name string, prio Priority, body func(self *Thread)) *Thread {
	t.Helper()
	th := &Thread{}
	fn := func(arg any) any {
		body(arg.(*Thread))
		return nil
	}
	require.NoError(t, k.ThreadInit(th, name, prio, fn, th, make([]uint32, 64)))
	return th
}

// spawnValue is spawn for bodies that produce an exit value for Join.
func spawnValue(t *testing.T, k *Kernel, name string, prio Priority, body func(self *Thread) any) *Thread {
	t.Helper()
	th := &Thread{}
	fn := func(arg any) any { return body(arg.(*Thread)) }
	require.NoError(t, k.ThreadInit(th, name, prio, fn, th, make([]uint32, 64)))
	return th
}

// tick advances the scheduler by n ticks, pausing briefly after each to
// let the resulting cooperative hand-offs (idle's yield, any thread's
// own Sleep-driven wake) settle on their own goroutines before the next
// tick is delivered.
func tick(k *Kernel, n int) {
	for i := 0; i < n; i++ {
		k.onTick()
		time.Sleep(time.Millisecond)
	}
}

// waitUntil polls cond until it is true or timeout elapses, returning
// whether it became true in time.
func waitUntil(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}
