//go:build linux || darwin

package kernel

import (
	"os"
	"os/signal"
	"time"

	"golang.org/x/sys/unix"
)

// unixPort drives the scheduler's 1kHz tick from ITIMER_VIRTUAL delivered
// as SIGVTALRM, the same mechanism the original kernel's hosted Linux CPU
// port uses (see original_source/arch/linux/cpu_thread.c): a virtual
// timer that only counts process CPU time, so it never fires while the
// process is stopped or descheduled by the host OS.
type unixPort struct{}

// NewHostedPort returns the Port implementation for linux/darwin.
func NewHostedPort() Port { return unixPort{} }

func (unixPort) Start(k *Kernel) {
	sig := make(chan os.Signal, 4)
	signal.Notify(sig, unix.SIGVTALRM)

	it := unix.Itimerval{
		Value:    unix.NsecToTimeval(TickInterval.Nanoseconds()),
		Interval: unix.NsecToTimeval(TickInterval.Nanoseconds()),
	}
	if err := unix.Setitimer(unix.ITIMER_VIRTUAL, &it, nil); err != nil {
		assertf(k, nil, "Setitimer failed: %v", err)
	}
	go func() {
		for range sig {
			k.onTick()
		}
	}()

	idle := k.idle
	idle.runStart = time.Now()
	idle.runGate <- struct{}{} // hand the baton to idle for the first time
	select {}                  // Start never returns; the tick goroutine drives everything else
}

func (unixPort) Idle(k *Kernel, self *Thread) {
	<-k.waitNextTick()
	k.Sleep(self, 0)
}
