package kernel

import (
	"fmt"
	"io"
	"time"
)

// ThreadDump writes a header line followed by one row per thread to w,
// walking the insertion-ordered all-threads list exactly once. The
// original kernel's reference dump routine additionally walked the sleep
// queue and printed sleeping threads a second time; since every thread
// (whatever its state) is always linked into the all-threads list, that
// second walk only ever produced a duplicate line, so this port keeps a
// single walk.
func (k *Kernel) ThreadDump(w io.Writer) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.dumpThreadsLocked(w)
}

// dumpThreadsBestEffort is ThreadDump for the assertion-failure path
// (assert.go), where the caller may already hold mu: assertions fire
// almost exclusively from deep inside scheduler-internal methods that
// the "caller must hold mu" convention already covers (sched.go), and a
// second, unconditional k.mu.Lock() there would deadlock against itself.
// TryLock only actually acquires (and releases) the lock in the rarer
// case nothing holds it yet; otherwise it dumps directly, trusting that
// whoever does hold it is this same failure's own call chain. This
// mirrors the original cpu_thread_assert contract ("enter critical, dump
// the thread table, then halt") in a form safe for a single nestable,
// non-reentrant lock: re-entering a critical section you are already in
// is always safe, which is exactly what a held mu means here.
func (k *Kernel) dumpThreadsBestEffort(w io.Writer) {
	if k.mu.TryLock() {
		defer k.mu.Unlock()
	}
	k.dumpThreadsLocked(w)
}

func (k *Kernel) dumpThreadsLocked(w io.Writer) {
	remaining := make(map[*Thread]uint64, k.sleep.length)
	var acc uint64
	k.sleep.forEach(func(t *Thread) bool {
		acc += t.waitDelta
		remaining[t] = acc
		return true
	})

	fmt.Fprintf(w, "%-4s %-16s %-4s %-1s %-8s %-8s %s\n",
		"IDX", "NAME", "PRIO", "S", "SLEEP", "RUNS", "STACKFREE")
	idx := 0
	k.all.forEach(func(t *Thread) bool {
		state := t.state.String()
		if t == k.current {
			state = "*"
		}
		fmt.Fprintf(w, "%-4d %-16s %-4d %-1s %-8d %-8d %d/%d\n",
			idx, t.name, t.prio, state, remaining[t], t.runCount, t.StackFreeWords(), t.StackWords())
		idx++
		return true
	})
}

// CPULoad returns the percentage of time, since the last call to
// CPULoad, that the idle thread did not run: 100 - 100*idle/total. Every
// thread's run-time accumulator is reset as a side effect, matching the
// original kernel's windowed load measurement.
func (k *Kernel) CPULoad() float64 {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.current != nil && !k.current.runStart.IsZero() {
		now := time.Now()
		k.current.runTime += now.Sub(k.current.runStart)
		k.current.runStart = now
	}

	var total time.Duration
	var idleTime time.Duration
	k.all.forEach(func(t *Thread) bool {
		total += t.runTime
		if t == k.idle {
			idleTime = t.runTime
		}
		t.runTime = 0
		return true
	})
	if total == 0 {
		return 0
	}
	return 100 * (1 - float64(idleTime)/float64(total))
}
