package kernel

import (
	"fmt"
	"os"
)

// assertf reports a fatal internal invariant violation, dumps the thread
// table, and panics. These are the programming-error class described in
// SPEC_FULL.md §7: bad priorities and the like return a sentinel error
// instead, but a corrupted canary, an empty ready queue, or a thread
// resuming after Suicide indicate the kernel's own bookkeeping is broken
// and there is no safe way to continue — matching the original
// cpu_thread_assert contract of "enter critical, dump the thread table,
// then halt". k may be nil for the handful of failures that can occur
// before a Kernel exists to dump (e.g. a port's Setitimer failing before
// Init); the dump step is simply skipped in that case.
func assertf(k *Kernel, t *Thread, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logAt(LevelError, t, "assertion failed: %s", msg)
	if k != nil {
		k.dumpThreadsBestEffort(os.Stderr)
	}
	panic("kernel: assertion failed: " + msg)
}

// assertCond calls assertf with format/args if cond is false.
func assertCond(cond bool, k *Kernel, t *Thread, format string, args ...any) {
	if !cond {
		assertf(k, t, format, args...)
	}
}
