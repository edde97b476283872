// Package kernel implements a small preemptive, fixed-priority, round-robin
// multitasking scheduler and the synchronization primitives built on top of
// it: counting semaphores (with timed wait), mutexes (optionally
// recursive), bitmap events, and bounded mailboxes.
//
// Thread blocks and mailbox buffers are caller-provided storage, wired
// together with intrusive list nodes. The kernel does allocate: Init
// allocates the idle Thread, ThreadInit allocates each thread's join
// list, run-gate channel and goroutine, and NewSemaphore, NewMutex,
// NewEvent and NewMailbox allocate the objects they return. The one
// concrete CPU port shipped
// here (port_unix.go / port_other.go) targets a hosted, general-purpose
// operating system: each Thread runs on its own goroutine, handed the CPU
// by a single baton-passing mutex. A periodic tick advances sleeping
// threads and signals the idle thread; actual hand-off of the CPU away
// from whatever thread currently holds it happens only when that thread
// sleeps, blocks in a primitive, yields with a zero-tick Sleep, or calls
// Kernel.Checkpoint after at least one tick has elapsed since its
// previous Checkpoint. A thread body written to call
// Checkpoint on every loop back-edge is preempted at tick granularity
// even if it never otherwise touches the kernel; there is still no
// portable way to suspend arbitrary running Go code from entirely
// outside its own goroutine, so a thread that calls neither Checkpoint
// nor any blocking primitive cannot be preempted at all.
package kernel
