package kernel

// Port is the CPU/platform port contract: the small seam between the
// portable scheduler in this package and whatever drives its tick and
// performs the very first context switch. A real bare-metal port would
// program a hardware timer and implement context switch in assembly; the
// hosted port in port_unix.go / port_other.go drives the tick from a
// goroutine and performs every context switch as a channel hand-off.
type Port interface {
	// Start performs the initial context switch into the first thread the
	// scheduler picks (the idle thread, immediately after Init) and begins
	// delivering ticks to the kernel. Start does not return.
	Start(k *Kernel)

	// Idle is the body the idle thread's goroutine loops on when no other
	// thread is ready. The hosted port's Idle waits for the next tick and
	// then cooperatively yields, giving any thread the tick just woke a
	// chance to run; Init wires this in automatically and callers never
	// invoke it directly.
	Idle(k *Kernel, self *Thread)
}
