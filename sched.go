package kernel

import (
	"sync"
	"time"
)

// TickInterval is the period of the scheduler's tick source: 1kHz, the
// distilled spec's default rate.
const TickInterval = time.Millisecond

// Kernel is the thread registry: a process-wide singleton holding the
// current thread, the ready/sleeping/blocked/dead lists, the
// insertion-ordered all-threads list, and the tick/pick counters.
//
// Lifecycle: created with New, wired to a Port, initialized once with
// Init, and run once with Run — it is never destroyed, matching the
// distilled spec's "init -> run -> (never destroyed)" contract. Each test
// or embedder constructs its own Kernel rather than sharing one hidden
// package-level global, so independent scheduler instances never
// cross-contaminate; within a single Kernel's lifetime it still behaves
// as the non-reentrant singleton the spec describes.
//
// mu is the critical-section gate described in SPEC_FULL.md §4.8: the
// thread currently inside a (nestable) critical section holds it for the
// section's full duration, so any other goroutine trying to mutate
// scheduler state — including the tick source — blocks until the
// section's outermost exit, exactly mirroring masked/deferred interrupt
// delivery. The unexported helper methods below, and the exported
// Block, Unblock and SleepThread (documented "Caller must hold mu"),
// assume mu is already held by the caller; the other exported entry
// points acquire it (via CriticalStart/CriticalEnd, or directly for
// contexts with no Thread of their own, such as the tick source).
type Kernel struct {
	mu sync.Mutex

	current *Thread
	ready   *threadList
	sleep   *threadList
	blocked *threadList
	dead    *threadList
	all     *threadList

	tickCount uint64
	pickCount uint64

	initialized bool
	running     bool

	nextID uint64

	idle *Thread
	port Port

	tickChan chan struct{} // closed and replaced every tick; see waitNextTick
}

// New constructs an uninitialized Kernel bound to port.
func New(port Port) *Kernel {
	k := &Kernel{port: port, tickChan: make(chan struct{})}
	k.ready = newThreadList(func(t *Thread) *listNode { return &t.primary })
	k.sleep = newThreadList(func(t *Thread) *listNode { return &t.primary })
	k.blocked = newThreadList(func(t *Thread) *listNode { return &t.primary })
	k.dead = newThreadList(func(t *Thread) *listNode { return &t.primary })
	k.all = newThreadList(func(t *Thread) *listNode { return &t.allNode })
	return k
}

// Init initializes the kernel's lists and creates the idle thread on
// idleStack, a caller-provided stack arena. Must be called exactly once
// before any other Kernel method. Returns the idle Thread for callers
// that want its handle (diagnostics, tests).
func (k *Kernel) Init(idleStack []uint32) (*Thread, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.initialized {
		return nil, ErrAlreadyInitialized
	}
	idle := &Thread{}
	idleFn := func(arg any) any {
		self := arg.(*Thread)
		for {
			k.port.Idle(k, self)
		}
	}
	if err := k.threadInitLocked(idle, "idle", IdlePrio, idleFn, idle, idleStack, Runnable); err != nil {
		return nil, err
	}
	k.idle = idle
	k.initialized = true
	logAt(LevelInfo, nil, "kernel initialized")
	return idle, nil
}

// Run marks the kernel running, sets current to the idle thread, and
// hands control to the port's Start routine, which performs the initial
// context switch. Run does not return.
func (k *Kernel) Run() {
	k.mu.Lock()
	if !k.initialized {
		k.mu.Unlock()
		assertf(k, nil, "Run called before Init")
	}
	k.running = true
	k.current = k.idle
	k.mu.Unlock()
	k.port.Start(k)
	select {} // unreachable: Start never returns on this port
}

// ThreadInit initializes a caller-provided Thread block: assigns a fresh
// id, builds the goroutine that will execute fn(arg) once scheduled, and
// links it into the ready queue (Runnable, the default) or the blocked
// list (Blocked). Sleeping and Dead are rejected as initial states.
func (k *Kernel) ThreadInit(t *Thread, name string, prio Priority, fn func(arg any) any, arg any, stack []uint32, initial ...State) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.initialized {
		return ErrNotInitialized
	}
	initState := Runnable
	if len(initial) > 0 {
		initState = initial[0]
	}
	return k.threadInitLocked(t, name, prio, fn, arg, stack, initState)
}

func (k *Kernel) threadInitLocked(t *Thread, name string, prio Priority, fn func(arg any) any, arg any, stack []uint32, initState State) error {
	if prio != IdlePrio && (prio < MinPrio || prio > MaxPrio) {
		return ErrBadPriority
	}
	if initState != Runnable && initState != Blocked {
		return ErrBadInitialState
	}
	paintStack(stack)

	k.nextID++
	*t = Thread{
		check:   checkWord,
		id:      k.nextID,
		name:    truncateName(name),
		prio:    prio,
		state:   initState,
		stack:   stack,
		fn:      fn,
		arg:     arg,
		join:    newThreadList(func(th *Thread) *listNode { return &th.pend }),
		runGate: make(chan struct{}, 1),
	}

	k.all.pushBack(t)
	switch initState {
	case Runnable:
		k.insertPriority(k.ready, t)
	case Blocked:
		k.blocked.pushBack(t)
	}

	go k.runTrampoline(t)
	return nil
}

// runTrampoline is the goroutine body standing in for the CPU port's
// initial-context trampoline: it waits for the scheduler to first hand it
// the baton, runs the thread function to completion, and then commits
// suicide with the function's return value as the exit value, exactly as
// the original kernel's thread_func wrapper does.
func (k *Kernel) runTrampoline(t *Thread) {
	<-t.runGate
	ret := t.fn(t.arg)
	k.Suicide(t, ret)
	assertf(k, t, "unreachable: thread resumed after Suicide")
}

// Current returns the currently running thread, or nil before Run. For
// diagnostics only — primitives must be given the calling thread's own
// handle explicitly rather than rediscovering it here.
func (k *Kernel) Current() *Thread {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.current
}

// TickCount returns the number of ticks processed since Init.
func (k *Kernel) TickCount() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tickCount
}

// FirstThread returns the head of the insertion-ordered all-threads list,
// for diagnostic walks.
func (k *Kernel) FirstThread() *Thread {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.all.first()
}

// waitNextTick returns a channel closed the next time the tick source
// fires, for cooperative consumers (the idle thread) that want to wake
// promptly on every tick rather than poll.
func (k *Kernel) waitNextTick() <-chan struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tickChan
}

// insertPriority walks list from the head and inserts t immediately
// before the first entry whose priority is strictly lower than t's, or
// at the tail otherwise. Equal priorities therefore queue FIFO behind
// threads already present at that priority, which is the round-robin
// invariant. Caller must hold mu.
func (k *Kernel) insertPriority(list *threadList, t *Thread) {
	var mark *Thread
	list.forEach(func(cur *Thread) bool {
		if cur.prio < t.prio {
			mark = cur
			return false
		}
		return true
	})
	if mark != nil {
		list.insertBefore(mark, t)
	} else {
		list.pushBack(t)
	}
}

// pick selects the next thread to run. Caller must hold mu.
func (k *Kernel) pick() *Thread {
	if k.current != nil && k.current.state == Runnable {
		k.ready.remove(k.current)
		k.insertPriority(k.ready, k.current)
	}
	next := k.ready.first()
	assertCond(next != nil, k, nil, "ready queue empty: idle thread missing")
	next.checkCanary(k)
	assertCond(next.state == Runnable, k, next, "picked thread not runnable")
	next.runCount++
	k.pickCount++
	return next
}

// loadContext selects a new current thread, accounting for the elapsed
// run time of the thread being descheduled. Caller must hold mu.
func (k *Kernel) loadContext() *Thread {
	now := time.Now()
	if k.current != nil && !k.current.runStart.IsZero() {
		k.current.runTime += now.Sub(k.current.runStart)
	}
	next := k.pick()
	next.runStart = now
	k.current = next
	return next
}

// contextSwitch performs the goroutine hand-off for self, the currently
// running thread. Must be called by self's own goroutine with mu held
// (self is always inside at least one critical section here, per the
// distilled spec). Releases mu for the duration of the park so other
// goroutines can make progress, and reacquires it before returning.
func (k *Kernel) contextSwitch(self *Thread) {
	resume := k.loadContext()
	if resume == self {
		return
	}
	logAt(LevelDebug, self, "switch -> %s", resume.Name())
	k.mu.Unlock()
	resume.runGate <- struct{}{}
	<-self.runGate
	k.mu.Lock()
}

// threadSwitch is the thread-side half of a voluntary yield: it asserts
// that the calling goroutine really was suspended and resumed as
// expected, matching thread_switch's run-count sanity check.
func (k *Kernel) threadSwitch(self *Thread) {
	oldRunCount := self.runCount
	k.contextSwitch(self)
	assertCond(self.runCount != oldRunCount, k, self, "thread resumed without being picked")
}

// Block moves self from Runnable to Blocked and switches away. Caller
// must hold mu.
func (k *Kernel) Block(self *Thread) {
	self.checkCanary(k)
	assertCond(self.state == Runnable, k, self, "Block called on non-runnable thread")
	self.state = Blocked
	k.ready.remove(self)
	k.blocked.pushBack(self)
	k.threadSwitch(self)
}

// unblockInternal transitions t to Runnable from whichever list it is
// currently on, tolerating being called on an already-Runnable thread (a
// timed-pend timeout can race with a concurrent post; preserving this
// idempotence is called out explicitly in the distilled spec). Caller
// must hold mu.
func (k *Kernel) unblockInternal(t *Thread) {
	switch t.state {
	case Sleeping:
		k.spliceOutOfSleep(t)
		k.sleep.remove(t)
	case Blocked:
		k.blocked.remove(t)
	case Runnable, Dead:
		return
	}
	t.state = Runnable
	k.insertPriority(k.ready, t)
}

// Unblock unblocks t and, if t outranks self (the calling thread),
// switches to it immediately (synchronous priority preemption). Caller
// must hold mu.
func (k *Kernel) Unblock(self, t *Thread) {
	t.checkCanary(k)
	k.unblockInternal(t)
	if t.prio > self.prio {
		k.threadSwitch(self)
	}
}

// UnblockIRQ unblocks t from an IRQ-style context that has no Thread of
// its own: the state transition happens immediately, but any resulting
// pick/switch is left for the next voluntary yield or tick, matching
// cpu_context_switch_irq being a no-op (the original port instead defers
// to the IRQ epilogue; this hosted port has no such epilogue to run, so
// the next cooperative checkpoint plays that role). Safe to call without
// already holding mu.
func (k *Kernel) UnblockIRQ(t *Thread) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t.checkCanary(k)
	k.unblockInternal(t)
}

// Kill forcibly removes thr from whatever list it is on (fixing up the
// delta-timer queue if it was sleeping) and unlinks it from the
// all-threads list. Rejects the current thread; self is the caller.
func (k *Kernel) Kill(self, thr *Thread) error {
	k.CriticalStart(self)
	defer k.CriticalEnd(self)
	thr.checkCanary(k)
	if thr == self {
		return ErrSelfKill
	}
	switch thr.state {
	case Runnable:
		k.ready.remove(thr)
	case Sleeping:
		k.spliceOutOfSleep(thr)
		k.sleep.remove(thr)
	case Blocked:
		k.blocked.remove(thr)
	case Dead:
		k.dead.remove(thr) // already dead; still unlink from all-threads below
	}
	k.all.remove(thr)
	thr.state = Dead
	logAt(LevelInfo, thr, "killed")
	return nil
}

// Suicide may only be called on the currently running thread, self. It
// moves the thread to Dead, records exitValue, wakes every thread parked
// on its join list, and switches away. Never returns to its caller.
func (k *Kernel) Suicide(self *Thread, exitValue any) {
	k.mu.Lock()
	self.checkCanary(k)
	assertCond(self.state == Runnable, k, self, "Suicide called on non-runnable thread")

	k.ready.remove(self)
	self.state = Dead
	k.dead.pushBack(self)
	self.exitValue = exitValue

	self.join.forEach(func(waiter *Thread) bool {
		self.join.remove(waiter)
		k.unblockInternal(waiter)
		return true
	})

	logAt(LevelInfo, self, "exited")
	k.threadSwitch(self)
	k.mu.Unlock()
}

// Join blocks self until thr dies, then returns thr's exit value. Joining
// on self is rejected.
func (k *Kernel) Join(self, thr *Thread) (any, error) {
	k.CriticalStart(self)
	defer k.CriticalEnd(self)
	if thr == self {
		return nil, ErrSelfJoin
	}
	if thr.state == Dead {
		return thr.exitValue, nil
	}
	thr.join.pushBack(self)
	k.Block(self)
	return thr.exitValue, nil
}

// spliceOutOfSleep removes t from the delta-timer sleep queue while
// preserving the invariant that the sum of deltas from the head to any
// remaining node equals that node's remaining time: t's own delta is
// folded into its successor's. Caller must hold mu.
func (k *Kernel) spliceOutOfSleep(t *Thread) {
	if next := k.sleep.next(t); next != nil {
		next.waitDelta += t.waitDelta
	}
	t.waitDelta = 0
}

// SleepThread puts a specific thread onto the delta-timer sleep queue for
// the given number of ticks. Caller must hold mu.
func (k *Kernel) SleepThread(t *Thread, ticks uint64) {
	assertCond(t.state == Runnable || t.state == Blocked, k, t, "SleepThread called on thread not runnable/blocked")
	if t.state == Runnable {
		k.ready.remove(t)
	} else {
		k.blocked.remove(t)
	}
	t.state = Sleeping

	var total, prevTotal uint64
	var mark *Thread
	k.sleep.forEach(func(cur *Thread) bool {
		total += cur.waitDelta
		if ticks <= total {
			mark = cur
			return false
		}
		prevTotal = total
		return true
	})
	if mark != nil {
		t.waitDelta = ticks - prevTotal
		mark.waitDelta -= t.waitDelta
		k.sleep.insertBefore(mark, t)
	} else {
		t.waitDelta = ticks - prevTotal
		k.sleep.pushBack(t)
	}
}

// SleepCancel pulls t out of the sleep queue into Blocked, preserving the
// delta-timer invariant.
func (k *Kernel) SleepCancel(t *Thread) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if t.state != Sleeping {
		return
	}
	k.spliceOutOfSleep(t)
	k.sleep.remove(t)
	t.state = Blocked
	k.blocked.pushBack(t)
}

// Sleep puts self to sleep for the given number of ticks (0 yields
// without sleeping, a round-robin hand-off) and switches away.
func (k *Kernel) Sleep(self *Thread, ticks uint64) {
	k.mu.Lock()
	if ticks > 0 {
		k.SleepThread(self, ticks)
	}
	k.threadSwitch(self)
	k.mu.Unlock()
}

// Checkpoint gives self a chance to be preempted: if at least one tick has
// elapsed since self last called Checkpoint, it performs a real hand-off
// to whatever thread pick() now selects (the same mechanism Sleep(0)
// uses), exactly as if the tick handler itself had forced a pick; if no
// tick has elapsed, it returns immediately without switching.
//
// A thread body that calls Checkpoint on every loop back-edge is
// therefore preemptible at tick granularity even when it never otherwise
// touches the kernel — the closest a goroutine-per-task hosted port can
// come to a hardware timer interrupting it mid-instruction, and the
// concrete realization of onTick's doc comment: onTick itself only
// advances the sleep queue, because forcibly suspending a goroutine from
// outside it has no safe Go equivalent; Checkpoint is the call a thread
// makes from the inside instead. See DESIGN.md's "Hosted preemption
// model" entry for the residual gap this still leaves open: a thread that
// calls neither Checkpoint nor any blocking primitive cannot be preempted
// at all.
func (k *Kernel) Checkpoint(self *Thread) {
	k.mu.Lock()
	due := self.lastCheckpointTick != k.tickCount
	self.lastCheckpointTick = k.tickCount
	if !due {
		k.mu.Unlock()
		return
	}
	k.threadSwitch(self)
	k.mu.Unlock()
}

// threadTick advances the sleep queue by one tick (delta model): the
// head's remaining delta is decremented, and every entry that reaches
// zero is promoted to Runnable and inserted into the ready queue via
// insertPriority. Iteration stops at the first non-expired entry. Caller
// must hold mu.
func (k *Kernel) threadTick() {
	if head := k.sleep.first(); head != nil && head.waitDelta > 0 {
		head.waitDelta--
	}
	for {
		head := k.sleep.first()
		if head == nil || head.waitDelta != 0 {
			break
		}
		head.checkCanary(k)
		assertCond(head.state == Sleeping, k, head, "sleep queue head not sleeping")
		k.sleep.remove(head)
		head.state = Runnable
		k.insertPriority(k.ready, head)
	}
	k.tickCount++
}

// onTick is the tick source's handler: it advances the sleep queue and
// wakes any cooperative waiter (the idle thread) via the tick broadcast
// channel. It deliberately does not attempt to forcibly suspend whatever
// thread is currently running real Go code on its own goroutine — no
// userspace Go mechanism can safely do that (see SPEC_FULL.md §4.8 /
// DESIGN.md) — so preemption of a running thread only takes effect the
// next time that thread reaches a cooperative checkpoint (Sleep, a
// blocking primitive, a voluntary Sleep(0) yield, or a call to
// Checkpoint).
//
// Entering this function blocks on mu exactly like a masked hardware
// interrupt: if the current thread is mid critical-section (holding mu
// via CriticalStart), the tick is deferred until the section's outermost
// exit, then delivered immediately, matching the distilled spec's
// critical-section contract.
func (k *Kernel) onTick() {
	k.mu.Lock()
	k.threadTick()
	close(k.tickChan)
	k.tickChan = make(chan struct{})
	k.mu.Unlock()
}

// CriticalStart enters a nestable critical section on self, acquiring
// the kernel's internal state mutex on the first (outermost) entry only.
// Called with self == nil (no thread exists yet, or called from a
// context with no Thread of its own such as an IRQ handler), this is a
// no-op, matching the distilled spec's contract exactly.
func (k *Kernel) CriticalStart(self *Thread) {
	if self == nil {
		return
	}
	assertCond(self.criticalDepth < 255, k, self, "critical section depth overflow")
	if self.criticalDepth == 0 {
		k.mu.Lock()
	}
	self.criticalDepth++
}

// CriticalEnd exits one level of critical section on self, releasing the
// mutex once the outermost level exits.
func (k *Kernel) CriticalEnd(self *Thread) {
	if self == nil {
		return
	}
	assertCond(self.criticalDepth > 0, k, self, "critical section underflow")
	self.criticalDepth--
	if self.criticalDepth == 0 {
		k.mu.Unlock()
	}
}
