package kernel

// Semaphore is a counting semaphore with a FIFO pend queue, ported from
// the original kernel's semaphore.c. A Post that finds a waiter hands the
// token directly to the oldest one instead of incrementing count and
// letting it race a concurrent TryPend for the same token: this is the
// same direct-ownership-transfer scheme Mutex.Unlock uses (mutex.go).
type Semaphore struct {
	count int
	pend  *threadList
}

// NewSemaphore returns a Semaphore with the given initial count.
func NewSemaphore(initial int) *Semaphore {
	s := &Semaphore{count: initial}
	s.pend = newThreadList(func(t *Thread) *listNode { return &t.pend })
	return s
}

// Pend blocks self until a token is available. A woken waiter never
// touches count itself: Post's direct transfer (see wake) already
// accounted for the token on its behalf.
func (s *Semaphore) Pend(k *Kernel, self *Thread) {
	k.CriticalStart(self)
	defer k.CriticalEnd(self)
	if s.count > 0 {
		s.count--
		return
	}
	s.pend.pushBack(self)
	k.Block(self)
}

// TryPend acquires a token without blocking, reporting whether one was
// available.
func (s *Semaphore) TryPend(k *Kernel, self *Thread) bool {
	k.CriticalStart(self)
	defer k.CriticalEnd(self)
	if s.count == 0 {
		return false
	}
	s.count--
	return true
}

// TimedPend blocks self for up to ticks waiting for a token, returning
// false on timeout. A ticks value of 0 behaves like TryPend.
func (s *Semaphore) TimedPend(k *Kernel, self *Thread, ticks uint64) bool {
	k.CriticalStart(self)
	defer k.CriticalEnd(self)
	if s.count > 0 {
		s.count--
		return true
	}
	if ticks == 0 {
		return false
	}
	self.unblockingArg = nil
	s.pend.pushBack(self)
	k.SleepThread(self, ticks)
	k.threadSwitch(self)
	woken := self.unblockingArg != nil
	self.unblockingArg = nil
	if !woken {
		s.pend.remove(self) // timed out: still linked, unlink it ourselves
	}
	return woken
}

// Post releases a token, waking the oldest pending waiter (if any) by
// direct transfer rather than by incrementing count.
func (s *Semaphore) Post(k *Kernel, self *Thread) {
	k.CriticalStart(self)
	defer k.CriticalEnd(self)
	s.wake(k, self)
}

// PostIRQ is Post's IRQ-context counterpart: usable from a goroutine with
// no Thread of its own (see Kernel.UnblockIRQ).
func (s *Semaphore) PostIRQ(k *Kernel) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.wake(k, nil)
}

// wake hands a token to the oldest waiter, or increments count if none is
// waiting. Caller must hold mu. self is nil when called from IRQ context,
// in which case no synchronous priority-preemption switch is attempted.
func (s *Semaphore) wake(k *Kernel, self *Thread) {
	w := s.pend.first()
	if w == nil {
		s.count++
		return
	}
	s.pend.remove(w)
	w.unblockingArg = &w.pend
	if w.state == Sleeping {
		k.spliceOutOfSleep(w)
		k.sleep.remove(w)
		w.state = Blocked
	}
	if self != nil {
		k.Unblock(self, w)
	} else {
		k.unblockInternal(w)
	}
}

// Value returns the current token count.
func (s *Semaphore) Value(k *Kernel, self *Thread) int {
	k.CriticalStart(self)
	defer k.CriticalEnd(self)
	return s.count
}
