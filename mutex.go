package kernel

// Mutex is a mutual exclusion lock with a FIFO pend queue, ported from the
// original kernel's mutex.c: Unlock transfers ownership directly to the
// oldest pending waiter rather than ever leaving the mutex in a
// momentarily-unowned state that a third thread could steal.
//
// recursive selects which of the two contracts mutex_init(mtx, recursive)
// configures in the original: when true, a thread already holding the
// mutex may lock it again and must unlock it the same number of times;
// when false, a thread relocking its own mutex enqueues and blocks just
// like any other contending thread (and will deadlock against itself,
// exactly as the original non-recursive mode does).
type Mutex struct {
	owner     *Thread
	depth     int
	recursive bool
	pend      *threadList
}

// NewMutex returns an unlocked Mutex. recursive selects whether the owning
// thread may relock it without blocking (see the Mutex doc comment).
func NewMutex(recursive bool) *Mutex {
	m := &Mutex{recursive: recursive}
	m.pend = newThreadList(func(t *Thread) *listNode { return &t.pend })
	return m
}

// Lock acquires the mutex, blocking self if another thread holds it. If
// self already holds it, the outcome depends on the recursive flag: a
// recursive mutex nests and bumps depth; a non-recursive one enqueues self
// behind itself and blocks forever, matching the original's contract.
func (m *Mutex) Lock(k *Kernel, self *Thread) {
	k.CriticalStart(self)
	defer k.CriticalEnd(self)
	if m.owner == nil {
		m.owner = self
		m.depth = 1
		return
	}
	if m.owner == self && m.recursive {
		m.depth++
		return
	}
	m.pend.pushBack(self)
	k.Block(self)
	// woken by Unlock's direct transfer: owner/depth already set to self/1
}

// TryLock acquires the mutex without blocking.
func (m *Mutex) TryLock(k *Kernel, self *Thread) bool {
	k.CriticalStart(self)
	defer k.CriticalEnd(self)
	if m.owner == nil {
		m.owner = self
		m.depth = 1
		return true
	}
	if m.owner == self && m.recursive {
		m.depth++
		return true
	}
	return false
}

// Unlock releases one level of ownership. Returns ErrNotOwner if self
// does not hold the mutex. On the outermost unlock, ownership transfers
// directly to the oldest pending waiter, if any.
func (m *Mutex) Unlock(k *Kernel, self *Thread) error {
	k.CriticalStart(self)
	defer k.CriticalEnd(self)
	if m.owner != self {
		return ErrNotOwner
	}
	m.depth--
	if m.depth > 0 {
		return nil
	}
	if w := m.pend.first(); w != nil {
		m.pend.remove(w)
		m.owner = w
		m.depth = 1
		k.Unblock(self, w)
		return nil
	}
	m.owner = nil
	return nil
}

// Owner returns the current owner, or nil if unlocked.
func (m *Mutex) Owner(k *Kernel, self *Thread) *Thread {
	k.CriticalStart(self)
	defer k.CriticalEnd(self)
	return m.owner
}
