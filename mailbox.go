package kernel

// Mailbox is a bounded ring buffer of uint32 slots, ported from the
// original kernel's mailbox.c. It is built on two Semaphores, the
// classic bounded-buffer construction: items counts filled slots
// (consumers Pend on it) and space counts free slots (producers Pend on
// it), with the ring index mutation itself guarded by a critical section.
type Mailbox struct {
	buf   []uint32
	head  int
	tail  int
	items *Semaphore
	space *Semaphore
}

// NewMailbox returns an empty Mailbox backed by the caller-provided
// slice, whose length is the mailbox's capacity.
func NewMailbox(buf []uint32) *Mailbox {
	return &Mailbox{
		buf:   buf,
		items: NewSemaphore(0),
		space: NewSemaphore(len(buf)),
	}
}

// Post enqueues v without blocking, reporting whether a slot was free.
// Matching the original mailbox_post exactly, a full mailbox is not a
// reason to wait: the caller gets false back immediately instead.
func (m *Mailbox) Post(k *Kernel, self *Thread, v uint32) bool {
	if !m.space.TryPend(k, self) {
		return false
	}
	k.CriticalStart(self)
	m.buf[m.tail] = v
	m.tail = (m.tail + 1) % len(m.buf)
	k.CriticalEnd(self)
	m.items.Post(k, self)
	return true
}

// Pend blocks self until a value is available, dequeues and returns it.
func (m *Mailbox) Pend(k *Kernel, self *Thread) uint32 {
	m.items.Pend(k, self)
	k.CriticalStart(self)
	v := m.buf[m.head]
	m.head = (m.head + 1) % len(m.buf)
	k.CriticalEnd(self)
	m.space.Post(k, self)
	return v
}

// TryPend dequeues a value without blocking, reporting whether one was
// available.
func (m *Mailbox) TryPend(k *Kernel, self *Thread) (uint32, bool) {
	if !m.items.TryPend(k, self) {
		return 0, false
	}
	k.CriticalStart(self)
	v := m.buf[m.head]
	m.head = (m.head + 1) % len(m.buf)
	k.CriticalEnd(self)
	m.space.Post(k, self)
	return v, true
}

// PendTimed blocks self for up to ticks waiting for a value, returning
// false on timeout.
func (m *Mailbox) PendTimed(k *Kernel, self *Thread, ticks uint64) (uint32, bool) {
	if !m.items.TimedPend(k, self, ticks) {
		return 0, false
	}
	k.CriticalStart(self)
	v := m.buf[m.head]
	m.head = (m.head + 1) % len(m.buf)
	k.CriticalEnd(self)
	m.space.Post(k, self)
	return v, true
}
