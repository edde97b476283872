package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_GetBlocksUntilBitsSet(t *testing.T) {
	k, _ := newTestKernel(t)
	ev := NewEvent()
	got := make(chan uint32, 1)

	spawn(t, k, "waiter", 1, func(self *Thread) {
		got <- ev.Get(k, self)
	})
	spawn(t, k, "setter", 1, func(self *Thread) {
		ev.Set(k, self, 0x2)
	})

	tick(k, 1)
	require.True(t, waitUntil(time.Second, func() bool { return len(got) == 1 }))
	assert.Equal(t, uint32(0x2), <-got)
}

func TestEvent_SetCoalescesMultipleBits(t *testing.T) {
	k, _ := newTestKernel(t)
	ev := NewEvent()
	got := make(chan uint32, 1)

	spawn(t, k, "waiter", 1, func(self *Thread) {
		got <- ev.Get(k, self)
	})
	spawn(t, k, "setter", 1, func(self *Thread) {
		ev.Set(k, self, 0x1)
		ev.Set(k, self, 0x2|0x4)
	})

	tick(k, 1)
	require.True(t, waitUntil(time.Second, func() bool { return len(got) == 1 }))
	assert.Equal(t, uint32(0x1|0x2|0x4), <-got)
}

// Get always clears the entire accumulated value, not just the bits the
// caller happened to care about: a subsequent Peek observes nothing left
// over, matching the original event_get's whole-value clear-on-read.
func TestEvent_GetClearsEntireValue(t *testing.T) {
	k, _ := newTestKernel(t)
	ev := NewEvent()
	first := make(chan uint32, 1)
	remaining := make(chan uint32, 1)

	spawn(t, k, "consumer", 0, func(self *Thread) {
		ev.Set(k, self, 0x1|0x2)
		first <- ev.Get(k, self)
		remaining <- ev.Peek(k, self)
	})

	tick(k, 1)
	require.True(t, waitUntil(time.Second, func() bool { return len(remaining) == 1 }))
	assert.Equal(t, uint32(0x1|0x2), <-first)
	assert.Equal(t, uint32(0), <-remaining)
}
