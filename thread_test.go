package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateName(t *testing.T) {
	assert.Equal(t, "short", truncateName("short"))
	long := "0123456789abcdefXXXX"
	got := truncateName(long)
	assert.Less(t, len(got), nameMax)
	assert.Equal(t, long[:nameMax-1], got)
}

func TestPaintStackAndStackFreeWords(t *testing.T) {
	stack := make([]uint32, 8)
	paintStack(stack)
	for _, w := range stack {
		assert.Equal(t, uint32(stackSentinel), w)
	}

	th := &Thread{stack: stack}
	assert.Equal(t, 8, th.StackFreeWords())

	stack[3] = 0xdeadbeef
	assert.Equal(t, 3, th.StackFreeWords())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "R", Runnable.String())
	assert.Equal(t, "S", Sleeping.String())
	assert.Equal(t, "B", Blocked.String())
	assert.Equal(t, "X", Dead.String())
	assert.Equal(t, "?", State(99).String())
}

func TestThread_CheckCanaryPanicsOnCorruption(t *testing.T) {
	th := &Thread{check: checkWord, name: "victim"}
	assert.NotPanics(t, func() { th.checkCanary(nil) })

	th.check = 0
	assert.Panics(t, func() { th.checkCanary(nil) })
}

func TestThread_StringIncludesIdentity(t *testing.T) {
	th := &Thread{id: 7, name: "worker", prio: 3, state: Runnable}
	s := th.String()
	assert.Contains(t, s, "worker")
	assert.Contains(t, s, "id=7")
}
