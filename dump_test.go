package kernel

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadDump_HeaderAndColumnOrder(t *testing.T) {
	k, _ := newTestKernel(t)
	var buf bytes.Buffer
	k.ThreadDump(&buf)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, []string{"IDX", "NAME", "PRIO", "S", "SLEEP", "RUNS", "STACKFREE"}, strings.Fields(lines[0]))

	row := strings.Fields(lines[1])
	assert.Equal(t, "0", row[0])
	assert.Equal(t, "idle", row[1])
}

// k.current (the idle thread, immediately after Init/Run and before any
// tick) is printed with '*' in place of its normal state letter.
func TestThreadDump_CurrentThreadMarker(t *testing.T) {
	k, _ := newTestKernel(t)
	var buf bytes.Buffer
	k.ThreadDump(&buf)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	row := strings.Fields(lines[1])
	assert.Equal(t, "*", row[3])
}

func TestThreadDump_SleepTicksColumnReflectsRemaining(t *testing.T) {
	k, _ := newTestKernel(t)
	sleeper := spawn(t, k, "sleeper", 0, func(self *Thread) {
		k.Sleep(self, 10)
	})

	tick(k, 1)
	require.True(t, waitUntil(time.Second, func() bool { return sleeper.State() == Sleeping }))

	var buf bytes.Buffer
	k.ThreadDump(&buf)
	var row []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "sleeper") {
			row = strings.Fields(line)
			break
		}
	}
	require.NotEmpty(t, row)
	assert.Equal(t, "10", row[4])
}

func TestCPULoad_ReturnsPercentageInRange(t *testing.T) {
	k, _ := newTestKernel(t)
	tick(k, 5)
	load := k.CPULoad()
	assert.GreaterOrEqual(t, load, 0.0)
	assert.LessOrEqual(t, load, 100.0)
}

// A corrupted canary routes through assertf, which dumps the thread
// table to stderr before panicking, matching the original
// cpu_thread_assert's "enter critical, dump, then halt" contract.
func TestAssert_DumpsThreadTableBeforePanicking(t *testing.T) {
	k, _ := newTestKernel(t)
	victim := spawn(t, k, "victim", 0, func(self *Thread) {})
	victim.check = 0 // corrupt the canary directly, without running the thread

	r, w, err := os.Pipe()
	require.NoError(t, err)
	origStderr := os.Stderr
	os.Stderr = w

	captured := make(chan string, 1)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r)
		captured <- buf.String()
	}()

	assert.Panics(t, func() {
		defer func() { os.Stderr = origStderr }()
		victim.checkCanary(k)
	})

	w.Close()
	output := <-captured
	assert.Contains(t, output, "IDX")
	assert.Contains(t, output, "victim")
}
