package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Expectation: NewRingBuffer should create a buffer with the correct size.
func Test_NewRingBuffer_Success(t *testing.T) {
	t.Parallel()
	buf := NewRingBuffer(10, &bytes.Buffer{})

	require.NotNil(t, buf)
	require.Equal(t, 10, buf.Size())
	require.Equal(t, 0, buf.index)
	require.False(t, buf.full)
}

// Expectation: add should append messages to the buffer.
func Test_RingBuffer_add_Success(t *testing.T) {
	t.Parallel()
	buf := NewRingBuffer(3, &bytes.Buffer{})

	buf.add("first")
	buf.add("second")
	buf.add("third")

	lines := buf.Lines()

	require.Len(t, lines, 3)
	require.Equal(t, "first", lines[0])
	require.Equal(t, "second", lines[1])
	require.Equal(t, "third", lines[2])
}

// Expectation: add should wrap around when the buffer is full.
func Test_RingBuffer_add_WrapAround_Success(t *testing.T) {
	t.Parallel()
	buf := NewRingBuffer(3, &bytes.Buffer{})

	buf.add("first")
	buf.add("second")
	buf.add("third")
	buf.add("fourth") // wraps around, replaces "first"
	buf.add("fifth")  // replaces "second"

	lines := buf.Lines()

	require.Len(t, lines, 3)
	require.Equal(t, "third", lines[0])
	require.Equal(t, "fourth", lines[1])
	require.Equal(t, "fifth", lines[2])
}

// Expectation: add should trim trailing newlines.
func Test_RingBuffer_add_TrimNewline_Success(t *testing.T) {
	t.Parallel()
	buf := NewRingBuffer(2, &bytes.Buffer{})

	buf.add("message with newline\n")
	buf.add("another\n\n")

	lines := buf.Lines()

	require.Len(t, lines, 2)
	require.Equal(t, "message with newline", lines[0])
	require.Equal(t, "another\n", lines[1])
}

// Expectation: Lines should return the partial buffer when not full.
func Test_RingBuffer_Lines_PartialBuffer_Success(t *testing.T) {
	t.Parallel()
	buf := NewRingBuffer(5, &bytes.Buffer{})

	buf.add("one")
	buf.add("two")

	lines := buf.Lines()

	require.Len(t, lines, 2)
	require.Equal(t, "one", lines[0])
	require.Equal(t, "two", lines[1])
}

// Expectation: Reset should return the buffer to empty, pre-allocated state.
func Test_RingBuffer_Reset_Success(t *testing.T) {
	t.Parallel()
	buf := NewRingBuffer(5, &bytes.Buffer{})

	buf.add("one")
	buf.add("two")
	buf.Reset()

	for _, v := range buf.buf {
		require.Empty(t, v)
	}
	require.Zero(t, buf.index)
	require.False(t, buf.full)
	require.Equal(t, 5, buf.size)
}

// Expectation: concurrent access should be thread-safe.
func Test_RingBuffer_Concurrency_Success(t *testing.T) {
	t.Parallel()
	buf := NewRingBuffer(100, &bytes.Buffer{})
	done := make(chan bool)

	for i := range 10 {
		go func(id int) {
			for range 10 {
				buf.add(strings.Repeat("x", id))
			}
			done <- true
		}(i)
	}

	for range 10 {
		<-done
	}

	lines := buf.Lines()
	require.Len(t, lines, 100)
}

// Expectation: Printf should record the line and write it to the buffer's writer.
func Test_RingBuffer_Printf_Success(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	buf := NewRingBuffer(10, &out)

	buf.Printf("test %s %d", "message", 42)

	lines := buf.Lines()
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "test message 42")
	require.Contains(t, out.String(), "test message 42")
}

// Expectation: Println should record the line and write it to the buffer's writer.
func Test_RingBuffer_Println_Success(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	buf := NewRingBuffer(10, &out)

	buf.Println("test", "message")

	lines := buf.Lines()
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "test message")
	require.Contains(t, out.String(), "test message")
}

// Expectation: the package-level Printf/Println should record onto the
// global Buffer.
func Test_GlobalPrintf_Success(t *testing.T) {
	Buffer.Reset()

	Printf("global %s", "entry")

	lines := Buffer.Lines()
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "global entry")
}
