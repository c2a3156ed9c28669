package testutil

import (
	"bytes"
	"strings"
	"sync"
	"time"
)

// BufferWriter is a goroutine-safe in-memory writer.
type BufferWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (bw *BufferWriter) Write(p []byte) (int, error) {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.buf.Write(p)
}

// String returns a copy of everything written so far.
func (bw *BufferWriter) String() string {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.buf.String()
}

// WaitFor polls until the buffer contains s or the timeout elapses.
func (bw *BufferWriter) WaitFor(s string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if strings.Contains(bw.String(), s) {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return strings.Contains(bw.String(), s)
}
