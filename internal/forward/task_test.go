package forward

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"math/rand"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

type failingWriter struct {
	after int
	n     int
}

var errSinkGone = errors.New("sink gone")

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n >= w.after {
		return 0, errSinkGone
	}
	w.n++
	return len(p), nil
}

// chunkReader returns at most size bytes per Read.
type chunkReader struct {
	r    io.Reader
	size int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(p) > c.size {
		p = p[:c.size]
	}
	return c.r.Read(p)
}

func TestTaskPreservesBytes(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, mode := range []Mode{ModeRaw, ModeLine} {
		for i := 0; i < 20; i++ {
			payload := make([]byte, rng.Intn(200_000))
			rng.Read(payload)
			// Sprinkle newlines so line mode sees real lines.
			for j := range payload {
				if rng.Intn(50) == 0 {
					payload[j] = '\n'
				}
			}

			var dst bytes.Buffer
			task := &Task{
				Direction: StdoutOut,
				Src:       &chunkReader{r: bytes.NewReader(payload), size: 1 + rng.Intn(5000)},
				Dst:       &dst,
				Options:   Options{Mode: mode, BufferSize: 1 + rng.Intn(4096)},
			}

			res := task.Run()
			require.NoError(t, res.Err)
			assert.Equal(t, ReasonSourceClosed, res.Reason)
			assert.Equal(t, int64(len(payload)), res.Bytes)
			require.True(t, bytes.Equal(payload, dst.Bytes()), "mode %s iteration %d: output differs", mode, i)
		}
	}
}

func TestTaskLineModeWritesWholeLines(t *testing.T) {
	var writes []string
	dst := writerFunc(func(p []byte) (int, error) {
		writes = append(writes, string(p))
		return len(p), nil
	})

	task := &Task{
		Direction: StdoutOut,
		Src:       &chunkReader{r: strings.NewReader("{\"id\":1}\n{\"id\":2}\npartial"), size: 3},
		Dst:       dst,
		Options:   Options{Mode: ModeLine},
	}
	res := task.Run()

	require.NoError(t, res.Err)
	assert.Equal(t, []string{"{\"id\":1}\n", "{\"id\":2}\n", "partial"}, writes)
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestTaskClosesDestinationAtEOF(t *testing.T) {
	dst := &closeRecorder{}
	task := &Task{Direction: StdinIn, Src: strings.NewReader("hello\n"), Dst: dst, CloseDst: true}

	res := task.Run()

	assert.Equal(t, ReasonSourceClosed, res.Reason)
	assert.Equal(t, "hello\n", dst.String())
	assert.True(t, dst.closed, "child stdin must be closed when input ends")
}

func TestTaskClosesDestinationOnWriteFailure(t *testing.T) {
	dst := &failingCloser{}
	task := &Task{Direction: StdinIn, Src: strings.NewReader("data"), Dst: dst, CloseDst: true}
	res := task.Run()

	assert.Equal(t, ReasonWriteFailed, res.Reason)
	var ferr *ForwardingError
	require.ErrorAs(t, res.Err, &ferr)
	assert.Equal(t, StdinIn, ferr.Direction)
	assert.Equal(t, "write", ferr.Op)
	assert.True(t, dst.closed)
}

type failingCloser struct {
	failingWriter
	closed bool
}

func (f *failingCloser) Close() error {
	f.closed = true
	return nil
}

func TestTaskWriteFailureStopsTask(t *testing.T) {
	task := &Task{
		Direction: StdoutOut,
		Src:       &chunkReader{r: strings.NewReader("aaaabbbbcccc"), size: 4},
		Dst:       &failingWriter{after: 1},
	}

	res := task.Run()

	assert.Equal(t, ReasonWriteFailed, res.Reason)
	assert.Equal(t, int64(4), res.Bytes)
	assert.ErrorIs(t, res.Err, errSinkGone)
}

func TestTaskFlushesAfterEachWrite(t *testing.T) {
	var sink bytes.Buffer
	bw := bufio.NewWriterSize(&sink, 1<<20)

	pr, pw := io.Pipe()
	task := &Task{Direction: StdoutOut, Src: pr, Dst: bw}

	done := make(chan Result, 1)
	go func() { done <- task.Run() }()

	_, err := pw.Write([]byte("ping\n"))
	require.NoError(t, err)
	require.NoError(t, pw.Close())
	<-done

	// Without a flush the 1MiB buffer would still hold the data.
	assert.Equal(t, "ping\n", sink.String())
}

func TestTaskReadFromClosedFileIsCancelled(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, r.Close())

	task := &Task{Direction: StderrOut, Src: r, Dst: io.Discard}
	res := task.Run()

	assert.Equal(t, ReasonCancelled, res.Reason)
	assert.NoError(t, res.Err)
}

func TestTaskReadFailure(t *testing.T) {
	boom := errors.New("boom")
	task := &Task{Direction: StdoutOut, Src: io.MultiReader(strings.NewReader("ok"), errReader{boom}), Dst: io.Discard}

	res := task.Run()

	assert.Equal(t, ReasonReadFailed, res.Reason)
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, int64(2), res.Bytes)
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeRaw, false},
		{"raw", ModeRaw, false},
		{"line", ModeLine, false},
		{"json", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
