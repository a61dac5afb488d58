package runner

import (
	"bytes"
	"strings"
	"sync"
)

// LogTailLines is how many trailing output lines a step retains for the
// build history.
const LogTailLines = 200

// tail is a fixed-capacity ring of the most recent lines appended to it.
// Safe for concurrent appenders; stdout and stderr share one tail.
type tail struct {
	mu    sync.Mutex
	lines []string
	start int
	count int
}

func newTail(capacity int) *tail {
	return &tail{lines: make([]string, capacity)}
}

func (t *tail) Append(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count < len(t.lines) {
		t.lines[(t.start+t.count)%len(t.lines)] = line
		t.count++
		return
	}
	t.lines[t.start] = line
	t.start = (t.start + 1) % len(t.lines)
}

// String joins the retained lines oldest-first.
func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	for i := 0; i < t.count; i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.lines[(t.start+i)%len(t.lines)])
	}
	return b.String()
}

// lineWriter splits a byte stream into lines for the emit callback. exec
// serializes writes per stream, so only emit itself needs to be safe for
// concurrent use.
type lineWriter struct {
	buf  []byte
	emit func(string)
}

func newLineWriter(emit func(string)) *lineWriter {
	return &lineWriter{emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(strings.TrimRight(string(w.buf[:i]), "\r"))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush emits a trailing unterminated line, if any. Call after the process
// has exited.
func (w *lineWriter) Flush() {
	if len(w.buf) > 0 {
		w.emit(string(w.buf))
		w.buf = nil
	}
}
