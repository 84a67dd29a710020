package transcode

import (
	"strings"
	"sync"
)

const tailBufferBytes = 64 * 1024

// tailWriter keeps the trailing bytes written to it.
type tailWriter struct {
	mu  sync.Mutex
	buf []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	if excess := len(w.buf) - tailBufferBytes; excess > 0 {
		w.buf = append(w.buf[:0], w.buf[excess:]...)
	}
	return len(p), nil
}

// Lines returns at most n trailing non-empty lines.
func (w *tailWriter) Lines(n int) string {
	w.mu.Lock()
	text := string(w.buf)
	w.mu.Unlock()
	return TailLines(text, n)
}

// TailLines returns the last n non-empty lines of text joined by newlines.
func TailLines(text string, n int) string {
	if n <= 0 {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r", "\n"), "\n")
	out := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(out) < n; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return strings.Join(out, "\n")
}
