package procexec

import "sync"

// capWriter accumulates up to limit bytes, discarding everything past that.
// Write always reports success for the full input so the copy goroutine
// exec.Cmd runs internally never sees a short write and never stalls: the
// child keeps writing into a pipe that is always being drained, it just
// stops being remembered once the cap is hit.
type capWriter struct {
	limit int64

	mu      sync.Mutex
	buf     []byte
	written int64
}

func newCapWriter(limit int64) *capWriter {
	return &capWriter{limit: limit}
}

func (w *capWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.written += int64(len(p))
	if room := w.limit - int64(len(w.buf)); room > 0 {
		n := int64(len(p))
		if n > room {
			n = room
		}
		w.buf = append(w.buf, p[:n]...)
	}
	return len(p), nil
}

func (w *capWriter) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf
}

func (w *capWriter) Truncated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written > w.limit
}
