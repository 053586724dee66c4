package supervisor

import (
	"bytes"
	"strings"
	"sync"
)

const (
	maxLineBytes = 64 << 10
	tailBytes    = 4096
)

// readinessWatcher receives the child's stdout and stderr. It closes ready
// the first time marker appears, even when the marker is split across writes,
// and forwards complete lines to onLine.
type readinessWatcher struct {
	marker []byte
	onLine func(string)

	mu      sync.Mutex
	carry   []byte // last len(marker)-1 bytes of the previous write
	partial []byte // unterminated line
	recent  []byte // last tailBytes of output, for error messages
	once    sync.Once
	ready   chan struct{}
}

func newReadinessWatcher(marker string, onLine func(string)) *readinessWatcher {
	w := &readinessWatcher{marker: []byte(marker), onLine: onLine, ready: make(chan struct{})}
	if len(w.marker) == 0 {
		w.markReady()
	}
	return w
}

// Ready is closed once the marker has been seen.
func (w *readinessWatcher) Ready() <-chan struct{} { return w.ready }

func (w *readinessWatcher) markReady() { w.once.Do(func() { close(w.ready) }) }

func (w *readinessWatcher) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if n := len(w.marker); n > 0 {
		buf := make([]byte, 0, len(w.carry)+len(p))
		buf = append(append(buf, w.carry...), p...)
		if bytes.Contains(buf, w.marker) {
			w.markReady()
		}
		keep := n - 1
		if len(buf) < keep {
			keep = len(buf)
		}
		w.carry = append(w.carry[:0], buf[len(buf)-keep:]...)
	}

	w.recent = append(w.recent, p...)
	if len(w.recent) > tailBytes {
		w.recent = append(w.recent[:0:0], w.recent[len(w.recent)-tailBytes:]...)
	}

	if w.onLine != nil {
		w.partial = append(w.partial, p...)
		for {
			i := bytes.IndexByte(w.partial, '\n')
			if i < 0 {
				break
			}
			if line := strings.TrimRight(string(w.partial[:i]), "\r"); line != "" {
				w.onLine(line)
			}
			w.partial = w.partial[i+1:]
		}
		if len(w.partial) > maxLineBytes {
			w.onLine(string(w.partial))
			w.partial = nil
		}
	}
	return len(p), nil
}

// Tail returns the last few KiB of output, trimmed.
func (w *readinessWatcher) Tail() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.TrimSpace(string(w.recent))
}
