package logwatch

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultFilePollInterval is the interval at which a file watcher checks the
// tailed file for appended data after hitting EOF.
const DefaultFilePollInterval = 100 * time.Millisecond

// stopDrainTimeout bounds how long Stop waits for the tail goroutine to exit
// after the source has been closed. The goroutine should unblock almost
// immediately once its Read returns; this is a safety net against stuck I/O.
const stopDrainTimeout = 5 * time.Second

// Watcher accumulates lines read from a backend's output.
//
// Exactly one goroutine (started by the constructors) appends to the buffer;
// any number of goroutines may call Lines or Contains concurrently. The
// buffer only ever grows; Lines returns the current accumulated snapshot,
// not a continuation, so re-reading is always safe.
type Watcher struct {
	name string
	log  *slog.Logger

	mu    sync.Mutex
	lines []string

	stopped atomic.Bool
	closeFn func() error
	done    chan struct{}
}

// Start begins watching a line stream. The watcher owns src and closes it on
// Stop; closing src is also what unblocks the tail goroutine when the stream
// does not end on its own (e.g. a followed pod log stream).
// If logger is nil, slog.Default() is used.
func Start(name string, src io.ReadCloser, logger *slog.Logger) *Watcher {
	w := newWatcher(name, src.Close, logger)
	go w.tailStream(src)
	return w
}

// StartFile begins watching a file that another process appends to. The file
// is re-read from the last position at every interval, so lines written after
// Start are still observed. A non-positive interval selects
// DefaultFilePollInterval. If logger is nil, slog.Default() is used.
func StartFile(name, path string, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultFilePollInterval
	}
	w := newWatcher(name, func() error { return nil }, logger)
	go w.tailFile(path, interval)
	return w
}

func newWatcher(name string, closeFn func() error, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		name:    name,
		log:     logger.With("watcher", name),
		closeFn: closeFn,
		done:    make(chan struct{}),
	}
}

// Lines returns a copy of the accumulated buffer. The copy is a finite
// snapshot of everything observed so far; callers may retain or mutate it.
func (w *Watcher) Lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.lines))
	copy(out, w.lines)
	return out
}

// Contains reports whether any accumulated line contains substr.
// An empty substr matches as soon as at least one line has been observed.
func (w *Watcher) Contains(substr string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, line := range w.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// Stop detaches the watcher: it closes the underlying source and waits for
// the tail goroutine to exit. The accumulated buffer remains readable after
// Stop. Safe to call more than once.
func (w *Watcher) Stop() {
	if !w.stopped.CompareAndSwap(false, true) {
		return
	}
	if err := w.closeFn(); err != nil {
		w.log.Debug("close watched source", "error", err)
	}

	t := time.NewTimer(stopDrainTimeout)
	defer t.Stop()
	select {
	case <-w.done:
	case <-t.C:
		w.log.Warn("timed out waiting for tail goroutine to exit")
	}
}

// append records a single line in the buffer.
func (w *Watcher) append(line string) {
	w.mu.Lock()
	w.lines = append(w.lines, line)
	w.mu.Unlock()
}

// tailStream reads src line-wise until EOF, read error, or Stop closes src.
func (w *Watcher) tailStream(src io.ReadCloser) {
	defer close(w.done)

	scanner := bufio.NewScanner(src)
	// Backend log lines can exceed bufio's 64KiB default (stack traces,
	// JSON blobs); give the scanner room before it errors out.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		w.append(scanner.Text())
	}
	if err := scanner.Err(); err != nil && !w.stopped.Load() {
		w.log.Debug("log stream ended", "error", err)
	}
}

// tailFile polls path for appended data, resuming from the previous offset
// on every tick. A missing file is tolerated: the backend may not have
// created it yet when watching starts.
func (w *Watcher) tailFile(path string, interval time.Duration) {
	defer close(w.done)

	var offset int64
	var partial strings.Builder

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		offset = w.readFrom(path, offset, &partial)
		if w.stopped.Load() {
			// Flush a trailing unterminated line so the final buffer
			// reflects everything written before Stop.
			if partial.Len() > 0 {
				w.append(partial.String())
			}
			return
		}
		<-ticker.C
	}
}

// readFrom reads appended data from path starting at offset and returns the
// new offset. Lines are split on '\n'; an unterminated tail is carried in
// partial until its newline arrives.
func (w *Watcher) readFrom(path string, offset int64, partial *strings.Builder) int64 {
	f, err := os.Open(path)
	if err != nil {
		return offset
	}
	defer func() { _ = f.Close() }()

	if info, err := f.Stat(); err != nil || info.Size() < offset {
		// Truncated or unstatable file: start over from the beginning.
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset
	}

	reader := bufio.NewReader(f)
	for {
		chunk, err := reader.ReadString('\n')
		offset += int64(len(chunk))
		if err != nil {
			partial.WriteString(chunk)
			return offset
		}
		partial.WriteString(strings.TrimSuffix(chunk, "\n"))
		w.append(partial.String())
		partial.Reset()
	}
}
