package logwatch

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// waitFor polls cond until it returns true or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_Stream(t *testing.T) {
	t.Parallel()

	t.Run("accumulates lines and snapshots", func(t *testing.T) {
		t.Parallel()
		pr, pw := io.Pipe()
		w := Start("svc", pr, nil)
		defer w.Stop()

		if _, err := pw.Write([]byte("first line\nsecond line\n")); err != nil {
			t.Fatalf("write to pipe: %v", err)
		}
		if !waitFor(t, 2*time.Second, func() bool { return len(w.Lines()) == 2 }) {
			t.Fatalf("expected 2 lines, got %v", w.Lines())
		}

		snapshot := w.Lines()
		if snapshot[0] != "first line" || snapshot[1] != "second line" {
			t.Fatalf("unexpected snapshot: %v", snapshot)
		}

		// Re-reading returns the accumulated buffer, not a continuation.
		again := w.Lines()
		if len(again) != len(snapshot) {
			t.Fatalf("second read differs from first: %v vs %v", again, snapshot)
		}
	})

	t.Run("contains gates on observed output", func(t *testing.T) {
		t.Parallel()
		pr, pw := io.Pipe()
		w := Start("svc", pr, nil)
		defer w.Stop()

		if w.Contains("started in") {
			t.Fatal("Contains reported a match before any output")
		}
		if _, err := pw.Write([]byte("app started in 0.8s\n")); err != nil {
			t.Fatalf("write to pipe: %v", err)
		}
		if !waitFor(t, 2*time.Second, func() bool { return w.Contains("started in") }) {
			t.Fatal("Contains never observed the expected substring")
		}
	})

	t.Run("stop unblocks tail and keeps buffer", func(t *testing.T) {
		t.Parallel()
		pr, pw := io.Pipe()
		w := Start("svc", pr, nil)

		if _, err := pw.Write([]byte("kept\n")); err != nil {
			t.Fatalf("write to pipe: %v", err)
		}
		waitFor(t, 2*time.Second, func() bool { return len(w.Lines()) == 1 })

		w.Stop()
		w.Stop() // idempotent

		if got := w.Lines(); len(got) != 1 || got[0] != "kept" {
			t.Fatalf("buffer lost after Stop: %v", got)
		}
	})
}

func TestWatcher_File(t *testing.T) {
	t.Parallel()

	t.Run("observes appended lines", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "svc-stdout.log")
		if err := os.WriteFile(path, []byte("early\n"), 0o644); err != nil {
			t.Fatalf("seed log file: %v", err)
		}

		w := StartFile("svc", path, 10*time.Millisecond, nil)
		defer w.Stop()

		if !waitFor(t, 2*time.Second, func() bool { return w.Contains("early") }) {
			t.Fatal("never observed seed line")
		}

		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			t.Fatalf("open log for append: %v", err)
		}
		if _, err := f.WriteString("ready to serve\n"); err != nil {
			t.Fatalf("append: %v", err)
		}
		_ = f.Close()

		if !waitFor(t, 2*time.Second, func() bool { return w.Contains("ready to serve") }) {
			t.Fatalf("never observed appended line, buffer: %v", w.Lines())
		}
	})

	t.Run("tolerates a file that does not exist yet", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "late.log")
		w := StartFile("svc", path, 10*time.Millisecond, nil)
		defer w.Stop()

		time.Sleep(30 * time.Millisecond)
		if err := os.WriteFile(path, []byte("late arrival\n"), 0o644); err != nil {
			t.Fatalf("create log file: %v", err)
		}
		if !waitFor(t, 2*time.Second, func() bool { return w.Contains("late arrival") }) {
			t.Fatal("never observed line from late-created file")
		}
	})
}
