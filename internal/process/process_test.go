package process

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestStart(t *testing.T) {
	t.Parallel()

	t.Run("empty command is rejected", func(t *testing.T) {
		t.Parallel()
		if _, err := Start("svc", t.TempDir(), nil, nil, nil); err == nil {
			t.Fatal("expected error for empty command")
		}
	})

	t.Run("missing binary fails with closed logs", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		_, err := Start("svc", dir, []string{"definitely-not-a-binary-xyz"}, nil, nil)
		if err == nil {
			t.Fatal("expected error for missing binary")
		}
		// Log files are created before the exec attempt and must still exist.
		if _, statErr := os.Stat(dir + "/svc-stdout.log"); statErr != nil {
			t.Fatalf("stdout log missing after failed start: %v", statErr)
		}
	})

	t.Run("captures stdout and extra env", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		p, err := Start("svc", dir, []string{"sh", "-c", "echo value is $JESTER_TEST_VAR"},
			[]string{"JESTER_TEST_VAR=hello"}, nil)
		if err != nil {
			t.Fatalf("start: %v", err)
		}

		select {
		case <-p.Exited():
		case <-time.After(5 * time.Second):
			t.Fatal("process did not exit")
		}
		if err := p.Stop(time.Second); err != nil {
			t.Fatalf("stop exited process: %v", err)
		}

		out, err := os.ReadFile(p.StdoutPath())
		if err != nil {
			t.Fatalf("read stdout log: %v", err)
		}
		if !strings.Contains(string(out), "value is hello") {
			t.Fatalf("stdout log missing expected output: %q", out)
		}
	})
}

func TestProcess_Stop(t *testing.T) {
	t.Parallel()

	t.Run("terminates a long-running process", func(t *testing.T) {
		t.Parallel()
		p, err := Start("sleeper", t.TempDir(), []string{"sleep", "60"}, nil, nil)
		if err != nil {
			t.Fatalf("start: %v", err)
		}

		start := time.Now()
		if err := p.Stop(10 * time.Second); err != nil {
			t.Fatalf("stop: %v", err)
		}
		if elapsed := time.Since(start); elapsed > 5*time.Second {
			t.Fatalf("stop took too long: %v", elapsed)
		}

		select {
		case <-p.Exited():
		default:
			t.Fatal("process still running after Stop")
		}
	})

	t.Run("escalates to SIGKILL for a process ignoring SIGTERM", func(t *testing.T) {
		t.Parallel()
		p, err := Start("stubborn", t.TempDir(),
			[]string{"sh", "-c", "trap '' TERM; sleep 60"}, nil, nil)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		// Give the shell a moment to install the trap.
		time.Sleep(200 * time.Millisecond)

		if err := p.Stop(8 * time.Second); err != nil {
			t.Fatalf("stop: %v", err)
		}
		select {
		case <-p.Exited():
		default:
			t.Fatal("process survived SIGKILL escalation")
		}
	})

	t.Run("idempotent on an exited process", func(t *testing.T) {
		t.Parallel()
		p, err := Start("quick", t.TempDir(), []string{"true"}, nil, nil)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		<-p.Exited()
		if err := p.Stop(time.Second); err != nil {
			t.Fatalf("first stop: %v", err)
		}
	})
}
