package camera

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunnerReportsExitError(t *testing.T) {
	exited := make(chan error, 1)
	r, err := startRunner("sh", []string{"-c", "exit 3"}, discardLogger(), nil, func(err error) {
		exited <- err
	})
	if err != nil {
		t.Fatalf("startRunner: %v", err)
	}

	select {
	case waitErr := <-exited:
		if waitErr == nil {
			t.Fatal("onExit got nil for a failing process")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("process never exited")
	}

	if !r.exited() {
		t.Error("exited() = false after onExit fired")
	}
	if exitErr := r.exitError(); exitErr == nil {
		t.Error("exitError() = nil, want the wait failure")
	} else if !strings.Contains(exitErr.Error(), "exit status 3") {
		t.Errorf("exitError() = %v, want exit status 3", exitErr)
	}
}

func TestRunnerCleanExit(t *testing.T) {
	var out bytes.Buffer
	exited := make(chan error, 1)
	r, err := startRunner("sh", []string{"-c", "printf hello"}, discardLogger(), &out, func(err error) {
		exited <- err
	})
	if err != nil {
		t.Fatalf("startRunner: %v", err)
	}

	select {
	case waitErr := <-exited:
		if waitErr != nil {
			t.Fatalf("onExit got %v for a clean exit", waitErr)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("process never exited")
	}

	if exitErr := r.exitError(); exitErr != nil {
		t.Errorf("exitError() = %v, want nil", exitErr)
	}
	if out.String() != "hello" {
		t.Errorf("stdout = %q, want %q", out.String(), "hello")
	}
}
