package camera

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// runner supervises one subprocess: stdout streams into the supplied writer,
// stderr lines are re-leveled through the ffmpeg log parser, and exit is
// delivered once through onExit.
type runner struct {
	cmd    *exec.Cmd
	logger *slog.Logger
	done   chan struct{}

	mu      sync.Mutex
	exitErr error
}

// startRunner launches name with args. onExit runs on the wait goroutine
// after the process and its stderr drain finish; it must not block.
func startRunner(name string, args []string, logger *slog.Logger, stdout io.Writer, onExit func(error)) (*runner, error) {
	cmd := exec.Command(name, args...)
	// Own process group so signals do not leak to us.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if stdout != nil {
		cmd.Stdout = stdout
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	r := &runner{
		cmd:    cmd,
		logger: logger,
		done:   make(chan struct{}),
	}
	logger.Info("Process started", "pid", cmd.Process.Pid, "command", name+" "+strings.Join(args, " "))

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		r.streamStderr(stderr)
	}()
	go func() {
		<-stderrDone
		err := cmd.Wait()
		r.mu.Lock()
		r.exitErr = err
		r.mu.Unlock()
		close(r.done)
		r.logger.Info("Process exited", "pid", cmd.Process.Pid, "exit_code", exitCodeFromError(err))
		if onExit != nil {
			onExit(err)
		}
	}()
	return r, nil
}

// streamStderr re-logs subprocess output at the level the line carries.
func (r *runner) streamStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		level, msg := parseFFmpegLine(line)
		r.logger.Log(context.Background(), level, msg)
	}
}

func (r *runner) signal(sig syscall.Signal) error {
	if r.cmd.Process == nil {
		return errors.New("process not started")
	}
	return r.cmd.Process.Signal(sig)
}

// exited reports whether the process has finished.
func (r *runner) exited() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// exitError returns the wait error after exit.
func (r *runner) exitError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exitErr
}

// stop asks the process to finish with SIGINT, escalating to SIGKILL after
// the timeout, and blocks until it is gone.
func (r *runner) stop(timeout time.Duration) {
	if r.exited() {
		return
	}
	if err := r.signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		r.logger.Warn("Failed to send SIGINT", "error", err)
	}
	select {
	case <-r.done:
		return
	case <-time.After(timeout):
		r.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", timeout)
	}
	if err := r.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		r.logger.Error("Failed to kill process", "error", err)
	}
	select {
	case <-r.done:
	case <-time.After(timeout):
		r.logger.Error("Process did not exit after kill")
	}
}

func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// parseFFmpegLine extracts the log level from ffmpeg output. With
// -loglevel level+info lines look like "[info] message" or
// "[component @ 0x...] [level] message"; the component prefix is kept, the
// level bracket stripped.
func parseFFmpegLine(line string) (slog.Level, string) {
	if len(line) < 3 || line[0] != '[' {
		return slog.LevelInfo, line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return slog.LevelInfo, line
	}

	bracket := line[1:end]
	if lvl, ok := ffmpegLevel(bracket); ok {
		return lvl, line[end+2:]
	}

	component := line[:end+2]
	rest := line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if nextEnd := strings.Index(rest, "] "); nextEnd != -1 {
			if lvl, ok := ffmpegLevel(rest[1:nextEnd]); ok {
				return lvl, component + rest[nextEnd+2:]
			}
		}
	}

	return slog.LevelInfo, line
}

func ffmpegLevel(s string) (slog.Level, bool) {
	switch s {
	case "panic", "fatal", "error":
		return slog.LevelError, true
	case "warning":
		return slog.LevelWarn, true
	case "info":
		return slog.LevelInfo, true
	case "verbose", "debug", "trace":
		return slog.LevelDebug, true
	}
	return slog.LevelInfo, false
}
