package procexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"otto/internal/shared/logging"
)

// ErrTimeout marks a process that was killed at its deadline.
var ErrTimeout = errors.New("process execution timed out")

// Request describes one bounded process execution. Argv is passed directly
// to the OS, never through a shell interpreter; callers are expected to have
// validated it against the command policy already.
type Request struct {
	Argv    []string
	Dir     string
	Env     []string
	Stdin   []byte
	Timeout time.Duration

	// MaxStreamBytes caps each captured stream independently. Zero means
	// no cap (callers normally pass the policy ceiling).
	MaxStreamBytes int
}

// Result carries the two output streams independently plus exit status.
type Result struct {
	Stdout          string
	Stderr          string
	ExitCode        int
	Elapsed         time.Duration
	TimedOut        bool
	StdoutTruncated bool
	StderrTruncated bool
}

// Runner executes argv-form commands with hard bounds.
type Runner struct {
	logger logging.Logger
}

// NewRunner builds a runner; logger may be nil.
func NewRunner(logger logging.Logger) *Runner {
	return &Runner{logger: logging.OrNop(logger)}
}

// Run spawns the process in its own process group, captures stdout and
// stderr independently, and on deadline or cancellation kills the whole
// group rather than waiting; children cannot outlive the action.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Argv) == 0 {
		return nil, fmt.Errorf("procexec: empty argv")
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := exec.Command(req.Argv[0], req.Argv[1:]...)
	cmd.Dir = req.Dir
	if req.Env != nil {
		cmd.Env = req.Env
	}
	if len(req.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(req.Stdin)
	}

	var stdout, stderr cappedBuffer
	stdout.limit = req.MaxStreamBytes
	stderr.limit = req.MaxStreamBytes
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// A fresh process group lets the deadline kill grandchildren too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("procexec: start %s: %w", req.Argv[0], err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	timedOut := false
	var err error
	select {
	case err = <-waitErr:
	case <-runCtx.Done():
		timedOut = errors.Is(runCtx.Err(), context.DeadlineExceeded)
		killGroup(cmd)
		err = <-waitErr
	}
	elapsed := time.Since(started)

	result := &Result{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		Elapsed:         elapsed,
		TimedOut:        timedOut,
		StdoutTruncated: stdout.truncated,
		StderrTruncated: stderr.truncated,
	}

	switch {
	case timedOut:
		result.ExitCode = -1
		r.logger.Warn("Process %s killed after %s (timeout)", req.Argv[0], elapsed)
		return result, ErrTimeout
	case runCtx.Err() != nil:
		result.ExitCode = -1
		return result, runCtx.Err()
	case err != nil:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("procexec: wait %s: %w", req.Argv[0], err)
	default:
		result.ExitCode = 0
		return result, nil
	}
}

// killGroup terminates the process and its whole group. The negative pid
// addresses the group; the direct kill is the fallback when the group is
// already gone.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
}

// cappedBuffer keeps at most limit bytes and remembers whether it dropped any.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if b.limit <= 0 {
		b.buf.Write(p)
		return n, nil
	}
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = true
		return n, nil
	}
	if len(p) > remaining {
		p = p[:remaining]
		b.truncated = true
	}
	b.buf.Write(p)
	return n, nil
}

func (b *cappedBuffer) String() string { return b.buf.String() }
