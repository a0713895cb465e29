package supervise

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const (
	// maxOutputBytes caps the combined output captured from an agent process.
	maxOutputBytes = 1 << 20 // 1 MiB

	// terminationGracePeriod is the time we wait after SIGTERM before SIGKILL.
	terminationGracePeriod = 5 * time.Second
)

// RunRequest describes one agent process invocation.
type RunRequest struct {
	Executable string
	Model      string
	Prompt     string
	WorkDir    string
}

// RunResult carries the combined output and exit code of a finished process.
// TimedOut is set when termination was forced by the session deadline.
type RunResult struct {
	Output   string
	ExitCode int
	TimedOut bool
}

// AgentRunner launches external agent processes. Swappable for tests.
type AgentRunner interface {
	// Available reports whether the agent executable can be launched at all.
	Available(executable string) bool

	// Run launches the process with the prompt delivered via stdin and blocks
	// until it exits or ctx is done. onStart fires once the process is
	// confirmed running.
	Run(ctx context.Context, req RunRequest, onStart func()) (RunResult, error)
}

// execRunner is the production AgentRunner backed by os/exec.
type execRunner struct {
	logger *slog.Logger
}

// NewExecRunner returns the production runner.
func NewExecRunner(logger *slog.Logger) AgentRunner {
	return &execRunner{logger: logger}
}

func (r *execRunner) Available(executable string) bool {
	_, err := exec.LookPath(executable)
	return err == nil
}

func (r *execRunner) Run(ctx context.Context, req RunRequest, onStart func()) (RunResult, error) {
	// Don't use CommandContext: termination is managed explicitly so the
	// process gets a SIGTERM grace period before SIGKILL.
	cmd := exec.Command(req.Executable,
		"--model", req.Model,
		"--allowed-tools", "Read,Write,Edit,Bash",
		"--print",
	)
	if req.WorkDir != "" {
		cmd.Dir = req.WorkDir
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return RunResult{}, fmt.Errorf("create stdin pipe: %w", err)
	}

	// Combined stdout+stderr, interleaved the way the agent produced it.
	var output bytes.Buffer
	sink := &boundedWriter{w: &output, limit: maxOutputBytes}
	cmd.Stdout = sink
	cmd.Stderr = sink

	r.logger.Debug("launching agent process", "executable", req.Executable, "model", req.Model)

	if err := cmd.Start(); err != nil {
		return RunResult{}, fmt.Errorf("start process: %w", err)
	}
	if onStart != nil {
		onStart()
	}

	// Deliver the prompt, then close stdin so the agent knows input is done.
	writeErr := make(chan error, 1)
	go func() {
		defer stdin.Close()
		if _, err := io.WriteString(stdin, req.Prompt); err != nil {
			writeErr <- fmt.Errorf("write prompt: %w", err)
			return
		}
		writeErr <- nil
	}()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		r.terminate(cmd, waitErr)
		return RunResult{
			Output:   output.String(),
			ExitCode: -1,
			TimedOut: ctx.Err() == context.DeadlineExceeded,
		}, ctx.Err()

	case err := <-waitErr:
		// A prompt-write failure (EPIPE from an agent that exited without
		// draining stdin) is not fatal on its own: the process already ran
		// to completion, so its output and exit code are the truth.
		if werr := <-writeErr; werr != nil {
			r.logger.Debug("prompt write failed after process exit", "error", werr)
		}

		exitCode := 0
		if err != nil {
			exitErr, ok := err.(*exec.ExitError)
			if !ok {
				return RunResult{Output: output.String(), ExitCode: -1},
					fmt.Errorf("wait for process: %w", err)
			}
			exitCode = exitErr.ExitCode()
			r.logger.Debug("agent process exited non-zero", "exit_code", exitCode)
		}
		return RunResult{Output: output.String(), ExitCode: exitCode}, nil
	}
}

// terminate sends SIGTERM, waits out the grace period, then SIGKILLs.
func (r *execRunner) terminate(cmd *exec.Cmd, waitErr <-chan error) {
	if cmd.Process == nil {
		return
	}

	r.logger.Warn("terminating agent process", "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		r.logger.Error("failed to send SIGTERM", "error", err)
	}

	grace := time.NewTimer(terminationGracePeriod)
	defer grace.Stop()

	select {
	case <-waitErr:
		// Process exited within the grace period.
	case <-grace.C:
		r.logger.Warn("agent process ignored SIGTERM, sending SIGKILL")
		if err := cmd.Process.Kill(); err != nil {
			r.logger.Error("failed to send SIGKILL", "error", err)
		}
		<-waitErr
	}
}

// boundedWriter discards writes past limit. Shared by stdout and stderr, so
// writes are serialized.
type boundedWriter struct {
	mu    sync.Mutex
	w     *bytes.Buffer
	limit int
}

func (b *boundedWriter) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if b.w.Len() >= b.limit {
		return n, nil // pretend success, drop the bytes
	}
	if remaining := b.limit - b.w.Len(); len(p) > remaining {
		p = p[:remaining]
	}
	if _, err := b.w.Write(p); err != nil {
		return 0, err
	}
	return n, nil
}
