package conn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
)

// Result carries the outcome of one remote command execution. ExitCode is
// nil when the remote side closed the channel without delivering a status;
// that is an anomaly, not an exit code of zero. Duration is measured from
// the start of the connect-or-reuse step through completion.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode *int
	Duration time.Duration
}

// Execute runs command on target as a single non-interactive remote process,
// connecting (or reusing a session) first. A zero timeout means the wait is
// unbounded; a positive timeout, measured from the start of the call, aborts
// the caller's wait with ErrCommandTimeout without guaranteeing the remote
// process is killed.
// Exactly one attempt is made; there is no retry at any layer.
func (m *Manager) Execute(target, command string, timeout time.Duration) (*Result, error) {
	if target == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if command == "" {
		return nil, fmt.Errorf("command is required")
	}

	start := time.Now()

	// The timeout window opens here, so time spent connecting (or finding
	// a session to reuse) counts against it.
	ctx, cancel := execContext(start, timeout)
	defer cancel()

	sess, _, _, err := m.connect(target)
	if err != nil {
		return nil, err
	}

	ch, err := sess.Client.NewSession()
	if err != nil {
		// The transport died underneath us; leave the entry for an
		// explicit disconnect but stop offering it for reuse.
		m.registry.MarkDisconnected(sess.ID)
		return nil, &ExecStartError{Target: target, Err: err}
	}
	defer ch.Close()

	stdout, err := ch.StdoutPipe()
	if err != nil {
		return nil, &ExecStartError{Target: target, Err: err}
	}
	stderr, err := ch.StderrPipe()
	if err != nil {
		return nil, &ExecStartError{Target: target, Err: err}
	}

	if err := ch.Start(command); err != nil {
		return nil, &ExecStartError{Target: target, Err: err}
	}

	// Both streams are drained continuously and independently; bytes are
	// accumulated without bound, in arrival order within each stream.
	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&outBuf, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&errBuf, stderr)
		return err
	})

	done := make(chan error, 1)
	go func() {
		drainErr := g.Wait()
		done <- combineWait(ch.Wait(), drainErr)
	}()

	select {
	case waitErr := <-done:
		exitCode, err := exitCodeOf(waitErr)
		if err != nil {
			m.registry.MarkDisconnected(sess.ID)
			return nil, &ConnectionError{Target: target, Err: err}
		}
		res := &Result{
			Stdout:   outBuf.String(),
			Stderr:   errBuf.String(),
			ExitCode: exitCode,
			Duration: time.Since(start),
		}
		slog.Debug("command finished", "server", target, "duration", res.Duration)
		return res, nil
	case <-ctx.Done():
		slog.Warn("command timed out", "server", target, "timeout", timeout)
		return nil, fmt.Errorf("command on %q after %s: %w", target, timeout, ErrCommandTimeout)
	}
}

// execContext builds the context bounding one execution. The deadline is
// anchored at start rather than at arming time; a non-positive timeout
// leaves the wait unbounded.
func execContext(start time.Time, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.Background(), func() {}
	}
	return context.WithDeadline(context.Background(), start.Add(timeout))
}

// combineWait folds the stream-drain outcome into the channel Wait outcome.
// A drain failure with a clean exit means output was truncated, so it is
// reported as the error; alongside a failed exit it is only logged.
func combineWait(waitErr, drainErr error) error {
	if drainErr == nil {
		return waitErr
	}
	if waitErr == nil {
		return fmt.Errorf("reading command output: %w", drainErr)
	}
	slog.Warn("output stream ended with an error", "err", drainErr)
	return waitErr
}

// exitCodeOf maps the Wait outcome to an exit code: a numeric code on normal
// or failed exit, nil when the remote closed without delivering one, and an
// error for genuine transport faults.
func exitCodeOf(waitErr error) (*int, error) {
	if waitErr == nil {
		code := 0
		return &code, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(waitErr, &exitErr) {
		code := exitErr.ExitStatus()
		return &code, nil
	}

	var missing *ssh.ExitMissingError
	if errors.As(waitErr, &missing) {
		return nil, nil
	}

	return nil, waitErr
}
