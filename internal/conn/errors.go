package conn

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTarget is returned by Connect when no server name was given and
	// no default server is configured.
	ErrNoTarget = errors.New("no server specified and no default server configured")

	// ErrCommandTimeout is returned by Execute when the remote command did
	// not complete within the configured wall-clock timeout. The remote
	// process is not guaranteed to have been killed.
	ErrCommandTimeout = errors.New("command execution timed out")
)

// UnknownServerError reports a target name with no matching entry in the
// server store.
type UnknownServerError struct {
	Name string
}

func (e *UnknownServerError) Error() string {
	return fmt.Sprintf("unknown server %q", e.Name)
}

// ConnectionError reports a transport or authentication failure, carrying the
// underlying diagnostic.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %q: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ExecStartError reports a failure to negotiate the remote exec itself,
// as opposed to a timeout or a non-zero exit of the started process.
type ExecStartError struct {
	Target string
	Err    error
}

func (e *ExecStartError) Error() string {
	return fmt.Sprintf("failed to start command on %q: %v", e.Target, e.Err)
}

func (e *ExecStartError) Unwrap() error { return e.Err }
