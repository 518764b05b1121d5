package httpcore

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid server configuration — tier 1 of the
// error taxonomy.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "httpcore: configuration error: " + e.Reason }

// ErrCustomVerificationWithoutMTLS is returned when a custom peer
// verification callback is supplied outside an mTLS transport-security
// mode.
var ErrCustomVerificationWithoutMTLS = &ConfigError{
	Reason: "customVerificationCallbackProvidedWhenNotUsingMTLS",
}

// WireError reports a transport/protocol-level failure — tier 2. The
// affected stream or connection is closed; sibling streams on the same
// connection (HTTP/2) continue.
type WireError struct {
	Err error
}

func (e *WireError) Error() string { return "httpcore: wire error: " + e.Err.Error() }
func (e *WireError) Unwrap() error { return e.Err }

// LimitError reports a Collect(upTo:) truncation surfaced to the handler —
// tier 3. Present for callers who choose a Collect wrapper that wants to
// distinguish "truncated" from "exact", even though this module's pinned
// Collect policy (stream.funcReader.Collect) truncates silently rather
// than returning this on its own; see the design notes Open Questions.
type LimitError struct {
	Limit, Actual int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("httpcore: limit exceeded: %d available, %d allowed", e.Actual, e.Limit)
}

// HandlerError wraps whatever error a user handler returned — tier 4. The
// dispatcher logs it and reconciles stream teardown;
// it does not itself emit a response.
type HandlerError struct {
	Err error
}

func (e *HandlerError) Error() string { return "httpcore: handler error: " + e.Err.Error() }
func (e *HandlerError) Unwrap() error { return e.Err }

// programError marks an unreachable-in-correct-code protocol violation —
// tier 5. It is only ever raised via panic (see panicProgramError) and
// recovered at the boundary of a single connection/stream goroutine so
// that one corrupted request cannot take down sibling connections; the
// violating stream is still aborted hard, scoped to the smallest blast
// radius that still holds.
type programError struct {
	msg string
}

func (e programError) Error() string { return "httpcore: program error: " + e.msg }

func panicProgramError(format string, args ...any) {
	panic(programError{msg: fmt.Sprintf(format, args...)})
}

// AsProgramError reports whether err (or something it wraps) is a
// recovered program error, letting a dispatcher distinguish "the stream
// must be hard-reset" from an ordinary handler error.
func AsProgramError(err error) bool {
	var pe programError
	return errors.As(err, &pe)
}

// ErrServerClosed is returned by Server.Addr after Shutdown/Serve has
// returned.
var ErrServerClosed = errors.New("httpcore: server closed")
