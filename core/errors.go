package core

import "errors"

// Error taxonomy of the host orchestration subsystem. Callers classify with
// errors.Is; the remote client converts these into DelegationResult error
// details at the dispatch boundary so orchestration logic never branches on
// raw transport errors.
var (
	// ErrAgentUnreachable indicates a connection failure or deadline expiry
	// while resolving or invoking a remote agent. Safe to retry.
	ErrAgentUnreachable = errors.New("agent unreachable")

	// ErrProtocolMismatch indicates the remote agent returned an unparseable
	// or incompatible capability card during resolution.
	ErrProtocolMismatch = errors.New("protocol mismatch")

	// ErrProtocolError indicates a malformed frame or unexpected payload
	// shape from an otherwise reachable agent.
	ErrProtocolError = errors.New("protocol error")

	// ErrTaskRejected indicates the remote agent explicitly refused the
	// task. Never retried.
	ErrTaskRejected = errors.New("task rejected")

	// ErrTimeout indicates a caller-supplied timeout elapsed before the
	// operation settled.
	ErrTimeout = errors.New("timeout")

	// ErrStorageUnavailable indicates conversation memory could not be read
	// or written. This is the only error class fatal to request handling.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNoViableAgent indicates no registered agent matched a request. It
	// is always resolved internally with a degraded direct answer and never
	// reaches the host caller.
	ErrNoViableAgent = errors.New("no viable agent")

	// ErrAgentNotFound indicates a registry lookup for an address or name
	// that was never registered.
	ErrAgentNotFound = errors.New("agent not found")
)
