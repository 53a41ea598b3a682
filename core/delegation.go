package core

import (
	"context"
	"errors"
)

// DelegationStatus is the terminal outcome class of one dispatched sub-task.
type DelegationStatus string

const (
	// DelegationCompleted means the agent produced a usable payload.
	DelegationCompleted DelegationStatus = "completed"
	// DelegationFailed means the exchange settled without a usable payload.
	DelegationFailed DelegationStatus = "failed"
	// DelegationTimedOut means the caller-supplied deadline elapsed first.
	DelegationTimedOut DelegationStatus = "timedOut"
)

// DelegationResult is the outcome of one task dispatched to one remote
// agent. Results are transient: aggregation consumes them in the same run
// and only derived turns are persisted.
type DelegationResult struct {
	AgentAddress string
	AgentName    string
	TaskID       string
	Status       DelegationStatus
	Payload      string
	// AwaitingInput marks a completed exchange whose terminal frame asked
	// the user for more input. The task stays outstanding and its id remains
	// recorded in the session so the follow-up utterance reuses it.
	AwaitingInput bool
	ErrorDetail   *ErrorDetail
}

// Succeeded reports whether the delegation produced a usable payload.
func (r DelegationResult) Succeeded() bool {
	return r.Status == DelegationCompleted
}

// ErrorDetail describes a delegation or wire failure in transportable form.
// Code is one of the ErrorCode constants; Retryable marks classes where an
// idempotent replay with the same task id is safe.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Error codes carried in delegation results and wire error frames. Remote
// agents may report ErrorCodeInternal for faults of their own; the host
// passes it through without reclassifying.
const (
	ErrorCodeAgentUnreachable = "agent_unreachable"
	ErrorCodeProtocolMismatch = "protocol_mismatch"
	ErrorCodeProtocolError    = "protocol_error"
	ErrorCodeTaskRejected     = "task_rejected"
	ErrorCodeTimeout          = "timeout"
	ErrorCodeCanceled         = "canceled"
	ErrorCodeInternal         = "internal_error"
)

// DetailFromError maps err onto the error taxonomy. A nil err maps to nil.
func DetailFromError(err error) *ErrorDetail {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		return &ErrorDetail{Code: ErrorCodeTimeout, Message: err.Error(), Retryable: true}
	case errors.Is(err, context.Canceled):
		return &ErrorDetail{Code: ErrorCodeCanceled, Message: err.Error()}
	case errors.Is(err, ErrAgentUnreachable):
		return &ErrorDetail{Code: ErrorCodeAgentUnreachable, Message: err.Error(), Retryable: true}
	case errors.Is(err, ErrTaskRejected):
		return &ErrorDetail{Code: ErrorCodeTaskRejected, Message: err.Error()}
	case errors.Is(err, ErrProtocolMismatch):
		return &ErrorDetail{Code: ErrorCodeProtocolMismatch, Message: err.Error()}
	default:
		return &ErrorDetail{Code: ErrorCodeProtocolError, Message: err.Error()}
	}
}
