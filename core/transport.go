package core

import "context"

// TaskState is the lifecycle state a remote agent reports for a task.
type TaskState string

const (
	// TaskStateWorking marks an in-progress frame carrying partial output.
	TaskStateWorking TaskState = "working"
	// TaskStateCompleted marks a successful terminal frame.
	TaskStateCompleted TaskState = "completed"
	// TaskStateFailed marks an unsuccessful terminal frame.
	TaskStateFailed TaskState = "failed"
	// TaskStateInputRequired marks a terminal frame asking the user for more
	// input; the task stays open for a follow-up with the same id.
	TaskStateInputRequired TaskState = "input-required"
)

// Terminal reports whether the state ends a task exchange.
func (s TaskState) Terminal() bool {
	return s == TaskStateCompleted || s == TaskStateFailed || s == TaskStateInputRequired
}

// TaskRequest is one task submission to a remote agent. TaskID is generated
// by the caller, never the remote, so a retried submission is recognizable
// as the same logical task. SessionContext correlates the task with the
// conversation; Metadata carries opaque key/value pairs such as user and
// chat identifiers.
type TaskRequest struct {
	TaskID         string
	SessionContext string
	Text           string
	Metadata       map[string]string
}

// TaskResponse is one task status frame from a remote agent. Non-streaming
// exchanges yield exactly one terminal frame; streaming exchanges yield zero
// or more working frames followed by one terminal frame. ErrorDetail is set
// only on failed frames.
type TaskResponse struct {
	TaskID      string
	State       TaskState
	Text        string
	ErrorDetail *ErrorDetail
}

// CardFetcher retrieves capability cards from remote agents.
type CardFetcher interface {
	// FetchCard fetches the capability card from the agent's well-known
	// discovery endpoint. Connection failures and deadline expiry wrap
	// ErrAgentUnreachable; unparseable cards wrap ErrProtocolMismatch.
	FetchCard(ctx context.Context, address string) (*CapabilityCard, error)
}

// TaskSender submits tasks to remote agents over the wire.
type TaskSender interface {
	// SendTask performs one blocking exchange and returns the terminal frame.
	SendTask(ctx context.Context, address string, req TaskRequest) (*TaskResponse, error)

	// StreamTask performs a streaming exchange. Frames arrive on the first
	// channel, ending with a terminal frame; transport failures arrive on
	// the second. Both channels are closed when the exchange ends. Frames of
	// one exchange never interleave with another's.
	StreamTask(ctx context.Context, address string, req TaskRequest) (<-chan TaskResponse, <-chan error)
}
