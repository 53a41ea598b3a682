package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hupe1980/a2ahost/core"
	"github.com/hupe1980/a2ahost/logging"
)

// Executor produces the reply for one submitted task. Input is the extracted
// text of the incoming message; the task snapshot carries ids and history.
// Returning an error wrapping core.ErrTaskRejected marks an explicit
// refusal; any other error is reported as an internal failure.
type Executor interface {
	Execute(ctx context.Context, task *Task, input string) (*Reply, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, task *Task, input string) (*Reply, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, task *Task, input string) (*Reply, error) {
	return f(ctx, task, input)
}

// Reply is an executor's outcome. A zero State means completed. Use
// core.TaskStateInputRequired to ask the user a question and keep the task
// open for a follow-up carrying the same task id.
type Reply struct {
	Text  string
	State core.TaskState
}

// ServerOptions configure the Server.
type ServerOptions struct {
	Logger logging.Logger
}

// Server exposes a single agent over the wire protocol: the capability card
// at WellKnownPath and the JSON-RPC task surface at the root. It implements
// http.Handler, so it runs under http.Server and httptest alike.
type Server struct {
	card     AgentCard
	executor Executor
	logger   logging.Logger
	mux      *http.ServeMux
}

// NewServer creates a protocol server for one agent.
func NewServer(card AgentCard, executor Executor, optFns ...func(o *ServerOptions)) *Server {
	opts := ServerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{card: card, executor: executor, logger: logging.OrNoOp(opts.Logger)}

	mux := http.NewServeMux()
	mux.HandleFunc(WellKnownPath, s.handleCard)
	mux.HandleFunc("/", s.handleRPC)
	s.mux = mux

	return s
}

// Card returns the card the server advertises.
func (s *Server) Card() AgentCard {
	return s.card
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.card); err != nil {
		s.logger.Error("failed to write capability card", "error", err)
	}
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var env JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		s.writeError(w, "", CodeParseError, fmt.Sprintf("malformed request: %v", err))
		return
	}

	var params MessageSendParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		s.writeError(w, env.ID, CodeInvalidParams, fmt.Sprintf("malformed params: %v", err))
		return
	}

	switch env.Method {
	case MethodMessageSend:
		s.handleSend(w, r, env.ID, params.Message)
	case MethodMessageStream:
		s.handleStream(w, r, env.ID, params.Message)
	default:
		s.writeError(w, env.ID, CodeMethodNotFound, fmt.Sprintf("unknown method %q", env.Method))
	}
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request, rpcID string, msg Message) {
	task := s.execute(r.Context(), msg)
	s.writeResult(w, rpcID, task)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, rpcID string, msg Message) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, rpcID, CodeInternalError, "streaming unsupported by transport")
		return
	}
	if !s.card.Capabilities.Streaming {
		s.writeError(w, rpcID, CodeUnsupportedOperation, "agent does not support streaming")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Initial snapshot tells the caller the task was accepted and is running.
	working := newTask(msg)
	if err := writeFrame(w, flusher, rpcID, working); err != nil {
		s.logger.Error("failed to write stream frame", "error", err)
		return
	}

	terminal := s.execute(r.Context(), msg)
	if err := writeFrame(w, flusher, rpcID, terminal); err != nil {
		s.logger.Error("failed to write stream frame", "error", err)
	}
}

// execute runs the executor and wraps its outcome into a terminal task
// snapshot.
func (s *Server) execute(ctx context.Context, msg Message) *Task {
	task := newTask(msg)
	input := msg.Text()

	s.logger.Debug("task received", "task_id", task.ID, "context_id", task.ContextID)

	reply, err := s.executor.Execute(ctx, task, input)
	if err != nil {
		s.logger.Warn("task failed", "task_id", task.ID, "error", err)
		task.Status = TaskStatus{State: core.TaskStateFailed, Error: executionDetail(err)}
		return task
	}

	state := reply.State
	if state == "" {
		state = core.TaskStateCompleted
	}
	result := NewTextMessage("agent", reply.Text)
	result.TaskID = task.ID
	result.ContextID = task.ContextID
	task.Status = TaskStatus{State: state, Message: &result}
	task.History = append(task.History, result)

	s.logger.Debug("task settled", "task_id", task.ID, "state", state)

	return task
}

// newTask begins a task snapshot for an incoming message, keeping the
// caller-generated task id so retries stay deduplicable.
func newTask(msg Message) *Task {
	id := msg.TaskID
	if id == "" {
		id = core.NewID()
	}
	return &Task{
		ID:        id,
		ContextID: msg.ContextID,
		Status:    TaskStatus{State: core.TaskStateWorking},
		History:   []Message{msg},
	}
}

// executionDetail classifies an executor error for the wire.
func executionDetail(err error) *core.ErrorDetail {
	if errors.Is(err, core.ErrTaskRejected) {
		return &core.ErrorDetail{Code: core.ErrorCodeTaskRejected, Message: err.Error()}
	}
	return &core.ErrorDetail{Code: core.ErrorCodeInternal, Message: err.Error()}
}

func (s *Server) writeResult(w http.ResponseWriter, rpcID string, task *Task) {
	result, err := json.Marshal(task)
	if err != nil {
		s.writeError(w, rpcID, CodeInternalError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(JSONRPCResponse{JSONRPC: "2.0", ID: rpcID, Result: result}); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, rpcID string, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	env := JSONRPCResponse{JSONRPC: "2.0", ID: rpcID, Error: &JSONRPCError{Code: code, Message: msg}}
	if err := json.NewEncoder(w).Encode(env); err != nil {
		s.logger.Error("failed to write error response", "error", err)
	}
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, rpcID string, task *Task) error {
	result, err := json.Marshal(task)
	if err != nil {
		return err
	}
	env, err := json.Marshal(JSONRPCResponse{JSONRPC: "2.0", ID: rpcID, Result: result})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", env); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
