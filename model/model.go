package model

import (
	"context"
	"fmt"
	"sync"
)

// Message is a single conversational input to the model. Role is "user" or
// "assistant"; system instructions travel separately on the Request.
type Message struct {
	Role string
	Text string
}

// ToolDefinition describes a callable tool in provider-neutral form.
// Parameters holds a JSON schema object (type/properties/required keys).
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a tool invocation requested by the model. Arguments carries the
// raw JSON argument object produced by the provider.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// TokenUsage captures token accounting for a single generation.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Request is one blocking generation request.
type Request struct {
	Instructions string
	Messages     []Message
	Tools        []ToolDefinition
}

// Response is the model's complete answer: free text, tool calls, or both.
type Response struct {
	Text         string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        *TokenUsage
}

// Info describes a model implementation.
type Info struct {
	Name          string
	Provider      string
	SupportsTools bool
}

// Model is the interface implemented by reasoning backends. Generate performs
// a single request/response exchange and must honor ctx cancellation.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Info() Info
}

// MockModel is a configurable mock implementation for testing and offline
// runs. Responses are keyed on the text of the last request message.
type MockModel struct {
	mu        sync.Mutex
	responses map[string]*Response
	requests  []Request
}

var _ Model = (*MockModel)(nil)

// NewMockModel creates a new mock model with no canned responses.
func NewMockModel() *MockModel {
	return &MockModel{responses: make(map[string]*Response)}
}

// AddResponse registers canned response text for a specific prompt.
func (m *MockModel) AddResponse(prompt, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.responses[prompt] = &Response{Text: text, FinishReason: "stop"}
}

// AddToolCalls registers canned tool calls for a specific prompt.
func (m *MockModel) AddToolCalls(prompt string, calls ...ToolCall) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.responses[prompt] = &Response{ToolCalls: calls, FinishReason: "tool_calls"}
}

// Requests returns a copy of every request seen so far, in order.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Request, len(m.requests))
	copy(out, m.requests)

	return out
}

// Generate returns the canned response for the last message text, or a
// deterministic echo when no response was registered.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	prompt := ""
	if len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Text
	}

	if resp, ok := m.responses[prompt]; ok {
		out := *resp
		out.ToolCalls = append([]ToolCall(nil), resp.ToolCalls...)

		return &out, nil
	}

	return &Response{Text: fmt.Sprintf("Mock response to: %s", prompt), FinishReason: "stop"}, nil
}

// Info returns metadata describing this mock model implementation.
func (m *MockModel) Info() Info {
	return Info{Name: "mock-model", Provider: "mock", SupportsTools: true}
}
