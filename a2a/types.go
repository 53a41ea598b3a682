package a2a

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/a2ahost/core"
)

// WellKnownPath is the discovery endpoint every agent serves its capability
// card from, relative to its base address.
const WellKnownPath = "/.well-known/agent.json"

// JSON-RPC methods of the task surface.
const (
	MethodMessageSend   = "message/send"
	MethodMessageStream = "message/stream"
)

// JSON-RPC error codes. The negative five-digit codes follow the protocol's
// reserved range for agent-level failures.
const (
	CodeParseError           = -32700
	CodeInvalidRequest       = -32600
	CodeMethodNotFound       = -32601
	CodeInvalidParams        = -32602
	CodeInternalError        = -32603
	CodeUnsupportedOperation = -32004
)

// JSONRPCRequest is the JSON-RPC 2.0 request envelope.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse is the JSON-RPC 2.0 response envelope. Exactly one of
// Result and Error is set.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError carries an agent-level refusal or protocol violation.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// AgentCard is the discovery document an agent serves at WellKnownPath.
// Field names follow the wire protocol's camelCase convention.
type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	URL                string            `json:"url"`
	Version            string            `json:"version"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	DefaultInputModes  []string          `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string          `json:"defaultOutputModes,omitempty"`
	Skills             []AgentSkill      `json:"skills"`
}

// AgentCapabilities advertises optional protocol features.
type AgentCapabilities struct {
	Streaming bool `json:"streaming"`
}

// AgentSkill describes one capability of an agent, with routing hints.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// Capability converts the wire card into the host's internal representation.
// Tags are merged across skills preserving first-seen order without
// duplicates; examples are concatenated in skill order.
func (c *AgentCard) Capability() *core.CapabilityCard {
	card := &core.CapabilityCard{
		AgentName:   c.Name,
		Description: c.Description,
		Version:     c.Version,
		Streaming:   c.Capabilities.Streaming,
	}
	seen := map[string]struct{}{}
	for _, skill := range c.Skills {
		for _, tag := range skill.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			card.SkillTags = append(card.SkillTags, tag)
		}
		card.Examples = append(card.Examples, skill.Examples...)
	}
	return card
}

// Part is one content fragment of a message. Kind discriminates the wire
// encoding; TextPart and DataPart are the supported kinds.
type Part interface {
	isPart()
}

// TextPart carries plain text.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// MarshalJSON encodes the part with its kind discriminator.
func (p TextPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
		Text string `json:"text"`
	}{Kind: "text", Text: p.Text})
}

// DataPart carries structured key/value data.
type DataPart struct {
	Data map[string]any
}

func (DataPart) isPart() {}

// MarshalJSON encodes the part with its kind discriminator.
func (p DataPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string         `json:"kind"`
		Data map[string]any `json:"data"`
	}{Kind: "data", Data: p.Data})
}

// decodePart decodes one raw part by its kind discriminator. Unknown kinds
// return nil without error so newer agents stay readable.
func decodePart(raw json.RawMessage) (Part, error) {
	var probe struct {
		Kind string         `json:"kind"`
		Text string         `json:"text"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	switch probe.Kind {
	case "text":
		return TextPart{Text: probe.Text}, nil
	case "data":
		return DataPart{Data: probe.Data}, nil
	default:
		return nil, nil
	}
}

// Message is one utterance on the wire. TaskID correlates the message with a
// task; ContextID correlates it with a conversation. Metadata carries opaque
// pairs such as user and chat identifiers.
type Message struct {
	Role      string            `json:"role"` // user or agent
	Parts     []Part            `json:"parts"`
	MessageID string            `json:"messageId,omitempty"`
	TaskID    string            `json:"taskId,omitempty"`
	ContextID string            `json:"contextId,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// UnmarshalJSON decodes the part union by kind.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role      string            `json:"role"`
		Parts     []json.RawMessage `json:"parts"`
		MessageID string            `json:"messageId"`
		TaskID    string            `json:"taskId"`
		ContextID string            `json:"contextId"`
		Metadata  map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.MessageID = raw.MessageID
	m.TaskID = raw.TaskID
	m.ContextID = raw.ContextID
	m.Metadata = raw.Metadata
	m.Parts = nil
	for _, rawPart := range raw.Parts {
		part, err := decodePart(rawPart)
		if err != nil {
			return err
		}
		if part != nil {
			m.Parts = append(m.Parts, part)
		}
	}
	return nil
}

// Text concatenates the message's text parts.
func (m *Message) Text() string {
	var out string
	for _, part := range m.Parts {
		if tp, ok := part.(TextPart); ok {
			if out != "" {
				out += "\n"
			}
			out += tp.Text
		}
	}
	return out
}

// NewTextMessage builds a single-part text message.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart{Text: text}}, MessageID: core.NewID()}
}

// MessageSendParams is the params object of message/send and message/stream.
type MessageSendParams struct {
	Message Message `json:"message"`
}

// TaskStatus is the current state of a task plus the agent's message for
// that state. Error is set only on failed tasks.
type TaskStatus struct {
	State   core.TaskState    `json:"state"`
	Message *Message          `json:"message,omitempty"`
	Error   *core.ErrorDetail `json:"error,omitempty"`
}

// Task is the result shape of the task surface: both the final result of
// message/send and each frame of message/stream are Task snapshots.
type Task struct {
	ID        string     `json:"id"`
	ContextID string     `json:"contextId,omitempty"`
	Status    TaskStatus `json:"status"`
	History   []Message  `json:"history,omitempty"`
}

// Incoming returns the message that opened the task, carrying the caller's
// metadata. Nil when the snapshot has no history.
func (t *Task) Incoming() *Message {
	if len(t.History) == 0 {
		return nil
	}
	return &t.History[0]
}

// Response converts the task snapshot into the host's frame representation.
func (t *Task) Response() *core.TaskResponse {
	resp := &core.TaskResponse{TaskID: t.ID, State: t.Status.State, ErrorDetail: t.Status.Error}
	if t.Status.Message != nil {
		resp.Text = t.Status.Message.Text()
	}
	return resp
}
