package core

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser marks turns authored by the end user.
	RoleUser Role = "user"
	// RoleHost marks turns authored by the host orchestrator.
	RoleHost Role = "host"
	// RoleRemoteAgent marks turns relayed from a delegated remote agent.
	RoleRemoteAgent Role = "remote_agent"
)

// Turn is a single utterance in a conversation. After being appended to a
// session a turn is immutable: it is never edited or removed, only read.
// OriginatingAgent is set only for RoleRemoteAgent turns and carries the
// address of the agent that produced the text.
type Turn struct {
	ID               string    `json:"id"`
	Role             Role      `json:"role"`
	Text             string    `json:"text"`
	Timestamp        time.Time `json:"timestamp"`
	OriginatingAgent string    `json:"originating_agent,omitempty"`
}

// NewUserTurn returns a user-authored turn stamped with the current time.
func NewUserTurn(text string) Turn {
	return Turn{ID: NewID(), Role: RoleUser, Text: text, Timestamp: time.Now().UTC()}
}

// NewHostTurn returns a host-authored turn stamped with the current time.
func NewHostTurn(text string) Turn {
	return Turn{ID: NewID(), Role: RoleHost, Text: text, Timestamp: time.Now().UTC()}
}

// NewAgentTurn returns a turn relaying text produced by the remote agent at
// the given address.
func NewAgentTurn(text, agentAddress string) Turn {
	return Turn{ID: NewID(), Role: RoleRemoteAgent, Text: text, Timestamp: time.Now().UTC(), OriginatingAgent: agentAddress}
}
