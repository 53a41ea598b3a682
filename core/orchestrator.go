package core

import "context"

// RouteInput carries everything a router may consider for one utterance:
// the utterance itself, the capability cards of all currently resolved
// agents (registration order) and the recent session history, oldest turn
// first.
type RouteInput struct {
	Utterance string
	Agents    []CapabilityCard
	History   []Turn
}

// Router proposes how to handle one utterance: answer directly or delegate
// to one or more agents. Proposals are advisory; the orchestrator validates
// them against the registry before acting and falls back to keyword
// candidate selection when a proposal cannot be honored or Decide fails.
type Router interface {
	Decide(ctx context.Context, input RouteInput) (Decision, error)
}

// Orchestrator is the host entry surface. Handle processes one user
// utterance synchronously and returns the final answer text. Calls for the
// same (user, chat) session are serialized in arrival order; distinct
// sessions proceed in parallel. The returned error is reserved for storage
// faults and context cancellation; every agent-side failure is converted
// into degraded answer text instead.
type Orchestrator interface {
	Handle(ctx context.Context, userID, chatID, utterance string) (string, error)
}
