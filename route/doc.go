// Package route implements the advisory routing layer that decides, per
// utterance, whether the host answers directly or delegates to remote agents.
//
// LLMRouter asks a reasoning model for the decision: the resolved agent
// directory is rendered into the system instructions and a single
// delegate_task tool is exposed. A plain text reply becomes a direct answer;
// tool calls become delegations. Router output is advisory only — the host
// validates every named agent against its registry and falls back to keyword
// scoring when the router errs, so a hallucinated agent name can never reach
// the wire.
package route
