// Package core provides the foundational domain types and interfaces used by
// the a2ahost module. It defines the core abstractions for:
//
//   - Sessions (conversational containers with ordered, append-only turns)
//   - Capability cards and agent descriptors (remote agent discovery)
//   - Delegation results and routing decisions
//   - Task submission frames exchanged with remote agents
//   - Pluggable interfaces for conversation storage, card fetching, task
//     transport and routing
//
// The package intentionally keeps implementation concerns (wire encoding,
// persistence, orchestration) out of scope, exposing small interfaces so
// backends can be swapped. It performs no I/O of its own.
package core
