// Package a2a implements the agent-to-agent wire protocol used between the
// host and remote agents: capability card discovery at a well-known path and
// task submission as JSON-RPC 2.0 over HTTP, with an optional server-sent
// event stream for incremental frames.
//
// The package has two halves:
//
//   - Client implements core.CardFetcher and core.TaskSender for the host
//     side. It never interprets payloads; it only moves frames and maps
//     transport faults onto the core error taxonomy.
//   - Server exposes a single agent (a leaf agent, or the host itself) over
//     the same protocol given an Executor that produces replies.
//
// Both halves speak plain net/http so agents written against this package
// interoperate with the host through real HTTP processes or httptest
// servers alike.
package a2a
