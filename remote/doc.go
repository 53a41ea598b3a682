// Package remote wraps a single remote agent behind a delegation client. The
// client owns the boundary where transport and protocol failures stop being
// Go errors: Invoke always returns a core.DelegationResult whose Status and
// ErrorDetail describe what happened, so the orchestrator never has to
// recover from a panicking or throwing delegation path.
//
// Transient failures (unreachable agent, timeout) are retried once with the
// same task id; agents treat a replayed id as idempotent, so the retry can
// never duplicate work. Rejections and protocol violations are never retried.
package remote
