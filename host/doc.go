// Package host implements the orchestrator that turns one user utterance
// into one answer: it persists the user turn, selects remote agents (advisory
// router first, keyword fallback second), fans delegations out concurrently,
// aggregates the results and persists the host turn.
//
// Concurrency contract: utterances for different sessions run fully in
// parallel; utterances for the same (user, chat) session are serialized by a
// per-session lock held from receipt to response, so memory ordering within a
// conversation is never racy. Delegation fan-out inside one utterance is
// bounded by MaxParallel.
//
// Failure philosophy: a delegation that fails degrades the answer, never the
// host. Only conversation storage faults and caller cancellation surface as
// errors from Handle.
package host
