// Package session houses concrete implementations of core.ConversationStore.
// The interface itself (and the Session struct) live in the core package to
// centralize domain contracts; keeping only implementations here prevents
// higher level packages from depending on concrete storage.
//
// Two backends ship with the module: a volatile in-memory store for tests and
// demos, and a file store that snapshots every conversation as a JSON file
// and reloads them at startup. Additional backends (Redis, Postgres, ...) can
// be added without changing any calling code.
package session
