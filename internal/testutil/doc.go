// Package testutil contains scripted fakes used across tests to reduce
// boilerplate when exercising the registry, the delegation client and the
// orchestrator: a card fetcher, a task sender and a router, all recording
// their calls. These helpers are intentionally minimal and avoid adding
// third-party dependencies. They are not intended for production usage.
package testutil
