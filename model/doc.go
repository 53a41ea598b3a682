// Package model defines the provider-agnostic abstractions for the reasoning
// backend that drives routing decisions inside the host.
//
// Core goals:
//   - Keep request/response shapes minimal and transport independent
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Facilitate lightweight mocking for tests and offline demos (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so higher layers (router, host) remain decoupled from vendor SDKs.
// CircuitBreaker wraps any Model to fail fast while a backend is unhealthy.
package model
