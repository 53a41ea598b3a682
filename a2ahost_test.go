package a2ahost

import (
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/a2ahost/a2a"
	"github.com/hupe1980/a2ahost/config"
	"github.com/hupe1980/a2ahost/core"
	"github.com/hupe1980/a2ahost/host"
)

// newLeafAgent starts a protocol server for a canned agent and returns its
// base URL.
func newLeafAgent(t *testing.T, name, description string, tags []string, reply func(input string) string) string {
	t.Helper()

	card := a2a.AgentCard{
		Name:        name,
		Description: description,
		Version:     "1.0.0",
		Skills: []a2a.AgentSkill{{
			ID:   strings.ToLower(name),
			Name: name,
			Tags: tags,
		}},
	}

	srv := a2a.NewServer(card, a2a.ExecutorFunc(func(_ context.Context, _ *a2a.Task, input string) (*a2a.Reply, error) {
		return &a2a.Reply{Text: reply(input)}, nil
	}))

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return ts.URL
}

func TestA2AHost_EndToEnd(t *testing.T) {
	timeURL := newLeafAgent(t, "TimeAgent", "Tells the current time.", []string{"time", "clock"}, func(string) string {
		return "It is 14:00."
	})
	geoURL := newLeafAgent(t, "GeoAgent", "Knows country capitals.", []string{"geography", "capital"}, func(string) string {
		return "The capital of France is Paris."
	})

	h := New(func(o *Options) {
		o.Agents = []string{timeURL, geoURL}
	})

	ctx := context.Background()

	resolved := h.ResolveAgents(ctx)
	require.Len(t, resolved, 2)
	assert.Equal(t, "TimeAgent", resolved[0].Name())
	assert.Equal(t, "GeoAgent", resolved[1].Name())

	answer, err := h.Handle(ctx, "alice", "chat-1", "what time is it?")
	require.NoError(t, err)
	assert.Equal(t, "It is 14:00.", answer)

	answer, err = h.Handle(ctx, "alice", "chat-1", "what is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "The capital of France is Paris.", answer)

	turns, err := h.Store().Read(core.SessionKey{UserID: "alice", ChatID: "chat-1"}, 0)
	require.NoError(t, err)
	require.Len(t, turns, 4, "each exchange persists a user and a host turn")
	assert.Equal(t, core.RoleUser, turns[0].Role)
	assert.Equal(t, core.RoleHost, turns[1].Role)
}

func TestA2AHost_RegisterAgentsAfterConstruction(t *testing.T) {
	timeURL := newLeafAgent(t, "TimeAgent", "Tells the current time.", []string{"time", "clock"}, func(string) string {
		return "It is 09:15."
	})

	h := New()
	h.RegisterAgents(timeURL)

	resolved := h.ResolveAgents(context.Background())
	require.Len(t, resolved, 1)

	answer, err := h.Handle(context.Background(), "bob", "c1", "what time is it?")
	require.NoError(t, err)
	assert.Equal(t, "It is 09:15.", answer)
}

func TestA2AHost_NoAgentsFallsBack(t *testing.T) {
	h := New()

	answer, err := h.Handle(context.Background(), "bob", "c1", "anyone there?")
	require.NoError(t, err)
	assert.Equal(t, host.FallbackAnswer, answer)
}

func TestA2AHost_FromConfig(t *testing.T) {
	timeURL := newLeafAgent(t, "TimeAgent", "Tells the current time.", []string{"time", "clock"}, func(string) string {
		return "It is 14:00."
	})

	cfg := config.Defaults()
	cfg.Model.Provider = "mock"
	cfg.Memory.Dir = t.TempDir()
	cfg.Agents = []string{timeURL}

	h, err := FromConfig(cfg)
	require.NoError(t, err)

	// the mock model answers directly, so no delegation happens
	answer, err := h.Handle(context.Background(), "bob", "c1", "hello there")
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hello there", answer)

	// conversation snapshots land in the configured directory
	entries, err := os.ReadDir(cfg.Memory.Dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestA2AHost_FromConfig_InvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Model.Provider = "gemini"

	_, err := FromConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini")
}

func TestA2AHost_FromConfig_NilUsesDefaults(t *testing.T) {
	h, err := FromConfig(nil)
	require.NoError(t, err)

	answer, err := h.Handle(context.Background(), "bob", "c1", "hi")
	require.NoError(t, err)
	assert.Equal(t, host.FallbackAnswer, answer)
}
