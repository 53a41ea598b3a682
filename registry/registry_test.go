package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/a2ahost/core"
	"github.com/hupe1980/a2ahost/internal/testutil"
)

func TestRegistry_LoadDedupesAndKeepsOrder(t *testing.T) {
	r := New(testutil.NewFakeFetcher())

	r.Load("http://a", "http://b", "http://a", "  ", "http://c")

	assert.Equal(t, 3, r.Len())

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "http://a", all[0].Address)
	assert.Equal(t, "http://b", all[1].Address)
	assert.Equal(t, "http://c", all[2].Address)
}

func TestRegistry_ReloadResetsCachedCard(t *testing.T) {
	fetcher := testutil.NewFakeFetcher()
	fetcher.SetCard("http://a", testutil.Card("Alpha", "time"))

	r := New(fetcher)
	r.Load("http://a")

	_, err := r.Resolve(context.Background(), "http://a")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.Calls("http://a"))

	// loading the same address again invalidates the cache
	r.Load("http://a")
	assert.Equal(t, 1, r.Len())

	_, err = r.Resolve(context.Background(), "http://a")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.Calls("http://a"))
}

func TestRegistry_ResolveCachesCard(t *testing.T) {
	fetcher := testutil.NewFakeFetcher()
	fetcher.SetCard("http://a", testutil.Card("Alpha", "time"))

	r := New(fetcher)
	r.Load("http://a")

	card, err := r.Resolve(context.Background(), "http://a")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", card.AgentName)

	again, err := r.Resolve(context.Background(), "http://a")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", again.AgentName)
	assert.Equal(t, 1, fetcher.Calls("http://a"), "cached card should not refetch")

	// returned cards are clones, the cache stays pristine
	card.SkillTags[0] = "mutated"
	fresh, _ := r.Resolve(context.Background(), "http://a")
	assert.Equal(t, "time", fresh.SkillTags[0])
}

func TestRegistry_ResolveUnknownAddress(t *testing.T) {
	r := New(testutil.NewFakeFetcher())

	_, err := r.Resolve(context.Background(), "http://nowhere")
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
}

func TestRegistry_ResolveFailureNotCached(t *testing.T) {
	fetcher := testutil.NewFakeFetcher()
	fetcher.SetError("http://a", core.ErrAgentUnreachable)

	r := New(fetcher)
	r.Load("http://a")

	_, err := r.Resolve(context.Background(), "http://a")
	assert.ErrorIs(t, err, core.ErrAgentUnreachable)

	// the agent comes up, the next resolve succeeds
	fetcher.SetCard("http://a", testutil.Card("Alpha", "time"))

	card, err := r.Resolve(context.Background(), "http://a")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", card.AgentName)
	assert.Equal(t, 2, fetcher.Calls("http://a"))
}

func TestRegistry_ConcurrentResolveSharesOneFetch(t *testing.T) {
	fetcher := testutil.NewFakeFetcher()
	fetcher.SetCard("http://a", testutil.Card("Alpha", "time"))
	fetcher.SetDelay(50 * time.Millisecond)

	r := New(fetcher)
	r.Load("http://a")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			card, err := r.Resolve(context.Background(), "http://a")
			if err != nil {
				t.Errorf("resolve: %v", err)
				return
			}
			if card.AgentName != "Alpha" {
				t.Errorf("unexpected card: %s", card.AgentName)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fetcher.Calls("http://a"), "concurrent resolves should coalesce into one fetch")
}

func TestRegistry_ResolveAllSkipsFailures(t *testing.T) {
	fetcher := testutil.NewFakeFetcher()
	fetcher.SetCard("http://a", testutil.Card("Alpha", "time"))
	fetcher.SetError("http://b", core.ErrAgentUnreachable)
	fetcher.SetCard("http://c", testutil.Card("Gamma", "geo"))

	r := New(fetcher)
	r.Load("http://a", "http://b", "http://c")

	resolved := r.ResolveAll(context.Background())
	require.Len(t, resolved, 2)
	assert.Equal(t, "http://a", resolved[0].Address)
	assert.Equal(t, "http://c", resolved[1].Address)

	// the dead agent stays registered and unresolved
	assert.Equal(t, 3, r.Len())
	desc, ok := r.ByAddress("http://b")
	require.True(t, ok)
	assert.False(t, desc.Resolved())
}

func TestRegistry_ByName(t *testing.T) {
	fetcher := testutil.NewFakeFetcher()
	fetcher.SetCard("http://a", testutil.Card("TimeAgent", "time"))

	r := New(fetcher)
	r.Load("http://a")
	r.ResolveAll(context.Background())

	desc, ok := r.ByName("TimeAgent")
	require.True(t, ok)
	assert.Equal(t, "http://a", desc.Address)

	// case-insensitive fallback
	desc, ok = r.ByName("timeagent")
	require.True(t, ok)
	assert.Equal(t, "http://a", desc.Address)

	_, ok = r.ByName("GeoAgent")
	assert.False(t, ok)
}

func TestRegistry_Cards(t *testing.T) {
	fetcher := testutil.NewFakeFetcher()
	fetcher.SetCard("http://a", testutil.Card("Alpha", "time"))
	fetcher.SetError("http://b", errors.New("down"))

	r := New(fetcher)
	r.Load("http://a", "http://b")
	r.ResolveAll(context.Background())

	cards := r.Cards()
	require.Len(t, cards, 1)
	assert.Equal(t, "Alpha", cards[0].AgentName)
}

func TestRegistry_FindCandidates_Scoring(t *testing.T) {
	fetcher := testutil.NewFakeFetcher()
	fetcher.SetCard("http://time", &core.CapabilityCard{
		AgentName: "TimeAgent",
		SkillTags: []string{"time", "clock"},
		Examples:  []string{"what time is it?"},
	})
	fetcher.SetCard("http://geo", &core.CapabilityCard{
		AgentName: "GeoAgent",
		SkillTags: []string{"geography", "capital"},
		Examples:  []string{"what is the capital of France?"},
	})
	fetcher.SetCard("http://weather", testutil.Card("WeatherAgent", "weather"))

	r := New(fetcher)
	r.Load("http://time", "http://geo", "http://weather")
	r.ResolveAll(context.Background())

	candidates := r.FindCandidates("what time is it?")
	require.NotEmpty(t, candidates)
	assert.Equal(t, "TimeAgent", candidates[0].Name())

	for _, c := range candidates {
		assert.NotEqual(t, "WeatherAgent", c.Name(), "zero-score agents must be filtered")
	}

	candidates = r.FindCandidates("capital of France")
	require.NotEmpty(t, candidates)
	assert.Equal(t, "GeoAgent", candidates[0].Name())

	// nothing matches
	assert.Empty(t, r.FindCandidates("zzz qqq"))
}

func TestRegistry_FindCandidates_TieKeepsRegistrationOrder(t *testing.T) {
	fetcher := testutil.NewFakeFetcher()
	fetcher.SetCard("http://a", testutil.Card("Alpha", "time"))
	fetcher.SetCard("http://b", testutil.Card("Beta", "time"))

	r := New(fetcher)
	r.Load("http://a", "http://b")
	r.ResolveAll(context.Background())

	candidates := r.FindCandidates("time please")
	require.Len(t, candidates, 2)
	assert.Equal(t, "http://a", candidates[0].Address)
	assert.Equal(t, "http://b", candidates[1].Address)

	// registration order decides ties regardless of load ordering
	r2 := New(fetcher)
	r2.Load("http://b", "http://a")
	r2.ResolveAll(context.Background())

	candidates = r2.FindCandidates("time please")
	require.Len(t, candidates, 2)
	assert.Equal(t, "http://b", candidates[0].Address)
}

func TestRegistry_FindCandidates_SkipsUnresolved(t *testing.T) {
	fetcher := testutil.NewFakeFetcher()
	fetcher.SetCard("http://a", testutil.Card("Alpha", "time"))
	fetcher.SetError("http://b", core.ErrAgentUnreachable)

	r := New(fetcher)
	r.Load("http://a", "http://b")
	r.ResolveAll(context.Background())

	candidates := r.FindCandidates("time check")
	require.Len(t, candidates, 1)
	assert.Equal(t, "http://a", candidates[0].Address)
}

func TestRegistry_ResolveTimeout(t *testing.T) {
	fetcher := testutil.NewFakeFetcher()
	fetcher.SetCard("http://a", testutil.Card("Alpha", "time"))
	fetcher.SetDelay(200 * time.Millisecond)

	r := New(fetcher, func(o *Options) {
		o.ResolveTimeout = 20 * time.Millisecond
	})
	r.Load("http://a")

	_, err := r.Resolve(context.Background(), "http://a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
