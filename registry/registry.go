package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/a2ahost/core"
	"github.com/hupe1980/a2ahost/logging"
)

// Options contains options for the registry.
type Options struct {
	// ResolveTimeout bounds a single card fetch.
	ResolveTimeout time.Duration
	// MaxParallelResolves bounds ResolveAll fan-out.
	MaxParallelResolves int
	// Logger receives resolution events.
	Logger logging.Logger
}

// entry is one registered agent. card stays nil until the address resolves.
type entry struct {
	address string
	card    *core.CapabilityCard
	lastErr error
}

// Registry tracks registered agent addresses and their resolved capability
// cards. Safe for concurrent use.
type Registry struct {
	fetcher        core.CardFetcher
	resolveTimeout time.Duration
	maxParallel    int
	logger         logging.Logger

	group singleflight.Group

	mu        sync.RWMutex
	entries   []*entry
	byAddress map[string]*entry
}

// New creates a registry over the given card fetcher.
func New(fetcher core.CardFetcher, optFns ...func(o *Options)) *Registry {
	opts := Options{
		ResolveTimeout:      10 * time.Second,
		MaxParallelResolves: 8,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		fetcher:        fetcher,
		resolveTimeout: opts.ResolveTimeout,
		maxParallel:    opts.MaxParallelResolves,
		logger:         logging.OrNoOp(opts.Logger),
		byAddress:      make(map[string]*entry),
	}
}

// Load registers agent addresses. Registration order is preserved and breaks
// candidate score ties. Duplicate addresses keep their first position; loading
// a known address again resets its cached card to unresolved.
func (r *Registry) Load(addresses ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, address := range addresses {
		address = strings.TrimSpace(address)
		if address == "" {
			continue
		}

		if existing, ok := r.byAddress[address]; ok {
			existing.card = nil
			existing.lastErr = nil

			continue
		}

		e := &entry{address: address}
		r.entries = append(r.entries, e)
		r.byAddress[address] = e
	}
}

// Len returns the number of registered addresses.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Resolve returns the capability card for address, fetching it on first use.
// Cached cards are returned without I/O. Concurrent resolutions of the same
// address share a single fetch. Failures are not cached; the next call
// retries.
func (r *Registry) Resolve(ctx context.Context, address string) (*core.CapabilityCard, error) {
	r.mu.RLock()
	e, ok := r.byAddress[address]

	var cached *core.CapabilityCard
	if ok && e.card != nil {
		cached = e.card.Clone()
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrAgentNotFound, address)
	}

	if cached != nil {
		return cached, nil
	}

	v, err, _ := r.group.Do(address, func() (interface{}, error) {
		// A flight that finished while we queued may have resolved the card.
		r.mu.RLock()
		if e.card != nil {
			card := e.card.Clone()
			r.mu.RUnlock()

			return card, nil
		}
		r.mu.RUnlock()

		fetchCtx := ctx
		if r.resolveTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, r.resolveTimeout)
			defer cancel()
		}

		card, err := r.fetcher.FetchCard(fetchCtx, address)
		if err != nil {
			r.mu.Lock()
			e.lastErr = err
			r.mu.Unlock()

			return nil, err
		}

		r.mu.Lock()
		e.card = card.Clone()
		e.lastErr = nil
		r.mu.Unlock()

		r.logger.Debug("agent card resolved", "address", address, "agent", card.AgentName)

		return card.Clone(), nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*core.CapabilityCard), nil
}

// ResolveAll warms the card cache for every registered address in parallel,
// skipping agents that fail to resolve. It returns descriptors for the
// resolved agents in registration order.
func (r *Registry) ResolveAll(ctx context.Context) []core.AgentDescriptor {
	r.mu.RLock()
	addresses := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		if e.card == nil {
			addresses = append(addresses, e.address)
		}
	}
	r.mu.RUnlock()

	if len(addresses) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.maxParallel)

		for _, address := range addresses {
			address := address

			g.Go(func() error {
				if _, err := r.Resolve(gctx, address); err != nil {
					r.logger.Warn("agent card resolution failed", "address", address, "error", err)
				}

				// Dead agents are skipped, never fatal.
				return nil
			})
		}

		_ = g.Wait()
	}

	return r.resolvedDescriptors()
}

// All returns a descriptor snapshot for every registered address in
// registration order, including unresolved ones.
func (r *Registry) All() []core.AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.AgentDescriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, core.AgentDescriptor{Address: e.address, Card: e.card.Clone()})
	}

	return out
}

// Cards returns the resolved capability cards in registration order.
func (r *Registry) Cards() []core.CapabilityCard {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.CapabilityCard, 0, len(r.entries))
	for _, e := range r.entries {
		if e.card == nil {
			continue
		}

		out = append(out, *e.card.Clone())
	}

	return out
}

// ByName looks up a resolved agent by its card name (exact match first, then
// case-insensitive). Router decisions name agents by card name, not address.
func (r *Registry) ByName(name string) (core.AgentDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.card != nil && e.card.AgentName == name {
			return core.AgentDescriptor{Address: e.address, Card: e.card.Clone()}, true
		}
	}

	for _, e := range r.entries {
		if e.card != nil && strings.EqualFold(e.card.AgentName, name) {
			return core.AgentDescriptor{Address: e.address, Card: e.card.Clone()}, true
		}
	}

	return core.AgentDescriptor{}, false
}

// ByAddress looks up a registered agent by address.
func (r *Registry) ByAddress(address string) (core.AgentDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byAddress[address]
	if !ok {
		return core.AgentDescriptor{}, false
	}

	return core.AgentDescriptor{Address: e.address, Card: e.card.Clone()}, true
}

// candidate pairs a descriptor with its keyword score during selection.
type candidate struct {
	desc  core.AgentDescriptor
	score int
	order int
}

// FindCandidates scores every resolved agent against the utterance and
// returns the positive-score agents best first. Ties keep registration order.
// Scoring is deterministic: +2 per skill tag contained in the lowercased
// utterance, +1 per distinct utterance token found in the card name or
// examples.
func (r *Registry) FindCandidates(utterance string) []core.AgentDescriptor {
	normalized := strings.ToLower(utterance)
	tokens := tokenize(normalized)

	r.mu.RLock()
	candidates := make([]candidate, 0, len(r.entries))

	for i, e := range r.entries {
		if e.card == nil {
			continue
		}

		score := scoreCard(e.card, normalized, tokens)
		if score <= 0 {
			continue
		}

		candidates = append(candidates, candidate{
			desc:  core.AgentDescriptor{Address: e.address, Card: e.card.Clone()},
			score: score,
			order: i,
		})
	}
	r.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}

		return candidates[i].order < candidates[j].order
	})

	out := make([]core.AgentDescriptor, len(candidates))
	for i, c := range candidates {
		out[i] = c.desc
	}

	return out
}

func (r *Registry) resolvedDescriptors() []core.AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.AgentDescriptor, 0, len(r.entries))
	for _, e := range r.entries {
		if e.card == nil {
			continue
		}

		out = append(out, core.AgentDescriptor{Address: e.address, Card: e.card.Clone()})
	}

	return out
}

// scoreCard computes the keyword score of one card against the normalized
// utterance and its token set.
func scoreCard(card *core.CapabilityCard, normalized string, tokens []string) int {
	score := 0

	for _, tag := range card.SkillTags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}

		if strings.Contains(normalized, tag) {
			score += 2
		}
	}

	haystack := strings.ToLower(card.AgentName)
	for _, example := range card.Examples {
		haystack += " " + strings.ToLower(example)
	}

	for _, token := range tokens {
		if strings.Contains(haystack, token) {
			score++
		}
	}

	return score
}

// tokenize splits a normalized utterance into distinct candidate tokens,
// dropping short stop-words that would match everywhere.
func tokenize(normalized string) []string {
	fields := strings.FieldsFunc(normalized, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))

	for _, f := range fields {
		if len(f) < 3 {
			continue
		}

		if _, ok := seen[f]; ok {
			continue
		}

		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}

	return tokens
}
