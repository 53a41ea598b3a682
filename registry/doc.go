// Package registry maintains the set of remote agents known to the host and
// their resolved capability cards. The registry is loaded once with agent
// addresses at startup; cards are fetched lazily (or eagerly via ResolveAll)
// through a core.CardFetcher and cached for the registry's lifetime.
//
// Concurrent resolutions of the same address are coalesced with
// golang.org/x/sync/singleflight so a burst of utterances at startup costs a
// single card fetch per agent. Keyword candidate scoring (FindCandidates)
// only considers agents whose card resolved; dead agents are skipped, not
// fatal.
package registry
