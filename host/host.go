package host

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/a2ahost/a2a"
	"github.com/hupe1980/a2ahost/core"
	"github.com/hupe1980/a2ahost/logging"
	"github.com/hupe1980/a2ahost/registry"
	"github.com/hupe1980/a2ahost/remote"
)

// FallbackAnswer is returned when no agent fits and the router produced no
// usable direct answer.
const FallbackAnswer = "I don't have an agent that can help with that right now. Try rephrasing, or ask about something the connected agents handle."

// runState labels the lifecycle phases of one handled utterance.
type runState string

const (
	stateReceived           runState = "received"
	stateCandidatesSelected runState = "candidates_selected"
	stateDispatched         runState = "dispatched"
	stateAggregating        runState = "aggregating"
	stateResponded          runState = "responded"
	stateFailed             runState = "failed"
)

// Invoker is the dispatch-side view of a delegation client.
type Invoker interface {
	Invoke(ctx context.Context, req core.TaskRequest) core.DelegationResult
}

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// Router supplies advisory routing decisions. nil disables the advisory
	// layer; the host then routes by keyword scoring alone.
	Router core.Router
	// Sender is the task transport used to build default delegation clients.
	// Defaults to the module's A2A client.
	Sender core.TaskSender
	// ClientFor overrides delegation client construction per agent.
	ClientFor func(desc core.AgentDescriptor) Invoker
	// InvokeTimeout bounds each delegation attempt.
	InvokeTimeout time.Duration
	// RouteTimeout bounds one advisory routing decision.
	RouteTimeout time.Duration
	// HistoryLimit caps the turns fed to the router.
	HistoryLimit int
	// MaxParallel bounds delegation fan-out within one utterance.
	MaxParallel int
	// Streaming lets delegation clients stream from agents that support it.
	Streaming bool
	// Logger receives run lifecycle events.
	Logger logging.Logger
}

// Host coordinates utterance handling end to end. Public methods are safe
// for concurrent use.
type Host struct {
	registry *registry.Registry
	store    core.ConversationStore

	router       core.Router
	clientFor    func(desc core.AgentDescriptor) Invoker
	routeTimeout time.Duration
	historyLimit int
	maxParallel  int
	logger       logging.Logger

	mu           sync.Mutex
	sessionLocks map[core.SessionKey]*sync.Mutex
}

var _ core.Orchestrator = (*Host)(nil)

// New constructs a Host over a registry and a conversation store.
func New(reg *registry.Registry, store core.ConversationStore, optFns ...func(o *Options)) *Host {
	opts := Options{
		InvokeTimeout: 30 * time.Second,
		RouteTimeout:  20 * time.Second,
		HistoryLimit:  25,
		MaxParallel:   8,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.OrNoOp(opts.Logger)

	clientFor := opts.ClientFor
	if clientFor == nil {
		sender := opts.Sender
		if sender == nil {
			sender = a2a.New()
		}

		clientFor = func(desc core.AgentDescriptor) Invoker {
			return remote.New(desc, sender, func(o *remote.Options) {
				o.Timeout = opts.InvokeTimeout
				o.Streaming = opts.Streaming
				o.Logger = logger
			})
		}
	}

	return &Host{
		registry:     reg,
		store:        store,
		router:       opts.Router,
		clientFor:    clientFor,
		routeTimeout: opts.RouteTimeout,
		historyLimit: opts.HistoryLimit,
		maxParallel:  opts.MaxParallel,
		logger:       logger,
	}
}

// Registry returns the agent registry the host routes over.
func (h *Host) Registry() *registry.Registry {
	return h.registry
}

// Handle processes one user utterance and returns the answer text. The user
// turn is persisted before any routing; the host turn after aggregation, so a
// completed call always leaves both in memory. Delegation failures degrade
// the answer instead of failing the call: only conversation storage faults
// and ctx cancellation return errors.
func (h *Host) Handle(ctx context.Context, userID, chatID, utterance string) (string, error) {
	key := core.SessionKey{UserID: userID, ChatID: chatID}

	lock := h.sessionLock(key)
	lock.Lock()
	defer lock.Unlock()

	h.logger.Debug("utterance received", "state", stateReceived, "session", key.String())

	if err := h.store.Append(key, core.NewUserTurn(utterance)); err != nil {
		h.logger.Error("user turn append failed", "session", key.String(), "error", err)

		return "", fmt.Errorf("append user turn: %w", err)
	}

	answer, failed, err := h.run(ctx, key, utterance)
	if err != nil {
		h.logger.Debug("utterance aborted", "state", stateFailed, "session", key.String(), "error", err)

		return "", err
	}

	if err := h.store.Append(key, core.NewHostTurn(answer)); err != nil {
		h.logger.Error("host turn append failed", "session", key.String(), "error", err)

		return "", fmt.Errorf("append host turn: %w", err)
	}

	state := stateResponded
	if failed {
		state = stateFailed
	}

	h.logger.Debug("utterance answered", "state", state, "session", key.String())

	return answer, nil
}

// run executes routing, dispatch and aggregation. It reports failed=true when
// delegations were dispatched and none succeeded; the answer is still text.
func (h *Host) run(ctx context.Context, key core.SessionKey, utterance string) (answer string, failed bool, err error) {
	history, err := h.store.Read(key, h.historyLimit)
	if err != nil {
		return "", false, fmt.Errorf("read history: %w", err)
	}

	agents := h.registry.ResolveAll(ctx)
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	advisory := h.route(ctx, utterance, agents, history)
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	targets, direct := h.selectTargets(advisory, utterance)

	h.logger.Debug("candidates selected",
		"state", stateCandidatesSelected,
		"session", key.String(),
		"targets", len(targets),
	)

	if len(targets) == 0 {
		return direct, false, nil
	}

	results, err := h.dispatch(ctx, key, targets)
	if err != nil {
		return "", false, err
	}

	h.logger.Debug("aggregating results", "state", stateAggregating, "session", key.String())

	return h.aggregate(key, results)
}

// route asks the advisory router for a decision. A nil router, a router
// error, or an expired route timeout all yield nil: the caller falls back to
// keyword matching. Router failures are never fatal.
func (h *Host) route(ctx context.Context, utterance string, agents []core.AgentDescriptor, history []core.Turn) *core.Decision {
	if h.router == nil {
		return nil
	}

	cards := make([]core.CapabilityCard, 0, len(agents))
	for _, desc := range agents {
		if desc.Card != nil {
			cards = append(cards, *desc.Card)
		}
	}

	routeCtx := ctx
	if h.routeTimeout > 0 {
		var cancel context.CancelFunc
		routeCtx, cancel = context.WithTimeout(ctx, h.routeTimeout)
		defer cancel()
	}

	decision, err := h.router.Decide(routeCtx, core.RouteInput{
		Utterance: utterance,
		Agents:    cards,
		History:   history,
	})
	if err != nil {
		if ctx.Err() == nil {
			h.logger.Warn("router failed, falling back to keyword matching", "error", err)
		}

		return nil
	}

	return &decision
}

// target is one validated delegation about to dispatch.
type target struct {
	desc  core.AgentDescriptor
	input string
}

// selectTargets turns an advisory decision into validated dispatch targets.
// Any agent name the registry cannot resolve invalidates the whole advisory
// decision and keyword matching takes over. Returns either targets or the
// direct answer text.
func (h *Host) selectTargets(advisory *core.Decision, utterance string) ([]target, string) {
	if advisory == nil {
		return h.fallbackTargets(utterance)
	}

	if advisory.Kind == core.DecisionDirect {
		answer := strings.TrimSpace(advisory.Answer)
		if answer == "" {
			answer = FallbackAnswer
		}

		return nil, answer
	}

	targets := make([]target, 0, len(advisory.Delegations))
	seen := make(map[string]struct{}, len(advisory.Delegations))

	for _, d := range advisory.Delegations {
		desc, ok := h.lookup(d.Agent)
		if !ok {
			h.logger.Warn("router named an unknown agent, falling back to keyword matching", "agent", d.Agent)

			return h.fallbackTargets(utterance)
		}

		if _, dup := seen[desc.Address]; dup {
			continue
		}
		seen[desc.Address] = struct{}{}

		input := d.Input
		if strings.TrimSpace(input) == "" {
			input = utterance
		}

		targets = append(targets, target{desc: desc, input: input})
	}

	if len(targets) == 0 {
		return h.fallbackTargets(utterance)
	}

	return targets, ""
}

// fallbackTargets selects the top keyword candidate, or degrades to the
// canned direct answer when nothing scores.
func (h *Host) fallbackTargets(utterance string) ([]target, string) {
	candidates := h.registry.FindCandidates(utterance)
	if len(candidates) == 0 {
		return nil, FallbackAnswer
	}

	return []target{{desc: candidates[0], input: utterance}}, ""
}

// lookup resolves a router-named agent by card name first, then by address.
func (h *Host) lookup(agent string) (core.AgentDescriptor, bool) {
	if desc, ok := h.registry.ByName(agent); ok {
		return desc, true
	}

	return h.registry.ByAddress(agent)
}

// dispatch fans the delegations out concurrently. Task ids are fixed and
// recorded in the session before any call starts, so a cancelled run leaves
// the refs behind for follow-up reuse.
func (h *Host) dispatch(ctx context.Context, key core.SessionKey, targets []target) ([]core.DelegationResult, error) {
	reqs := make([]core.TaskRequest, len(targets))

	for i, t := range targets {
		taskID, ok := h.store.TaskRef(key, t.desc.Address)
		if !ok || taskID == "" {
			taskID = core.NewID()
		}

		if err := h.store.RecordTaskRef(key, t.desc.Address, taskID); err != nil {
			return nil, fmt.Errorf("record task ref: %w", err)
		}

		reqs[i] = core.TaskRequest{
			TaskID:         taskID,
			SessionContext: key.ChatID,
			Text:           t.input,
			Metadata: map[string]string{
				"user_id": key.UserID,
				"chat_id": key.ChatID,
			},
		}
	}

	h.logger.Debug("delegations dispatched",
		"state", stateDispatched,
		"session", key.String(),
		"agents", len(targets),
	)

	results := make([]core.DelegationResult, len(targets))
	sem := make(chan struct{}, h.maxParallel)

	var wg sync.WaitGroup

	for i := range targets {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = h.clientFor(targets[i].desc).Invoke(ctx, reqs[i])
		}(i)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// aggregate settles task refs and folds the results into one answer. With a
// single success the payload is relayed verbatim; several successes are
// recorded as remote agent turns and joined deterministically in dispatch
// order; zero successes degrade to a summary, reported as failed.
func (h *Host) aggregate(key core.SessionKey, results []core.DelegationResult) (string, bool, error) {
	successes := make([]core.DelegationResult, 0, len(results))

	for _, res := range results {
		if res.AwaitingInput {
			// The task is still open on the agent side; the ref must survive
			// so the follow-up utterance resumes it.
			h.logger.Debug("agent awaits user input", "agent", res.AgentAddress, "task_id", res.TaskID)
		} else if err := h.store.ClearTaskRef(key, res.AgentAddress); err != nil {
			return "", false, fmt.Errorf("clear task ref: %w", err)
		}

		if res.Succeeded() {
			successes = append(successes, res)
		}
	}

	switch len(successes) {
	case 0:
		return degradedSummary(results), true, nil
	case 1:
		return successes[0].Payload, false, nil
	default:
		var sb strings.Builder

		for i, res := range successes {
			if err := h.store.Append(key, core.NewAgentTurn(res.Payload, res.AgentAddress)); err != nil {
				return "", false, fmt.Errorf("append agent turn: %w", err)
			}

			if i > 0 {
				sb.WriteString("\n")
			}

			sb.WriteString(res.AgentName)
			sb.WriteString(": ")
			sb.WriteString(res.Payload)
		}

		return sb.String(), false, nil
	}
}

// degradedSummary names each agent's terminal status so the user sees what
// was tried.
func degradedSummary(results []core.DelegationResult) string {
	parts := make([]string, 0, len(results))

	for _, res := range results {
		part := fmt.Sprintf("%s %s", res.AgentName, res.Status)
		if res.ErrorDetail != nil && res.ErrorDetail.Message != "" {
			part += ": " + res.ErrorDetail.Message
		}

		parts = append(parts, part)
	}

	return "I couldn't get an answer from the delegated agents (" + strings.Join(parts, "; ") + "). Please try again."
}

// sessionLock returns the mutex serializing runs for one session, creating
// it on first use.
func (h *Host) sessionLock(key core.SessionKey) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessionLocks == nil {
		h.sessionLocks = make(map[core.SessionKey]*sync.Mutex)
	}

	lock, ok := h.sessionLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		h.sessionLocks[key] = lock
	}

	return lock
}
