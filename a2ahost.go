// Package a2ahost provides a high-level façade over the host orchestrator and
// its service abstractions (agent registry, conversation memory, routing &
// logging) enabling rapid construction of A2A host applications. Most
// applications interact with this package by:
//  1. Creating an A2AHost via New() or FromConfig() (optionally overriding default services)
//  2. Registering remote agent addresses (RegisterAgents)
//  3. Handling user utterances (Handle)
//
// The façade delegates orchestration to host.Host while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a persistent conversation
// store, a reasoning model and a structured logger.
package a2ahost

import (
	"context"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/a2ahost/a2a"
	"github.com/hupe1980/a2ahost/config"
	"github.com/hupe1980/a2ahost/core"
	"github.com/hupe1980/a2ahost/host"
	"github.com/hupe1980/a2ahost/logging"
	"github.com/hupe1980/a2ahost/model"
	"github.com/hupe1980/a2ahost/model/anthropic"
	"github.com/hupe1980/a2ahost/model/openai"
	"github.com/hupe1980/a2ahost/registry"
	"github.com/hupe1980/a2ahost/route"
	"github.com/hupe1980/a2ahost/session"
)

// Options configures the A2AHost instance.
type Options struct {
	// Agents lists remote agent base URLs to register at construction.
	Agents []string

	// Model powers the default LLM router. When nil (and Router is nil) the
	// host routes by keyword matching alone.
	Model model.Model

	// Router overrides the advisory routing layer entirely.
	Router core.Router

	// Store holds conversation memory (defaults to in-memory).
	Store core.ConversationStore

	// Client is the A2A transport used for card discovery and task
	// delegation (defaults to a pooled HTTP client).
	Client *a2a.Client

	// ResolveTimeout bounds a single capability card fetch.
	ResolveTimeout time.Duration

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

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// A2AHost is the high-level façade aggregating the agent registry,
// conversation memory and the orchestrator.
type A2AHost struct {
	registry *registry.Registry
	store    core.ConversationStore
	host     *host.Host
}

var _ core.Orchestrator = (*A2AHost)(nil)

// New creates a new A2AHost instance with optional overrides. Any unset
// service is initialized with a safe local default.
func New(optFns ...func(o *Options)) *A2AHost {
	opts := Options{
		Store:          session.NewInMemoryStore(),
		ResolveTimeout: 10 * time.Second,
		InvokeTimeout:  30 * time.Second,
		RouteTimeout:   20 * time.Second,
		HistoryLimit:   25,
		MaxParallel:    8,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.OrNoOp(opts.Logger)

	client := opts.Client
	if client == nil {
		client = a2a.New(func(o *a2a.Options) {
			o.Logger = logger
		})
	}

	reg := registry.New(client, func(o *registry.Options) {
		o.ResolveTimeout = opts.ResolveTimeout
		o.MaxParallelResolves = opts.MaxParallel
		o.Logger = logger
	})
	reg.Load(opts.Agents...)

	router := opts.Router
	if router == nil && opts.Model != nil {
		router = route.NewLLMRouter(opts.Model, func(o *route.Options) {
			o.Logger = logger
		})
	}

	h := host.New(reg, opts.Store, func(o *host.Options) {
		o.Router = router
		o.Sender = client
		o.InvokeTimeout = opts.InvokeTimeout
		o.RouteTimeout = opts.RouteTimeout
		o.HistoryLimit = opts.HistoryLimit
		o.MaxParallel = opts.MaxParallel
		o.Streaming = opts.Streaming
		o.Logger = logger
	})

	return &A2AHost{registry: reg, store: opts.Store, host: h}
}

// FromConfig wires an A2AHost from declarative configuration: logger, model
// provider (plus optional circuit breaker), conversation store and agent
// list. Additional option functions run after the config is applied.
func FromConfig(cfg *config.Config, optFns ...func(o *Options)) (*A2AHost, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, cfg.Logging.AddSource)

	m, err := modelFromConfig(cfg.Model, logger)
	if err != nil {
		return nil, err
	}

	var store core.ConversationStore
	if cfg.Memory.Dir != "" {
		fileStore, err := session.NewFileStore(cfg.Memory.Dir, func(o *session.FileStoreOptions) {
			o.Logger = logger
		})
		if err != nil {
			return nil, err
		}

		store = fileStore
	} else {
		store = session.NewInMemoryStore()
	}

	fns := append([]func(o *Options){func(o *Options) {
		o.Agents = cfg.Agents
		o.Model = m
		o.Store = store
		o.ResolveTimeout = cfg.Host.ResolveTimeout
		o.InvokeTimeout = cfg.Host.InvokeTimeout
		o.RouteTimeout = cfg.Host.RouteTimeout
		o.HistoryLimit = cfg.Host.HistoryLimit
		o.MaxParallel = cfg.Host.MaxParallel
		o.Streaming = cfg.Host.Streaming
		o.Logger = logger
	}}, optFns...)

	return New(fns...), nil
}

// modelFromConfig resolves the configured provider, wrapping it with a
// circuit breaker when enabled. An empty provider yields nil: the host then
// routes by keyword matching alone.
func modelFromConfig(cfg config.ModelConfig, logger logging.Logger) (model.Model, error) {
	var m model.Model

	switch cfg.Provider {
	case "":
		return nil, nil
	case "openai":
		m = openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}

			o.Temperature = cfg.Temperature

			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
		})
	case "anthropic":
		m = anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}

			o.Temperature = cfg.Temperature

			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}

			o.APIKey = cfg.APIKey
		})
	case "mock":
		m = model.NewMockModel()
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}

	if cfg.Breaker.Enabled {
		m = model.NewCircuitBreaker(m, func(o *model.BreakerOptions) {
			o.MaxFailures = cfg.Breaker.MaxFailures
			o.Interval = cfg.Breaker.Interval
			o.Timeout = cfg.Breaker.Timeout
			o.Logger = logger
		})
	}

	return m, nil
}

// RegisterAgents adds remote agent addresses to the registry. Registration
// order is preserved and breaks candidate score ties.
func (h *A2AHost) RegisterAgents(addresses ...string) {
	h.registry.Load(addresses...)
}

// ResolveAgents warms the capability card cache for every registered agent,
// skipping the unreachable ones, and returns the resolved descriptors in
// registration order.
func (h *A2AHost) ResolveAgents(ctx context.Context) []core.AgentDescriptor {
	return h.registry.ResolveAll(ctx)
}

// Handle processes one user utterance within the (userID, chatID)
// conversation and returns the answer text.
func (h *A2AHost) Handle(ctx context.Context, userID, chatID, utterance string) (string, error) {
	return h.host.Handle(ctx, userID, chatID, utterance)
}

// Registry exposes the agent registry.
func (h *A2AHost) Registry() *registry.Registry {
	return h.registry
}

// Store exposes the conversation store.
func (h *A2AHost) Store() core.ConversationStore {
	return h.store
}
