package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/a2ahost/core"
)

// Card builds a minimal capability card for tests.
func Card(name string, tags ...string) *core.CapabilityCard {
	return &core.CapabilityCard{
		AgentName:   name,
		Description: name + " test agent",
		Version:     "1.0.0",
		SkillTags:   tags,
	}
}

// FakeFetcher is a scripted core.CardFetcher recording every fetch.
type FakeFetcher struct {
	mu    sync.Mutex
	cards map[string]*core.CapabilityCard
	errs  map[string]error
	delay time.Duration
	calls map[string]int
}

var _ core.CardFetcher = (*FakeFetcher)(nil)

// NewFakeFetcher creates an empty fetcher; unscripted addresses fail with a
// protocol mismatch.
func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		cards: make(map[string]*core.CapabilityCard),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

// SetCard scripts the card returned for an address.
func (f *FakeFetcher) SetCard(address string, card *core.CapabilityCard) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cards[address] = card
	delete(f.errs, address)
}

// SetError scripts a persistent fetch failure for an address.
func (f *FakeFetcher) SetError(address string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.errs[address] = err
}

// SetDelay makes every fetch block for d (or until ctx dies).
func (f *FakeFetcher) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.delay = d
}

// Calls reports how many times an address was fetched.
func (f *FakeFetcher) Calls(address string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[address]
}

// FetchCard implements core.CardFetcher.
func (f *FakeFetcher) FetchCard(ctx context.Context, address string) (*core.CapabilityCard, error) {
	f.mu.Lock()
	f.calls[address]++
	err := f.errs[address]
	card := f.cards[address]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if err != nil {
		return nil, err
	}

	if card == nil {
		return nil, fmt.Errorf("%w: %s: no card scripted", core.ErrProtocolMismatch, address)
	}

	return card.Clone(), nil
}

// SentTask records one delegation observed by the fake sender.
type SentTask struct {
	Address string
	Request core.TaskRequest
}

// FakeSender is a scripted core.TaskSender recording every request. Failures
// can be queued (consumed one per call, for retry tests) or persistent.
type FakeSender struct {
	mu        sync.Mutex
	responses map[string]*core.TaskResponse
	frames    map[string][]core.TaskResponse
	queued    map[string][]error
	failures  map[string]error
	delay     time.Duration
	requests  []SentTask
}

var _ core.TaskSender = (*FakeSender)(nil)

// NewFakeSender creates a sender that echoes requests until scripted.
func NewFakeSender() *FakeSender {
	return &FakeSender{
		responses: make(map[string]*core.TaskResponse),
		frames:    make(map[string][]core.TaskResponse),
		queued:    make(map[string][]error),
		failures:  make(map[string]error),
	}
}

// Respond scripts the terminal response for an address.
func (f *FakeSender) Respond(address string, resp *core.TaskResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.responses[address] = resp
}

// RespondText scripts a completed response carrying text.
func (f *FakeSender) RespondText(address, text string) {
	f.Respond(address, &core.TaskResponse{State: core.TaskStateCompleted, Text: text})
}

// FailWith scripts a persistent failure for an address.
func (f *FakeSender) FailWith(address string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures[address] = err
}

// QueueError scripts one failure consumed by the next call to an address;
// later calls fall through to the scripted response.
func (f *FakeSender) QueueError(address string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queued[address] = append(f.queued[address], err)
}

// Stream scripts the frame sequence returned by StreamTask for an address.
func (f *FakeSender) Stream(address string, frames ...core.TaskResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.frames[address] = frames
}

// SetDelay makes every send block for d (or until ctx dies).
func (f *FakeSender) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.delay = d
}

// Requests returns a copy of every recorded delegation in arrival order.
func (f *FakeSender) Requests() []SentTask {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]SentTask, len(f.requests))
	copy(out, f.requests)

	return out
}

// CallCount reports how many sends an address received.
func (f *FakeSender) CallCount(address string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, req := range f.requests {
		if req.Address == address {
			count++
		}
	}

	return count
}

// SendTask implements core.TaskSender.
func (f *FakeSender) SendTask(ctx context.Context, address string, req core.TaskRequest) (*core.TaskResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, SentTask{Address: address, Request: req})

	var err error
	if queue := f.queued[address]; len(queue) > 0 {
		err = queue[0]
		f.queued[address] = queue[1:]
	} else {
		err = f.failures[address]
	}

	resp := f.responses[address]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err != nil {
		return nil, err
	}

	if resp == nil {
		return &core.TaskResponse{TaskID: req.TaskID, State: core.TaskStateCompleted, Text: "echo: " + req.Text}, nil
	}

	out := *resp
	if out.TaskID == "" {
		out.TaskID = req.TaskID
	}

	return &out, nil
}

// StreamTask implements core.TaskSender.
func (f *FakeSender) StreamTask(ctx context.Context, address string, req core.TaskRequest) (<-chan core.TaskResponse, <-chan error) {
	framesCh := make(chan core.TaskResponse)
	errCh := make(chan error, 1)

	f.mu.Lock()
	f.requests = append(f.requests, SentTask{Address: address, Request: req})

	var err error
	if queue := f.queued[address]; len(queue) > 0 {
		err = queue[0]
		f.queued[address] = queue[1:]
	} else {
		err = f.failures[address]
	}

	frames := append([]core.TaskResponse(nil), f.frames[address]...)
	f.mu.Unlock()

	go func() {
		defer close(framesCh)
		defer close(errCh)

		if err != nil {
			errCh <- err

			return
		}

		if len(frames) == 0 {
			frames = []core.TaskResponse{{TaskID: req.TaskID, State: core.TaskStateCompleted, Text: "echo: " + req.Text}}
		}

		for _, frame := range frames {
			if frame.TaskID == "" {
				frame.TaskID = req.TaskID
			}

			select {
			case <-ctx.Done():
				errCh <- ctx.Err()

				return
			case framesCh <- frame:
			}
		}
	}()

	return framesCh, errCh
}

// ScriptedRouter returns queued decisions in order, recording every input.
// The last decision repeats once the queue drains; an empty router answers
// directly.
type ScriptedRouter struct {
	mu        sync.Mutex
	decisions []core.Decision
	err       error
	inputs    []core.RouteInput
}

var _ core.Router = (*ScriptedRouter)(nil)

// NewScriptedRouter creates a router that will return the given decisions.
func NewScriptedRouter(decisions ...core.Decision) *ScriptedRouter {
	return &ScriptedRouter{decisions: decisions}
}

// Fail makes every subsequent Decide call return err.
func (r *ScriptedRouter) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.err = err
}

// Inputs returns a copy of every recorded routing input.
func (r *ScriptedRouter) Inputs() []core.RouteInput {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]core.RouteInput, len(r.inputs))
	copy(out, r.inputs)

	return out
}

// Decide implements core.Router.
func (r *ScriptedRouter) Decide(_ context.Context, input core.RouteInput) (core.Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inputs = append(r.inputs, input)

	if r.err != nil {
		return core.Decision{}, r.err
	}

	if len(r.decisions) == 0 {
		return core.DirectAnswer("scripted direct answer"), nil
	}

	decision := r.decisions[0]
	if len(r.decisions) > 1 {
		r.decisions = r.decisions[1:]
	}

	return decision, nil
}
