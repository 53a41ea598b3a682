package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/a2ahost/core"
	"github.com/hupe1980/a2ahost/logging"
)

// Options contains options for the delegation client.
type Options struct {
	// Timeout bounds each delegation attempt.
	Timeout time.Duration
	// Retries is the number of extra attempts after a transient failure.
	Retries int
	// Streaming selects the streaming transport when the agent's card
	// advertises support for it.
	Streaming bool
	// Logger receives attempt and retry events.
	Logger logging.Logger
}

// Client delegates tasks to one remote agent.
type Client struct {
	desc      core.AgentDescriptor
	sender    core.TaskSender
	timeout   time.Duration
	retries   int
	streaming bool
	logger    logging.Logger
}

// New creates a delegation client for the given agent descriptor.
func New(desc core.AgentDescriptor, sender core.TaskSender, optFns ...func(o *Options)) *Client {
	opts := Options{
		Timeout: 30 * time.Second,
		Retries: 1,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		desc:      desc,
		sender:    sender,
		timeout:   opts.Timeout,
		retries:   opts.Retries,
		streaming: opts.Streaming,
		logger:    logging.OrNoOp(opts.Logger),
	}
}

// Descriptor returns the agent descriptor this client delegates to.
func (c *Client) Descriptor() core.AgentDescriptor {
	return c.desc
}

// Invoke delegates one task to the remote agent. It never returns a Go error:
// every failure mode is folded into the DelegationResult vocabulary. The
// caller context plus the client timeout bound each attempt; a retried
// attempt reuses the request's task id so the remote side can deduplicate.
func (c *Client) Invoke(ctx context.Context, req core.TaskRequest) core.DelegationResult {
	result := core.DelegationResult{
		AgentAddress: c.desc.Address,
		AgentName:    c.desc.Name(),
		TaskID:       req.TaskID,
	}

	var lastErr error

	attempts := 1 + c.retries
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		if attempt > 0 {
			c.logger.Debug("retrying delegation",
				"agent", c.desc.Address,
				"task_id", req.TaskID,
				"attempt", attempt+1,
			)
		}

		resp, err := c.attempt(ctx, req)
		if err == nil {
			return c.fromResponse(result, resp)
		}

		lastErr = err

		if !retryable(err) {
			break
		}
	}

	return c.fromError(result, lastErr)
}

// attempt performs one bounded delegation round-trip.
func (c *Client) attempt(ctx context.Context, req core.TaskRequest) (*core.TaskResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.streamingEnabled() {
		return c.stream(ctx, req)
	}

	return c.sender.SendTask(ctx, c.desc.Address, req)
}

// stream folds a frame sequence into a single response: text of working
// frames accumulates, the terminal frame ends the call and its text wins
// when non-empty.
func (c *Client) stream(ctx context.Context, req core.TaskRequest) (*core.TaskResponse, error) {
	frames, errs := c.sender.StreamTask(ctx, c.desc.Address, req)

	var partial strings.Builder

	var terminal *core.TaskResponse

	for frame := range frames {
		if frame.State.Terminal() {
			f := frame
			terminal = &f

			continue
		}

		partial.WriteString(frame.Text)
	}

	if err := <-errs; err != nil {
		return nil, err
	}

	if terminal == nil {
		return nil, fmt.Errorf("%w: stream ended without a terminal state", core.ErrProtocolError)
	}

	if terminal.Text == "" {
		terminal.Text = partial.String()
	}

	return terminal, nil
}

func (c *Client) streamingEnabled() bool {
	return c.streaming && c.desc.Card != nil && c.desc.Card.Streaming
}

// fromResponse maps a terminal wire response into a DelegationResult.
func (c *Client) fromResponse(result core.DelegationResult, resp *core.TaskResponse) core.DelegationResult {
	if resp.TaskID != "" {
		result.TaskID = resp.TaskID
	}

	result.Payload = resp.Text

	switch resp.State {
	case core.TaskStateCompleted:
		result.Status = core.DelegationCompleted
	case core.TaskStateInputRequired:
		// The agent finished this round but needs more from the user; the
		// payload is its question back. The task stays outstanding.
		result.Status = core.DelegationCompleted
		result.AwaitingInput = true
	case core.TaskStateFailed:
		result.Status = core.DelegationFailed
		result.ErrorDetail = resp.ErrorDetail
		if result.ErrorDetail == nil {
			result.ErrorDetail = &core.ErrorDetail{
				Code:    core.ErrorCodeTaskRejected,
				Message: "remote agent reported failure",
			}
		}
	default:
		result.Status = core.DelegationFailed
		result.ErrorDetail = &core.ErrorDetail{
			Code:    core.ErrorCodeProtocolError,
			Message: fmt.Sprintf("unexpected terminal state %q", resp.State),
		}
	}

	return result
}

// fromError maps a failed delegation into a DelegationResult.
func (c *Client) fromError(result core.DelegationResult, err error) core.DelegationResult {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, core.ErrTimeout) {
		result.Status = core.DelegationTimedOut
	} else {
		result.Status = core.DelegationFailed
	}

	result.ErrorDetail = core.DetailFromError(err)

	c.logger.Warn("delegation failed",
		"agent", c.desc.Address,
		"task_id", result.TaskID,
		"status", string(result.Status),
		"error", err,
	)

	return result
}

// retryable reports whether the failure class may succeed on an idempotent
// replay. Rejections and protocol violations never retry.
func retryable(err error) bool {
	if errors.Is(err, core.ErrAgentUnreachable) || errors.Is(err, core.ErrTimeout) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return false
}
