package a2a

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/a2ahost/core"
	"github.com/hupe1980/a2ahost/logging"
)

// Compile-time interface checks.
var (
	_ core.CardFetcher = (*Client)(nil)
	_ core.TaskSender  = (*Client)(nil)
)

// maxBodyBytes bounds card and task response reads. Payloads are text; a
// frame larger than this is a protocol violation, not data.
const maxBodyBytes = 1 << 20

// Default connection pool settings for host-to-agent traffic: a small, fixed
// set of agent endpoints with frequent short exchanges.
const (
	defaultDialTimeout         = 10 * time.Second
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 120 * time.Second
)

// NewPooledTransport creates an http.Transport with connection pooling tuned
// for agent endpoints. Reused connections keep card resolution and task
// dispatch cheap under fan-out.
func NewPooledTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}
}

// Options configure the Client.
type Options struct {
	// HTTPClient overrides the pooled default. It must not set a global
	// Timeout: deadlines arrive per call through the context, and a client
	// timeout would sever long-lived event streams.
	HTTPClient *http.Client
	Logger     logging.Logger
}

// Client speaks the A2A wire protocol over HTTP. One client serves any
// number of agents; the target address is passed per call. It implements
// core.CardFetcher and core.TaskSender and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	logger     logging.Logger
}

// New creates a wire protocol client.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: NewPooledTransport()}
	}
	return &Client{httpClient: httpClient, logger: logging.OrNoOp(opts.Logger)}
}

// FetchCard retrieves and validates the capability card from the agent's
// well-known discovery endpoint.
func (c *Client) FetchCard(ctx context.Context, address string) (*core.CapabilityCard, error) {
	url := strings.TrimRight(address, "/") + WellKnownPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrProtocolMismatch, address, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrAgentUnreachable, address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: card endpoint returned %s", core.ErrProtocolMismatch, address, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrAgentUnreachable, address, err)
	}

	var card AgentCard
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, fmt.Errorf("%w: %s: unparseable card: %v", core.ErrProtocolMismatch, address, err)
	}
	if card.Name == "" {
		return nil, fmt.Errorf("%w: %s: card has no name", core.ErrProtocolMismatch, address)
	}

	c.logger.Debug("fetched capability card", "address", address, "agent", card.Name)

	return card.Capability(), nil
}

// SendTask performs one blocking message/send exchange and returns the
// terminal frame.
func (c *Client) SendTask(ctx context.Context, address string, req core.TaskRequest) (*core.TaskResponse, error) {
	env, err := c.roundTrip(ctx, address, MethodMessageSend, req)
	if err != nil {
		return nil, err
	}
	if env.Error != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrTaskRejected, address, env.Error)
	}

	task, err := decodeTask(env.Result)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrProtocolError, address, err)
	}
	if !task.Status.State.Terminal() {
		return nil, fmt.Errorf("%w: %s: non-terminal state %q from message/send", core.ErrProtocolError, address, task.Status.State)
	}

	return task.Response(), nil
}

// StreamTask performs a message/stream exchange, delivering each frame as it
// arrives. The frame channel ends after the terminal frame; transport and
// protocol failures arrive on the error channel instead.
func (c *Client) StreamTask(ctx context.Context, address string, req core.TaskRequest) (<-chan core.TaskResponse, <-chan error) {
	frames := make(chan core.TaskResponse)
	errCh := make(chan error, 1)

	go func() {
		defer close(frames)
		defer close(errCh)

		httpResp, err := c.post(ctx, address, MethodMessageStream, req, "text/event-stream")
		if err != nil {
			errCh <- err
			return
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode != http.StatusOK {
			errCh <- fmt.Errorf("%w: %s: stream endpoint returned %s", core.ErrProtocolError, address, httpResp.Status)
			return
		}

		scanner := bufio.NewScanner(httpResp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxBodyBytes)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}

			var env JSONRPCResponse
			if err := json.Unmarshal([]byte(data), &env); err != nil {
				errCh <- fmt.Errorf("%w: %s: malformed stream frame: %v", core.ErrProtocolError, address, err)
				return
			}
			if env.Error != nil {
				errCh <- fmt.Errorf("%w: %s: %v", core.ErrTaskRejected, address, env.Error)
				return
			}

			task, err := decodeTask(env.Result)
			if err != nil {
				errCh <- fmt.Errorf("%w: %s: %v", core.ErrProtocolError, address, err)
				return
			}

			select {
			case frames <- *task.Response():
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
			if task.Status.State.Terminal() {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errCh <- fmt.Errorf("%w: %s: %v", core.ErrAgentUnreachable, address, err)
			return
		}
		errCh <- fmt.Errorf("%w: %s: stream ended without terminal frame", core.ErrProtocolError, address)
	}()

	return frames, errCh
}

// roundTrip posts one JSON-RPC request and decodes the response envelope.
func (c *Client) roundTrip(ctx context.Context, address, method string, req core.TaskRequest) (*JSONRPCResponse, error) {
	httpResp, err := c.post(ctx, address, method, req, "application/json")
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: task endpoint returned %s", core.ErrProtocolError, address, httpResp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrAgentUnreachable, address, err)
	}

	var env JSONRPCResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: malformed response: %v", core.ErrProtocolError, address, err)
	}
	return &env, nil
}

func (c *Client) post(ctx context.Context, address, method string, req core.TaskRequest, accept string) (*http.Response, error) {
	params, err := json.Marshal(MessageSendParams{Message: taskMessage(req)})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProtocolError, err)
	}
	payload, err := json.Marshal(JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      core.NewID(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProtocolError, err)
	}

	url := strings.TrimRight(address, "/") + "/"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrProtocolError, address, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrAgentUnreachable, address, err)
	}
	return httpResp, nil
}

// taskMessage wraps a task request into its wire message.
func taskMessage(req core.TaskRequest) Message {
	return Message{
		Role:      "user",
		Parts:     []Part{TextPart{Text: req.Text}},
		MessageID: core.NewID(),
		TaskID:    req.TaskID,
		ContextID: req.SessionContext,
		Metadata:  req.Metadata,
	}
}

// decodeTask decodes and validates a task snapshot from a result payload.
func decodeTask(raw json.RawMessage) (*Task, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty result")
	}
	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("malformed task: %v", err)
	}
	switch task.Status.State {
	case core.TaskStateWorking, core.TaskStateCompleted, core.TaskStateFailed, core.TaskStateInputRequired:
	default:
		return nil, fmt.Errorf("unknown task state %q", task.Status.State)
	}
	return &task, nil
}
