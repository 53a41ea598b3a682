package route

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/a2ahost/core"
	"github.com/hupe1980/a2ahost/internal/schema"
	"github.com/hupe1980/a2ahost/logging"
	"github.com/hupe1980/a2ahost/model"
)

// DelegateToolName is the single tool exposed to the routing model.
const DelegateToolName = "delegate_task"

const defaultInstructions = `You are a host orchestrator that coordinates specialized remote agents on behalf of the user.
Decide whether to answer the user directly or to delegate the request using the delegate_task tool.
Delegate whenever an available agent's skills match the request; call the tool once per agent when several agents are needed.
Answer directly only for small talk or when no listed agent fits. Keep direct answers short.`

// Options contains options for the LLM router.
type Options struct {
	// Instructions overrides the default system prompt preamble. The agent
	// directory is always appended.
	Instructions string
	// Logger receives decision events.
	Logger logging.Logger
}

// LLMRouter implements core.Router on top of a reasoning model.
type LLMRouter struct {
	model        model.Model
	instructions string
	logger       logging.Logger
}

var _ core.Router = (*LLMRouter)(nil)

// NewLLMRouter creates a router that asks the given model for routing
// decisions.
func NewLLMRouter(m model.Model, optFns ...func(o *Options)) *LLMRouter {
	opts := Options{
		Instructions: defaultInstructions,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &LLMRouter{
		model:        m,
		instructions: opts.Instructions,
		logger:       logging.OrNoOp(opts.Logger),
	}
}

// Decide asks the model for a routing decision over the utterance, the
// resolved agent directory and the recent history.
func (r *LLMRouter) Decide(ctx context.Context, input core.RouteInput) (core.Decision, error) {
	req := model.Request{
		Instructions: r.renderInstructions(input.Agents),
		Messages:     renderMessages(input),
		Tools:        []model.ToolDefinition{delegateTool()},
	}

	resp, err := r.model.Generate(ctx, req)
	if err != nil {
		return core.Decision{}, fmt.Errorf("route decision: %w", err)
	}

	if len(resp.ToolCalls) == 0 {
		answer := strings.TrimSpace(resp.Text)
		r.logger.Debug("router chose direct answer", "finish_reason", resp.FinishReason)

		return core.DirectAnswer(answer), nil
	}

	delegations := make([]core.Delegation, 0, len(resp.ToolCalls))

	for _, call := range resp.ToolCalls {
		if call.Name != DelegateToolName {
			return core.Decision{}, fmt.Errorf("route decision: unsupported tool %q", call.Name)
		}

		var args map[string]any
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return core.Decision{}, fmt.Errorf("route decision: malformed %s arguments: %w", DelegateToolName, err)
		}

		if err := schema.Validate(args, delegateSchema); err != nil {
			return core.Decision{}, fmt.Errorf("route decision: %w", err)
		}

		agent, _ := args["agent"].(string)
		if strings.TrimSpace(agent) == "" {
			return core.Decision{}, fmt.Errorf("route decision: %s call without an agent name", DelegateToolName)
		}

		input, _ := args["input"].(string)

		delegations = append(delegations, core.Delegation{
			Agent: strings.TrimSpace(agent),
			Input: input,
		})
	}

	r.logger.Debug("router chose delegation", "count", len(delegations))

	if len(delegations) == 1 {
		return core.DelegateTo(delegations[0].Agent, delegations[0].Input), nil
	}

	return core.DelegateToMany(delegations...), nil
}

// renderInstructions appends the agent directory to the system preamble so
// the model knows who it can delegate to.
func (r *LLMRouter) renderInstructions(agents []core.CapabilityCard) string {
	var sb strings.Builder

	sb.WriteString(r.instructions)

	if len(agents) == 0 {
		sb.WriteString("\n\nNo remote agents are currently available. Answer directly.")

		return sb.String()
	}

	sb.WriteString("\n\nAvailable agents:\n")

	for _, card := range agents {
		sb.WriteString(fmt.Sprintf("- %s: %s", card.AgentName, card.Description))

		if len(card.SkillTags) > 0 {
			sb.WriteString(fmt.Sprintf(" (skills: %s)", strings.Join(card.SkillTags, ", ")))
		}

		if len(card.Examples) > 0 {
			sb.WriteString(fmt.Sprintf(" Example: %q", card.Examples[0]))
		}

		sb.WriteString("\n")
	}

	return sb.String()
}

// renderMessages maps conversation turns onto model messages and guarantees
// the current utterance is the final user message exactly once.
func renderMessages(input core.RouteInput) []model.Message {
	messages := make([]model.Message, 0, len(input.History)+1)

	for _, turn := range input.History {
		switch turn.Role {
		case core.RoleUser:
			messages = append(messages, model.Message{Role: "user", Text: turn.Text})
		case core.RoleHost:
			messages = append(messages, model.Message{Role: "assistant", Text: turn.Text})
		case core.RoleRemoteAgent:
			text := turn.Text
			if turn.OriginatingAgent != "" {
				text = turn.OriginatingAgent + ": " + text
			}

			messages = append(messages, model.Message{Role: "assistant", Text: text})
		}
	}

	if n := len(messages); n == 0 || messages[n-1].Role != "user" || messages[n-1].Text != input.Utterance {
		messages = append(messages, model.Message{Role: "user", Text: input.Utterance})
	}

	return messages
}

// delegateArgs is the argument struct the delegate_task schema derives from.
type delegateArgs struct {
	Agent string `json:"agent" description:"Name of the agent to delegate to, exactly as listed."`
	Input string `json:"input,omitempty" description:"The task text for the agent. Defaults to the user's utterance when empty."`
}

var delegateSchema = schema.FromStruct(delegateArgs{})

// delegateTool declares the delegate_task tool definition.
func delegateTool() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        DelegateToolName,
		Description: "Delegate the user's request to a remote agent. Call once per agent.",
		Parameters:  delegateSchema,
	}
}
