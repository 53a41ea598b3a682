package route

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/a2ahost/core"
	"github.com/hupe1980/a2ahost/model"
)

func routeInput(utterance string, cards ...core.CapabilityCard) core.RouteInput {
	return core.RouteInput{Utterance: utterance, Agents: cards}
}

func TestLLMRouter_DirectAnswer(t *testing.T) {
	m := model.NewMockModel()
	m.AddResponse("hello there", "Hi! How can I help?")

	router := NewLLMRouter(m)

	decision, err := router.Decide(context.Background(), routeInput("hello there"))
	require.NoError(t, err)

	assert.Equal(t, core.DecisionDirect, decision.Kind)
	assert.Equal(t, "Hi! How can I help?", decision.Answer)
	assert.Empty(t, decision.Delegations)
}

func TestLLMRouter_SingleDelegation(t *testing.T) {
	m := model.NewMockModel()
	m.AddToolCalls("what time is it",
		model.ToolCall{ID: "c1", Name: DelegateToolName, Arguments: `{"agent":"TimeAgent","input":"what time is it"}`},
	)

	router := NewLLMRouter(m)

	decision, err := router.Decide(context.Background(), routeInput("what time is it"))
	require.NoError(t, err)

	assert.Equal(t, core.DecisionDelegate, decision.Kind)
	require.Len(t, decision.Delegations, 1)
	assert.Equal(t, "TimeAgent", decision.Delegations[0].Agent)
	assert.Equal(t, "what time is it", decision.Delegations[0].Input)
}

func TestLLMRouter_FanOutDelegation(t *testing.T) {
	m := model.NewMockModel()
	m.AddToolCalls("time and capital of France",
		model.ToolCall{ID: "c1", Name: DelegateToolName, Arguments: `{"agent":"TimeAgent"}`},
		model.ToolCall{ID: "c2", Name: DelegateToolName, Arguments: `{"agent":"GeoAgent","input":"capital of France"}`},
	)

	router := NewLLMRouter(m)

	decision, err := router.Decide(context.Background(), routeInput("time and capital of France"))
	require.NoError(t, err)

	assert.Equal(t, core.DecisionDelegateMany, decision.Kind)
	require.Len(t, decision.Delegations, 2)
	assert.Equal(t, "TimeAgent", decision.Delegations[0].Agent)
	assert.Equal(t, "", decision.Delegations[0].Input)
	assert.Equal(t, "GeoAgent", decision.Delegations[1].Agent)
	assert.Equal(t, "capital of France", decision.Delegations[1].Input)
}

func TestLLMRouter_MalformedArguments(t *testing.T) {
	m := model.NewMockModel()
	m.AddToolCalls("broken", model.ToolCall{ID: "c1", Name: DelegateToolName, Arguments: `{not json`})

	router := NewLLMRouter(m)

	_, err := router.Decide(context.Background(), routeInput("broken"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestLLMRouter_MissingAgentArgument(t *testing.T) {
	m := model.NewMockModel()
	m.AddToolCalls("no agent", model.ToolCall{ID: "c1", Name: DelegateToolName, Arguments: `{"input":"something"}`})

	router := NewLLMRouter(m)

	_, err := router.Decide(context.Background(), routeInput("no agent"))
	require.Error(t, err)
}

func TestLLMRouter_BlankAgentArgument(t *testing.T) {
	m := model.NewMockModel()
	m.AddToolCalls("blank agent", model.ToolCall{ID: "c1", Name: DelegateToolName, Arguments: `{"agent":"  "}`})

	router := NewLLMRouter(m)

	_, err := router.Decide(context.Background(), routeInput("blank agent"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without an agent name")
}

func TestLLMRouter_UnsupportedTool(t *testing.T) {
	m := model.NewMockModel()
	m.AddToolCalls("weird", model.ToolCall{ID: "c1", Name: "other_tool", Arguments: `{}`})

	router := NewLLMRouter(m)

	_, err := router.Decide(context.Background(), routeInput("weird"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported tool")
}

func TestLLMRouter_ModelErrorPropagates(t *testing.T) {
	m := &failingModel{err: errors.New("backend down")}

	router := NewLLMRouter(m)

	_, err := router.Decide(context.Background(), routeInput("anything"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "route decision")
}

func TestLLMRouter_AgentDirectoryInInstructions(t *testing.T) {
	m := model.NewMockModel()

	router := NewLLMRouter(m)

	cards := []core.CapabilityCard{
		{AgentName: "TimeAgent", Description: "Tells the time.", SkillTags: []string{"time", "clock"}, Examples: []string{"what time is it?"}},
		{AgentName: "GeoAgent", Description: "Knows capitals."},
	}

	_, err := router.Decide(context.Background(), routeInput("what time is it", cards...))
	require.NoError(t, err)

	reqs := m.Requests()
	require.Len(t, reqs, 1)

	instructions := reqs[0].Instructions
	assert.Contains(t, instructions, "- TimeAgent: Tells the time. (skills: time, clock)")
	assert.Contains(t, instructions, `Example: "what time is it?"`)
	assert.Contains(t, instructions, "- GeoAgent: Knows capitals.")

	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, DelegateToolName, reqs[0].Tools[0].Name)
}

func TestLLMRouter_EmptyDirectory(t *testing.T) {
	m := model.NewMockModel()

	router := NewLLMRouter(m)

	_, err := router.Decide(context.Background(), routeInput("hello"))
	require.NoError(t, err)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Instructions, "No remote agents are currently available.")
}

func TestLLMRouter_HistoryMapping(t *testing.T) {
	m := model.NewMockModel()

	router := NewLLMRouter(m)

	input := core.RouteInput{
		Utterance: "and in Berlin?",
		History: []core.Turn{
			core.NewUserTurn("what time is it in Paris?"),
			core.NewAgentTurn("It is 14:00 in Paris.", "http://time-agent"),
			core.NewHostTurn("It is 14:00 in Paris."),
		},
	}

	_, err := router.Decide(context.Background(), input)
	require.NoError(t, err)

	reqs := m.Requests()
	require.Len(t, reqs, 1)

	messages := reqs[0].Messages
	require.Len(t, messages, 4)
	assert.Equal(t, model.Message{Role: "user", Text: "what time is it in Paris?"}, messages[0])
	assert.Equal(t, model.Message{Role: "assistant", Text: "http://time-agent: It is 14:00 in Paris."}, messages[1])
	assert.Equal(t, model.Message{Role: "assistant", Text: "It is 14:00 in Paris."}, messages[2])
	assert.Equal(t, model.Message{Role: "user", Text: "and in Berlin?"}, messages[3])
}

func TestLLMRouter_UtteranceNotDuplicated(t *testing.T) {
	m := model.NewMockModel()

	router := NewLLMRouter(m)

	// the caller already appended the utterance to the history
	input := core.RouteInput{
		Utterance: "what time is it",
		History: []core.Turn{
			core.NewUserTurn("what time is it"),
		},
	}

	_, err := router.Decide(context.Background(), input)
	require.NoError(t, err)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 1)
	assert.Equal(t, "what time is it", reqs[0].Messages[0].Text)
}

type failingModel struct {
	err error
}

func (f *failingModel) Generate(context.Context, model.Request) (*model.Response, error) {
	return nil, f.err
}

func (f *failingModel) Info() model.Info {
	return model.Info{Name: "failing", Provider: "test"}
}
