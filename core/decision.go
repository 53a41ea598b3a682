package core

// DecisionKind discriminates the routing decision variants.
type DecisionKind int

const (
	// DecisionDirect answers the user without delegating.
	DecisionDirect DecisionKind = iota
	// DecisionDelegate dispatches a single sub-task.
	DecisionDelegate
	// DecisionDelegateMany dispatches independent sub-tasks concurrently.
	DecisionDelegateMany
)

// Delegation names a target agent and the sub-task input to send it. Agent
// may be a card name or an address; the orchestrator validates it against
// the registry before dispatch. An empty Input means the original utterance
// is forwarded unchanged.
type Delegation struct {
	Agent string
	Input string
}

// Decision is the routing outcome for one user utterance. Exactly one
// variant applies, selected by Kind: a direct Answer, or one or more
// Delegations. Decisions are advisory, never binding: the orchestrator
// validates named agents against the registry and falls back to keyword
// matching when a decision cannot be honored.
type Decision struct {
	Kind        DecisionKind
	Answer      string
	Delegations []Delegation
}

// DirectAnswer returns a decision answering the user without delegation.
func DirectAnswer(text string) Decision {
	return Decision{Kind: DecisionDirect, Answer: text}
}

// DelegateTo returns a decision dispatching one sub-task to one agent.
func DelegateTo(agent, input string) Decision {
	return Decision{Kind: DecisionDelegate, Delegations: []Delegation{{Agent: agent, Input: input}}}
}

// DelegateToMany returns a decision dispatching independent sub-tasks to
// several agents concurrently.
func DelegateToMany(delegations ...Delegation) Decision {
	return Decision{Kind: DecisionDelegateMany, Delegations: delegations}
}
