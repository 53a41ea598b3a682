package core

// CapabilityCard is the self-description a remote agent serves at its
// well-known discovery endpoint: who it is and what it can do. Cards are
// treated as immutable once fetched; picking up a changed card requires
// re-registering the agent.
type CapabilityCard struct {
	AgentName   string   `json:"agent_name"`
	Description string   `json:"description"`
	Version     string   `json:"version,omitempty"`
	SkillTags   []string `json:"skill_tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	Streaming   bool     `json:"streaming,omitempty"`
}

// Clone returns a deep copy of the card.
func (c *CapabilityCard) Clone() *CapabilityCard {
	if c == nil {
		return nil
	}
	clone := &CapabilityCard{AgentName: c.AgentName, Description: c.Description, Version: c.Version, Streaming: c.Streaming}
	if len(c.SkillTags) > 0 {
		clone.SkillTags = make([]string, len(c.SkillTags))
		copy(clone.SkillTags, c.SkillTags)
	}
	if len(c.Examples) > 0 {
		clone.Examples = make([]string, len(c.Examples))
		copy(clone.Examples, c.Examples)
	}
	return clone
}

// AgentDescriptor pairs a remote agent's address with its resolved capability
// card. A nil Card means resolution has not succeeded yet; such descriptors
// are skipped during candidate selection.
type AgentDescriptor struct {
	Address string          `json:"address"`
	Card    *CapabilityCard `json:"card,omitempty"`
}

// Resolved reports whether the descriptor carries a capability card.
func (d AgentDescriptor) Resolved() bool {
	return d.Card != nil
}

// Name returns the card's agent name, falling back to the address while the
// descriptor is unresolved.
func (d AgentDescriptor) Name() string {
	if d.Card != nil && d.Card.AgentName != "" {
		return d.Card.AgentName
	}
	return d.Address
}
