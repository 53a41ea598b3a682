package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestDelegationResult_Succeeded(t *testing.T) {
	if !(DelegationResult{Status: DelegationCompleted}).Succeeded() {
		t.Error("completed result should report success")
	}
	if (DelegationResult{Status: DelegationFailed}).Succeeded() {
		t.Error("failed result should not report success")
	}
	if (DelegationResult{Status: DelegationTimedOut}).Succeeded() {
		t.Error("timed out result should not report success")
	}
}

func TestDetailFromError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{"timeout", ErrTimeout, ErrorCodeTimeout, true},
		{"deadline", context.DeadlineExceeded, ErrorCodeTimeout, true},
		{"canceled", context.Canceled, ErrorCodeCanceled, false},
		{"unreachable", ErrAgentUnreachable, ErrorCodeAgentUnreachable, true},
		{"rejected", ErrTaskRejected, ErrorCodeTaskRejected, false},
		{"mismatch", ErrProtocolMismatch, ErrorCodeProtocolMismatch, false},
		{"other", errors.New("boom"), ErrorCodeProtocolError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detail := DetailFromError(tt.err)
			if detail == nil {
				t.Fatal("expected a detail")
			}
			if detail.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, detail.Code)
			}
			if detail.Retryable != tt.retryable {
				t.Errorf("expected retryable=%v, got %v", tt.retryable, detail.Retryable)
			}
		})
	}

	if DetailFromError(nil) != nil {
		t.Error("nil error should map to nil detail")
	}
}

func TestDetailFromError_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("%w: dial tcp refused", ErrAgentUnreachable)
	detail := DetailFromError(err)
	if detail.Code != ErrorCodeAgentUnreachable {
		t.Fatalf("wrapped sentinel should still classify, got %s", detail.Code)
	}
	if detail.Message != err.Error() {
		t.Errorf("detail should carry the full message, got %q", detail.Message)
	}
}

func TestCapabilityCard_Clone(t *testing.T) {
	card := &CapabilityCard{
		AgentName: "TimeAgent",
		SkillTags: []string{"time", "clock"},
		Examples:  []string{"what time is it?"},
	}

	clone := card.Clone()
	clone.SkillTags[0] = "changed"
	clone.Examples[0] = "changed"

	if card.SkillTags[0] != "time" || card.Examples[0] != "what time is it?" {
		t.Error("clone should not share slices with the original")
	}

	var nilCard *CapabilityCard
	if nilCard.Clone() != nil {
		t.Error("nil card should clone to nil")
	}
}

func TestAgentDescriptor_Name(t *testing.T) {
	d := AgentDescriptor{Address: "http://localhost:10001"}
	if d.Resolved() {
		t.Error("descriptor without a card should be unresolved")
	}
	if d.Name() != "http://localhost:10001" {
		t.Errorf("unresolved descriptor should fall back to the address, got %s", d.Name())
	}

	d.Card = &CapabilityCard{AgentName: "TimeAgent"}
	if !d.Resolved() {
		t.Error("descriptor with a card should be resolved")
	}
	if d.Name() != "TimeAgent" {
		t.Errorf("expected TimeAgent, got %s", d.Name())
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if id == "" {
			t.Fatal("NewID returned empty string")
		}
		if seen[id] {
			t.Fatalf("NewID returned duplicate %s", id)
		}
		seen[id] = true
	}
}
