package core

import (
	"fmt"
	"sync"
	"testing"
)

func TestSessionKey_String(t *testing.T) {
	key := SessionKey{UserID: "alice", ChatID: "chat-1"}
	if key.String() != "alice:chat-1" {
		t.Fatalf("unexpected key rendering: %s", key.String())
	}
}

func TestSession_AppendTurnAndHistory(t *testing.T) {
	s := NewSession(SessionKey{UserID: "u", ChatID: "c"})

	s.AppendTurn(NewUserTurn("first"))
	s.AppendTurn(NewHostTurn("second"))
	s.AppendTurn(NewUserTurn("third"))

	if s.Len() != 3 {
		t.Fatalf("expected 3 turns, got %d", s.Len())
	}

	all := s.History(0)
	if len(all) != 3 || all[0].Text != "first" || all[2].Text != "third" {
		t.Fatalf("unexpected full history: %+v", all)
	}

	recent := s.History(2)
	if len(recent) != 2 || recent[0].Text != "second" || recent[1].Text != "third" {
		t.Fatalf("unexpected limited history: %+v", recent)
	}

	// mutation safety (returned slice is a copy)
	all[0].Text = "changed"
	if s.History(0)[0].Text != "first" {
		t.Error("history slice should be copied on read")
	}
}

func TestSession_TaskRefLifecycle(t *testing.T) {
	s := NewSession(SessionKey{UserID: "u", ChatID: "c"})

	if _, ok := s.TaskRef("http://agent"); ok {
		t.Fatal("expected no task ref on a fresh session")
	}

	s.SetTaskRef("http://agent", "task-1")
	if id, ok := s.TaskRef("http://agent"); !ok || id != "task-1" {
		t.Fatalf("unexpected task ref: %s %v", id, ok)
	}

	// replace, not accumulate
	s.SetTaskRef("http://agent", "task-2")
	if id, _ := s.TaskRef("http://agent"); id != "task-2" {
		t.Fatalf("expected replaced ref, got %s", id)
	}

	s.ClearTaskRef("http://agent")
	if _, ok := s.TaskRef("http://agent"); ok {
		t.Fatal("expected ref cleared")
	}

	// clearing an absent ref is a no-op
	s.ClearTaskRef("http://agent")
}

func TestSession_CloneIsolation(t *testing.T) {
	s := NewSession(SessionKey{UserID: "u", ChatID: "c"})
	s.AppendTurn(NewUserTurn("hello"))
	s.SetTaskRef("http://agent", "task-1")

	clone := s.Clone()
	if clone == s {
		t.Fatal("Clone should be a different pointer")
	}

	clone.AppendTurn(NewHostTurn("clone only"))
	clone.SetTaskRef("http://other", "task-9")

	if s.Len() != 1 {
		t.Errorf("original should not see clone's turns, got %d", s.Len())
	}
	if _, ok := s.TaskRef("http://other"); ok {
		t.Error("original should not see clone's task refs")
	}
}

func TestSession_ConcurrentAppendKeepsCount(t *testing.T) {
	s := NewSession(SessionKey{UserID: "u", ChatID: "c"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.AppendTurn(NewUserTurn(fmt.Sprintf("turn-%d", i)))
		}(i)
	}
	wg.Wait()

	if s.Len() != 20 {
		t.Fatalf("expected 20 turns after concurrent appends, got %d", s.Len())
	}
}
