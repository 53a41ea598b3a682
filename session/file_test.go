package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/a2ahost/core"
)

// Interface compliance (compile-time assertion)
var _ core.ConversationStore = (*FileStore)(nil)

func TestFileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	key := core.SessionKey{UserID: "alice", ChatID: "c1"}

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Append(key, core.NewUserTurn("what time is it")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(key, core.NewHostTurn("It is noon.")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.RecordTaskRef(key, "http://agent", "task-1"); err != nil {
		t.Fatalf("record: %v", err)
	}

	// fresh store over the same directory sees everything
	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}

	turns, err := reopened.Read(key, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(turns) != 2 || turns[0].Text != "what time is it" || turns[1].Text != "It is noon." {
		t.Fatalf("unexpected reloaded history: %#v", turns)
	}
	if turns[0].Role != core.RoleUser || turns[1].Role != core.RoleHost {
		t.Fatalf("roles not preserved: %#v", turns)
	}

	if id, ok := reopened.TaskRef(key, "http://agent"); !ok || id != "task-1" {
		t.Fatalf("task ref not reloaded: %q %v", id, ok)
	}
}

func TestFileStore_SkipsMalformedSnapshot(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	good := core.SessionKey{UserID: "alice", ChatID: "c1"}
	if err := store.Append(good, core.NewUserTurn("kept")); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write broken snapshot: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "keyless.json"), []byte(`{"turns":[]}`), 0o600); err != nil {
		t.Fatalf("write keyless snapshot: %v", err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen should skip malformed snapshots, got %v", err)
	}
	if reopened.Len() != 1 {
		t.Fatalf("expected only the valid session, got %d", reopened.Len())
	}
	turns, _ := reopened.Read(good, 0)
	if len(turns) != 1 || turns[0].Text != "kept" {
		t.Fatalf("valid session lost: %#v", turns)
	}
}

func TestFileStore_UnwritableDirectory(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not bind for root")
	}

	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	defer os.Chmod(dir, 0o700)

	key := core.SessionKey{UserID: "u", ChatID: "c"}
	err = store.Append(key, core.NewUserTurn("hello"))
	if !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	// failed persist must leave memory unchanged
	turns, _ := store.Read(key, 0)
	if len(turns) != 0 {
		t.Fatalf("failed append should not be visible: %#v", turns)
	}
}

func TestFileStore_NeverSeenKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	turns, err := store.Read(core.SessionKey{UserID: "ghost", ChatID: "c"}, 5)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected empty history, got %#v", turns)
	}
	if store.Len() != 0 {
		t.Fatal("reading must not create snapshots")
	}

	entries, _ := os.ReadDir(store.dir)
	if len(entries) != 0 {
		t.Fatalf("expected no files, got %d", len(entries))
	}
}

func TestFileStore_SanitizesHostileKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	key := core.SessionKey{UserID: "../../etc", ChatID: "pass wd"}
	if err := store.Append(key, core.NewUserTurn("contained")); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single snapshot inside the store dir, got %d", len(entries))
	}

	// the key survives via file contents, not the filename
	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	turns, _ := reopened.Read(key, 0)
	if len(turns) != 1 || turns[0].Text != "contained" {
		t.Fatalf("hostile key session lost: %#v", turns)
	}
}

func TestFileStore_ClearTaskRefPersists(t *testing.T) {
	dir := t.TempDir()
	key := core.SessionKey{UserID: "u", ChatID: "c"}

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.RecordTaskRef(key, "http://agent", "task-1"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.ClearTaskRef(key, "http://agent"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok := reopened.TaskRef(key, "http://agent"); ok {
		t.Fatal("cleared ref should stay cleared after reload")
	}
}
