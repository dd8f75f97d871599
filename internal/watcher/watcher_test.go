package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kesokaj/brew-lag/internal/store"
)

type fakeCatalog struct {
	mu   sync.Mutex
	dir  string
	head string
	err  error
}

func (c *fakeCatalog) Dir() string { return c.dir }

func (c *fakeCatalog) Head() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	return c.head, nil
}

func (c *fakeCatalog) setHead(head string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head = head
}

func seedPlanMeta(t *testing.T, st *store.Store, head string) {
	t.Helper()
	if err := st.PutPlanMeta(&store.PlanMeta{
		CatalogHead: head,
		LagOffset:   1,
		CreatedAt:   time.Now(),
	}); err != nil {
		t.Fatalf("failed to seed plan meta: %v", err)
	}
}

func TestNew(t *testing.T) {
	st := setupTestStore(t)

	w, err := New(st, &fakeCatalog{dir: "/tmp", head: "abc"})
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	if w == nil {
		t.Fatal("New() returned nil watcher")
	}
	if w.store != st {
		t.Error("watcher store not set correctly")
	}
}

func TestNew_NilStore(t *testing.T) {
	_, err := New(nil, &fakeCatalog{})
	if err == nil {
		t.Error("New(nil, catalog) expected error, got nil")
	}
}

func TestNew_NilCatalog(t *testing.T) {
	st := setupTestStore(t)

	_, err := New(st, nil)
	if err == nil {
		t.Error("New(store, nil) expected error, got nil")
	}
}

func TestCheckHead_MarksStale(t *testing.T) {
	st := setupTestStore(t)
	seedPlanMeta(t, st, "aaa111")

	w, err := New(st, &fakeCatalog{head: "bbb222"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	w.checkHead()

	meta, err := st.GetPlanMeta()
	if err != nil {
		t.Fatalf("GetPlanMeta() error = %v", err)
	}
	if !meta.Stale {
		t.Error("moved head should mark the plan stale")
	}
}

func TestCheckHead_HeadUnchanged(t *testing.T) {
	st := setupTestStore(t)
	seedPlanMeta(t, st, "aaa111")

	w, err := New(st, &fakeCatalog{head: "aaa111"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	w.checkHead()

	meta, err := st.GetPlanMeta()
	if err != nil {
		t.Fatalf("GetPlanMeta() error = %v", err)
	}
	if meta.Stale {
		t.Error("matching head should leave the plan fresh")
	}
}

func TestCheckHead_NoPlan(t *testing.T) {
	st := setupTestStore(t)

	w, err := New(st, &fakeCatalog{head: "bbb222"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Nothing to mark; must not panic or invent plan meta.
	w.checkHead()

	meta, err := st.GetPlanMeta()
	if err != nil {
		t.Fatalf("GetPlanMeta() error = %v", err)
	}
	if meta != nil {
		t.Errorf("checkHead() created plan meta: %+v", meta)
	}
}

func TestCheckHead_HeadError(t *testing.T) {
	st := setupTestStore(t)
	seedPlanMeta(t, st, "aaa111")

	w, err := New(st, &fakeCatalog{err: fmt.Errorf("git exploded")})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	w.checkHead()

	meta, err := st.GetPlanMeta()
	if err != nil {
		t.Fatalf("GetPlanMeta() error = %v", err)
	}
	if meta.Stale {
		t.Error("an unreadable head should not mark the plan stale")
	}
}

func TestHeadRelevant(t *testing.T) {
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"fetch head write", fsnotify.Event{Name: "/tap/.git/FETCH_HEAD", Op: fsnotify.Write}, true},
		{"head create", fsnotify.Event{Name: "/tap/.git/HEAD", Op: fsnotify.Create}, true},
		{"orig head write", fsnotify.Event{Name: "/tap/.git/ORIG_HEAD", Op: fsnotify.Write}, true},
		{"packed refs rename", fsnotify.Event{Name: "/tap/.git/packed-refs", Op: fsnotify.Rename}, true},
		{"index churn", fsnotify.Event{Name: "/tap/.git/index", Op: fsnotify.Write}, false},
		{"lock file", fsnotify.Event{Name: "/tap/.git/FETCH_HEAD.lock", Op: fsnotify.Create}, false},
		{"chmod only", fsnotify.Event{Name: "/tap/.git/HEAD", Op: fsnotify.Chmod}, false},
		{"remove", fsnotify.Event{Name: "/tap/.git/HEAD", Op: fsnotify.Remove}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := headRelevant(tt.ev); got != tt.want {
				t.Errorf("headRelevant(%v) = %v, want %v", tt.ev, got, tt.want)
			}
		})
	}
}

func TestStartStop_MarksStaleOnFetch(t *testing.T) {
	st := setupTestStore(t)
	seedPlanMeta(t, st, "aaa111")

	// Bare-bones tap layout: a .git directory the watcher can follow.
	// The head move comes from the fake, the fs event from touching
	// FETCH_HEAD the way a fetch would.
	dir := t.TempDir()
	gitDir := filepath.Join(dir, ".git")
	if err := os.Mkdir(gitDir, 0755); err != nil {
		t.Fatalf("failed to create git dir: %v", err)
	}

	cat := &fakeCatalog{dir: dir, head: "aaa111"}
	w, err := New(st, cat)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w.debounce = 20 * time.Millisecond

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	meta, err := st.GetPlanMeta()
	if err != nil {
		t.Fatalf("GetPlanMeta() error = %v", err)
	}
	if meta.Stale {
		t.Fatal("plan should stay fresh while heads match")
	}

	cat.setHead("bbb222")
	if err := os.WriteFile(filepath.Join(gitDir, "FETCH_HEAD"), []byte("bbb222\n"), 0644); err != nil {
		t.Fatalf("failed to touch FETCH_HEAD: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		meta, err := st.GetPlanMeta()
		if err != nil {
			t.Fatalf("GetPlanMeta() error = %v", err)
		}
		if meta.Stale {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected the fetch to mark the plan stale")
}

func TestStart_MissingGitDir(t *testing.T) {
	st := setupTestStore(t)

	w, err := New(st, &fakeCatalog{dir: filepath.Join(t.TempDir(), "no-such-tap")})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := w.Start(); err == nil {
		w.Stop()
		t.Error("Start() on a missing .git directory expected error, got nil")
	}
}

func TestStop_BeforeStart(t *testing.T) {
	st := setupTestStore(t)

	w, err := New(st, &fakeCatalog{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() before Start() error = %v, want nil", err)
	}
}
