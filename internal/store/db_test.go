package store

import (
	"testing"
	"time"
)

// Helper function to create an in-memory store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	if err := store.CreateSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return store
}

func testCacheEntry() *CacheEntry {
	return &CacheEntry{
		Package:          "jq",
		InstalledVersion: "1.6",
		CatalogHead:      "abc123def456",
		LagOffset:        3,
		SchemaVersion:    CacheSchemaVersion,
		VersionLabel:     "1.4",
		RevisionHandle:   "0011223344556677",
		DefinitionPath:   "Formula/j/jq.rb",
		CommitTime:       1600000000,
		Shallow:          false,
	}
}

func TestNew(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Store.db should not be nil")
	}
}

func TestCreateSchema(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	// Verify tables exist by querying sqlite_master
	tables := []string{"revision_cache", "exceptions", "resolved_entries", "change_set", "plan_meta"}
	for _, table := range tables {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	indexes := []string{"idx_cache_package", "idx_changes_package"}
	for _, index := range indexes {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&name)
		if err != nil {
			t.Errorf("Index %s not found: %v", index, err)
		}
	}

	// CreateSchema is idempotent
	if err := store.CreateSchema(); err != nil {
		t.Errorf("second CreateSchema() failed: %v", err)
	}
}

func TestCacheEntry_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	want := testCacheEntry()
	want.Shallow = true
	if err := store.PutCacheEntry(want); err != nil {
		t.Fatalf("PutCacheEntry() failed: %v", err)
	}

	got, err := store.GetCacheEntry("jq", "1.6", "abc123def456", 3, CacheSchemaVersion)
	if err != nil {
		t.Fatalf("GetCacheEntry() failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetCacheEntry() = nil, want entry")
	}
	if *got != *want {
		t.Errorf("GetCacheEntry() = %+v, want %+v", got, want)
	}
}

func TestGetCacheEntry_MissReturnsNil(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	got, err := store.GetCacheEntry("jq", "1.6", "abc123def456", 3, CacheSchemaVersion)
	if err != nil {
		t.Fatalf("GetCacheEntry() failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetCacheEntry() = %+v, want nil on miss", got)
	}
}

// TestPutCacheEntry_FirstWriteWins verifies that a second write under the
// same key never replaces the first resolution.
func TestPutCacheEntry_FirstWriteWins(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	first := testCacheEntry()
	if err := store.PutCacheEntry(first); err != nil {
		t.Fatalf("PutCacheEntry() failed: %v", err)
	}

	second := testCacheEntry()
	second.VersionLabel = "1.3"
	second.RevisionHandle = "ffeeddccbbaa9988"
	if err := store.PutCacheEntry(second); err != nil {
		t.Fatalf("second PutCacheEntry() failed: %v", err)
	}

	got, err := store.GetCacheEntry("jq", "1.6", "abc123def456", 3, CacheSchemaVersion)
	if err != nil {
		t.Fatalf("GetCacheEntry() failed: %v", err)
	}
	if got.VersionLabel != "1.4" {
		t.Errorf("VersionLabel = %q, want first write %q kept", got.VersionLabel, "1.4")
	}
}

func TestGetCacheEntry_KeyFieldsDisambiguate(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	base := testCacheEntry()
	if err := store.PutCacheEntry(base); err != nil {
		t.Fatalf("PutCacheEntry() failed: %v", err)
	}

	offsetFive := testCacheEntry()
	offsetFive.LagOffset = 5
	offsetFive.VersionLabel = "1.2"
	if err := store.PutCacheEntry(offsetFive); err != nil {
		t.Fatalf("PutCacheEntry() failed: %v", err)
	}

	got, err := store.GetCacheEntry("jq", "1.6", "abc123def456", 5, CacheSchemaVersion)
	if err != nil {
		t.Fatalf("GetCacheEntry() failed: %v", err)
	}
	if got == nil || got.VersionLabel != "1.2" {
		t.Errorf("GetCacheEntry(offset 5) = %+v, want label 1.2", got)
	}

	// A different head misses even with every other key field equal
	got, err = store.GetCacheEntry("jq", "1.6", "other-head", 3, CacheSchemaVersion)
	if err != nil {
		t.Fatalf("GetCacheEntry() failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetCacheEntry(other head) = %+v, want nil", got)
	}

	count, err := store.CacheCount()
	if err != nil {
		t.Fatalf("CacheCount() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("CacheCount() = %d, want 2", count)
	}
}

func TestExceptions_AddRemoveList(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	added, err := store.AddException("openssl@3")
	if err != nil {
		t.Fatalf("AddException() failed: %v", err)
	}
	if !added {
		t.Error("AddException() = false, want true for new exception")
	}

	added, err = store.AddException("openssl@3")
	if err != nil {
		t.Fatalf("second AddException() failed: %v", err)
	}
	if added {
		t.Error("AddException() = true, want false for duplicate")
	}

	if _, err := store.AddException("curl"); err != nil {
		t.Fatalf("AddException() failed: %v", err)
	}

	exceptions, err := store.ListExceptions()
	if err != nil {
		t.Fatalf("ListExceptions() failed: %v", err)
	}
	if len(exceptions) != 2 {
		t.Fatalf("ListExceptions() = %d entries, want 2", len(exceptions))
	}
	if exceptions[0].Name != "curl" || exceptions[1].Name != "openssl@3" {
		t.Errorf("ListExceptions() order = %s, %s; want curl, openssl@3",
			exceptions[0].Name, exceptions[1].Name)
	}
	if exceptions[0].AddedAt.IsZero() {
		t.Error("AddedAt is zero, want recorded time")
	}

	names, err := store.ExceptionNames()
	if err != nil {
		t.Fatalf("ExceptionNames() failed: %v", err)
	}
	if !names["curl"] || !names["openssl@3"] {
		t.Errorf("ExceptionNames() = %v, want both packages", names)
	}

	removed, err := store.RemoveException("curl")
	if err != nil {
		t.Fatalf("RemoveException() failed: %v", err)
	}
	if !removed {
		t.Error("RemoveException() = false, want true")
	}

	removed, err = store.RemoveException("curl")
	if err != nil {
		t.Fatalf("second RemoveException() failed: %v", err)
	}
	if removed {
		t.Error("RemoveException() = true, want false for absent name")
	}
}

func TestResolvedEntries_ReplaceAndGet(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	entries := []*ResolvedEntry{
		{
			Package:          "curl",
			InstalledVersion: "8.9.1",
			VersionLabel:     "8.7.1",
			RevisionHandle:   "aaa111",
			DefinitionPath:   "Formula/c/curl.rb",
			FinalTime:        1700000500,
			Moved:            true,
		},
		{
			Package:          "jq",
			InstalledVersion: "1.6",
			VersionLabel:     "1.4",
			RevisionHandle:   "bbb222",
			DefinitionPath:   "Formula/j/jq.rb",
			FinalTime:        1600000000,
			Moved:            false,
		},
	}
	if err := store.ReplaceResolvedEntries(entries); err != nil {
		t.Fatalf("ReplaceResolvedEntries() failed: %v", err)
	}

	got, err := store.GetResolvedEntry("curl")
	if err != nil {
		t.Fatalf("GetResolvedEntry() failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetResolvedEntry(curl) = nil, want entry")
	}
	if *got != *entries[0] {
		t.Errorf("GetResolvedEntry(curl) = %+v, want %+v", got, entries[0])
	}

	missing, err := store.GetResolvedEntry("wget")
	if err != nil {
		t.Fatalf("GetResolvedEntry(wget) failed: %v", err)
	}
	if missing != nil {
		t.Errorf("GetResolvedEntry(wget) = %+v, want nil", missing)
	}

	// A second replace swaps the snapshot wholesale
	if err := store.ReplaceResolvedEntries(entries[1:]); err != nil {
		t.Fatalf("second ReplaceResolvedEntries() failed: %v", err)
	}

	all, err := store.ListResolvedEntries()
	if err != nil {
		t.Fatalf("ListResolvedEntries() failed: %v", err)
	}
	if len(all) != 1 || all[0].Package != "jq" {
		t.Errorf("ListResolvedEntries() after swap = %+v, want only jq", all)
	}

	count, err := store.ResolvedCount()
	if err != nil {
		t.Fatalf("ResolvedCount() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("ResolvedCount() = %d, want 1", count)
	}
}

func TestReplaceResolvedEntries_EmptySnapshot(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if err := store.ReplaceResolvedEntries(nil); err != nil {
		t.Fatalf("ReplaceResolvedEntries(nil) failed: %v", err)
	}

	count, err := store.ResolvedCount()
	if err != nil {
		t.Fatalf("ResolvedCount() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("ResolvedCount() = %d, want 0", count)
	}
}

// TestChangeSet_ReplayOrderAndConsumption verifies that changes come back
// in the order they were queued and that a change set reads empty once
// deleted.
func TestChangeSet_ReplayOrderAndConsumption(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	changes := []*Change{
		{Package: "jq", Action: ActionDowngrade, TargetLabel: "1.4", RevisionHandle: "aaa", DefinitionPath: "Formula/j/jq.rb"},
		{Package: "openssl@3", Action: ActionSyncUp, TargetLabel: "3.3.1", RevisionHandle: "bbb", DefinitionPath: "Formula/o/openssl@3.rb"},
		{Package: "wget", Action: ActionNewInstall, TargetLabel: "1.24.5", RevisionHandle: "ccc", DefinitionPath: "Formula/w/wget.rb"},
	}
	if err := store.ReplaceChangeSet(changes); err != nil {
		t.Fatalf("ReplaceChangeSet() failed: %v", err)
	}

	got, err := store.ListChangeSet()
	if err != nil {
		t.Fatalf("ListChangeSet() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListChangeSet() = %d changes, want 3", len(got))
	}
	for i, c := range got {
		if c.Position != i {
			t.Errorf("change %d Position = %d, want %d", i, c.Position, i)
		}
		if c.Package != changes[i].Package {
			t.Errorf("change %d Package = %s, want %s", i, c.Package, changes[i].Package)
		}
		if c.Action != changes[i].Action {
			t.Errorf("change %d Action = %s, want %s", i, c.Action, changes[i].Action)
		}
		if c.TargetLabel != changes[i].TargetLabel {
			t.Errorf("change %d TargetLabel = %s, want %s", i, c.TargetLabel, changes[i].TargetLabel)
		}
	}

	if err := store.DeleteChangeSet(); err != nil {
		t.Fatalf("DeleteChangeSet() failed: %v", err)
	}

	count, err := store.ChangeCount()
	if err != nil {
		t.Fatalf("ChangeCount() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("ChangeCount() after delete = %d, want 0", count)
	}

	// Deleting an already consumed change set is harmless
	if err := store.DeleteChangeSet(); err != nil {
		t.Errorf("DeleteChangeSet() on empty set failed: %v", err)
	}
}

func TestPlanMeta_RoundTripAndStale(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	got, err := store.GetPlanMeta()
	if err != nil {
		t.Fatalf("GetPlanMeta() failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetPlanMeta() before any plan = %+v, want nil", got)
	}

	want := &PlanMeta{
		CatalogHead: "abc123def456",
		LagOffset:   3,
		CreatedAt:   time.Now().Truncate(time.Second),
	}
	if err := store.PutPlanMeta(want); err != nil {
		t.Fatalf("PutPlanMeta() failed: %v", err)
	}

	got, err = store.GetPlanMeta()
	if err != nil {
		t.Fatalf("GetPlanMeta() failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetPlanMeta() = nil, want metadata")
	}
	if got.CatalogHead != want.CatalogHead || got.LagOffset != want.LagOffset {
		t.Errorf("GetPlanMeta() = %+v, want %+v", got, want)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
	if got.Stale {
		t.Error("Stale = true, want false for fresh plan")
	}

	if err := store.MarkPlanStale(); err != nil {
		t.Fatalf("MarkPlanStale() failed: %v", err)
	}

	got, err = store.GetPlanMeta()
	if err != nil {
		t.Fatalf("GetPlanMeta() failed: %v", err)
	}
	if !got.Stale {
		t.Error("Stale = false after MarkPlanStale(), want true")
	}

	// A new plan replaces the record and clears the flag
	if err := store.PutPlanMeta(want); err != nil {
		t.Fatalf("second PutPlanMeta() failed: %v", err)
	}
	got, err = store.GetPlanMeta()
	if err != nil {
		t.Fatalf("GetPlanMeta() failed: %v", err)
	}
	if got.Stale {
		t.Error("Stale = true after fresh PutPlanMeta(), want false")
	}
}

func TestActionQueued(t *testing.T) {
	queued := []Action{ActionDowngrade, ActionUpgrade, ActionSyncUp, ActionNewInstall}
	for _, a := range queued {
		if !a.Queued() {
			t.Errorf("%s.Queued() = false, want true", a)
		}
	}
	idle := []Action{ActionOK, ActionOKSync, ActionExcepted, ActionError}
	for _, a := range idle {
		if a.Queued() {
			t.Errorf("%s.Queued() = true, want false", a)
		}
	}
}
