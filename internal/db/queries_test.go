package db

import (
	"database/sql"
	"testing"
	"time"

	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/resource"
	"github.com/hpungsan/kino/internal/script"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestScript builds a one-act script with a single beat and a saved first version.
func newTestScript(t *testing.T, id, title string) *script.Script {
	t.Helper()
	s := script.New(id, script.Metadata{Title: title, Author: "Ann"})
	if err := s.Resources.Add(resource.Resource{ID: "res-1", Type: resource.Character, Value: "John"}); err != nil {
		t.Fatal(err)
	}
	act, _ := s.AddChild("", script.Act)
	scene, _ := s.AddChild(act, script.Scene)
	beat, _ := s.AddChild(scene, script.Beat)
	if err := s.SetField(beat, script.FieldAudio, "<p>two words</p>"); err != nil {
		t.Fatal(err)
	}
	s.EnsureHistory(time.Now())
	return s
}

func TestInsertAndLoad(t *testing.T) {
	db := openTestDB(t)
	s := newTestScript(t, "s1", "Pilot")

	if err := Insert(db, s); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := Load(db, "s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Metadata.Title != "Pilot" || got.Metadata.Author != "Ann" {
		t.Errorf("metadata = %+v", got.Metadata)
	}
	if got.Len() != 3 {
		t.Errorf("Len = %d, want 3", got.Len())
	}
	if got.Resources.Len() != 1 {
		t.Errorf("resources = %d, want 1", got.Resources.Len())
	}
	if len(got.History) != 1 || got.History[0].Label != "Version 1" {
		t.Errorf("history = %+v", got.History)
	}
	if got.History[0].ID != s.History[0].ID {
		t.Errorf("version id = %s, want %s", got.History[0].ID, s.History[0].ID)
	}
}

func TestInsert_Duplicate(t *testing.T) {
	db := openTestDB(t)
	if err := Insert(db, newTestScript(t, "s1", "A")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	err := Insert(db, newTestScript(t, "s1", "B"))
	if err != ErrUniqueConstraint {
		t.Errorf("second Insert = %v, want ErrUniqueConstraint", err)
	}
}

func TestLoad_NotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := Load(db, "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Load = %v, want NOT_FOUND", err)
	}
}

func TestUpdate_AppendsVersions(t *testing.T) {
	db := openTestDB(t)
	s := newTestScript(t, "s1", "Pilot")
	if err := Insert(db, s); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	s.Metadata.Title = "Pilot v2"
	s.SaveVersion("Rewrite", time.Now())
	if err := Update(db, s); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	// A second update with the same history is a no-op for versions.
	if err := Update(db, s); err != nil {
		t.Fatalf("second Update failed: %v", err)
	}

	versions, err := ListVersions(db, "s1")
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("versions = %d, want 2", len(versions))
	}
	if versions[0].Label != "Rewrite" || versions[1].Label != "Version 1" {
		t.Errorf("order = %q, %q", versions[0].Label, versions[1].Label)
	}
	if versions[1].Stats.Words == 0 {
		t.Error("version stats not persisted")
	}

	got, err := Load(db, "s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Metadata.Title != "Pilot v2" {
		t.Errorf("title = %q", got.Metadata.Title)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	db := openTestDB(t)
	err := Update(db, newTestScript(t, "ghost", "G"))
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Update = %v, want NOT_FOUND", err)
	}
}

func TestList(t *testing.T) {
	db := openTestDB(t)
	for _, id := range []string{"a", "b", "c"} {
		if err := Insert(db, newTestScript(t, id, "Title "+id)); err != nil {
			t.Fatalf("Insert %s failed: %v", id, err)
		}
	}
	if err := SoftDelete(db, "b"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	items, total, err := List(db, 10, 0, false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("total=%d items=%d, want 2", total, len(items))
	}
	for _, it := range items {
		if it.ID == "b" {
			t.Error("deleted script listed")
		}
		if it.Nodes != 3 || it.Words != 2 || it.Versions != 1 || it.Duration != script.DefaultBeatSeconds {
			t.Errorf("summary = %+v", it)
		}
	}

	_, total, err = List(db, 1, 0, true)
	if err != nil {
		t.Fatalf("List(includeDeleted) failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total with deleted = %d, want 3", total)
	}
}

func TestSoftDeleteAndPurge(t *testing.T) {
	db := openTestDB(t)
	if err := Insert(db, newTestScript(t, "s1", "A")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := SoftDelete(db, "s1"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if err := SoftDelete(db, "s1"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second SoftDelete = %v, want NOT_FOUND", err)
	}
	if ok, _ := Exists(db, "s1"); ok {
		t.Error("deleted script still exists")
	}

	days := 1
	n, err := PurgeDeleted(db, &days)
	if err != nil {
		t.Fatalf("PurgeDeleted failed: %v", err)
	}
	if n != 0 {
		t.Errorf("purged %d recent deletions, want 0", n)
	}

	n, err = PurgeDeleted(db, nil)
	if err != nil {
		t.Fatalf("PurgeDeleted failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}

	var versions int
	if err := db.QueryRow("SELECT COUNT(*) FROM versions").Scan(&versions); err != nil {
		t.Fatal(err)
	}
	if versions != 0 {
		t.Errorf("versions left after purge = %d", versions)
	}
}
