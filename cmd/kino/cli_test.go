package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/db"
	"github.com/hpungsan/kino/internal/ops"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	cleanup := func() {
		database.Close()
	}
	return database, cleanup
}

// runCLI runs args through a fresh app, feeding stdin when non-empty, and returns stdout.
func runCLI(t *testing.T, database *sql.DB, cfg *config.Config, stdin string, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(database, cfg, nil)

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	if stdin != "" {
		oldStdin := os.Stdin
		stdinR, stdinW, _ := os.Pipe()
		os.Stdin = stdinR
		go func() {
			_, _ = stdinW.WriteString(stdin)
			stdinW.Close()
		}()
		defer func() { os.Stdin = oldStdin }()
	}

	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		done <- buf.Bytes()
	}()

	err := app.Run(append([]string{"kino"}, args...))

	w.Close()
	out := <-done
	os.Stdout = oldStdout
	return string(out), err
}

// mustRun runs the command and decodes its JSON output into v.
func mustRun(t *testing.T, database *sql.DB, cfg *config.Config, stdin string, v any, args ...string) {
	t.Helper()
	out, err := runCLI(t, database, cfg, stdin, args...)
	if err != nil {
		t.Fatalf("kino %s failed: %v", strings.Join(args, " "), err)
	}
	if v == nil {
		return
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("failed to parse output of %q: %v\nOutput: %s", strings.Join(args, " "), err, out)
	}
}

// TestParseTags tests the parseTags helper function.
func TestParseTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string", "", nil},
		{"single tag", "lead", []string{"lead"}},
		{"multiple tags", "lead,villain,cameo", []string{"lead", "villain", "cameo"}},
		{"tags with spaces", " lead , villain ", []string{"lead", "villain"}},
		{"empty tags filtered", "lead,,villain,", []string{"lead", "villain"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseTags(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d tags, got %d", len(tt.expected), len(result))
			}
			for i, tag := range result {
				if tag != tt.expected[i] {
					t.Errorf("expected tag[%d]=%q, got %q", i, tt.expected[i], tag)
				}
			}
		})
	}
}

// TestParseDuration tests the parseDuration helper function.
func TestParseDuration(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    int
		expectError bool
	}{
		{name: "valid days", input: "7d", expected: 7},
		{name: "zero days", input: "0d", expected: 0},
		{name: "negative days", input: "-7d", expectError: true},
		{name: "no suffix", input: "7", expectError: true},
		{name: "wrong suffix", input: "7h", expectError: true},
		{name: "empty string", input: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseDuration(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

// TestCLICommandsRecognized keeps the mode switch in main in step with the app.
func TestModeFor(t *testing.T) {
	commands := newCLIApp(nil, nil, nil).Commands
	tests := []struct {
		args []string
		tty  bool
		want launchMode
	}{
		{nil, true, launchBanner},
		{nil, false, launchMCP},
		{[]string{"--help"}, false, launchInfo},
		{[]string{"-v"}, true, launchInfo},
		{[]string{"help"}, true, launchInfo},
		{[]string{"new", "Night Owl"}, false, launchCLI},
		{[]string{"serve"}, true, launchCLI},
		{[]string{"timeline", "x"}, true, launchCLI},
		{[]string{"frobnicate"}, true, launchUnknown},
		{[]string{"--stdio"}, false, launchMCP},
	}
	for _, tt := range tests {
		if got := modeFor(tt.args, commands, tt.tty); got != tt.want {
			t.Errorf("modeFor(%q, tty=%v) = %d, want %d", tt.args, tt.tty, got, tt.want)
		}
	}
	for _, c := range commands {
		if got := modeFor([]string{c.Name}, commands, true); got != launchCLI {
			t.Errorf("command %q is not routed to CLI mode", c.Name)
		}
	}
}

// TestCLIOutline builds a script from the command line.
func TestCLIOutline(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	cfg := config.DefaultConfig()

	var created ops.ScriptOutput
	mustRun(t, database, cfg, "", &created, "new", "--author=Ann", "Night", "Owl")
	id := created.Script.ID
	if created.Script.Metadata.Title != "Night Owl" {
		t.Errorf("title = %q, want Night Owl", created.Script.Metadata.Title)
	}

	var act, scene, beat ops.NodeOutput
	mustRun(t, database, cfg, "", &act, "node", "add", "--title=Act I", id)
	mustRun(t, database, cfg, "", &scene, "node", "add", "--parent="+act.Node.ID, "--title=INT. DINER", id)
	mustRun(t, database, cfg, "", &beat, "node", "add", "--parent="+scene.Node.ID, id)
	if beat.Node.Kind != "beat" {
		t.Errorf("kind = %q, want beat", beat.Node.Kind)
	}

	mustRun(t, database, cfg, "", nil, "node", "duration", id, beat.Node.ID, "42")
	mustRun(t, database, cfg, "", nil, "node", "title", id, scene.Node.ID, "EXT.", "ROOF")

	var collapsed ops.ToggleCollapseOutput
	mustRun(t, database, cfg, "", &collapsed, "node", "collapse", id, act.Node.ID)
	if !collapsed.Collapsed {
		t.Error("expected act to be collapsed")
	}

	var stats ops.StatsOutput
	mustRun(t, database, cfg, "", &stats, "stats", id)
	if stats.Stats.Duration != 42 || stats.Nodes != 3 {
		t.Errorf("stats = %+v", stats)
	}

	var shown ops.ScriptOutput
	mustRun(t, database, cfg, "", &shown, "show", id)
	if got := shown.Script.Content[0].Children[0].Title; got != "EXT. ROOF" {
		t.Errorf("scene title = %q, want EXT. ROOF", got)
	}

	var removed ops.DeleteNodeOutput
	mustRun(t, database, cfg, "", &removed, "node", "delete", id, act.Node.ID)
	if removed.Removed != 3 {
		t.Errorf("removed = %d, want 3", removed.Removed)
	}
}

// TestCLIWriting covers fields, the wiki and tasks.
func TestCLIWriting(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	cfg := config.DefaultConfig()

	var created ops.ScriptOutput
	mustRun(t, database, cfg, "", &created, "new", "--skeleton", "Heist")
	id := created.Script.ID
	scene := created.Script.Content[0].Children[0].ID
	beat := created.Script.Content[0].Children[0].Children[0].ID

	var maya ops.ResourceOutput
	mustRun(t, database, cfg, "", &maya, "resource", "add", "--type=person", "--value=Maya", "--tags=lead, crew", id)
	if maya.Resource.Type != "character" || len(maya.Resource.Tags) != 2 {
		t.Errorf("resource = %+v", maya.Resource)
	}

	var typed ops.TypeIntoFieldOutput
	mustRun(t, database, cfg, "", &typed, "field", "type", "--keys=@Ma{Enter}waits.", id, beat, "audio")
	if !strings.Contains(typed.Markup, `data-id="`+maya.Resource.ID+`"`) {
		t.Errorf("expected chip in markup: %s", typed.Markup)
	}

	mustRun(t, database, cfg, "<p>Night falls.</p>", nil, "field", "set", id, "metadata", "description")
	mustRun(t, database, cfg, "- [ ] rent van\n- [ ] crack safe", nil, "field", "markdown", id, scene, "description")

	var refs ops.ReferencesOutput
	mustRun(t, database, cfg, "", &refs, "resource", "refs", id, maya.Resource.ID)
	if len(refs.Mentions) != 1 || refs.Mentions[0].Owner != beat {
		t.Errorf("mentions = %+v", refs.Mentions)
	}

	var updated ops.ResourceOutput
	mustRun(t, database, cfg, "", &updated, "resource", "update", "--label=The Fox", id, maya.Resource.ID)
	if updated.Resource.Label != "The Fox" || updated.Resource.Value != "Maya" {
		t.Errorf("updated = %+v", updated.Resource)
	}

	var list ops.ListTasksOutput
	mustRun(t, database, cfg, "", &list, "tasks", "list", id)
	if list.Summary.Total != 2 {
		t.Fatalf("tasks = %+v", list.Summary)
	}
	mustRun(t, database, cfg, "", nil, "tasks", "set", id, list.Items[1].ID, "done")
	mustRun(t, database, cfg, "", &list, "tasks", "list", "--status=done", id)
	if len(list.Items) != 1 || list.Items[0].Text != "crack safe" {
		t.Errorf("done items = %+v", list.Items)
	}

	var tl ops.TimelineOutput
	mustRun(t, database, cfg, "", &tl, "timeline", id)
	if tl.Timeline.Total != 15 || len(tl.Timeline.Spans) != 3 {
		t.Errorf("timeline total %v with %d spans", tl.Timeline.Total, len(tl.Timeline.Spans))
	}

	var deleted ops.DeleteResourceOutput
	mustRun(t, database, cfg, "", &deleted, "resource", "delete", id, maya.Resource.ID)
	if deleted.Dangling != 1 {
		t.Errorf("dangling = %d, want 1", deleted.Dangling)
	}
}

// TestCLIVersionsAndLifecycle covers versions, duplicate, delete and purge.
func TestCLIVersionsAndLifecycle(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	cfg := config.DefaultConfig()

	var created ops.ScriptOutput
	mustRun(t, database, cfg, "", &created, "new", "--skeleton", "Drafts")
	id := created.Script.ID

	var saved ops.VersionInfo
	mustRun(t, database, cfg, "", &saved, "version", "save", "--label=Table read", id)
	mustRun(t, database, cfg, "", nil, "node", "delete", id, created.Script.Content[0].ID)

	var restored ops.ScriptOutput
	mustRun(t, database, cfg, "", &restored, "version", "restore", id, saved.ID)
	if len(restored.Script.Content) != 1 {
		t.Errorf("content = %d acts, want 1", len(restored.Script.Content))
	}

	var versions ops.ListVersionsOutput
	mustRun(t, database, cfg, "", &versions, "version", "list", id)
	if len(versions.Versions) != 2 || versions.Versions[0].Label != "Table read" {
		t.Errorf("versions = %+v", versions.Versions)
	}

	var dup ops.ScriptOutput
	mustRun(t, database, cfg, "", &dup, "duplicate", id)
	if dup.Script.Metadata.Title != "Drafts (Copy)" {
		t.Errorf("duplicate title = %q", dup.Script.Metadata.Title)
	}

	mustRun(t, database, cfg, "", nil, "delete", id)

	var listed ops.ListOutput
	mustRun(t, database, cfg, "", &listed, "list")
	if len(listed.Items) != 1 {
		t.Errorf("list = %d items, want 1", len(listed.Items))
	}
	mustRun(t, database, cfg, "", &listed, "list", "--include-deleted")
	if len(listed.Items) != 2 {
		t.Errorf("list --include-deleted = %d items, want 2", len(listed.Items))
	}

	var purged ops.PurgeOutput
	mustRun(t, database, cfg, "", &purged, "purge")
	if purged.Purged != 1 {
		t.Errorf("purged = %d, want 1", purged.Purged)
	}
}

// TestCLIExportImport round-trips a script through a file.
func TestCLIExportImport(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	dir := t.TempDir()
	t.Setenv("KINO_HOME", filepath.Join(dir, "home"))
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}

	var created ops.ScriptOutput
	mustRun(t, database, cfg, "", &created, "new", "--skeleton", "Round Trip")
	path := filepath.Join(dir, "trip.kinoscript")

	var exported ops.ExportOutput
	mustRun(t, database, cfg, "", &exported, "export", "--path="+path, created.Script.ID)
	if exported.Path != path {
		t.Errorf("path = %q, want %q", exported.Path, path)
	}

	if _, err := runCLI(t, database, cfg, "", "import", "--path="+path); err == nil || !strings.Contains(err.Error(), "[CONFLICT]") {
		t.Errorf("expected CONFLICT, got %v", err)
	}

	var imported ops.ImportOutput
	mustRun(t, database, cfg, "", &imported, "import", "--path="+path, "--mode=rename")
	if imported.ID == created.Script.ID || imported.Title != "Round Trip" {
		t.Errorf("imported = %+v", imported)
	}
}

// TestCLIErrors checks error formatting.
func TestCLIErrors(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	cfg := config.DefaultConfig()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing title", []string{"new"}, "[INVALID_REQUEST] usage:"},
		{"unknown script", []string{"show", "NOPE"}, "[NOT_FOUND]"},
		{"bad seconds", []string{"node", "duration", "s", "n", "soon"}, "[INVALID_REQUEST] seconds must be a number"},
		{"bad older-than", []string{"purge", "--older-than=7"}, "[INVALID_REQUEST]"},
		{"bad import mode", []string{"import", "--path=x.kinoscript", "--mode=merge"}, "[INVALID_REQUEST]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, database, cfg, "", tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.HasPrefix(err.Error(), tt.want) {
				t.Errorf("error = %q, want prefix %q", err.Error(), tt.want)
			}
		})
	}
}
