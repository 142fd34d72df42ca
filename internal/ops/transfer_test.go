package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/db"
	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/markup"
)

func transferEnv(t *testing.T) (context.Context, *config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("KINO_HOME", filepath.Join(dir, "home"))
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}
	return context.Background(), cfg, dir
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx, cfg, dir := transferEnv(t)
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	created, err := CreateScript(ctx, database, cfg, CreateScriptInput{Title: "Night Owl", Skeleton: true})
	require.NoError(t, err)
	id := created.Script.ID
	_, err = SaveVersion(ctx, database, cfg, SaveVersionInput{ScriptID: id, Label: "Table read"})
	require.NoError(t, err)

	path := filepath.Join(dir, "owl.kinoscript")
	exported, err := ExportScript(ctx, database, cfg, ExportInput{ScriptID: id, Path: path})
	require.NoError(t, err)
	require.Equal(t, path, exported.Path)
	require.Positive(t, exported.Bytes)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file left behind: %s", e.Name())
	}

	// Same id already stored.
	_, err = ImportScript(ctx, database, cfg, ImportInput{Path: path})
	require.True(t, errors.Is(err, errors.ErrConflict))

	renamed, err := ImportScript(ctx, database, cfg, ImportInput{Path: path, Mode: ImportModeRename})
	require.NoError(t, err)
	require.NotEqual(t, id, renamed.ID)
	require.Equal(t, "document", renamed.Format)
	require.False(t, renamed.Replaced)

	versions, err := ListVersions(ctx, database, renamed.ID)
	require.NoError(t, err)
	require.Len(t, versions.Versions, 2)
	require.Equal(t, "Table read", versions.Versions[0].Label)

	// The copy gets its own history; the source keeps its own.
	original, err := ListVersions(ctx, database, id)
	require.NoError(t, err)
	require.Len(t, original.Versions, 2)
	for _, v := range versions.Versions {
		for _, o := range original.Versions {
			require.NotEqual(t, o.ID, v.ID, "renamed copy reuses version %s", v.ID)
		}
	}

	replaced, err := ImportScript(ctx, database, cfg, ImportInput{Path: path, Mode: ImportModeReplace})
	require.NoError(t, err)
	require.Equal(t, id, replaced.ID)
	require.True(t, replaced.Replaced)

	listed, err := ListScripts(database, ListInput{})
	require.NoError(t, err)
	require.Len(t, listed.Items, 2)
}

func TestImportYAMLDraft(t *testing.T) {
	ctx, cfg, dir := transferEnv(t)
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	draft := `title: Heist
resources:
  - id: r1
    type: person
    value: Maya
content:
  - title: Act One
    children:
      - title: EXT. BANK
        children:
          - audio: '<span data-id="r1">Maya</span> waits.'
            duration: 20
`
	path := filepath.Join(dir, "heist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(draft), 0600))

	out, err := ImportScript(ctx, database, cfg, ImportInput{Path: path})
	require.NoError(t, err)
	require.Equal(t, "draft", out.Format)
	require.Equal(t, "Heist", out.Title)
	require.Equal(t, 1, out.Stats.Resources)
	require.Equal(t, 20.0, out.Stats.Duration)

	got, err := GetScript(ctx, database, cfg, out.ID)
	require.NoError(t, err)
	require.Len(t, got.Script.History, 1)
	require.Equal(t, "character", string(got.Script.Resources[0].Type))

	beat := got.Script.Content[0].Children[0].Children[0]
	require.Equal(t, []string{"r1"}, markup.ReferencedIDs(beat.Content.Audio))
}

func TestImportRejects(t *testing.T) {
	ctx, cfg, dir := transferEnv(t)
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	bad := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"title": "no content"}`), 0600))

	tests := []struct {
		name  string
		input ImportInput
		code  errors.ErrorCode
	}{
		{"missing file", ImportInput{Path: filepath.Join(dir, "nope.kinoscript")}, errors.ErrFileNotFound},
		{"bad mode", ImportInput{Path: bad, Mode: "merge"}, errors.ErrInvalidRequest},
		{"draft without content", ImportInput{Path: bad}, errors.ErrInvalidRequest},
		{"wrong extension", ImportInput{Path: filepath.Join(dir, "notes.txt")}, errors.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportScript(ctx, database, cfg, tt.input)
			require.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestExportDefaultPath(t *testing.T) {
	ctx, cfg, _ := transferEnv(t)
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	created, err := CreateScript(ctx, database, cfg, CreateScriptInput{Title: "The Long Night"})
	require.NoError(t, err)

	out, err := ExportScript(ctx, database, cfg, ExportInput{ScriptID: created.Script.ID})
	require.NoError(t, err)

	exportsDir, err := DefaultExportsDir()
	require.NoError(t, err)
	require.Equal(t, exportsDir, filepath.Dir(out.Path))
	require.True(t, strings.HasPrefix(filepath.Base(out.Path), "the-long-night-"))
	require.Equal(t, ".kinoscript", filepath.Ext(out.Path))
}
