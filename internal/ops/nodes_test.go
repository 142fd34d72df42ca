package ops

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/db"
	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/script"
)

type fixture struct {
	ctx                 context.Context
	db                  *sql.DB
	cfg                 *config.Config
	id                  string
	act, scene, beat    string
	act2, scene2, beat2 string
}

// newFixture stores a script with two acts, each holding one scene with one beat.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	f := &fixture{ctx: context.Background(), db: database, cfg: config.DefaultConfig()}
	created, err := CreateScript(f.ctx, database, f.cfg, CreateScriptInput{Title: "Fixture", Skeleton: true})
	require.NoError(t, err)
	f.id = created.Script.ID
	f.act = created.Script.Content[0].ID
	f.scene = created.Script.Content[0].Children[0].ID
	f.beat = created.Script.Content[0].Children[0].Children[0].ID

	f.act2 = f.add(t, "", "Act II")
	f.scene2 = f.add(t, f.act2, "EXT. ROOF")
	f.beat2 = f.add(t, f.scene2, "")
	return f
}

func (f *fixture) add(t *testing.T, parent, title string) string {
	t.Helper()
	out, err := AddNode(f.ctx, f.db, f.cfg, AddNodeInput{ScriptID: f.id, ParentID: parent, Title: title})
	require.NoError(t, err)
	return out.Node.ID
}

func (f *fixture) children(t *testing.T, scene string) []string {
	t.Helper()
	got, err := GetScript(f.ctx, f.db, f.cfg, f.id)
	require.NoError(t, err)
	var ids []string
	var walk func([]script.DocNode)
	walk = func(nodes []script.DocNode) {
		for _, n := range nodes {
			if n.ID == scene {
				for _, c := range n.Children {
					ids = append(ids, c.ID)
				}
				return
			}
			walk(n.Children)
		}
	}
	walk(got.Script.Content)
	return ids
}

func TestCreateScript_Skeleton(t *testing.T) {
	f := newFixture(t)
	got, err := GetScript(f.ctx, f.db, f.cfg, f.id)
	require.NoError(t, err)
	require.Equal(t, "Act I", got.Script.Content[0].Title)
	require.Equal(t, "Scene 1", got.Script.Content[0].Children[0].Title)
	require.Equal(t, script.Beat, got.Script.Content[0].Children[0].Children[0].Type)

	_, err = CreateScript(f.ctx, f.db, f.cfg, CreateScriptInput{ID: f.id, Title: "Again"})
	require.True(t, errors.Is(err, errors.ErrConflict))

	_, err = CreateScript(f.ctx, f.db, f.cfg, CreateScriptInput{Title: "   "})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestAddNode_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		input AddNodeInput
		code  errors.ErrorCode
	}{
		{"under a beat", AddNodeInput{ScriptID: f.id, ParentID: f.beat}, errors.ErrInvalidTree},
		{"scene at root", AddNodeInput{ScriptID: f.id, Kind: "scene"}, errors.ErrInvalidTree},
		{"beat under act", AddNodeInput{ScriptID: f.id, ParentID: f.act, Kind: "beat"}, errors.ErrInvalidTree},
		{"unknown kind", AddNodeInput{ScriptID: f.id, Kind: "chapter"}, errors.ErrInvalidRequest},
		{"unknown parent", AddNodeInput{ScriptID: f.id, ParentID: "node-x"}, errors.ErrNotFound},
		{"unknown script", AddNodeInput{ScriptID: "script-x"}, errors.ErrNotFound},
		{"no script", AddNodeInput{}, errors.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AddNode(f.ctx, f.db, f.cfg, tt.input)
			require.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestMoveNode(t *testing.T) {
	f := newFixture(t)

	_, err := MoveNode(f.ctx, f.db, f.cfg, MoveNodeInput{ScriptID: f.id, NodeID: f.beat})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, err = MoveNode(f.ctx, f.db, f.cfg, MoveNodeInput{ScriptID: f.id, NodeID: f.beat, Before: f.beat2, Into: f.scene2})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	// A beat cannot sit among scenes.
	_, err = MoveNode(f.ctx, f.db, f.cfg, MoveNodeInput{ScriptID: f.id, NodeID: f.beat, Before: f.scene2})
	require.True(t, errors.Is(err, errors.ErrInvalidTree))
	// An act cannot move into its own scene.
	_, err = MoveNode(f.ctx, f.db, f.cfg, MoveNodeInput{ScriptID: f.id, NodeID: f.act, Into: f.scene})
	require.True(t, errors.Is(err, errors.ErrInvalidTree))

	out, err := MoveNode(f.ctx, f.db, f.cfg, MoveNodeInput{ScriptID: f.id, NodeID: f.beat, Before: f.beat2})
	require.NoError(t, err)
	require.Equal(t, f.scene2, out.Node.Parent)
	require.Equal(t, []string{f.beat, f.beat2}, f.children(t, f.scene2))
	require.Empty(t, f.children(t, f.scene))

	_, err = MoveNode(f.ctx, f.db, f.cfg, MoveNodeInput{ScriptID: f.id, NodeID: f.beat2, Into: f.scene})
	require.NoError(t, err)
	require.Equal(t, []string{f.beat2}, f.children(t, f.scene))
}

func TestNodeEdits(t *testing.T) {
	f := newFixture(t)

	out, err := SetTitle(f.ctx, f.db, f.cfg, SetTitleInput{ScriptID: f.id, NodeID: f.scene, Title: "INT. DINER"})
	require.NoError(t, err)
	require.Equal(t, "INT. DINER", out.Node.Title)

	_, err = SetTitle(f.ctx, f.db, f.cfg, SetTitleInput{ScriptID: f.id, NodeID: f.beat, Title: "x"})
	require.True(t, errors.Is(err, errors.ErrInvalidTree))

	_, err = SetDuration(f.ctx, f.db, f.cfg, SetDurationInput{ScriptID: f.id, NodeID: f.beat, Seconds: -1})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, err = SetDuration(f.ctx, f.db, f.cfg, SetDurationInput{ScriptID: f.id, NodeID: f.scene, Seconds: 10})
	require.True(t, errors.Is(err, errors.ErrInvalidTree))

	c, err := ToggleCollapse(f.ctx, f.db, f.cfg, NodeRef{ScriptID: f.id, NodeID: f.act})
	require.NoError(t, err)
	require.True(t, c.Collapsed)
	c, err = ToggleCollapse(f.ctx, f.db, f.cfg, NodeRef{ScriptID: f.id, NodeID: f.act})
	require.NoError(t, err)
	require.False(t, c.Collapsed)

	field, err := SetField(f.ctx, f.db, f.cfg, SetFieldInput{ScriptID: f.id, Owner: f.beat, Field: "visual", Markup: "<p>Rain.</p>"})
	require.NoError(t, err)
	require.Equal(t, script.FieldVisual, field.Field)
	_, err = SetField(f.ctx, f.db, f.cfg, SetFieldInput{ScriptID: f.id, Owner: f.act, Field: "audio", Markup: "x"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, err = SetField(f.ctx, f.db, f.cfg, SetFieldInput{ScriptID: f.id, Owner: f.beat, Field: "subtitle"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	del, err := DeleteNode(f.ctx, f.db, f.cfg, NodeRef{ScriptID: f.id, NodeID: f.act2})
	require.NoError(t, err)
	require.Equal(t, 3, del.Removed)
	_, err = DeleteNode(f.ctx, f.db, f.cfg, NodeRef{ScriptID: f.id, NodeID: f.act2})
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestResources(t *testing.T) {
	f := newFixture(t)

	_, err := AddResource(f.ctx, f.db, f.cfg, AddResourceInput{ScriptID: f.id, Type: "place"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, err = AddResource(f.ctx, f.db, f.cfg, AddResourceInput{ScriptID: f.id, ID: f.beat, Value: "Clash"})
	require.True(t, errors.Is(err, errors.ErrConflict))
	_, err = AddResource(f.ctx, f.db, f.cfg, AddResourceInput{ScriptID: f.id, ID: script.MetadataOwner, Value: "Clash"})
	require.True(t, errors.Is(err, errors.ErrConflict))

	diner, err := AddResource(f.ctx, f.db, f.cfg, AddResourceInput{ScriptID: f.id, ID: "res-diner", Type: "place", Value: "Diner"})
	require.NoError(t, err)
	require.Equal(t, "location", string(diner.Resource.Type))
	_, err = AddResource(f.ctx, f.db, f.cfg, AddResourceInput{ScriptID: f.id, ID: "res-diner", Value: "Diner"})
	require.True(t, errors.Is(err, errors.ErrConflict))

	maya, err := AddResource(f.ctx, f.db, f.cfg, AddResourceInput{
		ScriptID: f.id, ID: "res-maya", Type: "character", Value: "Maya",
		Description: `<p>Works at <span class="resource-chip" data-id="res-diner">Diner</span>.</p>`,
	})
	require.NoError(t, err)

	chip := `<p><span class="resource-chip" data-id="res-diner">Diner</span></p>`
	_, err = SetField(f.ctx, f.db, f.cfg, SetFieldInput{ScriptID: f.id, Owner: f.beat, Field: "visual", Markup: chip})
	require.NoError(t, err)

	refs, err := References(f.ctx, f.db, f.cfg, ReferencesInput{ScriptID: f.id, ResourceID: "res-diner"})
	require.NoError(t, err)
	require.Equal(t, []string{maya.Resource.ID}, refs.Backlinks)
	require.Contains(t, refs.Mentions, script.Mention{Owner: f.beat, Field: script.FieldVisual})

	newType := "object"
	updated, err := UpdateResource(f.ctx, f.db, f.cfg, UpdateResourceInput{ScriptID: f.id, ID: "res-diner", Type: &newType})
	require.NoError(t, err)
	require.NotEqual(t, diner.Resource.Color, updated.Resource.Color)

	empty := "  "
	_, err = UpdateResource(f.ctx, f.db, f.cfg, UpdateResourceInput{ScriptID: f.id, ID: "res-diner", Value: &empty})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	del, err := DeleteResource(f.ctx, f.db, f.cfg, ResourceRef{ScriptID: f.id, ID: "res-diner"})
	require.NoError(t, err)
	require.Equal(t, 2, del.Dangling)

	_, err = DeleteResource(f.ctx, f.db, f.cfg, ResourceRef{ScriptID: f.id, ID: "res-diner"})
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestDuplicateScript(t *testing.T) {
	f := newFixture(t)
	_, err := SaveVersion(f.ctx, f.db, f.cfg, SaveVersionInput{ScriptID: f.id})
	require.NoError(t, err)

	dup, err := DuplicateScript(f.ctx, f.db, f.cfg, f.id)
	require.NoError(t, err)
	require.NotEqual(t, f.id, dup.Script.ID)
	require.Equal(t, "Fixture (Copy)", dup.Script.Metadata.Title)
	require.Len(t, dup.Script.History, 1)
	require.Equal(t, 30.0, dup.Stats.Duration)
}

func TestCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := GetScript(ctx, f.db, f.cfg, f.id)
	require.True(t, errors.Is(err, errors.ErrCancelled))
	_, err = AddNode(ctx, f.db, f.cfg, AddNodeInput{ScriptID: f.id})
	require.True(t, errors.Is(err, errors.ErrCancelled))
}
