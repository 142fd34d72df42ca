package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/db"
	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/script"
)

// CreateScriptInput contains parameters for the CreateScript operation.
type CreateScriptInput struct {
	ID          string // optional; minted when empty
	Title       string // required
	Author      string
	Description string
	// Skeleton seeds one act, scene and beat so the script opens ready to write.
	Skeleton bool
}

// ScriptOutput is the full nested document of a script plus its current stats.
type ScriptOutput struct {
	Script script.Document `json:"script"`
	Stats  script.Stats    `json:"stats"`
}

func scriptOutput(s *script.Script) *ScriptOutput {
	return &ScriptOutput{Script: s.Document(), Stats: s.Stats()}
}

// CreateScript stores a new script with an initial "Version 1".
func CreateScript(ctx context.Context, database *sql.DB, cfg *config.Config, input CreateScriptInput) (*ScriptOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("create")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errors.NewInvalidRequest("title is required")
	}
	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = script.NewID("script")
	}

	t := now()
	s := script.New(id, script.Metadata{
		Title:       title,
		Author:      input.Author,
		Description: input.Description,
		Created:     stamp(t),
		Modified:    stamp(t),
	})
	if cfg != nil && cfg.DefaultBeatSeconds > 0 {
		s.BeatSeconds = cfg.DefaultBeatSeconds
	}
	if input.Skeleton {
		act, _ := s.AddChild("", script.Act)
		scene, _ := s.AddChild(act, script.Scene)
		if _, err := s.AddChild(scene, script.Beat); err != nil {
			return nil, err
		}
		_ = s.SetTitle(act, "Act I")
		_ = s.SetTitle(scene, "Scene 1")
	}
	s.EnsureHistory(t)

	if err := db.Insert(database, s); err != nil {
		if err == db.ErrUniqueConstraint {
			return nil, errors.NewConflict(fmt.Sprintf("script %q already exists", id))
		}
		return nil, err
	}
	return scriptOutput(s), nil
}

// GetScript returns the stored document.
func GetScript(ctx context.Context, database *sql.DB, cfg *config.Config, id string) (*ScriptOutput, error) {
	s, err := load(ctx, database, cfg, id, "get")
	if err != nil {
		return nil, err
	}
	return scriptOutput(s), nil
}

// ListInput contains parameters for the ListScripts operation.
type ListInput struct {
	Limit          int // default: 20, max: 100
	Offset         int
	IncludeDeleted bool
}

// ListOutput contains the result of the ListScripts operation.
type ListOutput struct {
	Items      []db.Summary `json:"items"`
	Pagination Pagination   `json:"pagination"`
	Sort       string       `json:"sort"`
}

// ListScripts returns script summaries, most recently updated first.
func ListScripts(database *sql.DB, input ListInput) (*ListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	items, total, err := db.List(database, limit, offset, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []db.Summary{}
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "updated_at_desc",
	}, nil
}

// DeleteOutput contains the result of the DeleteScript operation.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// DeleteScript soft-deletes a script. PurgeScripts removes it for good.
func DeleteScript(ctx context.Context, database *sql.DB, id string) (*DeleteOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("delete")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("script_id is required")
	}
	if err := db.SoftDelete(database, id); err != nil {
		return nil, err
	}
	return &DeleteOutput{Deleted: true, ID: id}, nil
}

// PurgeInput contains parameters for the PurgeScripts operation.
type PurgeInput struct {
	OlderThanDays *int // optional, only purge if deleted_at < (now - N days)
}

// PurgeOutput contains the result of the PurgeScripts operation.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// PurgeScripts permanently deletes soft-deleted scripts and their versions.
func PurgeScripts(ctx context.Context, database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("purge")
	}
	if input.OlderThanDays != nil && *input.OlderThanDays < 0 {
		return nil, errors.NewInvalidRequest("older_than_days must not be negative")
	}
	count, err := db.PurgeDeleted(database, input.OlderThanDays)
	if err != nil {
		return nil, err
	}
	return &PurgeOutput{Purged: count, Message: formatPurgeMessage(count, input.OlderThanDays)}, nil
}

func formatPurgeMessage(count int, olderThanDays *int) string {
	if count == 0 {
		return "No deleted scripts to purge"
	}
	word := "script"
	if count > 1 {
		word = "scripts"
	}
	msg := fmt.Sprintf("Permanently deleted %d %s", count, word)
	if olderThanDays != nil {
		msg += fmt.Sprintf(" (deleted more than %d days ago)", *olderThanDays)
	}
	return msg
}

// DuplicateScript stores a copy of a script under a new id with " (Copy)" appended to
// its title. The copy starts a fresh history.
func DuplicateScript(ctx context.Context, database *sql.DB, cfg *config.Config, id string) (*ScriptOutput, error) {
	src, err := load(ctx, database, cfg, id, "duplicate")
	if err != nil {
		return nil, err
	}
	doc := src.Document()
	doc.ID = script.NewID("script")
	doc.History = nil
	t := now()
	doc.Metadata.Title += " (Copy)"
	doc.Metadata.Created = stamp(t)
	doc.Metadata.Modified = stamp(t)
	doc.Metadata.LastSaved = ""

	cp, err := script.FromDocument(doc)
	if err != nil {
		return nil, err
	}
	cp.BeatSeconds = src.BeatSeconds
	cp.EnsureHistory(t)
	if err := db.Insert(database, cp); err != nil {
		return nil, err
	}
	return scriptOutput(cp), nil
}
