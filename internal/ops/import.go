package ops

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/db"
	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/resource"
	"github.com/hpungsan/kino/internal/script"
)

// ImportMode controls what happens when the imported script's id is taken.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail with CONFLICT
	ImportModeReplace ImportMode = "replace" // overwrite the stored script
	ImportModeRename  ImportMode = "rename"  // store under a fresh id
)

// ImportInput contains parameters for the ImportScript operation.
type ImportInput struct {
	Path string     // required; .kinoscript, .json, .yaml or .yml
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the ImportScript operation.
type ImportOutput struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Format   string       `json:"format"` // "document" or "draft"
	Replaced bool         `json:"replaced"`
	Stats    script.Stats `json:"stats"`
}

// ImportScript reads a script file. A .kinoscript is a full document with history;
// .json is read as a document when it is one and as a generator draft otherwise;
// .yaml and .yml are drafts. Drafts get normalised resource types, default colours
// and hydrated chips.
func ImportScript(ctx context.Context, database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace && input.Mode != ImportModeRename {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace, rename")
	}
	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	data, err := readScriptFile(ctx, input.Path)
	if err != nil {
		return nil, err
	}

	s, format, err := decodeScriptFile(data, strings.ToLower(filepath.Ext(input.Path)))
	if err != nil {
		return nil, err
	}
	return storeImported(database, cfg, s, format, input.Mode)
}

func decodeScriptFile(data []byte, ext string) (*script.Script, string, error) {
	t := now()
	switch ext {
	case ".kinoscript":
		s, err := script.Decode(data)
		if err != nil {
			return nil, "", err
		}
		normalizeResources(s)
		return s, "document", nil
	case ".json":
		if s, err := script.Decode(data); err == nil {
			normalizeResources(s)
			return s, "document", nil
		}
		d, err := script.DecodeDraft(data, "json")
		if err != nil {
			return nil, "", err
		}
		s, err := script.FromDraft(d, t)
		return s, "draft", err
	default:
		d, err := script.DecodeDraft(data, "yaml")
		if err != nil {
			return nil, "", err
		}
		s, err := script.FromDraft(d, t)
		return s, "draft", err
	}
}

// normalizeResources repairs resource types and fills in colours and icons for
// documents written by older or foreign tools.
func normalizeResources(s *script.Script) {
	for _, r := range s.Resources.All() {
		if !r.Type.Valid() {
			r.Type = resource.NormalizeType(string(r.Type))
		}
		_ = s.Resources.Update(r.WithDefaults())
	}
}

func storeImported(database *sql.DB, cfg *config.Config, s *script.Script, format string, mode ImportMode) (*ImportOutput, error) {
	t := now()
	if s.ID == "" || mode == ImportModeRename {
		if s.ID != "" {
			exists, err := db.Exists(database, s.ID)
			if err != nil {
				return nil, err
			}
			if exists {
				s.ID = ""
			}
		}
		if s.ID == "" {
			s.ID = script.NewID("script")
			// Version ids are global; the copy's history must not collide with the
			// script it was exported from.
			for i := range s.History {
				s.History[i].ID = script.NewID("v")
			}
		}
	}
	if s.Metadata.Title == "" {
		s.Metadata.Title = "Untitled"
	}
	if s.Metadata.Created == "" {
		s.Metadata.Created = stamp(t)
	}
	s.Metadata.Modified = stamp(t)
	if cfg != nil && cfg.DefaultBeatSeconds > 0 {
		s.BeatSeconds = cfg.DefaultBeatSeconds
	}
	s.EnsureHistory(t)

	out := &ImportOutput{ID: s.ID, Title: s.Metadata.Title, Format: format, Stats: s.Stats()}
	err := db.Insert(database, s)
	if err == db.ErrUniqueConstraint {
		if mode != ImportModeReplace {
			return nil, errors.NewConflict(fmt.Sprintf("script %q already exists", s.ID))
		}
		// The file's history replaces nothing already stored; new versions are added.
		err = db.Update(database, s)
		out.Replaced = true
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
