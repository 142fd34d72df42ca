package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/editor"
	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/markup"
	"github.com/hpungsan/kino/internal/script"
)

// TypeIntoFieldInput contains parameters for the TypeIntoField operation. Keys is a key
// script such as "Hello @Jo{Enter}"; the caret starts at the end of the field.
type TypeIntoFieldInput struct {
	ScriptID string
	Owner    string
	Field    string
	Keys     string
}

// TypeIntoFieldOutput reports the field after the keys ran.
type TypeIntoFieldOutput struct {
	FieldOutput
	Changed bool `json:"changed"`
	// State is the editor state after the last key, e.g. "mention" if a menu is
	// still open. Open menus are discarded.
	State string `json:"state"`
	Text  string `json:"text"`
}

// TypeIntoField replays keystrokes through the editor against one field, with the
// script's resources available to mentions and autolinks, and saves the result.
func TypeIntoField(ctx context.Context, database *sql.DB, cfg *config.Config, input TypeIntoFieldInput) (*TypeIntoFieldOutput, error) {
	field, err := parseField(input.Field)
	if err != nil {
		return nil, err
	}
	events, err := editor.ParseKeys(input.Keys)
	if err != nil {
		return nil, err
	}
	grace := editor.DefaultCloseGrace
	if cfg != nil && cfg.MenuCloseGraceMS > 0 {
		grace = time.Duration(cfg.MenuCloseGraceMS) * time.Millisecond
	}

	out := &TypeIntoFieldOutput{}
	_, err = mutate(ctx, database, cfg, input.ScriptID, "field_type", func(s *script.Script) error {
		current, err := s.OwnerField(input.Owner, field)
		if err != nil {
			return err
		}
		c := editor.New(current, editor.Options{
			Registry:   s.Resources,
			OnChange:   func(string) { out.Changed = true },
			CloseGrace: grace,
		})
		editor.Run(c, events)

		out.State = c.State().String()
		out.Text = c.Buffer().Text()
		out.Markup = c.Markup()
		if !out.Changed {
			out.Markup = current
			return nil
		}
		return s.SetOwnerField(input.Owner, field, out.Markup)
	})
	if err != nil {
		return nil, err
	}
	out.ScriptID, out.Owner, out.Field = input.ScriptID, input.Owner, field
	return out, nil
}

// ImportMarkdownInput contains parameters for the ImportMarkdown operation.
type ImportMarkdownInput struct {
	ScriptID string
	Owner    string
	Field    string
	Markdown string
	Append   bool // add after the existing markup instead of replacing it
}

// ImportMarkdown converts markdown to markup and writes it into a field. "- [ ]" and
// "- [x]" list items become tasks.
func ImportMarkdown(ctx context.Context, database *sql.DB, cfg *config.Config, input ImportMarkdownInput) (*FieldOutput, error) {
	field, err := parseField(input.Field)
	if err != nil {
		return nil, err
	}
	converted, err := markup.FromMarkdown(input.Markdown)
	if err != nil {
		return nil, errors.NewInvalidRequest("invalid markdown: " + err.Error())
	}
	out := &FieldOutput{ScriptID: input.ScriptID, Owner: input.Owner, Field: field}
	_, err = mutate(ctx, database, cfg, input.ScriptID, "field_markdown", func(s *script.Script) error {
		out.Markup = converted
		if input.Append {
			current, err := s.OwnerField(input.Owner, field)
			if err != nil {
				return err
			}
			out.Markup = current + converted
		}
		return s.SetOwnerField(input.Owner, field, out.Markup)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
