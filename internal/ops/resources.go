package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/resource"
	"github.com/hpungsan/kino/internal/script"
)

// AddResourceInput contains parameters for the AddResource operation. Type is free-form
// and normalised onto the closed set.
type AddResourceInput struct {
	ScriptID    string
	ID          string // optional; minted when empty
	Type        string
	Value       string // required
	Label       string
	Color       string
	Icon        string
	Description string
	Tags        []string
}

// ResourceOutput reports a resource after an edit.
type ResourceOutput struct {
	ScriptID string            `json:"script_id"`
	Resource resource.Resource `json:"resource"`
}

// AddResource registers a new wiki entry.
func AddResource(ctx context.Context, database *sql.DB, cfg *config.Config, input AddResourceInput) (*ResourceOutput, error) {
	value := strings.TrimSpace(input.Value)
	if value == "" {
		value = strings.TrimSpace(input.Label)
	}
	if value == "" {
		return nil, errors.NewInvalidRequest("value is required")
	}
	r := resource.Resource{
		ID:          strings.TrimSpace(input.ID),
		Type:        resource.NormalizeType(input.Type),
		Value:       value,
		Label:       input.Label,
		Color:       input.Color,
		Icon:        input.Icon,
		Description: input.Description,
		Tags:        input.Tags,
	}.WithDefaults()
	if r.ID == "" {
		r.ID = script.NewID("res")
	}

	_, err := mutate(ctx, database, cfg, input.ScriptID, "resource_add", func(s *script.Script) error {
		if _, clash := s.Node(r.ID); clash || r.ID == script.MetadataOwner {
			return errors.NewConflict("id already used in this script: " + r.ID)
		}
		return s.Resources.Add(r)
	})
	if err != nil {
		return nil, err
	}
	return &ResourceOutput{ScriptID: input.ScriptID, Resource: r}, nil
}

// UpdateResourceInput contains parameters for the UpdateResource operation. Nil fields
// are left as they are.
type UpdateResourceInput struct {
	ScriptID    string
	ID          string
	Type        *string
	Value       *string
	Label       *string
	Color       *string
	Icon        *string
	Description *string
	Tags        []string
}

// UpdateResource edits a wiki entry. Chips already in the script keep the label they
// were inserted with.
func UpdateResource(ctx context.Context, database *sql.DB, cfg *config.Config, input UpdateResourceInput) (*ResourceOutput, error) {
	var out resource.Resource
	_, err := mutate(ctx, database, cfg, input.ScriptID, "resource_update", func(s *script.Script) error {
		r, ok := s.Resources.Get(input.ID)
		if !ok {
			return errors.NewNotFound("resource", input.ID)
		}
		if input.Type != nil {
			t := resource.NormalizeType(*input.Type)
			if t != r.Type {
				r.Type = t
				// Colour and icon follow the type unless set explicitly below.
				r.Color, r.Icon = "", ""
			}
		}
		if v := cleanOptionalString(input.Value); v != nil {
			if *v == "" {
				return errors.NewInvalidRequest("value must not be empty")
			}
			r.Value = *v
		}
		if input.Label != nil {
			r.Label = *input.Label
		}
		if input.Color != nil {
			r.Color = *input.Color
		}
		if input.Icon != nil {
			r.Icon = *input.Icon
		}
		if input.Description != nil {
			r.Description = *input.Description
		}
		if input.Tags != nil {
			r.Tags = input.Tags
		}
		out = r.WithDefaults()
		return s.Resources.Update(out)
	})
	if err != nil {
		return nil, err
	}
	return &ResourceOutput{ScriptID: input.ScriptID, Resource: out}, nil
}

// ResourceRef addresses one resource.
type ResourceRef struct {
	ScriptID string
	ID       string
}

// DeleteResourceOutput contains the result of the DeleteResource operation.
type DeleteResourceOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
	// Dangling counts fields that still hold chips pointing at the deleted resource.
	Dangling int `json:"dangling"`
}

// DeleteResource removes a wiki entry. Chips referencing it stay in the markup and
// render as missing.
func DeleteResource(ctx context.Context, database *sql.DB, cfg *config.Config, input ResourceRef) (*DeleteResourceOutput, error) {
	var dangling int
	_, err := mutate(ctx, database, cfg, input.ScriptID, "resource_delete", func(s *script.Script) error {
		if err := s.Resources.Delete(input.ID); err != nil {
			return err
		}
		dangling = len(s.Mentions()[input.ID])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &DeleteResourceOutput{Deleted: true, ID: input.ID, Dangling: dangling}, nil
}
