package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/script"
)

// NodeOutput reports the node an operation touched.
type NodeOutput struct {
	ScriptID string      `json:"script_id"`
	Node     script.Node `json:"node"`
}

func nodeOutput(s *script.Script, id string) *NodeOutput {
	n, _ := s.Node(id)
	return &NodeOutput{ScriptID: s.ID, Node: n}
}

// AddNodeInput contains parameters for the AddNode operation.
type AddNodeInput struct {
	ScriptID string
	ParentID string // "" adds an act
	Kind     string // optional; must match what ParentID accepts
	Title    string
}

// AddNode appends a node under ParentID.
func AddNode(ctx context.Context, database *sql.DB, cfg *config.Config, input AddNodeInput) (*NodeOutput, error) {
	var id string
	s, err := mutate(ctx, database, cfg, input.ScriptID, "node_add", func(s *script.Script) error {
		kind, err := childKind(s, input.ParentID, input.Kind)
		if err != nil {
			return err
		}
		id, err = s.AddChild(input.ParentID, kind)
		if err != nil {
			return err
		}
		if input.Title != "" && kind != script.Beat {
			return s.SetTitle(id, input.Title)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodeOutput(s, id), nil
}

func childKind(s *script.Script, parentID, raw string) (script.Kind, error) {
	var parentKind script.Kind
	if parentID != "" {
		p, ok := s.Node(parentID)
		if !ok {
			return "", errors.NewNotFound("node", parentID)
		}
		parentKind = p.Kind
	}
	want, ok := script.ChildKind(parentKind)
	if !ok {
		return "", errors.NewInvalidTree("beats cannot have children")
	}
	if raw == "" {
		return want, nil
	}
	kind := script.Kind(strings.ToLower(strings.TrimSpace(raw)))
	if !kind.Valid() {
		return "", errors.NewInvalidRequest("kind must be one of: act, scene, beat")
	}
	if kind != want {
		return "", errors.NewInvalidTree(string(kind) + " cannot be added here; expected " + string(want))
	}
	return kind, nil
}

// NodeRef addresses one node.
type NodeRef struct {
	ScriptID string
	NodeID   string
}

// DeleteNodeOutput contains the result of the DeleteNode operation.
type DeleteNodeOutput struct {
	Deleted bool   `json:"deleted"`
	NodeID  string `json:"node_id"`
	Removed int    `json:"removed"`
}

// DeleteNode removes a node and its whole subtree.
func DeleteNode(ctx context.Context, database *sql.DB, cfg *config.Config, input NodeRef) (*DeleteNodeOutput, error) {
	removed := 0
	_, err := mutate(ctx, database, cfg, input.ScriptID, "node_delete", func(s *script.Script) error {
		before := s.Len()
		if err := s.Delete(input.NodeID); err != nil {
			return err
		}
		removed = before - s.Len()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &DeleteNodeOutput{Deleted: true, NodeID: input.NodeID, Removed: removed}, nil
}

// MoveNodeInput contains parameters for the MoveNode operation. Exactly one of Before
// and Into is set.
type MoveNodeInput struct {
	ScriptID string
	NodeID   string
	Before   string // sibling-to-be of the same kind, anywhere in the tree
	Into     string // new parent; the node is appended
}

// MoveNode relocates a node with its subtree.
func MoveNode(ctx context.Context, database *sql.DB, cfg *config.Config, input MoveNodeInput) (*NodeOutput, error) {
	if (input.Before == "") == (input.Into == "") {
		return nil, errors.NewInvalidRequest("exactly one of before or into is required")
	}
	s, err := mutate(ctx, database, cfg, input.ScriptID, "node_move", func(s *script.Script) error {
		if input.Before != "" {
			return s.MoveBefore(input.NodeID, input.Before)
		}
		return s.MoveInto(input.NodeID, input.Into)
	})
	if err != nil {
		return nil, err
	}
	return nodeOutput(s, input.NodeID), nil
}

// SetTitleInput contains parameters for the SetTitle operation.
type SetTitleInput struct {
	ScriptID string
	NodeID   string
	Title    string
}

// SetTitle renames an act or scene.
func SetTitle(ctx context.Context, database *sql.DB, cfg *config.Config, input SetTitleInput) (*NodeOutput, error) {
	s, err := mutate(ctx, database, cfg, input.ScriptID, "node_title", func(s *script.Script) error {
		return s.SetTitle(input.NodeID, input.Title)
	})
	if err != nil {
		return nil, err
	}
	return nodeOutput(s, input.NodeID), nil
}

// SetDurationInput contains parameters for the SetDuration operation.
type SetDurationInput struct {
	ScriptID string
	NodeID   string
	Seconds  float64
}

// SetDuration sets a beat's duration in seconds.
func SetDuration(ctx context.Context, database *sql.DB, cfg *config.Config, input SetDurationInput) (*NodeOutput, error) {
	s, err := mutate(ctx, database, cfg, input.ScriptID, "node_duration", func(s *script.Script) error {
		return s.SetDuration(input.NodeID, input.Seconds)
	})
	if err != nil {
		return nil, err
	}
	return nodeOutput(s, input.NodeID), nil
}

// ToggleCollapseOutput contains the result of the ToggleCollapse operation.
type ToggleCollapseOutput struct {
	NodeID    string `json:"node_id"`
	Collapsed bool   `json:"collapsed"`
}

// ToggleCollapse flips the collapsed flag of an act or scene.
func ToggleCollapse(ctx context.Context, database *sql.DB, cfg *config.Config, input NodeRef) (*ToggleCollapseOutput, error) {
	var collapsed bool
	_, err := mutate(ctx, database, cfg, input.ScriptID, "node_collapse", func(s *script.Script) error {
		var err error
		collapsed, err = s.ToggleCollapse(input.NodeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ToggleCollapseOutput{NodeID: input.NodeID, Collapsed: collapsed}, nil
}

// SetFieldInput contains parameters for the SetField operation. Owner is a node id, a
// resource id, or "metadata" for the script description.
type SetFieldInput struct {
	ScriptID string
	Owner    string
	Field    string
	Markup   string
}

// FieldOutput reports a field after an edit.
type FieldOutput struct {
	ScriptID string       `json:"script_id"`
	Owner    string       `json:"owner"`
	Field    script.Field `json:"field"`
	Markup   string       `json:"markup"`
}

// SetField replaces the whole markup of one rich-text field.
func SetField(ctx context.Context, database *sql.DB, cfg *config.Config, input SetFieldInput) (*FieldOutput, error) {
	field, err := parseField(input.Field)
	if err != nil {
		return nil, err
	}
	_, err = mutate(ctx, database, cfg, input.ScriptID, "field_set", func(s *script.Script) error {
		return s.SetOwnerField(input.Owner, field, input.Markup)
	})
	if err != nil {
		return nil, err
	}
	return &FieldOutput{ScriptID: input.ScriptID, Owner: input.Owner, Field: field, Markup: input.Markup}, nil
}

func parseField(raw string) (script.Field, error) {
	f, ok := script.ParseField(raw)
	if !ok {
		return "", errors.NewInvalidRequest("field must be one of: description, audio, visual")
	}
	return f, nil
}
