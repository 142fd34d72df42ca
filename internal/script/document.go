package script

import (
	"encoding/json"
	"fmt"

	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/resource"
)

// Document is the nested JSON form of a script, as stored in .kinoscript files.
type Document struct {
	ID        string              `json:"id"`
	Metadata  Metadata            `json:"metadata"`
	Resources []resource.Resource `json:"resources"`
	Content   []DocNode           `json:"content"`
	History   []Version           `json:"history"`
}

// DocNode is one node of the nested form.
type DocNode struct {
	ID          string       `json:"id"`
	Type        Kind         `json:"type"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Content     *BeatContent `json:"content,omitempty"`
	Children    []DocNode    `json:"children,omitempty"`
	IsCollapsed bool         `json:"isCollapsed,omitempty"`
	Duration    *float64     `json:"duration,omitempty"`
}

// BeatContent is the paired rich text of a beat.
type BeatContent struct {
	Audio  string `json:"audio"`
	Visual string `json:"visual"`
}

// Document returns the nested form of s.
func (s *Script) Document() Document {
	doc := Document{
		ID:        s.ID,
		Metadata:  s.Metadata,
		Resources: s.Resources.All(),
		Content:   s.content(),
		History:   append([]Version(nil), s.History...),
	}
	if doc.Resources == nil {
		doc.Resources = []resource.Resource{}
	}
	if doc.History == nil {
		doc.History = []Version{}
	}
	return doc
}

func (s *Script) content() []DocNode {
	var build func(ids []string) []DocNode
	build = func(ids []string) []DocNode {
		out := make([]DocNode, 0, len(ids))
		for _, id := range ids {
			n := s.nodes[id]
			d := DocNode{ID: n.ID, Type: n.Kind, IsCollapsed: n.Collapsed}
			if n.Kind == Beat {
				d.Content = &BeatContent{Audio: n.Audio, Visual: n.Visual}
				if n.Duration != nil {
					v := *n.Duration
					d.Duration = &v
				}
			} else {
				d.Title = n.Title
				d.Description = n.Description
				d.Children = build(n.Children)
			}
			out = append(out, d)
		}
		return out
	}
	return build(s.roots)
}

// FromDocument builds a script from its nested form. Nodes without an id get one;
// a node of the wrong kind for its position is rejected.
func FromDocument(doc Document) (*Script, error) {
	s := New(doc.ID, doc.Metadata)
	s.Resources = resource.NewRegistry(doc.Resources...)
	s.History = append([]Version(nil), doc.History...)
	if err := s.setContent(doc.Content); err != nil {
		return nil, err
	}
	return s, nil
}

// setContent replaces the whole tree.
func (s *Script) setContent(content []DocNode) error {
	nodes := make(map[string]*Node)
	var roots []string

	var add func(d DocNode, parent *Node) error
	add = func(d DocNode, parent *Node) error {
		var parentKind Kind
		var parentID string
		if parent != nil {
			parentKind, parentID = parent.Kind, parent.ID
		}
		want, ok := ChildKind(parentKind)
		if !ok || d.Type != want {
			return errors.NewInvalidTree(fmt.Sprintf("%q node %q under %s", d.Type, d.ID, kindName(parentKind)))
		}
		id := d.ID
		if id == "" {
			id = NewID(string(d.Type))
		}
		if _, dup := nodes[id]; dup {
			return errors.NewInvalidTree("duplicate node id: " + id)
		}
		n := &Node{ID: id, Kind: d.Type, Collapsed: d.IsCollapsed, Parent: parentID}
		if d.Type == Beat {
			if len(d.Children) > 0 {
				return errors.NewInvalidTree("beat has children: " + id)
			}
			if d.Content != nil {
				n.Audio, n.Visual = d.Content.Audio, d.Content.Visual
			}
			if d.Duration != nil {
				v := *d.Duration
				if v < 0 {
					return errors.NewInvalidRequest("negative duration on " + id)
				}
				n.Duration = &v
			}
		} else {
			n.Title, n.Description = d.Title, d.Description
		}
		nodes[id] = n
		if parent == nil {
			roots = append(roots, id)
		} else {
			parent.Children = append(parent.Children, id)
		}
		for _, c := range d.Children {
			if err := add(c, n); err != nil {
				return err
			}
		}
		return nil
	}

	for _, d := range content {
		if err := add(d, nil); err != nil {
			return err
		}
	}
	s.nodes, s.roots = nodes, roots
	return nil
}

// MarshalJSON encodes the nested form.
func (s *Script) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Document())
}

// Decode parses a .kinoscript document.
func Decode(data []byte) (*Script, error) {
	var raw struct {
		Document
		Content *[]DocNode `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewInvalidRequest("invalid script document: " + err.Error())
	}
	if raw.Content == nil {
		return nil, errors.NewInvalidRequest("invalid script document: missing content")
	}
	raw.Document.Content = *raw.Content
	return FromDocument(raw.Document)
}

// Encode renders s as indented JSON.
func Encode(s *Script) ([]byte, error) {
	return json.MarshalIndent(s.Document(), "", "  ")
}
