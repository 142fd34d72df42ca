// Package script holds the Act → Scene → Beat document: an arena of nodes keyed by
// id, the resource registry, metadata and version history.
package script

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/markup"
	"github.com/hpungsan/kino/internal/resource"
)

// MetadataOwner is the owner id of the script description in task and field addressing.
const MetadataOwner = "metadata"

// Metadata describes the script as a whole. Times are RFC 3339 strings.
type Metadata struct {
	Title       string `json:"title" yaml:"title"`
	Author      string `json:"author" yaml:"author"`
	Description string `json:"description" yaml:"description"`
	Created     string `json:"created" yaml:"created"`
	Modified    string `json:"modified" yaml:"modified"`
	LastSaved   string `json:"lastSaved,omitempty" yaml:"lastSaved,omitempty"`
}

// merge overlays the non-empty fields of o onto m.
func (m Metadata) merge(o Metadata) Metadata {
	if o.Title != "" {
		m.Title = o.Title
	}
	if o.Author != "" {
		m.Author = o.Author
	}
	if o.Description != "" {
		m.Description = o.Description
	}
	if o.Created != "" {
		m.Created = o.Created
	}
	if o.Modified != "" {
		m.Modified = o.Modified
	}
	if o.LastSaved != "" {
		m.LastSaved = o.LastSaved
	}
	return m
}

// Script is the whole document.
type Script struct {
	ID        string
	Metadata  Metadata
	Resources *resource.Registry
	History   []Version

	// BeatSeconds is the duration of beats without one; zero means DefaultBeatSeconds.
	BeatSeconds float64

	nodes map[string]*Node
	roots []string
}

// New returns an empty script.
func New(id string, meta Metadata) *Script {
	if id == "" {
		id = NewID("script")
	}
	return &Script{
		ID:        id,
		Metadata:  meta,
		Resources: resource.NewRegistry(),
		nodes:     make(map[string]*Node),
	}
}

// Node returns a copy of the node with id.
func (s *Script) Node(id string) (Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n.clone(), true
}

// Len returns the number of nodes.
func (s *Script) Len() int { return len(s.nodes) }

// Roots returns the ids of the top-level acts.
func (s *Script) Roots() []string {
	return append([]string(nil), s.roots...)
}

// Children returns the child ids of id, or the roots for "".
func (s *Script) Children(id string) []string {
	if id == "" {
		return s.Roots()
	}
	if n, ok := s.nodes[id]; ok {
		return append([]string(nil), n.Children...)
	}
	return nil
}

// Walk visits every node in pre-order with its depth (0 for acts). Returning false
// from visit skips the node's children.
func (s *Script) Walk(visit func(n Node, depth int) bool) {
	var walk func(ids []string, depth int)
	walk = func(ids []string, depth int) {
		for _, id := range ids {
			n := s.nodes[id]
			if n == nil {
				continue
			}
			if visit(*n.clone(), depth) {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(s.roots, 0)
}

// AddChild appends a new node of kind under parentID ("" for the root) and returns
// its id. The parent is expanded.
func (s *Script) AddChild(parentID string, kind Kind) (string, error) {
	var parentKind Kind
	var parent *Node
	if parentID != "" {
		p, ok := s.nodes[parentID]
		if !ok {
			return "", errors.NewNotFound("node", parentID)
		}
		parent, parentKind = p, p.Kind
	}
	if want, ok := ChildKind(parentKind); !ok || want != kind {
		return "", errors.NewInvalidTree(fmt.Sprintf("cannot add %s under %s", kind, kindName(parentKind)))
	}

	n := &Node{ID: NewID(string(kind)), Kind: kind, Parent: parentID}
	s.nodes[n.ID] = n
	if parent == nil {
		s.roots = append(s.roots, n.ID)
	} else {
		parent.Children = append(parent.Children, n.ID)
		parent.Collapsed = false
	}
	return n.ID, nil
}

// Delete removes a node and everything under it.
func (s *Script) Delete(id string) error {
	n, ok := s.nodes[id]
	if !ok {
		return errors.NewNotFound("node", id)
	}
	s.detach(n)
	var drop func(string)
	drop = func(id string) {
		if c, ok := s.nodes[id]; ok {
			for _, k := range c.Children {
				drop(k)
			}
			delete(s.nodes, id)
		}
	}
	drop(id)
	return nil
}

// MoveBefore moves id so that it sits directly before targetID, possibly under a
// different parent. Both must be of the same kind.
func (s *Script) MoveBefore(id, targetID string) error {
	if id == targetID {
		return nil
	}
	n, ok := s.nodes[id]
	if !ok {
		return errors.NewNotFound("node", id)
	}
	target, ok := s.nodes[targetID]
	if !ok {
		return errors.NewNotFound("node", targetID)
	}
	if n.Kind != target.Kind {
		return errors.NewInvalidTree(fmt.Sprintf("cannot move %s next to %s", n.Kind, target.Kind))
	}
	if s.within(targetID, id) {
		return errors.NewInvalidTree("cannot move a node into its own subtree")
	}

	s.detach(n)
	list := s.siblings(target.Parent)
	i := slices.Index(*list, targetID)
	*list = slices.Insert(*list, i, id)
	n.Parent = target.Parent
	return nil
}

// MoveInto appends id to the children of parentID ("" for the root).
func (s *Script) MoveInto(id, parentID string) error {
	n, ok := s.nodes[id]
	if !ok {
		return errors.NewNotFound("node", id)
	}
	var parentKind Kind
	if parentID != "" {
		p, ok := s.nodes[parentID]
		if !ok {
			return errors.NewNotFound("node", parentID)
		}
		parentKind = p.Kind
	}
	if want, _ := ChildKind(parentKind); want != n.Kind {
		return errors.NewInvalidTree(fmt.Sprintf("cannot move %s under %s", n.Kind, kindName(parentKind)))
	}
	if parentID != "" && s.within(parentID, id) {
		return errors.NewInvalidTree("cannot move a node into its own subtree")
	}

	s.detach(n)
	list := s.siblings(parentID)
	*list = append(*list, id)
	n.Parent = parentID
	return nil
}

// ToggleCollapse flips the collapsed flag of an act or scene.
func (s *Script) ToggleCollapse(id string) (bool, error) {
	n, ok := s.nodes[id]
	if !ok {
		return false, errors.NewNotFound("node", id)
	}
	n.Collapsed = !n.Collapsed
	return n.Collapsed, nil
}

// SetTitle sets the title of an act or scene.
func (s *Script) SetTitle(id, title string) error {
	n, ok := s.nodes[id]
	if !ok {
		return errors.NewNotFound("node", id)
	}
	if n.Kind == Beat {
		return errors.NewInvalidTree("beats have no title")
	}
	n.Title = title
	return nil
}

// SetDuration sets a beat's duration in seconds.
func (s *Script) SetDuration(id string, seconds float64) error {
	n, ok := s.nodes[id]
	if !ok {
		return errors.NewNotFound("node", id)
	}
	if n.Kind != Beat {
		return errors.NewInvalidTree("only beats have a duration")
	}
	if seconds < 0 {
		return errors.NewInvalidRequest("duration must not be negative")
	}
	n.Duration = &seconds
	return nil
}

// BeatDuration is the effective duration of n: its own, or the script default.
func (s *Script) BeatDuration(n Node) float64 {
	if n.Duration != nil {
		return *n.Duration
	}
	if s.BeatSeconds > 0 {
		return s.BeatSeconds
	}
	return DefaultBeatSeconds
}

// Field reads a rich-text field of a node. Acts and scenes have a description;
// beats have audio and visual.
func (s *Script) Field(id string, f Field) (string, error) {
	n, ok := s.nodes[id]
	if !ok {
		return "", errors.NewNotFound("node", id)
	}
	p, err := fieldPtr(n, f)
	if err != nil {
		return "", err
	}
	return *p, nil
}

// SetField replaces a rich-text field of a node.
func (s *Script) SetField(id string, f Field, m string) error {
	n, ok := s.nodes[id]
	if !ok {
		return errors.NewNotFound("node", id)
	}
	p, err := fieldPtr(n, f)
	if err != nil {
		return err
	}
	*p = m
	return nil
}

func fieldPtr(n *Node, f Field) (*string, error) {
	switch {
	case n.Kind == Beat && f == FieldAudio:
		return &n.Audio, nil
	case n.Kind == Beat && f == FieldVisual:
		return &n.Visual, nil
	case n.Kind != Beat && f == FieldDescription:
		return &n.Description, nil
	}
	return nil, errors.NewInvalidRequest(fmt.Sprintf("%s has no %s field", n.Kind, f))
}

// OwnerField reads any rich-text field in the script: the metadata description,
// a resource description, or a node field.
func (s *Script) OwnerField(owner string, f Field) (string, error) {
	if owner == MetadataOwner {
		if f != FieldDescription {
			return "", errors.NewInvalidRequest("metadata has only a description")
		}
		return s.Metadata.Description, nil
	}
	if r, ok := s.Resources.Get(owner); ok {
		if f != FieldDescription {
			return "", errors.NewInvalidRequest("resources have only a description")
		}
		return r.Description, nil
	}
	return s.Field(owner, f)
}

// SetOwnerField writes any rich-text field addressed as in OwnerField.
func (s *Script) SetOwnerField(owner string, f Field, m string) error {
	if owner == MetadataOwner {
		if f != FieldDescription {
			return errors.NewInvalidRequest("metadata has only a description")
		}
		s.Metadata.Description = m
		return nil
	}
	if _, ok := s.Resources.Get(owner); ok {
		if f != FieldDescription {
			return errors.NewInvalidRequest("resources have only a description")
		}
		return s.Resources.SetDescription(owner, m)
	}
	return s.SetField(owner, f, m)
}

// Check verifies the tree: parent links agree with child lists, every node sits
// under the kind it belongs to, beats are leaves, and every node is reachable once.
func (s *Script) Check() error {
	seen := make(map[string]bool, len(s.nodes))
	var visit func(parent *Node, ids []string) error
	visit = func(parent *Node, ids []string) error {
		var parentKind Kind
		var parentID string
		if parent != nil {
			parentKind, parentID = parent.Kind, parent.ID
		}
		want, _ := ChildKind(parentKind)
		for _, id := range ids {
			n, ok := s.nodes[id]
			if !ok {
				return errors.NewInvalidTree("dangling child id: " + id)
			}
			if seen[id] {
				return errors.NewInvalidTree("node reachable twice: " + id)
			}
			seen[id] = true
			if n.Kind != want {
				return errors.NewInvalidTree(fmt.Sprintf("%s %s under %s", n.Kind, id, kindName(parentKind)))
			}
			if n.Parent != parentID {
				return errors.NewInvalidTree("parent link mismatch: " + id)
			}
			if n.Kind == Beat && len(n.Children) > 0 {
				return errors.NewInvalidTree("beat has children: " + id)
			}
			if err := visit(n, n.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(nil, s.roots); err != nil {
		return err
	}
	if len(seen) != len(s.nodes) {
		return errors.NewInvalidTree(fmt.Sprintf("%d unreachable nodes", len(s.nodes)-len(seen)))
	}
	return nil
}

// Clone returns a deep copy, history included.
func (s *Script) Clone() *Script {
	c := &Script{
		ID:          s.ID,
		Metadata:    s.Metadata,
		Resources:   s.Resources.Clone(),
		History:     append([]Version(nil), s.History...),
		BeatSeconds: s.BeatSeconds,
		nodes:       make(map[string]*Node, len(s.nodes)),
		roots:       append([]string(nil), s.roots...),
	}
	for id, n := range s.nodes {
		c.nodes[id] = n.clone()
	}
	return c
}

// Stats aggregates word count, resource count and total beat duration.
type Stats struct {
	Words     int     `json:"words"`
	Resources int     `json:"resources"`
	Duration  float64 `json:"duration"`
}

// Stats computes the current Stats.
func (s *Script) Stats() Stats {
	st := Stats{Resources: s.Resources.Len()}
	s.Walk(func(n Node, _ int) bool {
		st.Words += len(strings.Fields(n.Title))
		st.Words += markup.WordCount(n.Description)
		if n.Kind == Beat {
			st.Words += markup.WordCount(n.Audio) + markup.WordCount(n.Visual)
			st.Duration += s.BeatDuration(n)
		}
		return true
	})
	return st
}

// detach unlinks n from its parent's child list or the roots.
func (s *Script) detach(n *Node) {
	list := s.siblings(n.Parent)
	if i := slices.Index(*list, n.ID); i >= 0 {
		*list = slices.Delete(*list, i, i+1)
	}
}

func (s *Script) siblings(parentID string) *[]string {
	if parentID == "" {
		return &s.roots
	}
	return &s.nodes[parentID].Children
}

// within reports whether node is ancestor itself or sits somewhere below it.
func (s *Script) within(node, ancestor string) bool {
	for cur := node; cur != ""; {
		if cur == ancestor {
			return true
		}
		n, ok := s.nodes[cur]
		if !ok {
			return false
		}
		cur = n.Parent
	}
	return false
}

func kindName(k Kind) string {
	if k == "" {
		return "root"
	}
	return string(k)
}
