// Package tasks aggregates the checklist items of every rich-text field in a script
// and writes status changes back into the field they came from.
package tasks

import (
	"fmt"

	"github.com/hpungsan/kino/internal/markup"
	"github.com/hpungsan/kino/internal/script"
)

// OwnerKind says what kind of thing owns a field.
type OwnerKind string

const (
	OwnerScript   OwnerKind = "script"
	OwnerAct      OwnerKind = "act"
	OwnerScene    OwnerKind = "scene"
	OwnerBeat     OwnerKind = "beat"
	OwnerResource OwnerKind = "resource"
)

// Item is one task, addressed by its owner, field and position in that field.
// Positions are recomputed on every extraction.
type Item struct {
	ID        string        `json:"id"`
	Owner     string        `json:"owner"`
	OwnerKind OwnerKind     `json:"owner_kind"`
	Field     script.Field  `json:"field"`
	Index     int           `json:"index"`
	Status    markup.Status `json:"status"`
	Label     string        `json:"label"`
	Text      string        `json:"text"`
	Context   string        `json:"context"`
}

// ItemID is the composite id of the index-th task in owner's field.
func ItemID(owner string, field script.Field, index int) string {
	return fmt.Sprintf("%s-%s-%d", owner, field, index)
}

// ExtractAll lists every task in s: the script description first, then the tree in
// pre-order (description, audio, visual per node), then resource descriptions.
func ExtractAll(s *script.Script) []Item {
	var out []Item
	add := func(owner string, kind OwnerKind, field script.Field, m, context string) {
		for _, t := range markup.Tasks(m) {
			out = append(out, Item{
				ID:        ItemID(owner, field, t.Index),
				Owner:     owner,
				OwnerKind: kind,
				Field:     field,
				Index:     t.Index,
				Status:    t.Status,
				Label:     t.Label,
				Text:      t.Text,
				Context:   context,
			})
		}
	}

	add(script.MetadataOwner, OwnerScript, script.FieldDescription, s.Metadata.Description, "Project Description")

	// Breadcrumbs carry the act title into its scenes and the scene path into beats.
	crumbs := map[string]string{}
	s.Walk(func(n script.Node, _ int) bool {
		parent := crumbs[n.Parent]
		ctx := parent
		switch n.Kind {
		case script.Act:
			ctx = orDefault(n.Title, "Act")
		case script.Scene:
			ctx = orDefault(n.Title, "Scene")
			if parent != "" {
				ctx = parent + " > " + ctx
			}
		}
		crumbs[n.ID] = ctx

		kind := OwnerKind(n.Kind)
		if n.Kind == script.Beat {
			add(n.ID, kind, script.FieldAudio, n.Audio, ctx+" (Audio)")
			add(n.ID, kind, script.FieldVisual, n.Visual, ctx+" (Visual)")
		} else {
			add(n.ID, kind, script.FieldDescription, n.Description, ctx)
		}
		return true
	})

	for _, r := range s.Resources.All() {
		add(r.ID, OwnerResource, script.FieldDescription, r.Description, "Wiki: "+r.DisplayLabel())
	}
	return out
}

// WriteStatus sets the status of the task that item points at, touching nothing else in
// its field. It reports whether a task was written; an unknown owner or a position
// that no longer exists is a silent no-op.
func WriteStatus(s *script.Script, item Item, status markup.Status) bool {
	m, err := s.OwnerField(item.Owner, item.Field)
	if err != nil {
		return false
	}
	updated, ok := markup.SetTaskStatus(m, item.Index, status)
	if !ok {
		return false
	}
	return s.SetOwnerField(item.Owner, item.Field, updated) == nil
}

// Find looks up an item by id in a fresh extraction.
func Find(s *script.Script, id string) (Item, bool) {
	for _, it := range ExtractAll(s) {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Summary counts items per status.
type Summary struct {
	Total      int `json:"total"`
	Todo       int `json:"todo"`
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
}

// Summarize counts items by status.
func Summarize(items []Item) Summary {
	sum := Summary{Total: len(items)}
	for _, it := range items {
		switch it.Status {
		case markup.StatusDone:
			sum.Done++
		case markup.StatusInProgress:
			sum.InProgress++
		default:
			sum.Todo++
		}
	}
	return sum
}

// Filter keeps the items with status; an empty status keeps all.
func Filter(items []Item, status markup.Status) []Item {
	if status == "" {
		return items
	}
	var out []Item
	for _, it := range items {
		if it.Status == status {
			out = append(out, it)
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
