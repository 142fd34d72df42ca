package script

import "github.com/hpungsan/kino/internal/markup"

// Mention is one field whose chips reference a resource.
type Mention struct {
	Owner string `json:"owner"`
	Field Field  `json:"field"`
}

// Mentions indexes every chip in the script by resource id. Fields are listed in
// extraction order: the script description, the tree in pre-order, then resource
// descriptions. Ids that no longer resolve are included.
func (s *Script) Mentions() map[string][]Mention {
	out := map[string][]Mention{}
	add := func(owner string, f Field, m string) {
		for _, id := range markup.ReferencedIDs(m) {
			out[id] = append(out[id], Mention{Owner: owner, Field: f})
		}
	}
	add(MetadataOwner, FieldDescription, s.Metadata.Description)
	s.Walk(func(n Node, _ int) bool {
		if n.Kind == Beat {
			add(n.ID, FieldAudio, n.Audio)
			add(n.ID, FieldVisual, n.Visual)
		} else {
			add(n.ID, FieldDescription, n.Description)
		}
		return true
	})
	for _, r := range s.Resources.All() {
		add(r.ID, FieldDescription, r.Description)
	}
	return out
}
