package markup

import (
	"golang.org/x/net/html"

	"github.com/hpungsan/kino/internal/resource"
)

// Lookup resolves a resource id.
type Lookup func(id string) (resource.Resource, bool)

// Display renders markup for read-only viewing. Chips keep the label stored in the
// markup; the current label is exposed as a title. Chips whose resource no longer
// exists are marked missing and drawn with the fallback colour and glyph. The
// stored markup is not modified.
func Display(markup string, lookup Lookup) string {
	f := Parse(markup)
	Walk(f.root, func(n *html.Node) bool {
		if !IsChip(n) {
			return true
		}
		RemoveAttr(n, "contenteditable")
		id, _ := Attr(n, "data-id")
		if r, ok := lookup(id); ok {
			if r.DisplayLabel() != ChipLabel(n) {
				SetAttr(n, "title", r.DisplayLabel())
			}
			return false
		}
		AddClass(n, ChipMissingClass)
		SetAttr(n, "style", chipColorProp+": "+resource.FallbackColor)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if HasClass(c, ChipIconClass) {
				for k := c.FirstChild; k != nil; {
					next := k.NextSibling
					c.RemoveChild(k)
					k = next
				}
				parseInto(c, resource.FallbackIcon)
				break
			}
		}
		return false
	})
	return f.String()
}
