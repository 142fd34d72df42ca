package markup

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hpungsan/kino/internal/resource"
)

const (
	ChipClass        = "resource-chip"
	ChipIconClass    = "resource-icon"
	ChipMissingClass = "resource-chip--missing"
	chipColorProp    = "--chip-color"
)

// Chip is the decoded form of a resource chip.
type Chip struct {
	ID    string        `json:"id"`
	Type  resource.Type `json:"type"`
	Color string        `json:"color,omitempty"`
	Label string        `json:"label"`
}

// IsChip reports whether n is a resource chip element.
func IsChip(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == atom.Span && HasClass(n, ChipClass)
}

// ChipOf decodes a chip element. n must satisfy IsChip.
func ChipOf(n *html.Node) Chip {
	id, _ := Attr(n, "data-id")
	typ, _ := Attr(n, "data-type")
	style, _ := Attr(n, "style")
	return Chip{
		ID:    id,
		Type:  resource.Type(typ),
		Color: styleProp(style, chipColorProp),
		Label: ChipLabel(n),
	}
}

// ChipLabel is the chip's text with the icon excluded.
func ChipLabel(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if HasClass(c, ChipIconClass) {
			continue
		}
		b.WriteString(textOf(c))
	}
	return b.String()
}

// NewChip builds a chip for r labelled with its display label.
func NewChip(r resource.Resource) *html.Node {
	return NewChipLabeled(r, r.DisplayLabel())
}

// NewChipLabeled builds a chip for r with an explicit label.
func NewChipLabeled(r resource.Resource, label string) *html.Node {
	r = r.WithDefaults()
	chip := element(atom.Span,
		html.Attribute{Key: "class", Val: ChipClass},
		html.Attribute{Key: "data-id", Val: r.ID},
		html.Attribute{Key: "data-type", Val: string(r.Type)},
		html.Attribute{Key: "style", Val: chipColorProp + ": " + r.Color},
		html.Attribute{Key: "contenteditable", Val: "false"},
	)
	icon := element(atom.Span, html.Attribute{Key: "class", Val: ChipIconClass})
	parseInto(icon, r.Icon)
	chip.AppendChild(icon)
	chip.AppendChild(Text(label))
	return chip
}

// ChipHTML renders the chip markup for r.
func ChipHTML(r resource.Resource) string {
	return OuterHTML(NewChip(r))
}

// Chips lists the chips of f in document order.
func Chips(f *Fragment) []Chip {
	var out []Chip
	Walk(f.root, func(n *html.Node) bool {
		if IsChip(n) {
			out = append(out, ChipOf(n))
			return false
		}
		return true
	})
	return out
}

// ReferencedIDs returns the distinct resource ids referenced by chips in markup,
// in order of first appearance.
func ReferencedIDs(markup string) []string {
	if !strings.Contains(markup, "data-id") {
		return nil
	}
	seen := make(map[string]bool)
	var ids []string
	for _, c := range Chips(Parse(markup)) {
		if c.ID == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		ids = append(ids, c.ID)
	}
	return ids
}

// HydrateChips upgrades bare `<span data-id="...">Label</span>` references into full
// chips using lookup. Spans whose id does not resolve are left untouched.
func HydrateChips(markup string, lookup func(id string) (resource.Resource, bool)) string {
	if !strings.Contains(markup, "data-id") {
		return markup
	}
	f := Parse(markup)
	changed := false
	Walk(f.root, func(n *html.Node) bool {
		if IsChip(n) {
			return false
		}
		if n.Type != html.ElementNode || n.DataAtom != atom.Span {
			return true
		}
		id, ok := Attr(n, "data-id")
		if !ok {
			return true
		}
		r, found := lookup(id)
		if !found {
			return true
		}
		chip := NewChipLabeled(r, textOf(n))
		n.Parent.InsertBefore(chip, n)
		n.Parent.RemoveChild(n)
		changed = true
		return false
	})
	if !changed {
		return markup
	}
	return f.String()
}

func styleProp(style, prop string) string {
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if ok && strings.TrimSpace(k) == prop {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
