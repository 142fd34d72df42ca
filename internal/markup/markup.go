// Package markup converts rich-text field markup to and from an editable node tree.
//
// The serialized form is an HTML subset with two special constructs: resource chips
// and task items. Parsing never fails; anything unrecognised is carried through as-is.
package markup

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Fragment is the in-memory form of one rich-text field.
type Fragment struct {
	root *html.Node
}

func newContainer() *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
}

// Parse builds a fragment from markup. Malformed input degrades to whatever the
// HTML5 fragment parser recovers, or to a single opaque raw node.
func Parse(markup string) *Fragment {
	root := newContainer()
	nodes, err := html.ParseFragment(strings.NewReader(markup), newContainer())
	if err != nil {
		root.AppendChild(&html.Node{Type: html.RawNode, Data: markup})
		return &Fragment{root: root}
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return &Fragment{root: root}
}

// NewFragment returns an empty fragment.
func NewFragment() *Fragment {
	return &Fragment{root: newContainer()}
}

// Root returns the container node. Its children are the top-level nodes of the field.
func (f *Fragment) Root() *html.Node {
	return f.root
}

// Serialize renders f back to markup.
func Serialize(f *Fragment) string {
	return f.String()
}

// String renders the fragment.
func (f *Fragment) String() string {
	var b strings.Builder
	for c := f.root.FirstChild; c != nil; c = c.NextSibling {
		renderNode(&b, c)
	}
	return b.String()
}

func renderNode(b *strings.Builder, n *html.Node) {
	if err := html.Render(b, n); err != nil {
		// Only error nodes fail to render; keep their text.
		b.WriteString(html.EscapeString(n.Data))
	}
}

// Clone returns a deep copy of f.
func (f *Fragment) Clone() *Fragment {
	root := newContainer()
	for c := f.root.FirstChild; c != nil; c = c.NextSibling {
		root.AppendChild(CloneNode(c))
	}
	return &Fragment{root: root}
}

// Empty reports whether the fragment has no visible content.
func (f *Fragment) Empty() bool {
	return strings.TrimSpace(textOf(f.root)) == "" && len(Chips(f)) == 0 && len(TaskNodes(f)) == 0
}

// CloneNode deep-copies n and its subtree. The copy is detached.
func CloneNode(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = append([]html.Attribute(nil), n.Attr...)
	}
	for k := n.FirstChild; k != nil; k = k.NextSibling {
		c.AppendChild(CloneNode(k))
	}
	return c
}

// InnerHTML renders the children of n.
func InnerHTML(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(&b, c)
	}
	return b.String()
}

// OuterHTML renders n itself.
func OuterHTML(n *html.Node) string {
	var b strings.Builder
	renderNode(&b, n)
	return b.String()
}

// Attr returns the value of key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets key on n, replacing any existing value.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes key from n.
func RemoveAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// HasClass reports whether n's class list contains class.
func HasClass(n *html.Node, class string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	v, ok := Attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// AddClass appends class to n's class list if missing.
func AddClass(n *html.Node, class string) {
	if HasClass(n, class) {
		return
	}
	v, _ := Attr(n, "class")
	SetAttr(n, "class", strings.TrimSpace(v+" "+class))
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

// Text returns a detached text node.
func Text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Element returns a detached element node for a known tag.
func Element(tag string) *html.Node {
	a := atom.Lookup([]byte(tag))
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: tag}
}

// Walk visits n and its descendants in document order. Returning false from visit
// skips the node's subtree.
func Walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		Walk(c, visit)
		c = next
	}
}

// textOf concatenates text nodes below n.
func textOf(n *html.Node) string {
	var b strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

// parseInto parses markup in the context of parent's tag and appends the result.
func parseInto(parent *html.Node, markup string) {
	ctx := &html.Node{Type: html.ElementNode, Data: parent.Data, DataAtom: parent.DataAtom}
	if parent.DataAtom == 0 {
		ctx = newContainer()
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		parent.AppendChild(&html.Node{Type: html.RawNode, Data: markup})
		return
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
}
