package markup

import (
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PlainText flattens markup to text. Chips contribute their label and block
// boundaries become newlines.
func PlainText(markup string) string {
	if markup == "" {
		return ""
	}
	return strings.TrimSpace(plainText(Parse(markup).root))
}

func plainText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
			return
		case IsChip(n):
			b.WriteString(ChipLabel(n))
			return
		case n.Type == html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Svg:
				return
			case atom.Br:
				b.WriteByte('\n')
				return
			}
		}
		block := IsBlock(n)
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	walk(n)
	return b.String()
}

// WordCount counts whitespace-separated words in the plain text of markup.
func WordCount(markup string) int {
	return len(strings.Fields(PlainText(markup)))
}

// Equivalent reports whether two markup strings describe the same document:
// the same block structure, text, chip references and task states. Attribute order,
// quoting, entity spelling and insignificant whitespace are ignored.
func Equivalent(a, b string) bool {
	return Canonical(a) == Canonical(b)
}

// Canonical renders a normalised description of markup used for comparisons.
func Canonical(markup string) string {
	var b strings.Builder
	f := Parse(markup)
	canonChildren(&b, f.root)
	return b.String()
}

func canonChildren(b *strings.Builder, n *html.Node) {
	var pending strings.Builder
	flush := func() {
		if s := collapseSpace(pending.String()); strings.TrimSpace(s) != "" {
			b.WriteString("T(")
			b.WriteString(s)
			b.WriteString(")")
		}
		pending.Reset()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			pending.WriteString(c.Data)
		case html.ElementNode:
			flush()
			canonElement(b, c)
		case html.RawNode:
			flush()
			b.WriteString("R(" + c.Data + ")")
		}
	}
	flush()
}

func canonElement(b *strings.Builder, n *html.Node) {
	if IsChip(n) {
		c := ChipOf(n)
		b.WriteString("CHIP(" + c.ID + "|" + string(c.Type) + "|" + strings.ToLower(c.Color) + "|" + collapseSpace(c.Label) + ")")
		return
	}
	if IsTask(n) {
		b.WriteString("TASK[" + string(TaskStatusOf(n)) + "](")
		if label := TaskLabel(n); label != nil {
			canonChildren(b, label)
		}
		b.WriteString(")")
		return
	}

	b.WriteString("<" + n.Data)
	attrs := make([]string, 0, len(n.Attr))
	for _, a := range n.Attr {
		switch a.Key {
		case "class":
			classes := strings.Fields(a.Val)
			sort.Strings(classes)
			attrs = append(attrs, "class="+strings.Join(classes, " "))
		case "checked", "disabled", "contenteditable":
			attrs = append(attrs, a.Key)
		default:
			attrs = append(attrs, a.Key+"="+a.Val)
		}
	}
	sort.Strings(attrs)
	for _, a := range attrs {
		b.WriteString(" " + a)
	}
	b.WriteString(">")
	canonChildren(b, n)
	b.WriteString("</" + n.Data + ">")
}

func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
