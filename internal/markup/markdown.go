package markup

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	// Inline HTML is kept so that bare <span data-id> references survive import.
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

// FromMarkdown converts markdown to field markup. GitHub-style task list lines
// ("- [ ] x", "- [x] y") become task items; everything else maps onto the
// ordinary block and inline elements.
func FromMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	f := Parse(buf.String())
	convertTaskLists(f)
	return strings.TrimSpace(f.String()), nil
}

// convertTaskLists replaces list items that start with a checkbox by task items.
// A list mixing both kinds is split so document order is kept.
func convertTaskLists(f *Fragment) {
	var lists []*html.Node
	Walk(f.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Ul || n.DataAtom == atom.Ol) {
			lists = append(lists, n)
		}
		return true
	})

	// Innermost lists first, so nested task lists are converted before their parents move.
	for i := len(lists) - 1; i >= 0; i-- {
		list := lists[i]
		if list.Parent == nil {
			continue
		}
		var segments []*html.Node
		var run *html.Node
		hasTask := false
		for li := list.FirstChild; li != nil; {
			next := li.NextSibling
			list.RemoveChild(li)
			if task := taskFromListItem(li); task != nil {
				hasTask = true
				run = nil
				segments = append(segments, task)
			} else if li.Type == html.ElementNode {
				if run == nil {
					run = &html.Node{Type: html.ElementNode, DataAtom: list.DataAtom, Data: list.Data, Attr: append([]html.Attribute(nil), list.Attr...)}
					segments = append(segments, run)
				}
				run.AppendChild(li)
			} else if run != nil {
				run.AppendChild(li)
			}
			li = next
		}
		if !hasTask {
			for _, seg := range segments {
				for c := seg.FirstChild; c != nil; {
					next := c.NextSibling
					seg.RemoveChild(c)
					list.AppendChild(c)
					c = next
				}
			}
			continue
		}
		for _, seg := range segments {
			list.Parent.InsertBefore(seg, list)
		}
		list.Parent.RemoveChild(list)
	}
}

func taskFromListItem(li *html.Node) *html.Node {
	if li.Type != html.ElementNode || li.DataAtom != atom.Li {
		return nil
	}
	holder := li
	first := firstMeaningful(li)
	if first != nil && first.DataAtom == atom.P {
		holder = first
		first = firstMeaningful(first)
	}
	if !IsCheckbox(first) {
		return nil
	}
	status := StatusTodo
	if _, checked := Attr(first, "checked"); checked {
		status = StatusDone
	}
	holder.RemoveChild(first)

	var label strings.Builder
	if holder == li {
		label.WriteString(InnerHTML(li))
	} else {
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c == holder {
				label.WriteString(InnerHTML(holder))
			} else {
				label.WriteString(OuterHTML(c))
			}
		}
	}
	return NewTask(status, strings.TrimSpace(label.String()))
}

func firstMeaningful(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) == "" {
			continue
		}
		return c
	}
	return nil
}
