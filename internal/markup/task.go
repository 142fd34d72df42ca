package markup

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TaskClass marks the block wrapper of a task item.
const TaskClass = "todo-item"

// Status is the tri-state of a task item.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// ParseStatus validates an external status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusTodo:
		return StatusTodo, true
	case StatusInProgress:
		return StatusInProgress, true
	case StatusDone:
		return StatusDone, true
	}
	return "", false
}

// Task is a decoded task item.
type Task struct {
	Index  int    `json:"index"`
	Status Status `json:"status"`
	Label  string `json:"label"` // inner markup of the label span
	Text   string `json:"text"`
}

// IsTask reports whether n is a task item wrapper.
func IsTask(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == atom.Div && HasClass(n, TaskClass)
}

// IsCheckbox reports whether n is a checkbox input.
func IsCheckbox(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || n.DataAtom != atom.Input {
		return false
	}
	t, _ := Attr(n, "type")
	return strings.EqualFold(t, "checkbox")
}

// Checkbox returns the first checkbox inside a task item. Checkboxes of task items
// nested inside it belong to those items.
func Checkbox(task *html.Node) *html.Node {
	var found *html.Node
	Walk(task, func(n *html.Node) bool {
		if found != nil || (n != task && IsTask(n)) {
			return false
		}
		if IsCheckbox(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// TaskStatusOf reads the status of a task item. A checked checkbox wins over any
// in-progress marker.
func TaskStatusOf(task *html.Node) Status {
	if cb := Checkbox(task); cb != nil {
		if _, checked := Attr(cb, "checked"); checked {
			return StatusDone
		}
	}
	if s, ok := Attr(task, "data-status"); ok {
		switch Status(s) {
		case StatusInProgress:
			return StatusInProgress
		case StatusDone:
			return StatusDone
		}
	}
	return StatusTodo
}

// SetTaskNodeStatus rewrites the markers of a task item in place.
func SetTaskNodeStatus(task *html.Node, status Status) {
	cb := Checkbox(task)
	if cb != nil {
		RemoveAttr(cb, "checked")
	}
	RemoveAttr(task, "data-status")
	switch status {
	case StatusDone:
		if cb != nil {
			SetAttr(cb, "checked", "")
		} else {
			SetAttr(task, "data-status", string(StatusDone))
		}
	case StatusInProgress:
		SetAttr(task, "data-status", string(StatusInProgress))
	}
}

// ToggleTaskChecked flips the checked attribute of the checkbox, leaving any
// in-progress marker as it is. Reports whether a checkbox was found.
func ToggleTaskChecked(task *html.Node) bool {
	cb := Checkbox(task)
	if cb == nil {
		return false
	}
	if _, checked := Attr(cb, "checked"); checked {
		RemoveAttr(cb, "checked")
	} else {
		SetAttr(cb, "checked", "")
	}
	return true
}

// TaskLabel returns the label element of a task item: its first direct span child.
func TaskLabel(task *html.Node) *html.Node {
	for c := task.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Span && !IsChip(c) {
			return c
		}
	}
	return nil
}

// NewTask builds a task item. labelHTML is parsed as inline markup; an empty label
// gets a non-breaking space so the item stays editable.
func NewTask(status Status, labelHTML string) *html.Node {
	task := element(atom.Div, html.Attribute{Key: "class", Val: TaskClass})
	task.AppendChild(element(atom.Input, html.Attribute{Key: "type", Val: "checkbox"}))
	task.AppendChild(Text(" "))
	label := element(atom.Span)
	if labelHTML == "" {
		label.AppendChild(Text("\u00a0"))
	} else {
		parseInto(label, labelHTML)
	}
	task.AppendChild(label)
	SetTaskNodeStatus(task, status)
	return task
}

// TaskNodes lists task item wrappers of f in document order. An item nested inside
// another item is listed right after its parent, so the ordinal of every item
// matches its position among the todo-item start tags of the serialized markup.
func TaskNodes(f *Fragment) []*html.Node {
	var out []*html.Node
	Walk(f.root, func(n *html.Node) bool {
		if IsTask(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// ownLabel returns a detached copy of label without the task items nested in it,
// and whether any were removed.
func ownLabel(label *html.Node) (*html.Node, bool) {
	c := CloneNode(label)
	var nested []*html.Node
	Walk(c, func(n *html.Node) bool {
		if n != c && IsTask(n) {
			nested = append(nested, n)
			return false
		}
		return true
	})
	for _, n := range nested {
		n.Parent.RemoveChild(n)
	}
	return c, len(nested) > 0
}

// Tasks decodes every task item in markup. Index is the 0-based ordinal within the field.
func Tasks(markup string) []Task {
	if !strings.Contains(markup, TaskClass) {
		return nil
	}
	nodes := TaskNodes(Parse(markup))
	out := make([]Task, 0, len(nodes))
	for i, n := range nodes {
		t := Task{Index: i, Status: TaskStatusOf(n)}
		if label := TaskLabel(n); label != nil {
			own, stripped := ownLabel(label)
			t.Label = InnerHTML(own)
			if stripped {
				t.Label = strings.TrimSpace(t.Label)
			}
			t.Text = strings.TrimSpace(plainText(own))
		} else {
			own, _ := ownLabel(n)
			t.Text = strings.TrimSpace(plainText(own))
			t.Label = html.EscapeString(t.Text)
		}
		out = append(out, t)
	}
	return out
}

// SetTaskStatus rewrites the markers of the index-th task item in markup. Every byte
// outside that item's wrapper tag and checkbox tag is preserved. It returns the
// markup unchanged and false when index is out of range.
func SetTaskStatus(markup string, index int, status Status) (string, bool) {
	if index < 0 || !strings.Contains(markup, TaskClass) {
		return markup, false
	}

	z := html.NewTokenizer(strings.NewReader(markup))
	var b strings.Builder
	b.Grow(len(markup) + 16)

	var (
		count       = -1
		inTarget    bool
		found       bool
		hasCheckbox bool
		depth       int
		nestedAt    int // depth of a task item nested in the target, 0 when outside one
		wrapper     html.Token
		wrapperAt   int // offset in b of the target wrapper's start tag
		wrapperLen  int
	)

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := string(z.Raw())
		tok := z.Token()

		switch {
		case !inTarget && tt == html.StartTagToken && tok.DataAtom == atom.Div && tokenHasClass(tok, TaskClass):
			count++
			if count == index {
				inTarget, found = true, true
				depth = 1
				wrapper = tok
				wrapperAt, wrapperLen = b.Len(), len(raw)
			}
		case inTarget && tt == html.StartTagToken && tok.DataAtom == atom.Div:
			depth++
			if nestedAt == 0 && tokenHasClass(tok, TaskClass) {
				nestedAt = depth
			}
		case inTarget && tt == html.EndTagToken && tok.DataAtom == atom.Div:
			if depth == nestedAt {
				nestedAt = 0
			}
			depth--
			if depth == 0 {
				inTarget = false
			}
		case inTarget && nestedAt == 0 && !hasCheckbox && (tt == html.StartTagToken || tt == html.SelfClosingTagToken) && tokenIsCheckbox(tok):
			hasCheckbox = true
			tok.Attr = withoutAttr(tok.Attr, "checked")
			if status == StatusDone {
				tok.Attr = append(tok.Attr, html.Attribute{Key: "checked"})
			}
			b.WriteString(tok.String())
			continue
		}
		b.WriteString(raw)
	}

	if !found {
		return markup, false
	}

	wrapper.Attr = withoutAttr(wrapper.Attr, "data-status")
	switch {
	case status == StatusInProgress:
		wrapper.Attr = append(wrapper.Attr, html.Attribute{Key: "data-status", Val: string(StatusInProgress)})
	case status == StatusDone && !hasCheckbox:
		wrapper.Attr = append(wrapper.Attr, html.Attribute{Key: "data-status", Val: string(StatusDone)})
	}

	out := b.String()
	return out[:wrapperAt] + wrapper.String() + out[wrapperAt+wrapperLen:], true
}

func tokenHasClass(tok html.Token, class string) bool {
	for _, a := range tok.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func tokenIsCheckbox(tok html.Token) bool {
	if tok.DataAtom != atom.Input {
		return false
	}
	for _, a := range tok.Attr {
		if a.Key == "type" && strings.EqualFold(a.Val, "checkbox") {
			return true
		}
	}
	return false
}

func withoutAttr(attrs []html.Attribute, key string) []html.Attribute {
	out := make([]html.Attribute, 0, len(attrs))
	for _, a := range attrs {
		if a.Key != key {
			out = append(out, a)
		}
	}
	return out
}
