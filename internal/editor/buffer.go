// Package editor implements the editable surface of a rich-text field: an explicit
// buffer with a caret, and a controller state machine that turns input events into
// buffer edits, menu state and committed markup.
package editor

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hpungsan/kino/internal/markup"
	"github.com/hpungsan/kino/internal/resource"
)

const (
	// ObjectRune stands in for a chip or other atomic object in Buffer.Text.
	ObjectRune = '\uFFFC'
	nbsp       = "\u00a0"
)

type unitKind int

const (
	unitText unitKind = iota
	unitAtom
	unitBreak
)

// unit is one addressable piece of the text projection.
type unit struct {
	kind  unitKind
	node  *html.Node
	start int // rune offset in Text()
	size  int // runes
	line  int
}

func (u unit) end() int { return u.start + u.size }

// Buffer is the editable state of one field. Positions are rune offsets into Text(),
// where every chip is a single ObjectRune and lines are separated by '\n'.
// The caret always sits in a text node, so it can never land inside a chip.
type Buffer struct {
	frag      *markup.Fragment
	caretNode *html.Node
	caretOff  int // byte offset into caretNode.Data
	anchor    int // selection anchor; -1 when the selection is collapsed
}

// NewBuffer parses markup and places the caret at the end.
func NewBuffer(m string) *Buffer {
	b := &Buffer{frag: markup.Parse(m), anchor: -1}
	b.normalize()
	b.SetCaret(b.Len())
	return b
}

// Markup serializes the buffer.
func (b *Buffer) Markup() string {
	return b.frag.String()
}

// Fragment exposes the underlying tree.
func (b *Buffer) Fragment() *markup.Fragment {
	return b.frag
}

// Text returns the text projection.
func (b *Buffer) Text() string {
	var sb strings.Builder
	us := b.units()
	for i, u := range us {
		if i > 0 && us[i-1].line != u.line {
			sb.WriteByte('\n')
		}
		switch u.kind {
		case unitText:
			sb.WriteString(u.node.Data)
		case unitAtom:
			sb.WriteRune(ObjectRune)
		case unitBreak:
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Len is the rune length of Text().
func (b *Buffer) Len() int {
	us := b.units()
	if len(us) == 0 {
		return 0
	}
	return us[len(us)-1].end()
}

// Caret returns the caret position.
func (b *Buffer) Caret() int {
	for _, u := range b.units() {
		if u.node == b.caretNode {
			return u.start + utf8.RuneCountInString(b.caretNode.Data[:b.caretOff])
		}
	}
	return 0
}

// SetCaret moves the caret to pos and collapses the selection. Positions that fall
// on a chip or a line separator snap forward to the next text position.
func (b *Buffer) SetCaret(pos int) {
	b.anchor = -1
	b.placeCaret(pos)
}

// Select sets a selection from anchor to focus. The caret ends at focus.
func (b *Buffer) Select(anchor, focus int) {
	b.placeCaret(focus)
	if anchor == focus {
		b.anchor = -1
		return
	}
	b.anchor = clamp(anchor, 0, b.Len())
}

// Selection returns the ordered selection bounds and whether it is non-empty.
func (b *Buffer) Selection() (from, to int, ok bool) {
	if b.anchor < 0 {
		c := b.Caret()
		return c, c, false
	}
	from, to = b.anchor, b.Caret()
	if from > to {
		from, to = to, from
	}
	return from, to, from != to
}

// SelectedText returns the text projection of the selection.
func (b *Buffer) SelectedText() string {
	from, to, ok := b.Selection()
	if !ok {
		return ""
	}
	r := []rune(b.Text())
	return string(r[from:to])
}

func (b *Buffer) placeCaret(pos int) {
	us := b.units()
	pos = clamp(pos, 0, lastEnd(us))
	var after *unit
	for i := range us {
		u := &us[i]
		if u.kind != unitText {
			continue
		}
		if u.start <= pos && pos <= u.end() {
			b.caretNode = u.node
			b.caretOff = byteOffset(u.node.Data, pos-u.start)
			return
		}
		if after == nil && u.start >= pos {
			after = u
		}
	}
	if after != nil {
		b.caretNode, b.caretOff = after.node, 0
		return
	}
	for i := len(us) - 1; i >= 0; i-- {
		if us[i].kind == unitText {
			b.caretNode, b.caretOff = us[i].node, len(us[i].node.Data)
			return
		}
	}
	// normalize guarantees at least one text node; this only guards a detached tree.
	t := markup.Text("")
	b.frag.Root().AppendChild(t)
	b.caretNode, b.caretOff = t, 0
}

// TextBeforeCaret is the text of the caret's text node up to the caret. Triggers and
// autolinks are matched against it.
func (b *Buffer) TextBeforeCaret() string {
	return b.caretNode.Data[:b.caretOff]
}

// LinePrefix is the projected text of the caret's line up to the caret.
func (b *Buffer) LinePrefix() string {
	text := []rune(b.Text())
	caret := b.Caret()
	start := caret
	for start > 0 && text[start-1] != '\n' {
		start--
	}
	return string(text[start:caret])
}

// InsertText inserts s at the caret, replacing any selection. s must not contain
// line breaks; use SplitBlock for those.
func (b *Buffer) InsertText(s string) {
	b.DeleteSelection()
	n := b.caretNode
	if n.Data == nbsp && isTaskLabel(n.Parent) {
		// The placeholder that keeps an empty task editable is replaced by the first input.
		n.Data, b.caretOff = "", 0
	}
	n.Data = n.Data[:b.caretOff] + s + n.Data[b.caretOff:]
	b.caretOff += len(s)
}

// DeleteBeforeCaret removes the caret node's text from byte offset start to the caret.
func (b *Buffer) DeleteBeforeCaret(start int) {
	start = clamp(start, 0, b.caretOff)
	n := b.caretNode
	n.Data = n.Data[:start] + n.Data[b.caretOff:]
	b.caretOff = start
	b.anchor = -1
}

// DeleteLinePrefix removes the caret line's text before the caret.
func (b *Buffer) DeleteLinePrefix() {
	caret := b.Caret()
	prefix := utf8.RuneCountInString(b.LinePrefix())
	if prefix == 0 {
		return
	}
	b.Select(caret-prefix, caret)
	b.DeleteSelection()
}

// ReplaceBeforeCaret replaces the caret node's text from byte offset start to the
// caret with a chip for r followed by a non-breaking space, and puts the caret after
// the space.
func (b *Buffer) ReplaceBeforeCaret(start int, r resource.Resource) {
	b.anchor = -1
	n := b.caretNode
	start = clamp(start, 0, b.caretOff)
	rest := n.Data[b.caretOff:]
	n.Data = n.Data[:start]

	chip := markup.NewChip(r)
	n.Parent.InsertBefore(chip, n.NextSibling)
	after := markup.Text(nbsp + rest)
	n.Parent.InsertBefore(after, chip.NextSibling)

	b.caretNode, b.caretOff = after, len(nbsp)
}

// Backspace deletes the selection, or one unit before the caret. A chip before the
// caret is removed whole. At the start of a line the line joins the previous one.
// It reports whether anything changed.
func (b *Buffer) Backspace() bool {
	if _, _, ok := b.Selection(); ok {
		b.DeleteSelection()
		return true
	}
	if b.caretOff > 0 {
		n := b.caretNode
		_, size := utf8.DecodeLastRuneInString(n.Data[:b.caretOff])
		n.Data = n.Data[:b.caretOff-size] + n.Data[b.caretOff:]
		b.caretOff -= size
		return true
	}

	us := b.units()
	i := unitIndex(us, b.caretNode)
	if i < 0 {
		return false
	}
	for j := i - 1; j >= 0; j-- {
		p := us[j]
		if p.line != us[i].line {
			return b.joinWithPrevious()
		}
		switch p.kind {
		case unitText:
			if p.size == 0 {
				continue
			}
			_, size := utf8.DecodeLastRuneInString(p.node.Data)
			p.node.Data = p.node.Data[:len(p.node.Data)-size]
			b.caretNode, b.caretOff = p.node, len(p.node.Data)
		default:
			p.node.Parent.RemoveChild(p.node)
		}
		b.normalize()
		return true
	}
	return false
}

// DeleteSelection removes the selected range, joining lines it spans.
func (b *Buffer) DeleteSelection() {
	from, to, ok := b.Selection()
	b.anchor = -1
	if !ok {
		return
	}
	us := b.units()
	joins := 0
	for i, u := range us {
		if i > 0 && us[i-1].line != u.line {
			sep := u.start - 1
			if sep >= from && sep < to {
				joins++
			}
		}
	}

	var endNode *html.Node
	for _, u := range us {
		if u.kind == unitText && u.start <= to && to <= u.end() {
			endNode = u.node // last match wins: prefer the later line
		}
	}

	for _, u := range us {
		lo, hi := max(from, u.start), min(to, u.end())
		if lo >= hi {
			continue
		}
		switch u.kind {
		case unitText:
			a := byteOffset(u.node.Data, lo-u.start)
			z := byteOffset(u.node.Data, hi-u.start)
			u.node.Data = u.node.Data[:a] + u.node.Data[z:]
		default:
			if u.node.Parent != nil {
				u.node.Parent.RemoveChild(u.node)
			}
		}
	}

	if endNode != nil && attached(b.frag.Root(), endNode) {
		b.caretNode, b.caretOff = endNode, 0
		for ; joins > 0; joins-- {
			if !b.joinWithPrevious() {
				break
			}
		}
	}
	b.normalize()
	b.placeCaret(from)
}

// joinWithPrevious merges the caret's line into the previous line. A divider on the
// previous line is removed instead.
func (b *Buffer) joinWithPrevious() bool {
	us := b.units()
	i := unitIndex(us, b.caretNode)
	if i < 0 {
		return false
	}
	j := i - 1
	for j >= 0 && us[j].line == us[i].line {
		j--
	}
	if j < 0 {
		return false
	}
	prev := us[j]
	if prev.kind == unitAtom && prev.node.DataAtom == atom.Hr {
		prev.node.Parent.RemoveChild(prev.node)
		b.normalize()
		return true
	}

	root := b.frag.Root()
	cur := lineRun(root, b.caretNode)
	before := lineRun(root, prev.node)
	if len(cur) == 0 || len(before) == 0 {
		return false
	}
	oldParent := cur[0].Parent
	anchor := before[len(before)-1]
	for _, n := range cur {
		n.Parent.RemoveChild(n)
		anchor.Parent.InsertBefore(n, anchor.NextSibling)
		anchor = n
	}
	removeEmpty(root, oldParent)
	b.normalize()
	return true
}

// SplitBlock breaks the caret's block in two at the caret (Enter).
func (b *Buffer) SplitBlock() {
	b.DeleteSelection()
	block, content := b.lineBlock()

	switch {
	case block.DataAtom == atom.Pre:
		b.InsertText("\n")
		return

	case markup.IsTask(block):
		if lineEmpty(content) {
			b.SetBlock(markup.Paragraph)
			return
		}
		rest, first := splitAfter(content, b.caretNode, b.caretOff)
		task := markup.NewTask(markup.StatusTodo, "")
		label := markup.TaskLabel(task)
		if hasText(rest) {
			clearChildren(label)
		}
		appendAll(label, rest)
		block.Parent.InsertBefore(task, block.NextSibling)
		b.normalize()
		b.caretAt(first, label)
		return

	case block.DataAtom == atom.Li:
		if lineEmpty(content) {
			b.SetBlock(markup.Paragraph)
			return
		}
	}

	rest, first := splitAfter(content, b.caretNode, b.caretOff)
	var next *html.Node
	switch block.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		next = markup.Element("p")
	default:
		next = shallowClone(block)
	}
	appendAll(next, rest)
	block.Parent.InsertBefore(next, block.NextSibling)
	b.normalize()
	b.caretAt(first, next)
}

// SetBlock turns the caret's block into target. Applying a list type to an item of
// the same list type turns it back into a paragraph.
func (b *Buffer) SetBlock(target markup.Block) {
	b.DeleteSelection()
	block, content := b.lineBlock()
	root := b.frag.Root()

	if target == markup.Divider {
		hr := markup.Element("hr")
		p := markup.Element("p")
		p.AppendChild(markup.Text(""))
		if lineEmpty(content) {
			replaceBlock(root, block, hr)
		} else {
			insertAfterBlock(block, hr)
		}
		hr.Parent.InsertBefore(p, hr.NextSibling)
		b.normalize()
		b.caretAt(p.FirstChild, p)
		return
	}

	current := markup.BlockOf(block)
	if current == target {
		if !target.IsList() {
			return
		}
		target = markup.Paragraph
	}

	nodes := detachChildren(content)
	if markup.IsTask(block) && !hasText(nodes) {
		nodes = nil
	}

	var replacement, inner *html.Node
	switch {
	case target == markup.Checklist:
		replacement = markup.NewTask(markup.StatusTodo, "")
		inner = markup.TaskLabel(replacement)
		if hasText(nodes) {
			clearChildren(inner)
		}
	case target.IsList():
		replacement = markup.NewBlock(target)
		inner = replacement.FirstChild
	default:
		replacement = markup.NewBlock(target)
		inner = replacement
	}
	appendAll(inner, nodes)
	replaceBlock(root, block, replacement)
	b.normalize()
	if !attached(root, b.caretNode) {
		b.caretAt(nil, inner)
	}
}

// ToggleInline wraps the selected text in format, or unwraps it when every selected
// piece already carries format. It reports whether a selection existed.
func (b *Buffer) ToggleInline(format markup.InlineFormat) bool {
	from, to, ok := b.Selection()
	if !ok || !format.Valid() {
		return false
	}
	anchor := b.anchor
	root := b.frag.Root()

	var targets []unit
	for _, u := range b.units() {
		if u.kind == unitText && max(from, u.start) < min(to, u.end()) {
			targets = append(targets, u)
		}
	}

	all := len(targets) > 0
	for _, u := range targets {
		if formatAncestor(root, u.node, format) == nil {
			all = false
			break
		}
	}

	if all {
		for _, u := range targets {
			if el := formatAncestor(root, u.node, format); el != nil {
				unwrap(el)
			}
		}
	} else {
		for _, u := range targets {
			lo, hi := max(from, u.start)-u.start, min(to, u.end())-u.start
			a, z := byteOffset(u.node.Data, lo), byteOffset(u.node.Data, hi)
			n := u.node
			if z < len(n.Data) {
				n.Parent.InsertBefore(markup.Text(n.Data[z:]), n.NextSibling)
			}
			mid := markup.Text(n.Data[a:z])
			n.Data = n.Data[:a]
			wrap := markup.Element(string(format))
			wrap.AppendChild(mid)
			n.Parent.InsertBefore(wrap, n.NextSibling)
		}
	}

	b.normalize()
	focus := to
	if anchor == to {
		focus = from
	}
	b.Select(anchor, focus)
	return true
}

// ToggleTask flips the checkbox of the index-th task item.
func (b *Buffer) ToggleTask(index int) bool {
	tasks := markup.TaskNodes(b.frag)
	if index < 0 || index >= len(tasks) {
		return false
	}
	return markup.ToggleTaskChecked(tasks[index])
}

// ChipAt returns the index-th chip.
func (b *Buffer) ChipAt(index int) (markup.Chip, bool) {
	chips := markup.Chips(b.frag)
	if index < 0 || index >= len(chips) {
		return markup.Chip{}, false
	}
	return chips[index], true
}

func (b *Buffer) caretAt(n, container *html.Node) {
	b.anchor = -1
	if n != nil && n.Type == html.TextNode && attached(b.frag.Root(), n) {
		b.caretNode, b.caretOff = n, 0
		return
	}
	var found *html.Node
	markup.Walk(container, func(c *html.Node) bool {
		if found != nil || markup.IsChip(c) {
			return false
		}
		if c.Type == html.TextNode {
			found = c
			return false
		}
		return true
	})
	if found == nil {
		found = markup.Text("")
		container.AppendChild(found)
	}
	b.caretNode, b.caretOff = found, 0
}

// lineBlock returns the block holding the caret and the element whose children form
// the caret's line. Inline content sitting directly in the root, or next to block
// children, is wrapped in a paragraph first.
func (b *Buffer) lineBlock() (block, content *html.Node) {
	root := b.frag.Root()
	c := lineContainer(root, b.caretNode)
	if isTaskLabel(c) {
		return c.Parent, c
	}
	if c != root && !hasBlockChild(c) {
		return c, c
	}
	run := lineRun(root, b.caretNode)
	p := markup.Element("p")
	c.InsertBefore(p, run[0])
	for _, n := range run {
		c.RemoveChild(n)
		p.AppendChild(n)
	}
	return p, p
}

// units computes the text projection.
func (b *Buffer) units() []unit {
	var us []unit
	line, pos := 0, 0
	add := func(kind unitKind, n *html.Node, size int) {
		if len(us) > 0 && us[len(us)-1].line != line {
			pos++
		}
		us = append(us, unit{kind: kind, node: n, start: pos, size: size, line: line})
		pos += size
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.TextNode:
				if markup.IsTask(n) || interBlockSpace(c) {
					continue
				}
				add(unitText, c, utf8.RuneCountInString(c.Data))
			case c.Type != html.ElementNode:
			case markup.IsChip(c):
				add(unitAtom, c, 1)
			case c.DataAtom == atom.Br:
				add(unitBreak, c, 1)
			case markup.IsCheckbox(c) && markup.IsTask(n):
			case c.DataAtom == atom.Hr:
				line++
				add(unitAtom, c, 1)
				line++
			case markup.IsVoid(c) || opaque(c):
				add(unitAtom, c, 1)
			case markup.IsBlock(c):
				line++
				walk(c)
				line++
			default:
				walk(c)
			}
		}
	}
	walk(b.frag.Root())
	return us
}

// normalize restores the buffer invariants: chips have text neighbours, every line
// has a text node, adjacent text nodes are merged, and the caret is attached.
func (b *Buffer) normalize() {
	root := b.frag.Root()

	var chips, blocks []*html.Node
	markup.Walk(root, func(n *html.Node) bool {
		switch {
		case markup.IsChip(n):
			chips = append(chips, n)
			return false
		case opaque(n):
			return false
		case markup.IsTask(n), markup.IsBlock(n):
			blocks = append(blocks, n)
		}
		return true
	})

	for _, c := range chips {
		if c.PrevSibling == nil || c.PrevSibling.Type != html.TextNode {
			c.Parent.InsertBefore(markup.Text(""), c)
		}
		if c.NextSibling == nil || c.NextSibling.Type != html.TextNode {
			c.Parent.InsertBefore(markup.Text(""), c.NextSibling)
		}
	}

	for _, blk := range blocks {
		switch {
		case markup.IsTask(blk):
			label := markup.TaskLabel(blk)
			if label == nil {
				label = markup.Element("span")
				blk.AppendChild(label)
			}
			if !hasTextNode(label) {
				label.AppendChild(markup.Text(nbsp))
			}
		case blk.DataAtom == atom.Hr:
		case blk.DataAtom == atom.Ul || blk.DataAtom == atom.Ol:
			if !hasElementChild(blk) {
				blk.AppendChild(markup.Element("li"))
				blk.LastChild.AppendChild(markup.Text(""))
			}
		case blk.DataAtom == atom.Table || blk.DataAtom == atom.Tr:
		default:
			if !hasBlockChild(blk) && !hasTextNode(blk) {
				blk.AppendChild(markup.Text(""))
			}
		}
	}

	if root.FirstChild == nil {
		root.AppendChild(markup.Text(""))
	}

	b.mergeText(root)

	if b.caretNode == nil || !attached(root, b.caretNode) || !b.inUnits() {
		b.placeCaret(b.lenFast())
	}
	b.caretOff = clamp(b.caretOff, 0, len(b.caretNode.Data))
}

func (b *Buffer) inUnits() bool {
	return unitIndex(b.units(), b.caretNode) >= 0
}

func (b *Buffer) lenFast() int {
	return lastEnd(b.units())
}

// mergeText joins adjacent text siblings, keeping the caret on the merged node.
func (b *Buffer) mergeText(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		for c.Type == html.TextNode && c.NextSibling != nil && c.NextSibling.Type == html.TextNode {
			next := c.NextSibling
			if b.caretNode == next {
				b.caretNode, b.caretOff = c, len(c.Data)+b.caretOff
			}
			c.Data += next.Data
			n.RemoveChild(next)
		}
		if c.Type == html.ElementNode && !markup.IsChip(c) && !opaque(c) {
			b.mergeText(c)
		}
	}
}

func lineContainer(root, n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == root || isTaskLabel(p) || markup.IsBlock(p) || markup.IsTask(p) {
			return p
		}
	}
	return root
}

// lineRun returns the sibling nodes that make up n's line: the child of the line
// container that holds n, extended over neighbouring inline siblings.
func lineRun(root, n *html.Node) []*html.Node {
	c := lineContainer(root, n)
	top := n
	for top.Parent != c && top.Parent != nil {
		top = top.Parent
	}
	if isLineBreaker(top) {
		return []*html.Node{top}
	}
	first := top
	for first.PrevSibling != nil && !isLineBreaker(first.PrevSibling) {
		first = first.PrevSibling
	}
	var run []*html.Node
	for s := first; s != nil && !isLineBreaker(s); s = s.NextSibling {
		run = append(run, s)
	}
	return run
}

func isLineBreaker(n *html.Node) bool {
	return markup.IsBlock(n) || markup.IsTask(n)
}

func isTaskLabel(n *html.Node) bool {
	return n != nil && n.Parent != nil && markup.IsTask(n.Parent) && markup.TaskLabel(n.Parent) == n
}

func opaque(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Svg, atom.Script, atom.Style, atom.Math, atom.Iframe, atom.Video, atom.Audio:
		return true
	}
	return n.Namespace != ""
}

// interBlockSpace reports formatting whitespace between block siblings.
func interBlockSpace(n *html.Node) bool {
	if strings.Trim(n.Data, " \t\r\n\f") != "" || !strings.ContainsAny(n.Data, "\n") {
		return false
	}
	return hasBlockChild(n.Parent)
}

func hasBlockChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isLineBreaker(c) {
			return true
		}
	}
	return false
}

func hasElementChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
	}
	return false
}

func hasTextNode(n *html.Node) bool {
	found := false
	markup.Walk(n, func(c *html.Node) bool {
		if found || markup.IsChip(c) || opaque(c) {
			return false
		}
		if c.Type == html.TextNode {
			found = true
		}
		return !found
	})
	return found
}

// lineEmpty reports whether content holds no visible text and no objects.
func lineEmpty(content *html.Node) bool {
	var nodes []*html.Node
	for c := content.FirstChild; c != nil; c = c.NextSibling {
		nodes = append(nodes, c)
	}
	return !hasText(nodes)
}

// hasText reports whether nodes carry any visible text or atomic object.
func hasText(nodes []*html.Node) bool {
	for _, n := range nodes {
		found := false
		markup.Walk(n, func(c *html.Node) bool {
			if found {
				return false
			}
			if markup.IsChip(c) || (c.Type == html.ElementNode && (markup.IsVoid(c) || opaque(c))) {
				found = true
				return false
			}
			if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
				found = true
			}
			return true
		})
		if found {
			return true
		}
	}
	return false
}

// splitAfter cuts content at (n, off) and detaches everything after the cut,
// cloning inline wrappers so formatting carries over. It returns the detached top-level
// nodes and the text node that starts them.
func splitAfter(content, n *html.Node, off int) ([]*html.Node, *html.Node) {
	right := markup.Text(n.Data[off:])
	n.Data = n.Data[:off]
	n.Parent.InsertBefore(right, n.NextSibling)

	cur := right
	for cur.Parent != content && cur.Parent != nil {
		parent := cur.Parent
		clone := shallowClone(parent)
		for c := cur; c != nil; {
			next := c.NextSibling
			parent.RemoveChild(c)
			clone.AppendChild(c)
			c = next
		}
		parent.Parent.InsertBefore(clone, parent.NextSibling)
		cur = clone
	}

	var out []*html.Node
	for c := cur; c != nil; {
		next := c.NextSibling
		content.RemoveChild(c)
		out = append(out, c)
		c = next
	}
	return out, right
}

func shallowClone(n *html.Node) *html.Node {
	return &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
}

func detachChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		out = append(out, c)
		c = next
	}
	return out
}

func clearChildren(n *html.Node) {
	detachChildren(n)
}

func appendAll(parent *html.Node, nodes []*html.Node) {
	for _, n := range nodes {
		parent.AppendChild(n)
	}
}

// replaceBlock puts replacement where block was. A list item is first split out of
// its list.
func replaceBlock(root, block, replacement *html.Node) {
	if block.DataAtom == atom.Li && block.Parent != nil && block.Parent != root {
		list := splitListAt(block)
		list.Parent.InsertBefore(replacement, list.NextSibling)
		list.RemoveChild(block)
		if !hasElementChild(list) {
			list.Parent.RemoveChild(list)
		}
		return
	}
	block.Parent.InsertBefore(replacement, block)
	block.Parent.RemoveChild(block)
}

// insertAfterBlock inserts n after block; after a list item, n goes after the list.
func insertAfterBlock(block, n *html.Node) {
	if block.DataAtom == atom.Li && block.Parent != nil {
		list := splitListAt(block)
		list.Parent.InsertBefore(n, list.NextSibling)
		return
	}
	block.Parent.InsertBefore(n, block.NextSibling)
}

// splitListAt moves the items after li into a new list placed after li's list and
// returns li's list.
func splitListAt(li *html.Node) *html.Node {
	list := li.Parent
	if li.NextSibling == nil {
		return list
	}
	tail := shallowClone(list)
	for c := li.NextSibling; c != nil; {
		next := c.NextSibling
		list.RemoveChild(c)
		tail.AppendChild(c)
		c = next
	}
	if hasElementChild(tail) {
		list.Parent.InsertBefore(tail, list.NextSibling)
	}
	return list
}

// removeEmpty deletes n and then its ancestors while they hold nothing visible.
func removeEmpty(root, n *html.Node) {
	for n != nil && n != root && n.Parent != nil {
		target := n
		if isTaskLabel(n) {
			target = n.Parent
		}
		if lineEmpty(n) && !hasBlockChild(n) {
			parent := target.Parent
			parent.RemoveChild(target)
			n = parent
			continue
		}
		return
	}
}

func formatAncestor(root, n *html.Node, f markup.InlineFormat) *html.Node {
	for p := n.Parent; p != nil && p != root; p = p.Parent {
		if f.Matches(p) {
			return p
		}
		if isLineBreaker(p) || isTaskLabel(p) {
			return nil
		}
	}
	return nil
}

func unwrap(el *html.Node) {
	parent := el.Parent
	if parent == nil {
		return
	}
	for c := el.FirstChild; c != nil; {
		next := c.NextSibling
		el.RemoveChild(c)
		parent.InsertBefore(c, el)
		c = next
	}
	parent.RemoveChild(el)
}

func attached(root, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

func unitIndex(us []unit, n *html.Node) int {
	for i, u := range us {
		if u.node == n {
			return i
		}
	}
	return -1
}

func lastEnd(us []unit) int {
	if len(us) == 0 {
		return 0
	}
	return us[len(us)-1].end()
}

// byteOffset converts a rune offset within s to a byte offset.
func byteOffset(s string, runes int) int {
	if runes <= 0 {
		return 0
	}
	i := 0
	for off := range s {
		if i == runes {
			return off
		}
		i++
	}
	return len(s)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
