package editor

import (
	"time"

	"github.com/hpungsan/kino/internal/command"
	"github.com/hpungsan/kino/internal/markup"
	"github.com/hpungsan/kino/internal/resolve"
	"github.com/hpungsan/kino/internal/resource"
)

// State is the trigger state of a field.
type State int

const (
	Idle State = iota
	MentionMenuOpen
	SlashMenuOpen
	AutolinkSuggested
)

func (s State) String() string {
	switch s {
	case MentionMenuOpen:
		return "mention"
	case SlashMenuOpen:
		return "slash"
	case AutolinkSuggested:
		return "autolink"
	}
	return "idle"
}

// Key is a non-text key.
type Key string

const (
	KeyUp        Key = "Up"
	KeyDown      Key = "Down"
	KeyEnter     Key = "Enter"
	KeyTab       Key = "Tab"
	KeyEscape    Key = "Escape"
	KeyBackspace Key = "Backspace"
	KeySpace     Key = "Space"
)

// TargetKind says what a click landed on.
type TargetKind int

const (
	TargetText TargetKind = iota
	TargetChip
	TargetCheckbox
)

// Target is a click location. Index counts chips or checkboxes in document order;
// Offset is a caret position for text clicks.
type Target struct {
	Kind   TargetKind
	Index  int
	Offset int
}

// FormatAction is a formatting toolbar button.
type FormatAction string

const (
	FormatBold          FormatAction = "bold"
	FormatItalic        FormatAction = "italic"
	FormatUnderline     FormatAction = "underline"
	FormatStrikethrough FormatAction = "strikethrough"
	FormatCodeBlock     FormatAction = "code"
	FormatHeading1      FormatAction = "h1"
	FormatHeading2      FormatAction = "h2"
	FormatChecklist     FormatAction = "checklist"
)

// Options configures a Controller.
type Options struct {
	Registry   *resource.Registry
	OnChange   func(markup string)
	OnNavigate func(resourceID string)
	Layout     Layout
	CloseGrace time.Duration
}

// DefaultCloseGrace is used when Options.CloseGrace is zero.
const DefaultCloseGrace = 200 * time.Millisecond

type mentionMenu struct {
	trigger    resolve.Trigger
	filter     resolve.Filter
	index      int
	candidates []resource.Resource
}

type slashMenu struct {
	trigger  resolve.Trigger
	index    int
	commands []command.Command
}

// Controller is the per-field state machine. It is not safe for concurrent use;
// every event runs to completion synchronously.
type Controller struct {
	buf  *Buffer
	opts Options

	state      State
	mention    mentionMenu
	slash      slashMenu
	suggestion resolve.Suggestion
	autolinker *resolve.Autolinker
	menuPos    Point

	toolbar    bool
	toolbarPos Point

	preview    *resource.Resource
	previewPos Point

	closeAt time.Time
	last    string
}

// New starts an editing session over markup.
func New(m string, opts Options) *Controller {
	if opts.Registry == nil {
		opts.Registry = resource.NewRegistry()
	}
	if opts.CloseGrace <= 0 {
		opts.CloseGrace = DefaultCloseGrace
	}
	c := &Controller{buf: NewBuffer(m), opts: opts}
	c.last = c.buf.Markup()
	return c
}

// Buffer exposes the editable buffer.
func (c *Controller) Buffer() *Buffer { return c.buf }

// Markup returns the current serialized content.
func (c *Controller) Markup() string { return c.buf.Markup() }

// State returns the trigger state.
func (c *Controller) State() State { return c.state }

// ToolbarOpen reports whether the selection formatting toolbar is shown.
func (c *Controller) ToolbarOpen() bool { return c.toolbar }

// Type handles text input. Newlines act as Enter.
func (c *Controller) Type(text string) {
	for _, r := range text {
		switch r {
		case '\n':
			c.KeyDown(KeyEnter)
		case ' ':
			c.KeyDown(KeySpace)
		default:
			c.buf.InsertText(string(r))
			c.afterInput()
		}
	}
}

// KeyDown routes a key to the open menu first, then to the buffer. It reports
// whether the key was consumed.
func (c *Controller) KeyDown(k Key) bool {
	switch c.state {
	case MentionMenuOpen:
		if c.mentionKey(k) {
			return true
		}
		return c.editKey(k, false)
	case SlashMenuOpen:
		if c.slashKey(k) {
			return true
		}
		return c.editKey(k, false)
	case AutolinkSuggested:
		switch k {
		case KeyTab:
			c.confirmAutolink()
			return true
		case KeyEscape:
			c.state = Idle
			return true
		}
	}
	return c.editKey(k, true)
}

func (c *Controller) mentionKey(k Key) bool {
	m := &c.mention
	switch k {
	case KeyDown:
		m.index = clamp(m.index+1, 0, max(len(m.candidates)-1, 0))
	case KeyUp:
		m.index = max(m.index-1, 0)
	case KeyTab:
		m.filter = resolve.NextFilter(m.filter)
		m.index = 0
		c.refreshCandidates()
	case KeyEnter:
		if m.index < len(m.candidates) {
			c.insertMention(m.candidates[m.index])
		}
	case KeyEscape:
		c.state = Idle
	default:
		return false
	}
	return true
}

func (c *Controller) slashKey(k Key) bool {
	s := &c.slash
	switch k {
	case KeyDown:
		s.index = clamp(s.index+1, 0, max(len(s.commands)-1, 0))
	case KeyUp:
		s.index = max(s.index-1, 0)
	case KeyEnter, KeyTab:
		if s.index < len(s.commands) {
			c.executeCommand(s.commands[s.index])
		}
	case KeyEscape:
		c.state = Idle
	default:
		return false
	}
	return true
}

// editKey applies editing keys. Markdown shortcuts only fire outside the trigger menus.
func (c *Controller) editKey(k Key, shortcuts bool) bool {
	switch k {
	case KeySpace:
		if shortcuts {
			if _, _, sel := c.buf.Selection(); !sel {
				if blk, ok := command.Shortcut(c.buf.LinePrefix()); ok {
					c.buf.DeleteLinePrefix()
					c.buf.SetBlock(blk)
					c.state = Idle
					c.commit()
					return true
				}
			}
		}
		c.buf.InsertText(" ")
		c.afterInput()
	case KeyEnter:
		c.buf.SplitBlock()
		c.state = Idle
		c.commit()
	case KeyBackspace:
		if c.buf.Backspace() {
			c.afterInput()
		}
	default:
		return false
	}
	return true
}

// afterInput re-evaluates triggers against the text before the caret and commits.
func (c *Controller) afterInput() {
	before := c.buf.TextBeforeCaret()
	if t, ok := resolve.MatchMention(before); ok {
		if c.state != MentionMenuOpen || c.mention.trigger.Start != t.Start {
			c.mention.filter = resolve.All
			c.menuPos = c.caretAnchor()
		}
		c.mention.trigger = t
		c.mention.index = 0
		c.refreshCandidates()
		c.state = MentionMenuOpen
	} else if t, ok := resolve.MatchSlash(before); ok {
		if c.state != SlashMenuOpen {
			c.menuPos = c.caretAnchor()
		}
		c.slash = slashMenu{trigger: t, commands: command.Filter(t.Query)}
		c.state = SlashMenuOpen
	} else {
		c.state = Idle
		if c.autolinker.Stale(c.opts.Registry) {
			c.autolinker = resolve.NewAutolinker(c.opts.Registry)
		}
		if s, ok := c.autolinker.Suggest(before); ok {
			c.suggestion = s
			c.state = AutolinkSuggested
			c.menuPos = c.caretAnchor()
		}
	}
	c.commit()
}

func (c *Controller) refreshCandidates() {
	c.mention.candidates = resolve.Candidates(c.opts.Registry, c.mention.trigger.Query, c.mention.filter)
}

func (c *Controller) insertMention(r resource.Resource) {
	before := c.buf.TextBeforeCaret()
	t, ok := resolve.MatchMention(before)
	if ok {
		c.buf.ReplaceBeforeCaret(t.Start, r)
		c.commit()
	}
	c.state = Idle
}

func (c *Controller) executeCommand(cmd command.Command) {
	before := c.buf.TextBeforeCaret()
	if t, ok := resolve.MatchSlash(before); ok {
		c.buf.DeleteBeforeCaret(t.Start)
		c.buf.SetBlock(cmd.Block)
		c.commit()
	}
	c.state = Idle
}

func (c *Controller) confirmAutolink() {
	s := c.suggestion
	before := c.buf.TextBeforeCaret()
	if s.End == len(before) && s.Start <= s.End {
		c.buf.ReplaceBeforeCaret(s.Start, s.Resource)
		c.commit()
	}
	c.state = Idle
}

// Click handles a pointer click. Chip clicks navigate instead of moving the caret;
// checkbox clicks flip the task and commit at once.
func (c *Controller) Click(t Target) {
	switch t.Kind {
	case TargetChip:
		chip, ok := c.buf.ChipAt(t.Index)
		if ok && c.opts.OnNavigate != nil {
			c.opts.OnNavigate(chip.ID)
		}
	case TargetCheckbox:
		if c.buf.ToggleTask(t.Index) {
			c.commit()
		}
	default:
		c.buf.SetCaret(t.Offset)
		c.state = Idle
		c.toolbar = false
	}
}

// SelectionChanged updates the selection and the formatting toolbar.
func (c *Controller) SelectionChanged(anchor, focus int) {
	c.buf.Select(anchor, focus)
	if _, _, ok := c.buf.Selection(); ok {
		c.toolbar = true
		if c.opts.Layout != nil {
			r := c.opts.Layout.SelectionRect()
			c.toolbarPos = Point{Top: r.Top - 45, Left: r.Left + r.Width/2}
		}
		return
	}
	c.toolbar = false
}

// ApplyFormat runs a toolbar action on the selection or the caret's block.
func (c *Controller) ApplyFormat(a FormatAction) {
	switch a {
	case FormatBold:
		c.buf.ToggleInline(markup.Bold)
	case FormatItalic:
		c.buf.ToggleInline(markup.Italic)
	case FormatUnderline:
		c.buf.ToggleInline(markup.Underline)
	case FormatStrikethrough:
		c.buf.ToggleInline(markup.Strikethrough)
	case FormatCodeBlock:
		c.buf.SetBlock(markup.Code)
	case FormatHeading1:
		c.buf.SetBlock(markup.Heading1)
	case FormatHeading2:
		c.buf.SetBlock(markup.Heading2)
	case FormatChecklist:
		c.buf.SetBlock(markup.Checklist)
	default:
		return
	}
	if _, _, ok := c.buf.Selection(); !ok {
		c.toolbar = false
	}
	c.commit()
}

// HoverMenu moves the highlighted entry of the open menu, matching keyboard selection.
func (c *Controller) HoverMenu(index int) {
	switch c.state {
	case MentionMenuOpen:
		if index >= 0 && index < len(c.mention.candidates) {
			c.mention.index = index
		}
	case SlashMenuOpen:
		if index >= 0 && index < len(c.slash.commands) {
			c.slash.index = index
		}
	}
}

// ClickMenu confirms the index-th entry of the open menu.
func (c *Controller) ClickMenu(index int) {
	c.closeAt = time.Time{}
	switch c.state {
	case MentionMenuOpen:
		if index >= 0 && index < len(c.mention.candidates) {
			c.insertMention(c.mention.candidates[index])
		}
	case SlashMenuOpen:
		if index >= 0 && index < len(c.slash.commands) {
			c.executeCommand(c.slash.commands[index])
		}
	case AutolinkSuggested:
		c.confirmAutolink()
	}
}

// SetMentionFilter selects a type tab in the mention menu.
func (c *Controller) SetMentionFilter(f resolve.Filter) {
	if c.state != MentionMenuOpen {
		return
	}
	c.closeAt = time.Time{}
	c.mention.filter = f
	c.mention.index = 0
	c.refreshCandidates()
}

// HoverChip shows a preview of the index-th chip's resource; a negative index hides it.
func (c *Controller) HoverChip(index int) {
	c.preview = nil
	chip, ok := c.buf.ChipAt(index)
	if !ok {
		return
	}
	r, ok := c.opts.Registry.Get(chip.ID)
	if !ok {
		return
	}
	c.preview = &r
	if c.opts.Layout != nil {
		rect := c.opts.Layout.ChipRect(index)
		c.previewPos = Point{Top: rect.Bottom, Left: rect.Left}
	}
}

// Blur schedules the transient menus to close after the grace period, so a click
// landing inside a menu can still complete.
func (c *Controller) Blur(now time.Time) {
	c.closeAt = now.Add(c.opts.CloseGrace)
	c.toolbar = false
	c.preview = nil
}

// Focus cancels a pending close.
func (c *Controller) Focus() {
	c.closeAt = time.Time{}
}

// Tick applies a pending close once its deadline has passed.
func (c *Controller) Tick(now time.Time) {
	if c.closeAt.IsZero() || now.Before(c.closeAt) {
		return
	}
	c.closeAt = time.Time{}
	c.state = Idle
}

// ClosePending reports whether a blur close is scheduled.
func (c *Controller) ClosePending() bool {
	return !c.closeAt.IsZero()
}

// ReplaceAll swaps in content that arrived from outside the session, such as a
// generated draft. The session keeps running on the new content; the last write wins.
func (c *Controller) ReplaceAll(m string) {
	c.buf = NewBuffer(m)
	c.state = Idle
	c.toolbar = false
	c.preview = nil
	c.last = c.buf.Markup()
}

func (c *Controller) commit() {
	m := c.buf.Markup()
	if m == c.last {
		return
	}
	c.last = m
	if c.opts.OnChange != nil {
		c.opts.OnChange(m)
	}
}

func (c *Controller) caretAnchor() Point {
	if c.opts.Layout == nil {
		return Point{}
	}
	r := c.opts.Layout.CaretRect()
	return Point{Top: r.Bottom + 5, Left: r.Left}
}
